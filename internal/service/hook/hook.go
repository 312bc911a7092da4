// Package hook runs external commands in response to panel events,
// such as sounding a siren when the alarm goes off.
package hook

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"

	"github.com/oshokin/catpoint/internal/domain/alarm"
	"github.com/oshokin/catpoint/internal/logger"
)

// Environment variables passed to hook commands.
const (
	EnvAlarmStatus  = "CATPOINT_ALARM_STATUS"
	EnvArmingStatus = "CATPOINT_ARMING_STATUS"
	EnvActive       = "CATPOINT_ACTIVE_SENSORS"
)

// ErrEmptyCommand is returned when no command is configured.
var ErrEmptyCommand = errors.New("hook command is empty")

// Start launches argv with the snapshot exposed through the environment.
// The command runs asynchronously; its exit status is only logged.
func Start(ctx context.Context, argv []string, s *alarm.Snapshot) error {
	if len(argv) == 0 || argv[0] == "" {
		return ErrEmptyCommand
	}

	//nolint:gosec // The command comes from the operator's own flags.
	cmd := exec.CommandContext(context.WithoutCancel(ctx), argv[0], argv[1:]...)
	cmd.Env = append(os.Environ(),
		EnvAlarmStatus+"="+s.AlarmStatus.String(),
		EnvArmingStatus+"="+s.ArmingStatus.String(),
		fmt.Sprintf("%s=%d", EnvActive, s.ActiveSensors()),
	)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", argv[0], err)
	}

	go func() {
		if err := cmd.Wait(); err != nil {
			logger.WarnKV(ctx, "Hook command failed", "command", argv[0], "error", err)
		}
	}()

	return nil
}
