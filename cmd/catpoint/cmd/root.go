package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/catpoint/internal/config"
	"github.com/oshokin/catpoint/internal/service/client"
	"github.com/oshokin/catpoint/internal/version"
)

var (
	// configPath stores the path to the configuration YAML file.
	configPath string
	// serverAddress overrides the server address from the configuration.
	serverAddress string

	// rootCmd represents the base command of the control client.
	rootCmd = &cobra.Command{
		Use:   "catpoint",
		Short: "Control the catpoint security panel.",
		Long: `Command line client for the catpoint panel server.

Shows the panel state, arms and disarms the system, manages sensors,
submits camera images for cat detection and watches for alarms.
The server address is read from the configuration file unless --server is given.`,
		SilenceUsage: true,
	}
)

// Execute runs the catpoint CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// signalContext returns a context canceled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
}

// clientOptions builds the shared client options for a command.
func clientOptions(cmd *cobra.Command) *client.Options {
	return &client.Options{
		ConfigPath:    configPath,
		ServerAddress: serverAddress,
		Out:           cmd.OutOrStdout(),
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.PersistentFlags().
		StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.PersistentFlags().StringVar(&serverAddress, "server", "", "server address, overrides configuration")

	rootCmd.AddCommand(
		newStatusCommand(),
		newArmCommand(),
		newDisarmCommand(),
		newSensorCommand(),
		newImageCommand(),
		newEventsCommand(),
		newWatchCommand(),
	)
}
