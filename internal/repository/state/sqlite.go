package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/oshokin/catpoint/internal/domain/alarm"
)

// SQLiteRepository persists the panel state in the system_state and sensors tables.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository wraps a database opened with database.Open.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Load reads the state row and every sensor.
func (r *SQLiteRepository) Load(ctx context.Context) (*alarm.Snapshot, error) {
	var (
		alarmStatus, armingStatus, updatedAt string
		snapshot                             = new(alarm.Snapshot)
	)

	err := r.db.QueryRowContext(ctx,
		"SELECT alarm_status, arming_status, cat_detected, updated_at FROM system_state WHERE id = 1",
	).Scan(&alarmStatus, &armingStatus, &snapshot.CatDetected, &updatedAt)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, ErrNotFound
	case err != nil:
		return nil, fmt.Errorf("query state: %w", err)
	}

	if snapshot.AlarmStatus, err = alarm.ParseAlarmStatus(alarmStatus); err != nil {
		return nil, err
	}

	if snapshot.ArmingStatus, err = alarm.ParseArmingStatus(armingStatus); err != nil {
		return nil, err
	}

	if updatedAt != "" {
		if snapshot.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
			return nil, fmt.Errorf("parse updated_at: %w", err)
		}
	}

	if snapshot.Sensors, err = r.loadSensors(ctx); err != nil {
		return nil, err
	}

	return snapshot, nil
}

// Save replaces the stored state in one transaction.
func (r *SQLiteRepository) Save(ctx context.Context, snapshot *alarm.Snapshot) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		_ = tx.Rollback()
	}()

	var updatedAt string
	if !snapshot.UpdatedAt.IsZero() {
		updatedAt = snapshot.UpdatedAt.UTC().Format(time.RFC3339Nano)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO system_state (id, alarm_status, arming_status, cat_detected, updated_at)
		VALUES (1, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			alarm_status = excluded.alarm_status,
			arming_status = excluded.arming_status,
			cat_detected = excluded.cat_detected,
			updated_at = excluded.updated_at`,
		snapshot.AlarmStatus.String(), snapshot.ArmingStatus.String(), snapshot.CatDetected, updatedAt)
	if err != nil {
		return fmt.Errorf("save state: %w", err)
	}

	if _, err = tx.ExecContext(ctx, "DELETE FROM sensors"); err != nil {
		return fmt.Errorf("clear sensors: %w", err)
	}

	for _, s := range snapshot.Sensors {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO sensors (name, type, active) VALUES (?, ?, ?)",
			s.Name, s.Type.String(), s.Active)
		if err != nil {
			return fmt.Errorf("save sensor %s: %w", s.Key(), err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit state: %w", err)
	}

	return nil
}

// loadSensors reads every sensor ordered by name and type.
func (r *SQLiteRepository) loadSensors(ctx context.Context) ([]alarm.Sensor, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT name, type, active FROM sensors ORDER BY name, type")
	if err != nil {
		return nil, fmt.Errorf("query sensors: %w", err)
	}

	defer func() {
		_ = rows.Close()
	}()

	var sensors []alarm.Sensor

	for rows.Next() {
		var (
			name, sensorType string
			active           bool
		)

		if err = rows.Scan(&name, &sensorType, &active); err != nil {
			return nil, fmt.Errorf("scan sensor: %w", err)
		}

		parsed, err := alarm.ParseSensorType(sensorType)
		if err != nil {
			return nil, err
		}

		sensors = append(sensors, alarm.Sensor{Name: name, Type: parsed, Active: active})
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sensors: %w", err)
	}

	return sensors, nil
}
