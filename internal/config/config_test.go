package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestValidate checks required fields and format validations for Config.
func TestValidate(t *testing.T) {
	t.Parallel()

	// Missing socket.
	err := Validate(new(Config))
	require.Error(t, err)

	// Bad socket.
	err = Validate(&Config{ServerAddress: "bad:address"})
	require.Error(t, err)

	// Defaults applied.
	settings := &Config{ServerAddress: "127.0.0.1:0"}
	require.NoError(t, Validate(settings))
	require.Equal(t, DefaultTimeout, settings.Timeout)
	require.Equal(t, StorageFile, settings.Storage.Driver)
	require.Equal(t, DefaultStateFilename, settings.Storage.StateFile)
	require.Equal(t, DefaultDatabaseFilename, settings.Storage.Database)
	require.Equal(t, ClassifierFake, settings.Classifier.Kind)
	require.InDelta(t, DefaultConfidenceThreshold, settings.Classifier.ConfidenceThreshold, 0.001)
	require.Equal(t, DefaultTopicPrefix, settings.MQTT.TopicPrefix)
	require.Equal(t, DefaultPollInterval, settings.GPIO.PollInterval)
}

// TestValidate_Sections checks per-section validation errors.
func TestValidate_Sections(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown storage", func(c *Config) { c.Storage.Driver = "postgres" }},
		{"unknown classifier", func(c *Config) { c.Classifier.Kind = "oracle" }},
		{"http without endpoint", func(c *Config) { c.Classifier.Kind = ClassifierHTTP }},
		{"threshold too high", func(c *Config) { c.Classifier.ConfidenceThreshold = 150 }},
		{"bad status address", func(c *Config) { c.StatusHTTP.ListenAddress = "nope" }},
		{"gpio without name", func(c *Config) { c.GPIO.Sensors = []GPIOSensor{{Line: 3, Type: "door"}} }},
		{"gpio bad type", func(c *Config) { c.GPIO.Sensors = []GPIOSensor{{Line: 3, Name: "x", Type: "laser"}} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			settings := &Config{ServerAddress: "127.0.0.1:50051"}
			tt.mutate(settings)

			require.Error(t, Validate(settings))
		})
	}
}

// TestSaveLoadRoundtrip ensures settings are persisted and loaded back correctly.
func TestSaveLoadRoundtrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "settings.yaml")

	settings := &Config{
		ServerAddress: "127.0.0.1:50051",
		Storage:       Storage{Driver: StorageSQLite, Database: filepath.Join(dir, "db.sqlite")},
		Classifier: Classifier{
			Kind:                ClassifierHTTP,
			Endpoint:            "http://vision.local:8080",
			ConfidenceThreshold: 75,
			Timeout:             time.Second,
		},
		MQTT: MQTT{Broker: "tcp://broker.local:1883", TopicPrefix: "/home/catpoint/"},
		GPIO: GPIO{Sensors: []GPIOSensor{{Line: 17, Name: "Front door", Type: "door", ActiveLow: true}}},
	}

	require.NoError(t, Save(path, settings))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, settings.ServerAddress, loaded.ServerAddress)
	require.Equal(t, StorageSQLite, loaded.Storage.Driver)
	require.Equal(t, "http://vision.local:8080", loaded.Classifier.Endpoint)
	require.InDelta(t, 75, loaded.Classifier.ConfidenceThreshold, 0.001)
	require.Equal(t, "home/catpoint", loaded.MQTT.TopicPrefix)
	require.Equal(t, settings.GPIO.Sensors, loaded.GPIO.Sensors)

	// File exists.
	_, err = os.Stat(path)
	require.NoError(t, err)
}
