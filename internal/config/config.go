package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the settings shared by the catpoint binaries.
type Config struct {
	// ServerAddress is the gRPC server address.
	ServerAddress string `yaml:"server_addr"`
	// Timeout is the duration for network operations and RPC calls.
	Timeout time.Duration `yaml:"timeout"`
	// LogLevel is the minimum zap level (debug, info, warn, error).
	LogLevel string `yaml:"log_level"`
	// LogFormat is console or json.
	LogFormat string `yaml:"log_format"`

	Storage    Storage    `yaml:"storage"`
	Classifier Classifier `yaml:"classifier"`
	MQTT       MQTT       `yaml:"mqtt"`
	StatusHTTP StatusHTTP `yaml:"status_http"`
	GPIO       GPIO       `yaml:"gpio"`
}

// Storage selects where the panel state lives.
type Storage struct {
	// Driver is "file" or "sqlite".
	Driver string `yaml:"driver"`
	// StateFile is the JSON state path used by the file driver.
	StateFile string `yaml:"state_file"`
	// Database is the SQLite path. It also holds the event history,
	// so it is used even with the file driver.
	Database string `yaml:"database"`
}

// Classifier selects the image classifier.
type Classifier struct {
	// Kind is "fake" or "http".
	Kind string `yaml:"kind"`
	// Endpoint is the base URL of the labelling service for the http kind.
	Endpoint string `yaml:"endpoint"`
	// ConfidenceThreshold is the minimum confidence, in percent, for a cat verdict.
	ConfidenceThreshold float32 `yaml:"confidence_threshold"`
	// Timeout bounds a single classification request.
	Timeout time.Duration `yaml:"timeout"`
}

// MQTT configures the broker bridge. An empty Broker disables it.
type MQTT struct {
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id"`
	TopicPrefix string `yaml:"topic_prefix"`
}

// StatusHTTP configures the websocket status panel. An empty address disables it.
type StatusHTTP struct {
	ListenAddress string `yaml:"listen_addr"`
}

// GPIO configures wired sensors. An empty Sensors list disables polling.
type GPIO struct {
	Chip         string        `yaml:"chip"`
	PollInterval time.Duration `yaml:"poll_interval"`
	Sensors      []GPIOSensor  `yaml:"sensors"`
}

// GPIOSensor maps a chip line to a named sensor.
type GPIOSensor struct {
	Line      int    `yaml:"line"`
	Name      string `yaml:"name"`
	Type      string `yaml:"type"`
	ActiveLow bool   `yaml:"active_low"`
}

const (
	// DefaultConfigFilename is the default filename for settings.
	DefaultConfigFilename = "catpoint-settings.yaml"

	// DefaultStateFilename is the default filename for the panel state JSON.
	DefaultStateFilename = "catpoint-state.json"

	// DefaultDatabaseFilename is the default SQLite database path.
	DefaultDatabaseFilename = "catpoint.db"

	// DefaultTimeout is the default duration for network operations.
	DefaultTimeout = 5 * time.Second

	// DefaultClassifierTimeout bounds a remote classification.
	DefaultClassifierTimeout = 15 * time.Second

	// DefaultConfidenceThreshold is the cat confidence threshold in percent.
	DefaultConfidenceThreshold float32 = 50

	// DefaultTopicPrefix is the root of every MQTT topic.
	DefaultTopicPrefix = "catpoint"

	// DefaultClientID is the MQTT client identifier.
	DefaultClientID = "catpoint-server"

	// DefaultGPIOChip is the gpiochip device name.
	DefaultGPIOChip = "gpiochip0"

	// DefaultPollInterval is the GPIO sampling period.
	DefaultPollInterval = 100 * time.Millisecond

	// DefaultFilePermissions is the default file permission for config and state files.
	DefaultFilePermissions = 0o600
)

// Storage drivers.
const (
	StorageFile   = "file"
	StorageSQLite = "sqlite"
)

// Classifier kinds.
const (
	ClassifierFake = "fake"
	ClassifierHTTP = "http"
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errServerSocketRequired is returned when server address is missing.
	errServerSocketRequired = errors.New("server address must be provided")
	// errUnknownStorage is returned for an unsupported storage driver.
	errUnknownStorage = errors.New("unknown storage driver")
	// errUnknownClassifier is returned for an unsupported classifier kind.
	errUnknownClassifier = errors.New("unknown classifier kind")
	// errEndpointRequired is returned when the http classifier has no endpoint.
	errEndpointRequired = errors.New("classifier endpoint must be provided")
	// errThresholdRange is returned when the threshold is outside 0..100.
	errThresholdRange = errors.New("confidence threshold must be within 0..100")
	// errGPIOSensor is returned for an incomplete GPIO sensor mapping.
	errGPIOSensor = errors.New("invalid gpio sensor")
)

// Load reads configuration from the provided path and validates essential fields.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes settings to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks the provided settings and fills in defaults.
func Validate(settings *Config) error {
	if settings == nil {
		return errConfigIsNotSet
	}

	if settings.ServerAddress == "" {
		return errServerSocketRequired
	}

	if _, err := net.ResolveTCPAddr("tcp", settings.ServerAddress); err != nil {
		return fmt.Errorf("invalid server socket: %w", err)
	}

	if settings.Timeout <= 0 {
		settings.Timeout = DefaultTimeout
	}

	if settings.LogLevel == "" {
		settings.LogLevel = "info"
	}

	if settings.LogFormat == "" {
		settings.LogFormat = "console"
	}

	if err := validateStorage(&settings.Storage); err != nil {
		return err
	}

	if err := validateClassifier(&settings.Classifier); err != nil {
		return err
	}

	if settings.MQTT.Broker != "" {
		if _, err := url.Parse(settings.MQTT.Broker); err != nil {
			return fmt.Errorf("invalid mqtt broker: %w", err)
		}
	}

	if settings.MQTT.ClientID == "" {
		settings.MQTT.ClientID = DefaultClientID
	}

	settings.MQTT.TopicPrefix = strings.Trim(settings.MQTT.TopicPrefix, "/")
	if settings.MQTT.TopicPrefix == "" {
		settings.MQTT.TopicPrefix = DefaultTopicPrefix
	}

	if settings.StatusHTTP.ListenAddress != "" {
		if _, err := net.ResolveTCPAddr("tcp", settings.StatusHTTP.ListenAddress); err != nil {
			return fmt.Errorf("invalid status listen address: %w", err)
		}
	}

	return validateGPIO(&settings.GPIO)
}

func validateStorage(s *Storage) error {
	switch s.Driver {
	case "":
		s.Driver = StorageFile
	case StorageFile, StorageSQLite:
	default:
		return fmt.Errorf("%w: %q", errUnknownStorage, s.Driver)
	}

	if s.StateFile == "" {
		s.StateFile = DefaultStateFilename
	}

	if s.Database == "" {
		s.Database = DefaultDatabaseFilename
	}

	return nil
}

func validateClassifier(c *Classifier) error {
	switch c.Kind {
	case "":
		c.Kind = ClassifierFake
	case ClassifierFake:
	case ClassifierHTTP:
		if c.Endpoint == "" {
			return errEndpointRequired
		}

		if _, err := url.ParseRequestURI(c.Endpoint); err != nil {
			return fmt.Errorf("invalid classifier endpoint: %w", err)
		}
	default:
		return fmt.Errorf("%w: %q", errUnknownClassifier, c.Kind)
	}

	if c.ConfidenceThreshold == 0 {
		c.ConfidenceThreshold = DefaultConfidenceThreshold
	}

	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 100 {
		return errThresholdRange
	}

	if c.Timeout <= 0 {
		c.Timeout = DefaultClassifierTimeout
	}

	return nil
}

func validateGPIO(g *GPIO) error {
	if g.Chip == "" {
		g.Chip = DefaultGPIOChip
	}

	if g.PollInterval <= 0 {
		g.PollInterval = DefaultPollInterval
	}

	for i, s := range g.Sensors {
		if s.Name == "" || s.Line < 0 {
			return fmt.Errorf("%w at index %d", errGPIOSensor, i)
		}

		switch strings.ToUpper(s.Type) {
		case "DOOR", "WINDOW", "MOTION":
		default:
			return fmt.Errorf("%w at index %d: type %q", errGPIOSensor, i, s.Type)
		}
	}

	return nil
}
