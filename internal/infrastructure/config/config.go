package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for pbexport.
type Config struct {
	Archive  ArchiveConfig  `yaml:"archive"`
	Export   ExportConfig   `yaml:"export"`
	Database DatabaseConfig `yaml:"database"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ArchiveConfig locates the historian index read by the exporter.
type ArchiveConfig struct {
	// Index is the SQLite historian index, opened read-only.
	Index       string `yaml:"index"`
	BusyTimeout int    `yaml:"busy_timeout"`
	// PageSize is the number of samples fetched per cursor query.
	PageSize int `yaml:"page_size"`
}

// ExportConfig controls file output and the batch protocol.
type ExportConfig struct {
	OutputDir string `yaml:"output_dir"`

	// Separators are the PV name characters mapped to directory levels.
	Separators string `yaml:"separators"`

	// Sentinel ends the batch when read as a PV name.
	Sentinel string `yaml:"sentinel"`

	// DoneToken is written to stdout after each PV.
	DoneToken string `yaml:"done_token"`

	// Workers bounds the parallelism of exportall.
	Workers int `yaml:"workers"`
}

// DatabaseConfig contains the state database settings.
type DatabaseConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings, in seconds.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	// Output is "stderr" or "stdout". Stdout carries the completion lines,
	// so stderr is the default.
	Output string `yaml:"output"`
}

// Load reads configuration and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values
//  2. YAML file values, when path is not empty
//  3. Environment variables
//
// Parameters:
//   - path: Path to the YAML configuration file, or "" for none
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If the file cannot be read or parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Archive: ArchiveConfig{
			Index:       "./data/archive.db",
			BusyTimeout: 5,
			PageSize:    1024,
		},
		Export: ExportConfig{
			OutputDir:  "./pb",
			Separators: ":-{}",
			Sentinel:   "<>exit",
			DoneToken:  "Done",
			Workers:    4,
		},
		Database: DatabaseConfig{
			Enabled:     true,
			Path:        "./data/pbexport.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "pbexport",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		InfluxDB: InfluxDBConfig{
			Bucket:        "pbexport",
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}

// applyEnvOverrides applies PBEXPORT_SECTION_KEY variables, plus NAMESEPS
// for the separator set. NAMESEPS may be set to the empty string to disable
// separator mapping.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PBEXPORT_ARCHIVE_INDEX"); v != "" {
		cfg.Archive.Index = v
	}
	if v := os.Getenv("PBEXPORT_OUTPUT_DIR"); v != "" {
		cfg.Export.OutputDir = v
	}
	if v, ok := os.LookupEnv("NAMESEPS"); ok {
		cfg.Export.Separators = v
	}
	if v := os.Getenv("PBEXPORT_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Export.Workers = n
		}
	}
	if v := os.Getenv("PBEXPORT_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("PBEXPORT_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("PBEXPORT_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("PBEXPORT_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}
	if v := os.Getenv("PBEXPORT_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of every validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Archive.Index == "" {
		errs = append(errs, "archive.index is required")
	}
	if c.Archive.PageSize < 1 {
		errs = append(errs, "archive.page_size must be positive")
	}
	if c.Export.OutputDir == "" {
		errs = append(errs, "export.output_dir is required")
	}
	if c.Export.Sentinel == "" {
		errs = append(errs, "export.sentinel is required")
	}
	if strings.ContainsAny(c.Export.DoneToken, "\r\n") {
		errs = append(errs, "export.done_token must be a single line")
	}
	if c.Export.Workers < 1 {
		errs = append(errs, "export.workers must be at least 1")
	}
	if c.Database.Enabled && c.Database.Path == "" {
		errs = append(errs, "database.path is required when the ledger is enabled")
	}
	if c.MQTT.Enabled {
		if c.MQTT.Broker.Host == "" {
			errs = append(errs, "mqtt.broker.host is required")
		}
		if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
			errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
		}
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.InfluxDB.Enabled && (c.InfluxDB.URL == "" || c.InfluxDB.Org == "" || c.InfluxDB.Bucket == "") {
		errs = append(errs, "influxdb.url, influxdb.org and influxdb.bucket are required when enabled")
	}
	switch c.Logging.Output {
	case "stdout", "stderr":
	default:
		errs = append(errs, "logging.output must be stdout or stderr")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}
