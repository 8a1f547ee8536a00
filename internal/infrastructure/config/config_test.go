package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `
archive:
  index: "/srv/archive/index.db"
  page_size: 256
export:
  output_dir: "/srv/pb"
  separators: ":"
  workers: 8
database:
  path: "/tmp/state.db"
mqtt:
  enabled: true
  broker:
    host: "broker.local"
    port: 8883
    tls: true
logging:
  level: debug
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	checks := []struct {
		name      string
		got, want any
	}{
		{"Archive.Index", cfg.Archive.Index, "/srv/archive/index.db"},
		{"Archive.PageSize", cfg.Archive.PageSize, 256},
		{"Archive.BusyTimeout", cfg.Archive.BusyTimeout, 5},
		{"Export.OutputDir", cfg.Export.OutputDir, "/srv/pb"},
		{"Export.Separators", cfg.Export.Separators, ":"},
		{"Export.Workers", cfg.Export.Workers, 8},
		{"Export.Sentinel", cfg.Export.Sentinel, "<>exit"},
		{"Export.DoneToken", cfg.Export.DoneToken, "Done"},
		{"Database.Path", cfg.Database.Path, "/tmp/state.db"},
		{"MQTT.Broker.Host", cfg.MQTT.Broker.Host, "broker.local"},
		{"MQTT.Broker.ClientID", cfg.MQTT.Broker.ClientID, "pbexport"},
		{"Logging.Level", cfg.Logging.Level, "debug"},
		{"Logging.Output", cfg.Logging.Output, "stderr"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}
}

func TestLoad_EmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") error = %v", err)
	}
	if cfg.Export.Separators != ":-{}" {
		t.Errorf("Export.Separators = %q, want %q", cfg.Export.Separators, ":-{}")
	}
	if cfg.MQTT.Enabled || cfg.InfluxDB.Enabled {
		t.Error("optional publishers enabled by default")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/path/config.yaml"); err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	if _, err := Load(writeConfig(t, "invalid: [yaml: content")); err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PBEXPORT_ARCHIVE_INDEX", "/env/index.db")
	t.Setenv("PBEXPORT_OUTPUT_DIR", "/env/pb")
	t.Setenv("PBEXPORT_DATABASE_PATH", "/env/state.db")
	t.Setenv("PBEXPORT_WORKERS", "3")
	t.Setenv("PBEXPORT_MQTT_HOST", "mqtt.env")
	t.Setenv("PBEXPORT_MQTT_USERNAME", "user")
	t.Setenv("PBEXPORT_MQTT_PASSWORD", "secret")
	t.Setenv("PBEXPORT_INFLUXDB_TOKEN", "token")
	t.Setenv("NAMESEPS", ":")

	cfg, err := Load(writeConfig(t, "export:\n  output_dir: /file/pb\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	checks := []struct {
		name      string
		got, want any
	}{
		{"Archive.Index", cfg.Archive.Index, "/env/index.db"},
		{"Export.OutputDir", cfg.Export.OutputDir, "/env/pb"},
		{"Export.Separators", cfg.Export.Separators, ":"},
		{"Export.Workers", cfg.Export.Workers, 3},
		{"Database.Path", cfg.Database.Path, "/env/state.db"},
		{"MQTT.Broker.Host", cfg.MQTT.Broker.Host, "mqtt.env"},
		{"MQTT.Auth.Username", cfg.MQTT.Auth.Username, "user"},
		{"MQTT.Auth.Password", cfg.MQTT.Auth.Password, "secret"},
		{"InfluxDB.Token", cfg.InfluxDB.Token, "token"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}
}

func TestLoad_EmptyNameSeps(t *testing.T) {
	t.Setenv("NAMESEPS", "")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Export.Separators != "" {
		t.Errorf("Export.Separators = %q, want empty", cfg.Export.Separators)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"no index", func(c *Config) { c.Archive.Index = "" }, "archive.index"},
		{"bad page size", func(c *Config) { c.Archive.PageSize = 0 }, "archive.page_size"},
		{"no output dir", func(c *Config) { c.Export.OutputDir = "" }, "export.output_dir"},
		{"no sentinel", func(c *Config) { c.Export.Sentinel = "" }, "export.sentinel"},
		{"multiline token", func(c *Config) { c.Export.DoneToken = "a\nb" }, "export.done_token"},
		{"no workers", func(c *Config) { c.Export.Workers = 0 }, "export.workers"},
		{"ledger without path", func(c *Config) { c.Database.Path = "" }, "database.path"},
		{"ledger disabled without path", func(c *Config) {
			c.Database.Enabled = false
			c.Database.Path = ""
		}, ""},
		{"mqtt bad port", func(c *Config) {
			c.MQTT.Enabled = true
			c.MQTT.Broker.Port = 0
		}, "mqtt.broker.port"},
		{"mqtt bad qos", func(c *Config) { c.MQTT.QoS = 3 }, "mqtt.qos"},
		{"influx incomplete", func(c *Config) { c.InfluxDB.Enabled = true }, "influxdb.url"},
		{"bad log output", func(c *Config) { c.Logging.Output = "file" }, "logging.output"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error mentioning %q", err, tt.wantErr)
			}
		})
	}
}
