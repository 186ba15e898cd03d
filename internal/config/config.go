package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	Tailscale TailscaleConfig `yaml:"tailscale"`
	Map       MapConfig       `yaml:"map"`
	Events    EventsConfig    `yaml:"events"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig selects the blob backend. Path is the sqlite directory and
// Key the storage key the collection lives under.
type StorageConfig struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
	Key    string `yaml:"key"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

// AuthConfig protects write endpoints. An empty APIKey leaves them open.
type AuthConfig struct {
	APIKey string `yaml:"api_key"`
}

type TailscaleConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Hostname string `yaml:"hostname"`
	StateDir string `yaml:"state_dir"`
}

type MapConfig struct {
	ZoomLevel int `yaml:"zoom_level"`
}

// EventsConfig enables publishing workout changes to Kafka. No brokers
// means publishing is off.
type EventsConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// Enabled reports whether any broker is configured.
func (e EventsConfig) Enabled() bool {
	return len(e.Brokers) > 0
}

// DSN returns a PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	sslmode := d.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, sslmode)
}

// MySQLDSN returns a go-sql-driver/mysql connection string.
func (d DatabaseConfig) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

// Target returns what storage.Open expects for the configured driver.
func (c *Config) Target() string {
	switch c.Storage.Driver {
	case "postgres":
		return c.Database.DSN()
	case "mysql":
		return c.Database.MySQLDSN()
	default:
		return c.Storage.Path
	}
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server:    ServerConfig{Host: "0.0.0.0", Port: 8080},
		Storage:   StorageConfig{Driver: "sqlite", Path: ".mapty", Key: "workouts"},
		Tailscale: TailscaleConfig{Hostname: "mapty", StateDir: ".tsnet"},
		Map:       MapConfig{ZoomLevel: 13},
		Events:    EventsConfig{Topic: "mapty.workouts"},
	}
}

// Load reads config from a YAML file over the defaults, then applies
// environment variable overrides. An empty path skips the file.
// Env vars use the prefix MAPTY_ and underscore-separated paths:
//
//	MAPTY_SERVER_HOST, MAPTY_SERVER_PORT,
//	MAPTY_STORAGE_DRIVER, MAPTY_STORAGE_PATH, MAPTY_STORAGE_KEY,
//	MAPTY_DB_HOST, MAPTY_DB_PORT, MAPTY_DB_NAME,
//	MAPTY_DB_USER, MAPTY_DB_PASSWORD, MAPTY_DB_SSLMODE,
//	MAPTY_AUTH_API_KEY,
//	MAPTY_TAILSCALE_ENABLED, MAPTY_TAILSCALE_HOSTNAME, MAPTY_TAILSCALE_STATE_DIR,
//	MAPTY_MAP_ZOOM_LEVEL,
//	MAPTY_EVENTS_BROKERS (comma-separated), MAPTY_EVENTS_TOPIC
func Load(path string) (*Config, error) {
	cfg := Default()

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
	cfg.applyDriverDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// applyDriverDefaults fills the database port from the driver when none
// was given.
func (c *Config) applyDriverDefaults() {
	if c.Database.Port != 0 {
		return
	}
	switch c.Storage.Driver {
	case "postgres":
		c.Database.Port = 5432
	case "mysql":
		c.Database.Port = 3306
	}
}

func applyEnvOverrides(cfg *Config) {
	setString := func(name string, dst *string) {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}
	setInt := func(name string, dst *int) {
		if v := os.Getenv(name); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}

	setString("MAPTY_SERVER_HOST", &cfg.Server.Host)
	setInt("MAPTY_SERVER_PORT", &cfg.Server.Port)
	setString("MAPTY_STORAGE_DRIVER", &cfg.Storage.Driver)
	setString("MAPTY_STORAGE_PATH", &cfg.Storage.Path)
	setString("MAPTY_STORAGE_KEY", &cfg.Storage.Key)
	setString("MAPTY_DB_HOST", &cfg.Database.Host)
	setInt("MAPTY_DB_PORT", &cfg.Database.Port)
	setString("MAPTY_DB_NAME", &cfg.Database.Name)
	setString("MAPTY_DB_USER", &cfg.Database.User)
	setString("MAPTY_DB_PASSWORD", &cfg.Database.Password)
	setString("MAPTY_DB_SSLMODE", &cfg.Database.SSLMode)
	setString("MAPTY_AUTH_API_KEY", &cfg.Auth.APIKey)
	if v := os.Getenv("MAPTY_TAILSCALE_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Tailscale.Enabled = b
		}
	}
	setString("MAPTY_TAILSCALE_HOSTNAME", &cfg.Tailscale.Hostname)
	setString("MAPTY_TAILSCALE_STATE_DIR", &cfg.Tailscale.StateDir)
	setInt("MAPTY_MAP_ZOOM_LEVEL", &cfg.Map.ZoomLevel)
	if v := os.Getenv("MAPTY_EVENTS_BROKERS"); v != "" {
		cfg.Events.Brokers = nil
		for _, b := range strings.Split(v, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.Events.Brokers = append(cfg.Events.Brokers, b)
			}
		}
	}
	setString("MAPTY_EVENTS_TOPIC", &cfg.Events.Topic)
}

func (c *Config) validate() error {
	if c.Server.Port == 0 {
		return fmt.Errorf("server.port is required")
	}
	if c.Storage.Key == "" {
		return fmt.Errorf("storage.key is required")
	}
	switch c.Storage.Driver {
	case "memory":
	case "sqlite":
		if c.Storage.Path == "" {
			return fmt.Errorf("storage.path is required for the sqlite driver")
		}
	case "postgres", "mysql":
		if c.Database.Host == "" {
			return fmt.Errorf("database.host is required")
		}
		if c.Database.Port == 0 {
			return fmt.Errorf("database.port is required")
		}
		if c.Database.Name == "" {
			return fmt.Errorf("database.name is required")
		}
		if c.Database.User == "" {
			return fmt.Errorf("database.user is required")
		}
	default:
		return fmt.Errorf("storage.driver %q is not one of sqlite, postgres, mysql, memory", c.Storage.Driver)
	}
	if c.Tailscale.Enabled && c.Tailscale.Hostname == "" {
		return fmt.Errorf("tailscale.hostname is required when tailscale is enabled")
	}
	if c.Map.ZoomLevel < 0 || c.Map.ZoomLevel > 22 {
		return fmt.Errorf("map.zoom_level must be between 0 and 22")
	}
	if c.Events.Enabled() && c.Events.Topic == "" {
		return fmt.Errorf("events.topic is required when brokers are set")
	}
	return nil
}
