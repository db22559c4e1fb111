package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Brickplay Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Station   StationConfig   `yaml:"station"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
	Session   SessionConfig   `yaml:"session"`
	Transform TransformConfig `yaml:"transform"`
	Security  SecurityConfig  `yaml:"security"`
}

// StationConfig identifies this play station on the broker and in telemetry.
type StationConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`

	// AuditRetentionDays bounds how long audit entries are kept. 0 keeps them forever.
	AuditRetentionDays int `yaml:"audit_retention_days"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
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

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`

	// PromptTimeout is how long, in seconds, a question pushed to the UI
	// waits for an answer before it is treated as declined.
	PromptTimeout int `yaml:"prompt_timeout"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings for session telemetry.
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
	Level  string            `yaml:"level"`
	Format string            `yaml:"format"`
	Output string            `yaml:"output"`
	File   FileLoggingConfig `yaml:"file"`
}

// FileLoggingConfig contains rotating file logging settings, used when output is "file".
type FileLoggingConfig struct {
	Path       string `yaml:"path"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
	Compress   bool   `yaml:"compress"`
}

// SessionConfig tunes the play session: how devices are connected and how
// controller input and channel output are buffered.
type SessionConfig struct {
	// ConnectConcurrency bounds how many devices are connected or
	// disconnected at the same time. 0 means no bound.
	ConnectConcurrency int `yaml:"connect_concurrency"`

	// ConnectTimeout is the per-device connect timeout in seconds.
	// 0 leaves the bound to the transport.
	ConnectTimeout int `yaml:"connect_timeout"`

	// InputQueueSize is the number of controller events buffered ahead of
	// the dispatch loop. Events beyond it are dropped.
	InputQueueSize int `yaml:"input_queue_size"`

	// OutboxSize is the number of channel outputs buffered per device.
	OutboxSize int `yaml:"outbox_size"`

	// StateTimeout is how long, in seconds, a remote device waits for its
	// connection state acknowledgement before the attempt fails.
	StateTimeout int `yaml:"state_timeout"`
}

// TransformConfig declares the response curves available to axis bindings.
type TransformConfig struct {
	Curves []CurveConfig `yaml:"curves"`
}

// CurveConfig declares a power response curve: out = sign(in) * |in|^exponent.
type CurveConfig struct {
	Name     string  `yaml:"name"`
	Exponent float64 `yaml:"exponent"`
}

// SecurityConfig contains security settings.
type SecurityConfig struct {
	JWT JWTConfig `yaml:"jwt"`
}

// JWTConfig contains JWT token settings.
type JWTConfig struct {
	Secret         string `yaml:"secret"`
	AccessTokenTTL int    `yaml:"access_token_ttl"`
}

// Load reads the YAML file at path over the built-in defaults, applies
// BRICKPLAY_* environment overrides and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Station:  StationConfig{ID: "station-001", Name: "Brickplay"},
		Database: DatabaseConfig{Path: "./data/brickplay.db", WALMode: true, BusyTimeout: 5, AuditRetentionDays: 90},
		MQTT: MQTTConfig{
			Broker:    MQTTBrokerConfig{Host: "localhost", Port: 1883, ClientID: "brickplay-core"},
			QoS:       1,
			Reconnect: MQTTReconnectConfig{InitialDelay: 1, MaxDelay: 60},
		},
		API: APIConfig{
			Host:          "0.0.0.0",
			Port:          8080,
			Timeouts:      APITimeoutConfig{Read: 30, Write: 30, Idle: 60},
			PromptTimeout: 120,
		},
		WebSocket: WebSocketConfig{Path: "/ws", MaxMessageSize: 8192, PingInterval: 30, PongTimeout: 10},
		InfluxDB:  InfluxDBConfig{BatchSize: 500, FlushInterval: 1},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
			File:   FileLoggingConfig{Path: "./logs/brickplay.log", MaxSize: 10, MaxBackups: 3, MaxAge: 28},
		},
		Session: SessionConfig{ConnectConcurrency: 8, InputQueueSize: 64, OutboxSize: 16, StateTimeout: 10},
		Transform: TransformConfig{Curves: []CurveConfig{
			{Name: "exponential", Exponent: 2.0},
			{Name: "logarithmic", Exponent: 0.5},
		}},
		Security: SecurityConfig{JWT: JWTConfig{AccessTokenTTL: 720}},
	}
}

// applyEnvOverrides lets deployments keep secrets and host-specific values
// out of the YAML file. Unset variables, and numbers that don't parse,
// leave the file value alone.
func applyEnvOverrides(cfg *Config) {
	strs := map[string]*string{
		"BRICKPLAY_DATABASE_PATH":  &cfg.Database.Path,
		"BRICKPLAY_MQTT_HOST":      &cfg.MQTT.Broker.Host,
		"BRICKPLAY_MQTT_USERNAME":  &cfg.MQTT.Auth.Username,
		"BRICKPLAY_MQTT_PASSWORD":  &cfg.MQTT.Auth.Password,
		"BRICKPLAY_API_HOST":       &cfg.API.Host,
		"BRICKPLAY_INFLUXDB_TOKEN": &cfg.InfluxDB.Token,
		"BRICKPLAY_JWT_SECRET":     &cfg.Security.JWT.Secret,
	}
	for key, dst := range strs {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"BRICKPLAY_API_PORT":                    &cfg.API.Port,
		"BRICKPLAY_SESSION_CONNECT_CONCURRENCY": &cfg.Session.ConnectConcurrency,
	}
	for key, dst := range ints {
		if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
			*dst = n
		}
	}
}

// Validate reports every problem at once rather than stopping at the first.
func (c *Config) Validate() error {
	var errs []string
	check := func(bad bool, msg string) {
		if bad {
			errs = append(errs, msg)
		}
	}

	check(c.Station.ID == "", "station.id is required")
	check(c.Database.Path == "", "database.path is required")
	check(c.Database.AuditRetentionDays < 0, "database.audit_retention_days must not be negative")
	check(c.MQTT.QoS < 0 || c.MQTT.QoS > 2, "mqtt.qos must be 0, 1, or 2")
	check(c.API.Port < 1 || c.API.Port > 65535, "api.port must be between 1 and 65535")
	check(c.API.PromptTimeout < 1, "api.prompt_timeout must be at least 1")
	check(c.Logging.Output == "file" && c.Logging.File.Path == "",
		"logging.file.path is required when logging.output is file")
	check(c.Session.ConnectConcurrency < 0, "session.connect_concurrency must not be negative")
	check(c.Session.ConnectTimeout < 0, "session.connect_timeout must not be negative")
	check(c.Session.InputQueueSize < 1, "session.input_queue_size must be at least 1")
	check(c.Session.OutboxSize < 1, "session.outbox_size must be at least 1")

	seen := make(map[string]bool, len(c.Transform.Curves))
	for i, curve := range c.Transform.Curves {
		switch {
		case curve.Name == "":
			errs = append(errs, fmt.Sprintf("transform.curves[%d].name is required", i))
		case curve.Name == "linear":
			errs = append(errs, "transform.curves: linear is built in and cannot be redefined")
		case seen[curve.Name]:
			errs = append(errs, fmt.Sprintf("transform.curves: duplicate curve %q", curve.Name))
		}
		seen[curve.Name] = true
		check(!(curve.Exponent > 0) || math.IsInf(curve.Exponent, 0),
			fmt.Sprintf("transform.curves[%d].exponent must be a positive number", i))
	}

	// A forged token can drive physical motors.
	const minJWTSecretLength = 32
	switch secret := c.Security.JWT.Secret; {
	case secret == "":
		errs = append(errs, "security.jwt.secret is required (set BRICKPLAY_JWT_SECRET environment variable)")
	case len(secret) < minJWTSecretLength:
		errs = append(errs, "security.jwt.secret must be at least 32 characters for adequate security")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

// GetPromptTimeout returns how long a UI question waits for its answer.
func (c *Config) GetPromptTimeout() time.Duration {
	return time.Duration(c.API.PromptTimeout) * time.Second
}

// GetConnectTimeout returns the per-device connect timeout. Zero means none.
func (c *Config) GetConnectTimeout() time.Duration {
	return time.Duration(c.Session.ConnectTimeout) * time.Second
}

// GetStateTimeout returns how long a remote device waits for a state acknowledgement.
func (c *Config) GetStateTimeout() time.Duration {
	return time.Duration(c.Session.StateTimeout) * time.Second
}
