package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	"regliq/internal/liquidity"
)

// EnvPrefix is the prefix of every environment variable read by Load
const EnvPrefix = "REGLIQ"

// Config represents the complete application configuration
type Config struct {
	Server     ServerConfig         `yaml:"server" envconfig:"SERVER"`
	Security   SecurityConfig       `yaml:"security" envconfig:"SECURITY"`
	Logging    LoggingConfig        `yaml:"logging" envconfig:"LOGGING"`
	Paths      PathsConfig          `yaml:"paths" envconfig:"PATHS"`
	Storage    StorageConfig        `yaml:"storage" envconfig:"STORAGE"`
	Engine     EngineConfig         `yaml:"engine" envconfig:"ENGINE"`
	WebSocket  WebSocketConfig      `yaml:"websocket" envconfig:"WEBSOCKET"`
	Telemetry  TelemetryConfig      `yaml:"telemetry" envconfig:"TELEMETRY"`
	Parameters liquidity.Parameters `yaml:"parameters" ignored:"true"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT"`
	MaxHeaderBytes  int           `yaml:"max_header_bytes" envconfig:"MAX_HEADER_BYTES"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
	RequestTimeout  time.Duration `yaml:"request_timeout" envconfig:"REQUEST_TIMEOUT"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes" envconfig:"MAX_BODY_BYTES"`
}

// SecurityConfig contains security-related configuration
type SecurityConfig struct {
	AllowedOrigins []string        `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS"`
	EnableCORS     bool            `yaml:"enable_cors" envconfig:"ENABLE_CORS"`
	RateLimit      RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED"`
	RPS     float64 `yaml:"rps" envconfig:"RPS"`
	Burst   int     `yaml:"burst" envconfig:"BURST"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level       string `yaml:"level" envconfig:"LEVEL"`
	Format      string `yaml:"format" envconfig:"FORMAT"`
	Output      string `yaml:"output" envconfig:"OUTPUT"`
	FilePath    string `yaml:"file_path" envconfig:"FILE_PATH"`
	Development bool   `yaml:"development" envconfig:"DEVELOPMENT"`
}

// PathsConfig contains file system paths configuration
type PathsConfig struct {
	BaseDir        string `yaml:"base_dir" envconfig:"BASE_DIR"`
	DataDir        string `yaml:"data_dir" envconfig:"DATA_DIR"`
	ReportsDir     string `yaml:"reports_dir" envconfig:"REPORTS_DIR"`
	LogsDir        string `yaml:"logs_dir" envconfig:"LOGS_DIR"`
	RegistryFile   string `yaml:"registry_file" envconfig:"REGISTRY_FILE"`
	ParametersFile string `yaml:"parameters_file" envconfig:"PARAMETERS_FILE"`
}

// StorageConfig selects and configures the registry and result store
type StorageConfig struct {
	Driver         string `yaml:"driver" envconfig:"DRIVER"`
	DSN            string `yaml:"dsn" envconfig:"DSN"`
	MaxConns       int32  `yaml:"max_conns" envconfig:"MAX_CONNS"`
	MigrateOnStart bool   `yaml:"migrate_on_start" envconfig:"MIGRATE_ON_START"`
}

// EngineConfig tunes the validation engine and the reconciliation report
type EngineConfig struct {
	MaxConcurrency     int     `yaml:"max_concurrency" envconfig:"MAX_CONCURRENCY"`
	ReconcileTolerance float64 `yaml:"reconcile_tolerance" envconfig:"RECONCILE_TOLERANCE"`
}

// WebSocketConfig contains WebSocket configuration
type WebSocketConfig struct {
	ReadBufferSize  int           `yaml:"read_buffer_size" envconfig:"READ_BUFFER_SIZE"`
	WriteBufferSize int           `yaml:"write_buffer_size" envconfig:"WRITE_BUFFER_SIZE"`
	PingPeriod      time.Duration `yaml:"ping_period" envconfig:"PING_PERIOD"`
	PongWait        time.Duration `yaml:"pong_wait" envconfig:"PONG_WAIT"`
}

// TelemetryConfig selects the OpenTelemetry exporters
type TelemetryConfig struct {
	Environment    string  `yaml:"environment" envconfig:"ENVIRONMENT"`
	TraceExporter  string  `yaml:"trace_exporter" envconfig:"TRACE_EXPORTER"`   // "stdout", "none"
	MetricExporter string  `yaml:"metric_exporter" envconfig:"METRIC_EXPORTER"` // "prometheus", "none"
	SampleRatio    float64 `yaml:"sample_ratio" envconfig:"SAMPLE_RATIO"`
}

// Storage drivers
const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

// Load builds the configuration from defaults, then the YAML config file
// when one is found, then REGLIQ_* environment variables. Later sources win.
func Load() (*Config, error) {
	return LoadFile(getConfigFilePath())
}

// LoadFile is Load with an explicit config file; an empty path skips the file
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFromFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if cfg.Paths.ParametersFile != "" {
		params, err := LoadParameters(cfg.Paths.ParametersFile)
		if err != nil {
			return nil, err
		}
		cfg.Parameters = params
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// loadFromFile overlays the YAML file onto cfg; keys absent from the file keep their value
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// validate validates the configuration
func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server read timeout must be positive")
	}

	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server write timeout must be positive")
	}

	if c.Security.EnableCORS && len(c.Security.AllowedOrigins) == 0 {
		return fmt.Errorf("at least one allowed origin must be specified")
	}

	if c.Security.RateLimit.Enabled && (c.Security.RateLimit.RPS <= 0 || c.Security.RateLimit.Burst <= 0) {
		return fmt.Errorf("rate limit rps and burst must be positive")
	}

	switch c.Storage.Driver {
	case StorageMemory:
	case StoragePostgres:
		if c.Storage.DSN == "" {
			return fmt.Errorf("storage dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}

	if c.Engine.MaxConcurrency <= 0 {
		return fmt.Errorf("engine max concurrency must be positive")
	}

	if c.Engine.ReconcileTolerance < 0 {
		return fmt.Errorf("reconcile tolerance must not be negative")
	}

	switch c.Telemetry.TraceExporter {
	case "stdout", "none":
	default:
		return fmt.Errorf("unsupported trace exporter %q", c.Telemetry.TraceExporter)
	}

	switch c.Telemetry.MetricExporter {
	case "prometheus", "none":
	default:
		return fmt.Errorf("unsupported metric exporter %q", c.Telemetry.MetricExporter)
	}

	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("trace sample ratio must be within [0, 1]")
	}

	if err := c.Parameters.Validate(); err != nil {
		return fmt.Errorf("invalid regulatory parameters: %w", err)
	}

	// JSON is the only supported log format
	if c.Logging.Format != "json" {
		c.Logging.Format = "json"
	}

	switch c.Logging.Output {
	case "console", "file", "both":
	default:
		c.Logging.Output = "both"
	}

	if c.Logging.FilePath == "" {
		c.Logging.FilePath = "logs/app.log"
	}

	return nil
}

// getConfigFilePath returns the path to the config file
func getConfigFilePath() string {
	if path := os.Getenv(EnvPrefix + "_CONFIG_FILE"); path != "" {
		return path
	}

	locations := []string{
		"config.yaml",
		"configs/config.yaml",
		"../configs/config.yaml",
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}

	return ""
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			IdleTimeout:     60 * time.Second,
			MaxHeaderBytes:  1 << 20, // 1MB
			ShutdownTimeout: 30 * time.Second,
			RequestTimeout:  60 * time.Second,
			MaxBodyBytes:    32 << 20,
		},
		Security: SecurityConfig{
			AllowedOrigins: []string{"http://localhost:8080"},
			EnableCORS:     true,
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     100,
				Burst:   50,
			},
		},
		Logging: LoggingConfig{
			Level:       "info",
			Format:      "json",
			Output:      "console",
			FilePath:    "logs/app.log",
			Development: false,
		},
		Paths: PathsConfig{
			DataDir:    "data",
			ReportsDir: "data/reports",
			LogsDir:    "logs",
		},
		Storage: StorageConfig{
			Driver:   StorageMemory,
			MaxConns: 10,
		},
		Engine: EngineConfig{
			MaxConcurrency:     4,
			ReconcileTolerance: 1e-6,
		},
		WebSocket: WebSocketConfig{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			PingPeriod:      30 * time.Second,
			PongWait:        60 * time.Second,
		},
		Telemetry: TelemetryConfig{
			Environment:    "development",
			TraceExporter:  "none",
			MetricExporter: "prometheus",
			SampleRatio:    1.0,
		},
		Parameters: liquidity.DefaultParameters(),
	}
}
