package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	Control  ControlConfig  `mapstructure:"control" yaml:"control"`
	Engine   EngineConfig   `mapstructure:"engine" yaml:"engine"`
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug string `mapstructure:"debug" yaml:"debug"`
	Info  string `mapstructure:"info" yaml:"info"`
	Warn  string `mapstructure:"warn" yaml:"warn"`
	Error string `mapstructure:"error" yaml:"error"`
	Fatal string `mapstructure:"fatal" yaml:"fatal"`
}

// ControlConfig selects and tunes the device control backend.
type ControlConfig struct {
	// ForceSimulation pins the process to the simulated backend regardless of
	// what the display probe finds.
	ForceSimulation bool `mapstructure:"force_simulation" yaml:"force_simulation"`
	// Surface selects the live backend: "auto", "desktop", or "browser".
	Surface string `mapstructure:"surface" yaml:"surface"`
	// InjectionRate caps injected input events per second on the desktop
	// surface.
	InjectionRate float64 `mapstructure:"injection_rate" yaml:"injection_rate"`
	// CaptureDir is where screen capture files land. Empty means the OS temp
	// directory.
	CaptureDir string        `mapstructure:"capture_dir" yaml:"capture_dir"`
	Browser    BrowserConfig `mapstructure:"browser" yaml:"browser"`
}

// BrowserConfig holds settings for the browser control surface.
type BrowserConfig struct {
	Headless bool `mapstructure:"headless" yaml:"headless"`
	// Apps maps application names to the URLs that represent them on the
	// browser surface.
	Apps map[string]string `mapstructure:"apps" yaml:"apps"`
}

// EngineConfig tunes plan execution.
type EngineConfig struct {
	// TaskTimeout bounds one task execution end to end.
	TaskTimeout time.Duration `mapstructure:"task_timeout" yaml:"task_timeout"`
}

// ServerConfig holds the HTTP API settings.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr" yaml:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// DatabaseConfig holds the task history database connection details. An empty
// URL disables persistence.
type DatabaseConfig struct {
	URL string `mapstructure:"url" yaml:"url"`
}

// SetDefaults initializes default values for every configuration parameter.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "deskpilot")
	v.SetDefault("logger.log_file", "deskpilot.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Control --
	v.SetDefault("control.force_simulation", false)
	v.SetDefault("control.surface", "auto")
	v.SetDefault("control.injection_rate", 20.0)
	v.SetDefault("control.capture_dir", "")
	v.SetDefault("control.browser.headless", true)

	// -- Engine --
	v.SetDefault("engine.task_timeout", "2m")

	// -- Server --
	v.SetDefault("server.addr", ":5000")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "10s")

	// -- Database --
	v.SetDefault("database.url", "")
}

// NewDefaultConfig creates a configuration populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// NewConfigFromViper creates a configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	// The history database URL carries credentials; it normally arrives
	// through the environment rather than the config file.
	v.BindEnv("database.url", "DESKPILOT_DATABASE_URL")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	switch c.Control.Surface {
	case "auto", "desktop", "browser":
	default:
		return fmt.Errorf("control.surface must be one of auto, desktop, browser; got %q", c.Control.Surface)
	}
	if c.Control.InjectionRate <= 0 {
		return fmt.Errorf("control.injection_rate must be positive")
	}
	if c.Engine.TaskTimeout <= 0 {
		return fmt.Errorf("engine.task_timeout must be a positive duration")
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	return nil
}
