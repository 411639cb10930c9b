package config

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

type Config struct {
	Env           string `mapstructure:"ENV"`
	LogLevel      string `mapstructure:"LOG_LEVEL"`
	Port          string `mapstructure:"PORT"`
	MLLPAddr      string `mapstructure:"MLLP_ADDR"`
	BodyLimit     string `mapstructure:"BODY_LIMIT"`
	DecodeWorkers int    `mapstructure:"DECODE_WORKERS"`
	OutputFormat  string `mapstructure:"OUTPUT_FORMAT"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("ENV", "production")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("PORT", "8000")
	v.SetDefault("MLLP_ADDR", "")
	v.SetDefault("BODY_LIMIT", "1M")
	v.SetDefault("DECODE_WORKERS", 1)
	v.SetDefault("OUTPUT_FORMAT", "json")

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("ENV")
	v.BindEnv("LOG_LEVEL")
	v.BindEnv("PORT")
	v.BindEnv("MLLP_ADDR")
	v.BindEnv("BODY_LIMIT")
	v.BindEnv("DECODE_WORKERS")
	v.BindEnv("OUTPUT_FORMAT")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.OutputFormat = strings.ToLower(strings.TrimSpace(cfg.OutputFormat))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// Level returns the configured zerolog level. An empty LOG_LEVEL means info.
func (c *Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil || c.LogLevel == "" {
		return zerolog.InfoLevel
	}
	return lvl
}

// Validate checks value ranges that Unmarshal cannot express.
func (c *Config) Validate() error {
	if _, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel)); err != nil {
		return fmt.Errorf("LOG_LEVEL %q is not a valid level: %w", c.LogLevel, err)
	}
	if c.DecodeWorkers < 1 {
		return fmt.Errorf("DECODE_WORKERS must be at least 1, got %d", c.DecodeWorkers)
	}
	switch c.OutputFormat {
	case "json", "yaml":
	default:
		return fmt.Errorf("OUTPUT_FORMAT must be \"json\" or \"yaml\", got %q", c.OutputFormat)
	}
	if c.Port == "" {
		return fmt.Errorf("PORT must not be empty")
	}
	return nil
}
