package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	LogLevel        string        `yaml:"log-level" env:"TTT_LOG_LEVEL" env-default:"info"`
	LogFormat       string        `yaml:"log-format" env:"TTT_LOG_FORMAT" env-default:"json"`
	HTTPPort        string        `yaml:"http-port" env:"TTT_HTTP_PORT" env-default:"8080"`
	SSEHeartbeat    time.Duration `yaml:"sse-heartbeat" env:"TTT_SSE_HEARTBEAT" env-default:"15s"`
	SessionTTL      time.Duration `yaml:"session-ttl" env:"TTT_SESSION_TTL" env-default:"2h"`
	PruneInterval   time.Duration `yaml:"prune-interval" env:"TTT_PRUNE_INTERVAL" env-default:"5m"`
	ShutdownTimeout time.Duration `yaml:"shutdown-timeout" env:"TTT_SHUTDOWN_TIMEOUT" env-default:"5s"`
}

var ErrInvalidConfig = errors.New("invalid config")

// Load reads the YAML file at path, then applies environment overrides.
// A missing file is not an error: defaults and environment are used instead.
func Load(path string) (*Config, error) {
	conf := &Config{}

	var err error
	if _, statErr := os.Stat(path); path == "" || errors.Is(statErr, fs.ErrNotExist) {
		err = cleanenv.ReadEnv(conf)
	} else {
		err = cleanenv.ReadConfig(path, conf)
	}
	if err != nil {
		return nil, fmt.Errorf("unable to load config: %w", err)
	}

	if err = conf.validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

// MustLoad - load configuration or panic.
func MustLoad(path string) *Config {
	conf, err := Load(path)
	if err != nil {
		panic(err)
	}
	return conf
}

func (that *Config) validate() error {
	switch that.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: log-level %q", ErrInvalidConfig, that.LogLevel)
	}
	switch that.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("%w: log-format %q", ErrInvalidConfig, that.LogFormat)
	}
	if that.SSEHeartbeat <= 0 || that.PruneInterval <= 0 || that.SessionTTL <= 0 {
		return fmt.Errorf("%w: durations must be positive", ErrInvalidConfig)
	}
	return nil
}

// Addr returns the listen address for the HTTP server.
func (that *Config) Addr() string {
	return ":" + that.HTTPPort
}
