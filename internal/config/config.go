package config

import (
	"os"
	"strings"
	"time"

	"github.com/Quicklotz/benchd/internal/errors"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultLogLevel = "info"

	defaultPollIntervalMS    = 1000
	defaultReadingCheckMS    = 250
	defaultSpikeHoldMS       = 250
	defaultHealthCheckSec    = 30
	defaultReadTimeoutSec    = 3
	defaultDatabasePath      = "/var/lib/benchd/benchd.db"
	defaultMetricsListenAddr = ":9109"
)

type Config struct {
	// Interval is the collector poll interval in milliseconds.
	Interval int `mapstructure:"interval"`

	// ReadingCheck is the safety monitor reading-check interval in
	// milliseconds; SpikeHold is the continuous spike duration that
	// triggers shutdown.
	ReadingCheck int `mapstructure:"reading_check"`
	SpikeHold    int `mapstructure:"spike_hold"`

	// HealthCheck is the controller health-check interval in seconds.
	HealthCheck int `mapstructure:"health_check"`

	// ReadTimeout bounds a single controller read in seconds.
	ReadTimeout int `mapstructure:"read_timeout"`

	Database      string `mapstructure:"database"`
	Metrics       bool   `mapstructure:"metrics"`
	MetricsListen string `mapstructure:"metrics_listen"`
	LogLevel      string `mapstructure:"log_level"`
	Debug         bool   `mapstructure:"debug"`
	Verbose       bool   `mapstructure:"verbose"`
}

func Load() (*Config, error) {
	errFactory := errors.New()

	// A .env next to the binary may carry BENCHD_* overrides for dev
	// setups; missing files are fine.
	_ = godotenv.Load()

	v := viper.New()
	v.SetDefault("interval", defaultPollIntervalMS)
	v.SetDefault("reading_check", defaultReadingCheckMS)
	v.SetDefault("spike_hold", defaultSpikeHoldMS)
	v.SetDefault("health_check", defaultHealthCheckSec)
	v.SetDefault("read_timeout", defaultReadTimeoutSec)
	v.SetDefault("database", defaultDatabasePath)
	v.SetDefault("metrics", false)
	v.SetDefault("metrics_listen", defaultMetricsListenAddr)
	v.SetDefault("log_level", DefaultLogLevel)

	v.SetEnvPrefix("BENCHD")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	fs := pflag.NewFlagSet("benchd", pflag.ContinueOnError)
	fs.ParseErrorsWhitelist.UnknownFlags = true
	fs.Int("interval", defaultPollIntervalMS, "Collector poll interval in milliseconds")
	fs.String("database", defaultDatabasePath, "Path to the benchd database")
	fs.Bool("metrics", false, "Enable the Prometheus metrics listener")
	fs.String("metrics-listen", defaultMetricsListenAddr, "Metrics listener address")
	fs.String("log-level", DefaultLogLevel, "Log level (debug, info, warning, error)")
	fs.Bool("debug", false, "Enable debugging mode")
	fs.Bool("verbose", false, "Enable verbose logging")
	if err := fs.Parse(os.Args[1:]); err != nil {
		return nil, errFactory.Wrap(errors.ErrBindFlags, err)
	}

	// Explicit config file via env, otherwise the usual search paths.
	if path := os.Getenv("BENCHD_CONFIG"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("benchd")
		v.SetConfigType("toml")
		v.AddConfigPath("/etc/benchd")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, errFactory.Wrap(errors.ErrReadConfig, err)
		}
	}

	// Flags set on the command line win over file and env values.
	fs.Visit(func(f *pflag.Flag) {
		v.Set(strings.ReplaceAll(f.Name, "-", "_"), f.Value.String())
	})

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks interval and log level sanity.
func (c *Config) Validate() error {
	errFactory := errors.New()

	if c.Interval <= 0 || c.ReadingCheck <= 0 || c.HealthCheck <= 0 {
		return errFactory.New(errors.ErrInvalidInterval)
	}

	if !LogLevel(c.LogLevel).IsValid() {
		return errFactory.WithData(errors.ErrInvalidLogLevel, c.LogLevel)
	}

	return nil
}

func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Interval) * time.Millisecond
}

func (c *Config) ReadingCheckInterval() time.Duration {
	return time.Duration(c.ReadingCheck) * time.Millisecond
}

func (c *Config) SpikeHoldDuration() time.Duration {
	return time.Duration(c.SpikeHold) * time.Millisecond
}

func (c *Config) HealthCheckInterval() time.Duration {
	return time.Duration(c.HealthCheck) * time.Second
}

func (c *Config) ReadTimeoutDuration() time.Duration {
	return time.Duration(c.ReadTimeout) * time.Second
}
