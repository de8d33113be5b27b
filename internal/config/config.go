package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/maxvaer/wafpierce/internal/scanerr"
)

// EnvPrefix is the prefix for environment overrides (WAFPIERCE_THREADS, ...).
const EnvPrefix = "WAFPIERCE"

// Options holds all configuration for a wafpierce scan.
type Options struct {
	// Target
	URL         string            `mapstructure:"url"`
	RequestFile string            `mapstructure:"request-file"` // raw HTTP request (e.g. Burp export)
	Headers     map[string]string `mapstructure:"headers"`      // sent with the baseline and every probe
	UserAgent   string            `mapstructure:"user-agent"`
	Proxy       string            `mapstructure:"proxy"`
	HTTP2       bool              `mapstructure:"http2"`
	Insecure    bool              `mapstructure:"insecure"` // skip TLS certificate verification

	// Performance
	Threads          int           `mapstructure:"threads"`
	Timeout          time.Duration `mapstructure:"timeout"`
	Delay            time.Duration `mapstructure:"delay"` // sleep after each probe, per technique
	Rate             float64       `mapstructure:"rate"`  // global requests/second cap, 0 = off
	AdaptiveThrottle bool          `mapstructure:"adaptive-throttle"`

	// Retry
	Retries      int           `mapstructure:"retries"` // total attempts per request
	RetryBackoff time.Duration `mapstructure:"backoff"`

	// Techniques restricts the catalog to these category names. Empty = all.
	Techniques []string `mapstructure:"techniques"`

	// SurfaceInterrupt makes a stopped scan return a ScanInterrupted error
	// alongside its partial results.
	SurfaceInterrupt bool `mapstructure:"-"`

	// Output
	OutputFile   string `mapstructure:"output"`
	OutputFormat string `mapstructure:"format"` // "text", "json", "csv"
	Quiet        bool   `mapstructure:"quiet"`
	NoColor      bool   `mapstructure:"no-color"`
	OnBypassCmd  string `mapstructure:"on-bypass"`

	Logger LoggerConfig `mapstructure:",squash"`
}

// LoggerConfig configures the zap logger.
type LoggerConfig struct {
	Level      string `mapstructure:"log-level"`
	Format     string `mapstructure:"log-format"` // "console" or "json"
	LogFile    string `mapstructure:"log-file"`
	MaxSize    int    `mapstructure:"log-max-size"` // megabytes
	MaxBackups int    `mapstructure:"log-max-backups"`
	MaxAge     int    `mapstructure:"log-max-age"` // days
	Compress   bool   `mapstructure:"log-compress"`
	AddSource  bool   `mapstructure:"log-source"`
	NoColor    bool   `mapstructure:"-"` // copied from Options.NoColor
}

// Defaults returns the options used when nothing else is configured.
func Defaults() Options {
	return Options{
		Threads:      10,
		Timeout:      5 * time.Second,
		Delay:        200 * time.Millisecond,
		Retries:      3,
		RetryBackoff: 500 * time.Millisecond,
		OutputFormat: "text",
		Logger: LoggerConfig{
			Level:      "info",
			Format:     "console",
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     7,
		},
	}
}

// SetDefaults registers Defaults() on v so config files and the
// environment only need to override what they change.
func SetDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("threads", d.Threads)
	v.SetDefault("timeout", d.Timeout)
	v.SetDefault("delay", d.Delay)
	v.SetDefault("retries", d.Retries)
	v.SetDefault("backoff", d.RetryBackoff)
	v.SetDefault("format", d.OutputFormat)
	v.SetDefault("log-level", d.Logger.Level)
	v.SetDefault("log-format", d.Logger.Format)
	v.SetDefault("log-max-size", d.Logger.MaxSize)
	v.SetDefault("log-max-backups", d.Logger.MaxBackups)
	v.SetDefault("log-max-age", d.Logger.MaxAge)
}

// Load layers defaults, an optional YAML config file, WAFPIERCE_*
// environment variables and any flags already bound to v, then decodes the
// result into Options. A missing default config file is not an error.
func Load(v *viper.Viper, cfgFile string) (Options, error) {
	SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("wafpierce")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || cfgFile != "" {
			return Options{}, fmt.Errorf("reading config file: %w", err)
		}
	}

	var opts Options
	if err := v.Unmarshal(&opts); err != nil {
		return Options{}, fmt.Errorf("decoding config: %w", err)
	}
	return opts, nil
}

// Validate checks the scan parameters that must hold before any network
// I/O. Target validation lives in the target package.
func (o *Options) Validate() error {
	if o.Threads < 1 {
		return scanerr.New(scanerr.InvalidThreadCount, "thread count must be a positive integer, got %d", o.Threads)
	}
	if o.Delay < 0 {
		return scanerr.New(scanerr.InvalidDelay, "delay must be non-negative, got %s", o.Delay)
	}
	if o.Timeout <= 0 {
		return scanerr.New(scanerr.InvalidTimeout, "timeout must be positive, got %s", o.Timeout)
	}
	if o.Rate < 0 {
		return scanerr.New(scanerr.InvalidDelay, "rate must be non-negative, got %g", o.Rate)
	}
	switch o.OutputFormat {
	case "", "text", "json", "csv":
	default:
		return fmt.Errorf("--format must be one of: text, json, csv")
	}
	return nil
}
