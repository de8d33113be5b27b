package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maxvaer/wafpierce/internal/scanerr"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Options)
		want   scanerr.Kind
	}{
		{"zero threads", func(o *Options) { o.Threads = 0 }, scanerr.InvalidThreadCount},
		{"negative threads", func(o *Options) { o.Threads = -4 }, scanerr.InvalidThreadCount},
		{"negative delay", func(o *Options) { o.Delay = -time.Millisecond }, scanerr.InvalidDelay},
		{"zero timeout", func(o *Options) { o.Timeout = 0 }, scanerr.InvalidTimeout},
		{"negative timeout", func(o *Options) { o.Timeout = -time.Second }, scanerr.InvalidTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := Defaults()
			tt.mutate(&opts)
			err := opts.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, scanerr.ErrConfiguration)
		})
	}
}

func TestValidateAcceptsDefaultsAndZeroDelay(t *testing.T) {
	opts := Defaults()
	require.NoError(t, opts.Validate())

	opts.Delay = 0
	assert.NoError(t, opts.Validate())
}

func TestValidateRejectsUnknownFormat(t *testing.T) {
	opts := Defaults()
	opts.OutputFormat = "xml"
	assert.Error(t, opts.Validate())
}

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	opts, err := Load(viper.New(), "")
	require.NoError(t, err)

	d := Defaults()
	assert.Equal(t, d.Threads, opts.Threads)
	assert.Equal(t, d.Timeout, opts.Timeout)
	assert.Equal(t, d.Delay, opts.Delay)
	assert.Equal(t, d.Retries, opts.Retries)
	assert.Equal(t, "info", opts.Logger.Level)
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scan.yaml")
	content := `
threads: 4
delay: 50ms
timeout: 2s
log-level: debug
techniques:
  - X-Forwarded-For
  - HTTP Method
headers:
  Cookie: session=abc
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	t.Setenv("WAFPIERCE_THREADS", "7")

	opts, err := Load(viper.New(), path)
	require.NoError(t, err)

	assert.Equal(t, 7, opts.Threads, "environment overrides the file")
	assert.Equal(t, 50*time.Millisecond, opts.Delay)
	assert.Equal(t, 2*time.Second, opts.Timeout)
	assert.Equal(t, "debug", opts.Logger.Level)
	assert.Equal(t, []string{"X-Forwarded-For", "HTTP Method"}, opts.Techniques)
	assert.Equal(t, "session=abc", opts.Headers["cookie"])
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(viper.New(), filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
