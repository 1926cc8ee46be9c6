package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, 100, cfg.MaxRows)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		errMsg string
	}{
		{"bad port", func(c *Config) { c.Port = 0 }, "invalid port"},
		{"bad source", func(c *Config) { c.SourceType = "s3" }, "source type"},
		{"file without dir", func(c *Config) { c.DataDir = "" }, "data directory"},
		{"remote without url", func(c *Config) { c.SourceType = "remote" }, "remote base URL"},
		{"no layout", func(c *Config) { c.DateLayout = "" }, "date layout"},
		{"zero rows", func(c *Config) { c.MaxRows = 0 }, "max rows"},
		{"negative tolerance", func(c *Config) { c.ParamTolerance = -1 }, "tolerance"},
		{"bad log level", func(c *Config) { c.LogLevel = "trace" }, "log level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ventdash.yaml")
	body := `port: 9000
sourceType: remote
remoteBaseURL: https://example.org/data
maxRows: 25
reportTruncation: true
gracefulShutdownTimeout: 5s
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFile(path))

	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, "remote", cfg.SourceType)
	assert.Equal(t, 25, cfg.MaxRows)
	assert.True(t, cfg.ReportTruncation)
	assert.Equal(t, 5*time.Second, cfg.GracefulShutdownTimeout)
	assert.Equal(t, "0.0.0.0", cfg.Host)
	assert.NoError(t, cfg.Validate())

	assert.Error(t, cfg.LoadFile(filepath.Join(t.TempDir(), "nope.yaml")))
}
