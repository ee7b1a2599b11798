package app

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/causalgrid/internal/propagation"
)

func TestNewConfig(t *testing.T) {
	valid := func() Config {
		cfg := DefaultConfig()
		cfg.Paths = []string{"corpus"}
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "upper case is normalised", mutate: func(c *Config) { c.LogLevel, c.LogFormat = "DEBUG", "JSON" }},
		{name: "no paths", mutate: func(c *Config) { c.Paths = nil }, wantErr: "corpus path"},
		{name: "bad format", mutate: func(c *Config) { c.LogFormat = "xml" }, wantErr: "log-format"},
		{name: "bad level", mutate: func(c *Config) { c.LogLevel = "trace" }, wantErr: "log-level"},
		{name: "bad port", mutate: func(c *Config) { c.Port = 70000 }, wantErr: "port"},
		{name: "negative debounce", mutate: func(c *Config) { c.ReloadDebounce = -time.Second }, wantErr: "debounce"},
		{name: "bad damping", mutate: func(c *Config) { c.Simulation.Damping = 0 }, wantErr: "damping"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			got, err := NewConfig(cfg)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, strings.ToLower(cfg.LogLevel), got.LogLevel)
			assert.Equal(t, strings.ToLower(cfg.LogFormat), got.LogFormat)
		})
	}
}

func TestLoadSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log_level: debug
store_path: /var/lib/causalgrid
trace_stdout: true
reload_debounce: 2s
simulation:
  damping: 0.5
  uncertainty: interval
  timeout: 30s
neo4j:
  uri: neo4j://localhost:7687
  user: reader
socketio:
  url: http://localhost:3000
  namespace: /dashboard
`), 0o644))

	s, err := LoadSettings(path)
	require.NoError(t, err)

	cfg := DefaultConfig()
	s.Apply(&cfg)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat, "unset fields keep their value")
	assert.Equal(t, "/var/lib/causalgrid", cfg.StorePath)
	assert.True(t, cfg.TraceStdout)
	assert.Equal(t, 2*time.Second, cfg.ReloadDebounce)

	assert.Equal(t, 0.5, cfg.Simulation.Damping)
	assert.Equal(t, propagation.ModeInterval, cfg.Simulation.Uncertainty)
	assert.Equal(t, 30*time.Second, cfg.Simulation.Timeout)
	assert.Equal(t, propagation.DefaultOptions().Epsilon, cfg.Simulation.Epsilon)
	assert.Equal(t, propagation.DefaultOptions().MaxIterations, cfg.Simulation.MaxIterations)

	assert.Equal(t, "neo4j://localhost:7687", cfg.Neo4j.URI)
	assert.Equal(t, "reader", cfg.Neo4j.User)
	assert.Equal(t, "/dashboard", cfg.SocketIO.Namespace)
}

func TestLoadSettings_Errors(t *testing.T) {
	_, err := LoadSettings(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "open settings")

	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_levle: debug\n"), 0o644))
	_, err = LoadSettings(path)
	assert.ErrorContains(t, err, "log_levle")
}
