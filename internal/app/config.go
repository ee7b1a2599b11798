package app

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/specialistvlad/causalgrid/internal/export"
	"github.com/specialistvlad/causalgrid/internal/propagation"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	Paths []string // corpus files or directories

	LogFormat   string
	LogLevel    string
	StorePath   string // badger directory; in-memory history when empty
	TraceStdout bool

	Port           int
	ReloadDebounce time.Duration
	Watch          bool

	Simulation propagation.Options
	Neo4j      export.Neo4jConfig
	SocketIO   export.SocketIOConfig
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config {
	return Config{
		LogFormat:      "text",
		LogLevel:       "info",
		Port:           8080,
		ReloadDebounce: 500 * time.Millisecond,
		Simulation:     propagation.DefaultOptions(),
	}
}

func NewConfig(cfg Config) (*Config, error) {
	if len(cfg.Paths) == 0 {
		return nil, errors.New("at least one corpus path is required")
	}
	cfg.LogFormat = strings.ToLower(cfg.LogFormat)
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return nil, fmt.Errorf("invalid log-format %q: must be 'text' or 'json'", cfg.LogFormat)
	}
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	if _, ok := logLevels[cfg.LogLevel]; !ok {
		return nil, fmt.Errorf("invalid log-level %q: must be 'debug', 'info', 'warn', or 'error'", cfg.LogLevel)
	}
	if cfg.Port < 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid port %d", cfg.Port)
	}
	if cfg.ReloadDebounce < 0 {
		return nil, fmt.Errorf("reload debounce must not be negative")
	}
	if err := cfg.Simulation.Validate(); err != nil {
		return nil, fmt.Errorf("invalid simulation options: %w", err)
	}
	return &cfg, nil
}

// Settings is the optional YAML settings file. Every field is optional;
// set fields replace the corresponding Config value.
type Settings struct {
	LogFormat      string                 `yaml:"log_format"`
	LogLevel       string                 `yaml:"log_level"`
	StorePath      string                 `yaml:"store_path"`
	TraceStdout    *bool                  `yaml:"trace_stdout"`
	Port           int                    `yaml:"port"`
	ReloadDebounce time.Duration          `yaml:"reload_debounce"`
	Simulation     *propagation.Options   `yaml:"simulation"`
	Neo4j          *export.Neo4jConfig    `yaml:"neo4j"`
	SocketIO       *export.SocketIOConfig `yaml:"socketio"`
}

// LoadSettings reads a settings file. Unknown keys are rejected.
func LoadSettings(path string) (*Settings, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open settings: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	var s Settings
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("decode settings %s: %w", path, err)
	}
	return &s, nil
}

// Apply copies the set fields onto cfg. Within the simulation block only
// non-zero fields replace the current options.
func (s *Settings) Apply(cfg *Config) {
	if s.LogFormat != "" {
		cfg.LogFormat = s.LogFormat
	}
	if s.LogLevel != "" {
		cfg.LogLevel = s.LogLevel
	}
	if s.StorePath != "" {
		cfg.StorePath = s.StorePath
	}
	if s.TraceStdout != nil {
		cfg.TraceStdout = *s.TraceStdout
	}
	if s.Port != 0 {
		cfg.Port = s.Port
	}
	if s.ReloadDebounce != 0 {
		cfg.ReloadDebounce = s.ReloadDebounce
	}
	if s.Simulation != nil {
		mergeOptions(&cfg.Simulation, *s.Simulation)
	}
	if s.Neo4j != nil {
		cfg.Neo4j = *s.Neo4j
	}
	if s.SocketIO != nil {
		cfg.SocketIO = *s.SocketIO
	}
}

func mergeOptions(dst *propagation.Options, src propagation.Options) {
	set := func(d *float64, v float64) {
		if v != 0 {
			*d = v
		}
	}
	setInt := func(d *int, v int) {
		if v != 0 {
			*d = v
		}
	}
	set(&dst.Damping, src.Damping)
	set(&dst.Epsilon, src.Epsilon)
	set(&dst.Confidence, src.Confidence)
	setInt(&dst.MaxIterations, src.MaxIterations)
	setInt(&dst.Samples, src.Samples)
	setInt(&dst.Workers, src.Workers)
	setInt(&dst.TopK, src.TopK)
	setInt(&dst.MaxPathHops, src.MaxPathHops)
	setInt(&dst.PathBudget, src.PathBudget)
	if src.Timeout != 0 {
		dst.Timeout = src.Timeout
	}
	if src.Uncertainty != "" {
		dst.Uncertainty = src.Uncertainty
	}
	if src.Seed != 0 {
		dst.Seed = src.Seed
	}
}
