package propagation

import (
	"fmt"
	"time"
)

// Mode selects how uncertainty in mechanism strengths is reported.
type Mode string

const (
	ModeNone       Mode = "none"
	ModeInterval   Mode = "interval"
	ModeMonteCarlo Mode = "montecarlo"
)

// ParseMode accepts the names above.
func ParseMode(raw string) (Mode, error) {
	switch m := Mode(raw); m {
	case ModeNone, ModeInterval, ModeMonteCarlo:
		return m, nil
	case "":
		return ModeNone, nil
	}
	return "", fmt.Errorf("unknown uncertainty mode %q", raw)
}

// Options bound and tune a simulation.
type Options struct {
	Damping       float64       `yaml:"damping"`
	Epsilon       float64       `yaml:"epsilon"`
	MaxIterations int           `yaml:"max_iterations"`
	Timeout       time.Duration `yaml:"timeout"`

	Uncertainty Mode    `yaml:"uncertainty"`
	Samples     int     `yaml:"samples"`
	Seed        uint64  `yaml:"seed"`
	Confidence  float64 `yaml:"confidence"`
	Workers     int     `yaml:"workers"`

	// TopK contributing paths are reported per node; 0 disables path
	// attribution.
	TopK        int `yaml:"top_k"`
	MaxPathHops int `yaml:"max_path_hops"`
	PathBudget  int `yaml:"path_budget"`
}

// DefaultOptions returns the bounds used when the caller sets none.
func DefaultOptions() Options {
	return Options{
		Damping:       0.85,
		Epsilon:       1e-9,
		MaxIterations: 10_000,
		Timeout:       5 * time.Second,
		Uncertainty:   ModeNone,
		Samples:       500,
		Seed:          1,
		Confidence:    0.95,
		TopK:          3,
		MaxPathHops:   6,
		PathBudget:    10_000,
	}
}

// MaxSamples caps the Monte Carlo sample count. Every sample keeps a full
// value vector until the bands are computed.
const MaxSamples = 100_000

// Validate checks that every bound is usable. Iteration cap and timeout are
// mandatory.
func (o Options) Validate() error {
	switch {
	case !(o.Damping > 0 && o.Damping <= 1):
		return fmt.Errorf("damping must be in (0, 1], got %g", o.Damping)
	case !(o.Epsilon > 0):
		return fmt.Errorf("epsilon must be positive, got %g", o.Epsilon)
	case o.MaxIterations <= 0:
		return fmt.Errorf("max iterations must be positive, got %d", o.MaxIterations)
	case o.Timeout <= 0:
		return fmt.Errorf("timeout must be positive, got %s", o.Timeout)
	case o.TopK < 0 || o.MaxPathHops < 0 || o.PathBudget < 0:
		return fmt.Errorf("path attribution bounds must not be negative")
	case o.Workers < 0:
		return fmt.Errorf("workers must not be negative, got %d", o.Workers)
	}
	if _, err := ParseMode(string(o.Uncertainty)); err != nil {
		return err
	}
	if o.Uncertainty == ModeMonteCarlo {
		if o.Samples <= 0 || o.Samples > MaxSamples {
			return fmt.Errorf("monte carlo sample count must be within 1..%d, got %d", MaxSamples, o.Samples)
		}
		if !(o.Confidence > 0 && o.Confidence < 1) {
			return fmt.Errorf("confidence must be in (0, 1), got %g", o.Confidence)
		}
	}
	return nil
}
