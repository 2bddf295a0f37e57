package detection

import (
	"errors"
	"fmt"
)

const (
	// MinScanLength is the smallest window the scanner accepts.
	MinScanLength = 10
	// DefaultOverscanLength is how far past the window the first interval may extend.
	DefaultOverscanLength = 10
)

var ErrInvalidConfig = errors.New("invalid detector config")

// Config holds the tunables of the contraction detector. Validate it once at setup;
// evaluation assumes a valid config.
type Config struct {
	FastLength       int `yaml:"fast_length" json:"fast_length"`
	SlowLength       int `yaml:"slow_length" json:"slow_length"`
	EfficiencyLength int `yaml:"efficiency_length" json:"efficiency_length"`
	ATRLength        int `yaml:"atr_length" json:"atr_length"`

	MinimumATRDelta float64 `yaml:"minimum_atr_delta" json:"minimum_atr_delta"`
	ScanLength      int     `yaml:"scan_length" json:"scan_length"`
	OverscanLength  int     `yaml:"overscan_length" json:"overscan_length"`

	MinimumRequiredLegs              int     `yaml:"minimum_required_legs" json:"minimum_required_legs"`
	MinimumPercentageContractingLegs float64 `yaml:"minimum_percentage_contracting_legs" json:"minimum_percentage_contracting_legs"`
}

func DefaultConfig() Config {
	return Config{
		FastLength:                       2,
		SlowLength:                       30,
		EfficiencyLength:                 10,
		ATRLength:                        14,
		MinimumATRDelta:                  0.5,
		ScanLength:                       60,
		OverscanLength:                   DefaultOverscanLength,
		MinimumRequiredLegs:              4,
		MinimumPercentageContractingLegs: 0.8,
	}
}

// RequiredBars is the history needed before the detector does any work.
func (c Config) RequiredBars() int {
	return c.ScanLength + c.OverscanLength
}

func (c Config) Validate() error {
	switch {
	case c.FastLength <= 0:
		return fmt.Errorf("%w: fast_length must be positive, got %d", ErrInvalidConfig, c.FastLength)
	case c.SlowLength <= 0:
		return fmt.Errorf("%w: slow_length must be positive, got %d", ErrInvalidConfig, c.SlowLength)
	case c.FastLength >= c.SlowLength:
		return fmt.Errorf("%w: fast_length %d must be below slow_length %d", ErrInvalidConfig, c.FastLength, c.SlowLength)
	case c.EfficiencyLength <= 0:
		return fmt.Errorf("%w: efficiency_length must be positive, got %d", ErrInvalidConfig, c.EfficiencyLength)
	case c.ATRLength <= 0:
		return fmt.Errorf("%w: atr_length must be positive, got %d", ErrInvalidConfig, c.ATRLength)
	case c.MinimumATRDelta <= 0:
		return fmt.Errorf("%w: minimum_atr_delta must be positive, got %g", ErrInvalidConfig, c.MinimumATRDelta)
	case c.ScanLength < MinScanLength:
		return fmt.Errorf("%w: scan_length must be at least %d, got %d", ErrInvalidConfig, MinScanLength, c.ScanLength)
	case c.OverscanLength < 0:
		return fmt.Errorf("%w: overscan_length must not be negative, got %d", ErrInvalidConfig, c.OverscanLength)
	case c.MinimumRequiredLegs < 1:
		return fmt.Errorf("%w: minimum_required_legs must be at least 1, got %d", ErrInvalidConfig, c.MinimumRequiredLegs)
	case c.MinimumPercentageContractingLegs < 0 || c.MinimumPercentageContractingLegs > 1:
		return fmt.Errorf("%w: minimum_percentage_contracting_legs must be in [0,1], got %g", ErrInvalidConfig, c.MinimumPercentageContractingLegs)
	}
	return nil
}
