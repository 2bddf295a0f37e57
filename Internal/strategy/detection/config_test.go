package detection

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_IsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 70, cfg.RequiredBars())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantMsg string
	}{
		{"zero fast", func(c *Config) { c.FastLength = 0 }, "fast_length"},
		{"negative slow", func(c *Config) { c.SlowLength = -3 }, "slow_length"},
		{"fast not below slow", func(c *Config) { c.FastLength = 30 }, "must be below"},
		{"zero efficiency", func(c *Config) { c.EfficiencyLength = 0 }, "efficiency_length"},
		{"zero atr", func(c *Config) { c.ATRLength = 0 }, "atr_length"},
		{"zero atr delta", func(c *Config) { c.MinimumATRDelta = 0 }, "minimum_atr_delta"},
		{"scan below floor", func(c *Config) { c.ScanLength = MinScanLength - 1 }, "scan_length"},
		{"negative overscan", func(c *Config) { c.OverscanLength = -1 }, "overscan_length"},
		{"no legs", func(c *Config) { c.MinimumRequiredLegs = 0 }, "minimum_required_legs"},
		{"percentage above one", func(c *Config) { c.MinimumPercentageContractingLegs = 1.01 }, "minimum_percentage"},
		{"percentage below zero", func(c *Config) { c.MinimumPercentageContractingLegs = -0.1 }, "minimum_percentage"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidConfig))
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestNewContractionDetector_RejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FastLength, cfg.SlowLength = 10, 5

	d, err := NewContractionDetector(cfg)
	assert.Nil(t, d)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
