package engine

import "fmt"

// ConfigError reports an out-of-range configuration value. Values are never
// silently clamped; a bad threshold is a caller mistake worth surfacing.
type ConfigError struct {
	Param   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid config %s: %s", e.Param, e.Message)
}

// Config holds every caller-overridable knob with the engine defaults.
type Config struct {
	// ContaminationRate is the expected outlier fraction assumed by the anomaly
	// detector when choosing its decision threshold.
	ContaminationRate float64
	// EnsembleSize is the number of isolation trees.
	EnsembleSize int
	// RandomSeed makes repeated runs on identical input reproduce identical
	// flags.
	RandomSeed int64
	// AmountVarianceThreshold is the recurrence amount-consistency gate, as a
	// fraction of the group mean.
	AmountVarianceThreshold float64
	// NameSimilarityThreshold is the minimum text similarity for merging two
	// income source names.
	NameSimilarityThreshold float64
	// AmountTolerance is the maximum relative amount difference for merging two
	// income clusters.
	AmountTolerance float64
	// WeeklyMaxGapDays and MonthlyMaxGapDays classify mean day-gaps into
	// weekly/monthly/yearly; boundaries are inclusive.
	WeeklyMaxGapDays  float64
	MonthlyMaxGapDays float64
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		ContaminationRate:       0.10,
		EnsembleSize:            100,
		RandomSeed:              42,
		AmountVarianceThreshold: 0.10,
		NameSimilarityThreshold: 0.8,
		AmountTolerance:         0.10,
		WeeklyMaxGapDays:        10,
		MonthlyMaxGapDays:       40,
	}
}

// Validate rejects out-of-range values with a descriptive error.
func (c Config) Validate() error {
	if c.ContaminationRate <= 0 || c.ContaminationRate >= 1 {
		return &ConfigError{"contamination_rate", fmt.Sprintf("must be in (0, 1), got %v", c.ContaminationRate)}
	}
	if c.EnsembleSize <= 0 {
		return &ConfigError{"ensemble_size", fmt.Sprintf("must be positive, got %d", c.EnsembleSize)}
	}
	if c.AmountVarianceThreshold <= 0 {
		return &ConfigError{"amount_variance_threshold", fmt.Sprintf("must be positive, got %v", c.AmountVarianceThreshold)}
	}
	if c.NameSimilarityThreshold <= 0 || c.NameSimilarityThreshold > 1 {
		return &ConfigError{"name_similarity_threshold", fmt.Sprintf("must be in (0, 1], got %v", c.NameSimilarityThreshold)}
	}
	if c.AmountTolerance <= 0 {
		return &ConfigError{"amount_tolerance", fmt.Sprintf("must be positive, got %v", c.AmountTolerance)}
	}
	if c.WeeklyMaxGapDays <= 0 {
		return &ConfigError{"weekly_max_gap_days", fmt.Sprintf("must be positive, got %v", c.WeeklyMaxGapDays)}
	}
	if c.MonthlyMaxGapDays <= c.WeeklyMaxGapDays {
		return &ConfigError{"monthly_max_gap_days", fmt.Sprintf("must exceed weekly_max_gap_days (%v), got %v", c.WeeklyMaxGapDays, c.MonthlyMaxGapDays)}
	}
	return nil
}
