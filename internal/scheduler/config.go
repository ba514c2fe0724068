package scheduler

import "github.com/ChrisCOJ/Trace/internal/clock"

// Config holds the scheduler's scoring weights and dwell/hysteresis
// thresholds. Grounded on main/include/trace_scheduler.h's
// scheduler_config and on the teacher's SchedulerConfig /
// DefaultSchedulerConfig shape in control_plane/scheduler/types.go.
type Config struct {
	BasePriorityWeight  float64
	UrgencyWeight       float64
	AgeWeight           float64
	IgnorePenaltyWeight float64

	PreemptDelta float64
	MinDwellTime clock.Millis

	ExtraDwellAtMaxExhaustion clock.Millis
	ExtraDeltaAtMaxExhaustion float64
}

// DefaultConfig returns the production defaults from spec.md §4.4.
func DefaultConfig() Config {
	return Config{
		BasePriorityWeight:  1.0,
		UrgencyWeight:       4.0,
		AgeWeight:           0.2,
		IgnorePenaltyWeight: 1.0,
		PreemptDelta:        0.8,
		MinDwellTime:        20_000,
	}
}

// applyDefaults fills any zero-valued field with the production default,
// matching scheduler_init's behavior in main/src/trace_scheduler.c and
// spec.md §6 ("any field equal to zero at init time is replaced by the
// default").
func applyDefaults(cfg Config) Config {
	d := DefaultConfig()
	if cfg.BasePriorityWeight == 0 {
		cfg.BasePriorityWeight = d.BasePriorityWeight
	}
	if cfg.UrgencyWeight == 0 {
		cfg.UrgencyWeight = d.UrgencyWeight
	}
	if cfg.AgeWeight == 0 {
		cfg.AgeWeight = d.AgeWeight
	}
	if cfg.IgnorePenaltyWeight == 0 {
		cfg.IgnorePenaltyWeight = d.IgnorePenaltyWeight
	}
	if cfg.PreemptDelta == 0 {
		cfg.PreemptDelta = d.PreemptDelta
	}
	if cfg.MinDwellTime == 0 {
		cfg.MinDwellTime = d.MinDwellTime
	}
	// ExtraDwellAtMaxExhaustion and ExtraDeltaAtMaxExhaustion default to
	// zero (no modulation) per spec.md §4.4 — zero is their intended
	// default, not a missing value, so they are left alone here.
	return cfg
}

const (
	urgencyCap           = 10.0
	urgencyGrowthRateMin = 1.0
	ageCap               = 7.0
	ageGrowthRateMin     = 2.0
)
