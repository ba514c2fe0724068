package config

import "testing"

func TestFromEnvDefaultsWhenUnset(t *testing.T) {
	s := FromEnv()
	if s.DiningCheckinMs == 0 {
		t.Error("expected a non-zero default dining-checkin timeout")
	}
	if s.TickPeriodMs != 500 {
		t.Errorf("expected default tick period 500ms, got %v", s.TickPeriodMs)
	}
	if s.Scheduler.BasePriorityWeight != 0 {
		t.Error("expected scheduler weights left at zero for the scheduler's own defaulting")
	}
}

func TestFromEnvOverridesRecognizedVars(t *testing.T) {
	t.Setenv("TB_BASE_PRIORITY_WEIGHT", "2.5")
	t.Setenv("TB_MIN_DWELL_MS", "5000")
	t.Setenv("TB_DEBUG", "true")

	s := FromEnv()
	if s.Scheduler.BasePriorityWeight != 2.5 {
		t.Errorf("expected overridden weight 2.5, got %v", s.Scheduler.BasePriorityWeight)
	}
	if s.Scheduler.MinDwellTime != 5000 {
		t.Errorf("expected overridden dwell 5000, got %v", s.Scheduler.MinDwellTime)
	}
	if !s.Debug {
		t.Error("expected TB_DEBUG=true to set Debug")
	}
}

func TestFromEnvIgnoresUnparsableValues(t *testing.T) {
	t.Setenv("TB_AGE_WEIGHT", "not-a-number")

	s := FromEnv()
	if s.Scheduler.AgeWeight != 0 {
		t.Errorf("expected unparsable value to leave field at zero, got %v", s.Scheduler.AgeWeight)
	}
}
