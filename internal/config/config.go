// Package config loads runtime configuration from the environment, in
// the teacher's os.Getenv + fmt.Sscanf style from control_plane/main.go
// (SCHEDULER_CONCURRENCY, CIRCUIT_BREAKER_THRESHOLD). Every field is
// optional. An unset or unparsable variable leaves the corresponding
// scheduler.Config field at zero, which the scheduler replaces with its
// own production default; DiningCheckinMs and TickPeriodMs start at their
// defaults and keep them when the variable is unset, unparsable or zero.
package config

import (
	"fmt"
	"os"

	"github.com/ChrisCOJ/Trace/internal/clock"
	"github.com/ChrisCOJ/Trace/internal/scheduler"
	"github.com/ChrisCOJ/Trace/internal/tablefsm"
)

// Settings bundles everything needed to construct a trace.Facade.
type Settings struct {
	Scheduler       scheduler.Config
	DiningCheckinMs clock.Millis
	TickPeriodMs    clock.Millis
	Debug           bool
}

// FromEnv reads Settings from the process environment. Recognized
// variables:
//
//	TB_BASE_PRIORITY_WEIGHT, TB_URGENCY_WEIGHT, TB_AGE_WEIGHT,
//	TB_IGNORE_PENALTY_WEIGHT, TB_PREEMPT_DELTA, TB_MIN_DWELL_MS,
//	TB_EXTRA_DWELL_MS, TB_EXTRA_DELTA,
//	TB_DINING_CHECKIN_MS, TB_TICK_PERIOD_MS, TB_DEBUG
func FromEnv() Settings {
	s := Settings{
		DiningCheckinMs: tablefsm.DiningCheckinMs,
		TickPeriodMs:    500, // ~2Hz, per spec.md §2
	}

	var f float64
	if readFloat("TB_BASE_PRIORITY_WEIGHT", &f) {
		s.Scheduler.BasePriorityWeight = f
	}
	if readFloat("TB_URGENCY_WEIGHT", &f) {
		s.Scheduler.UrgencyWeight = f
	}
	if readFloat("TB_AGE_WEIGHT", &f) {
		s.Scheduler.AgeWeight = f
	}
	if readFloat("TB_IGNORE_PENALTY_WEIGHT", &f) {
		s.Scheduler.IgnorePenaltyWeight = f
	}
	if readFloat("TB_PREEMPT_DELTA", &f) {
		s.Scheduler.PreemptDelta = f
	}
	if readFloat("TB_EXTRA_DELTA", &f) {
		s.Scheduler.ExtraDeltaAtMaxExhaustion = f
	}

	var ms int64
	if readInt("TB_MIN_DWELL_MS", &ms) {
		s.Scheduler.MinDwellTime = clock.Millis(ms)
	}
	if readInt("TB_EXTRA_DWELL_MS", &ms) {
		s.Scheduler.ExtraDwellAtMaxExhaustion = clock.Millis(ms)
	}
	if readInt("TB_DINING_CHECKIN_MS", &ms) && ms != 0 {
		s.DiningCheckinMs = clock.Millis(ms)
	}
	if readInt("TB_TICK_PERIOD_MS", &ms) && ms != 0 {
		s.TickPeriodMs = clock.Millis(ms)
	}

	s.Debug = os.Getenv("TB_DEBUG") == "true"

	return s
}

func readFloat(name string, out *float64) bool {
	v := os.Getenv(name)
	if v == "" {
		return false
	}
	var parsed float64
	if _, err := fmt.Sscanf(v, "%f", &parsed); err != nil {
		return false
	}
	*out = parsed
	return true
}

func readInt(name string, out *int64) bool {
	v := os.Getenv(name)
	if v == "" {
		return false
	}
	var parsed int64
	if _, err := fmt.Sscanf(v, "%d", &parsed); err != nil {
		return false
	}
	*out = parsed
	return true
}
