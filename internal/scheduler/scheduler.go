// Package scheduler implements the utility-based preemptive scheduler:
// scoring, dwell, hysteresis, and active-task selection. Grounded on
// main/src/trace_scheduler.c and main/include/trace_scheduler.h from the
// embedded original; the decision-logging shape follows the teacher's
// logDecision in control_plane/scheduler/scheduler.go.
package scheduler

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/ChrisCOJ/Trace/internal/clock"
	"github.com/ChrisCOJ/Trace/internal/task"
	"github.com/ChrisCOJ/Trace/internal/taskpool"
	"github.com/ChrisCOJ/Trace/internal/telemetry"
)

// decision is a structured log entry for a scheduler tick outcome,
// mirroring the teacher's SchedulingDecision in
// control_plane/scheduler/types.go.
type decision struct {
	Decision string  `json:"decision"`
	TaskID   string  `json:"task_id,omitempty"`
	Table    uint8   `json:"table,omitempty"`
	Kind     string  `json:"kind,omitempty"`
	Score    float64 `json:"score,omitempty"`
	Reason   string  `json:"reason,omitempty"`
}

func logDecision(d decision) {
	b, _ := json.Marshal(d)
	log.Println("[scheduler]", string(b))
	telemetry.SchedulerDecisions.WithLabelValues(d.Decision).Inc()
}

// Scheduler holds the active-task selection state. Zero value is not
// usable directly — construct with New.
type Scheduler struct {
	mu sync.Mutex

	cfg Config

	hasActiveTask       bool
	activeTaskID        task.ID
	taskActiveSince     clock.Millis
	humanStateIndicator float64

	// debug enables per-candidate score logging on every tick, matching
	// the original's ESP_LOGD candidate trace.
	debug bool
}

// New constructs a Scheduler. Zero-valued Config fields are replaced by
// production defaults (spec.md §6).
func New(cfg Config) *Scheduler {
	return &Scheduler{
		cfg:          applyDefaults(cfg),
		activeTaskID: task.InvalidID,
	}
}

// SetDebug toggles per-candidate score tracing.
func (s *Scheduler) SetDebug(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.debug = on
}

// SetHumanStateIndicator sets the operator-exhaustion signal in [0,1].
// Nothing in this repo drives it automatically (spec.md §9) — it is a
// hook for a future exhaustion-sensing component.
func (s *Scheduler) SetHumanStateIndicator(v float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	s.humanStateIndicator = v
}

// ActiveTask returns the current active task id and whether one is set.
// The id must still be resolved through the pool by the caller — it is a
// handle, never a borrow.
func (s *Scheduler) ActiveTask() (task.ID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeTaskID, s.hasActiveTask
}

func (s *Scheduler) score(cfg Config, t *task.Task, now clock.Millis) float64 {
	overdueMin := 0.0
	if now > t.TimeLimit {
		overdueMin = float64(now-t.TimeLimit) / 60_000.0
	}
	urgency := overdueMin / urgencyGrowthRateMin
	if urgency > urgencyCap {
		urgency = urgencyCap
	}

	ageMin := 0.0
	if now > t.CreatedAt {
		ageMin = float64(now-t.CreatedAt) / 60_000.0
	}
	age := ageMin / ageGrowthRateMin
	if age > ageCap {
		age = ageCap
	}

	return cfg.BasePriorityWeight*t.BasePriority +
		cfg.UrgencyWeight*urgency +
		cfg.AgeWeight*age -
		cfg.IgnorePenaltyWeight*float64(t.IgnoreCount)
}

func (s *Scheduler) effectiveDwell(cfg Config) clock.Millis {
	return cfg.MinDwellTime + clock.Millis(float64(cfg.ExtraDwellAtMaxExhaustion)*s.humanStateIndicator)
}

func (s *Scheduler) effectiveDelta(cfg Config) float64 {
	return cfg.PreemptDelta + cfg.ExtraDeltaAtMaxExhaustion*s.humanStateIndicator
}

// Tick runs one scheduling pass (spec.md §4.4 "Tick algorithm"):
// refresh every task, score every Eligible candidate, and either adopt,
// hold, or switch the active task under dwell + hysteresis.
func (s *Scheduler) Tick(pool *taskpool.Pool, now clock.Millis) {
	s.mu.Lock()
	cfg := s.cfg
	debug := s.debug
	s.mu.Unlock()

	bestID := task.InvalidID
	bestScore := 0.0
	haveBest := false

	pool.ForEach(func(id task.ID, t *task.Task) {
		task.Refresh(t, now)
		if !task.Schedulable(t) {
			return
		}

		candidateScore := s.score(cfg, t, now)
		if debug {
			log.Printf("[scheduler] candidate id=(%d,%d) table=%d kind=%s status=%s score=%.3f",
				id.Index, id.Generation, t.TableNumber, t.Kind, t.Status, candidateScore)
		}

		if !haveBest || candidateScore > bestScore {
			haveBest = true
			bestScore = candidateScore
			bestID = id
		}
	})

	telemetry.PoolOccupancy.Set(float64(pool.Occupied()))

	s.mu.Lock()
	defer s.mu.Unlock()

	if !haveBest {
		if s.hasActiveTask {
			s.hasActiveTask = false
			s.activeTaskID = task.InvalidID
			s.taskActiveSince = now
			logDecision(decision{Decision: "clear", Reason: "no_eligible_candidates"})
		}
		return
	}

	if !s.hasActiveTask {
		s.hasActiveTask = true
		s.activeTaskID = bestID
		s.taskActiveSince = now
		telemetry.ActiveTaskScore.Set(bestScore)
		logDecision(decision{Decision: "adopt", TaskID: idString(bestID), Score: bestScore})
		return
	}

	activeTask, ok := pool.Get(s.activeTaskID)
	if !ok {
		s.activeTaskID = bestID
		s.taskActiveSince = now
		telemetry.ActiveTaskScore.Set(bestScore)
		logDecision(decision{Decision: "switch", TaskID: idString(bestID), Score: bestScore, Reason: "stale_active"})
		return
	}

	task.Refresh(&activeTask, now)
	if !task.Schedulable(&activeTask) {
		s.activeTaskID = bestID
		s.taskActiveSince = now
		telemetry.ActiveTaskScore.Set(bestScore)
		logDecision(decision{Decision: "switch", TaskID: idString(bestID), Score: bestScore, Reason: "active_ineligible"})
		return
	}

	if s.activeTaskID == bestID {
		telemetry.ActiveTaskScore.Set(bestScore)
		return
	}

	activeScore := s.score(cfg, &activeTask, now)
	dwellElapsed := now - s.taskActiveSince
	effDwell := s.effectiveDwell(cfg)
	effDelta := s.effectiveDelta(cfg)

	if dwellElapsed >= effDwell && bestScore > activeScore+effDelta {
		s.activeTaskID = bestID
		s.taskActiveSince = now
		telemetry.ActiveTaskScore.Set(bestScore)
		logDecision(decision{Decision: "switch", TaskID: idString(bestID), Score: bestScore, Reason: "hysteresis_margin_exceeded"})
		return
	}

	telemetry.ActiveTaskScore.Set(activeScore)
	logDecision(decision{Decision: "hold", TaskID: idString(s.activeTaskID), Score: activeScore})
}

func idString(id task.ID) string {
	return fmt.Sprintf("%d:%d", id.Index, id.Generation)
}
