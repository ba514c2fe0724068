// Package audit durably records terminal task lifecycle events and table
// transitions to Postgres for after-the-fact shift reporting. Grounded on
// control_plane/store/postgres.go's pgxpool setup from the teacher; this
// is a write-behind sink the façade calls out to, never a source the core
// reads back from — it does not reintroduce persistence into the
// in-memory core (spec.md's Non-goals stand).
package audit

import (
	"context"
	"log"
	"time"

	"github.com/ChrisCOJ/Trace/internal/clock"
	"github.com/ChrisCOJ/Trace/internal/task"
	"github.com/ChrisCOJ/Trace/internal/telemetry"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Sink writes task-lifecycle and table-transition rows to Postgres.
type Sink struct {
	pool *pgxpool.Pool
}

// NewSink connects to Postgres and verifies the connection.
func NewSink(ctx context.Context, connString string) (*Sink, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, err
	}
	cfg.MaxConns = 10
	cfg.MinConns = 1
	cfg.MaxConnLifetime = time.Hour
	cfg.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, err
	}
	return &Sink{pool: pool}, nil
}

// Close releases the connection pool.
func (s *Sink) Close() {
	s.pool.Close()
}

// RecordTaskTerminal writes a row for a task that reached Completed or
// Killed. Best-effort: failures are logged and counted, never returned to
// the caller — the scheduler's decision loop must never block on this.
func (s *Sink) RecordTaskTerminal(ctx context.Context, t task.Task, now clock.Millis) {
	const query = `
		INSERT INTO task_history (table_number, kind, status, ignore_count, created_at_ms, finished_at_ms)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	go func() {
		_, err := s.pool.Exec(ctx, query,
			t.TableNumber, t.Kind.String(), t.Status.String(), t.IgnoreCount,
			int64(t.CreatedAt), int64(now),
		)
		if err != nil {
			log.Printf("[audit] failed to record task history: %v", err)
			telemetry.AuditWriteFailures.Inc()
		}
	}()
}

// RecordTableTransition writes a row for a table state change.
func (s *Sink) RecordTableTransition(ctx context.Context, table uint8, state string, now clock.Millis) {
	const query = `
		INSERT INTO table_transitions (table_number, state, entered_at_ms)
		VALUES ($1, $2, $3)
	`
	go func() {
		_, err := s.pool.Exec(ctx, query, table, state, int64(now))
		if err != nil {
			log.Printf("[audit] failed to record table transition: %v", err)
			telemetry.AuditWriteFailures.Inc()
		}
	}()
}
