// Package postgres persists crawl_halted events and rate-table snapshots to
// PostgreSQL via database/sql, the same CRUD shape the reference codebase
// uses for its source/article repositories, wrapped with the shared
// database circuit breaker.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"crawlctl/internal/domain/entity"
	"crawlctl/internal/resilience/circuitbreaker"
)

// AuditRepo implements repository.HaltAuditRepository against PostgreSQL.
type AuditRepo struct {
	cb *circuitbreaker.DBCircuitBreaker
}

// NewAuditRepo wraps db with the shared database circuit breaker.
func NewAuditRepo(db *sql.DB) *AuditRepo {
	return &AuditRepo{cb: circuitbreaker.NewDBCircuitBreaker(db)}
}

func (r *AuditRepo) RecordHalt(ctx context.Context, event entity.HaltEvent) error {
	_, err := r.cb.ExecContext(ctx, `
		INSERT INTO crawl_halt_events (id, source, halt_type, reason, occurred_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING`,
		event.ID, event.Source.String(), string(event.Type), event.Reason, event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("postgres: record halt event: %w", err)
	}
	return nil
}

func (r *AuditRepo) RecordSnapshot(ctx context.Context, snapshot entity.MonitoringSnapshot) error {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("postgres: marshal snapshot: %w", err)
	}
	_, err = r.cb.ExecContext(ctx, `
		INSERT INTO crawl_snapshots (id, captured_at, document)
		VALUES ($1, $2, $3)`,
		uuid.New(), snapshot.Timestamp, payload,
	)
	if err != nil {
		return fmt.Errorf("postgres: record snapshot: %w", err)
	}
	return nil
}

func (r *AuditRepo) ListHalts(ctx context.Context, cursor string, limit int) ([]entity.HaltEvent, string, error) {
	if limit <= 0 {
		limit = 50
	}

	var before time.Time
	if cursor != "" {
		nanos, err := strconv.ParseInt(cursor, 10, 64)
		if err != nil {
			return nil, "", fmt.Errorf("postgres: invalid cursor %q: %w", cursor, err)
		}
		before = time.Unix(0, nanos)
	} else {
		before = time.Now().Add(time.Hour) // safely after any real row
	}

	rows, err := r.cb.QueryContext(ctx, `
		SELECT id, source, halt_type, reason, occurred_at
		FROM crawl_halt_events
		WHERE occurred_at < $1
		ORDER BY occurred_at DESC
		LIMIT $2`,
		before, limit,
	)
	if err != nil {
		return nil, "", fmt.Errorf("postgres: list halts: %w", err)
	}
	defer rows.Close()

	var events []entity.HaltEvent
	for rows.Next() {
		var (
			event      entity.HaltEvent
			source     string
			haltType   string
			occurredAt time.Time
		)
		if err := rows.Scan(&event.ID, &source, &haltType, &event.Reason, &occurredAt); err != nil {
			return nil, "", fmt.Errorf("postgres: scan halt event: %w", err)
		}
		event.Source = entity.Source(source)
		event.Type = entity.HaltType(haltType)
		event.Timestamp = occurredAt
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, "", fmt.Errorf("postgres: iterate halt events: %w", err)
	}

	var nextCursor string
	if len(events) == limit {
		nextCursor = strconv.FormatInt(events[len(events)-1].Timestamp.UnixNano(), 10)
	}
	return events, nextCursor, nil
}
