package repository

import (
	"context"

	"crawlctl/internal/domain/entity"
)

// HaltAuditRepository persists crawl_halted events and periodic rate-table
// snapshots for operator review. It is an enrichment beyond spec.md's
// logging-only contract: the original implementation only wrote halt
// events to stdout (see SPEC_FULL.md §10).
type HaltAuditRepository interface {
	RecordHalt(ctx context.Context, event entity.HaltEvent) error

	// RecordSnapshot persists a point-in-time copy of the rate table and
	// halt sets, taken by the hourly archival job.
	RecordSnapshot(ctx context.Context, snapshot entity.MonitoringSnapshot) error

	// ListHalts returns halt events in reverse-chronological order, paged
	// by an opaque cursor (empty string starts from the most recent).
	ListHalts(ctx context.Context, cursor string, limit int) (events []entity.HaltEvent, nextCursor string, err error)
}
