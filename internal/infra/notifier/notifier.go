// Package notifier provides abstraction for sending halt alerts. It defines
// the Notifier interface which allows different notification mechanisms
// (Discord, Slack, etc.) to be used interchangeably through dependency
// injection.
//
// The package includes implementations for Discord and Slack webhooks and a
// no-op notifier for when notifications are disabled.
package notifier

import (
	"context"

	"crawlctl/internal/domain/entity"
)

// Notifier sends alerts when the regulator trips a halt for a source.
// Implementations should handle rate limiting, retries, and error logging
// internally.
type Notifier interface {
	// NotifyHalt sends a notification about a crawl_halted event. Respects
	// context cancellation; retries transient failures with backoff.
	NotifyHalt(ctx context.Context, event entity.HaltEvent) error
}
