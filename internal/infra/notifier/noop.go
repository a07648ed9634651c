package notifier

import (
	"context"

	"crawlctl/internal/domain/entity"
)

// NoOpNotifier is a no-operation implementation of the Notifier interface.
// It is used when notifications are disabled to avoid null checks in the code.
// This follows the Null Object pattern.
type NoOpNotifier struct{}

// NewNoOpNotifier creates a new NoOpNotifier instance.
func NewNoOpNotifier() *NoOpNotifier {
	return &NoOpNotifier{}
}

// NotifyHalt does nothing and returns nil immediately.
func (n *NoOpNotifier) NotifyHalt(ctx context.Context, event entity.HaltEvent) error {
	return nil
}
