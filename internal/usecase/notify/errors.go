package notify

import "errors"

// Sentinel errors for notify use case operations.
var (
	// ErrChannelDisabled indicates that Send() was called on a disabled channel.
	ErrChannelDisabled = errors.New("channel is disabled")

	// ErrInvalidHaltEvent indicates that the halt event is missing required fields
	// (empty source or halt type).
	ErrInvalidHaltEvent = errors.New("invalid halt event")

	// ErrNotificationDropped indicates that a notification was dropped due to
	// goroutine pool saturation or timeout waiting for a worker slot.
	ErrNotificationDropped = errors.New("notification dropped due to pool saturation")

	// ErrCircuitBreakerOpen indicates that the circuit breaker is open for this channel
	// and notifications are being rejected to prevent continuous failures.
	ErrCircuitBreakerOpen = errors.New("circuit breaker is open for this channel")
)
