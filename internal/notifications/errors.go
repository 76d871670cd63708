package notifications

import (
	"errors"
	"time"
)

// ErrRecipientUnreachable is matched by transport errors meaning the recipient
// can no longer be reached (blocked bot, deleted chat). The subscription is pruned.
var ErrRecipientUnreachable = errors.New("recipient unreachable")

// ErrQueueFull is returned by Submit when the snapshot queue has no room.
var ErrQueueFull = errors.New("notification queue is full")

// IsRecipientUnreachable reports whether err marks the recipient as permanently unreachable.
func IsRecipientUnreachable(err error) bool {
	return errors.Is(err, ErrRecipientUnreachable)
}

// IsRetryable reports whether a sender marked err as temporary.
func IsRetryable(err error) bool {
	var r interface{ IsRetryable() bool }
	return errors.As(err, &r) && r.IsRetryable()
}

// RetryAfter returns the wait a sender was asked to observe, or zero.
func RetryAfter(err error) time.Duration {
	var r interface{ RetryDelay() time.Duration }
	if errors.As(err, &r) {
		return r.RetryDelay()
	}
	return 0
}
