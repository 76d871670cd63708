package telegram

import (
	"fmt"
	"strings"
	"time"

	"github.com/bissquit/stockwatch/internal/notifications"
)

// Descriptions the Bot API returns when a chat can no longer receive messages.
var unreachableMarkers = []string{
	"chat not found",
	"user not found",
	"user is deactivated",
	"bot was blocked",
	"bot was kicked",
	"bot can't initiate conversation",
}

// PermanentError indicates a permanent error that should not be retried.
type PermanentError struct {
	Code    int
	Message string
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("telegram error %d: %s", e.Code, e.Message)
}

// IsRetryable returns false as permanent errors should not be retried.
func (e *PermanentError) IsRetryable() bool { return false }

// Unreachable reports whether the chat has blocked the bot or no longer exists.
func (e *PermanentError) Unreachable() bool {
	if e.Code == 403 {
		return true
	}
	msg := strings.ToLower(e.Message)
	for _, marker := range unreachableMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// Is lets errors.Is match notifications.ErrRecipientUnreachable.
func (e *PermanentError) Is(target error) bool {
	return target == notifications.ErrRecipientUnreachable && e.Unreachable()
}

// RetryableError indicates a temporary error that can be retried.
type RetryableError struct {
	Code    int
	Message string
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("telegram error %d: %s", e.Code, e.Message)
}

// IsRetryable returns true as these errors are temporary.
func (e *RetryableError) IsRetryable() bool { return true }

// RateLimitError is returned when the Bot API answers 429.
type RateLimitError struct {
	RetryAfter time.Duration
	Message    string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("telegram rate limited, retry after %s: %s", e.RetryAfter, e.Message)
}

// IsRetryable returns true; the request may be repeated after RetryAfter.
func (e *RateLimitError) IsRetryable() bool { return true }

// RetryDelay returns RetryAfter.
func (e *RateLimitError) RetryDelay() time.Duration { return e.RetryAfter }
