// Package notifications renders stock alerts and delivers them to subscribers.
package notifications

import (
	"context"
	"log/slog"

	"github.com/bissquit/stockwatch/internal/domain"
)

// Notification is a rendered message for one recipient.
type Notification struct {
	To      string
	Subject string
	Body    string
}

// Sender delivers notifications over one transport.
type Sender interface {
	Type() domain.ChannelType
	Send(ctx context.Context, notification Notification) error
}

// LogSender writes notifications to the log instead of delivering them.
// It is used when no transport is configured.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a LogSender. A nil logger uses slog.Default().
func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{logger: logger}
}

// Type returns the channel type.
func (s *LogSender) Type() domain.ChannelType {
	return domain.ChannelTypeLog
}

// Send logs the notification.
func (s *LogSender) Send(_ context.Context, notification Notification) error {
	s.logger.Info("notification",
		"to", notification.To,
		"subject", notification.Subject,
		"body", notification.Body,
	)
	return nil
}
