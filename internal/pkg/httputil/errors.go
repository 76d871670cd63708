package httputil

import (
	"context"
	"errors"
	"net/http"

	"github.com/bissquit/stockwatch/internal/pkg/ctxlog"
)

// ErrorMapping maps a sentinel error to a status code and public message.
// An empty Message exposes err.Error(), which is only safe for validation sentinels.
type ErrorMapping struct {
	Error   error
	Status  int
	Message string
}

// HandleError writes the response of the first mapping matching err.
// Unmapped errors are logged and answered with a generic 500 so internals never leak.
func HandleError(ctx context.Context, w http.ResponseWriter, err error, mappings []ErrorMapping) {
	for _, m := range mappings {
		if !errors.Is(err, m.Error) {
			continue
		}
		msg := m.Message
		if msg == "" {
			msg = err.Error()
		}
		if m.Status >= http.StatusInternalServerError {
			ctxlog.FromContext(ctx).Error("request failed", "status", m.Status, "error", err)
		}
		Error(w, m.Status, msg)
		return
	}

	ctxlog.FromContext(ctx).Error("internal error", "error", err)
	Error(w, http.StatusInternalServerError, "internal error")
}
