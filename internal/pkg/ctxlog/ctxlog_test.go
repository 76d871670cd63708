package ctxlog

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromContext_Default(t *testing.T) {
	assert.Same(t, slog.Default(), FromContext(context.Background()))
}

func TestWith_AccumulatesAttributes(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewTextHandler(&buf, nil))

	ctx := WithLogger(context.Background(), base)
	ctx, _ = With(ctx, "pass_id", "p1")
	_, logger := With(ctx, "user_id", "42")

	logger.Info("sent")

	out := buf.String()
	assert.Contains(t, out, "pass_id=p1")
	assert.Contains(t, out, "user_id=42")
	assert.Contains(t, out, "msg=sent")
}
