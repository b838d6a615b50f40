// Package testutil hosts fixtures shared across the test suites: a fake
// process starter and context/logger plumbing.
package testutil

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/vk/reloadgo/internal/ctxlog"
)

// Context returns a context carrying a discarding logger. Long-lived
// goroutines under test may log after the test body returns, so the
// logger must not write through testing.T.
func Context(t *testing.T) context.Context {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return ctxlog.WithLogger(context.Background(), logger)
}
