// Package testutil provides shared testing utilities for the pluma project:
// deterministic mock models and embedders, a quiet logger, and a PostgreSQL
// test container with the pluma schema applied.
package testutil

import (
	"context"
	"log/slog"
	"testing"

	"github.com/firebase/genkit/go/genkit"
)

// DiscardLogger returns a slog.Logger that discards all output.
//
// log.Logger is a type alias for *slog.Logger, so this is interchangeable
// with log.NewNop(); prefer log.NewNop() when the internal/log package is
// already imported.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// NewGenkit initializes a bare Genkit instance for registering mock models
// and embedders in tests.
func NewGenkit(t *testing.T) *genkit.Genkit {
	t.Helper()
	return genkit.Init(context.Background())
}
