// Package testutil provides shared test helpers: silent loggers,
// deterministic AI mocks and an SSE stream parser.
package testutil

import "log/slog"

// DiscardLogger returns a slog.Logger that drops all output. Use it to
// keep test output quiet; log.NewNop() is the equivalent for code
// taking the internal/log alias.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
