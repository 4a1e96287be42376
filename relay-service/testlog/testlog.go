// Package testlog provides a log handler for unit tests.
package testlog

import (
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/log"
)

// Logger returns a logger that writes into the test log, so output only
// shows for failing tests or with -v.
func Logger(t testing.TB, level slog.Level) log.Logger {
	t.Helper()
	w := &testWriter{t: t}
	t.Cleanup(w.close)
	return log.NewLogger(log.NewTerminalHandlerWithLevel(w, level, false))
}

type testWriter struct {
	mu     sync.Mutex
	t      testing.TB
	closed bool
}

func (w *testWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	// Background goroutines may outlive the test. t.Log panics then.
	if !w.closed {
		w.t.Log(strings.TrimRight(string(p), "\n"))
	}
	return len(p), nil
}

func (w *testWriter) close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
}
