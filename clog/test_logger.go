package clog

import (
	"sync"

	"go.uber.org/zap"
)

// TestLogger records messages instead of writing them. Safe for concurrent
// use so it can be handed to worker pools in tests.
type TestLogger struct {
	mtx      sync.Mutex
	Messages []string
}

func (t *TestLogger) Debug(msg string, _ ...zap.Field) { t.append("DEBUG: " + msg) }

func (t *TestLogger) Info(msg string, _ ...zap.Field) { t.append("INFO: " + msg) }

func (t *TestLogger) Warn(msg string, _ ...zap.Field) { t.append("WARN: " + msg) }

func (t *TestLogger) Error(msg string, _ ...zap.Field) { t.append("ERROR: " + msg) }

func (t *TestLogger) Fatal(msg string, _ ...zap.Field) { t.append("FATAL: " + msg) }

func (t *TestLogger) With(_ ...zap.Field) ICustomLog { return t }

// Lines returns a copy of the recorded messages.
func (t *TestLogger) Lines() []string {
	t.mtx.Lock()
	defer t.mtx.Unlock()

	out := make([]string, len(t.Messages))
	copy(out, t.Messages)

	return out
}

func (t *TestLogger) append(msg string) {
	t.mtx.Lock()
	defer t.mtx.Unlock()

	t.Messages = append(t.Messages, msg)
}
