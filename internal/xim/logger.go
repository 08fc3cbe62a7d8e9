package xim

import "sync"

// The engine may log from contexts outside the caller's control, so the
// diagnostic sink is process-wide and shared by all sessions.
var (
	loggerMu sync.Mutex
	logger   func(msg string)
)

// SetLogger replaces the global diagnostic handler. Passing nil drops
// subsequent engine diagnostics. Safe to call concurrently with emission.
func SetLogger(fn func(msg string)) {
	loggerMu.Lock()
	logger = fn
	loggerMu.Unlock()
}

// emitLog is installed as the engine's log handler at session creation.
// Messages are dropped while no handler is set. Never fails.
func emitLog(msg string) {
	loggerMu.Lock()
	fn := logger
	loggerMu.Unlock()
	if fn != nil {
		fn(msg)
	}
}
