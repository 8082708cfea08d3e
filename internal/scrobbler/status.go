package scrobbler

import (
	"context"
	"time"

	"mps/internal/backlog"
	"mps/internal/logging"
	"mps/internal/sessions"
)

// EngineState is the coarse lifecycle reported by Status.
type EngineState string

const (
	StateStopped EngineState = "stopped"
	StateRunning EngineState = "running"
	StateError   EngineState = "error"
)

// Summary represents lightweight engine diagnostics.
type Summary struct {
	State          EngineState
	Detail         string
	Threshold      int
	ActiveSessions []sessions.WatchSession
	LastScrobbled  *ScrobbleRecord
	Backlog        backlog.HealthSummary
}

// Status returns the latest engine information.
func (e *Engine) Status(ctx context.Context) Summary {
	e.mu.RLock()
	running := e.running
	errored := e.errored
	detail := e.stateDetail
	var last *ScrobbleRecord
	if e.lastScrobbled != nil {
		copy := *e.lastScrobbled
		last = &copy
	}
	e.mu.RUnlock()

	state := StateStopped
	switch {
	case errored:
		state = StateError
	case running:
		state = StateRunning
	}

	health, err := e.backlog.Health(ctx)
	if err != nil {
		e.logger.Warn("failed to read backlog health", logging.Error(err))
	}

	return Summary{
		State:          state,
		Detail:         detail,
		Threshold:      e.settings.Threshold(),
		ActiveSessions: e.tracker.Snapshot(),
		LastScrobbled:  last,
		Backlog:        health,
	}
}

func (e *Engine) setError(detail string) {
	e.mu.Lock()
	e.errored = true
	e.stateDetail = detail
	e.mu.Unlock()
}

func (e *Engine) recordScrobble(title string, at time.Time) {
	e.mu.Lock()
	e.errored = false
	if e.running {
		e.stateDetail = "monitoring"
	}
	e.lastScrobbled = &ScrobbleRecord{Title: title, At: at}
	e.mu.Unlock()
}
