package notifications

import (
	"log/slog"
	"sync"

	"mps/internal/logging"
)

// Callback receives a short title and message for surfacing to an attached
// user interface. Implementations must not block.
type Callback func(title, message string)

// Sink fans notification text out to an optional registered callback.
// Callback failures are swallowed so a broken UI hook never disturbs
// monitoring.
type Sink struct {
	mu       sync.Mutex
	callback Callback
	logger   *slog.Logger
}

// NewSink returns a sink with no callback registered.
func NewSink(logger *slog.Logger) *Sink {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Sink{logger: logger}
}

// SetCallback registers or replaces the callback. A nil callback detaches it.
func (s *Sink) SetCallback(cb Callback) {
	s.mu.Lock()
	s.callback = cb
	s.mu.Unlock()
}

// Publish delivers the message to the registered callback, if any.
func (s *Sink) Publish(title, message string) {
	s.mu.Lock()
	cb := s.callback
	s.mu.Unlock()
	if cb == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			s.logger.Warn("notification callback panicked", logging.Any("panic", r))
		}
	}()
	cb(title, message)
}
