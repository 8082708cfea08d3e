package scrobbler

import (
	"context"
	"errors"
	"time"

	"mps/internal/logging"
	"mps/internal/sessions"
)

// Start begins background monitoring. It fails when the engine is already
// running or has not been initialized.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return errors.New("scrobbler already running")
	}
	if e.submitter == nil {
		e.mu.Unlock()
		return errors.New("scrobbler not initialized")
	}
	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.running = true
	e.errored = false
	e.stateDetail = "monitoring"
	e.wg.Add(1)
	e.mu.Unlock()

	go e.run(runCtx)

	if err := e.notifier.NotifyMonitoringStarted(ctx); err != nil {
		e.logger.Warn("start notification failed", logging.Error(err))
	}
	e.sink.Publish("Monitoring", "Scrobbler started")
	return nil
}

// Stop terminates monitoring and waits for the loop to finish the cycle in
// progress. Stopping an engine that is not running is a no-op.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	cancel := e.cancel
	e.running = false
	e.cancel = nil
	e.stateDetail = "stopped"
	e.mu.Unlock()

	cancel()
	e.wg.Wait()

	ctx, done := context.WithTimeout(context.Background(), e.submitTimeout)
	defer done()
	if err := e.notifier.NotifyMonitoringStopped(ctx); err != nil {
		e.logger.Warn("stop notification failed", logging.Error(err))
	}
	e.sink.Publish("Monitoring", "Scrobbler stopped")
}

// run is the monitor loop. Cancellation is only honored at the sleep point so
// a submission or backlog write in flight always completes.
func (e *Engine) run(ctx context.Context) {
	defer e.wg.Done()

	lastReplay := e.clock()
	for {
		e.cycle()

		now := e.clock()
		if now.Sub(lastReplay) >= e.backlogInterval {
			lastReplay = now
			e.replayBacklog()
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(e.pollInterval):
		}
	}
}

// cycle performs one poll pass over every player source.
func (e *Engine) cycle() {
	now := e.clock()
	ctx, cancel := context.WithTimeout(context.Background(), e.pollInterval)
	defer cancel()

	for _, source := range e.sources {
		samples, err := source.Poll(ctx)
		if err != nil {
			e.logger.Warn("player poll failed",
				logging.String("source", source.Name()),
				logging.Error(err),
				logging.String(logging.FieldEventType, "player_poll_failed"),
			)
			continue
		}
		for _, sample := range samples {
			if sample.Paused {
				continue
			}
			change := e.tracker.Observe(sample.ItemID, sample.Title, sample.Position, sample.Duration, now)
			if change != nil && change.Kind == sessions.ChangeThresholdCrossed {
				e.handleCrossing(change.Session)
			}
		}
	}

	for _, change := range e.tracker.Sweep(e.clock()) {
		if change.Kind == sessions.ChangeAbandoned {
			e.logger.Info("session abandoned",
				logging.String(logging.FieldItemID, change.Session.ItemID),
				logging.String(logging.FieldSessionID, change.Session.SessionID),
				logging.Float64("progress", change.Session.Progress()),
			)
		}
	}
}

func (e *Engine) replayBacklog() {
	ctx, cancel := context.WithTimeout(context.Background(), e.backlogInterval)
	defer cancel()
	result, err := e.ProcessBacklog(ctx)
	if err != nil {
		e.logger.Error("backlog replay failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "backlog_replay_failed"),
			logging.String(logging.FieldErrorHint, "check backlog database access"),
		)
		return
	}
	if result.Attempted > 0 {
		e.logger.Info("backlog replay finished",
			logging.Int("processed", result.Processed),
			logging.Int("attempted", result.Attempted),
			logging.Int("dead", result.Dead),
		)
	}
}
