package scrobbler

import (
	"context"
	"encoding/json"
	"fmt"

	"mps/internal/backlog"
	"mps/internal/logging"
	"mps/internal/sessions"
	"mps/internal/simkl"
)

// handleCrossing submits a scrobble for a session that just crossed the
// threshold. Transient failures divert the payload to the backlog; the
// session is marked submitted either way so the crossing fires once.
func (e *Engine) handleCrossing(session sessions.WatchSession) {
	now := e.clock()
	scrobble := simkl.Scrobble{
		ItemID:    session.ItemID,
		Title:     session.Title,
		WatchedAt: now.UTC(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), e.submitTimeout)
	defer cancel()
	outcome, err := e.submitter.SubmitWatched(ctx, scrobble)

	switch outcome {
	case simkl.OutcomeSuccess:
		e.tracker.MarkSubmitted(session.ItemID, now)
		e.recordScrobble(session.Title, now)
		e.logger.Info("scrobble submitted",
			logging.String(logging.FieldItemID, session.ItemID),
			logging.String(logging.FieldSessionID, session.SessionID),
			logging.String("title", session.Title),
		)
		if nerr := e.notifier.NotifyScrobbled(ctx, session.Title); nerr != nil {
			e.logger.Warn("scrobble notification failed", logging.Error(nerr))
		}
		e.sink.Publish("Scrobbled", fmt.Sprintf("Marked as watched: %s", session.Title))

	case simkl.OutcomeRetryable:
		e.tracker.MarkSubmitted(session.ItemID, now)
		kind := simkl.ErrorKind(outcome, err)
		e.logger.Warn("scrobble submission failed, queuing for retry",
			logging.String(logging.FieldItemID, session.ItemID),
			logging.Error(err),
			logging.String("error_kind", kind),
		)
		e.enqueueScrobble(ctx, scrobble, kind)

	default:
		e.tracker.MarkSubmitted(session.ItemID, now)
		if simkl.IsNotAuthenticated(err) {
			e.setError("authentication required")
			e.logger.Error("scrobble rejected, credentials invalid",
				logging.String(logging.FieldItemID, session.ItemID),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "run 'mps auth' to sign in again"),
			)
			if nerr := e.notifier.NotifyAuthRequired(ctx); nerr != nil {
				e.logger.Warn("auth notification failed", logging.Error(nerr))
			}
			e.sink.Publish("Authentication Required", "Simkl rejected the stored credentials")
			return
		}
		e.setError("submission rejected")
		e.logger.Error("scrobble rejected permanently",
			logging.String(logging.FieldItemID, session.ItemID),
			logging.Error(err),
		)
		if nerr := e.notifier.NotifyError(ctx, err, "scrobble submission"); nerr != nil {
			e.logger.Warn("error notification failed", logging.Error(nerr))
		}
	}
}

func (e *Engine) enqueueScrobble(ctx context.Context, scrobble simkl.Scrobble, errorKind string) {
	payload, err := json.Marshal(scrobble)
	if err != nil {
		e.logger.Error("marshal scrobble payload failed", logging.Error(err))
		return
	}
	entry, err := e.backlog.Enqueue(ctx, scrobble.ItemID, scrobble.Title, string(payload), errorKind)
	if err != nil {
		e.setError("backlog persistence failed")
		e.logger.Error("backlog enqueue failed",
			logging.String(logging.FieldItemID, scrobble.ItemID),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check backlog database access"),
		)
		return
	}
	e.logger.Info("scrobble queued offline",
		logging.String(logging.FieldItemID, entry.ItemID),
		logging.Int("attempt_count", entry.AttemptCount),
	)
	if nerr := e.notifier.NotifyQueuedOffline(ctx, scrobble.Title); nerr != nil {
		e.logger.Warn("backlog notification failed", logging.Error(nerr))
	}
	e.sink.Publish("Queued", fmt.Sprintf("Offline, queued for later: %s", scrobble.Title))
}

// ProcessBacklog replays pending backlog entries in insertion order. The
// returned result reports how many entries were delivered, how many were
// attempted, and how many were moved to the dead-letter state.
func (e *Engine) ProcessBacklog(ctx context.Context) (backlog.Result, error) {
	e.mu.RLock()
	submitter := e.submitter
	e.mu.RUnlock()
	if submitter == nil {
		return backlog.Result{}, fmt.Errorf("scrobbler not initialized")
	}

	result, err := e.backlog.ProcessAll(ctx, func(ctx context.Context, entry *backlog.Entry) (backlog.Disposition, string, error) {
		var scrobble simkl.Scrobble
		if uerr := json.Unmarshal([]byte(entry.PayloadJSON), &scrobble); uerr != nil {
			return backlog.DispositionFatal, simkl.KindRemoteRejected, fmt.Errorf("decode payload: %w", uerr)
		}
		submitCtx, cancel := context.WithTimeout(ctx, e.submitTimeout)
		defer cancel()
		outcome, serr := submitter.SubmitWatched(submitCtx, scrobble)
		switch outcome {
		case simkl.OutcomeSuccess:
			return backlog.DispositionDelivered, "", nil
		case simkl.OutcomeRetryable:
			return backlog.DispositionRetry, simkl.ErrorKind(outcome, serr), serr
		default:
			return backlog.DispositionFatal, simkl.ErrorKind(outcome, serr), serr
		}
	}, e.cfg.Scrobbler.BacklogMaxAttempts, e.logger)
	if err != nil {
		return result, err
	}

	if result.Processed > 0 {
		if nerr := e.notifier.NotifyBacklogProcessed(ctx, result.Processed, result.Attempted); nerr != nil {
			e.logger.Warn("backlog notification failed", logging.Error(nerr))
		}
		e.sink.Publish("Backlog", fmt.Sprintf("Delivered %d queued scrobbles", result.Processed))
	}
	return result, nil
}
