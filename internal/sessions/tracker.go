package sessions

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"mps/internal/logging"
)

// ThresholdFunc returns the current completion threshold as a percentage.
// It is consulted at evaluation time, so threshold changes apply to future
// observations without re-evaluating sessions that already crossed.
type ThresholdFunc func() int

// Tracker maintains watch sessions for all currently observed media items.
type Tracker struct {
	threshold  ThresholdFunc
	inactivity time.Duration
	grace      time.Duration
	logger     *slog.Logger

	mu       sync.Mutex
	sessions map[string]*WatchSession
}

// NewTracker constructs a tracker. Sessions idle longer than inactivity are
// abandoned by Sweep; terminal sessions are evicted after grace.
func NewTracker(threshold ThresholdFunc, inactivity, grace time.Duration, logger *slog.Logger) *Tracker {
	return &Tracker{
		threshold:  threshold,
		inactivity: inactivity,
		grace:      grace,
		logger:     logging.NewComponentLogger(logger, "sessions"),
		sessions:   make(map[string]*WatchSession),
	}
}

// Observe feeds one player sample into the tracker and returns a state
// change when this sample caused one. Position and duration are seconds;
// duration may be zero while the player has not reported it yet.
func (t *Tracker) Observe(itemID, title string, position, duration float64, now time.Time) *StateChange {
	if itemID == "" {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	sess, ok := t.sessions[itemID]
	if ok && sess.State == StateAbandoned {
		// The user came back to an abandoned item; start over.
		delete(t.sessions, itemID)
		ok = false
	}
	if !ok {
		// Playback may already be underway when monitoring begins, so the
		// first observed position counts as watched.
		watched := position
		if watched < 0 {
			watched = 0
		}
		sess = &WatchSession{
			SessionID:      uuid.NewString(),
			ItemID:         itemID,
			Title:          title,
			State:          StateTracking,
			StartedAt:      now,
			WatchedSeconds: watched,
			lastPosition:   position,
			lastObserved:   now,
		}
		t.sessions[itemID] = sess
		t.logger.Debug("session started",
			logging.String(logging.FieldSessionID, sess.SessionID),
			logging.String(logging.FieldItemID, itemID),
			logging.String("title", title),
		)
	}

	sess.lastObserved = now
	if title != "" && sess.Title == "" {
		sess.Title = title
	}
	if duration > 0 {
		sess.TotalSeconds = duration
	}
	if delta := position - sess.lastPosition; delta > 0 {
		sess.WatchedSeconds += delta
	}
	sess.lastPosition = position

	if sess.State != StateTracking {
		return nil
	}
	if sess.TotalSeconds <= 0 {
		// Crossing cannot be evaluated until the duration is known.
		return nil
	}
	if sess.WatchedSeconds/sess.TotalSeconds < float64(t.threshold())/100 {
		return nil
	}

	sess.State = StateThresholdCrossed
	sess.CrossedAt = now
	t.logger.Info("watch threshold crossed",
		logging.String(logging.FieldSessionID, sess.SessionID),
		logging.String(logging.FieldItemID, sess.ItemID),
		logging.String("title", sess.Title),
		logging.Float64("watched_seconds", sess.WatchedSeconds),
		logging.Float64("total_seconds", sess.TotalSeconds),
	)
	snapshot := *sess
	return &StateChange{Kind: ChangeThresholdCrossed, Session: snapshot}
}

// MarkSubmitted records that the crossing for an item was successfully
// scrobbled. Unknown items are ignored.
func (t *Tracker) MarkSubmitted(itemID string, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	sess, ok := t.sessions[itemID]
	if !ok || sess.State.Terminal() {
		return
	}
	sess.State = StateSubmitted
	sess.finishedAt = now
}

// Sweep abandons sessions without recent observations and evicts terminal
// sessions past the grace period. It returns the abandonment changes.
func (t *Tracker) Sweep(now time.Time) []StateChange {
	t.mu.Lock()
	defer t.mu.Unlock()

	var changes []StateChange
	for itemID, sess := range t.sessions {
		if !sess.State.Terminal() {
			if now.Sub(sess.lastObserved) >= t.inactivity {
				sess.State = StateAbandoned
				sess.finishedAt = now
				snapshot := *sess
				changes = append(changes, StateChange{Kind: ChangeAbandoned, Session: snapshot})
				t.logger.Debug("session abandoned",
					logging.String(logging.FieldSessionID, sess.SessionID),
					logging.String(logging.FieldItemID, sess.ItemID),
				)
			}
			continue
		}
		reference := sess.finishedAt
		if sess.lastObserved.After(reference) {
			reference = sess.lastObserved
		}
		if now.Sub(reference) >= t.grace {
			delete(t.sessions, itemID)
		}
	}
	return changes
}

// Active returns the number of sessions currently held in memory.
func (t *Tracker) Active() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sessions)
}

// Snapshot returns copies of all current sessions, for status reporting.
func (t *Tracker) Snapshot() []WatchSession {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]WatchSession, 0, len(t.sessions))
	for _, sess := range t.sessions {
		out = append(out, *sess)
	}
	return out
}
