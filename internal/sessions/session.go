package sessions

import "time"

// State represents the lifecycle of a watch session.
type State string

const (
	StateTracking         State = "tracking"
	StateThresholdCrossed State = "threshold_crossed"
	StateSubmitted        State = "submitted"
	StateAbandoned        State = "abandoned"
)

// Terminal reports whether no further forward transition is possible.
func (s State) Terminal() bool {
	return s == StateSubmitted || s == StateAbandoned
}

// WatchSession is the tracked progress for one media item.
type WatchSession struct {
	SessionID      string
	ItemID         string
	Title          string
	WatchedSeconds float64
	TotalSeconds   float64
	State          State
	StartedAt      time.Time
	CrossedAt      time.Time

	lastPosition float64
	lastObserved time.Time
	finishedAt   time.Time
}

// Progress returns the watched share in [0,1], or 0 while the duration is
// unknown.
func (w *WatchSession) Progress() float64 {
	if w.TotalSeconds <= 0 {
		return 0
	}
	ratio := w.WatchedSeconds / w.TotalSeconds
	if ratio > 1 {
		return 1
	}
	return ratio
}

// ChangeKind classifies a state change emitted by the tracker.
type ChangeKind string

const (
	ChangeThresholdCrossed ChangeKind = "threshold_crossed"
	ChangeAbandoned        ChangeKind = "abandoned"
)

// StateChange is emitted when a session transitions. Session is a snapshot
// taken at transition time.
type StateChange struct {
	Kind    ChangeKind
	Session WatchSession
}
