package ipc

import "time"

// StartRequest asks the daemon to begin monitoring.
type StartRequest struct{}

// StartResponse reports the outcome of a start request.
type StartResponse struct {
	Started bool   `json:"started"`
	Message string `json:"message"`
}

// StopRequest asks the daemon to stop monitoring.
type StopRequest struct{}

// StopResponse reports the outcome of a stop request.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}

// StatusRequest asks for daemon diagnostics.
type StatusRequest struct{}

// SessionInfo is the wire form of one active watch session.
type SessionInfo struct {
	SessionID      string  `json:"session_id"`
	ItemID         string  `json:"item_id"`
	Title          string  `json:"title"`
	WatchedSeconds float64 `json:"watched_seconds"`
	TotalSeconds   float64 `json:"total_seconds"`
	State          string  `json:"state"`
}

// StatusResponse carries daemon diagnostics.
type StatusResponse struct {
	Running         bool          `json:"running"`
	EngineState     string        `json:"engine_state"`
	Detail          string        `json:"detail"`
	Threshold       int           `json:"threshold"`
	Sessions        []SessionInfo `json:"sessions,omitempty"`
	LastScrobbled   string        `json:"last_scrobbled,omitempty"`
	LastScrobbledAt time.Time     `json:"last_scrobbled_at,omitempty"`
	BacklogTotal    int           `json:"backlog_total"`
	BacklogPending  int           `json:"backlog_pending"`
	BacklogDead     int           `json:"backlog_dead"`
	BacklogDBPath   string        `json:"backlog_db_path"`
	LockPath        string        `json:"lock_path"`
	PID             int           `json:"pid"`
}

// BacklogProcessRequest asks for an immediate backlog replay.
type BacklogProcessRequest struct{}

// BacklogProcessResponse reports the outcome of one replay pass.
type BacklogProcessResponse struct {
	Processed int  `json:"processed"`
	Attempted int  `json:"attempted"`
	Dead      int  `json:"dead"`
	Failed    bool `json:"failed"`
}

// BacklogListRequest filters backlog entries by optional statuses.
type BacklogListRequest struct {
	Statuses []string `json:"statuses,omitempty"`
}

// BacklogEntry is the wire form of one backlog entry.
type BacklogEntry struct {
	ID            int64  `json:"id"`
	ItemID        string `json:"item_id"`
	Title         string `json:"title"`
	Status        string `json:"status"`
	AttemptCount  int    `json:"attempt_count"`
	LastErrorKind string `json:"last_error_kind,omitempty"`
	FirstFailedAt string `json:"first_failed_at,omitempty"`
	LastAttemptAt string `json:"last_attempt_at,omitempty"`
}

// BacklogListResponse carries backlog entries.
type BacklogListResponse struct {
	Entries []BacklogEntry `json:"entries"`
}

// BacklogClearDeadRequest removes dead-letter entries.
type BacklogClearDeadRequest struct{}

// BacklogClearDeadResponse reports how many entries were removed.
type BacklogClearDeadResponse struct {
	Removed int64 `json:"removed"`
}

// ThresholdGetRequest asks for the active threshold.
type ThresholdGetRequest struct{}

// ThresholdGetResponse carries the active threshold percentage.
type ThresholdGetResponse struct {
	Threshold int `json:"threshold"`
}

// ThresholdSetRequest updates the threshold.
type ThresholdSetRequest struct {
	Threshold int `json:"threshold"`
}

// ThresholdSetResponse confirms a threshold update.
type ThresholdSetResponse struct {
	Threshold int `json:"threshold"`
}

// ThresholdAnswerRequest answers a pending threshold prompt.
type ThresholdAnswerRequest struct {
	Threshold int `json:"threshold"`
}

// ThresholdAnswerResponse confirms a prompt answer was accepted.
type ThresholdAnswerResponse struct {
	Accepted bool `json:"accepted"`
}

// TestNotificationRequest triggers a notification test.
type TestNotificationRequest struct{}

// TestNotificationResponse reports the outcome of a notification test.
type TestNotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}
