package backlog

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a backlog entry.
type Status string

const (
	// StatusPending entries are replayed by ProcessAll.
	StatusPending Status = "pending"
	// StatusDead entries exhausted the attempt budget or failed fatally on
	// replay; they are kept for inspection, never retried automatically.
	StatusDead Status = "dead"
)

var allStatuses = []Status{StatusPending, StatusDead}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	for _, status := range allStatuses {
		if status == normalized {
			return status, true
		}
	}
	return "", false
}

// Entry is one queued submission persisted in SQLite.
type Entry struct {
	ID            int64
	ItemID        string
	Title         string
	PayloadJSON   string
	Status        Status
	AttemptCount  int
	FirstFailedAt time.Time
	LastAttemptAt *time.Time
	LastErrorKind string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Result aggregates one ProcessAll pass.
type Result struct {
	// Processed is the number of entries delivered and removed.
	Processed int
	// Attempted is the number of entries given an attempt this pass.
	Attempted int
	// Dead is the number of entries moved to the dead state this pass.
	Dead int
	// Failed reports whether any attempt in the pass failed.
	Failed bool
}

// HealthSummary describes aggregated backlog counts.
type HealthSummary struct {
	Total   int
	Pending int
	Dead    int
}
