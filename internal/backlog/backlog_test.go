package backlog_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"mps/internal/backlog"
)

func openTestStore(t *testing.T) *backlog.Store {
	t.Helper()
	store, err := backlog.OpenPath(filepath.Join(t.TempDir(), backlog.DBFileName))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestEnqueueCreatesEntryWithSingleAttempt(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	entry, err := store.Enqueue(ctx, "mpv:/films/example.mkv", "Example", `{"title":"Example"}`, "network_transient")
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if entry.AttemptCount != 1 {
		t.Fatalf("expected attempt count 1 on creation, got %d", entry.AttemptCount)
	}
	if entry.Status != backlog.StatusPending {
		t.Fatalf("expected pending status, got %s", entry.Status)
	}
	if entry.FirstFailedAt.IsZero() {
		t.Fatal("expected first_failed_at to be set")
	}
	if entry.LastErrorKind != "network_transient" {
		t.Fatalf("expected error kind recorded, got %q", entry.LastErrorKind)
	}
}

func TestEnqueueSameItemIncrementsAttempts(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	first, err := store.Enqueue(ctx, "item", "Example", `{}`, "network_transient")
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	second, err := store.Enqueue(ctx, "item", "Example", `{}`, "server_error")
	if err != nil {
		t.Fatalf("re-enqueue: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("expected the same entry to be updated, got new id %d", second.ID)
	}
	if second.AttemptCount != 2 {
		t.Fatalf("expected attempt count 2, got %d", second.AttemptCount)
	}
	if second.LastErrorKind != "server_error" {
		t.Fatalf("expected latest error kind, got %q", second.LastErrorKind)
	}

	count, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one pending entry, got %d", count)
	}
}

func TestEnqueueRevivesDeadEntry(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if _, err := store.Enqueue(ctx, "item", "Example", `{}`, "network_transient"); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	fatal := func(ctx context.Context, entry *backlog.Entry) (backlog.Disposition, string, error) {
		return backlog.DispositionFatal, "remote_rejected", errors.New("rejected")
	}
	if _, err := store.ProcessAll(ctx, fatal, 12, nil); err != nil {
		t.Fatalf("process: %v", err)
	}

	revived, err := store.Enqueue(ctx, "item", "Example", `{}`, "network_transient")
	if err != nil {
		t.Fatalf("revive: %v", err)
	}
	if revived.Status != backlog.StatusPending {
		t.Fatalf("expected revived entry to be pending, got %s", revived.Status)
	}
	if revived.AttemptCount != 1 {
		t.Fatalf("expected revived entry to restart attempts, got %d", revived.AttemptCount)
	}
}

func TestProcessAllEmptyBacklog(t *testing.T) {
	store := openTestStore(t)

	result, err := store.ProcessAll(context.Background(), func(ctx context.Context, entry *backlog.Entry) (backlog.Disposition, string, error) {
		t.Fatal("submit called for empty backlog")
		return backlog.DispositionRetry, "", nil
	}, 12, nil)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if result.Processed != 0 || result.Attempted != 0 || result.Failed {
		t.Fatalf("expected zero result for empty backlog, got %+v", result)
	}
}

func TestProcessAllDeliversInInsertionOrder(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"first", "second", "third"} {
		if _, err := store.Enqueue(ctx, id, id, `{}`, "network_transient"); err != nil {
			t.Fatalf("enqueue %s: %v", id, err)
		}
	}

	var order []string
	result, err := store.ProcessAll(ctx, func(ctx context.Context, entry *backlog.Entry) (backlog.Disposition, string, error) {
		order = append(order, entry.ItemID)
		return backlog.DispositionDelivered, "", nil
	}, 12, nil)
	if err != nil {
		t.Fatalf("process: %v", err)
	}

	if result.Processed != 3 || result.Attempted != 3 || result.Failed {
		t.Fatalf("unexpected result %+v", result)
	}
	want := []string{"first", "second", "third"}
	for i, id := range want {
		if order[i] != id {
			t.Fatalf("expected insertion order %v, got %v", want, order)
		}
	}

	count, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected empty backlog after delivery, got %d", count)
	}
}

func TestProcessAllSecondPassIsIdempotent(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if _, err := store.Enqueue(ctx, "item", "Example", `{}`, "network_transient"); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	deliver := func(ctx context.Context, entry *backlog.Entry) (backlog.Disposition, string, error) {
		return backlog.DispositionDelivered, "", nil
	}
	if _, err := store.ProcessAll(ctx, deliver, 12, nil); err != nil {
		t.Fatalf("first pass: %v", err)
	}

	result, err := store.ProcessAll(ctx, deliver, 12, nil)
	if err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if result.Attempted != 0 {
		t.Fatalf("second pass attempted %d entries, expected 0", result.Attempted)
	}
}

func TestProcessAllRetryKeepsEntryPending(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if _, err := store.Enqueue(ctx, "item", "Example", `{}`, "network_transient"); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	result, err := store.ProcessAll(ctx, func(ctx context.Context, entry *backlog.Entry) (backlog.Disposition, string, error) {
		return backlog.DispositionRetry, "server_error", errors.New("api returned 503")
	}, 12, nil)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if !result.Failed || result.Processed != 0 || result.Attempted != 1 {
		t.Fatalf("unexpected result %+v", result)
	}

	entry, err := store.GetByItemID(ctx, "item")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if entry.Status != backlog.StatusPending {
		t.Fatalf("expected entry still pending, got %s", entry.Status)
	}
	if entry.AttemptCount != 2 {
		t.Fatalf("expected attempt count 2 after one replay, got %d", entry.AttemptCount)
	}
	if entry.LastErrorKind != "server_error" {
		t.Fatalf("expected updated error kind, got %q", entry.LastErrorKind)
	}
	if entry.LastAttemptAt == nil {
		t.Fatal("expected last_attempt_at to be recorded")
	}
}

func TestProcessAllDeadLettersAtMaxAttempts(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if _, err := store.Enqueue(ctx, "item", "Example", `{}`, "network_transient"); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	retry := func(ctx context.Context, entry *backlog.Entry) (backlog.Disposition, string, error) {
		return backlog.DispositionRetry, "network_transient", errors.New("connection refused")
	}

	// Entry was created with attempt 1; two more passes reach the budget of 3.
	if _, err := store.ProcessAll(ctx, retry, 3, nil); err != nil {
		t.Fatalf("first pass: %v", err)
	}
	result, err := store.ProcessAll(ctx, retry, 3, nil)
	if err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if result.Dead != 1 {
		t.Fatalf("expected entry dead-lettered at attempt budget, got %+v", result)
	}

	entry, err := store.GetByItemID(ctx, "item")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if entry.Status != backlog.StatusDead {
		t.Fatalf("expected dead status, got %s", entry.Status)
	}

	// Dead entries are not retried.
	third, err := store.ProcessAll(ctx, retry, 3, nil)
	if err != nil {
		t.Fatalf("third pass: %v", err)
	}
	if third.Attempted != 0 {
		t.Fatalf("dead entry was retried: %+v", third)
	}
}

func TestHealthCountsByStatus(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if _, err := store.Enqueue(ctx, "pending-item", "Pending", `{}`, "network_transient"); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if _, err := store.Enqueue(ctx, "dead-item", "Dead", `{}`, "network_transient"); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if _, err := store.ProcessAll(ctx, func(ctx context.Context, entry *backlog.Entry) (backlog.Disposition, string, error) {
		if entry.ItemID == "dead-item" {
			return backlog.DispositionFatal, "remote_rejected", errors.New("rejected")
		}
		return backlog.DispositionRetry, "network_transient", errors.New("offline")
	}, 12, nil); err != nil {
		t.Fatalf("process: %v", err)
	}

	health, err := store.Health(ctx)
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	if health.Total != 2 || health.Pending != 1 || health.Dead != 1 {
		t.Fatalf("unexpected health %+v", health)
	}
}

func TestClearDeadRemovesOnlyDeadEntries(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if _, err := store.Enqueue(ctx, "pending-item", "Pending", `{}`, "network_transient"); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if _, err := store.Enqueue(ctx, "dead-item", "Dead", `{}`, "network_transient"); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if _, err := store.ProcessAll(ctx, func(ctx context.Context, entry *backlog.Entry) (backlog.Disposition, string, error) {
		if entry.ItemID == "dead-item" {
			return backlog.DispositionFatal, "remote_rejected", errors.New("rejected")
		}
		return backlog.DispositionRetry, "network_transient", errors.New("offline")
	}, 12, nil); err != nil {
		t.Fatalf("process: %v", err)
	}

	removed, err := store.ClearDead(ctx)
	if err != nil {
		t.Fatalf("clear dead: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected one dead entry removed, got %d", removed)
	}
	health, err := store.Health(ctx)
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	if health.Total != 1 || health.Pending != 1 {
		t.Fatalf("pending entry disturbed by clear-dead: %+v", health)
	}
}

func TestOpenPathPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, backlog.DBFileName)

	store, err := backlog.OpenPath(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := store.Enqueue(context.Background(), "item", "Example", `{"title":"Example"}`, "network_transient"); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := backlog.OpenPath(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	entry, err := reopened.GetByItemID(context.Background(), "item")
	if err != nil {
		t.Fatalf("get after reopen: %v", err)
	}
	if entry.PayloadJSON != `{"title":"Example"}` {
		t.Fatalf("payload not persisted: %q", entry.PayloadJSON)
	}
}
