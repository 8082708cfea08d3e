package ipc_test

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"mps/internal/backlog"
	"mps/internal/daemon"
	"mps/internal/ipc"
	"mps/internal/logging"
	"mps/internal/notifications"
	"mps/internal/scrobbler"
	"mps/internal/simkl"
	"mps/internal/testsupport"
)

type staticSubmitter struct {
	outcome simkl.Outcome
	err     error
}

func (s staticSubmitter) SubmitWatched(ctx context.Context, scrobble simkl.Scrobble) (simkl.Outcome, error) {
	return s.outcome, s.err
}

type fixture struct {
	daemon *daemon.Daemon
	store  *backlog.Store
	client *ipc.Client
	socket string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	thresholds := testsupport.MustOpenSettings(t, cfg)

	engine := scrobbler.New(cfg, store, thresholds, nil, notifications.NewService(cfg), nil,
		scrobbler.WithSubmitter(staticSubmitter{outcome: simkl.OutcomeSuccess}),
	)
	d, err := daemon.New(cfg, store, thresholds, engine, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}

	// Socket under a dedicated short dir; unix paths are length-limited.
	dir, err := os.MkdirTemp("", "ipc")
	if err != nil {
		t.Fatalf("temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	socket := filepath.Join(dir, "mps.sock")

	ctx, cancel := context.WithCancel(context.Background())
	server, err := ipc.NewServer(ctx, socket, d, logging.NewNop())
	if err != nil {
		t.Fatalf("ipc.NewServer: %v", err)
	}
	server.Serve()
	t.Cleanup(func() {
		cancel()
		server.Close()
		d.Stop()
	})

	client, err := ipc.Dial(socket)
	if err != nil {
		t.Fatalf("ipc.Dial: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	return &fixture{daemon: d, store: store, client: client, socket: socket}
}

func TestStatusOverSocket(t *testing.T) {
	f := newFixture(t)

	status, err := f.client.Status()
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.Running {
		t.Error("daemon should report not running before Start")
	}
	if status.EngineState != string(scrobbler.StateStopped) {
		t.Errorf("unexpected engine state %q", status.EngineState)
	}
	if status.Threshold != 80 {
		t.Errorf("unexpected threshold %d", status.Threshold)
	}
	if status.PID != os.Getpid() {
		t.Errorf("expected server pid %d, got %d", os.Getpid(), status.PID)
	}
	if status.BacklogDBPath == "" || status.LockPath == "" {
		t.Error("expected backlog and lock paths populated")
	}
}

func TestStartAndStopEngineOverSocket(t *testing.T) {
	f := newFixture(t)

	resp, err := f.client.Start()
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if !resp.Started {
		t.Fatalf("engine did not start: %s", resp.Message)
	}

	status, err := f.client.Status()
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.EngineState != string(scrobbler.StateRunning) {
		t.Fatalf("expected running engine, got %q", status.EngineState)
	}

	// A second start reports the failure in the response, not as an RPC
	// error, so the CLI can print it.
	again, err := f.client.Start()
	if err != nil {
		t.Fatalf("second start rpc: %v", err)
	}
	if again.Started {
		t.Fatal("second start should be rejected")
	}

	stop, err := f.client.Stop()
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if !stop.Stopped {
		t.Fatal("expected stop acknowledged")
	}
}

func TestThresholdRoundTripOverSocket(t *testing.T) {
	f := newFixture(t)

	if _, err := f.client.ThresholdSet(65); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := f.client.ThresholdGet()
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Threshold != 65 {
		t.Fatalf("expected threshold 65, got %d", got.Threshold)
	}

	if _, err := f.client.ThresholdSet(200); err == nil {
		t.Fatal("expected an error for an out-of-range threshold")
	}
}

func TestBacklogOperationsOverSocket(t *testing.T) {
	f := newFixture(t)

	testsupport.Enqueue(t, f.store, "mpv:/films/one.mkv", "One")
	testsupport.Enqueue(t, f.store, "mpv:/films/two.mkv", "Two")

	list, err := f.client.BacklogList(nil)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(list.Entries))
	}
	if list.Entries[0].Title != "One" || list.Entries[0].Status != "pending" {
		t.Fatalf("unexpected first entry %+v", list.Entries[0])
	}
	if list.Entries[0].FirstFailedAt == "" {
		t.Error("expected first_failed_at formatted")
	}
	if _, err := time.Parse(time.RFC3339, list.Entries[0].FirstFailedAt); err != nil {
		t.Errorf("first_failed_at not RFC3339: %v", err)
	}

	processed, err := f.client.BacklogProcess()
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if processed.Processed != 2 || processed.Attempted != 2 {
		t.Fatalf("unexpected process result %+v", processed)
	}

	empty, err := f.client.BacklogList(nil)
	if err != nil {
		t.Fatalf("list after process: %v", err)
	}
	if len(empty.Entries) != 0 {
		t.Fatalf("expected drained backlog, got %d entries", len(empty.Entries))
	}

	cleared, err := f.client.BacklogClearDead()
	if err != nil {
		t.Fatalf("clear dead: %v", err)
	}
	if cleared.Removed != 0 {
		t.Fatalf("expected nothing to clear, got %d", cleared.Removed)
	}
}

func TestTestNotificationWithoutTopic(t *testing.T) {
	f := newFixture(t)

	resp, err := f.client.TestNotification()
	if err != nil {
		t.Fatalf("test notification: %v", err)
	}
	if resp.Sent {
		t.Fatal("expected no notification without a configured topic")
	}
	if resp.Message != "ntfy topic not configured" {
		t.Fatalf("unexpected message %q", resp.Message)
	}
}

func TestThresholdAnswerWithoutPrompt(t *testing.T) {
	f := newFixture(t)

	if _, err := f.client.ThresholdAnswer(50); err == nil {
		t.Fatal("expected an error with no prompt pending")
	}
}

func TestDialMissingSocket(t *testing.T) {
	if _, err := ipc.Dial(filepath.Join(t.TempDir(), "absent.sock")); err == nil {
		t.Fatal("expected dial to fail for a missing socket")
	}
}

func TestSocketAcceptsRawConnections(t *testing.T) {
	f := newFixture(t)

	if _, err := os.Stat(f.socket); err != nil {
		t.Fatalf("socket should exist while serving: %v", err)
	}
	conn, err := net.Dial("unix", f.socket)
	if err != nil {
		t.Fatalf("socket not accepting: %v", err)
	}
	conn.Close()
}
