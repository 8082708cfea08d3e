package scrobbler_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"mps/internal/backlog"
	"mps/internal/config"
	"mps/internal/notifications"
	"mps/internal/players"
	"mps/internal/scrobbler"
	"mps/internal/settings"
	"mps/internal/simkl"
	"mps/internal/testsupport"
)

type fakeSubmitter struct {
	mu       sync.Mutex
	outcome  simkl.Outcome
	err      error
	received []simkl.Scrobble
}

func (f *fakeSubmitter) SubmitWatched(ctx context.Context, scrobble simkl.Scrobble) (simkl.Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.received = append(f.received, scrobble)
	return f.outcome, f.err
}

func (f *fakeSubmitter) submissions() []simkl.Scrobble {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]simkl.Scrobble(nil), f.received...)
}

// scriptedSource replays a fixed sequence of poll results, then goes idle.
type scriptedSource struct {
	mu      sync.Mutex
	samples [][]players.Sample
}

func (s *scriptedSource) Name() string { return "scripted" }

func (s *scriptedSource) Poll(ctx context.Context) ([]players.Sample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.samples) == 0 {
		return nil, nil
	}
	next := s.samples[0]
	s.samples = s.samples[1:]
	return next, nil
}

type engineFixture struct {
	engine    *scrobbler.Engine
	store     *backlog.Store
	settings  *settings.Store
	submitter *fakeSubmitter
	cfg       *config.Config
	now       time.Time
	nowMu     sync.Mutex
}

func (f *engineFixture) clock() time.Time {
	f.nowMu.Lock()
	defer f.nowMu.Unlock()
	return f.now
}

func newEngineFixture(t *testing.T, source players.Source, submitter *fakeSubmitter) *engineFixture {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	f := &engineFixture{
		store:     testsupport.MustOpenStore(t, cfg),
		settings:  testsupport.MustOpenSettings(t, cfg),
		submitter: submitter,
		cfg:       cfg,
		now:       time.Date(2026, 5, 1, 20, 0, 0, 0, time.UTC),
	}
	opts := []scrobbler.Option{
		scrobbler.WithSubmitter(submitter),
		scrobbler.WithClock(f.clock),
	}
	if source != nil {
		opts = append(opts, scrobbler.WithSources(source))
	}
	f.engine = scrobbler.New(cfg, f.store, f.settings, nil, notifications.NewService(cfg), nil, opts...)
	return f
}

// playbackSamples builds a single poll batch walking one item through the
// given positions. The tracker accrues watched time from position deltas, so
// one poll cycle is enough to carry a session past its threshold.
func playbackSamples(itemID, title string, duration float64, positions ...float64) [][]players.Sample {
	batch := make([]players.Sample, 0, len(positions))
	for _, pos := range positions {
		batch = append(batch, players.Sample{
			ItemID:   itemID,
			Title:    title,
			Position: pos,
			Duration: duration,
		})
	}
	return [][]players.Sample{batch}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before timeout")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestEngineSubmitsWhenThresholdCrossed(t *testing.T) {
	submitter := &fakeSubmitter{outcome: simkl.OutcomeSuccess}
	// 100s long item watched in 10s jumps; crossing happens at 80%.
	source := &scriptedSource{samples: playbackSamples("mpv:/films/example.mkv", "Example", 100,
		0, 10, 20, 30, 40, 50, 60, 70, 80, 90)}
	f := newEngineFixture(t, source, submitter)

	if err := f.engine.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer f.engine.Stop()

	waitFor(t, 5*time.Second, func() bool { return len(submitter.submissions()) > 0 })

	subs := submitter.submissions()
	if len(subs) != 1 {
		t.Fatalf("expected exactly one submission, got %d", len(subs))
	}
	if subs[0].ItemID != "mpv:/films/example.mkv" || subs[0].Title != "Example" {
		t.Fatalf("unexpected scrobble %+v", subs[0])
	}

	status := f.engine.Status(context.Background())
	if status.State != scrobbler.StateRunning {
		t.Fatalf("expected running state, got %s", status.State)
	}
	if status.LastScrobbled == nil || status.LastScrobbled.Title != "Example" {
		t.Fatalf("expected last scrobble recorded, got %+v", status.LastScrobbled)
	}
}

func TestEngineQueuesRetryableFailures(t *testing.T) {
	submitter := &fakeSubmitter{outcome: simkl.OutcomeRetryable, err: errors.New("server error: api returned 503")}
	source := &scriptedSource{samples: playbackSamples("mpv:/films/example.mkv", "Example", 100,
		0, 20, 40, 60, 85)}
	f := newEngineFixture(t, source, submitter)

	if err := f.engine.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer f.engine.Stop()

	waitFor(t, 5*time.Second, func() bool {
		n, err := f.store.Count(context.Background())
		return err == nil && n == 1
	})

	entry, err := f.store.GetByItemID(context.Background(), "mpv:/films/example.mkv")
	if err != nil {
		t.Fatalf("get backlog entry: %v", err)
	}
	if entry.LastErrorKind != simkl.KindServerError {
		t.Fatalf("expected server_error kind, got %q", entry.LastErrorKind)
	}
	if len(submitter.submissions()) != 1 {
		t.Fatalf("crossing should submit once, got %d", len(submitter.submissions()))
	}
}

func TestEngineEntersErrorStateOnAuthRejection(t *testing.T) {
	submitter := &fakeSubmitter{outcome: simkl.OutcomeFatal, err: simkl.ErrNotAuthenticated}
	source := &scriptedSource{samples: playbackSamples("mpv:/films/example.mkv", "Example", 100,
		0, 30, 60, 90)}
	f := newEngineFixture(t, source, submitter)

	if err := f.engine.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer f.engine.Stop()

	waitFor(t, 5*time.Second, func() bool {
		return f.engine.Status(context.Background()).State == scrobbler.StateError
	})

	status := f.engine.Status(context.Background())
	if status.Detail != "authentication required" {
		t.Fatalf("unexpected error detail %q", status.Detail)
	}

	// Nothing lands in the backlog; re-auth is required, retrying is useless.
	count, err := f.store.Count(context.Background())
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("auth failures must not be queued, got %d entries", count)
	}
}

func TestEngineEntersErrorStateOnPermanentRejection(t *testing.T) {
	submitter := &fakeSubmitter{outcome: simkl.OutcomeFatal, err: errors.New("submission rejected: api returned 422")}
	source := &scriptedSource{samples: playbackSamples("mpv:/films/example.mkv", "Example", 100,
		0, 30, 60, 90)}
	f := newEngineFixture(t, source, submitter)

	if err := f.engine.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer f.engine.Stop()

	waitFor(t, 5*time.Second, func() bool {
		return f.engine.Status(context.Background()).State == scrobbler.StateError
	})

	status := f.engine.Status(context.Background())
	if status.Detail != "submission rejected" {
		t.Fatalf("unexpected error detail %q", status.Detail)
	}

	count, err := f.store.Count(context.Background())
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("permanent rejections must not be queued, got %d entries", count)
	}
}

func TestEngineStartRequiresInitialization(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	thresholds := testsupport.MustOpenSettings(t, cfg)

	engine := scrobbler.New(cfg, store, thresholds, nil, notifications.NewService(cfg), nil)
	if err := engine.Start(context.Background()); err == nil {
		t.Fatal("expected start to fail before initialization")
	}
}

func TestEngineDoubleStartAndIdempotentStop(t *testing.T) {
	f := newEngineFixture(t, &scriptedSource{}, &fakeSubmitter{outcome: simkl.OutcomeSuccess})

	if err := f.engine.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := f.engine.Start(context.Background()); err == nil {
		t.Fatal("expected second start to fail")
	}

	f.engine.Stop()
	f.engine.Stop() // no-op

	status := f.engine.Status(context.Background())
	if status.State != scrobbler.StateStopped {
		t.Fatalf("expected stopped state, got %s", status.State)
	}

	// A stopped engine can be started again.
	if err := f.engine.Start(context.Background()); err != nil {
		t.Fatalf("restart: %v", err)
	}
	f.engine.Stop()
}

func TestProcessBacklogDeliversQueuedEntries(t *testing.T) {
	submitter := &fakeSubmitter{outcome: simkl.OutcomeSuccess}
	f := newEngineFixture(t, nil, submitter)

	for i := 0; i < 3; i++ {
		testsupport.Enqueue(t, f.store, fmt.Sprintf("mpv:/films/item-%d.mkv", i), fmt.Sprintf("Item %d", i))
	}

	result, err := f.engine.ProcessBacklog(context.Background())
	if err != nil {
		t.Fatalf("process backlog: %v", err)
	}
	if result.Processed != 3 || result.Attempted != 3 {
		t.Fatalf("unexpected result %+v", result)
	}
	if len(submitter.submissions()) != 3 {
		t.Fatalf("expected 3 submissions, got %d", len(submitter.submissions()))
	}

	count, err := f.store.Count(context.Background())
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected backlog drained, got %d", count)
	}
}

func TestProcessBacklogDeadLettersUndecodablePayload(t *testing.T) {
	submitter := &fakeSubmitter{outcome: simkl.OutcomeSuccess}
	f := newEngineFixture(t, nil, submitter)

	if _, err := f.store.Enqueue(context.Background(), "corrupt", "Corrupt", "not json", "network_transient"); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	result, err := f.engine.ProcessBacklog(context.Background())
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if result.Dead != 1 {
		t.Fatalf("expected corrupt entry dead-lettered, got %+v", result)
	}
	if len(submitter.submissions()) != 0 {
		t.Fatal("corrupt payload must not reach the submitter")
	}
}

func TestSetThresholdPersists(t *testing.T) {
	f := newEngineFixture(t, nil, &fakeSubmitter{outcome: simkl.OutcomeSuccess})

	if err := f.engine.SetThreshold(70); err != nil {
		t.Fatalf("set threshold: %v", err)
	}
	if got := f.engine.Threshold(); got != 70 {
		t.Fatalf("expected threshold 70, got %d", got)
	}
	if err := f.engine.SetThreshold(0); !errors.Is(err, settings.ErrInvalidThreshold) {
		t.Fatalf("expected ErrInvalidThreshold, got %v", err)
	}
}

func TestNotificationCallbackReceivesScrobbleMessage(t *testing.T) {
	submitter := &fakeSubmitter{outcome: simkl.OutcomeSuccess}
	source := &scriptedSource{samples: playbackSamples("mpv:/films/example.mkv", "Example", 100,
		0, 30, 60, 90)}
	f := newEngineFixture(t, source, submitter)

	var mu sync.Mutex
	var messages []string
	f.engine.SetNotificationCallback(func(title, message string) {
		mu.Lock()
		messages = append(messages, title+": "+message)
		mu.Unlock()
	})

	if err := f.engine.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer f.engine.Stop()

	waitFor(t, 5*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		for _, m := range messages {
			if m == "Scrobbled: Marked as watched: Example" {
				return true
			}
		}
		return false
	})
}

func TestPromptThresholdAnswered(t *testing.T) {
	f := newEngineFixture(t, nil, &fakeSubmitter{outcome: simkl.OutcomeSuccess})

	type promptResult struct {
		value int
		err   error
	}
	done := make(chan promptResult, 1)
	go func() {
		v, err := f.engine.PromptThreshold(context.Background())
		done <- promptResult{v, err}
	}()

	// The prompt registers asynchronously; retry until the answer lands.
	waitFor(t, 2*time.Second, func() bool {
		return f.engine.AnswerThreshold(75) == nil
	})

	res := <-done
	if res.err != nil {
		t.Fatalf("prompt: %v", res.err)
	}
	if res.value != 75 {
		t.Fatalf("expected answer 75, got %d", res.value)
	}
	if got := f.engine.Threshold(); got != 75 {
		t.Fatalf("expected threshold persisted, got %d", got)
	}
}

func TestPromptThresholdTimesOut(t *testing.T) {
	f := newEngineFixture(t, nil, &fakeSubmitter{outcome: simkl.OutcomeSuccess})
	f.cfg.Scrobbler.PromptTimeout = 1

	start := time.Now()
	_, err := f.engine.PromptThreshold(context.Background())
	if !errors.Is(err, scrobbler.ErrPromptTimeout) {
		t.Fatalf("expected prompt timeout, got %v", err)
	}
	if time.Since(start) < time.Second {
		t.Fatal("prompt returned before its timeout elapsed")
	}
	if got := f.engine.Threshold(); got != settings.DefaultThreshold {
		t.Fatalf("timeout must not change the threshold, got %d", got)
	}
}

func TestAnswerThresholdWithoutPrompt(t *testing.T) {
	f := newEngineFixture(t, nil, &fakeSubmitter{outcome: simkl.OutcomeSuccess})

	if err := f.engine.AnswerThreshold(50); !errors.Is(err, scrobbler.ErrNoPrompt) {
		t.Fatalf("expected ErrNoPrompt, got %v", err)
	}
	if err := f.engine.AnswerThreshold(500); !errors.Is(err, settings.ErrInvalidThreshold) {
		t.Fatalf("expected ErrInvalidThreshold, got %v", err)
	}
}
