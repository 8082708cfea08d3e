package scrobbler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"mps/internal/backlog"
	"mps/internal/config"
	"mps/internal/credentials"
	"mps/internal/logging"
	"mps/internal/notifications"
	"mps/internal/players"
	"mps/internal/sessions"
	"mps/internal/settings"
	"mps/internal/simkl"
)

// Submitter delivers a single completed watch to the remote service.
type Submitter interface {
	SubmitWatched(ctx context.Context, scrobble simkl.Scrobble) (simkl.Outcome, error)
}

// Engine coordinates player polling, session tracking, scrobble submission,
// and backlog replay.
type Engine struct {
	cfg       *config.Config
	tracker   *sessions.Tracker
	backlog   *backlog.Store
	settings  *settings.Store
	creds     credentials.Provider
	sources   []players.Source
	notifier  notifications.Service
	sink      *notifications.Sink
	logger    *slog.Logger
	clock     func() time.Time
	submitter Submitter

	pollInterval    time.Duration
	backlogInterval time.Duration
	submitTimeout   time.Duration

	mu            sync.RWMutex
	running       bool
	cancel        context.CancelFunc
	wg            sync.WaitGroup
	stateDetail   string
	errored       bool
	lastScrobbled *ScrobbleRecord

	promptMu sync.Mutex
	prompt   chan int
}

// ScrobbleRecord describes the most recent successful submission.
type ScrobbleRecord struct {
	Title string
	At    time.Time
}

// Option configures optional Engine behavior.
type Option func(*Engine)

// WithSubmitter replaces the remote submitter (used in tests).
func WithSubmitter(s Submitter) Option {
	return func(e *Engine) { e.submitter = s }
}

// WithClock replaces the time source (used in tests).
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) { e.clock = clock }
}

// WithSources replaces the player sources polled by the monitor loop.
func WithSources(sources ...players.Source) Option {
	return func(e *Engine) { e.sources = sources }
}

// New constructs an engine. Initialize must be called before Start so
// credentials are resolved and the remote client is bound.
func New(cfg *config.Config, store *backlog.Store, thresholds *settings.Store, creds credentials.Provider, notifier notifications.Service, logger *slog.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = logging.NewNop()
	}
	e := &Engine{
		cfg:             cfg,
		backlog:         store,
		settings:        thresholds,
		creds:           creds,
		notifier:        notifier,
		sink:            notifications.NewSink(logger),
		logger:          logging.NewComponentLogger(logger, "scrobbler"),
		clock:           time.Now,
		pollInterval:    time.Duration(cfg.Scrobbler.PollInterval) * time.Second,
		backlogInterval: time.Duration(cfg.Scrobbler.BacklogInterval) * time.Second,
		submitTimeout:   time.Duration(cfg.Simkl.RequestTimeout) * time.Second,
		stateDetail:     "not started",
	}
	if e.submitTimeout <= 0 {
		e.submitTimeout = 30 * time.Second
	}
	e.tracker = sessions.NewTracker(
		thresholds.Threshold,
		time.Duration(cfg.Scrobbler.InactivityTimeout)*time.Second,
		time.Duration(cfg.Scrobbler.EvictionGrace)*time.Second,
		e.logger,
	)
	e.sources = []players.Source{players.NewMPV(cfg.Players.MPVSocket)}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Initialize resolves credentials and binds the remote client. A reachable
// service is not required; submissions that fail while offline land in the
// backlog. Missing credentials are an error so the caller can direct the
// user to authenticate.
func (e *Engine) Initialize(ctx context.Context) error {
	e.mu.RLock()
	initialized := e.submitter != nil
	e.mu.RUnlock()
	if initialized {
		return nil
	}
	creds, err := e.creds.Credentials()
	if err != nil {
		return fmt.Errorf("load credentials: %w", err)
	}
	if !creds.Authenticated() {
		return simkl.ErrNotAuthenticated
	}
	client := simkl.NewClient(e.cfg.Simkl.BaseURL, creds.ClientID, creds.AccessToken, nil, e.submitTimeout)

	checkCtx, cancel := context.WithTimeout(ctx, e.submitTimeout)
	defer cancel()
	if _, err := client.GetUserSettings(checkCtx); err != nil {
		if simkl.IsNotAuthenticated(err) {
			return err
		}
		e.logger.Warn("remote service unreachable, continuing offline",
			logging.Error(err),
			logging.String(logging.FieldEventType, "connectivity_check_failed"),
		)
	}
	e.mu.Lock()
	e.submitter = client
	e.mu.Unlock()
	return nil
}

// SetNotificationCallback registers an in-process callback that receives the
// same user-facing messages as the push channel. A nil callback detaches it.
func (e *Engine) SetNotificationCallback(cb notifications.Callback) {
	e.sink.SetCallback(cb)
}

// Threshold returns the active watch-completion threshold percentage.
func (e *Engine) Threshold() int {
	return e.settings.Threshold()
}

// SetThreshold validates and persists a new threshold percentage. Sessions
// already past their crossing keep it; in-flight sessions are judged against
// the new value from the next observation on.
func (e *Engine) SetThreshold(value int) error {
	return e.settings.SetThreshold(value)
}
