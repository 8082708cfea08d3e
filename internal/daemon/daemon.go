package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/gofrs/flock"

	"mps/internal/backlog"
	"mps/internal/config"
	"mps/internal/logging"
	"mps/internal/notifications"
	"mps/internal/scrobbler"
	"mps/internal/settings"
)

// Daemon coordinates the scrobbler engine and enforces single-instance
// execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *backlog.Store
	settings *settings.Store
	engine   *scrobbler.Engine
	logPath  string

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running       bool
	Engine        scrobbler.Summary
	BacklogDBPath string
	LockFilePath  string
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *backlog.Store, thresholds *settings.Store, engine *scrobbler.Engine, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil || thresholds == nil || engine == nil || logger == nil {
		return nil, errors.New("daemon requires config, stores, engine, and logger")
	}

	lockPath := cfg.LockPath()
	return &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		settings: thresholds,
		engine:   engine,
		logPath:  filepath.Join(cfg.Paths.LogDir, logging.LogFileName),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the daemon lock, begins watching the settings file, and
// launches the engine.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another mps daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	go func() {
		if err := d.settings.Watch(runCtx, d.logger); err != nil {
			d.logger.Warn("settings watch unavailable, threshold changes need a restart",
				logging.Error(err),
			)
		}
	}()

	if err := d.engine.Start(runCtx); err != nil {
		_ = d.lock.Unlock()
		cancel()
		d.cancel = nil
		return fmt.Errorf("start engine: %w", err)
	}

	d.running.Store(true)
	d.logger.Info("mps daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop stops the engine and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	d.engine.Stop()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("mps daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// StartEngine resumes monitoring after a StopEngine.
func (d *Daemon) StartEngine(ctx context.Context) error {
	return d.engine.Start(ctx)
}

// StopEngine pauses monitoring while keeping the daemon alive.
func (d *Daemon) StopEngine() {
	d.engine.Stop()
}

// ProcessBacklog replays pending backlog entries immediately.
func (d *Daemon) ProcessBacklog(ctx context.Context) (backlog.Result, error) {
	return d.engine.ProcessBacklog(ctx)
}

// ListBacklog returns backlog entries filtered by optional statuses.
func (d *Daemon) ListBacklog(ctx context.Context, statuses []backlog.Status) ([]*backlog.Entry, error) {
	if d.store == nil {
		return nil, errors.New("backlog store unavailable")
	}
	return d.store.List(ctx, statuses...)
}

// ClearDead removes dead-letter backlog entries.
func (d *Daemon) ClearDead(ctx context.Context) (int64, error) {
	if d.store == nil {
		return 0, errors.New("backlog store unavailable")
	}
	return d.store.ClearDead(ctx)
}

// Threshold returns the active watch-completion threshold.
func (d *Daemon) Threshold() int {
	return d.engine.Threshold()
}

// SetThreshold persists a new watch-completion threshold.
func (d *Daemon) SetThreshold(value int) error {
	if err := d.engine.SetThreshold(value); err != nil {
		return err
	}
	d.logger.Info("threshold updated", logging.Int("threshold", value))
	return nil
}

// AnswerThreshold forwards a prompt answer to the engine.
func (d *Daemon) AnswerThreshold(value int) error {
	return d.engine.AnswerThreshold(value)
}

// TestNotification triggers a test notification using the current
// configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if d.cfg == nil {
		return false, "configuration unavailable", errors.New("configuration unavailable")
	}
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	notifier := notifications.NewService(d.cfg)
	if err := notifier.TestNotification(ctx); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// LogPath returns the path to the daemon log file.
func (d *Daemon) LogPath() string {
	return d.logPath
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	return Status{
		Running:       d.running.Load(),
		Engine:        d.engine.Status(ctx),
		BacklogDBPath: d.store.Path(),
		LockFilePath:  d.lockPath,
	}
}
