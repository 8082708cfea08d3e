package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"mps/internal/config"
)

const userAgent = "MPS/0.1.0"

// Service defines the notification surface exposed to the scrobbler engine.
type Service interface {
	NotifyMonitoringStarted(ctx context.Context) error
	NotifyMonitoringStopped(ctx context.Context) error
	NotifyScrobbled(ctx context.Context, title string) error
	NotifyQueuedOffline(ctx context.Context, title string) error
	NotifyBacklogProcessed(ctx context.Context, processed, attempted int) error
	NotifyAuthRequired(ctx context.Context) error
	NotifyError(ctx context.Context, err error, contextLabel string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := &http.Client{Timeout: timeout}
	return &ntfyService{
		endpoint:  topic,
		client:    client,
		scrobbles: cfg.Notifications.Scrobbles,
		backlog:   cfg.Notifications.Backlog,
		errors:    cfg.Notifications.Errors,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint  string
	client    *http.Client
	scrobbles bool
	backlog   bool
	errors    bool
}

func (n *ntfyService) NotifyMonitoringStarted(ctx context.Context) error {
	data := payload{
		title:   "MPS - Monitoring",
		message: "Scrobbler started, watching for playback",
		tags:    []string{"mps", "monitor", "started"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyMonitoringStopped(ctx context.Context) error {
	data := payload{
		title:   "MPS - Monitoring",
		message: "Scrobbler stopped",
		tags:    []string{"mps", "monitor", "stopped"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyScrobbled(ctx context.Context, title string) error {
	if !n.scrobbles {
		return nil
	}
	title = strings.TrimSpace(title)
	data := payload{
		title:   "MPS - Scrobbled",
		message: fmt.Sprintf("Marked as watched: %s", title),
		tags:    []string{"mps", "scrobble", "submitted"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyQueuedOffline(ctx context.Context, title string) error {
	if !n.backlog {
		return nil
	}
	title = strings.TrimSpace(title)
	data := payload{
		title:   "MPS - Queued",
		message: fmt.Sprintf("Offline, queued for later: %s", title),
		tags:    []string{"mps", "backlog", "queued"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyBacklogProcessed(ctx context.Context, processed, attempted int) error {
	if !n.backlog || attempted == 0 {
		return nil
	}
	var message string
	if processed == attempted {
		message = fmt.Sprintf("Backlog cleared: %d scrobbles delivered", processed)
	} else {
		message = fmt.Sprintf("Backlog pass: %d of %d scrobbles delivered", processed, attempted)
	}
	data := payload{
		title:   "MPS - Backlog",
		message: message,
		tags:    []string{"mps", "backlog", "processed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyAuthRequired(ctx context.Context) error {
	data := payload{
		title:    "MPS - Authentication Required",
		message:  "Simkl rejected the stored credentials. Run 'mps auth' to sign in again.",
		tags:     []string{"mps", "auth", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	if !n.errors {
		return nil
	}
	var builder strings.Builder
	builder.WriteString("Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" with ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}

	data := payload{
		title:    "MPS - Error",
		message:  builder.String(),
		tags:     []string{"mps", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "MPS - Test",
		message:  "Notification system test",
		tags:     []string{"mps", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyMonitoringStarted(context.Context) error          { return nil }
func (noopService) NotifyMonitoringStopped(context.Context) error          { return nil }
func (noopService) NotifyScrobbled(context.Context, string) error          { return nil }
func (noopService) NotifyQueuedOffline(context.Context, string) error      { return nil }
func (noopService) NotifyBacklogProcessed(context.Context, int, int) error { return nil }
func (noopService) NotifyAuthRequired(context.Context) error               { return nil }
func (noopService) NotifyError(context.Context, error, string) error       { return nil }
func (noopService) TestNotification(context.Context) error                 { return nil }
