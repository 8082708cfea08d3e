package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"mps/internal/config"
	"mps/internal/notifications"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.NotifyScrobbled(context.Background(), "Example"); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		notify         func(svc notifications.Service) error
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name: "scrobbled",
			notify: func(svc notifications.Service) error {
				return svc.NotifyScrobbled(context.Background(), "Interstellar (2014)")
			},
			expectTitle:   "MPS - Scrobbled",
			expectMessage: "Marked as watched: Interstellar (2014)",
			expectTags:    "mps,scrobble,submitted",
		},
		{
			name: "queued offline",
			notify: func(svc notifications.Service) error {
				return svc.NotifyQueuedOffline(context.Background(), "Blade Runner")
			},
			expectTitle:   "MPS - Queued",
			expectMessage: "Offline, queued for later: Blade Runner",
			expectTags:    "mps,backlog,queued",
		},
		{
			name: "backlog fully delivered",
			notify: func(svc notifications.Service) error {
				return svc.NotifyBacklogProcessed(context.Background(), 3, 3)
			},
			expectTitle:   "MPS - Backlog",
			expectMessage: "Backlog cleared: 3 scrobbles delivered",
			expectTags:    "mps,backlog,processed",
		},
		{
			name: "backlog partial",
			notify: func(svc notifications.Service) error {
				return svc.NotifyBacklogProcessed(context.Background(), 1, 4)
			},
			expectTitle:   "MPS - Backlog",
			expectMessage: "Backlog pass: 1 of 4 scrobbles delivered",
			expectTags:    "mps,backlog,processed",
		},
		{
			name: "auth required",
			notify: func(svc notifications.Service) error {
				return svc.NotifyAuthRequired(context.Background())
			},
			expectTitle:    "MPS - Authentication Required",
			expectMessage:  "Simkl rejected the stored credentials. Run 'mps auth' to sign in again.",
			expectTags:     "mps,auth,alert",
			expectPriority: "high",
		},
		{
			name: "error",
			notify: func(svc notifications.Service) error {
				return svc.NotifyError(context.Background(), errors.New("connection refused"), "scrobble submission")
			},
			expectTitle:    "MPS - Error",
			expectMessage:  "Error with scrobble submission: connection refused",
			expectTags:     "mps,error,alert",
			expectPriority: "high",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var captured struct {
				title    string
				tags     string
				priority string
				body     string
			}

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Fatalf("unexpected method: %s", r.Method)
				}
				captured.title = r.Header.Get("Title")
				captured.tags = r.Header.Get("Tags")
				captured.priority = r.Header.Get("Priority")
				body, err := io.ReadAll(r.Body)
				if err != nil {
					t.Fatalf("read body: %v", err)
				}
				captured.body = string(body)
				_ = r.Body.Close()
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			cfg := config.Default()
			cfg.Notifications.NtfyTopic = server.URL
			cfg.Notifications.RequestTimeout = 5

			svc := notifications.NewService(&cfg)
			if err := tc.notify(svc); err != nil {
				t.Fatalf("notification returned error: %v", err)
			}

			if captured.title != tc.expectTitle {
				t.Fatalf("expected title %q, got %q", tc.expectTitle, captured.title)
			}
			if captured.body != tc.expectMessage {
				t.Fatalf("expected message %q, got %q", tc.expectMessage, captured.body)
			}
			if captured.tags != tc.expectTags {
				t.Fatalf("expected tags %q, got %q", tc.expectTags, captured.tags)
			}
			if captured.priority != tc.expectPriority {
				t.Fatalf("expected priority %q, got %q", tc.expectPriority, captured.priority)
			}
		})
	}
}

func TestNtfyServiceHonorsCategoryToggles(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("unexpected call for disabled category: %s", r.URL.String())
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.Scrobbles = false
	cfg.Notifications.Backlog = false
	cfg.Notifications.Errors = false

	svc := notifications.NewService(&cfg)
	ctx := context.Background()
	if err := svc.NotifyScrobbled(ctx, "ignored"); err != nil {
		t.Fatalf("disabled scrobble notification returned %v", err)
	}
	if err := svc.NotifyQueuedOffline(ctx, "ignored"); err != nil {
		t.Fatalf("disabled backlog notification returned %v", err)
	}
	if err := svc.NotifyBacklogProcessed(ctx, 1, 1); err != nil {
		t.Fatalf("disabled backlog notification returned %v", err)
	}
	if err := svc.NotifyError(ctx, errors.New("boom"), "test"); err != nil {
		t.Fatalf("disabled error notification returned %v", err)
	}
}

func TestSinkSwallowsCallbackPanics(t *testing.T) {
	sink := notifications.NewSink(nil)
	sink.SetCallback(func(title, message string) {
		panic("callback exploded")
	})
	sink.Publish("title", "message")

	var gotTitle, gotMessage string
	sink.SetCallback(func(title, message string) {
		gotTitle, gotMessage = title, message
	})
	sink.Publish("Scrobbled", "Marked as watched: Example")
	if gotTitle != "Scrobbled" || gotMessage != "Marked as watched: Example" {
		t.Fatalf("callback not invoked after recovery: %q %q", gotTitle, gotMessage)
	}
}
