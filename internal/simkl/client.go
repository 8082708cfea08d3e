// Package simkl talks to the SIMKL cataloguing API.
//
// The client performs the two calls the engine needs: recording a completed
// watch and fetching user settings for the connectivity/auth check. Failures
// are classified into retryable and fatal outcomes so the engine can route
// them to the backlog or surface them to the user.
package simkl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const userAgent = "mps/0.1.0"

// HTTPDoer describes the HTTP client used by the SIMKL client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Outcome classifies a submission attempt.
type Outcome string

const (
	OutcomeSuccess   Outcome = "success"
	OutcomeRetryable Outcome = "retryable"
	OutcomeFatal     Outcome = "fatal"
)

// Error kinds recorded alongside backlog entries and surfaced in logs.
const (
	KindNetworkTransient = "network_transient"
	KindRateLimited      = "rate_limited"
	KindServerError      = "server_error"
	KindNotAuthenticated = "not_authenticated"
	KindRemoteRejected   = "remote_rejected"
)

// ErrNotAuthenticated indicates missing or rejected credentials.
var ErrNotAuthenticated = errors.New("simkl: not authenticated")

// Scrobble is the payload for one completed watch.
type Scrobble struct {
	ItemID    string    `json:"item_id"`
	Title     string    `json:"title"`
	WatchedAt time.Time `json:"watched_at"`
}

// UserSettings is the subset of the settings response the engine consumes.
type UserSettings struct {
	UserID string
}

// Client is a SIMKL API client bound to one user's credentials.
type Client struct {
	baseURL     string
	clientID    string
	accessToken string
	client      HTTPDoer
}

// NewClient constructs a SIMKL client. A nil doer falls back to an
// http.Client with the given timeout.
func NewClient(baseURL, clientID, accessToken string, doer HTTPDoer, timeout time.Duration) *Client {
	if doer == nil {
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		doer = &http.Client{Timeout: timeout}
	}
	return &Client{
		baseURL:     strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		clientID:    strings.TrimSpace(clientID),
		accessToken: strings.TrimSpace(accessToken),
		client:      doer,
	}
}

// SubmitWatched records a completed watch. The returned outcome decides
// routing: retryable failures belong in the backlog, fatal ones surface to
// the caller. The error carries detail and is non-nil for every outcome
// except success.
func (c *Client) SubmitWatched(ctx context.Context, scrobble Scrobble) (Outcome, error) {
	if c.accessToken == "" || c.clientID == "" {
		return OutcomeFatal, ErrNotAuthenticated
	}

	body := map[string]any{
		"movies": []map[string]any{
			{
				"title":      scrobble.Title,
				"watched_at": scrobble.WatchedAt.UTC().Format(time.RFC3339),
			},
		},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return OutcomeFatal, fmt.Errorf("encode scrobble: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/sync/history", bytes.NewReader(payload))
	if err != nil {
		return OutcomeFatal, fmt.Errorf("build scrobble request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return OutcomeRetryable, fmt.Errorf("submit scrobble: %w", err)
	}
	defer resp.Body.Close()
	return classifyStatus(resp)
}

// GetUserSettings fetches the authenticated user's settings. Used as the
// connectivity and auth check during initialization.
func (c *Client) GetUserSettings(ctx context.Context) (*UserSettings, error) {
	if c.accessToken == "" || c.clientID == "" {
		return nil, ErrNotAuthenticated
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/users/settings", nil)
	if err != nil {
		return nil, fmt.Errorf("build settings request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch user settings: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, ErrNotAuthenticated
	case resp.StatusCode >= 300:
		return nil, fmt.Errorf("user settings returned %d", resp.StatusCode)
	}

	var decoded struct {
		User struct {
			IDs struct {
				Simkl int64 `json:"simkl"`
			} `json:"ids"`
		} `json:"user"`
		Account struct {
			ID int64 `json:"id"`
		} `json:"account"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode user settings: %w", err)
	}

	settings := &UserSettings{}
	switch {
	case decoded.Account.ID != 0:
		settings.UserID = strconv.FormatInt(decoded.Account.ID, 10)
	case decoded.User.IDs.Simkl != 0:
		settings.UserID = strconv.FormatInt(decoded.User.IDs.Simkl, 10)
	}
	return settings, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("simkl-api-key", c.clientID)
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
}

func classifyStatus(resp *http.Response) (Outcome, error) {
	switch {
	case resp.StatusCode < 300:
		_, _ = io.Copy(io.Discard, resp.Body)
		return OutcomeSuccess, nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return OutcomeFatal, fmt.Errorf("%w: api returned %d", ErrNotAuthenticated, resp.StatusCode)
	case resp.StatusCode == http.StatusTooManyRequests:
		return OutcomeRetryable, fmt.Errorf("rate limited: api returned %d", resp.StatusCode)
	case resp.StatusCode >= 500:
		return OutcomeRetryable, fmt.Errorf("server error: api returned %d", resp.StatusCode)
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return OutcomeFatal, fmt.Errorf("submission rejected: api returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
}

// IsNotAuthenticated reports whether err stems from missing or rejected
// credentials.
func IsNotAuthenticated(err error) bool {
	return errors.Is(err, ErrNotAuthenticated)
}

// ErrorKind maps a submission failure to the kind string recorded in the
// backlog.
func ErrorKind(outcome Outcome, err error) string {
	switch {
	case errors.Is(err, ErrNotAuthenticated):
		return KindNotAuthenticated
	case outcome == OutcomeFatal:
		return KindRemoteRejected
	case err != nil && strings.Contains(err.Error(), "rate limited"):
		return KindRateLimited
	case err != nil && strings.Contains(err.Error(), "server error"):
		return KindServerError
	default:
		return KindNetworkTransient
	}
}
