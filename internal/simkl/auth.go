package simkl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// PinCode is the user-facing half of the pin authorization flow.
type PinCode struct {
	UserCode        string `json:"user_code"`
	VerificationURL string `json:"verification_url"`
	ExpiresIn       int    `json:"expires_in"`
	Interval        int    `json:"interval"`
}

// ErrAuthorizationPending indicates the user has not yet entered the code.
var ErrAuthorizationPending = errors.New("simkl: authorization pending")

// RequestPin starts the pin authorization flow and returns the code the user
// must enter at the verification URL.
func (c *Client) RequestPin(ctx context.Context) (*PinCode, error) {
	endpoint := fmt.Sprintf("%s/oauth/pin?client_id=%s", c.baseURL, url.QueryEscape(c.clientID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build pin request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request pin: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("pin request rejected: api returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var code PinCode
	if err := json.NewDecoder(resp.Body).Decode(&code); err != nil {
		return nil, fmt.Errorf("decode pin response: %w", err)
	}
	if code.UserCode == "" {
		return nil, errors.New("pin response missing user code")
	}
	if code.Interval <= 0 {
		code.Interval = 5
	}
	if code.VerificationURL == "" {
		code.VerificationURL = "https://simkl.com/pin"
	}
	return &code, nil
}

// CheckPin polls the pin endpoint once. It returns ErrAuthorizationPending
// until the user has entered the code.
func (c *Client) CheckPin(ctx context.Context, userCode string) (string, error) {
	endpoint := fmt.Sprintf("%s/oauth/pin/%s?client_id=%s", c.baseURL, url.PathEscape(userCode), url.QueryEscape(c.clientID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("build pin poll request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("poll pin: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", fmt.Errorf("pin poll rejected: api returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload struct {
		Result      string `json:"result"`
		Message     string `json:"message"`
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode pin poll response: %w", err)
	}
	if payload.AccessToken != "" {
		return payload.AccessToken, nil
	}
	return "", ErrAuthorizationPending
}

// WaitForPin polls until the user authorizes the code, the code expires, or
// ctx is canceled.
func (c *Client) WaitForPin(ctx context.Context, code *PinCode) (string, error) {
	interval := time.Duration(code.Interval) * time.Second
	expiry := time.Now().Add(time.Duration(code.ExpiresIn) * time.Second)
	for {
		token, err := c.CheckPin(ctx, code.UserCode)
		if err == nil {
			return token, nil
		}
		if !errors.Is(err, ErrAuthorizationPending) {
			return "", err
		}
		if code.ExpiresIn > 0 && time.Now().After(expiry) {
			return "", errors.New("pin code expired before authorization")
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(interval):
		}
	}
}
