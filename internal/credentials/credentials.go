// Package credentials resolves SIMKL API credentials.
//
// The access token and user id live in the system keyring when one is
// available, falling back to a KEY=VALUE env file under the data dir for
// headless hosts. The client id is application configuration, not a secret,
// and comes from the config file.
package credentials

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/zalando/go-keyring"
)

const (
	keyringService = "mps"
	keyringToken   = "simkl_access_token"
	keyringUserID  = "simkl_user_id"

	envFileName  = "credentials.env"
	envTokenKey  = "SIMKL_ACCESS_TOKEN"
	envUserIDKey = "SIMKL_USER_ID"
)

// Credentials holds everything needed to call the SIMKL API on behalf of a
// user. Any field may be empty; Authenticated reports usability.
type Credentials struct {
	ClientID    string
	AccessToken string
	UserID      string
}

// Authenticated reports whether the credentials can authorize API calls.
func (c Credentials) Authenticated() bool {
	return c.ClientID != "" && c.AccessToken != ""
}

// Provider resolves and persists user credentials.
type Provider interface {
	Credentials() (Credentials, error)
	StoreToken(accessToken, userID string) error
	Clear() error
}

// NewProvider returns the default provider: keyring first, env file fallback.
func NewProvider(clientID, dataDir string) Provider {
	return &chainProvider{
		clientID: clientID,
		backends: []backend{
			keyringBackend{},
			fileBackend{path: filepath.Join(dataDir, envFileName)},
		},
	}
}

type backend interface {
	read() (token, userID string, err error)
	write(token, userID string) error
	clear() error
}

type chainProvider struct {
	clientID string
	backends []backend
}

func (p *chainProvider) Credentials() (Credentials, error) {
	creds := Credentials{ClientID: p.clientID}
	for _, b := range p.backends {
		token, userID, err := b.read()
		if err != nil {
			continue
		}
		if token != "" {
			creds.AccessToken = token
			creds.UserID = userID
			break
		}
	}
	return creds, nil
}

func (p *chainProvider) StoreToken(accessToken, userID string) error {
	if strings.TrimSpace(accessToken) == "" {
		return errors.New("access token is empty")
	}
	var firstErr error
	for _, b := range p.backends {
		if err := b.write(accessToken, userID); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		return nil
	}
	if firstErr == nil {
		firstErr = errors.New("no credential backend available")
	}
	return fmt.Errorf("store token: %w", firstErr)
}

func (p *chainProvider) Clear() error {
	var firstErr error
	for _, b := range p.backends {
		if err := b.clear(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

type keyringBackend struct{}

func (keyringBackend) read() (string, string, error) {
	token, err := keyring.Get(keyringService, keyringToken)
	if err != nil {
		return "", "", err
	}
	// User id is optional; ignore lookup failure.
	userID, _ := keyring.Get(keyringService, keyringUserID)
	return token, userID, nil
}

func (keyringBackend) write(token, userID string) error {
	if err := keyring.Set(keyringService, keyringToken, token); err != nil {
		return err
	}
	if userID != "" {
		if err := keyring.Set(keyringService, keyringUserID, userID); err != nil {
			return err
		}
	}
	return nil
}

func (keyringBackend) clear() error {
	err := keyring.Delete(keyringService, keyringToken)
	if errors.Is(err, keyring.ErrNotFound) {
		err = nil
	}
	_ = keyring.Delete(keyringService, keyringUserID)
	return err
}

// fileBackend reads and writes a KEY=VALUE env file for hosts without a
// usable system keyring.
type fileBackend struct {
	path string
}

func (f fileBackend) read() (string, string, error) {
	file, err := os.Open(f.path)
	if err != nil {
		return "", "", err
	}
	defer file.Close()

	values := map[string]string{}
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		values[strings.TrimSpace(key)] = strings.Trim(strings.TrimSpace(value), `"`)
	}
	if err := scanner.Err(); err != nil {
		return "", "", err
	}
	return values[envTokenKey], values[envUserIDKey], nil
}

func (f fileBackend) write(token, userID string) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return err
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s=%s\n", envTokenKey, token)
	if userID != "" {
		fmt.Fprintf(&sb, "%s=%s\n", envUserIDKey, userID)
	}
	return os.WriteFile(f.path, []byte(sb.String()), 0o600)
}

func (f fileBackend) clear() error {
	err := os.Remove(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
