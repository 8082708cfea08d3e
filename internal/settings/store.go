package settings

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/pelletier/go-toml/v2"
)

// DefaultThreshold is the watch completion percentage used until the user
// picks another value.
const DefaultThreshold = 80

// ErrInvalidThreshold is returned for threshold values outside [1,100].
var ErrInvalidThreshold = errors.New("threshold must be between 1 and 100")

type record struct {
	WatchCompletionThreshold int `toml:"watch_completion_threshold"`
}

// Store persists settings to a TOML file and serializes access.
type Store struct {
	path string

	mu     sync.Mutex
	values record
}

// Open loads the settings file at path, creating it with defaults when
// missing.
func Open(path string) (*Store, error) {
	s := &Store{
		path:   path,
		values: record{WatchCompletionThreshold: DefaultThreshold},
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return s.persistLocked()
		}
		return fmt.Errorf("read settings: %w", err)
	}

	var rec record
	if err := toml.Unmarshal(data, &rec); err != nil {
		return fmt.Errorf("parse settings: %w", err)
	}
	if rec.WatchCompletionThreshold < 1 || rec.WatchCompletionThreshold > 100 {
		rec.WatchCompletionThreshold = DefaultThreshold
	}
	s.values = rec
	return nil
}

// Threshold returns the configured watch completion percentage.
func (s *Store) Threshold() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.values.WatchCompletionThreshold
}

// SetThreshold validates and persists a new watch completion percentage.
// The write is synchronous; a persistence failure leaves the previous value
// in effect.
func (s *Store) SetThreshold(value int) error {
	if value < 1 || value > 100 {
		return fmt.Errorf("%w: got %d", ErrInvalidThreshold, value)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	previous := s.values.WatchCompletionThreshold
	s.values.WatchCompletionThreshold = value
	if err := s.persistLocked(); err != nil {
		s.values.WatchCompletionThreshold = previous
		return err
	}
	return nil
}

// Reload re-reads the settings file, picking up external edits.
func (s *Store) Reload() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// Path returns the settings file location.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) persistLocked() error {
	data, err := toml.Marshal(s.values)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create settings directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".settings-*.toml")
	if err != nil {
		return fmt.Errorf("create temp settings file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write settings: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("sync settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close settings: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replace settings: %w", err)
	}
	return nil
}
