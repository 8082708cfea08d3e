package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateSimkl(); err != nil {
		return err
	}
	if err := c.validateScrobbler(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateSimkl() error {
	if c.Simkl.BaseURL == "" {
		return errors.New("simkl.base_url must be set")
	}
	if c.Simkl.ClientID == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/mps/config.toml"
		}
		return fmt.Errorf("simkl.client_id is required. Edit %s (create with 'mps config init')", defaultPath)
	}
	if c.Simkl.RequestTimeout <= 0 {
		return errors.New("simkl.request_timeout must be positive")
	}
	return nil
}

func (c *Config) validateScrobbler() error {
	if c.Scrobbler.PollInterval <= 0 {
		return errors.New("scrobbler.poll_interval must be positive")
	}
	if c.Scrobbler.InactivityTimeout <= 0 {
		return errors.New("scrobbler.inactivity_timeout must be positive")
	}
	if c.Scrobbler.EvictionGrace < 0 {
		return errors.New("scrobbler.eviction_grace must not be negative")
	}
	if c.Scrobbler.BacklogInterval <= 0 {
		return errors.New("scrobbler.backlog_interval must be positive")
	}
	if c.Scrobbler.BacklogMaxAttempts < 1 {
		return errors.New("scrobbler.backlog_max_attempts must be at least 1")
	}
	if c.Scrobbler.PromptTimeout <= 0 {
		return errors.New("scrobbler.prompt_timeout must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	return nil
}
