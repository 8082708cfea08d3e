package config

import "strings"

func (c *Config) normalize() error {
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return err
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return err
	}
	if c.Players.MPVSocket != "" {
		if c.Players.MPVSocket, err = expandPath(c.Players.MPVSocket); err != nil {
			return err
		}
	}

	c.Simkl.BaseURL = strings.TrimRight(strings.TrimSpace(c.Simkl.BaseURL), "/")
	c.Simkl.ClientID = strings.TrimSpace(c.Simkl.ClientID)
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	return nil
}
