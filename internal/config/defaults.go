package config

const (
	defaultDataDir = "~/.local/share/mps"
	defaultLogDir  = "~/.local/share/mps/logs"

	defaultSimklBaseURL        = "https://api.simkl.com"
	defaultSimklRequestTimeout = 15

	defaultPollInterval       = 10
	defaultInactivityTimeout  = 300
	defaultEvictionGrace      = 600
	defaultBacklogInterval    = 900
	defaultBacklogMaxAttempts = 12
	defaultPromptTimeout      = 60

	defaultNotifyRequestTimeout = 10

	defaultLogFormat = "console"
	defaultLogLevel  = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Simkl: Simkl{
			BaseURL:        defaultSimklBaseURL,
			RequestTimeout: defaultSimklRequestTimeout,
		},
		Scrobbler: Scrobbler{
			PollInterval:       defaultPollInterval,
			InactivityTimeout:  defaultInactivityTimeout,
			EvictionGrace:      defaultEvictionGrace,
			BacklogInterval:    defaultBacklogInterval,
			BacklogMaxAttempts: defaultBacklogMaxAttempts,
			PromptTimeout:      defaultPromptTimeout,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			Scrobbles:      true,
			Backlog:        true,
			Errors:         true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
