package config

const (
	defaultConfigPath            = "~/.config/kura/config.toml"
	defaultLibraryRoot           = "~/Pictures/kura"
	defaultStateDir              = "~/.local/share/kura"
	defaultLogDir                = "~/.local/share/kura/logs"
	defaultMaxConcurrent         = 4
	defaultPerHost               = 2
	defaultMaxAttempts           = 3
	defaultBackoffInitialSeconds = 10
	defaultBackoffMaxSeconds     = 300
	defaultTimeoutSeconds        = 30
	defaultMaxImageMiB           = 32
	defaultUserAgent             = "kura/1.0 (+catalog image fetcher)"
	defaultNetwork               = NetworkAny
	defaultSysfsRoot             = "/sys"
	defaultSoftware              = "kura"
	defaultNotifyTimeout         = 10
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
)

// Network requirement values accepted in [constraints].network.
const (
	NetworkAny  = "any"
	NetworkWiFi = "wifi"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			LibraryRoot: defaultLibraryRoot,
			StateDir:    defaultStateDir,
			LogDir:      defaultLogDir,
		},
		Download: Download{
			MaxConcurrent:         defaultMaxConcurrent,
			PerHost:               defaultPerHost,
			MaxAttempts:           defaultMaxAttempts,
			BackoffInitialSeconds: defaultBackoffInitialSeconds,
			BackoffMaxSeconds:     defaultBackoffMaxSeconds,
			TimeoutSeconds:        defaultTimeoutSeconds,
			MaxImageMiB:           defaultMaxImageMiB,
			UserAgent:             defaultUserAgent,
		},
		Constraints: Constraints{
			Network:      defaultNetwork,
			SysfsRoot:    defaultSysfsRoot,
			WatchUevents: true,
		},
		Metadata: Metadata{
			Embed:    true,
			Software: defaultSoftware,
		},
		Notifications: Notifications{
			RequestTimeoutSeconds: defaultNotifyTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
