package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	LibraryRoot string `toml:"library_root"`
	StateDir    string `toml:"state_dir"`
	LogDir      string `toml:"log_dir"`
}

// Download contains fetch and scheduling knobs.
type Download struct {
	MaxConcurrent         int    `toml:"max_concurrent"`
	PerHost               int    `toml:"per_host"`
	MaxAttempts           int    `toml:"max_attempts"`
	BackoffInitialSeconds int    `toml:"backoff_initial_seconds"`
	BackoffMaxSeconds     int    `toml:"backoff_max_seconds"`
	TimeoutSeconds        int    `toml:"timeout_seconds"`
	MaxImageMiB           int    `toml:"max_image_mib"`
	UserAgent             string `toml:"user_agent"`
}

// Constraints contains the default execution constraints applied to new jobs.
type Constraints struct {
	Network         string `toml:"network"`
	RequireCharging bool   `toml:"require_charging"`
	MinFreeMiB      int64  `toml:"min_free_mib"`
	SysfsRoot       string `toml:"sysfs_root"`
	WatchUevents    bool   `toml:"watch_uevents"`
}

// S3 contains credentials for s3:// image sources.
type S3 struct {
	Region          string `toml:"region"`
	Endpoint        string `toml:"endpoint"`
	AccessKeyID     string `toml:"access_key_id"`
	SecretAccessKey string `toml:"secret_access_key"`
	UsePathStyle    bool   `toml:"use_path_style"`
}

// Metadata contains metadata embedding settings.
type Metadata struct {
	Embed    bool   `toml:"embed"`
	Software string `toml:"software"`
}

// Metrics contains the optional Prometheus listener.
type Metrics struct {
	Listen string `toml:"listen"`
}

// Notifications contains the optional ntfy endpoint for session summaries.
type Notifications struct {
	NtfyTopic             string `toml:"ntfy_topic"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format  string `toml:"format"`
	Level   string `toml:"level"`
	Console bool   `toml:"console"`
}

// Category is one ordered subcategory or rating rule of the classifier.
type Category struct {
	Name     string   `toml:"name"`
	Keywords []string `toml:"keywords"`
}

// KindRange is an inclusive range of producer kind codes.
type KindRange struct {
	From int `toml:"from"`
	To   int `toml:"to"`
}

// Classify overrides the built-in classifier tables. Empty fields keep the
// built-in defaults; order inside each list is significant.
type Classify struct {
	VideoKinds        []KindRange `toml:"video_kinds"`
	PrintKinds        []KindRange `toml:"print_kinds"`
	SensitiveKeywords []string    `toml:"sensitive_keywords"`
	Subcategories     []Category  `toml:"subcategories"`
	Ratings           []Category  `toml:"ratings"`
	Fallback          string      `toml:"fallback"`
}

// Config encapsulates all configuration values for kura.
//
// Configuration sections by subsystem:
//   - Paths: library root, state (database) and log directories
//   - Download: concurrency, retry budget, backoff and HTTP settings
//   - Constraints: default network/charging/storage requirements
//   - S3: credentials for s3:// sources
//   - Metadata: embedding toggle and software identifier
//   - Metrics: Prometheus listener
//   - Notifications: ntfy topic for session summaries
//   - Logging: log format and level
//   - Classify: keyword tables for the classifier
type Config struct {
	Paths         Paths         `toml:"paths"`
	Download      Download      `toml:"download"`
	Constraints   Constraints   `toml:"constraints"`
	S3            S3            `toml:"s3"`
	Metadata      Metadata      `toml:"metadata"`
	Metrics       Metrics       `toml:"metrics"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
	Classify      Classify      `toml:"classify"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if err := loadDotEnv(filepath.Dir(resolvedPath)); err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("kura.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the state and log directories. The library root
// is created on a best-effort basis so read-only commands work while external
// storage is unavailable.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Paths.LibraryRoot) != "" {
		_ = os.MkdirAll(c.Paths.LibraryRoot, 0o755)
	}
	return nil
}

// DatabasePath is the SQLite tracking table location.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.StateDir, "kura.db")
}

// LogPath is the file the logger writes to.
func (c *Config) LogPath() string {
	return filepath.Join(c.Paths.LogDir, "kura.log")
}

// LockPath is the advisory lock held while a download batch runs.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "kura.lock")
}

// BackoffInitial is the minimum delay before a failed attempt is retried.
func (c *Config) BackoffInitial() time.Duration {
	return time.Duration(c.Download.BackoffInitialSeconds) * time.Second
}

// BackoffMax caps the retry delay.
func (c *Config) BackoffMax() time.Duration {
	return time.Duration(c.Download.BackoffMaxSeconds) * time.Second
}

// FetchTimeout bounds a single fetch request.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.Download.TimeoutSeconds) * time.Second
}

// NotifyTimeout bounds a single ntfy request.
func (c *Config) NotifyTimeout() time.Duration {
	return time.Duration(c.Notifications.RequestTimeoutSeconds) * time.Second
}

// MaxImageBytes bounds the size of a fetched image.
func (c *Config) MaxImageBytes() int64 {
	return int64(c.Download.MaxImageMiB) << 20
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
