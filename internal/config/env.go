package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const dotEnvName = ".env"

// loadDotEnv loads dir/.env into the process environment. Variables that are
// already set win over the file.
func loadDotEnv(dir string) error {
	if strings.TrimSpace(dir) == "" {
		return nil
	}
	path := filepath.Join(dir, dotEnvName)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	stringOverrides := []struct {
		key    string
		target *string
	}{
		{"KURA_LIBRARY_ROOT", &c.Paths.LibraryRoot},
		{"KURA_STATE_DIR", &c.Paths.StateDir},
		{"KURA_LOG_DIR", &c.Paths.LogDir},
		{"KURA_LOG_LEVEL", &c.Logging.Level},
		{"KURA_LOG_FORMAT", &c.Logging.Format},
		{"KURA_USER_AGENT", &c.Download.UserAgent},
		{"KURA_NETWORK", &c.Constraints.Network},
		{"KURA_METRICS_LISTEN", &c.Metrics.Listen},
		{"KURA_NTFY_TOPIC", &c.Notifications.NtfyTopic},
		{"AWS_REGION", &c.S3.Region},
		{"AWS_ENDPOINT_URL_S3", &c.S3.Endpoint},
		{"AWS_ACCESS_KEY_ID", &c.S3.AccessKeyID},
		{"AWS_SECRET_ACCESS_KEY", &c.S3.SecretAccessKey},
	}
	for _, o := range stringOverrides {
		if value, ok := os.LookupEnv(o.key); ok && strings.TrimSpace(value) != "" {
			*o.target = strings.TrimSpace(value)
		}
	}

	intOverrides := []struct {
		key    string
		target *int
	}{
		{"KURA_MAX_CONCURRENT", &c.Download.MaxConcurrent},
		{"KURA_MAX_ATTEMPTS", &c.Download.MaxAttempts},
	}
	for _, o := range intOverrides {
		value, ok := os.LookupEnv(o.key)
		if !ok || strings.TrimSpace(value) == "" {
			continue
		}
		parsed, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("%s: %w", o.key, err)
		}
		*o.target = parsed
	}
	return nil
}
