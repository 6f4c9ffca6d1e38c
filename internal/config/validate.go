package config

import (
	"errors"
	"fmt"
	"net/url"
)

var validRatings = map[string]struct{}{"PG": {}, "PG13": {}, "PG-13": {}, "R": {}, "X": {}, "XXX": {}}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateDownload(); err != nil {
		return err
	}
	if err := c.validateConstraints(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return c.validateClassify()
}

func (c *Config) validatePaths() error {
	if c.Paths.LibraryRoot == "" {
		return errors.New("paths.library_root must be set")
	}
	if c.Paths.StateDir == "" {
		return errors.New("paths.state_dir must be set")
	}
	return nil
}

func (c *Config) validateDownload() error {
	if c.Download.MaxConcurrent < 1 {
		return errors.New("download.max_concurrent must be at least 1")
	}
	if c.Download.MaxAttempts < 1 {
		return errors.New("download.max_attempts must be at least 1")
	}
	if c.Download.BackoffInitialSeconds < 1 {
		return errors.New("download.backoff_initial_seconds must be positive")
	}
	if c.Download.TimeoutSeconds < 1 {
		return errors.New("download.timeout_seconds must be positive")
	}
	if c.Download.MaxImageMiB < 1 {
		return errors.New("download.max_image_mib must be positive")
	}
	return nil
}

func (c *Config) validateConstraints() error {
	switch c.Constraints.Network {
	case NetworkAny, NetworkWiFi:
	default:
		return fmt.Errorf("constraints.network: unsupported value %q (want %q or %q)", c.Constraints.Network, NetworkAny, NetworkWiFi)
	}
	if c.Constraints.MinFreeMiB < 0 {
		return errors.New("constraints.min_free_mib must not be negative")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.NtfyTopic == "" {
		return nil
	}
	u, err := url.Parse(c.Notifications.NtfyTopic)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("notifications.ntfy_topic: %q is not an http(s) URL", c.Notifications.NtfyTopic)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}

func (c *Config) validateClassify() error {
	for i, sub := range c.Classify.Subcategories {
		if sub.Name == "" {
			return fmt.Errorf("classify.subcategories[%d]: name must be set", i)
		}
		if len(sub.Keywords) == 0 {
			return fmt.Errorf("classify.subcategories[%d] (%s): keywords must not be empty", i, sub.Name)
		}
	}
	for i, rule := range c.Classify.Ratings {
		if _, ok := validRatings[rule.Name]; !ok {
			return fmt.Errorf("classify.ratings[%d]: unknown rating %q", i, rule.Name)
		}
	}
	for _, r := range append(append([]KindRange{}, c.Classify.VideoKinds...), c.Classify.PrintKinds...) {
		if r.To < r.From {
			return fmt.Errorf("classify kind range %d-%d is inverted", r.From, r.To)
		}
	}
	return nil
}
