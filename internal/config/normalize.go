package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeDownload()
	c.normalizeConstraints()
	c.normalizeLogging()
	c.normalizeClassify()
	c.Metadata.Software = strings.TrimSpace(c.Metadata.Software)
	if c.Metadata.Software == "" {
		c.Metadata.Software = defaultSoftware
	}
	c.Metrics.Listen = strings.TrimSpace(c.Metrics.Listen)
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeoutSeconds <= 0 {
		c.Notifications.RequestTimeoutSeconds = defaultNotifyTimeout
	}
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.LibraryRoot, err = expandPath(strings.TrimSpace(c.Paths.LibraryRoot)); err != nil {
		return fmt.Errorf("paths.library_root: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(strings.TrimSpace(c.Paths.StateDir)); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(strings.TrimSpace(c.Paths.LogDir)); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeDownload() {
	c.Download.UserAgent = strings.TrimSpace(c.Download.UserAgent)
	if c.Download.UserAgent == "" {
		c.Download.UserAgent = defaultUserAgent
	}
	if c.Download.PerHost <= 0 || c.Download.PerHost > c.Download.MaxConcurrent {
		c.Download.PerHost = c.Download.MaxConcurrent
	}
	if c.Download.BackoffMaxSeconds < c.Download.BackoffInitialSeconds {
		c.Download.BackoffMaxSeconds = c.Download.BackoffInitialSeconds
	}
}

func (c *Config) normalizeConstraints() {
	c.Constraints.Network = strings.ToLower(strings.TrimSpace(c.Constraints.Network))
	switch c.Constraints.Network {
	case "", "any-connection", "connected":
		c.Constraints.Network = NetworkAny
	case "wifi-only", "unmetered":
		c.Constraints.Network = NetworkWiFi
	}
	if strings.TrimSpace(c.Constraints.SysfsRoot) == "" {
		c.Constraints.SysfsRoot = defaultSysfsRoot
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func (c *Config) normalizeClassify() {
	c.Classify.SensitiveKeywords = normalizeKeywords(c.Classify.SensitiveKeywords)
	for i := range c.Classify.Subcategories {
		c.Classify.Subcategories[i].Name = strings.TrimSpace(c.Classify.Subcategories[i].Name)
		c.Classify.Subcategories[i].Keywords = normalizeKeywords(c.Classify.Subcategories[i].Keywords)
	}
	for i := range c.Classify.Ratings {
		c.Classify.Ratings[i].Name = strings.ToUpper(strings.TrimSpace(c.Classify.Ratings[i].Name))
		c.Classify.Ratings[i].Keywords = normalizeKeywords(c.Classify.Ratings[i].Keywords)
	}
	c.Classify.Fallback = strings.TrimSpace(c.Classify.Fallback)
}

func normalizeKeywords(values []string) []string {
	if len(values) == 0 {
		return values
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.ToLower(strings.TrimSpace(v)); v != "" {
			out = append(out, v)
		}
	}
	return out
}
