package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"kura/internal/classify"
	"kura/internal/config"
	"kura/internal/logging"
	"kura/internal/organizer"
	"kura/internal/queue"
)

// errRunnerActive is returned when an operation needs exclusive access to
// the tracking table while a download session holds the lock.
var errRunnerActive = errors.New("a kura download is running; wait for it or use kura cancel")

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.ensureConfig()
	return cfg
}

// loggerValue returns the file logger, falling back to a no-op logger when
// the log directory is unusable so read-only commands still work.
func (c *commandContext) loggerValue() *slog.Logger {
	c.loggerOnce.Do(func() {
		logger, err := logging.NewFromConfig(c.configValue())
		if err != nil {
			logger = logging.NewNop()
		}
		c.logger = logger
	})
	return c.logger
}

func (c *commandContext) withStore(fn func(*queue.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := queue.Open(cfg)
	if err != nil {
		return fmt.Errorf("open job database: %w", err)
	}
	defer store.Close()
	return fn(store)
}

func (c *commandContext) classifier() *classify.Classifier {
	return classify.New(classify.PolicyFromConfig(c.configValue().Classify))
}

func (c *commandContext) organizer() *organizer.Organizer {
	return organizer.New(c.configValue().Paths.LibraryRoot, c.classifier(), c.loggerValue())
}

// tryRunnerLock takes the session lock without blocking. ok is false when a
// download session is active.
func (c *commandContext) tryRunnerLock() (*flock.Flock, bool, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, false, err
	}
	lock := flock.New(cfg.LockPath())
	ok, err := lock.TryLock()
	if err != nil {
		return nil, false, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	return lock, true, nil
}

// withExclusiveStore runs fn with the tracking table while no download
// session is active.
func (c *commandContext) withExclusiveStore(fn func(context.Context, *queue.Store) error) error {
	lock, ok, err := c.tryRunnerLock()
	if err != nil {
		return err
	}
	if !ok {
		return errRunnerActive
	}
	defer lock.Unlock()
	return c.withStore(func(store *queue.Store) error {
		return fn(context.Background(), store)
	})
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
