// Package settings holds user preferences that override the configured
// constraint defaults for new download batches.
package settings

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"kura/internal/constraints"
	"kura/internal/queue"
)

const (
	KeyWiFiOnly        = "wifi_only"
	KeyRequireCharging = "require_charging"
)

var knownKeys = []string{KeyRequireCharging, KeyWiFiOnly}

// Keys returns the recognised preference names in sorted order.
func Keys() []string {
	return append([]string(nil), knownKeys...)
}

// Store is a string key-value store for preferences.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	All(ctx context.Context) (map[string]string, error)
}

// Memory is an in-process Store.
type Memory struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{values: make(map[string]string)}
}

func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *Memory) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *Memory) All(_ context.Context) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]string, len(m.values))
	for k, v := range m.values {
		out[k] = v
	}
	return out, nil
}

// SQLite adapts the job database's settings table to Store.
type SQLite struct {
	store *queue.Store
}

// NewSQLite wraps an open job database.
func NewSQLite(store *queue.Store) *SQLite {
	return &SQLite{store: store}
}

func (s *SQLite) Get(ctx context.Context, key string) (string, bool, error) {
	return s.store.GetSetting(ctx, key)
}

func (s *SQLite) Set(ctx context.Context, key, value string) error {
	return s.store.SetSetting(ctx, key, value)
}

func (s *SQLite) All(ctx context.Context) (map[string]string, error) {
	return s.store.Settings(ctx)
}

// Normalize validates a key and canonicalises its value.
func Normalize(key, value string) (string, string, error) {
	key = strings.ToLower(strings.TrimSpace(key))
	idx := sort.SearchStrings(knownKeys, key)
	if idx >= len(knownKeys) || knownKeys[idx] != key {
		return "", "", fmt.Errorf("unknown setting %q (known: %s)", key, strings.Join(knownKeys, ", "))
	}
	b, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return "", "", fmt.Errorf("setting %s expects true or false, got %q", key, value)
	}
	return key, strconv.FormatBool(b), nil
}

// Put validates and stores a preference.
func Put(ctx context.Context, store Store, key, value string) error {
	key, value, err := Normalize(key, value)
	if err != nil {
		return err
	}
	return store.Set(ctx, key, value)
}

// Apply overlays stored preferences on defaults. Unparseable stored values
// are ignored so a bad row never blocks downloads.
func Apply(ctx context.Context, store Store, defaults constraints.Set) (constraints.Set, error) {
	out := defaults
	if store == nil {
		return out.Normalize(), nil
	}
	if v, ok, err := store.Get(ctx, KeyWiFiOnly); err != nil {
		return defaults.Normalize(), err
	} else if ok {
		if b, perr := strconv.ParseBool(v); perr == nil {
			if b {
				out.Network = constraints.NetworkWiFi
			} else {
				out.Network = constraints.NetworkAny
			}
		}
	}
	if v, ok, err := store.Get(ctx, KeyRequireCharging); err != nil {
		return defaults.Normalize(), err
	} else if ok {
		if b, perr := strconv.ParseBool(v); perr == nil {
			out.RequireCharging = b
		}
	}
	return out.Normalize(), nil
}
