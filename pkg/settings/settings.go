// Package settings manages persistent user settings for the newtrace CLI.
package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"

	"github.com/newtron-network/newtrace/pkg/util"
)

// Settings holds persistent user preferences
type Settings struct {
	// DefaultInventory is the inventory file or capture directory used when
	// -i is not specified
	DefaultInventory string `json:"default_inventory,omitempty"`

	// DefaultSource is the device traces start from when none is given
	DefaultSource string `json:"default_source,omitempty"`

	// DefaultPlatform applies to captures whose platform is not declared
	DefaultPlatform string `json:"default_platform,omitempty"`

	// RedisAddr is the Redis server used for snapshot caching
	RedisAddr string `json:"redis_addr,omitempty"`

	// SnapshotKey is the Redis hash holding the cached snapshot
	SnapshotKey string `json:"snapshot_key,omitempty"`

	// Workers bounds parallel parsing and batch tracing
	Workers int `json:"workers,omitempty"`
}

// DefaultSettingsPath returns the default path for the settings file
func DefaultSettingsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "newtrace_settings.json"
	}
	return filepath.Join(home, ".newtrace", "settings.json")
}

// Load reads settings from the default location
func Load() (*Settings, error) {
	return LoadFrom(DefaultSettingsPath())
}

// LoadFrom reads settings from a specific path
func LoadFrom(path string) (*Settings, error) {
	s := &Settings{}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Return empty settings if file doesn't exist
			return s, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	return s, nil
}

// Save writes settings to the default location
func (s *Settings) Save() error {
	return s.SaveTo(DefaultSettingsPath())
}

// SaveTo writes settings to a specific path
func (s *Settings) SaveTo(path string) error {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// GetWorkers returns the worker count (with fallback)
func (s *Settings) GetWorkers() int {
	if s.Workers > 0 {
		return s.Workers
	}
	return runtime.GOMAXPROCS(0)
}

// GetSnapshotKey returns the Redis snapshot key (with fallback)
func (s *Settings) GetSnapshotKey() string {
	if s.SnapshotKey != "" {
		return s.SnapshotKey
	}
	return "NEWTRACE_SNAPSHOT"
}

// Keys returns the names accepted by Set, in sorted order.
func Keys() []string {
	keys := make([]string, 0, len(setters))
	for k := range setters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

var setters = map[string]func(s *Settings, v string) error{
	"default_inventory": func(s *Settings, v string) error { s.DefaultInventory = v; return nil },
	"default_source":    func(s *Settings, v string) error { s.DefaultSource = v; return nil },
	"default_platform":  func(s *Settings, v string) error { s.DefaultPlatform = v; return nil },
	"redis_addr":        func(s *Settings, v string) error { s.RedisAddr = v; return nil },
	"snapshot_key":      func(s *Settings, v string) error { s.SnapshotKey = v; return nil },
	"workers": func(s *Settings, v string) error {
		if v == "" {
			s.Workers = 0
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return fmt.Errorf("workers must be a non-negative integer, got %q: %w", v, util.ErrInvalidConfig)
		}
		s.Workers = n
		return nil
	},
}

// Set assigns one setting by its JSON name. An empty value clears it.
func (s *Settings) Set(key, value string) error {
	set, ok := setters[strings.ToLower(key)]
	if !ok {
		return fmt.Errorf("unknown setting %q (known: %s): %w", key, strings.Join(Keys(), ", "), util.ErrInvalidConfig)
	}
	return set(s, value)
}

var getters = map[string]func(s *Settings) string{
	"default_inventory": func(s *Settings) string { return s.DefaultInventory },
	"default_source":    func(s *Settings) string { return s.DefaultSource },
	"default_platform":  func(s *Settings) string { return s.DefaultPlatform },
	"redis_addr":        func(s *Settings) string { return s.RedisAddr },
	"snapshot_key":      func(s *Settings) string { return s.SnapshotKey },
	"workers": func(s *Settings) string {
		if s.Workers == 0 {
			return ""
		}
		return strconv.Itoa(s.Workers)
	},
}

// Get returns one setting by its JSON name; unset settings are "".
func (s *Settings) Get(key string) (string, error) {
	get, ok := getters[strings.ToLower(key)]
	if !ok {
		return "", fmt.Errorf("unknown setting %q (known: %s): %w", key, strings.Join(Keys(), ", "), util.ErrInvalidConfig)
	}
	return get(s), nil
}

// Clear resets all settings to defaults
func (s *Settings) Clear() {
	*s = Settings{}
}
