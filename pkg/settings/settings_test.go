package settings

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/newtron-network/newtrace/pkg/util"
)

func TestSettings_Defaults(t *testing.T) {
	s := &Settings{}

	if got := s.GetWorkers(); got != runtime.GOMAXPROCS(0) {
		t.Errorf("GetWorkers() default = %d, want GOMAXPROCS", got)
	}
	if got := s.GetSnapshotKey(); got != "NEWTRACE_SNAPSHOT" {
		t.Errorf("GetSnapshotKey() default = %q", got)
	}
	if s.DefaultInventory != "" || s.DefaultSource != "" {
		t.Errorf("defaults should be empty, got %+v", s)
	}
}

func TestSettings_Set(t *testing.T) {
	s := &Settings{}

	tests := []struct {
		key, value string
		check      func() bool
	}{
		{"default_inventory", "/srv/captures", func() bool { return s.DefaultInventory == "/srv/captures" }},
		{"default_source", "R1", func() bool { return s.DefaultSource == "R1" }},
		{"DEFAULT_PLATFORM", "asa", func() bool { return s.DefaultPlatform == "asa" }},
		{"redis_addr", "127.0.0.1:6379", func() bool { return s.RedisAddr == "127.0.0.1:6379" }},
		{"snapshot_key", "LAB", func() bool { return s.GetSnapshotKey() == "LAB" }},
		{"workers", "3", func() bool { return s.GetWorkers() == 3 }},
		{"workers", "", func() bool { return s.Workers == 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			if err := s.Set(tt.key, tt.value); err != nil {
				t.Fatalf("Set(%s, %s): %v", tt.key, tt.value, err)
			}
			if !tt.check() {
				t.Errorf("Set(%s, %s) did not take effect: %+v", tt.key, tt.value, s)
			}
		})
	}
}

func TestSettings_SetInvalid(t *testing.T) {
	s := &Settings{}
	for _, kv := range [][2]string{{"nope", "x"}, {"workers", "-1"}, {"workers", "many"}} {
		if err := s.Set(kv[0], kv[1]); !errors.Is(err, util.ErrInvalidConfig) {
			t.Errorf("Set(%s, %s) error = %v, want ErrInvalidConfig", kv[0], kv[1], err)
		}
	}
}

func TestSettings_Clear(t *testing.T) {
	s := &Settings{
		DefaultInventory: "inv.yaml",
		DefaultSource:    "R1",
		RedisAddr:        "localhost:6379",
		Workers:          4,
	}

	s.Clear()

	if *s != (Settings{}) {
		t.Error("Clear() should reset all fields to empty")
	}
}

func TestSettings_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "settings.json")

	original := &Settings{
		DefaultInventory: "/srv/inventory.yaml",
		DefaultSource:    "R1",
		DefaultPlatform:  "iosxe",
		RedisAddr:        "10.0.0.5:6379",
		SnapshotKey:      "LAB",
		Workers:          8,
	}

	if err := original.SaveTo(path); err != nil {
		t.Fatalf("SaveTo() failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("settings file not created: %v", err)
	}

	loaded, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom() failed: %v", err)
	}
	if *loaded != *original {
		t.Errorf("loaded %+v, want %+v", loaded, original)
	}
}

func TestSettings_LoadNonExistent(t *testing.T) {
	s, err := LoadFrom(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("LoadFrom() non-existent should not error: %v", err)
	}
	if *s != (Settings{}) {
		t.Errorf("non-existent file should give empty settings, got %+v", s)
	}
}

func TestSettings_LoadInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	if err := os.WriteFile(path, []byte("{invalid json"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFrom(path); err == nil {
		t.Error("LoadFrom() should fail on invalid JSON")
	}
}

func TestDefaultSettingsPath(t *testing.T) {
	path := DefaultSettingsPath()
	if filepath.Base(path) != "settings.json" || filepath.Base(filepath.Dir(path)) != ".newtrace" {
		t.Errorf("DefaultSettingsPath() = %q, want .../.newtrace/settings.json", path)
	}
}

func TestKeys(t *testing.T) {
	keys := Keys()
	if len(keys) != 6 || keys[0] != "default_inventory" || keys[5] != "workers" {
		t.Errorf("Keys() = %v", keys)
	}
}

func TestSettings_Get(t *testing.T) {
	s := &Settings{}
	for _, key := range Keys() {
		if err := s.Set(key, "7"); err != nil {
			t.Fatalf("Set(%s): %v", key, err)
		}
		got, err := s.Get(strings.ToUpper(key))
		if err != nil {
			t.Fatalf("Get(%s): %v", key, err)
		}
		if got != "7" {
			t.Errorf("Get(%s) = %q, want 7", key, got)
		}
	}

	s.Clear()
	if got, _ := s.Get("workers"); got != "" {
		t.Errorf("Get(workers) after Clear = %q, want empty", got)
	}
	if _, err := s.Get("bogus"); !errors.Is(err, util.ErrInvalidConfig) {
		t.Errorf("Get(bogus) error = %v, want ErrInvalidConfig", err)
	}
}
