// Package settings holds user-editable preferences loaded from a YAML file:
// the AUR helper probe order and the terms behind the popular listing.
package settings

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/Vulkestra/AUS-Arch-User-Store/internal/aur"
	"github.com/Vulkestra/AUS-Arch-User-Store/internal/helper"
)

// Settings is the on-disk preferences document.
//
//	helpers: [paru, yay]
//	popular: [browser, editor]
//
// An omitted or empty list falls back to the built-in default.
type Settings struct {
	Helpers []string `yaml:"helpers" json:"helpers"`
	Popular []string `yaml:"popular" json:"popular"`
}

// Defaults returns the built-in settings.
func Defaults() Settings {
	return Settings{
		Helpers: slices.Clone(helper.DefaultCandidates),
		Popular: slices.Clone(aur.DefaultPopularTerms),
	}
}

// DefaultPath is $XDG_CONFIG_HOME/aur-store/settings.yaml, or the
// equivalent under the user's home directory.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "settings.yaml"
	}
	return filepath.Join(dir, "aur-store", "settings.yaml")
}

// Load reads settings from path. A missing file yields the defaults.
func Load(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Defaults(), nil
	}
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read settings: %w", err)
	}
	return Parse(data)
}

// Parse decodes a settings document and fills in defaults.
func Parse(data []byte) (Settings, error) {
	var s Settings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Settings{}, fmt.Errorf("failed to parse YAML: %w", err)
	}

	defaults := Defaults()
	s.Helpers = nonEmpty(s.Helpers)
	if len(s.Helpers) == 0 {
		s.Helpers = defaults.Helpers
	}
	s.Popular = nonEmpty(s.Popular)
	if len(s.Popular) == 0 {
		s.Popular = defaults.Popular
	}
	return s, nil
}

func nonEmpty(items []string) []string {
	out := items[:0:0]
	for _, item := range items {
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}

// Store holds the current settings for concurrent readers.
type Store struct {
	mu      sync.RWMutex
	current Settings
}

// NewStore creates a store holding s.
func NewStore(s Settings) *Store {
	return &Store{current: s}
}

// Get returns a copy of the current settings.
func (st *Store) Get() Settings {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return Settings{
		Helpers: slices.Clone(st.current.Helpers),
		Popular: slices.Clone(st.current.Popular),
	}
}

// Set replaces the current settings.
func (st *Store) Set(s Settings) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.current = s
}

// Helpers returns the helper probe order. It satisfies
// helper.CandidateSource, so edits apply to the next detection.
func (st *Store) Helpers() []string {
	return st.Get().Helpers
}

// PopularTerms returns the search terms behind the popular listing.
func (st *Store) PopularTerms() []string {
	return st.Get().Popular
}
