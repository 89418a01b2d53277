package main

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// consoleSettings is the optional TOML overlay named by CONSOLE_CONFIG_FILE.
type consoleSettings struct {
	Lists   listSettings   `toml:"lists"`
	Reasons reasonSettings `toml:"reasons"`
}

type listSettings struct {
	PerPagePresets []int `toml:"per_page_presets"`
	DefaultPerPage int   `toml:"default_per_page"`
}

type reasonSettings struct {
	RejectMin        int `toml:"reject_min"`
	ArchiveMin       int `toml:"archive_min"`
	UnarchiveMin     int `toml:"unarchive_min"`
	StatusRemarksMin int `toml:"status_remarks_min"`
}

func defaultConsoleSettings() consoleSettings {
	return consoleSettings{
		Lists: listSettings{
			PerPagePresets: []int{10, 25, 50, 100},
			DefaultPerPage: 10,
		},
		Reasons: reasonSettings{
			RejectMin:        10,
			ArchiveMin:       10,
			UnarchiveMin:     10,
			StatusRemarksMin: 10,
		},
	}
}

// loadConsoleSettings decodes path over defaults. A blank path or a missing
// file yields the defaults unchanged.
func loadConsoleSettings(path string, defaults consoleSettings) (consoleSettings, error) {
	settings := defaults
	if strings.TrimSpace(path) == "" {
		return settings, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return settings, nil
		}
		return consoleSettings{}, fmt.Errorf("read console config: %w", err)
	}
	if len(content) == 0 {
		return settings, nil
	}

	if err := toml.Unmarshal(content, &settings); err != nil {
		return consoleSettings{}, fmt.Errorf("decode console config: %w", err)
	}
	if err := settings.Validate(); err != nil {
		return consoleSettings{}, err
	}
	return settings, nil
}

func (s consoleSettings) Validate() error {
	if len(s.Lists.PerPagePresets) == 0 {
		return errors.New("lists.per_page_presets must not be empty")
	}
	for _, preset := range s.Lists.PerPagePresets {
		if preset < 1 {
			return fmt.Errorf("lists.per_page_presets must be positive, got %d", preset)
		}
	}
	if !slices.Contains(s.Lists.PerPagePresets, s.Lists.DefaultPerPage) {
		return fmt.Errorf("lists.default_per_page %d is not one of lists.per_page_presets", s.Lists.DefaultPerPage)
	}

	minimums := []struct {
		name  string
		value int
	}{
		{"reasons.reject_min", s.Reasons.RejectMin},
		{"reasons.archive_min", s.Reasons.ArchiveMin},
		{"reasons.unarchive_min", s.Reasons.UnarchiveMin},
		{"reasons.status_remarks_min", s.Reasons.StatusRemarksMin},
	}
	for _, minimum := range minimums {
		if minimum.value < 1 {
			return fmt.Errorf("%s must be >= 1", minimum.name)
		}
	}
	return nil
}
