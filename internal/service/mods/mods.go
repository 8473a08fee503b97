package mods

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/AidanHarveyNelson/factorio-headless/internal/config"
	"github.com/AidanHarveyNelson/factorio-headless/internal/domain/stage"
	"github.com/AidanHarveyNelson/factorio-headless/internal/logger"
)

// baseModName is always present and enabled; the server will not start
// without it.
const baseModName = "base"

// spaceAgeMods is the bundle governed by the DLC toggle. Entries outside this
// set are user-owned and pass through reconciliation untouched.
var spaceAgeMods = []string{"space-age", "elevated-rails", "quality"}

// Entry is one row of the mod enablement manifest.
type Entry struct {
	// Name is the mod's internal name.
	Name string `json:"name"`
	// Enabled controls whether the server loads the mod.
	Enabled bool `json:"enabled"`
}

// Manifest mirrors mod-list.json: an ordered list of mod entries.
type Manifest struct {
	Mods []Entry `json:"mods"`
}

// GovernedMods returns the mod names owned by the DLC toggle.
func GovernedMods() []string {
	result := make([]string, len(spaceAgeMods))
	copy(result, spaceAgeMods)

	return result
}

// Load reads the manifest from disk, or returns an empty manifest when the
// file does not exist yet.
func Load(path string) (*Manifest, error) {
	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Manifest{}, nil
		}

		return nil, fmt.Errorf("read mod manifest: %w", err)
	}

	var manifest Manifest
	if err = json.Unmarshal(contents, &manifest); err != nil {
		return nil, fmt.Errorf("unmarshal mod manifest: %w", err)
	}

	return &manifest, nil
}

// Apply reconciles the manifest at path against the DLC toggle: governed
// entries are upserted to the toggle state, the base mod is ensured enabled,
// and every other entry is preserved verbatim in its original position.
// Applying the same toggle twice yields a byte-identical file.
func Apply(ctx context.Context, path string, dlcEnabled bool) error {
	manifest, err := Load(path)
	if err != nil {
		return fmt.Errorf("%w: %w", stage.ErrFilesystem, err)
	}

	manifest.upsert(baseModName, true)

	for _, name := range spaceAgeMods {
		manifest.upsert(name, dlcEnabled)
	}

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal mod manifest: %w", err)
	}

	data = append(data, '\n')

	// Skip the write when nothing changed, keeping reconciliation quiet.
	if existing, readErr := os.ReadFile(filepath.Clean(path)); readErr == nil && bytes.Equal(existing, data) {
		return nil
	}

	if err = os.WriteFile(path, data, config.DefaultFilePermissions); err != nil {
		return fmt.Errorf("%w: write mod manifest: %w", stage.ErrFilesystem, err)
	}

	logger.InfoKV(ctx, "Reconciled mod manifest",
		"path", path, "dlc_enabled", dlcEnabled)

	return nil
}

// upsert sets the named entry's enabled state, appending it when absent.
func (m *Manifest) upsert(name string, enabled bool) {
	for i := range m.Mods {
		if m.Mods[i].Name == name {
			m.Mods[i].Enabled = enabled
			return
		}
	}

	m.Mods = append(m.Mods, Entry{Name: name, Enabled: enabled})
}
