package installer

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/AidanHarveyNelson/factorio-headless/internal/config"
)

// MarkerFilename is the version marker inside the installation root. It is
// written only after a verified-complete extraction, so its presence is the
// definition of "installed".
const MarkerFilename = "factorio-version.yaml"

// Marker records what release an installation root contains.
type Marker struct {
	// Version is the exact installed version string.
	Version string `yaml:"version"`
	// Channel is the track the version was resolved from.
	Channel string `yaml:"channel"`
	// InstalledAt is when the extraction finished.
	InstalledAt time.Time `yaml:"installed_at"`
}

// ReadMarker loads the version marker from the installation root.
// A missing marker (or missing root) yields an empty version, not an error:
// both mean "nothing usable is installed", including a crash mid-install.
func ReadMarker(installDir string) (*Marker, error) {
	contents, err := os.ReadFile(filepath.Clean(filepath.Join(installDir, MarkerFilename)))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Marker{}, nil
		}

		return nil, fmt.Errorf("read version marker: %w", err)
	}

	var marker Marker
	if err = yaml.Unmarshal(contents, &marker); err != nil {
		return nil, fmt.Errorf("unmarshal version marker: %w", err)
	}

	return &marker, nil
}

// writeMarker persists the version marker into the installation root.
func writeMarker(installDir string, marker *Marker) error {
	data, err := yaml.Marshal(marker)
	if err != nil {
		return fmt.Errorf("marshal version marker: %w", err)
	}

	path := filepath.Join(installDir, MarkerFilename)
	if err = os.WriteFile(path, data, config.DefaultFilePermissions); err != nil {
		return fmt.Errorf("write version marker: %w", err)
	}

	return nil
}
