package saves

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/AidanHarveyNelson/factorio-headless/internal/config"
	"github.com/AidanHarveyNelson/factorio-headless/internal/domain/stage"
	"github.com/AidanHarveyNelson/factorio-headless/internal/logger"
	"github.com/AidanHarveyNelson/factorio-headless/internal/service/volume"
)

// Kind tags the launch target variant. Exactly one resolves per launch.
type Kind string

const (
	// KindScenario launches a scenario package instead of a save.
	KindScenario Kind = "scenario"
	// KindNamedSave loads an explicitly named save archive.
	KindNamedSave Kind = "named-save"
	// KindNewSave generates a fresh save before launching.
	KindNewSave Kind = "new-save"
	// KindLatestSave loads the most recently modified save.
	KindLatestSave Kind = "latest-save"
)

// saveExtension is the archive suffix for save files.
const saveExtension = ".zip"

// defaultSaveBase names generated saves; a numeric suffix avoids collisions.
const defaultSaveBase = "default_save"

var (
	errScenarioNotFound = errors.New("scenario not found")
	errSaveNotFound     = errors.New("save not found")
	errNoSaves          = errors.New("no saves exist and save generation was not requested")
	errNothingSelected  = errors.New("no launch target declared and latest-save loading is disabled")
)

// Selection is the resolved launch target.
type Selection struct {
	// Kind is the variant that won the precedence check.
	Kind Kind
	// ScenarioName is set for KindScenario.
	ScenarioName string
	// SavePath is the absolute save archive path for the save variants.
	SavePath string
	// Preset is the map generation preset for KindNewSave, may be empty.
	Preset string
}

// Select resolves the launch target by explicit precedence: declared scenario,
// then declared save name, then the generate-new flag, then latest save.
// The latest-save fallback only applies while the load-latest toggle is on;
// with it off and nothing declared there is no target, which is a
// configuration error. An empty saves directory without the generate flag is
// a configuration error too.
func Select(ctx context.Context, cfg *config.Config, layout *volume.Layout) (*Selection, error) {
	switch {
	case cfg.ScenarioName != "":
		return selectScenario(ctx, cfg.ScenarioName, layout)
	case cfg.SaveName != "":
		return selectNamed(ctx, cfg.SaveName, layout)
	case cfg.GenerateNewSave:
		return selectNew(ctx, cfg.MapGenPreset, layout)
	case cfg.LoadLatestSave:
		return selectLatest(ctx, layout)
	default:
		return nil, fmt.Errorf("%w: %w", stage.ErrConfiguration, errNothingSelected)
	}
}

func selectScenario(ctx context.Context, name string, layout *volume.Layout) (*Selection, error) {
	path := filepath.Join(layout.ScenariosDir, name)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: scenario %q not in %s: %w",
				stage.ErrConfiguration, name, layout.ScenariosDir, errScenarioNotFound)
		}

		return nil, fmt.Errorf("%w: stat scenario %q: %w", stage.ErrFilesystem, name, err)
	}

	logger.InfoKV(ctx, "Selected scenario", "scenario", name)

	return &Selection{Kind: KindScenario, ScenarioName: name}, nil
}

func selectNamed(ctx context.Context, name string, layout *volume.Layout) (*Selection, error) {
	path := savePath(layout, name)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: save %q not in %s: %w",
				stage.ErrConfiguration, name, layout.SavesDir, errSaveNotFound)
		}

		return nil, fmt.Errorf("%w: stat save %q: %w", stage.ErrFilesystem, name, err)
	}

	logger.InfoKV(ctx, "Selected named save", "save", name)

	return &Selection{Kind: KindNamedSave, SavePath: path}, nil
}

func selectNew(ctx context.Context, preset string, layout *volume.Layout) (*Selection, error) {
	name, err := freshSaveName(layout)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", stage.ErrFilesystem, err)
	}

	logger.InfoKV(ctx, "Selected new save generation", "save", name, "preset", preset)

	return &Selection{
		Kind:     KindNewSave,
		SavePath: savePath(layout, name),
		Preset:   preset,
	}, nil
}

// selectLatest picks the save with the most recent modification time.
// Exact mtime ties resolve to the lexicographically greatest filename so the
// choice is reproducible across runs.
func selectLatest(ctx context.Context, layout *volume.Layout) (*Selection, error) {
	entries, err := os.ReadDir(layout.SavesDir)
	if err != nil {
		return nil, fmt.Errorf("%w: list saves: %w", stage.ErrFilesystem, err)
	}

	var (
		bestName  string
		bestMtime int64
	)

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), saveExtension) {
			continue
		}

		info, infoErr := entry.Info()
		if infoErr != nil {
			return nil, fmt.Errorf("%w: stat save %s: %w", stage.ErrFilesystem, entry.Name(), infoErr)
		}

		mtime := info.ModTime().UnixNano()
		if mtime > bestMtime || (mtime == bestMtime && entry.Name() > bestName) {
			bestName = entry.Name()
			bestMtime = mtime
		}
	}

	if bestName == "" {
		return nil, fmt.Errorf("%w: %s: %w", stage.ErrConfiguration, layout.SavesDir, errNoSaves)
	}

	logger.InfoKV(ctx, "Selected latest save", "save", bestName)

	return &Selection{
		Kind:     KindLatestSave,
		SavePath: filepath.Join(layout.SavesDir, bestName),
	}, nil
}

// freshSaveName finds an unused generated-save name.
func freshSaveName(layout *volume.Layout) (string, error) {
	name := defaultSaveBase

	for suffix := 2; ; suffix++ {
		if _, err := os.Stat(savePath(layout, name)); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return name, nil
			}

			return "", fmt.Errorf("stat save %q: %w", name, err)
		}

		name = fmt.Sprintf("%s_%d", defaultSaveBase, suffix)
	}
}

func savePath(layout *volume.Layout, name string) string {
	return filepath.Join(layout.SavesDir, name+saveExtension)
}
