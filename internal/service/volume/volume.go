package volume

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/AidanHarveyNelson/factorio-headless/internal/config"
	"github.com/AidanHarveyNelson/factorio-headless/internal/domain/stage"
	"github.com/AidanHarveyNelson/factorio-headless/internal/logger"
)

var errNotSymlink = errors.New("install root entry exists and is not a symlink")

// Layout resolves every path the pipeline needs under the persistent mount.
type Layout struct {
	// Root is the mount directory.
	Root string
	// SavesDir holds save archives.
	SavesDir string
	// ConfigDir holds server configuration files.
	ConfigDir string
	// ModsDir holds mod files and mod-list.json.
	ModsDir string
	// ScenariosDir holds scenario packages.
	ScenariosDir string
	// ScriptOutputDir receives script output from the running server.
	ScriptOutputDir string
}

// NewLayout derives the fixed directory layout from the mount root.
func NewLayout(root string) *Layout {
	return &Layout{
		Root:            root,
		SavesDir:        filepath.Join(root, "saves"),
		ConfigDir:       filepath.Join(root, "config"),
		ModsDir:         filepath.Join(root, "mods"),
		ScenariosDir:    filepath.Join(root, "scenarios"),
		ScriptOutputDir: filepath.Join(root, "script-output"),
	}
}

// Config file locations under ConfigDir.

// ServerSettings is the main server settings file.
func (l *Layout) ServerSettings() string { return filepath.Join(l.ConfigDir, "server-settings.json") }

// Whitelist is the allow list file.
func (l *Layout) Whitelist() string { return filepath.Join(l.ConfigDir, "server-whitelist.json") }

// Banlist is the ban list file.
func (l *Layout) Banlist() string { return filepath.Join(l.ConfigDir, "server-banlist.json") }

// Adminlist is the admin list file.
func (l *Layout) Adminlist() string { return filepath.Join(l.ConfigDir, "server-adminlist.json") }

// MapGenSettings is the map generation settings file.
func (l *Layout) MapGenSettings() string { return filepath.Join(l.ConfigDir, "map-gen-settings.json") }

// MapSettings is the map settings file.
func (l *Layout) MapSettings() string { return filepath.Join(l.ConfigDir, "map-settings.json") }

// BaseConfig is the base config.ini consumed by the server binary.
func (l *Layout) BaseConfig() string { return filepath.Join(l.ConfigDir, "config.ini") }

// CredentialsFile stores the RCON password.
func (l *Layout) CredentialsFile() string { return filepath.Join(l.ConfigDir, "rconpw") }

// ServerID is the persisted server identity file.
func (l *Layout) ServerID() string { return filepath.Join(l.ConfigDir, "server-id.json") }

// ModManifest is the mod enablement manifest.
func (l *Layout) ModManifest() string { return filepath.Join(l.ModsDir, "mod-list.json") }

// ConsoleLog is the server console log on the volume.
func (l *Layout) ConsoleLog() string { return filepath.Join(l.Root, "factorio-console.log") }

// Reconcile ensures the required subdirectories exist, seeds any missing
// default configuration files, and points the install root's save, scenario,
// and config entries at the volume. Existing files are never overwritten:
// every seeded file is user-editable and must survive container recreation.
// Running twice against a correct layout performs no writes.
//
// Reconcile runs after installation, so the symlinks are recreated whenever
// an install swaps in a fresh root.
func Reconcile(ctx context.Context, layout *Layout, installDir string) error {
	for _, dir := range []string{
		layout.SavesDir,
		layout.ConfigDir,
		layout.ModsDir,
		layout.ScenariosDir,
		layout.ScriptOutputDir,
	} {
		if err := os.MkdirAll(dir, config.DefaultDirPermissions); err != nil {
			return fmt.Errorf("%w: create %s: %w", stage.ErrFilesystem, dir, err)
		}
	}

	for _, seed := range defaultFiles(layout) {
		seeded, err := seedFile(seed, installDir)
		if err != nil {
			return fmt.Errorf("%w: %w", stage.ErrFilesystem, err)
		}

		if seeded {
			logger.InfoKV(ctx, "Seeded default config file", "path", seed.path)
		}
	}

	if err := os.MkdirAll(installDir, config.DefaultDirPermissions); err != nil {
		return fmt.Errorf("%w: create %s: %w", stage.ErrFilesystem, installDir, err)
	}

	for _, link := range installLinks(layout, installDir) {
		linked, err := ensureLink(link.path, link.target)
		if err != nil {
			return fmt.Errorf("%w: %w", stage.ErrFilesystem, err)
		}

		if linked {
			logger.InfoKV(ctx, "Linked install directory into volume",
				"link", link.path, "target", link.target)
		}
	}

	return nil
}

// installLink names one install-root entry that must resolve to the volume.
type installLink struct {
	path   string
	target string
}

// installLinks lists the install-root symlinks the server depends on: it
// resolves scenario names, save paths, and config.ini relative to its own
// tree, so those entries must point at the persistent volume.
func installLinks(layout *Layout, installDir string) []installLink {
	return []installLink{
		{filepath.Join(installDir, "saves"), layout.SavesDir},
		{filepath.Join(installDir, "scenarios"), layout.ScenariosDir},
		{filepath.Join(installDir, "config"), layout.ConfigDir},
	}
}

// ensureLink creates the symlink, repointing a stale one at the current
// target. A pre-existing non-symlink entry is an error: release archives
// never ship these entries, so a real directory means the install root was
// tampered with and replacing it could destroy data.
// Returns whether a link was written.
func ensureLink(path, target string) (bool, error) {
	info, err := os.Lstat(path)

	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return false, fmt.Errorf("lstat %s: %w", path, err)
	case info.Mode()&os.ModeSymlink == 0:
		return false, fmt.Errorf("%s: %w", path, errNotSymlink)
	default:
		existing, readErr := os.Readlink(path)
		if readErr != nil {
			return false, fmt.Errorf("readlink %s: %w", path, readErr)
		}

		if existing == target {
			return false, nil
		}

		if removeErr := os.Remove(path); removeErr != nil {
			return false, fmt.Errorf("relink %s: %w", path, removeErr)
		}
	}

	if err = os.Symlink(target, path); err != nil {
		return false, fmt.Errorf("link %s: %w", path, err)
	}

	return true, nil
}

// seedDefault describes one file seeded on first run.
type seedDefault struct {
	// path is the destination under the config directory.
	path string
	// exampleName is the optional example payload inside the installation's
	// data directory, preferred over the built-in fallback.
	exampleName string
	// fallback is the built-in payload used when no example ships.
	fallback string
}

func defaultFiles(layout *Layout) []seedDefault {
	return []seedDefault{
		{layout.ServerSettings(), "server-settings.example.json", defaultServerSettings},
		{layout.Whitelist(), "server-whitelist.example.json", defaultWhitelist},
		{layout.Banlist(), "server-banlist.example.json", defaultBanlist},
		{layout.Adminlist(), "server-adminlist.example.json", defaultAdminlist},
		{layout.MapGenSettings(), "map-gen-settings.example.json", defaultMapGenSettings},
		{layout.MapSettings(), "map-settings.example.json", defaultMapSettings},
		{layout.BaseConfig(), "", defaultBaseConfig},
	}
}

// seedFile writes the default payload only when the file is absent.
// Returns whether a write happened.
func seedFile(seed seedDefault, installDir string) (bool, error) {
	if _, err := os.Stat(seed.path); err == nil {
		return false, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("stat %s: %w", seed.path, err)
	}

	payload := []byte(seed.fallback)

	if seed.exampleName != "" {
		example := filepath.Join(installDir, "data", seed.exampleName)
		if contents, err := os.ReadFile(filepath.Clean(example)); err == nil {
			payload = contents
		}
	}

	if err := os.WriteFile(seed.path, payload, config.DefaultFilePermissions); err != nil {
		return false, fmt.Errorf("seed %s: %w", seed.path, err)
	}

	return true, nil
}
