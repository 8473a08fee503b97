package supervisor

import (
	"os"
	"strconv"

	"github.com/AidanHarveyNelson/factorio-headless/internal/config"
	"github.com/AidanHarveyNelson/factorio-headless/internal/service/installer"
	"github.com/AidanHarveyNelson/factorio-headless/internal/service/saves"
	"github.com/AidanHarveyNelson/factorio-headless/internal/service/volume"
)

// LaunchSpec is the fully resolved command for one child process run.
// It is derived fresh each launch from the pipeline's state and never
// persisted.
type LaunchSpec struct {
	// Binary is the executable to start.
	Binary string
	// Args is the argument list, excluding the binary itself.
	Args []string
	// WorkingDir is the child's working directory.
	WorkingDir string
	// Env is the child's environment.
	Env []string
}

// BuildServerSpec assembles the launch command for the server process from
// the resolved save selection, volume layout, and credentials.
func BuildServerSpec(cfg *config.Config, layout *volume.Layout, selection *saves.Selection, rconPassword string) *LaunchSpec {
	args := []string{
		"--port", strconv.Itoa(cfg.Port),
		"--rcon-port", strconv.Itoa(cfg.RconPort),
		"--rcon-password", rconPassword,
		"--server-settings", layout.ServerSettings(),
		"--server-whitelist", layout.Whitelist(),
		"--use-server-whitelist",
		"--server-banlist", layout.Banlist(),
		"--server-adminlist", layout.Adminlist(),
		"--server-id", layout.ServerID(),
		"--mod-directory", layout.ModsDir,
		"--console-log", layout.ConsoleLog(),
	}

	switch selection.Kind {
	case saves.KindScenario:
		args = append(args, "--start-server-load-scenario", selection.ScenarioName)
	case saves.KindNamedSave, saves.KindNewSave, saves.KindLatestSave:
		args = append(args, "--start-server", selection.SavePath)
	}

	return newSpec(cfg, args)
}

// BuildCreateSpec assembles the save generation command that runs to
// completion before the server itself is launched.
func BuildCreateSpec(cfg *config.Config, layout *volume.Layout, selection *saves.Selection) *LaunchSpec {
	args := []string{
		"--create", selection.SavePath,
		"--map-gen-settings", layout.MapGenSettings(),
		"--map-settings", layout.MapSettings(),
	}

	if selection.Preset != "" {
		args = append(args, "--preset", selection.Preset)
	}

	return newSpec(cfg, args)
}

// newSpec wraps the server binary invocation, dropping privileges through
// runuser when an owning user and group are configured.
func newSpec(cfg *config.Config, args []string) *LaunchSpec {
	binary := installer.BinaryPath(cfg.FactorioDir)

	if cfg.RunAsUser != "" && cfg.RunAsGroup != "" {
		args = append([]string{"-u", cfg.RunAsUser, "-g", cfg.RunAsGroup, "--", binary}, args...)
		binary = "runuser"
	}

	return &LaunchSpec{
		Binary:     binary,
		Args:       args,
		WorkingDir: cfg.FactorioDir,
		Env:        os.Environ(),
	}
}
