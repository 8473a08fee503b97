package manager

import (
	"context"
	"errors"
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/AidanHarveyNelson/factorio-headless/internal/config"
	"github.com/AidanHarveyNelson/factorio-headless/internal/domain/stage"
	"github.com/AidanHarveyNelson/factorio-headless/internal/logger"
	"github.com/AidanHarveyNelson/factorio-headless/internal/service/credentials"
	"github.com/AidanHarveyNelson/factorio-headless/internal/service/installer"
	"github.com/AidanHarveyNelson/factorio-headless/internal/service/mods"
	"github.com/AidanHarveyNelson/factorio-headless/internal/service/resolver"
	"github.com/AidanHarveyNelson/factorio-headless/internal/service/saves"
	"github.com/AidanHarveyNelson/factorio-headless/internal/service/supervisor"
	"github.com/AidanHarveyNelson/factorio-headless/internal/service/volume"
)

// updateCheckSchedule triggers the advisory release check once an hour while
// the server runs. The check only logs; switching versions requires a
// container restart.
const updateCheckSchedule = "@hourly"

var errNoUsableInstall = errors.New("no usable installation and upstream is unreachable")

// Options are inputs accepted by the manager entry point. Zero-value
// collaborators are replaced with production defaults, which lets tests
// substitute endpoint-redirected ones.
type Options struct {
	// Config is the validated environment configuration.
	Config *config.Config
	// Resolver decides which upstream release to run. Optional.
	Resolver *resolver.Resolver
	// Installer lands releases into the installation directory. Optional.
	Installer *installer.Installer
	// Supervisor runs the server child process. Optional.
	Supervisor *supervisor.Supervisor
	// DisableUpdateCheck turns off the periodic advisory release check.
	DisableUpdateCheck bool
}

// runner holds the state threaded through a single startup pipeline.
type runner struct {
	cfg        *config.Config
	resolver   *resolver.Resolver
	installer  *installer.Installer
	supervisor *supervisor.Supervisor
	layout     *volume.Layout

	advisoryCheck bool
}

// Run drives the full lifecycle: resolve, install, reconcile, select, launch,
// supervise. It blocks until the server process exits and returns the exit
// code the manager itself should exit with.
func Run(ctx context.Context, opts *Options) (int, error) {
	ctx = logger.WithName(ctx, "factorio-manager")

	r := newRunner(opts)

	code, err := r.run(ctx)
	if err != nil {
		logger.ErrorKV(ctx, "Manager run failed", "error", err)
		return code, err
	}

	logger.InfoKV(ctx, "Manager completed", "exit_code", code)

	return code, nil
}

func newRunner(opts *Options) *runner {
	r := &runner{
		cfg:           opts.Config,
		resolver:      opts.Resolver,
		installer:     opts.Installer,
		supervisor:    opts.Supervisor,
		layout:        volume.NewLayout(opts.Config.MountDir),
		advisoryCheck: !opts.DisableUpdateCheck,
	}

	if r.resolver == nil {
		r.resolver = resolver.New()
	}

	if r.installer == nil {
		r.installer = installer.New()
	}

	if r.supervisor == nil {
		r.supervisor = supervisor.New()
	}

	return r
}

func (r *runner) run(ctx context.Context) (int, error) {
	if err := r.ensureInstalled(ctx); err != nil {
		return 1, err
	}

	if err := r.reconcile(ctx); err != nil {
		return 1, err
	}

	selection, err := saves.Select(ctx, r.cfg, r.layout)
	if err != nil {
		return 1, stage.Wrap(stage.Select, err)
	}

	password, err := credentials.EnsureRconPassword(ctx, r.layout.CredentialsFile())
	if err != nil {
		return 1, stage.Wrap(stage.Launch, err)
	}

	if selection.Kind == saves.KindNewSave {
		if err = r.generateSave(ctx, selection); err != nil {
			return 1, stage.Wrap(stage.Launch, err)
		}
	}

	if r.advisoryCheck {
		stopCheck := r.startUpdateCheck(ctx)
		defer stopCheck()
	}

	spec := supervisor.BuildServerSpec(r.cfg, r.layout, selection, password)

	code, err := r.supervisor.Supervise(ctx, spec)
	if err != nil {
		return code, stage.Wrap(stage.Supervise, err)
	}

	return code, nil
}

// ensureInstalled resolves the declared version and installs it when it
// differs from what is on disk. Upstream being unreachable is fatal only on
// the very first run: with a prior installation present the manager warns
// and launches what it has.
func (r *runner) ensureInstalled(ctx context.Context) error {
	installed, err := installer.InstalledVersion(r.cfg.FactorioDir)
	if err != nil {
		return stage.Wrap(stage.Resolve, err)
	}

	release, err := r.resolver.Resolve(ctx, r.cfg, installed)
	if err != nil {
		if errors.Is(err, stage.ErrNetwork) && installed != "" {
			logger.WarnKV(ctx, "Release resolution failed, keeping installed version",
				"installed", installed, "error", err)

			return nil
		}

		if errors.Is(err, stage.ErrNetwork) {
			return stage.Wrap(stage.Resolve, fmt.Errorf("%w: %w", errNoUsableInstall, err))
		}

		return stage.Wrap(stage.Resolve, err)
	}

	if release == nil {
		return nil
	}

	if err = r.installer.Install(ctx, r.cfg, release); err != nil {
		if errors.Is(err, stage.ErrNetwork) && installed != "" {
			logger.WarnKV(ctx, "Release download failed, keeping installed version",
				"installed", installed, "wanted", release.Version, "error", err)

			return nil
		}

		return stage.Wrap(stage.Install, err)
	}

	return nil
}

// reconcile prepares the persistent volume and aligns the mod manifest with
// the declared DLC toggle.
func (r *runner) reconcile(ctx context.Context) error {
	if err := volume.Reconcile(ctx, r.layout, r.cfg.FactorioDir); err != nil {
		return stage.Wrap(stage.Reconcile, err)
	}

	if err := mods.Apply(ctx, r.layout.ModManifest(), r.cfg.DLCSpaceAge); err != nil {
		return stage.Wrap(stage.Reconcile, err)
	}

	return nil
}

// generateSave runs the map creation pass to completion before launch.
func (r *runner) generateSave(ctx context.Context, selection *saves.Selection) error {
	logger.InfoKV(ctx, "Generating new save",
		"save", selection.SavePath, "preset", selection.Preset)

	spec := supervisor.BuildCreateSpec(r.cfg, r.layout, selection)

	return r.supervisor.RunToCompletion(ctx, spec)
}

// startUpdateCheck schedules an hourly advisory check for newer releases
// while the server runs. Findings are logged only; the running server is
// never touched.
func (r *runner) startUpdateCheck(ctx context.Context) func() {
	scheduler := cron.New()

	_, err := scheduler.AddFunc(updateCheckSchedule, func() {
		installed, readErr := installer.InstalledVersion(r.cfg.FactorioDir)
		if readErr != nil {
			logger.WarnKV(ctx, "Update check skipped", "error", readErr)
			return
		}

		release, resolveErr := r.resolver.Resolve(ctx, r.cfg, installed)
		if resolveErr != nil {
			logger.WarnKV(ctx, "Update check failed", "error", resolveErr)
			return
		}

		if release != nil {
			logger.InfoKV(ctx, "Newer release available, restart the container to install it",
				"installed", installed, "available", release.Version)
		}
	})
	if err != nil {
		logger.WarnKV(ctx, "Unable to schedule update check", "error", err)
		return func() {}
	}

	scheduler.Start()

	return func() {
		scheduler.Stop()
	}
}
