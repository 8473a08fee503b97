package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/AidanHarveyNelson/factorio-headless/internal/config"
	"github.com/AidanHarveyNelson/factorio-headless/internal/logger"
	"github.com/AidanHarveyNelson/factorio-headless/internal/service/manager"
	"github.com/AidanHarveyNelson/factorio-headless/internal/version"
)

var (
	// mountDir overrides the persistent volume root from the environment.
	mountDir string
	// factorioDir overrides the installation directory from the environment.
	factorioDir string
	// noUpdateCheck disables the hourly advisory release check.
	noUpdateCheck bool

	// exitCode is what the process exits with; it mirrors the server child.
	exitCode int

	// rootCmd represents the base command that runs the server lifecycle.
	rootCmd = &cobra.Command{
		Use:   "factorio-manager",
		Short: "Run a managed Factorio headless server inside a container.",
		Long: `Manages the full lifecycle of a containerized Factorio headless server.

On startup the manager resolves the declared version (a channel like "stable"
or an exact pin), installs it under the installation directory, prepares the
persistent volume (config files, mod manifest, credentials), selects the save
or scenario to run, and then launches and supervises the server process.

Configuration is read from the environment (MOUNT_DIR, FACTORIO_DIR, PORT,
RCON_PORT, VERSION, DLC_SPACE_AGE, SAVE_NAME, ...); flags override a few of
the common values. Termination signals are forwarded to the server and the
manager exits with the server's own exit code.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			cfg, err := config.FromEnvironment()
			if err != nil {
				return err
			}

			if cmd.Flags().Changed("mount-dir") {
				cfg.MountDir = mountDir
			}

			if cmd.Flags().Changed("factorio-dir") {
				cfg.FactorioDir = factorioDir
			}

			setupLogger(cfg)

			code, err := manager.Run(ctx, &manager.Options{
				Config:             cfg,
				DisableUpdateCheck: noUpdateCheck,
			})

			exitCode = code

			return err
		},
	}
)

// setupLogger configures the global logger from the declared level, adding a
// rolling file sink when one is configured.
func setupLogger(cfg *config.Config) {
	level, ok := logger.ParseLogLevel(cfg.LogLevel)
	if !ok {
		logger.WarnKV(context.Background(), "Unknown log level, using info", "level", cfg.LogLevel)
		return
	}

	if cfg.LogFile != "" {
		logger.SetLogger(logger.NewWithFile(level, cfg.LogFile))
		return
	}

	logger.SetLevel(level)
}

// Execute runs the manager CLI and exits with the server's exit code.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		if exitCode == 0 {
			exitCode = 1
		}
	}

	os.Exit(exitCode)
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.SilenceUsage = true

	// Setup command flags with consistent naming and descriptions.
	rootCmd.Flags().StringVarP(&mountDir, "mount-dir", "m", "", "persistent volume root (overrides MOUNT_DIR)")
	rootCmd.Flags().StringVarP(&factorioDir, "factorio-dir", "f", "", "installation directory (overrides FACTORIO_DIR)")
	rootCmd.Flags().BoolVar(&noUpdateCheck, "no-update-check", false, "disable the hourly advisory release check")
}
