package supervisor

import (
	"context"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/AidanHarveyNelson/factorio-headless/internal/config"
	"github.com/AidanHarveyNelson/factorio-headless/internal/domain/stage"
	"github.com/AidanHarveyNelson/factorio-headless/internal/service/saves"
	"github.com/AidanHarveyNelson/factorio-headless/internal/service/volume"
)

func shellSpec(t *testing.T, script string) *LaunchSpec {
	t.Helper()

	return &LaunchSpec{
		Binary:     "/bin/sh",
		Args:       []string{"-c", script},
		WorkingDir: t.TempDir(),
	}
}

// TestSuperviseCleanExit transitions to stopped with exit code zero.
func TestSuperviseCleanExit(t *testing.T) {
	t.Parallel()

	s := New()
	require.Equal(t, StateStarting, s.State())

	code, err := s.Supervise(context.Background(), shellSpec(t, "exit 0"))
	require.NoError(t, err)
	require.Zero(t, code)
	require.Equal(t, StateStopped, s.State())
}

// TestSuperviseCrash surfaces an abnormal exit as a crash with the child's
// code, without retrying.
func TestSuperviseCrash(t *testing.T) {
	t.Parallel()

	s := New()

	code, err := s.Supervise(context.Background(), shellSpec(t, "exit 3"))
	require.ErrorIs(t, err, stage.ErrChildProcess)
	require.Equal(t, 3, code)
	require.Equal(t, StateCrashed, s.State())
}

// TestSuperviseForwardsTermination forwards an external termination request
// and adopts the child's resulting exit code.
func TestSuperviseForwardsTermination(t *testing.T) {
	t.Parallel()

	s := New()

	go func() {
		time.Sleep(200 * time.Millisecond)
		s.Terminate(syscall.SIGTERM)
	}()

	code, err := s.Supervise(context.Background(), shellSpec(t, "sleep 30"))
	require.NoError(t, err)
	require.Equal(t, signalExitBase+int(syscall.SIGTERM), code)
	require.Equal(t, StateStopped, s.State())
}

// TestSuperviseTrapHandler propagates the code a graceful shutdown handler
// chooses, still counting as an ordered stop.
func TestSuperviseTrapHandler(t *testing.T) {
	t.Parallel()

	s := New()

	go func() {
		time.Sleep(200 * time.Millisecond)
		s.Terminate(syscall.SIGTERM)
	}()

	script := `trap "exit 7" TERM; while :; do sleep 0.1; done`

	code, err := s.Supervise(context.Background(), shellSpec(t, script))
	require.NoError(t, err)
	require.Equal(t, 7, code)
	require.Equal(t, StateStopped, s.State())
}

// TestSuperviseStartFailure reports a missing binary as a child error.
func TestSuperviseStartFailure(t *testing.T) {
	t.Parallel()

	s := New()
	spec := &LaunchSpec{Binary: "/nonexistent/binary"}

	code, err := s.Supervise(context.Background(), spec)
	require.ErrorIs(t, err, stage.ErrChildProcess)
	require.Equal(t, 1, code)
	require.Equal(t, StateCrashed, s.State())
}

// TestRunToCompletion covers the save generation pre-pass.
func TestRunToCompletion(t *testing.T) {
	t.Parallel()

	s := New()
	require.NoError(t, s.RunToCompletion(context.Background(), shellSpec(t, "exit 0")))

	err := s.RunToCompletion(context.Background(), shellSpec(t, "exit 1"))
	require.ErrorIs(t, err, stage.ErrChildProcess)
}

// TestBuildServerSpec checks the assembled argument list for a named save.
func TestBuildServerSpec(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{
		FactorioDir: "/opt/factorio",
		Port:        34197,
		RconPort:    27015,
	}
	layout := volume.NewLayout("/factorio")
	selection := &saves.Selection{
		Kind:     saves.KindNamedSave,
		SavePath: "/factorio/saves/world.zip",
	}

	spec := BuildServerSpec(cfg, layout, selection, "secret")
	require.Equal(t, "/opt/factorio/bin/x64/factorio", spec.Binary)
	require.Equal(t, "/opt/factorio", spec.WorkingDir)

	joined := spec.Args
	require.Contains(t, joined, "--port")
	require.Contains(t, joined, "34197")
	require.Contains(t, joined, "--rcon-port")
	require.Contains(t, joined, "27015")
	require.Contains(t, joined, "--rcon-password")
	require.Contains(t, joined, "secret")
	require.Contains(t, joined, "--use-server-whitelist")
	require.Contains(t, joined, "--mod-directory")
	require.Contains(t, joined, "/factorio/mods")
	require.Contains(t, joined, "--start-server")
	require.Contains(t, joined, "/factorio/saves/world.zip")
	require.NotContains(t, joined, "--start-server-load-scenario")
}

// TestBuildServerSpecScenario launches a scenario instead of a save.
func TestBuildServerSpecScenario(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{FactorioDir: "/opt/factorio", Port: 34197, RconPort: 27015}
	layout := volume.NewLayout("/factorio")
	selection := &saves.Selection{Kind: saves.KindScenario, ScenarioName: "tight-spot"}

	spec := BuildServerSpec(cfg, layout, selection, "secret")
	require.Contains(t, spec.Args, "--start-server-load-scenario")
	require.Contains(t, spec.Args, "tight-spot")
	require.NotContains(t, spec.Args, "--start-server")
}

// TestBuildSpecsRunuser wraps commands with runuser when an owning user and
// group are configured.
func TestBuildSpecsRunuser(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{
		FactorioDir: "/opt/factorio",
		Port:        34197,
		RconPort:    27015,
		RunAsUser:   "factorio",
		RunAsGroup:  "factorio",
	}
	layout := volume.NewLayout("/factorio")
	selection := &saves.Selection{
		Kind:     saves.KindNewSave,
		SavePath: "/factorio/saves/default_save.zip",
		Preset:   "rich-resources",
	}

	spec := BuildCreateSpec(cfg, layout, selection)
	require.Equal(t, "runuser", spec.Binary)
	require.Equal(t, []string{"-u", "factorio", "-g", "factorio", "--", "/opt/factorio/bin/x64/factorio"},
		spec.Args[:6])
	require.Contains(t, spec.Args, "--create")
	require.Contains(t, spec.Args, "--preset")
	require.Contains(t, spec.Args, "rich-resources")
}
