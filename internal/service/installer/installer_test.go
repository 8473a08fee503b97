package installer

import (
	"archive/tar"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/ulikunitz/xz"

	"github.com/AidanHarveyNelson/factorio-headless/internal/config"
	"github.com/AidanHarveyNelson/factorio-headless/internal/service/resolver"
)

// buildArchive produces a minimal headless release archive in memory.
func buildArchive(t *testing.T) []byte {
	t.Helper()

	var buf bytes.Buffer

	xzWriter, err := xz.NewWriter(&buf)
	require.NoError(t, err)

	tarWriter := tar.NewWriter(xzWriter)

	entries := []struct {
		name     string
		contents string
	}{
		{"factorio/bin/x64/factorio", "#!/bin/sh\nexit 0\n"},
		{"factorio/data/server-settings.example.json", "{\"name\": \"example\"}\n"},
		{"factorio/data/map-gen-settings.example.json", "{}\n"},
		{"factorio/data/map-settings.example.json", "{}\n"},
		{"factorio/data/server-whitelist.example.json", "[]\n"},
	}

	for _, entry := range entries {
		require.NoError(t, tarWriter.WriteHeader(&tar.Header{
			Name: entry.name,
			Mode: 0o755,
			Size: int64(len(entry.contents)),
		}))

		_, err = tarWriter.Write([]byte(entry.contents))
		require.NoError(t, err)
	}

	require.NoError(t, tarWriter.Close())
	require.NoError(t, xzWriter.Close())

	return buf.Bytes()
}

func newTestInstall(t *testing.T, archive []byte) (*Installer, *config.Config, *resolver.Release) {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(archive)
	}))
	t.Cleanup(server.Close)

	sum := sha256.Sum256(archive)

	cfg := &config.Config{
		FactorioDir: filepath.Join(t.TempDir(), "factorio"),
	}

	release := &resolver.Release{
		Channel:     config.ChannelStable,
		Version:     "2.0.55",
		DownloadURL: server.URL,
		SHA256:      hex.EncodeToString(sum[:]),
	}

	return New(), cfg, release
}

// TestInstallFreshRoot installs into an empty root and finalizes the marker
// only after the binary is present.
func TestInstallFreshRoot(t *testing.T) {
	t.Parallel()

	ins, cfg, release := newTestInstall(t, buildArchive(t))

	require.NoError(t, ins.Install(context.Background(), cfg, release))

	installed, err := InstalledVersion(cfg.FactorioDir)
	require.NoError(t, err)
	require.Equal(t, "2.0.55", installed)

	// Binary resolves under the installation root.
	binary := BinaryPath(cfg.FactorioDir)
	require.True(t, strings.HasPrefix(binary, cfg.FactorioDir+string(os.PathSeparator)))

	info, err := os.Stat(binary)
	require.NoError(t, err)
	require.NotZero(t, info.Mode()&0o100)

	marker, err := ReadMarker(cfg.FactorioDir)
	require.NoError(t, err)
	require.Equal(t, config.ChannelStable, marker.Channel)
	require.False(t, marker.InstalledAt.IsZero())
}

// TestInstallIdempotent verifies the marker short-circuits a reinstall.
func TestInstallIdempotent(t *testing.T) {
	t.Parallel()

	ins, cfg, release := newTestInstall(t, buildArchive(t))
	require.NoError(t, ins.Install(context.Background(), cfg, release))

	before, err := os.Stat(BinaryPath(cfg.FactorioDir))
	require.NoError(t, err)

	require.NoError(t, ins.Install(context.Background(), cfg, release))

	after, err := os.Stat(BinaryPath(cfg.FactorioDir))
	require.NoError(t, err)
	require.Equal(t, before.ModTime(), after.ModTime())
}

// TestInstallBadChecksum refuses an archive whose checksum does not match.
func TestInstallBadChecksum(t *testing.T) {
	t.Parallel()

	ins, cfg, release := newTestInstall(t, buildArchive(t))
	release.SHA256 = "0000000000000000000000000000000000000000000000000000000000000000"

	err := ins.Install(context.Background(), cfg, release)
	require.Error(t, err)

	// Nothing usable must be left behind.
	installed, err := InstalledVersion(cfg.FactorioDir)
	require.NoError(t, err)
	require.Empty(t, installed)
}

// TestInstallReplacesPrior swaps out an older installation completely.
func TestInstallReplacesPrior(t *testing.T) {
	t.Parallel()

	ins, cfg, release := newTestInstall(t, buildArchive(t))

	// Fake prior install with a leftover file.
	require.NoError(t, os.MkdirAll(filepath.Join(cfg.FactorioDir, "old-dir"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Dir(BinaryPath(cfg.FactorioDir)), 0o755))
	require.NoError(t, os.WriteFile(BinaryPath(cfg.FactorioDir), []byte("old"), 0o755))
	require.NoError(t, writeMarker(cfg.FactorioDir, &Marker{Version: "2.0.53"}))

	require.NoError(t, ins.Install(context.Background(), cfg, release))

	installed, err := InstalledVersion(cfg.FactorioDir)
	require.NoError(t, err)
	require.Equal(t, "2.0.55", installed)

	_, err = os.Stat(filepath.Join(cfg.FactorioDir, "old-dir"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

// TestInstalledVersionIncomplete treats a marker without a binary as absent,
// covering a crash between swap and marker write from a previous layout.
func TestInstalledVersionIncomplete(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, writeMarker(dir, &Marker{Version: "2.0.55"}))

	installed, err := InstalledVersion(dir)
	require.NoError(t, err)
	require.Empty(t, installed)
}

// TestExtractRejectsTraversal refuses entries that escape the destination.
func TestExtractRejectsTraversal(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	xzWriter, err := xz.NewWriter(&buf)
	require.NoError(t, err)

	tarWriter := tar.NewWriter(xzWriter)
	require.NoError(t, tarWriter.WriteHeader(&tar.Header{
		Name: "../escape",
		Mode: 0o644,
		Size: 0,
	}))
	require.NoError(t, tarWriter.Close())
	require.NoError(t, xzWriter.Close())

	dir := t.TempDir()
	archivePath := filepath.Join(dir, "bad.tar.xz")
	require.NoError(t, os.WriteFile(archivePath, buf.Bytes(), 0o644))

	err = extractTarXz(archivePath, filepath.Join(dir, "dest"))
	require.ErrorIs(t, err, errUnsafeArchivePath)
}
