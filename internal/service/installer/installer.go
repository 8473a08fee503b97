package installer

import (
	"context"
	"crypto"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	goupdate "github.com/doitdistributed/go-update"
	"github.com/mitchellh/go-ps"

	"github.com/AidanHarveyNelson/factorio-headless/internal/config"
	"github.com/AidanHarveyNelson/factorio-headless/internal/domain/stage"
	"github.com/AidanHarveyNelson/factorio-headless/internal/logger"
	"github.com/AidanHarveyNelson/factorio-headless/internal/service/resolver"

	// Ensure SHA256 is available for archive verification.
	_ "crypto/sha256"
)

const (
	// binaryRelativePath locates the server executable below the install root.
	binaryRelativePath = "bin/x64/factorio"

	// archiveRootDir is the single top-level directory inside upstream archives.
	archiveRootDir = "factorio"

	// inProgressMarker guards against a second manager instance installing
	// into the same root. Placed next to the install root, never inside it,
	// so a swap cannot erase it mid-install.
	inProgressMarker = ".factorio-install-in-progress"

	// checksumFunction verifies downloaded archives.
	checksumFunction crypto.Hash = crypto.SHA256

	// archiveFileMode is the mode for the landed archive file.
	archiveFileMode os.FileMode = 0o644
)

var (
	errInstallInProgress = errors.New("another install is already in progress")
	errBinaryMissing     = errors.New("extracted archive has no server binary")
	errBadDownloadStatus = errors.New("unexpected download status")
)

// Installer downloads and unpacks releases into the installation root.
// Installs are atomic: the extraction happens in a staging directory next to
// the root and the version marker is written only after the binary is
// verified present, so a crash mid-install is indistinguishable from "not
// installed" on the next run.
type Installer struct {
	client *http.Client
}

// Option customizes an Installer.
type Option func(*Installer)

// WithHTTPClient replaces the HTTP client used for downloads.
func WithHTTPClient(client *http.Client) Option {
	return func(i *Installer) {
		i.client = client
	}
}

// New creates an Installer.
func New(opts ...Option) *Installer {
	i := &Installer{
		client: http.DefaultClient,
	}

	for _, opt := range opts {
		opt(i)
	}

	return i
}

// BinaryPath returns the server executable location under the install root.
func BinaryPath(installDir string) string {
	return filepath.Join(installDir, binaryRelativePath)
}

// InstalledVersion reports the currently installed version, or empty when no
// complete installation exists. A marker without a binary counts as absent.
func InstalledVersion(installDir string) (string, error) {
	marker, err := ReadMarker(installDir)
	if err != nil {
		return "", fmt.Errorf("%w: %w", stage.ErrFilesystem, err)
	}

	if marker.Version == "" {
		return "", nil
	}

	if _, err = os.Stat(BinaryPath(installDir)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}

		return "", fmt.Errorf("%w: stat server binary: %w", stage.ErrFilesystem, err)
	}

	return marker.Version, nil
}

// Install downloads the release archive, verifies and extracts it, atomically
// swaps the installation root, and finalizes the version marker. It is a
// no-op when the marker already matches the release.
func (i *Installer) Install(ctx context.Context, cfg *config.Config, release *resolver.Release) error {
	installed, err := InstalledVersion(cfg.FactorioDir)
	if err != nil {
		return err
	}

	if installed == release.Version {
		logger.InfoKV(ctx, "Requested version already installed", "version", installed)
		return nil
	}

	guard, err := acquireInstallGuard(ctx, cfg.FactorioDir)
	if err != nil {
		return err
	}

	defer guard.release(ctx)

	archivePath, cleanupDownload, err := i.download(ctx, release)
	if err != nil {
		return fmt.Errorf("%w: %w", stage.ErrNetwork, err)
	}

	defer cleanupDownload()

	stagingDir, err := os.MkdirTemp(filepath.Dir(cfg.FactorioDir), ".factorio-staging-")
	if err != nil {
		return fmt.Errorf("%w: create staging directory: %w", stage.ErrFilesystem, err)
	}

	defer func() {
		_ = os.RemoveAll(stagingDir)
	}()

	logger.InfoKV(ctx, "Extracting release archive", "version", release.Version)

	if err = extractTarXz(archivePath, stagingDir); err != nil {
		return fmt.Errorf("%w: %w", stage.ErrFilesystem, err)
	}

	stagedRoot := filepath.Join(stagingDir, archiveRootDir)
	if _, err = os.Stat(filepath.Join(stagedRoot, binaryRelativePath)); err != nil {
		return fmt.Errorf("%w: %s: %w", stage.ErrFilesystem, binaryRelativePath, errBinaryMissing)
	}

	if err = swapInstallRoot(stagedRoot, cfg.FactorioDir); err != nil {
		return fmt.Errorf("%w: %w", stage.ErrFilesystem, err)
	}

	marker := &Marker{
		Version:     release.Version,
		Channel:     release.Channel,
		InstalledAt: time.Now().UTC(),
	}

	if err = writeMarker(cfg.FactorioDir, marker); err != nil {
		return fmt.Errorf("%w: %w", stage.ErrFilesystem, err)
	}

	logger.InfoKV(ctx, "Installed release",
		"version", release.Version, "channel", release.Channel, "dir", cfg.FactorioDir)

	return nil
}

// download fetches the archive into a temporary directory and lands it via
// go-update so the write is atomic and checksum-verified when a checksum is
// known. Returns the landed archive path and a cleanup function.
func (i *Installer) download(ctx context.Context, release *resolver.Release) (string, func(), error) {
	noop := func() {}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, release.DownloadURL, http.NoBody)
	if err != nil {
		return "", noop, err
	}

	response, err := i.client.Do(req)
	if err != nil {
		return "", noop, err
	}

	defer func() {
		_ = response.Body.Close()
	}()

	if response.StatusCode != http.StatusOK {
		return "", noop, fmt.Errorf("%s: %w", response.Status, errBadDownloadStatus)
	}

	downloadDir, err := os.MkdirTemp("", "factorio-download-")
	if err != nil {
		return "", noop, err
	}

	cleanup := func() {
		_ = os.RemoveAll(downloadDir)
	}

	archivePath := filepath.Join(downloadDir, resolver.ArchiveFilename(release.Version))

	options := goupdate.Options{
		TargetPath: archivePath,
		TargetMode: archiveFileMode,
	}

	if release.SHA256 != "" {
		checksum, decodeErr := hex.DecodeString(release.SHA256)
		if decodeErr != nil {
			cleanup()

			return "", noop, fmt.Errorf("decode archive checksum: %w", decodeErr)
		}

		options.Checksum = checksum
		options.Hash = checksumFunction
	}

	// go-update refuses to apply onto a missing target.
	if err = os.WriteFile(archivePath, nil, archiveFileMode); err != nil {
		cleanup()

		return "", noop, err
	}

	logger.InfoKV(ctx, "Downloading release archive",
		"version", release.Version, "verified", release.SHA256 != "")

	if err = goupdate.Apply(response.Body, options); err != nil {
		cleanup()

		return "", noop, fmt.Errorf("land release archive: %w", err)
	}

	return archivePath, cleanup, nil
}

// swapInstallRoot atomically replaces installDir with stagedRoot.
// Both live on the same filesystem, so rename cannot fall back to a copy.
func swapInstallRoot(stagedRoot, installDir string) error {
	if err := os.RemoveAll(installDir); err != nil {
		return fmt.Errorf("remove previous installation: %w", err)
	}

	if err := os.Rename(stagedRoot, installDir); err != nil {
		return fmt.Errorf("swap installation root: %w", err)
	}

	return nil
}

// installGuard is the in-progress marker protecting the install root.
type installGuard struct {
	path string
}

// acquireInstallGuard creates the in-progress marker. An existing marker with
// another live manager process aborts; a marker left by a dead process is
// stale and removed, since the absent version marker already classifies the
// interrupted install as incomplete.
func acquireInstallGuard(ctx context.Context, installDir string) (*installGuard, error) {
	parent := filepath.Dir(installDir)
	if err := os.MkdirAll(parent, config.DefaultDirPermissions); err != nil {
		return nil, fmt.Errorf("%w: create install parent: %w", stage.ErrFilesystem, err)
	}

	path := filepath.Join(parent, inProgressMarker)

	if _, err := os.Stat(path); err == nil {
		if anotherManagerRunning() {
			return nil, fmt.Errorf("%w: %w", stage.ErrConfiguration, errInstallInProgress)
		}

		logger.Warn(ctx, "Removing stale install marker from an interrupted run")

		if err = os.Remove(path); err != nil {
			return nil, fmt.Errorf("%w: remove stale install marker: %w", stage.ErrFilesystem, err)
		}
	}

	marker, err := os.Create(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("%w: create install marker: %w", stage.ErrFilesystem, err)
	}

	if err = marker.Close(); err != nil {
		return nil, fmt.Errorf("%w: close install marker: %w", stage.ErrFilesystem, err)
	}

	return &installGuard{path: path}, nil
}

// release removes the in-progress marker.
func (g *installGuard) release(ctx context.Context) {
	if err := os.Remove(g.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.WarnKV(ctx, "Unable to remove install marker", "path", g.path, "error", err)
	}
}

// anotherManagerRunning reports whether a different process with this
// executable's name exists. Concurrent managers against one volume are an
// unsupported configuration, so this is a guard, not a lock.
func anotherManagerRunning() bool {
	self := filepath.Base(os.Args[0])

	processList, err := ps.Processes()
	if err != nil {
		return false
	}

	thisProcessID := os.Getpid()

	for _, process := range processList {
		if process.Pid() == thisProcessID {
			continue
		}

		if process.Executable() == self {
			return true
		}
	}

	return false
}
