package resolver

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/AidanHarveyNelson/factorio-headless/internal/config"
	"github.com/AidanHarveyNelson/factorio-headless/internal/domain/stage"
	"github.com/AidanHarveyNelson/factorio-headless/internal/logger"
)

const (
	defaultReleasesURL  = "https://factorio.com/api/latest-releases"
	defaultChecksumsURL = "https://www.factorio.com/download/sha256sums/"
	defaultDownloadBase = "https://www.factorio.com/get-download"

	// headlessBuild is the release flavor this manager installs.
	headlessBuild = "headless"
	// downloadTarget selects the platform segment of the download URL.
	downloadTarget = "linux64"

	sha256HexLength = 64
)

var (
	errChannelMissing  = errors.New("channel missing from release listing")
	errHeadlessMissing = errors.New("no headless build listed for channel")
)

// Release describes one resolved upstream release.
// It is immutable once resolved and compared against the on-disk version
// marker to decide whether a (re)install is needed.
type Release struct {
	// Channel is the requested track (stable, experimental) or "pinned".
	Channel string
	// Version is the exact version string, e.g. "2.0.55".
	Version string
	// DownloadURL is the archive location, including credentials when set.
	DownloadURL string
	// SHA256 is the hex archive checksum, empty when upstream does not list one.
	SHA256 string
}

// ArchiveFilename returns the upstream archive name for a headless version.
func ArchiveFilename(version string) string {
	return fmt.Sprintf("factorio-%s_linux_%s.tar.xz", headlessBuild, version)
}

// Resolver decides which upstream release satisfies the declared channel or
// pin. Channels are moving targets and re-queried on every startup; pins
// resolve without any network traffic when already installed.
type Resolver struct {
	client       *http.Client
	releasesURL  string
	checksumsURL string
	downloadBase string
}

// Option customizes a Resolver.
type Option func(*Resolver)

// WithHTTPClient replaces the HTTP client used for upstream lookups.
func WithHTTPClient(client *http.Client) Option {
	return func(r *Resolver) {
		r.client = client
	}
}

// WithReleasesURL overrides the latest-releases endpoint.
func WithReleasesURL(u string) Option {
	return func(r *Resolver) {
		r.releasesURL = u
	}
}

// WithChecksumsURL overrides the sha256sums endpoint.
func WithChecksumsURL(u string) Option {
	return func(r *Resolver) {
		r.checksumsURL = u
	}
}

// WithDownloadBase overrides the download URL prefix.
func WithDownloadBase(u string) Option {
	return func(r *Resolver) {
		r.downloadBase = u
	}
}

// New creates a Resolver against the upstream factorio.com endpoints.
func New(opts ...Option) *Resolver {
	r := &Resolver{
		client:       http.DefaultClient,
		releasesURL:  defaultReleasesURL,
		checksumsURL: defaultChecksumsURL,
		downloadBase: defaultDownloadBase,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Resolve returns the Release to install, or nil when the installed version
// already satisfies the request. Lookup failures are reported wrapped in the
// network category so the caller can decide between fatal and warn-and-keep.
func (r *Resolver) Resolve(ctx context.Context, cfg *config.Config, installedVersion string) (*Release, error) {
	target := cfg.Version
	channel := "pinned"

	if cfg.IsChannel() {
		channel = cfg.Version

		latest, err := r.latestFor(ctx, cfg.Version)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", stage.ErrNetwork, err)
		}

		target = latest
	}

	if target == installedVersion {
		logger.InfoKV(ctx, "Installed version is current",
			"channel", channel, "version", installedVersion)

		return nil, nil
	}

	release := &Release{
		Channel:     channel,
		Version:     target,
		DownloadURL: r.downloadURL(target, cfg),
	}

	checksum, err := r.lookupChecksum(ctx, target)
	if err != nil {
		// Checksums are best effort: upstream does not list every release.
		logger.WarnKV(ctx, "Checksum lookup failed, continuing without verification",
			"version", target, "error", err)
	} else {
		release.SHA256 = checksum
	}

	logger.InfoKV(ctx, "Resolved release",
		"channel", channel, "version", target, "installed", installedVersion)

	return release, nil
}

// latestFor queries the latest-releases listing for the channel's headless build.
func (r *Resolver) latestFor(ctx context.Context, channel string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.releasesURL, http.NoBody)
	if err != nil {
		return "", err
	}

	response, err := r.client.Do(req)
	if err != nil {
		return "", err
	}

	defer func() {
		_ = response.Body.Close()
	}()

	if response.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%s: unexpected status %s", r.releasesURL, response.Status)
	}

	// {"stable": {"headless": "2.0.55", ...}, "experimental": {...}}
	var listing map[string]map[string]string
	if err = json.NewDecoder(response.Body).Decode(&listing); err != nil {
		return "", fmt.Errorf("decode release listing: %w", err)
	}

	builds, ok := listing[channel]
	if !ok {
		return "", fmt.Errorf("%s: %w", channel, errChannelMissing)
	}

	version, ok := builds[headlessBuild]
	if !ok || version == "" {
		return "", fmt.Errorf("%s: %w", channel, errHeadlessMissing)
	}

	return version, nil
}

// lookupChecksum scans the upstream sha256sums listing for the archive.
func (r *Resolver) lookupChecksum(ctx context.Context, version string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.checksumsURL, http.NoBody)
	if err != nil {
		return "", err
	}

	response, err := r.client.Do(req)
	if err != nil {
		return "", err
	}

	defer func() {
		_ = response.Body.Close()
	}()

	if response.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%s: unexpected status %s", r.checksumsURL, response.Status)
	}

	wanted := ArchiveFilename(version)

	scanner := bufio.NewScanner(response.Body)
	for scanner.Scan() {
		// Lines look like "<sha256>  <filename>".
		fields := strings.Fields(scanner.Text())
		if len(fields) != 2 || fields[1] != wanted {
			continue
		}

		if len(fields[0]) != sha256HexLength {
			return "", fmt.Errorf("malformed checksum for %s", wanted)
		}

		return fields[0], nil
	}

	if err = scanner.Err(); err != nil {
		return "", err
	}

	return "", fmt.Errorf("no checksum listed for %s", wanted)
}

// downloadURL composes the archive URL, attaching upstream credentials when
// the instance is configured with them.
func (r *Resolver) downloadURL(version string, cfg *config.Config) string {
	raw := fmt.Sprintf("%s/%s/%s/%s", r.downloadBase, version, headlessBuild, downloadTarget)

	if cfg.UpdateUsername == "" || cfg.UpdateToken == "" {
		return raw
	}

	query := url.Values{}
	query.Set("username", cfg.UpdateUsername)
	query.Set("token", cfg.UpdateToken)

	return raw + "?" + query.Encode()
}
