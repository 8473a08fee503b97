package config

import (
	"errors"
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config holds every user-declared input for a server instance.
// It is parsed once at startup from the container environment and passed by
// parameter through the pipeline; downstream components never read raw strings.
type Config struct {
	// MountDir is the persistent volume root (saves, config, mods, scenarios).
	MountDir string `env:"MOUNT_DIR" envDefault:"/factorio"`
	// FactorioDir is the installation directory for the headless release.
	FactorioDir string `env:"FACTORIO_DIR" envDefault:"/opt/factorio"`
	// Port is the UDP game port.
	Port int `env:"PORT" envDefault:"34197"`
	// RconPort is the TCP remote console port.
	RconPort int `env:"RCON_PORT" envDefault:"27015"`
	// LogLevel controls manager log verbosity (debug, info, warn, error).
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	// LogFile is an optional rolling log file for the manager itself.
	LogFile string `env:"LOG_FILE"`
	// Version selects a release channel (stable, experimental) or pins an
	// exact version string like "2.0.55".
	Version string `env:"VERSION" envDefault:"stable"`
	// DLCSpaceAge toggles the Space Age mod bundle in mod-list.json.
	DLCSpaceAge bool `env:"DLC_SPACE_AGE" envDefault:"true"`
	// LoadLatestSave loads the most recently modified save when no explicit
	// save or scenario is requested.
	LoadLatestSave bool `env:"LOAD_LATEST_SAVE" envDefault:"true"`
	// SaveName names an existing save (without .zip) to load.
	SaveName string `env:"SAVE_NAME"`
	// GenerateNewSave creates a fresh save before launching.
	GenerateNewSave bool `env:"GENERATE_NEW_SAVE"`
	// ScenarioName launches a scenario instead of a save.
	ScenarioName string `env:"SCENARIO_NAME"`
	// MapGenPreset is the map generation preset for new saves.
	MapGenPreset string `env:"MAP_GEN_PRESET"`
	// RunAsUser is the system user the server process runs as.
	RunAsUser string `env:"USER"`
	// RunAsGroup is the system group the server process runs as.
	RunAsGroup string `env:"GROUP"`
	// UpdateUsername authenticates downloads against factorio.com.
	UpdateUsername string `env:"UPDATE_USERNAME"`
	// UpdateToken is the API token paired with UpdateUsername.
	UpdateToken string `env:"UPDATE_TOKEN"`
}

const (
	// ChannelStable is the moving release track for stable builds.
	ChannelStable = "stable"

	// ChannelExperimental is the moving release track for experimental builds.
	ChannelExperimental = "experimental"

	// DefaultFilePermissions is the default file permission for seeded files.
	DefaultFilePermissions = 0o644

	// DefaultDirPermissions is the default permission for created directories.
	DefaultDirPermissions = 0o755

	// SecretFilePermissions restricts credential files to the owner.
	SecretFilePermissions = 0o600

	maxPort = 65535
)

var (
	// errMountDirRequired is returned when the volume root is not declared.
	errMountDirRequired = errors.New("mount directory must be provided")
	// errFactorioDirRequired is returned when the install root is not declared.
	errFactorioDirRequired = errors.New("installation directory must be provided")
	// errVersionRequired is returned when no channel or pin is declared.
	errVersionRequired = errors.New("version channel or pin must be provided")
	// errInvalidPort is returned for ports outside the valid range.
	errInvalidPort = errors.New("port must be between 1 and 65535")
	// errPortsEqual is returned when game and RCON ports collide.
	errPortsEqual = errors.New("game port and RCON port must differ")
)

// FromEnvironment parses the recognized environment variables into a Config
// and validates it. This is the single boundary where raw strings become
// typed values.
func FromEnvironment() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the provided configuration for required fields and ranges.
func Validate(cfg *Config) error {
	if cfg.MountDir == "" {
		return errMountDirRequired
	}

	if cfg.FactorioDir == "" {
		return errFactorioDirRequired
	}

	if cfg.Version == "" {
		return errVersionRequired
	}

	if cfg.Port < 1 || cfg.Port > maxPort {
		return fmt.Errorf("game port %d: %w", cfg.Port, errInvalidPort)
	}

	if cfg.RconPort < 1 || cfg.RconPort > maxPort {
		return fmt.Errorf("rcon port %d: %w", cfg.RconPort, errInvalidPort)
	}

	if cfg.Port == cfg.RconPort {
		return errPortsEqual
	}

	return nil
}

// IsChannel reports whether the declared version is a moving release track
// rather than an exact pin.
func (c *Config) IsChannel() bool {
	return c.Version == ChannelStable || c.Version == ChannelExperimental
}
