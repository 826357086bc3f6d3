package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/carnival/internal/digest"
	"github.com/oshokin/carnival/internal/logger"
)

// Config holds the settings shared by every carnival command.
type Config struct {
	// APIURL is the storefront API root used for login, sync and manifests.
	APIURL string `yaml:"api_url"`
	// ContentURL is the chunk store root. Empty means "chunks/" next to each manifest.
	ContentURL string `yaml:"content_url,omitempty"`
	// BaseInstallPath is the directory that receives <slug> install roots.
	BaseInstallPath string `yaml:"base_install_path"`
	// Workers is the number of files downloaded or verified in parallel.
	Workers int `yaml:"workers"`
	// MaxRetries is how many times a transient chunk failure is retried.
	MaxRetries int `yaml:"max_retries"`
	// RetryInterval is the first backoff delay between chunk retries.
	RetryInterval time.Duration `yaml:"retry_interval"`
	// DigestRetries is how many digest mismatches of one chunk are tolerated.
	DigestRetries int `yaml:"digest_retries"`
	// Timeout bounds each storefront request and any silence during a content download.
	Timeout time.Duration `yaml:"timeout"`
	// Digest names the manifest digest algorithm (sha256 or xxh64).
	Digest string `yaml:"digest"`
	// LogLevel is the default log level; the --log-level flag wins.
	LogLevel string `yaml:"log_level,omitempty"`
	// CompatRuntime runs foreign-platform builds, typically wine.
	CompatRuntime string `yaml:"compat_runtime"`
	// CompatPrefix is exported as WINEPREFIX when set.
	CompatPrefix string `yaml:"compat_prefix,omitempty"`
}

const (
	// DefaultConfigFilename is the settings file inside the configuration directory.
	DefaultConfigFilename = "settings.yaml"

	// DirEnv overrides the configuration directory.
	DirEnv = "CARNIVAL_CONFIG_PATH"

	// DefaultAPIURL is the storefront API root.
	DefaultAPIURL = "https://www.indiegala.com/login_new"

	// DefaultWorkers is the default size of the download pool.
	DefaultWorkers = 4

	// DefaultMaxRetries is the default chunk retry budget.
	DefaultMaxRetries = 3

	// DefaultRetryInterval is the default first backoff delay.
	DefaultRetryInterval = 500 * time.Millisecond

	// DefaultDigestRetries is the default tolerance for digest mismatches.
	DefaultDigestRetries = 1

	// DefaultTimeout is the default duration for storefront requests.
	DefaultTimeout = 30 * time.Second

	// DefaultCompatRuntime runs Windows builds on other platforms.
	DefaultCompatRuntime = "wine"

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600

	// DefaultDirPermissions is the default permission of the configuration directory.
	DefaultDirPermissions = 0o700

	appDirname       = "carnival"
	gamesDirname     = "Games"
	maxWorkers       = 64
	maxDigestRetries = 10
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errInvalidValue is returned for out-of-range numeric settings.
	errInvalidValue = errors.New("invalid value")
)

// Dir returns the configuration directory: $CARNIVAL_CONFIG_PATH when set,
// otherwise <user config dir>/carnival.
func Dir() (string, error) {
	if dir := strings.TrimSpace(os.Getenv(DirEnv)); dir != "" {
		return filepath.Clean(dir), nil
	}

	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate user config directory: %w", err)
	}

	return filepath.Join(base, appDirname), nil
}

// Default returns the settings used when no file exists.
func Default() *Config {
	cfg := &Config{
		MaxRetries:    DefaultMaxRetries,
		DigestRetries: DefaultDigestRetries,
	}
	applyDefaults(cfg)

	return cfg
}

// Load reads configuration from path. A missing file yields Default.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	// Keys absent from the file keep their defaults; explicit zeros are honoured.
	cfg := Default()

	contents, err := os.ReadFile(filepath.Clean(path))

	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read settings: %w", err)
	default:
		if err = yaml.Unmarshal(contents, cfg); err != nil {
			return nil, fmt.Errorf("unmarshal settings: %w", err)
		}
	}

	if err = Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes Settings to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	if err = os.MkdirAll(filepath.Dir(path), DefaultDirPermissions); err != nil {
		return fmt.Errorf("create settings directory: %w", err)
	}

	// Restrict permissions.
	if err = os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate fills defaults and checks the provided settings.
func Validate(settings *Config) error {
	if settings == nil {
		return errConfigIsNotSet
	}

	applyDefaults(settings)

	if err := validateURL("api_url", settings.APIURL); err != nil {
		return err
	}

	if settings.ContentURL != "" {
		if err := validateURL("content_url", settings.ContentURL); err != nil {
			return err
		}
	}

	if settings.Workers < 1 || settings.Workers > maxWorkers {
		return fmt.Errorf("workers must be between 1 and %d, got %d: %w", maxWorkers, settings.Workers, errInvalidValue)
	}

	if settings.MaxRetries < 0 {
		return fmt.Errorf("max_retries must not be negative: %w", errInvalidValue)
	}

	if settings.DigestRetries < 0 || settings.DigestRetries > maxDigestRetries {
		return fmt.Errorf("digest_retries must be between 0 and %d: %w", maxDigestRetries, errInvalidValue)
	}

	if _, err := digest.Lookup(settings.Digest); err != nil {
		return fmt.Errorf("digest: %w", err)
	}

	if settings.LogLevel != "" {
		if _, ok := logger.ParseLogLevel(settings.LogLevel); !ok {
			return fmt.Errorf("log_level %q: %w", settings.LogLevel, errInvalidValue)
		}
	}

	return nil
}

// Algorithm returns the configured digest algorithm.
func (c *Config) Algorithm() digest.Algorithm {
	alg, err := digest.Lookup(c.Digest)
	if err != nil {
		return digest.SHA256
	}

	return alg
}

// applyDefaults fills settings whose zero value is never meaningful.
func applyDefaults(settings *Config) {
	if settings.APIURL == "" {
		settings.APIURL = DefaultAPIURL
	}

	if settings.BaseInstallPath == "" {
		settings.BaseInstallPath = defaultBaseInstallPath()
	}

	if settings.Workers == 0 {
		settings.Workers = DefaultWorkers
	}

	if settings.RetryInterval <= 0 {
		settings.RetryInterval = DefaultRetryInterval
	}

	// Set default timeout if not specified
	if settings.Timeout <= 0 {
		settings.Timeout = DefaultTimeout
	}

	if settings.Digest == "" {
		settings.Digest = digest.SHA256.Name()
	}

	if settings.CompatRuntime == "" {
		settings.CompatRuntime = DefaultCompatRuntime
	}
}

func defaultBaseInstallPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return gamesDirname
	}

	return filepath.Join(home, gamesDirname, appDirname)
}

func validateURL(key, value string) error {
	u, err := url.ParseRequestURI(value)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid %s %q: scheme must be http or https: %w", key, value, errInvalidValue)
	}

	return nil
}
