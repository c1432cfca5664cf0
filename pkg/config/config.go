// Package config provides configuration management for appcat.
// It handles loading, validating and saving the repository list, network settings
// and the device profile packages are checked against. Configuration files are
// YAML by default; files with a .toml extension are read and written as TOML.
package config

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"time"

	"github.com/glorpus-work/appcat/pkg/errors"
	"github.com/glorpus-work/appcat/pkg/fsutil"
	"github.com/glorpus-work/appcat/pkg/model"
	"github.com/glorpus-work/appcat/pkg/platform"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Repositories []*RepositoryConfig `yaml:"repositories" toml:"repositories"`
	Settings     Settings            `yaml:"settings" toml:"settings"`
}

// RepositoryConfig represents a single configured repository.
type RepositoryConfig struct {
	Name        string      `yaml:"name" toml:"name"`
	URL         string      `yaml:"url" toml:"url"`
	Fingerprint string      `yaml:"fingerprint,omitempty" toml:"fingerprint,omitempty"`
	PubKey      string      `yaml:"pubkey,omitempty" toml:"pubkey,omitempty"`
	Enabled     *bool       `yaml:"enabled,omitempty" toml:"enabled,omitempty"`
	Priority    int         `yaml:"priority,omitempty" toml:"priority,omitempty"`
	Auth        *AuthConfig `yaml:"auth,omitempty" toml:"auth,omitempty"`
}

// IsEnabled reports whether the repository takes part in syncs. Repositories are enabled unless stated otherwise.
func (rc *RepositoryConfig) IsEnabled() bool {
	return rc.Enabled == nil || *rc.Enabled
}

// SetEnabled sets the enabled flag explicitly.
func (rc *RepositoryConfig) SetEnabled(enabled bool) {
	rc.Enabled = &enabled
}

// Model converts the configured repository into the catalog record it seeds.
func (rc *RepositoryConfig) Model() *model.Repository {
	return &model.Repository{
		Name:        rc.Name,
		Address:     strings.TrimRight(rc.URL, "/"),
		Fingerprint: strings.ToLower(rc.Fingerprint),
		PubKey:      strings.ToLower(rc.PubKey),
		Priority:    rc.Priority,
		Enabled:     rc.IsEnabled(),
	}
}

// Busy policies for a sync requested while another one runs.
const (
	OnBusyWait   = "wait"
	OnBusyReject = "reject"
)

// Settings represents general application settings.
type Settings struct {
	CacheDir    string `yaml:"cache_dir,omitempty" toml:"cache_dir,omitempty"`
	StateDir    string `yaml:"state_dir,omitempty" toml:"state_dir,omitempty"`
	DatabaseURL string `yaml:"database_url,omitempty" toml:"database_url,omitempty"`
	HooksDir    string `yaml:"hooks_dir,omitempty" toml:"hooks_dir,omitempty"`

	// Network settings
	HTTPTimeout   Duration `yaml:"http_timeout" toml:"http_timeout"`
	MaxConcurrent int      `yaml:"max_concurrent_fetches" toml:"max_concurrent_fetches"`
	UserAgent     string   `yaml:"user_agent,omitempty" toml:"user_agent,omitempty"`
	FetchIcons    bool     `yaml:"fetch_icons" toml:"fetch_icons"`

	// Sync settings
	OnBusy string `yaml:"on_busy" toml:"on_busy"`

	Device platform.Device `yaml:"device" toml:"device"`

	LogLevel string `yaml:"log_level" toml:"log_level"`
}

// Default configuration values.
const (
	// DefaultHTTPTimeout is the default timeout for HTTP requests.
	DefaultHTTPTimeout = 30 * time.Second

	// DefaultMaxConcurrent is the default number of repositories fetched in parallel.
	DefaultMaxConcurrent = 3

	// DefaultUserAgent is sent with every request unless overridden.
	DefaultUserAgent = "appcat/1.0"

	// YAMLIndent is the number of spaces to use for YAML indentation.
	YAMLIndent = 2
)

// Format is the on-disk encoding of a configuration file.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// FormatForPath picks the encoding from the file extension.
func FormatForPath(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return FormatTOML
	}
	return FormatYAML
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Repositories: []*RepositoryConfig{},
		Settings: Settings{
			CacheDir:      defaultCacheDir(),
			StateDir:      defaultStateDir(),
			HTTPTimeout:   Duration(DefaultHTTPTimeout),
			MaxConcurrent: DefaultMaxConcurrent,
			UserAgent:     DefaultUserAgent,
			FetchIcons:    true,
			OnBusy:        OnBusyWait,
			Device:        platform.DefaultDevice(),
			LogLevel:      "info",
		},
	}
}

// LoadConfig loads configuration from a file. A missing file yields the defaults.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, errors.ErrEmptyConfigPath
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrInvalidConfigPath, err.Error())
	}

	file, err := os.Open(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, errors.Wrapf(err, "failed to open config file: %s", path)
	}
	defer func() { _ = file.Close() }()

	return LoadConfigFromReader(file, FormatForPath(absPath))
}

// LoadConfigFromReader loads configuration from an io.Reader in the given format.
func LoadConfigFromReader(reader io.Reader, format Format) (*Config, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config data")
	}

	var config Config
	switch format {
	case FormatYAML, "":
		err = yaml.Unmarshal(data, &config)
	case FormatTOML:
		err = toml.NewDecoder(bytes.NewReader(data)).DisallowUnknownFields().Decode(&config)
	default:
		return nil, errors.Wrapf(errors.ErrConfigFormat, "%s", format)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrConfigParse, err.Error())
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(errors.ErrConfigValidation, err.Error())
	}

	return &config, nil
}

// Encode writes the configuration in the given format.
func (c *Config) Encode(w io.Writer, format Format) error {
	switch format {
	case FormatTOML:
		enc := toml.NewEncoder(w)
		enc.SetIndentTables(true)
		if err := enc.Encode(c); err != nil {
			return errors.Wrap(errors.ErrConfigEncode, err.Error())
		}
	default:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(YAMLIndent)
		if err := enc.Encode(c); err != nil {
			return errors.Wrap(errors.ErrConfigEncode, err.Error())
		}
		if err := enc.Close(); err != nil {
			return errors.Wrap(errors.ErrConfigEncode, err.Error())
		}
	}
	return nil
}

// SaveConfig atomically writes the configuration to path, choosing the format from its extension.
func (c *Config) SaveConfig(path string) error {
	if path == "" {
		return errors.ErrEmptyConfigPath
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return errors.Wrap(errors.ErrInvalidConfigPath, err.Error())
	}

	if err := os.MkdirAll(filepath.Dir(absPath), fsutil.DirModeDefault); err != nil {
		return errors.Wrap(errors.ErrConfigDirectory, err.Error())
	}

	tmp, err := fsutil.CreateTemp(filepath.Dir(absPath), filepath.Base(absPath)+".*.tmp")
	if err != nil {
		return errors.Wrap(errors.ErrConfigFileCreate, err.Error())
	}
	defer tmp.Cleanup()

	if err := c.Encode(tmp, FormatForPath(absPath)); err != nil {
		return err
	}
	if err := tmp.Finish(); err != nil {
		return errors.Wrap(errors.ErrConfigFileCreate, err.Error())
	}
	if err := os.Chmod(tmp.Path(), fsutil.FileModeDefault); err != nil {
		return errors.Wrap(errors.ErrConfigFileCreate, err.Error())
	}

	if err := os.Rename(tmp.Path(), absPath); err != nil {
		return errors.Wrap(errors.ErrConfigFileRename, err.Error())
	}
	tmp.Keep()

	return nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c == nil {
		return errors.ErrConfigValidation
	}
	if err := validateRepositories(c.Repositories); err != nil {
		return err
	}
	return validateSettings(c.Settings)
}

func validateRepositories(repos []*RepositoryConfig) error {
	names := make(map[string]bool)
	addresses := make(map[string]bool)
	for i, repo := range repos {
		if repo.Name == "" {
			return errors.ErrEmptyRepositoryNameWithIndex(i)
		}
		if repo.URL == "" {
			return errors.ErrRepositoryURLEmptyWithName(repo.Name)
		}
		if names[repo.Name] {
			return errors.ErrRepositoryExistsWithName(repo.Name)
		}
		address := strings.TrimRight(repo.URL, "/")
		if addresses[address] {
			return errors.ErrRepositoryExistsWithName(repo.URL)
		}
		names[repo.Name] = true
		addresses[address] = true

		for _, material := range []string{repo.Fingerprint, repo.PubKey} {
			if material == "" {
				continue
			}
			if _, err := hex.DecodeString(material); err != nil {
				return errors.Wrapf(errors.ErrInvalidFingerprint, "repository %s", repo.Name)
			}
		}
		if repo.Auth != nil {
			if err := repo.Auth.Validate(); err != nil {
				return errors.Wrapf(err, "repository %s", repo.Name)
			}
		}
	}
	return nil
}

func validateSettings(s Settings) error {
	if s.HTTPTimeout < 0 {
		return errors.ErrHTTPTimeoutNegative
	}
	if s.MaxConcurrent < 1 {
		return errors.ErrMaxConcurrentInvalid
	}
	if s.Device.SDK < 0 {
		return errors.ErrDeviceSDKInvalid
	}
	if err := validateABIs(s.Device.ABIs); err != nil {
		return err
	}
	switch s.OnBusy {
	case OnBusyWait, OnBusyReject:
	default:
		return errors.Wrapf(errors.ErrInvalidBusyPolicy, "%q", s.OnBusy)
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(s.LogLevel)] {
		return errors.ErrInvalidLogLevelWithDetails(s.LogLevel)
	}
	return nil
}

// validateABIs accepts the known ABIs, their aliases, and whatever the host reports for itself.
func validateABIs(abis []string) error {
	known := append(platform.ValidABIs(), platform.HostABIs(runtime.GOARCH)...)
	for _, abi := range abis {
		if !slices.Contains(known, platform.NormalizeABI(abi)) {
			return errors.Wrapf(errors.ErrInvalidABI, "%q (valid: %s)", abi, strings.Join(platform.ValidABIs(), ", "))
		}
	}
	return nil
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config directory: %w", err)
	}
	return filepath.Join(configDir, "appcat", "config.yaml"), nil
}

// AddRepository adds a repository to the configuration.
// Returns an error if a repository with the same name or address already exists.
func (c *Config) AddRepository(repo *RepositoryConfig) error {
	for _, existing := range c.Repositories {
		if existing.Name == repo.Name {
			return errors.ErrRepositoryExistsWithName(repo.Name)
		}
		if strings.TrimRight(existing.URL, "/") == strings.TrimRight(repo.URL, "/") {
			return errors.ErrRepositoryExistsWithName(repo.URL)
		}
	}
	c.Repositories = append(c.Repositories, repo)
	return nil
}

// RemoveRepository removes a repository from the configuration.
func (c *Config) RemoveRepository(name string) bool {
	for i, repo := range c.Repositories {
		if repo.Name == name {
			c.Repositories = append(c.Repositories[:i], c.Repositories[i+1:]...)
			return true
		}
	}
	return false
}

// GetRepository gets a repository configuration by name.
func (c *Config) GetRepository(name string) *RepositoryConfig {
	for _, repo := range c.Repositories {
		if repo.Name == name {
			return repo
		}
	}
	return nil
}

// EnableRepository enables or disables a repository.
func (c *Config) EnableRepository(name string, enabled bool) bool {
	repo := c.GetRepository(name)
	if repo == nil {
		return false
	}
	repo.SetEnabled(enabled)
	return true
}

// EnabledRepositories returns the enabled repositories ordered as configured.
func (c *Config) EnabledRepositories() []*RepositoryConfig {
	var out []*RepositoryConfig
	for _, repo := range c.Repositories {
		if repo.IsEnabled() {
			out = append(out, repo)
		}
	}
	return out
}

// GetDatabaseURL returns the catalog database location: the configured URL or a file in the state dir.
func (c *Config) GetDatabaseURL() string {
	if c.Settings.DatabaseURL != "" {
		return c.Settings.DatabaseURL
	}
	return filepath.Join(c.Settings.StateDir, "catalog.db")
}

// GetIconDir returns the directory icons are downloaded into.
func (c *Config) GetIconDir() string {
	return filepath.Join(c.Settings.CacheDir, "icons")
}

// GetTempDir returns the directory for in-flight downloads and extracted indexes.
func (c *Config) GetTempDir() string {
	return filepath.Join(c.Settings.CacheDir, "tmp")
}

// GetSyncLockPath returns the lock file that serializes syncs across processes.
func (c *Config) GetSyncLockPath() string {
	return filepath.Join(c.Settings.StateDir, "sync.lock")
}

// GetHooksDir returns the hook script directory.
func (c *Config) GetHooksDir() string {
	if c.Settings.HooksDir != "" {
		return c.Settings.HooksDir
	}
	return filepath.Join(c.Settings.StateDir, "hooks")
}

// applyDefaults fills in missing values with defaults.
func (c *Config) applyDefaults() {
	defaults := DefaultConfig()

	if c.Settings.HTTPTimeout == 0 {
		c.Settings.HTTPTimeout = defaults.Settings.HTTPTimeout
	}
	if c.Settings.MaxConcurrent == 0 {
		c.Settings.MaxConcurrent = defaults.Settings.MaxConcurrent
	}
	if c.Settings.UserAgent == "" {
		c.Settings.UserAgent = defaults.Settings.UserAgent
	}
	if c.Settings.OnBusy == "" {
		c.Settings.OnBusy = defaults.Settings.OnBusy
	}
	if c.Settings.LogLevel == "" {
		c.Settings.LogLevel = defaults.Settings.LogLevel
	}
	if c.Settings.CacheDir == "" {
		c.Settings.CacheDir = defaults.Settings.CacheDir
	}
	if c.Settings.StateDir == "" {
		c.Settings.StateDir = defaults.Settings.StateDir
	}
	if c.Settings.Device.SDK == 0 {
		c.Settings.Device.SDK = defaults.Settings.Device.SDK
	}
	if len(c.Settings.Device.ABIs) == 0 {
		c.Settings.Device.ABIs = defaults.Settings.Device.ABIs
	}
	if c.Repositories == nil {
		c.Repositories = []*RepositoryConfig{}
	}
}

func defaultCacheDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "appcat", "cache")
	}
	return filepath.Join(dir, "appcat")
}

func defaultStateDir() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "appcat")
	}
	if runtime.GOOS == "linux" {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, ".local", "state", "appcat")
		}
	}
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "appcat", "state")
	}
	return filepath.Join(os.TempDir(), "appcat", "state")
}
