package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
	"github.com/spiffcs/inbox/internal/constants"
	"github.com/spiffcs/inbox/internal/duration"
	"gopkg.in/yaml.v3"
)

// Candidate file sources
const (
	FileSourceGraphQL = "graphql"
	FileSourceGitHub  = "github"
)

// EnvPrefix prefixes the environment variables that override config keys.
const EnvPrefix = "INBOX"

// Config represents the application configuration
type Config struct {
	Endpoint        string `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
	DefaultFormat   string `yaml:"default_format,omitempty" json:"default_format,omitempty"`
	FileSource      string `yaml:"file_source,omitempty" json:"file_source,omitempty"`
	DiagnosticsFile string `yaml:"diagnostics_file,omitempty" json:"diagnostics_file,omitempty"`
	// CacheTTL is a human duration such as "12h" or "2d".
	CacheTTL    string `yaml:"cache_ttl,omitempty" json:"cache_ttl,omitempty"`
	Concurrency int    `yaml:"concurrency,omitempty" json:"concurrency,omitempty"`
}

// DefaultConfigDir returns the default config directory
func DefaultConfigDir() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return ".inbox"
	}
	return filepath.Join(configDir, "inbox")
}

// ConfigPath returns the path to the config file
func ConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// LocalConfigPath returns the path to the local config file in the current directory
func LocalConfigPath() string {
	return ".inbox.yaml"
}

// Load loads the configuration from disk.
// It first loads the global config from the user config directory, then
// merges any local .inbox.yaml on top and finally applies INBOX_*
// environment overrides.
func Load() (*Config, error) {
	return LoadFrom(ConfigPath(), LocalConfigPath())
}

// LoadFrom is Load with explicit file locations. Missing files are skipped.
func LoadFrom(globalPath, localPath string) (*Config, error) {
	cfg := &Config{}

	global, err := readFile(globalPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load global config file: %w", err)
	}
	if global != nil {
		cfg = global
	}

	local, err := readFile(localPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load local config file: %w", err)
	}
	if local != nil {
		cfg = mergeConfig(cfg, local)
	}

	applyEnv(cfg)
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile reads the single file at path without defaults or environment
// overrides. A missing file yields an empty Config.
func LoadFile(path string) (*Config, error) {
	cfg, err := readFile(path)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = &Config{}
	}
	return cfg, nil
}

func readFile(path string) (*Config, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return &cfg, nil
}

// mergeConfig merges local config on top of global config.
// Local values take precedence; unset local values preserve global values.
func mergeConfig(global, local *Config) *Config {
	result := *global
	if local.Endpoint != "" {
		result.Endpoint = local.Endpoint
	}
	if local.DefaultFormat != "" {
		result.DefaultFormat = local.DefaultFormat
	}
	if local.FileSource != "" {
		result.FileSource = local.FileSource
	}
	if local.DiagnosticsFile != "" {
		result.DiagnosticsFile = local.DiagnosticsFile
	}
	if local.CacheTTL != "" {
		result.CacheTTL = local.CacheTTL
	}
	if local.Concurrency != 0 {
		result.Concurrency = local.Concurrency
	}
	return &result
}

// applyEnv overlays INBOX_<KEY> environment variables.
func applyEnv(cfg *Config) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	str := map[string]*string{
		"endpoint":         &cfg.Endpoint,
		"default_format":   &cfg.DefaultFormat,
		"file_source":      &cfg.FileSource,
		"diagnostics_file": &cfg.DiagnosticsFile,
		"cache_ttl":        &cfg.CacheTTL,
	}
	for key, dst := range str {
		if v.IsSet(key) {
			*dst = v.GetString(key)
		}
	}
	if v.IsSet("concurrency") {
		cfg.Concurrency = v.GetInt("concurrency")
	}
}

func (c *Config) applyDefaults() {
	if c.DefaultFormat == "" {
		c.DefaultFormat = "table"
	}
	if c.FileSource == "" {
		c.FileSource = FileSourceGraphQL
	}
}

// Validate checks enumerated and parsed values.
func (c *Config) Validate() error {
	switch c.DefaultFormat {
	case "", "table", "json", "markdown":
	default:
		return fmt.Errorf("invalid default_format %q (want table, json or markdown)", c.DefaultFormat)
	}
	switch c.FileSource {
	case "", FileSourceGraphQL, FileSourceGitHub:
	default:
		return fmt.Errorf("invalid file_source %q (want %s or %s)", c.FileSource, FileSourceGraphQL, FileSourceGitHub)
	}
	if _, err := c.GetCacheTTL(); err != nil {
		return err
	}
	if c.Concurrency < 0 {
		return fmt.Errorf("invalid concurrency %d", c.Concurrency)
	}
	return nil
}

// GetEndpoint returns the GraphQL endpoint, using the default if not configured
func (c *Config) GetEndpoint() string {
	if c.Endpoint != "" {
		return c.Endpoint
	}
	return constants.DefaultEndpoint
}

// GetCacheTTL returns the candidate cache TTL, using the default if not configured
func (c *Config) GetCacheTTL() (time.Duration, error) {
	if c.CacheTTL == "" {
		return constants.CandidateCacheTTL, nil
	}
	d, err := duration.Parse(c.CacheTTL)
	if err != nil {
		return 0, fmt.Errorf("invalid cache_ttl: %w", err)
	}
	return d, nil
}

// GetConcurrency returns the candidate lookup concurrency, using the default if not configured
func (c *Config) GetConcurrency() int {
	if c.Concurrency > 0 {
		return c.Concurrency
	}
	return constants.DefaultConcurrency
}

// GetSourcegraphToken returns the access token from SRC_ACCESS_TOKEN.
// Tokens are only read from the environment.
func (c *Config) GetSourcegraphToken() string {
	return os.Getenv("SRC_ACCESS_TOKEN")
}

// GetGitHubToken returns the GitHub token from the GITHUB_TOKEN environment variable.
func (c *Config) GetGitHubToken() string {
	return os.Getenv("GITHUB_TOKEN")
}

// DefaultConfig returns a fully populated config with all default values.
func DefaultConfig() *Config {
	return &Config{
		Endpoint:      constants.DefaultEndpoint,
		DefaultFormat: "table",
		FileSource:    FileSourceGraphQL,
		CacheTTL:      constants.CandidateCacheTTL.String(),
		Concurrency:   constants.DefaultConcurrency,
	}
}

// ToYAML returns the config as a YAML string
func (c *Config) ToYAML() (string, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("failed to marshal config: %w", err)
	}
	return string(data), nil
}

// ConfigPathInfo contains information about config file paths
type ConfigPathInfo struct {
	GlobalPath   string
	GlobalExists bool
	LocalPath    string
	LocalExists  bool
}

// GetConfigPaths returns path info for both global and local configs
func GetConfigPaths() ConfigPathInfo {
	globalPath := ConfigPath()
	localPath := LocalConfigPath()

	absLocalPath, err := filepath.Abs(localPath)
	if err != nil {
		absLocalPath = localPath
	}

	_, globalErr := os.Stat(globalPath)
	_, localErr := os.Stat(localPath)

	return ConfigPathInfo{
		GlobalPath:   globalPath,
		GlobalExists: globalErr == nil,
		LocalPath:    absLocalPath,
		LocalExists:  localErr == nil,
	}
}

// MinimalConfig returns a minimal config template with comments
func MinimalConfig() string {
	return `# Inbox configuration file
# Run "inbox config show --defaults" for every key and its default.

# Output format: table, json or markdown
default_format: table

# Where candidate files are fetched from: graphql or github
file_source: graphql

# GraphQL endpoint (optional)
# endpoint: https://sourcegraph.example.com/.api/graphql

# Diagnostics feed read by "inbox diagnostics" (optional)
# diagnostics_file: ~/.cache/inbox/diagnostics.json

# How long cached file blobs stay fresh, e.g. 12h or 2d (optional)
# cache_ttl: 1d

# Every key can be overridden with INBOX_<KEY>, e.g. INBOX_ENDPOINT.
`
}

// SaveTo writes content to a specific path, creating directories as needed
func SaveTo(path string, content string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		return fmt.Errorf("failed to write file %s: %w", path, err)
	}

	return nil
}
