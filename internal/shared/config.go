package shared

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Cache    CacheConfig    `toml:"cache"`
	Tools    ToolsConfig    `toml:"tools"`
	Sync     SyncConfig     `toml:"sync"`
	Database DatabaseConfig `toml:"database"`
}

// CacheConfig controls where playlist audio and manifests live.
type CacheConfig struct {
	Dir string `toml:"dir"`
}

// ToolsConfig names the external binaries yt-play shells out to and any
// extra arguments passed through to them on every invocation.
type ToolsConfig struct {
	YtDlp     string   `toml:"yt_dlp"`
	Mpv       string   `toml:"mpv"`
	YtDlpArgs []string `toml:"yt_dlp_args"`
	MpvArgs   []string `toml:"mpv_args"`
}

// SyncConfig tunes download concurrency and retry behavior.
type SyncConfig struct {
	Workers        int     `toml:"workers"`
	RateLimit      float64 `toml:"rate_limit"`
	MaxRetries     int     `toml:"max_retries"`
	ListTimeoutSec int     `toml:"list_timeout_seconds"`
	LockTimeoutSec int     `toml:"lock_timeout_seconds"`
}

// DatabaseConfig contains sync history database settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	config.fillDefaults()
	return &config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// ResolveConfig locates and loads the effective configuration.
//
// Order of precedence: the explicit path argument, the YT_PLAY_CONFIG
// environment variable, then the per-user config directory. A missing
// file is not an error; the embedded defaults apply. Environment
// variables override file values last. A .env file in the working
// directory is loaded first if present.
func ResolveConfig(path string) (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		_ = godotenv.Load(".env")
	}

	if path == "" {
		path = os.Getenv("YT_PLAY_CONFIG")
	}
	explicit := path != ""
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return nil, err
		}
		path = defaultPath
	}

	config, err := LoadConfig(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		if explicit {
			return nil, fmt.Errorf("%w: %s", ErrMissingConfig, path)
		}
		config = DefaultConfig()
	}

	config.applyEnv()
	return config, nil
}

// DefaultConfigPath returns the per-user path for config.toml.
func DefaultConfigPath() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate user config directory: %w", err)
	}
	return filepath.Join(base, "yt-play", "config.toml"), nil
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// CacheDir returns the configured cache root, falling back to the
// per-user cache directory when unset.
func (c *Config) CacheDir() (string, error) {
	if c.Cache.Dir != "" {
		return c.Cache.Dir, nil
	}
	base, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate user cache directory: %w", err)
	}
	return filepath.Join(base, "yt-play"), nil
}

// HistoryPath returns the sync history database path, defaulting to
// history.db inside the cache root.
func (c *Config) HistoryPath() (string, error) {
	if c.Database.Path != "" {
		return c.Database.Path, nil
	}
	dir, err := c.CacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "history.db"), nil
}

// fillDefaults replaces zero values with embedded defaults so a partial
// user config never produces a zero worker pool or a nil tool name.
func (c *Config) fillDefaults() {
	defaults := DefaultConfig()
	if c.Tools.YtDlp == "" {
		c.Tools.YtDlp = defaults.Tools.YtDlp
	}
	if c.Tools.Mpv == "" {
		c.Tools.Mpv = defaults.Tools.Mpv
	}
	if c.Sync.Workers <= 0 {
		c.Sync.Workers = defaults.Sync.Workers
	}
	if c.Sync.RateLimit <= 0 {
		c.Sync.RateLimit = defaults.Sync.RateLimit
	}
	if c.Sync.MaxRetries <= 0 {
		c.Sync.MaxRetries = defaults.Sync.MaxRetries
	}
	if c.Sync.ListTimeoutSec <= 0 {
		c.Sync.ListTimeoutSec = defaults.Sync.ListTimeoutSec
	}
	if c.Sync.LockTimeoutSec <= 0 {
		c.Sync.LockTimeoutSec = defaults.Sync.LockTimeoutSec
	}
	if c.Database.MaxOpenConns <= 0 {
		c.Database.MaxOpenConns = defaults.Database.MaxOpenConns
	}
	if c.Database.MaxIdleConns <= 0 {
		c.Database.MaxIdleConns = defaults.Database.MaxIdleConns
	}
}

// applyEnv overrides config values from the environment.
func (c *Config) applyEnv() {
	if v := os.Getenv("YT_PLAY_CACHE_DIR"); v != "" {
		c.Cache.Dir = v
	}
	if v := os.Getenv("YT_PLAY_YTDLP"); v != "" {
		c.Tools.YtDlp = v
	}
	if v := os.Getenv("YT_PLAY_MPV"); v != "" {
		c.Tools.Mpv = v
	}
	if v := os.Getenv("YT_PLAY_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Sync.Workers = n
		}
	}
}
