package platform

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	logfile "github.com/aretw0/dlog/pkg/adapters/fs"
)

const (
	// ConfigFileName is the name of the config file inside the config directory.
	ConfigFileName = "config.yaml"
	// StoreFileName is the default name of the log file.
	StoreFileName = "dlog.log"
	// DefaultCLILimit is how many entries `dlog get` prints by default.
	DefaultCLILimit = 10

	tempFilePrefix = "dlog-tmp-"
)

// Config is the user configuration read from config.yaml.
type Config struct {
	StorePath    string `yaml:"store_path"`
	DefaultLimit int    `yaml:"default_limit"`
	// CaseInsensitivePaths overrides the host convention when set.
	CaseInsensitivePaths *bool         `yaml:"case_insensitive_paths,omitempty"`
	LockRetries          int           `yaml:"lock_retries"`
	LockBackoff          time.Duration `yaml:"lock_backoff"`
	// Editor falls back to $VISUAL, then $EDITOR.
	Editor string `yaml:"editor,omitempty"`
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig(dir string) *Config {
	return &Config{
		StorePath:    filepath.Join(dir, StoreFileName),
		DefaultLimit: DefaultCLILimit,
		LockRetries:  logfile.DefaultLockRetries,
		LockBackoff:  logfile.DefaultLockBackoff,
	}
}

// DefaultConfigDir is $XDG_CONFIG_HOME/dlog, or ~/.config/dlog.
func DefaultConfigDir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" && filepath.IsAbs(xdg) {
		return filepath.Join(xdg, "dlog"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("locate home directory: %w", err)
	}
	return filepath.Join(home, ".config", "dlog"), nil
}

// LoadConfig reads the config file at path. A missing file yields the
// defaults for its directory. Keys absent from the file keep their defaults.
// A relative store_path is resolved against the config directory.
func LoadConfig(path string) (*Config, error) {
	dir := filepath.Dir(path)
	cfg := DefaultConfig(dir)

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}

	cfg.StorePath, err = ExpandHome(cfg.StorePath)
	if err != nil {
		return nil, err
	}
	if cfg.StorePath == "" {
		cfg.StorePath = filepath.Join(dir, StoreFileName)
	} else if !filepath.IsAbs(cfg.StorePath) {
		cfg.StorePath = filepath.Join(dir, cfg.StorePath)
	}
	return cfg, nil
}

// Validate rejects values no component can work with.
func (c *Config) Validate() error {
	if c.DefaultLimit < 0 {
		return fmt.Errorf("default_limit must not be negative (0 means all): %d", c.DefaultLimit)
	}
	if c.LockRetries < 0 {
		return fmt.Errorf("lock_retries must not be negative: %d", c.LockRetries)
	}
	if c.LockBackoff < 0 {
		return fmt.Errorf("lock_backoff must not be negative: %s", c.LockBackoff)
	}
	return nil
}

// Options translates the config into service options.
func (c *Config) Options() []Option {
	opts := []Option{
		WithLockRetries(c.LockRetries),
		WithLockBackoff(c.LockBackoff),
	}
	if c.CaseInsensitivePaths != nil {
		opts = append(opts, WithCaseInsensitive(*c.CaseInsensitivePaths))
	}
	return opts
}

// SaveConfig writes cfg to path, replacing any existing file in one rename
// so readers never see a half written config.
func SaveConfig(path string, cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, tempFilePrefix+"*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	enc := yaml.NewEncoder(tmp)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		tmp.Close()
		return fmt.Errorf("encode config: %w", err)
	}
	if err := enc.Close(); err != nil {
		tmp.Close()
		return fmt.Errorf("encode config: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		return fmt.Errorf("failed to chmod temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to rename temp file to %s: %w", path, err)
	}
	return nil
}

// ExpandHome replaces a leading "~" with the user's home directory.
func ExpandHome(p string) (string, error) {
	if p != "~" && !strings.HasPrefix(p, "~/") && !strings.HasPrefix(p, `~\`) {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("expand %s: %w", p, err)
	}
	return filepath.Join(home, p[1:]), nil
}
