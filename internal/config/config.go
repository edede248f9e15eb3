// Package config holds the persisted server configuration: the allow-list
// of directories the engine may touch, the active root used to resolve
// relative paths, and the engine's size limits.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"codeedit/internal/logging"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

const APP_NAME = "codeedit" // application name used for config directory

// Default engine limits. Values mirror what the server advertises in tool
// descriptions, so change them together.
const (
	DefaultMaxEditFileSize = 10 * 1024 * 1024 // edit_block refuses larger files
	DefaultAtomicAppendMax = 10 * 1024 * 1024 // append degrades to O_APPEND above this
	DefaultReadLineLimit   = 1000             // read_file default window
)

// Config holds user configuration for codeedit.
type Config struct {
	// Root is the active root directory. Relative tool paths resolve
	// against it. It must be covered by AllowedRoots.
	Root string `yaml:"root"`

	// AllowedRoots is the allow-list: every path-bearing operation must
	// resolve inside one of these directories.
	AllowedRoots []string `yaml:"allowed_roots"`

	// MaxEditFileSize caps the file size edit_block will load in memory.
	MaxEditFileSize int64 `yaml:"max_edit_file_size,omitempty"`

	// AtomicAppendMax caps the file size for read-concatenate-rename
	// appends; larger files are appended in place.
	AtomicAppendMax int64 `yaml:"atomic_append_max,omitempty"`

	// ReadLineLimit is the default number of lines read_file returns
	// when the caller does not pass a length.
	ReadLineLimit int `yaml:"read_line_limit,omitempty"`

	Version  string `yaml:"version"`   // Track config version
	InitTime int64  `yaml:"init_time"` // Unix timestamp of first setup
}

// ConfigPath returns the standard config file path for the current platform
func ConfigPath() (string, error) {
	configDir := filepath.Join(xdg.ConfigHome, APP_NAME)
	configPath := filepath.Join(configDir, "config.yaml")

	logging.Debug("Determined config path", "path", configPath)
	return configPath, nil
}

// Load loads the config from the standard location.
// If no config exists, it returns an error indicating first run is needed.
func Load() (*Config, error) {
	configPath, exists := FindConfigFile()
	logging.Debug("Loading config from", "path", configPath)
	if !exists {
		return nil, fmt.Errorf("no configuration found, pass --root or run codeedit init")
	}

	return LoadFrom(configPath)
}

// LoadFrom loads config from a specific path
func LoadFrom(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	var cfg Config
	dec := yaml.NewDecoder(f)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	cfg.applyDefaults()

	return &cfg, nil
}

// FindConfigFile returns the path to an existing config file, and whether it exists.
func FindConfigFile() (string, bool) {
	primary, err := ConfigPath()
	if err != nil {
		logging.Error("Failed to get config path", "error", err)
		return "", false
	}

	if _, err := os.Stat(primary); err == nil {
		return primary, true
	}

	// Return primary path for new config
	return primary, false
}

// IsFirstRun checks if this is the first time the application is run
func IsFirstRun() bool {
	_, exists := FindConfigFile()
	return !exists
}

// DefaultConfig returns a Config with sensible defaults rooted at dir.
func DefaultConfig(dir string) Config {
	cfg := Config{
		Root:         dir,
		AllowedRoots: []string{dir},
		Version:      "1.0",
		InitTime:     0, // Will be set during first save
	}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.MaxEditFileSize == 0 {
		c.MaxEditFileSize = DefaultMaxEditFileSize
	}
	if c.AtomicAppendMax == 0 {
		c.AtomicAppendMax = DefaultAtomicAppendMax
	}
	if c.ReadLineLimit == 0 {
		c.ReadLineLimit = DefaultReadLineLimit
	}
}

// Save writes the config to the standard location
func (c *Config) Save() error {
	configPath, _ := FindConfigFile()
	return c.SaveTo(configPath)
}

// SaveTo writes the config to a specific path
func (c *Config) SaveTo(path string) error {
	// Set init time if this is the first save
	if c.InitTime == 0 {
		c.InitTime = time.Now().Unix()
	}

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Create file with restrictive permissions (600) for security
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	enc := yaml.NewEncoder(f)
	defer enc.Close()

	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// CoveredBy reports whether path is equal to or a descendant of any
// existing allowed root. It compares lexically; the caller is expected to
// pass an already-resolved absolute path.
func (c *Config) CoveredBy(path string) bool {
	for _, root := range c.AllowedRoots {
		if path == root || strings.HasPrefix(path, root+string(os.PathSeparator)) {
			return true
		}
	}
	return false
}

// SetRoot switches the active root to dir, appending it to the allow-list
// when not already covered. Roots that become redundant (descendants of
// the new entry) are pruned to keep the list minimal. The config is saved
// only when the allow-list actually changed.
func (c *Config) SetRoot(dir string) error {
	if c.CoveredBy(dir) {
		c.Root = dir
		return nil
	}

	pruned := c.AllowedRoots[:0]
	for _, root := range c.AllowedRoots {
		if !strings.HasPrefix(root, dir+string(os.PathSeparator)) && root != dir {
			pruned = append(pruned, root)
		}
	}
	c.AllowedRoots = append(pruned, dir)
	c.Root = dir

	if err := c.Save(); err != nil {
		return fmt.Errorf("failed to persist allow-list: %w", err)
	}

	logging.Info("Allow-list updated", "root", dir, "allowed_roots", len(c.AllowedRoots))
	return nil
}
