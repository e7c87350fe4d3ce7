// Package config handles javelin.toml project configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents a javelin.toml configuration file.
type Config struct {
	Engine    Engine    `toml:"engine"`
	Classpath Classpath `toml:"classpath"`
	Logging   Logging   `toml:"logging"`

	// Dir is the directory containing the javelin.toml file (set at load time).
	Dir string `toml:"-"`
}

// Engine configures execution limits.
type Engine struct {
	MaxFrames int `toml:"max-frames"`
}

// Classpath configures where class images are found and how lookups are
// cached.
type Classpath struct {
	Dirs  []string `toml:"dirs"`
	Index string   `toml:"index"`
}

// Logging configures log output.
type Logging struct {
	Verbosity int `toml:"verbosity"`
}

// Default returns the configuration used when no javelin.toml exists.
func Default() *Config {
	return &Config{
		Engine:    Engine{MaxFrames: 1024},
		Classpath: Classpath{Dirs: []string{"."}},
	}
}

// Load parses a javelin.toml file from the given directory.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, "javelin.toml")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var c Config
	if err := toml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	c.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	// Defaults
	if c.Engine.MaxFrames <= 0 {
		c.Engine.MaxFrames = 1024
	}
	if len(c.Classpath.Dirs) == 0 {
		c.Classpath.Dirs = []string{"."}
	}

	return &c, nil
}

// FindAndLoad walks up from startDir to find a javelin.toml file, then
// loads and returns it. Returns the defaults if none is found.
func FindAndLoad(startDir string) (*Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, "javelin.toml")
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return Default(), nil
		}
		dir = parent
	}
}

// ClasspathDirs returns absolute paths for the configured class directories.
func (c *Config) ClasspathDirs() []string {
	var paths []string
	for _, d := range c.Classpath.Dirs {
		if filepath.IsAbs(d) || c.Dir == "" {
			paths = append(paths, d)
		} else {
			paths = append(paths, filepath.Join(c.Dir, d))
		}
	}
	return paths
}

// IndexPath returns the classpath index location, "" when caching is off.
func (c *Config) IndexPath() string {
	if c.Classpath.Index == "" {
		return ""
	}
	if filepath.IsAbs(c.Classpath.Index) || c.Dir == "" {
		return c.Classpath.Index
	}
	return filepath.Join(c.Dir, c.Classpath.Index)
}
