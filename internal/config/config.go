package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Config is the only persisted config file schema.
type Config struct {
	// ToolchainRoot holds the root of a wasm toolchain install; tools are
	// looked up under <root>/bin unless overridden in Tools.
	ToolchainRoot string `toml:"toolchain_root"`
	// Sysroot is prepended to the library search paths of every driver.
	Sysroot string `toml:"sysroot"`
	// SearchPaths are extra -L style library directories.
	SearchPaths []string `toml:"search_paths"`
	// Tools maps a tool name (e.g. "wasm-ld") to an explicit binary path.
	Tools map[string]string `toml:"tools"`

	Source string `toml:"-"`
}

func Default() Config {
	return Config{}
}

func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".wasm-driver", "config.toml")
}

func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		path = DefaultPath()
	}
	if path == "" {
		return cfg, errors.New("config path is empty and $HOME is not set")
	}
	cfg.Source = path

	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return applyEnv(cfg), nil
		}
		return cfg, err
	}

	if err := toml.Unmarshal(content, &cfg); err != nil {
		return cfg, err
	}
	return applyEnv(cfg), nil
}

// applyEnv lets the environment win over file values, same precedence the
// original toolchain discovery used.
func applyEnv(cfg Config) Config {
	if env := strings.TrimSpace(os.Getenv("WASM_TOOLCHAIN")); env != "" {
		cfg.ToolchainRoot = env
	}
	if env := strings.TrimSpace(os.Getenv("WASM_SYSROOT")); env != "" {
		cfg.Sysroot = env
	}
	return cfg
}

// ToolPath resolves the binary to spawn for a named toolchain component.
func (c Config) ToolPath(name string) string {
	if p, ok := c.Tools[name]; ok && p != "" {
		return p
	}
	if c.ToolchainRoot != "" {
		return filepath.Join(c.ToolchainRoot, "bin", name)
	}
	return name
}

// LibraryPaths returns the configured default search directories.
func (c Config) LibraryPaths() []string {
	paths := make([]string, 0, len(c.SearchPaths)+1)
	if c.Sysroot != "" {
		paths = append(paths, filepath.Join(c.Sysroot, "lib"))
	}
	paths = append(paths, c.SearchPaths...)
	return paths
}
