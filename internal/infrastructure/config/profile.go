package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/pelletier/go-toml/v2"
)

// Profile describes how to launch a shell. It is read from a YAML or TOML
// file and overrides the environment configuration field by field.
type Profile struct {
	Command string            `yaml:"command" toml:"command"`
	Args    []string          `yaml:"args" toml:"args"`
	Env     map[string]string `yaml:"env" toml:"env"`
	Workdir string            `yaml:"workdir" toml:"workdir"`
	Cols    int               `yaml:"cols" toml:"cols"`
	Rows    int               `yaml:"rows" toml:"rows"`
}

// LoadProfile reads a profile, choosing the format from the file extension.
func LoadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read shell profile: %w", err)
	}
	return ParseProfile(data, filepath.Ext(path))
}

// ParseProfile decodes a profile in the format named by ext
// (".yaml", ".yml" or ".toml").
func ParseProfile(data []byte, ext string) (*Profile, error) {
	var p Profile
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("failed to parse shell profile: %w", err)
		}
	case ".toml":
		if err := toml.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("failed to parse shell profile: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported shell profile format %q", ext)
	}
	return &p, nil
}

// Apply merges the profile over cfg. A profile command replaces the
// configured arguments even when the profile lists none.
func (p *Profile) Apply(cfg *ShellConfig) {
	if p.Command != "" {
		cfg.Command = p.Command
		cfg.Args = p.Args
	} else if p.Args != nil {
		cfg.Args = p.Args
	}
	if p.Workdir != "" {
		cfg.WorkingDir = p.Workdir
	}
	if p.Cols > 0 {
		cfg.Cols = p.Cols
	}
	if p.Rows > 0 {
		cfg.Rows = p.Rows
	}
	if len(p.Env) > 0 {
		if cfg.Env == nil {
			cfg.Env = make(map[string]string, len(p.Env))
		}
		for k, v := range p.Env {
			cfg.Env[k] = v
		}
	}
}
