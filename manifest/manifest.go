// Package manifest handles rox.toml project configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Manifest represents a rox.toml project configuration.
type Manifest struct {
	Project  Project           `toml:"project"`
	Validate ValidateConfig    `toml:"validate"`
	Emulate  EmulateConfig     `toml:"emulate"`
	Store    StoreConfig       `toml:"store"`
	Programs map[string]Target `toml:"programs"`

	// Dir is the directory containing the rox.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name     string `toml:"name"`
	Customer string `toml:"customer"`
	Version  string `toml:"version"`
}

// ValidateConfig configures the validation run.
type ValidateConfig struct {
	Rules    []string `toml:"rules"`
	Excluded []string `toml:"excluded"`
	// IgnoredOperands are qualified operand names dropped from
	// unpaired-input findings (hardware status bits like S:FS).
	IgnoredOperands []string `toml:"ignored-operands"`
}

// EmulateConfig configures emulation-logic generation.
type EmulateConfig struct {
	ControllerType string `toml:"controller-type"`
	TargetProgram  string `toml:"target-program"`
	RoutineName    string `toml:"routine-name"`
	CommentMarker  string `toml:"comment-marker"`
}

// StoreConfig configures findings persistence.
type StoreConfig struct {
	Path string `toml:"path"`
}

// Target names per-program overrides, keyed by program name.
type Target struct {
	MainRoutine string `toml:"main-routine"`
	Skip        bool   `toml:"skip"`
}

// Load parses a rox.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, "rox.toml")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	// Defaults
	if m.Emulate.RoutineName == "" {
		m.Emulate.RoutineName = "zZ998_Emulation"
	}
	if m.Emulate.CommentMarker == "" {
		m.Emulate.CommentMarker = "<@EMU>"
	}
	if m.Store.Path == "" {
		m.Store.Path = filepath.Join(".rox", "findings.db")
	}
	if len(m.Validate.IgnoredOperands) == 0 {
		m.Validate.IgnoredOperands = []string{"S:FS"}
	}

	return &m, nil
}

// FindAndLoad walks up from startDir to find a rox.toml file, then
// loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, "rox.toml")
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// StorePath returns the absolute findings-database path.
func (m *Manifest) StorePath() string {
	if filepath.IsAbs(m.Store.Path) {
		return m.Store.Path
	}
	return filepath.Join(m.Dir, m.Store.Path)
}

// RuleEnabled reports whether a validation rule should run: every rule
// when Rules is empty, minus Excluded.
func (m *Manifest) RuleEnabled(id string) bool {
	for _, ex := range m.Validate.Excluded {
		if ex == id {
			return false
		}
	}
	if len(m.Validate.Rules) == 0 {
		return true
	}
	for _, r := range m.Validate.Rules {
		if r == id {
			return true
		}
	}
	return false
}
