// Package settings manages persistent user settings for the fpverify CLI.
//
// Settings are read from ~/.fpverify/settings.yaml and then overridden by
// FPVERIFY_* environment variables:
//
//	FPVERIFY_TOPOLOGY    -> topology
//	FPVERIFY_BINDINGS    -> bindings
//	FPVERIFY_NODE        -> node
//	FPVERIFY_PLATFORM    -> platform
//	FPVERIFY_REPORT_DIR  -> report_dir
//	FPVERIFY_LOG_LEVEL   -> log_level
package settings

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	koanfyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"gopkg.in/yaml.v3"

	"github.com/newtron-network/fpverify/pkg/util"
)

const envPrefix = "FPVERIFY_"

// Settings holds persistent user preferences
type Settings struct {
	// Topology is the default topology declaration file
	Topology string `koanf:"topology" yaml:"topology,omitempty"`

	// Bindings is the default bindings file
	Bindings string `koanf:"bindings" yaml:"bindings,omitempty"`

	// Node is the node to check when --node is not given
	Node string `koanf:"node" yaml:"node,omitempty"`

	// Platform overrides the platform reported by bindings
	Platform string `koanf:"platform" yaml:"platform,omitempty"`

	// ReportDir is where `run` writes markdown and JUnit reports
	ReportDir string `koanf:"report_dir" yaml:"report_dir,omitempty"`

	// LogLevel is the default logrus level
	LogLevel string `koanf:"log_level" yaml:"log_level,omitempty"`
}

// fields maps setting keys to their storage, for Get/Set by name.
func (s *Settings) fields() map[string]*string {
	return map[string]*string{
		"topology":   &s.Topology,
		"bindings":   &s.Bindings,
		"node":       &s.Node,
		"platform":   &s.Platform,
		"report_dir": &s.ReportDir,
		"log_level":  &s.LogLevel,
	}
}

// Keys returns the setting names, sorted.
func Keys() []string {
	keys := make([]string, 0, 6)
	for k := range (&Settings{}).fields() {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// DefaultSettingsPath returns the default path for the settings file
func DefaultSettingsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "fpverify_settings.yaml"
	}
	return filepath.Join(home, ".fpverify", "settings.yaml")
}

// Load reads settings from the default location
func Load() (*Settings, error) {
	return LoadFrom(DefaultSettingsPath())
}

// LoadFrom reads settings from path, then applies environment overrides.
// A missing file yields settings from the environment alone.
func LoadFrom(path string) (*Settings, error) {
	return load(path, true)
}

// LoadFile reads settings from path without environment overrides, for
// callers that write the file back.
func LoadFile(path string) (*Settings, error) {
	return load(path, false)
}

func load(path string, withEnv bool) (*Settings, error) {
	k := koanf.New(".")

	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), koanfyaml.Parser()); err != nil {
			return nil, fmt.Errorf("load settings from %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	if withEnv {
		if err := k.Load(env.Provider(envPrefix, ".", envKeyMapper), nil); err != nil {
			return nil, fmt.Errorf("load env overrides: %w", err)
		}
	}

	s := &Settings{}
	if err := k.Unmarshal("", s); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}
	return s, nil
}

// envKeyMapper transforms FPVERIFY_REPORT_DIR -> report_dir.
func envKeyMapper(s string) string {
	return strings.ToLower(strings.TrimPrefix(s, envPrefix))
}

// Save writes settings to the default location
func (s *Settings) Save() error {
	return s.SaveTo(DefaultSettingsPath())
}

// SaveTo writes settings to a specific path
func (s *Settings) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(s)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Get returns the value of a setting by name.
func (s *Settings) Get(key string) (string, error) {
	p, ok := s.fields()[key]
	if !ok {
		return "", fmt.Errorf("%w: unknown setting %q (valid: %s)", util.ErrInvalidConfig, key, strings.Join(Keys(), ", "))
	}
	return *p, nil
}

// Set assigns a setting by name.
func (s *Settings) Set(key, value string) error {
	p, ok := s.fields()[key]
	if !ok {
		return fmt.Errorf("%w: unknown setting %q (valid: %s)", util.ErrInvalidConfig, key, strings.Join(Keys(), ", "))
	}
	*p = value
	return nil
}

// GetReportDir returns the report directory (with fallback)
func (s *Settings) GetReportDir() string {
	if s.ReportDir != "" {
		return s.ReportDir
	}
	return "reports"
}

// Clear resets all settings to defaults
func (s *Settings) Clear() {
	*s = Settings{}
}
