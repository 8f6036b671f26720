package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"

	"github.com/hyperifyio/rqbconf/internal/loader"
)

// FileConfig represents the single-file configuration schema.
type FileConfig struct {
	Inputs  []string `yaml:"inputs" json:"inputs"`
	Node    string   `yaml:"node" json:"node"`
	MaxSize int64    `yaml:"maxSize" json:"maxSize"`

	Output   string `yaml:"output" json:"output"`
	Format   string `yaml:"format" json:"format"`
	Fallback bool   `yaml:"fallback" json:"fallback"`

	Cache struct {
		Dir         string        `yaml:"dir" json:"dir"`
		MaxAge      time.Duration `yaml:"maxAge" json:"maxAge"`
		Clear       bool          `yaml:"clear" json:"clear"`
		StrictPerms bool          `yaml:"strictPerms" json:"strictPerms"`
	} `yaml:"cache" json:"cache"`

	Watch struct {
		Enable   bool          `yaml:"enable" json:"enable"`
		Debounce time.Duration `yaml:"debounce" json:"debounce"`
	} `yaml:"watch" json:"watch"`

	Verbose bool `yaml:"verbose" json:"verbose"`
}

// LoadConfigFile reads YAML or JSON into FileConfig.
func LoadConfigFile(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	switch ext := filepath.Ext(path); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse yaml: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse json: %w", err)
		}
	default:
		// Try YAML then JSON
		if err := yaml.Unmarshal(b, &fc); err != nil {
			if jerr := json.Unmarshal(b, &fc); jerr != nil {
				return fc, fmt.Errorf("parse config: %v (yaml) / %v (json)", err, jerr)
			}
		}
	}
	return fc, nil
}

// ApplyFileConfig overlays values from fc into cfg for any fields that are
// still unset or at their flag default, so explicit flags win.
func ApplyFileConfig(cfg *Config, fc FileConfig) {
	if cfg == nil {
		return
	}
	if len(cfg.Inputs) == 0 && len(fc.Inputs) > 0 {
		cfg.Inputs = append([]string{}, fc.Inputs...)
	}
	if (cfg.Node == "" || cfg.Node == NodeDefault) && fc.Node != "" {
		cfg.Node = fc.Node
	}
	if (cfg.MaxSize == 0 || cfg.MaxSize == loader.DefaultMaxSize) && fc.MaxSize > 0 {
		cfg.MaxSize = fc.MaxSize
	}
	if (cfg.OutputPath == "" || cfg.OutputPath == OutputDefault) && fc.Output != "" {
		cfg.OutputPath = fc.Output
	}
	if (cfg.Format == "" || cfg.Format == FormatDefault) && fc.Format != "" {
		cfg.Format = fc.Format
	}
	if !cfg.Fallback && fc.Fallback {
		cfg.Fallback = true
	}

	if cfg.CacheDir == "" && fc.Cache.Dir != "" {
		cfg.CacheDir = fc.Cache.Dir
	}
	if cfg.CacheMaxAge == 0 && fc.Cache.MaxAge > 0 {
		cfg.CacheMaxAge = fc.Cache.MaxAge
	}
	if !cfg.CacheClear && fc.Cache.Clear {
		cfg.CacheClear = true
	}
	if !cfg.CacheStrictPerms && fc.Cache.StrictPerms {
		cfg.CacheStrictPerms = true
	}

	if !cfg.Watch && fc.Watch.Enable {
		cfg.Watch = true
	}
	if (cfg.WatchDebounce == 0 || cfg.WatchDebounce == WatchDebounceDefault) && fc.Watch.Debounce > 0 {
		cfg.WatchDebounce = fc.Watch.Debounce
	}
	if !cfg.Verbose && fc.Verbose {
		cfg.Verbose = true
	}
}

// ValidateConfig performs minimal validation of required settings.
func ValidateConfig(cfg Config) error {
	if len(cfg.Inputs) == 0 {
		return errors.New("config: at least one input file is required")
	}
	for _, in := range cfg.Inputs {
		if strings.TrimSpace(in) == "" {
			return errors.New("config: empty input path")
		}
	}
	if cfg.MaxSize < 0 {
		return errors.New("config: negative maxSize is not allowed")
	}
	switch cfg.Format {
	case "", "yaml", "json", "env":
	default:
		return fmt.Errorf("config: unknown format %q (want yaml, json or env)", cfg.Format)
	}
	if cfg.CacheMaxAge < 0 || cfg.WatchDebounce < 0 {
		return errors.New("config: negative durations are not allowed")
	}
	return nil
}
