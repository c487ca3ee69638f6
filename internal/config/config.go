// Package config loads danci settings from defaults, an optional config
// file and DANCI_ environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/xiao2945/danci-sub000/internal/compiler"
	"github.com/xiao2945/danci-sub000/internal/engine"
)

// AppName names the config and data directories.
const AppName = "danci"

// EnvPrefix prefixes environment overrides, e.g. DANCI_LIMITS_NAME_LENGTH.
const EnvPrefix = "DANCI_"

// Config is the resolved configuration.
type Config struct {
	Database string               `koanf:"database"`
	Format   string               `koanf:"format"`
	Library  []string             `koanf:"library"`
	Verbose  bool                 `koanf:"verbose"`
	Limits   compiler.Limits      `koanf:"limits"`
	Preview  engine.PreviewWidths `koanf:"preview"`

	// File is the config file that was loaded, empty when none was.
	File string `koanf:"-"`
}

// DefaultPath is $XDG_CONFIG_HOME/danci/config.yaml.
func DefaultPath() string {
	return filepath.Join(xdg.ConfigHome, AppName, "config.yaml")
}

// DefaultDatabase is $XDG_DATA_HOME/danci/rules.db.
func DefaultDatabase() string {
	return filepath.Join(xdg.DataHome, AppName, "rules.db")
}

func defaults() map[string]any {
	limits := compiler.DefaultLimits()
	widths := engine.DefaultPreviewWidths()
	return map[string]any{
		"database":              DefaultDatabase(),
		"format":                "text",
		"library":               []string{},
		"verbose":               false,
		"limits.name_length":    limits.NameLength,
		"limits.comment_length": limits.CommentLength,
		"limits.sort_levels":    limits.SortLevels,
		"preview.name_width":    widths.Name,
		"preview.comment_width": widths.Comment,
	}
}

// Load resolves the configuration. An empty path means DefaultPath, which
// may be missing; an explicit path must exist.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	// 1. Defaults
	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config file
	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	loaded := ""
	if _, err := os.Stat(path); err == nil {
		parser, err := parserFor(path)
		if err != nil {
			return nil, err
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
		}
		loaded = path
	} else if explicit {
		return nil, fmt.Errorf("config file: %w", err)
	}

	// 3. Environment
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Unmarshal
	var cfg Config
	unmarshalConf := koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           &cfg,
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToSliceHookFunc(","),
			),
		},
	}
	if err := k.UnmarshalWithConf("", &cfg, unmarshalConf); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	cfg.File = loaded

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	var errs []error
	if c.Format != "text" && c.Format != "json" {
		errs = append(errs, fmt.Errorf("format must be text or json, got %q", c.Format))
	}
	if c.Limits.NameLength <= 0 || c.Limits.CommentLength <= 0 || c.Limits.SortLevels <= 0 {
		errs = append(errs, fmt.Errorf("limits must be positive: %+v", c.Limits))
	}
	if c.Preview.Name <= 0 || c.Preview.Comment <= 0 {
		errs = append(errs, fmt.Errorf("preview widths must be positive: %+v", c.Preview))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

func parserFor(path string) (koanf.Parser, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Parser(), nil
	case ".toml":
		return toml.Parser(), nil
	}
	return nil, fmt.Errorf("unsupported config format %q (use .yaml or .toml)", filepath.Ext(path))
}

// sections are the nested config keys; their first underscore separates
// the section from the key.
var sections = []string{"limits_", "preview_"}

// envKey maps DANCI_LIMITS_NAME_LENGTH to limits.name_length.
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	for _, sec := range sections {
		if strings.HasPrefix(key, sec) {
			return strings.TrimSuffix(sec, "_") + "." + strings.TrimPrefix(key, sec)
		}
	}
	return key
}
