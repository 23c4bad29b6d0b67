// Package config provides configuration management for the chart pattern scanner.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/viper"

	"chart-patterns/internal/analysis"
	"chart-patterns/internal/analysis/patterns"
	apperrors "chart-patterns/internal/errors"
	"chart-patterns/internal/logging"
)

// FileName is the configuration file name without extension.
const FileName = "chartpatterns"

// Config holds all application configuration.
type Config struct {
	Doubles                 patterns.DoublesConfig          `mapstructure:"doubles"`
	HeadAndShoulders        patterns.HeadAndShouldersConfig `mapstructure:"head_and_shoulders"`
	InverseHeadAndShoulders patterns.HeadAndShouldersConfig `mapstructure:"inverse_head_and_shoulders"`
	Flag                    patterns.ChannelConfig          `mapstructure:"flag"`
	Pennant                 patterns.ChannelConfig          `mapstructure:"pennant"`
	Triangle                patterns.TriangleConfig         `mapstructure:"triangle"`
	Scan                    ScanConfig                      `mapstructure:"scan"`
	Logging                 logging.LogConfig               `mapstructure:"logging"`
	UI                      UIConfig                        `mapstructure:"ui"`

	// Path is the file the configuration was read from, empty when defaults were used.
	Path string `mapstructure:"-"`
}

// ScanConfig holds scan execution and persistence settings.
type ScanConfig struct {
	Workers  int    `mapstructure:"workers"`
	Database string `mapstructure:"database"`
}

// UIConfig holds UI-related configuration.
type UIConfig struct {
	ColorEnabled bool `mapstructure:"color_enabled"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/chart-patterns"
	}
	return filepath.Join(home, ".config", "chart-patterns")
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Doubles:                 patterns.DefaultDoublesConfig(),
		HeadAndShoulders:        patterns.DefaultHeadAndShouldersConfig(),
		InverseHeadAndShoulders: patterns.DefaultInverseHeadAndShouldersConfig(),
		Flag:                    patterns.DefaultFlagConfig(),
		Pennant:                 patterns.DefaultPennantConfig(),
		Triangle:                patterns.DefaultTriangleConfig(),
		Scan: ScanConfig{
			Workers:  1,
			Database: filepath.Join(DefaultConfigDir(), "chartpatterns.db"),
		},
		Logging: logging.DefaultLogConfig(),
		UI:      UIConfig{ColorEnabled: true},
	}
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory. A missing file is
// replaced by a commented template and the defaults are returned.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	cfg := Default()
	v := viper.New()
	v.SetConfigName(FileName)
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)
	setDefaults(v, cfg)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading %s.toml: %w", FileName, err)
		}
		if err := createTemplateConfig(configDir); err != nil {
			return nil, err
		}
	} else {
		cfg.Path = v.ConfigFileUsed()
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding %s.toml: %w", FileName, err)
	}

	defaults := Default()
	if cfg.Scan.Database == "" {
		cfg.Scan.Database = defaults.Scan.Database
	}
	if cfg.Logging.FilePath == "" {
		cfg.Logging.FilePath = defaults.Logging.FilePath
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// setDefaults registers every default so partial files keep the remaining values.
func setDefaults(v *viper.Viper, cfg *Config) {
	d := cfg.Doubles
	v.SetDefault("doubles.lookback", d.Lookback)
	v.SetDefault("doubles.mode", string(d.Mode))
	v.SetDefault("doubles.tops_max_ratio", d.TopsMaxRatio)
	v.SetDefault("doubles.bottoms_min_ratio", d.BottomsMinRatio)
	v.SetDefault("doubles.pivot_window", d.PivotWindow)

	for key, hs := range map[string]patterns.HeadAndShouldersConfig{
		"head_and_shoulders":         cfg.HeadAndShoulders,
		"inverse_head_and_shoulders": cfg.InverseHeadAndShoulders,
	} {
		v.SetDefault(key+".lookback", hs.Lookback)
		v.SetDefault(key+".pivot_interval", hs.PivotInterval)
		v.SetDefault(key+".short_pivot_interval", hs.ShortPivotInterval)
		v.SetDefault(key+".head_ratio_before", hs.HeadRatioBefore)
		v.SetDefault(key+".head_ratio_after", hs.HeadRatioAfter)
		v.SetDefault(key+".neckline_slope", hs.NecklineSlope)
	}

	for key, ch := range map[string]patterns.ChannelConfig{
		"flag":    cfg.Flag,
		"pennant": cfg.Pennant,
	} {
		v.SetDefault(key+".lookback", ch.Lookback)
		v.SetDefault(key+".min_points", ch.MinPoints)
		v.SetDefault(key+".pivot_window", ch.PivotWindow)
		v.SetDefault(key+".r_max", ch.RMax)
		v.SetDefault(key+".r_min", ch.RMin)
		v.SetDefault(key+".slope_max", ch.SlopeMax)
		v.SetDefault(key+".slope_min", ch.SlopeMin)
		v.SetDefault(key+".lower_ratio_slope", ch.LowerRatioSlope)
		v.SetDefault(key+".upper_ratio_slope", ch.UpperRatioSlope)
	}

	t := cfg.Triangle
	v.SetDefault("triangle.lookback", t.Lookback)
	v.SetDefault("triangle.min_points", t.MinPoints)
	v.SetDefault("triangle.pivot_window", t.PivotWindow)
	v.SetDefault("triangle.r_limit", t.RLimit)
	v.SetDefault("triangle.slope_max_limit", t.SlopeMaxLimit)
	v.SetDefault("triangle.slope_min_limit", t.SlopeMinLimit)
	v.SetDefault("triangle.type", string(t.Type))

	v.SetDefault("scan.workers", cfg.Scan.Workers)
	v.SetDefault("scan.database", cfg.Scan.Database)

	l := cfg.Logging
	v.SetDefault("logging.level", l.Level)
	v.SetDefault("logging.console", l.Console)
	v.SetDefault("logging.file", l.File)
	v.SetDefault("logging.file_path", l.FilePath)
	v.SetDefault("logging.max_size", l.MaxSize)
	v.SetDefault("logging.max_backups", l.MaxBackups)
	v.SetDefault("logging.max_age", l.MaxAge)

	v.SetDefault("ui.color_enabled", cfg.UI.ColorEnabled)
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CHARTPATTERNS_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Scan.Workers = n
		}
	}
	if v := os.Getenv("CHARTPATTERNS_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("CHARTPATTERNS_DB"); v != "" {
		cfg.Scan.Database = v
	}
	if os.Getenv("NO_COLOR") != "" {
		cfg.UI.ColorEnabled = false
	}
}

// Validate validates the configuration. Every classifier table is checked, so a
// bad threshold fails before any scan starts.
func (c *Config) Validate() error {
	if c.Scan.Workers < 1 {
		return apperrors.NewConfigurationError("scan.workers", c.Scan.Workers, "must be at least 1")
	}
	if !logging.ValidLevel(c.Logging.Level) {
		return apperrors.NewConfigurationError("logging.level", c.Logging.Level,
			"must be debug, info, warn or error")
	}

	checks := []struct {
		table string
		det   patterns.Detector
	}{
		{"doubles", patterns.NewDoublesDetector(c.Doubles)},
		{"head_and_shoulders", patterns.NewHeadAndShouldersDetector(c.HeadAndShoulders)},
		{"inverse_head_and_shoulders", patterns.NewInverseHeadAndShouldersDetector(c.InverseHeadAndShoulders)},
		{"flag", patterns.NewFlagDetector(c.Flag)},
		{"pennant", patterns.NewPennantDetector(c.Pennant)},
		{"triangle", patterns.NewTriangleDetector(c.Triangle)},
	}
	for _, chk := range checks {
		if err := chk.det.Validate(); err != nil {
			return apperrors.Wrapf(err, "[%s]", chk.table)
		}
	}
	return nil
}

// Detector builds the configured classifier for family. variant overrides the
// doubles mode or the triangle type when non-empty.
func (c *Config) Detector(family analysis.Family, variant string) (patterns.Detector, error) {
	det, _, err := c.resolve(family, variant)
	return det, err
}

// Params returns the thresholds Detector would use, for recording scan runs.
func (c *Config) Params(family analysis.Family, variant string) (interface{}, error) {
	_, params, err := c.resolve(family, variant)
	return params, err
}

func (c *Config) resolve(family analysis.Family, variant string) (patterns.Detector, interface{}, error) {
	switch family {
	case analysis.FamilyDouble:
		cfg := c.Doubles
		if variant != "" {
			cfg.Mode = patterns.DoubleMode(variant)
		}
		return patterns.NewDoublesDetector(cfg), cfg, nil
	case analysis.FamilyHeadAndShoulders:
		return patterns.NewHeadAndShouldersDetector(c.HeadAndShoulders), c.HeadAndShoulders, nil
	case analysis.FamilyInverseHeadAndShoulders:
		return patterns.NewInverseHeadAndShouldersDetector(c.InverseHeadAndShoulders), c.InverseHeadAndShoulders, nil
	case analysis.FamilyFlag:
		return patterns.NewFlagDetector(c.Flag), c.Flag, nil
	case analysis.FamilyPennant:
		return patterns.NewPennantDetector(c.Pennant), c.Pennant, nil
	case analysis.FamilyTriangle:
		cfg := c.Triangle
		if variant != "" {
			cfg.Type = analysis.SubType(variant)
		}
		return patterns.NewTriangleDetector(cfg), cfg, nil
	default:
		return nil, nil, apperrors.NewConfigurationError("family", family, "unknown pattern family")
	}
}
