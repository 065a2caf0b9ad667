package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/urfave/cli/v2"

	pfp "github.com/setanarut/pfpbuilder"
	"github.com/setanarut/pfpbuilder/catalog"
	"github.com/setanarut/pfpbuilder/loader"
	"github.com/setanarut/pfpbuilder/utils"
)

type Config struct {
	Env      string `mapstructure:"env"`
	LogLevel string `mapstructure:"log_level"`

	// Layers is a layer directory; Manifest a catalog file. One is required.
	Layers     string          `mapstructure:"layers"`
	Manifest   string          `mapstructure:"manifest"`
	LayerOrder []string        `mapstructure:"layer_order"`
	S3         loader.S3Config `mapstructure:"s3"`

	Output       string         `mapstructure:"output"`
	RarityReport string         `mapstructure:"rarity_report"`
	Size         int            `mapstructure:"size"`
	Width        int            `mapstructure:"width"`
	Height       int            `mapstructure:"height"`
	Format       string         `mapstructure:"format"`
	Quality      int            `mapstructure:"quality"`
	Collection   pfp.Collection `mapstructure:"collection"`

	Seed             int64    `mapstructure:"seed"`
	MaxRetries       int      `mapstructure:"max_retries"`
	IgnoreCategories []string `mapstructure:"ignore_categories"`
	AllowDuplicates  bool     `mapstructure:"allow_duplicates"`

	Silhouette          bool     `mapstructure:"silhouette"`
	SilhouetteThreshold int      `mapstructure:"silhouette_threshold"`
	ExcludeLayers       []string `mapstructure:"exclude_layers"`
	Background          string   `mapstructure:"background"`
	DominantColor       bool     `mapstructure:"dominant_color"`
	PaletteMethod       string   `mapstructure:"palette_method"`

	BatchSize    int           `mapstructure:"batch_size"`
	Workers      int           `mapstructure:"workers"`
	LayerTimeout time.Duration `mapstructure:"layer_timeout"`

	seeded bool
}

// LoadConfig reads the config file (optional), PFP_* environment
// variables and the flags set on c, in increasing priority.
func LoadConfig(c *cli.Context) (*Config, error) {
	v := viper.New()
	def := pfp.DefaultConfig()
	v.SetDefault("env", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("output", "collection.zip")
	v.SetDefault("width", def.Width)
	v.SetDefault("height", def.Height)
	v.SetDefault("format", string(def.Format))
	v.SetDefault("quality", def.Quality)
	v.SetDefault("silhouette_threshold", int(def.SilhouetteThreshold))
	v.SetDefault("palette_method", utils.PaletteMethodDominantColor.String())
	v.SetDefault("batch_size", 0)
	v.SetDefault("workers", def.Workers)
	v.SetDefault("layer_timeout", def.LayerTimeout)

	v.SetEnvPrefix("pfp")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// The default config file is optional; an explicit one is not.
	if file := c.String("config"); file != "" {
		if _, err := os.Stat(file); err == nil || c.IsSet("config") {
			v.SetConfigFile(file)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	for _, f := range flagKeys {
		if c.IsSet(f.flag) {
			v.Set(f.key, f.get(c))
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.seeded = v.IsSet("seed")
	if cfg.SilhouetteThreshold < 0 || cfg.SilhouetteThreshold > 255 {
		return nil, fmt.Errorf("silhouette_threshold must be within 0..255, got %d", cfg.SilhouetteThreshold)
	}
	return &cfg, nil
}

type flagKey struct {
	flag string
	key  string
	get  func(*cli.Context) any
}

func stringFlag(name, key string) flagKey {
	return flagKey{name, key, func(c *cli.Context) any { return c.String(name) }}
}

func intFlag(name, key string) flagKey {
	return flagKey{name, key, func(c *cli.Context) any { return c.Int(name) }}
}

func boolFlag(name, key string) flagKey {
	return flagKey{name, key, func(c *cli.Context) any { return c.Bool(name) }}
}

func sliceFlag(name, key string) flagKey {
	return flagKey{name, key, func(c *cli.Context) any { return c.StringSlice(name) }}
}

var flagKeys = []flagKey{
	stringFlag("env", "env"),
	stringFlag("log-level", "log_level"),
	stringFlag("layers", "layers"),
	stringFlag("manifest", "manifest"),
	stringFlag("out", "output"),
	stringFlag("rarity", "rarity_report"),
	intFlag("size", "size"),
	intFlag("width", "width"),
	intFlag("height", "height"),
	stringFlag("format", "format"),
	intFlag("quality", "quality"),
	{"seed", "seed", func(c *cli.Context) any { return c.Int64("seed") }},
	boolFlag("silhouette", "silhouette"),
	intFlag("threshold", "silhouette_threshold"),
	sliceFlag("exclude", "exclude_layers"),
	stringFlag("background", "background"),
	boolFlag("dominant-color", "dominant_color"),
	intFlag("batch", "batch_size"),
	intFlag("workers", "workers"),
}

// Pipeline converts the file config into the orchestrator config.
func (c *Config) Pipeline() (pfp.Config, error) {
	format, err := pfp.ParseFormat(c.Format)
	if err != nil {
		return pfp.Config{}, err
	}
	pc := pfp.Config{
		Size:                c.Size,
		Width:               c.Width,
		Height:              c.Height,
		Format:              format,
		Quality:             c.Quality,
		Collection:          c.Collection,
		MaxRetries:          c.MaxRetries,
		IgnoreCategories:    c.IgnoreCategories,
		AllowDuplicates:     c.AllowDuplicates,
		Silhouette:          c.Silhouette,
		SilhouetteThreshold: uint8(c.SilhouetteThreshold),
		ExcludeLayers:       c.ExcludeLayers,
		Background:          c.Background,
		DominantColor:       c.DominantColor,
		PaletteMethod:       utils.ParsePaletteMethod(c.PaletteMethod),
		BatchSize:           c.BatchSize,
		Workers:             c.Workers,
		LayerTimeout:        c.LayerTimeout,
	}
	if c.seeded {
		seed := c.Seed
		pc.Seed = &seed
	}
	return pc, nil
}

// Catalog loads the trait catalog from the layer directory or manifest.
func (c *Config) Catalog() (*catalog.Static, error) {
	switch {
	case c.Manifest != "":
		return catalog.LoadManifest(c.Manifest)
	case c.Layers != "":
		return catalog.LoadDir(c.Layers, c.LayerOrder)
	}
	return nil, errors.New("either layers or manifest must be configured")
}

// AssetRoot is the directory asset references are relative to.
func (c *Config) AssetRoot() string {
	if c.Layers != "" {
		return c.Layers
	}
	return filepath.Dir(c.Manifest)
}
