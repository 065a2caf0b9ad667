package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v2"

	pfp "github.com/setanarut/pfpbuilder"
	"github.com/setanarut/pfpbuilder/archive"
	"github.com/setanarut/pfpbuilder/loader"
	"github.com/setanarut/pfpbuilder/logger"
	"github.com/setanarut/pfpbuilder/rarity"
	"github.com/setanarut/pfpbuilder/utils"
)

var catalogFlags = []cli.Flag{
	&cli.StringFlag{Name: "layers", Usage: "layer directory, one sub-directory per category"},
	&cli.StringFlag{Name: "manifest", Usage: "catalog manifest file"},
	&cli.IntFlag{Name: "size", Aliases: []string{"n"}, Usage: "number of tokens"},
	&cli.Int64Flag{Name: "seed", Usage: "random seed for a reproducible collection"},
}

var generateCommand = &cli.Command{
	Name:  "generate",
	Usage: "render a collection into a zip archive",
	Flags: append([]cli.Flag{
		&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "archive path"},
		&cli.StringFlag{Name: "rarity", Usage: "also write a rarity report to this path"},
		&cli.IntFlag{Name: "width"},
		&cli.IntFlag{Name: "height"},
		&cli.StringFlag{Name: "format", Usage: "png or jpg"},
		&cli.IntFlag{Name: "quality", Usage: "jpeg quality 1-100"},
		&cli.BoolFlag{Name: "silhouette", Usage: "render black/white reveal placeholders"},
		&cli.IntFlag{Name: "threshold", Usage: "silhouette alpha threshold"},
		&cli.StringSliceFlag{Name: "exclude", Usage: "categories not painted"},
		&cli.StringFlag{Name: "background", Usage: "fill color, #rrggbb"},
		&cli.BoolFlag{Name: "dominant-color", Usage: "store dominant color as background_color"},
		&cli.IntFlag{Name: "batch", Usage: "tokens per progress step"},
		&cli.IntFlag{Name: "workers", Usage: "parallel renderers"},
	}, catalogFlags...),
	Action: func(c *cli.Context) error {
		cfg, err := LoadConfig(c)
		if err != nil {
			return err
		}
		cat, err := cfg.Catalog()
		if err != nil {
			return err
		}
		pc, err := cfg.Pipeline()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
		defer stop()

		src, err := assetSource(ctx, cfg)
		if err != nil {
			return err
		}
		cache := loader.New(src, loader.WithLogger(logger.Log))
		defer cache.Purge()

		o, err := pfp.NewOrchestrator(cat, cache, pc)
		if err != nil {
			return err
		}
		o.Log = logger.Log
		o.Progress = func(p pfp.ProgressState) {
			logger.Info().
				Int("current", p.Current).
				Int("total", p.Total).
				Str("eta", humanize.RelTime(time.Now(), time.Now().Add(p.Remaining), "", "")).
				Msg("progress")
		}

		ar, err := archive.Create(cfg.Output)
		if err != nil {
			return err
		}
		res, err := o.Run(ctx, ar)
		if errors.Is(err, pfp.ErrCancelled) {
			return cli.Exit("cancelled, no archive written", 130)
		}
		if err != nil {
			if id := pfp.TokenOf(err); id > 0 {
				return fmt.Errorf("token %d: %w", id, err)
			}
			return err
		}

		size := "?"
		if st, err := os.Stat(ar.Path()); err == nil {
			size = humanize.Bytes(uint64(st.Size()))
		}
		fmt.Printf("wrote %s (%s): %s tokens, %d skipped, %d warnings in %s\n",
			ar.Path(), size, humanize.Comma(int64(res.Written)), len(res.Skipped), len(res.Warnings),
			res.Elapsed.Round(time.Millisecond))

		if cfg.RarityReport != "" {
			if err := writeJSON(cfg.RarityReport, rarity.Compute(res.Assignments)); err != nil {
				return err
			}
			fmt.Printf("wrote %s\n", cfg.RarityReport)
		}
		return nil
	},
}

var rarityCommand = &cli.Command{
	Name:  "rarity",
	Usage: "generate trait assignments only and print their rarity report",
	Flags: catalogFlags,
	Action: func(c *cli.Context) error {
		cfg, err := LoadConfig(c)
		if err != nil {
			return err
		}
		cat, err := cfg.Catalog()
		if err != nil {
			return err
		}
		pc, err := cfg.Pipeline()
		if err != nil {
			return err
		}
		assignments, err := pfp.Generate(cat, pc.Size, pfp.GenerateOptions{
			Seed:             pc.Seed,
			MaxRetries:       pc.MaxRetries,
			IgnoreCategories: pc.IgnoreCategories,
			AllowDuplicates:  pc.AllowDuplicates,
		})
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rarity.Compute(assignments))
	},
}

var spaceCommand = &cli.Command{
	Name:  "space",
	Usage: "print how many distinct tokens the catalog supports",
	Flags: catalogFlags,
	Action: func(c *cli.Context) error {
		cfg, err := LoadConfig(c)
		if err != nil {
			return err
		}
		cat, err := cfg.Catalog()
		if err != nil {
			return err
		}
		space, err := pfp.CombinationSpace(cat, cfg.IgnoreCategories...)
		if err != nil {
			return err
		}
		fmt.Printf("%s distinct combinations over %s\n", humanize.Comma(int64(space)), strings.Join(cat.LayerOrder(), ", "))
		if cfg.Size > space {
			return cli.Exit(fmt.Sprintf("size %d exceeds the combination space", cfg.Size), 1)
		}
		return nil
	},
}

var silhouetteCommand = &cli.Command{
	Name:  "silhouette",
	Usage: "turn a rendered image into a black/white silhouette",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "in", Required: true},
		&cli.StringFlag{Name: "out", Required: true},
		&cli.IntFlag{Name: "threshold", Value: int(pfp.DefaultSilhouetteThreshold)},
		&cli.BoolFlag{Name: "keep-binary", Usage: "leave inputs that are already black/white silhouettes unchanged"},
	},
	Action: func(c *cli.Context) error {
		threshold := c.Int("threshold")
		if threshold < 0 || threshold > 255 {
			return cli.Exit("threshold must be within 0..255", 2)
		}
		img, err := utils.ReadImage(c.String("in"))
		if err != nil {
			return err
		}
		convert := pfp.Silhouette
		if c.Bool("keep-binary") {
			convert = pfp.Resilhouette
		}
		out, black := convert(img, uint8(threshold))
		if black == 0 {
			logger.Warn().Err(pfp.ErrDegenerateSilhouette).Str("in", c.String("in")).Msg("silhouette is blank")
		}
		return utils.SaveImage(out, c.String("out"))
	},
}

var paletteCommand = &cli.Command{
	Name:  "palette",
	Usage: "extract the main colors of an image",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "in", Required: true},
		&cli.StringFlag{Name: "out", Usage: "optional swatch image"},
		&cli.IntFlag{Name: "k", Value: 5},
		&cli.StringFlag{Name: "method", Value: utils.PaletteMethodDominantColor.String()},
	},
	Action: func(c *cli.Context) error {
		img, err := utils.ReadImage(c.String("in"))
		if err != nil {
			return err
		}
		palette := utils.ExtractPalette(img, c.Int("k"), utils.ParsePaletteMethod(c.String("method")))
		utils.SortPaletteByBrightness(palette)
		for _, col := range palette {
			fmt.Println(col.Hex())
		}
		if out := c.String("out"); out != "" {
			return utils.SavePalette(palette, 64, out)
		}
		return nil
	},
}

func assetSource(ctx context.Context, cfg *Config) (loader.Source, error) {
	if cfg.S3.Bucket != "" {
		return loader.NewS3Source(ctx, cfg.S3)
	}
	return loader.NewDirSource(cfg.AssetRoot()), nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
