package pfpbuilder

import (
	"bytes"
	"context"
	"fmt"
	"image/color"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/setanarut/pfpbuilder/utils"
)

// Archive is the container a run streams its entries into. The
// orchestrator owns it for the duration of Run and either finalizes it
// once or discards it.
type Archive interface {
	Create(name string, data []byte) error
	Finalize() error
	Discard() error
}

// ImageEntryName is the archive path of a token's image.
func ImageEntryName(id int, f Format) string {
	return "images/" + strconv.Itoa(id) + "." + f.Ext()
}

// MetadataEntryName is the archive path of a token's metadata document.
func MetadataEntryName(id int) string {
	return "metadata/" + strconv.Itoa(id)
}

type Config struct {
	// Size is the number of tokens, numbered 1..Size.
	Size       int
	Width      int
	Height     int
	Format     Format
	Quality    int
	Collection Collection

	Seed             *int64
	MaxRetries       int
	IgnoreCategories []string
	AllowDuplicates  bool

	// Silhouette renders black/white reveal placeholders instead of the
	// full art.
	Silhouette          bool
	SilhouetteThreshold uint8
	// ExcludeLayers are categories left out of every render.
	ExcludeLayers []string
	// Background is an optional "#rrggbb" fill under the first layer.
	// Ignored for silhouettes.
	Background string
	// DominantColor stores each render's dominant color as
	// background_color in the metadata.
	DominantColor bool
	PaletteMethod utils.PaletteMethod

	// BatchSize tokens are processed between progress reports and yield
	// points. Peak memory is proportional to it. Zero means Workers.
	BatchSize int
	// Workers render a batch in parallel; the archive is still written by
	// a single goroutine in token order.
	Workers      int
	LayerTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		Width:               1024,
		Height:              1024,
		Format:              FormatPNG,
		Quality:             utils.DefaultJPEGQuality,
		SilhouetteThreshold: DefaultSilhouetteThreshold,
		Workers:             1,
		LayerTimeout:        30 * time.Second,
	}
}

// Result describes a finished run.
type Result struct {
	RunID string
	// Written counts tokens whose image and metadata are in the archive.
	Written     int
	Skipped     []int
	Warnings    []error
	Assignments []TraitAssignment
	Elapsed     time.Duration
}

// Orchestrator drives generation, rendering and archiving of a collection.
type Orchestrator struct {
	Log      zerolog.Logger
	Progress ProgressFunc
	Yield    Yielder
	Now      func() time.Time

	cfg        Config
	catalog    TraitCatalog
	compositor *Compositor
	background color.Color
}

func NewOrchestrator(cat TraitCatalog, loader ImageLoader, cfg Config) (*Orchestrator, error) {
	if cfg.Size <= 0 {
		return nil, invalidf("collection size must be positive, got %d", cfg.Size)
	}
	if strings.TrimRight(strings.TrimSpace(cfg.Collection.MediaBaseURI), "/") == "" {
		return nil, invalidf("collection media base uri is required")
	}
	format, err := ParseFormat(string(cfg.Format))
	if err != nil {
		return nil, err
	}
	cfg.Format = format
	cfg.Workers = max(cfg.Workers, 1)
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = cfg.Workers
	}

	o := &Orchestrator{
		Log:     zerolog.Nop(),
		Yield:   GoschedYielder{},
		Now:     time.Now,
		cfg:     cfg,
		catalog: cat,
	}
	if bg := strings.TrimSpace(cfg.Background); bg != "" && !cfg.Silhouette {
		if !strings.HasPrefix(bg, "#") {
			bg = "#" + bg
		}
		c, err := colorful.Hex(bg)
		if err != nil {
			return nil, invalidf("background %q: %v", cfg.Background, err)
		}
		r, g, b := c.RGB255()
		o.background = color.RGBA{R: r, G: g, B: b, A: 255}
	}

	o.compositor, err = NewCompositor(cat, loader, cfg.Width, cfg.Height)
	if err != nil {
		return nil, err
	}
	o.compositor.LayerTimeout = cfg.LayerTimeout
	return o, nil
}

func (o *Orchestrator) Config() Config { return o.cfg }

func (o *Orchestrator) yielder() Yielder {
	if o.Yield == nil {
		return GoschedYielder{}
	}
	return o.Yield
}

// LiveBuffers reports pixel buffers currently held by in-flight tokens.
func (o *Orchestrator) LiveBuffers() int { return o.compositor.LiveBuffers() }

type tokenOutput struct {
	id       int
	image    []byte
	meta     []byte
	warnings []error
	err      error
}

// Run generates the collection and streams it into ar. On success ar is
// finalized and a Result returned. On any fatal error or cancellation ar is
// discarded and no Result is returned.
func (o *Orchestrator) Run(ctx context.Context, ar Archive) (res *Result, err error) {
	if ar == nil {
		return nil, invalidf("nil archive")
	}
	cfg := o.cfg
	runID := uuid.NewString()
	log := o.Log.With().Str("run", runID).Logger()
	now := o.Now
	if now == nil {
		now = time.Now
	}
	start := now()

	// A per-run copy shares the asset index and buffer pool but logs with
	// the run id.
	comp := *o.compositor
	comp.Log = log

	finalized := false
	defer func() {
		if finalized {
			return
		}
		if derr := ar.Discard(); derr != nil {
			log.Warn().Err(derr).Msg("discard archive")
		}
	}()

	assignments, err := Generate(o.catalog, cfg.Size, GenerateOptions{
		Seed:             cfg.Seed,
		MaxRetries:       cfg.MaxRetries,
		IgnoreCategories: cfg.IgnoreCategories,
		AllowDuplicates:  cfg.AllowDuplicates,
	})
	if err != nil {
		log.Error().Err(err).Int("size", cfg.Size).Msg("combination generation failed")
		return nil, err
	}
	log.Info().Int("size", cfg.Size).Int("workers", cfg.Workers).Int("batch", cfg.BatchSize).Msg("generation started")

	res = &Result{RunID: runID, Assignments: assignments}
	progress := newProgressTracker(cfg.Size, now, o.Progress)
	for from := 0; from < cfg.Size; from += cfg.BatchSize {
		if err := ctx.Err(); err != nil {
			return nil, o.cancelled(log, err, from)
		}
		to := min(from+cfg.BatchSize, cfg.Size)
		outs := o.renderBatch(ctx, &comp, assignments[from:to], from+1)
		if err := ctx.Err(); err != nil {
			return nil, o.cancelled(log, err, from)
		}
		for _, out := range outs {
			if err := o.write(log, ar, out, res); err != nil {
				return nil, err
			}
		}
		progress.advance(to)
		if err := o.yielder().Yield(ctx); err != nil {
			return nil, o.cancelled(log, err, to)
		}
	}

	if err := ar.Finalize(); err != nil {
		log.Error().Err(err).Msg("finalize archive")
		return nil, &Error{Kind: ErrArchiveWrite, Msg: "finalize", Err: err}
	}
	finalized = true
	res.Elapsed = now().Sub(start)
	log.Info().
		Int("written", res.Written).
		Int("skipped", len(res.Skipped)).
		Int("warnings", len(res.Warnings)).
		Dur("elapsed", res.Elapsed).
		Msg("generation finished")
	return res, nil
}

func (o *Orchestrator) renderBatch(ctx context.Context, comp *Compositor, batch []TraitAssignment, firstID int) []tokenOutput {
	outs := make([]tokenOutput, len(batch))
	if o.cfg.Workers <= 1 || len(batch) == 1 {
		for i, a := range batch {
			if ctx.Err() != nil {
				break
			}
			outs[i] = o.processToken(ctx, comp, firstID+i, a)
		}
		return outs
	}

	var g errgroup.Group
	g.SetLimit(o.cfg.Workers)
	for i, a := range batch {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			outs[i] = o.processToken(ctx, comp, firstID+i, a)
			return nil
		})
	}
	_ = g.Wait()
	return outs
}

// processToken renders and encodes one token. The pixel buffer never
// outlives this call.
func (o *Orchestrator) processToken(ctx context.Context, comp *Compositor, id int, a TraitAssignment) tokenOutput {
	cfg := o.cfg
	out := tokenOutput{id: id}
	meta := BuildMetadata(id, a, cfg.Collection, cfg.Format)

	policy := RenderPolicy{Exclude: cfg.ExcludeLayers, Background: o.background}
	img, warnings := comp.Render(ctx, id, a, policy)
	defer img.Release()
	img.Format, img.Quality = cfg.Format, cfg.Quality
	out.warnings = warnings

	if cfg.Silhouette {
		if black := SilhouetteInPlace(img.Pixels, cfg.SilhouetteThreshold); black == 0 {
			out.warnings = append(out.warnings, &Error{Kind: ErrDegenerateSilhouette, TokenID: id, Msg: "no visible pixels"})
		}
	} else if cfg.DominantColor {
		meta.BackgroundColor = utils.DominantHex(img.Pixels, cfg.PaletteMethod)
	}

	var buf bytes.Buffer
	if err := utils.Encode(&buf, img.Pixels, img.Format.Ext(), img.Quality); err != nil {
		out.err = &Error{Kind: ErrEncode, TokenID: id, Msg: "image", Err: err}
		return out
	}
	doc, err := MarshalMetadata(meta)
	if err != nil {
		out.err = &Error{Kind: ErrEncode, TokenID: id, Msg: "metadata", Err: err}
		return out
	}
	out.image = buf.Bytes()
	out.meta = doc
	return out
}

func (o *Orchestrator) write(log zerolog.Logger, ar Archive, out tokenOutput, res *Result) error {
	for _, w := range out.warnings {
		log.Warn().Err(w).Int("token", out.id).Msg("token warning")
	}
	res.Warnings = append(res.Warnings, out.warnings...)
	if out.err != nil {
		log.Warn().Err(out.err).Int("token", out.id).Msg("token skipped")
		res.Skipped = append(res.Skipped, out.id)
		return nil
	}
	if err := ar.Create(ImageEntryName(out.id, o.cfg.Format), out.image); err != nil {
		return &Error{Kind: ErrArchiveWrite, TokenID: out.id, Msg: "image entry", Err: err}
	}
	if err := ar.Create(MetadataEntryName(out.id), out.meta); err != nil {
		return &Error{Kind: ErrArchiveWrite, TokenID: out.id, Msg: "metadata entry", Err: err}
	}
	res.Written++
	log.Debug().Int("token", out.id).Int("bytes", len(out.image)).Msg("token written")
	return nil
}

func (o *Orchestrator) cancelled(log zerolog.Logger, cause error, done int) error {
	log.Info().Int("done", done).Int("total", o.cfg.Size).Msg("generation cancelled")
	return &Error{
		Kind: ErrCancelled,
		Msg:  fmt.Sprintf("after %d of %d tokens", done, o.cfg.Size),
		Err:  cause,
	}
}
