package pfpbuilder

import (
	"context"
	"image"
	"image/color"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/image/draw"
)

// Canvas is the drawing surface used by Composite.
type Canvas interface {
	// PaintLayer composites layer over the current content, stretched to
	// the full canvas.
	PaintLayer(layer image.Image)
	Pixels() *image.RGBA
}

// RGBACanvas paints onto an *image.RGBA.
type RGBACanvas struct {
	dst *image.RGBA
	// Scaler resizes layers whose size differs from the canvas.
	Scaler draw.Scaler
}

func NewRGBACanvas(dst *image.RGBA) *RGBACanvas {
	return &RGBACanvas{dst: dst, Scaler: draw.CatmullRom}
}

// Fill replaces the whole canvas with an opaque colour.
func (c *RGBACanvas) Fill(col color.Color) {
	draw.Draw(c.dst, c.dst.Bounds(), image.NewUniform(col), image.Point{}, draw.Src)
}

func (c *RGBACanvas) PaintLayer(layer image.Image) {
	r := c.dst.Bounds()
	b := layer.Bounds()
	if b.Dx() == r.Dx() && b.Dy() == r.Dy() {
		draw.Draw(c.dst, r, layer, b.Min, draw.Over)
		return
	}
	c.Scaler.Scale(c.dst, r, layer, b, draw.Over, nil)
}

func (c *RGBACanvas) Pixels() *image.RGBA { return c.dst }

// Composite paints layers back to front. Nil layers are skipped.
func Composite(canvas Canvas, layers []image.Image) *image.RGBA {
	for _, l := range layers {
		if l == nil {
			continue
		}
		canvas.PaintLayer(l)
	}
	return canvas.Pixels()
}

// RenderPolicy adjusts a single Render call.
type RenderPolicy struct {
	// Exclude lists categories that are not painted (e.g. backgrounds for
	// silhouette renders).
	Exclude []string
	// Background is painted under the first layer. Nil keeps the canvas
	// transparent.
	Background color.Color
}

func (p RenderPolicy) excluded(category string) bool {
	for _, c := range p.Exclude {
		if c == category {
			return true
		}
	}
	return false
}

// Compositor renders trait assignments at a fixed resolution.
type Compositor struct {
	Loader ImageLoader
	// LayerTimeout bounds each layer load; zero waits on ctx only.
	LayerTimeout time.Duration
	Log          zerolog.Logger

	order  []string
	assets map[string]map[string]string
	pool   *pixelPool
}

// NewCompositor indexes the catalog's assets. The catalog is read once;
// the index is never written afterwards, so Render is safe for concurrent
// use.
func NewCompositor(cat TraitCatalog, loader ImageLoader, width, height int) (*Compositor, error) {
	if cat == nil {
		return nil, catalogf("nil catalog")
	}
	if loader == nil {
		return nil, invalidf("nil image loader")
	}
	if width <= 0 || height <= 0 {
		return nil, invalidf("invalid resolution %dx%d", width, height)
	}
	order := cat.LayerOrder()
	assets := make(map[string]map[string]string, len(order))
	for _, category := range order {
		m := make(map[string]string)
		for _, d := range cat.ListTraits(category) {
			m[d.Name] = d.Asset
		}
		assets[category] = m
	}
	return &Compositor{
		Loader: loader,
		Log:    zerolog.Nop(),
		order:  order,
		assets: assets,
		pool:   newPixelPool(width, height),
	}, nil
}

// Render paints a in layer order. Layers that cannot be loaded are skipped
// and reported as ErrLayerLoadFailure warnings; the image is still returned.
func (c *Compositor) Render(ctx context.Context, tokenID int, a TraitAssignment, policy RenderPolicy) (*RenderedImage, []error) {
	var warnings []error
	layers := make([]image.Image, 0, len(c.order))
	for _, category := range c.order {
		if policy.excluded(category) {
			continue
		}
		trait, ok := a.Get(category)
		if !ok || isNone(trait) {
			continue
		}
		asset, ok := c.assets[category][trait]
		if !ok {
			warnings = append(warnings, c.layerFailure(tokenID, category, "unknown trait "+trait))
			continue
		}
		img := c.loadLayer(ctx, asset)
		if img == nil {
			warnings = append(warnings, c.layerFailure(tokenID, category, asset))
			continue
		}
		layers = append(layers, img)
	}

	canvas := NewRGBACanvas(c.pool.get())
	if policy.Background != nil {
		canvas.Fill(policy.Background)
	}
	return &RenderedImage{
		TokenID: tokenID,
		Pixels:  Composite(canvas, layers),
		release: c.pool.put,
	}, warnings
}

// LiveBuffers reports how many pixel buffers are handed out and not yet
// released.
func (c *Compositor) LiveBuffers() int {
	return int(c.pool.live.Load())
}

func (c *Compositor) loadLayer(ctx context.Context, asset string) image.Image {
	if c.LayerTimeout <= 0 {
		return c.Loader.Load(ctx, asset)
	}
	lctx, cancel := context.WithTimeout(ctx, c.LayerTimeout)
	defer cancel()
	done := make(chan image.Image, 1)
	go func() { done <- c.Loader.Load(lctx, asset) }()
	select {
	case img := <-done:
		return img
	case <-lctx.Done():
		return nil
	}
}

func (c *Compositor) layerFailure(tokenID int, category, msg string) error {
	c.Log.Warn().
		Int("token", tokenID).
		Str("category", category).
		Str("detail", msg).
		Msg("layer skipped")
	return &Error{Kind: ErrLayerLoadFailure, TokenID: tokenID, Category: category, Msg: msg}
}
