package pfpbuilder

import (
	"image"
	"sync"
	"sync/atomic"
)

// pixelPool recycles canvas buffers of one resolution so a run holds at
// most a batch worth of pixels at a time.
type pixelPool struct {
	w, h int
	pool sync.Pool
	live atomic.Int64
}

func newPixelPool(w, h int) *pixelPool {
	p := &pixelPool{w: w, h: h}
	p.pool.New = func() any {
		return image.NewRGBA(image.Rect(0, 0, w, h))
	}
	return p
}

func (p *pixelPool) get() *image.RGBA {
	p.live.Add(1)
	img := p.pool.Get().(*image.RGBA)
	clear(img.Pix)
	return img
}

func (p *pixelPool) put(img *image.RGBA) {
	if img == nil {
		return
	}
	p.live.Add(-1)
	if img.Rect.Dx() == p.w && img.Rect.Dy() == p.h {
		p.pool.Put(img)
	}
}

// RenderedImage is one token's composited bitmap. It lives only for the
// token's processing step; Release hands the buffer back.
type RenderedImage struct {
	TokenID int
	Pixels  *image.RGBA
	Format  Format
	Quality int

	release func(*image.RGBA)
}

// Release returns the pixel buffer. It is safe to call more than once.
func (r *RenderedImage) Release() {
	if r == nil || r.Pixels == nil {
		return
	}
	if r.release != nil {
		r.release(r.Pixels)
	}
	r.Pixels = nil
}
