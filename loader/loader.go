// Package loader resolves trait asset references to decoded bitmaps.
//
// A Cache is created by the caller, shared by every render of a run and
// dropped (or Purged) when the caller is done with it. Entries are written
// once and never modified, so concurrent Loads are safe.
package loader

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io/fs"
	"sync"
	"time"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/rs/zerolog"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/singleflight"
)

// DefaultFetchTimeout bounds a single fetch+decode.
const DefaultFetchTimeout = 30 * time.Second

// Cache decodes assets from a Source and keeps them for the cache's
// lifetime. Missing assets are remembered as such.
type Cache struct {
	src          Source
	log          zerolog.Logger
	fetchTimeout time.Duration

	mu      sync.RWMutex
	entries map[string]image.Image
	group   singleflight.Group
}

type Option func(*Cache)

func WithLogger(l zerolog.Logger) Option {
	return func(c *Cache) { c.log = l }
}

func WithFetchTimeout(d time.Duration) Option {
	return func(c *Cache) { c.fetchTimeout = d }
}

func New(src Source, opts ...Option) *Cache {
	c := &Cache{
		src:          src,
		log:          zerolog.Nop(),
		fetchTimeout: DefaultFetchTimeout,
		entries:      make(map[string]image.Image),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Load returns the decoded asset or nil when it is missing, undecodable or
// ctx ends first. Concurrent loads of one asset share a single fetch.
func (c *Cache) Load(ctx context.Context, asset string) image.Image {
	if img, ok := c.lookup(asset); ok {
		return img
	}
	ch := c.group.DoChan(asset, func() (any, error) {
		if img, ok := c.lookup(asset); ok {
			return img, nil
		}
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.fetchTimeout)
		defer cancel()
		return c.fetch(fctx, asset)
	})
	select {
	case r := <-ch:
		if r.Err != nil {
			c.log.Warn().Err(r.Err).Str("asset", asset).Msg("asset load failed")
			return nil
		}
		img, _ := r.Val.(image.Image)
		return img
	case <-ctx.Done():
		c.log.Warn().Err(ctx.Err()).Str("asset", asset).Msg("asset load abandoned")
		return nil
	}
}

func (c *Cache) lookup(asset string) (image.Image, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	img, ok := c.entries[asset]
	return img, ok
}

func (c *Cache) fetch(ctx context.Context, asset string) (image.Image, error) {
	rc, err := c.src.Open(ctx, asset)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			c.store(asset, nil)
		}
		return nil, fmt.Errorf("open %s: %w", asset, err)
	}
	defer rc.Close()
	img, _, err := image.Decode(rc)
	if err != nil {
		c.store(asset, nil)
		return nil, fmt.Errorf("decode %s: %w", asset, err)
	}
	c.store(asset, img)
	return img, nil
}

func (c *Cache) store(asset string, img image.Image) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[asset]; !ok {
		c.entries[asset] = img
	}
}

// Len returns the number of cached entries, missing assets included.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Purge drops every entry.
func (c *Cache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]image.Image)
}
