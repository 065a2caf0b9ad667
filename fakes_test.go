package pfpbuilder

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"sync"
)

type fakeCatalog struct {
	order  []string
	traits map[string][]TraitDefinition
}

func (c *fakeCatalog) ListTraits(category string) []TraitDefinition {
	return c.traits[category]
}

func (c *fakeCatalog) LayerOrder() []string { return c.order }

// gridCatalog builds categories c0..cn-1 where category ci has sizes[i]
// traits named t0..; each trait's asset is "ci/tj".
func gridCatalog(sizes ...int) *fakeCatalog {
	cat := &fakeCatalog{traits: map[string][]TraitDefinition{}}
	for i, n := range sizes {
		name := fmt.Sprintf("c%d", i)
		cat.order = append(cat.order, name)
		for j := range n {
			trait := fmt.Sprintf("t%d", j)
			cat.traits[name] = append(cat.traits[name], TraitDefinition{
				Category: name,
				Name:     trait,
				Asset:    name + "/" + trait,
			})
		}
	}
	return cat
}

type fakeLoader struct {
	mu     sync.Mutex
	images map[string]image.Image
	calls  map[string]int
	block  bool
}

func newFakeLoader() *fakeLoader {
	return &fakeLoader{images: map[string]image.Image{}, calls: map[string]int{}}
}

func (l *fakeLoader) Load(ctx context.Context, asset string) image.Image {
	l.mu.Lock()
	l.calls[asset]++
	img := l.images[asset]
	block := l.block
	l.mu.Unlock()
	if block {
		<-ctx.Done()
		return nil
	}
	return img
}

// solidLoader serves an opaque, distinct solid color for every asset of cat.
func solidLoader(cat *fakeCatalog, w, h int) *fakeLoader {
	l := newFakeLoader()
	k := 0
	for _, c := range cat.order {
		for _, d := range cat.traits[c] {
			k++
			l.images[d.Asset] = solid(w, h, color.NRGBA{R: uint8(20 * k), G: uint8(255 - 10*k), B: 90, A: 255})
		}
	}
	return l
}

func solid(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

type entry struct {
	name string
	data []byte
}

type memArchive struct {
	mu          sync.Mutex
	entries     []entry
	finalized   int
	discarded   int
	failOnEntry string
	failFinal   bool
}

func (a *memArchive) Create(name string, data []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if name == a.failOnEntry {
		return errors.New("disk full")
	}
	a.entries = append(a.entries, entry{name: name, data: append([]byte(nil), data...)})
	return nil
}

func (a *memArchive) Finalize() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.failFinal {
		return errors.New("close failed")
	}
	a.finalized++
	return nil
}

func (a *memArchive) Discard() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.discarded++
	a.entries = nil
	return nil
}

func (a *memArchive) names() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, len(a.entries))
	for i, e := range a.entries {
		out[i] = e.name
	}
	return out
}

func (a *memArchive) get(name string) []byte {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, e := range a.entries {
		if e.name == name {
			return e.data
		}
	}
	return nil
}
