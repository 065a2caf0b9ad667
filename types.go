package pfpbuilder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"image"
	"strings"
)

// NoneTrait marks a category that carries no layer for a token.
const NoneTrait = "none"

// TraitDefinition is one visual option within a category.
type TraitDefinition struct {
	Category string
	Name     string
	// Asset is the reference handed to the ImageLoader.
	Asset string
	// Weight is the relative rarity weight. Zero means unset; when every
	// trait of a category is unset the category is sampled uniformly.
	Weight float64
}

// IsNone reports whether the trait stands for "no layer".
func (d TraitDefinition) IsNone() bool {
	return isNone(d.Name)
}

func isNone(name string) bool {
	return strings.EqualFold(strings.TrimSpace(name), NoneTrait)
}

// TraitCatalog supplies trait options per category and the back-to-front
// paint order of the categories.
type TraitCatalog interface {
	ListTraits(category string) []TraitDefinition
	LayerOrder() []string
}

// ImageLoader resolves an asset reference to a decoded bitmap. A missing or
// undecodable asset yields nil; implementations never panic on it.
type ImageLoader interface {
	Load(ctx context.Context, asset string) image.Image
}

// Selection is the trait chosen for one category.
type Selection struct {
	Category string
	Trait    string
}

// TraitAssignment maps each category to its selected trait for one token.
// The zero value is empty; values are immutable once created.
type TraitAssignment struct {
	sel []Selection
}

// NewTraitAssignment copies sel into a new assignment. Order is kept as
// given and is expected to follow the catalog's layer order.
func NewTraitAssignment(sel []Selection) TraitAssignment {
	cp := make([]Selection, len(sel))
	copy(cp, sel)
	return TraitAssignment{sel: cp}
}

// Get returns the trait selected for category.
func (a TraitAssignment) Get(category string) (string, bool) {
	for _, s := range a.sel {
		if s.Category == category {
			return s.Trait, true
		}
	}
	return "", false
}

// Selections returns a copy of the ordered selections.
func (a TraitAssignment) Selections() []Selection {
	cp := make([]Selection, len(a.sel))
	copy(cp, a.sel)
	return cp
}

func (a TraitAssignment) Len() int { return len(a.sel) }

// Equal reports whether both assignments select the same traits.
func (a TraitAssignment) Equal(b TraitAssignment) bool {
	return a.Key() == b.Key()
}

// Key is the canonical form of the assignment: selections sorted by
// category, each field length-prefixed so no two different assignments
// share a key.
func (a TraitAssignment) Key() string {
	return canonicalKey(a.sel, nil)
}

// DNA is the hex sha256 of Key.
func (a TraitAssignment) DNA() string {
	sum := sha256.Sum256([]byte(a.Key()))
	return hex.EncodeToString(sum[:])
}

// Collection holds the collection-level metadata configuration.
type Collection struct {
	Name         string `mapstructure:"name"`
	Description  string `mapstructure:"description"`
	MediaBaseURI string `mapstructure:"media_base_uri"`
	// ExternalURI may contain "{id}", replaced by the token id.
	ExternalURI string `mapstructure:"external_uri"`
}

// Format is the encoding of rendered images.
type Format string

const (
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
)

// Ext returns the file extension used in archive entries and image URIs.
func (f Format) Ext() string {
	switch f {
	case FormatJPEG:
		return "jpg"
	default:
		return "png"
	}
}

// ParseFormat accepts png, jpg and jpeg in any case.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "png":
		return FormatPNG, nil
	case "jpg", "jpeg":
		return FormatJPEG, nil
	}
	return "", invalidf("unsupported output format %q", s)
}
