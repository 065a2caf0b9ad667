// Package catalog provides trait catalogs: an in-memory one, a scanner for
// layer directories and a manifest loader.
package catalog

import (
	"fmt"
	"slices"

	pfp "github.com/setanarut/pfpbuilder"
)

// Static is an immutable in-memory catalog.
type Static struct {
	order  []string
	traits map[string][]pfp.TraitDefinition
}

// New builds a catalog from the paint order and the trait definitions.
// Every category in order needs at least one trait; traits of unknown
// categories are rejected.
func New(order []string, defs []pfp.TraitDefinition) (*Static, error) {
	if len(order) == 0 {
		return nil, fmt.Errorf("%w: empty layer order", pfp.ErrInvalidCatalog)
	}
	s := &Static{
		order:  slices.Clone(order),
		traits: make(map[string][]pfp.TraitDefinition, len(order)),
	}
	for _, c := range order {
		if _, dup := s.traits[c]; dup {
			return nil, fmt.Errorf("%w: category %q listed twice", pfp.ErrInvalidCatalog, c)
		}
		s.traits[c] = nil
	}
	seen := make(map[[2]string]bool, len(defs))
	for _, d := range defs {
		if _, ok := s.traits[d.Category]; !ok {
			return nil, fmt.Errorf("%w: trait %q has unknown category %q", pfp.ErrInvalidCatalog, d.Name, d.Category)
		}
		if d.Name == "" {
			return nil, fmt.Errorf("%w: unnamed trait in %q", pfp.ErrInvalidCatalog, d.Category)
		}
		key := [2]string{d.Category, d.Name}
		if seen[key] {
			return nil, fmt.Errorf("%w: duplicate trait %q in %q", pfp.ErrInvalidCatalog, d.Name, d.Category)
		}
		seen[key] = true
		s.traits[d.Category] = append(s.traits[d.Category], d)
	}
	for _, c := range order {
		if len(s.traits[c]) == 0 {
			return nil, fmt.Errorf("%w: category %q has no traits", pfp.ErrInvalidCatalog, c)
		}
	}
	return s, nil
}

func (s *Static) ListTraits(category string) []pfp.TraitDefinition {
	return slices.Clone(s.traits[category])
}

func (s *Static) LayerOrder() []string {
	return slices.Clone(s.order)
}

