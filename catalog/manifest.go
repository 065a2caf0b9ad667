package catalog

import (
	"fmt"

	"github.com/spf13/viper"

	pfp "github.com/setanarut/pfpbuilder"
)

// Manifest is the declarative form of a catalog as found in config files:
//
//	layer_order: [background, body, eyes]
//	traits:
//	  - {category: body, name: Zombie, asset: body/zombie.png, weight: 5}
type Manifest struct {
	LayerOrder []string     `mapstructure:"layer_order"`
	Traits     []TraitEntry `mapstructure:"traits"`
}

type TraitEntry struct {
	Category string  `mapstructure:"category"`
	Name     string  `mapstructure:"name"`
	Asset    string  `mapstructure:"asset"`
	Weight   float64 `mapstructure:"weight"`
}

// FromManifest builds a Static catalog from m.
func FromManifest(m Manifest) (*Static, error) {
	defs := make([]pfp.TraitDefinition, 0, len(m.Traits))
	for _, t := range m.Traits {
		defs = append(defs, pfp.TraitDefinition{
			Category: t.Category,
			Name:     t.Name,
			Asset:    t.Asset,
			Weight:   t.Weight,
		})
	}
	return New(m.LayerOrder, defs)
}

// LoadManifest reads a yaml, json or toml manifest file.
func LoadManifest(file string) (*Static, error) {
	v := viper.New()
	v.SetConfigFile(file)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := v.Unmarshal(&m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	return FromManifest(m)
}
