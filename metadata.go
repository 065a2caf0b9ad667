package pfpbuilder

import (
	"encoding/json"
	"strconv"
	"strings"
)

// TokenIDTrait is the trait_type of the attribute carrying the raw token id.
const TokenIDTrait = "Token ID"

// Attribute follows the common marketplace attribute schema.
type Attribute struct {
	TraitType   string `json:"trait_type"`
	Value       any    `json:"value"`
	DisplayType string `json:"display_type,omitempty"`
}

// TokenMetadata is the JSON document stored for every token.
type TokenMetadata struct {
	Name            string      `json:"name"`
	Description     string      `json:"description"`
	Image           string      `json:"image"`
	ExternalURL     string      `json:"external_url,omitempty"`
	Attributes      []Attribute `json:"attributes"`
	Edition         int         `json:"edition"`
	DNA             string      `json:"dna,omitempty"`
	BackgroundColor string      `json:"background_color,omitempty"`
}

// BuildMetadata describes token id with assignment a. It does not depend on
// whether the token's image was rendered.
func BuildMetadata(id int, a TraitAssignment, c Collection, format Format) TokenMetadata {
	sid := strconv.Itoa(id)
	attrs := make([]Attribute, 0, a.Len()+1)
	for _, s := range a.sel {
		if s.Trait == "" || isNone(s.Trait) {
			continue
		}
		attrs = append(attrs, Attribute{TraitType: s.Category, Value: s.Trait})
	}
	attrs = append(attrs, Attribute{TraitType: TokenIDTrait, Value: id, DisplayType: "number"})

	return TokenMetadata{
		Name:        c.Name + " #" + sid,
		Description: c.Description,
		Image:       strings.TrimRight(c.MediaBaseURI, "/") + "/" + sid + "." + format.Ext(),
		ExternalURL: strings.ReplaceAll(c.ExternalURI, "{id}", sid),
		Attributes:  attrs,
		Edition:     id,
		DNA:         a.DNA(),
	}
}

// MarshalMetadata encodes m as indented JSON.
func MarshalMetadata(m TokenMetadata) ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}
