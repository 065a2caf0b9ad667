package pfpbuilder

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildMetadata(t *testing.T) {
	c := Collection{
		Name:         "Foo",
		Description:  "Layered foos.",
		MediaBaseURI: "ipfs://base/",
		ExternalURI:  "https://foo.example/token/{id}",
	}
	a := assignment("background", "sky", "hat", "none", "eyes", "laser")

	m := BuildMetadata(7, a, c, FormatPNG)
	assert.Equal(t, "Foo #7", m.Name)
	assert.Equal(t, "Layered foos.", m.Description)
	assert.Equal(t, "ipfs://base/7.png", m.Image)
	assert.Equal(t, "https://foo.example/token/7", m.ExternalURL)
	assert.Equal(t, 7, m.Edition)
	assert.Equal(t, a.DNA(), m.DNA)
	assert.Equal(t, []Attribute{
		{TraitType: "background", Value: "sky"},
		{TraitType: "eyes", Value: "laser"},
		{TraitType: TokenIDTrait, Value: 7, DisplayType: "number"},
	}, m.Attributes)

	jpg := BuildMetadata(12, a, Collection{Name: "Foo", MediaBaseURI: "https://cdn"}, FormatJPEG)
	assert.Equal(t, "https://cdn/12.jpg", jpg.Image)
	assert.Empty(t, jpg.ExternalURL)
}

func TestBuildMetadata_IsIndependentOfRender(t *testing.T) {
	a := assignment("body", "ape")
	c := Collection{Name: "Foo", MediaBaseURI: "b"}
	assert.Equal(t, BuildMetadata(3, a, c, FormatPNG), BuildMetadata(3, a, c, FormatPNG))
}

func TestMarshalMetadata_Schema(t *testing.T) {
	m := BuildMetadata(1, assignment("body", "ape"), Collection{Name: "Foo", MediaBaseURI: "b"}, FormatPNG)
	doc, err := MarshalMetadata(m)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(doc, &raw))
	assert.Equal(t, "Foo #1", raw["name"])
	assert.Equal(t, "b/1.png", raw["image"])
	assert.NotContains(t, raw, "external_url")
	assert.NotContains(t, raw, "background_color")

	attrs, ok := raw["attributes"].([]any)
	require.True(t, ok)
	require.Len(t, attrs, 2)
	first := attrs[0].(map[string]any)
	assert.Equal(t, "body", first["trait_type"])
	assert.Equal(t, "ape", first["value"])
	assert.NotContains(t, first, "display_type")
	last := attrs[1].(map[string]any)
	assert.Equal(t, float64(1), last["value"])
	assert.Equal(t, "number", last["display_type"])
}
