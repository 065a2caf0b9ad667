package pfpbuilder

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func keysOf(t *testing.T, as []TraitAssignment) map[string]bool {
	t.Helper()
	keys := make(map[string]bool, len(as))
	for _, a := range as {
		keys[a.Key()] = true
	}
	return keys
}

func TestGenerate_UniqueAcrossSizes(t *testing.T) {
	cat := gridCatalog(4, 5, 3) // 60 combinations
	seed := int64(42)
	for _, n := range []int{1, 10, 29, 31, 59, 60} {
		got, err := Generate(cat, n, GenerateOptions{Seed: &seed})
		require.NoError(t, err, "n=%d", n)
		require.Len(t, got, n)
		assert.Len(t, keysOf(t, got), n, "duplicates for n=%d", n)
		for _, a := range got {
			assert.Equal(t, 3, a.Len())
		}
	}
}

func TestGenerate_ExceedingSpaceFailsWithNoOutput(t *testing.T) {
	cat := gridCatalog(2, 3)
	got, err := Generate(cat, 7, GenerateOptions{})
	require.ErrorIs(t, err, ErrInsufficientCombinationSpace)
	assert.Nil(t, got)
}

func TestGenerate_SeedIsReproducible(t *testing.T) {
	cat := gridCatalog(10, 10, 10, 10)
	seed := int64(2024)
	a, err := Generate(cat, 200, GenerateOptions{Seed: &seed})
	require.NoError(t, err)
	b, err := Generate(cat, 200, GenerateOptions{Seed: &seed})
	require.NoError(t, err)
	for i := range a {
		assert.True(t, a[i].Equal(b[i]), "mismatch at %d", i)
	}

	other := int64(2025)
	c, err := Generate(cat, 200, GenerateOptions{Seed: &other})
	require.NoError(t, err)
	same := 0
	for i := range a {
		if a[i].Equal(c[i]) {
			same++
		}
	}
	assert.Less(t, same, 200)
}

func TestGenerate_ZeroWeightTraitsAreNeverPicked(t *testing.T) {
	cat := gridCatalog(6)
	cat.order = append(cat.order, "hat")
	cat.traits["hat"] = []TraitDefinition{
		{Category: "hat", Name: "crown", Weight: 5},
		{Category: "hat", Name: "cap", Weight: 1},
		{Category: "hat", Name: "beanie"},
	}
	seed := int64(1)
	got, err := Generate(cat, 12, GenerateOptions{Seed: &seed})
	require.NoError(t, err)
	for _, a := range got {
		hat, ok := a.Get("hat")
		require.True(t, ok)
		assert.NotEqual(t, "beanie", hat)
	}

	space, err := CombinationSpace(cat)
	require.NoError(t, err)
	assert.Equal(t, 12, space)
}

func TestGenerate_WeightsSkewSelection(t *testing.T) {
	cat := gridCatalog(50, 50)
	cat.order = append(cat.order, "eyes")
	cat.traits["eyes"] = []TraitDefinition{
		{Category: "eyes", Name: "common", Weight: 99},
		{Category: "eyes", Name: "laser", Weight: 1},
	}
	seed := int64(9)
	got, err := Generate(cat, 500, GenerateOptions{Seed: &seed})
	require.NoError(t, err)
	laser := 0
	for _, a := range got {
		if v, _ := a.Get("eyes"); v == "laser" {
			laser++
		}
	}
	assert.Less(t, laser, 50)
}

func TestGenerate_IgnoredCategoriesShrinkTheSpace(t *testing.T) {
	cat := gridCatalog(3, 4)
	_, err := Generate(cat, 4, GenerateOptions{IgnoreCategories: []string{"c1"}})
	require.ErrorIs(t, err, ErrInsufficientCombinationSpace)

	got, err := Generate(cat, 3, GenerateOptions{IgnoreCategories: []string{"c1"}})
	require.NoError(t, err)
	seen := map[string]bool{}
	for _, a := range got {
		v, _ := a.Get("c0")
		assert.False(t, seen[v], "c0=%s repeated", v)
		seen[v] = true
	}
}

func TestGenerate_AllowDuplicates(t *testing.T) {
	cat := gridCatalog(2)
	got, err := Generate(cat, 10, GenerateOptions{AllowDuplicates: true})
	require.NoError(t, err)
	assert.Len(t, got, 10)
}

func TestGenerate_InvalidInput(t *testing.T) {
	_, err := Generate(gridCatalog(2), 0, GenerateOptions{})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = Generate(nil, 1, GenerateOptions{})
	assert.ErrorIs(t, err, ErrInvalidCatalog)

	empty := gridCatalog(2, 0)
	_, err = Generate(empty, 1, GenerateOptions{})
	assert.ErrorIs(t, err, ErrInvalidCatalog)

	negative := gridCatalog(2)
	negative.traits["c0"][0].Weight = -1
	_, err = Generate(negative, 1, GenerateOptions{})
	assert.ErrorIs(t, err, ErrInvalidCatalog)

	dup := gridCatalog(2)
	dup.order = []string{"c0", "c0"}
	_, err = Generate(dup, 1, GenerateOptions{})
	assert.ErrorIs(t, err, ErrInvalidCatalog)
}

func TestCombinationSpace_Saturates(t *testing.T) {
	sizes := make([]int, 70)
	for i := range sizes {
		sizes[i] = 2
	}
	space, err := CombinationSpace(gridCatalog(sizes...))
	require.NoError(t, err)
	assert.Equal(t, math.MaxInt, space)
}

func TestTraitAssignment_KeyIsCanonical(t *testing.T) {
	a := NewTraitAssignment([]Selection{{"body", "ape"}, {"hat", "cap"}})
	b := NewTraitAssignment([]Selection{{"hat", "cap"}, {"body", "ape"}})
	assert.Equal(t, a.Key(), b.Key())
	assert.Equal(t, a.DNA(), b.DNA())
	assert.Len(t, a.DNA(), 64)

	// Field boundaries cannot be shifted to forge a collision.
	c := NewTraitAssignment([]Selection{{"ab", "c"}})
	d := NewTraitAssignment([]Selection{{"a", "bc"}})
	assert.NotEqual(t, c.Key(), d.Key())
}

func TestTraitAssignment_IsImmutable(t *testing.T) {
	sel := []Selection{{"body", "ape"}}
	a := NewTraitAssignment(sel)
	sel[0].Trait = "robot"
	got := a.Selections()
	got[0].Trait = "zombie"

	v, ok := a.Get("body")
	assert.True(t, ok)
	assert.Equal(t, "ape", v)
}
