package pfpbuilder

import (
	"fmt"
	"hash/fnv"
	"math"
	"math/rand/v2"
	"slices"
	"strconv"
	"strings"
	"time"

	"gonum.org/v1/gonum/stat/distuv"
	"gonum.org/v1/gonum/stat/sampleuv"
)

const (
	// DefaultMaxRetries is the per-token budget of rejected duplicates
	// before generation gives up.
	DefaultMaxRetries = 1000
	// Spaces up to this size are enumerated when the request covers more
	// than half of them; rejection sampling would stall there.
	denseSpaceLimit = 1 << 20
)

type GenerateOptions struct {
	// Seed makes generation reproducible. Nil seeds from the clock.
	Seed *int64
	// MaxRetries per token, DefaultMaxRetries when <= 0.
	MaxRetries int
	// IgnoreCategories are left out of the uniqueness key: two tokens that
	// differ only in these categories count as duplicates.
	IgnoreCategories []string
	// AllowDuplicates turns deduplication off entirely.
	AllowDuplicates bool
}

type categoryPool struct {
	name    string
	traits  []TraitDefinition
	weights []float64 // nil when uniform
	dist    *distuv.Categorical
}

func (p *categoryPool) pick(rng *rand.Rand) TraitDefinition {
	if p.dist != nil {
		return p.traits[int(p.dist.Rand())]
	}
	return p.traits[rng.IntN(len(p.traits))]
}

func (p *categoryPool) weight(i int) float64 {
	if p.weights == nil {
		return 1
	}
	return p.weights[i]
}

// Generate returns n distinct trait assignments drawn from cat. It fails
// with ErrInsufficientCombinationSpace, returning nothing, when the catalog
// cannot supply n distinct assignments.
func Generate(cat TraitCatalog, n int, opts GenerateOptions) ([]TraitAssignment, error) {
	if n <= 0 {
		return nil, invalidf("collection size must be positive, got %d", n)
	}
	src := seedSource(opts.Seed)
	rng := rand.New(src)
	pools, err := buildPools(cat, src)
	if err != nil {
		return nil, err
	}
	ignore := make(map[string]bool, len(opts.IgnoreCategories))
	for _, c := range opts.IgnoreCategories {
		ignore[c] = true
	}

	if opts.AllowDuplicates {
		out := make([]TraitAssignment, n)
		for i := range out {
			out[i] = pickAssignment(pools, rng)
		}
		return out, nil
	}

	space := spaceOf(pools, ignore)
	if n > space {
		return nil, &Error{
			Kind: ErrInsufficientCombinationSpace,
			Msg:  fmt.Sprintf("requested %d, catalog supports %d", n, space),
		}
	}
	if space <= denseSpaceLimit && n > space/2 {
		return generateDense(pools, ignore, n, space, src, rng)
	}

	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	seen := make(map[string]struct{}, n)
	out := make([]TraitAssignment, 0, n)
	for len(out) < n {
		placed := false
		for range maxRetries + 1 {
			a := pickAssignment(pools, rng)
			k := canonicalKey(a.sel, ignore)
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, a)
			placed = true
			break
		}
		if !placed {
			return nil, &Error{
				Kind:    ErrInsufficientCombinationSpace,
				TokenID: len(out) + 1,
				Msg:     fmt.Sprintf("no unique combination after %d retries", maxRetries),
			}
		}
	}
	return out, nil
}

// CombinationSpace returns how many distinct assignments cat can produce,
// saturating at math.MaxInt.
func CombinationSpace(cat TraitCatalog, ignore ...string) (int, error) {
	pools, err := buildPools(cat, rand.NewPCG(1, 2))
	if err != nil {
		return 0, err
	}
	set := make(map[string]bool, len(ignore))
	for _, c := range ignore {
		set[c] = true
	}
	return spaceOf(pools, set), nil
}

func buildPools(cat TraitCatalog, src rand.Source) ([]*categoryPool, error) {
	if cat == nil {
		return nil, catalogf("nil catalog")
	}
	order := cat.LayerOrder()
	if len(order) == 0 {
		return nil, catalogf("empty layer order")
	}
	seen := make(map[string]bool, len(order))
	pools := make([]*categoryPool, 0, len(order))
	for _, name := range order {
		if seen[name] {
			return nil, catalogf("category %q listed twice in layer order", name)
		}
		seen[name] = true

		defs := cat.ListTraits(name)
		weighted := false
		for _, d := range defs {
			if d.Weight < 0 || math.IsNaN(d.Weight) || math.IsInf(d.Weight, 0) {
				return nil, catalogf("trait %q/%q has invalid weight %v", name, d.Name, d.Weight)
			}
			if d.Weight > 0 {
				weighted = true
			}
		}
		p := &categoryPool{name: name}
		for _, d := range defs {
			if weighted && d.Weight == 0 {
				continue
			}
			p.traits = append(p.traits, d)
			if weighted {
				p.weights = append(p.weights, d.Weight)
			}
		}
		if len(p.traits) == 0 {
			return nil, catalogf("category %q has no selectable traits", name)
		}
		if weighted {
			dist := distuv.NewCategorical(p.weights, src)
			p.dist = &dist
		}
		pools = append(pools, p)
	}
	return pools, nil
}

func spaceOf(pools []*categoryPool, ignore map[string]bool) int {
	space := 1
	for _, p := range pools {
		if ignore[p.name] {
			continue
		}
		k := len(p.traits)
		if space > math.MaxInt/k {
			return math.MaxInt
		}
		space *= k
	}
	return space
}

func pickAssignment(pools []*categoryPool, rng *rand.Rand) TraitAssignment {
	sel := make([]Selection, len(pools))
	for i, p := range pools {
		sel[i] = Selection{Category: p.name, Trait: p.pick(rng).Name}
	}
	return TraitAssignment{sel: sel}
}

// generateDense enumerates the whole keyed space in mixed radix and draws
// n indices without replacement, weighted by the product of trait weights.
func generateDense(pools []*categoryPool, ignore map[string]bool, n, space int, src rand.Source, rng *rand.Rand) ([]TraitAssignment, error) {
	keyed := make([]*categoryPool, 0, len(pools))
	for _, p := range pools {
		if !ignore[p.name] {
			keyed = append(keyed, p)
		}
	}

	weights := make([]float64, space)
	for idx := range space {
		w := 1.0
		rest := idx
		for _, p := range keyed {
			w *= p.weight(rest % len(p.traits))
			rest /= len(p.traits)
		}
		weights[idx] = w
	}

	sampler := sampleuv.NewWeighted(weights, src)
	out := make([]TraitAssignment, 0, n)
	for len(out) < n {
		idx, ok := sampler.Take()
		if !ok {
			return nil, &Error{
				Kind:    ErrInsufficientCombinationSpace,
				TokenID: len(out) + 1,
				Msg:     fmt.Sprintf("space of %d exhausted", space),
			}
		}
		chosen := make(map[string]string, len(keyed))
		rest := idx
		for _, p := range keyed {
			chosen[p.name] = p.traits[rest%len(p.traits)].Name
			rest /= len(p.traits)
		}
		sel := make([]Selection, len(pools))
		for i, p := range pools {
			trait, ok := chosen[p.name]
			if !ok {
				trait = p.pick(rng).Name
			}
			sel[i] = Selection{Category: p.name, Trait: trait}
		}
		out = append(out, TraitAssignment{sel: sel})
	}
	return out, nil
}

func canonicalKey(sel []Selection, ignore map[string]bool) string {
	sorted := make([]Selection, 0, len(sel))
	for _, s := range sel {
		if ignore[s.Category] {
			continue
		}
		sorted = append(sorted, s)
	}
	slices.SortFunc(sorted, func(a, b Selection) int {
		return strings.Compare(a.Category, b.Category)
	})

	var b strings.Builder
	writeField := func(s string) {
		b.WriteString(strconv.Itoa(len(s)))
		b.WriteByte(':')
		b.WriteString(s)
	}
	for _, s := range sorted {
		writeField(s.Category)
		writeField(s.Trait)
	}
	return b.String()
}

func seedSource(seed *int64) *rand.PCG {
	s := time.Now().UnixNano()
	if seed != nil {
		s = *seed
	}
	// Non-cryptographic PRNG is intentional for reproducible collections.
	// #nosec G404
	return rand.NewPCG(seedWord(s, "a"), seedWord(s, "b"))
}

func seedWord(seed int64, salt string) uint64 {
	h := fnv.New64a()
	_, _ = fmt.Fprintf(h, "%d:%s", seed, salt)
	return h.Sum64()
}
