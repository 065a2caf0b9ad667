// Package rarity scores a generated collection by how rare each token's
// traits are within it.
package rarity

import (
	"slices"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	pfp "github.com/setanarut/pfpbuilder"
)

// TraitCount is how often one trait occurs in the collection.
type TraitCount struct {
	Category  string  `json:"category"`
	Trait     string  `json:"trait"`
	Count     int     `json:"count"`
	Frequency float64 `json:"frequency"`
}

// TokenScore is a token's statistical rarity: the sum over its traits of
// the inverse trait frequency. Rank 1 is the rarest token.
type TokenScore struct {
	TokenID int     `json:"token_id"`
	Score   float64 `json:"score"`
	Rank    int     `json:"rank"`
}

type Report struct {
	Size   int          `json:"size"`
	Traits []TraitCount `json:"traits"`
	Tokens []TokenScore `json:"tokens"`
	Mean   float64      `json:"mean_score"`
	StdDev float64      `json:"stddev_score"`
}

// Compute builds the report for assignments, where assignments[i] is token
// i+1. Traits named "none" count like any other trait.
func Compute(assignments []pfp.TraitAssignment) Report {
	r := Report{Size: len(assignments)}
	if len(assignments) == 0 {
		return r
	}

	counts := make(map[[2]string]int)
	for _, a := range assignments {
		for _, s := range a.Selections() {
			counts[[2]string{s.Category, s.Trait}]++
		}
	}
	n := float64(len(assignments))
	for k, c := range counts {
		r.Traits = append(r.Traits, TraitCount{
			Category:  k[0],
			Trait:     k[1],
			Count:     c,
			Frequency: float64(c) / n,
		})
	}
	slices.SortFunc(r.Traits, func(a, b TraitCount) int {
		if c := strings.Compare(a.Category, b.Category); c != 0 {
			return c
		}
		if a.Count != b.Count {
			return a.Count - b.Count
		}
		return strings.Compare(a.Trait, b.Trait)
	})

	scores := make([]float64, len(assignments))
	for i, a := range assignments {
		sel := a.Selections()
		inv := make([]float64, len(sel))
		for j, s := range sel {
			inv[j] = n / float64(counts[[2]string{s.Category, s.Trait}])
		}
		scores[i] = floats.Sum(inv)
		r.Tokens = append(r.Tokens, TokenScore{TokenID: i + 1, Score: scores[i]})
	}
	r.Mean, r.StdDev = stat.MeanStdDev(scores, nil)
	if len(scores) < 2 {
		// The sample deviation of a single score is NaN, which JSON rejects.
		r.StdDev = 0
	}

	ranked := slices.Clone(r.Tokens)
	slices.SortStableFunc(ranked, func(a, b TokenScore) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		}
		return a.TokenID - b.TokenID
	})
	for i, t := range ranked {
		r.Tokens[t.TokenID-1].Rank = i + 1
	}
	return r
}
