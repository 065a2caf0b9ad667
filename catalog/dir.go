package catalog

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	pfp "github.com/setanarut/pfpbuilder"
)

var assetExts = []string{".png", ".jpg", ".jpeg", ".gif", ".webp"}

// LoadDir scans a layer directory: one sub-directory per category, one
// image per trait. A file named "Red Hoodie#20.png" is trait "Red Hoodie"
// with weight 20. Directories may carry a numeric paint-order prefix
// ("01_background", "02-body"); the prefix is stripped from the category
// name. When order is empty the categories are painted in prefix order,
// then by name.
//
// Asset references are slash-separated paths relative to root, so the same
// root can back a loader.DirSource.
func LoadDir(root string, order []string) (*Static, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("read layer dir: %w", err)
	}

	type layerDir struct {
		dir      string
		category string
		rank     int
	}
	var dirs []layerDir
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		category, rank := splitOrderPrefix(e.Name())
		dirs = append(dirs, layerDir{dir: e.Name(), category: category, rank: rank})
	}
	slices.SortFunc(dirs, func(a, b layerDir) int {
		if a.rank != b.rank {
			return a.rank - b.rank
		}
		return strings.Compare(a.category, b.category)
	})

	byCategory := make(map[string]string, len(dirs))
	var scanned []string
	for _, d := range dirs {
		if _, dup := byCategory[d.category]; dup {
			return nil, fmt.Errorf("%w: category %q found twice in %s", pfp.ErrInvalidCatalog, d.category, root)
		}
		byCategory[d.category] = d.dir
		scanned = append(scanned, d.category)
	}
	if len(order) == 0 {
		order = scanned
	}

	var defs []pfp.TraitDefinition
	for _, category := range order {
		dir, ok := byCategory[category]
		if !ok {
			return nil, fmt.Errorf("%w: no directory for category %q", pfp.ErrInvalidCatalog, category)
		}
		files, err := os.ReadDir(filepath.Join(root, dir))
		if err != nil {
			return nil, fmt.Errorf("read category %q: %w", category, err)
		}
		for _, f := range files {
			if f.IsDir() || !isAsset(f.Name()) {
				continue
			}
			name, weight, err := parseTraitFile(f.Name())
			if err != nil {
				return nil, fmt.Errorf("%w: %s/%s: %v", pfp.ErrInvalidCatalog, dir, f.Name(), err)
			}
			defs = append(defs, pfp.TraitDefinition{
				Category: category,
				Name:     name,
				Asset:    path.Join(dir, f.Name()),
				Weight:   weight,
			})
		}
	}
	return New(order, defs)
}

func isAsset(name string) bool {
	return slices.Contains(assetExts, strings.ToLower(filepath.Ext(name)))
}

func splitOrderPrefix(dir string) (string, int) {
	i := 0
	for i < len(dir) && dir[i] >= '0' && dir[i] <= '9' {
		i++
	}
	if i == 0 || i == len(dir) || (dir[i] != '_' && dir[i] != '-') {
		return dir, 1 << 30
	}
	rank, _ := strconv.Atoi(dir[:i])
	return dir[i+1:], rank
}

func parseTraitFile(file string) (string, float64, error) {
	base := strings.TrimSuffix(file, filepath.Ext(file))
	name, raw, found := strings.Cut(base, "#")
	name = strings.TrimSpace(name)
	if name == "" {
		return "", 0, fmt.Errorf("empty trait name")
	}
	if !found {
		return name, 0, nil
	}
	weight, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || weight < 0 {
		return "", 0, fmt.Errorf("bad weight %q", raw)
	}
	return name, weight, nil
}
