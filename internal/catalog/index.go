// Package catalog holds the read-only food catalog that suggestions are
// drawn from and enriched against.
package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"cravemate/internal/models"
)

var ErrCatalogLoad = errors.New("catalog load failed")

// Index is an immutable, name-keyed view of the catalog. It is safe for
// concurrent use once constructed.
type Index struct {
	items  []models.CatalogItem
	byName map[string]int
}

// New builds an index from items. Items with a blank name are skipped and
// the first item wins when two names differ only by case.
func New(items []models.CatalogItem) *Index {
	idx := &Index{
		items:  make([]models.CatalogItem, 0, len(items)),
		byName: make(map[string]int, len(items)),
	}

	for _, item := range items {
		key := strings.ToLower(strings.TrimSpace(item.Name))
		if key == "" {
			continue
		}
		if _, exists := idx.byName[key]; exists {
			continue
		}
		if item.Moods == nil {
			item.Moods = []string{}
		}
		idx.byName[key] = len(idx.items)
		idx.items = append(idx.items, item)
	}

	return idx
}

// LoadFile reads a JSON array of catalog items from path.
func LoadFile(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCatalogLoad, err)
	}

	var items []models.CatalogItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("%w: failed to parse %s: %v", ErrCatalogLoad, path, err)
	}

	return New(items), nil
}

// Load is LoadFile for process startup: a broken catalog is logged and
// replaced with an empty one so the server can still come up.
func Load(path string, logger zerolog.Logger) *Index {
	idx, err := LoadFile(path)
	if err != nil {
		logger.Warn().Err(err).Str("path", path).Msg("Using empty catalog")
		return New(nil)
	}

	logger.Info().Int("items", idx.Len()).Str("path", path).Msg("Loaded catalog")
	return idx
}

// FindByName does a case-insensitive exact match. No fuzzy matching and
// no trimming: "Cake " does not match "Cake".
func (idx *Index) FindByName(name string) (models.CatalogItem, bool) {
	i, ok := idx.byName[strings.ToLower(name)]
	if !ok {
		return models.CatalogItem{}, false
	}
	return idx.items[i], true
}

// Items returns a copy of the catalog in file order.
func (idx *Index) Items() []models.CatalogItem {
	out := make([]models.CatalogItem, len(idx.items))
	copy(out, idx.items)
	return out
}

func (idx *Index) ByCategory(category string) []models.CatalogItem {
	want := normalize(category)
	var out []models.CatalogItem
	for _, item := range idx.items {
		if normalize(item.Category) == want {
			out = append(out, item)
		}
	}
	return out
}

// ByMood returns the items tagged with mood, in file order.
func (idx *Index) ByMood(mood string) []models.CatalogItem {
	want := normalize(mood)
	var out []models.CatalogItem
	for _, item := range idx.items {
		for _, m := range item.Moods {
			if normalize(m) == want {
				out = append(out, item)
				break
			}
		}
	}
	return out
}

func (idx *Index) Len() int {
	return len(idx.items)
}

// normalize folds category and mood tags for comparison.
func normalize(tag string) string {
	return strings.ToLower(strings.TrimSpace(tag))
}
