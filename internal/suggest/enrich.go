package suggest

import (
	"cravemate/internal/models"
)

// CatalogLookup is the part of the catalog index enrichment needs.
type CatalogLookup interface {
	FindByName(name string) (models.CatalogItem, bool)
}

// Enrich fills reason and image from the catalog. Suggestions the catalog
// does not know are kept with an empty image; nothing is filtered out.
func Enrich(suggestions []models.StructuredSuggestion, catalog CatalogLookup) []models.EnrichedSuggestion {
	out := make([]models.EnrichedSuggestion, 0, len(suggestions))
	for _, s := range suggestions {
		found, ok := catalog.FindByName(s.Name)

		reason := s.Reason
		if reason == "" && ok {
			reason = found.Reason
		}

		image := ""
		if ok {
			image = found.Image
		}

		out = append(out, models.EnrichedSuggestion{
			Name:   s.Name,
			Reason: reason,
			Image:  image,
		})
	}
	return out
}
