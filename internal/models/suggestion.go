// internal/models/suggestion.go
package models

import (
	"time"
)

// CatalogItem is one entry of the static food catalog.
type CatalogItem struct {
	Name     string   `json:"name"`
	Category string   `json:"category"`
	Moods    []string `json:"moods"`
	Energy   string   `json:"energy,omitempty"`
	Reason   string   `json:"reason"`
	Image    string   `json:"image"`
}

type MoodSuggestionRequest struct {
	Text  string `json:"text" validate:"required"`
	Limit int    `json:"limit,omitempty" validate:"gte=0"`
}

// StructuredSuggestion is what the model said, before any catalog lookup.
type StructuredSuggestion struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

type EnrichedSuggestion struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
	Image  string `json:"image"`
}

type MoodSuggestionResult struct {
	Moods       []string             `json:"moods"`
	Suggestions []EnrichedSuggestion `json:"suggestions"`
}

type HistoryEntry struct {
	ID          string               `json:"id"`
	Text        string               `json:"text"`
	Moods       []string             `json:"moods"`
	Suggestions []EnrichedSuggestion `json:"suggestions"`
	CreatedAt   time.Time            `json:"created_at"`
}

type Favorite struct {
	ID        string    `json:"id"`
	Name      string    `json:"name" validate:"required"`
	Mood      string    `json:"mood"`
	Reason    string    `json:"reason"`
	Image     string    `json:"image"`
	CreatedAt time.Time `json:"created_at"`
}
