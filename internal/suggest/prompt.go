package suggest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"cravemate/internal/models"
)

// Prompt is the instruction/data pair sent to the completion client.
type Prompt struct {
	System string
	User   string
}

// promptItem is the reduced catalog entry shown to the model. Image and
// category are left out to keep the request small; images are attached
// again from the catalog after the model answers.
type promptItem struct {
	Name   string   `json:"name"`
	Moods  []string `json:"moods"`
	Reason string   `json:"reason"`
}

const systemPromptTemplate = `
You analyze a user's mood description and recommend desserts
ONLY from the provided list.

Rules:
- Respond with JSON ONLY
- No markdown
- No explanation text
- Max %d suggestions

JSON format:
{
  "moods": ["happy", "sad"],
  "suggestions": [
    { "name": "Dessert Name", "reason": "Short explanation" }
  ]
}
`

const userPromptTemplate = `
User mood description:
"%s"

Available desserts:
%s
`

var quoteEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// BuildPrompt assembles the system and user prompts. The output only depends
// on its arguments.
func BuildPrompt(items []models.CatalogItem, text string, limit int) Prompt {
	return Prompt{
		System: fmt.Sprintf(systemPromptTemplate, limit),
		User:   fmt.Sprintf(userPromptTemplate, quoteEscaper.Replace(text), compactCatalog(items)),
	}
}

func compactCatalog(items []models.CatalogItem) string {
	compact := make([]promptItem, 0, len(items))
	for _, item := range items {
		moods := item.Moods
		if moods == nil {
			moods = []string{}
		}
		compact = append(compact, promptItem{
			Name:   item.Name,
			Moods:  moods,
			Reason: item.Reason,
		})
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	// Encoding a slice of plain structs cannot fail.
	_ = enc.Encode(compact)
	return strings.TrimSuffix(buf.String(), "\n")
}
