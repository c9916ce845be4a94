package suggest

import (
	"strings"

	"github.com/tidwall/gjson"

	"cravemate/internal/models"
)

// Resolved is the model output after parsing and shape repair, before
// enrichment.
type Resolved struct {
	Moods       []string
	Suggestions []models.StructuredSuggestion
}

func emptyResolved() Resolved {
	return Resolved{
		Moods:       []string{},
		Suggestions: []models.StructuredSuggestion{},
	}
}

// Resolve turns raw model text into a Resolved value. It never fails.
// Text that is valid JSON is used as is and must be an object. Only text
// that does not parse falls back to the span between the first '{' and the
// last '}'. Anything else yields an empty result.
func Resolve(raw string) Resolved {
	text := raw
	if !gjson.Valid(text) {
		text = braceSpan(raw)
		if text == "" || !gjson.Valid(text) {
			return emptyResolved()
		}
	}

	obj := gjson.Parse(text)
	if !obj.IsObject() {
		return emptyResolved()
	}
	return fromObject(obj)
}

func braceSpan(raw string) string {
	start := strings.Index(raw, "{")
	if start == -1 {
		return ""
	}

	end := strings.LastIndex(raw, "}")
	if end == -1 || end <= start {
		return ""
	}

	return raw[start : end+1]
}

// fromObject reads moods and suggestions, treating anything of the wrong
// shape as absent.
func fromObject(obj gjson.Result) Resolved {
	out := emptyResolved()

	if moods := lastField(obj, "moods"); moods.IsArray() {
		for _, m := range moods.Array() {
			if m.Type == gjson.String {
				out.Moods = append(out.Moods, m.Str)
			}
		}
	}

	if suggestions := lastField(obj, "suggestions"); suggestions.IsArray() {
		for _, s := range suggestions.Array() {
			if !s.IsObject() {
				continue
			}
			name := stringField(s, "name")
			if strings.TrimSpace(name) == "" {
				continue
			}
			out.Suggestions = append(out.Suggestions, models.StructuredSuggestion{
				Name:   name,
				Reason: stringField(s, "reason"),
			})
		}
	}

	return out
}

func stringField(obj gjson.Result, key string) string {
	v := lastField(obj, key)
	if v.Type != gjson.String {
		return ""
	}
	return v.Str
}

// lastField returns the value of the last occurrence of key in obj.
// gjson's Get stops at the first one.
func lastField(obj gjson.Result, key string) gjson.Result {
	var found gjson.Result
	obj.ForEach(func(k, v gjson.Result) bool {
		if k.Str == key {
			found = v
		}
		return true
	})
	return found
}
