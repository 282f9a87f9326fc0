package templating

import (
	"encoding/json"
	"strings"
)

// Placeholder is a single {{ name }} token found in template text.
// Names are case-sensitive with surrounding whitespace trimmed.
type Placeholder struct {
	Name      string
	FullMatch string
}

// ExtractFunc extracts the distinct placeholder names referenced in a piece
// of serialized template text. The default is ExtractNames; callers may
// inject an alternative grammar.
type ExtractFunc func(text string) []string

// FindPlaceholders scans text for {{ ... }} tokens and returns them in
// order of appearance. Unclosed markers are not placeholders and are ignored.
func FindPlaceholders(text string) []Placeholder {
	var found []Placeholder

	i := 0
	for i < len(text) {
		idx := strings.Index(text[i:], "{{")
		if idx == -1 {
			break
		}
		start := i + idx + 2

		end := strings.Index(text[start:], "}}")
		if end == -1 {
			break
		}
		end += start

		name := strings.TrimSpace(text[start:end])
		if name != "" {
			found = append(found, Placeholder{
				Name:      name,
				FullMatch: text[i+idx : end+2],
			})
		}

		i = end + 2
	}

	return found
}

// ExtractNames returns the distinct placeholder names in text, in order of
// first appearance.
func ExtractNames(text string) []string {
	seen := make(map[string]struct{})
	var names []string
	for _, p := range FindPlaceholders(text) {
		if _, ok := seen[p.Name]; ok {
			continue
		}
		seen[p.Name] = struct{}{}
		names = append(names, p.Name)
	}
	return names
}

// SerializeValue renders a nested template value (maps, lists, scalars) as
// JSON text so that placeholders at any nesting depth are visible to the
// extractor. Unserializable values yield "".
func SerializeValue(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}
