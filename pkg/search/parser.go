package search

import (
	"strings"

	"codeassist-be/internal/entity"
)

// ParsedQuery is a raw query split into metadata filters and the
// remaining free text.
type ParsedQuery struct {
	Filters map[string]string
	Text    string
}

// Inline filter prefixes and the metadata keys they narrow on.
var filterPrefixes = map[string]string{
	"path:":   entity.MetaPath,
	"lang:":   entity.MetaLanguage,
	"type:":   entity.MetaType,
	"symbol:": entity.MetaSymbol,
}

// ParseQuery extracts inline filter terms from a raw query.
// Supported: path:<term>, lang:<term>, type:<term>, symbol:<term>.
// Everything else stays in the free-text query.
func ParseQuery(raw string) ParsedQuery {
	parsed := ParsedQuery{Filters: make(map[string]string)}
	var textParts []string

	for _, part := range strings.Fields(raw) {
		lower := strings.ToLower(part)
		matched := false
		for prefix, key := range filterPrefixes {
			if strings.HasPrefix(lower, prefix) {
				value := part[len(prefix):]
				if value != "" {
					parsed.Filters[key] = value
				}
				matched = true
				break
			}
		}
		if !matched {
			textParts = append(textParts, part)
		}
	}

	parsed.Text = strings.Join(textParts, " ")
	return parsed
}
