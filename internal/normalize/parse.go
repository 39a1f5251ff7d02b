package normalize

import (
	"encoding/json"
	"fmt"
	"strings"

	"reel-compare/internal/domain"
)

// ParseLenient turns raw model text into a JSON object. The provider is
// asked for pure JSON but that is advisory: the text may arrive wrapped
// in code fences or surrounded by prose, so we strip fences, try a
// direct parse, then fall back to the outermost brace pair.
func ParseLenient(raw string) (map[string]any, error) {
	s := stripFences(strings.TrimSpace(raw))

	var obj map[string]any
	if err := json.Unmarshal([]byte(s), &obj); err == nil {
		return obj, nil
	}

	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start >= 0 && end > start {
		if err := json.Unmarshal([]byte(s[start:end+1]), &obj); err == nil {
			return obj, nil
		}
	}
	return nil, fmt.Errorf("no parseable object in %d bytes of model text: %w", len(raw), domain.ErrNonJSON)
}

func stripFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	// Drop the opening fence line ("```" or "```json").
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	} else {
		s = strings.TrimPrefix(s, "```")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
