package normalize

import (
	"fmt"
	"math"
	"strings"

	"reel-compare/internal/config"
	"reel-compare/internal/domain/model"
)

// Violation is one structural problem in the model's output.
type Violation struct {
	Path    string
	Message string
}

// Violations collects every problem found, not just the first, so error
// reports can be precise.
type Violations []Violation

func (v Violations) Error() string {
	if len(v) == 0 {
		return "no violations"
	}
	parts := make([]string, 0, len(v))
	for i, viol := range v {
		if i == 4 {
			parts = append(parts, fmt.Sprintf("... and %d more", len(v)-i))
			break
		}
		parts = append(parts, viol.Path+": "+viol.Message)
	}
	return strings.Join(parts, "; ")
}

// Schema is the structural contract for the model's snake_case output.
// Timeline cap and severity vocabulary vary per prompt variant, so they
// are configuration rather than constants.
type Schema struct {
	TimelineMax int
	Severities  []string
	Grades      []string
}

func SchemaFor(variant config.VariantConfig) Schema {
	return Schema{
		TimelineMax: variant.TimelineMax,
		Severities:  variant.Severities,
		Grades:      []string{"S", "A", "B", "C", "D"},
	}
}

// Validate checks required keys, value types, enum membership and array
// bounds, returning the full violation set.
func (s Schema) Validate(obj map[string]any) Violations {
	var v Violations

	if _, ok := asString(obj["summary"]); !ok {
		v = append(v, Violation{"summary", "required string"})
	}

	pv, ok := obj["per_video"].(map[string]any)
	if !ok {
		v = append(v, Violation{"per_video", "required object"})
	} else {
		v = append(v, s.validateVerdict("per_video.a", pv["a"])...)
		v = append(v, s.validateVerdict("per_video.b", pv["b"])...)
	}

	actions, ok := asStringSlice(obj["actions"])
	if !ok {
		v = append(v, Violation{"actions", "required array of strings"})
	} else if len(actions) > model.ActionCount {
		v = append(v, Violation{"actions", fmt.Sprintf("at most %d entries, got %d", model.ActionCount, len(actions))})
	}

	if raw, present := obj["diff"]; present {
		entries, ok := raw.([]any)
		if !ok {
			v = append(v, Violation{"diff", "must be an array"})
		} else {
			for i, e := range entries {
				v = append(v, s.validateDiffEntry(fmt.Sprintf("diff[%d]", i), e)...)
			}
		}
	}

	if raw, present := obj["timeline"]; present {
		entries, ok := raw.([]any)
		if !ok {
			v = append(v, Violation{"timeline", "must be an array"})
		} else {
			if len(entries) > s.TimelineMax {
				v = append(v, Violation{"timeline", fmt.Sprintf("at most %d entries, got %d", s.TimelineMax, len(entries))})
			}
			for i, e := range entries {
				entry, ok := e.(map[string]any)
				if !ok {
					v = append(v, Violation{fmt.Sprintf("timeline[%d]", i), "must be an object"})
					continue
				}
				if _, ok := asString(entry["gap"]); !ok {
					v = append(v, Violation{fmt.Sprintf("timeline[%d].gap", i), "required string"})
				}
			}
		}
	}

	if raw, present := obj["transcripts"]; present {
		t, ok := raw.(map[string]any)
		if !ok {
			v = append(v, Violation{"transcripts", "must be an object"})
		} else {
			for _, side := range []string{"a", "b"} {
				if tv, present := t[side]; present {
					if _, ok := asString(tv); !ok {
						v = append(v, Violation{"transcripts." + side, "must be a string"})
					}
				}
			}
		}
	}

	return v
}

func (s Schema) validateVerdict(path string, raw any) Violations {
	var v Violations
	verdict, ok := raw.(map[string]any)
	if !ok {
		return Violations{{path, "required object"}}
	}

	score, ok := asInt(verdict["score"])
	if !ok {
		v = append(v, Violation{path + ".score", "required integer"})
	} else if score < 0 || score > 100 {
		v = append(v, Violation{path + ".score", fmt.Sprintf("must be 0-100, got %d", score)})
	}

	if raw, present := verdict["grade"]; present {
		grade, ok := asString(raw)
		if !ok || !contains(s.Grades, grade) {
			v = append(v, Violation{path + ".grade", "must be one of " + strings.Join(s.Grades, "/")})
		}
	}

	for _, field := range []string{"highlights", "issues"} {
		if raw, present := verdict[field]; present {
			if _, ok := asStringSlice(raw); !ok {
				v = append(v, Violation{path + "." + field, "must be an array of strings"})
			}
		}
	}
	return v
}

func (s Schema) validateDiffEntry(path string, raw any) Violations {
	var v Violations
	entry, ok := raw.(map[string]any)
	if !ok {
		return Violations{{path, "must be an object"}}
	}
	if _, ok := asString(entry["aspect"]); !ok {
		v = append(v, Violation{path + ".aspect", "required string"})
	}
	if _, ok := asString(entry["note"]); !ok {
		v = append(v, Violation{path + ".note", "required string"})
	}
	if raw, present := entry["severity"]; present {
		sev, ok := asString(raw)
		if !ok || !contains(s.Severities, strings.ToLower(sev)) {
			v = append(v, Violation{path + ".severity", "must be one of " + strings.Join(s.Severities, "/")})
		}
	}
	return v
}

func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func asInt(v any) (int, bool) {
	f, ok := v.(float64)
	if !ok || f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}

func asStringSlice(v any) ([]string, bool) {
	raw, ok := v.([]any)
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(raw))
	for _, e := range raw {
		s, ok := e.(string)
		if !ok {
			return nil, false
		}
		out = append(out, s)
	}
	return out, true
}

func contains(list []string, s string) bool {
	for _, e := range list {
		if e == s {
			return true
		}
	}
	return false
}
