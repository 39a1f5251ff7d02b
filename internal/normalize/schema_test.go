package normalize

import (
	"strings"
	"testing"

	"reel-compare/internal/config"
)

func primaryVariant() config.VariantConfig {
	return config.VariantConfig{
		TimelineMax:   8,
		Severities:    []string{"low", "medium", "high", "critical"},
		MaxFieldChars: 600,
	}
}

func validObject() map[string]any {
	return map[string]any{
		"summary": "A wins on hook strength.",
		"per_video": map[string]any{
			"a": map[string]any{"score": float64(82), "grade": "A", "highlights": []any{"fast hook"}, "issues": []any{}},
			"b": map[string]any{"score": float64(61), "grade": "B"},
		},
		"actions": []any{"tighten the hook", "add a cta", "show the product sooner"},
		"diff": []any{
			map[string]any{"aspect": "hook", "note": "A opens on the product", "severity": "high"},
		},
		"timeline": []any{
			map[string]any{"a": "product reveal", "b": "talking head", "gap": "A reveals 3s earlier"},
		},
	}
}

func TestValidatePasses(t *testing.T) {
	s := SchemaFor(primaryVariant())
	if v := s.Validate(validObject()); len(v) != 0 {
		t.Fatalf("expected clean pass, got %v", v.Error())
	}
}

func TestValidateViolations(t *testing.T) {
	cases := []struct {
		name     string
		mutate   func(map[string]any)
		wantPath string
	}{
		{
			name:     "missing summary",
			mutate:   func(o map[string]any) { delete(o, "summary") },
			wantPath: "summary",
		},
		{
			name:     "summary wrong type",
			mutate:   func(o map[string]any) { o["summary"] = float64(3) },
			wantPath: "summary",
		},
		{
			name:     "missing per_video",
			mutate:   func(o map[string]any) { delete(o, "per_video") },
			wantPath: "per_video",
		},
		{
			name: "score out of range",
			mutate: func(o map[string]any) {
				o["per_video"].(map[string]any)["a"].(map[string]any)["score"] = float64(140)
			},
			wantPath: "per_video.a.score",
		},
		{
			name: "fractional score",
			mutate: func(o map[string]any) {
				o["per_video"].(map[string]any)["b"].(map[string]any)["score"] = 61.5
			},
			wantPath: "per_video.b.score",
		},
		{
			name: "unknown grade",
			mutate: func(o map[string]any) {
				o["per_video"].(map[string]any)["a"].(map[string]any)["grade"] = "F"
			},
			wantPath: "per_video.a.grade",
		},
		{
			name:     "missing actions",
			mutate:   func(o map[string]any) { delete(o, "actions") },
			wantPath: "actions",
		},
		{
			name:     "too many actions",
			mutate:   func(o map[string]any) { o["actions"] = []any{"a", "b", "c", "d"} },
			wantPath: "actions",
		},
		{
			name: "diff entry without note",
			mutate: func(o map[string]any) {
				o["diff"] = []any{map[string]any{"aspect": "hook", "severity": "low"}}
			},
			wantPath: "diff[0].note",
		},
		{
			name: "unknown severity",
			mutate: func(o map[string]any) {
				o["diff"] = []any{map[string]any{"aspect": "hook", "note": "n", "severity": "catastrophic"}}
			},
			wantPath: "diff[0].severity",
		},
		{
			name: "timeline entry without gap",
			mutate: func(o map[string]any) {
				o["timeline"] = []any{map[string]any{"a": "x", "b": "y"}}
			},
			wantPath: "timeline[0].gap",
		},
	}

	s := SchemaFor(primaryVariant())
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			obj := validObject()
			tc.mutate(obj)
			v := s.Validate(obj)
			if len(v) == 0 {
				t.Fatal("expected violations, got none")
			}
			found := false
			for _, viol := range v {
				if viol.Path == tc.wantPath {
					found = true
				}
			}
			if !found {
				t.Fatalf("expected violation at %q, got %v", tc.wantPath, v.Error())
			}
		})
	}
}

func TestValidateTimelineCapPerVariant(t *testing.T) {
	entries := make([]any, 6)
	for i := range entries {
		entries[i] = map[string]any{"gap": "g"}
	}
	obj := validObject()
	obj["timeline"] = entries

	primary := SchemaFor(primaryVariant())
	if v := primary.Validate(obj); len(v) != 0 {
		t.Fatalf("6 entries should fit the primary cap of 8: %v", v.Error())
	}

	abbreviated := SchemaFor(config.VariantConfig{
		TimelineMax: 5,
		Severities:  []string{"low", "medium", "high"},
	})
	v := abbreviated.Validate(obj)
	if len(v) == 0 {
		t.Fatal("6 entries should exceed the abbreviated cap of 5")
	}
	if v[0].Path != "timeline" {
		t.Fatalf("expected timeline violation, got %v", v.Error())
	}
}

func TestViolationsErrorTruncates(t *testing.T) {
	v := Violations{
		{"a", "m"}, {"b", "m"}, {"c", "m"}, {"d", "m"}, {"e", "m"}, {"f", "m"},
	}
	msg := v.Error()
	if !strings.Contains(msg, "and 2 more") {
		t.Fatalf("expected truncation marker, got %q", msg)
	}
}
