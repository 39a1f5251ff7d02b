package normalize

import (
	"testing"
)

func TestToUIResultPadActions(t *testing.T) {
	obj := validObject()
	obj["actions"] = []any{"only one"}

	res := ToUIResult(obj, SchemaFor(primaryVariant()))
	if len(res.Actions) != 3 {
		t.Fatalf("actions must have exactly 3 entries, got %d", len(res.Actions))
	}
	if res.Actions[0] != "only one" || res.Actions[1] != "" || res.Actions[2] != "" {
		t.Fatalf("unexpected padding: %v", res.Actions)
	}
}

func TestToUIResultTruncatesActions(t *testing.T) {
	obj := validObject()
	obj["actions"] = []any{"a", "b", "c", "d", "e"}

	res := ToUIResult(obj, SchemaFor(primaryVariant()))
	if len(res.Actions) != 3 {
		t.Fatalf("actions must be cut to 3, got %d", len(res.Actions))
	}
	if res.Actions[2] != "c" {
		t.Fatalf("unexpected truncation: %v", res.Actions)
	}
}

func TestToUIResultSeverityCollapse(t *testing.T) {
	obj := validObject()
	obj["diff"] = []any{
		map[string]any{"aspect": "hook", "note": "n1", "severity": "critical"},
		map[string]any{"aspect": "cta", "note": "n2", "severity": "Low"},
	}

	res := ToUIResult(obj, SchemaFor(primaryVariant()))
	if res.Diff[0].Severity != "high" {
		t.Fatalf("critical must collapse to high, got %q", res.Diff[0].Severity)
	}
	if res.Diff[1].Severity != "low" {
		t.Fatalf("severity must be lowercased, got %q", res.Diff[1].Severity)
	}
}

func TestToUIResultFreeTextAspect(t *testing.T) {
	obj := validObject()
	obj["diff"] = []any{
		map[string]any{"aspect": "pacing", "note": "A cuts faster", "severity": "medium"},
		map[string]any{"aspect": "hook", "note": "untouched", "severity": "low"},
	}

	res := ToUIResult(obj, SchemaFor(primaryVariant()))
	if res.Diff[0].Note != "[PACING] A cuts faster" {
		t.Fatalf("free-text aspect must be folded into the note, got %q", res.Diff[0].Note)
	}
	if res.Diff[1].Note != "untouched" {
		t.Fatalf("fixed aspect note must stay untouched, got %q", res.Diff[1].Note)
	}
}

func TestToUIResultTimelineTruncation(t *testing.T) {
	entries := make([]any, 12)
	for i := range entries {
		entries[i] = map[string]any{"a": "x", "b": "y", "gap": "g"}
	}
	obj := validObject()
	obj["timeline"] = entries

	res := ToUIResult(obj, SchemaFor(primaryVariant()))
	if len(res.Timeline) != 8 {
		t.Fatalf("timeline must be cut to the variant cap, got %d", len(res.Timeline))
	}
}

func TestToUIResultCarriesKeyClips(t *testing.T) {
	obj := validObject()
	obj["_key_clips"] = []any{map[string]any{"start": float64(1), "end": float64(3)}}

	res := ToUIResult(obj, SchemaFor(primaryVariant()))
	if len(res.KeyClips) == 0 {
		t.Fatal("_key_clips must be carried through opaquely")
	}
}

func TestToUIResultDropsEmptyTranscripts(t *testing.T) {
	obj := validObject()
	obj["transcripts"] = map[string]any{"a": "", "b": ""}

	res := ToUIResult(obj, SchemaFor(primaryVariant()))
	if res.Transcripts != nil {
		t.Fatalf("empty transcripts must be dropped, got %+v", res.Transcripts)
	}
}

// Round trip through the UI shape and back must preserve the producer's
// key naming, so downstream consumers of either convention agree.
func TestModelShapeRoundTrip(t *testing.T) {
	obj := validObject()
	res := ToUIResult(obj, SchemaFor(primaryVariant()))
	back := ToModelShape(res)

	for _, key := range []string{"summary", "per_video", "actions", "diff", "timeline"} {
		if _, ok := back[key]; !ok {
			t.Fatalf("round trip lost key %q: %v", key, back)
		}
	}
	pv, ok := back["per_video"].(map[string]any)
	if !ok {
		t.Fatalf("per_video wrong shape: %v", back["per_video"])
	}
	a, ok := pv["a"].(map[string]any)
	if !ok {
		t.Fatalf("per_video.a wrong shape: %v", pv["a"])
	}
	if a["score"] != 82 {
		t.Fatalf("score lost in round trip: %v", a["score"])
	}
	if back["summary"] != obj["summary"] {
		t.Fatalf("summary changed: %v", back["summary"])
	}
}
