package normalize

import (
	"encoding/json"
	"strings"

	"reel-compare/internal/domain/model"
)

// fixedAspects is the small diff vocabulary; anything else is free text
// and gets embedded into the note label instead.
var fixedAspects = []string{"hook", "trust", "visual", "product_display", "cta"}

// ToUIResult reshapes a validated snake_case model object into the
// stable camelCase UI contract. The transform is total: every field is
// renamed explicitly so schema drift surfaces here, not downstream.
func ToUIResult(obj map[string]any, s Schema) *model.ComparisonResult {
	res := &model.ComparisonResult{}

	res.Summary, _ = asString(obj["summary"])

	if pv, ok := obj["per_video"].(map[string]any); ok {
		res.PerVideo.A = toVerdict(pv["a"])
		res.PerVideo.B = toVerdict(pv["b"])
	}

	if raw, ok := obj["diff"].([]any); ok {
		res.Diff = make([]model.DiffEntry, 0, len(raw))
		for _, e := range raw {
			entry, ok := e.(map[string]any)
			if !ok {
				continue
			}
			res.Diff = append(res.Diff, toDiffEntry(entry))
		}
	}

	actions, _ := asStringSlice(obj["actions"])
	res.Actions = padActions(actions)

	if raw, ok := obj["timeline"].([]any); ok {
		limit := len(raw)
		if limit > s.TimelineMax {
			limit = s.TimelineMax
		}
		res.Timeline = make([]model.TimelineEntry, 0, limit)
		for _, e := range raw[:limit] {
			entry, ok := e.(map[string]any)
			if !ok {
				continue
			}
			res.Timeline = append(res.Timeline, model.TimelineEntry{
				A:   marshalRaw(entry["a"]),
				B:   marshalRaw(entry["b"]),
				Gap: stringOr(entry["gap"], ""),
			})
		}
	}

	if t, ok := obj["transcripts"].(map[string]any); ok {
		tr := &model.Transcripts{
			A: stringOr(t["a"], ""),
			B: stringOr(t["b"], ""),
		}
		if tr.A != "" || tr.B != "" {
			res.Transcripts = tr
		}
	}

	if kc, present := obj["_key_clips"]; present {
		res.KeyClips = marshalRaw(kc)
	}

	return res
}

func toVerdict(raw any) model.VideoVerdict {
	verdict := model.VideoVerdict{Highlights: []string{}, Issues: []string{}}
	m, ok := raw.(map[string]any)
	if !ok {
		return verdict
	}
	verdict.Score, _ = asInt(m["score"])
	verdict.Grade = stringOr(m["grade"], "")
	if hs, ok := asStringSlice(m["highlights"]); ok {
		verdict.Highlights = hs
	}
	if is, ok := asStringSlice(m["issues"]); ok {
		verdict.Issues = is
	}
	return verdict
}

func toDiffEntry(entry map[string]any) model.DiffEntry {
	aspect := stringOr(entry["aspect"], "")
	note := stringOr(entry["note"], "")
	if aspect != "" && !contains(fixedAspects, aspect) {
		// Free-text aspect tags get folded into the note label.
		note = "[" + strings.ToUpper(aspect) + "] " + note
	}
	return model.DiffEntry{
		Aspect:   aspect,
		Note:     note,
		Severity: MapSeverity(stringOr(entry["severity"], "")),
	}
}

// MapSeverity collapses the internal `critical` tier into `high` for the
// externally facing vocabulary.
func MapSeverity(sev string) string {
	sev = strings.ToLower(strings.TrimSpace(sev))
	if sev == "critical" {
		return "high"
	}
	return sev
}

// padActions enforces the exactly-3 invariant: producers returning fewer
// are padded with empty strings, anything beyond 3 is cut.
func padActions(actions []string) []string {
	out := make([]string, model.ActionCount)
	copy(out, actions)
	return out
}

// ToModelShape is the inverse rename, back to the producer's snake_case
// key set. Values transformed lossily on the way in (severity collapse,
// note labels) are carried as-is; only the naming convention reverts.
func ToModelShape(r *model.ComparisonResult) map[string]any {
	perVideo := map[string]any{
		"a": fromVerdict(r.PerVideo.A),
		"b": fromVerdict(r.PerVideo.B),
	}

	obj := map[string]any{
		"summary":   r.Summary,
		"per_video": perVideo,
		"actions":   r.Actions,
	}

	if r.Diff != nil {
		diff := make([]any, 0, len(r.Diff))
		for _, d := range r.Diff {
			entry := map[string]any{"aspect": d.Aspect, "note": d.Note}
			if d.Severity != "" {
				entry["severity"] = d.Severity
			}
			diff = append(diff, entry)
		}
		obj["diff"] = diff
	}

	if r.Timeline != nil {
		timeline := make([]any, 0, len(r.Timeline))
		for _, t := range r.Timeline {
			timeline = append(timeline, map[string]any{
				"a":   unmarshalRaw(t.A),
				"b":   unmarshalRaw(t.B),
				"gap": t.Gap,
			})
		}
		obj["timeline"] = timeline
	}

	if r.Transcripts != nil {
		t := map[string]any{}
		if r.Transcripts.A != "" {
			t["a"] = r.Transcripts.A
		}
		if r.Transcripts.B != "" {
			t["b"] = r.Transcripts.B
		}
		obj["transcripts"] = t
	}

	if len(r.KeyClips) > 0 {
		obj["_key_clips"] = unmarshalRaw(r.KeyClips)
	}

	return obj
}

func fromVerdict(v model.VideoVerdict) map[string]any {
	m := map[string]any{
		"score":      v.Score,
		"highlights": v.Highlights,
		"issues":     v.Issues,
	}
	if v.Grade != "" {
		m["grade"] = v.Grade
	}
	return m
}

func stringOr(v any, def string) string {
	if s, ok := v.(string); ok {
		return s
	}
	return def
}

func marshalRaw(v any) json.RawMessage {
	if v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return b
}

func unmarshalRaw(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	return v
}
