package model

import "encoding/json"

// ActionCount is the fixed number of recommended actions in every result.
// Producers that return fewer are padded with empty strings at the
// normalization boundary.
const ActionCount = 3

// VideoVerdict is the per-video portion of a comparison.
type VideoVerdict struct {
	Score      int      `json:"score"`
	Grade      string   `json:"grade,omitempty"`
	Highlights []string `json:"highlights"`
	Issues     []string `json:"issues"`
}

// DiffEntry describes one aspect where the two videos differ. Aspect is
// usually one of hook/trust/visual/product_display/cta but free text is
// tolerated and embedded into the note label instead.
type DiffEntry struct {
	Aspect   string `json:"aspect"`
	Note     string `json:"note"`
	Severity string `json:"severity,omitempty"`
}

// TimelineEntry pairs one segment from each video with a description of
// the delta between them. The per-segment records are producer-defined
// and carried opaquely.
type TimelineEntry struct {
	A   json.RawMessage `json:"A,omitempty"`
	B   json.RawMessage `json:"B,omitempty"`
	Gap string          `json:"gap"`
}

type Transcripts struct {
	A string `json:"A,omitempty"`
	B string `json:"B,omitempty"`
}

// ComparisonResult is the stable UI-facing shape. The model's native
// snake_case output is reshaped into this contract by the normalizer.
type ComparisonResult struct {
	Summary  string `json:"summary"`
	PerVideo struct {
		A VideoVerdict `json:"A"`
		B VideoVerdict `json:"B"`
	} `json:"perVideo"`
	Diff        []DiffEntry     `json:"diff"`
	Actions     []string        `json:"actions"`
	Timeline    []TimelineEntry `json:"timeline"`
	Transcripts *Transcripts    `json:"transcripts,omitempty"`
	KeyClips    json.RawMessage `json:"_key_clips,omitempty"`
}

func (r *ComparisonResult) Clone() *ComparisonResult {
	cp := *r
	cp.Diff = append([]DiffEntry(nil), r.Diff...)
	cp.Actions = append([]string(nil), r.Actions...)
	cp.Timeline = append([]TimelineEntry(nil), r.Timeline...)
	if r.Transcripts != nil {
		t := *r.Transcripts
		cp.Transcripts = &t
	}
	return &cp
}
