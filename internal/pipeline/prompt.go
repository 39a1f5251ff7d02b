package pipeline

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"reel-compare/internal/config"
	"reel-compare/internal/domain/ports/adapter"
)

// capField bounds every free-text field folded into the prompt so two
// verbose descriptions cannot blow the prompt budget. Truncation lands
// on a rune boundary so multi-byte text stays valid UTF-8.
func capField(s string, max int) string {
	s = strings.TrimSpace(s)
	if max <= 0 || len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "…"
}

func describeVideo(label string, meta *adapter.MediaInfo, notes string, max int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Video %s:\n", label)
	if meta != nil {
		if meta.Title != "" {
			fmt.Fprintf(&sb, "  title: %s\n", capField(meta.Title, max))
		}
		if meta.Description != "" {
			fmt.Fprintf(&sb, "  description: %s\n", capField(meta.Description, max))
		}
		if meta.DurationSec > 0 {
			fmt.Fprintf(&sb, "  duration_sec: %.0f\n", meta.DurationSec)
		}
		if meta.Uploader != "" {
			fmt.Fprintf(&sb, "  uploader: %s\n", capField(meta.Uploader, max))
		}
	}
	if notes != "" {
		fmt.Fprintf(&sb, "  notes: %s\n", capField(notes, max))
	}
	return sb.String()
}

func resultContract(v config.VariantConfig) string {
	return fmt.Sprintf(`Respond with exactly one JSON object, no prose, using snake_case keys:
{
  "summary": string,
  "per_video": {"a": {"score": 0-100 integer, "grade": "S"|"A"|"B"|"C"|"D", "highlights": [string], "issues": [string]},
                "b": {same shape}},
  "diff": [{"aspect": "hook"|"trust"|"visual"|"product_display"|"cta" or free text, "note": string, "severity": %s}],
  "actions": [exactly 3 strings],
  "timeline": [up to %d entries of {"a": segment, "b": segment, "gap": string}]
}`, quoteAlternatives(v.Severities), v.TimelineMax)
}

func quoteAlternatives(vals []string) string {
	quoted := make([]string, len(vals))
	for i, v := range vals {
		quoted[i] = `"` + v + `"`
	}
	return strings.Join(quoted, "|")
}

// buildComparePrompt composes the two-video comparison prompt: FAB
// grounding, per-video metadata and the output contract.
func buildComparePrompt(v config.VariantConfig, fab string, metaA, metaB *adapter.MediaInfo, notesA, notesB string) string {
	var sb strings.Builder
	sb.WriteString("You are a short-form video performance analyst. Compare the two attached videos (first attachment is video A, second is video B) as marketing creatives for the same product.\n\n")
	if fab != "" {
		fmt.Fprintf(&sb, "Product value summary (features/advantages/benefits):\n%s\n\n", capField(fab, v.MaxFieldChars*2))
	}
	sb.WriteString(describeVideo("A", metaA, notesA, v.MaxFieldChars))
	sb.WriteString(describeVideo("B", metaB, notesB, v.MaxFieldChars))
	sb.WriteString("\nScore each video, list differences per aspect, and recommend concrete improvements.\n\n")
	sb.WriteString(resultContract(v))
	return sb.String()
}

// buildAbbreviatedPrompt is the reduced variant used for the single
// schema-failure retry: same contract, minimal instruction.
func buildAbbreviatedPrompt(v config.VariantConfig) string {
	var sb strings.Builder
	sb.WriteString("Compare the two attached videos (A then B) as marketing creatives.\n\n")
	sb.WriteString(resultContract(v))
	return sb.String()
}

// buildFusePrompt merges two independent single-video analyses into the
// comparison shape (delegate mode, text-only call).
func buildFusePrompt(v config.VariantConfig, fab string, parsedA, parsedB json.RawMessage) string {
	var sb strings.Builder
	sb.WriteString("Two short-form videos were analyzed independently. Fuse the two analyses below into one comparison of video A versus video B.\n\n")
	if fab != "" {
		fmt.Fprintf(&sb, "Product value summary:\n%s\n\n", capField(fab, v.MaxFieldChars*2))
	}
	fmt.Fprintf(&sb, "Analysis of video A:\n%s\n\n", string(parsedA))
	fmt.Fprintf(&sb, "Analysis of video B:\n%s\n\n", string(parsedB))
	sb.WriteString(resultContract(v))
	return sb.String()
}
