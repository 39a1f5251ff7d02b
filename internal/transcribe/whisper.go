package transcribe

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"reel-compare/internal/infra/adapters/media"
)

var _ SpeechToText = (*WhisperCLI)(nil)

// WhisperCLI drives a whisper.cpp-style binary: feed it a wav, ask for
// JSON output next to it, read the segments back.
type WhisperCLI struct {
	bin string
	run media.Runner
}

func NewWhisperCLI(bin string) *WhisperCLI {
	return &WhisperCLI{bin: bin, run: media.ExecRunner}
}

// whisperOutput matches whisper.cpp's --output-json file shape.
type whisperOutput struct {
	Transcription []struct {
		Offsets struct {
			From int64 `json:"from"` // milliseconds
			To   int64 `json:"to"`
		} `json:"offsets"`
		Text string `json:"text"`
	} `json:"transcription"`
}

func (w *WhisperCLI) Transcribe(ctx context.Context, wavPath string) ([]Segment, error) {
	outPrefix := strings.TrimSuffix(wavPath, ".wav")
	jsonPath := outPrefix + ".json"
	defer os.Remove(jsonPath)

	args := []string{"-f", wavPath, "--output-json", "--output-file", outPrefix, "--no-prints"}
	if _, stderr, err := w.run(ctx, w.bin, args...); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("whisper: %s: %w", firstLine(stderr), err)
	}

	b, err := os.ReadFile(jsonPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: read output: %w", err)
	}
	var out whisperOutput
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("whisper: parse output: %w", err)
	}

	segments := make([]Segment, 0, len(out.Transcription))
	for _, t := range out.Transcription {
		segments = append(segments, Segment{
			Start: float64(t.Offsets.From) / 1000,
			End:   float64(t.Offsets.To) / 1000,
			Text:  t.Text,
		})
	}
	return segments, nil
}

func firstLine(b []byte) string {
	s := strings.TrimSpace(string(b))
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
