// File: internal/domain/ports/adapter/ai.go
package adapter

import (
	"context"
	"encoding/json"
)

// MediaHandle references media previously transferred to the inference
// provider's storage.
type MediaHandle struct {
	Name     string
	URI      string
	MIMEType string
}

// InferenceProvider is the multimodal model boundary: upload media, then
// issue one structured-output call. The provider is asked for JSON but
// that hint is advisory; callers must parse defensively.
type InferenceProvider interface {
	UploadMedia(ctx context.Context, path string) (*MediaHandle, error)
	Infer(ctx context.Context, model, prompt string, handles []*MediaHandle) (string, error)
	// DeleteMedia is best-effort cleanup after a job finishes.
	DeleteMedia(ctx context.Context, handle *MediaHandle) error
}

// FABProvider fetches the features/advantages/benefits context used to
// ground prompts for a product collection. Optional: callers treat a
// failed or missing lookup as empty context.
type FABProvider interface {
	FABText(ctx context.Context, collectionID, fabVersionID string) (string, error)
}

// VideoAnalyzer is the single-video scoring service consumed as a black
// box in delegate mode. Both endpoints return the service's parsed_data
// payload verbatim.
type VideoAnalyzer interface {
	AnalyzeURL(ctx context.Context, address string) (json.RawMessage, error)
	AnalyzeUpload(ctx context.Context, filePath string) (json.RawMessage, error)
}
