// File: internal/infra/adapters/ai/gemini.go
package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"reel-compare/internal/domain"
	"reel-compare/internal/domain/ports/adapter"
	"reel-compare/internal/infra/metrics"
)

var _ adapter.InferenceProvider = (*GeminiProvider)(nil)

// GeminiProvider implements the inference boundary with the official SDK:
// transfer sanitized media to provider storage, then one structured-output
// call referencing the uploaded files.
type GeminiProvider struct {
	client       *genai.Client
	defaultModel string
	maxOut       int32
	pollEvery    time.Duration
	log          *zerolog.Logger
}

func NewGeminiProvider(ctx context.Context, apiKey, baseURL, defaultModel string, maxOut int, pollEvery time.Duration, log *zerolog.Logger) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: empty api key")
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{
			BaseURL: baseURL,
		},
	})
	if err != nil {
		return nil, err
	}
	return &GeminiProvider{
		client:       c,
		defaultModel: defaultModel,
		maxOut:       int32(maxOut),
		pollEvery:    pollEvery,
		log:          log,
	}, nil
}

// UploadMedia pushes the file to provider storage and polls its
// processing state until ACTIVE. A terminal FAILED state or an exhausted
// context surface as UPLOAD_FAILED / TIMEOUT.
func (g *GeminiProvider) UploadMedia(ctx context.Context, path string) (*adapter.MediaHandle, error) {
	f, err := g.client.Files.UploadFromPath(ctx, path, &genai.UploadFileConfig{
		MIMEType: "video/mp4",
	})
	if err != nil {
		metrics.IncMediaUpload("failed")
		return nil, fmt.Errorf("upload %s: %v: %w", path, err, domain.ErrUploadFailed)
	}

	for f.State == genai.FileStateProcessing {
		select {
		case <-ctx.Done():
			metrics.IncMediaUpload("timeout")
			return nil, fmt.Errorf("upload %s: %w", path, domain.ErrTimeout)
		case <-time.After(g.pollEvery):
		}
		f, err = g.client.Files.Get(ctx, f.Name, nil)
		if err != nil {
			metrics.IncMediaUpload("failed")
			return nil, fmt.Errorf("upload %s: poll state: %v: %w", path, err, domain.ErrUploadFailed)
		}
	}
	if f.State != genai.FileStateActive {
		metrics.IncMediaUpload("failed")
		return nil, fmt.Errorf("upload %s: state %s: %w", path, f.State, domain.ErrUploadFailed)
	}

	metrics.IncMediaUpload("ready")
	return &adapter.MediaHandle{Name: f.Name, URI: f.URI, MIMEType: f.MIMEType}, nil
}

// Infer issues the single structured-output request. ResponseMIMEType asks
// for machine-parseable JSON but the hint is advisory; the normalizer
// still parses defensively.
func (g *GeminiProvider) Infer(ctx context.Context, model, prompt string, handles []*adapter.MediaHandle) (string, error) {
	if strings.TrimSpace(model) == "" {
		model = g.defaultModel
	}

	parts := make([]*genai.Part, 0, len(handles)+1)
	parts = append(parts, &genai.Part{Text: prompt})
	for _, h := range handles {
		parts = append(parts, &genai.Part{
			FileData: &genai.FileData{FileURI: h.URI, MIMEType: h.MIMEType},
		})
	}
	contents := []*genai.Content{{Role: genai.RoleUser, Parts: parts}}

	start := time.Now()
	resp, err := g.client.Models.GenerateContent(ctx, model, contents, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		MaxOutputTokens:  g.maxOut,
	})
	latency := time.Since(start)
	if err != nil {
		metrics.ObserveInference(model, latency.Milliseconds(), false)
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	metrics.ObserveInference(model, latency.Milliseconds(), true)

	text := extractText(resp)
	if text == "" {
		return "", errors.New("gemini: empty response")
	}
	return text, nil
}

// DeleteMedia removes the uploaded file; failures are the caller's to
// ignore (provider storage expires on its own).
func (g *GeminiProvider) DeleteMedia(ctx context.Context, handle *adapter.MediaHandle) error {
	_, err := g.client.Files.Delete(ctx, handle.Name, nil)
	return err
}

func extractText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if p != nil && p.Text != "" {
			sb.WriteString(p.Text)
		}
	}
	return sb.String()
}
