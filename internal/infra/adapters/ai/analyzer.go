// File: internal/infra/adapters/ai/analyzer.go
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"reel-compare/internal/domain"
	"reel-compare/internal/domain/ports/adapter"
)

var _ adapter.VideoAnalyzer = (*AnalyzerClient)(nil)

// AnalyzerClient talks to the single-video analysis service used in
// delegate mode. Both endpoints answer {analysisResult: {parsed_data}}.
type AnalyzerClient struct {
	base   string
	client *http.Client
}

func NewAnalyzerClient(baseURL string) (*AnalyzerClient, error) {
	if baseURL == "" {
		return nil, errors.New("analyzer base url empty")
	}
	return &AnalyzerClient{
		base:   baseURL,
		client: &http.Client{Timeout: 60 * time.Second},
	}, nil
}

type analyzerEnvelope struct {
	AnalysisResult struct {
		ParsedData json.RawMessage `json:"parsed_data"`
	} `json:"analysisResult"`
}

func (a *AnalyzerClient) AnalyzeURL(ctx context.Context, address string) (json.RawMessage, error) {
	body, _ := json.Marshal(map[string]string{"url": address})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.base+"/analyze_url", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return a.do(req)
}

func (a *AnalyzerClient) AnalyzeUpload(ctx context.Context, filePath string) (json.RawMessage, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filepath.Base(filePath))
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.base+"/upload", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	return a.do(req)
}

func (a *AnalyzerClient) do(req *http.Request) (json.RawMessage, error) {
	resp, err := a.client.Do(req)
	if err != nil {
		var nerr net.Error
		if errors.As(err, &nerr) && nerr.Timeout() {
			return nil, fmt.Errorf("analyzer: %w", domain.ErrUpstreamTimeout)
		}
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("analyzer http %d", resp.StatusCode)
	}

	var env analyzerEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, err
	}
	if len(env.AnalysisResult.ParsedData) == 0 {
		return nil, errors.New("analyzer: empty parsed_data")
	}
	return env.AnalysisResult.ParsedData, nil
}
