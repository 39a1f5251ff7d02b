package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"reel-compare/internal/domain/ports/adapter"
)

var _ adapter.FABProvider = (*FABClient)(nil)

// FABClient fetches features/advantages/benefits context for a product
// collection from the content service.
type FABClient struct {
	base   string
	client *http.Client
}

func NewFABClient(baseURL string) (*FABClient, error) {
	if baseURL == "" {
		return nil, errors.New("fab base url empty")
	}
	return &FABClient{
		base:   baseURL,
		client: &http.Client{Timeout: 15 * time.Second},
	}, nil
}

func (f *FABClient) FABText(ctx context.Context, collectionID, fabVersionID string) (string, error) {
	target := fmt.Sprintf("%s/collections/%s/fab/%s",
		f.base, url.PathEscape(collectionID), url.PathEscape(fabVersionID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", err
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("fab service http %d", resp.StatusCode)
	}

	var payload struct {
		FABText string `json:"fabText"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", err
	}
	return payload.FABText, nil
}
