// internal/breach/client.go
// HTTP client for the external breach data API

package breach

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// LookupClient queries the breach data source for one or many watch values
type LookupClient interface {
	Search(ctx context.Context, value, valueType string) ([]Record, error)
	SearchBatch(ctx context.Context, values []string, valueType string) (map[string][]Record, error)
}

type httpClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPClient creates a lookup client against the configured breach API
func NewHTTPClient(baseURL, apiKey string, timeout time.Duration) LookupClient {
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &httpClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

type searchRequest struct {
	Value string `json:"value"`
	Type  string `json:"type"`
}

type batchSearchRequest struct {
	Values []string `json:"values"`
	Type   string   `json:"type"`
}

// Search looks up breaches for one watch value
func (c *httpClient) Search(ctx context.Context, value, valueType string) ([]Record, error) {
	var records []Record
	err := c.post(ctx, "/search", searchRequest{Value: value, Type: valueType}, &records)
	if err != nil {
		return nil, err
	}
	return records, nil
}

// SearchBatch looks up breaches for many same-type values in one request.
// The result maps each input value to its matching records.
func (c *httpClient) SearchBatch(ctx context.Context, values []string, valueType string) (map[string][]Record, error) {
	results := make(map[string][]Record)
	err := c.post(ctx, "/search/batch", batchSearchRequest{Values: values, Type: valueType}, &results)
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (c *httpClient) post(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode breach API request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build breach API request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("breach API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("breach API returned %d: %s", resp.StatusCode, snippet)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode breach API response: %w", err)
	}

	return nil
}
