package narrative

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client calls an external generative-model API that turns a Summary into a
// Report. The API contract is a single POST returning the Report JSON shape.
type Client struct {
	baseURL string
	apiKey  string
	model   string
	http    *http.Client
}

// NewClient creates a Client targeting baseURL with the given API key and
// model name. timeout == 0 defaults to 30 seconds.
func NewClient(baseURL, apiKey, model string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		http:    &http.Client{Timeout: timeout},
	}
}

// generateRequest is the wire payload for the model API.
type generateRequest struct {
	Model   string   `json:"model"`
	Summary *Summary `json:"summary"`
}

// Generate implements Generator. Any transport, status, or decode failure is
// returned to the caller; recovery is the narrative Service's job, not ours.
func (c *Client) Generate(ctx context.Context, summary *Summary) (*Report, error) {
	body, err := json.Marshal(generateRequest{Model: c.model, Summary: summary})
	if err != nil {
		return nil, fmt.Errorf("marshal summary: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/reports", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build report request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("report request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("model API returned status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read report response: %w", err)
	}

	var report Report
	if err := json.Unmarshal(raw, &report); err != nil {
		return nil, fmt.Errorf("decode report response: %w", err)
	}
	report.Source = "model"
	if report.GeneratedAt.IsZero() {
		report.GeneratedAt = summary.AsOf.UTC()
	}
	if report.ReportID == "" {
		report.ReportID = "RPT-" + summary.AsOf.UTC().Format("20060102-150405")
	}
	return &report, nil
}
