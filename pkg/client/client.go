// Package client provides the Go SDK for the guardian REST API: syncing
// device chains and reading dashboards, profiles, reports, and policies.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Block is one violation record on the wire. Field names match the format
// the mobile client produces and the server verifies.
type Block struct {
	Index        int    `json:"index"`
	DeviceID     string `json:"deviceId"`
	AppName      string `json:"appName"`
	Keyword      string `json:"keyword"`
	Timestamp    int64  `json:"timestamp"` // milliseconds since epoch
	PreviousHash string `json:"previousHash"`
	Hash         string `json:"hash"`
	Nonce        int64  `json:"nonce"`
}

// SyncRequest is the payload for Sync.
type SyncRequest struct {
	DeviceKey     string        `json:"device_key"`
	Ledger        LedgerPayload `json:"ledger"`
	ClientVersion string        `json:"client_version,omitempty"`
}

// LedgerPayload is the chain portion of a sync submission.
type LedgerPayload struct {
	DeviceID string  `json:"device_id"`
	Blocks   []Block `json:"blocks"`
}

// SyncResult is returned by Sync.
type SyncResult struct {
	Status          string    `json:"status"`
	ViolationsCount int       `json:"violations_count"`
	Timestamp       time.Time `json:"timestamp"`
}

// Violation is one dashboard row.
type Violation struct {
	ID        int    `json:"id"`
	DeviceID  string `json:"device_id"`
	AppName   string `json:"app_name"`
	Keyword   string `json:"keyword"`
	Timestamp int64  `json:"timestamp"`
	Date      string `json:"date"`
	Hash      string `json:"hash"`
}

// Dashboard is returned by Dashboard.
type Dashboard struct {
	DeviceKey       string      `json:"device_key"`
	DeviceID        string      `json:"device_id"`
	Violations      []Violation `json:"violations"`
	TotalViolations int         `json:"total_violations"`
	LastSync        time.Time   `json:"last_sync"`
	ClientVersion   string      `json:"client_version"`
	ChainIntact     bool        `json:"chain_intact"`
}

// Stats is returned by Stats.
type Stats struct {
	TotalViolations    int            `json:"total_violations"`
	AppBreakdown       map[string]int `json:"app_breakdown"`
	KeywordBreakdown   map[string]int `json:"keyword_breakdown"`
	HourlyDistribution [24]int        `json:"hourly_distribution"`
	LastSync           time.Time      `json:"last_sync"`
}

// VerifyResult is returned by Verify.
type VerifyResult struct {
	Valid       bool   `json:"valid"`
	TotalBlocks int    `json:"total_blocks"`
	FailureCode string `json:"failure_code,omitempty"`
	FailedIndex int    `json:"failed_index,omitempty"`
}

// Policy is a screen-time policy version.
type Policy struct {
	ID                  int64     `json:"id,omitempty"`
	DailyLimitMinutes   int       `json:"daily_limit_minutes"`
	WeekendLimitMinutes int       `json:"weekend_limit_minutes"`
	Bedtime             string    `json:"bedtime"`
	CreatedAt           time.Time `json:"created_at,omitempty"`
}

// PolicyView is returned by Policy.
type PolicyView struct {
	CurrentPolicy Policy   `json:"current_policy"`
	PolicyHistory []Policy `json:"policy_history"`
}

// Report is a narrative report. Typed fields cover the headline sections;
// Raw preserves the full document the server produced.
type Report struct {
	ReportID         string         `json:"report_id"`
	GeneratedAt      time.Time      `json:"generated_at"`
	Source           string         `json:"source"`
	ExecutiveSummary string         `json:"executive_summary"`
	KeyFindings      []string       `json:"key_findings"`
	Raw              map[string]any `json:"-"`
}

// ConversationStarter is one parent talking-point card.
type ConversationStarter struct {
	ID               int    `json:"id"`
	Type             string `json:"type"`
	Title            string `json:"title"`
	Message          string `json:"message"`
	ActionSuggestion string `json:"actionSuggestion"`
}

// APIError is returned for non-2xx responses, carrying the server's error
// code when it sent one.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("guardian API %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("guardian API %d: %s", e.StatusCode, e.Message)
}

// Client is the guardian SDK entry point. It is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client

	mu           sync.Mutex
	sessionToken string
}

// Option is a functional option for configuring a Client.
type Option func(*Client)

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithSessionToken attaches a pre-obtained session token to every request.
func WithSessionToken(token string) Option {
	return func(c *Client) { c.sessionToken = token }
}

// New creates a Client connected to baseURL.
//
//	c := client.New("http://localhost:8080")
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// CreateSession obtains a session token for deviceKey and attaches it to all
// subsequent requests.
func (c *Client) CreateSession(ctx context.Context, deviceKey string) (string, error) {
	var resp struct {
		Token string `json:"token"`
	}
	err := c.do(ctx, http.MethodPost, "/api/v1/session",
		map[string]string{"device_key": deviceKey}, &resp)
	if err != nil {
		return "", err
	}
	c.mu.Lock()
	c.sessionToken = resp.Token
	c.mu.Unlock()
	return resp.Token, nil
}

// Sync submits a full chain for a device key.
func (c *Client) Sync(ctx context.Context, req *SyncRequest) (*SyncResult, error) {
	var result SyncResult
	if err := c.do(ctx, http.MethodPost, "/api/v1/sync", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Dashboard fetches the newest-first violation list for a device key.
func (c *Client) Dashboard(ctx context.Context, deviceKey string) (*Dashboard, error) {
	var d Dashboard
	if err := c.do(ctx, http.MethodGet, "/api/v1/dashboard/"+deviceKey, nil, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// Stats fetches per-app, per-keyword, and hourly counters for a device key.
func (c *Client) Stats(ctx context.Context, deviceKey string) (*Stats, error) {
	var s Stats
	if err := c.do(ctx, http.MethodGet, "/api/v1/stats/"+deviceKey, nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Verify asks the server to re-verify the stored chain for a device key.
func (c *Client) Verify(ctx context.Context, deviceKey string) (*VerifyResult, error) {
	var v VerifyResult
	if err := c.do(ctx, http.MethodGet, "/api/v1/verify/"+deviceKey, nil, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// Profile fetches the behavioral profile as raw JSON, preserving every
// aggregate the server computes.
func (c *Client) Profile(ctx context.Context, deviceKey string) (map[string]any, error) {
	var p map[string]any
	if err := c.do(ctx, http.MethodGet, "/api/v1/profile/"+deviceKey, nil, &p); err != nil {
		return nil, err
	}
	return p, nil
}

// GenerateReport asks the server to build and store a new narrative report.
func (c *Client) GenerateReport(ctx context.Context, deviceKey string) (*Report, error) {
	return c.report(ctx, http.MethodPost, deviceKey)
}

// LatestReport fetches the most recently stored report.
func (c *Client) LatestReport(ctx context.Context, deviceKey string) (*Report, error) {
	return c.report(ctx, http.MethodGet, deviceKey)
}

func (c *Client) report(ctx context.Context, method, deviceKey string) (*Report, error) {
	var raw map[string]any
	if err := c.do(ctx, method, "/api/v1/reports/"+deviceKey, nil, &raw); err != nil {
		return nil, err
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("re-encode report: %w", err)
	}
	var report Report
	if err := json.Unmarshal(b, &report); err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}
	report.Raw = raw
	return &report, nil
}

// Policy fetches the current screen-time policy and its history.
func (c *Client) Policy(ctx context.Context, deviceKey string) (*PolicyView, error) {
	var view PolicyView
	if err := c.do(ctx, http.MethodGet, "/api/v1/policy/"+deviceKey, nil, &view); err != nil {
		return nil, err
	}
	return &view, nil
}

// SetPolicy appends a new policy version for a device key.
func (c *Client) SetPolicy(ctx context.Context, deviceKey string, policy *Policy) error {
	return c.do(ctx, http.MethodPut, "/api/v1/policy/"+deviceKey, policy, nil)
}

// Starters fetches conversation starter cards.
func (c *Client) Starters(ctx context.Context, deviceKey string) ([]ConversationStarter, error) {
	var resp struct {
		ConversationStarters []ConversationStarter `json:"conversation_starters"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/conversation-starters/"+deviceKey, nil, &resp); err != nil {
		return nil, err
	}
	return resp.ConversationStarters, nil
}

// do executes one JSON request against the API.
func (c *Client) do(ctx context.Context, method, path string, reqBody, respBody any) error {
	var bodyReader io.Reader
	if reqBody != nil {
		b, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	c.mu.Lock()
	token := c.sessionToken
	c.mu.Unlock()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(respBytes))}
		var payload struct {
			Error string `json:"error"`
			Code  string `json:"code"`
		}
		if json.Unmarshal(respBytes, &payload) == nil && payload.Error != "" {
			apiErr.Message = payload.Error
			apiErr.Code = payload.Code
		}
		return apiErr
	}

	if respBody != nil && len(respBytes) > 0 {
		if err := json.Unmarshal(respBytes, respBody); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
