package client_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/limitx/guardian/pkg/client"
)

const testKey = "0a1b2c3d-0a1b2c3d-0a1b2c3d-0a1b2c3d-0a1b2c3d-0a1b2c3d-0a1b2c3d-0a1b2c3d-0a1b2c3d-0a1b2c3d-0a1b2c3d-0a1b2c3d-0a1b2c3d-0a1b2c3d-0a1b2c3d-0a1b2c3d-0a1b2c3d-0a1b2c3d"

// ── Stub server ─────────────────────────────────────────────────────────

func stubGuardianServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/sync", func(w http.ResponseWriter, r *http.Request) {
		var req client.SyncRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
			return
		}
		if req.DeviceKey != testKey {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]any{
				"error": "device key must have 18 segments",
				"code":  "WRONG_SEGMENT_COUNT",
			})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"status":           "success",
			"violations_count": len(req.Ledger.Blocks) - 1,
			"timestamp":        time.Now().UTC(),
		})
	})

	mux.HandleFunc("/api/v1/dashboard/", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"device_key": testKey,
			"device_id":  "pixel-7a",
			"violations": []map[string]any{
				{"id": 2, "app_name": "TikTok", "keyword": "gambling", "timestamp": 1700000000000},
				{"id": 1, "app_name": "Chrome", "keyword": "violence", "timestamp": 1699990000000},
			},
			"total_violations": 2,
			"chain_intact":     true,
		})
	})

	mux.HandleFunc("/api/v1/stats/", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"total_violations":  2,
			"app_breakdown":     map[string]int{"TikTok": 1, "Chrome": 1},
			"keyword_breakdown": map[string]int{"gambling": 1, "violence": 1},
		})
	})

	mux.HandleFunc("/api/v1/verify/", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"valid":        false,
			"total_blocks": 3,
			"failure_code": "HASH_MISMATCH",
			"failed_index": 1,
		})
	})

	mux.HandleFunc("/api/v1/reports/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			w.WriteHeader(http.StatusCreated)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"report_id":         "RPT-1",
			"source":            "fallback",
			"executive_summary": "Activity was light this week.",
			"key_findings":      []string{"YouTube was the most used application."},
			"recommendations":   []string{"Keep the current routine."},
		})
	})

	mux.HandleFunc("/api/v1/policy/", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPut:
			var p client.Policy
			if err := json.NewDecoder(r.Body).Decode(&p); err != nil || p.Bedtime == "" {
				http.Error(w, `{"error":"bedtime is required"}`, http.StatusBadRequest)
				return
			}
			json.NewEncoder(w).Encode(map[string]any{"status": "success", "new_policy": p})
		case http.MethodGet:
			json.NewEncoder(w).Encode(map[string]any{
				"current_policy": map[string]any{
					"daily_limit_minutes":   120,
					"weekend_limit_minutes": 180,
					"bedtime":               "21:30",
				},
				"policy_history": []any{},
			})
		}
	})

	mux.HandleFunc("/api/v1/conversation-starters/", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"conversation_starters": []map[string]any{
				{"id": 1, "type": "positive", "title": "Favorite Application"},
			},
			"count": 1,
		})
	})

	mux.HandleFunc("/api/v1/session", func(w http.ResponseWriter, r *http.Request) {
		if auth := r.Header.Get("Authorization"); auth != "" {
			http.Error(w, `{"error":"unexpected auth on session create"}`, http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{"token": "stub-session-token"})
	})

	mux.HandleFunc("/api/v1/profile/", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer stub-session-token" {
			http.Error(w, `{"error":"invalid session token"}`, http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"total_violations": 2,
			"sentiment_score":  -0.4,
		})
	})

	return httptest.NewServer(mux)
}

// ── Tests ────────────────────────────────────────────────────────────────

func TestSync_success(t *testing.T) {
	srv := stubGuardianServer(t)
	defer srv.Close()

	c := client.New(srv.URL)
	result, err := c.Sync(context.Background(), &client.SyncRequest{
		DeviceKey: testKey,
		Ledger: client.LedgerPayload{
			DeviceID: "pixel-7a",
			Blocks: []client.Block{
				{Index: 0, DeviceID: "SYSTEM", Keyword: "GENESIS", PreviousHash: "0"},
				{Index: 1, DeviceID: "pixel-7a", AppName: "TikTok", Keyword: "gambling", PreviousHash: "aa"},
			},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if result.Status != "success" {
		t.Errorf("status = %q, want success", result.Status)
	}
	if result.ViolationsCount != 1 {
		t.Errorf("violations_count = %d, want 1", result.ViolationsCount)
	}
}

func TestSync_validationError(t *testing.T) {
	srv := stubGuardianServer(t)
	defer srv.Close()

	c := client.New(srv.URL)
	_, err := c.Sync(context.Background(), &client.SyncRequest{DeviceKey: "short-key"})
	if err == nil {
		t.Fatal("expected error for bad device key")
	}
	var apiErr *client.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error type = %T, want *client.APIError", err)
	}
	if apiErr.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", apiErr.StatusCode)
	}
	if apiErr.Code != "WRONG_SEGMENT_COUNT" {
		t.Errorf("code = %q, want WRONG_SEGMENT_COUNT", apiErr.Code)
	}
}

func TestDashboard(t *testing.T) {
	srv := stubGuardianServer(t)
	defer srv.Close()

	c := client.New(srv.URL)
	dash, err := c.Dashboard(context.Background(), testKey)
	if err != nil {
		t.Fatal(err)
	}
	if dash.TotalViolations != 2 || len(dash.Violations) != 2 {
		t.Fatalf("unexpected dashboard: %+v", dash)
	}
	if dash.Violations[0].AppName != "TikTok" {
		t.Errorf("first violation app = %q, want TikTok", dash.Violations[0].AppName)
	}
	if !dash.ChainIntact {
		t.Error("chain_intact should be true")
	}
}

func TestStats(t *testing.T) {
	srv := stubGuardianServer(t)
	defer srv.Close()

	c := client.New(srv.URL)
	stats, err := c.Stats(context.Background(), testKey)
	if err != nil {
		t.Fatal(err)
	}
	if stats.AppBreakdown["TikTok"] != 1 {
		t.Errorf("TikTok count = %d, want 1", stats.AppBreakdown["TikTok"])
	}
}

func TestVerify_reportsFailure(t *testing.T) {
	srv := stubGuardianServer(t)
	defer srv.Close()

	c := client.New(srv.URL)
	result, err := c.Verify(context.Background(), testKey)
	if err != nil {
		t.Fatal(err)
	}
	if result.Valid {
		t.Error("valid should be false")
	}
	if result.FailureCode != "HASH_MISMATCH" || result.FailedIndex != 1 {
		t.Errorf("failure = %s at %d, want HASH_MISMATCH at 1", result.FailureCode, result.FailedIndex)
	}
}

func TestReports(t *testing.T) {
	srv := stubGuardianServer(t)
	defer srv.Close()

	c := client.New(srv.URL)
	report, err := c.GenerateReport(context.Background(), testKey)
	if err != nil {
		t.Fatal(err)
	}
	if report.ReportID != "RPT-1" || report.Source != "fallback" {
		t.Fatalf("unexpected report: %+v", report)
	}
	if _, ok := report.Raw["recommendations"]; !ok {
		t.Error("Raw should preserve sections the typed struct drops")
	}

	latest, err := c.LatestReport(context.Background(), testKey)
	if err != nil {
		t.Fatal(err)
	}
	if latest.ReportID != "RPT-1" {
		t.Errorf("latest report id = %q, want RPT-1", latest.ReportID)
	}
}

func TestPolicy(t *testing.T) {
	srv := stubGuardianServer(t)
	defer srv.Close()

	c := client.New(srv.URL)
	view, err := c.Policy(context.Background(), testKey)
	if err != nil {
		t.Fatal(err)
	}
	if view.CurrentPolicy.DailyLimitMinutes != 120 {
		t.Errorf("daily limit = %d, want 120", view.CurrentPolicy.DailyLimitMinutes)
	}

	err = c.SetPolicy(context.Background(), testKey, &client.Policy{
		DailyLimitMinutes: 90, WeekendLimitMinutes: 150, Bedtime: "21:00",
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := c.SetPolicy(context.Background(), testKey, &client.Policy{}); err == nil {
		t.Error("expected error for policy without bedtime")
	}
}

func TestStarters(t *testing.T) {
	srv := stubGuardianServer(t)
	defer srv.Close()

	c := client.New(srv.URL)
	starters, err := c.Starters(context.Background(), testKey)
	if err != nil {
		t.Fatal(err)
	}
	if len(starters) != 1 || starters[0].Title != "Favorite Application" {
		t.Fatalf("unexpected starters: %+v", starters)
	}
}

func TestCreateSession_attachesToken(t *testing.T) {
	srv := stubGuardianServer(t)
	defer srv.Close()

	c := client.New(srv.URL)

	// Profile requires the session token in the stub.
	if _, err := c.Profile(context.Background(), testKey); err == nil {
		t.Fatal("expected 401 before session is created")
	}

	token, err := c.CreateSession(context.Background(), testKey)
	if err != nil {
		t.Fatal(err)
	}
	if token != "stub-session-token" {
		t.Errorf("token = %q, want stub-session-token", token)
	}

	profile, err := c.Profile(context.Background(), testKey)
	if err != nil {
		t.Fatal(err)
	}
	if profile["total_violations"].(float64) != 2 {
		t.Errorf("unexpected profile: %+v", profile)
	}
}

func TestWithSessionToken(t *testing.T) {
	srv := stubGuardianServer(t)
	defer srv.Close()

	c := client.New(srv.URL, client.WithSessionToken("stub-session-token"))
	if _, err := c.Profile(context.Background(), testKey); err != nil {
		t.Fatal(err)
	}
}
