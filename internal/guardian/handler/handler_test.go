package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/limitx/guardian/internal/analytics"
	"github.com/limitx/guardian/internal/devicekey"
	"github.com/limitx/guardian/internal/guardian/handler"
	"github.com/limitx/guardian/internal/guardian/model"
	"github.com/limitx/guardian/internal/guardian/repository"
	"github.com/limitx/guardian/internal/guardian/service"
	"github.com/limitx/guardian/internal/identity"
	"github.com/limitx/guardian/internal/ledger"
	"github.com/limitx/guardian/internal/narrative"
	"go.uber.org/zap"
)

const testDifficulty = 1

func testKey() string {
	segments := make([]string, devicekey.SegmentCount)
	for i := range segments {
		segments[i] = "deadbeef"
	}
	return strings.Join(segments, "-")
}

// newTestRouter assembles the full API router against an in-memory store.
func newTestRouter(t *testing.T) (*gin.Engine, *repository.MemoryStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := repository.NewMemoryStore()
	logger := zap.NewNop()
	validator := devicekey.NewValidator("")
	verifier := ledger.NewVerifier(testDifficulty)

	syncSvc := service.NewSyncService(store, validator, verifier, nil, logger)
	insightSvc := service.NewInsightService(store, validator, verifier,
		analytics.NewAggregator(nil, nil), narrative.NewService(nil, logger), logger)
	issuer := identity.NewSessionIssuer([]byte("test-secret"), "https://guardian.test", time.Hour)

	router := gin.New()
	api := router.Group("/api/v1")
	session := handler.OptionalSession(issuer)
	handler.NewSyncHandler(syncSvc, logger).Register(api)
	handler.NewSessionHandler(issuer, validator, logger).Register(api)
	handler.NewDeviceHandler(insightSvc, logger).Register(api, session)
	handler.NewReportHandler(insightSvc, logger).Register(api, session)
	return router, store
}

func mineChain(t *testing.T, events [][2]string) []ledger.Block {
	t.Helper()
	return ledger.NewMiner(testDifficulty).MineChain("device-1", events, 1700000000000, 60_000)
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func syncChain(t *testing.T, router *gin.Engine, blocks []ledger.Block) {
	t.Helper()
	w := doJSON(t, router, http.MethodPost, "/api/v1/sync", model.SyncRequest{
		DeviceKey:     testKey(),
		Ledger:        model.LedgerPayload{DeviceID: "device-1", Blocks: blocks},
		ClientVersion: "1.2.0",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("sync: expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestSyncEndpoint_acceptsValidChain(t *testing.T) {
	router, store := newTestRouter(t)

	blocks := mineChain(t, [][2]string{{"SYSTEM", "GENESIS"}, {"Chrome", "science"}, {"TikTok", "dance"}})
	w := doJSON(t, router, http.MethodPost, "/api/v1/sync", model.SyncRequest{
		DeviceKey: testKey(),
		Ledger:    model.LedgerPayload{DeviceID: "device-1", Blocks: blocks},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Status          string `json:"status"`
		ViolationsCount int    `json:"violations_count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "success" || resp.ViolationsCount != 3 {
		t.Fatalf("unexpected response: %+v", resp)
	}

	rec, err := store.Load(context.Background(), testKey())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(rec.Blocks) != 3 || !rec.IntegrityVerified {
		t.Fatalf("unexpected stored record: %+v", rec)
	}
}

func TestSyncEndpoint_rejectsBadKey(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/v1/sync", model.SyncRequest{
		DeviceKey: "not-18-segments",
		Ledger:    model.LedgerPayload{Blocks: mineChain(t, [][2]string{{"SYSTEM", "GENESIS"}})},
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Code string `json:"code"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp) //nolint:errcheck
	if resp.Code != "WRONG_SEGMENT_COUNT" {
		t.Fatalf("expected WRONG_SEGMENT_COUNT, got %q", resp.Code)
	}
}

func TestSyncEndpoint_rejectsTamperedChain(t *testing.T) {
	router, _ := newTestRouter(t)

	blocks := mineChain(t, [][2]string{{"SYSTEM", "GENESIS"}, {"Chrome", "science"}, {"Chrome", "cats"}})
	blocks[1].Keyword = "tampered"

	w := doJSON(t, router, http.MethodPost, "/api/v1/sync", model.SyncRequest{
		DeviceKey: testKey(),
		Ledger:    model.LedgerPayload{DeviceID: "device-1", Blocks: blocks},
	})
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Code  string `json:"code"`
		Index int    `json:"index"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp) //nolint:errcheck
	if resp.Code != "HASH_MISMATCH" || resp.Index != 1 {
		t.Fatalf("expected HASH_MISMATCH at index 1, got %+v", resp)
	}
}

func TestSyncEndpoint_missingFields(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/v1/sync", gin.H{"client_version": "1.2.0"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestDashboardEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)
	syncChain(t, router, mineChain(t, [][2]string{{"SYSTEM", "GENESIS"}, {"Chrome", "first"}, {"TikTok", "second"}}))

	w := doJSON(t, router, http.MethodGet, "/api/v1/dashboard/"+testKey(), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var data service.DashboardData
	if err := json.Unmarshal(w.Body.Bytes(), &data); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if data.TotalViolations != 3 || !data.ChainIntact {
		t.Fatalf("unexpected dashboard: %+v", data)
	}
	if data.Violations[0].Keyword != "second" {
		t.Fatalf("expected newest-first, got %+v", data.Violations[0])
	}
}

func TestDashboardEndpoint_unknownDevice(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(t, router, http.MethodGet, "/api/v1/dashboard/"+testKey(), nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestStatsEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)
	syncChain(t, router, mineChain(t, [][2]string{{"SYSTEM", "GENESIS"}, {"Chrome", "science"}, {"Chrome", "cats"}}))

	w := doJSON(t, router, http.MethodGet, "/api/v1/stats/"+testKey(), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var stats service.DeviceStats
	if err := json.Unmarshal(w.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if stats.TotalViolations != 3 || stats.AppBreakdown["Chrome"] != 2 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestVerifyEndpoint_detectsStorageTampering(t *testing.T) {
	router, store := newTestRouter(t)
	syncChain(t, router, mineChain(t, [][2]string{{"SYSTEM", "GENESIS"}, {"Chrome", "science"}}))

	// Edit the stored chain behind the API's back.
	rec, err := store.Load(context.Background(), testKey())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	rec.Blocks[1].Keyword = "edited at rest"
	if err := store.Save(context.Background(), rec); err != nil {
		t.Fatalf("Save: %v", err)
	}

	w := doJSON(t, router, http.MethodGet, "/api/v1/verify/"+testKey(), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var result service.VerifyResult
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.Valid || result.FailureCode != "HASH_MISMATCH" {
		t.Fatalf("unexpected verify result: %+v", result)
	}
}

func TestProfileEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)
	syncChain(t, router, mineChain(t, [][2]string{
		{"SYSTEM", "GENESIS"},
		{"YouTube", "funny video"},
		{"YouTube", "funny video"},
		{"Chrome", "science"},
	}))

	w := doJSON(t, router, http.MethodGet, "/api/v1/profile/"+testKey(), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var profile analytics.BehavioralProfile
	if err := json.Unmarshal(w.Body.Bytes(), &profile); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if profile.TotalViolations != 4 || profile.TopApps[0].AppName != "YouTube" {
		t.Fatalf("unexpected profile: %+v", profile)
	}
}

func TestReportEndpoints(t *testing.T) {
	router, _ := newTestRouter(t)
	syncChain(t, router, mineChain(t, [][2]string{{"SYSTEM", "GENESIS"}, {"Chrome", "science"}}))

	w := doJSON(t, router, http.MethodGet, "/api/v1/reports/"+testKey(), nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 before generation, got %d", w.Code)
	}

	w = doJSON(t, router, http.MethodPost, "/api/v1/reports/"+testKey(), nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var report narrative.Report
	if err := json.Unmarshal(w.Body.Bytes(), &report); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if report.Source != "fallback" || report.ReportID == "" {
		t.Fatalf("unexpected report: %+v", report)
	}

	w = doJSON(t, router, http.MethodGet, "/api/v1/reports/"+testKey(), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 after generation, got %d", w.Code)
	}
}

func TestPolicyEndpoints(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(t, router, http.MethodGet, "/api/v1/policy/"+testKey(), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var got struct {
		CurrentPolicy model.Policy    `json:"current_policy"`
		PolicyHistory []*model.Policy `json:"policy_history"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.CurrentPolicy.DailyLimitMinutes != 120 || len(got.PolicyHistory) != 0 {
		t.Fatalf("expected default policy with empty history, got %+v", got)
	}

	w = doJSON(t, router, http.MethodPut, "/api/v1/policy/"+testKey(), gin.H{
		"daily_limit_minutes":   90,
		"weekend_limit_minutes": 150,
		"bedtime":               "21:00",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, router, http.MethodGet, "/api/v1/policy/"+testKey(), nil)
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.CurrentPolicy.DailyLimitMinutes != 90 || len(got.PolicyHistory) != 1 {
		t.Fatalf("expected updated policy, got %+v", got)
	}
}

func TestStartersEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)

	events := [][2]string{{"SYSTEM", "GENESIS"}}
	for i := 0; i < 4; i++ {
		events = append(events, [2]string{"YouTube", "funny video"})
	}
	syncChain(t, router, mineChain(t, events))

	w := doJSON(t, router, http.MethodGet, "/api/v1/conversation-starters/"+testKey(), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp struct {
		ConversationStarters []analytics.ConversationStarter `json:"conversation_starters"`
		Count                int                             `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Count == 0 || resp.ConversationStarters[0].Title != "Favorite Application" {
		t.Fatalf("unexpected starters: %+v", resp)
	}
}

func TestSessionEndpointAndScoping(t *testing.T) {
	router, _ := newTestRouter(t)
	syncChain(t, router, mineChain(t, [][2]string{{"SYSTEM", "GENESIS"}}))

	w := doJSON(t, router, http.MethodPost, "/api/v1/session", gin.H{"device_key": testKey()})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var sess struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &sess); err != nil || sess.Token == "" {
		t.Fatalf("expected token, got %s (err %v)", w.Body.String(), err)
	}

	// A token scoped to this key is accepted.
	req := httptest.NewRequest(http.MethodGet, "/api/v1/dashboard/"+testKey(), nil)
	req.Header.Set("Authorization", "Bearer "+sess.Token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with matching token, got %d", rec.Code)
	}

	// A token for a different key is rejected.
	otherKey := strings.Replace(testKey(), "deadbeef", "0badc0de", 1)
	w = doJSON(t, router, http.MethodPost, "/api/v1/session", gin.H{"device_key": otherKey})
	json.Unmarshal(w.Body.Bytes(), &sess) //nolint:errcheck

	req = httptest.NewRequest(http.MethodGet, "/api/v1/dashboard/"+testKey(), nil)
	req.Header.Set("Authorization", "Bearer "+sess.Token)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 with mismatched token, got %d", rec.Code)
	}

	// Garbage tokens are rejected outright.
	req = httptest.NewRequest(http.MethodGet, "/api/v1/dashboard/"+testKey(), nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with invalid token, got %d", rec.Code)
	}
}

func TestSessionEndpoint_rejectsBadKey(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/v1/session", gin.H{"device_key": "nope"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestRateLimiter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/ping", handler.PerIPRateLimit(1, 2), func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})

	codes := make([]int, 0, 4)
	for i := 0; i < 4; i++ {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK {
		t.Fatalf("burst requests should pass, got %v", codes)
	}
	if codes[3] != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after burst, got %v", codes)
	}
}
