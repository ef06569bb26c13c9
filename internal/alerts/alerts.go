// Package alerts delivers risky-activity notifications to a configured
// guardian webhook endpoint.
package alerts

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/limitx/guardian/internal/guardian/model"
	"go.uber.org/zap"
)

// EventRiskyActivity is the only event type currently dispatched.
const EventRiskyActivity = "device.risky_activity"

// Event is the JSON body posted to the webhook endpoint.
type Event struct {
	Type       string            `json:"type"`
	Timestamp  time.Time         `json:"timestamp"`
	DeviceKey  string            `json:"device_key"`
	Violations []model.Violation `json:"violations"`
}

// MetricsRecorder is an optional callback for recording delivery outcomes.
type MetricsRecorder func(success bool)

// Dispatcher posts alert events to one configured endpoint, signing each
// body with HMAC-SHA256 so the receiver can authenticate it. A zero-value
// URL disables dispatch entirely.
type Dispatcher struct {
	url        string
	secret     string
	httpClient *http.Client
	onMetrics  MetricsRecorder
	logger     *zap.Logger
}

// NewDispatcher creates a Dispatcher for url, signing with secret.
func NewDispatcher(url, secret string, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		url:        url,
		secret:     secret,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
}

// SetMetricsRecorder configures the metrics callback.
func (d *Dispatcher) SetMetricsRecorder(fn MetricsRecorder) {
	d.onMetrics = fn
}

// NotifyRisk implements service.RiskNotifier. Delivery runs in the
// background; a sync never waits on the webhook endpoint.
func (d *Dispatcher) NotifyRisk(ctx context.Context, deviceKey string, violations []model.Violation) {
	if d.url == "" {
		return
	}
	event := Event{
		Type:       EventRiskyActivity,
		Timestamp:  time.Now().UTC(),
		DeviceKey:  deviceKey,
		Violations: violations,
	}
	go d.deliver(context.WithoutCancel(ctx), event)
}

// deliver sends the event with retries.
func (d *Dispatcher) deliver(ctx context.Context, event Event) {
	body, err := json.Marshal(event)
	if err != nil {
		d.logger.Error("alert: marshal event", zap.Error(err))
		return
	}
	signature := signPayload(body, d.secret)

	// Retry with exponential backoff: 1s, 5s, 25s.
	delays := []time.Duration{0, 1 * time.Second, 5 * time.Second, 25 * time.Second}

	for attempt := 1; attempt <= 3; attempt++ {
		if attempt > 1 {
			time.Sleep(delays[attempt])
		}

		success, errMsg := d.doDelivery(ctx, body, signature)
		if d.onMetrics != nil {
			d.onMetrics(success)
		}
		if success {
			return
		}
		d.logger.Warn("alert: delivery failed",
			zap.String("url", d.url),
			zap.Int("attempt", attempt),
			zap.String("error", errMsg),
		)
	}
}

// doDelivery performs a single HTTP POST delivery.
func (d *Dispatcher) doDelivery(ctx context.Context, body []byte, signature string) (bool, string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(body))
	if err != nil {
		return false, err.Error()
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Guardian-Signature", signature)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return false, err.Error()
	}
	defer resp.Body.Close()
	io.ReadAll(io.LimitReader(resp.Body, 1024)) //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return false, fmt.Sprintf("HTTP %d", resp.StatusCode)
	}
	return true, ""
}

// signPayload computes an HMAC-SHA256 signature.
func signPayload(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}
