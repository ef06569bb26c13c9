// Package model holds the domain types shared by the guardian service,
// repositories, and HTTP handlers.
package model

import (
	"time"

	"github.com/limitx/guardian/internal/ledger"
)

// DeviceRecord is the persisted unit for one monitored device. It is created
// on the first successful sync and wholly overwritten on every subsequent
// sync; the server never merges chains.
type DeviceRecord struct {
	DeviceKey         string         `json:"device_key"`
	DeviceID          string         `json:"device_id"`
	Blocks            []ledger.Block `json:"blocks"`
	LastSync          time.Time      `json:"last_sync"`
	ClientVersion     string         `json:"client_version"`
	IntegrityVerified bool           `json:"integrity_verified"`
}

// LedgerPayload is the chain portion of a sync submission, as produced by
// the mobile client.
type LedgerPayload struct {
	DeviceID string         `json:"device_id"`
	Blocks   []ledger.Block `json:"blocks"`
}

// SyncRequest is the payload for POST /api/v1/sync.
type SyncRequest struct {
	DeviceKey     string        `json:"device_key" binding:"required"`
	Ledger        LedgerPayload `json:"ledger" binding:"required"`
	ClientVersion string        `json:"client_version"`
}

// SyncSummary is returned after a successful sync.
type SyncSummary struct {
	BlockCount int       `json:"block_count"`
	Timestamp  time.Time `json:"timestamp"`
}

// Violation is the dashboard view of a single block, newest first.
type Violation struct {
	ID        int    `json:"id"` // block index
	DeviceID  string `json:"device_id"`
	AppName   string `json:"app_name"`
	Keyword   string `json:"keyword"`
	Timestamp int64  `json:"timestamp"`
	Date      string `json:"date"` // "2006-01-02 15:04:05", UTC
	Hash      string `json:"hash"`
}

// Policy is a screen-time policy version for a device. The newest row is the
// current policy; older rows form the history.
type Policy struct {
	ID                  int64     `json:"id,omitempty"`
	DeviceKey           string    `json:"-"`
	DailyLimitMinutes   int       `json:"daily_limit_minutes"`
	WeekendLimitMinutes int       `json:"weekend_limit_minutes"`
	Bedtime             string    `json:"bedtime"` // "21:30"
	CreatedAt           time.Time `json:"created_at,omitempty"`
}

// DefaultPolicy is returned before a guardian has set anything.
func DefaultPolicy(deviceKey string) *Policy {
	return &Policy{
		DeviceKey:           deviceKey,
		DailyLimitMinutes:   120,
		WeekendLimitMinutes: 180,
		Bedtime:             "21:30",
	}
}
