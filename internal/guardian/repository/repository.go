// Package repository provides the keyed record stores behind the guardian
// service: device records, screen-time policies, and generated reports.
//
// Three implementations exist: Postgres for production, SQLite for
// single-box deployments, and an in-memory store for tests and development.
// All of them make a device record save a single atomic full overwrite, so
// concurrent syncs for the same key never interleave partial state.
package repository

import (
	"context"
	"errors"

	"github.com/limitx/guardian/internal/guardian/model"
	"github.com/limitx/guardian/internal/narrative"
)

// ErrNotFound is returned when no record exists for a device key.
var ErrNotFound = errors.New("device record not found")

// DeviceStore persists one DeviceRecord per device key.
type DeviceStore interface {
	// Load returns the record for deviceKey, or ErrNotFound.
	Load(ctx context.Context, deviceKey string) (*model.DeviceRecord, error)

	// Save overwrites the record for record.DeviceKey in one atomic write.
	Save(ctx context.Context, record *model.DeviceRecord) error

	// UpdateIntegrity sets only the integrity flag for deviceKey, leaving
	// the stored chain untouched. A sync committing concurrently keeps its
	// blocks; callers that re-verified a stale copy cannot clobber them.
	UpdateIntegrity(ctx context.Context, deviceKey string, verified bool) error

	// Keys lists every stored device key. Used by the integrity sweeper.
	Keys(ctx context.Context) ([]string, error)
}

// PolicyStore persists screen-time policy versions. Setting a policy appends
// a new version; the newest version is the current policy.
type PolicyStore interface {
	GetPolicy(ctx context.Context, deviceKey string) (*model.Policy, error)
	SetPolicy(ctx context.Context, policy *model.Policy) error
	PolicyHistory(ctx context.Context, deviceKey string, limit int) ([]*model.Policy, error)
}

// ReportStore persists generated narrative reports.
type ReportStore interface {
	SaveReport(ctx context.Context, deviceKey string, report *narrative.Report) error
	// LatestReport returns the most recent report, or ErrNotFound.
	LatestReport(ctx context.Context, deviceKey string) (*narrative.Report, error)
}

// Store is the full persistence surface plus its lifecycle.
type Store interface {
	DeviceStore
	PolicyStore
	ReportStore
	Close() error
}
