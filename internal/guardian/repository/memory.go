package repository

import (
	"context"
	"sync"
	"time"

	"github.com/limitx/guardian/internal/guardian/model"
	"github.com/limitx/guardian/internal/ledger"
	"github.com/limitx/guardian/internal/narrative"
)

// MemoryStore is an in-memory Store for tests and development. Records are
// deep-copied on the way in and out, so callers can never mutate stored state
// through a returned pointer.
type MemoryStore struct {
	mu       sync.RWMutex
	records  map[string]*model.DeviceRecord
	policies map[string][]*model.Policy
	reports  map[string][]*narrative.Report
	nextID   int64
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records:  make(map[string]*model.DeviceRecord),
		policies: make(map[string][]*model.Policy),
		reports:  make(map[string][]*narrative.Report),
	}
}

// Close implements Store.
func (s *MemoryStore) Close() error { return nil }

// Load implements DeviceStore.
func (s *MemoryStore) Load(_ context.Context, deviceKey string) (*model.DeviceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[deviceKey]
	if !ok {
		return nil, ErrNotFound
	}
	return copyRecord(rec), nil
}

// Save implements DeviceStore.
func (s *MemoryStore) Save(_ context.Context, record *model.DeviceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[record.DeviceKey] = copyRecord(record)
	return nil
}

// UpdateIntegrity implements DeviceStore.
func (s *MemoryStore) UpdateIntegrity(_ context.Context, deviceKey string, verified bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[deviceKey]
	if !ok {
		return ErrNotFound
	}
	rec.IntegrityVerified = verified
	return nil
}

// Keys implements DeviceStore.
func (s *MemoryStore) Keys(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.records))
	for k := range s.records {
		keys = append(keys, k)
	}
	return keys, nil
}

// GetPolicy implements PolicyStore.
func (s *MemoryStore) GetPolicy(_ context.Context, deviceKey string) (*model.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	versions := s.policies[deviceKey]
	if len(versions) == 0 {
		return model.DefaultPolicy(deviceKey), nil
	}
	p := *versions[len(versions)-1]
	return &p, nil
}

// SetPolicy implements PolicyStore.
func (s *MemoryStore) SetPolicy(_ context.Context, policy *model.Policy) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	policy.ID = s.nextID
	policy.CreatedAt = time.Now().UTC()
	p := *policy
	s.policies[policy.DeviceKey] = append(s.policies[policy.DeviceKey], &p)
	return nil
}

// PolicyHistory implements PolicyStore, newest first.
func (s *MemoryStore) PolicyHistory(_ context.Context, deviceKey string, limit int) ([]*model.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 20
	}
	versions := s.policies[deviceKey]
	var history []*model.Policy
	for i := len(versions) - 1; i >= 0 && len(history) < limit; i-- {
		p := *versions[i]
		history = append(history, &p)
	}
	return history, nil
}

// SaveReport implements ReportStore.
func (s *MemoryStore) SaveReport(_ context.Context, deviceKey string, report *narrative.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := *report
	s.reports[deviceKey] = append(s.reports[deviceKey], &r)
	return nil
}

// LatestReport implements ReportStore.
func (s *MemoryStore) LatestReport(_ context.Context, deviceKey string) (*narrative.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	reports := s.reports[deviceKey]
	if len(reports) == 0 {
		return nil, ErrNotFound
	}
	r := *reports[len(reports)-1]
	return &r, nil
}

func copyRecord(rec *model.DeviceRecord) *model.DeviceRecord {
	out := *rec
	out.Blocks = make([]ledger.Block, len(rec.Blocks))
	copy(out.Blocks, rec.Blocks)
	return &out
}
