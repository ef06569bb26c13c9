package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/limitx/guardian/internal/guardian/model"
	"github.com/limitx/guardian/internal/ledger"
	"github.com/limitx/guardian/internal/narrative"
)

// PostgresStore implements Store against PostgreSQL.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore creates a PostgresStore backed by the given pool.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// Close implements Store.
func (s *PostgresStore) Close() error {
	s.db.Close()
	return nil
}

// Load implements DeviceStore.
func (s *PostgresStore) Load(ctx context.Context, deviceKey string) (*model.DeviceRecord, error) {
	rec := &model.DeviceRecord{}
	var blocksJSON []byte
	err := s.db.QueryRow(ctx,
		`SELECT device_key, device_id, blocks, last_sync, client_version, integrity_verified
		 FROM device_records WHERE device_key = $1`, deviceKey,
	).Scan(&rec.DeviceKey, &rec.DeviceID, &blocksJSON, &rec.LastSync, &rec.ClientVersion, &rec.IntegrityVerified)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load device record: %w", err)
	}
	if err := json.Unmarshal(blocksJSON, &rec.Blocks); err != nil {
		return nil, fmt.Errorf("decode blocks: %w", err)
	}
	if rec.Blocks == nil {
		rec.Blocks = []ledger.Block{}
	}
	return rec, nil
}

// Save implements DeviceStore. The UPSERT makes the read-then-overwrite of a
// sync atomic per key; rows for different keys never contend.
func (s *PostgresStore) Save(ctx context.Context, record *model.DeviceRecord) error {
	blocksJSON, err := json.Marshal(record.Blocks)
	if err != nil {
		return fmt.Errorf("encode blocks: %w", err)
	}

	_, err = s.db.Exec(ctx,
		`INSERT INTO device_records (device_key, device_id, blocks, last_sync, client_version, integrity_verified)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (device_key) DO UPDATE SET
			device_id = EXCLUDED.device_id,
			blocks = EXCLUDED.blocks,
			last_sync = EXCLUDED.last_sync,
			client_version = EXCLUDED.client_version,
			integrity_verified = EXCLUDED.integrity_verified`,
		record.DeviceKey, record.DeviceID, blocksJSON,
		record.LastSync, record.ClientVersion, record.IntegrityVerified,
	)
	if err != nil {
		return fmt.Errorf("save device record: %w", err)
	}
	return nil
}

// Keys implements DeviceStore.
// UpdateIntegrity implements DeviceStore with a single-column UPDATE so a
// concurrent full-record Save is never overwritten with stale blocks.
func (s *PostgresStore) UpdateIntegrity(ctx context.Context, deviceKey string, verified bool) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE device_records SET integrity_verified = $2 WHERE device_key = $1`,
		deviceKey, verified,
	)
	if err != nil {
		return fmt.Errorf("update integrity flag: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Keys implements DeviceStore.
func (s *PostgresStore) Keys(ctx context.Context) ([]string, error) {
	rows, err := s.db.Query(ctx, `SELECT device_key FROM device_records ORDER BY device_key`)
	if err != nil {
		return nil, fmt.Errorf("list device keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scan device key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// GetPolicy implements PolicyStore. Absent any stored policy it returns the
// default rather than ErrNotFound: every device has an effective policy.
func (s *PostgresStore) GetPolicy(ctx context.Context, deviceKey string) (*model.Policy, error) {
	p := &model.Policy{}
	err := s.db.QueryRow(ctx,
		`SELECT id, device_key, daily_limit_minutes, weekend_limit_minutes, bedtime, created_at
		 FROM policies WHERE device_key = $1 ORDER BY id DESC LIMIT 1`, deviceKey,
	).Scan(&p.ID, &p.DeviceKey, &p.DailyLimitMinutes, &p.WeekendLimitMinutes, &p.Bedtime, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.DefaultPolicy(deviceKey), nil
	}
	if err != nil {
		return nil, fmt.Errorf("get policy: %w", err)
	}
	return p, nil
}

// SetPolicy implements PolicyStore.
func (s *PostgresStore) SetPolicy(ctx context.Context, policy *model.Policy) error {
	policy.CreatedAt = time.Now().UTC()
	err := s.db.QueryRow(ctx,
		`INSERT INTO policies (device_key, daily_limit_minutes, weekend_limit_minutes, bedtime, created_at)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		policy.DeviceKey, policy.DailyLimitMinutes, policy.WeekendLimitMinutes,
		policy.Bedtime, policy.CreatedAt,
	).Scan(&policy.ID)
	if err != nil {
		return fmt.Errorf("set policy: %w", err)
	}
	return nil
}

// PolicyHistory implements PolicyStore, newest first.
func (s *PostgresStore) PolicyHistory(ctx context.Context, deviceKey string, limit int) ([]*model.Policy, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(ctx,
		`SELECT id, device_key, daily_limit_minutes, weekend_limit_minutes, bedtime, created_at
		 FROM policies WHERE device_key = $1 ORDER BY id DESC LIMIT $2`, deviceKey, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("policy history: %w", err)
	}
	defer rows.Close()

	var history []*model.Policy
	for rows.Next() {
		p := &model.Policy{}
		if err := rows.Scan(&p.ID, &p.DeviceKey, &p.DailyLimitMinutes,
			&p.WeekendLimitMinutes, &p.Bedtime, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan policy: %w", err)
		}
		history = append(history, p)
	}
	return history, rows.Err()
}

// SaveReport implements ReportStore.
func (s *PostgresStore) SaveReport(ctx context.Context, deviceKey string, report *narrative.Report) error {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	_, err = s.db.Exec(ctx,
		`INSERT INTO reports (id, device_key, report, created_at) VALUES ($1, $2, $3, $4)`,
		uuid.New(), deviceKey, reportJSON, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("save report: %w", err)
	}
	return nil
}

// LatestReport implements ReportStore.
func (s *PostgresStore) LatestReport(ctx context.Context, deviceKey string) (*narrative.Report, error) {
	var reportJSON []byte
	err := s.db.QueryRow(ctx,
		`SELECT report FROM reports WHERE device_key = $1 ORDER BY created_at DESC LIMIT 1`, deviceKey,
	).Scan(&reportJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("latest report: %w", err)
	}
	report := &narrative.Report{}
	if err := json.Unmarshal(reportJSON, report); err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}
	return report, nil
}
