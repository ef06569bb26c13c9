package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/limitx/guardian/internal/guardian/model"
	"github.com/limitx/guardian/internal/ledger"
	"github.com/limitx/guardian/internal/narrative"
	_ "github.com/mattn/go-sqlite3"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS device_records (
	device_key         TEXT PRIMARY KEY,
	device_id          TEXT NOT NULL DEFAULT '',
	blocks             TEXT NOT NULL DEFAULT '[]',
	last_sync          TIMESTAMP NOT NULL,
	client_version     TEXT NOT NULL DEFAULT '',
	integrity_verified BOOLEAN NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS policies (
	id                    INTEGER PRIMARY KEY AUTOINCREMENT,
	device_key            TEXT NOT NULL,
	daily_limit_minutes   INTEGER NOT NULL,
	weekend_limit_minutes INTEGER NOT NULL,
	bedtime               TEXT NOT NULL,
	created_at            TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_policies_key ON policies (device_key, id DESC);
CREATE TABLE IF NOT EXISTS reports (
	id         TEXT PRIMARY KEY,
	device_key TEXT NOT NULL,
	report     TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_reports_key ON reports (device_key, created_at DESC);
`

// SQLiteStore implements Store against an embedded SQLite database. Intended
// for single-box deployments that do not want to run Postgres.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and if needed initialises) the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite serialises writers; one connection avoids SQLITE_BUSY churn.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close() //nolint:errcheck
		return nil, fmt.Errorf("init sqlite schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Load implements DeviceStore.
func (s *SQLiteStore) Load(ctx context.Context, deviceKey string) (*model.DeviceRecord, error) {
	rec := &model.DeviceRecord{}
	var blocksJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT device_key, device_id, blocks, last_sync, client_version, integrity_verified
		 FROM device_records WHERE device_key = ?`, deviceKey,
	).Scan(&rec.DeviceKey, &rec.DeviceID, &blocksJSON, &rec.LastSync, &rec.ClientVersion, &rec.IntegrityVerified)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load device record: %w", err)
	}
	if err := json.Unmarshal([]byte(blocksJSON), &rec.Blocks); err != nil {
		return nil, fmt.Errorf("decode blocks: %w", err)
	}
	if rec.Blocks == nil {
		rec.Blocks = []ledger.Block{}
	}
	return rec, nil
}

// Save implements DeviceStore as a single atomic REPLACE.
func (s *SQLiteStore) Save(ctx context.Context, record *model.DeviceRecord) error {
	blocksJSON, err := json.Marshal(record.Blocks)
	if err != nil {
		return fmt.Errorf("encode blocks: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO device_records
			(device_key, device_id, blocks, last_sync, client_version, integrity_verified)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		record.DeviceKey, record.DeviceID, string(blocksJSON),
		record.LastSync, record.ClientVersion, record.IntegrityVerified,
	)
	if err != nil {
		return fmt.Errorf("save device record: %w", err)
	}
	return nil
}

// UpdateIntegrity implements DeviceStore with a single-column UPDATE so a
// concurrent full-record Save is never overwritten with stale blocks.
func (s *SQLiteStore) UpdateIntegrity(ctx context.Context, deviceKey string, verified bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE device_records SET integrity_verified = ? WHERE device_key = ?`,
		verified, deviceKey,
	)
	if err != nil {
		return fmt.Errorf("update integrity flag: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update integrity flag: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Keys implements DeviceStore.
func (s *SQLiteStore) Keys(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT device_key FROM device_records ORDER BY device_key`)
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

// GetPolicy implements PolicyStore.
func (s *SQLiteStore) GetPolicy(ctx context.Context, deviceKey string) (*model.Policy, error) {
	p := &model.Policy{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, device_key, daily_limit_minutes, weekend_limit_minutes, bedtime, created_at
		 FROM policies WHERE device_key = ? ORDER BY id DESC LIMIT 1`, deviceKey,
	).Scan(&p.ID, &p.DeviceKey, &p.DailyLimitMinutes, &p.WeekendLimitMinutes, &p.Bedtime, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.DefaultPolicy(deviceKey), nil
	}
	if err != nil {
		return nil, fmt.Errorf("get policy: %w", err)
	}
	return p, nil
}

// SetPolicy implements PolicyStore.
func (s *SQLiteStore) SetPolicy(ctx context.Context, policy *model.Policy) error {
	policy.CreatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO policies (device_key, daily_limit_minutes, weekend_limit_minutes, bedtime, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		policy.DeviceKey, policy.DailyLimitMinutes, policy.WeekendLimitMinutes,
		policy.Bedtime, policy.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("set policy: %w", err)
	}
	policy.ID, _ = res.LastInsertId()
	return nil
}

// PolicyHistory implements PolicyStore, newest first.
func (s *SQLiteStore) PolicyHistory(ctx context.Context, deviceKey string, limit int) ([]*model.Policy, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, device_key, daily_limit_minutes, weekend_limit_minutes, bedtime, created_at
		 FROM policies WHERE device_key = ? ORDER BY id DESC LIMIT ?`, deviceKey, limit,
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
func (s *SQLiteStore) SaveReport(ctx context.Context, deviceKey string, report *narrative.Report) error {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO reports (id, device_key, report, created_at) VALUES (?, ?, ?, ?)`,
		uuid.New().String(), deviceKey, string(reportJSON), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("save report: %w", err)
	}
	return nil
}

// LatestReport implements ReportStore.
func (s *SQLiteStore) LatestReport(ctx context.Context, deviceKey string) (*narrative.Report, error) {
	var reportJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT report FROM reports WHERE device_key = ? ORDER BY created_at DESC, id DESC LIMIT 1`, deviceKey,
	).Scan(&reportJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("latest report: %w", err)
	}
	report := &narrative.Report{}
	if err := json.Unmarshal([]byte(reportJSON), report); err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}
	return report, nil
}
