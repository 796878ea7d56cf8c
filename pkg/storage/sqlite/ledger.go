package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"

	"github.com/redromiee/bag-tracker/pkg/models"
	"github.com/redromiee/bag-tracker/pkg/storage/model"
)

var log = logrus.StandardLogger().WithField("package", "storage/sqlite")

var _ model.Ledger = (*Ledger)(nil)

type Ledger struct {
	db *sql.DB
}

// Open opens (or creates) the ledger database at path. ":memory:" is accepted.
func Open(path string) (*Ledger, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if path == ":memory:" {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}
	l, err := New(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return l, nil
}

// New uses an already opened database and makes sure the schema exists.
func New(db *sql.DB) (*Ledger, error) {
	if _, err := db.Exec(SchemaSQL); err != nil {
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Ledger{db: db}, nil
}

func (l *Ledger) DB() *sql.DB {
	return l.db
}

func (l *Ledger) Close() error {
	return l.db.Close()
}

func (l *Ledger) Append(ctx context.Context, e models.LedgerEntry) error {
	scanId := sql.NullString{String: e.ScanId, Valid: e.ScanId != ""}
	status := e.Status
	if status == "" {
		status = models.StatusScanned
	}
	res, err := l.db.ExecContext(ctx, `
		INSERT INTO scans (id, scan_id, timestamp, received_at, scan_type, bin_id, bag_id, username, branch, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING`,
		e.Id, scanId, formatTime(e.Timestamp), formatTime(e.ReceivedAt),
		string(e.ScanType), e.BinId, e.BagId, e.Username, e.Branch, status,
	)
	if err != nil {
		return fmt.Errorf("insert scan: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert scan: %w", err)
	}
	if n == 0 {
		return model.ErrDuplicate
	}
	log.Debugf("appended %s %s/%s", e.ScanType, e.BinId, e.BagId)
	return nil
}

func (l *Ledger) Delete(ctx context.Context, key models.ScanKey) (int, error) {
	res, err := l.db.ExecContext(ctx,
		`DELETE FROM scans WHERE bin_id = ? AND bag_id = ? AND scan_type = ?`,
		key.BinId, key.BagId, string(key.ScanType),
	)
	if err != nil {
		return 0, fmt.Errorf("delete scan: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete scan: %w", err)
	}
	return int(n), nil
}

func (l *Ledger) List(ctx context.Context, f models.LedgerFilter) ([]models.LedgerEntry, error) {
	var where []string
	var args []any
	if !f.From.IsZero() {
		where = append(where, "timestamp >= ?")
		args = append(args, formatTime(f.From))
	}
	if !f.To.IsZero() {
		where = append(where, "timestamp < ?")
		args = append(args, formatTime(f.To))
	}
	if f.Branch != "" {
		where = append(where, "branch = ?")
		args = append(args, f.Branch)
	}

	query := `SELECT id, scan_id, timestamp, received_at, scan_type, bin_id, bag_id, username, branch, status FROM scans`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY timestamp ASC, rowid ASC"

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list scans: %w", err)
	}
	defer rows.Close()

	var entries []models.LedgerEntry
	for rows.Next() {
		var (
			e                     models.LedgerEntry
			scanId                sql.NullString
			timestamp, receivedAt string
			scanType              string
		)
		if err := rows.Scan(&e.Id, &scanId, &timestamp, &receivedAt, &scanType, &e.BinId, &e.BagId, &e.Username, &e.Branch, &e.Status); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		e.ScanId = scanId.String
		e.ScanType = models.ScanType(scanType)
		if e.Timestamp, err = time.Parse(timeLayout, timestamp); err != nil {
			return nil, fmt.Errorf("parse timestamp of %s: %w", e.Id, err)
		}
		if e.ReceivedAt, err = time.Parse(timeLayout, receivedAt); err != nil {
			return nil, fmt.Errorf("parse received_at of %s: %w", e.Id, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}
