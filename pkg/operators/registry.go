// Package operators keeps the list of people allowed to record scans.
//
// Tokens are stored as bcrypt hashes. An operator must be approved before the
// console accepts their session, and revoking approval ends running sessions
// at their next approval check.
package operators

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/redromiee/bag-tracker/pkg/models"
)

var log = logrus.StandardLogger().WithField("package", "operators")

var (
	ErrNotFound     = errors.New("operator not found")
	ErrExists       = errors.New("operator already exists")
	ErrInvalidToken = errors.New("invalid token")
	ErrEmptyName    = errors.New("username must not be empty")
)

const SchemaSQL = `
CREATE TABLE IF NOT EXISTS operators (
	username TEXT PRIMARY KEY,
	token_hash TEXT NOT NULL,
	branch TEXT NOT NULL DEFAULT '',
	approved INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL
);
`

type Registry struct {
	db   *sql.DB
	cost int
	now  func() time.Time
}

type Option func(*Registry)

// WithCost sets the bcrypt cost used for new tokens.
func WithCost(cost int) Option {
	return func(r *Registry) {
		r.cost = cost
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

func Open(path string, opts ...Option) (*Registry, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	r, err := New(db, opts...)
	if err != nil {
		db.Close()
		return nil, err
	}
	return r, nil
}

// New creates the operators table in db if needed. The database may be
// shared with the sqlite ledger.
func New(db *sql.DB, opts ...Option) (*Registry, error) {
	r := &Registry{
		db:   db,
		cost: bcrypt.DefaultCost,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if _, err := db.Exec(SchemaSQL); err != nil {
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return r, nil
}

func (r *Registry) Close() error {
	return r.db.Close()
}

// GenerateToken returns a fresh random token to hand to an operator.
func GenerateToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Add registers a new, not yet approved operator.
func (r *Registry) Add(ctx context.Context, username, token, branch string) (*models.Operator, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, ErrEmptyName
	}
	if token == "" {
		return nil, ErrInvalidToken
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(token), r.cost)
	if err != nil {
		return nil, fmt.Errorf("hash token: %w", err)
	}

	op := &models.Operator{
		Username:  username,
		TokenHash: string(hash),
		Branch:    branch,
		CreatedAt: r.now().UTC().Truncate(time.Second),
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO operators (username, token_hash, branch, approved, created_at) VALUES (?, ?, ?, 0, ?)
		ON CONFLICT(username) DO NOTHING`,
		op.Username, op.TokenHash, op.Branch, op.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return nil, fmt.Errorf("insert operator: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrExists
	}
	log.Infof("added operator %s (branch %q)", op.Username, op.Branch)
	return op, nil
}

func (r *Registry) Approve(ctx context.Context, username string) error {
	return r.setApproved(ctx, username, true)
}

func (r *Registry) Revoke(ctx context.Context, username string) error {
	return r.setApproved(ctx, username, false)
}

func (r *Registry) setApproved(ctx context.Context, username string, approved bool) error {
	res, err := r.db.ExecContext(ctx, `UPDATE operators SET approved = ? WHERE username = ?`, approved, username)
	if err != nil {
		return fmt.Errorf("update operator: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	log.Infof("operator %s approved=%v", username, approved)
	return nil
}

const selectOperator = `SELECT username, token_hash, branch, approved, created_at FROM operators`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOperator(row rowScanner) (*models.Operator, error) {
	var (
		op        models.Operator
		createdAt string
	)
	if err := row.Scan(&op.Username, &op.TokenHash, &op.Branch, &op.Approved, &createdAt); err != nil {
		return nil, err
	}
	t, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at of %s: %w", op.Username, err)
	}
	op.CreatedAt = t
	return &op, nil
}

func (r *Registry) Lookup(ctx context.Context, username string) (*models.Operator, error) {
	op, err := scanOperator(r.db.QueryRowContext(ctx, selectOperator+` WHERE username = ?`, username))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return op, err
}

// Verify checks the token of username. It does not look at the approval flag.
func (r *Registry) Verify(ctx context.Context, username, token string) (*models.Operator, error) {
	op, err := r.Lookup(ctx, username)
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(op.TokenHash), []byte(token)); err != nil {
		return nil, ErrInvalidToken
	}
	return op, nil
}

func (r *Registry) List(ctx context.Context) ([]models.Operator, error) {
	rows, err := r.db.QueryContext(ctx, selectOperator+` ORDER BY username`)
	if err != nil {
		return nil, fmt.Errorf("list operators: %w", err)
	}
	defer rows.Close()

	var ops []models.Operator
	for rows.Next() {
		op, err := scanOperator(rows)
		if err != nil {
			return nil, err
		}
		ops = append(ops, *op)
	}
	return ops, rows.Err()
}
