package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/ecoride/carpool/internal/store"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store is the MySQL store.Store.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

var _ store.Store = (*Store)(nil)

// New returns a Store bound to db.
func New(db *sql.DB) *Store {
	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// DB exposes the pool for health checks.
func (s *Store) DB() *sql.DB { return s.db }

// WithTx begins a transaction, runs fn and commits. Any error from fn, or
// a panic, rolls the transaction back.
func (s *Store) WithTx(ctx context.Context, fn store.TxFunc) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mapError(err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := fn(ctx, &txRepo{q: tx, now: s.now}); err != nil {
		return mapError(err)
	}
	if err := tx.Commit(); err != nil {
		return mapError(err)
	}
	committed = true
	return nil
}

// txRepo implements store.Tx on an open transaction.
type txRepo struct {
	q   querier
	now func() time.Time
}

var _ store.Tx = (*txRepo)(nil)

// nullTime maps a nil pointer to SQL NULL.
func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}

func nullID(id uint64) sql.NullInt64 {
	if id == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(id), Valid: true}
}

func idOf(n sql.NullInt64) uint64 {
	if !n.Valid {
		return 0
	}
	return uint64(n.Int64)
}

func lastID(res sql.Result) (uint64, error) {
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// affected returns store.ErrNotFound when an UPDATE matched no row. The
// DSN sets clientFoundRows so unchanged rows still count.
func affected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
