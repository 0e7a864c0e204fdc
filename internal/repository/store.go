package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// ErrDuplicate signals that a uniqueness probe found a colliding live row.
// Services translate it into a conflict error for the transport layer.
var ErrDuplicate = errors.New("duplicate value")

// Queryer is satisfied by both *sqlx.DB and *sqlx.Tx, letting repository
// operations participate in an ambient transaction when one is open.
type Queryer interface {
	sqlx.ExtContext
}

// Store wraps the database handle and provides the shared unit-of-work and
// generic single-row helpers every repository builds on.
type Store struct {
	db *sqlx.DB
}

// NewStore constructs a Store.
func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Q returns the default queryer bound to the connection pool. Operations that
// do not need transactional coupling run against it directly.
func (s *Store) Q() Queryer {
	return s.db
}

// DB exposes the underlying handle for repositories that manage their own
// statements.
func (s *Store) DB() *sqlx.DB {
	return s.db
}

// WithinTx runs fn inside a single transaction. The queryer passed to fn is
// bound to that transaction; passing it to repository methods makes a
// multi-entity write one atomic unit of work.
func (s *Store) WithinTx(ctx context.Context, fn func(q Queryer) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetOne fetches a single row into T. Absence surfaces as sql.ErrNoRows so
// callers keep the usual errors.Is(err, sql.ErrNoRows) contract.
func GetOne[T any](ctx context.Context, q Queryer, query string, args ...interface{}) (*T, error) {
	var dest T
	if err := sqlx.GetContext(ctx, q, &dest, query, args...); err != nil {
		return nil, err
	}
	return &dest, nil
}

// Exists runs a single-value probe query and reports whether a row matched.
func Exists(ctx context.Context, q Queryer, query string, args ...interface{}) (bool, error) {
	var one int
	if err := sqlx.GetContext(ctx, q, &one, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// UniqueCheck describes one uniqueness probe. LiveOnly restricts the check to
// rows not yet soft-deleted; entities that hard-delete leave it false.
type UniqueCheck struct {
	Table    string
	Column   string
	Value    string
	Exclude  string
	LiveOnly bool
}

// EnsureUnique verifies no other row shares the candidate value, returning
// ErrDuplicate on collision. The probe should run inside the same transaction
// as the following insert; a backing unique index catches the remaining
// check-then-insert race between concurrent writers.
func EnsureUnique(ctx context.Context, q Queryer, check UniqueCheck) error {
	query := fmt.Sprintf("SELECT 1 FROM %s WHERE %s = $1", check.Table, check.Column)
	args := []interface{}{check.Value}
	if check.LiveOnly {
		query += " AND deleted_at IS NULL"
	}
	if check.Exclude != "" {
		query += fmt.Sprintf(" AND id <> $%d", len(args)+1)
		args = append(args, check.Exclude)
	}
	taken, err := Exists(ctx, q, query+" LIMIT 1", args...)
	if err != nil {
		return fmt.Errorf("check %s.%s uniqueness: %w", check.Table, check.Column, err)
	}
	if taken {
		return fmt.Errorf("%s.%s %q: %w", check.Table, check.Column, check.Value, ErrDuplicate)
	}
	return nil
}
