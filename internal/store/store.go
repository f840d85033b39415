// Package store is the persistence layer: hand-written SQL over sqlx/pgx.
// Uniqueness constraints owned by the database are the arbiter for upserts and
// for the concurrent insight-generation race.
package store

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound reports a row that is absent or not owned by the caller.
	ErrNotFound = errors.New("not found")
	// ErrConflict reports a unique-constraint violation on insert.
	ErrConflict = errors.New("already exists")
)

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	// Fallback for drivers that do not expose pgconn errors (tests).
	return err != nil && strings.Contains(err.Error(), "duplicate key")
}
