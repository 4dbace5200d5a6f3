// Package directory stores persons and the classes they belong to.
package directory

import (
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"presence/internal/apperr"
)

var (
	ErrPersonNotFound = apperr.NotFound("NotFound", "user not found")
	ErrClassNotFound  = apperr.NotFound("NotFound", "class not found")
	// ErrUnknownClass is returned when a person references a class that does not exist.
	ErrUnknownClass   = apperr.BadRequest("ClassNotFound", "class does not exist")
	ErrDuplicateEmail = apperr.BadRequest("DuplicateEmail", "email already in use")
	ErrClassInUse     = apperr.BadRequest("ClassInUse", "Cannot delete class with associated students")
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// Repository is the Postgres-backed directory.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// validID reports whether id can be compared against a UUID column.
// Anything else cannot match a row and would only make Postgres complain.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// mapPersonWrite converts constraint violations that slipped past the
// pre-checks into the matching domain errors.
func mapPersonWrite(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgUniqueViolation:
		return ErrDuplicateEmail.Wrap(err)
	case pgForeignKeyViolation:
		return ErrUnknownClass.Wrap(err)
	}
	return err
}

func pageArgs(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
