package postgres

import (
	stderrors "errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/openbuilders/sepa-collector/internal/errors"
)

const (
	DuplicateKeyValue   string = "23505"
	ForeignKeyViolation string = "23503"
)

// mapError translates driver errors into service errors. what names the
// entity, e.g. "mandate 12".
func mapError(err error, what string) error {
	if stderrors.Is(err, pgx.ErrNoRows) {
		return errors.NotFound("%s not found", what)
	}

	var pgErr *pgconn.PgError
	if stderrors.As(err, &pgErr) {
		switch pgErr.Code {
		case DuplicateKeyValue:
			return errors.Conflict("%s already exists (%s)", what, pgErr.ConstraintName)
		case ForeignKeyViolation:
			return errors.NotFound("%s references a missing row (%s)", what, pgErr.ConstraintName)
		}
	}

	return fmt.Errorf("%s: %w", what, err)
}

// notFoundIfNone turns an UPDATE that matched no row into a NotFound error.
func notFoundIfNone(tag pgconn.CommandTag, err error, what string) error {
	if err != nil {
		return mapError(err, what)
	}
	if tag.RowsAffected() == 0 {
		return errors.NotFound("%s not found", what)
	}
	return nil
}
