package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/harry-2401/reddit/internal/shared/apperr"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// Postgres SQLSTATEs that mean "run the whole transaction again".
var retryableCodes = map[string]bool{
	"40001": true, // serialization_failure
	"40P01": true, // deadlock_detected
	"55P03": true, // lock_not_available
	"57014": true, // query_canceled (statement_timeout)
}

// Classify maps a store error onto the apperr taxonomy. what names the
// operation for the message. A nil error stays nil.
func Classify(err error, what string) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%s: %w", what, apperr.ErrNotFound)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%s: %w: %w", what, apperr.ErrConflict, err)
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: %w: %w", what, apperr.ErrConflict, err)
	}
	var pg *pgconn.PgError
	if errors.As(err, &pg) {
		if retryableCodes[pg.Code] {
			return fmt.Errorf("%s: %w: %w", what, apperr.ErrConflict, err)
		}
		if pg.Code == "23505" {
			return fmt.Errorf("%s: %w: %w", what, apperr.ErrConflict, err)
		}
	}
	// Already classified further down the call chain.
	for _, known := range []error{apperr.ErrNotFound, apperr.ErrUnauthorized, apperr.ErrForbidden, apperr.ErrInvalid, apperr.ErrConflict, apperr.ErrInfrastructure} {
		if errors.Is(err, known) {
			return fmt.Errorf("%s: %w", what, err)
		}
	}
	return fmt.Errorf("%s: %w: %w", what, apperr.ErrInfrastructure, err)
}
