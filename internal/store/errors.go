package store

import (
	"errors"
	"strings"

	"github.com/frahmantamala/opsboard/internal"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// IsConstraintViolation reports unique, foreign-key, not-null and check
// violations from postgres, sqlite or gorm's translated errors.
func IsConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) || errors.Is(err, gorm.ErrForeignKeyViolated) || errors.Is(err, gorm.ErrCheckConstraintViolated) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// class 23: integrity constraint violation
		return strings.HasPrefix(pgErr.Code, "23")
	}

	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "FOREIGN KEY constraint failed") ||
		strings.Contains(msg, "NOT NULL constraint failed") ||
		strings.Contains(msg, "CHECK constraint failed")
}

// MapError turns a constraint violation into a 400 AppError carrying message.
// Other errors pass through unchanged.
func MapError(err error, message string) error {
	if IsConstraintViolation(err) {
		return internal.NewConstraintError(message, err)
	}
	return err
}

// IsNotFound is a shorthand repositories use to turn gorm's sentinel into a nil result.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
