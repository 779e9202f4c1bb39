package repositories

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/nanafox/tiny-cart/internal/apperr"
)

// translateError maps driver and GORM errors onto the apperr taxonomy.
// what names the entity involved, e.g. "product".
func translateError(err error, what string) error {
	if err == nil {
		return nil
	}

	var appErr *apperr.Error
	switch {
	case errors.As(err, &appErr):
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apperr.Wrap(apperr.NotFound, err, "%s not found", what)
	case errors.Is(err, gorm.ErrDuplicatedKey), isUniqueViolation(err):
		return apperr.Wrap(apperr.Conflict, err, "%s already exists: %s", what, apperr.Sanitize(err.Error()))
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return apperr.Wrap(apperr.InvalidInput, err, "%s references a record that does not exist", what)
	default:
		return apperr.Wrap(apperr.BadRequest, err, "error processing %s: %s", what, apperr.Sanitize(err.Error()))
	}
}

func isUniqueViolation(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}
