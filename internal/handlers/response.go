package handlers

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/nanafox/tiny-cart/internal/apperr"
	"github.com/nanafox/tiny-cart/pkg/logger"
)

// Envelope wraps every successful response.
type Envelope struct {
	Success    bool   `json:"success"`
	StatusCode int    `json:"status_code"`
	Message    string `json:"message,omitempty"`
	Data       any    `json:"data"`
	Count      *int   `json:"count,omitempty"`
}

// ErrorEnvelope wraps every failed response.
type ErrorEnvelope struct {
	Success    bool `json:"success"`
	StatusCode int  `json:"status_code"`
	Detail     any  `json:"detail"`
}

func respond(c *fiber.Ctx, status int, message string, data any) error {
	return c.Status(status).JSON(Envelope{
		Success:    true,
		StatusCode: status,
		Message:    message,
		Data:       data,
	})
}

func respondList[T any](c *fiber.Ctx, items []T) error {
	if items == nil {
		items = []T{}
	}
	count := len(items)
	return c.Status(fiber.StatusOK).JSON(Envelope{
		Success:    true,
		StatusCode: fiber.StatusOK,
		Data:       items,
		Count:      &count,
	})
}

// ErrorHandler renders any error returned by a handler or middleware as an
// ErrorEnvelope.
func ErrorHandler(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	var detail any = apperr.DetailOf(err)

	var appErr *apperr.Error
	var validationErrs validator.ValidationErrors
	var fiberErr *fiber.Error
	switch {
	case errors.As(err, &appErr):
		status = appErr.Kind.HTTPStatus()
		if appErr.Kind == apperr.Internal {
			logUnhandled(c, err)
		}
	case errors.As(err, &validationErrs):
		status = fiber.StatusUnprocessableEntity
		detail = validationDetail(validationErrs)
	case errors.As(err, &fiberErr):
		status = fiberErr.Code
		detail = fiberErr.Message
	default:
		logUnhandled(c, err)
	}

	return c.Status(status).JSON(ErrorEnvelope{
		Success:    false,
		StatusCode: status,
		Detail:     detail,
	})
}

func logUnhandled(c *fiber.Ctx, err error) {
	logger.Log.Error("unhandled error",
		zap.String("method", c.Method()),
		zap.String("path", c.Path()),
		zap.Error(err))
}

func validationDetail(errs validator.ValidationErrors) map[string]string {
	messages := make(map[string]string, len(errs))
	for _, e := range errs {
		messages[e.Field()] = fmt.Sprintf("Field '%s' failed on the '%s' tag", e.Field(), e.Tag())
	}
	return messages
}
