package http

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/jacobh/howitt-sub000/internal/core/domain"
	"github.com/jacobh/howitt-sub000/internal/pkg/logging"
	"github.com/jacobh/howitt-sub000/internal/pkg/validation"
)

// APIError is a structured error response.
type APIError struct {
	Status    int                     `json:"status"`
	Code      string                  `json:"code"`    // bad_request, validation_error, not_found, internal_error, ...
	Message   string                  `json:"message"` // Human-readable message
	RequestID string                  `json:"request_id,omitempty"`
	Details   []validation.FieldError `json:"details,omitempty"`
}

// newError builds a JSON error response with a request ID.
func newError(c *fiber.Ctx, status int, code string, message string) error {
	reqID, _ := c.Locals("requestid").(string)
	return c.Status(status).JSON(APIError{
		Status:    status,
		Code:      code,
		Message:   message,
		RequestID: reqID,
	})
}

// errBadRequest returns a 400 error.
func errBadRequest(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusBadRequest, "bad_request", msg)
}

// errValidation returns a 400 error listing every failed field.
func errValidation(c *fiber.Ctx, verr *validation.Error) error {
	reqID, _ := c.Locals("requestid").(string)
	return c.Status(fiber.StatusBadRequest).JSON(APIError{
		Status:    fiber.StatusBadRequest,
		Code:      "validation_error",
		Message:   verr.Error(),
		RequestID: reqID,
		Details:   verr.Fields,
	})
}

// errNotFound returns a 404 error.
func errNotFound(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusNotFound, "not_found", msg)
}

// errInternal returns a 500 error.
func errInternal(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusInternalServerError, "internal_error", msg)
}

// errUnavailable returns a 503 error.
func errUnavailable(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusServiceUnavailable, "unavailable", msg)
}

// errFrom maps a service error to a response. Unexpected errors are logged
// and reported without their text.
func errFrom(c *fiber.Ctx, err error) error {
	var verr *validation.Error
	switch {
	case errors.As(err, &verr):
		return errValidation(c, verr)
	case errors.Is(err, domain.ErrMalformedPoint), errors.Is(err, domain.ErrInvalidBounds):
		return errBadRequest(c, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return errNotFound(c, "feature not found")
	case errors.Is(err, context.DeadlineExceeded):
		return newError(c, fiber.StatusGatewayTimeout, "timeout", "request timed out")
	}
	logging.FromContext(c.UserContext()).Error("request failed",
		"path", c.Path(), "error", err)
	return errInternal(c, "internal error")
}
