package serverutils

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"docubot-be/pkg/apperror"
)

// StatusFor maps an error kind to the HTTP status the API reports for it.
func StatusFor(err error) int {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code
	}

	switch apperror.Kind(err) {
	case apperror.ErrInvalidInput,
		apperror.ErrUnsupportedFormat,
		apperror.ErrLengthMismatch,
		apperror.ErrDimensionMismatch:
		return fiber.StatusBadRequest
	case apperror.ErrExtraction:
		return fiber.StatusUnprocessableEntity
	case apperror.ErrEmbeddingService, apperror.ErrCompletionService:
		return fiber.StatusBadGateway
	case apperror.ErrEmptyStore:
		return fiber.StatusNotFound
	case apperror.ErrStopTimeout:
		return fiber.StatusGatewayTimeout
	default:
		return fiber.StatusInternalServerError
	}
}

// ErrorHandlerMiddleware turns handler errors into the JSON error envelope.
// Internal errors are reported without their detail.
func ErrorHandlerMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}

		status := StatusFor(err)
		message := err.Error()
		if status == fiber.StatusInternalServerError {
			message = "Internal server error"
		}
		return ctx.Status(status).JSON(ErrorResponse(message))
	}
}
