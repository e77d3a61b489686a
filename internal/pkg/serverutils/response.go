package serverutils

import (
	"errors"

	"codeassist-be/internal/apperr"

	"github.com/gofiber/fiber/v2"
)

func SuccessResponse(message string, data interface{}) fiber.Map {
	return fiber.Map{
		"message": message,
		"data":    data,
	}
}

// ErrorHandler maps typed application errors onto HTTP statuses for the
// side HTTP surface. Websocket errors never pass through here.
func ErrorHandler(ctx *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError

	var appErr *apperr.AppError
	if errors.As(err, &appErr) {
		switch appErr.Code {
		case apperr.CodeUnauthorized:
			status = fiber.StatusUnauthorized
		case apperr.CodeValidationError:
			status = fiber.StatusBadRequest
		case apperr.CodeNotConfigured, apperr.CodeNoActiveConversation:
			status = fiber.StatusUnprocessableEntity
		case apperr.CodeBackendError:
			status = fiber.StatusBadGateway
		}
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		status = fiberErr.Code
	}

	return ctx.Status(status).JSON(fiber.Map{
		"code":    apperr.CodeOf(err),
		"message": apperr.MessageOf(err),
	})
}
