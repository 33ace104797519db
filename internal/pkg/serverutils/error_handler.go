package serverutils

import (
	"errors"

	"iso-risk-agent-be/internal/repository/contract"
	"iso-risk-agent-be/pkg/agent/state"
	"iso-risk-agent-be/pkg/agent/workflow"

	"github.com/gofiber/fiber/v2"
)

// ErrorHandlerMiddleware converts handler errors into the JSON envelope.
func ErrorHandlerMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}
		code, message := StatusFor(err)
		return ctx.Status(code).JSON(ErrorResponse(code, message))
	}
}

func StatusFor(err error) (int, string) {
	var fe *fiber.Error
	var ve *ValidationError
	switch {
	case errors.As(err, &ve):
		return fiber.StatusBadRequest, ve.Error()
	case errors.As(err, &fe):
		return fe.Code, fe.Message
	case errors.Is(err, contract.ErrUnknownSession):
		return fiber.StatusNotFound, "The selection session has expired or does not exist. Ask me to generate the controls again."
	case errors.Is(err, contract.ErrNotFound):
		return fiber.StatusNotFound, "Resource not found"
	case errors.Is(err, contract.ErrSessionConflict):
		return fiber.StatusConflict, "This selection is already being processed."
	case errors.Is(err, workflow.ErrNotResumable):
		return fiber.StatusConflict, err.Error()
	case errors.Is(err, state.ErrInvalidIntent):
		return fiber.StatusBadRequest, err.Error()
	}
	return fiber.StatusInternalServerError, "Internal server error"
}
