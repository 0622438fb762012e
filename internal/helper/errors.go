package helper

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"

	"github.com/JhonesBR/go-bank-ledger/internal/ledger"
	"github.com/JhonesBR/go-bank-ledger/internal/profile"
)

// StatusFor maps a domain error to its HTTP status.
func StatusFor(err error) int {
	var fiberErr *fiber.Error
	switch {
	case errors.As(err, &fiberErr):
		return fiberErr.Code
	case errors.Is(err, ledger.ErrAmountInvalid),
		errors.Is(err, ledger.ErrInsufficientFunds),
		errors.Is(err, ledger.ErrSameAccount):
		return fiber.StatusBadRequest
	case errors.Is(err, ledger.ErrAccountNotFound),
		errors.Is(err, ledger.ErrEntryNotFound),
		errors.Is(err, profile.ErrUserNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, ledger.ErrAccountExists),
		errors.Is(err, ledger.ErrAccountInUse),
		errors.Is(err, profile.ErrUserExists),
		errors.Is(err, profile.ErrUserInUse):
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}

// ErrorHandler writes every error returned by a handler as {"error": ...}.
// Storage details are logged, not returned.
func ErrorHandler(logger *zap.Logger) fiber.ErrorHandler {
	return func(c fiber.Ctx, err error) error {
		status := StatusFor(err)
		message := err.Error()
		if status == fiber.StatusInternalServerError {
			logger.Error("request failed",
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.Error(err),
			)
			message = "internal server error"
		}
		return c.Status(status).JSON(fiber.Map{
			"error": message,
		})
	}
}
