package middleware

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/photo-contest-api/internal/dto"
	"github.com/noah-isme/photo-contest-api/internal/utils"
)

// ErrorHandler renders errors that escape the handlers, including the ones
// fiber raises before routing such as an oversized request body, in the
// common response envelope.
func ErrorHandler(logger zerolog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			if fe.Code == fiber.StatusRequestEntityTooLarge {
				return utils.Fail(c, fe.Code, "total attachment size exceeds the limit", dto.ValidationDetail{Field: "photos", Rule: "total_size"})
			}
			return utils.Fail(c, fe.Code, fe.Message, nil)
		}

		logger.Error().Err(err).
			Str("correlation_id", GetCorrelationID(c)).
			Str("path", c.Path()).
			Msg("unhandled request error")
		return utils.Fail(c, fiber.StatusInternalServerError, "internal server error", nil)
	}
}
