package handler

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/photo-contest-api/internal/dto"
	"github.com/noah-isme/photo-contest-api/internal/middleware"
	"github.com/noah-isme/photo-contest-api/internal/service"
	"github.com/noah-isme/photo-contest-api/internal/utils"
)

const voteRetryMessage = "your vote could not be recorded, please try again"

func requestLogger(base zerolog.Logger, c *fiber.Ctx) *zerolog.Logger {
	logger := base
	if c != nil {
		if correlation := middleware.GetCorrelationID(c); correlation != "" {
			logger = base.With().Str("correlation_id", correlation).Logger()
		}
	}
	return &logger
}

func requestContext(c *fiber.Ctx) context.Context {
	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}
	return middleware.ContextWithCorrelation(ctx, middleware.GetCorrelationID(c))
}

// sendValidationError renders a ValidationError with its field and rule.
// It reports false when err is not a validation failure.
func sendValidationError(c *fiber.Ctx, err error) (bool, error) {
	var validationErr *service.ValidationError
	if !errors.As(err, &validationErr) {
		return false, nil
	}
	return true, utils.Fail(c, fiber.StatusBadRequest, validationErr.Message, dto.ValidationDetail{
		Field: validationErr.Field,
		Rule:  validationErr.Rule,
	})
}
