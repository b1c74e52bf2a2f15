package handler

import (
	"errors"
	"math"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/photo-contest-api/internal/service"
	"github.com/noah-isme/photo-contest-api/internal/utils"
)

// ApplicationHandler accepts contest applications.
type ApplicationHandler struct {
	service service.SubmissionService
	logger  zerolog.Logger
}

// NewApplicationHandler constructs an application handler.
func NewApplicationHandler(service service.SubmissionService, logger zerolog.Logger) *ApplicationHandler {
	return &ApplicationHandler{
		service: service,
		logger:  logger.With().Str("component", "application_handler").Logger(),
	}
}

// Register wires application routes.
func (h *ApplicationHandler) Register(router fiber.Router) {
	router.Post("", h.submit)
}

func (h *ApplicationHandler) submit(c *fiber.Ctx) error {
	form, err := c.MultipartForm()
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "request must be multipart/form-data")
	}

	input := service.SubmissionInput{
		ClientAddress: c.IP(),
		FullName:      formValue(form.Value, "fullName"),
		IDNumber:      formValue(form.Value, "idNumber"),
		Email:         formValue(form.Value, "email"),
		UserType:      formValue(form.Value, "userType"),
		PhotoTitles:   formValue(form.Value, "photoTitles"),
		Photos:        form.File["photos"],
	}

	resp, err := h.service.Submit(requestContext(c), input)
	if err != nil {
		if handled, sendErr := sendValidationError(c, err); handled {
			return sendErr
		}

		var rateErr *service.RateLimitError
		switch {
		case errors.As(err, &rateErr):
			seconds := int(math.Ceil(rateErr.RetryAfter.Seconds()))
			if seconds < 1 {
				seconds = 1
			}
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(seconds))
			return utils.SendError(c, fiber.StatusTooManyRequests, "too many applications from this address, please try again later")
		case errors.Is(err, service.ErrMailUnavailable):
			requestLogger(h.logger, c).Error().Err(err).Msg("application could not be forwarded")
			return utils.SendError(c, fiber.StatusInternalServerError, "your application could not be delivered, please try again")
		default:
			requestLogger(h.logger, c).Error().Err(err).Msg("application failed")
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to process application")
		}
	}

	return utils.SendSuccess(c, "application received", resp)
}

func formValue(values map[string][]string, key string) string {
	if v := values[key]; len(v) > 0 {
		return v[0]
	}
	return ""
}
