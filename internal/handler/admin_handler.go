package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/photo-contest-api/internal/service"
	"github.com/noah-isme/photo-contest-api/internal/utils"
)

// AdminHandler exposes results and photo registration to contest administrators.
type AdminHandler struct {
	results service.ResultsService
	photos  service.PhotoService
	logger  zerolog.Logger
}

// NewAdminHandler constructs an admin handler.
func NewAdminHandler(results service.ResultsService, photos service.PhotoService, logger zerolog.Logger) *AdminHandler {
	return &AdminHandler{
		results: results,
		photos:  photos,
		logger:  logger.With().Str("component", "admin_handler").Logger(),
	}
}

// Register wires admin routes.
func (h *AdminHandler) Register(router fiber.Router) {
	router.Get("/results", h.ranking)
	router.Get("/report", h.report)
	router.Post("/photos", h.registerPhoto)
}

func (h *AdminHandler) ranking(c *fiber.Ctx) error {
	ranking, err := h.results.Ranking(requestContext(c))
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to project ranking")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to load results")
	}
	return utils.SendSuccess(c, "results retrieved", ranking)
}

func (h *AdminHandler) report(c *fiber.Ctx) error {
	report, err := h.results.Report(requestContext(c))
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to build report")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to load report")
	}
	return utils.SendSuccess(c, "report retrieved", report)
}

func (h *AdminHandler) registerPhoto(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "file is required")
	}

	photo, err := h.photos.Register(requestContext(c), c.FormValue("id"), file)
	if err != nil {
		if handled, sendErr := sendValidationError(c, err); handled {
			return sendErr
		}
		if errors.Is(err, service.ErrStorageUnavailable) {
			requestLogger(h.logger, c).Error().Err(err).Msg("photo storage failed")
			return utils.SendError(c, fiber.StatusBadGateway, "photo could not be stored")
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("photo registration failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to register photo")
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "photo registered", photo)
}
