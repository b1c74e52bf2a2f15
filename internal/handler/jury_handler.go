package handler

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/photo-contest-api/internal/dto"
	"github.com/noah-isme/photo-contest-api/internal/middleware"
	"github.com/noah-isme/photo-contest-api/internal/models"
	"github.com/noah-isme/photo-contest-api/internal/service"
	"github.com/noah-isme/photo-contest-api/internal/utils"
)

// JuryHandler serves the jury gallery and vote endpoints.
type JuryHandler struct {
	votes  service.VoteService
	logger zerolog.Logger
}

// NewJuryHandler constructs a jury handler.
func NewJuryHandler(votes service.VoteService, logger zerolog.Logger) *JuryHandler {
	return &JuryHandler{
		votes:  votes,
		logger: logger.With().Str("component", "jury_handler").Logger(),
	}
}

// Register wires jury routes. voteGuard runs in front of the vote write only.
func (h *JuryHandler) Register(router fiber.Router, voteGuard ...fiber.Handler) {
	router.Get("/photos", h.gallery)
	router.Get("/photos/:photoId/vote", h.getVote)

	handlers := append(append([]fiber.Handler{}, voteGuard...), h.castVote)
	router.Post("/photos/:photoId/vote", handlers...)
}

func (h *JuryHandler) gallery(c *fiber.Ctx) error {
	items, err := h.votes.Gallery(requestContext(c), middleware.JuryEmail(c))
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to load gallery")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to load photos")
	}
	return utils.OK(c, items, "photos retrieved", fiber.Map{"count": len(items)})
}

func (h *JuryHandler) getVote(c *fiber.Ctx) error {
	vote, err := h.votes.GetVote(requestContext(c), c.Params("photoId"), middleware.JuryEmail(c))
	if err != nil {
		if errors.Is(err, service.ErrVoteNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "you have not voted on this photo yet")
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to load vote")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to load vote")
	}
	return utils.SendSuccess(c, "vote retrieved", vote)
}

func (h *JuryHandler) castVote(c *fiber.Ctx) error {
	var req dto.VoteRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	photoID := strings.TrimSpace(c.Params("photoId"))
	resp, err := h.votes.CastVote(requestContext(c), photoID, middleware.JuryEmail(c), req)
	if err != nil {
		if handled, sendErr := sendValidationError(c, err); handled {
			return sendErr
		}
		if errors.Is(err, service.ErrPhotoNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "photo not found")
		}
		requestLogger(h.logger, c).Error().Err(err).Str("photo_id", photoID).Msg("vote failed")
		return utils.SendError(c, fiber.StatusServiceUnavailable, voteRetryMessage)
	}

	// Jurors never see aggregates.
	resp.TotalScore, resp.VoteCount = nil, nil

	message := "vote recorded"
	if resp.Action == models.VoteActionUpdate {
		message = "vote updated"
	}
	return utils.SendSuccess(c, message, resp)
}
