package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/photo-contest-api/internal/middleware"
	"github.com/noah-isme/photo-contest-api/internal/service"
)

const livePingInterval = 30 * time.Second

// LiveResultsHandler streams vote events to administrators over a websocket.
type LiveResultsHandler struct {
	events service.VoteEventBus
	logger zerolog.Logger
}

// NewLiveResultsHandler constructs the live results handler.
func NewLiveResultsHandler(events service.VoteEventBus, logger zerolog.Logger) *LiveResultsHandler {
	return &LiveResultsHandler{
		events: events,
		logger: logger.With().Str("component", "live_results_handler").Logger(),
	}
}

// Register binds the websocket upgrade under the provided router group.
func (h *LiveResultsHandler) Register(router fiber.Router) {
	router.Use("/results/live", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	router.Get("/results/live", websocket.New(h.stream))
}

func (h *LiveResultsHandler) stream(conn *websocket.Conn) {
	admin, _ := conn.Locals(middleware.LocalJuryEmail).(string)
	events, cancel := h.events.Subscribe()
	defer cancel()

	// Reads only detect the client going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(livePingInterval)
	defer ticker.Stop()

	h.logger.Info().Str("admin", admin).Msg("live results connected")
	defer h.logger.Info().Str("admin", admin).Msg("live results disconnected")

	for {
		select {
		case <-closed:
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := conn.WriteJSON(event); err != nil {
				h.logger.Debug().Err(err).Msg("live results write failed")
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return
			}
		}
	}
}
