package handler

import (
	"context"
	"sort"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/photo-contest-api/internal/config"
	"github.com/noah-isme/photo-contest-api/internal/utils"
)

const healthCheckTimeout = 2 * time.Second

// HealthCheck pings one backing service.
type HealthCheck func(ctx context.Context) error

// HealthResponse represents the payload returned by the health endpoint.
type HealthResponse struct {
	Status       string            `json:"status"`
	Timestamp    time.Time         `json:"timestamp"`
	Service      string            `json:"service"`
	Environment  string            `json:"environment"`
	EventBus     string            `json:"eventBus"`
	RateLimiter  string            `json:"rateLimiter"`
	Dependencies map[string]string `json:"dependencies,omitempty"`
}

// HealthHandler reports liveness plus the state of each registered dependency.
type HealthHandler struct {
	cfg      config.Config
	eventBus string
	checks   map[string]HealthCheck
}

// NewHealthHandler builds the handler. checks may be nil.
func NewHealthHandler(cfg config.Config, eventBus string, checks map[string]HealthCheck) *HealthHandler {
	return &HealthHandler{cfg: cfg, eventBus: eventBus, checks: checks}
}

// Check answers 200 when every dependency responds and 503 otherwise.
func (h *HealthHandler) Check(c *fiber.Ctx) error {
	payload := HealthResponse{
		Status:      "ok",
		Timestamp:   time.Now().UTC(),
		Service:     h.cfg.AppName,
		Environment: h.cfg.AppEnv,
		EventBus:    h.eventBus,
		RateLimiter: h.cfg.RateLimitBackend,
	}

	if len(h.checks) > 0 {
		names := make([]string, 0, len(h.checks))
		for name := range h.checks {
			names = append(names, name)
		}
		sort.Strings(names)

		payload.Dependencies = make(map[string]string, len(names))
		for _, name := range names {
			ctx, cancel := context.WithTimeout(requestContext(c), healthCheckTimeout)
			err := h.checks[name](ctx)
			cancel()

			if err != nil {
				payload.Dependencies[name] = "down"
				payload.Status = "degraded"
				continue
			}
			payload.Dependencies[name] = "up"
		}
	}

	if payload.Status != "ok" {
		return utils.Fail(c, fiber.StatusServiceUnavailable, "service degraded", payload)
	}
	return utils.SendSuccess(c, "service healthy", payload)
}
