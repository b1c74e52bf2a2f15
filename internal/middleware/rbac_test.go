package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
)

func newRBACApp(role, email string, guard fiber.Handler) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		if role != "" {
			c.Locals(LocalUserRole, role)
		}
		if email != "" {
			c.Locals(LocalJuryEmail, email)
		}
		return c.Next()
	})
	app.Use(guard)
	app.Get("/admin", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	return app
}

func TestRequireRoleAllowsAuthorizedRoles(t *testing.T) {
	app := newRBACApp("admin", "", RequireRole("admin"))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/admin", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestRequireRoleRejectsJurors(t *testing.T) {
	app := newRBACApp("jury", "juror@dpu.edu.tr", RequireRole("admin"))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/admin", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestRequireRoleOrEmailAdmitsListedEmail(t *testing.T) {
	guard := RequireRoleOrEmail([]string{"admin"}, []string{"Chair@dpu.edu.tr"})

	resp, err := newRBACApp("jury", "chair@dpu.edu.tr", guard).Test(httptest.NewRequest(http.MethodGet, "/admin", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, err = newRBACApp("", "other@dpu.edu.tr", guard).Test(httptest.NewRequest(http.MethodGet, "/admin", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}
