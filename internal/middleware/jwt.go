package middleware

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/noah-isme/photo-contest-api/internal/utils"
)

// Locals keys populated by JWTProtected.
const (
	LocalJuryEmail = "jury_email"
	LocalUserRole  = "user_role"
)

// JWTProtected returns a middleware that validates HMAC signed bearer tokens
// and binds the caller's email and role to the request.
func JWTProtected(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authorization := c.Get("Authorization")
		if authorization == "" {
			// Browsers cannot set headers on websocket upgrades.
			if token := strings.TrimSpace(c.Query("access_token")); token != "" && isWebSocketUpgrade(c) {
				authorization = "Bearer " + token
			}
		}
		if authorization == "" {
			return utils.SendError(c, fiber.StatusUnauthorized, "authorization header missing")
		}

		const bearer = "Bearer "
		if len(authorization) < len(bearer) || !strings.EqualFold(authorization[:len(bearer)], bearer) {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid authorization header")
		}

		tokenString := strings.TrimSpace(authorization[len(bearer):])
		if tokenString == "" {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid token")
		}

		token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method")
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid token")
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid token claims")
		}

		email := extractEmailFromClaims(claims)
		if email == "" {
			return utils.SendError(c, fiber.StatusUnauthorized, "token carries no email")
		}
		c.Locals(LocalJuryEmail, email)

		if role := extractUserRoleFromClaims(claims); role != "" {
			c.Locals(LocalUserRole, role)
		}

		return c.Next()
	}
}

// JuryEmail returns the authenticated caller's email, or "".
func JuryEmail(c *fiber.Ctx) string {
	if v, ok := c.Locals(LocalJuryEmail).(string); ok {
		return v
	}
	return ""
}

func extractEmailFromClaims(claims jwt.MapClaims) string {
	for _, key := range []string{"email", "sub"} {
		value, ok := claims[key].(string)
		if !ok {
			continue
		}
		value = strings.ToLower(strings.TrimSpace(value))
		if strings.Contains(value, "@") {
			return value
		}
	}
	return ""
}

func extractUserRoleFromClaims(claims jwt.MapClaims) string {
	for _, key := range []string{"role", "roles"} {
		if value, ok := claims[key]; ok {
			if role := normalizeRole(value); role != "" {
				return role
			}
		}
	}
	return ""
}

func normalizeRole(value interface{}) string {
	switch v := value.(type) {
	case string:
		return strings.ToLower(strings.TrimSpace(v))
	case []interface{}:
		for _, item := range v {
			if str, ok := item.(string); ok {
				if role := strings.ToLower(strings.TrimSpace(str)); role != "" {
					return role
				}
			}
		}
	}
	return ""
}

func isWebSocketUpgrade(c *fiber.Ctx) bool {
	return strings.EqualFold(c.Get(fiber.HeaderUpgrade), "websocket")
}
