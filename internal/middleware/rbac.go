package middleware

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/photo-contest-api/internal/utils"
)

// RequireRole ensures that the authenticated user possesses one of the allowed roles.
func RequireRole(roles ...string) fiber.Handler {
	return RequireRoleOrEmail(roles, nil)
}

// RequireRoleOrEmail admits callers holding one of roles, or whose email is
// in emails. The contest keeps a short static admin list next to the role claim.
func RequireRoleOrEmail(roles []string, emails []string) fiber.Handler {
	allowedRoles := toSet(roles)
	allowedEmails := toSet(emails)

	return func(c *fiber.Ctx) error {
		role := normalizeRoleValue(c.Locals(LocalUserRole))
		if _, ok := allowedRoles[role]; ok && role != "" {
			return c.Next()
		}
		if email := JuryEmail(c); email != "" {
			if _, ok := allowedEmails[strings.ToLower(email)]; ok {
				c.Locals(LocalUserRole, "admin")
				return c.Next()
			}
		}
		return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
	}
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, value := range values {
		normalized := strings.ToLower(strings.TrimSpace(value))
		if normalized != "" {
			set[normalized] = struct{}{}
		}
	}
	return set
}

func normalizeRoleValue(value interface{}) string {
	switch v := value.(type) {
	case string:
		return strings.ToLower(strings.TrimSpace(v))
	case fmt.Stringer:
		return strings.ToLower(strings.TrimSpace(v.String()))
	default:
		if value == nil {
			return ""
		}
		return strings.ToLower(strings.TrimSpace(fmt.Sprintf("%v", value)))
	}
}
