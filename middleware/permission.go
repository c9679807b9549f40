package middleware

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"

	"helpdesk/accounts"
	"helpdesk/lifecycle"
)

const actorKey = "actor"

// LoadActor resolves the token's user id through the account directory.
// Unknown and suspended accounts are turned away before any handler runs.
func LoadActor(dir accounts.Directory) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, ok := c.Locals("userId").(uint)
		if !ok {
			return JsonResponse(c, fiber.StatusUnauthorized, false, "Unauthorized: User ID not found", nil)
		}

		account, err := dir.Get(c.UserContext(), userID)
		if errors.Is(err, accounts.ErrAccountNotFound) {
			return JsonResponse(c, fiber.StatusUnauthorized, false, "User not found!", nil)
		}
		if err != nil {
			log.Printf("[AUTH] account lookup for %d failed: %v", userID, err)
			return JsonResponse(c, fiber.StatusInternalServerError, false, "Server error while checking permissions!", nil)
		}
		if account.Suspended {
			return JsonResponse(c, fiber.StatusForbidden, false, "Your account is suspended!", nil)
		}

		c.Locals(actorKey, lifecycle.Actor{ID: account.ID, Name: account.Name, Email: account.Email, Role: account.Role})
		return c.Next()
	}
}

// RequireRole lets the request through only for the listed roles.
func RequireRole(roles ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, ok := ActorFrom(c)
		if !ok {
			return JsonResponse(c, fiber.StatusUnauthorized, false, "Unauthorized!", nil)
		}
		for _, role := range roles {
			if actor.Role == role {
				return c.Next()
			}
		}
		return JsonResponse(c, fiber.StatusForbidden, false, "You do not have permission to access this resource!", nil)
	}
}

// ActorFrom returns the identity stored by LoadActor.
func ActorFrom(c *fiber.Ctx) (lifecycle.Actor, bool) {
	actor, ok := c.Locals(actorKey).(lifecycle.Actor)
	return actor, ok
}
