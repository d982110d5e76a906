package middleware

import (
	"errors"
	"strings"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/pielancer314/PizzaForPi/constants"
	"github.com/pielancer314/PizzaForPi/directory"
	"github.com/pielancer314/PizzaForPi/helper"
	"github.com/pielancer314/PizzaForPi/model"
	"github.com/pielancer314/PizzaForPi/utils"
)

// Protected authenticates the caller with the service JWT and resolves it
// to a principal through the user directory. The token is read from the
// access_token cookie or the Authorization header; websocket upgrades may
// also pass it as ?token=.
func Protected(secret string, users directory.Users) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := tokenFrom(c)
		if token == "" {
			return utils.ErrorResponse(c, fiber.StatusUnauthorized, constants.MISSING_TOKEN, errors.New("no token"))
		}

		jwtToken, err := helper.ParseToken(token, secret)
		if err != nil || !jwtToken.Valid {
			return utils.ErrorResponse(c, fiber.StatusUnauthorized, constants.INVALID_TOKEN, err)
		}
		claim, err := helper.ClaimFromToken(jwtToken)
		if err != nil {
			return utils.ErrorResponse(c, fiber.StatusUnauthorized, constants.INVALID_TOKEN, err)
		}

		user, err := users.Get(c.UserContext(), claim.UserID)
		if err != nil {
			if errors.Is(err, directory.ErrNotFound) {
				return utils.ErrorResponse(c, fiber.StatusUnauthorized, constants.INVALID_TOKEN, err)
			}
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, constants.ERROR_INTERNAL_ERROR, err)
		}
		if !user.Active {
			return utils.ErrorResponse(c, fiber.StatusForbidden, constants.ACCOUNT_NOT_ACTIVE, nil)
		}

		c.Locals(constants.LOCALS_TOKEN, jwtToken)
		c.Locals(constants.LOCALS_PRINCIPAL, user.Principal())
		return c.Next()
	}
}

func tokenFrom(c *fiber.Ctx) string {
	if token := c.Cookies("access_token"); token != "" {
		return token
	}
	if auth := c.Get(fiber.HeaderAuthorization); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	if websocket.IsWebSocketUpgrade(c) {
		return c.Query("token")
	}
	return ""
}

// RequireRole lets through principals holding one of roles. Admins always
// pass.
func RequireRole(roles ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, ok := CurrentPrincipal(c)
		if !ok {
			return utils.ErrorResponse(c, fiber.StatusUnauthorized, constants.MISSING_TOKEN, nil)
		}
		if p.IsAdmin() {
			return c.Next()
		}
		for _, role := range roles {
			if p.Role == role {
				return c.Next()
			}
		}
		return utils.ErrorResponse(c, fiber.StatusForbidden, constants.NOT_AUTHORIZED, errors.New("role "+p.Role+" not allowed"))
	}
}

// RequireWebSocket rejects plain HTTP requests to websocket routes.
func RequireWebSocket() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}
}

func CurrentPrincipal(c *fiber.Ctx) (model.Principal, bool) {
	p, ok := c.Locals(constants.LOCALS_PRINCIPAL).(model.Principal)
	return p, ok
}
