package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/pielancer314/PizzaForPi/constants"
	"github.com/pielancer314/PizzaForPi/helper"
	"github.com/pielancer314/PizzaForPi/logger"
	"github.com/pielancer314/PizzaForPi/model"
	"github.com/pielancer314/PizzaForPi/utils"
)

type loginResponse struct {
	model.TokenData
	User model.User `json:"user"`
}

// PiLogin exchanges a Pi Network access token for a service token. The
// first login of a Pi user creates a customer account.
func (h *Handler) PiLogin(c *fiber.Ctx) error {
	in := input[model.PiLoginInput](c)
	ctx := c.UserContext()

	piUser, err := h.Pi.AuthenticateUser(ctx, in.AccessToken)
	if err != nil {
		h.Log.Warning("pi authentication failed", logger.Error(err))
		return h.fail(c, err)
	}

	user, err := h.Users.FindOrCreateByPi(ctx, piUser.UID, piUser.Username, piUser.Email)
	if err != nil {
		return h.fail(c, err)
	}
	if !user.Active {
		return utils.ErrorResponse(c, fiber.StatusForbidden, constants.ACCOUNT_NOT_ACTIVE, nil)
	}

	token, err := helper.GenerateAccessToken(model.TokenClaim{
		UserID:   user.ID,
		Username: user.Username,
		Role:     user.Role,
	}, h.JWTSecret, h.JWTTTL)
	if err != nil {
		return h.fail(c, err)
	}

	c.Cookie(&fiber.Cookie{
		Name:     "access_token",
		Value:    token.AccessToken,
		Expires:  time.Unix(token.ExpiresAt, 0),
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	h.Log.Info("user logged in", logger.Uint("user", user.ID), logger.String("role", user.Role))
	return utils.SuccessResponse(c, fiber.StatusOK, loginResponse{TokenData: token, User: *user})
}

// Me returns the caller's account.
func (h *Handler) Me(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusUnauthorized, constants.MISSING_TOKEN, err)
	}
	user, err := h.Users.Get(c.UserContext(), p.UserID)
	if err != nil {
		return h.fail(c, err)
	}
	return utils.SuccessResponse(c, fiber.StatusOK, user)
}
