package api

import (
	"github.com/gofiber/fiber/v2"

	"github.com/relaykit/relaykit/internal/core/app"
	"github.com/relaykit/relaykit/internal/core/models"
)

// Logout clears the client session held by the core.
func Logout(c *fiber.Ctx, a *app.App) error {
	a.Sessions.Logout()
	return c.Status(fiber.StatusOK).JSON(models.SuccessResponse{Message: "logged out"})
}

// GetProfile returns the locally held user profile.
func GetProfile(c *fiber.Ctx, a *app.App) error {
	if !a.Sessions.Authenticated() {
		return c.Status(fiber.StatusNotFound).JSON(models.ErrorResponse{
			Error: "no active session",
		})
	}
	return c.Status(fiber.StatusOK).JSON(a.Sessions.Profile())
}
