package api

import (
	"github.com/gofiber/fiber/v2"

	"github.com/relaykit/relaykit/internal/core/app"
	"github.com/relaykit/relaykit/internal/core/mode"
	"github.com/relaykit/relaykit/internal/core/models"
)

// SwitchMode changes the operating mode, optionally overriding the endpoint
// defaults for the target mode.
func SwitchMode(c *fiber.Ctx, a *app.App) error {
	var req models.SwitchModeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error: "invalid request body",
		})
	}

	target, err := mode.Parse(req.Mode)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{Error: err.Error()})
	}

	if err := a.Modes.SwitchMode(target, req.APIBaseURL, req.StreamBaseURL); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(models.ErrorResponse{Error: err.Error()})
	}
	return c.Status(fiber.StatusOK).JSON(models.SuccessResponse{
		Message: "mode switched to " + req.Mode,
	})
}

// GetServices returns the tracked local service statuses.
func GetServices(c *fiber.Ctx, a *app.App) error {
	return c.Status(fiber.StatusOK).JSON(a.Modes.ServiceStatuses())
}

// UpdateServices merges reported service statuses into the tracked map.
func UpdateServices(c *fiber.Ctx, a *app.App) error {
	var patch map[string]string
	if err := c.BodyParser(&patch); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error: "invalid request body",
		})
	}
	a.Modes.UpdateServiceStatuses(patch)
	return c.Status(fiber.StatusOK).JSON(a.Modes.ServiceStatuses())
}
