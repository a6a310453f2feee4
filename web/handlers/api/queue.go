package api

import (
	"github.com/gofiber/fiber/v2"

	"github.com/relaykit/relaykit/internal/core/app"
	"github.com/relaykit/relaykit/internal/core/faults"
	"github.com/relaykit/relaykit/internal/core/models"
	"github.com/relaykit/relaykit/pkg/persistence"
)

// ListQueue returns the full offline queue in capture order.
func ListQueue(c *fiber.Ctx, a *app.App) error {
	entries, err := a.Outbox.Drain()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(models.ErrorResponse{
			Error: "failed to read queue: " + err.Error(),
		})
	}
	if entries == nil {
		entries = []persistence.QueuedRequest{}
	}
	return c.Status(fiber.StatusOK).JSON(models.QueueListResponse{Requests: entries})
}

// SyncNow runs one sync pass and reports how many entries were replayed.
func SyncNow(c *fiber.Ctx, a *app.App) error {
	report, err := a.Syncer.Sync(c.Context())
	if err != nil {
		status := fiber.StatusInternalServerError
		switch faults.KindOf(err) {
		case faults.KindSyncRefused:
			status = fiber.StatusConflict
		case faults.KindSyncBusy:
			status = fiber.StatusTooManyRequests
		}
		return c.Status(status).JSON(models.ErrorResponse{Error: err.Error()})
	}
	return c.Status(fiber.StatusOK).JSON(models.SyncResponse{
		Synced: report.Synced,
		Failed: report.Failed,
	})
}
