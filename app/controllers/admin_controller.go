package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/luminacursos/checkout/app/models"
	"github.com/luminacursos/checkout/internal/pkg/database"
	"github.com/luminacursos/checkout/internal/pkg/jobqueue"
	"github.com/luminacursos/checkout/internal/pkg/orders"
)

// HandleQueueStats exposes job queue counters for operations.
func HandleQueueStats(c *fiber.Ctx) error {
	queue := jobqueue.GetManager().GetQueue()

	stats, err := queue.GetJobStats(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load queue stats"})
	}
	pending, _ := queue.GetQueueSize(c.Context())
	processing, _ := queue.GetProcessingSize(c.Context())

	return c.JSON(fiber.Map{
		"pending":    pending,
		"processing": processing,
		"stats":      stats,
	})
}

// HandleRetryProvisioning re-enqueues the access fan-out for an order stuck in
// provisioning after a partial failure.
func HandleRetryProvisioning(c *fiber.Ctx) error {
	svc := orders.NewServiceFromDB(database.GetDB())
	order, err := svc.GetByPublicID(c.Params("id"))
	if err != nil {
		if errors.Is(err, orders.ErrOrderNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Order not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load order"})
	}

	if order.Status != models.OrderStatusProvisioning && order.Status != models.OrderStatusPaid {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "invalid_state", "message": "Order is not awaiting provisioning"})
	}

	job, err := jobqueue.GetManager().GetQueue().EnqueueProvisionAccessJob(order.PublicID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to enqueue provisioning"})
	}

	return c.JSON(fiber.Map{"enqueued": true, "job_id": job.ID})
}
