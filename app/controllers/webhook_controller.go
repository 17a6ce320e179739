package controllers

import (
	"crypto/subtle"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/luminacursos/checkout/internal/pkg/asaas"
	"github.com/luminacursos/checkout/internal/pkg/database"
	"github.com/luminacursos/checkout/internal/pkg/env"
	"github.com/luminacursos/checkout/internal/pkg/orders"
	"github.com/luminacursos/checkout/internal/pkg/payments"
)

// HandleAsaasWebhook receives payment event notifications from the gateway.
// The shared token in the asaas-access-token header authenticates the caller.
func HandleAsaasWebhook(c *fiber.Ctx) error {
	expected := strings.TrimSpace(env.GetEnv("ASAAS_WEBHOOK_TOKEN", ""))
	if expected == "" {
		log.Error("[Webhook] ASAAS_WEBHOOK_TOKEN is not configured, rejecting event")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Webhook is not configured"})
	}
	got := strings.TrimSpace(c.Get("asaas-access-token"))
	if subtle.ConstantTimeCompare([]byte(got), []byte(expected)) != 1 {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Invalid webhook token"})
	}

	var event asaas.WebhookEvent
	if err := c.BodyParser(&event); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid event body"})
	}

	handler := payments.NewWebhookHandlerFromDB(database.GetDB())
	outcome, err := handler.HandleEvent(c.Context(), &event)
	if err != nil {
		switch {
		case errors.Is(err, orders.ErrOrderNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "No order for this payment"})
		case errors.Is(err, payments.ErrAmountMismatch):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "amount_mismatch", "message": "Reported amount does not match the charge"})
		}
		log.Errorf("[Webhook] Failed to process event %s for payment %s: %v", event.Event, event.Payment.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to process event"})
	}

	resp := fiber.Map{"received": true, "ignored": outcome.Ignored}
	if outcome.Reason != "" {
		resp["reason"] = outcome.Reason
	}
	return c.JSON(resp)
}
