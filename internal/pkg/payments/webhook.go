package payments

import (
	"context"
	"errors"
	"math"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/luminacursos/checkout/app/models"
	"github.com/luminacursos/checkout/internal/pkg/asaas"
	"github.com/luminacursos/checkout/internal/pkg/orders"
)

// AmountTolerance absorbs cent-level rounding drift between our totals and
// what the gateway reports. Anything beyond it is treated as a forged or
// corrupted notification.
const AmountTolerance = 0.02

var ErrAmountMismatch = errors.New("webhook amount does not match the expected charge value")

// orderLookup is the slice of the order ledger webhook handling needs.
type orderLookup interface {
	GetByPublicID(publicID string) (*models.Order, error)
	GetByGatewayPaymentID(gatewayPaymentID string) (*models.Order, error)
}

// WebhookHandler validates gateway payment events and feeds settled ones into
// the reconciler.
type WebhookHandler struct {
	orders     orderLookup
	reconciler *Reconciler
}

// NewWebhookHandler creates a webhook handler from injected dependencies.
func NewWebhookHandler(lookup orderLookup, reconciler *Reconciler) *WebhookHandler {
	return &WebhookHandler{orders: lookup, reconciler: reconciler}
}

// NewWebhookHandlerFromDB creates a webhook handler from a GORM DB handle.
func NewWebhookHandlerFromDB(db *gorm.DB) *WebhookHandler {
	return NewWebhookHandler(orders.NewServiceFromDB(db), NewReconcilerFromDB(db))
}

// WebhookOutcome reports how an event was handled. Ignored events are still
// acknowledged to the gateway so it stops redelivering them.
type WebhookOutcome struct {
	Order   *models.Order
	Ignored bool
	Reason  string
}

// HandleEvent processes one gateway webhook. Only PAYMENT_CONFIRMED and
// PAYMENT_RECEIVED settle orders; for installment plans only the first
// installment does. The reported amount must match the expected charge within
// AmountTolerance.
func (h *WebhookHandler) HandleEvent(ctx context.Context, event *asaas.WebhookEvent) (*WebhookOutcome, error) {
	if event.Event != asaas.EventPaymentConfirmed && event.Event != asaas.EventPaymentReceived {
		log.Debugf("[Payments] Ignoring webhook event %s for payment %s", event.Event, event.Payment.ID)
		return &WebhookOutcome{Ignored: true, Reason: "event does not settle payments"}, nil
	}

	order, err := h.lookupOrder(&event.Payment)
	if err != nil {
		return nil, err
	}

	// Later installments of an already-settled plan: acknowledge, change
	// nothing. Access was granted on installment one.
	if event.Payment.InstallmentNumber > 1 {
		log.Infof("[Payments] Ignoring installment %d for order %s", event.Payment.InstallmentNumber, order.PublicID)
		return &WebhookOutcome{Order: order, Ignored: true, Reason: "not the first installment"}, nil
	}

	expected := order.FinalPrice
	if event.Payment.Installment != "" || order.InstallmentCount > 1 {
		expected = order.InstallmentValue()
	}
	if math.Abs(event.Payment.Value-expected) > AmountTolerance {
		log.Warnf("[Payments] Amount mismatch for order %s: got %.2f, expected %.2f", order.PublicID, event.Payment.Value, expected)
		return nil, ErrAmountMismatch
	}

	result, err := h.reconciler.ConfirmAndProvision(ctx, order, event.Payment.ID)
	if err != nil {
		return nil, err
	}
	return &WebhookOutcome{Order: result.Order, Ignored: result.AlreadyProcessed}, nil
}

// lookupOrder resolves the order a payment event belongs to: by the gateway
// payment id first, falling back to the external reference that carries our
// public order id.
func (h *WebhookHandler) lookupOrder(payment *asaas.WebhookPayment) (*models.Order, error) {
	order, err := h.orders.GetByGatewayPaymentID(payment.ID)
	if err == nil {
		return order, nil
	}
	if !errors.Is(err, orders.ErrOrderNotFound) {
		return nil, err
	}
	if payment.ExternalReference == "" {
		return nil, orders.ErrOrderNotFound
	}
	return h.orders.GetByPublicID(payment.ExternalReference)
}
