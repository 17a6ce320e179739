package payments

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luminacursos/checkout/app/models"
	"github.com/luminacursos/checkout/internal/pkg/asaas"
	"github.com/luminacursos/checkout/internal/pkg/orders"
)

type fakeOrderLookup struct {
	byPayment map[string]*models.Order
	byPublic  map[string]*models.Order
}

func (f *fakeOrderLookup) GetByPublicID(publicID string) (*models.Order, error) {
	if o, ok := f.byPublic[publicID]; ok {
		return o, nil
	}
	return nil, orders.ErrOrderNotFound
}

func (f *fakeOrderLookup) GetByGatewayPaymentID(id string) (*models.Order, error) {
	if o, ok := f.byPayment[id]; ok {
		return o, nil
	}
	return nil, orders.ErrOrderNotFound
}

func webhookFixture(order *models.Order) (*WebhookHandler, *fakePaymentsRepo, *fakeScheduler) {
	repo := newFakePaymentsRepo()
	repo.statuses[order.ID] = order.Status
	sched := &fakeScheduler{}
	lookup := &fakeOrderLookup{
		byPayment: map[string]*models.Order{},
		byPublic:  map[string]*models.Order{order.PublicID: order},
	}
	if order.GatewayPaymentID != "" {
		lookup.byPayment[order.GatewayPaymentID] = order
	}
	return NewWebhookHandler(lookup, NewReconciler(repo, sched)), repo, sched
}

func settledEvent(paymentID string, value float64) *asaas.WebhookEvent {
	return &asaas.WebhookEvent{
		Event:   asaas.EventPaymentConfirmed,
		Payment: asaas.WebhookPayment{ID: paymentID, Status: asaas.PaymentStatusConfirmed, Value: value},
	}
}

func TestHandleEvent_SettlesOrder(t *testing.T) {
	order := pendingOrder()
	order.GatewayPaymentID = "pay_1"
	h, repo, sched := webhookFixture(order)

	outcome, err := h.HandleEvent(context.Background(), settledEvent("pay_1", 1077.30))
	require.NoError(t, err)

	assert.False(t, outcome.Ignored)
	assert.Equal(t, models.OrderStatusPaid, outcome.Order.Status)
	assert.Equal(t, models.OrderStatusPaid, repo.statuses[order.ID])
	assert.Len(t, sched.enqueued, 2)
}

func TestHandleEvent_ToleratesCentDrift(t *testing.T) {
	order := pendingOrder()
	order.GatewayPaymentID = "pay_1"
	h, _, _ := webhookFixture(order)

	outcome, err := h.HandleEvent(context.Background(), settledEvent("pay_1", 1077.31))
	require.NoError(t, err)
	assert.False(t, outcome.Ignored)
}

func TestHandleEvent_AmountMismatchRejected(t *testing.T) {
	order := pendingOrder()
	order.GatewayPaymentID = "pay_1"
	h, repo, sched := webhookFixture(order)

	_, err := h.HandleEvent(context.Background(), settledEvent("pay_1", 10.00))
	assert.ErrorIs(t, err, ErrAmountMismatch)

	assert.Equal(t, models.OrderStatusPending, repo.statuses[order.ID], "a mismatched amount must not change state")
	assert.Empty(t, sched.enqueued)
}

func TestHandleEvent_InstallmentPlanExpectsPerInstallmentValue(t *testing.T) {
	order := pendingOrder()
	order.CouponCode = ""
	order.PaymentMethod = models.PaymentMethodCreditCard
	order.FinalPrice = 1497
	order.CouponDiscount = 0
	order.InstallmentCount = 12
	order.GatewayPaymentID = "pay_1"
	h, _, _ := webhookFixture(order)

	event := settledEvent("pay_1", 124.75)
	event.Payment.Installment = "ins_1"
	event.Payment.InstallmentNumber = 1

	outcome, err := h.HandleEvent(context.Background(), event)
	require.NoError(t, err)
	assert.False(t, outcome.Ignored)
	assert.Equal(t, models.OrderStatusPaid, outcome.Order.Status)
}

func TestHandleEvent_LaterInstallmentsIgnored(t *testing.T) {
	order := pendingOrder()
	order.CouponCode = ""
	order.InstallmentCount = 12
	order.GatewayPaymentID = "pay_1"
	order.Status = models.OrderStatusCompleted
	h, _, sched := webhookFixture(order)

	event := settledEvent("pay_1", 124.75)
	event.Payment.Installment = "ins_1"
	event.Payment.InstallmentNumber = 2

	outcome, err := h.HandleEvent(context.Background(), event)
	require.NoError(t, err)
	assert.True(t, outcome.Ignored)
	assert.Empty(t, sched.enqueued)
}

func TestHandleEvent_NonSettlingEventAcknowledged(t *testing.T) {
	order := pendingOrder()
	order.GatewayPaymentID = "pay_1"
	h, repo, _ := webhookFixture(order)

	outcome, err := h.HandleEvent(context.Background(), &asaas.WebhookEvent{
		Event:   "PAYMENT_OVERDUE",
		Payment: asaas.WebhookPayment{ID: "pay_1", Value: 1077.30},
	})
	require.NoError(t, err)
	assert.True(t, outcome.Ignored)
	assert.Equal(t, models.OrderStatusPending, repo.statuses[order.ID])
}

func TestHandleEvent_UnknownPaymentFallsBackToExternalReference(t *testing.T) {
	order := pendingOrder()
	h, _, _ := webhookFixture(order) // no gateway payment id linked yet

	event := settledEvent("pay_never_linked", 1077.30)
	event.Payment.ExternalReference = order.PublicID

	outcome, err := h.HandleEvent(context.Background(), event)
	require.NoError(t, err)
	assert.Equal(t, order.PublicID, outcome.Order.PublicID)
	assert.Equal(t, models.OrderStatusPaid, outcome.Order.Status)
}

func TestHandleEvent_UnknownOrder(t *testing.T) {
	h, _, _ := webhookFixture(pendingOrder())

	_, err := h.HandleEvent(context.Background(), settledEvent("pay_missing", 1077.30))
	assert.ErrorIs(t, err, orders.ErrOrderNotFound)
}
