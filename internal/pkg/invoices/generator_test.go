package invoices

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/luminacursos/checkout/app/models"
	"github.com/luminacursos/checkout/internal/pkg/asaas"
)

type fakeInvoiceRepo struct {
	invoices map[uint]*models.Invoice
	nextID   uint
}

func newFakeInvoiceRepo() *fakeInvoiceRepo {
	return &fakeInvoiceRepo{invoices: map[uint]*models.Invoice{}}
}

func (f *fakeInvoiceRepo) CreateInvoice(inv *models.Invoice) error {
	for _, existing := range f.invoices {
		if existing.OrderID == inv.OrderID {
			return errors.New("duplicate invoice for order")
		}
	}
	f.nextID++
	inv.ID = f.nextID
	f.invoices[inv.ID] = inv
	return nil
}

func (f *fakeInvoiceRepo) GetByOrderID(orderID uint) (*models.Invoice, error) {
	for _, inv := range f.invoices {
		if inv.OrderID == orderID {
			return inv, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeInvoiceRepo) MarkProcessing(id uint) error {
	f.invoices[id].Status = models.InvoiceStatusProcessing
	return nil
}

func (f *fakeInvoiceRepo) MarkIssued(id uint, gatewayInvoiceID string) error {
	now := time.Now()
	inv := f.invoices[id]
	inv.Status = models.InvoiceStatusIssued
	inv.GatewayInvoiceID = gatewayInvoiceID
	inv.ErrorMsg = ""
	inv.IssuedAt = &now
	return nil
}

func (f *fakeInvoiceRepo) MarkFailed(id uint, errorMsg string) error {
	inv := f.invoices[id]
	inv.Status = models.InvoiceStatusFailed
	inv.ErrorMsg = errorMsg
	return nil
}

type fakeInvoiceGateway struct {
	calls []asaas.InvoiceInput
	err   error
}

func (f *fakeInvoiceGateway) CreateInvoice(ctx context.Context, in asaas.InvoiceInput) (*asaas.Invoice, error) {
	f.calls = append(f.calls, in)
	if f.err != nil {
		return nil, f.err
	}
	return &asaas.Invoice{ID: "inv_fiscal_1", Status: "SCHEDULED"}, nil
}

func invoiceTestOrder() *models.Order {
	return &models.Order{
		ID:               9,
		PublicID:         "order-uuid-9",
		CustomerName:     "Maria Silva",
		CustomerEmail:    "maria@example.com",
		CustomerTaxID:    "12345678901",
		ProductName:      "Formação Completa",
		FinalPrice:       1497,
		PaymentMethod:    models.PaymentMethodCreditCard,
		Status:           models.OrderStatusPaid,
		GatewayPaymentID: "pay_1",
		InstallmentCount: 12,
	}
}

func TestIssueForOrder_SingleInvoiceOverFullTotal(t *testing.T) {
	repo := newFakeInvoiceRepo()
	gw := &fakeInvoiceGateway{}
	svc := NewService(repo, gw)

	require.NoError(t, svc.IssueForOrder(context.Background(), invoiceTestOrder()))

	inv, err := repo.GetByOrderID(9)
	require.NoError(t, err)
	assert.Equal(t, models.InvoiceStatusIssued, inv.Status)
	assert.Equal(t, "inv_fiscal_1", inv.GatewayInvoiceID)
	assert.Equal(t, 1497.0, inv.Value, "installment plans still invoice the full total")
	assert.Equal(t, "Pagamento em 12x de R$ 124.75", inv.InstallmentNote)

	require.Len(t, gw.calls, 1)
	assert.Equal(t, 1497.0, gw.calls[0].Value)
	assert.Equal(t, "pay_1", gw.calls[0].Payment)
}

func TestIssueForOrder_IdempotentOnceIssued(t *testing.T) {
	repo := newFakeInvoiceRepo()
	gw := &fakeInvoiceGateway{}
	svc := NewService(repo, gw)
	order := invoiceTestOrder()

	require.NoError(t, svc.IssueForOrder(context.Background(), order))
	require.NoError(t, svc.IssueForOrder(context.Background(), order))

	assert.Len(t, gw.calls, 1, "an issued invoice must not be scheduled twice")
	assert.Len(t, repo.invoices, 1)
}

func TestIssueForOrder_FailureIsRecordedAndRetried(t *testing.T) {
	repo := newFakeInvoiceRepo()
	gw := &fakeInvoiceGateway{err: errors.New("asaas POST /invoices failed: status=500 body=oops")}
	svc := NewService(repo, gw)
	order := invoiceTestOrder()

	require.Error(t, svc.IssueForOrder(context.Background(), order))

	inv, err := repo.GetByOrderID(9)
	require.NoError(t, err)
	assert.Equal(t, models.InvoiceStatusFailed, inv.Status)
	assert.Contains(t, inv.ErrorMsg, "status=500")

	// A later attempt reuses the same row instead of creating a second invoice.
	gw.err = nil
	require.NoError(t, svc.IssueForOrder(context.Background(), order))
	assert.Len(t, repo.invoices, 1)
	assert.Equal(t, models.InvoiceStatusIssued, repo.invoices[inv.ID].Status)
}

func TestIssueForOrder_RejectsUnpaidOrder(t *testing.T) {
	svc := NewService(newFakeInvoiceRepo(), &fakeInvoiceGateway{})

	order := invoiceTestOrder()
	order.Status = models.OrderStatusPending

	assert.ErrorIs(t, svc.IssueForOrder(context.Background(), order), ErrOrderNotPaid)
}

func TestInstallmentNote_SinglePaymentHasNone(t *testing.T) {
	order := invoiceTestOrder()
	order.InstallmentCount = 1
	assert.Empty(t, installmentNote(order))
}
