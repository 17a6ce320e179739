package invoices

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/luminacursos/checkout/app/models"
	"github.com/luminacursos/checkout/internal/pkg/asaas"
	"github.com/luminacursos/checkout/internal/pkg/env"
	"github.com/luminacursos/checkout/internal/pkg/pricing"
)

// Fiscal constants for the service sold. The gateway carries them verbatim to
// the municipal invoice system.
const (
	serviceDescription   = "Serviço educacional - curso online"
	municipalServiceName = "Treinamento e ensino a distância"
)

var fixedTaxes = asaas.InvoiceTaxes{
	RetainISS: false,
	ISS:       2,
	COFINS:    0,
	CSLL:      0,
	INSS:      0,
	IR:        0,
	PIS:       0,
}

var ErrOrderNotPaid = errors.New("invoice requires a paid order")

// Gateway is the slice of the payment gateway used for invoice scheduling.
type Gateway interface {
	CreateInvoice(ctx context.Context, in asaas.InvoiceInput) (*asaas.Invoice, error)
}

// Repository provides DB operations for invoice tracking.
type Repository interface {
	CreateInvoice(inv *models.Invoice) error
	GetByOrderID(orderID uint) (*models.Invoice, error)
	MarkProcessing(id uint) error
	MarkIssued(id uint, gatewayInvoiceID string) error
	MarkFailed(id uint, errorMsg string) error
}

// Service generates fiscal invoices for confirmed orders. One invoice exists
// per order regardless of how it was paid: installment plans still produce a
// single invoice over the full total, annotated with the plan.
type Service struct {
	repo    Repository
	gateway Gateway
}

// NewService creates an invoice service from injected dependencies.
func NewService(repo Repository, gateway Gateway) *Service {
	return &Service{repo: repo, gateway: gateway}
}

// NewServiceFromDB creates an invoice service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB) *Service {
	return NewService(NewRepository(db), asaas.NewClientFromEnv())
}

// IssueForOrder ensures the order's invoice row exists and schedules issuance
// with the gateway. Calling it again for an already-issued order is a no-op;
// a previous failure is retried.
func (s *Service) IssueForOrder(ctx context.Context, order *models.Order) error {
	if !order.IsProcessed() {
		return ErrOrderNotPaid
	}

	inv, err := s.ensureInvoice(order)
	if err != nil {
		return err
	}
	if inv.Status == models.InvoiceStatusIssued {
		log.Debugf("[Invoices] Order %s already has invoice %s, skipping", order.PublicID, inv.GatewayInvoiceID)
		return nil
	}

	if err := s.repo.MarkProcessing(inv.ID); err != nil {
		return err
	}

	created, err := s.gateway.CreateInvoice(ctx, asaas.InvoiceInput{
		Payment:              order.GatewayPaymentID,
		ServiceDescription:   serviceDescription,
		Observations:         s.observations(order),
		Value:                inv.Value,
		Deductions:           0,
		EffectiveDate:        time.Now().Format("2006-01-02"),
		MunicipalServiceCode: env.GetEnv("INVOICE_MUNICIPAL_SERVICE_CODE", ""),
		MunicipalServiceName: municipalServiceName,
		Taxes:                fixedTaxes,
	})
	if err != nil {
		if merr := s.repo.MarkFailed(inv.ID, err.Error()); merr != nil {
			log.Errorf("[Invoices] Failed to record issuance failure for invoice %d: %v", inv.ID, merr)
		}
		return err
	}

	log.Infof("[Invoices] Scheduled invoice %s for order %s", created.ID, order.PublicID)
	return s.repo.MarkIssued(inv.ID, created.ID)
}

// ensureInvoice looks the order's invoice up and creates it when missing. The
// value is always the full order total, never a per-installment slice.
func (s *Service) ensureInvoice(order *models.Order) (*models.Invoice, error) {
	inv, err := s.repo.GetByOrderID(order.ID)
	if err == nil {
		return inv, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	inv = &models.Invoice{
		OrderID:          order.ID,
		GatewayPaymentID: order.GatewayPaymentID,
		Value:            order.FinalPrice,
		InstallmentNote:  installmentNote(order),
		CustomerName:     order.CustomerName,
		CustomerEmail:    order.CustomerEmail,
		CustomerTaxID:    order.CustomerTaxID,
		Status:           models.InvoiceStatusPending,
	}
	if err := s.repo.CreateInvoice(inv); err != nil {
		return nil, err
	}
	return inv, nil
}

func (s *Service) observations(order *models.Order) string {
	obs := fmt.Sprintf("Pedido %s - %s", order.PublicID, order.ProductName)
	if note := installmentNote(order); note != "" {
		obs += " - " + note
	}
	return obs
}

func installmentNote(order *models.Order) string {
	if order.InstallmentCount <= 1 {
		return ""
	}
	return fmt.Sprintf("Pagamento em %dx de R$ %.2f", order.InstallmentCount, pricing.RoundCents(order.InstallmentValue()))
}
