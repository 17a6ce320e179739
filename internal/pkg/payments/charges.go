package payments

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/luminacursos/checkout/app/models"
	"github.com/luminacursos/checkout/internal/pkg/asaas"
	"github.com/luminacursos/checkout/internal/pkg/orders"
)

// pixDueDays is how long a PIX charge stays payable at the gateway.
const pixDueDays = 2

var ErrPaymentAlreadyCreated = errors.New("order already has a gateway payment")

// Gateway is the slice of the payment gateway used for charge orchestration.
type Gateway interface {
	CreateCustomer(ctx context.Context, in asaas.CustomerInput) (*asaas.Customer, error)
	CreateCharge(ctx context.Context, in asaas.ChargeInput) (*asaas.Charge, error)
	GetPixQRCode(ctx context.Context, paymentID string) (*asaas.PixQRCode, error)
	GetPayment(ctx context.Context, paymentID string) (*asaas.Charge, error)
}

// PaymentRequest carries the charge options picked on the payment step.
type PaymentRequest struct {
	InstallmentCount     int
	CreditCard           *asaas.CreditCard
	CreditCardHolderInfo *asaas.CreditCardHolderInfo
	RemoteIP             string
}

// ChargeService drives charge creation against the gateway and hands settled
// charges straight to the reconciler.
type ChargeService struct {
	gateway    Gateway
	orders     *orders.Service
	reconciler *Reconciler

	// qrRetryDelay is how long to wait before the single QR code retry.
	qrRetryDelay time.Duration
}

// NewChargeService creates a charge service from injected dependencies.
func NewChargeService(gateway Gateway, orderSvc *orders.Service, reconciler *Reconciler) *ChargeService {
	return &ChargeService{
		gateway:      gateway,
		orders:       orderSvc,
		reconciler:   reconciler,
		qrRetryDelay: 2 * time.Second,
	}
}

// NewChargeServiceFromDB creates a charge service from a GORM DB handle.
func NewChargeServiceFromDB(db *gorm.DB) *ChargeService {
	return NewChargeService(asaas.NewClientFromEnv(), orders.NewServiceFromDB(db), NewReconcilerFromDB(db))
}

// CreatePayment creates the gateway charge for a pending order: registers the
// buyer as a gateway customer, opens the charge, links it to the order and,
// for PIX, fetches the QR code. A credit card charge the gateway settles
// immediately is confirmed before returning.
func (s *ChargeService) CreatePayment(ctx context.Context, orderPublicID string, req PaymentRequest) (*models.Order, error) {
	order, err := s.orders.GetByPublicID(orderPublicID)
	if err != nil {
		return nil, err
	}
	if order.IsProcessed() {
		return order, nil
	}
	if order.GatewayPaymentID != "" {
		return nil, ErrPaymentAlreadyCreated
	}

	customer, err := s.gateway.CreateCustomer(ctx, asaas.CustomerInput{
		Name:          order.CustomerName,
		Email:         order.CustomerEmail,
		CpfCnpj:       order.CustomerTaxID,
		Phone:         order.CustomerPhone,
		PostalCode:    order.PostalCode,
		AddressNumber: order.AddressNumber,
	})
	if err != nil {
		return nil, err
	}

	installments := 1
	if order.PaymentMethod == models.PaymentMethodCreditCard && req.InstallmentCount > 1 {
		installments = req.InstallmentCount
	}

	charge, err := s.gateway.CreateCharge(ctx, asaas.ChargeInput{
		CustomerID:           customer.ID,
		BillingType:          order.PaymentMethod,
		Value:                order.FinalPrice,
		InstallmentCount:     installments,
		DueDate:              s.dueDate(order),
		Description:          order.ProductName,
		ExternalReference:    order.PublicID,
		CreditCard:           req.CreditCard,
		CreditCardHolderInfo: req.CreditCardHolderInfo,
		RemoteIP:             req.RemoteIP,
	})
	if err != nil {
		return nil, err
	}

	link := orders.LinkPaymentInput{
		GatewayPaymentID:  charge.ID,
		GatewayCustomerID: customer.ID,
		InstallmentCount:  installments,
	}
	if order.PaymentMethod == models.PaymentMethodPix {
		if qr := s.fetchQRCode(ctx, charge.ID); qr != nil {
			link.PixPayload = qr.Payload
			link.PixQRCodeImage = qr.EncodedImage
		}
	}

	order, err = s.orders.LinkPayment(ctx, order.PublicID, link)
	if err != nil {
		return nil, err
	}

	if asaas.IsPaidStatus(charge.Status) {
		result, err := s.reconciler.ConfirmAndProvision(ctx, order, charge.ID)
		if err != nil {
			return nil, err
		}
		return result.Order, nil
	}
	return order, nil
}

// CheckPaymentStatus is the manual poll trigger: it asks the gateway for the
// charge state and confirms the order when the charge settled but the webhook
// has not landed yet.
func (s *ChargeService) CheckPaymentStatus(ctx context.Context, orderPublicID string) (*models.Order, error) {
	order, err := s.orders.GetByPublicID(orderPublicID)
	if err != nil {
		return nil, err
	}
	if order.IsProcessed() || order.GatewayPaymentID == "" {
		return order, nil
	}

	charge, err := s.gateway.GetPayment(ctx, order.GatewayPaymentID)
	if err != nil {
		return nil, err
	}
	if !asaas.IsPaidStatus(charge.Status) {
		return order, nil
	}

	result, err := s.reconciler.ConfirmAndProvision(ctx, order, charge.ID)
	if err != nil {
		return nil, err
	}
	return result.Order, nil
}

// fetchQRCode pulls the PIX QR payload, retrying exactly once after a short
// delay since the gateway may not have generated it yet. A final failure is
// tolerated; the buyer can still pay via the gateway's own invoice page.
func (s *ChargeService) fetchQRCode(ctx context.Context, paymentID string) *asaas.PixQRCode {
	qr, err := s.gateway.GetPixQRCode(ctx, paymentID)
	if err == nil {
		return qr
	}
	log.Warnf("[Payments] First QR code fetch for %s failed, retrying once: %v", paymentID, err)

	select {
	case <-ctx.Done():
		return nil
	case <-time.After(s.qrRetryDelay):
	}

	qr, err = s.gateway.GetPixQRCode(ctx, paymentID)
	if err != nil {
		log.Errorf("[Payments] QR code unavailable for %s: %v", paymentID, err)
		return nil
	}
	return qr
}

func (s *ChargeService) dueDate(order *models.Order) string {
	if order.PaymentMethod == models.PaymentMethodPix {
		return time.Now().AddDate(0, 0, pixDueDays).Format("2006-01-02")
	}
	return time.Now().Format("2006-01-02")
}
