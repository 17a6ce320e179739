package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/luminacursos/checkout/app/models"
	"github.com/luminacursos/checkout/internal/pkg/pricing"
	"gorm.io/gorm"
)

var (
	ErrProductUnavailable = errors.New("product not found or inactive")
	ErrInvalidPrice       = errors.New("product has no valid price configured")
	ErrInvalidFinalPrice  = errors.New("final price must be greater than zero")
	ErrOrderNotFound      = errors.New("order not found")
)

// CreateOrderInput carries the buyer identity and purchase selection coming
// from the checkout form. Totals are always recomputed server-side.
type CreateOrderInput struct {
	CustomerName  string
	CustomerEmail string
	CustomerTaxID string
	CustomerPhone string
	AddressStreet string
	AddressNumber string
	AddressCity   string
	AddressState  string
	PostalCode    string

	ProductSlug   string
	PaymentMethod string
	CouponCode    string
}

// LinkPaymentInput attaches gateway identifiers to an existing pending order
// after the charge has been created.
type LinkPaymentInput struct {
	GatewayPaymentID  string
	GatewayCustomerID string
	InstallmentCount  int
	PixPayload        string
	PixQRCodeImage    string
}

// Repository provides DB operations used by the order ledger.
type Repository interface {
	CreateOrder(order *models.Order) error
	GetByPublicID(publicID string) (*models.Order, error)
	GetByGatewayPaymentID(gatewayPaymentID string) (*models.Order, error)
	LinkPayment(orderID uint, in LinkPaymentInput) error
	SetProvisioningOutcome(orderID uint, resultsJSON string, completed bool, completedAt *time.Time) error
	SetExternalAuthUserID(orderID uint, externalAuthUserID string) error
	GetProductBySlug(slug string) (*models.Product, error)
	GetProductByID(id uint) (*models.Product, error)
}

// Service is the order ledger: it creates pending orders with a server-side
// price breakdown and records gateway linkage and provisioning outcomes.
type Service struct {
	repo    Repository
	pricing *pricing.Service
}

// NewService creates an order service from injected dependencies.
func NewService(repo Repository, pricingSvc *pricing.Service) *Service {
	return &Service{repo: repo, pricing: pricingSvc}
}

// NewServiceFromDB creates an order service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB) *Service {
	return NewService(NewRepository(db), pricing.NewServiceFromDB(db))
}

// CreateOrder resolves the product, computes the payment-method-adjusted price
// and optional coupon discount, and persists a pending order with a 7-day
// expiration. A rejected coupon fails the whole creation.
func (s *Service) CreateOrder(ctx context.Context, in CreateOrderInput) (*models.Order, error) {
	product, err := s.repo.GetProductBySlug(strings.TrimSpace(in.ProductSlug))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductUnavailable
		}
		return nil, err
	}
	if !product.IsActive {
		return nil, ErrProductUnavailable
	}
	if product.Price <= 0 {
		return nil, ErrInvalidPrice
	}
	if product.PixPrice != nil && *product.PixPrice <= 0 {
		return nil, ErrInvalidPrice
	}

	method := strings.ToUpper(strings.TrimSpace(in.PaymentMethod))
	if method != models.PaymentMethodPix && method != models.PaymentMethodCreditCard {
		return nil, fmt.Errorf("unsupported payment method: %s", in.PaymentMethod)
	}

	basePrice := product.Price
	pixDiscount := 0.0
	if method == models.PaymentMethodPix && product.PixPrice != nil {
		basePrice = *product.PixPrice
		// Informational: already baked into basePrice, shown to the buyer.
		pixDiscount = pricing.RoundCents(product.Price - *product.PixPrice)
	}

	finalPrice := basePrice
	couponDiscount := 0.0
	couponCode := strings.ToUpper(strings.TrimSpace(in.CouponCode))
	if couponCode != "" {
		quote, err := s.pricing.Quote(ctx, basePrice, couponCode, in.CustomerTaxID, product.ID)
		if err != nil {
			return nil, err
		}
		finalPrice = quote.FinalPrice
		couponDiscount = quote.DiscountAmount
	}

	if finalPrice <= 0 {
		return nil, ErrInvalidFinalPrice
	}

	now := time.Now()
	order := &models.Order{
		PublicID:         uuid.New().String(),
		CustomerName:     strings.TrimSpace(in.CustomerName),
		CustomerEmail:    strings.ToLower(strings.TrimSpace(in.CustomerEmail)),
		CustomerTaxID:    strings.TrimSpace(in.CustomerTaxID),
		CustomerPhone:    strings.TrimSpace(in.CustomerPhone),
		AddressStreet:    in.AddressStreet,
		AddressNumber:    in.AddressNumber,
		AddressCity:      in.AddressCity,
		AddressState:     in.AddressState,
		PostalCode:       in.PostalCode,
		ProductID:        product.ID,
		ProductName:      product.Name,
		OriginalPrice:    basePrice,
		FinalPrice:       finalPrice,
		CouponCode:       couponCode,
		CouponDiscount:   couponDiscount,
		PixDiscount:      pixDiscount,
		PaymentMethod:    method,
		Status:           models.OrderStatusPending,
		InstallmentCount: 1,
		ExpiresAt:        now.Add(models.PendingOrderTTL),
	}

	if err := s.repo.CreateOrder(order); err != nil {
		return nil, err
	}
	return order, nil
}

// LinkPayment attaches the gateway payment/customer ids and charge details to
// a pending order. The order must exist before the charge is created so the
// gateway can carry its id as external reference.
func (s *Service) LinkPayment(ctx context.Context, publicID string, in LinkPaymentInput) (*models.Order, error) {
	_ = ctx
	order, err := s.GetByPublicID(publicID)
	if err != nil {
		return nil, err
	}
	if in.InstallmentCount < 1 {
		in.InstallmentCount = 1
	}
	if err := s.repo.LinkPayment(order.ID, in); err != nil {
		return nil, err
	}
	return s.GetByPublicID(publicID)
}

// GetByPublicID loads an order by its public uuid.
func (s *Service) GetByPublicID(publicID string) (*models.Order, error) {
	order, err := s.repo.GetByPublicID(strings.TrimSpace(publicID))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return order, nil
}

// GetByGatewayPaymentID loads an order via the gateway payment id carried in
// webhook payloads.
func (s *Service) GetByGatewayPaymentID(gatewayPaymentID string) (*models.Order, error) {
	order, err := s.repo.GetByGatewayPaymentID(strings.TrimSpace(gatewayPaymentID))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return order, nil
}

// RecordProvisioningOutcome persists per-deployment results and moves the
// order to completed (unanimous success) or provisioning (partial failure).
// The transition never regresses a completed order.
func (s *Service) RecordProvisioningOutcome(order *models.Order, results []models.ProvisionResult) error {
	if err := order.SetProvisioningResults(results); err != nil {
		return err
	}

	completed := len(results) > 0
	for _, r := range results {
		if !r.Success {
			completed = false
			break
		}
	}

	var completedAt *time.Time
	if completed {
		now := time.Now()
		completedAt = &now
		order.Status = models.OrderStatusCompleted
		order.CompletedAt = completedAt
	} else {
		order.Status = models.OrderStatusProvisioning
	}
	return s.repo.SetProvisioningOutcome(order.ID, order.ProvisioningResultsJSON, completed, completedAt)
}

// AttachExternalAuthUser links the buyer's external auth account after they
// accept the invitation and sign up.
func (s *Service) AttachExternalAuthUser(orderID uint, externalAuthUserID string) error {
	return s.repo.SetExternalAuthUserID(orderID, strings.TrimSpace(externalAuthUserID))
}

// ProductBySlug resolves an active product by its public slug.
func (s *Service) ProductBySlug(slug string) (*models.Product, error) {
	product, err := s.repo.GetProductBySlug(strings.TrimSpace(slug))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductUnavailable
		}
		return nil, err
	}
	if !product.IsActive {
		return nil, ErrProductUnavailable
	}
	return product, nil
}

// ProductForOrder resolves the product snapshotted on an order.
func (s *Service) ProductForOrder(order *models.Order) (*models.Product, error) {
	return s.repo.GetProductByID(order.ProductID)
}
