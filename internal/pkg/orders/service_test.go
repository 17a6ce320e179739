package orders

import (
	"context"
	"testing"
	"time"

	"github.com/luminacursos/checkout/app/models"
	"github.com/luminacursos/checkout/internal/pkg/pricing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeOrderRepo struct {
	products map[string]*models.Product
	orders   map[string]*models.Order
	nextID   uint
	linked   map[uint]LinkPaymentInput
	outcomes map[uint]string
}

func newFakeOrderRepo(products ...*models.Product) *fakeOrderRepo {
	r := &fakeOrderRepo{
		products: map[string]*models.Product{},
		orders:   map[string]*models.Order{},
		linked:   map[uint]LinkPaymentInput{},
		outcomes: map[uint]string{},
	}
	for _, p := range products {
		r.products[p.Slug] = p
	}
	return r
}

func (r *fakeOrderRepo) CreateOrder(order *models.Order) error {
	r.nextID++
	order.ID = r.nextID
	r.orders[order.PublicID] = order
	return nil
}

func (r *fakeOrderRepo) GetByPublicID(publicID string) (*models.Order, error) {
	if o, ok := r.orders[publicID]; ok {
		return o, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeOrderRepo) GetByGatewayPaymentID(id string) (*models.Order, error) {
	for _, o := range r.orders {
		if o.GatewayPaymentID == id {
			return o, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeOrderRepo) LinkPayment(orderID uint, in LinkPaymentInput) error {
	r.linked[orderID] = in
	for _, o := range r.orders {
		if o.ID == orderID {
			o.GatewayPaymentID = in.GatewayPaymentID
			o.GatewayCustomerID = in.GatewayCustomerID
			o.InstallmentCount = in.InstallmentCount
			o.PixPayload = in.PixPayload
			o.PixQRCodeImage = in.PixQRCodeImage
		}
	}
	return nil
}

func (r *fakeOrderRepo) SetProvisioningOutcome(orderID uint, resultsJSON string, completed bool, completedAt *time.Time) error {
	r.outcomes[orderID] = resultsJSON
	return nil
}

func (r *fakeOrderRepo) SetExternalAuthUserID(orderID uint, id string) error { return nil }

func (r *fakeOrderRepo) GetProductBySlug(slug string) (*models.Product, error) {
	if p, ok := r.products[slug]; ok {
		return p, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeOrderRepo) GetProductByID(id uint) (*models.Product, error) {
	for _, p := range r.products {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

type fakePricingRepo struct {
	coupons map[string]*models.Coupon
}

func (f *fakePricingRepo) GetCouponByCode(code string) (*models.Coupon, error) {
	if c, ok := f.coupons[code]; ok {
		return c, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakePricingRepo) CountCouponUsages(couponID uint, taxID string) (int64, error) {
	return 0, nil
}

func courseProduct() *models.Product {
	pix := 1197.0
	return &models.Product{
		ID: 7, Name: "Formação Completa", Slug: "formacao-completa",
		Price: 1497, PixPrice: &pix, IsActive: true,
	}
}

func newTestService(repo *fakeOrderRepo, coupons ...*models.Coupon) *Service {
	pr := &fakePricingRepo{coupons: map[string]*models.Coupon{}}
	for _, c := range coupons {
		pr.coupons[c.Code] = c
	}
	return NewService(repo, pricing.NewService(pr))
}

func buyerInput(slug, method, coupon string) CreateOrderInput {
	return CreateOrderInput{
		CustomerName:  "Maria Silva",
		CustomerEmail: "maria@example.com",
		CustomerTaxID: "12345678901",
		ProductSlug:   slug,
		PaymentMethod: method,
		CouponCode:    coupon,
	}
}

func TestCreateOrder_PixUsesPixPrice(t *testing.T) {
	svc := newTestService(newFakeOrderRepo(courseProduct()))

	order, err := svc.CreateOrder(context.Background(), buyerInput("formacao-completa", "PIX", ""))
	require.NoError(t, err)

	assert.Equal(t, 1197.0, order.FinalPrice)
	assert.Equal(t, 1197.0, order.OriginalPrice)
	assert.Equal(t, 300.0, order.PixDiscount)
	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.NotEmpty(t, order.PublicID)
	assert.WithinDuration(t, time.Now().Add(models.PendingOrderTTL), order.ExpiresAt, time.Minute)
}

func TestCreateOrder_CreditCardUsesRegularPrice(t *testing.T) {
	svc := newTestService(newFakeOrderRepo(courseProduct()))

	order, err := svc.CreateOrder(context.Background(), buyerInput("formacao-completa", "CREDIT_CARD", ""))
	require.NoError(t, err)

	assert.Equal(t, 1497.0, order.FinalPrice)
	assert.Equal(t, 0.0, order.PixDiscount)
}

func TestCreateOrder_PixWithPercentageCoupon(t *testing.T) {
	coupon := &models.Coupon{
		ID: 1, Code: "DESC10", DiscountType: models.DiscountTypePercentage,
		DiscountValue: 10, IsActive: true,
	}
	svc := newTestService(newFakeOrderRepo(courseProduct()), coupon)

	order, err := svc.CreateOrder(context.Background(), buyerInput("formacao-completa", "PIX", "desc10"))
	require.NoError(t, err)

	assert.Equal(t, 119.70, order.CouponDiscount)
	assert.Equal(t, 1077.30, order.FinalPrice)
	assert.Equal(t, "DESC10", order.CouponCode)
}

func TestCreateOrder_InvalidCouponFailsCreation(t *testing.T) {
	repo := newFakeOrderRepo(courseProduct())
	svc := newTestService(repo)

	_, err := svc.CreateOrder(context.Background(), buyerInput("formacao-completa", "PIX", "NOPE"))
	assert.ErrorIs(t, err, pricing.ErrCouponNotFound)
	assert.Empty(t, repo.orders, "no order may be persisted when the coupon is rejected")
}

func TestCreateOrder_InactiveProduct(t *testing.T) {
	p := courseProduct()
	p.IsActive = false
	svc := newTestService(newFakeOrderRepo(p))

	_, err := svc.CreateOrder(context.Background(), buyerInput("formacao-completa", "PIX", ""))
	assert.ErrorIs(t, err, ErrProductUnavailable)
}

func TestCreateOrder_MissingPixPriceFallsBack(t *testing.T) {
	p := courseProduct()
	p.PixPrice = nil
	svc := newTestService(newFakeOrderRepo(p))

	order, err := svc.CreateOrder(context.Background(), buyerInput("formacao-completa", "PIX", ""))
	require.NoError(t, err)
	assert.Equal(t, 1497.0, order.FinalPrice)
	assert.Equal(t, 0.0, order.PixDiscount)
}

func TestLinkPayment(t *testing.T) {
	repo := newFakeOrderRepo(courseProduct())
	svc := newTestService(repo)

	order, err := svc.CreateOrder(context.Background(), buyerInput("formacao-completa", "CREDIT_CARD", ""))
	require.NoError(t, err)

	linked, err := svc.LinkPayment(context.Background(), order.PublicID, LinkPaymentInput{
		GatewayPaymentID:  "pay_123",
		GatewayCustomerID: "cus_456",
		InstallmentCount:  12,
	})
	require.NoError(t, err)
	assert.Equal(t, "pay_123", linked.GatewayPaymentID)
	assert.Equal(t, 12, linked.InstallmentCount)

	byGateway, err := svc.GetByGatewayPaymentID("pay_123")
	require.NoError(t, err)
	assert.Equal(t, order.PublicID, byGateway.PublicID)
}

func TestRecordProvisioningOutcome(t *testing.T) {
	repo := newFakeOrderRepo(courseProduct())
	svc := newTestService(repo)

	order, err := svc.CreateOrder(context.Background(), buyerInput("formacao-completa", "PIX", ""))
	require.NoError(t, err)

	results := []models.ProvisionResult{
		{DeploymentSlug: "turma-a", Success: true},
		{DeploymentSlug: "turma-b", Success: false, Error: "status=500 body=internal error"},
	}
	require.NoError(t, svc.RecordProvisioningOutcome(order, results))
	assert.Equal(t, models.OrderStatusProvisioning, order.Status)

	allOK := []models.ProvisionResult{{DeploymentSlug: "turma-a", Success: true}}
	order.Status = models.OrderStatusPaid
	require.NoError(t, svc.RecordProvisioningOutcome(order, allOK))
	assert.Equal(t, models.OrderStatusCompleted, order.Status)
	assert.NotNil(t, order.CompletedAt)
}
