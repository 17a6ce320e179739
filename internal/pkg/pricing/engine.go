package pricing

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/luminacursos/checkout/app/models"
	"gorm.io/gorm"
)

// Validation failures surfaced to the checkout UI. Order creation fails hard
// on any of these; a bad coupon is never silently ignored.
var (
	ErrCouponNotFound     = errors.New("coupon not found")
	ErrCouponInactive     = errors.New("coupon is inactive")
	ErrCouponNotStarted   = errors.New("coupon is not yet valid")
	ErrCouponExpired      = errors.New("coupon has expired")
	ErrCouponExhausted    = errors.New("coupon usage limit exhausted")
	ErrCouponUserLimit    = errors.New("coupon usage limit reached for this user")
	ErrCouponWrongProduct = errors.New("coupon is not valid for this product")
)

// Quote is the result of applying a coupon to a payment-method-adjusted base
// price. Code carries the normalized (uppercased) coupon code; prices and
// discounts are rounded to cents.
type Quote struct {
	Code           string
	FinalPrice     float64
	DiscountAmount float64
	Description    string
}

// Repository provides the DB lookups the pricing engine needs.
type Repository interface {
	GetCouponByCode(code string) (*models.Coupon, error)
	CountCouponUsages(couponID uint, taxID string) (int64, error)
}

// Service validates coupons and computes final prices. It never mutates usage
// counters; those change only when payment is confirmed.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a pricing service from an injected repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// NewServiceFromDB creates a pricing service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB) *Service {
	return NewService(NewRepository(db))
}

// Quote validates the coupon against the buyer and product and computes the
// discounted price. basePrice must already be payment-method-adjusted (PIX
// price or regular price). Validation short-circuits on the first failure.
func (s *Service) Quote(ctx context.Context, basePrice float64, couponCode, taxID string, productID uint) (*Quote, error) {
	_ = ctx
	code := strings.ToUpper(strings.TrimSpace(couponCode))
	if code == "" {
		return nil, ErrCouponNotFound
	}

	coupon, err := s.repo.GetCouponByCode(code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCouponNotFound
		}
		return nil, err
	}

	if !coupon.IsActive {
		return nil, ErrCouponInactive
	}

	now := s.now()
	if coupon.ValidFrom != nil && now.Before(*coupon.ValidFrom) {
		return nil, ErrCouponNotStarted
	}
	if coupon.ValidUntil != nil && now.After(*coupon.ValidUntil) {
		return nil, ErrCouponExpired
	}

	if coupon.MaxUses > 0 && coupon.CurrentUses >= coupon.MaxUses {
		return nil, ErrCouponExhausted
	}

	if coupon.MaxUsesPerUser > 0 {
		used, err := s.repo.CountCouponUsages(coupon.ID, strings.TrimSpace(taxID))
		if err != nil {
			return nil, err
		}
		if used >= int64(coupon.MaxUsesPerUser) {
			return nil, ErrCouponUserLimit
		}
	}

	if !coupon.AppliesTo(productID) {
		return nil, ErrCouponWrongProduct
	}

	discount := Discount(coupon, basePrice)
	final := RoundCents(basePrice - discount)
	if final < 0 {
		final = 0
	}

	return &Quote{
		Code:           coupon.Code,
		FinalPrice:     final,
		DiscountAmount: discount,
		Description:    describeDiscount(coupon),
	}, nil
}

// Discount computes the raw discount for a coupon on the given base price,
// clamped so it never discounts below zero and never raises the price.
func Discount(coupon *models.Coupon, basePrice float64) float64 {
	var discount float64
	switch coupon.DiscountType {
	case models.DiscountTypePercentage:
		discount = basePrice * coupon.DiscountValue / 100
	case models.DiscountTypeFixed:
		discount = math.Min(coupon.DiscountValue, basePrice)
	case models.DiscountTypeFixedPrice:
		// The coupon sets an absolute final price.
		discount = basePrice - coupon.DiscountValue
	}
	if discount < 0 {
		discount = 0
	}
	if discount > basePrice {
		discount = basePrice
	}
	return RoundCents(discount)
}

// RoundCents rounds to two decimal places, half-up on the cent boundary.
func RoundCents(v float64) float64 {
	return math.Floor(v*100+0.5) / 100
}

func describeDiscount(coupon *models.Coupon) string {
	switch coupon.DiscountType {
	case models.DiscountTypePercentage:
		return fmt.Sprintf("%s: %.0f%% off", coupon.Code, coupon.DiscountValue)
	case models.DiscountTypeFixed:
		return fmt.Sprintf("%s: R$ %.2f off", coupon.Code, coupon.DiscountValue)
	case models.DiscountTypeFixedPrice:
		return fmt.Sprintf("%s: price set to R$ %.2f", coupon.Code, coupon.DiscountValue)
	default:
		return coupon.Code
	}
}
