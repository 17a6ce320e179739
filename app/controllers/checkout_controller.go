package controllers

import (
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/luminacursos/checkout/app/models"
	"github.com/luminacursos/checkout/internal/pkg/asaas"
	"github.com/luminacursos/checkout/internal/pkg/database"
	"github.com/luminacursos/checkout/internal/pkg/metrics/counter"
	"github.com/luminacursos/checkout/internal/pkg/orders"
	"github.com/luminacursos/checkout/internal/pkg/payments"
	"github.com/luminacursos/checkout/internal/pkg/pricing"
)

var validate = validator.New()

// CreateOrderRequest is the checkout form payload.
type CreateOrderRequest struct {
	CustomerName  string `json:"customer_name" validate:"required,min=3,max=191"`
	CustomerEmail string `json:"customer_email" validate:"required,email,max=191"`
	CustomerTaxID string `json:"customer_tax_id" validate:"required,min=11,max=18"`
	CustomerPhone string `json:"customer_phone" validate:"max=32"`
	AddressStreet string `json:"address_street" validate:"max=191"`
	AddressNumber string `json:"address_number" validate:"max=32"`
	AddressCity   string `json:"address_city" validate:"max=96"`
	AddressState  string `json:"address_state" validate:"max=32"`
	PostalCode    string `json:"postal_code" validate:"max=16"`

	ProductSlug   string `json:"product_slug" validate:"required,max=191"`
	PaymentMethod string `json:"payment_method" validate:"required,oneof=PIX CREDIT_CARD"`
	CouponCode    string `json:"coupon_code" validate:"max=64"`
}

// CreatePaymentRequest carries the charge options for an existing order.
type CreatePaymentRequest struct {
	InstallmentCount int `json:"installment_count" validate:"omitempty,min=1,max=21"`

	CreditCard           *asaas.CreditCard           `json:"credit_card"`
	CreditCardHolderInfo *asaas.CreditCardHolderInfo `json:"credit_card_holder_info"`
}

// ValidateCouponRequest checks a coupon against a product before checkout.
type ValidateCouponRequest struct {
	Code          string `json:"code" validate:"required,max=64"`
	ProductSlug   string `json:"product_slug" validate:"required,max=191"`
	PaymentMethod string `json:"payment_method" validate:"required,oneof=PIX CREDIT_CARD"`
	CustomerTaxID string `json:"customer_tax_id" validate:"max=18"`
}

// HandleCreateOrder creates a pending order with a server-side price breakdown.
func HandleCreateOrder(c *fiber.Ctx) error {
	var req CreateOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid request body"})
	}
	if err := validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "validation_failed", "message": err.Error()})
	}

	svc := orders.NewServiceFromDB(database.GetDB())
	order, err := svc.CreateOrder(c.Context(), orders.CreateOrderInput{
		CustomerName:  req.CustomerName,
		CustomerEmail: req.CustomerEmail,
		CustomerTaxID: req.CustomerTaxID,
		CustomerPhone: req.CustomerPhone,
		AddressStreet: req.AddressStreet,
		AddressNumber: req.AddressNumber,
		AddressCity:   req.AddressCity,
		AddressState:  req.AddressState,
		PostalCode:    req.PostalCode,
		ProductSlug:   req.ProductSlug,
		PaymentMethod: req.PaymentMethod,
		CouponCode:    req.CouponCode,
	})
	if err != nil {
		if errors.Is(err, orders.ErrProductUnavailable) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Product not found or inactive"})
		}
		if pricingErr, ok := couponRejection(err); ok {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "invalid_coupon", "message": pricingErr})
		}
		if errors.Is(err, orders.ErrInvalidPrice) || errors.Is(err, orders.ErrInvalidFinalPrice) {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "invalid_price", "message": err.Error()})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to create order"})
	}

	if err := counter.AddProductCheckout(order.ProductID); err != nil {
		log.Errorf("[Checkout] Failed to count checkout for product %d: %v", order.ProductID, err)
	}

	return c.Status(fiber.StatusCreated).JSON(orderResponse(order))
}

// HandleCreatePayment opens the gateway charge for a pending order.
func HandleCreatePayment(c *fiber.Ctx) error {
	var req CreatePaymentRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid request body"})
	}
	if err := validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "validation_failed", "message": err.Error()})
	}

	svc := payments.NewChargeServiceFromDB(database.GetDB())
	order, err := svc.CreatePayment(c.Context(), c.Params("id"), payments.PaymentRequest{
		InstallmentCount:     req.InstallmentCount,
		CreditCard:           req.CreditCard,
		CreditCardHolderInfo: req.CreditCardHolderInfo,
		RemoteIP:             c.IP(),
	})
	if err != nil {
		switch {
		case errors.Is(err, orders.ErrOrderNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Order not found"})
		case errors.Is(err, payments.ErrPaymentAlreadyCreated):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "payment_exists", "message": "Order already has a gateway payment"})
		case errors.Is(err, asaas.ErrInvalidInstallmentCount):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_installments", "message": err.Error()})
		}
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "gateway_error", "message": "Failed to create payment"})
	}

	return c.JSON(orderResponse(order))
}

// HandleValidateCoupon quotes a coupon for the checkout UI without touching
// any state.
func HandleValidateCoupon(c *fiber.Ctx) error {
	var req ValidateCouponRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid request body"})
	}
	if err := validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "validation_failed", "message": err.Error()})
	}

	db := database.GetDB()
	orderSvc := orders.NewServiceFromDB(db)
	product, err := orderSvc.ProductBySlug(req.ProductSlug)
	if err != nil {
		if errors.Is(err, orders.ErrProductUnavailable) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Product not found or inactive"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load product"})
	}

	basePrice := product.Price
	if req.PaymentMethod == models.PaymentMethodPix && product.PixPrice != nil {
		basePrice = *product.PixPrice
	}

	quote, err := pricing.NewServiceFromDB(db).Quote(c.Context(), basePrice, req.Code, req.CustomerTaxID, product.ID)
	if err != nil {
		if msg, ok := couponRejection(err); ok {
			return c.JSON(fiber.Map{"valid": false, "message": msg})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to validate coupon"})
	}

	return c.JSON(fiber.Map{
		"valid":           true,
		"code":            quote.Code,
		"discount_amount": quote.DiscountAmount,
		"final_price":     quote.FinalPrice,
		"description":     quote.Description,
	})
}

// HandleGetOrder returns the public view of an order.
func HandleGetOrder(c *fiber.Ctx) error {
	svc := orders.NewServiceFromDB(database.GetDB())
	order, err := svc.GetByPublicID(c.Params("id"))
	if err != nil {
		if errors.Is(err, orders.ErrOrderNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Order not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load order"})
	}
	return c.JSON(orderResponse(order))
}

// HandleCheckPaymentStatus is the manual poll: it re-checks the gateway when
// the order is still pending, settling it if the webhook got lost.
func HandleCheckPaymentStatus(c *fiber.Ctx) error {
	svc := payments.NewChargeServiceFromDB(database.GetDB())
	order, err := svc.CheckPaymentStatus(c.Context(), c.Params("id"))
	if err != nil {
		if errors.Is(err, orders.ErrOrderNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Order not found"})
		}
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "gateway_error", "message": "Failed to check payment status"})
	}
	return c.JSON(orderResponse(order))
}

// couponRejection maps pricing engine rejections to a buyer-facing message.
func couponRejection(err error) (string, bool) {
	for _, target := range []error{
		pricing.ErrCouponNotFound,
		pricing.ErrCouponInactive,
		pricing.ErrCouponNotStarted,
		pricing.ErrCouponExpired,
		pricing.ErrCouponExhausted,
		pricing.ErrCouponUserLimit,
		pricing.ErrCouponWrongProduct,
	} {
		if errors.Is(err, target) {
			return target.Error(), true
		}
	}
	return "", false
}

// orderResponse is the JSON shape returned for an order. Raw card data never
// round-trips; PIX payload and QR image do so the UI can render them.
func orderResponse(order *models.Order) fiber.Map {
	resp := fiber.Map{
		"id":                order.PublicID,
		"status":            order.Status,
		"product_name":      order.ProductName,
		"payment_method":    order.PaymentMethod,
		"original_price":    order.OriginalPrice,
		"final_price":       order.FinalPrice,
		"coupon_code":       order.CouponCode,
		"coupon_discount":   order.CouponDiscount,
		"pix_discount":      order.PixDiscount,
		"installment_count": order.InstallmentCount,
		"created_at":        order.CreatedAt.UTC().Format(time.RFC3339),
		"expires_at":        order.ExpiresAt.UTC().Format(time.RFC3339),
		"paid_at":           formatTimePtr(order.PaidAt),
		"completed_at":      formatTimePtr(order.CompletedAt),
	}
	if order.PaymentMethod == models.PaymentMethodPix {
		resp["pix_payload"] = order.PixPayload
		resp["pix_qr_code_image"] = order.PixQRCodeImage
	}
	return resp
}

func formatTimePtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}
