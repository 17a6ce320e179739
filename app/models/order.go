package models

import (
	"encoding/json"
	"time"
)

const (
	PaymentMethodPix        = "PIX"
	PaymentMethodCreditCard = "CREDIT_CARD"
)

const (
	OrderStatusPending = "pending"
	OrderStatusPaid    = "paid"
	// OrderStatusProvisioning marks a paid order where at least one deployment
	// failed to provision; left for out-of-band retry.
	OrderStatusProvisioning = "provisioning"
	OrderStatusCompleted    = "completed"
)

// PendingOrderTTL is the soft expiration window for unpaid orders. Nothing in
// the checkout core reaps expired orders; the timestamp feeds cleanup and
// reporting.
const PendingOrderTTL = 7 * 24 * time.Hour

// ProvisionResult records the outcome of provisioning one deployment.
type ProvisionResult struct {
	DeploymentSlug string     `json:"deployment_slug"`
	Success        bool       `json:"success"`
	Error          string     `json:"error,omitempty"`
	ProvisionedAt  *time.Time `json:"provisioned_at,omitempty"`
}

// Order is one checkout attempt and the single source of truth for payment
// state. Status transitions are monotonic: pending -> paid -> provisioning or
// completed; an order never regresses from paid back to pending.
type Order struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	PublicID string `gorm:"type:varchar(36);not null;uniqueIndex" json:"public_id"`

	CustomerName  string `gorm:"type:varchar(191);not null" json:"customer_name"`
	CustomerEmail string `gorm:"type:varchar(191);not null;index" json:"customer_email"`
	CustomerTaxID string `gorm:"type:varchar(32);not null;index" json:"customer_tax_id"`
	CustomerPhone string `gorm:"type:varchar(32)" json:"customer_phone"`
	AddressStreet string `gorm:"type:varchar(191)" json:"address_street"`
	AddressNumber string `gorm:"type:varchar(32)" json:"address_number"`
	AddressCity   string `gorm:"type:varchar(96)"  json:"address_city"`
	AddressState  string `gorm:"type:varchar(32)"  json:"address_state"`
	PostalCode    string `gorm:"type:varchar(16)"  json:"postal_code"`

	ProductID   uint   `gorm:"not null;index" json:"product_id"`
	ProductName string `gorm:"type:varchar(191);not null" json:"product_name"`

	OriginalPrice  float64 `gorm:"not null" json:"original_price"`
	FinalPrice     float64 `gorm:"not null" json:"final_price"`
	CouponCode     string  `gorm:"type:varchar(64)" json:"coupon_code,omitempty"`
	CouponDiscount float64 `gorm:"default:0" json:"coupon_discount"`
	PixDiscount    float64 `gorm:"default:0" json:"pix_discount"`

	PaymentMethod     string `gorm:"type:varchar(16);not null" json:"payment_method"`
	Status            string `gorm:"type:varchar(16);not null;default:'pending';index" json:"status"`
	GatewayPaymentID  string `gorm:"type:varchar(64);index" json:"gateway_payment_id,omitempty"`
	GatewayCustomerID string `gorm:"type:varchar(64)" json:"gateway_customer_id,omitempty"`
	InstallmentCount  int    `gorm:"default:1" json:"installment_count"`
	PixPayload        string `gorm:"type:text" json:"pix_payload,omitempty"`
	PixQRCodeImage    string `gorm:"type:longtext" json:"pix_qr_code_image,omitempty"`

	ProvisioningResultsJSON string `gorm:"type:text" json:"provisioning_results"`

	// ExternalAuthUserID links the buyer's account once they accept the
	// invitation and sign up.
	ExternalAuthUserID string `gorm:"type:varchar(64)" json:"external_auth_user_id,omitempty"`

	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
	ExpiresAt   time.Time  `json:"expires_at"`
	PaidAt      *time.Time `gorm:"default:null" json:"paid_at,omitempty"`
	CompletedAt *time.Time `gorm:"default:null" json:"completed_at,omitempty"`
}

// IsProcessed reports whether payment confirmation has already been handled
// for this order. Confirmation triggers (webhook, immediate gateway response,
// manual poll) use this as the idempotency gate.
func (o *Order) IsProcessed() bool {
	switch o.Status {
	case OrderStatusPaid, OrderStatusProvisioning, OrderStatusCompleted:
		return true
	}
	return false
}

// ProvisioningResults decodes the per-deployment outcome list.
func (o *Order) ProvisioningResults() []ProvisionResult {
	if o.ProvisioningResultsJSON == "" {
		return nil
	}
	var results []ProvisionResult
	if err := json.Unmarshal([]byte(o.ProvisioningResultsJSON), &results); err != nil {
		return nil
	}
	return results
}

// SetProvisioningResults stores the per-deployment outcome list as JSON.
func (o *Order) SetProvisioningResults(results []ProvisionResult) error {
	data, err := json.Marshal(results)
	if err != nil {
		return err
	}
	o.ProvisioningResultsJSON = string(data)
	return nil
}

// InstallmentValue is the expected per-installment amount for installment
// plans, or the full price for single payments.
func (o *Order) InstallmentValue() float64 {
	if o.InstallmentCount <= 1 {
		return o.FinalPrice
	}
	return o.FinalPrice / float64(o.InstallmentCount)
}
