package models

import "time"

const (
	InvoiceStatusPending    = "pending"
	InvoiceStatusProcessing = "processing"
	InvoiceStatusIssued     = "issued"
	InvoiceStatusFailed     = "failed"
)

// Invoice tracks fiscal invoice issuance for a confirmed order. At most one
// invoice exists per order, and its value is always the full order total even
// when the buyer pays in installments.
type Invoice struct {
	ID               uint   `gorm:"primaryKey" json:"id"`
	OrderID          uint   `gorm:"not null;uniqueIndex" json:"order_id"`
	GatewayPaymentID string `gorm:"type:varchar(64);not null" json:"gateway_payment_id"`

	Value           float64 `gorm:"not null" json:"value"`
	InstallmentNote string  `gorm:"type:varchar(96)" json:"installment_note,omitempty"`

	CustomerName  string `gorm:"type:varchar(191);not null" json:"customer_name"`
	CustomerEmail string `gorm:"type:varchar(191);not null" json:"customer_email"`
	CustomerTaxID string `gorm:"type:varchar(32);not null" json:"customer_tax_id"`

	Status           string     `gorm:"type:varchar(16);not null;default:'pending';index" json:"status"`
	GatewayInvoiceID string     `gorm:"type:varchar(64)" json:"gateway_invoice_id,omitempty"`
	ErrorMsg         string     `gorm:"type:text" json:"error_msg,omitempty"`
	IssuedAt         *time.Time `gorm:"default:null" json:"issued_at,omitempty"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
