package models

import (
	"encoding/json"
	"time"
)

const (
	DiscountTypePercentage = "percentage"
	DiscountTypeFixed      = "fixed"
	DiscountTypeFixedPrice = "fixed_price"
)

// Coupon is a discount code with eligibility rules and usage caps. Codes are
// stored uppercased and matched case-insensitively. CurrentUses is only ever
// incremented, and only when an order using the coupon is confirmed paid.
type Coupon struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	Code          string     `gorm:"type:varchar(64);not null;uniqueIndex" json:"code"`
	DiscountType  string     `gorm:"type:varchar(16);not null" json:"discount_type"`
	DiscountValue float64    `gorm:"not null" json:"discount_value"`
	IsActive      bool       `gorm:"default:true" json:"is_active"`
	ValidFrom     *time.Time `gorm:"default:null" json:"valid_from,omitempty"`
	ValidUntil    *time.Time `gorm:"default:null" json:"valid_until,omitempty"`
	// MaxUses / MaxUsesPerUser of 0 mean unlimited.
	MaxUses        int       `gorm:"default:0" json:"max_uses"`
	MaxUsesPerUser int       `gorm:"default:0" json:"max_uses_per_user"`
	CurrentUses    int       `gorm:"default:0" json:"current_uses"`
	ProductIDsJSON string    `gorm:"type:text" json:"product_ids"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// ProductIDs decodes the product allow-list; empty means valid for any product.
func (c *Coupon) ProductIDs() []uint {
	if c.ProductIDsJSON == "" {
		return nil
	}
	var ids []uint
	if err := json.Unmarshal([]byte(c.ProductIDsJSON), &ids); err != nil {
		return nil
	}
	return ids
}

// AppliesTo reports whether the coupon may be used for the given product.
func (c *Coupon) AppliesTo(productID uint) bool {
	ids := c.ProductIDs()
	if len(ids) == 0 {
		return true
	}
	for _, id := range ids {
		if id == productID {
			return true
		}
	}
	return false
}

// CouponUsage is an append-only ledger row recording one confirmed redemption.
// Rows are never updated or deleted; per-user caps are enforced by counting
// rows for a coupon and tax id.
type CouponUsage struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	CouponID       uint      `gorm:"not null;index:idx_coupon_usages_coupon_taxid,priority:1" json:"coupon_id"`
	Code           string    `gorm:"type:varchar(64);not null" json:"code"`
	OrderID        uint      `gorm:"not null;index" json:"order_id"`
	Email          string    `gorm:"type:varchar(191);not null" json:"email"`
	TaxID          string    `gorm:"type:varchar(32);not null;index:idx_coupon_usages_coupon_taxid,priority:2" json:"tax_id"`
	DiscountAmount float64   `gorm:"not null" json:"discount_amount"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
}
