package models

import (
	"encoding/json"
	"time"
)

// Product is a sellable course. Catalog data is read-only to the checkout
// core; the admin side maintains it.
type Product struct {
	ID              uint     `gorm:"primaryKey" json:"id"`
	Name            string   `gorm:"type:varchar(191);not null" json:"name"`
	Slug            string   `gorm:"type:varchar(191);not null;uniqueIndex" json:"slug"`
	Price           float64  `gorm:"not null" json:"price"`
	PixPrice        *float64 `gorm:"default:null" json:"pix_price,omitempty"`
	IsActive        bool     `gorm:"default:true;index" json:"is_active"`
	DeploymentSlugs string   `gorm:"type:text" json:"deployment_slugs"`
	// AccessDays limits access duration after purchase; nil means lifetime.
	AccessDays *int `gorm:"default:null" json:"access_days,omitempty"`
	// Funnel counters, batched in from Redis; the only columns the checkout
	// core writes on this table.
	CheckoutCount int64     `gorm:"default:0" json:"checkout_count"`
	SalesCount    int64     `gorm:"default:0" json:"sales_count"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// Deployments decodes the JSON-encoded list of target deployment slugs.
func (p *Product) Deployments() []string {
	if p.DeploymentSlugs == "" {
		return nil
	}
	var slugs []string
	if err := json.Unmarshal([]byte(p.DeploymentSlugs), &slugs); err != nil {
		return nil
	}
	return slugs
}

// SetDeployments stores the target deployment slug list as JSON.
func (p *Product) SetDeployments(slugs []string) error {
	data, err := json.Marshal(slugs)
	if err != nil {
		return err
	}
	p.DeploymentSlugs = string(data)
	return nil
}

// AccessExpiresAt computes the access expiration for a purchase made at the
// given time, or nil for lifetime access.
func (p *Product) AccessExpiresAt(purchasedAt time.Time) *time.Time {
	if p.AccessDays == nil || *p.AccessDays <= 0 {
		return nil
	}
	t := purchasedAt.AddDate(0, 0, *p.AccessDays)
	return &t
}
