package models

import (
	"strings"
	"time"
)

// Deployment is a downstream course environment that paid buyers get
// provisioned onto. BaseURL serves both the provisioning callback and the
// sign-up redirect.
type Deployment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"type:varchar(191);not null" json:"name"`
	Slug      string    `gorm:"type:varchar(191);not null;uniqueIndex" json:"slug"`
	BaseURL   string    `gorm:"type:varchar(255);not null" json:"base_url"`
	Domain    string    `gorm:"type:varchar(191)" json:"domain"`
	IsActive  bool      `gorm:"default:true;index" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// SignUpURL is where invited buyers land to create their account.
func (d *Deployment) SignUpURL() string {
	return strings.TrimRight(d.BaseURL, "/") + "/sign-up"
}

// ProvisionURL is the access-provisioning callback endpoint.
func (d *Deployment) ProvisionURL() string {
	return strings.TrimRight(d.BaseURL, "/") + "/api/provision-access"
}
