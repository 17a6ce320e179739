package models

import "time"

const (
	InvitationStatusPending = "pending"
	InvitationStatusSent    = "sent"
	InvitationStatusFailed  = "failed"
)

// EmailInvitation tracks the account-creation invitation sent to a buyer after
// payment confirmation. Failures never roll back payment or provisioning; the
// retry counter supports out-of-band redelivery.
type EmailInvitation struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	OrderID      uint   `gorm:"not null;index" json:"order_id"`
	Email        string `gorm:"type:varchar(191);not null" json:"email"`
	CustomerName string `gorm:"type:varchar(191);not null" json:"customer_name"`

	Status               string `gorm:"type:varchar(16);not null;default:'pending';index" json:"status"`
	RetryCount           int    `gorm:"default:0" json:"retry_count"`
	ExternalInvitationID string `gorm:"type:varchar(64)" json:"external_invitation_id,omitempty"`
	// PrimaryDeploymentSlug picks the sign-up redirect domain for
	// multi-deployment purchases.
	PrimaryDeploymentSlug string     `gorm:"type:varchar(191)" json:"primary_deployment_slug,omitempty"`
	ErrorMsg              string     `gorm:"type:text" json:"error_msg,omitempty"`
	SentAt                *time.Time `gorm:"default:null" json:"sent_at,omitempty"`
	CreatedAt             time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt             time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
