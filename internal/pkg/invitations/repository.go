package invitations

import (
	"time"

	"gorm.io/gorm"

	"github.com/luminacursos/checkout/app/models"
)

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates an invitation repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) CreateInvitation(inv *models.EmailInvitation) error {
	return r.db.Create(inv).Error
}

func (r *gormRepository) GetByOrderID(orderID uint) (*models.EmailInvitation, error) {
	var inv models.EmailInvitation
	if err := r.db.Where("order_id = ?", orderID).First(&inv).Error; err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *gormRepository) MarkSent(id uint, externalInvitationID string) error {
	now := time.Now()
	return r.db.Model(&models.EmailInvitation{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":                 models.InvitationStatusSent,
		"external_invitation_id": externalInvitationID,
		"error_msg":              "",
		"sent_at":                now,
	}).Error
}

func (r *gormRepository) MarkFailed(id uint, errorMsg string) error {
	return r.db.Model(&models.EmailInvitation{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":      models.InvitationStatusFailed,
		"error_msg":   errorMsg,
		"retry_count": gorm.Expr("retry_count + 1"),
	}).Error
}

func (r *gormRepository) ListRetryable(maxRetries, limit int) ([]models.EmailInvitation, error) {
	var invs []models.EmailInvitation
	err := r.db.Where("status = ? AND retry_count < ?", models.InvitationStatusFailed, maxRetries).
		Order("updated_at ASC").
		Limit(limit).
		Find(&invs).Error
	return invs, err
}

func (r *gormRepository) GetOrderByID(id uint) (*models.Order, error) {
	var order models.Order
	if err := r.db.First(&order, id).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *gormRepository) GetDeploymentBySlug(slug string) (*models.Deployment, error) {
	var dep models.Deployment
	if err := r.db.Where("slug = ?", slug).First(&dep).Error; err != nil {
		return nil, err
	}
	return &dep, nil
}
