package invoices

import (
	"time"

	"gorm.io/gorm"

	"github.com/luminacursos/checkout/app/models"
)

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates an invoice repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) CreateInvoice(inv *models.Invoice) error {
	return r.db.Create(inv).Error
}

func (r *gormRepository) GetByOrderID(orderID uint) (*models.Invoice, error) {
	var inv models.Invoice
	if err := r.db.Where("order_id = ?", orderID).First(&inv).Error; err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *gormRepository) MarkProcessing(id uint) error {
	return r.db.Model(&models.Invoice{}).Where("id = ?", id).
		Update("status", models.InvoiceStatusProcessing).Error
}

func (r *gormRepository) MarkIssued(id uint, gatewayInvoiceID string) error {
	now := time.Now()
	return r.db.Model(&models.Invoice{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":             models.InvoiceStatusIssued,
		"gateway_invoice_id": gatewayInvoiceID,
		"error_msg":          "",
		"issued_at":          now,
	}).Error
}

func (r *gormRepository) MarkFailed(id uint, errorMsg string) error {
	return r.db.Model(&models.Invoice{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":    models.InvoiceStatusFailed,
		"error_msg": errorMsg,
	}).Error
}
