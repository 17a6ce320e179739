package orders

import (
	"time"

	"github.com/luminacursos/checkout/app/models"
	"gorm.io/gorm"
)

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates an order repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) CreateOrder(order *models.Order) error {
	return r.db.Create(order).Error
}

func (r *gormRepository) GetByPublicID(publicID string) (*models.Order, error) {
	var order models.Order
	if err := r.db.Where("public_id = ?", publicID).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *gormRepository) GetByGatewayPaymentID(gatewayPaymentID string) (*models.Order, error) {
	var order models.Order
	if err := r.db.Where("gateway_payment_id = ?", gatewayPaymentID).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *gormRepository) LinkPayment(orderID uint, in LinkPaymentInput) error {
	updates := map[string]interface{}{
		"gateway_payment_id":  in.GatewayPaymentID,
		"gateway_customer_id": in.GatewayCustomerID,
		"installment_count":   in.InstallmentCount,
	}
	if in.PixPayload != "" {
		updates["pix_payload"] = in.PixPayload
	}
	if in.PixQRCodeImage != "" {
		updates["pix_qr_code_image"] = in.PixQRCodeImage
	}
	return r.db.Model(&models.Order{}).Where("id = ?", orderID).Updates(updates).Error
}

func (r *gormRepository) SetProvisioningOutcome(orderID uint, resultsJSON string, completed bool, completedAt *time.Time) error {
	updates := map[string]interface{}{
		"provisioning_results_json": resultsJSON,
	}
	if completed {
		updates["status"] = models.OrderStatusCompleted
		updates["completed_at"] = completedAt
	} else {
		updates["status"] = models.OrderStatusProvisioning
	}
	// Guard keeps the transition monotonic; a completed order stays completed.
	return r.db.Model(&models.Order{}).
		Where("id = ? AND status IN ?", orderID, []string{models.OrderStatusPaid, models.OrderStatusProvisioning}).
		Updates(updates).Error
}

func (r *gormRepository) SetExternalAuthUserID(orderID uint, externalAuthUserID string) error {
	return r.db.Model(&models.Order{}).Where("id = ?", orderID).
		Update("external_auth_user_id", externalAuthUserID).Error
}

func (r *gormRepository) GetProductBySlug(slug string) (*models.Product, error) {
	var product models.Product
	if err := r.db.Where("slug = ?", slug).First(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *gormRepository) GetProductByID(id uint) (*models.Product, error) {
	var product models.Product
	if err := r.db.First(&product, id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}
