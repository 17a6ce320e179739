package payments

import (
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/luminacursos/checkout/app/models"
)

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a payments repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) GetCouponByCode(code string) (*models.Coupon, error) {
	var coupon models.Coupon
	if err := r.db.Where("code = ?", strings.ToUpper(strings.TrimSpace(code))).First(&coupon).Error; err != nil {
		return nil, err
	}
	return &coupon, nil
}

// ConfirmOrderPaid flips the order to paid, writes the coupon usage row and
// bumps the coupon counter in one transaction. The pending-status guard makes
// the flip first-wins under concurrent triggers.
func (r *gormRepository) ConfirmOrderPaid(orderID uint, paidAt time.Time, gatewayPaymentID string, usage *models.CouponUsage) (bool, error) {
	confirmed := false
	err := r.db.Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{
			"status":  models.OrderStatusPaid,
			"paid_at": paidAt,
		}
		if gatewayPaymentID != "" {
			updates["gateway_payment_id"] = gatewayPaymentID
		}

		res := tx.Model(&models.Order{}).
			Where("id = ? AND status = ?", orderID, models.OrderStatusPending).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		confirmed = true

		if usage != nil {
			if err := tx.Create(usage).Error; err != nil {
				return err
			}
			if err := tx.Model(&models.Coupon{}).
				Where("id = ?", usage.CouponID).
				Update("current_uses", gorm.Expr("current_uses + 1")).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return confirmed, nil
}
