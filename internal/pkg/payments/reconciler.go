package payments

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/luminacursos/checkout/app/models"
	"github.com/luminacursos/checkout/internal/pkg/jobqueue"
)

// Scheduler enqueues the follow-up jobs fired after payment confirmation.
type Scheduler interface {
	EnqueueJob(jobType jobqueue.JobType, payload map[string]interface{}) (*jobqueue.Job, error)
}

// Repository provides the transactional confirm used by the reconciler.
type Repository interface {
	GetCouponByCode(code string) (*models.Coupon, error)
	// ConfirmOrderPaid flips a pending order to paid, appends the coupon usage
	// and bumps the coupon counter in one transaction. It reports false when
	// the order was no longer pending, which means another trigger won.
	ConfirmOrderPaid(orderID uint, paidAt time.Time, gatewayPaymentID string, usage *models.CouponUsage) (bool, error)
}

// ConfirmationResult is what confirmation triggers hand back to their caller.
type ConfirmationResult struct {
	Order *models.Order
	// AlreadyProcessed means this trigger found the work done and changed
	// nothing.
	AlreadyProcessed bool
}

// Reconciler turns payment confirmations into order state. Three triggers feed
// it the same order: the gateway webhook, the immediate charge response and
// the manual status poll. Whichever arrives first does the work; the rest are
// no-ops.
type Reconciler struct {
	repo      Repository
	scheduler Scheduler
}

// NewReconciler creates a reconciler from injected dependencies.
func NewReconciler(repo Repository, scheduler Scheduler) *Reconciler {
	return &Reconciler{repo: repo, scheduler: scheduler}
}

// NewReconcilerFromDB creates a reconciler from a GORM DB handle, scheduling
// on the global job queue.
func NewReconcilerFromDB(db *gorm.DB) *Reconciler {
	return NewReconciler(NewRepository(db), jobqueue.GetManager().GetQueue())
}

// ConfirmAndProvision marks the order paid and enqueues provisioning and
// invoice issuance. It is idempotent: an order already past pending returns
// its current state with no side effects, so duplicate webhooks and competing
// triggers each settle exactly once.
func (r *Reconciler) ConfirmAndProvision(ctx context.Context, order *models.Order, gatewayPaymentID string) (*ConfirmationResult, error) {
	_ = ctx
	if order.IsProcessed() {
		log.Debugf("[Payments] Order %s already processed (status=%s)", order.PublicID, order.Status)
		return &ConfirmationResult{Order: order, AlreadyProcessed: true}, nil
	}

	usage := r.couponUsageFor(order)

	now := time.Now()
	confirmed, err := r.repo.ConfirmOrderPaid(order.ID, now, gatewayPaymentID, usage)
	if err != nil {
		return nil, err
	}
	if !confirmed {
		// Lost the race against another trigger.
		log.Infof("[Payments] Order %s was confirmed concurrently", order.PublicID)
		order.Status = models.OrderStatusPaid
		return &ConfirmationResult{Order: order, AlreadyProcessed: true}, nil
	}

	order.Status = models.OrderStatusPaid
	order.PaidAt = &now
	if gatewayPaymentID != "" && order.GatewayPaymentID == "" {
		order.GatewayPaymentID = gatewayPaymentID
	}
	log.Infof("[Payments] Order %s confirmed paid via gateway payment %s", order.PublicID, order.GatewayPaymentID)

	provisionPayload := jobqueue.ProvisionAccessJobPayload{OrderPublicID: order.PublicID}
	if _, err := r.scheduler.EnqueueJob(jobqueue.JobTypeProvisionAccess, provisionPayload.ToMap()); err != nil {
		log.Errorf("[Payments] Failed to enqueue provisioning for order %s: %v", order.PublicID, err)
	}
	invoicePayload := jobqueue.IssueInvoiceJobPayload{OrderPublicID: order.PublicID}
	if _, err := r.scheduler.EnqueueJob(jobqueue.JobTypeIssueInvoice, invoicePayload.ToMap()); err != nil {
		log.Errorf("[Payments] Failed to enqueue invoice issuance for order %s: %v", order.PublicID, err)
	}

	return &ConfirmationResult{Order: order}, nil
}

// couponUsageFor builds the append-only usage row for orders that redeemed a
// coupon. A coupon deleted after order creation does not block confirmation.
func (r *Reconciler) couponUsageFor(order *models.Order) *models.CouponUsage {
	if order.CouponCode == "" {
		return nil
	}

	coupon, err := r.repo.GetCouponByCode(order.CouponCode)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Errorf("[Payments] Failed to load coupon %s for order %s: %v", order.CouponCode, order.PublicID, err)
		} else {
			log.Warnf("[Payments] Coupon %s vanished before order %s was confirmed", order.CouponCode, order.PublicID)
		}
		return nil
	}

	return &models.CouponUsage{
		CouponID:       coupon.ID,
		Code:           coupon.Code,
		OrderID:        order.ID,
		Email:          order.CustomerEmail,
		TaxID:          order.CustomerTaxID,
		DiscountAmount: order.CouponDiscount,
	}
}

var _ Scheduler = (*jobqueue.Queue)(nil)
