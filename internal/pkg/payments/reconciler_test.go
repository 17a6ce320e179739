package payments

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/luminacursos/checkout/app/models"
	"github.com/luminacursos/checkout/internal/pkg/jobqueue"
)

type fakePaymentsRepo struct {
	coupons map[string]*models.Coupon
	usages  []models.CouponUsage
	// statuses tracks order status by id; ConfirmOrderPaid flips pending only.
	statuses map[uint]string
}

func newFakePaymentsRepo() *fakePaymentsRepo {
	return &fakePaymentsRepo{
		coupons:  map[string]*models.Coupon{},
		statuses: map[uint]string{},
	}
}

func (f *fakePaymentsRepo) GetCouponByCode(code string) (*models.Coupon, error) {
	if c, ok := f.coupons[code]; ok {
		return c, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakePaymentsRepo) ConfirmOrderPaid(orderID uint, paidAt time.Time, gatewayPaymentID string, usage *models.CouponUsage) (bool, error) {
	if f.statuses[orderID] != models.OrderStatusPending {
		return false, nil
	}
	f.statuses[orderID] = models.OrderStatusPaid
	if usage != nil {
		f.usages = append(f.usages, *usage)
		f.coupons[usage.Code].CurrentUses++
	}
	return true, nil
}

type fakeScheduler struct {
	enqueued []jobqueue.JobType
}

func (f *fakeScheduler) EnqueueJob(jobType jobqueue.JobType, payload map[string]interface{}) (*jobqueue.Job, error) {
	f.enqueued = append(f.enqueued, jobType)
	return &jobqueue.Job{ID: "job-1", Type: jobType, Payload: payload}, nil
}

func (f *fakeScheduler) count(jobType jobqueue.JobType) int {
	n := 0
	for _, t := range f.enqueued {
		if t == jobType {
			n++
		}
	}
	return n
}

func pendingOrder() *models.Order {
	return &models.Order{
		ID:             1,
		PublicID:       "order-uuid-1",
		CustomerName:   "Maria Silva",
		CustomerEmail:  "maria@example.com",
		CustomerTaxID:  "12345678901",
		ProductName:    "Formação Completa",
		FinalPrice:     1077.30,
		CouponCode:     "DESC10",
		CouponDiscount: 119.70,
		PaymentMethod:  models.PaymentMethodPix,
		Status:         models.OrderStatusPending,
	}
}

func TestConfirmAndProvision_ConfirmsOnceAndEnqueues(t *testing.T) {
	repo := newFakePaymentsRepo()
	repo.statuses[1] = models.OrderStatusPending
	repo.coupons["DESC10"] = &models.Coupon{ID: 3, Code: "DESC10"}
	sched := &fakeScheduler{}
	rec := NewReconciler(repo, sched)

	order := pendingOrder()
	result, err := rec.ConfirmAndProvision(context.Background(), order, "pay_1")
	require.NoError(t, err)

	assert.False(t, result.AlreadyProcessed)
	assert.Equal(t, models.OrderStatusPaid, result.Order.Status)
	assert.NotNil(t, result.Order.PaidAt)
	assert.Equal(t, "pay_1", result.Order.GatewayPaymentID)

	require.Len(t, repo.usages, 1)
	assert.Equal(t, uint(3), repo.usages[0].CouponID)
	assert.Equal(t, uint(1), repo.usages[0].OrderID)
	assert.Equal(t, 119.70, repo.usages[0].DiscountAmount)
	assert.Equal(t, 1, repo.coupons["DESC10"].CurrentUses)

	assert.Equal(t, 1, sched.count(jobqueue.JobTypeProvisionAccess))
	assert.Equal(t, 1, sched.count(jobqueue.JobTypeIssueInvoice))
}

func TestConfirmAndProvision_SecondTriggerIsNoop(t *testing.T) {
	repo := newFakePaymentsRepo()
	repo.statuses[1] = models.OrderStatusPending
	repo.coupons["DESC10"] = &models.Coupon{ID: 3, Code: "DESC10"}
	sched := &fakeScheduler{}
	rec := NewReconciler(repo, sched)

	order := pendingOrder()
	_, err := rec.ConfirmAndProvision(context.Background(), order, "pay_1")
	require.NoError(t, err)

	// The same in-memory order now reports processed.
	result, err := rec.ConfirmAndProvision(context.Background(), order, "pay_1")
	require.NoError(t, err)
	assert.True(t, result.AlreadyProcessed)

	assert.Len(t, repo.usages, 1, "coupon usage must be recorded exactly once")
	assert.Equal(t, 1, repo.coupons["DESC10"].CurrentUses)
	assert.Equal(t, 1, sched.count(jobqueue.JobTypeProvisionAccess), "fan-out must be enqueued exactly once")
}

func TestConfirmAndProvision_LostRaceChangesNothing(t *testing.T) {
	repo := newFakePaymentsRepo()
	repo.statuses[1] = models.OrderStatusPaid // another trigger got here first
	sched := &fakeScheduler{}
	rec := NewReconciler(repo, sched)

	order := pendingOrder()
	order.CouponCode = ""
	result, err := rec.ConfirmAndProvision(context.Background(), order, "pay_1")
	require.NoError(t, err)

	assert.True(t, result.AlreadyProcessed)
	assert.Empty(t, sched.enqueued)
}

func TestConfirmAndProvision_NoCouponNoUsage(t *testing.T) {
	repo := newFakePaymentsRepo()
	repo.statuses[1] = models.OrderStatusPending
	sched := &fakeScheduler{}
	rec := NewReconciler(repo, sched)

	order := pendingOrder()
	order.CouponCode = ""
	order.CouponDiscount = 0

	_, err := rec.ConfirmAndProvision(context.Background(), order, "pay_1")
	require.NoError(t, err)
	assert.Empty(t, repo.usages)
}

func TestConfirmAndProvision_VanishedCouponStillConfirms(t *testing.T) {
	repo := newFakePaymentsRepo()
	repo.statuses[1] = models.OrderStatusPending
	sched := &fakeScheduler{}
	rec := NewReconciler(repo, sched)

	result, err := rec.ConfirmAndProvision(context.Background(), pendingOrder(), "pay_1")
	require.NoError(t, err)

	assert.False(t, result.AlreadyProcessed)
	assert.Equal(t, models.OrderStatusPaid, result.Order.Status)
	assert.Empty(t, repo.usages)
}
