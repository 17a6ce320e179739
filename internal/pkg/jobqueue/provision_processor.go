package jobqueue

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2/log"

	"github.com/luminacursos/checkout/app/models"
	"github.com/luminacursos/checkout/internal/pkg/database"
	"github.com/luminacursos/checkout/internal/pkg/env"
	"github.com/luminacursos/checkout/internal/pkg/mail"
	"github.com/luminacursos/checkout/internal/pkg/metrics/counter"
	"github.com/luminacursos/checkout/internal/pkg/orders"
	"github.com/luminacursos/checkout/internal/pkg/provisioning"
)

// EnqueueProvisionAccessJob enqueues the access fan-out for a paid order
func (q *Queue) EnqueueProvisionAccessJob(orderPublicID string) (*Job, error) {
	payload := ProvisionAccessJobPayload{OrderPublicID: orderPublicID}
	return q.EnqueueJob(JobTypeProvisionAccess, payload.ToMap())
}

// processProvisionAccessJob grants course access on every active deployment of
// the purchased product, records the per-deployment outcome on the order and
// hands off to invitation dispatch.
func (q *Queue) processProvisionAccessJob(ctx context.Context, job *Job) error {
	payload, perr := ProvisionAccessJobPayloadFromMap(job.Payload)
	if perr != nil {
		return fmt.Errorf("failed to parse provision access payload: %w", perr)
	}

	db := database.GetDB()
	if db == nil {
		return fmt.Errorf("database connection is nil")
	}

	orderSvc := orders.NewServiceFromDB(db)
	order, err := orderSvc.GetByPublicID(payload.OrderPublicID)
	if err != nil {
		return fmt.Errorf("failed to load order %s: %w", payload.OrderPublicID, err)
	}

	// A completed order was already fanned out in full; nothing to do.
	if order.Status == models.OrderStatusCompleted {
		log.Infof("[ProvisionJob] Order %s already completed, skipping", order.PublicID)
		return nil
	}

	product, err := orderSvc.ProductForOrder(order)
	if err != nil {
		return fmt.Errorf("failed to load product for order %s: %w", order.PublicID, err)
	}

	// Count the sale on the first fan-out only; retries arrive with the order
	// already in the provisioning state.
	if order.Status == models.OrderStatusPaid {
		if cerr := counter.AddProductSale(order.ProductID); cerr != nil {
			log.Errorf("[ProvisionJob] Failed to count sale for product %d: %v", order.ProductID, cerr)
		}
	}

	provSvc := provisioning.NewServiceFromDB(db)
	results, err := provSvc.ProvisionOrder(ctx, order, product)
	if err != nil {
		return fmt.Errorf("provisioning fan-out for order %s: %w", order.PublicID, err)
	}

	if err := orderSvc.RecordProvisioningOutcome(order, results); err != nil {
		return fmt.Errorf("failed to record provisioning outcome for order %s: %w", order.PublicID, err)
	}

	failed := 0
	for _, r := range results {
		if !r.Success {
			failed++
		}
	}
	if failed > 0 {
		log.Warnf("[ProvisionJob] Order %s: %d of %d deployments failed", order.PublicID, failed, len(results))
		notifyPartialProvisioning(order, results)
	} else {
		log.Infof("[ProvisionJob] Order %s provisioned on all %d deployments", order.PublicID, len(results))
	}

	// The invitation goes out once per order even when some deployments failed;
	// the buyer still has access on the ones that succeeded.
	invPayload := SendInvitationJobPayload{
		OrderPublicID:         order.PublicID,
		PrimaryDeploymentSlug: primarySlugFor(product, results),
	}
	if _, err := q.EnqueueJob(JobTypeSendInvitation, invPayload.ToMap()); err != nil {
		log.Errorf("[ProvisionJob] Failed to enqueue invitation for order %s: %v", order.PublicID, err)
	}

	return nil
}

// primarySlugFor picks the deployment the invitation redirect points at: the
// first listed deployment that provisioned successfully, else the first listed.
func primarySlugFor(product *models.Product, results []models.ProvisionResult) string {
	slugs := product.Deployments()
	if len(slugs) == 0 {
		return ""
	}
	ok := make(map[string]bool, len(results))
	for _, r := range results {
		ok[r.DeploymentSlug] = r.Success
	}
	for _, slug := range slugs {
		if ok[slug] {
			return slug
		}
	}
	return slugs[0]
}

// notifyPartialProvisioning alerts the operators so failed deployments can be
// re-run by hand. Delivery failures only get logged.
func notifyPartialProvisioning(order *models.Order, results []models.ProvisionResult) {
	to := env.GetEnv("OPS_ALERT_EMAIL", "")
	if to == "" {
		return
	}

	body := fmt.Sprintf("Order %s (%s) was only partially provisioned:\n\n", order.PublicID, order.CustomerEmail)
	for _, r := range results {
		if r.Success {
			body += fmt.Sprintf("  OK      %s\n", r.DeploymentSlug)
		} else {
			body += fmt.Sprintf("  FAILED  %s: %s\n", r.DeploymentSlug, r.Error)
		}
	}

	if err := mail.SendMail(to, "Partial provisioning for order "+order.PublicID, body); err != nil {
		log.Errorf("[ProvisionJob] Failed to send ops alert for order %s: %v", order.PublicID, err)
	}
}
