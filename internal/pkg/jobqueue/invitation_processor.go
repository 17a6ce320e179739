package jobqueue

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2/log"

	"github.com/luminacursos/checkout/internal/pkg/database"
	"github.com/luminacursos/checkout/internal/pkg/invitations"
	"github.com/luminacursos/checkout/internal/pkg/orders"
)

// processSendInvitationJob sends the sign-up invitation for a paid order. A
// delivery failure is recorded on the tracking row and retried out-of-band by
// the manager's retry worker, so the job itself completes either way.
func (q *Queue) processSendInvitationJob(ctx context.Context, job *Job) error {
	payload, perr := SendInvitationJobPayloadFromMap(job.Payload)
	if perr != nil {
		return fmt.Errorf("failed to parse invitation payload: %w", perr)
	}

	db := database.GetDB()
	if db == nil {
		return fmt.Errorf("database connection is nil")
	}

	order, err := orders.NewServiceFromDB(db).GetByPublicID(payload.OrderPublicID)
	if err != nil {
		return fmt.Errorf("failed to load order %s: %w", payload.OrderPublicID, err)
	}

	invSvc := invitations.NewServiceFromDB(db)
	if err := invSvc.SendForOrder(ctx, order, payload.PrimaryDeploymentSlug); err != nil {
		log.Warnf("[InvitationJob] Delivery failed for order %s, left for retry: %v", order.PublicID, err)
	}
	return nil
}
