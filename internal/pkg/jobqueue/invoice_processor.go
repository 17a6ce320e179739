package jobqueue

import (
	"context"
	"fmt"

	"github.com/luminacursos/checkout/internal/pkg/database"
	"github.com/luminacursos/checkout/internal/pkg/invoices"
	"github.com/luminacursos/checkout/internal/pkg/orders"
)

// processIssueInvoiceJob schedules the fiscal invoice for a paid order. The
// generator is idempotent: at most one invoice ever exists per order.
func (q *Queue) processIssueInvoiceJob(ctx context.Context, job *Job) error {
	payload, perr := IssueInvoiceJobPayloadFromMap(job.Payload)
	if perr != nil {
		return fmt.Errorf("failed to parse invoice payload: %w", perr)
	}

	db := database.GetDB()
	if db == nil {
		return fmt.Errorf("database connection is nil")
	}

	order, err := orders.NewServiceFromDB(db).GetByPublicID(payload.OrderPublicID)
	if err != nil {
		return fmt.Errorf("failed to load order %s: %w", payload.OrderPublicID, err)
	}

	if err := invoices.NewServiceFromDB(db).IssueForOrder(ctx, order); err != nil {
		return fmt.Errorf("invoice issuance for order %s: %w", order.PublicID, err)
	}
	return nil
}
