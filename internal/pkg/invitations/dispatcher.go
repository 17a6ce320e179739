package invitations

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/luminacursos/checkout/app/models"
	"github.com/luminacursos/checkout/internal/pkg/env"
)

// MaxInvitationRetries bounds out-of-band redelivery attempts per invitation.
const MaxInvitationRetries = 5

// Repository provides DB operations for invitation tracking.
type Repository interface {
	CreateInvitation(inv *models.EmailInvitation) error
	GetByOrderID(orderID uint) (*models.EmailInvitation, error)
	MarkSent(id uint, externalInvitationID string) error
	MarkFailed(id uint, errorMsg string) error
	ListRetryable(maxRetries, limit int) ([]models.EmailInvitation, error)
	GetOrderByID(id uint) (*models.Order, error)
	GetDeploymentBySlug(slug string) (*models.Deployment, error)
}

// Service dispatches sign-up invitations for paid orders and tracks delivery
// per order. Exactly one invitation row exists per order; delivery failures
// bump a retry counter instead of failing the payment pipeline.
type Service struct {
	repo   Repository
	client *Client
	appURL string
}

// NewService creates an invitation service from injected dependencies.
func NewService(repo Repository, client *Client, appURL string) *Service {
	return &Service{repo: repo, client: client, appURL: strings.TrimRight(appURL, "/")}
}

// NewServiceFromDB creates an invitation service from a GORM DB handle and
// environment configuration.
func NewServiceFromDB(db *gorm.DB) *Service {
	return NewService(NewRepository(db), NewClientFromEnv(), env.GetEnv("APP_PUBLIC_URL", "http://localhost:8080"))
}

// SendForOrder sends the invitation for a paid order, creating the tracking
// row on first call and reusing it on re-delivery. An already-sent invitation
// is a no-op.
func (s *Service) SendForOrder(ctx context.Context, order *models.Order, primaryDeploymentSlug string) error {
	inv, err := s.repo.GetByOrderID(order.ID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		inv = &models.EmailInvitation{
			OrderID:               order.ID,
			Email:                 order.CustomerEmail,
			CustomerName:          order.CustomerName,
			Status:                models.InvitationStatusPending,
			PrimaryDeploymentSlug: primaryDeploymentSlug,
		}
		if err := s.repo.CreateInvitation(inv); err != nil {
			return err
		}
	}

	if inv.Status == models.InvitationStatusSent {
		log.Debugf("[Invitations] Order %s already invited, skipping", order.PublicID)
		return nil
	}

	return s.deliver(ctx, inv, order)
}

// RetryFailed re-attempts delivery for failed invitations below the retry cap.
func (s *Service) RetryFailed(ctx context.Context) error {
	pending, err := s.repo.ListRetryable(MaxInvitationRetries, 50)
	if err != nil {
		return err
	}

	for i := range pending {
		inv := &pending[i]
		order, err := s.repo.GetOrderByID(inv.OrderID)
		if err != nil {
			log.Errorf("[Invitations] Retry: order %d not found for invitation %d: %v", inv.OrderID, inv.ID, err)
			continue
		}
		if err := s.deliver(ctx, inv, order); err != nil {
			log.Warnf("[Invitations] Retry failed for order %s: %v", order.PublicID, err)
		}
	}
	return nil
}

// deliver performs one delivery attempt and records the outcome.
func (s *Service) deliver(ctx context.Context, inv *models.EmailInvitation, order *models.Order) error {
	created, err := s.client.CreateInvitation(ctx, InvitationInput{
		EmailAddress: inv.Email,
		RedirectURL:  s.redirectURL(inv.PrimaryDeploymentSlug),
		PublicMetadata: map[string]interface{}{
			"order_id":      order.PublicID,
			"customer_name": inv.CustomerName,
		},
		Notify: true,
	})
	if err != nil {
		if merr := s.repo.MarkFailed(inv.ID, err.Error()); merr != nil {
			log.Errorf("[Invitations] Failed to record delivery failure for invitation %d: %v", inv.ID, merr)
		}
		return err
	}

	log.Infof("[Invitations] Sent invitation %s for order %s", created.ID, order.PublicID)
	return s.repo.MarkSent(inv.ID, created.ID)
}

// redirectURL resolves where the invited buyer lands to sign up: the primary
// deployment when one is known, else the public checkout site.
func (s *Service) redirectURL(primarySlug string) string {
	if primarySlug != "" {
		if dep, err := s.repo.GetDeploymentBySlug(primarySlug); err == nil {
			return dep.SignUpURL()
		}
	}
	return s.appURL + "/sign-up"
}
