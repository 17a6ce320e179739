package provisioning

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/luminacursos/checkout/app/models"
	"github.com/luminacursos/checkout/internal/pkg/env"
)

// Repository resolves the deployments a product provisions onto.
type Repository interface {
	GetActiveDeploymentsBySlugs(slugs []string) ([]models.Deployment, error)
}

// Service fans paid orders out to every deployment of the purchased product.
// Each deployment is called independently; one failure never aborts the rest.
type Service struct {
	repo   Repository
	secret string

	HTTPClient *http.Client
}

// NewService creates a provisioning service from injected dependencies.
func NewService(repo Repository, secret string) *Service {
	return &Service{
		repo:   repo,
		secret: secret,
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// NewServiceFromDB creates a provisioning service from a GORM DB handle and
// PROVISION_* environment configuration.
func NewServiceFromDB(db *gorm.DB) *Service {
	return NewService(NewRepository(db), env.GetEnv("PROVISION_SECRET", ""))
}

// provisionRequest is the body POSTed to each deployment's access endpoint.
type provisionRequest struct {
	Email              string     `json:"email"`
	CustomerName       string     `json:"customerName"`
	ExternalAuthUserID string     `json:"externalAuthUserId,omitempty"`
	ProductName        string     `json:"productName"`
	OrderID            string     `json:"orderId"`
	PurchasePrice      float64    `json:"purchasePrice"`
	AccessExpiresAt    *time.Time `json:"accessExpiresAt,omitempty"`
	CouponUsed         string     `json:"couponUsed,omitempty"`
	DiscountAmount     float64    `json:"discountAmount,omitempty"`
}

// ProvisionOrder calls every active deployment of the product concurrently and
// waits for all of them. The returned slice has one entry per configured slug,
// in the product's listed order; a missing or inactive deployment shows up as
// a failed entry rather than an error.
func (s *Service) ProvisionOrder(ctx context.Context, order *models.Order, product *models.Product) ([]models.ProvisionResult, error) {
	slugs := product.Deployments()
	if len(slugs) == 0 {
		return nil, fmt.Errorf("product %s has no deployments configured", product.Slug)
	}

	deployments, err := s.repo.GetActiveDeploymentsBySlugs(slugs)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve deployments: %w", err)
	}
	bySlug := make(map[string]*models.Deployment, len(deployments))
	for i := range deployments {
		bySlug[deployments[i].Slug] = &deployments[i]
	}

	purchasedAt := time.Now()
	if order.PaidAt != nil {
		purchasedAt = *order.PaidAt
	}
	req := provisionRequest{
		Email:              order.CustomerEmail,
		CustomerName:       order.CustomerName,
		ExternalAuthUserID: order.ExternalAuthUserID,
		ProductName:        order.ProductName,
		OrderID:            order.PublicID,
		PurchasePrice:      order.FinalPrice,
		AccessExpiresAt:    product.AccessExpiresAt(purchasedAt),
		CouponUsed:         order.CouponCode,
		DiscountAmount:     order.CouponDiscount,
	}

	results := make([]models.ProvisionResult, len(slugs))
	var wg sync.WaitGroup
	for i, slug := range slugs {
		dep, ok := bySlug[slug]
		if !ok {
			results[i] = models.ProvisionResult{
				DeploymentSlug: slug,
				Success:        false,
				Error:          "deployment not found or inactive",
			}
			continue
		}

		wg.Add(1)
		go func(i int, dep *models.Deployment) {
			defer wg.Done()
			results[i] = s.provisionDeployment(ctx, dep, req)
		}(i, dep)
	}
	wg.Wait()

	return results, nil
}

// provisionDeployment performs a single access grant call.
func (s *Service) provisionDeployment(ctx context.Context, dep *models.Deployment, body provisionRequest) models.ProvisionResult {
	result := models.ProvisionResult{DeploymentSlug: dep.Slug}

	data, err := json.Marshal(body)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, dep.ProvisionURL(), bytes.NewReader(data))
	if err != nil {
		result.Error = err.Error()
		return result
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(s.secret))

	resp, err := s.HTTPClient.Do(req)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		result.Error = fmt.Sprintf("status=%d body=%s", resp.StatusCode, string(respBody))
		return result
	}

	now := time.Now()
	result.Success = true
	result.ProvisionedAt = &now
	return result
}
