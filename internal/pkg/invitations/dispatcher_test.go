package invitations

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/luminacursos/checkout/app/models"
)

type fakeInvitationRepo struct {
	invitations map[uint]*models.EmailInvitation
	orders      map[uint]*models.Order
	deployments map[string]*models.Deployment
	nextID      uint
}

func newFakeInvitationRepo() *fakeInvitationRepo {
	return &fakeInvitationRepo{
		invitations: map[uint]*models.EmailInvitation{},
		orders:      map[uint]*models.Order{},
		deployments: map[string]*models.Deployment{},
	}
}

func (f *fakeInvitationRepo) CreateInvitation(inv *models.EmailInvitation) error {
	f.nextID++
	inv.ID = f.nextID
	f.invitations[inv.ID] = inv
	return nil
}

func (f *fakeInvitationRepo) GetByOrderID(orderID uint) (*models.EmailInvitation, error) {
	for _, inv := range f.invitations {
		if inv.OrderID == orderID {
			return inv, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeInvitationRepo) MarkSent(id uint, externalInvitationID string) error {
	inv := f.invitations[id]
	now := time.Now()
	inv.Status = models.InvitationStatusSent
	inv.ExternalInvitationID = externalInvitationID
	inv.ErrorMsg = ""
	inv.SentAt = &now
	return nil
}

func (f *fakeInvitationRepo) MarkFailed(id uint, errorMsg string) error {
	inv := f.invitations[id]
	inv.Status = models.InvitationStatusFailed
	inv.ErrorMsg = errorMsg
	inv.RetryCount++
	return nil
}

func (f *fakeInvitationRepo) ListRetryable(maxRetries, limit int) ([]models.EmailInvitation, error) {
	var out []models.EmailInvitation
	for _, inv := range f.invitations {
		if inv.Status == models.InvitationStatusFailed && inv.RetryCount < maxRetries {
			out = append(out, *inv)
		}
	}
	return out, nil
}

func (f *fakeInvitationRepo) GetOrderByID(id uint) (*models.Order, error) {
	if o, ok := f.orders[id]; ok {
		return o, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeInvitationRepo) GetDeploymentBySlug(slug string) (*models.Deployment, error) {
	if d, ok := f.deployments[slug]; ok {
		return d, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func invitationTestOrder() *models.Order {
	return &models.Order{
		ID:            42,
		PublicID:      "order-uuid-42",
		CustomerName:  "Maria Silva",
		CustomerEmail: "maria@example.com",
		Status:        models.OrderStatusPaid,
	}
}

func invitationServer(t *testing.T, got *map[string]interface{}) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/invitations" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer inv-key" {
			t.Fatalf("missing bearer token")
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(got))
		json.NewEncoder(w).Encode(Invitation{ID: "inv_1", Status: "pending"})
	}))
}

func testService(repo *fakeInvitationRepo, srv *httptest.Server) *Service {
	client := &Client{APIKey: "inv-key", BaseURL: srv.URL, HTTPClient: srv.Client()}
	return NewService(repo, client, "https://checkout.example.com")
}

func TestSendForOrder_CreatesRowAndSends(t *testing.T) {
	var got map[string]interface{}
	srv := invitationServer(t, &got)
	defer srv.Close()

	repo := newFakeInvitationRepo()
	repo.deployments["turma-a"] = &models.Deployment{Slug: "turma-a", BaseURL: "https://turma-a.example.com"}
	svc := testService(repo, srv)

	require.NoError(t, svc.SendForOrder(context.Background(), invitationTestOrder(), "turma-a"))

	inv, err := repo.GetByOrderID(42)
	require.NoError(t, err)
	assert.Equal(t, models.InvitationStatusSent, inv.Status)
	assert.Equal(t, "inv_1", inv.ExternalInvitationID)
	assert.NotNil(t, inv.SentAt)

	assert.Equal(t, "maria@example.com", got["email_address"])
	assert.Equal(t, "https://turma-a.example.com/sign-up", got["redirect_url"])
	meta := got["public_metadata"].(map[string]interface{})
	assert.Equal(t, "order-uuid-42", meta["order_id"])
}

func TestSendForOrder_AlreadySentIsNoop(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		json.NewEncoder(w).Encode(Invitation{ID: "inv_1"})
	}))
	defer srv.Close()

	repo := newFakeInvitationRepo()
	svc := testService(repo, srv)
	order := invitationTestOrder()

	require.NoError(t, svc.SendForOrder(context.Background(), order, ""))
	require.NoError(t, svc.SendForOrder(context.Background(), order, ""))

	assert.Equal(t, 1, calls, "an already-sent invitation must not be re-delivered")
	assert.Len(t, repo.invitations, 1)
}

func TestSendForOrder_FallbackRedirectWithoutDeployment(t *testing.T) {
	var got map[string]interface{}
	srv := invitationServer(t, &got)
	defer srv.Close()

	repo := newFakeInvitationRepo()
	svc := testService(repo, srv)

	require.NoError(t, svc.SendForOrder(context.Background(), invitationTestOrder(), ""))
	assert.Equal(t, "https://checkout.example.com/sign-up", got["redirect_url"])
}

func TestSendForOrder_FailureIsTrackedForRetry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream down"))
	}))
	defer srv.Close()

	repo := newFakeInvitationRepo()
	svc := testService(repo, srv)

	err := svc.SendForOrder(context.Background(), invitationTestOrder(), "")
	require.Error(t, err)

	inv, gerr := repo.GetByOrderID(42)
	require.NoError(t, gerr)
	assert.Equal(t, models.InvitationStatusFailed, inv.Status)
	assert.Equal(t, 1, inv.RetryCount)
	assert.Contains(t, inv.ErrorMsg, "status=502")
}

func TestRetryFailed_RedeliversAndMarksSent(t *testing.T) {
	var got map[string]interface{}
	srv := invitationServer(t, &got)
	defer srv.Close()

	repo := newFakeInvitationRepo()
	order := invitationTestOrder()
	repo.orders[order.ID] = order
	repo.invitations[1] = &models.EmailInvitation{
		ID:           1,
		OrderID:      order.ID,
		Email:        order.CustomerEmail,
		CustomerName: order.CustomerName,
		Status:       models.InvitationStatusFailed,
		RetryCount:   2,
	}
	repo.nextID = 1

	svc := testService(repo, srv)
	require.NoError(t, svc.RetryFailed(context.Background()))

	assert.Equal(t, models.InvitationStatusSent, repo.invitations[1].Status)
	assert.Equal(t, "inv_1", repo.invitations[1].ExternalInvitationID)
}

func TestRetryFailed_RespectsRetryCap(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		json.NewEncoder(w).Encode(Invitation{ID: "inv_1"})
	}))
	defer srv.Close()

	repo := newFakeInvitationRepo()
	repo.orders[42] = invitationTestOrder()
	repo.invitations[1] = &models.EmailInvitation{
		ID:         1,
		OrderID:    42,
		Email:      "maria@example.com",
		Status:     models.InvitationStatusFailed,
		RetryCount: MaxInvitationRetries,
	}
	repo.nextID = 1

	svc := testService(repo, srv)
	require.NoError(t, svc.RetryFailed(context.Background()))
	assert.Equal(t, 0, calls, "exhausted invitations must not be retried")
}
