package invitations

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/luminacursos/checkout/internal/pkg/env"
)

const defaultAPIURL = "https://api.clerk.com"

// Client talks to the external auth provider's invitation API. Errors surface
// the HTTP status and response body verbatim.
type Client struct {
	APIKey  string
	BaseURL string

	HTTPClient *http.Client
}

// NewClientFromEnv builds a client from INVITATION_* environment configuration.
func NewClientFromEnv() *Client {
	return &Client{
		APIKey:  strings.TrimSpace(env.GetEnv("INVITATION_API_KEY", "")),
		BaseURL: strings.TrimRight(env.GetEnv("INVITATION_API_URL", defaultAPIURL), "/"),
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// InvitationInput creates one sign-up invitation.
type InvitationInput struct {
	EmailAddress   string                 `json:"email_address"`
	RedirectURL    string                 `json:"redirect_url,omitempty"`
	PublicMetadata map[string]interface{} `json:"public_metadata,omitempty"`
	Notify         bool                   `json:"notify"`
}

// Invitation is the provider's invitation record.
type Invitation struct {
	ID           string `json:"id"`
	EmailAddress string `json:"email_address"`
	Status       string `json:"status"`
}

// CreateInvitation sends a sign-up invitation email via the auth provider.
func (c *Client) CreateInvitation(ctx context.Context, in InvitationInput) (*Invitation, error) {
	if strings.TrimSpace(c.APIKey) == "" {
		return nil, errors.New("INVITATION_API_KEY is not configured")
	}
	if strings.TrimSpace(in.EmailAddress) == "" {
		return nil, errors.New("email address is required")
	}

	data, err := json.Marshal(in)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/invitations", bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("invitation POST /v1/invitations failed: status=%d body=%s", resp.StatusCode, string(respBody))
	}

	var out Invitation
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("invitation POST /v1/invitations: invalid response body: %w", err)
	}
	return &out, nil
}
