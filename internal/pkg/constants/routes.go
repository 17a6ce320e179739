package constants

// Static route constants
const (
	APIRoute   = "/api"
	V1Route    = "/v1"
	AdminRoute = "/admin"
	// Webhook path registered outside the API group so gateway retries skip the limiter
	WebhookAsaasRoute = "/webhooks/asaas"
)
