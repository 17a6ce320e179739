package asaas

// Billing types accepted by the charge endpoint.
const (
	BillingTypePix        = "PIX"
	BillingTypeCreditCard = "CREDIT_CARD"
)

// Payment statuses returned by the gateway. RECEIVED and CONFIRMED both count
// as paid.
const (
	PaymentStatusPending   = "PENDING"
	PaymentStatusReceived  = "RECEIVED"
	PaymentStatusConfirmed = "CONFIRMED"
	PaymentStatusOverdue   = "OVERDUE"
	PaymentStatusRefunded  = "REFUNDED"
)

// IsPaidStatus reports whether a gateway status means the charge is settled.
func IsPaidStatus(status string) bool {
	return status == PaymentStatusReceived || status == PaymentStatusConfirmed
}

// Webhook event names that signal a settled payment.
const (
	EventPaymentConfirmed = "PAYMENT_CONFIRMED"
	EventPaymentReceived  = "PAYMENT_RECEIVED"
)

// CustomerInput creates a gateway customer record for the buyer.
type CustomerInput struct {
	Name          string `json:"name"`
	Email         string `json:"email"`
	CpfCnpj       string `json:"cpfCnpj"`
	Phone         string `json:"phone,omitempty"`
	PostalCode    string `json:"postalCode,omitempty"`
	AddressNumber string `json:"addressNumber,omitempty"`
}

// Customer is the gateway's customer record.
type Customer struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	CpfCnpj string `json:"cpfCnpj"`
}

// CreditCard carries raw card data for credit card charges.
type CreditCard struct {
	HolderName  string `json:"holderName"`
	Number      string `json:"number"`
	ExpiryMonth string `json:"expiryMonth"`
	ExpiryYear  string `json:"expiryYear"`
	CCV         string `json:"ccv"`
}

// CreditCardHolderInfo is the cardholder identity the gateway requires for
// anti-fraud checks.
type CreditCardHolderInfo struct {
	Name          string `json:"name"`
	Email         string `json:"email"`
	CpfCnpj       string `json:"cpfCnpj"`
	PostalCode    string `json:"postalCode"`
	AddressNumber string `json:"addressNumber"`
	Phone         string `json:"phone,omitempty"`
}

// ChargeInput creates a charge. Single payments carry Value; installment plans
// (InstallmentCount > 1) carry TotalValue + InstallmentCount instead — the
// client enforces that the two forms are mutually exclusive on the wire.
type ChargeInput struct {
	CustomerID        string
	BillingType       string
	Value             float64
	InstallmentCount  int
	DueDate           string
	Description       string
	ExternalReference string

	CreditCard           *CreditCard
	CreditCardHolderInfo *CreditCardHolderInfo
	RemoteIP             string
}

type chargeRequest struct {
	Customer          string   `json:"customer"`
	BillingType       string   `json:"billingType"`
	Value             *float64 `json:"value,omitempty"`
	TotalValue        *float64 `json:"totalValue,omitempty"`
	InstallmentCount  *int     `json:"installmentCount,omitempty"`
	DueDate           string   `json:"dueDate"`
	Description       string   `json:"description,omitempty"`
	ExternalReference string   `json:"externalReference,omitempty"`

	CreditCard           *CreditCard           `json:"creditCard,omitempty"`
	CreditCardHolderInfo *CreditCardHolderInfo `json:"creditCardHolderInfo,omitempty"`
	RemoteIP             string                `json:"remoteIp,omitempty"`
}

// Charge is the gateway's payment record.
type Charge struct {
	ID                string  `json:"id"`
	Customer          string  `json:"customer"`
	Status            string  `json:"status"`
	BillingType       string  `json:"billingType"`
	Value             float64 `json:"value"`
	NetValue          float64 `json:"netValue"`
	DueDate           string  `json:"dueDate"`
	ExternalReference string  `json:"externalReference"`
	InstallmentCount  int     `json:"installmentCount,omitempty"`
	InvoiceURL        string  `json:"invoiceUrl,omitempty"`
}

// PixQRCode is the scannable payload for a PIX charge. It may not be available
// immediately after charge creation.
type PixQRCode struct {
	EncodedImage   string `json:"encodedImage"`
	Payload        string `json:"payload"`
	ExpirationDate string `json:"expirationDate"`
}

// InvoiceTaxes is the fixed municipal tax block sent on invoice scheduling.
type InvoiceTaxes struct {
	RetainISS bool    `json:"retainIss"`
	ISS       float64 `json:"iss"`
	COFINS    float64 `json:"cofins"`
	CSLL      float64 `json:"csll"`
	INSS      float64 `json:"inss"`
	IR        float64 `json:"ir"`
	PIS       float64 `json:"pis"`
}

// InvoiceInput schedules fiscal invoice issuance for a settled payment.
type InvoiceInput struct {
	Payment              string       `json:"payment"`
	Customer             string       `json:"customer,omitempty"`
	ServiceDescription   string       `json:"serviceDescription"`
	Observations         string       `json:"observations,omitempty"`
	Value                float64      `json:"value"`
	Deductions           float64      `json:"deductions"`
	EffectiveDate        string       `json:"effectiveDate"`
	MunicipalServiceID   string       `json:"municipalServiceId,omitempty"`
	MunicipalServiceCode string       `json:"municipalServiceCode,omitempty"`
	MunicipalServiceName string       `json:"municipalServiceName"`
	Taxes                InvoiceTaxes `json:"taxes"`
}

// Invoice is the gateway's fiscal invoice record.
type Invoice struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// WebhookPayment is the payment object inside a webhook event.
type WebhookPayment struct {
	ID                string  `json:"id"`
	Status            string  `json:"status"`
	Value             float64 `json:"value"`
	ExternalReference string  `json:"externalReference"`
	Installment       string  `json:"installment,omitempty"`
	InstallmentNumber int     `json:"installmentNumber,omitempty"`
}

// WebhookEvent is the body the gateway POSTs on payment state changes.
type WebhookEvent struct {
	Event   string         `json:"event"`
	Payment WebhookPayment `json:"payment"`
}
