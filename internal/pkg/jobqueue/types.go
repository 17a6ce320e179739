package jobqueue

import (
	"encoding/json"
	"time"
)

// JobType defines the type of job
type JobType string

const (
	JobTypeProvisionAccess JobType = "provision_access"
	JobTypeSendInvitation  JobType = "send_invitation"
	JobTypeIssueInvoice    JobType = "issue_invoice"
)

// JobStatus defines the status of a job
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusRetrying   JobStatus = "retrying"
)

// Job represents a background job
type Job struct {
	ID          string                 `json:"id"`
	Type        JobType                `json:"type"`
	Status      JobStatus              `json:"status"`
	Payload     map[string]interface{} `json:"payload"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
	ProcessedAt *time.Time             `json:"processed_at,omitempty"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
	ErrorMsg    string                 `json:"error_msg,omitempty"`
	RetryCount  int                    `json:"retry_count"`
	MaxRetries  int                    `json:"max_retries"`
}

// ProvisionAccessJobPayload contains the payload for access provisioning jobs
type ProvisionAccessJobPayload struct {
	OrderPublicID string `json:"order_public_id"`
}

// ToMap converts the payload to a map for storage
func (p ProvisionAccessJobPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"order_public_id": p.OrderPublicID,
	}
}

// ProvisionAccessJobPayloadFromMap creates a payload from a map
func ProvisionAccessJobPayloadFromMap(data map[string]interface{}) (*ProvisionAccessJobPayload, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	var payload ProvisionAccessJobPayload
	err = json.Unmarshal(jsonData, &payload)
	return &payload, err
}

// SendInvitationJobPayload contains the payload for invitation dispatch jobs
type SendInvitationJobPayload struct {
	OrderPublicID         string `json:"order_public_id"`
	PrimaryDeploymentSlug string `json:"primary_deployment_slug,omitempty"`
}

// ToMap converts the payload to a map for storage
func (p SendInvitationJobPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"order_public_id":         p.OrderPublicID,
		"primary_deployment_slug": p.PrimaryDeploymentSlug,
	}
}

// SendInvitationJobPayloadFromMap creates a payload from a map
func SendInvitationJobPayloadFromMap(data map[string]interface{}) (*SendInvitationJobPayload, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	var payload SendInvitationJobPayload
	err = json.Unmarshal(jsonData, &payload)
	return &payload, err
}

// IssueInvoiceJobPayload contains the payload for fiscal invoice jobs
type IssueInvoiceJobPayload struct {
	OrderPublicID string `json:"order_public_id"`
}

// ToMap converts the payload to a map for storage
func (p IssueInvoiceJobPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"order_public_id": p.OrderPublicID,
	}
}

// IssueInvoiceJobPayloadFromMap creates a payload from a map
func IssueInvoiceJobPayloadFromMap(data map[string]interface{}) (*IssueInvoiceJobPayload, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	var payload IssueInvoiceJobPayload
	err = json.Unmarshal(jsonData, &payload)
	return &payload, err
}

// IsRetryable checks if the job can be retried
func (j *Job) IsRetryable() bool {
	return j.Status == JobStatusFailed && j.RetryCount < j.MaxRetries
}

// MarkAsProcessing updates the job status to processing
func (j *Job) MarkAsProcessing() {
	now := time.Now()
	j.Status = JobStatusProcessing
	j.UpdatedAt = now
	j.ProcessedAt = &now
}

// MarkAsCompleted updates the job status to completed
func (j *Job) MarkAsCompleted() {
	now := time.Now()
	j.Status = JobStatusCompleted
	j.UpdatedAt = now
	j.CompletedAt = &now
	j.ErrorMsg = ""
}

// MarkAsFailed updates the job status to failed
func (j *Job) MarkAsFailed(errorMsg string) {
	j.Status = JobStatusFailed
	j.UpdatedAt = time.Now()
	j.ErrorMsg = errorMsg
	j.RetryCount++
}

// MarkAsRetrying updates the job status to retrying
func (j *Job) MarkAsRetrying() {
	j.Status = JobStatusRetrying
	j.UpdatedAt = time.Now()
}
