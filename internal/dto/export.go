package dto

import (
	"time"

	"github.com/certilog/certilog-api/internal/models"
)

// ExportRequest queues a new asynchronous export job.
type ExportRequest struct {
	Type          models.ExportType   `json:"type" validate:"required"`
	Format        models.ExportFormat `json:"format" validate:"required"`
	Status        string              `json:"status,omitempty"`
	CertificateID string              `json:"certificate_id,omitempty"`
}

// ExportJobResponse acknowledges job creation.
type ExportJobResponse struct {
	ID     string              `json:"id"`
	Status models.ExportStatus `json:"status"`
}

// ExportStatusResponse reports job progress and, when finished, the signed
// download URL.
type ExportStatusResponse struct {
	ID        string              `json:"id"`
	Status    models.ExportStatus `json:"status"`
	ResultURL *string             `json:"result_url,omitempty"`
	Error     *string             `json:"error,omitempty"`
	ExpiresAt *time.Time          `json:"expires_at,omitempty"`
}
