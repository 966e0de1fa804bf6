package service

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/certilog/certilog-api/internal/dto"
	"github.com/certilog/certilog-api/internal/models"
	"github.com/certilog/certilog-api/internal/repository"
	appErrors "github.com/certilog/certilog-api/pkg/errors"
	"github.com/certilog/certilog-api/pkg/export"
	"github.com/certilog/certilog-api/pkg/jobs"
	"github.com/certilog/certilog-api/pkg/storage"
)

type exportJobStore interface {
	Create(ctx context.Context, job *models.ExportJob) error
	GetByID(ctx context.Context, id string) (*models.ExportJob, error)
	Update(ctx context.Context, id string, params repository.UpdateExportJobParams) error
}

type exportCertificateSource interface {
	List(ctx context.Context, filter models.CertificateFilter) ([]models.Certificate, int, error)
}

type exportAuditSource interface {
	ListByCertificate(ctx context.Context, certificateID string, limit, offset int) ([]models.AuditEvent, error)
	ListAll(ctx context.Context, limit int) ([]models.AuditEvent, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
	PageSize  int
}

// ExportService runs asynchronous certificate and audit trail exports. Jobs
// are queued in memory, rendered by the worker pool, written to local
// storage, and served through short-lived signed URLs.
type ExportService struct {
	jobsRepo     exportJobStore
	certificates exportCertificateSource
	audits       exportAuditSource
	storage      fileStorage
	csv          csvRenderer
	pdf          pdfRenderer
	signer       *storage.SignedURLSigner
	queue        *jobs.Queue
	validator    *validator.Validate
	logger       *zap.Logger
	cfg          ExportConfig
}

// NewExportService constructs an ExportService. Call Attach to wire the job
// queue before use.
func NewExportService(jobsRepo exportJobStore, certificates exportCertificateSource, audits exportAuditSource, fileStore fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, validate *validator.Validate, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 5000
	}
	return &ExportService{
		jobsRepo:     jobsRepo,
		certificates: certificates,
		audits:       audits,
		storage:      fileStore,
		csv:          export.NewCSVExporter(),
		pdf:          export.NewPDFExporter(),
		signer:       signer,
		validator:    validate,
		logger:       logger,
		cfg:          cfg,
	}
}

// Attach binds the background queue used to process jobs.
func (s *ExportService) Attach(queue *jobs.Queue) {
	s.queue = queue
}

// Enqueue persists a new job and hands it to the worker pool.
func (s *ExportService) Enqueue(ctx context.Context, req dto.ExportRequest, actor models.Actor) (*dto.ExportJobResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	switch req.Type {
	case models.ExportTypeCertificates, models.ExportTypeAuditTrail:
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export type %s", req.Type))
	}
	switch req.Format {
	case models.ExportFormatCSV, models.ExportFormatPDF:
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %s", req.Format))
	}
	if s.queue == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "export queue is not running")
	}

	job := &models.ExportJob{
		ID:     uuid.NewString(),
		Type:   req.Type,
		Status: models.ExportStatusQueued,
		Params: models.ExportJobParams{
			Format:        req.Format,
			Status:        req.Status,
			CertificateID: req.CertificateID,
		},
		CreatedBy: actor.ID,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.jobsRepo.Create(ctx, job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "create export job")
	}
	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: string(job.Type)}); err != nil {
		s.markFailed(ctx, job.ID, "export queue is full")
		return nil, appErrors.Clone(appErrors.ErrInternal, "export queue is full")
	}
	return &dto.ExportJobResponse{ID: job.ID, Status: job.Status}, nil
}

// Status reports job progress, including the signed download URL once
// finished.
func (s *ExportService) Status(ctx context.Context, id string) (*dto.ExportStatusResponse, error) {
	job, err := s.jobsRepo.GetByID(ctx, id)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "export job not found")
	}
	resp := &dto.ExportStatusResponse{
		ID:        job.ID,
		Status:    job.Status,
		ResultURL: job.ResultURL,
		Error:     job.ErrorMessage,
	}
	if job.Status == models.ExportStatusFinished && job.FinishedAt != nil {
		expires := job.FinishedAt.Add(s.cfg.ResultTTL)
		resp.ExpiresAt = &expires
	}
	return resp, nil
}

// HandleJob is the queue handler: it renders and stores one export.
func (s *ExportService) HandleJob(ctx context.Context, job jobs.Job) error {
	record, err := s.jobsRepo.GetByID(ctx, job.ID)
	if err != nil {
		return fmt.Errorf("load export job %s: %w", job.ID, err)
	}

	processing := models.ExportStatusProcessing
	if err := s.jobsRepo.Update(ctx, record.ID, repository.UpdateExportJobParams{Status: &processing}); err != nil {
		s.logger.Warn("mark export job processing", zap.String("job_id", record.ID), zap.Error(err))
	}

	dataset, title, err := s.buildDataset(ctx, record)
	if err != nil {
		s.markFailed(ctx, record.ID, err.Error())
		return err
	}

	var payload []byte
	switch record.Params.Format {
	case models.ExportFormatCSV:
		payload, err = s.csv.Render(dataset)
	case models.ExportFormatPDF:
		payload, err = s.pdf.Render(dataset, title)
	default:
		err = fmt.Errorf("unsupported format %s", record.Params.Format)
	}
	if err != nil {
		s.markFailed(ctx, record.ID, err.Error())
		return err
	}

	filename := s.buildFilename(record)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		s.markFailed(ctx, record.ID, err.Error())
		return err
	}

	token, _, err := s.signer.Generate(record.ID, relPath)
	if err != nil {
		s.markFailed(ctx, record.ID, err.Error())
		return err
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}
	resultURL := fmt.Sprintf("%s/exports/download/%s", prefix, token)

	finished := models.ExportStatusFinished
	now := time.Now().UTC()
	if err := s.jobsRepo.Update(ctx, record.ID, repository.UpdateExportJobParams{
		Status:     &finished,
		ResultURL:  &resultURL,
		FinishedAt: &now,
	}); err != nil {
		return fmt.Errorf("finalize export job %s: %w", record.ID, err)
	}
	s.logger.Info("export finished",
		zap.String("job_id", record.ID),
		zap.String("type", string(record.Type)),
		zap.String("format", string(record.Params.Format)),
		zap.String("file", relPath))
	return nil
}

// ParseToken validates a download token.
func (s *ExportService) ParseToken(token string) (jobID, relPath string, err error) {
	jobID, relPath, _, err = s.signer.Parse(token, false)
	return jobID, relPath, err
}

// Open returns a handle to a stored export file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Cleanup removes expired export files.
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func (s *ExportService) markFailed(ctx context.Context, jobID, message string) {
	failed := models.ExportStatusFailed
	now := time.Now().UTC()
	if err := s.jobsRepo.Update(ctx, jobID, repository.UpdateExportJobParams{
		Status:       &failed,
		ErrorMessage: &message,
		FinishedAt:   &now,
	}); err != nil {
		s.logger.Warn("mark export job failed", zap.String("job_id", jobID), zap.Error(err))
	}
}

func (s *ExportService) buildDataset(ctx context.Context, job *models.ExportJob) (export.Dataset, string, error) {
	switch job.Type {
	case models.ExportTypeCertificates:
		return s.buildCertificateDataset(ctx, job.Params)
	case models.ExportTypeAuditTrail:
		return s.buildAuditDataset(ctx, job.Params)
	default:
		return export.Dataset{}, "", fmt.Errorf("unsupported export type %s", job.Type)
	}
}

func (s *ExportService) buildCertificateDataset(ctx context.Context, params models.ExportJobParams) (export.Dataset, string, error) {
	filter := models.CertificateFilter{
		Status:   params.Status,
		Page:     1,
		PageSize: s.cfg.PageSize,
	}
	certs, _, err := s.certificates.List(ctx, filter)
	if err != nil {
		return export.Dataset{}, "", err
	}
	rows := make([]map[string]string, 0, len(certs))
	for _, cert := range certs {
		rows = append(rows, map[string]string{
			"Number":       cert.Number,
			"Title":        cert.Title,
			"Status":       cert.Status,
			"Cost":         formatMinorUnits(cert.Cost),
			"Order Number": derefString(cert.OrderNumber),
			"Payment Date": formatExportTime(cert.PaymentDate),
			"Tags":         strings.Join(cert.Tags, ", "),
			"Updated At":   cert.UpdatedAt.UTC().Format(time.RFC3339),
		})
	}
	dataset := export.Dataset{
		Headers: []string{"Number", "Title", "Status", "Cost", "Order Number", "Payment Date", "Tags", "Updated At"},
		Rows:    rows,
	}
	title := "Certificates"
	if params.Status != "" {
		title = fmt.Sprintf("Certificates (%s)", params.Status)
	}
	return dataset, title, nil
}

func (s *ExportService) buildAuditDataset(ctx context.Context, params models.ExportJobParams) (export.Dataset, string, error) {
	var events []models.AuditEvent
	var err error
	if params.CertificateID != "" {
		events, err = s.audits.ListByCertificate(ctx, params.CertificateID, s.cfg.PageSize, 0)
	} else {
		events, err = s.audits.ListAll(ctx, s.cfg.PageSize)
	}
	if err != nil {
		return export.Dataset{}, "", err
	}
	rows := make([]map[string]string, 0, len(events))
	for _, event := range events {
		rows = append(rows, map[string]string{
			"Certificate ID": event.CertificateID,
			"Event":          event.EventType,
			"Actor":          event.ActorID,
			"Role":           event.ActorRole,
			"Changes":        string(event.Changes),
			"Comment":        derefString(event.Comment),
			"Recorded At":    event.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	dataset := export.Dataset{
		Headers: []string{"Certificate ID", "Event", "Actor", "Role", "Changes", "Comment", "Recorded At"},
		Rows:    rows,
	}
	title := "Audit Trail"
	if params.CertificateID != "" {
		title = fmt.Sprintf("Audit Trail %s", params.CertificateID)
	}
	return dataset, title, nil
}

func (s *ExportService) buildFilename(job *models.ExportJob) string {
	timestamp := time.Now().UTC().Format("20060102_150405")
	return fmt.Sprintf("%s_%s.%s", strings.ToLower(string(job.Type)), timestamp, job.Params.Format)
}

func formatMinorUnits(v *int64) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%d.%02d", *v/100, *v%100)
}

func formatExportTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format("2006-01-02")
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
