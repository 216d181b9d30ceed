package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/consulevent-rohanchaudhari/Invoice-accelerator/internal/models"
	"github.com/consulevent-rohanchaudhari/Invoice-accelerator/internal/repository"
	"github.com/consulevent-rohanchaudhari/Invoice-accelerator/internal/validation"
	"github.com/consulevent-rohanchaudhari/Invoice-accelerator/pkg/database"
)

// DocumentExtractor produces entities and confidences from a stored PDF
type DocumentExtractor interface {
	ExtractFromPDF(pdfPath string) (*models.ExtractionResult, error)
}

// FieldSynthesizer refines low-confidence fields from the document text
type FieldSynthesizer interface {
	Refine(ctx context.Context, rawText string, fields []models.SynthesisField, entities map[string]any) (map[string]any, error)
}

// ProcessResult summarizes one document run through the pipeline
type ProcessResult struct {
	InvoiceID   string                   `json:"invoice_id"`
	ExceptionID string                   `json:"exception_id,omitempty"`
	IsException bool                     `json:"is_exception"`
	Validation  *models.ValidationResult `json:"validation"`
}

// PipelineService runs one staged document through extraction, synthesis,
// validation and persistence. Clean invoices are auto-approved into
// invoices_processed; anything with findings becomes a pending exception.
type PipelineService struct {
	extractor     DocumentExtractor
	synthesizer   FieldSynthesizer
	engine        *validation.Engine
	db            *database.DB
	invoiceRepo   *repository.InvoiceRepository
	exceptionRepo *repository.ExceptionRepository
	auditRepo     *repository.AuditRepository
	logger        *zap.Logger
	now           func() time.Time
}

// NewPipelineService creates a pipeline service. synthesizer may be nil
// when generative refinement is disabled.
func NewPipelineService(
	extractor DocumentExtractor,
	synthesizer FieldSynthesizer,
	engine *validation.Engine,
	db *database.DB,
	invoiceRepo *repository.InvoiceRepository,
	exceptionRepo *repository.ExceptionRepository,
	auditRepo *repository.AuditRepository,
	logger *zap.Logger,
) *PipelineService {
	return &PipelineService{
		extractor:     extractor,
		synthesizer:   synthesizer,
		engine:        engine,
		db:            db,
		invoiceRepo:   invoiceRepo,
		exceptionRepo: exceptionRepo,
		auditRepo:     auditRepo,
		logger:        logger,
		now:           time.Now,
	}
}

// WithClock overrides the service clock (tests only)
func (s *PipelineService) WithClock(now func() time.Time) *PipelineService {
	s.now = now
	return s
}

// ProcessDocument runs the full pipeline for one staged attachment
func (s *PipelineService) ProcessDocument(ctx context.Context, att *models.IntakeAttachment) (*ProcessResult, error) {
	s.logger.Info("Processing document",
		zap.Int64("intake_id", att.ID),
		zap.String("filename", att.Filename))

	extraction, err := s.extractor.ExtractFromPDF(att.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("extraction failed: %w", err)
	}

	entities := extraction.Entities
	if entities == nil {
		entities = map[string]any{}
	}
	// Line items ride along in the persisted raw data; no rule reads them.
	if len(extraction.LineItems) > 0 {
		entities["line_items"] = extraction.LineItems
	}
	if s.synthesizer != nil && len(extraction.NeedsSynthesis) > 0 {
		refined, err := s.synthesizer.Refine(ctx, extraction.RawText, extraction.NeedsSynthesis, entities)
		if err != nil {
			// Extraction output still stands; validation will flag gaps
			s.logger.Warn("Synthesis failed, continuing with extracted values",
				zap.Int64("intake_id", att.ID),
				zap.Error(err))
		} else {
			entities = refined
		}
	}

	result, err := s.engine.Evaluate(entities)
	if err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	record := validation.NormalizeRecord(entities)
	invoiceID := record.InvoiceID
	if invoiceID == "" {
		invoiceID = uuid.New().String()
	}

	rawJSON, err := json.Marshal(entities)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize extracted data: %w", err)
	}

	if result.IsException {
		exceptionID, err := s.persistException(att, record, result, invoiceID, string(rawJSON))
		if err != nil {
			return nil, err
		}

		s.logger.Info("Document routed to exception queue",
			zap.Int64("intake_id", att.ID),
			zap.String("exception_id", exceptionID),
			zap.Int("finding_count", result.ExceptionCount),
			zap.Bool("requires_review", result.RequiresReview))

		return &ProcessResult{
			InvoiceID:   invoiceID,
			ExceptionID: exceptionID,
			IsException: true,
			Validation:  result,
		}, nil
	}

	if err := s.persistClean(att, record, invoiceID, string(rawJSON)); err != nil {
		return nil, err
	}

	s.logger.Info("Document auto-approved",
		zap.Int64("intake_id", att.ID),
		zap.String("invoice_id", invoiceID))

	return &ProcessResult{
		InvoiceID:   invoiceID,
		IsException: false,
		Validation:  result,
	}, nil
}

func (s *PipelineService) persistClean(att *models.IntakeAttachment, record *models.InvoiceRecord, invoiceID, rawJSON string) error {
	inv := &models.ProcessedInvoice{
		InvoiceID:      invoiceID,
		MessageID:      att.MessageID,
		Filename:       att.Filename,
		StorageURI:     att.StoragePath,
		ReceivedDate:   s.now(),
		InvoiceDate:    record.InvoiceDate,
		SupplierName:   record.SupplierName,
		TotalAmount:    record.TotalAmount,
		NetAmount:      record.NetAmount,
		TotalTaxAmount: record.TotalTaxAmount,
		Currency:       record.Currency,
		RawData:        rawJSON,
	}

	return s.db.WithTransaction(func(tx *sql.Tx) error {
		return s.invoiceRepo.Create(tx, inv)
	})
}

func (s *PipelineService) persistException(att *models.IntakeAttachment, record *models.InvoiceRecord, result *models.ValidationResult, invoiceID, rawJSON string) (string, error) {
	allExceptions, err := json.Marshal(result.Exceptions)
	if err != nil {
		return "", fmt.Errorf("failed to serialize findings: %w", err)
	}

	// The first finding (rule registry order) names the exception
	first := result.Exceptions[0]

	exc := &models.InvoiceException{
		ExceptionID:       uuid.New().String(),
		InvoiceID:         invoiceID,
		MessageID:         att.MessageID,
		Filename:          att.Filename,
		StorageURI:        att.StoragePath,
		ReceivedDate:      s.now(),
		InvoiceDate:       record.InvoiceDate,
		SupplierName:      record.SupplierName,
		TotalAmount:       record.TotalAmount,
		ExceptionType:     first.Type,
		ExceptionSeverity: first.Severity,
		AllExceptions:     string(allExceptions),
		Status:            models.StatusPending,
		RawData:           rawJSON,
	}

	audit := &models.AuditEntry{
		AuditID:     uuid.New().String(),
		ExceptionID: exc.ExceptionID,
		Action:      "EXCEPTION_CREATED",
		ActionBy:    "system",
		ActionAt:    s.now(),
		Comments:    fmt.Sprintf("%d validation finding(s), primary: %s", result.ExceptionCount, first.Type),
	}

	err = s.db.WithTransaction(func(tx *sql.Tx) error {
		if err := s.exceptionRepo.Create(tx, exc); err != nil {
			return err
		}
		return s.auditRepo.Create(tx, audit)
	})
	if err != nil {
		return "", err
	}

	return exc.ExceptionID, nil
}
