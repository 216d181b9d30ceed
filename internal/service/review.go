package service

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/consulevent-rohanchaudhari/Invoice-accelerator/internal/models"
	"github.com/consulevent-rohanchaudhari/Invoice-accelerator/internal/repository"
	"github.com/consulevent-rohanchaudhari/Invoice-accelerator/pkg/database"
)

var (
	// ErrExceptionNotFound is returned when the exception does not exist
	ErrExceptionNotFound = errors.New("exception not found")
	// ErrInvalidStatus is returned for statuses outside the review enum
	ErrInvalidStatus = errors.New("invalid review status")
)

// ReviewService drives the human review workflow: each decision appends a
// review row and an audit entry, and moves the exception's status.
type ReviewService struct {
	db            *database.DB
	exceptionRepo *repository.ExceptionRepository
	reviewRepo    *repository.ReviewRepository
	auditRepo     *repository.AuditRepository
	logger        *zap.Logger
	now           func() time.Time
}

// NewReviewService creates a review service
func NewReviewService(
	db *database.DB,
	exceptionRepo *repository.ExceptionRepository,
	reviewRepo *repository.ReviewRepository,
	auditRepo *repository.AuditRepository,
	logger *zap.Logger,
) *ReviewService {
	return &ReviewService{
		db:            db,
		exceptionRepo: exceptionRepo,
		reviewRepo:    reviewRepo,
		auditRepo:     auditRepo,
		logger:        logger,
		now:           time.Now,
	}
}

// WithClock overrides the service clock (tests only)
func (s *ReviewService) WithClock(now func() time.Time) *ReviewService {
	s.now = now
	return s
}

func validStatus(status string) bool {
	switch status {
	case models.StatusPending, models.StatusApproved, models.StatusRejected:
		return true
	}
	return false
}

// SubmitReview records a reviewer decision and returns the updated exception
func (s *ReviewService) SubmitReview(exceptionID, status, reviewedBy, comments string) (*models.InvoiceException, error) {
	if !validStatus(status) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidStatus, status)
	}
	if reviewedBy == "" {
		return nil, fmt.Errorf("reviewed_by is required")
	}

	existing, err := s.exceptionRepo.GetByID(exceptionID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, ErrExceptionNotFound
	}

	reviewedAt := s.now()
	review := &models.ExceptionReview{
		ReviewID:       uuid.New().String(),
		ExceptionID:    exceptionID,
		Status:         status,
		ReviewedBy:     reviewedBy,
		ReviewedAt:     reviewedAt,
		ReviewComments: comments,
	}

	audit := &models.AuditEntry{
		AuditID:     uuid.New().String(),
		ExceptionID: exceptionID,
		Action:      "STATUS_" + status,
		ActionBy:    reviewedBy,
		ActionAt:    reviewedAt,
		Comments:    comments,
	}

	err = s.db.WithTransaction(func(tx *sql.Tx) error {
		if err := s.reviewRepo.Create(tx, review); err != nil {
			return err
		}
		if err := s.exceptionRepo.UpdateStatus(tx, exceptionID, status); err != nil {
			return err
		}
		return s.auditRepo.Create(tx, audit)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Exception reviewed",
		zap.String("exception_id", exceptionID),
		zap.String("status", status),
		zap.String("reviewed_by", reviewedBy))

	return s.exceptionRepo.GetByID(exceptionID)
}

// Stats aggregates exceptions received in the trailing 30-day window
func (s *ReviewService) Stats() (*models.ExceptionStats, error) {
	since := s.now().AddDate(0, 0, -30).Format("2006-01-02")
	return s.exceptionRepo.Stats(since)
}
