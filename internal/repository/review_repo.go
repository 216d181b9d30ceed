package repository

import (
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/consulevent-rohanchaudhari/Invoice-accelerator/internal/models"
)

// ReviewRepository appends reviewer decisions to the exception_reviews log
type ReviewRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewReviewRepository creates a new review repository
func NewReviewRepository(db *sql.DB, logger *zap.Logger) *ReviewRepository {
	return &ReviewRepository{
		db:     db,
		logger: logger,
	}
}

// Create appends a review record
func (r *ReviewRepository) Create(tx *sql.Tx, review *models.ExceptionReview) error {
	query := `
		INSERT INTO exception_reviews (
			review_id, exception_id, status, reviewed_by, reviewed_at, review_comments
		) VALUES (?, ?, ?, ?, ?, ?)
	`

	args := []any{
		review.ReviewID,
		review.ExceptionID,
		review.Status,
		review.ReviewedBy,
		review.ReviewedAt,
		review.ReviewComments,
	}

	var err error
	if tx != nil {
		_, err = tx.Exec(query, args...)
	} else {
		_, err = r.db.Exec(query, args...)
	}

	if err != nil {
		r.logger.Error("Failed to create exception review",
			zap.String("exception_id", review.ExceptionID),
			zap.Error(err))
		return fmt.Errorf("failed to create exception review: %w", err)
	}

	return nil
}

// ListByException returns all reviews for an exception, newest first
func (r *ReviewRepository) ListByException(exceptionID string) ([]*models.ExceptionReview, error) {
	rows, err := r.db.Query(`
		SELECT review_id, exception_id, status, reviewed_by, reviewed_at, review_comments
		FROM exception_reviews
		WHERE exception_id = ?
		ORDER BY reviewed_at DESC, review_id DESC
	`, exceptionID)
	if err != nil {
		r.logger.Error("Failed to list exception reviews",
			zap.String("exception_id", exceptionID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to list exception reviews: %w", err)
	}
	defer rows.Close()

	var reviews []*models.ExceptionReview
	for rows.Next() {
		var rev models.ExceptionReview
		var comments sql.NullString
		err := rows.Scan(
			&rev.ReviewID,
			&rev.ExceptionID,
			&rev.Status,
			&rev.ReviewedBy,
			&rev.ReviewedAt,
			&comments,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan exception review: %w", err)
		}
		rev.ReviewComments = comments.String
		reviews = append(reviews, &rev)
	}

	return reviews, rows.Err()
}
