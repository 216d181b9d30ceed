package repository

import (
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/consulevent-rohanchaudhari/Invoice-accelerator/internal/models"
)

// ExceptionRepository handles invoice exceptions and their review state.
// An exception's status lives on the exceptions row and is kept in sync
// with the append-only exception_reviews table; reads join the latest
// review so callers see who touched it last.
type ExceptionRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewExceptionRepository creates a new exception repository
func NewExceptionRepository(db *sql.DB, logger *zap.Logger) *ExceptionRepository {
	return &ExceptionRepository{
		db:     db,
		logger: logger,
	}
}

const exceptionColumns = `
	e.exception_id, e.invoice_id, e.message_id, e.filename, e.storage_uri,
	e.received_date, e.invoice_date, e.supplier_name, e.total_amount,
	e.exception_type, e.exception_severity, e.all_exceptions, e.status,
	e.raw_extracted_data, e.created_at,
	r.reviewed_by, r.reviewed_at, r.review_comments
`

// latestReviews picks the most recent review per exception. ROW_NUMBER
// breaks ties on reviewed_at deterministically via review_id.
const latestReviews = `
	SELECT exception_id, reviewed_by, reviewed_at, review_comments
	FROM (
		SELECT exception_id, reviewed_by, reviewed_at, review_comments,
			ROW_NUMBER() OVER (
				PARTITION BY exception_id
				ORDER BY reviewed_at DESC, review_id DESC
			) AS rn
		FROM exception_reviews
	) WHERE rn = 1
`

// Create inserts a new exception in PENDING status
func (r *ExceptionRepository) Create(tx *sql.Tx, exc *models.InvoiceException) error {
	query := `
		INSERT INTO exceptions (
			exception_id, invoice_id, message_id, filename, storage_uri,
			received_date, invoice_date, supplier_name, total_amount,
			exception_type, exception_severity, all_exceptions, status,
			raw_extracted_data
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var invoiceDate any
	if exc.InvoiceDate != nil {
		invoiceDate = exc.InvoiceDate.Format("2006-01-02")
	}

	status := exc.Status
	if status == "" {
		status = models.StatusPending
	}

	args := []any{
		exc.ExceptionID,
		exc.InvoiceID,
		exc.MessageID,
		exc.Filename,
		exc.StorageURI,
		exc.ReceivedDate.Format("2006-01-02"),
		invoiceDate,
		exc.SupplierName,
		nullFloat(exc.TotalAmount),
		exc.ExceptionType,
		exc.ExceptionSeverity,
		exc.AllExceptions,
		status,
		exc.RawData,
	}

	var err error
	if tx != nil {
		_, err = tx.Exec(query, args...)
	} else {
		_, err = r.db.Exec(query, args...)
	}

	if err != nil {
		r.logger.Error("Failed to create exception",
			zap.String("exception_id", exc.ExceptionID),
			zap.String("invoice_id", exc.InvoiceID),
			zap.Error(err))
		return fmt.Errorf("failed to create exception: %w", err)
	}

	return nil
}

// GetByID returns an exception with its latest review, or nil when not found
func (r *ExceptionRepository) GetByID(exceptionID string) (*models.InvoiceException, error) {
	query := `
		SELECT ` + exceptionColumns + `
		FROM exceptions e
		LEFT JOIN (` + latestReviews + `) r ON r.exception_id = e.exception_id
		WHERE e.exception_id = ?
	`

	exc, err := r.scanException(r.db.QueryRow(query, exceptionID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get exception",
			zap.String("exception_id", exceptionID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get exception: %w", err)
	}

	return exc, nil
}

// List returns exceptions matching the filter, newest first
func (r *ExceptionRepository) List(filter models.ExceptionFilter) ([]*models.InvoiceException, error) {
	query := `
		SELECT ` + exceptionColumns + `
		FROM exceptions e
		LEFT JOIN (` + latestReviews + `) r ON r.exception_id = e.exception_id
		WHERE 1=1
	`
	var args []any

	if filter.Status != "" {
		query += " AND e.status = ?"
		args = append(args, filter.Status)
	}
	if filter.Severity != "" {
		query += " AND e.exception_severity = ?"
		args = append(args, filter.Severity)
	}
	if filter.StartDate != "" {
		query += " AND e.received_date >= ?"
		args = append(args, filter.StartDate)
	}
	if filter.EndDate != "" {
		query += " AND e.received_date <= ?"
		args = append(args, filter.EndDate)
	}
	if filter.SupplierName != "" {
		query += " AND e.supplier_name LIKE ?"
		args = append(args, "%"+filter.SupplierName+"%")
	}

	limit := filter.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	query += " ORDER BY e.received_date DESC, e.created_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		r.logger.Error("Failed to list exceptions", zap.Error(err))
		return nil, fmt.Errorf("failed to list exceptions: %w", err)
	}
	defer rows.Close()

	var exceptions []*models.InvoiceException
	for rows.Next() {
		exc, err := r.scanException(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan exception: %w", err)
		}
		exceptions = append(exceptions, exc)
	}

	return exceptions, rows.Err()
}

// UpdateStatus sets the review status on the exceptions row
func (r *ExceptionRepository) UpdateStatus(tx *sql.Tx, exceptionID, status string) error {
	query := `UPDATE exceptions SET status = ? WHERE exception_id = ?`

	var res sql.Result
	var err error
	if tx != nil {
		res, err = tx.Exec(query, status, exceptionID)
	} else {
		res, err = r.db.Exec(query, status, exceptionID)
	}
	if err != nil {
		r.logger.Error("Failed to update exception status",
			zap.String("exception_id", exceptionID),
			zap.Error(err))
		return fmt.Errorf("failed to update exception status: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("exception not found: %s", exceptionID)
	}

	return nil
}

// Stats aggregates exceptions received within the last 30 days
func (r *ExceptionRepository) Stats(since string) (*models.ExceptionStats, error) {
	stats := &models.ExceptionStats{
		ByStatus:   make(map[string]int),
		BySeverity: make(map[string]int),
	}

	rows, err := r.db.Query(`
		SELECT status, exception_severity, COUNT(*)
		FROM exceptions
		WHERE received_date >= ?
		GROUP BY status, exception_severity
	`, since)
	if err != nil {
		r.logger.Error("Failed to query exception stats", zap.Error(err))
		return nil, fmt.Errorf("failed to query exception stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status, severity string
		var count int
		if err := rows.Scan(&status, &severity, &count); err != nil {
			return nil, fmt.Errorf("failed to scan exception stats: %w", err)
		}
		stats.TotalExceptions += count
		stats.ByStatus[status] += count
		stats.BySeverity[severity] += count
	}

	return stats, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *ExceptionRepository) scanException(row rowScanner) (*models.InvoiceException, error) {
	var exc models.InvoiceException
	var invoiceDate, reviewedAt sql.NullTime
	var total sql.NullFloat64
	var messageID, filename, storageURI, supplier, rawData sql.NullString
	var reviewedBy, reviewComments sql.NullString

	err := row.Scan(
		&exc.ExceptionID,
		&exc.InvoiceID,
		&messageID,
		&filename,
		&storageURI,
		&exc.ReceivedDate,
		&invoiceDate,
		&supplier,
		&total,
		&exc.ExceptionType,
		&exc.ExceptionSeverity,
		&exc.AllExceptions,
		&exc.Status,
		&rawData,
		&exc.CreatedAt,
		&reviewedBy,
		&reviewedAt,
		&reviewComments,
	)
	if err != nil {
		return nil, err
	}

	exc.MessageID = messageID.String
	exc.Filename = filename.String
	exc.StorageURI = storageURI.String
	exc.SupplierName = supplier.String
	exc.RawData = rawData.String
	exc.TotalAmount = floatPtrFromNull(total)
	if invoiceDate.Valid {
		exc.InvoiceDate = &invoiceDate.Time
	}
	exc.ReviewedBy = reviewedBy.String
	if reviewedAt.Valid {
		exc.ReviewedAt = &reviewedAt.Time
	}
	exc.ReviewComments = reviewComments.String

	return &exc, nil
}
