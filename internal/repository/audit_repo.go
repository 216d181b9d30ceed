package repository

import (
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/consulevent-rohanchaudhari/Invoice-accelerator/internal/models"
)

// AuditRepository appends actions to the audit trail
type AuditRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *sql.DB, logger *zap.Logger) *AuditRepository {
	return &AuditRepository{
		db:     db,
		logger: logger,
	}
}

// Create appends an audit entry
func (r *AuditRepository) Create(tx *sql.Tx, entry *models.AuditEntry) error {
	query := `
		INSERT INTO audit_trail (
			audit_id, exception_id, action, action_by, action_at, comments
		) VALUES (?, ?, ?, ?, ?, ?)
	`

	args := []any{
		entry.AuditID,
		entry.ExceptionID,
		entry.Action,
		entry.ActionBy,
		entry.ActionAt,
		entry.Comments,
	}

	var err error
	if tx != nil {
		_, err = tx.Exec(query, args...)
	} else {
		_, err = r.db.Exec(query, args...)
	}

	if err != nil {
		r.logger.Error("Failed to create audit entry",
			zap.String("exception_id", entry.ExceptionID),
			zap.String("action", entry.Action),
			zap.Error(err))
		return fmt.Errorf("failed to create audit entry: %w", err)
	}

	return nil
}

// ListByException returns the audit trail for an exception, oldest first
func (r *AuditRepository) ListByException(exceptionID string) ([]*models.AuditEntry, error) {
	rows, err := r.db.Query(`
		SELECT audit_id, exception_id, action, action_by, action_at, comments
		FROM audit_trail
		WHERE exception_id = ?
		ORDER BY action_at ASC, audit_id ASC
	`, exceptionID)
	if err != nil {
		r.logger.Error("Failed to list audit entries",
			zap.String("exception_id", exceptionID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []*models.AuditEntry
	for rows.Next() {
		var e models.AuditEntry
		var comments sql.NullString
		err := rows.Scan(
			&e.AuditID,
			&e.ExceptionID,
			&e.Action,
			&e.ActionBy,
			&e.ActionAt,
			&comments,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		e.Comments = comments.String
		entries = append(entries, &e)
	}

	return entries, rows.Err()
}
