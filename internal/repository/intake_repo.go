package repository

import (
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/consulevent-rohanchaudhari/Invoice-accelerator/internal/models"
)

// IntakeRepository stages email attachments for the processing worker
type IntakeRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewIntakeRepository creates a new intake repository
func NewIntakeRepository(db *sql.DB, logger *zap.Logger) *IntakeRepository {
	return &IntakeRepository{
		db:     db,
		logger: logger,
	}
}

// Create stages a new attachment in PENDING status and fills in its ID
func (r *IntakeRepository) Create(att *models.IntakeAttachment) error {
	res, err := r.db.Exec(`
		INSERT INTO intake_attachments (message_id, sender, subject, filename, storage_path, status)
		VALUES (?, ?, ?, ?, ?, ?)
	`, att.MessageID, att.Sender, att.Subject, att.Filename, att.StoragePath, models.IntakePending)
	if err != nil {
		r.logger.Error("Failed to stage intake attachment",
			zap.String("message_id", att.MessageID),
			zap.String("filename", att.Filename),
			zap.Error(err))
		return fmt.Errorf("failed to stage intake attachment: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read intake attachment id: %w", err)
	}
	att.ID = id
	att.Status = models.IntakePending

	return nil
}

// ExistsForMessage reports whether an attachment from this message was
// already staged, so webhook redeliveries do not duplicate work.
func (r *IntakeRepository) ExistsForMessage(messageID, filename string) (bool, error) {
	var count int
	err := r.db.QueryRow(`
		SELECT COUNT(*) FROM intake_attachments WHERE message_id = ? AND filename = ?
	`, messageID, filename).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check intake attachment: %w", err)
	}
	return count > 0, nil
}

// ClaimPending marks up to limit PENDING attachments as PROCESSING and
// returns them. Claiming happens in one transaction so concurrent pollers
// never pick up the same row.
func (r *IntakeRepository) ClaimPending(limit int) ([]*models.IntakeAttachment, error) {
	if limit <= 0 {
		limit = 10
	}

	tx, err := r.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin claim transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.Query(`
		SELECT id, message_id, sender, subject, filename, storage_path, status, last_error
		FROM intake_attachments
		WHERE status = ?
		ORDER BY id ASC
		LIMIT ?
	`, models.IntakePending, limit)
	if err != nil {
		r.logger.Error("Failed to query pending attachments", zap.Error(err))
		return nil, fmt.Errorf("failed to query pending attachments: %w", err)
	}

	var attachments []*models.IntakeAttachment
	for rows.Next() {
		var att models.IntakeAttachment
		var sender, subject, lastError sql.NullString
		err := rows.Scan(
			&att.ID,
			&att.MessageID,
			&sender,
			&subject,
			&att.Filename,
			&att.StoragePath,
			&att.Status,
			&lastError,
		)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan intake attachment: %w", err)
		}
		att.Sender = sender.String
		att.Subject = subject.String
		att.LastError = lastError.String
		attachments = append(attachments, &att)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read pending attachments: %w", err)
	}

	for _, att := range attachments {
		_, err := tx.Exec(`
			UPDATE intake_attachments
			SET status = ?, updated_at = CURRENT_TIMESTAMP
			WHERE id = ?
		`, models.IntakeProcessing, att.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to claim attachment %d: %w", att.ID, err)
		}
		att.Status = models.IntakeProcessing
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit claim transaction: %w", err)
	}

	return attachments, nil
}

// UpdateStatus records the terminal state of an attachment
func (r *IntakeRepository) UpdateStatus(id int64, status, lastError string) error {
	var errVal any
	if lastError != "" {
		errVal = lastError
	}

	_, err := r.db.Exec(`
		UPDATE intake_attachments
		SET status = ?, last_error = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, status, errVal, id)
	if err != nil {
		r.logger.Error("Failed to update intake attachment status",
			zap.Int64("id", id),
			zap.String("status", status),
			zap.Error(err))
		return fmt.Errorf("failed to update intake attachment status: %w", err)
	}

	return nil
}
