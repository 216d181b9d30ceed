package email

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/consulevent-rohanchaudhari/Invoice-accelerator/internal/models"
	"github.com/consulevent-rohanchaudhari/Invoice-accelerator/internal/repository"
	"github.com/consulevent-rohanchaudhari/Invoice-accelerator/internal/storage"
)

// MessageFetcher retrieves a mail message with attachments expanded.
// Satisfied by GraphClient; tests substitute a fake.
type MessageFetcher interface {
	FetchMessage(ctx context.Context, messageID string) (*Message, error)
}

// IntakeService pulls PDF attachments off inbound messages, stores the
// documents and stages them for the processing worker. Non-PDF attachments
// are kept in a separate rejected store for manual inspection.
type IntakeService struct {
	fetcher    MessageFetcher
	store      storage.DocumentStore
	rejected   storage.DocumentStore
	intakeRepo *repository.IntakeRepository
	logger     *zap.Logger
}

// NewIntakeService creates an intake service. rejected may be nil when
// rejected attachments should only be logged, not kept.
func NewIntakeService(fetcher MessageFetcher, store, rejected storage.DocumentStore, intakeRepo *repository.IntakeRepository, logger *zap.Logger) *IntakeService {
	return &IntakeService{
		fetcher:    fetcher,
		store:      store,
		rejected:   rejected,
		intakeRepo: intakeRepo,
		logger:     logger,
	}
}

// IntakeResult summarizes one message ingestion
type IntakeResult struct {
	MessageID string   `json:"message_id"`
	Processed []string `json:"processed"`
	Rejected  []string `json:"rejected"`
}

// IngestMessage fetches a message and stages each PDF attachment. Already
// staged attachments are skipped so webhook redeliveries stay idempotent.
func (s *IntakeService) IngestMessage(ctx context.Context, messageID string) (*IntakeResult, error) {
	msg, err := s.fetcher.FetchMessage(ctx, messageID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch message %s: %w", messageID, err)
	}
	if msg == nil {
		s.logger.Warn("Message not found", zap.String("message_id", messageID))
		return &IntakeResult{MessageID: messageID}, nil
	}

	result := &IntakeResult{MessageID: messageID}

	for i := range msg.Attachments {
		att := &msg.Attachments[i]

		if !att.IsPDF() {
			s.logger.Info("Rejecting non-PDF attachment",
				zap.String("message_id", messageID),
				zap.String("filename", att.Name),
				zap.String("content_type", att.ContentType))
			if s.rejected != nil {
				// A failed copy should not abort the rest of the message
				if _, err := s.rejected.Save(messageID, att.Name, att.ContentBytes); err != nil {
					s.logger.Error("Failed to store rejected attachment",
						zap.String("message_id", messageID),
						zap.String("filename", att.Name),
						zap.Error(err))
				}
			}
			result.Rejected = append(result.Rejected, att.Name)
			continue
		}

		exists, err := s.intakeRepo.ExistsForMessage(messageID, att.Name)
		if err != nil {
			return nil, err
		}
		if exists {
			s.logger.Debug("Attachment already staged",
				zap.String("message_id", messageID),
				zap.String("filename", att.Name))
			continue
		}

		path, err := s.store.Save(messageID, att.Name, att.ContentBytes)
		if err != nil {
			return nil, fmt.Errorf("failed to store attachment %s: %w", att.Name, err)
		}

		staged := &models.IntakeAttachment{
			MessageID:   messageID,
			Sender:      msg.Sender(),
			Subject:     msg.Subject,
			Filename:    att.Name,
			StoragePath: path,
		}
		if err := s.intakeRepo.Create(staged); err != nil {
			return nil, err
		}

		s.logger.Info("Staged invoice attachment",
			zap.String("message_id", messageID),
			zap.String("filename", att.Name),
			zap.Int64("intake_id", staged.ID))

		result.Processed = append(result.Processed, att.Name)
	}

	return result, nil
}
