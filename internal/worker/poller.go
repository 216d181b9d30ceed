package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/consulevent-rohanchaudhari/Invoice-accelerator/internal/models"
	"github.com/consulevent-rohanchaudhari/Invoice-accelerator/internal/service"
)

// IntakeQueue supplies staged attachments and records their outcomes
type IntakeQueue interface {
	ClaimPending(limit int) ([]*models.IntakeAttachment, error)
	UpdateStatus(id int64, status, lastError string) error
}

// DocumentProcessor runs one attachment through the pipeline
type DocumentProcessor interface {
	ProcessDocument(ctx context.Context, att *models.IntakeAttachment) (*service.ProcessResult, error)
}

// Status reports the poller's runtime state
type Status struct {
	IsRunning      bool
	LastPoll       time.Time
	ProcessedCount int
	FailedCount    int
	LastError      error
}

// IntakePoller drains the intake queue in the background: it claims
// batches of pending attachments and runs each through the pipeline with
// a per-item timeout.
type IntakePoller struct {
	pollInterval   time.Duration
	batchSize      int
	processTimeout time.Duration

	queue     IntakeQueue
	processor DocumentProcessor
	logger    *zap.Logger

	mu             sync.RWMutex
	ctx            context.Context
	cancel         context.CancelFunc
	done           chan struct{}
	isRunning      bool
	lastPoll       time.Time
	processedCount int
	failedCount    int
	lastError      error
}

// NewIntakePoller creates a poller
func NewIntakePoller(
	queue IntakeQueue,
	processor DocumentProcessor,
	pollInterval time.Duration,
	batchSize int,
	processTimeout time.Duration,
	logger *zap.Logger,
) *IntakePoller {
	if pollInterval <= 0 {
		pollInterval = 10 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 5
	}
	if processTimeout <= 0 {
		processTimeout = 2 * time.Minute
	}

	return &IntakePoller{
		pollInterval:   pollInterval,
		batchSize:      batchSize,
		processTimeout: processTimeout,
		queue:          queue,
		processor:      processor,
		logger:         logger,
	}
}

// Start begins the polling loop
func (p *IntakePoller) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.isRunning {
		p.mu.Unlock()
		return fmt.Errorf("poller already running")
	}

	p.ctx, p.cancel = context.WithCancel(ctx)
	p.done = make(chan struct{})
	p.isRunning = true
	p.mu.Unlock()

	p.logger.Info("Intake poller started",
		zap.Duration("poll_interval", p.pollInterval),
		zap.Int("batch_size", p.batchSize))

	go p.pollLoop()

	return nil
}

// Stop terminates the loop and waits for the current batch to finish
func (p *IntakePoller) Stop() {
	p.mu.Lock()
	if !p.isRunning {
		p.mu.Unlock()
		return
	}
	p.isRunning = false
	done := p.done
	p.mu.Unlock()

	p.cancel()
	<-done

	p.mu.RLock()
	defer p.mu.RUnlock()
	p.logger.Info("Intake poller stopped",
		zap.Int("processed_count", p.processedCount),
		zap.Int("failed_count", p.failedCount))
}

// GetStatus returns the current poller status
func (p *IntakePoller) GetStatus() Status {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return Status{
		IsRunning:      p.isRunning,
		LastPoll:       p.lastPoll,
		ProcessedCount: p.processedCount,
		FailedCount:    p.failedCount,
		LastError:      p.lastError,
	}
}

func (p *IntakePoller) pollLoop() {
	defer close(p.done)

	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			p.logger.Debug("Poll loop context cancelled")
			return

		case <-ticker.C:
			if err := p.drainBatch(); err != nil {
				p.mu.Lock()
				p.lastError = err
				p.mu.Unlock()
				p.logger.Error("Failed to drain intake batch", zap.Error(err))
			}

			p.mu.Lock()
			p.lastPoll = time.Now()
			p.mu.Unlock()
		}
	}
}

// DrainNow claims and processes one batch immediately (tests and CLI)
func (p *IntakePoller) DrainNow() error {
	return p.drainBatch()
}

func (p *IntakePoller) drainBatch() error {
	attachments, err := p.queue.ClaimPending(p.batchSize)
	if err != nil {
		return fmt.Errorf("failed to claim pending attachments: %w", err)
	}
	if len(attachments) == 0 {
		return nil
	}

	p.logger.Debug("Draining intake batch", zap.Int("count", len(attachments)))

	for _, att := range attachments {
		if err := p.processOne(att); err != nil {
			p.logger.Warn("Attachment processing failed",
				zap.Int64("intake_id", att.ID),
				zap.String("filename", att.Filename),
				zap.Error(err))

			if updErr := p.queue.UpdateStatus(att.ID, models.IntakeFailed, err.Error()); updErr != nil {
				p.logger.Error("Failed to mark attachment failed", zap.Error(updErr))
			}

			p.mu.Lock()
			p.failedCount++
			p.mu.Unlock()
			continue
		}

		if err := p.queue.UpdateStatus(att.ID, models.IntakeProcessed, ""); err != nil {
			p.logger.Error("Failed to mark attachment processed", zap.Error(err))
		}

		p.mu.Lock()
		p.processedCount++
		p.mu.Unlock()
	}

	return nil
}

func (p *IntakePoller) processOne(att *models.IntakeAttachment) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while processing attachment: %v", r)
		}
	}()

	parent := p.ctx
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithTimeout(parent, p.processTimeout)
	defer cancel()

	result, err := p.processor.ProcessDocument(ctx, att)
	if err != nil {
		return err
	}

	p.logger.Info("Attachment processed",
		zap.Int64("intake_id", att.ID),
		zap.String("invoice_id", result.InvoiceID),
		zap.Bool("is_exception", result.IsException))

	return nil
}
