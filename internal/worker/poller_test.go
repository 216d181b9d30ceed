package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/consulevent-rohanchaudhari/Invoice-accelerator/internal/models"
	"github.com/consulevent-rohanchaudhari/Invoice-accelerator/internal/service"
)

type fakeQueue struct {
	mu       sync.Mutex
	pending  []*models.IntakeAttachment
	statuses map[int64]string
	errors   map[int64]string
	claimErr error
}

func newFakeQueue(pending ...*models.IntakeAttachment) *fakeQueue {
	return &fakeQueue{
		pending:  pending,
		statuses: make(map[int64]string),
		errors:   make(map[int64]string),
	}
}

func (q *fakeQueue) ClaimPending(limit int) ([]*models.IntakeAttachment, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.claimErr != nil {
		return nil, q.claimErr
	}
	if limit > len(q.pending) {
		limit = len(q.pending)
	}
	claimed := q.pending[:limit]
	q.pending = q.pending[limit:]
	return claimed, nil
}

func (q *fakeQueue) UpdateStatus(id int64, status, lastError string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.statuses[id] = status
	q.errors[id] = lastError
	return nil
}

func (q *fakeQueue) status(id int64) string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.statuses[id]
}

type fakeProcessor struct {
	mu        sync.Mutex
	err       error
	panicWith any
	processed []int64
}

func (p *fakeProcessor) ProcessDocument(_ context.Context, att *models.IntakeAttachment) (*service.ProcessResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.panicWith != nil {
		panic(p.panicWith)
	}
	if p.err != nil {
		return nil, p.err
	}
	p.processed = append(p.processed, att.ID)
	return &service.ProcessResult{InvoiceID: "INV-001"}, nil
}

func attachment(id int64) *models.IntakeAttachment {
	return &models.IntakeAttachment{
		ID:          id,
		MessageID:   "msg-1",
		Filename:    "invoice.pdf",
		StoragePath: "/data/intake/invoice.pdf",
	}
}

func TestDrainNowProcessesBatch(t *testing.T) {
	queue := newFakeQueue(attachment(1), attachment(2))
	proc := &fakeProcessor{}
	poller := NewIntakePoller(queue, proc, time.Second, 10, time.Second, zap.NewNop())

	require.NoError(t, poller.DrainNow())

	assert.Equal(t, []int64{1, 2}, proc.processed)
	assert.Equal(t, models.IntakeProcessed, queue.status(1))
	assert.Equal(t, models.IntakeProcessed, queue.status(2))
	assert.Equal(t, 2, poller.GetStatus().ProcessedCount)
}

func TestDrainNowMarksFailures(t *testing.T) {
	queue := newFakeQueue(attachment(1))
	proc := &fakeProcessor{err: errors.New("corrupt PDF")}
	poller := NewIntakePoller(queue, proc, time.Second, 10, time.Second, zap.NewNop())

	require.NoError(t, poller.DrainNow())

	assert.Equal(t, models.IntakeFailed, queue.status(1))
	assert.Contains(t, queue.errors[1], "corrupt PDF")
	assert.Equal(t, 1, poller.GetStatus().FailedCount)
}

func TestDrainNowRecoversFromPanic(t *testing.T) {
	queue := newFakeQueue(attachment(1))
	proc := &fakeProcessor{panicWith: "boom"}
	poller := NewIntakePoller(queue, proc, time.Second, 10, time.Second, zap.NewNop())

	require.NoError(t, poller.DrainNow())

	assert.Equal(t, models.IntakeFailed, queue.status(1))
	assert.Contains(t, queue.errors[1], "panic")
}

func TestDrainNowEmptyQueue(t *testing.T) {
	queue := newFakeQueue()
	proc := &fakeProcessor{}
	poller := NewIntakePoller(queue, proc, time.Second, 10, time.Second, zap.NewNop())

	require.NoError(t, poller.DrainNow())
	assert.Empty(t, proc.processed)
}

func TestStartAndStop(t *testing.T) {
	queue := newFakeQueue(attachment(1))
	proc := &fakeProcessor{}
	poller := NewIntakePoller(queue, proc, 10*time.Millisecond, 10, time.Second, zap.NewNop())

	require.NoError(t, poller.Start(context.Background()))
	assert.Error(t, poller.Start(context.Background()), "second start must fail")

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && poller.GetStatus().ProcessedCount == 0 {
		time.Sleep(5 * time.Millisecond)
	}
	assert.Equal(t, 1, poller.GetStatus().ProcessedCount)

	poller.Stop()
	assert.False(t, poller.GetStatus().IsRunning)

	// Stop again is a no-op
	poller.Stop()
}
