package email

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/consulevent-rohanchaudhari/Invoice-accelerator/internal/repository"
	"github.com/consulevent-rohanchaudhari/Invoice-accelerator/internal/storage"
)

type fakeFetcher struct {
	msg *Message
	err error
}

func (f *fakeFetcher) FetchMessage(_ context.Context, _ string) (*Message, error) {
	return f.msg, f.err
}

func setupIntakeService(t *testing.T, fetcher MessageFetcher) (*IntakeService, *repository.IntakeRepository, string) {
	t.Helper()

	db, err := sql.Open("sqlite3", "file::memory:?_foreign_keys=on")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	schema, err := os.ReadFile("../../migrations/001_initial_schema.sql")
	require.NoError(t, err)
	_, err = db.Exec(string(schema))
	require.NoError(t, err)

	intakeRepo := repository.NewIntakeRepository(db, zap.NewNop())
	store := storage.NewLocalDocumentStore(t.TempDir(), zap.NewNop())
	rejectedDir := t.TempDir()
	rejected := storage.NewLocalDocumentStore(rejectedDir, zap.NewNop())

	return NewIntakeService(fetcher, store, rejected, intakeRepo, zap.NewNop()), intakeRepo, rejectedDir
}

func testMessage() *Message {
	msg := &Message{
		ID:      "msg-1",
		Subject: "Invoice INV-001",
		Attachments: []Attachment{
			{
				Name:         "invoice.pdf",
				ContentType:  "application/pdf",
				ContentBytes: []byte("%PDF-1.4 content"),
			},
			{
				Name:         "logo.png",
				ContentType:  "image/png",
				ContentBytes: []byte("png content"),
			},
		},
	}
	msg.From.EmailAddress.Address = "supplier@acme.com"
	return msg
}

func TestIngestMessageStagesPDFsOnly(t *testing.T) {
	svc, intakeRepo, _ := setupIntakeService(t, &fakeFetcher{msg: testMessage()})

	result, err := svc.IngestMessage(context.Background(), "msg-1")
	require.NoError(t, err)

	assert.Equal(t, []string{"invoice.pdf"}, result.Processed)
	assert.Equal(t, []string{"logo.png"}, result.Rejected)

	claimed, err := intakeRepo.ClaimPending(10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, "invoice.pdf", claimed[0].Filename)
	assert.Equal(t, "supplier@acme.com", claimed[0].Sender)
	assert.Equal(t, "Invoice INV-001", claimed[0].Subject)
	assert.FileExists(t, claimed[0].StoragePath)
}

func TestIngestMessageIdempotent(t *testing.T) {
	svc, intakeRepo, _ := setupIntakeService(t, &fakeFetcher{msg: testMessage()})

	_, err := svc.IngestMessage(context.Background(), "msg-1")
	require.NoError(t, err)

	// redelivery of the same notification
	result, err := svc.IngestMessage(context.Background(), "msg-1")
	require.NoError(t, err)
	assert.Empty(t, result.Processed)

	claimed, err := intakeRepo.ClaimPending(10)
	require.NoError(t, err)
	assert.Len(t, claimed, 1)
}

func TestIngestMessageKeepsRejectedAttachments(t *testing.T) {
	svc, _, rejectedDir := setupIntakeService(t, &fakeFetcher{msg: testMessage()})

	result, err := svc.IngestMessage(context.Background(), "msg-1")
	require.NoError(t, err)
	require.Equal(t, []string{"logo.png"}, result.Rejected)

	kept := filepath.Join(rejectedDir, "msg-1", "logo.png")
	require.FileExists(t, kept)
	content, err := os.ReadFile(kept)
	require.NoError(t, err)
	assert.Equal(t, []byte("png content"), content)
}

func TestIngestMessageNoRejectedStore(t *testing.T) {
	svc, _, _ := setupIntakeService(t, &fakeFetcher{msg: testMessage()})
	svc.rejected = nil

	result, err := svc.IngestMessage(context.Background(), "msg-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"logo.png"}, result.Rejected)
}

func TestIngestMessageNotFound(t *testing.T) {
	svc, _, _ := setupIntakeService(t, &fakeFetcher{msg: nil})

	result, err := svc.IngestMessage(context.Background(), "missing")
	require.NoError(t, err)
	assert.Empty(t, result.Processed)
	assert.Empty(t, result.Rejected)
}

func TestIngestMessagePDFByExtension(t *testing.T) {
	msg := &Message{
		ID: "msg-2",
		Attachments: []Attachment{
			{
				Name:         "Invoice.PDF",
				ContentType:  "application/octet-stream",
				ContentBytes: []byte("%PDF-1.4"),
			},
		},
	}
	svc, _, _ := setupIntakeService(t, &fakeFetcher{msg: msg})

	result, err := svc.IngestMessage(context.Background(), "msg-2")
	require.NoError(t, err)
	assert.Equal(t, []string{"Invoice.PDF"}, result.Processed)
}

func TestAttachmentIsPDF(t *testing.T) {
	cases := []struct {
		name        string
		contentType string
		want        bool
	}{
		{"invoice.pdf", "application/pdf", true},
		{"invoice.pdf", "", true},
		{"INVOICE.PDF", "application/octet-stream", true},
		{"invoice.docx", "application/vnd.openxmlformats-officedocument.wordprocessingml.document", false},
		{"image.png", "image/png", false},
	}

	for _, tc := range cases {
		att := Attachment{Name: tc.name, ContentType: tc.contentType}
		assert.Equal(t, tc.want, att.IsPDF(), "name=%s type=%s", tc.name, tc.contentType)
	}
}
