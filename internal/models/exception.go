package models

import "time"

// Review status values for an invoice exception.
const (
	StatusPending  = "PENDING"
	StatusApproved = "APPROVED"
	StatusRejected = "REJECTED"
)

// InvoiceException is an invoice that failed validation and awaits human
// review. The primary exception type/severity come from the first finding;
// the full finding list is kept as JSON in AllExceptions.
type InvoiceException struct {
	ExceptionID       string     `json:"exception_id"`
	InvoiceID         string     `json:"invoice_id"`
	MessageID         string     `json:"message_id"`
	Filename          string     `json:"filename"`
	StorageURI        string     `json:"storage_uri"`
	ReceivedDate      time.Time  `json:"received_date"`
	InvoiceDate       *time.Time `json:"invoice_date"`
	SupplierName      string     `json:"supplier_name"`
	TotalAmount       *float64   `json:"total_amount"`
	ExceptionType     string     `json:"exception_type"`
	ExceptionSeverity string     `json:"exception_severity"`
	AllExceptions     string     `json:"all_exceptions"` // JSON array of Finding
	Status            string     `json:"status"`
	RawData           string     `json:"raw_extracted_data"`
	CreatedAt         time.Time  `json:"created_at"`

	// Latest review, joined on read. Nil when never reviewed.
	ReviewedBy     string     `json:"reviewed_by,omitempty"`
	ReviewedAt     *time.Time `json:"reviewed_at,omitempty"`
	ReviewComments string     `json:"review_comments,omitempty"`
}

// ExceptionReview is one review action on an exception. Reviews are
// append-only; the current status of an exception is its latest review.
type ExceptionReview struct {
	ReviewID       string    `json:"review_id"`
	ExceptionID    string    `json:"exception_id"`
	Status         string    `json:"status"`
	ReviewedBy     string    `json:"reviewed_by"`
	ReviewedAt     time.Time `json:"reviewed_at"`
	ReviewComments string    `json:"review_comments"`
}

// AuditEntry records one action taken on an exception for the audit trail.
type AuditEntry struct {
	AuditID     string    `json:"audit_id"`
	ExceptionID string    `json:"exception_id"`
	Action      string    `json:"action"`
	ActionBy    string    `json:"action_by"`
	ActionAt    time.Time `json:"action_at"`
	Comments    string    `json:"comments"`
}

// ExceptionFilter narrows exception listings.
type ExceptionFilter struct {
	Status       string
	Severity     string
	StartDate    string // YYYY-MM-DD, inclusive, against received_date
	EndDate      string
	SupplierName string
	Limit        int
}

// ExceptionStats aggregates the last 30 days of exceptions for the dashboard.
type ExceptionStats struct {
	TotalExceptions int            `json:"total_exceptions"`
	ByStatus        map[string]int `json:"by_status"`
	BySeverity      map[string]int `json:"by_severity"`
}
