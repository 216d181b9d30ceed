package models

import "time"

// Invoice field names as they arrive from the extraction pipeline. The
// required-fields rule and the normalizer address fields by these names.
const (
	FieldInvoiceID           = "invoice_id"
	FieldInvoiceNumber       = "invoice_number"
	FieldPurchaseOrderNumber = "purchase_order_number"
	FieldSupplierName        = "supplier_name"
	FieldTotalAmount         = "total_amount"
	FieldNetAmount           = "net_amount"
	FieldTotalTaxAmount      = "total_tax_amount"
	FieldPOAmount            = "po_amount"
	FieldPORemainingBalance  = "po_remaining_balance"
	FieldInvoiceDate         = "invoice_date"
	FieldPOReceivingStatus   = "po_receiving_status"
	FieldCurrency            = "currency"
)

// InvoiceRecord is the normalized view of one extracted invoice. Every field
// is optional: extraction may have missed it, the supplier may not have
// provided it, or the value may have been unparseable. Amount and date fields
// are nil when absent or malformed so rule evaluators can distinguish
// "not applicable" from zero.
type InvoiceRecord struct {
	InvoiceID           string `json:"invoice_id"`
	InvoiceNumber       string `json:"invoice_number"`
	PurchaseOrderNumber string `json:"purchase_order_number"`
	SupplierName        string `json:"supplier_name"`
	Currency            string `json:"currency"`

	TotalAmount        *float64 `json:"total_amount"`
	NetAmount          *float64 `json:"net_amount"`
	TotalTaxAmount     *float64 `json:"total_tax_amount"`
	POAmount           *float64 `json:"po_amount"`
	PORemainingBalance *float64 `json:"po_remaining_balance"`

	// InvoiceDate is nil when the raw value is absent or unparseable.
	// RawInvoiceDate keeps the original string so the invalid-date-format
	// rule can tell "missing" apart from "present but garbage".
	InvoiceDate    *time.Time `json:"invoice_date"`
	RawInvoiceDate string     `json:"raw_invoice_date"`

	// POReceivingStatus is supplied by the procurement system when the
	// invoice references a PO. Values include COMPLETE and RECEIVED.
	POReceivingStatus string `json:"po_receiving_status"`

	// Raw preserves the original extracted mapping for presence checks on
	// arbitrary configured field names and for persistence passthrough.
	Raw map[string]any `json:"-"`
}

// PO receiving states that count as fulfilled.
const (
	POReceivingComplete = "COMPLETE"
	POReceivingReceived = "RECEIVED"
)

// ProcessedInvoice is a clean invoice row: validation produced no findings
// and the record was auto-approved into the processed table.
type ProcessedInvoice struct {
	InvoiceID      string     `json:"invoice_id"`
	MessageID      string     `json:"message_id"`
	Filename       string     `json:"filename"`
	StorageURI     string     `json:"storage_uri"`
	ReceivedDate   time.Time  `json:"received_date"`
	InvoiceDate    *time.Time `json:"invoice_date"`
	SupplierName   string     `json:"supplier_name"`
	TotalAmount    *float64   `json:"total_amount"`
	NetAmount      *float64   `json:"net_amount"`
	TotalTaxAmount *float64   `json:"total_tax_amount"`
	Currency       string     `json:"currency"`
	RawData        string     `json:"raw_extracted_data"` // JSON blob of the extracted mapping
	CreatedAt      time.Time  `json:"created_at"`
}
