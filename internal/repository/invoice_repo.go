package repository

import (
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/consulevent-rohanchaudhari/Invoice-accelerator/internal/models"
)

// InvoiceRepository handles clean (processed) invoice records
type InvoiceRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewInvoiceRepository creates a new invoice repository
func NewInvoiceRepository(db *sql.DB, logger *zap.Logger) *InvoiceRepository {
	return &InvoiceRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a processed invoice record
func (r *InvoiceRepository) Create(tx *sql.Tx, inv *models.ProcessedInvoice) error {
	query := `
		INSERT INTO invoices_processed (
			invoice_id, message_id, filename, storage_uri, received_date,
			invoice_date, supplier_name, total_amount, net_amount,
			total_tax_amount, currency, raw_extracted_data
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var invoiceDate any
	if inv.InvoiceDate != nil {
		invoiceDate = inv.InvoiceDate.Format("2006-01-02")
	}

	args := []any{
		inv.InvoiceID,
		inv.MessageID,
		inv.Filename,
		inv.StorageURI,
		inv.ReceivedDate.Format("2006-01-02"),
		invoiceDate,
		inv.SupplierName,
		nullFloat(inv.TotalAmount),
		nullFloat(inv.NetAmount),
		nullFloat(inv.TotalTaxAmount),
		inv.Currency,
		inv.RawData,
	}

	var err error
	if tx != nil {
		_, err = tx.Exec(query, args...)
	} else {
		_, err = r.db.Exec(query, args...)
	}

	if err != nil {
		r.logger.Error("Failed to create processed invoice",
			zap.String("invoice_id", inv.InvoiceID),
			zap.Error(err))
		return fmt.Errorf("failed to create processed invoice: %w", err)
	}

	return nil
}

// ListRecent returns processed invoices, newest first
func (r *InvoiceRepository) ListRecent(limit int) ([]*models.ProcessedInvoice, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	query := `
		SELECT invoice_id, message_id, filename, storage_uri, received_date,
			invoice_date, supplier_name, total_amount, net_amount,
			total_tax_amount, currency, raw_extracted_data, created_at
		FROM invoices_processed
		ORDER BY received_date DESC, created_at DESC
		LIMIT ?
	`

	rows, err := r.db.Query(query, limit)
	if err != nil {
		r.logger.Error("Failed to list processed invoices", zap.Error(err))
		return nil, fmt.Errorf("failed to list processed invoices: %w", err)
	}
	defer rows.Close()

	var invoices []*models.ProcessedInvoice
	for rows.Next() {
		var inv models.ProcessedInvoice
		var invoiceDate sql.NullTime
		var total, net, tax sql.NullFloat64
		var supplier, currency, rawData sql.NullString

		err := rows.Scan(
			&inv.InvoiceID,
			&inv.MessageID,
			&inv.Filename,
			&inv.StorageURI,
			&inv.ReceivedDate,
			&invoiceDate,
			&supplier,
			&total,
			&net,
			&tax,
			&currency,
			&rawData,
			&inv.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan processed invoice: %w", err)
		}

		if invoiceDate.Valid {
			inv.InvoiceDate = &invoiceDate.Time
		}
		inv.SupplierName = supplier.String
		inv.Currency = currency.String
		inv.RawData = rawData.String
		inv.TotalAmount = floatPtrFromNull(total)
		inv.NetAmount = floatPtrFromNull(net)
		inv.TotalTaxAmount = floatPtrFromNull(tax)

		invoices = append(invoices, &inv)
	}

	return invoices, rows.Err()
}

func nullFloat(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

func floatPtrFromNull(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}
