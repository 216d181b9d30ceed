package report

import (
	"bytes"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/consulevent-rohanchaudhari/Invoice-accelerator/internal/models"
)

// ExceptionExporter renders exception listings as .xlsx workbooks for the
// accounting team.
type ExceptionExporter struct {
	logger *zap.Logger
}

// NewExceptionExporter creates an exporter
func NewExceptionExporter(logger *zap.Logger) *ExceptionExporter {
	return &ExceptionExporter{logger: logger}
}

const sheetName = "Exceptions"

var columns = []string{
	"Exception ID",
	"Invoice ID",
	"Supplier",
	"Received Date",
	"Invoice Date",
	"Total Amount",
	"Exception Type",
	"Severity",
	"Status",
	"Reviewed By",
	"Review Comments",
}

// Export renders the exceptions into a workbook and returns the file bytes
func (e *ExceptionExporter) Export(exceptions []*models.InvoiceException) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		e.logger.Debug("Failed to remove default sheet", zap.Error(err))
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	for i, col := range columns {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, fmt.Errorf("failed to build header cell: %w", err)
		}
		if err := f.SetCellValue(sheetName, cell, col); err != nil {
			return nil, fmt.Errorf("failed to write header: %w", err)
		}
		if err := f.SetCellStyle(sheetName, cell, cell, headerStyle); err != nil {
			return nil, fmt.Errorf("failed to style header: %w", err)
		}
	}

	for row, exc := range exceptions {
		values := []any{
			exc.ExceptionID,
			exc.InvoiceID,
			exc.SupplierName,
			exc.ReceivedDate.Format("2006-01-02"),
			formatDate(exc.InvoiceDate),
			formatAmount(exc.TotalAmount),
			exc.ExceptionType,
			exc.ExceptionSeverity,
			exc.Status,
			exc.ReviewedBy,
			exc.ReviewComments,
		}

		for col, value := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row+2)
			if err != nil {
				return nil, fmt.Errorf("failed to build cell: %w", err)
			}
			if err := f.SetCellValue(sheetName, cell, value); err != nil {
				return nil, fmt.Errorf("failed to write row %d: %w", row+2, err)
			}
		}
	}

	if err := f.SetColWidth(sheetName, "A", "B", 24); err != nil {
		return nil, fmt.Errorf("failed to set column width: %w", err)
	}
	if err := f.SetColWidth(sheetName, "C", "K", 18); err != nil {
		return nil, fmt.Errorf("failed to set column width: %w", err)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}

	e.logger.Info("Exception export generated",
		zap.Int("row_count", len(exceptions)),
		zap.Int("size_bytes", buf.Len()))

	return buf.Bytes(), nil
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}

func formatAmount(p *float64) any {
	if p == nil {
		return ""
	}
	return *p
}
