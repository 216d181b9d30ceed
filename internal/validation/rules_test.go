package validation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/consulevent-rohanchaudhari/Invoice-accelerator/internal/models"
)

// Reference clock for all date-dependent assertions.
var testNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func record(raw map[string]any) *models.InvoiceRecord {
	return NormalizeRecord(raw)
}

func TestCheckRequiredFields(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		name            string
		raw             map[string]any
		expectedMissing []string
	}{
		{
			name: "all present",
			raw: map[string]any{
				"invoice_id":    "INV-1",
				"supplier_name": "Acme",
				"total_amount":  100.0,
				"invoice_date":  "2025-01-15",
			},
			expectedMissing: nil,
		},
		{
			name: "two missing, configured order preserved",
			raw: map[string]any{
				"supplier_name": "Acme",
				"invoice_date":  "2025-01-15",
			},
			expectedMissing: []string{"invoice_id", "total_amount"},
		},
		{
			name: "empty and sentinel values count as missing",
			raw: map[string]any{
				"invoice_id":    "UNKNOWN",
				"supplier_name": "",
				"total_amount":  100.0,
				"invoice_date":  "2025-01-15",
			},
			expectedMissing: []string{"invoice_id", "supplier_name"},
		},
		{
			name:            "everything missing",
			raw:             map[string]any{},
			expectedMissing: []string{"invoice_id", "supplier_name", "total_amount", "invoice_date"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			findings := checkRequiredFields(record(tt.raw), cfg, testNow)

			if tt.expectedMissing == nil {
				assert.Empty(t, findings)
				return
			}

			require.Len(t, findings, 1, "one finding listing all missing fields, not one per field")
			f := findings[0]
			assert.Equal(t, models.ExceptionMissingRequiredFields, f.Type)
			assert.Equal(t, models.SeverityHigh, f.Severity)
			assert.Equal(t, tt.expectedMissing, f.Details["missing_fields"])
		})
	}
}

func TestCheckAmountsMismatch(t *testing.T) {
	cfg := DefaultConfig()

	// net+tax = 1500, 1% tolerance = 15, diff = 200
	findings := checkAmounts(record(map[string]any{
		"total_amount":     1700.0,
		"net_amount":       1400.0,
		"total_tax_amount": 100.0,
	}), cfg, testNow)

	require.Len(t, findings, 1)
	f := findings[0]
	assert.Equal(t, models.ExceptionAmountMismatch, f.Type)
	assert.Equal(t, models.SeverityHigh, f.Severity)
	assert.InDelta(t, 1500.0, f.Details["expected_total"].(float64), 1e-9)
	assert.InDelta(t, 200.0, f.Details["difference"].(float64), 1e-9)
}

func TestCheckAmountsWithinTolerance(t *testing.T) {
	cfg := DefaultConfig()

	// diff = 10, tolerance = 15 -> clean
	findings := checkAmounts(record(map[string]any{
		"total_amount":     1510.0,
		"net_amount":       1400.0,
		"total_tax_amount": 100.0,
	}), cfg, testNow)

	assert.Empty(t, findings)
}

func TestCheckAmountsMismatchSkippedWithoutTax(t *testing.T) {
	cfg := DefaultConfig()

	// tax is zero: the consistency check does not apply
	findings := checkAmounts(record(map[string]any{
		"total_amount":     1700.0,
		"net_amount":       1400.0,
		"total_tax_amount": 0.0,
	}), cfg, testNow)

	assert.Empty(t, findings)
}

func TestCheckAmountsNegative(t *testing.T) {
	cfg := DefaultConfig()

	findings := checkAmounts(record(map[string]any{
		"total_amount": -50.0,
	}), cfg, testNow)

	require.Len(t, findings, 1)
	assert.Equal(t, models.ExceptionNegativeAmount, findings[0].Type)
	assert.Equal(t, models.SeverityHigh, findings[0].Severity)
}

func TestCheckAmountsLargeAmountBoundary(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		name     string
		total    float64
		expected bool
	}{
		{name: "below threshold", total: 99999.99, expected: false},
		{name: "exactly at threshold", total: 100000.0, expected: false},
		{name: "one cent above", total: 100000.01, expected: true},
		{name: "well above", total: 150000.0, expected: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			findings := checkAmounts(record(map[string]any{
				"total_amount": tt.total,
			}), cfg, testNow)

			if !tt.expected {
				assert.Empty(t, findings)
				return
			}
			require.Len(t, findings, 1)
			assert.Equal(t, models.ExceptionLargeAmount, findings[0].Type)
			assert.Equal(t, models.SeverityMedium, findings[0].Severity)
		})
	}
}

func TestCheckAmountsMultipleFindings(t *testing.T) {
	cfg := DefaultConfig()

	// mismatch and large amount together
	findings := checkAmounts(record(map[string]any{
		"total_amount":     150000.0,
		"net_amount":       100000.0,
		"total_tax_amount": 8000.0,
	}), cfg, testNow)

	require.Len(t, findings, 2)
	assert.Equal(t, models.ExceptionAmountMismatch, findings[0].Type)
	assert.Equal(t, models.ExceptionLargeAmount, findings[1].Type)
}

func TestCheckTaxRate(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		name     string
		net      float64
		tax      float64
		expected bool
	}{
		{name: "common 8 percent", net: 1000, tax: 80, expected: false},
		{name: "common 8.25 percent", net: 1000, tax: 82.5, expected: false},
		{name: "within half a point of 10", net: 1000, tax: 104, expected: false},
		{name: "unusual 13 percent", net: 1000, tax: 130, expected: true},
		{name: "absurd 45 percent", net: 1000, tax: 450, expected: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			findings := checkTaxRate(record(map[string]any{
				"net_amount":       tt.net,
				"total_tax_amount": tt.tax,
			}), cfg, testNow)

			if !tt.expected {
				assert.Empty(t, findings)
				return
			}
			require.Len(t, findings, 1)
			assert.Equal(t, models.ExceptionUnusualTaxRate, findings[0].Type)
			assert.Equal(t, models.SeverityMedium, findings[0].Severity)
		})
	}
}

func TestCheckTaxRateSkippedWhenZero(t *testing.T) {
	cfg := DefaultConfig()

	assert.Empty(t, checkTaxRate(record(map[string]any{
		"net_amount": 1000.0,
	}), cfg, testNow))

	assert.Empty(t, checkTaxRate(record(map[string]any{
		"total_tax_amount": 80.0,
	}), cfg, testNow))
}

func TestCheckDates(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		name          string
		date          any
		expectedTypes []string
	}{
		{name: "recent date is clean", date: "2025-01-15", expectedTypes: nil},
		{name: "future date", date: "2025-06-01", expectedTypes: []string{models.ExceptionFutureDate}},
		{name: "old invoice", date: "2024-10-01", expectedTypes: []string{models.ExceptionOldInvoice}},
		{name: "unparseable date", date: "next tuesday", expectedTypes: []string{models.ExceptionInvalidDateFormat}},
		{name: "absent date skips the rule", date: nil, expectedTypes: nil},
		{name: "us format accepted", date: "01/15/2025", expectedTypes: nil},
		{name: "future date as time value", date: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), expectedTypes: []string{models.ExceptionFutureDate}},
		{name: "old invoice as time value", date: time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC), expectedTypes: []string{models.ExceptionOldInvoice}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := map[string]any{}
			if tt.date != nil {
				raw["invoice_date"] = tt.date
			}

			findings := checkDates(record(raw), cfg, testNow)

			var types []string
			for _, f := range findings {
				types = append(types, f.Type)
			}
			assert.Equal(t, tt.expectedTypes, types)
		})
	}
}

func TestCheckDatesOldInvoiceDetails(t *testing.T) {
	cfg := DefaultConfig()

	// 2024-10-01 -> 151 days before the reference clock
	findings := checkDates(record(map[string]any{
		"invoice_date": "2024-10-01",
	}), cfg, testNow)

	require.Len(t, findings, 1)
	f := findings[0]
	assert.Equal(t, models.SeverityLow, f.Severity)
	assert.Equal(t, 151, f.Details["age_days"])
}

func TestCheckTaxCalculationFixedTolerance(t *testing.T) {
	tests := []struct {
		name     string
		total    float64
		net      float64
		tax      float64
		expected bool
	}{
		{name: "exact", total: 1500, net: 1400, tax: 100, expected: false},
		{name: "one cent off is allowed", total: 1500.01, net: 1400, tax: 100, expected: false},
		{name: "two cents off fires", total: 1500.02, net: 1400, tax: 100, expected: true},
		{name: "fires even with zero tax", total: 1450, net: 1400, tax: 0, expected: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			findings := checkTaxCalculation(record(map[string]any{
				"total_amount":     tt.total,
				"net_amount":       tt.net,
				"total_tax_amount": tt.tax,
			}), DefaultConfig(), testNow)

			if !tt.expected {
				assert.Empty(t, findings)
				return
			}
			require.Len(t, findings, 1)
			assert.Equal(t, models.ExceptionIncorrectTaxCalculation, findings[0].Type)
			assert.Equal(t, models.SeverityHigh, findings[0].Severity)
		})
	}
}

func TestCheckTaxCalculationSkippedWithoutNet(t *testing.T) {
	findings := checkTaxCalculation(record(map[string]any{
		"total_amount": 1500.0,
	}), DefaultConfig(), testNow)

	assert.Empty(t, findings)
}

func TestCheckPOAmounts(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		name          string
		raw           map[string]any
		expectedTypes []string
	}{
		{
			name: "within PO amount",
			raw: map[string]any{
				"total_amount": 900.0,
				"po_amount":    1000.0,
			},
			expectedTypes: nil,
		},
		{
			name: "exceeds PO amount",
			raw: map[string]any{
				"total_amount": 1200.0,
				"po_amount":    1000.0,
			},
			expectedTypes: []string{models.ExceptionExceedsPOAmount},
		},
		{
			name: "insufficient remaining balance",
			raw: map[string]any{
				"total_amount":         600.0,
				"po_amount":            1000.0,
				"po_remaining_balance": 500.0,
			},
			expectedTypes: []string{models.ExceptionInsufficientPOFunds},
		},
		{
			name: "both PO checks fire",
			raw: map[string]any{
				"total_amount":         1200.0,
				"po_amount":            1000.0,
				"po_remaining_balance": 500.0,
			},
			expectedTypes: []string{models.ExceptionExceedsPOAmount, models.ExceptionInsufficientPOFunds},
		},
		{
			name: "PO-less invoice is not penalized",
			raw: map[string]any{
				"total_amount": 1200.0,
			},
			expectedTypes: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			findings := checkPOAmounts(record(tt.raw), cfg, testNow)

			var types []string
			for _, f := range findings {
				types = append(types, f.Type)
				assert.Equal(t, models.SeverityHigh, f.Severity)
			}
			assert.Equal(t, tt.expectedTypes, types)
		})
	}
}

func TestCheckPOReceiving(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		name     string
		raw      map[string]any
		expected bool
	}{
		{
			name: "receiving pending",
			raw: map[string]any{
				"purchase_order_number": "PO-1",
				"po_receiving_status":   "PENDING",
			},
			expected: true,
		},
		{
			name: "receiving complete",
			raw: map[string]any{
				"purchase_order_number": "PO-1",
				"po_receiving_status":   "COMPLETE",
			},
			expected: false,
		},
		{
			name: "received counts as fulfilled",
			raw: map[string]any{
				"purchase_order_number": "PO-1",
				"po_receiving_status":   "received",
			},
			expected: false,
		},
		{
			name: "no PO number skips the rule",
			raw: map[string]any{
				"po_receiving_status": "PENDING",
			},
			expected: false,
		},
		{
			name: "no receiving status skips the rule",
			raw: map[string]any{
				"purchase_order_number": "PO-1",
			},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			findings := checkPOReceiving(record(tt.raw), cfg, testNow)

			if !tt.expected {
				assert.Empty(t, findings)
				return
			}
			require.Len(t, findings, 1)
			assert.Equal(t, models.ExceptionPOReceivingNotComplete, findings[0].Type)
			assert.Equal(t, models.SeverityHigh, findings[0].Severity)
		})
	}
}
