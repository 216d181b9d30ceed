package validation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToNumber(t *testing.T) {
	tests := []struct {
		name     string
		value    any
		def      float64
		expected float64
	}{
		{name: "plain float", value: 1500.50, def: 0, expected: 1500.50},
		{name: "integer", value: 42, def: 0, expected: 42},
		{name: "numeric string", value: "1234.56", def: 0, expected: 1234.56},
		{name: "currency symbol and commas", value: "$1,500.00", def: 0, expected: 1500},
		{name: "yen symbol", value: "¥75000", def: 0, expected: 75000},
		{name: "euro with spaces", value: "€ 1 234.50", def: 0, expected: 1234.50},
		{name: "negative", value: "-42.10", def: 0, expected: -42.10},
		{name: "nil falls back to default", value: nil, def: 99, expected: 99},
		{name: "empty string falls back", value: "", def: 7, expected: 7},
		{name: "unknown sentinel falls back", value: "UNKNOWN", def: 3, expected: 3},
		{name: "garbage falls back", value: "twelve dollars", def: 0, expected: 0},
		{name: "bool falls back", value: true, def: 5, expected: 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, ToNumber(tt.value, tt.def), 1e-9)
		})
	}
}

func TestToDate(t *testing.T) {
	tests := []struct {
		name     string
		value    any
		expected string // YYYY-MM-DD, empty means nil expected
	}{
		{name: "iso format", value: "2025-01-15", expected: "2025-01-15"},
		{name: "us format zero padded", value: "06/04/2025", expected: "2025-06-04"},
		{name: "us format unpadded", value: "6/4/2025", expected: "2025-06-04"},
		{name: "whitespace trimmed", value: "  2025-01-15 ", expected: "2025-01-15"},
		{name: "unparseable text", value: "Jan 5, 2025", expected: ""},
		{name: "empty string", value: "", expected: ""},
		{name: "unknown sentinel", value: "UNKNOWN", expected: ""},
		{name: "nil", value: nil, expected: ""},
		{name: "number", value: 20250115, expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ToDate(tt.value)
			if tt.expected == "" {
				assert.Nil(t, got, "malformed dates must come back nil, never an error")
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.expected, got.Format("2006-01-02"))
		})
	}
}

func TestToDatePassthrough(t *testing.T) {
	ts := time.Date(2025, 6, 4, 0, 0, 0, 0, time.UTC)
	got := ToDate(ts)
	require.NotNil(t, got)
	assert.True(t, got.Equal(ts))
}

func TestIsMissing(t *testing.T) {
	assert.True(t, IsMissing(nil))
	assert.True(t, IsMissing(""))
	assert.True(t, IsMissing("   "))
	assert.True(t, IsMissing("UNKNOWN"))

	assert.False(t, IsMissing("INV-001"))
	assert.False(t, IsMissing(0.0), "zero amounts are present, not missing")
	assert.False(t, IsMissing(false))
}

func TestNormalizeRecord(t *testing.T) {
	raw := map[string]any{
		"invoice_id":       "INV-001",
		"supplier_name":    "  Acme Corp ",
		"total_amount":     "$1,500.00",
		"net_amount":       1400.0,
		"total_tax_amount": "100",
		"invoice_date":     "2025-01-15",
		"po_amount":        nil,
		"currency":         "USD",
	}

	inv := NormalizeRecord(raw)

	assert.Equal(t, "INV-001", inv.InvoiceID)
	assert.Equal(t, "Acme Corp", inv.SupplierName)
	assert.Equal(t, "USD", inv.Currency)

	require.NotNil(t, inv.TotalAmount)
	assert.InDelta(t, 1500.0, *inv.TotalAmount, 1e-9)
	require.NotNil(t, inv.NetAmount)
	assert.InDelta(t, 1400.0, *inv.NetAmount, 1e-9)
	require.NotNil(t, inv.TotalTaxAmount)
	assert.InDelta(t, 100.0, *inv.TotalTaxAmount, 1e-9)

	require.NotNil(t, inv.InvoiceDate)
	assert.Equal(t, "2025-01-15", inv.InvoiceDate.Format("2006-01-02"))
	assert.Equal(t, "2025-01-15", inv.RawInvoiceDate)

	assert.Nil(t, inv.POAmount, "absent PO amount must stay nil, not zero")
	assert.Nil(t, inv.PORemainingBalance)
}

func TestNormalizeRecordMalformedInput(t *testing.T) {
	raw := map[string]any{
		"invoice_id":   "UNKNOWN",
		"total_amount": "not a number",
		"invoice_date": "someday soon",
	}

	inv := NormalizeRecord(raw)

	assert.Empty(t, inv.InvoiceID, "sentinel collapses to empty")
	assert.Nil(t, inv.TotalAmount)
	assert.Nil(t, inv.InvoiceDate)
	assert.Equal(t, "someday soon", inv.RawInvoiceDate,
		"raw date string is preserved for the invalid-format rule")
}

func TestNormalizeRecordTimeValueDate(t *testing.T) {
	raw := map[string]any{
		"invoice_date": time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	}

	inv := NormalizeRecord(raw)

	require.NotNil(t, inv.InvoiceDate)
	assert.Equal(t, "2025-06-01", inv.RawInvoiceDate,
		"non-string dates still populate the raw representation the date rules gate on")
}

func TestNormalizeRecordNilMap(t *testing.T) {
	inv := NormalizeRecord(nil)
	require.NotNil(t, inv)
	assert.NotNil(t, inv.Raw)
	assert.Empty(t, inv.InvoiceID)
}

func TestNormalizeRecordPOFields(t *testing.T) {
	raw := map[string]any{
		"purchase_order_number": "PO-1",
		"po_amount":             "2,000.00",
		"po_remaining_balance":  0.0,
		"po_receiving_status":   "PENDING",
	}

	inv := NormalizeRecord(raw)

	assert.Equal(t, "PO-1", inv.PurchaseOrderNumber)
	require.NotNil(t, inv.POAmount)
	assert.InDelta(t, 2000.0, *inv.POAmount, 1e-9)
	require.NotNil(t, inv.PORemainingBalance)
	assert.Zero(t, *inv.PORemainingBalance, "a zero balance is present, not missing")
	assert.Equal(t, "PENDING", inv.POReceivingStatus)
}
