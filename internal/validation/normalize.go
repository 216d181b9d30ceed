package validation

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/consulevent-rohanchaudhari/Invoice-accelerator/internal/models"
)

// missingSentinel is emitted by the extraction pipeline when a field could
// not be read from the document at all.
const missingSentinel = "UNKNOWN"

// Accepted textual date formats: ISO and US-style with or without zero
// padding ("2025-01-15", "6/4/2025", "06/04/2025").
var dateFormats = []string{"2006-01-02", "1/2/2006"}

// currencyStripper removes currency symbols and digit grouping before
// numeric parsing.
var currencyStripper = strings.NewReplacer(
	"$", "", "¥", "", "￥", "", "€", "", "£", "", ",", "", " ", "",
)

// IsMissing reports whether a raw field value counts as absent: nil, empty
// or whitespace-only string, or the extraction sentinel.
func IsMissing(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		s = strings.TrimSpace(s)
		return s == "" || s == missingSentinel
	}
	return false
}

// ToNumber coerces a raw field value to float64, returning def when the
// value is absent or not parseable. Locale-formatted strings with currency
// symbols and thousands separators are accepted.
func ToNumber(v any, def float64) float64 {
	if f, ok := toFloat(v); ok {
		return f
	}
	return def
}

// toFloat is the presence-aware variant of ToNumber: the second return is
// false when the value is absent or unparseable, so callers can distinguish
// "no PO amount" from a PO amount of zero.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case nil:
		return 0, false
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		s := currencyStripper.Replace(strings.TrimSpace(n))
		if s == "" || s == missingSentinel {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// ToDate parses a raw date value, returning nil for anything it cannot
// understand. Malformed dates are never an error: callers treat nil as
// "skip date-dependent checks".
func ToDate(v any) *time.Time {
	switch d := v.(type) {
	case time.Time:
		return &d
	case *time.Time:
		return d
	case string:
		s := strings.TrimSpace(d)
		if s == "" || s == missingSentinel {
			return nil
		}
		for _, layout := range dateFormats {
			if t, err := time.Parse(layout, s); err == nil {
				return &t
			}
		}
		return nil
	default:
		return nil
	}
}

// toText flattens a raw field value to a trimmed string for identity and
// party fields. The sentinel value collapses to empty.
func toText(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		t := strings.TrimSpace(s)
		if t == missingSentinel {
			return ""
		}
		return t
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case int:
		return strconv.Itoa(s)
	case int64:
		return strconv.FormatInt(s, 10)
	default:
		return ""
	}
}

// NormalizeRecord converts the loosely-typed extracted mapping into the
// typed invoice record the rule evaluators consume. It never fails: fields
// that are absent or malformed come out nil/empty.
func NormalizeRecord(raw map[string]any) *models.InvoiceRecord {
	if raw == nil {
		raw = map[string]any{}
	}

	inv := &models.InvoiceRecord{
		InvoiceID:           toText(raw[models.FieldInvoiceID]),
		InvoiceNumber:       toText(raw[models.FieldInvoiceNumber]),
		PurchaseOrderNumber: toText(raw[models.FieldPurchaseOrderNumber]),
		SupplierName:        toText(raw[models.FieldSupplierName]),
		Currency:            toText(raw[models.FieldCurrency]),
		POReceivingStatus:   toText(raw[models.FieldPOReceivingStatus]),
		Raw:                 raw,
	}

	inv.TotalAmount = floatPtr(raw[models.FieldTotalAmount])
	inv.NetAmount = floatPtr(raw[models.FieldNetAmount])
	inv.TotalTaxAmount = floatPtr(raw[models.FieldTotalTaxAmount])
	inv.POAmount = floatPtr(raw[models.FieldPOAmount])
	inv.PORemainingBalance = floatPtr(raw[models.FieldPORemainingBalance])

	switch d := raw[models.FieldInvoiceDate].(type) {
	case string:
		inv.RawInvoiceDate = strings.TrimSpace(d)
	case time.Time:
		inv.RawInvoiceDate = d.Format(dateFormats[0])
	case *time.Time:
		if d != nil {
			inv.RawInvoiceDate = d.Format(dateFormats[0])
		}
	}
	inv.InvoiceDate = ToDate(raw[models.FieldInvoiceDate])

	return inv
}

func floatPtr(v any) *float64 {
	if f, ok := toFloat(v); ok {
		return &f
	}
	return nil
}

// amount dereferences an optional amount, defaulting to zero the way the
// amount rules expect.
func amount(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}
