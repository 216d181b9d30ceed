package validation

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/consulevent-rohanchaudhari/Invoice-accelerator/internal/models"
)

// Rule names. Deployments select a subset via Config.EnabledRules; the
// engine always runs enabled rules in registry order.
const (
	RuleRequiredFields   = "required_fields"
	RuleAmountValidation = "amount_validation"
	RuleTaxValidation    = "tax_validation"
	RuleDateValidation   = "date_validation"
	RuleTaxCalculation   = "tax_calculation"
	RulePOValidation     = "po_validation"
	RulePOReceiving      = "po_receiving"
)

// CheckFunc is one business rule: pure, side-effect free, and tolerant of
// missing data. Missing or unparseable inputs mean the rule does not apply
// and the check returns no findings.
type CheckFunc func(inv *models.InvoiceRecord, cfg Config, now time.Time) []models.Finding

// Evaluator pairs a rule name with its check for registry dispatch.
type Evaluator struct {
	Name  string
	Check CheckFunc
}

// registry lists every known rule in its fixed evaluation order. Finding
// order in a ValidationResult follows this order; no rule suppresses
// another.
var registry = []Evaluator{
	{RuleRequiredFields, checkRequiredFields},
	{RuleAmountValidation, checkAmounts},
	{RuleTaxValidation, checkTaxRate},
	{RuleDateValidation, checkDates},
	{RuleTaxCalculation, checkTaxCalculation},
	{RulePOValidation, checkPOAmounts},
	{RulePOReceiving, checkPOReceiving},
}

// checkRequiredFields flags one finding listing every configured field that
// is absent from the raw record, preserving the configured order.
func checkRequiredFields(inv *models.InvoiceRecord, cfg Config, _ time.Time) []models.Finding {
	var missing []string
	for _, field := range cfg.RequiredFields {
		if IsMissing(inv.Raw[field]) {
			missing = append(missing, field)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return []models.Finding{{
		Type:     models.ExceptionMissingRequiredFields,
		Severity: models.SeverityHigh,
		Message:  fmt.Sprintf("Missing required fields: %s", strings.Join(missing, ", ")),
		Details:  map[string]any{"missing_fields": missing},
	}}
}

// checkAmounts covers total/net/tax consistency (percentage tolerance),
// negative amounts, and the large-amount review threshold. A single invoice
// may trip all three.
func checkAmounts(inv *models.InvoiceRecord, cfg Config, _ time.Time) []models.Finding {
	total := amount(inv.TotalAmount)
	net := amount(inv.NetAmount)
	tax := amount(inv.TotalTaxAmount)

	var findings []models.Finding

	if net > 0 && tax > 0 {
		expected := net + tax
		diff := math.Abs(total - expected)
		tolerance := expected * cfg.AmountTolerancePercent / 100
		if diff > tolerance {
			findings = append(findings, models.Finding{
				Type:     models.ExceptionAmountMismatch,
				Severity: models.SeverityHigh,
				Message:  fmt.Sprintf("Total amount mismatch: expected %.2f, got %.2f", expected, total),
				Details: map[string]any{
					"total_amount":   total,
					"net_amount":     net,
					"tax_amount":     tax,
					"expected_total": expected,
					"difference":     diff,
				},
			})
		}
	}

	if total < 0 || net < 0 || tax < 0 {
		findings = append(findings, models.Finding{
			Type:     models.ExceptionNegativeAmount,
			Severity: models.SeverityHigh,
			Message:  "Invoice contains negative amounts",
			Details: map[string]any{
				"total_amount": total,
				"net_amount":   net,
				"tax_amount":   tax,
			},
		})
	}

	// Strictly greater: a total exactly at the threshold is not flagged.
	if total > cfg.LargeAmountThreshold {
		findings = append(findings, models.Finding{
			Type:     models.ExceptionLargeAmount,
			Severity: models.SeverityMedium,
			Message:  fmt.Sprintf("Large invoice amount: $%.2f", total),
			Details:  map[string]any{"total_amount": total},
		})
	}

	return findings
}

// checkTaxRate flags effective tax rates that are not close to any common
// rate. Skipped when either net or tax is zero or absent.
func checkTaxRate(inv *models.InvoiceRecord, cfg Config, _ time.Time) []models.Finding {
	net := amount(inv.NetAmount)
	tax := amount(inv.TotalTaxAmount)
	if net <= 0 || tax <= 0 {
		return nil
	}

	rate := tax / net * 100
	for _, common := range cfg.CommonTaxRates {
		if math.Abs(rate-common) <= cfg.TaxTolerancePercent {
			return nil
		}
	}

	return []models.Finding{{
		Type:     models.ExceptionUnusualTaxRate,
		Severity: models.SeverityMedium,
		Message:  fmt.Sprintf("Unusual tax rate: %.2f%%", rate),
		Details: map[string]any{
			"tax_rate":   rate,
			"net_amount": net,
			"tax_amount": tax,
		},
	}}
}

// checkDates covers future-dated invoices, stale invoices past the age
// threshold, and present-but-unparseable date strings. Future and old are
// independent of each other; an absent date skips the rule entirely.
func checkDates(inv *models.InvoiceRecord, cfg Config, now time.Time) []models.Finding {
	if IsMissing(inv.RawInvoiceDate) {
		return nil
	}

	if inv.InvoiceDate == nil {
		return []models.Finding{{
			Type:     models.ExceptionInvalidDateFormat,
			Severity: models.SeverityMedium,
			Message:  fmt.Sprintf("Invalid date format: %s", inv.RawInvoiceDate),
			Details:  map[string]any{"invoice_date": inv.RawInvoiceDate},
		}}
	}

	date := *inv.InvoiceDate
	var findings []models.Finding

	if date.After(now) {
		findings = append(findings, models.Finding{
			Type:     models.ExceptionFutureDate,
			Severity: models.SeverityHigh,
			Message:  fmt.Sprintf("Invoice date is in the future: %s", inv.RawInvoiceDate),
			Details:  map[string]any{"invoice_date": inv.RawInvoiceDate},
		})
	}

	ageDays := int(now.Sub(date).Hours() / 24)
	if ageDays > cfg.MaxInvoiceAgeDays {
		findings = append(findings, models.Finding{
			Type:     models.ExceptionOldInvoice,
			Severity: models.SeverityLow,
			Message:  fmt.Sprintf("Invoice is %d days old (threshold: %d days)", ageDays, cfg.MaxInvoiceAgeDays),
			Details: map[string]any{
				"invoice_date": inv.RawInvoiceDate,
				"age_days":     ageDays,
			},
		})
	}

	return findings
}

// checkTaxCalculation is the strict-tolerance counterpart of the amount
// mismatch rule: a fixed one-cent absolute window on total vs net+tax.
// Deployments enable one or the other depending on how exact their
// suppliers' rounding is.
func checkTaxCalculation(inv *models.InvoiceRecord, _ Config, _ time.Time) []models.Finding {
	if inv.NetAmount == nil || *inv.NetAmount <= 0 {
		return nil
	}

	total := amount(inv.TotalAmount)
	net := *inv.NetAmount
	tax := amount(inv.TotalTaxAmount)
	expected := net + tax
	diff := math.Abs(total - expected)
	if diff <= 0.01 {
		return nil
	}

	return []models.Finding{{
		Type:     models.ExceptionIncorrectTaxCalculation,
		Severity: models.SeverityHigh,
		Message:  fmt.Sprintf("Incorrect tax calculation: net %.2f + tax %.2f != total %.2f", net, tax, total),
		Details: map[string]any{
			"total_amount":   total,
			"net_amount":     net,
			"tax_amount":     tax,
			"expected_total": expected,
			"difference":     diff,
		},
	}}
}

// checkPOAmounts compares the invoice total against the PO amount and the
// PO's remaining balance. PO-less invoices are not penalized: each check
// runs only when its PO figure is present.
func checkPOAmounts(inv *models.InvoiceRecord, _ Config, _ time.Time) []models.Finding {
	total := amount(inv.TotalAmount)
	var findings []models.Finding

	if inv.POAmount != nil && total > *inv.POAmount {
		findings = append(findings, models.Finding{
			Type:     models.ExceptionExceedsPOAmount,
			Severity: models.SeverityHigh,
			Message:  fmt.Sprintf("Invoice total %.2f exceeds PO amount %.2f", total, *inv.POAmount),
			Details: map[string]any{
				"total_amount": total,
				"po_amount":    *inv.POAmount,
				"overage":      total - *inv.POAmount,
			},
		})
	}

	if inv.PORemainingBalance != nil && total > *inv.PORemainingBalance {
		findings = append(findings, models.Finding{
			Type:     models.ExceptionInsufficientPOFunds,
			Severity: models.SeverityHigh,
			Message:  fmt.Sprintf("Invoice total %.2f exceeds PO remaining balance %.2f", total, *inv.PORemainingBalance),
			Details: map[string]any{
				"total_amount":         total,
				"po_remaining_balance": *inv.PORemainingBalance,
				"shortfall":            total - *inv.PORemainingBalance,
			},
		})
	}

	return findings
}

// checkPOReceiving flags invoices whose referenced PO has not completed
// receiving. Fires only when both the PO number and the receiving status
// were supplied by the procurement system.
func checkPOReceiving(inv *models.InvoiceRecord, _ Config, _ time.Time) []models.Finding {
	if inv.PurchaseOrderNumber == "" || IsMissing(inv.POReceivingStatus) {
		return nil
	}

	status := strings.ToUpper(strings.TrimSpace(inv.POReceivingStatus))
	if status == models.POReceivingComplete || status == models.POReceivingReceived {
		return nil
	}

	return []models.Finding{{
		Type:     models.ExceptionPOReceivingNotComplete,
		Severity: models.SeverityHigh,
		Message:  fmt.Sprintf("PO %s receiving not complete (status: %s)", inv.PurchaseOrderNumber, inv.POReceivingStatus),
		Details: map[string]any{
			"purchase_order_number": inv.PurchaseOrderNumber,
			"po_receiving_status":   inv.POReceivingStatus,
		},
	}}
}
