package validation

import (
	"errors"
	"fmt"
	"time"

	"github.com/consulevent-rohanchaudhari/Invoice-accelerator/internal/models"
	"go.uber.org/zap"
)

// ErrNoInvoiceData is returned when there is nothing to validate. This is
// the only hard failure: everything that goes wrong inside an individual
// rule is recovered and reported as a finding instead.
var ErrNoInvoiceData = errors.New("invoice data is required")

// Config holds the tunable thresholds and the rule selection for one
// deployment of the validation engine.
type Config struct {
	RequiredFields         []string  `mapstructure:"required_fields"`
	LargeAmountThreshold   float64   `mapstructure:"large_amount_threshold"`
	AmountTolerancePercent float64   `mapstructure:"amount_tolerance_percent"`
	TaxTolerancePercent    float64   `mapstructure:"tax_tolerance_percent"`
	MaxInvoiceAgeDays      int       `mapstructure:"max_invoice_age_days"`
	CommonTaxRates         []float64 `mapstructure:"common_tax_rates"`
	EnabledRules           []string  `mapstructure:"enabled_rules"`
}

// DefaultConfig returns the rule set and thresholds the pipeline ships with.
func DefaultConfig() Config {
	return Config{
		RequiredFields: []string{
			models.FieldInvoiceID,
			models.FieldSupplierName,
			models.FieldTotalAmount,
			models.FieldInvoiceDate,
		},
		LargeAmountThreshold:   100000,
		AmountTolerancePercent: 1.0,
		TaxTolerancePercent:    0.5,
		MaxInvoiceAgeDays:      90,
		CommonTaxRates:         []float64{0, 5, 6, 7, 8, 8.25, 10},
		EnabledRules: []string{
			RuleRequiredFields,
			RuleAmountValidation,
			RuleTaxValidation,
			RuleDateValidation,
		},
	}
}

// Validate ensures the configuration is internally consistent and only
// references known rules.
func (c Config) Validate() error {
	if c.LargeAmountThreshold <= 0 {
		return fmt.Errorf("large_amount_threshold must be positive, got %.2f", c.LargeAmountThreshold)
	}
	if c.AmountTolerancePercent < 0 {
		return fmt.Errorf("amount_tolerance_percent must not be negative, got %.2f", c.AmountTolerancePercent)
	}
	if c.TaxTolerancePercent < 0 {
		return fmt.Errorf("tax_tolerance_percent must not be negative, got %.2f", c.TaxTolerancePercent)
	}
	if c.MaxInvoiceAgeDays <= 0 {
		return fmt.Errorf("max_invoice_age_days must be positive, got %d", c.MaxInvoiceAgeDays)
	}
	if len(c.EnabledRules) == 0 {
		return errors.New("at least one rule must be enabled")
	}

	known := make(map[string]bool, len(registry))
	for _, ev := range registry {
		known[ev.Name] = true
	}
	for _, name := range c.EnabledRules {
		if !known[name] {
			return fmt.Errorf("unknown validation rule: %s", name)
		}
	}
	return nil
}

// Engine runs the configured business rules over extracted invoices.
// Stateless per invocation; one engine may validate invoices from any
// number of goroutines concurrently.
type Engine struct {
	cfg    Config
	rules  []Evaluator
	logger *zap.Logger
	now    func() time.Time
}

// NewEngine builds an engine from configuration. Enabled rules run in the
// registry's fixed order regardless of how EnabledRules is spelled.
func NewEngine(cfg Config, logger *zap.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid validation config: %w", err)
	}

	enabled := make(map[string]bool, len(cfg.EnabledRules))
	for _, name := range cfg.EnabledRules {
		enabled[name] = true
	}

	var rules []Evaluator
	for _, ev := range registry {
		if enabled[ev.Name] {
			rules = append(rules, ev)
		}
	}

	return &Engine{
		cfg:    cfg,
		rules:  rules,
		logger: logger,
		now:    time.Now,
	}, nil
}

// WithClock replaces the engine's clock. Tests use a fixed reference time
// so date-age findings are reproducible.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Evaluate runs every enabled rule over one extracted invoice record and
// aggregates the findings into a routing decision.
//
// The result always carries exactly one passed/failed entry per enabled
// rule. is_exception is true whenever any finding exists; requires_review
// is true only when a high-severity finding exists, so medium/low-only
// invoices can be persisted as exceptions without blocking auto-processing.
func (e *Engine) Evaluate(raw map[string]any) (*models.ValidationResult, error) {
	if raw == nil {
		return nil, ErrNoInvoiceData
	}

	inv := NormalizeRecord(raw)
	now := e.now()

	result := &models.ValidationResult{
		Exceptions:        []models.Finding{},
		ValidationResults: make(map[string]string, len(e.rules)),
	}

	for _, rule := range e.rules {
		findings := e.runRule(rule, inv, now)
		if len(findings) == 0 {
			result.ValidationResults[rule.Name] = models.RulePassed
			continue
		}
		result.ValidationResults[rule.Name] = models.RuleFailed
		result.Exceptions = append(result.Exceptions, findings...)
	}

	for _, f := range result.Exceptions {
		if f.Severity == models.SeverityHigh {
			result.HighSeverityCount++
		}
	}
	result.ExceptionCount = len(result.Exceptions)
	result.IsException = result.ExceptionCount > 0
	result.RequiresReview = result.HighSeverityCount > 0

	e.logger.Debug("Invoice validated",
		zap.String("invoice_id", inv.InvoiceID),
		zap.Bool("is_exception", result.IsException),
		zap.Int("exception_count", result.ExceptionCount),
		zap.Int("high_severity_count", result.HighSeverityCount))

	return result, nil
}

// runRule executes one evaluator, converting a panic inside the rule into a
// synthetic high-severity finding. A defective rule must never abort the
// rest of the validation pass.
func (e *Engine) runRule(rule Evaluator, inv *models.InvoiceRecord, now time.Time) (findings []models.Finding) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("Rule evaluator panicked",
				zap.String("rule", rule.Name),
				zap.Any("panic", r))
			findings = []models.Finding{{
				Type:     models.ExceptionEvaluatorError,
				Severity: models.SeverityHigh,
				Message:  fmt.Sprintf("Rule %s failed to evaluate", rule.Name),
				Details:  map[string]any{"rule": rule.Name, "error": fmt.Sprint(r)},
			}}
		}
	}()

	return rule.Check(inv, e.cfg, now)
}

// RuleNames returns the names of the enabled rules in evaluation order.
func (e *Engine) RuleNames() []string {
	names := make([]string, len(e.rules))
	for i, r := range e.rules {
		names[i] = r.Name
	}
	return names
}
