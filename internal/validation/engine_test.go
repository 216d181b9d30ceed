package validation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/consulevent-rohanchaudhari/Invoice-accelerator/internal/models"
)

func newTestEngine(t *testing.T, cfg Config) *Engine {
	t.Helper()
	engine, err := NewEngine(cfg, zap.NewNop())
	require.NoError(t, err)
	return engine.WithClock(func() time.Time { return testNow })
}

func cleanInvoice() map[string]any {
	return map[string]any{
		"invoice_id":       "INV-1",
		"supplier_name":    "Acme",
		"total_amount":     1500.00,
		"net_amount":       1400.00,
		"total_tax_amount": 100.00,
		"invoice_date":     "2025-01-15",
	}
}

func TestEvaluateCleanInvoice(t *testing.T) {
	engine := newTestEngine(t, DefaultConfig())

	result, err := engine.Evaluate(cleanInvoice())
	require.NoError(t, err)

	assert.False(t, result.IsException)
	assert.False(t, result.RequiresReview)
	assert.Empty(t, result.Exceptions)
	assert.Zero(t, result.ExceptionCount)
	assert.Zero(t, result.HighSeverityCount)

	for _, name := range engine.RuleNames() {
		assert.Equal(t, models.RulePassed, result.ValidationResults[name])
	}
}

func TestEvaluateAmountMismatch(t *testing.T) {
	engine := newTestEngine(t, DefaultConfig())

	inv := cleanInvoice()
	inv["total_amount"] = 1700.00

	result, err := engine.Evaluate(inv)
	require.NoError(t, err)

	assert.True(t, result.IsException)
	assert.True(t, result.RequiresReview)
	require.Len(t, result.Exceptions, 1)
	assert.Equal(t, models.ExceptionAmountMismatch, result.Exceptions[0].Type)
	assert.Equal(t, models.RuleFailed, result.ValidationResults[RuleAmountValidation])
	assert.Equal(t, models.RulePassed, result.ValidationResults[RuleRequiredFields])
}

func TestEvaluateLargeAmountDoesNotRequireReview(t *testing.T) {
	engine := newTestEngine(t, DefaultConfig())

	inv := cleanInvoice()
	// keep net+tax consistent so only the medium-severity finding fires
	inv["total_amount"] = 150000.00
	inv["net_amount"] = 140000.00
	inv["total_tax_amount"] = 10000.00

	result, err := engine.Evaluate(inv)
	require.NoError(t, err)

	require.Len(t, result.Exceptions, 1)
	assert.Equal(t, models.ExceptionLargeAmount, result.Exceptions[0].Type)
	assert.Equal(t, models.SeverityMedium, result.Exceptions[0].Severity)

	assert.True(t, result.IsException, "any finding makes the invoice an exception")
	assert.False(t, result.RequiresReview, "only high severity routes to human review")
	assert.Zero(t, result.HighSeverityCount)
}

func TestEvaluatePOReceivingRuleSet(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EnabledRules = []string{RulePOValidation, RulePOReceiving, RuleTaxCalculation}
	engine := newTestEngine(t, cfg)

	result, err := engine.Evaluate(map[string]any{
		"invoice_id":            "INV-9",
		"purchase_order_number": "PO-1",
		"po_receiving_status":   "PENDING",
	})
	require.NoError(t, err)

	require.Len(t, result.Exceptions, 1)
	assert.Equal(t, models.ExceptionPOReceivingNotComplete, result.Exceptions[0].Type)
	assert.Equal(t, models.SeverityHigh, result.Exceptions[0].Severity)
	assert.True(t, result.RequiresReview)

	// exactly one status entry per enabled rule, nothing else
	assert.Len(t, result.ValidationResults, 3)
	assert.Equal(t, models.RuleFailed, result.ValidationResults[RulePOReceiving])
	assert.Equal(t, models.RulePassed, result.ValidationResults[RulePOValidation])
	assert.Equal(t, models.RulePassed, result.ValidationResults[RuleTaxCalculation])
}

func TestEvaluateMissingRequiredFields(t *testing.T) {
	engine := newTestEngine(t, DefaultConfig())

	result, err := engine.Evaluate(map[string]any{
		"supplier_name": "Acme",
		"invoice_date":  "2025-01-15",
	})
	require.NoError(t, err)

	require.Len(t, result.Exceptions, 1)
	f := result.Exceptions[0]
	assert.Equal(t, models.ExceptionMissingRequiredFields, f.Type)
	assert.Equal(t, []string{"invoice_id", "total_amount"}, f.Details["missing_fields"])
}

func TestEvaluateFindingsPreserveRuleOrder(t *testing.T) {
	engine := newTestEngine(t, DefaultConfig())

	// missing fields + negative amount + stale date, all at once
	result, err := engine.Evaluate(map[string]any{
		"supplier_name": "Acme",
		"total_amount":  -10.0,
		"invoice_date":  "2024-01-01",
	})
	require.NoError(t, err)

	var types []string
	for _, f := range result.Exceptions {
		types = append(types, f.Type)
	}
	assert.Equal(t, []string{
		models.ExceptionMissingRequiredFields,
		models.ExceptionNegativeAmount,
		models.ExceptionOldInvoice,
	}, types)
}

func TestEvaluateIdempotent(t *testing.T) {
	engine := newTestEngine(t, DefaultConfig())

	inv := cleanInvoice()
	inv["total_amount"] = 1700.00

	first, err := engine.Evaluate(inv)
	require.NoError(t, err)
	second, err := engine.Evaluate(inv)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestEvaluateMonotonicity(t *testing.T) {
	engine := newTestEngine(t, DefaultConfig())

	inv := cleanInvoice()
	base, err := engine.Evaluate(inv)
	require.NoError(t, err)

	// pile on more violations one at a time; the count never decreases
	prev := base.ExceptionCount
	steps := []func(){
		func() { inv["total_amount"] = 1700.00 },
		func() { inv["invoice_date"] = "2024-01-01" },
		func() { delete(inv, "invoice_id") },
	}
	for _, step := range steps {
		step()
		result, err := engine.Evaluate(inv)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, result.ExceptionCount, prev)
		prev = result.ExceptionCount
	}
}

func TestEvaluateNilRecord(t *testing.T) {
	engine := newTestEngine(t, DefaultConfig())

	result, err := engine.Evaluate(nil)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, ErrNoInvoiceData)
}

func TestEvaluateRecoversFromPanickedRule(t *testing.T) {
	engine := newTestEngine(t, DefaultConfig())
	engine.rules = append(engine.rules, Evaluator{
		Name: "defective_rule",
		Check: func(*models.InvoiceRecord, Config, time.Time) []models.Finding {
			panic("boom")
		},
	})

	result, err := engine.Evaluate(cleanInvoice())
	require.NoError(t, err, "a defective rule must never abort the validation pass")

	assert.Equal(t, models.RuleFailed, result.ValidationResults["defective_rule"])
	require.Len(t, result.Exceptions, 1)
	f := result.Exceptions[0]
	assert.Equal(t, models.ExceptionEvaluatorError, f.Type)
	assert.Equal(t, models.SeverityHigh, f.Severity)
	assert.True(t, result.RequiresReview)

	// the healthy rules still ran
	assert.Equal(t, models.RulePassed, result.ValidationResults[RuleRequiredFields])
}

func TestNewEngineRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "unknown rule", mutate: func(c *Config) { c.EnabledRules = []string{"made_up_rule"} }},
		{name: "no rules", mutate: func(c *Config) { c.EnabledRules = nil }},
		{name: "zero threshold", mutate: func(c *Config) { c.LargeAmountThreshold = 0 }},
		{name: "negative tolerance", mutate: func(c *Config) { c.AmountTolerancePercent = -1 }},
		{name: "zero age", mutate: func(c *Config) { c.MaxInvoiceAgeDays = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			_, err := NewEngine(cfg, zap.NewNop())
			assert.Error(t, err)
		})
	}
}

func TestEngineRuleOrderIndependentOfConfigOrder(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EnabledRules = []string{RuleDateValidation, RuleRequiredFields, RuleAmountValidation}
	engine := newTestEngine(t, cfg)

	assert.Equal(t, []string{RuleRequiredFields, RuleAmountValidation, RuleDateValidation},
		engine.RuleNames())
}
