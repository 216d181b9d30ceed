package models

// Severity levels for exception findings. Severity drives review routing:
// any high finding sends the invoice to human review.
const (
	SeverityHigh   = "high"
	SeverityMedium = "medium"
	SeverityLow    = "low"
)

// Exception type constants
const (
	ExceptionMissingRequiredFields   = "MISSING_REQUIRED_FIELDS"
	ExceptionFutureDate              = "FUTURE_DATE"
	ExceptionOldInvoice              = "OLD_INVOICE"
	ExceptionInvalidDateFormat       = "INVALID_DATE_FORMAT"
	ExceptionAmountMismatch          = "AMOUNT_MISMATCH"
	ExceptionNegativeAmount          = "NEGATIVE_AMOUNT"
	ExceptionLargeAmount             = "LARGE_AMOUNT"
	ExceptionUnusualTaxRate          = "UNUSUAL_TAX_RATE"
	ExceptionIncorrectTaxCalculation = "INCORRECT_TAX_CALCULATION"
	ExceptionExceedsPOAmount         = "EXCEEDS_PO_AMOUNT"
	ExceptionInsufficientPOFunds     = "INSUFFICIENT_PO_FUNDS"
	ExceptionPOReceivingNotComplete  = "PO_RECEIVING_NOT_COMPLETE"
	ExceptionEvaluatorError          = "EVALUATOR_ERROR"
)

// Finding represents one business-rule violation detected on an invoice.
// Findings are value objects: produced fresh per evaluation, never mutated.
// Persistence assigns identity when a finding is stored as an exception.
type Finding struct {
	Type     string         `json:"type"`
	Severity string         `json:"severity"`
	Message  string         `json:"message"`
	Details  map[string]any `json:"details,omitempty"`
}

// Rule outcome values recorded in ValidationResult.ValidationResults.
const (
	RulePassed = "passed"
	RuleFailed = "failed"
)

// ValidationResult is the outcome of running all configured rules over one
// invoice. Created once per evaluation and returned to the caller; the
// persistence layer routes the record to the clean or exception table based
// on IsException.
type ValidationResult struct {
	IsException       bool              `json:"is_exception"`
	RequiresReview    bool              `json:"requires_review"`
	Exceptions        []Finding         `json:"exceptions"`
	ExceptionCount    int               `json:"exception_count"`
	HighSeverityCount int               `json:"high_severity_count"`
	ValidationResults map[string]string `json:"validation_results"`
}
