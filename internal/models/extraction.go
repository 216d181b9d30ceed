package models

// ExtractionResult holds the output of the document extraction step:
// entity values keyed by field name, per-field confidence scores, and the
// raw document text for downstream synthesis.
type ExtractionResult struct {
	Entities         map[string]any     `json:"entities"`
	ConfidenceScores map[string]float64 `json:"confidence_scores"`
	RawText          string             `json:"raw_text"`
	LineItems        []LineItem         `json:"line_items,omitempty"`
	NeedsSynthesis   []SynthesisField   `json:"needs_synthesis"`
}

// SynthesisField marks one extracted field queued for generative refinement,
// with the confidence it was extracted at and the threshold it is held to.
type SynthesisField struct {
	Field        string  `json:"field"`
	Confidence   float64 `json:"confidence"`
	Threshold    float64 `json:"threshold"`
	CurrentValue any     `json:"current_value"`
}

// LineItem is one invoice line extracted from the document.
type LineItem struct {
	Description string  `json:"description,omitempty"`
	Quantity    float64 `json:"quantity,omitempty"`
	UnitPrice   float64 `json:"unit_price,omitempty"`
	ProductCode string  `json:"product_code,omitempty"`
	RawText     string  `json:"raw_text,omitempty"`
	Confidence  float64 `json:"confidence,omitempty"`
}

// IntakeAttachment is a PDF pulled from an inbound email, staged for the
// processing pipeline.
type IntakeAttachment struct {
	ID          int64  `json:"id"`
	MessageID   string `json:"message_id"`
	Sender      string `json:"sender"`
	Subject     string `json:"subject"`
	Filename    string `json:"filename"`
	StoragePath string `json:"storage_path"`
	Status      string `json:"status"` // PENDING, PROCESSING, PROCESSED, FAILED
	LastError   string `json:"last_error,omitempty"`
}

// Intake attachment lifecycle states.
const (
	IntakePending    = "PENDING"
	IntakeProcessing = "PROCESSING"
	IntakeProcessed  = "PROCESSED"
	IntakeFailed     = "FAILED"
)
