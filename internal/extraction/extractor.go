package extraction

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/consulevent-rohanchaudhari/Invoice-accelerator/internal/models"
)

// Confidence assigned to entities found via a labeled pattern ("Invoice
// Number: INV-001") versus a looser fallback pattern. Downstream synthesis
// is gated on the per-field thresholds in the config.
const (
	labeledConfidence  = 0.97
	fallbackConfidence = 0.80
)

// Extractor pulls invoice entities out of document text using labeled-field
// patterns and scores each with a confidence. Fields that miss their
// configured threshold are queued for generative synthesis.
type Extractor struct {
	thresholds   map[string]float64
	maxTextChars int
	logger       *zap.Logger
}

// NewExtractor creates an extractor with per-field confidence thresholds.
// maxTextChars caps the raw text carried on the result for downstream
// synthesis and persistence; zero or negative means no cap.
func NewExtractor(thresholds map[string]float64, maxTextChars int, logger *zap.Logger) *Extractor {
	return &Extractor{
		thresholds:   thresholds,
		maxTextChars: maxTextChars,
		logger:       logger,
	}
}

type fieldPattern struct {
	field    string
	re       *regexp.Regexp
	numeric  bool
	fallback bool
}

var fieldPatterns = []fieldPattern{
	{
		field: models.FieldInvoiceID,
		re:    regexp.MustCompile(`(?i)invoice\s*(?:no\.?|number|id|#)\s*[:#]?\s*([A-Za-z0-9][A-Za-z0-9\-/]*)`),
	},
	{
		field: models.FieldPurchaseOrderNumber,
		re:    regexp.MustCompile(`(?i)(?:purchase\s*order|p\.?\s*o\.?)\s*(?:no\.?|number|#)?\s*[:#]?\s*([A-Za-z0-9][A-Za-z0-9\-]*)`),
	},
	{
		field: models.FieldInvoiceDate,
		re:    regexp.MustCompile(`(?i)invoice\s*date\s*[:#]?\s*(\d{4}-\d{2}-\d{2}|\d{1,2}/\d{1,2}/\d{4})`),
	},
	{
		field: models.FieldSupplierName,
		re:    regexp.MustCompile(`(?im)^\s*(?:supplier|vendor|bill(?:ed)?\s*from|from)\s*[:]\s*([^\r\n]+)`),
	},
	// Amount labels are anchored to line starts so "Subtotal" never feeds
	// the total pattern and "Tax Rate" never feeds the tax-amount one.
	{
		field:   models.FieldTotalAmount,
		re:      regexp.MustCompile(`(?im)^\s*(?:grand\s*total|total(?:\s*amount)?(?:\s*due)?|amount\s*due)\s*[:]?\s*[$€£¥]?\s*([\d,]+(?:\.\d+)?)`),
		numeric: true,
	},
	{
		field:   models.FieldNetAmount,
		re:      regexp.MustCompile(`(?im)^\s*(?:sub\s*-?\s*total|net\s*amount)\s*[:]?\s*[$€£¥]?\s*([\d,]+(?:\.\d+)?)`),
		numeric: true,
	},
	{
		field:   models.FieldTotalTaxAmount,
		re:      regexp.MustCompile(`(?im)^\s*(?:sales\s*tax|tax|vat|gst)(?:\s*amount)?\s*(?:\([^)]*\))?\s*[:]?\s*[$€£¥]?\s*([\d,]+(?:\.\d+)?)`),
		numeric: true,
	},
	{
		field: models.FieldCurrency,
		re:    regexp.MustCompile(`(?i)currency\s*[:]\s*([A-Z]{3})`),
	},
	{
		field:    models.FieldCurrency,
		re:       regexp.MustCompile(`\b(USD|EUR|GBP|CNY|JPY|INR|CAD|AUD)\b`),
		fallback: true,
	},
}

// ExtractFromText runs the entity patterns over document text
func (e *Extractor) ExtractFromText(text string) *models.ExtractionResult {
	result := &models.ExtractionResult{
		Entities:         make(map[string]any),
		ConfidenceScores: make(map[string]float64),
		RawText:          text,
	}

	for _, p := range fieldPatterns {
		if _, seen := result.Entities[p.field]; seen {
			continue
		}

		matches := p.re.FindStringSubmatch(text)
		if len(matches) < 2 {
			continue
		}

		value := strings.TrimSpace(matches[1])
		if value == "" {
			continue
		}

		confidence := labeledConfidence
		if p.fallback {
			confidence = fallbackConfidence
		}

		if p.numeric {
			num, err := strconv.ParseFloat(strings.ReplaceAll(value, ",", ""), 64)
			if err != nil {
				continue
			}
			result.Entities[p.field] = num
		} else {
			result.Entities[p.field] = value
		}
		result.ConfidenceScores[p.field] = confidence
	}

	result.LineItems = extractLineItems(text)
	result.NeedsSynthesis = e.lowConfidenceFields(result)

	// Entities are matched against the full document; only the carried
	// text is capped.
	if e.maxTextChars > 0 && len(result.RawText) > e.maxTextChars {
		result.RawText = result.RawText[:e.maxTextChars]
	}

	e.logger.Debug("Entity extraction completed",
		zap.Int("entities", len(result.Entities)),
		zap.Int("line_items", len(result.LineItems)),
		zap.Int("needs_synthesis", len(result.NeedsSynthesis)))

	return result
}

// ExtractFromPDF extracts the document text and runs entity extraction
func (e *Extractor) ExtractFromPDF(pdfPath string) (*models.ExtractionResult, error) {
	text, err := TextFromPDF(pdfPath)
	if err != nil {
		e.logger.Error("Failed to extract PDF text",
			zap.String("path", pdfPath),
			zap.Error(err))
		return nil, err
	}

	return e.ExtractFromText(text), nil
}

// Line items come out of PDF text as whitespace-separated columns:
// description, quantity, unit price, and an optional line amount.
var lineItemPattern = regexp.MustCompile(`(?m)^[ \t]*(\S(?:.*?\S)?)[ \t]{2,}(\d+(?:\.\d+)?)[ \t]{2,}[$€£¥]?[ \t]*([\d,]+(?:\.\d+)?)(?:[ \t]{2,}[$€£¥]?[ \t]*[\d,]+(?:\.\d+)?)?[ \t]*$`)

// Summary and header rows share the column layout; skip them by label.
var lineItemLabelSkip = regexp.MustCompile(`(?i)^(?:sub\s*-?\s*total|grand\s*total|total|sales\s*tax|tax|vat|gst|amount\s*due|balance|description|item)\b`)

var productCodePrefix = regexp.MustCompile(`^([A-Z]{2,}[A-Z0-9]*-[A-Z0-9]+)\s+(.+)$`)

func extractLineItems(text string) []models.LineItem {
	var items []models.LineItem
	for _, m := range lineItemPattern.FindAllStringSubmatch(text, -1) {
		desc := strings.TrimSpace(m[1])
		if lineItemLabelSkip.MatchString(desc) {
			continue
		}

		qty, err := strconv.ParseFloat(m[2], 64)
		if err != nil {
			continue
		}
		unit, err := strconv.ParseFloat(strings.ReplaceAll(m[3], ",", ""), 64)
		if err != nil {
			continue
		}

		item := models.LineItem{
			Description: desc,
			Quantity:    qty,
			UnitPrice:   unit,
			RawText:     strings.TrimSpace(m[0]),
			Confidence:  fallbackConfidence,
		}
		if pc := productCodePrefix.FindStringSubmatch(desc); pc != nil {
			item.ProductCode = pc[1]
			item.Description = strings.TrimSpace(pc[2])
		}
		items = append(items, item)
	}
	return items
}

// lowConfidenceFields returns every thresholded field that was either not
// extracted at all or extracted below its threshold, ordered by field name
// so the synthesis prompt is stable across runs.
func (e *Extractor) lowConfidenceFields(result *models.ExtractionResult) []models.SynthesisField {
	var fields []models.SynthesisField
	for field, threshold := range e.thresholds {
		confidence := result.ConfidenceScores[field]
		if confidence >= threshold {
			continue
		}
		fields = append(fields, models.SynthesisField{
			Field:        field,
			Confidence:   confidence,
			Threshold:    threshold,
			CurrentValue: result.Entities[field],
		})
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i].Field < fields[j].Field })
	return fields
}
