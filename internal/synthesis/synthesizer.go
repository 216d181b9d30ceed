package synthesis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/consulevent-rohanchaudhari/Invoice-accelerator/internal/models"
)

// maxDocumentChars caps how much raw document text goes into the prompt.
const maxDocumentChars = 3000

// Config holds the model settings for field synthesis. BaseURL may be
// empty for the default OpenAI endpoint.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	MaxTokens   int
	Timeout     time.Duration
}

// Synthesizer refines low-confidence extracted fields by re-reading the
// document text with a language model. Extraction stays authoritative for
// fields it got right; only the queued fields may be overwritten.
type Synthesizer struct {
	client    *openai.Client
	model     string
	temp      float32
	maxTokens int
	timeout   time.Duration
	logger    *zap.Logger
}

// NewSynthesizer creates a synthesizer
func NewSynthesizer(cfg Config, logger *zap.Logger) *Synthesizer {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &Synthesizer{
		client:    openai.NewClientWithConfig(clientCfg),
		model:     cfg.Model,
		temp:      cfg.Temperature,
		maxTokens: cfg.MaxTokens,
		timeout:   cfg.Timeout,
		logger:    logger,
	}
}

// Refine asks the model to re-derive the queued fields from the document
// text and merges any improved values over the extracted entities. The
// merged map is a copy; the input entities are not modified.
func (s *Synthesizer) Refine(ctx context.Context, rawText string, fields []models.SynthesisField, entities map[string]any) (map[string]any, error) {
	merged := make(map[string]any, len(entities))
	for k, v := range entities {
		merged[k] = v
	}

	if len(fields) == 0 {
		return merged, nil
	}

	prompt := s.buildPrompt(rawText, fields)

	s.logger.Debug("Sending synthesis request",
		zap.Int("field_count", len(fields)),
		zap.String("model", s.model))

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       s.model,
		Temperature: s.temp,
		MaxTokens:   s.maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "You are an expert at reading supplier invoices. Re-derive the requested fields from the document text with high accuracy. Always respond with valid JSON.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
	})
	if err != nil {
		s.logger.Error("Synthesis API call failed", zap.Error(err))
		return nil, fmt.Errorf("synthesis API call failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from synthesis model")
	}

	improved, err := parseFieldValues(resp.Choices[0].Message.Content)
	if err != nil {
		s.logger.Error("Failed to parse synthesis response",
			zap.Error(err),
			zap.String("content", resp.Choices[0].Message.Content))
		return nil, err
	}

	applied := 0
	for _, f := range fields {
		value, ok := improved[f.Field]
		if !ok || value == nil {
			continue
		}
		if str, isStr := value.(string); isStr && strings.TrimSpace(str) == "" {
			continue
		}
		merged[f.Field] = value
		applied++
	}

	s.logger.Info("Synthesis completed",
		zap.Int("requested", len(fields)),
		zap.Int("applied", applied))

	return merged, nil
}

func (s *Synthesizer) buildPrompt(rawText string, fields []models.SynthesisField) string {
	if len(rawText) > maxDocumentChars {
		rawText = rawText[:maxDocumentChars]
	}

	var sb strings.Builder
	sb.WriteString("The fields below were extracted from an invoice with low confidence. Re-derive each one from the document text.\n\nFields:\n")
	for _, f := range fields {
		fmt.Fprintf(&sb, "- %s (extraction confidence %.2f, current value: %v)\n",
			f.Field, f.Confidence, f.CurrentValue)
	}

	sb.WriteString("\nDocument text:\n---\n")
	sb.WriteString(rawText)
	sb.WriteString("\n---\n\n")
	sb.WriteString(`Respond with ONLY a JSON object mapping field names to values. Use numbers for amounts (no currency symbols), YYYY-MM-DD for dates, and null for fields the document does not contain. Do not guess values that are not in the text.`)

	return sb.String()
}

// parseFieldValues parses the model response, falling back to brace matching
// when the JSON arrives wrapped in markdown fences or prose.
func parseFieldValues(content string) (map[string]any, error) {
	var values map[string]any
	if err := json.Unmarshal([]byte(content), &values); err == nil {
		return values, nil
	}

	start := strings.IndexByte(content, '{')
	if start < 0 {
		return nil, fmt.Errorf("no JSON object in synthesis response")
	}
	end := findJSONEnd(content, start)
	if end <= start {
		return nil, fmt.Errorf("unterminated JSON object in synthesis response")
	}

	if err := json.Unmarshal([]byte(content[start:end]), &values); err != nil {
		return nil, fmt.Errorf("failed to parse synthesis response: %w", err)
	}
	return values, nil
}

// findJSONEnd returns the index just past the brace matching content[start],
// ignoring braces inside strings.
func findJSONEnd(content string, start int) int {
	braceCount := 0
	inString := false
	escapeNext := false

	for i := start; i < len(content); i++ {
		char := content[i]

		if escapeNext {
			escapeNext = false
			continue
		}
		if char == '\\' {
			escapeNext = true
			continue
		}
		if char == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}

		if char == '{' {
			braceCount++
		} else if char == '}' {
			braceCount--
			if braceCount == 0 {
				return i + 1
			}
		}
	}

	return -1
}
