package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/consulevent-rohanchaudhari/Invoice-accelerator/internal/config"
	"github.com/consulevent-rohanchaudhari/Invoice-accelerator/internal/extraction"
	"github.com/consulevent-rohanchaudhari/Invoice-accelerator/internal/models"
	"github.com/consulevent-rohanchaudhari/Invoice-accelerator/internal/validation"
)

// Offline pipeline check: runs a document through extraction and validation
// and prints the findings, without touching the database or any API.
func main() {
	file := flag.String("file", "", "Invoice document (.pdf) or plain text (.txt) to validate")
	configPath := flag.String("config", "configs/config.yaml", "Path to config file")
	verbose := flag.Bool("verbose", false, "Verbose output")
	flag.Parse()

	var logger *zap.Logger
	var err error
	if *verbose {
		logger, err = zap.NewDevelopment()
	} else {
		logger = zap.NewNop()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if *file == "" {
		fmt.Fprintln(os.Stderr, "Usage: validate-invoice --file invoice.pdf [--config configs/config.yaml]")
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	extractor := extraction.NewExtractor(cfg.Extraction.ConfidenceThresholds, cfg.Extraction.MaxTextChars, logger)

	var result *models.ExtractionResult
	switch strings.ToLower(filepath.Ext(*file)) {
	case ".pdf":
		result, err = extractor.ExtractFromPDF(*file)
	case ".txt":
		var text []byte
		text, err = os.ReadFile(*file)
		if err == nil {
			result = extractor.ExtractFromText(string(text))
		}
	default:
		err = fmt.Errorf("unsupported file type: %s", filepath.Ext(*file))
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Extraction failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("=== Extracted Entities ===")
	printJSON(result.Entities)

	if len(result.NeedsSynthesis) > 0 {
		fmt.Printf("\n%d field(s) below confidence threshold:\n", len(result.NeedsSynthesis))
		for _, f := range result.NeedsSynthesis {
			fmt.Printf("  - %s (%.2f < %.2f)\n", f.Field, f.Confidence, f.Threshold)
		}
	}

	engine, err := validation.NewEngine(cfg.Validation, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize validation engine: %v\n", err)
		os.Exit(1)
	}

	validationResult, err := engine.Evaluate(result.Entities)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Validation failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("\n=== Validation Result ===")
	printJSON(validationResult)

	if validationResult.IsException {
		fmt.Printf("\nFAIL: %d finding(s), requires review: %v\n",
			validationResult.ExceptionCount, validationResult.RequiresReview)
		os.Exit(2)
	}

	fmt.Println("\nPASS: invoice is clean")
}

func printJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render output: %v\n", err)
		return
	}
	fmt.Println(string(data))
}
