// Command analyzefile extracts a document and runs one analysis, printing the
// result as JSON.
//
//	go run ./cmd/analyzefile -file notice.pdf -situation f1_opt_apply -locale ko
//	pbpaste | go run ./cmd/analyzefile
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/term"

	"visadoc-backend/internal/analysis"
	"visadoc-backend/internal/bootstrap"
	"visadoc-backend/internal/extract"
	"visadoc-backend/internal/shared/config"
)

func main() {
	cfg := config.Load()

	filePath := flag.String("file", "", "Path to document (pdf, docx or txt); reads stdin when omitted")
	situationRaw := flag.String("situation", string(analysis.DefaultSituation), "Visa situation")
	localeRaw := flag.String("locale", string(analysis.LocaleEnglish), "Output locale (en, ko, zh, hi, ja)")
	outPath := flag.String("out", "", "Path to write JSON output (optional)")
	provider := flag.String("provider", cfg.LLMProvider, "LLM provider (gemini, openai)")
	model := flag.String("model", cfg.LLMModel, "LLM model")
	flag.Parse()

	situation, ok := analysis.ParseSituation(*situationRaw)
	if !ok {
		exitErr(fmt.Sprintf("unknown situation %q", *situationRaw))
	}
	locale, ok := analysis.ParseLocale(*localeRaw)
	if !ok {
		exitErr(fmt.Sprintf("unknown locale %q", *localeRaw))
	}

	ctx := context.Background()
	text, err := readDocument(ctx, *filePath, os.Stdin)
	if err != nil {
		exitErr(err.Error())
	}
	if !analysis.DocumentReady(text) {
		exitErr(fmt.Sprintf("document must be at least %d characters", analysis.MinDocumentLength))
	}

	cfg.LLMProvider = *provider
	cfg.LLMModel = *model
	client, err := bootstrap.BuildLLM(cfg)
	if err != nil {
		exitErr(err.Error())
	}

	result, err := analysis.NewPipeline(client, cfg.AnalysisTimeout).Analyze(ctx, situation, text, locale)
	if err != nil {
		var fe *analysis.FailureError
		if errors.As(err, &fe) && fe.Err != nil {
			exitErr(fmt.Sprintf("%s (%v)", fe.Message, fe.Err))
		}
		exitErr(err.Error())
	}

	pretty, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		exitErr(fmt.Sprintf("format json: %v", err))
	}
	pretty = append(pretty, '\n')

	if *outPath != "" {
		if err := os.WriteFile(*outPath, pretty, 0o644); err != nil {
			exitErr(fmt.Sprintf("write output: %v", err))
		}
	}
	if _, err := os.Stdout.Write(pretty); err != nil {
		exitErr(fmt.Sprintf("write stdout: %v", err))
	}
}

// readDocument loads text from path, or from stdin when path is empty and
// stdin is not a terminal.
func readDocument(ctx context.Context, path string, stdin *os.File) (string, error) {
	if strings.TrimSpace(path) == "" {
		if term.IsTerminal(int(stdin.Fd())) {
			return "", errors.New("no -file given and stdin is a terminal")
		}
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return documentText(ctx, data, "stdin.txt")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	return documentText(ctx, data, filepath.Base(path))
}

func documentText(ctx context.Context, data []byte, fileName string) (string, error) {
	text, err := extract.ExtractText(ctx, bytes.TrimPrefix(data, []byte("\xef\xbb\xbf")), "", fileName)
	if err != nil {
		return "", fmt.Errorf("%s: %w", extract.UserMessage(err), err)
	}
	return text, nil
}

func exitErr(msg string) {
	_, _ = fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}
