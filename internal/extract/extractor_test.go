package extract

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/verbatim-labs/pdfvoice/internal/config"
)

func TestNewSelectsMode(t *testing.T) {
	if _, err := New(config.ExtractorConfig{Mode: "mock", MockText: "hi"}); err != nil {
		t.Fatalf("mock mode: %v", err)
	}
	if _, err := New(config.ExtractorConfig{Mode: "exec", Command: "pdftotext -layout"}); err != nil {
		t.Fatalf("exec mode: %v", err)
	}
	if _, err := New(config.ExtractorConfig{Mode: "carrier-pigeon"}); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}

func TestMockExtractor(t *testing.T) {
	pages, err := NewMockExtractor("Page text.").Extract(context.Background(), "any.pdf")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pages) != 1 || pages[0] != "Page text." {
		t.Fatalf("unexpected pages: %v", pages)
	}
}

func TestMockExtractorNoText(t *testing.T) {
	_, err := NewMockExtractor("  \n ").Extract(context.Background(), "scanned.pdf")
	if !errors.Is(err, ErrNoText) {
		t.Fatalf("expected ErrNoText, got %v", err)
	}
}

func TestExecExtractorRejectsEmptyCommand(t *testing.T) {
	if _, err := NewExecExtractor("   "); err == nil {
		t.Fatal("expected error for empty command")
	}
}

func TestExecExtractorAppendsPathAndStdoutMarker(t *testing.T) {
	// echo simply prints its arguments, so the output shows the call shape.
	ex, err := NewExecExtractor("echo")
	if err != nil {
		t.Fatalf("build extractor: %v", err)
	}
	pages, err := ex.Extract(context.Background(), "report.pdf")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pages) != 1 {
		t.Fatalf("expected 1 page, got %d", len(pages))
	}
	if got := strings.TrimSpace(pages[0]); got != "report.pdf -" {
		t.Fatalf("unexpected invocation output: %q", got)
	}
}

func TestExecExtractorCommandFailure(t *testing.T) {
	ex, err := NewExecExtractor("false")
	if err != nil {
		t.Fatalf("build extractor: %v", err)
	}
	if _, err := ex.Extract(context.Background(), "report.pdf"); err == nil {
		t.Fatal("expected error from failing command")
	}
}
