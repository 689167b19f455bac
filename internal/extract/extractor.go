// Package extract is the boundary to PDF text extraction. The pipeline only
// needs per-page raw text; how it is obtained (external binary, library,
// remote service) stays behind the Extractor interface.
package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/verbatim-labs/pdfvoice/internal/config"
)

// ErrNoText means the document contained no usable selectable text, e.g. a
// scanned/image-only PDF. Terminal; never retried.
var ErrNoText = errors.New("no usable text extracted")

// Extractor produces raw page texts from a PDF file.
type Extractor interface {
	Extract(ctx context.Context, path string) ([]string, error)
}

// New builds the extractor selected by configuration.
func New(cfg config.ExtractorConfig) (Extractor, error) {
	switch cfg.Mode {
	case "mock":
		return NewMockExtractor(cfg.MockText), nil
	case "exec":
		return NewExecExtractor(cfg.Command)
	default:
		return nil, fmt.Errorf("unknown extractor mode %q", cfg.Mode)
	}
}

// usable reports whether any page carries non-whitespace text.
func usable(pages []string) bool {
	for _, p := range pages {
		if strings.TrimSpace(p) != "" {
			return true
		}
	}
	return false
}
