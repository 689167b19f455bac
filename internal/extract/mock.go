package extract

import "context"

type mockExtractor struct {
	text string
}

// NewMockExtractor returns the configured text as a single page regardless
// of the requested path. Empty text reproduces the no-text failure.
func NewMockExtractor(text string) Extractor {
	return &mockExtractor{text: text}
}

func (m *mockExtractor) Extract(ctx context.Context, _ string) ([]string, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	pages := []string{m.text}
	if !usable(pages) {
		return nil, ErrNoText
	}
	return pages, nil
}
