package synth

import (
	"context"
	"fmt"
	"time"
)

type mockSynthesizer struct{}

// NewMockSynthesizer produces placeholder audio without any backend. Useful
// for wiring tests and dry runs.
func NewMockSynthesizer() Synthesizer {
	return &mockSynthesizer{}
}

func (m *mockSynthesizer) Synthesize(ctx context.Context, req Request) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(10 * time.Millisecond):
	}
	return []byte(fmt.Sprintf("mock-audio(lang=%s,len=%d)", req.Language, len(req.Text))), nil
}
