package synth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// scriptedSynth plays back a fixed sequence of outcomes, one per call. A nil
// entry succeeds with audio derived from the request text.
type scriptedSynth struct {
	script []error
	calls  int
}

func (s *scriptedSynth) Synthesize(_ context.Context, req Request) ([]byte, error) {
	var err error
	if s.calls < len(s.script) {
		err = s.script[s.calls]
	}
	s.calls++
	if err != nil {
		return nil, err
	}
	return []byte("audio:" + req.Text), nil
}

func rateLimitErr() error {
	return &Error{HTTPStatus: 429, Message: "Too Many Requests"}
}

// testBatch wires a deterministic batch: no real sleeping, fixed jitter draw.
func testBatch(s Synthesizer, policy Policy, randVal float64) (*Batch, *[]time.Duration) {
	b := NewBatch(s, policy, "en", "", newLogger())
	var sleeps []time.Duration
	b.sleep = func(_ context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return nil
	}
	b.randFloat = func() float64 { return randVal }
	return b, &sleeps
}

func TestRunSucceedsAfterRateLimits(t *testing.T) {
	// Fails with 429 on attempts 1 and 2, succeeds on attempt 3.
	s := &scriptedSynth{script: []error{rateLimitErr(), rateLimitErr(), nil}}
	policy := Policy{Retries: 6, BasePause: 100 * time.Millisecond, Jitter: 40 * time.Millisecond, InterSegmentDelay: 10 * time.Millisecond}
	b, sleeps := testBatch(s, policy, 0)

	var attempts int
	b.OnPart = func(_, a int) { attempts = a }

	parts, err := b.Run(context.Background(), []string{"hello"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(parts) != 1 || string(parts[0].Audio) != "audio:hello" {
		t.Fatalf("unexpected parts: %v", parts)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
	if s.calls != 3 {
		t.Fatalf("expected 3 synthesis calls, got %d", s.calls)
	}
	// Rate-limit backoff uses the current attempt as exponent: 2^1, 2^2.
	want := []time.Duration{200 * time.Millisecond, 400 * time.Millisecond, 10 * time.Millisecond}
	assertSleeps(t, *sleeps, want)
}

func TestRunGenericErrorBackoff(t *testing.T) {
	s := &scriptedSynth{script: []error{errors.New("boom"), errors.New("boom"), nil}}
	policy := Policy{Retries: 6, BasePause: 100 * time.Millisecond, Jitter: 40 * time.Millisecond, InterSegmentDelay: 10 * time.Millisecond}
	b, sleeps := testBatch(s, policy, 0)

	if _, err := b.Run(context.Background(), []string{"x"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Generic backoff uses attempt-1 as exponent: 2^0, 2^1.
	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 10 * time.Millisecond}
	assertSleeps(t, *sleeps, want)
}

func TestJitterBounds(t *testing.T) {
	policy := Policy{Retries: 2, BasePause: 100 * time.Millisecond, Jitter: 40 * time.Millisecond}
	b, _ := testBatch(&scriptedSynth{}, policy, 0.5)

	// Rate limit: base*2^attempt + U(0, 2*jitter); draw of 0.5 adds jitter.
	if got, want := b.backoff(1, true), 200*time.Millisecond+40*time.Millisecond; got != want {
		t.Fatalf("rate-limit backoff = %v, want %v", got, want)
	}
	// Generic: base*2^(attempt-1) + U(0, jitter); draw of 0.5 adds jitter/2.
	if got, want := b.backoff(1, false), 100*time.Millisecond+20*time.Millisecond; got != want {
		t.Fatalf("generic backoff = %v, want %v", got, want)
	}
}

func TestRunExhaustsRetries(t *testing.T) {
	boom := errors.New("persistent failure")
	s := &scriptedSynth{script: []error{boom, boom, boom, boom}}
	policy := Policy{Retries: 3, BasePause: 50 * time.Millisecond, Jitter: 0, InterSegmentDelay: 5 * time.Millisecond}
	b, _ := testBatch(s, policy, 0)

	parts, err := b.Run(context.Background(), []string{"first", "never reached"})
	if parts != nil {
		t.Fatalf("expected no parts on batch failure, got %v", parts)
	}
	var batchErr *BatchError
	if !errors.As(err, &batchErr) {
		t.Fatalf("expected BatchError, got %v", err)
	}
	if batchErr.Segment != 0 {
		t.Fatalf("expected failing segment 0, got %d", batchErr.Segment)
	}
	if batchErr.Attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", batchErr.Attempts)
	}
	if !errors.Is(err, boom) {
		t.Fatalf("expected last error to be surfaced, got %v", err)
	}
	if s.calls != 3 {
		t.Fatalf("expected synthesis stopped after retry budget, got %d calls", s.calls)
	}
}

func TestRunFailureOnLaterSegment(t *testing.T) {
	boom := errors.New("down")
	s := &scriptedSynth{script: []error{nil, boom, boom}}
	policy := Policy{Retries: 2, BasePause: time.Millisecond}
	b, _ := testBatch(s, policy, 0)

	parts, err := b.Run(context.Background(), []string{"ok", "bad"})
	if parts != nil {
		t.Fatalf("expected no partial output, got %d parts", len(parts))
	}
	var batchErr *BatchError
	if !errors.As(err, &batchErr) {
		t.Fatalf("expected BatchError, got %v", err)
	}
	if batchErr.Segment != 1 {
		t.Fatalf("expected failing segment 1, got %d", batchErr.Segment)
	}
}

func TestRunPreservesOrder(t *testing.T) {
	s := &scriptedSynth{}
	b, _ := testBatch(s, Policy{Retries: 1}, 0)

	segments := []string{"a", "b", "c", "d"}
	parts, err := b.Run(context.Background(), segments)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(parts) != len(segments) {
		t.Fatalf("expected %d parts, got %d", len(segments), len(parts))
	}
	for i, part := range parts {
		if part.Index != i {
			t.Fatalf("part %d has index %d", i, part.Index)
		}
		if want := fmt.Sprintf("audio:%s", segments[i]); string(part.Audio) != want {
			t.Fatalf("part %d audio %q, want %q", i, part.Audio, want)
		}
	}
}

func TestRunEmptyInput(t *testing.T) {
	b, sleeps := testBatch(&scriptedSynth{}, Policy{}, 0)
	parts, err := b.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(parts) != 0 {
		t.Fatalf("expected no parts, got %v", parts)
	}
	if len(*sleeps) != 0 {
		t.Fatalf("expected no sleeps, got %v", *sleeps)
	}
}

func TestSleepAbortsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sleepContext(ctx, time.Minute); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func assertSleeps(t *testing.T, got, want []time.Duration) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("expected %d sleeps %v, got %v", len(want), want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sleep %d = %v, want %v", i, got[i], want[i])
		}
	}
}
