package synth

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Policy controls retry pacing for the batch driver.
type Policy struct {
	// Retries is the number of attempts per segment.
	Retries int
	// BasePause is the base of the exponential backoff.
	BasePause time.Duration
	// Jitter is the maximum random addition to a generic backoff. Rate-limit
	// backoffs draw from twice this range.
	Jitter time.Duration
	// InterSegmentDelay is the pause after each successful call, to avoid
	// bursting the remote service.
	InterSegmentDelay time.Duration
}

// DefaultPolicy mirrors the tuning that survives sustained runs against a
// throttled public synthesis endpoint.
func DefaultPolicy() Policy {
	return Policy{
		Retries:           6,
		BasePause:         1500 * time.Millisecond,
		Jitter:            time.Second,
		InterSegmentDelay: 900 * time.Millisecond,
	}
}

// BatchError reports which segment exhausted its retry budget.
type BatchError struct {
	Segment  int
	Attempts int
	Err      error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("synthesis failed for segment %d after %d attempts: %v", e.Segment, e.Attempts, e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }

// Batch drives sequential synthesis of a list of segments with retry and
// backoff. Calls are issued strictly one at a time to stay under the remote
// service's rate limit.
type Batch struct {
	synth    Synthesizer
	policy   Policy
	language string
	voice    string
	logger   *slog.Logger

	// OnPart, when set, is invoked after each segment succeeds. Used for
	// progress reporting; must not block for long.
	OnPart func(index, attempts int)

	// sleep and randFloat are replaceable for deterministic tests.
	sleep     func(ctx context.Context, d time.Duration) error
	randFloat func() float64

	attempts metric.Int64Counter
	backoffs metric.Float64Histogram
}

// NewBatch creates a batch driver. Zero policy fields fall back to defaults.
func NewBatch(synth Synthesizer, policy Policy, language, voice string, logger *slog.Logger) *Batch {
	def := DefaultPolicy()
	if policy.Retries <= 0 {
		policy.Retries = def.Retries
	}
	if policy.BasePause <= 0 {
		policy.BasePause = def.BasePause
	}
	if policy.Jitter < 0 {
		policy.Jitter = def.Jitter
	}
	if policy.InterSegmentDelay < 0 {
		policy.InterSegmentDelay = def.InterSegmentDelay
	}

	b := &Batch{
		synth:     synth,
		policy:    policy,
		language:  language,
		voice:     voice,
		logger:    logger.With(slog.String("component", "synth-batch")),
		sleep:     sleepContext,
		randFloat: rand.Float64,
	}

	meter := otel.Meter("pdfvoice/synth")
	if counter, err := meter.Int64Counter("synth.attempts",
		metric.WithDescription("Synthesis call attempts by outcome")); err == nil {
		b.attempts = counter
	}
	if hist, err := meter.Float64Histogram("synth.backoff_seconds",
		metric.WithDescription("Backoff delays before synthesis retries")); err == nil {
		b.backoffs = hist
	}
	return b
}

// Run synthesizes every segment in order and returns one audio part per
// segment. The result is all-or-nothing: if any segment exhausts its retry
// budget, no parts are returned and the error identifies the segment.
func (b *Batch) Run(ctx context.Context, segments []string) ([]Part, error) {
	parts := make([]Part, 0, len(segments))
	for idx, seg := range segments {
		audio, attempts, err := b.synthesizeSegment(ctx, idx, seg)
		if err != nil {
			return nil, &BatchError{Segment: idx, Attempts: attempts, Err: err}
		}
		parts = append(parts, Part{Index: idx, Audio: audio})
		if b.OnPart != nil {
			b.OnPart(idx, attempts)
		}
	}
	return parts, nil
}

func (b *Batch) synthesizeSegment(ctx context.Context, idx int, text string) ([]byte, int, error) {
	req := Request{Text: text, Language: b.language, Voice: b.voice}

	var lastErr error
	for attempt := 1; attempt <= b.policy.Retries; attempt++ {
		audio, err := b.synth.Synthesize(ctx, req)
		if err == nil {
			b.count(ctx, "success")
			if err := b.sleep(ctx, b.policy.InterSegmentDelay); err != nil {
				return nil, attempt, err
			}
			return audio, attempt, nil
		}
		lastErr = err

		rateLimited := IsRateLimit(err)
		wait := b.backoff(attempt, rateLimited)
		if rateLimited {
			b.count(ctx, "rate_limited")
		} else {
			b.count(ctx, "error")
		}
		if b.backoffs != nil {
			b.backoffs.Record(ctx, wait.Seconds())
		}
		b.logger.Warn("synthesis attempt failed",
			slog.Int("segment", idx),
			slog.Int("attempt", attempt),
			slog.Bool("rate_limited", rateLimited),
			slog.Duration("backoff", wait),
			slog.String("error", err.Error()))

		if err := b.sleep(ctx, wait); err != nil {
			return nil, attempt, err
		}
	}
	return nil, b.policy.Retries, lastErr
}

// backoff computes the delay before the next attempt. Rate-limit failures
// back off on 2^attempt with doubled jitter; other failures on 2^(attempt-1)
// with single jitter.
func (b *Batch) backoff(attempt int, rateLimited bool) time.Duration {
	base := float64(b.policy.BasePause)
	jitter := float64(b.policy.Jitter)
	if rateLimited {
		return time.Duration(base*math.Pow(2, float64(attempt)) + b.randFloat()*2*jitter)
	}
	return time.Duration(base*math.Pow(2, float64(attempt-1)) + b.randFloat()*jitter)
}

func (b *Batch) count(ctx context.Context, outcome string) {
	if b.attempts != nil {
		b.attempts.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
