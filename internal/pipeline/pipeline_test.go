package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/verbatim-labs/pdfvoice/internal/config"
	"github.com/verbatim-labs/pdfvoice/internal/extract"
	"github.com/verbatim-labs/pdfvoice/internal/jobstore"
	"github.com/verbatim-labs/pdfvoice/internal/synth"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

type stubSynth struct {
	err   error
	calls int
}

func (s *stubSynth) Synthesize(_ context.Context, req synth.Request) ([]byte, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return []byte("AUDIO:" + req.Text), nil
}

func testConfig(t *testing.T, maxChars int) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Output.Dir = t.TempDir()
	cfg.Synthesis.MaxChars = maxChars
	cfg.Synthesis.Retries = 2
	cfg.Synthesis.BasePauseMS = 1
	cfg.Synthesis.JitterMS = 0
	cfg.Synthesis.InterSegmentDelayMS = 0
	return cfg
}

func newTestPipeline(t *testing.T, cfg config.Config, text string, synthesizer synth.Synthesizer) *Pipeline {
	t.Helper()
	store, err := jobstore.Open(context.Background(), config.JobStoreConfig{RetentionMode: "ephemeral"}, newLogger())
	if err != nil {
		t.Fatalf("open job store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return New(cfg, extract.NewMockExtractor(text), synthesizer, store, nil, newLogger())
}

func TestRunMultiPartWithArchive(t *testing.T) {
	cfg := testConfig(t, 15)
	text := "Sentence one. Sentence two. Sentence three."
	p := newTestPipeline(t, cfg, text, &stubSynth{})

	result, err := p.Run(context.Background(), Job{ID: "job-1", Path: "doc.pdf"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Segments != 3 {
		t.Fatalf("expected 3 segments, got %d", result.Segments)
	}
	if len(result.Parts) != 3 {
		t.Fatalf("expected 3 parts, got %v", result.Parts)
	}

	wantAudio := []string{"AUDIO:Sentence one.", "AUDIO:Sentence two.", "AUDIO:Sentence three."}
	for i, path := range result.Parts {
		if got := filepath.Base(path); got != []string{"part_001.mp3", "part_002.mp3", "part_003.mp3"}[i] {
			t.Fatalf("part %d named %q", i, got)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("read part %d: %v", i, err)
		}
		if string(data) != wantAudio[i] {
			t.Fatalf("part %d content %q, want %q", i, data, wantAudio[i])
		}
	}

	if result.Archive == "" {
		t.Fatal("expected archive for multi-part job")
	}
	if got := filepath.Base(result.Archive); got != "doc_parts.zip" {
		t.Fatalf("archive named %q", got)
	}
	if _, err := os.Stat(result.Archive); err != nil {
		t.Fatalf("archive missing: %v", err)
	}
}

func TestRunSinglePartNoArchive(t *testing.T) {
	cfg := testConfig(t, 1200)
	p := newTestPipeline(t, cfg, "Hello there.", &stubSynth{})

	result, err := p.Run(context.Background(), Job{ID: "job-2", Path: "hello.pdf"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Parts) != 1 {
		t.Fatalf("expected single part, got %v", result.Parts)
	}
	if result.Archive != "" {
		t.Fatalf("expected no archive for single part, got %q", result.Archive)
	}
}

func TestRunNormalizesExtractionNoise(t *testing.T) {
	cfg := testConfig(t, 1200)
	s := &stubSynth{}
	p := newTestPipeline(t, cfg, "The news-\npaper arrived\ntoday.", s)

	result, err := p.Run(context.Background(), Job{ID: "job-3", Path: "news.pdf"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, err := os.ReadFile(result.Parts[0])
	if err != nil {
		t.Fatalf("read part: %v", err)
	}
	if string(data) != "AUDIO:The newspaper arrived today." {
		t.Fatalf("unexpected synthesized text: %q", data)
	}
}

func TestRunFailsOnEmptyExtraction(t *testing.T) {
	cfg := testConfig(t, 1200)
	p := newTestPipeline(t, cfg, "   \n ", &stubSynth{})

	_, err := p.Run(context.Background(), Job{ID: "job-4", Path: "scanned.pdf"})
	if !errors.Is(err, extract.ErrNoText) {
		t.Fatalf("expected ErrNoText, got %v", err)
	}
	if _, statErr := os.Stat(filepath.Join(cfg.Output.Dir, "job-4")); !os.IsNotExist(statErr) {
		t.Fatalf("expected no output dir for failed job")
	}
}

func TestRunFailsAtomicallyOnSynthesisExhaustion(t *testing.T) {
	cfg := testConfig(t, 15)
	boom := errors.New("backend down")
	s := &stubSynth{err: boom}
	p := newTestPipeline(t, cfg, "Sentence one. Sentence two.", s)

	_, err := p.Run(context.Background(), Job{ID: "job-5", Path: "doc.pdf"})
	var batchErr *synth.BatchError
	if !errors.As(err, &batchErr) {
		t.Fatalf("expected BatchError, got %v", err)
	}
	if batchErr.Segment != 0 {
		t.Fatalf("expected failure at segment 0, got %d", batchErr.Segment)
	}
	if s.calls != cfg.Synthesis.Retries {
		t.Fatalf("expected %d attempts, got %d", cfg.Synthesis.Retries, s.calls)
	}
	if _, statErr := os.Stat(filepath.Join(cfg.Output.Dir, "job-5")); !os.IsNotExist(statErr) {
		t.Fatalf("expected no output for failed job")
	}
}
