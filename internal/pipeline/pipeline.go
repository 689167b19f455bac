// Package pipeline turns one PDF into ordered spoken-audio parts: extract,
// normalize, segment, synthesize, package. Synthesis is strictly sequential;
// the whole job fails if any segment does.
package pipeline

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/verbatim-labs/pdfvoice/internal/bus"
	"github.com/verbatim-labs/pdfvoice/internal/config"
	"github.com/verbatim-labs/pdfvoice/internal/extract"
	"github.com/verbatim-labs/pdfvoice/internal/jobstore"
	"github.com/verbatim-labs/pdfvoice/internal/protocol"
	"github.com/verbatim-labs/pdfvoice/internal/segment"
	"github.com/verbatim-labs/pdfvoice/internal/synth"
	"github.com/verbatim-labs/pdfvoice/internal/textnorm"
)

const previewChars = 3000

// Job identifies one conversion request.
type Job struct {
	ID       string
	Path     string
	Language string
	Voice    string
	MaxChars int
}

// Result describes where a completed job's audio landed.
type Result struct {
	JobID    string
	Segments int
	Parts    []string
	Archive  string
}

type Pipeline struct {
	cfg       config.Config
	extractor extract.Extractor
	synth     synth.Synthesizer
	store     *jobstore.Store
	bus       *bus.Client
	logger    *slog.Logger
	tracer    trace.Tracer
}

// New assembles a pipeline. busClient may be nil; progress events are then
// simply not published.
func New(cfg config.Config, extractor extract.Extractor, synthesizer synth.Synthesizer, store *jobstore.Store, busClient *bus.Client, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		cfg:       cfg,
		extractor: extractor,
		synth:     synthesizer,
		store:     store,
		bus:       busClient,
		logger:    logger.With(slog.String("component", "pipeline")),
		tracer:    otel.Tracer("pdfvoice/pipeline"),
	}
}

// Run executes the full conversion for one job. On any failure the job is
// terminal: partial audio is discarded and the error names the stage (and
// segment, for synthesis failures).
func (p *Pipeline) Run(ctx context.Context, job Job) (Result, error) {
	if job.Language == "" {
		job.Language = p.cfg.Synthesis.Language
	}
	if job.Voice == "" {
		job.Voice = p.cfg.Synthesis.Voice
	}
	if job.MaxChars <= 0 {
		job.MaxChars = p.cfg.Synthesis.MaxChars
	}

	ctx, span := p.tracer.Start(ctx, "pipeline.run",
		trace.WithAttributes(attribute.String("job.id", job.ID)))
	defer span.End()

	started := time.Now()
	p.logger.Info("job started", slog.String("job", job.ID), slog.String("path", job.Path))
	p.recordJob(ctx, job, jobstore.StatusRunning)

	p.progress(job, protocol.JobProgress{Stage: protocol.StageExtract})
	pages, err := p.extractor.Extract(ctx, job.Path)
	if err != nil {
		return Result{}, p.fail(ctx, span, job, protocol.StageExtract, 0, err)
	}

	text := textnorm.Normalize(strings.Join(pages, "\n\n"))
	if text == "" {
		return Result{}, p.fail(ctx, span, job, protocol.StageNormalize, 0, extract.ErrNoText)
	}
	p.progress(job, protocol.JobProgress{Stage: protocol.StageNormalize, Preview: preview(text)})

	segments := segment.Split(text, job.MaxChars)
	span.SetAttributes(attribute.Int("job.segments", len(segments)))
	p.logger.Info("text segmented",
		slog.String("job", job.ID),
		slog.Int("chars", len(text)),
		slog.Int("segments", len(segments)),
		slog.Int("max_chars", job.MaxChars))
	p.progress(job, protocol.JobProgress{Stage: protocol.StageSegment, SegmentsTotal: len(segments)})

	batch := synth.NewBatch(p.synth, synth.PolicyFromConfig(p.cfg.Synthesis), job.Language, job.Voice, p.logger)
	batch.OnPart = func(index, attempts int) {
		p.progress(job, protocol.JobProgress{
			Stage:         protocol.StageSynthesize,
			SegmentsTotal: len(segments),
			SegmentsDone:  index + 1,
		})
		p.recordEvent(ctx, job, protocol.StageSynthesize, fmt.Sprintf("segment %d done in %d attempt(s)", index, attempts))
	}

	parts, err := batch.Run(ctx, segments)
	if err != nil {
		segIdx := 0
		var batchErr *synth.BatchError
		if errors.As(err, &batchErr) {
			segIdx = batchErr.Segment
		}
		return Result{}, p.fail(ctx, span, job, protocol.StageSynthesize, segIdx, err)
	}

	result, err := p.packageParts(job, parts)
	if err != nil {
		return Result{}, p.fail(ctx, span, job, protocol.StagePackage, 0, err)
	}
	result.Segments = len(segments)

	p.recordJob(ctx, job, jobstore.StatusCompleted)
	p.recordEvent(ctx, job, protocol.StagePackage, fmt.Sprintf("%d part(s)", len(result.Parts)))
	p.bus.PublishJSON(protocol.SubjectJobDone, protocol.JobResult{
		JobID:      job.ID,
		Parts:      result.Parts,
		Archive:    result.Archive,
		DurationMS: time.Since(started).Milliseconds(),
		Timestamp:  time.Now().UTC(),
	})
	p.logger.Info("job completed",
		slog.String("job", job.ID),
		slog.Int("parts", len(result.Parts)),
		slog.Duration("duration", time.Since(started)))
	return result, nil
}

// packageParts writes the ordered audio parts to the job's output directory
// and, for multi-part jobs, bundles them into a zip archive. Anything
// already written is removed if a later write fails.
func (p *Pipeline) packageParts(job Job, parts []synth.Part) (Result, error) {
	outDir := filepath.Join(p.cfg.Output.Dir, job.ID)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return Result{}, fmt.Errorf("create output dir: %w", err)
	}

	result := Result{JobID: job.ID}
	for _, part := range parts {
		path := filepath.Join(outDir, fmt.Sprintf("part_%03d.mp3", part.Index+1))
		if err := os.WriteFile(path, part.Audio, 0o644); err != nil {
			p.discard(outDir)
			return Result{}, fmt.Errorf("write audio part %d: %w", part.Index, err)
		}
		result.Parts = append(result.Parts, path)
	}

	if len(result.Parts) > 1 && p.cfg.Output.Archive {
		stem := strings.TrimSuffix(filepath.Base(job.Path), filepath.Ext(job.Path))
		if stem == "" {
			stem = job.ID
		}
		archivePath := filepath.Join(outDir, stem+"_parts.zip")
		if err := writeArchive(archivePath, result.Parts); err != nil {
			p.discard(outDir)
			return Result{}, fmt.Errorf("write archive: %w", err)
		}
		result.Archive = archivePath
	}
	return result, nil
}

func writeArchive(path string, parts []string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	for _, part := range parts {
		w, err := zw.Create(filepath.Base(part))
		if err != nil {
			zw.Close()
			return err
		}
		data, err := os.ReadFile(part)
		if err != nil {
			zw.Close()
			return err
		}
		if _, err := w.Write(data); err != nil {
			zw.Close()
			return err
		}
	}
	return zw.Close()
}

func (p *Pipeline) fail(ctx context.Context, span trace.Span, job Job, stage string, segmentIdx int, err error) error {
	span.RecordError(err)
	p.logger.Error("job failed",
		slog.String("job", job.ID),
		slog.String("stage", stage),
		slog.String("error", err.Error()))
	p.recordJob(ctx, job, jobstore.StatusFailed)
	p.recordEvent(ctx, job, stage, err.Error())
	p.bus.PublishJSON(protocol.SubjectJobFailed, protocol.JobFailure{
		JobID:     job.ID,
		Stage:     stage,
		Error:     err.Error(),
		Segment:   segmentIdx,
		Timestamp: time.Now().UTC(),
	})
	return fmt.Errorf("%s: %w", stage, err)
}

func (p *Pipeline) discard(dir string) {
	if err := os.RemoveAll(dir); err != nil {
		p.logger.Warn("failed to remove partial output", slog.String("dir", dir), slog.String("error", err.Error()))
	}
}

func (p *Pipeline) progress(job Job, msg protocol.JobProgress) {
	msg.JobID = job.ID
	msg.Timestamp = time.Now().UTC()
	p.bus.PublishJSON(protocol.SubjectJobProgress, msg)
}

func (p *Pipeline) recordJob(ctx context.Context, job Job, status string) {
	if p.store == nil {
		return
	}
	if err := p.store.AppendJob(ctx, job.ID, job.Path, status); err != nil {
		p.logger.Warn("failed to record job", slog.String("job", job.ID), slog.String("error", err.Error()))
	}
}

func (p *Pipeline) recordEvent(ctx context.Context, job Job, stage, detail string) {
	if p.store == nil {
		return
	}
	if err := p.store.AppendEvent(ctx, jobstore.Event{JobID: job.ID, Stage: stage, Detail: detail}); err != nil {
		p.logger.Warn("failed to record job event", slog.String("job", job.ID), slog.String("error", err.Error()))
	}
}

func preview(text string) string {
	if len(text) <= previewChars {
		return text
	}
	return text[:previewChars]
}
