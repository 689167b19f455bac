package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/verbatim-labs/pdfvoice/internal/bus"
	"github.com/verbatim-labs/pdfvoice/internal/protocol"
)

// Service accepts conversion requests over the bus and runs them through the
// pipeline one at a time. Jobs queue behind a single worker guard: the
// remote synthesis service only tolerates one caller, so there is no point
// running documents in parallel.
type Service struct {
	pipe   *Pipeline
	bus    *bus.Client
	sub    *nats.Subscription
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	run    sync.Mutex
	logger *slog.Logger
}

func NewService(parent context.Context, pipe *Pipeline, busClient *bus.Client, log *slog.Logger) *Service {
	ctx, cancel := context.WithCancel(parent)
	return &Service{
		pipe:   pipe,
		bus:    busClient,
		ctx:    ctx,
		cancel: cancel,
		logger: log.With(slog.String("component", "pipeline-service")),
	}
}

func (s *Service) Start() error {
	sub, err := s.bus.Conn().Subscribe(protocol.SubjectJobRequest, s.handleRequest)
	if err != nil {
		return fmt.Errorf("subscribe job requests: %w", err)
	}
	s.sub = sub
	return nil
}

func (s *Service) Close() {
	s.cancel()
	if s.sub != nil {
		_ = s.sub.Drain()
	}
	s.wg.Wait()
}

func (s *Service) Healthy() bool { return s.sub != nil }

func (s *Service) handleRequest(msg *nats.Msg) {
	var req protocol.JobRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		s.logger.Warn("failed to decode job request", slog.String("error", err.Error()))
		return
	}
	if strings.TrimSpace(req.Path) == "" {
		s.logger.Warn("job request without path ignored")
		return
	}
	job := Job{
		ID:       req.JobID,
		Path:     req.Path,
		Language: req.Language,
		Voice:    req.Voice,
		MaxChars: req.MaxChars,
	}
	if job.ID == "" {
		stem := strings.TrimSuffix(filepath.Base(req.Path), filepath.Ext(req.Path))
		job.ID = fmt.Sprintf("%s-%d", stem, time.Now().UnixNano())
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run.Lock()
		defer s.run.Unlock()

		if s.ctx.Err() != nil {
			return
		}
		// Failures are already published and recorded by the pipeline.
		if _, err := s.pipe.Run(s.ctx, job); err != nil {
			s.logger.Warn("job ended with error", slog.String("job", job.ID), slog.String("error", err.Error()))
		}
	}()
}
