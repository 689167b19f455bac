// Package runtime wires the daemon together: telemetry, bus, job store,
// extraction and synthesis backends, and the pipeline service.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/verbatim-labs/pdfvoice/internal/bus"
	"github.com/verbatim-labs/pdfvoice/internal/config"
	"github.com/verbatim-labs/pdfvoice/internal/extract"
	"github.com/verbatim-labs/pdfvoice/internal/jobstore"
	"github.com/verbatim-labs/pdfvoice/internal/natsserver"
	"github.com/verbatim-labs/pdfvoice/internal/pipeline"
	"github.com/verbatim-labs/pdfvoice/internal/synth"
)

type Runtime struct {
	cfg         config.Config
	logger      *slog.Logger
	httpServer  *http.Server
	embeddedNAT *natsserver.EmbeddedServer
	busClient   *bus.Client
	store       *jobstore.Store
	service     *pipeline.Service
	tracerClose func(context.Context) error
	ready       atomic.Bool
	wg          sync.WaitGroup
}

func New(cfg config.Config, logger *slog.Logger) *Runtime {
	return &Runtime{
		cfg:    cfg,
		logger: logger,
	}
}

// Start brings every component up in dependency order, then blocks until ctx
// is cancelled and tears them down in reverse.
func (r *Runtime) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	shutdownTelemetry, metricsHandler, err := setupTelemetry(r.cfg, r.logger)
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}
	r.tracerClose = shutdownTelemetry

	if r.cfg.Bus.Enabled {
		embedded, err := natsserver.Start(r.cfg.Bus, r.logger.With(slog.String("component", "nats-server")))
		if err != nil {
			return fmt.Errorf("failed to start embedded NATS server: %w", err)
		}
		r.embeddedNAT = embedded

		busClient, err := bus.Connect(ctx, r.cfg.Bus, r.logger.With(slog.String("component", "bus")))
		if err != nil {
			r.shutdownComponents()
			return fmt.Errorf("failed to connect to NATS: %w", err)
		}
		r.busClient = busClient
	}

	store, err := jobstore.Open(ctx, r.cfg.JobStore, r.logger.With(slog.String("component", "jobstore")))
	if err != nil {
		r.shutdownComponents()
		return fmt.Errorf("failed to open job store: %w", err)
	}
	r.store = store

	extractor, err := extract.New(r.cfg.Extractor)
	if err != nil {
		r.shutdownComponents()
		return fmt.Errorf("failed to build extractor: %w", err)
	}
	synthesizer, err := synth.New(r.cfg.Synthesis)
	if err != nil {
		r.shutdownComponents()
		return fmt.Errorf("failed to build synthesizer: %w", err)
	}

	pipe := pipeline.New(r.cfg, extractor, synthesizer, r.store, r.busClient, r.logger)

	if r.busClient != nil {
		r.service = pipeline.NewService(ctx, pipe, r.busClient, r.logger)
		if err := r.service.Start(); err != nil {
			r.shutdownComponents()
			return fmt.Errorf("failed to start pipeline service: %w", err)
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", r.handleHealth)
	mux.HandleFunc("/readyz", r.handleReady)
	if metricsHandler != nil {
		mux.Handle("/metrics", metricsHandler)
	}

	addr := fmt.Sprintf("%s:%d", r.cfg.HTTP.Bind, r.cfg.HTTP.Port)
	r.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			r.logger.Error("http server failed", slog.String("error", err.Error()))
		}
	}()

	r.ready.Store(true)
	r.logger.Info("runtime started",
		slog.String("addr", addr),
		slog.Bool("bus", r.busClient != nil),
		slog.String("synthesis_mode", r.cfg.Synthesis.Mode))

	<-ctx.Done()
	r.logger.Info("runtime stopping")
	r.ready.Store(false)

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := r.httpServer.Shutdown(shutdownCtx); err != nil {
		r.logger.Error("http shutdown error", slog.String("error", err.Error()))
	}
	r.wg.Wait()

	r.shutdownComponents()

	if r.tracerClose != nil {
		if err := r.tracerClose(shutdownCtx); err != nil {
			r.logger.Error("telemetry shutdown error", slog.String("error", err.Error()))
		}
	}

	return nil
}

func (r *Runtime) shutdownComponents() {
	if r.service != nil {
		r.service.Close()
		r.service = nil
	}
	if r.busClient != nil {
		r.busClient.Close()
		r.busClient = nil
	}
	if r.embeddedNAT != nil {
		r.embeddedNAT.Shutdown()
		r.embeddedNAT = nil
	}
	if r.store != nil {
		if err := r.store.Close(); err != nil {
			r.logger.Warn("job store close error", slog.String("error", err.Error()))
		}
		r.store = nil
	}
}

func (r *Runtime) handleHealth(w http.ResponseWriter, _ *http.Request) {
	if r.service != nil && !r.service.Healthy() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("pipeline service unhealthy"))
		return
	}
	if r.busClient != nil && !r.busClient.Healthy() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("bus disconnected"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (r *Runtime) handleReady(w http.ResponseWriter, _ *http.Request) {
	if r.ready.Load() {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte("not ready"))
}
