// Command pdfvoice converts a single PDF to spoken audio without a daemon:
// extract, segment, synthesize, write parts, exit.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/verbatim-labs/pdfvoice/internal/config"
	"github.com/verbatim-labs/pdfvoice/internal/extract"
	"github.com/verbatim-labs/pdfvoice/internal/jobstore"
	"github.com/verbatim-labs/pdfvoice/internal/pipeline"
	"github.com/verbatim-labs/pdfvoice/internal/synth"
)

func main() {
	var (
		configPath string
		outDir     string
		language   string
		voice      string
		maxChars   int
	)

	flag.StringVar(&configPath, "config", "", "Path to configuration file (optional)")
	flag.StringVar(&outDir, "out", "", "Output directory (overrides config)")
	flag.StringVar(&language, "lang", "", "Synthesis language (overrides config)")
	flag.StringVar(&voice, "voice", "", "Synthesis voice (overrides config)")
	flag.IntVar(&maxChars, "max-chars", 0, "Maximum characters per segment (overrides config)")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: pdfvoice [flags] <file.pdf>")
		flag.PrintDefaults()
		os.Exit(2)
	}
	pdfPath := flag.Arg(0)

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	// One-shot runs keep no history and need no bus.
	cfg.JobStore.RetentionMode = "ephemeral"
	cfg.Bus.Enabled = false
	if outDir != "" {
		cfg.Output.Dir = outDir
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	extractor, err := extract.New(cfg.Extractor)
	if err != nil {
		logger.Error("failed to build extractor", slog.String("error", err.Error()))
		os.Exit(1)
	}
	synthesizer, err := synth.New(cfg.Synthesis)
	if err != nil {
		logger.Error("failed to build synthesizer", slog.String("error", err.Error()))
		os.Exit(1)
	}
	store, err := jobstore.Open(ctx, cfg.JobStore, logger)
	if err != nil {
		logger.Error("failed to open job store", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer store.Close()

	pipe := pipeline.New(cfg, extractor, synthesizer, store, nil, logger)

	stem := strings.TrimSuffix(filepath.Base(pdfPath), filepath.Ext(pdfPath))
	job := pipeline.Job{
		ID:       fmt.Sprintf("%s-%d", stem, time.Now().Unix()),
		Path:     pdfPath,
		Language: language,
		Voice:    voice,
		MaxChars: maxChars,
	}

	result, err := pipe.Run(ctx, job)
	if err != nil {
		logger.Error("conversion failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	for _, part := range result.Parts {
		fmt.Println(part)
	}
	if result.Archive != "" {
		fmt.Println(result.Archive)
	}
}
