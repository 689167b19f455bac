package synth

import (
	"fmt"
	"time"

	"github.com/verbatim-labs/pdfvoice/internal/config"
)

// New builds the synthesizer selected by configuration.
func New(cfg config.SynthesisConfig) (Synthesizer, error) {
	switch cfg.Mode {
	case "mock":
		return NewMockSynthesizer(), nil
	case "exec":
		return NewExecSynthesizer(cfg.Command)
	case "http":
		return NewHTTPSynthesizer(cfg.Endpoint, time.Duration(cfg.RequestTimeoutMS)*time.Millisecond), nil
	default:
		return nil, fmt.Errorf("unknown synthesis mode %q", cfg.Mode)
	}
}

// PolicyFromConfig translates the millisecond-based config knobs.
func PolicyFromConfig(cfg config.SynthesisConfig) Policy {
	return Policy{
		Retries:           cfg.Retries,
		BasePause:         time.Duration(cfg.BasePauseMS) * time.Millisecond,
		Jitter:            time.Duration(cfg.JitterMS) * time.Millisecond,
		InterSegmentDelay: time.Duration(cfg.InterSegmentDelayMS) * time.Millisecond,
	}
}
