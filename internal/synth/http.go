package synth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type httpSynthesizer struct {
	endpoint string
	client   *http.Client
	timeout  time.Duration
}

// NewHTTPSynthesizer talks to a speech synthesis server over HTTP. The
// server receives POST /api/synthesize with a JSON body and answers with the
// encoded audio bytes. A 429 response maps to a rate-limit error; every
// other non-2xx status maps to a generic backend error. timeout bounds each
// individual call so a hung backend cannot stall the pipeline; zero disables
// the bound.
func NewHTTPSynthesizer(endpoint string, timeout time.Duration) Synthesizer {
	return &httpSynthesizer{
		endpoint: strings.TrimRight(endpoint, "/"),
		client:   http.DefaultClient,
		timeout:  timeout,
	}
}

type httpSynthRequest struct {
	Text     string `json:"text"`
	Language string `json:"language"`
	Voice    string `json:"voice,omitempty"`
}

func (h *httpSynthesizer) Synthesize(ctx context.Context, req Request) ([]byte, error) {
	payload := httpSynthRequest{Text: req.Text, Language: req.Language, Voice: req.Voice}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal synthesis request: %w", err)
	}

	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint+"/api/synthesize", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create synthesis request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("synthesis request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &Error{
			HTTPStatus: resp.StatusCode,
			Message:    strings.TrimSpace(string(msg)),
		}
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read synthesis response: %w", err)
	}
	if len(audio) == 0 {
		return nil, &Error{Message: "backend returned empty audio"}
	}
	return audio, nil
}
