package synth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"sync"

	"github.com/mattn/go-shellwords"
)

type execSynthesizer struct {
	cmd []string
	mu  sync.Mutex
}

type execSynthRequest struct {
	Text     string `json:"text"`
	Language string `json:"language"`
	Voice    string `json:"voice,omitempty"`
}

// NewExecSynthesizer runs a local command per synthesis call. The command
// receives a JSON request on stdin and writes the encoded audio to stdout.
// Calls are serialized; the command is not expected to be reentrant.
func NewExecSynthesizer(command string) (Synthesizer, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse synthesis command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("synthesis command empty")
	}
	return &execSynthesizer{cmd: args}, nil
}

func (e *execSynthesizer) Synthesize(ctx context.Context, req Request) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	payload, err := json.Marshal(execSynthRequest{Text: req.Text, Language: req.Language, Voice: req.Voice})
	if err != nil {
		return nil, err
	}

	base := e.cmd[0]
	args := append([]string{}, e.cmd[1:]...)
	cmd := exec.CommandContext(ctx, base, args...)
	cmd.Stdin = bytes.NewReader(payload)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, &Error{Message: fmt.Sprintf("%v: %s", err, strings.TrimSpace(stderr.String()))}
	}
	audio := stdout.Bytes()
	if len(audio) == 0 {
		return nil, &Error{Message: "synthesis command produced no audio"}
	}
	return audio, nil
}
