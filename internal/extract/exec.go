package extract

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"

	"github.com/mattn/go-shellwords"
)

type execExtractor struct {
	cmd []string
	mu  sync.Mutex
}

// NewExecExtractor shells out to a pdftotext-style command. The command gets
// the PDF path appended plus "-" to request stdout output, and is expected
// to separate pages with form feeds.
func NewExecExtractor(command string) (Extractor, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse extractor command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("extractor command empty")
	}
	return &execExtractor{cmd: args}, nil
}

func (e *execExtractor) Extract(ctx context.Context, path string) ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	base := e.cmd[0]
	args := append([]string{}, e.cmd[1:]...)
	args = append(args, path, "-")

	cmd := exec.CommandContext(ctx, base, args...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("extract text from %s: %w: %s", path, err, strings.TrimSpace(stderr.String()))
	}

	pages := strings.Split(stdout.String(), "\f")
	if !usable(pages) {
		return nil, ErrNoText
	}
	return pages, nil
}
