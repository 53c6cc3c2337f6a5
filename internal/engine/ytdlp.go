// Package engine drives the external media engine (yt-dlp) as a supervised
// subprocess and turns its output into raw records for normalization.
package engine

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/streamsaavy/streamsaavy-go/internal/domain"
	"github.com/streamsaavy/streamsaavy-go/internal/plan"
	"github.com/streamsaavy/streamsaavy-go/internal/progress"
)

// Buffer pool for reducing allocations when scanning engine output.
var bufPool = sync.Pool{
	New: func() interface{} {
		buf := make([]byte, 64*1024)
		return &buf
	},
}

// structuredTemplate asks the engine to report download progress as JSON
// lines instead of free text. The normalizer accepts both shapes either way.
const structuredTemplate = `download:{"status":"%(progress.status)s",` +
	`"percent":"%(progress._percent_str)s","speed":"%(progress._speed_str)s",` +
	`"eta":"%(progress._eta_str)s","filename":"%(info.filename)s"}`

// diagTailLines bounds how much output is retained for exit classification.
const diagTailLines = 40

// maxLineBytes is the scanner's per-line ceiling.
const maxLineBytes = 1024 * 1024

// Config holds engine invocation options.
type Config struct {
	BinaryPath         string // path to the yt-dlp binary
	FFmpegPath         string // path to ffmpeg (optional)
	StructuredProgress bool   // emit structured progress records
	ProbeTimeout       time.Duration
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() *Config {
	return &Config{
		BinaryPath:   "yt-dlp",
		FFmpegPath:   "ffmpeg",
		ProbeTimeout: 30 * time.Second,
	}
}

// YtDlp runs plans with the yt-dlp binary.
type YtDlp struct {
	cfg *Config
}

// New creates an engine with the given configuration.
func New(cfg *Config) *YtDlp {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = 30 * time.Second
	}
	return &YtDlp{cfg: cfg}
}

// Run executes the plan, emitting one record per output line until the
// stream closes, then waits for the process. Both output streams are merged
// into a single pipe so record order matches emission order. An unclean exit
// is returned as a classified error; a canceled context is returned as the
// context's error.
func (e *YtDlp) Run(ctx context.Context, p plan.Plan, emit func(progress.Record)) error {
	args := p.Args()
	if e.cfg.StructuredProgress {
		args = append([]string{"--progress-template", structuredTemplate}, args...)
	}
	if e.cfg.FFmpegPath != "" {
		args = append([]string{"--ffmpeg-location", e.cfg.FFmpegPath}, args...)
	}

	cmd := exec.CommandContext(ctx, e.cfg.BinaryPath, args...)

	pr, pw, err := os.Pipe()
	if err != nil {
		return fmt.Errorf("failed to create output pipe: %w", err)
	}
	cmd.Stdout = pw
	cmd.Stderr = pw

	if err := cmd.Start(); err != nil {
		pr.Close()
		pw.Close()
		return fmt.Errorf("failed to start engine: %w", err)
	}
	// The child holds its own copy of the write end.
	pw.Close()

	tail := scanRecords(pr, emit)
	pr.Close()

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return progress.ClassifyExit(err.Error(), strings.Join(tail, "\n"))
	}
	return nil
}

// scanRecords emits one record per non-blank output line and returns the
// retained diagnostic tail. A scan failure (for example a line beyond the
// buffer limit) ends the stream early; it is logged and noted in the tail
// so exit classification still sees it.
func scanRecords(r io.Reader, emit func(progress.Record)) []string {
	var tail []string
	appendTail := func(line string) {
		tail = append(tail, line)
		if len(tail) > diagTailLines {
			tail = tail[1:]
		}
	}

	bufp := bufPool.Get().(*[]byte)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(*bufp, maxLineBytes)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		appendTail(line)
		emit(parseLine(line))
	}
	bufPool.Put(bufp)

	if err := scanner.Err(); err != nil {
		slog.Warn("engine output stream truncated", "error", err)
		appendTail("output stream truncated: " + err.Error())
	}
	return tail
}

// parseLine decides whether a line is a structured hook or free text.
// Structured detection is by shape, not by configuration, so the runner
// tolerates either integration style.
func parseLine(line string) progress.Record {
	trimmed := strings.TrimSpace(line)
	if strings.HasPrefix(trimmed, "{") {
		var h progress.Hook
		if err := json.Unmarshal([]byte(trimmed), &h); err == nil && h.Status != "" {
			return progress.HookRecord(h)
		}
	}
	return progress.LineRecord(line)
}

// Probe retrieves media metadata without downloading.
func (e *YtDlp) Probe(ctx context.Context, url string) (*domain.MediaInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.ProbeTimeout)
	defer cancel()

	args := []string{
		"--no-download",
		"--print-json",
		"--no-playlist",
		"--no-warnings",
		url,
	}

	cmd := exec.CommandContext(ctx, e.cfg.BinaryPath, args...)
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("failed to probe media info: %w", err)
	}

	var info domain.MediaInfo
	if err := json.Unmarshal(output, &info); err != nil {
		return nil, fmt.Errorf("failed to parse media info: %w", err)
	}
	return &info, nil
}

// Check verifies that the engine binary is installed and executable.
func (e *YtDlp) Check() error {
	cmd := exec.Command(e.cfg.BinaryPath, "--version")
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("media engine not found or not executable: %w", err)
	}
	return nil
}
