// Package ingest shells out to the external ingestion pipeline. The corpus
// itself is written by separate tooling; this runner only invokes it with a
// bounded deadline and reports counts. A failed or timed-out run yields a
// zero-count report, never an error, so the tool surface stays total.
package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"os/exec"
	"strings"
	"time"

	"rechtskern/internal/config"
	"rechtskern/internal/law"
	"rechtskern/internal/logging"
)

// Options selects what to ingest.
type Options struct {
	Country  string
	SourceID string
	DryRun   bool
}

// Runner executes the configured ingestion command.
type Runner struct {
	cfg config.IngestionConfig
}

// NewRunner builds a Runner from config. An empty command is allowed; Run
// then reports zero counts immediately.
func NewRunner(cfg config.IngestionConfig) *Runner {
	return &Runner{cfg: cfg}
}

// pipelineSummary is the JSON summary the ingestion pipeline prints as its
// last stdout line.
type pipelineSummary struct {
	Ingested int `json:"ingested"`
	Skipped  int `json:"skipped"`
}

// Run invokes the pipeline and returns its report. The context deadline and
// the configured timeout both bound the subprocess.
func (r *Runner) Run(ctx context.Context, opts Options) *law.IngestionReport {
	report := &law.IngestionReport{
		StartedAt: time.Now().UTC().Format(time.RFC3339),
		SourceID:  opts.SourceID,
		DryRun:    opts.DryRun,
	}
	defer func() {
		report.FinishedAt = time.Now().UTC().Format(time.RFC3339)
	}()

	if r.cfg.Command == "" {
		logging.Ingest("no ingestion command configured; reporting zero counts")
		return report
	}

	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout())
	defer cancel()

	args := append([]string{}, r.cfg.Args...)
	if opts.Country != "" {
		args = append(args, "--country", opts.Country)
	}
	if opts.SourceID != "" {
		args = append(args, "--source", opts.SourceID)
	}
	if opts.DryRun {
		args = append(args, "--dry-run")
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, r.cfg.Command, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	// Without WaitDelay a child process inheriting the output pipes keeps
	// Wait blocked past the deadline.
	cmd.WaitDelay = time.Second

	logging.Ingest("running %s %s", r.cfg.Command, strings.Join(args, " "))
	if err := cmd.Run(); err != nil {
		logging.Get(logging.CategoryIngest).Errorf("ingestion failed: %v (stderr: %s)",
			err, strings.TrimSpace(stderr.String()))
		return report
	}

	if summary, ok := parseSummary(stdout.String()); ok {
		report.IngestedCount = summary.Ingested
		report.SkippedCount = summary.Skipped
	}
	logging.Ingest("ingestion finished: ingested=%d skipped=%d",
		report.IngestedCount, report.SkippedCount)
	return report
}

// parseSummary scans stdout bottom-up for the pipeline's JSON summary line.
func parseSummary(out string) (pipelineSummary, bool) {
	lines := strings.Split(strings.TrimSpace(out), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if !strings.HasPrefix(line, "{") {
			continue
		}
		var s pipelineSummary
		if err := json.Unmarshal([]byte(line), &s); err == nil {
			return s, true
		}
	}
	return pipelineSummary{}, false
}
