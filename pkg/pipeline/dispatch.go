// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/walteh/docmill/pkg/inventory"
	"github.com/walteh/docmill/pkg/llm"
	"github.com/walteh/docmill/pkg/text"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/sync/errgroup"
)

// 🏃 Run executes a full pipeline run: scan, copy pass-through files,
// transform every document through the worker pool, aggregate. The
// returned summary always satisfies
// SuccessfulCount + FailedCount == TotalJobs.
func (p *Processor) Run(ctx context.Context, inputRoot, outputRoot string) (*RunSummary, error) {
	logger := zerolog.Ctx(ctx)

	// Fail fast before any output is created
	inv, err := inventory.Scan(ctx, inputRoot, inventory.Options{
		Extension:      p.extension,
		IgnorePatterns: p.ignorePatterns,
	})
	if err != nil {
		return nil, errors.Errorf("scanning input folder: %w", err)
	}

	if err := os.MkdirAll(outputRoot, 0755); err != nil {
		return nil, errors.Errorf("creating output folder: %w", err)
	}

	summary := &RunSummary{
		RunID:      uuid.NewString(),
		OutputRoot: outputRoot,
		Workers:    p.workers,
		TotalJobs:  len(inv.Transformable),
	}

	p.consoleInfof("copying %d pass-through files", len(inv.PassThrough))
	summary.Copies = p.copyPassThrough(ctx, inv.Root, outputRoot, inv.PassThrough)

	total := len(inv.Transformable)
	if total == 0 {
		logger.Info().Str("root", inputRoot).Msg("no documents to transform")
		return summary, nil
	}

	logger.Info().
		Int("documents", total).
		Int("workers", p.workers).
		Dur("delay", p.delay).
		Str("run_id", summary.RunID).
		Msg("dispatching transform jobs")
	p.consoleInfof("transforming %d documents with %d workers", total, p.workers)

	progress := NewReporter()
	jobs := make(chan Job)
	// Buffered to capacity so workers hand off results without blocking
	results := make(chan JobResult, total)

	// Fixed-size pool: pool size is the sole concurrency cap protecting
	// the remote API
	var g errgroup.Group
	for w := 1; w <= p.workers; w++ {
		workerID := w
		g.Go(func() error {
			for job := range jobs {
				results <- p.runJob(ctx, workerID, job, inv.Root, outputRoot, progress)
			}
			return nil
		})
	}

	go func() {
		defer close(jobs)
		for i, path := range inv.Transformable {
			jobs <- Job{Index: i + 1, SourcePath: path, Total: total}
		}
	}()

	// Consume in completion order. The pacing delay throttles how fast
	// results are drained; it deliberately does not bound in-flight
	// concurrency and is no strict calls-per-second limit.
	for consumed := 0; consumed < total; consumed++ {
		res := <-results
		p.printProgress(ctx, progress)

		if res.Success {
			summary.Successful = append(summary.Successful, res.Source)
		} else {
			summary.Failed = append(summary.Failed, FileError{Path: res.Source, Err: res.Err})
		}

		if p.delay > 0 && consumed < total-1 {
			sleepContext(ctx, p.delay)
		}
	}

	// Workers have all exited once every result is consumed
	if err := g.Wait(); err != nil {
		return nil, errors.Errorf("waiting for workers: %w", err)
	}

	p.printProgress(ctx, progress)

	summary.SuccessfulCount = len(summary.Successful)
	summary.FailedCount = len(summary.Failed)

	logger.Info().
		Str("run_id", summary.RunID).
		Int("successful", summary.SuccessfulCount).
		Int("failed", summary.FailedCount).
		Int("copied", summary.Copies.CopiedCount).
		Msg("run complete")

	return summary, nil
}

// 📄 runJob executes a single job. Every failure is captured in the
// result; nothing escapes the worker boundary.
func (p *Processor) runJob(ctx context.Context, workerID int, job Job, inputRoot, outputRoot string, progress *Reporter) JobResult {
	progress.Publish("[worker %d] [%d/%d] processing: %s", workerID, job.Index, job.Total, job.SourcePath)

	fail := func(err error) JobResult {
		progress.Publish("[worker %d] error processing %s: %s", workerID, job.SourcePath, err)
		return JobResult{Source: job.SourcePath, Err: err.Error(), WorkerID: workerID}
	}

	data, err := os.ReadFile(job.SourcePath)
	if err != nil {
		return fail(errors.Errorf("reading document: %w", err))
	}

	transformed, err := p.service.Transform(ctx, string(data), llm.WithTemperature(p.temperature))
	if err != nil {
		return fail(errors.Errorf("transforming document: %w", err))
	}

	rel, err := filepath.Rel(inputRoot, job.SourcePath)
	if err != nil {
		return fail(errors.Errorf("relativizing path: %w", err))
	}
	outPath := filepath.Join(outputRoot, rel)

	if len(p.replacements) > 0 {
		cleaned := text.Apply(transformed, filepath.ToSlash(rel), p.replacements)
		if cleaned.WasModified {
			progress.Publish("[worker %d] cleaned %d artifacts in: %s", workerID, cleaned.ReplacementCount, rel)
		}
		transformed = cleaned.Content
	}

	// Safe when several workers share a parent directory
	if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		return fail(errors.Errorf("creating parent directories: %w", err))
	}
	if err := os.WriteFile(outPath, []byte(transformed), 0644); err != nil {
		return fail(errors.Errorf("writing document: %w", err))
	}

	progress.Publish("[worker %d] finished: %s", workerID, outPath)
	return JobResult{Success: true, Source: job.SourcePath, Output: outPath, WorkerID: workerID}
}

// 📢 printProgress drains pending progress lines to the console
func (p *Processor) printProgress(ctx context.Context, progress *Reporter) {
	lines := progress.Drain()
	if len(lines) == 0 {
		return
	}
	logger := zerolog.Ctx(ctx)
	for _, line := range lines {
		if p.console != nil {
			p.console.Progress(line)
		}
		logger.Debug().Msg(line)
	}
}

// 📝 consoleInfof writes a user-facing line when a console is attached
func (p *Processor) consoleInfof(format string, args ...any) {
	if p.console != nil {
		p.console.Infof(format, args...)
	}
}

// 💤 sleepContext sleeps for d or until ctx is done
func sleepContext(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
