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

// Package pipeline runs the batch document-transformation pipeline: it
// copies pass-through files into a mirrored output tree and dispatches
// every matching document to the transform service through a bounded
// worker pool. A single job's failure never aborts the run.
package pipeline

import (
	"context"
	"time"

	"github.com/walteh/docmill/pkg/llm"
	"github.com/walteh/docmill/pkg/log"
	"github.com/walteh/docmill/pkg/text"
	"gitlab.com/tozd/go/errors"
)

// 🔌 Transformer is the capability the pipeline consumes. It is
// satisfied by *llm.Client; tests substitute fakes. Retries, if any,
// are the implementation's own concern: the pipeline sees exactly one
// outcome per call.
type Transformer interface {
	Transform(ctx context.Context, userText string, opts ...llm.CallOption) (string, error)
}

// 📋 Job is one document to transform, numbered for progress lines only
type Job struct {
	Index      int    // 1-based position in enumeration order
	SourcePath string // Absolute or caller-relative input path
	Total      int    // Total job count for this run
}

// 📦 JobResult is the outcome of exactly one job
type JobResult struct {
	Success  bool   // Whether the transform completed
	Source   string // Input path
	Output   string // Mirrored output path (set on success)
	Err      string // Failure description (set on failure)
	WorkerID int    // Pool slot that executed the job
}

// 🚨 FileError pairs a path with what went wrong, detailed enough to
// re-run just the failed subset by hand
type FileError struct {
	Path string `json:"path"`
	Err  string `json:"error"`
}

// 📊 CopySummary aggregates the pass-through copier's outcomes
type CopySummary struct {
	CopiedCount int         `json:"copied_count"`
	FailedCount int         `json:"failed_count"`
	Copied      []string    `json:"copied,omitempty"`
	Failed      []FileError `json:"failed,omitempty"`
}

// 📊 RunSummary aggregates one full pipeline run
type RunSummary struct {
	RunID           string      `json:"run_id"`
	TotalJobs       int         `json:"total_jobs"`
	SuccessfulCount int         `json:"successful_count"`
	FailedCount     int         `json:"failed_count"`
	Successful      []string    `json:"successful,omitempty"`
	Failed          []FileError `json:"failed,omitempty"`
	OutputRoot      string      `json:"output_root"`
	Workers         int         `json:"workers"`
	Copies          CopySummary `json:"copy_result"`
}

// 🔧 Options contains configuration for the processor
type Options struct {
	// Service is the transform collaborator (required)
	Service Transformer
	// Extension marks transformable documents (default ".md")
	Extension string
	// IgnorePatterns are globs for files to skip entirely
	IgnorePatterns []string
	// Replacements are cleanup rules applied to model output before it
	// is written
	Replacements []text.Rule
	// Workers caps how many jobs run concurrently (default 30)
	Workers int
	// Delay is slept after each consumed result. It throttles result
	// consumption, not in-flight concurrency; Workers does that.
	Delay time.Duration
	// Temperature is the fixed determinism parameter for every call
	// (default 0.01)
	Temperature float64
	// Console receives user-facing progress and summary lines (optional)
	Console *log.Logger
}

// 🎮 Processor executes pipeline runs
type Processor struct {
	service        Transformer
	extension      string
	ignorePatterns []string
	replacements   []text.Rule
	workers        int
	delay          time.Duration
	temperature    float64
	console        *log.Logger
}

// 🏭 New creates a new processor with the given options
func New(opts Options) (*Processor, error) {
	if opts.Service == nil {
		return nil, errors.Errorf("transform service is required")
	}
	if opts.Workers < 0 {
		return nil, errors.Errorf("workers must not be negative, got %d", opts.Workers)
	}
	if err := text.ValidateRules(opts.Replacements); err != nil {
		return nil, errors.Errorf("validating replacement rules: %w", err)
	}
	if opts.Delay < 0 {
		return nil, errors.Errorf("delay must not be negative, got %s", opts.Delay)
	}
	if opts.Workers == 0 {
		opts.Workers = 30
	}
	if opts.Extension == "" {
		opts.Extension = ".md"
	}
	if opts.Temperature == 0 {
		opts.Temperature = 0.01
	}

	return &Processor{
		service:        opts.Service,
		extension:      opts.Extension,
		ignorePatterns: opts.IgnorePatterns,
		replacements:   opts.Replacements,
		workers:        opts.Workers,
		delay:          opts.Delay,
		temperature:    opts.Temperature,
		console:        opts.Console,
	}, nil
}
