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

package commands

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/walteh/docmill/cmd/docmill/opts"
	"github.com/walteh/docmill/pkg/llm"
	"github.com/walteh/docmill/pkg/log"
	"github.com/walteh/docmill/pkg/pipeline"
	"gitlab.com/tozd/go/errors"
)

// NewRunCmd creates a new run command
func NewRunCmd(opts *opts.RootOpts) *cobra.Command {
	var (
		input      string
		output     string
		promptFile string
		workers    int
		delay      float64
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Transform every document in a folder",
		Long: `Run walks the input folder, transforms every matching document
through the model using the instruction prompt, and mirrors the result
into the output folder. Non-document files are copied unchanged.
Individual document failures are reported in the summary; they never
abort the run.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ctx = zerolog.Ctx(ctx).With().Str("command", "run").Logger().WithContext(ctx)

			cfg := opts.Config
			ui := opts.UserLogger

			// Resolve the two knobs: flags override config
			if workers <= 0 {
				workers = cfg.Pipeline.Workers
			}
			if delay < 0 {
				delay = cfg.Pipeline.Delay
			}

			// Fatal preconditions: unreadable instruction file aborts
			// before any work starts
			instruction, err := os.ReadFile(promptFile)
			if err != nil {
				return errors.Errorf("reading instruction file %s: %w", promptFile, err)
			}

			client, err := llm.New(llm.Options{
				Model:        cfg.Provider.Model,
				BaseURL:      cfg.Provider.BaseURL,
				APIKey:       cfg.APIKey(),
				SystemPrompt: string(instruction),
				MaxRetries:   cfg.Provider.MaxRetries,
				RetryDelay:   time.Duration(cfg.Provider.RetryDelay * float64(time.Second)),
			})
			if err != nil {
				return errors.Errorf("creating transform client: %w", err)
			}

			processor, err := pipeline.New(pipeline.Options{
				Service:        client,
				Extension:      cfg.Pipeline.Extension,
				IgnorePatterns: cfg.Pipeline.IgnorePatterns,
				Replacements:   cfg.Pipeline.Replacements,
				Workers:        workers,
				Delay:          time.Duration(delay * float64(time.Second)),
				Temperature:    cfg.Provider.Temperature,
				Console:        ui,
			})
			if err != nil {
				return errors.Errorf("creating processor: %w", err)
			}

			ui.Header("batch document transform")
			ui.StartRunOperation(ctx, log.RunOperation{
				Input:   input,
				Output:  output,
				Model:   cfg.Provider.Model,
				Workers: workers,
			})

			summary, err := processor.Run(ctx, input, output)
			if err != nil {
				return errors.Errorf("running pipeline: %w", err)
			}
			ui.EndRunOperation(ctx)

			printRunSummary(ui, summary)
			return nil
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "input folder to walk")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output folder to mirror into")
	cmd.Flags().StringVarP(&promptFile, "prompt", "p", "", "file whose contents become the system instruction")
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "worker pool size (0 uses config)")
	cmd.Flags().Float64Var(&delay, "delay", -1, "seconds slept after each consumed result (negative uses config)")

	cmd.MarkFlagRequired("input")
	cmd.MarkFlagRequired("output")
	cmd.MarkFlagRequired("prompt")

	return cmd
}
