package commands

import (
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/walteh/docmill/cmd/docmill/opts"
	"github.com/walteh/docmill/pkg/llm"
	"gitlab.com/tozd/go/errors"
)

// NewFileCmd creates a new file command
func NewFileCmd(opts *opts.RootOpts) *cobra.Command {
	var promptFile string

	cmd := &cobra.Command{
		Use:   "file SOURCE DEST",
		Short: "Transform a single document",
		Long: `File sends one document through the model with the instruction
prompt and writes the result to DEST. Useful for spot-checking a prompt
before a full run.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ctx = zerolog.Ctx(ctx).With().Str("command", "file").Logger().WithContext(ctx)

			source, dest := args[0], args[1]
			cfg := opts.Config
			ui := opts.UserLogger

			instruction, err := os.ReadFile(promptFile)
			if err != nil {
				return errors.Errorf("reading instruction file %s: %w", promptFile, err)
			}

			document, err := os.ReadFile(source)
			if err != nil {
				return errors.Errorf("reading document %s: %w", source, err)
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

			ui.Infof("transforming %s with %s", source, cfg.Provider.Model)

			transformed, err := client.Transform(ctx, string(document),
				llm.WithTemperature(cfg.Provider.Temperature))
			if err != nil {
				return errors.Errorf("transforming document: %w", err)
			}

			if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
				return errors.Errorf("creating parent directories: %w", err)
			}
			if err := os.WriteFile(dest, []byte(transformed), 0644); err != nil {
				return errors.Errorf("writing document: %w", err)
			}

			ui.Successf("wrote %s", dest)
			return nil
		},
	}

	cmd.Flags().StringVarP(&promptFile, "prompt", "p", "", "file whose contents become the system instruction")
	cmd.MarkFlagRequired("prompt")

	return cmd
}
