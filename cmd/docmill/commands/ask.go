package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/walteh/docmill/cmd/docmill/opts"
	"github.com/walteh/docmill/pkg/llm"
	"gitlab.com/tozd/go/errors"
)

// NewAskCmd creates a new ask command
func NewAskCmd(opts *opts.RootOpts) *cobra.Command {
	var system string

	cmd := &cobra.Command{
		Use:   "ask PROMPT...",
		Short: "Send a one-off prompt to the model",
		Long: `Ask sends a single prompt to the configured model and prints the
completion. Handy for checking credentials and connectivity.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ctx = zerolog.Ctx(ctx).With().Str("command", "ask").Logger().WithContext(ctx)

			cfg := opts.Config

			client, err := llm.New(llm.Options{
				Model:        cfg.Provider.Model,
				BaseURL:      cfg.Provider.BaseURL,
				APIKey:       cfg.APIKey(),
				SystemPrompt: system,
				MaxRetries:   cfg.Provider.MaxRetries,
				RetryDelay:   time.Duration(cfg.Provider.RetryDelay * float64(time.Second)),
			})
			if err != nil {
				return errors.Errorf("creating transform client: %w", err)
			}

			reply, err := client.Transform(ctx, strings.Join(args, " "))
			if err != nil {
				return errors.Errorf("calling model: %w", err)
			}

			fmt.Println(reply)
			return nil
		},
	}

	cmd.Flags().StringVarP(&system, "system", "s", "", "optional system prompt")

	return cmd
}
