package commands

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/walteh/docmill/cmd/docmill/opts"
	"github.com/walteh/docmill/pkg/llm"
	"gitlab.com/tozd/go/errors"
)

// NewModelsCmd creates a new models command
func NewModelsCmd(opts *opts.RootOpts) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List models the endpoint advertises",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ctx = zerolog.Ctx(ctx).With().Str("command", "models").Logger().WithContext(ctx)

			cfg := opts.Config

			client, err := llm.New(llm.Options{
				Model:   cfg.Provider.Model,
				BaseURL: cfg.Provider.BaseURL,
				APIKey:  cfg.APIKey(),
			})
			if err != nil {
				return errors.Errorf("creating transform client: %w", err)
			}

			models, err := client.ListModels(ctx)
			if err != nil {
				return errors.Errorf("listing models: %w", err)
			}

			for _, model := range models {
				fmt.Println(model)
			}
			return nil
		},
	}

	return cmd
}
