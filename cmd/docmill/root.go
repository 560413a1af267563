package main

import (
	"context"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/walteh/docmill/cmd/docmill/commands"
	"github.com/walteh/docmill/cmd/docmill/opts"
	"github.com/walteh/docmill/pkg/config"
	"github.com/walteh/docmill/pkg/log"
	"gitlab.com/tozd/go/errors"
)

const defaultConfigFile = ".docmill.yaml"

var (
	// Flags
	configFile string
	debug      bool
)

// newRootCmd builds the root command and wires all subcommands. The
// shared opts are filled in lazily, after flags are parsed.
func newRootCmd(o *opts.RootOpts) *cobra.Command {
	cmd := &cobra.Command{
		Use:          "docmill",
		Short:        "Batch-transform documents through an LLM",
		Long: `docmill walks an input folder, sends every matching document through
an OpenAI-compatible model with a fixed instruction prompt, and writes
the transformed output to a mirrored output folder. All other files
are copied through unchanged.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			setupLogging()

			loaded, err := newRootOpts(cmd.Context())
			if err != nil {
				return err
			}
			*o = *loaded
			return nil
		},
	}

	addRootFlags(cmd)

	cmd.AddCommand(
		commands.NewRunCmd(o),
		commands.NewFileCmd(o),
		commands.NewAskCmd(o),
		commands.NewModelsCmd(o),
	)

	return cmd
}

// newRootOpts creates a new rootOpts with initialized dependencies
func newRootOpts(ctx context.Context) (*opts.RootOpts, error) {
	// Create user logger
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	userLogger := log.New(os.Stdout, level)

	// Load config: an explicit --config is required to exist, the
	// default file is optional
	var cfg *config.Config
	switch {
	case configFile != "":
		loaded, err := config.Load(ctx, configFile)
		if err != nil {
			return nil, errors.Errorf("loading config: %w", err)
		}
		cfg = loaded
	default:
		if _, err := os.Stat(defaultConfigFile); err == nil {
			loaded, err := config.Load(ctx, defaultConfigFile)
			if err != nil {
				return nil, errors.Errorf("loading config: %w", err)
			}
			cfg = loaded
		} else {
			cfg = config.Default()
		}
	}

	return &opts.RootOpts{
		Config:     cfg,
		UserLogger: userLogger,
	}, nil
}

// addRootFlags adds shared flags to the root command
func addRootFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path (default "+defaultConfigFile+" if present)")
	cmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug logging")
}

// setupLogging configures zerolog based on flags
func setupLogging() {
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
	log := zerolog.New(os.Stderr).With().Timestamp().Logger()
	zerolog.DefaultContextLogger = &log
}
