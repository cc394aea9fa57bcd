package cli

import (
	"context"

	"betterats/internal/config"
	"betterats/internal/errors"

	"github.com/spf13/cobra"
)

type configKeyType struct{}
type loggerKeyType struct{}

var configKey = configKeyType{}
var loggerKey = loggerKeyType{}

var rootCmd = &cobra.Command{
	Use:   "betterats",
	Short: "Extract candidate data and check job requirements from resumes",
	Long: `betterats reads a candidate's documents (PDF or DOCX), extracts a
structured candidate profile with a language model, and decides for each job
requirement whether the documents show the candidate meets it. Unmet
requirements come with a follow-up question for the candidate.`,
	SilenceUsage: true,
}

// Execute runs the root command with cfg and logger available to every
// subcommand through the command context.
func Execute(ctx context.Context, cfg *config.Config, logger *errors.Logger) error {
	ctx = context.WithValue(ctx, configKey, cfg)
	ctx = context.WithValue(ctx, loggerKey, logger)
	rootCmd.SetContext(ctx)
	return rootCmd.Execute()
}

func getConfigFromContext(ctx context.Context) *config.Config {
	if cfg, ok := ctx.Value(configKey).(*config.Config); ok {
		return cfg
	}
	panic("config not found in context")
}

func getLoggerFromContext(ctx context.Context) *errors.Logger {
	if logger, ok := ctx.Value(loggerKey).(*errors.Logger); ok {
		return logger
	}
	panic("logger not found in context")
}

func init() {
	rootCmd.AddCommand(processCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(versionCmd)
}
