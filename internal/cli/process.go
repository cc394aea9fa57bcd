package cli

import (
	"fmt"

	"betterats/internal/common"
	"betterats/internal/observability"

	"github.com/spf13/cobra"
)

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Extract candidate data and assess job requirements",
	Long: `Process one or more candidate documents (PDF or DOCX). The documents are
read once; the candidate profile is extracted while each job requirement is
assessed concurrently. Requirements are given with --requirement (repeatable)
or read one per line from --requirements-file.`,
	Example: `  betterats process --file cv.pdf --file letter.docx \
    --requirement "5+ years of Go" --requirement "Kubernetes in production"
  betterats process --file cv.pdf --requirements-file reqs.txt --format markdown -o report.md`,
	Args: cobra.NoArgs,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfigFromContext(cmd.Context())
		if processConfig.OutputFormat == "" {
			processConfig.OutputFormat = cfg.App.DefaultFormat
		}
		if err := common.ValidateOutputFormat(processConfig.OutputFormat, cfg.App.SupportedFormats); err != nil {
			return err
		}
		return common.ValidateRequirementSources(processFlags.requirements, processFlags.requirementsFile)
	},
	RunE: runProcess,
}

var processConfig common.CommandConfig

var processFlags struct {
	files            []string
	requirements     []string
	requirementsFile string
}

func init() {
	processCmd.Flags().StringArrayVarP(&processFlags.files, "file", "f", nil, "Candidate document (PDF or DOCX), repeatable")
	processCmd.Flags().StringArrayVarP(&processFlags.requirements, "requirement", "r", nil, "Job requirement, repeatable")
	processCmd.Flags().StringVar(&processFlags.requirementsFile, "requirements-file", "", "File with one job requirement per line")
	processCmd.Flags().StringVarP(&processConfig.OutputFile, "output", "o", "", "Output file path (default: stdout)")
	processCmd.Flags().StringVar(&processConfig.OutputFormat, "format", "", "Output format: json, text, or markdown")
	_ = processCmd.MarkFlagRequired("file")

	_ = processCmd.RegisterFlagCompletionFunc("format", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		cfg := getConfigFromContext(cmd.Context())
		return cfg.App.SupportedFormats, cobra.ShellCompDirectiveNoFileComp
	})
}

func runProcess(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := getConfigFromContext(ctx)
	logger := getLoggerFromContext(ctx)

	requirements := processFlags.requirements
	if processFlags.requirementsFile != "" {
		var err error
		requirements, err = common.NewFileProcessor(logger).ReadRequirements(processFlags.requirementsFile)
		if err != nil {
			return err
		}
	}

	om, err := observability.NewManager(observability.SettingsFromConfig(cfg, Version), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize observability: %w", err)
	}
	defer shutdownObservability(om, logger)

	p, err := common.BuildPipeline(ctx, cfg, logger, om.Metrics())
	if err != nil {
		return fmt.Errorf("failed to build pipeline: %w", err)
	}

	if err := common.RunProcessCommand(ctx, p.Coordinator, logger, processConfig, processFlags.files, requirements); err != nil {
		return fmt.Errorf("failed to process application: %w", err)
	}
	logger.Info("Application processing completed successfully")
	return nil
}
