package cli

import (
	"fmt"
	"time"

	"betterats/internal/common"
	"betterats/internal/observability"
	"betterats/internal/watcher"

	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Process documents dropped into a directory",
	Long: `Watch a directory and run every new PDF or DOCX through the pipeline
against the job requirements in --requirements-file. Each result is written
as <name>.result.json into --out (default: the watched directory).`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

var watchFlags struct {
	dir              string
	outDir           string
	requirementsFile string
	debounce         time.Duration
	existing         bool
}

func init() {
	watchCmd.Flags().StringVar(&watchFlags.dir, "dir", "", "Directory to watch")
	watchCmd.Flags().StringVar(&watchFlags.outDir, "out", "", "Directory for result files (default: --dir)")
	watchCmd.Flags().StringVar(&watchFlags.requirementsFile, "requirements-file", "", "File with one job requirement per line")
	watchCmd.Flags().DurationVar(&watchFlags.debounce, "debounce", time.Second, "Quiet period before a changed file is processed")
	watchCmd.Flags().BoolVar(&watchFlags.existing, "existing", false, "Also process documents already in --dir that have no result yet")
	_ = watchCmd.MarkFlagRequired("dir")
	_ = watchCmd.MarkFlagRequired("requirements-file")
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := getConfigFromContext(ctx)
	logger := getLoggerFromContext(ctx)

	requirements, err := common.NewFileProcessor(logger).ReadRequirements(watchFlags.requirementsFile)
	if err != nil {
		return err
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

	w, err := watcher.New(watcher.Config{
		Dir:             watchFlags.dir,
		OutDir:          watchFlags.outDir,
		Requirements:    requirements,
		Debounce:        watchFlags.debounce,
		ProcessExisting: watchFlags.existing,
	}, p.Coordinator, logger)
	if err != nil {
		return err
	}
	return w.Run(ctx)
}
