package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/calcflow-labs/calcflow/internal/engine"
	"github.com/calcflow-labs/calcflow/internal/workbook"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Evaluate the workbook and record a run",
		Long: `Evaluate the workbook's calculation graph and execute its dataset
steps in order. The run is recorded in the run history database.

Node errors (unit mismatches, circular dependencies) are reported per
node without failing the run; the first failing step aborts the rest.`,
		Example: `  # Run the workbook in the current directory
  calcflow run

  # Run a specific workbook with a persistent run database
  calcflow run -w pipelines/fleet.yaml --state .calcflow/runs.db

  # JSON output for CI
  calcflow run -o json`,
		Args: cobra.NoArgs,
		RunE: runRun,
	}
	return cmd
}

func runRun(cmd *cobra.Command, _ []string) error {
	wb, err := loadWorkbook(cfg)
	if err != nil {
		return err
	}

	eng, err := createEngine(cfg, wb)
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	report, runErr := eng.Run(cmd.Context())
	if report == nil {
		return runErr
	}

	if cfg.Output == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
		return runErr
	}

	renderRunReport(cmd.OutOrStdout(), report)
	return runErr
}

// loadWorkbook resolves the workbook path from config, falling back to
// workbook.yaml/yml discovery in the current directory.
func loadWorkbook(cfg *Config) (*workbook.Workbook, error) {
	path := cfg.Workbook
	if _, err := os.Stat(path); err != nil {
		if path != DefaultWorkbook {
			return nil, fmt.Errorf("workbook not found: %s", path)
		}
		wb, err := workbook.LoadFromDir(".")
		if err != nil {
			return nil, err
		}
		if wb == nil {
			return nil, fmt.Errorf("no workbook found: create %s or pass --workbook", workbook.WorkbookFileName)
		}
		return wb, nil
	}
	return workbook.Load(path)
}

// createEngine builds an engine with the run database directory in place.
func createEngine(cfg *Config, wb *workbook.Workbook) (*engine.Engine, error) {
	if dir := filepath.Dir(cfg.StatePath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create state directory: %w", err)
		}
	}
	return engine.New(engine.Config{
		Workbook:  wb,
		StatePath: cfg.StatePath,
		Logger:    logger,
	})
}
