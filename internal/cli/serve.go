package cli

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/calcflow-labs/calcflow/internal/server"
	"github.com/calcflow-labs/calcflow/internal/state"
	"github.com/calcflow-labs/calcflow/internal/workbook"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the calculation API over HTTP",
		Long: `Start the JSON API server. The dataset and graph endpoints are
stateless; when a workbook is present it is also exposed via POST /api/run,
and run history is served from the run database.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			wb, err := resolveServeWorkbook(cfg)
			if err != nil {
				return err
			}

			if dir := filepath.Dir(cfg.StatePath); dir != "." && dir != "" {
				if err := os.MkdirAll(dir, 0o750); err != nil {
					return fmt.Errorf("failed to create state directory: %w", err)
				}
			}
			store := state.NewSQLiteStore()
			if err := store.Open(cfg.StatePath); err != nil {
				return err
			}
			defer func() { _ = store.Close() }()
			if err := store.InitSchema(); err != nil {
				return err
			}

			srv := server.New(server.Config{
				Port:     cfg.Port,
				Store:    store,
				Workbook: wb,
				Logger:   logger,
			})

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return srv.Serve(ctx)
		},
	}
	return cmd
}

// resolveServeWorkbook loads the server's optional workbook. An explicitly
// named file must exist; the default path falls back to directory discovery
// and may legitimately resolve to no workbook at all.
func resolveServeWorkbook(cfg *Config) (*workbook.Workbook, error) {
	if _, err := os.Stat(cfg.Workbook); err == nil {
		return workbook.Load(cfg.Workbook)
	}
	if cfg.Workbook != DefaultWorkbook {
		return nil, fmt.Errorf("workbook not found: %s", cfg.Workbook)
	}
	return workbook.LoadFromDir(".")
}
