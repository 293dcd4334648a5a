package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pgEdge/pgedge-loanetl/internal/db"
	"github.com/pgEdge/pgedge-loanetl/internal/export"
	"github.com/pgEdge/pgedge-loanetl/internal/pipeline"
)

var (
	exportDriver string
	exportDSN    string
	exportBatch  int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Copy the loaded portfolio to SQLite or MySQL",
	Long: `Copy customers, loans and defaults from PostgreSQL into a
secondary database, replacing any tables already there, then run the
row count and orphan checks on the target.

Example:
  pgedge-loanetl export --driver sqlite --dsn loans.db
  pgedge-loanetl export --driver mysql --dsn "user:pass@tcp(localhost:3306)/loans?parseTime=true"
  pgedge-loanetl export --driver postgres --dsn "postgres://localhost/loans_copy"`,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVar(&exportDriver, "driver", "",
		"target driver: "+strings.Join(export.Drivers(), ", "))
	exportCmd.Flags().StringVar(&exportDSN, "dsn", "",
		"target data source name")
	exportCmd.Flags().IntVar(&exportBatch, "batch-size", 0,
		"rows per insert batch")
}

func runExport(cmd *cobra.Command, args []string) error {
	if exportDriver != "" {
		cfg.Export.Driver = exportDriver
	}
	if exportDSN != "" {
		cfg.Export.DSN = exportDSN
	}
	if exportBatch > 0 {
		cfg.Export.BatchSize = exportBatch
	}

	if err := cfg.ValidateExport(); err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	pool, err := db.Connect(ctx, cfg.Connection)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	return pipeline.Export(ctx, pool, cfg.Export)
}
