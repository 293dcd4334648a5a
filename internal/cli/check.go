package cli

import (
	"errors"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/spf13/cobra"

	"github.com/pgEdge/pgedge-loanetl/internal/db"
	"github.com/pgEdge/pgedge-loanetl/internal/pipeline"
	"github.com/pgEdge/pgedge-loanetl/internal/store"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run the integrity and summary checks against a loaded database",
	Long: `Print staging statistics, row counts, orphan checks and the grade
and portfolio summaries for a database populated by 'load'. Exits with
an error when counts disagree or orphans are found.

Example:
  pgedge-loanetl check --connection "postgres://..."`,
	RunE: runCheck,
}

func runCheck(cmd *cobra.Command, args []string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	pool, err := db.Connect(ctx, cfg.Connection)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	meta, err := db.GetAllMetadata(ctx, pool)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "42P01" { // undefined_table
			return fmt.Errorf("database has not been loaded; run 'pgedge-loanetl load' first")
		}
		return fmt.Errorf("failed to read metadata: %w", err)
	}

	report, err := store.Check(ctx, pool)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	printMetadata(out, meta)
	printReport(out, report)

	if !report.Consistent() {
		return pipeline.ErrInconsistent
	}
	return nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
