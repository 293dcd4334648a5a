package cli

import (
	"github.com/spf13/cobra"

	"github.com/pgEdge/pgedge-loanetl/internal/logging"
	"github.com/pgEdge/pgedge-loanetl/internal/pipeline"
	"github.com/pgEdge/pgedge-loanetl/internal/portfolio"
	"github.com/pgEdge/pgedge-loanetl/internal/store"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Parse the source CSV and check the derived portfolio offline",
	Long: `Parse the source CSV, print the staging statistics, derive the
portfolio in memory and run every integrity check on it. Nothing is
written to the database and no connection is needed.

Example:
  pgedge-loanetl validate --source credit_risk_dataset.csv --seed 42`,
	RunE: runValidate,
}

func init() {
	addSourceFlags(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	applySourceFlags(cmd)

	if err := cfg.ValidateSource(); err != nil {
		return err
	}

	plan, err := pipeline.Prepare(cfg)
	if err != nil {
		return err
	}

	ds := plan.Dataset
	counts := portfolio.CountRows(ds)
	counts.Staging = int64(len(plan.Records))

	report := store.Report{
		Staging:   plan.Stats,
		Counts:    counts,
		Orphans:   portfolio.CountOrphans(ds),
		Grades:    portfolio.SummarizeGrades(ds),
		Portfolio: portfolio.SummarizePortfolio(ds),
	}
	printReport(cmd.OutOrStdout(), report)

	logging.Info().
		Uint64("seed", plan.Seed).
		Msg("Source file is valid")
	return nil
}
