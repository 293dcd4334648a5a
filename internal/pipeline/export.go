package pipeline

import (
	"context"
	"fmt"

	"github.com/pgEdge/pgedge-loanetl/internal/config"
	"github.com/pgEdge/pgedge-loanetl/internal/db"
	"github.com/pgEdge/pgedge-loanetl/internal/export"
	"github.com/pgEdge/pgedge-loanetl/internal/logging"
	"github.com/pgEdge/pgedge-loanetl/internal/portfolio"
	"github.com/pgEdge/pgedge-loanetl/internal/store"
)

// Export copies the normalized tables to the configured target and runs
// the row count and orphan checks there.
func Export(ctx context.Context, conn db.DB, cfg config.ExportConfig) error {
	ds, err := store.LoadDataset(ctx, conn)
	if err != nil {
		return err
	}
	if err := portfolio.Verify(ds); err != nil {
		return fmt.Errorf("source data is inconsistent: %w", err)
	}

	sink, err := export.Open(cfg.Driver, cfg.DSN, cfg.BatchSize)
	if err != nil {
		return err
	}
	defer sink.Close()

	if err := sink.Write(ctx, ds); err != nil {
		return err
	}

	counts, orphans, err := sink.Check(ctx)
	if err != nil {
		return err
	}

	logging.Info().
		Str("driver", cfg.Driver).
		Int64("customers", counts.Customers).
		Int64("loans", counts.Loans).
		Int64("defaults", counts.Defaults).
		Int64("orphans", orphans.Total()).
		Msg("Export checks")

	if want := portfolio.CountRows(ds); counts != want || orphans.Total() != 0 {
		return fmt.Errorf("%w: export target has %+v and %d orphans, expected %+v",
			ErrInconsistent, counts, orphans.Total(), want)
	}
	return nil
}
