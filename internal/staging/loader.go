package staging

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/pgEdge/pgedge-loanetl/internal/db"
	"github.com/pgEdge/pgedge-loanetl/internal/logging"
)

// Load copies the records into staging_loans. The table must exist.
func Load(ctx context.Context, conn db.DB, records []Record) (int64, error) {
	logging.Info().Int("count", len(records)).Msg("Loading staging table")

	n, err := conn.CopyFrom(ctx,
		pgx.Identifier{TableName},
		Columns,
		pgx.CopyFromSlice(len(records), func(i int) ([]any, error) {
			return records[i].Values(), nil
		}),
	)
	if err != nil {
		return n, fmt.Errorf("failed to copy into %s: %w", TableName, err)
	}

	logging.Info().
		Str("table", TableName).
		Int64("rows", n).
		Msg("Table complete")

	return n, nil
}
