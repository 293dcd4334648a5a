//-------------------------------------------------------------------------
//
// pgEdge Loan ETL
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package db

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/pgEdge/pgedge-loanetl/internal/logging"
	"github.com/pgEdge/pgedge-loanetl/pkg/version"
)

const metadataTable = "etl_metadata"

// createMetadataTableSQL creates the metadata table if it doesn't exist.
const createMetadataTableSQL = `
CREATE TABLE IF NOT EXISTS etl_metadata (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
)`

// RunInfo describes one rebuild.
type RunInfo struct {
	RunID     string
	Source    string
	Seed      uint64
	LinkMode  string
	Staging   int64
	Customers int64
	Loans     int64
	Defaults  int64
}

// Values flattens the run into metadata key/value pairs.
func (r RunInfo) Values() map[string]string {
	return map[string]string{
		"run_id":    r.RunID,
		"source":    r.Source,
		"seed":      strconv.FormatUint(r.Seed, 10),
		"link_mode": r.LinkMode,
		"staging":   strconv.FormatInt(r.Staging, 10),
		"customers": strconv.FormatInt(r.Customers, 10),
		"loans":     strconv.FormatInt(r.Loans, 10),
		"defaults":  strconv.FormatInt(r.Defaults, 10),
	}
}

// SaveMetadata records a completed rebuild.
func SaveMetadata(ctx context.Context, conn DB, run RunInfo) error {
	_, err := conn.Exec(ctx, createMetadataTableSQL)
	if err != nil {
		return fmt.Errorf("failed to create metadata table: %w", err)
	}

	metadata := run.Values()
	metadata["version"] = version.Short()
	metadata["loaded_at"] = time.Now().UTC().Format(time.RFC3339)

	// Stable order keeps the statement log readable
	keys := make([]string, 0, len(metadata))
	for k := range metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		_, err := conn.Exec(ctx, `
            INSERT INTO etl_metadata (key, value) VALUES ($1, $2)
            ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value
        `, key, metadata[key])
		if err != nil {
			return fmt.Errorf("failed to save metadata %s: %w", key, err)
		}
	}

	logging.Debug().
		Str("run_id", run.RunID).
		Uint64("seed", run.Seed).
		Msg("Saved metadata")

	return nil
}

// GetMetadataValue retrieves a single metadata value by key.
func GetMetadataValue(ctx context.Context, conn DB, key string) (string, error) {
	var value string
	err := conn.QueryRow(ctx, `
        SELECT value FROM etl_metadata WHERE key = $1
    `, key).Scan(&value)
	if err != nil {
		return "", err
	}
	return value, nil
}

// GetAllMetadata retrieves all metadata as a map.
func GetAllMetadata(ctx context.Context, conn DB) (map[string]string, error) {
	rows, err := conn.Query(ctx, `SELECT key, value FROM etl_metadata`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	metadata := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		metadata[key] = value
	}

	return metadata, rows.Err()
}

// DropMetadata drops the metadata table.
func DropMetadata(ctx context.Context, conn DB) error {
	_, err := conn.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", metadataTable))
	return err
}
