//-------------------------------------------------------------------------
//
// pgEdge Loan ETL
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package pipeline ties the loader, extractors, writer and checks together
// into a full rebuild of the loan portfolio database.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pgEdge/pgedge-loanetl/internal/config"
	"github.com/pgEdge/pgedge-loanetl/internal/datagen"
	"github.com/pgEdge/pgedge-loanetl/internal/db"
	"github.com/pgEdge/pgedge-loanetl/internal/logging"
	"github.com/pgEdge/pgedge-loanetl/internal/portfolio"
	"github.com/pgEdge/pgedge-loanetl/internal/staging"
	"github.com/pgEdge/pgedge-loanetl/internal/store"
)

// ErrInconsistent is returned when the post-load checks fail.
var ErrInconsistent = errors.New("loaded data failed integrity checks")

// Plan is a parsed source file and the dataset derived from it.
type Plan struct {
	Source  string
	Seed    uint64
	Records []staging.Record
	Stats   staging.Stats
	Options portfolio.Options
	Dataset portfolio.Dataset
}

// Result describes a committed rebuild.
type Result struct {
	Run    db.RunInfo
	Report store.Report
}

// Options converts the load configuration into synthesis options.
func Options(cfg config.LoadConfig) (portfolio.Options, error) {
	epoch, err := cfg.EpochDate()
	if err != nil {
		return portfolio.Options{}, err
	}
	return portfolio.Options{
		Epoch:               epoch,
		WindowDays:          cfg.OriginationWindowDays,
		DefaultInterestRate: cfg.DefaultInterestRate,
		LinkMode:            portfolio.LinkMode(cfg.LinkMode),
	}, nil
}

// NewFaker returns a generator for seed, or a clock-seeded one for 0.
func NewFaker(seed uint64) *datagen.Faker {
	if seed == 0 {
		return datagen.NewFaker()
	}
	return datagen.NewFakerWithSeed(seed)
}

// Prepare reads the source file and derives the dataset in memory. It
// does not touch the database.
func Prepare(cfg *config.Config) (*Plan, error) {
	opts, err := Options(cfg.Load)
	if err != nil {
		return nil, err
	}

	records, err := staging.ReadFile(cfg.Source)
	if err != nil {
		return nil, err
	}
	stats := staging.Summarize(records)
	stats.Log()

	f := NewFaker(cfg.Load.Seed)
	logging.Info().
		Uint64("seed", f.Seed()).
		Str("link_mode", string(opts.LinkMode)).
		Msg("Synthesizing portfolio")

	ds, err := portfolio.Build(f, records, opts)
	if err != nil {
		return nil, err
	}
	if err := portfolio.Verify(ds); err != nil {
		return nil, err
	}

	return &Plan{
		Source:  cfg.Source,
		Seed:    f.Seed(),
		Records: records,
		Stats:   stats,
		Options: opts,
		Dataset: ds,
	}, nil
}

// Rebuild replaces every table with a fresh load of the source file. All
// writes and the post-load checks run in one transaction; any failure
// rolls the database back to its previous state.
func Rebuild(ctx context.Context, pool *pgxpool.Pool, cfg *config.Config) (*Result, error) {
	plan, err := Prepare(cfg)
	if err != nil {
		return nil, err
	}

	counts := portfolio.CountRows(plan.Dataset)
	run := db.RunInfo{
		RunID:     uuid.NewString(),
		Source:    plan.Source,
		Seed:      plan.Seed,
		LinkMode:  string(plan.Options.LinkMode),
		Staging:   int64(len(plan.Records)),
		Customers: counts.Customers,
		Loans:     counts.Loans,
		Defaults:  counts.Defaults,
	}

	logging.Info().
		Str("run_id", run.RunID).
		Str("source", run.Source).
		Msg("Starting rebuild")

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := datagen.DefaultBatchConfig()
	batch.BatchSize = cfg.Load.BatchSize

	if err := write(ctx, tx, plan, batch); err != nil {
		return nil, err
	}
	if err := db.SaveMetadata(ctx, tx, run); err != nil {
		return nil, err
	}

	report, err := store.Check(ctx, tx)
	if err != nil {
		return nil, err
	}
	report.Log()
	if !report.Consistent() {
		return nil, ErrInconsistent
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit rebuild: %w", err)
	}

	logging.Info().
		Str("run_id", run.RunID).
		Uint64("seed", run.Seed).
		Int64("customers", run.Customers).
		Int64("loans", run.Loans).
		Int64("defaults", run.Defaults).
		Msg("Rebuild complete")

	return &Result{Run: run, Report: report}, nil
}

func write(ctx context.Context, conn db.DB, plan *Plan, batch datagen.BatchInsertConfig) error {
	if err := Drop(ctx, conn); err != nil {
		return err
	}

	if err := staging.CreateSchema(ctx, conn); err != nil {
		return fmt.Errorf("failed to create staging table: %w", err)
	}
	if err := store.CreateSchema(ctx, conn); err != nil {
		return err
	}

	if _, err := staging.Load(ctx, conn, plan.Records); err != nil {
		return err
	}
	if err := store.NewWriter(conn, batch).Write(ctx, plan.Dataset); err != nil {
		return err
	}

	return store.CreateView(ctx, conn)
}

// Drop removes every object a rebuild creates.
func Drop(ctx context.Context, conn db.DB) error {
	if err := store.DropSchema(ctx, conn); err != nil {
		return err
	}
	if err := staging.DropSchema(ctx, conn); err != nil {
		return fmt.Errorf("failed to drop staging table: %w", err)
	}
	if err := db.DropMetadata(ctx, conn); err != nil {
		return err
	}
	return nil
}
