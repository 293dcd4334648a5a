//-------------------------------------------------------------------------
//
// pgEdge Loan ETL
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

//go:build integration
// +build integration

// Integration tests for the rebuild and export pipeline.
// Run with: go test -tags=integration ./internal/pipeline/...
// Requires PostgreSQL to be available.
// Set PGEDGE_TEST_CONN environment variable to override connection string.

package pipeline_test

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/pgEdge/pgedge-loanetl/internal/config"
	"github.com/pgEdge/pgedge-loanetl/internal/db"
	"github.com/pgEdge/pgedge-loanetl/internal/export"
	"github.com/pgEdge/pgedge-loanetl/internal/pipeline"
	"github.com/pgEdge/pgedge-loanetl/internal/portfolio"
	"github.com/pgEdge/pgedge-loanetl/internal/store"
	"github.com/pgEdge/pgedge-loanetl/internal/testutil"
)

func integrationConfig(seed uint64) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Source = "../staging/testdata/sample.csv"
	cfg.Load.Seed = seed
	cfg.Load.BatchSize = 3
	return cfg
}

func TestRebuildIntegration(t *testing.T) {
	pool, _ := testutil.NewTestDB(t, "rebuild")
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	cfg := integrationConfig(11)
	result, err := pipeline.Rebuild(ctx, pool, cfg)
	if err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}

	t.Run("counts", func(t *testing.T) {
		expected := portfolio.Counts{Staging: 10, Customers: 10, Loans: 10, Defaults: 7, DefaultedLoans: 7}
		counts, err := store.Counts(ctx, pool)
		if err != nil {
			t.Fatalf("Counts failed: %v", err)
		}
		if counts != expected {
			t.Errorf("Expected %+v, got %+v", expected, counts)
		}
		if result.Report.Counts != expected {
			t.Errorf("Expected report counts %+v, got %+v", expected, result.Report.Counts)
		}
	})

	t.Run("orphans", func(t *testing.T) {
		orphans, err := store.Orphans(ctx, pool)
		if err != nil {
			t.Fatalf("Orphans failed: %v", err)
		}
		if orphans.LoansWithoutCustomer != 0 || orphans.DefaultedWithoutEvent != 0 || orphans.EventsWithoutLoan != 0 {
			t.Errorf("Expected no orphans, got %+v", orphans)
		}
	})

	t.Run("objects", func(t *testing.T) {
		for _, name := range []string{"staging_loans", "customers", "loans", "defaults", "loan_summary", "etl_metadata"} {
			if !testutil.TableExists(t, pool, name) {
				t.Errorf("Expected %s to exist", name)
			}
		}
	})

	t.Run("staging stats", func(t *testing.T) {
		s := result.Report.Staging
		if s.Rows != 10 || s.NullEmpLength != 1 || s.NullInterestRate != 1 ||
			s.Defaulted != 7 || s.ImplausibleAges != 1 || s.MaxAge != 144 {
			t.Errorf("Unexpected staging stats: %+v", s)
		}
	})

	t.Run("round trip", func(t *testing.T) {
		plan, err := pipeline.Prepare(cfg)
		if err != nil {
			t.Fatalf("Prepare failed: %v", err)
		}
		loaded, err := store.LoadDataset(ctx, pool)
		if err != nil {
			t.Fatalf("LoadDataset failed: %v", err)
		}

		loans := make(map[int64]portfolio.Loan)
		for _, l := range loaded.Loans {
			loans[l.ID] = l
		}
		for _, want := range plan.Dataset.Loans {
			if got := loans[want.ID]; !reflect.DeepEqual(got, want) {
				t.Errorf("Loan %d: expected %+v, got %+v", want.ID, want, got)
			}
		}

		customers := make(map[int64]portfolio.Customer)
		for _, c := range loaded.Customers {
			customers[c.ID] = c
		}
		for _, want := range plan.Dataset.Customers {
			if got := customers[want.ID]; !reflect.DeepEqual(got, want) {
				t.Errorf("Customer %d: expected %+v, got %+v", want.ID, want, got)
			}
		}

		if !reflect.DeepEqual(loaded.Defaults, plan.Dataset.Defaults) {
			t.Errorf("Defaults differ after round trip")
		}
	})

	t.Run("summary view", func(t *testing.T) {
		rows, err := store.QuerySummaries(ctx, pool, 0)
		if err != nil {
			t.Fatalf("QuerySummaries failed: %v", err)
		}
		if len(rows) != 10 {
			t.Fatalf("Expected 10 rows, got %d", len(rows))
		}

		var today time.Time
		if err := pool.QueryRow(ctx, "SELECT CURRENT_DATE").Scan(&today); err != nil {
			t.Fatalf("Failed to read current date: %v", err)
		}

		for i, s := range rows {
			if s.LoanID != int64(i+1) {
				t.Errorf("Row %d has loan id %d", i, s.LoanID)
			}
			end := today
			if s.DefaultDate != nil {
				end = *s.DefaultDate
			}
			if want := portfolio.MonthsBetween(s.OriginationDate, end); s.LoanAgeMonths != want {
				t.Errorf("Loan %d age %d months, expected %d", s.LoanID, s.LoanAgeMonths, want)
			}
			if (s.Status == 1) != (s.RecoveryStatus != nil) {
				t.Errorf("Loan %d status %d with recovery status %v", s.LoanID, s.Status, s.RecoveryStatus)
			}
		}

		limited, err := store.QuerySummaries(ctx, pool, 3)
		if err != nil {
			t.Fatalf("QuerySummaries failed: %v", err)
		}
		if len(limited) != 3 {
			t.Errorf("Expected 3 rows, got %d", len(limited))
		}
	})

	t.Run("grade summary", func(t *testing.T) {
		grades, err := store.GradeSummary(ctx, pool)
		if err != nil {
			t.Fatalf("GradeSummary failed: %v", err)
		}
		var loans, defaults int64
		for _, g := range grades {
			loans += g.Loans
			defaults += g.Defaults
		}
		if loans != 10 || defaults != 7 {
			t.Errorf("Expected 10 loans and 7 defaults across grades, got %d and %d", loans, defaults)
		}

		p, err := store.PortfolioSummary(ctx, pool)
		if err != nil {
			t.Fatalf("PortfolioSummary failed: %v", err)
		}
		if p.Loans != 10 || p.Defaults != 7 || p.DefaultRate != 70 {
			t.Errorf("Unexpected portfolio summary: %+v", p)
		}
	})

	t.Run("metadata", func(t *testing.T) {
		meta, err := db.GetAllMetadata(ctx, pool)
		if err != nil {
			t.Fatalf("GetAllMetadata failed: %v", err)
		}
		if meta["seed"] != "11" {
			t.Errorf("Expected seed 11, got %q", meta["seed"])
		}
		if meta["run_id"] != result.Run.RunID {
			t.Errorf("Expected run id %s, got %s", result.Run.RunID, meta["run_id"])
		}
		if meta["link_mode"] != config.LinkIndependent {
			t.Errorf("Expected link mode %s, got %s", config.LinkIndependent, meta["link_mode"])
		}
	})
}

func TestRebuildReplacesPreviousLoad(t *testing.T) {
	pool, _ := testutil.NewTestDB(t, "replace")
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if _, err := pipeline.Rebuild(ctx, pool, integrationConfig(1)); err != nil {
		t.Fatalf("First rebuild failed: %v", err)
	}

	cfg := integrationConfig(2)
	cfg.Load.LinkMode = config.LinkRow
	if _, err := pipeline.Rebuild(ctx, pool, cfg); err != nil {
		t.Fatalf("Second rebuild failed: %v", err)
	}

	counts, err := store.Counts(ctx, pool)
	if err != nil {
		t.Fatalf("Counts failed: %v", err)
	}
	if counts.Staging != 10 || counts.Loans != 10 {
		t.Errorf("Expected a single load of 10 rows, got %+v", counts)
	}

	seed, err := db.GetMetadataValue(ctx, pool, "seed")
	if err != nil {
		t.Fatalf("GetMetadataValue failed: %v", err)
	}
	if seed != "2" {
		t.Errorf("Expected seed 2, got %s", seed)
	}
}

func TestFailedRebuildKeepsPreviousLoad(t *testing.T) {
	pool, _ := testutil.NewTestDB(t, "failed")
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if _, err := pipeline.Rebuild(ctx, pool, integrationConfig(3)); err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}

	bad := integrationConfig(4)
	bad.Source = "testdata/missing.csv"
	if _, err := pipeline.Rebuild(ctx, pool, bad); err == nil {
		t.Fatal("Expected error for missing source, got nil")
	}

	counts, err := store.Counts(ctx, pool)
	if err != nil {
		t.Fatalf("Counts failed: %v", err)
	}
	if counts.Loans != 10 {
		t.Errorf("Expected previous load to survive, got %+v", counts)
	}
}

func TestExportIntegration(t *testing.T) {
	pool, _ := testutil.NewTestDB(t, "export")
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if _, err := pipeline.Rebuild(ctx, pool, integrationConfig(5)); err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}

	target := config.ExportConfig{
		Driver:    "sqlite",
		DSN:       filepath.Join(t.TempDir(), "export.db"),
		BatchSize: 4,
	}
	if err := pipeline.Export(ctx, pool, target); err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	sink, err := export.Open(target.Driver, target.DSN, target.BatchSize)
	if err != nil {
		t.Fatalf("Failed to reopen export target: %v", err)
	}
	defer sink.Close()

	counts, orphans, err := sink.Check(ctx)
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if counts.Customers != 10 || counts.Loans != 10 || counts.Defaults != 7 {
		t.Errorf("Expected 10/10/7 rows in target, got %+v", counts)
	}
	if orphans.Total() != 0 {
		t.Errorf("Expected no orphans in target, got %+v", orphans)
	}
}
