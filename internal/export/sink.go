//-------------------------------------------------------------------------
//
// pgEdge Loan ETL
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package export

import (
	"context"
	"fmt"
	"sort"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/pgEdge/pgedge-loanetl/internal/logging"
	"github.com/pgEdge/pgedge-loanetl/internal/portfolio"
)

var dialectors = map[string]func(dsn string) gorm.Dialector{
	"sqlite":   sqlite.Open,
	"mysql":    mysql.Open,
	"postgres": postgres.Open,
}

// Drivers returns the supported target drivers, sorted.
func Drivers() []string {
	names := make([]string, 0, len(dialectors))
	for name := range dialectors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Sink is an export target.
type Sink struct {
	db        *gorm.DB
	driver    string
	batchSize int
}

// Open connects to the target identified by driver and dsn.
func Open(driver, dsn string, batchSize int) (*Sink, error) {
	open, ok := dialectors[driver]
	if !ok {
		return nil, fmt.Errorf("unsupported export driver: %s", driver)
	}

	gdb, err := gorm.Open(open(dsn), &gorm.Config{
		Logger:                 newGormLogger(),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s target: %w", driver, err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get %s connection: %w", driver, err)
	}
	if driver == "sqlite" {
		// An in-memory database lives only as long as its one connection.
		sqlDB.SetMaxOpenConns(1)
	}
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping %s target: %w", driver, err)
	}

	logging.Info().Str("driver", driver).Msg("Connected to export target")

	if batchSize < 1 {
		batchSize = 500
	}
	return &Sink{db: gdb, driver: driver, batchSize: batchSize}, nil
}

// Close releases the target connection.
func (s *Sink) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Write replaces the target tables with ds in a single transaction.
func (s *Sink) Write(ctx context.Context, ds portfolio.Dataset) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Migrator().DropTable(models()...); err != nil {
			return fmt.Errorf("failed to drop tables: %w", err)
		}
		if err := tx.AutoMigrate(models()...); err != nil {
			return fmt.Errorf("failed to migrate tables: %w", err)
		}

		if err := s.insert(tx, "customers", toCustomerRows(ds.Customers)); err != nil {
			return err
		}
		if err := s.insert(tx, "loans", toLoanRows(ds.Loans)); err != nil {
			return err
		}
		return s.insert(tx, "defaults", toDefaultRows(ds.Defaults))
	})
	if err != nil {
		return err
	}

	logging.Info().
		Str("driver", s.driver).
		Int("customers", len(ds.Customers)).
		Int("loans", len(ds.Loans)).
		Int("defaults", len(ds.Defaults)).
		Msg("Export complete")
	return nil
}

func (s *Sink) insert(tx *gorm.DB, table string, rows any) error {
	res := tx.CreateInBatches(rows, s.batchSize)
	if res.Error != nil {
		return fmt.Errorf("failed to insert %s: %w", table, res.Error)
	}
	logging.Info().
		Str("table", table).
		Int64("rows", res.RowsAffected).
		Msg("Table complete")
	return nil
}

const orphansSQL = `
SELECT
    (SELECT COUNT(*) FROM loans l
      WHERE NOT EXISTS (SELECT 1 FROM customers c WHERE c.customer_id = l.customer_id)),
    (SELECT COUNT(*) FROM loans l
      WHERE l.loan_status = 1
        AND NOT EXISTS (SELECT 1 FROM defaults d WHERE d.loan_id = l.loan_id)),
    (SELECT COUNT(*) FROM defaults d
      WHERE NOT EXISTS (SELECT 1 FROM loans l WHERE l.loan_id = d.loan_id))
`

// Check counts the target rows and runs the orphan checks there. Staging
// is not exported, so Counts.Staging stays zero.
func (s *Sink) Check(ctx context.Context) (portfolio.Counts, portfolio.Orphans, error) {
	var c portfolio.Counts
	var o portfolio.Orphans
	db := s.db.WithContext(ctx)

	if err := db.Model(&customerRow{}).Count(&c.Customers).Error; err != nil {
		return c, o, fmt.Errorf("failed to count customers: %w", err)
	}
	if err := db.Model(&loanRow{}).Count(&c.Loans).Error; err != nil {
		return c, o, fmt.Errorf("failed to count loans: %w", err)
	}
	if err := db.Model(&loanRow{}).Where("loan_status = ?", 1).Count(&c.DefaultedLoans).Error; err != nil {
		return c, o, fmt.Errorf("failed to count defaulted loans: %w", err)
	}
	if err := db.Model(&defaultRow{}).Count(&c.Defaults).Error; err != nil {
		return c, o, fmt.Errorf("failed to count defaults: %w", err)
	}

	err := db.Raw(orphansSQL).Row().Scan(
		&o.LoansWithoutCustomer, &o.DefaultedWithoutEvent, &o.EventsWithoutLoan,
	)
	if err != nil {
		return c, o, fmt.Errorf("failed to check orphans: %w", err)
	}
	return c, o, nil
}
