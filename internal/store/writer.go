//-------------------------------------------------------------------------
//
// pgEdge Loan ETL
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package store

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/pgEdge/pgedge-loanetl/internal/datagen"
	"github.com/pgEdge/pgedge-loanetl/internal/db"
	"github.com/pgEdge/pgedge-loanetl/internal/portfolio"
)

// maxParams is the PostgreSQL bind parameter limit per statement.
const maxParams = 65535

var customerColumns = []string{
	"customer_id", "person_age", "person_income", "person_home_ownership",
	"person_emp_length", "cb_person_default_on_file", "cb_person_cred_hist_length",
	"region",
}

var loanColumns = []string{
	"loan_id", "customer_id", "loan_amnt", "loan_intent", "loan_grade",
	"loan_int_rate", "loan_percent_income", "loan_status", "origination_date",
	"term_months", "monthly_payment",
}

var defaultColumns = []string{
	"default_id", "loan_id", "customer_id", "default_date",
	"outstanding_balance", "recovered_amount", "recovery_status",
}

func customerValues(c portfolio.Customer) []any {
	return []any{
		c.ID, c.Age, c.Income, c.HomeOwnership,
		c.EmpLength, c.DefaultOnFile, c.CredHistLength,
		c.Region,
	}
}

func loanValues(l portfolio.Loan) []any {
	return []any{
		l.ID, l.CustomerID, l.Amount, l.Intent, l.Grade,
		l.InterestRate, l.PercentIncome, l.Status, l.OriginationDate,
		l.TermMonths, l.MonthlyPayment,
	}
}

func defaultValues(d portfolio.DefaultEvent) []any {
	return []any{
		d.ID, d.LoanID, d.CustomerID, d.DefaultDate,
		d.OutstandingBalance, d.RecoveredAmount, string(d.RecoveryStatus),
	}
}

// Writer inserts a dataset into the normalized tables in batches.
type Writer struct {
	conn db.DB
	cfg  datagen.BatchInsertConfig
}

// NewWriter creates a writer on conn, usually the rebuild transaction.
func NewWriter(conn db.DB, cfg datagen.BatchInsertConfig) *Writer {
	if cfg.BatchSize < 1 {
		cfg.BatchSize = datagen.DefaultBatchConfig().BatchSize
	}
	return &Writer{conn: conn, cfg: cfg}
}

// Write inserts customers, then loans, then defaults.
func (w *Writer) Write(ctx context.Context, ds portfolio.Dataset) error {
	if err := w.InsertCustomers(ctx, ds.Customers); err != nil {
		return fmt.Errorf("failed to insert customers: %w", err)
	}
	if err := w.InsertLoans(ctx, ds.Loans); err != nil {
		return fmt.Errorf("failed to insert loans: %w", err)
	}
	if err := w.InsertDefaults(ctx, ds.Defaults); err != nil {
		return fmt.Errorf("failed to insert defaults: %w", err)
	}
	return nil
}

// InsertCustomers inserts customers.
func (w *Writer) InsertCustomers(ctx context.Context, customers []portfolio.Customer) error {
	return w.insertRows(ctx, CustomersTable, customerColumns, len(customers), func(i int) []any {
		return customerValues(customers[i])
	})
}

// InsertLoans inserts loans. Their customers must already exist.
func (w *Writer) InsertLoans(ctx context.Context, loans []portfolio.Loan) error {
	return w.insertRows(ctx, LoansTable, loanColumns, len(loans), func(i int) []any {
		return loanValues(loans[i])
	})
}

// InsertDefaults inserts default events. Their loans must already exist.
func (w *Writer) InsertDefaults(ctx context.Context, events []portfolio.DefaultEvent) error {
	return w.insertRows(ctx, DefaultsTable, defaultColumns, len(events), func(i int) []any {
		return defaultValues(events[i])
	})
}

func (w *Writer) insertRows(ctx context.Context, table string, columns []string, n int, row func(i int) []any) error {
	batchSize := batchRows(w.cfg.BatchSize, len(columns))
	progress := datagen.NewProgressReporter(table, int64(n), w.cfg.ProgressInterval)

	args := make([]any, 0, batchSize*len(columns))
	rows := 0
	for i := 0; i < n; i++ {
		args = append(args, row(i)...)
		rows++

		if rows >= batchSize {
			if err := w.executeBatchInsert(ctx, table, columns, rows, args); err != nil {
				return err
			}
			progress.Update(int64(rows))
			args = args[:0]
			rows = 0
		}
	}

	if rows > 0 {
		if err := w.executeBatchInsert(ctx, table, columns, rows, args); err != nil {
			return err
		}
		progress.Update(int64(rows))
	}

	progress.Done()
	return nil
}

func (w *Writer) executeBatchInsert(ctx context.Context, table string, columns []string, rows int, args []any) error {
	if rows == 0 {
		return nil
	}
	_, err := w.conn.Exec(ctx, insertSQL(table, columns, rows), args...)
	return err
}

// batchRows caps the batch so one statement stays under maxParams.
func batchRows(batchSize, columns int) int {
	limit := maxParams / columns
	if batchSize > limit {
		return limit
	}
	if batchSize < 1 {
		return 1
	}
	return batchSize
}

// insertSQL builds a multi-row INSERT with numbered placeholders.
func insertSQL(table string, columns []string, rows int) string {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(table)
	b.WriteString(" (")
	b.WriteString(strings.Join(columns, ", "))
	b.WriteString(") VALUES ")

	n := 1
	for r := 0; r < rows; r++ {
		if r > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for c := range columns {
			if c > 0 {
				b.WriteString(", ")
			}
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			n++
		}
		b.WriteByte(')')
	}
	return b.String()
}
