package store

import (
	"context"
	"fmt"

	"github.com/pgEdge/pgedge-loanetl/internal/db"
	"github.com/pgEdge/pgedge-loanetl/internal/logging"
	"github.com/pgEdge/pgedge-loanetl/internal/portfolio"
	"github.com/pgEdge/pgedge-loanetl/internal/staging"
)

const countsSQL = `
SELECT
    (SELECT COUNT(*) FROM staging_loans),
    (SELECT COUNT(*) FROM customers),
    (SELECT COUNT(*) FROM loans),
    (SELECT COUNT(*) FROM defaults),
    (SELECT COUNT(*) FROM loans WHERE loan_status = 1)
`

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

const gradeSummarySQL = `
SELECT
    loan_grade,
    COUNT(*),
    COUNT(*) FILTER (WHERE loan_status = 1),
    ROUND(100.0 * COUNT(*) FILTER (WHERE loan_status = 1) / COUNT(*), 2)::float8,
    ROUND(AVG(loan_int_rate), 2)::float8,
    SUM(loan_amnt)::float8
FROM loans
GROUP BY loan_grade
ORDER BY loan_grade
`

const portfolioSummarySQL = `
SELECT
    COUNT(*),
    COUNT(*) FILTER (WHERE l.loan_status = 1),
    COALESCE(ROUND(100.0 * COUNT(*) FILTER (WHERE l.loan_status = 1) / NULLIF(COUNT(*), 0), 2), 0)::float8,
    COALESCE(ROUND(AVG(l.loan_int_rate), 2), 0)::float8,
    COALESCE(SUM(l.loan_amnt), 0)::float8,
    COALESCE(SUM(d.outstanding_balance), 0)::float8,
    COALESCE(SUM(d.recovered_amount), 0)::float8,
    COALESCE(ROUND(100.0 * SUM(d.recovered_amount) / NULLIF(SUM(d.outstanding_balance), 0), 2), 0)::float8
FROM loans l
LEFT JOIN defaults d ON d.loan_id = l.loan_id
`

// Counts returns the row count of every table, staging included.
func Counts(ctx context.Context, conn db.DB) (portfolio.Counts, error) {
	var c portfolio.Counts
	err := conn.QueryRow(ctx, countsSQL).Scan(
		&c.Staging, &c.Customers, &c.Loans, &c.Defaults, &c.DefaultedLoans,
	)
	if err != nil {
		return portfolio.Counts{}, fmt.Errorf("failed to count rows: %w", err)
	}
	return c, nil
}

// Orphans runs the three referential checks.
func Orphans(ctx context.Context, conn db.DB) (portfolio.Orphans, error) {
	var o portfolio.Orphans
	err := conn.QueryRow(ctx, orphansSQL).Scan(
		&o.LoansWithoutCustomer, &o.DefaultedWithoutEvent, &o.EventsWithoutLoan,
	)
	if err != nil {
		return portfolio.Orphans{}, fmt.Errorf("failed to check orphans: %w", err)
	}
	return o, nil
}

// GradeSummary aggregates loans by grade.
func GradeSummary(ctx context.Context, conn db.DB) ([]portfolio.GradeSummary, error) {
	rows, err := conn.Query(ctx, gradeSummarySQL)
	if err != nil {
		return nil, fmt.Errorf("failed to query grade summary: %w", err)
	}
	defer rows.Close()

	var out []portfolio.GradeSummary
	for rows.Next() {
		var g portfolio.GradeSummary
		if err := rows.Scan(&g.Grade, &g.Loans, &g.Defaults, &g.DefaultRate,
			&g.AvgInterestRate, &g.TotalAmount); err != nil {
			return nil, fmt.Errorf("failed to scan grade summary: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// PortfolioSummary aggregates the whole book.
func PortfolioSummary(ctx context.Context, conn db.DB) (portfolio.PortfolioSummary, error) {
	var p portfolio.PortfolioSummary
	err := conn.QueryRow(ctx, portfolioSummarySQL).Scan(
		&p.Loans, &p.Defaults, &p.DefaultRate, &p.AvgInterestRate,
		&p.TotalAmount, &p.TotalOutstanding, &p.TotalRecovered, &p.RecoveryRate,
	)
	if err != nil {
		return portfolio.PortfolioSummary{}, fmt.Errorf("failed to query portfolio summary: %w", err)
	}
	return p, nil
}

// Report is the outcome of a full check run.
type Report struct {
	Staging   staging.Stats
	Counts    portfolio.Counts
	Orphans   portfolio.Orphans
	Grades    []portfolio.GradeSummary
	Portfolio portfolio.PortfolioSummary
}

// Consistent reports whether the counts line up and nothing is orphaned.
func (r Report) Consistent() bool {
	c := r.Counts
	return r.Orphans.Total() == 0 &&
		c.Customers == c.Staging &&
		c.Loans == c.Staging &&
		c.Defaults == c.DefaultedLoans
}

// Check runs every validation and integrity query.
func Check(ctx context.Context, conn db.DB) (Report, error) {
	var r Report
	var err error

	if r.Staging, err = staging.QueryStats(ctx, conn); err != nil {
		return Report{}, err
	}
	if r.Counts, err = Counts(ctx, conn); err != nil {
		return Report{}, err
	}
	if r.Orphans, err = Orphans(ctx, conn); err != nil {
		return Report{}, err
	}
	if r.Grades, err = GradeSummary(ctx, conn); err != nil {
		return Report{}, err
	}
	if r.Portfolio, err = PortfolioSummary(ctx, conn); err != nil {
		return Report{}, err
	}
	return r, nil
}

// Log writes the report to the logger. Inconsistencies are warnings.
func (r Report) Log() {
	r.Staging.Log()

	logging.Info().
		Int64("staging", r.Counts.Staging).
		Int64("customers", r.Counts.Customers).
		Int64("loans", r.Counts.Loans).
		Int64("defaults", r.Counts.Defaults).
		Int64("defaulted_loans", r.Counts.DefaultedLoans).
		Msg("Row counts")

	ev := logging.Info()
	if r.Orphans.Total() > 0 {
		ev = logging.Warn()
	}
	ev.Int64("loans_without_customer", r.Orphans.LoansWithoutCustomer).
		Int64("defaulted_without_record", r.Orphans.DefaultedWithoutEvent).
		Int64("records_without_loan", r.Orphans.EventsWithoutLoan).
		Msg("Orphan checks")

	for _, g := range r.Grades {
		logging.Info().
			Str("grade", g.Grade).
			Int64("loans", g.Loans).
			Int64("defaults", g.Defaults).
			Float64("default_rate", g.DefaultRate).
			Float64("avg_int_rate", g.AvgInterestRate).
			Float64("total_amount", g.TotalAmount).
			Msg("Grade summary")
	}

	p := r.Portfolio
	logging.Info().
		Int64("loans", p.Loans).
		Int64("defaults", p.Defaults).
		Float64("default_rate", p.DefaultRate).
		Float64("avg_int_rate", p.AvgInterestRate).
		Float64("total_amount", p.TotalAmount).
		Float64("total_outstanding", p.TotalOutstanding).
		Float64("total_recovered", p.TotalRecovered).
		Float64("recovery_rate", p.RecoveryRate).
		Msg("Portfolio summary")

	if !r.Consistent() {
		logging.Warn().Msg("Row counts or orphan checks are inconsistent")
	}
}
