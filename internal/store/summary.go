package store

import (
	"context"
	"fmt"

	"github.com/pgEdge/pgedge-loanetl/internal/db"
	"github.com/pgEdge/pgedge-loanetl/internal/portfolio"
)

const summarySQL = `
SELECT loan_id, customer_id, person_age, person_income::float8, person_home_ownership,
       region, loan_amnt::float8, loan_intent, loan_grade, loan_int_rate::float8,
       loan_status, origination_date, term_months, monthly_payment::float8,
       default_date, outstanding_balance::float8, recovered_amount::float8,
       recovery_status, loan_age_months
FROM loan_summary
ORDER BY loan_id
`

// QuerySummaries reads the loan_summary view ordered by loan ID. A limit
// of zero or less returns every row.
func QuerySummaries(ctx context.Context, conn db.DB, limit int) ([]portfolio.LoanSummary, error) {
	query := summarySQL
	var args []any
	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}

	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", SummaryView, err)
	}
	defer rows.Close()

	var out []portfolio.LoanSummary
	for rows.Next() {
		var s portfolio.LoanSummary
		var status *string
		if err := rows.Scan(
			&s.LoanID, &s.CustomerID, &s.Age, &s.Income, &s.HomeOwnership,
			&s.Region, &s.Amount, &s.Intent, &s.Grade, &s.InterestRate,
			&s.Status, &s.OriginationDate, &s.TermMonths, &s.MonthlyPayment,
			&s.DefaultDate, &s.OutstandingBalance, &s.RecoveredAmount,
			&status, &s.LoanAgeMonths,
		); err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", SummaryView, err)
		}
		if status != nil {
			rs := portfolio.RecoveryStatus(*status)
			s.RecoveryStatus = &rs
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
