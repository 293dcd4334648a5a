package store

import (
	"context"
	"fmt"

	"github.com/pgEdge/pgedge-loanetl/internal/db"
	"github.com/pgEdge/pgedge-loanetl/internal/portfolio"
)

const selectCustomersSQL = `
SELECT customer_id, person_age, person_income::float8, person_home_ownership,
       person_emp_length::float8, cb_person_default_on_file, cb_person_cred_hist_length, region
FROM customers
ORDER BY customer_id
`

const selectLoansSQL = `
SELECT loan_id, customer_id, loan_amnt::float8, loan_intent, loan_grade,
       loan_int_rate::float8, loan_percent_income::float8, loan_status, origination_date,
       term_months, monthly_payment::float8
FROM loans
ORDER BY loan_id
`

const selectDefaultsSQL = `
SELECT default_id, loan_id, customer_id, default_date,
       outstanding_balance::float8, recovered_amount::float8, recovery_status
FROM defaults
ORDER BY default_id
`

// LoadDataset reads the normalized tables back into memory, each ordered
// by its primary key.
func LoadDataset(ctx context.Context, conn db.DB) (portfolio.Dataset, error) {
	var ds portfolio.Dataset
	var err error

	if ds.Customers, err = loadCustomers(ctx, conn); err != nil {
		return portfolio.Dataset{}, err
	}
	if ds.Loans, err = loadLoans(ctx, conn); err != nil {
		return portfolio.Dataset{}, err
	}
	if ds.Defaults, err = loadDefaults(ctx, conn); err != nil {
		return portfolio.Dataset{}, err
	}
	return ds, nil
}

func loadCustomers(ctx context.Context, conn db.DB) ([]portfolio.Customer, error) {
	rows, err := conn.Query(ctx, selectCustomersSQL)
	if err != nil {
		return nil, fmt.Errorf("failed to query customers: %w", err)
	}
	defer rows.Close()

	var out []portfolio.Customer
	for rows.Next() {
		var c portfolio.Customer
		if err := rows.Scan(&c.ID, &c.Age, &c.Income, &c.HomeOwnership,
			&c.EmpLength, &c.DefaultOnFile, &c.CredHistLength, &c.Region); err != nil {
			return nil, fmt.Errorf("failed to scan customer: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func loadLoans(ctx context.Context, conn db.DB) ([]portfolio.Loan, error) {
	rows, err := conn.Query(ctx, selectLoansSQL)
	if err != nil {
		return nil, fmt.Errorf("failed to query loans: %w", err)
	}
	defer rows.Close()

	var out []portfolio.Loan
	for rows.Next() {
		var l portfolio.Loan
		if err := rows.Scan(&l.ID, &l.CustomerID, &l.Amount, &l.Intent, &l.Grade,
			&l.InterestRate, &l.PercentIncome, &l.Status, &l.OriginationDate,
			&l.TermMonths, &l.MonthlyPayment); err != nil {
			return nil, fmt.Errorf("failed to scan loan: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func loadDefaults(ctx context.Context, conn db.DB) ([]portfolio.DefaultEvent, error) {
	rows, err := conn.Query(ctx, selectDefaultsSQL)
	if err != nil {
		return nil, fmt.Errorf("failed to query defaults: %w", err)
	}
	defer rows.Close()

	var out []portfolio.DefaultEvent
	for rows.Next() {
		var d portfolio.DefaultEvent
		var status string
		if err := rows.Scan(&d.ID, &d.LoanID, &d.CustomerID, &d.DefaultDate,
			&d.OutstandingBalance, &d.RecoveredAmount, &status); err != nil {
			return nil, fmt.Errorf("failed to scan default: %w", err)
		}
		d.RecoveryStatus = portfolio.RecoveryStatus(status)
		out = append(out, d)
	}
	return out, rows.Err()
}
