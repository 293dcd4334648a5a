//-------------------------------------------------------------------------
//
// pgEdge Loan ETL
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package store writes the normalized loan portfolio to PostgreSQL and
// runs the integrity and summary queries against it.
package store

import (
	"context"
	"fmt"

	"github.com/pgEdge/pgedge-loanetl/internal/db"
)

// Table and view names.
const (
	CustomersTable = "customers"
	LoansTable     = "loans"
	DefaultsTable  = "defaults"
	SummaryView    = "loan_summary"
)

// Schema SQL for the normalized tables.
const createSchemaSQL = `
-- Customers: one per staged row
CREATE TABLE customers (
    customer_id                INTEGER PRIMARY KEY,
    person_age                 INTEGER NOT NULL,
    person_income              NUMERIC(14,2) NOT NULL CHECK (person_income >= 0),
    person_home_ownership      VARCHAR(20) NOT NULL,
    person_emp_length          NUMERIC(5,1) NOT NULL CHECK (person_emp_length >= 0),
    cb_person_default_on_file  CHAR(1) NOT NULL,
    cb_person_cred_hist_length INTEGER NOT NULL,
    region                     VARCHAR(10) NOT NULL
);

-- Loans: one per staged row
CREATE TABLE loans (
    loan_id             INTEGER PRIMARY KEY,
    customer_id         INTEGER NOT NULL REFERENCES customers(customer_id),
    loan_amnt           NUMERIC(12,2) NOT NULL,
    loan_intent         VARCHAR(30) NOT NULL,
    loan_grade          CHAR(1) NOT NULL,
    loan_int_rate       NUMERIC(5,2) NOT NULL,
    loan_percent_income NUMERIC(5,2) NOT NULL,
    loan_status         INTEGER NOT NULL CHECK (loan_status IN (0, 1)),
    origination_date    DATE NOT NULL,
    term_months         INTEGER NOT NULL CHECK (term_months IN (12, 24, 36, 60)),
    monthly_payment     NUMERIC(12,2) NOT NULL
);

CREATE INDEX idx_loans_customer ON loans(customer_id);
CREATE INDEX idx_loans_grade ON loans(loan_grade);

-- Defaults: one per loan with loan_status = 1
CREATE TABLE defaults (
    default_id          INTEGER PRIMARY KEY,
    loan_id             INTEGER NOT NULL UNIQUE REFERENCES loans(loan_id),
    customer_id         INTEGER NOT NULL REFERENCES customers(customer_id),
    default_date        DATE NOT NULL,
    outstanding_balance NUMERIC(12,2) NOT NULL,
    recovered_amount    NUMERIC(12,2) NOT NULL,
    recovery_status     VARCHAR(20) NOT NULL
        CHECK (recovery_status IN ('IN_COLLECTION', 'PARTIALLY_RECOVERED', 'CHARGED_OFF'))
);

CREATE INDEX idx_defaults_customer ON defaults(customer_id);
`

// The view is recomputed on every read.
const createViewSQL = `
CREATE VIEW loan_summary AS
SELECT
    l.loan_id,
    c.customer_id,
    c.person_age,
    c.person_income,
    c.person_home_ownership,
    c.region,
    l.loan_amnt,
    l.loan_intent,
    l.loan_grade,
    l.loan_int_rate,
    l.loan_status,
    l.origination_date,
    l.term_months,
    l.monthly_payment,
    d.default_date,
    d.outstanding_balance,
    d.recovered_amount,
    d.recovery_status,
    (EXTRACT(YEAR FROM age(COALESCE(d.default_date, CURRENT_DATE), l.origination_date)) * 12 +
     EXTRACT(MONTH FROM age(COALESCE(d.default_date, CURRENT_DATE), l.origination_date)))::int
        AS loan_age_months
FROM loans l
JOIN customers c ON c.customer_id = l.customer_id
LEFT JOIN defaults d ON d.loan_id = l.loan_id;
`

const dropSchemaSQL = `
DROP VIEW IF EXISTS loan_summary;
DROP TABLE IF EXISTS defaults CASCADE;
DROP TABLE IF EXISTS loans CASCADE;
DROP TABLE IF EXISTS customers CASCADE;
`

// CreateSchema creates the customers, loans and defaults tables.
func CreateSchema(ctx context.Context, conn db.DB) error {
	if _, err := conn.Exec(ctx, createSchemaSQL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// CreateView creates loan_summary. The tables must exist.
func CreateView(ctx context.Context, conn db.DB) error {
	if _, err := conn.Exec(ctx, createViewSQL); err != nil {
		return fmt.Errorf("failed to create %s view: %w", SummaryView, err)
	}
	return nil
}

// DropSchema drops the view and the normalized tables, dependents first.
func DropSchema(ctx context.Context, conn db.DB) error {
	if _, err := conn.Exec(ctx, dropSchemaSQL); err != nil {
		return fmt.Errorf("failed to drop schema: %w", err)
	}
	return nil
}
