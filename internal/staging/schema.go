package staging

import (
	"context"

	"github.com/pgEdge/pgedge-loanetl/internal/db"
)

// Staging mirrors the source file; only column typing is enforced.
const createSchemaSQL = `
CREATE TABLE staging_loans (
    person_age                 INTEGER,
    person_income              NUMERIC(14,2),
    person_home_ownership      VARCHAR(20),
    person_emp_length          NUMERIC(5,1),
    loan_intent                VARCHAR(30),
    loan_grade                 CHAR(1),
    loan_amnt                  NUMERIC(12,2),
    loan_int_rate              NUMERIC(5,2),
    loan_status                INTEGER,
    loan_percent_income        NUMERIC(5,2),
    cb_person_default_on_file  CHAR(1),
    cb_person_cred_hist_length INTEGER
);
`

const dropSchemaSQL = `
DROP TABLE IF EXISTS staging_loans CASCADE;
`

// CreateSchema creates the staging table.
func CreateSchema(ctx context.Context, conn db.DB) error {
	_, err := conn.Exec(ctx, createSchemaSQL)
	return err
}

// DropSchema drops the staging table.
func DropSchema(ctx context.Context, conn db.DB) error {
	_, err := conn.Exec(ctx, dropSchemaSQL)
	return err
}
