//-------------------------------------------------------------------------
//
// pgEdge Loan ETL
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package staging reads the credit risk CSV file and loads it into the
// staging_loans table.
package staging

// TableName is the staging table.
const TableName = "staging_loans"

// Columns lists the CSV header and staging table columns in file order.
var Columns = []string{
	"person_age",
	"person_income",
	"person_home_ownership",
	"person_emp_length",
	"loan_intent",
	"loan_grade",
	"loan_amnt",
	"loan_int_rate",
	"loan_status",
	"loan_percent_income",
	"cb_person_default_on_file",
	"cb_person_cred_hist_length",
}

// Record is one row of the source file.
type Record struct {
	// Line is the source line the row started on. Not stored.
	Line int

	PersonAge      int
	PersonIncome   float64
	HomeOwnership  string
	EmpLength      *float64 // NULL when the source cell is empty
	LoanIntent     string
	LoanGrade      string
	LoanAmount     float64
	InterestRate   *float64 // NULL when the source cell is empty
	LoanStatus     int
	PercentIncome  float64
	DefaultOnFile  string
	CredHistLength int
}

// Values returns the record's column values in Columns order.
func (r Record) Values() []any {
	return []any{
		r.PersonAge,
		r.PersonIncome,
		r.HomeOwnership,
		r.EmpLength,
		r.LoanIntent,
		r.LoanGrade,
		r.LoanAmount,
		r.InterestRate,
		r.LoanStatus,
		r.PercentIncome,
		r.DefaultOnFile,
		r.CredHistLength,
	}
}
