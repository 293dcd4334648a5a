//-------------------------------------------------------------------------
//
// pgEdge Loan ETL
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package portfolio derives the customers, loans and defaults relations
// from staged records. All randomness comes from the *datagen.Faker passed
// in, so a seed reproduces a dataset exactly.
package portfolio

import (
	"errors"
	"fmt"

	"github.com/pgEdge/pgedge-loanetl/internal/datagen"
	"github.com/pgEdge/pgedge-loanetl/internal/staging"
)

// Regions are the synthetic customer regions. They are not derived from
// any input attribute.
var Regions = []string{"North", "South", "East", "West", "Central"}

// Validation errors.
var (
	ErrNegativeIncome    = errors.New("person_income must be non-negative")
	ErrNegativeEmpLength = errors.New("person_emp_length must be non-negative")
	ErrInvalidStatus     = errors.New("loan_status must be 0 or 1")
)

// Customer is one borrower. Age is deliberately unbounded.
type Customer struct {
	ID             int64
	Age            int
	Income         float64
	HomeOwnership  string
	EmpLength      float64
	DefaultOnFile  string
	CredHistLength int
	Region         string
}

// ExtractCustomers builds one customer per record. IDs are a fresh random
// permutation of 1..N and a missing employment length becomes 0.
func ExtractCustomers(f *datagen.Faker, records []staging.Record) ([]Customer, error) {
	ids := f.Perm(len(records))
	customers := make([]Customer, len(records))

	for i, r := range records {
		if r.PersonIncome < 0 {
			return nil, fmt.Errorf("line %d: %w", r.Line, ErrNegativeIncome)
		}

		var empLength float64
		if r.EmpLength != nil {
			empLength = *r.EmpLength
		}
		if empLength < 0 {
			return nil, fmt.Errorf("line %d: %w", r.Line, ErrNegativeEmpLength)
		}

		customers[i] = Customer{
			ID:             ids[i],
			Age:            r.PersonAge,
			Income:         r.PersonIncome,
			HomeOwnership:  r.HomeOwnership,
			EmpLength:      empLength,
			DefaultOnFile:  r.DefaultOnFile,
			CredHistLength: r.CredHistLength,
			Region:         datagen.Choose(f, Regions),
		}
	}

	return customers, nil
}
