package portfolio

import (
	"fmt"

	"github.com/pgEdge/pgedge-loanetl/internal/datagen"
	"github.com/pgEdge/pgedge-loanetl/internal/staging"
)

// Dataset holds the three derived relations.
type Dataset struct {
	Customers []Customer
	Loans     []Loan
	Defaults  []DefaultEvent
}

// Build runs the customer, loan and default extractors in order, all
// drawing from f.
func Build(f *datagen.Faker, records []staging.Record, opts Options) (Dataset, error) {
	customers, err := ExtractCustomers(f, records)
	if err != nil {
		return Dataset{}, fmt.Errorf("failed to extract customers: %w", err)
	}

	loans, err := ExtractLoans(f, records, customers, opts)
	if err != nil {
		return Dataset{}, fmt.Errorf("failed to extract loans: %w", err)
	}

	return Dataset{
		Customers: customers,
		Loans:     loans,
		Defaults:  ExtractDefaults(f, loans),
	}, nil
}
