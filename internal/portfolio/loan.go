package portfolio

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pgEdge/pgedge-loanetl/internal/datagen"
	"github.com/pgEdge/pgedge-loanetl/internal/staging"
)

// LinkMode selects how a loan's customer_id is chosen.
type LinkMode string

const (
	// LinkIndependent draws customer_id from its own permutation of 1..N.
	// Every value exists in customers, but a loan is not tied to the
	// customer built from the same source row.
	LinkIndependent LinkMode = "independent"

	// LinkRow uses the ID of the customer built from the same source row.
	LinkRow LinkMode = "row"
)

// Options control loan synthesis.
type Options struct {
	// Epoch is the earliest origination date.
	Epoch time.Time

	// WindowDays is the width of the origination window in days.
	WindowDays int

	// DefaultInterestRate replaces a missing rate.
	DefaultInterestRate float64

	// LinkMode selects the customer link semantics.
	LinkMode LinkMode
}

// DefaultOptions returns the standard synthesis options.
func DefaultOptions() Options {
	return Options{
		Epoch:               time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC),
		WindowDays:          1825,
		DefaultInterestRate: 10.0,
		LinkMode:            LinkIndependent,
	}
}

// Loan is one loan with its derived schedule.
type Loan struct {
	ID              int64
	CustomerID      int64
	Amount          float64
	Intent          string
	Grade           string
	InterestRate    float64
	PercentIncome   float64
	Status          int
	OriginationDate time.Time
	TermMonths      int
	MonthlyPayment  float64
}

// Defaulted reports whether the loan has status 1.
func (l Loan) Defaulted() bool {
	return l.Status == 1
}

// TermMonths buckets a loan amount into a term.
func TermMonths(amount float64) int {
	switch {
	case amount < 5000:
		return 12
	case amount < 10000:
		return 24
	case amount < 20000:
		return 36
	default:
		return 60
	}
}

// MonthlyPayment is amount / term rounded to cents. No interest is applied.
func MonthlyPayment(amount float64, termMonths int) float64 {
	if termMonths <= 0 {
		return 0
	}
	return roundCents(decimal.NewFromFloat(amount).Div(decimal.NewFromInt(int64(termMonths))))
}

// ExtractLoans builds one loan per record. customers must be the result of
// ExtractCustomers over the same records.
func ExtractLoans(f *datagen.Faker, records []staging.Record, customers []Customer, opts Options) ([]Loan, error) {
	if len(customers) != len(records) {
		return nil, fmt.Errorf("have %d customers for %d records", len(customers), len(records))
	}

	ids := f.Perm(len(records))

	var links []int64
	switch opts.LinkMode {
	case LinkIndependent, "":
		links = f.Perm(len(records))
	case LinkRow:
		links = make([]int64, len(customers))
		for i, c := range customers {
			links[i] = c.ID
		}
	default:
		return nil, fmt.Errorf("unknown link mode: %s", opts.LinkMode)
	}

	loans := make([]Loan, len(records))
	for i, r := range records {
		if r.LoanStatus != 0 && r.LoanStatus != 1 {
			return nil, fmt.Errorf("line %d: %w", r.Line, ErrInvalidStatus)
		}

		rate := opts.DefaultInterestRate
		if r.InterestRate != nil {
			rate = *r.InterestRate
		}

		term := TermMonths(r.LoanAmount)
		loans[i] = Loan{
			ID:              ids[i],
			CustomerID:      links[i],
			Amount:          r.LoanAmount,
			Intent:          r.LoanIntent,
			Grade:           r.LoanGrade,
			InterestRate:    rate,
			PercentIncome:   r.PercentIncome,
			Status:          r.LoanStatus,
			OriginationDate: f.DaysAfter(opts.Epoch, opts.WindowDays),
			TermMonths:      term,
			MonthlyPayment:  MonthlyPayment(r.LoanAmount, term),
		}
	}

	return loans, nil
}
