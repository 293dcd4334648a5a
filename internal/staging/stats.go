package staging

import (
	"context"
	"fmt"

	"github.com/pgEdge/pgedge-loanetl/internal/db"
	"github.com/pgEdge/pgedge-loanetl/internal/logging"
)

// ImplausibleAge is the age above which rows are flagged, never dropped.
const ImplausibleAge = 100

// Stats holds validation statistics over the staged rows.
type Stats struct {
	Rows             int64
	MinAge           int
	MaxAge           int
	MinIncome        float64
	MaxIncome        float64
	MinLoanAmount    float64
	MaxLoanAmount    float64
	NullEmpLength    int64
	NullInterestRate int64
	Defaulted        int64
	ImplausibleAges  int64
}

// EmpLengthNullRate is the percentage of rows with no employment length.
func (s Stats) EmpLengthNullRate() float64 {
	return rate(s.NullEmpLength, s.Rows)
}

// InterestRateNullRate is the percentage of rows with no interest rate.
func (s Stats) InterestRateNullRate() float64 {
	return rate(s.NullInterestRate, s.Rows)
}

// DefaultRate is the percentage of rows with loan_status = 1.
func (s Stats) DefaultRate() float64 {
	return rate(s.Defaulted, s.Rows)
}

func rate(n, total int64) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total) * 100
}

const statsSQL = `
SELECT COUNT(*),
       COALESCE(MIN(person_age), 0),
       COALESCE(MAX(person_age), 0),
       COALESCE(MIN(person_income), 0)::float8,
       COALESCE(MAX(person_income), 0)::float8,
       COALESCE(MIN(loan_amnt), 0)::float8,
       COALESCE(MAX(loan_amnt), 0)::float8,
       COUNT(*) FILTER (WHERE person_emp_length IS NULL),
       COUNT(*) FILTER (WHERE loan_int_rate IS NULL),
       COUNT(*) FILTER (WHERE loan_status = 1),
       COUNT(*) FILTER (WHERE person_age > $1)
FROM staging_loans
`

// QueryStats computes validation statistics over staging_loans.
func QueryStats(ctx context.Context, conn db.DB) (Stats, error) {
	var s Stats
	err := conn.QueryRow(ctx, statsSQL, ImplausibleAge).Scan(
		&s.Rows,
		&s.MinAge, &s.MaxAge,
		&s.MinIncome, &s.MaxIncome,
		&s.MinLoanAmount, &s.MaxLoanAmount,
		&s.NullEmpLength, &s.NullInterestRate,
		&s.Defaulted, &s.ImplausibleAges,
	)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to query staging stats: %w", err)
	}
	return s, nil
}

// Summarize computes the same statistics over parsed records.
func Summarize(records []Record) Stats {
	var s Stats
	for i, r := range records {
		if i == 0 {
			s.MinAge, s.MaxAge = r.PersonAge, r.PersonAge
			s.MinIncome, s.MaxIncome = r.PersonIncome, r.PersonIncome
			s.MinLoanAmount, s.MaxLoanAmount = r.LoanAmount, r.LoanAmount
		}
		s.Rows++
		s.MinAge = min(s.MinAge, r.PersonAge)
		s.MaxAge = max(s.MaxAge, r.PersonAge)
		s.MinIncome = min(s.MinIncome, r.PersonIncome)
		s.MaxIncome = max(s.MaxIncome, r.PersonIncome)
		s.MinLoanAmount = min(s.MinLoanAmount, r.LoanAmount)
		s.MaxLoanAmount = max(s.MaxLoanAmount, r.LoanAmount)
		if r.EmpLength == nil {
			s.NullEmpLength++
		}
		if r.InterestRate == nil {
			s.NullInterestRate++
		}
		if r.LoanStatus == 1 {
			s.Defaulted++
		}
		if r.PersonAge > ImplausibleAge {
			s.ImplausibleAges++
		}
	}
	return s
}

// Log writes the statistics at info level, with a warning for implausible ages.
func (s Stats) Log() {
	logging.Info().
		Int64("rows", s.Rows).
		Int("min_age", s.MinAge).
		Int("max_age", s.MaxAge).
		Float64("min_income", s.MinIncome).
		Float64("max_income", s.MaxIncome).
		Float64("min_loan_amnt", s.MinLoanAmount).
		Float64("max_loan_amnt", s.MaxLoanAmount).
		Int64("null_emp_length", s.NullEmpLength).
		Float64("null_emp_length_pct", s.EmpLengthNullRate()).
		Int64("null_int_rate", s.NullInterestRate).
		Float64("null_int_rate_pct", s.InterestRateNullRate()).
		Int64("defaulted", s.Defaulted).
		Float64("default_rate_pct", s.DefaultRate()).
		Msg("Staging statistics")

	if s.ImplausibleAges > 0 {
		logging.Warn().
			Int64("rows", s.ImplausibleAges).
			Int("threshold", ImplausibleAge).
			Msg("Rows with implausible ages retained")
	}
}
