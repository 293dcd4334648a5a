package portfolio

import (
	"math"
	"time"

	"github.com/pgEdge/pgedge-loanetl/internal/datagen"
)

// RecoveryStatus is the collection outcome of a default.
type RecoveryStatus string

const (
	InCollection       RecoveryStatus = "IN_COLLECTION"
	PartiallyRecovered RecoveryStatus = "PARTIALLY_RECOVERED"
	ChargedOff         RecoveryStatus = "CHARGED_OFF"
)

var (
	recoveryStatuses = []RecoveryStatus{InCollection, PartiallyRecovered, ChargedOff}
	recoveryWeights  = []int{30, 30, 40}
)

// Synthesis ranges, as fractions.
const (
	MinDefaultPoint  = 0.3 // of term
	MaxDefaultPoint  = 0.7
	MinOutstanding   = 0.4 // of amount
	MaxOutstanding   = 0.8
	MinRecoveredPart = 0.2 // of outstanding
	MaxRecoveredPart = 0.5
)

// DefaultEvent is the default record of a loan with status 1.
type DefaultEvent struct {
	ID                 int64
	LoanID             int64
	CustomerID         int64
	DefaultDate        time.Time
	OutstandingBalance float64
	RecoveredAmount    float64
	RecoveryStatus     RecoveryStatus
}

// ExtractDefaults creates one event per defaulted loan, numbered 1..M in
// loan order. Each draw is independent of the loan's grade and of the
// other draws.
func ExtractDefaults(f *datagen.Faker, loans []Loan) []DefaultEvent {
	var events []DefaultEvent

	for _, l := range loans {
		if !l.Defaulted() {
			continue
		}

		point := f.Float64(MinDefaultPoint, MaxDefaultPoint)
		outstanding := fraction(l.Amount, f.Float64(MinOutstanding, MaxOutstanding))
		recovered := fraction(outstanding, f.Float64(MinRecoveredPart, MaxRecoveredPart))

		events = append(events, DefaultEvent{
			ID:                 int64(len(events) + 1),
			LoanID:             l.ID,
			CustomerID:         l.CustomerID,
			DefaultDate:        DefaultDate(l.OriginationDate, l.TermMonths, point),
			OutstandingBalance: outstanding,
			RecoveredAmount:    recovered,
			RecoveryStatus:     datagen.ChooseWeighted(f, recoveryStatuses, recoveryWeights),
		})
	}

	return events
}

// DefaultDate adds point*term months to origination. Whole months are
// calendar months; the fractional month counts as 30 days and partial
// days are dropped.
func DefaultDate(origination time.Time, termMonths int, point float64) time.Time {
	months := float64(termMonths) * point
	whole := math.Floor(months)
	days := math.Floor((months - whole) * 30)
	return AddMonths(origination, int(whole)).AddDate(0, 0, int(days))
}

// AddMonths adds calendar months, clamping to the last day of the target
// month (Jan 31 + 1 month = Feb 28/29).
func AddMonths(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(months), 1, 0, 0, 0, 0, t.Location())
	last := first.AddDate(0, 1, -1).Day()
	return time.Date(first.Year(), first.Month(), min(d, last),
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}
