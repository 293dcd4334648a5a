package portfolio

import (
	"sort"
	"time"
)

// LoanSummary is one row of the denormalized reporting projection.
type LoanSummary struct {
	LoanID          int64
	CustomerID      int64
	Age             int
	Income          float64
	HomeOwnership   string
	Region          string
	Amount          float64
	Intent          string
	Grade           string
	InterestRate    float64
	Status          int
	OriginationDate time.Time
	TermMonths      int
	MonthlyPayment  float64

	// Nil unless the loan defaulted.
	DefaultDate        *time.Time
	OutstandingBalance *float64
	RecoveredAmount    *float64
	RecoveryStatus     *RecoveryStatus

	// LoanAgeMonths runs from origination to the default date, or to now.
	LoanAgeMonths int
}

// Summaries joins loans to their customers (inner) and defaults (left
// outer), ordered by loan ID. It is recomputed on every call.
func Summaries(ds Dataset, now time.Time) []LoanSummary {
	customers := make(map[int64]Customer, len(ds.Customers))
	for _, c := range ds.Customers {
		customers[c.ID] = c
	}
	defaults := make(map[int64]DefaultEvent, len(ds.Defaults))
	for _, d := range ds.Defaults {
		defaults[d.LoanID] = d
	}

	out := make([]LoanSummary, 0, len(ds.Loans))
	for _, l := range ds.Loans {
		c, ok := customers[l.CustomerID]
		if !ok {
			continue
		}

		s := LoanSummary{
			LoanID:          l.ID,
			CustomerID:      c.ID,
			Age:             c.Age,
			Income:          c.Income,
			HomeOwnership:   c.HomeOwnership,
			Region:          c.Region,
			Amount:          l.Amount,
			Intent:          l.Intent,
			Grade:           l.Grade,
			InterestRate:    l.InterestRate,
			Status:          l.Status,
			OriginationDate: l.OriginationDate,
			TermMonths:      l.TermMonths,
			MonthlyPayment:  l.MonthlyPayment,
		}

		end := now
		if d, ok := defaults[l.ID]; ok {
			s.DefaultDate = &d.DefaultDate
			s.OutstandingBalance = &d.OutstandingBalance
			s.RecoveredAmount = &d.RecoveredAmount
			s.RecoveryStatus = &d.RecoveryStatus
			end = d.DefaultDate
		}
		s.LoanAgeMonths = MonthsBetween(l.OriginationDate, end)

		out = append(out, s)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].LoanID < out[j].LoanID })
	return out
}

// MonthsBetween returns the whole months elapsed from from to to, counted
// the way PostgreSQL's age() does. It is negative when to precedes from.
func MonthsBetween(from, to time.Time) int {
	if to.Before(from) {
		return -MonthsBetween(to, from)
	}
	fy, fm, fd := from.Date()
	ty, tm, td := to.Date()
	months := (ty-fy)*12 + int(tm-fm)
	if td < fd {
		months--
	}
	return months
}
