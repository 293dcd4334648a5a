package portfolio

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// ErrIntegrity is wrapped by every Verify failure.
var ErrIntegrity = errors.New("integrity check failed")

// centTolerance absorbs cent rounding at the range bounds.
const centTolerance = 0.005

// Counts holds row counts per relation.
type Counts struct {
	Staging        int64
	Customers      int64
	Loans          int64
	Defaults       int64
	DefaultedLoans int64
}

// Orphans holds the three referential checks; all are expected to be zero.
type Orphans struct {
	LoansWithoutCustomer  int64
	DefaultedWithoutEvent int64
	EventsWithoutLoan     int64
}

// Total is the sum of all orphan counts.
func (o Orphans) Total() int64 {
	return o.LoansWithoutCustomer + o.DefaultedWithoutEvent + o.EventsWithoutLoan
}

// CountRows returns the relation sizes of ds. Staging is left at zero.
func CountRows(ds Dataset) Counts {
	c := Counts{
		Customers: int64(len(ds.Customers)),
		Loans:     int64(len(ds.Loans)),
		Defaults:  int64(len(ds.Defaults)),
	}
	for _, l := range ds.Loans {
		if l.Defaulted() {
			c.DefaultedLoans++
		}
	}
	return c
}

// CountOrphans runs the referential checks over ds.
func CountOrphans(ds Dataset) Orphans {
	var o Orphans

	customers := make(map[int64]bool, len(ds.Customers))
	for _, c := range ds.Customers {
		customers[c.ID] = true
	}
	loans := make(map[int64]bool, len(ds.Loans))
	for _, l := range ds.Loans {
		loans[l.ID] = true
		if !customers[l.CustomerID] {
			o.LoansWithoutCustomer++
		}
	}
	events := make(map[int64]bool, len(ds.Defaults))
	for _, d := range ds.Defaults {
		events[d.LoanID] = true
		if !loans[d.LoanID] {
			o.EventsWithoutLoan++
		}
	}
	for _, l := range ds.Loans {
		if l.Defaulted() && !events[l.ID] {
			o.DefaultedWithoutEvent++
		}
	}

	return o
}

// Verify checks every structural property of a dataset and returns all
// violations joined together, each wrapping ErrIntegrity.
func Verify(ds Dataset) error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: %s", ErrIntegrity, fmt.Sprintf(format, args...)))
	}

	if len(ds.Customers) != len(ds.Loans) {
		fail("%d customers for %d loans", len(ds.Customers), len(ds.Loans))
	}
	if err := checkPermutation(customerIDs(ds.Customers)); err != "" {
		fail("customer ids: %s", err)
	}
	if err := checkPermutation(loanIDs(ds.Loans)); err != "" {
		fail("loan ids: %s", err)
	}

	for _, c := range ds.Customers {
		if c.Income < 0 {
			fail("customer %d has negative income", c.ID)
		}
		if c.EmpLength < 0 {
			fail("customer %d has negative employment length", c.ID)
		}
	}

	loans := make(map[int64]Loan, len(ds.Loans))
	for _, l := range ds.Loans {
		loans[l.ID] = l
		if l.Status != 0 && l.Status != 1 {
			fail("loan %d has status %d", l.ID, l.Status)
		}
		if l.TermMonths != TermMonths(l.Amount) {
			fail("loan %d has term %d for amount %.2f", l.ID, l.TermMonths, l.Amount)
		}
		if l.MonthlyPayment != MonthlyPayment(l.Amount, l.TermMonths) {
			fail("loan %d has monthly payment %.2f", l.ID, l.MonthlyPayment)
		}
	}

	seen := make(map[int64]bool, len(ds.Defaults))
	for _, d := range ds.Defaults {
		l, ok := loans[d.LoanID]
		if !ok {
			continue // counted as an orphan below
		}
		if seen[d.LoanID] {
			fail("loan %d has more than one default event", d.LoanID)
		}
		seen[d.LoanID] = true
		if !l.Defaulted() {
			fail("default %d references loan %d with status %d", d.ID, l.ID, l.Status)
		}
		if d.CustomerID != l.CustomerID {
			fail("default %d customer %d differs from loan customer %d", d.ID, d.CustomerID, l.CustomerID)
		}
		if !within(d.OutstandingBalance, l.Amount*MinOutstanding, l.Amount*MaxOutstanding) {
			fail("default %d outstanding balance %.2f outside range for amount %.2f",
				d.ID, d.OutstandingBalance, l.Amount)
		}
		if !within(d.RecoveredAmount, d.OutstandingBalance*MinRecoveredPart, d.OutstandingBalance*MaxRecoveredPart) {
			fail("default %d recovered amount %.2f outside range for balance %.2f",
				d.ID, d.RecoveredAmount, d.OutstandingBalance)
		}
		if d.DefaultDate.Before(l.OriginationDate) {
			fail("default %d precedes origination of loan %d", d.ID, l.ID)
		}
	}

	o := CountOrphans(ds)
	if o.LoansWithoutCustomer > 0 {
		fail("%d loans without customer", o.LoansWithoutCustomer)
	}
	if o.DefaultedWithoutEvent > 0 {
		fail("%d defaulted loans without default record", o.DefaultedWithoutEvent)
	}
	if o.EventsWithoutLoan > 0 {
		fail("%d default records without loan", o.EventsWithoutLoan)
	}

	return errors.Join(errs...)
}

func within(v, lo, hi float64) bool {
	return v >= lo-centTolerance && v <= hi+centTolerance
}

// checkPermutation reports whether ids is exactly 1..len(ids).
func checkPermutation(ids []int64) string {
	sorted := append([]int64(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	for i, id := range sorted {
		if id != int64(i+1) {
			return fmt.Sprintf("expected %d at position %d, got %d", i+1, i, id)
		}
	}
	return ""
}

func customerIDs(cs []Customer) []int64 {
	out := make([]int64, len(cs))
	for i, c := range cs {
		out[i] = c.ID
	}
	return out
}

func loanIDs(ls []Loan) []int64 {
	out := make([]int64, len(ls))
	for i, l := range ls {
		out[i] = l.ID
	}
	return out
}

// GradeSummary aggregates loans of one grade.
type GradeSummary struct {
	Grade           string
	Loans           int64
	Defaults        int64
	DefaultRate     float64 // percent
	AvgInterestRate float64
	TotalAmount     float64
}

// PortfolioSummary aggregates the whole book.
type PortfolioSummary struct {
	Loans            int64
	Defaults         int64
	DefaultRate      float64 // percent
	AvgInterestRate  float64
	TotalAmount      float64
	TotalOutstanding float64
	TotalRecovered   float64
	RecoveryRate     float64 // percent of outstanding
}

// SummarizeGrades returns one summary per grade, ordered by grade.
func SummarizeGrades(ds Dataset) []GradeSummary {
	byGrade := make(map[string]*GradeSummary)
	rateSum := make(map[string]float64)

	for _, l := range ds.Loans {
		g, ok := byGrade[l.Grade]
		if !ok {
			g = &GradeSummary{Grade: l.Grade}
			byGrade[l.Grade] = g
		}
		g.Loans++
		if l.Defaulted() {
			g.Defaults++
		}
		g.TotalAmount += l.Amount
		rateSum[l.Grade] += l.InterestRate
	}

	out := make([]GradeSummary, 0, len(byGrade))
	for grade, g := range byGrade {
		g.DefaultRate = round2(float64(g.Defaults) / float64(g.Loans) * 100)
		g.AvgInterestRate = round2(rateSum[grade] / float64(g.Loans))
		g.TotalAmount = round2(g.TotalAmount)
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Grade < out[j].Grade })
	return out
}

// SummarizePortfolio aggregates every loan and default.
func SummarizePortfolio(ds Dataset) PortfolioSummary {
	var p PortfolioSummary
	var rateSum float64

	for _, l := range ds.Loans {
		p.Loans++
		if l.Defaulted() {
			p.Defaults++
		}
		p.TotalAmount += l.Amount
		rateSum += l.InterestRate
	}
	for _, d := range ds.Defaults {
		p.TotalOutstanding += d.OutstandingBalance
		p.TotalRecovered += d.RecoveredAmount
	}

	if p.Loans > 0 {
		p.DefaultRate = round2(float64(p.Defaults) / float64(p.Loans) * 100)
		p.AvgInterestRate = round2(rateSum / float64(p.Loans))
	}
	if p.TotalOutstanding > 0 {
		p.RecoveryRate = round2(p.TotalRecovered / p.TotalOutstanding * 100)
	}
	p.TotalAmount = round2(p.TotalAmount)
	p.TotalOutstanding = round2(p.TotalOutstanding)
	p.TotalRecovered = round2(p.TotalRecovered)

	return p
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
