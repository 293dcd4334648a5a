package portfolio

import (
	"errors"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/pgEdge/pgedge-loanetl/internal/datagen"
	"github.com/pgEdge/pgedge-loanetl/internal/staging"
)

func ptr(v float64) *float64 { return &v }

func record(line, age int, income, amount float64, status int) staging.Record {
	return staging.Record{
		Line:           line,
		PersonAge:      age,
		PersonIncome:   income,
		HomeOwnership:  "RENT",
		EmpLength:      ptr(3),
		LoanIntent:     "PERSONAL",
		LoanGrade:      "B",
		LoanAmount:     amount,
		InterestRate:   ptr(11.5),
		LoanStatus:     status,
		PercentIncome:  0.2,
		DefaultOnFile:  "N",
		CredHistLength: 4,
	}
}

// tenRecords is a small mixed portfolio: every term bucket, both statuses,
// a missing employment length, a missing rate and an implausible age.
func tenRecords() []staging.Record {
	recs := []staging.Record{
		record(2, 30, 50000, 12000, 0),
		record(3, 22, 59000, 35000, 1),
		record(4, 21, 9600, 1000, 0),
		record(5, 25, 9600, 5500, 1),
		record(6, 23, 65500, 3000, 1),
		record(7, 24, 54400, 9999, 0),
		record(8, 144, 78956, 20000, 0),
		record(9, 26, 77100, 19999.99, 1),
		record(10, 21, 10000, 4999.99, 0),
		record(11, 40, 0, 15000, 1),
	}
	recs[2].EmpLength = nil
	recs[3].InterestRate = nil
	recs[4].LoanGrade = "A"
	recs[6].LoanGrade = "G"
	return recs
}

func build(t *testing.T, seed uint64, records []staging.Record, mode LinkMode) Dataset {
	t.Helper()
	opts := DefaultOptions()
	opts.LinkMode = mode
	ds, err := Build(datagen.NewFakerWithSeed(seed), records, opts)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	return ds
}

func TestTermMonths(t *testing.T) {
	tests := []struct {
		amount float64
		want   int
	}{
		{0, 12},
		{3000, 12},
		{4999.99, 12},
		{5000, 24},
		{9999, 24},
		{10000, 36},
		{19999.99, 36},
		{20000, 60},
		{35000, 60},
	}

	for _, tt := range tests {
		if got := TermMonths(tt.amount); got != tt.want {
			t.Errorf("TermMonths(%.2f) = %d, expected %d", tt.amount, got, tt.want)
		}
	}
}

func TestMonthlyPayment(t *testing.T) {
	tests := []struct {
		amount float64
		term   int
		want   float64
	}{
		{12000, 36, 333.33},
		{3000, 12, 250.00},
		{35000, 60, 583.33},
		{5500, 24, 229.17},
		{1000, 12, 83.33},
		{19999.99, 36, 555.56},
		{100, 0, 0},
	}

	for _, tt := range tests {
		if got := MonthlyPayment(tt.amount, tt.term); got != tt.want {
			t.Errorf("MonthlyPayment(%.2f, %d) = %.2f, expected %.2f", tt.amount, tt.term, got, tt.want)
		}
	}
}

func TestExtractCustomers(t *testing.T) {
	records := tenRecords()
	customers, err := ExtractCustomers(datagen.NewFakerWithSeed(1), records)
	if err != nil {
		t.Fatalf("ExtractCustomers failed: %v", err)
	}

	if len(customers) != len(records) {
		t.Fatalf("Expected %d customers, got %d", len(records), len(customers))
	}

	regions := make(map[string]bool)
	for _, r := range Regions {
		regions[r] = true
	}

	for i, c := range customers {
		if !regions[c.Region] {
			t.Errorf("Customer %d has unknown region %s", c.ID, c.Region)
		}
		if c.Income < 0 || c.EmpLength < 0 {
			t.Errorf("Customer %d has negative income or employment length", c.ID)
		}
		if c.Age != records[i].PersonAge {
			t.Errorf("Customer %d age %d, expected %d", c.ID, c.Age, records[i].PersonAge)
		}
	}

	if customers[2].EmpLength != 0 {
		t.Errorf("Missing employment length should become 0, got %f", customers[2].EmpLength)
	}
	if customers[6].Age != 144 {
		t.Errorf("Implausible age should be retained, got %d", customers[6].Age)
	}
	if msg := checkPermutation(customerIDs(customers)); msg != "" {
		t.Errorf("Customer ids are not a permutation: %s", msg)
	}
}

func TestExtractCustomersRejectsNegatives(t *testing.T) {
	negIncome := []staging.Record{record(2, 30, -1, 1000, 0)}
	_, err := ExtractCustomers(datagen.NewFakerWithSeed(1), negIncome)
	if !errors.Is(err, ErrNegativeIncome) {
		t.Errorf("Expected ErrNegativeIncome, got: %v", err)
	}

	negEmp := []staging.Record{record(2, 30, 100, 1000, 0)}
	negEmp[0].EmpLength = ptr(-2)
	_, err = ExtractCustomers(datagen.NewFakerWithSeed(1), negEmp)
	if !errors.Is(err, ErrNegativeEmpLength) {
		t.Errorf("Expected ErrNegativeEmpLength, got: %v", err)
	}
}

func TestExtractCustomersRegionDistribution(t *testing.T) {
	records := make([]staging.Record, 5000)
	for i := range records {
		records[i] = record(i+2, 30, 1000, 1000, 0)
	}
	customers, err := ExtractCustomers(datagen.NewFakerWithSeed(7), records)
	if err != nil {
		t.Fatalf("ExtractCustomers failed: %v", err)
	}

	counts := make(map[string]int)
	for _, c := range customers {
		counts[c.Region]++
	}
	for _, r := range Regions {
		share := float64(counts[r]) / float64(len(customers))
		if share < 0.16 || share > 0.24 {
			t.Errorf("Region %s share %.3f, expected about 0.20", r, share)
		}
	}
}

func TestExtractLoans(t *testing.T) {
	records := tenRecords()
	f := datagen.NewFakerWithSeed(2)
	customers, err := ExtractCustomers(f, records)
	if err != nil {
		t.Fatalf("ExtractCustomers failed: %v", err)
	}

	opts := DefaultOptions()
	loans, err := ExtractLoans(f, records, customers, opts)
	if err != nil {
		t.Fatalf("ExtractLoans failed: %v", err)
	}

	windowEnd := opts.Epoch.AddDate(0, 0, opts.WindowDays)
	for i, l := range loans {
		r := records[i]
		if l.Amount != r.LoanAmount || l.Status != r.LoanStatus || l.Grade != r.LoanGrade {
			t.Errorf("Loan %d does not mirror its record: %+v", l.ID, l)
		}
		if l.TermMonths != TermMonths(l.Amount) {
			t.Errorf("Loan %d term %d, expected %d", l.ID, l.TermMonths, TermMonths(l.Amount))
		}
		if l.MonthlyPayment != MonthlyPayment(l.Amount, l.TermMonths) {
			t.Errorf("Loan %d monthly payment %.2f", l.ID, l.MonthlyPayment)
		}
		if l.OriginationDate.Before(opts.Epoch) || l.OriginationDate.After(windowEnd) {
			t.Errorf("Loan %d origination %v outside window", l.ID, l.OriginationDate)
		}
		if l.CustomerID < 1 || l.CustomerID > int64(len(records)) {
			t.Errorf("Loan %d customer id %d out of range", l.ID, l.CustomerID)
		}
	}

	if loans[3].InterestRate != 10.0 {
		t.Errorf("Missing rate should default to 10.0, got %f", loans[3].InterestRate)
	}
	if loans[0].InterestRate != 11.5 {
		t.Errorf("Present rate should be kept, got %f", loans[0].InterestRate)
	}
	if msg := checkPermutation(loanIDs(loans)); msg != "" {
		t.Errorf("Loan ids are not a permutation: %s", msg)
	}
}

func TestExtractLoansCustomDefaultRate(t *testing.T) {
	records := []staging.Record{record(2, 30, 1000, 1000, 0)}
	records[0].InterestRate = nil

	f := datagen.NewFakerWithSeed(3)
	customers, _ := ExtractCustomers(f, records)
	opts := DefaultOptions()
	opts.DefaultInterestRate = 13.25
	loans, err := ExtractLoans(f, records, customers, opts)
	if err != nil {
		t.Fatalf("ExtractLoans failed: %v", err)
	}
	if loans[0].InterestRate != 13.25 {
		t.Errorf("Expected rate 13.25, got %f", loans[0].InterestRate)
	}
}

func TestExtractLoansRowLink(t *testing.T) {
	records := tenRecords()
	f := datagen.NewFakerWithSeed(4)
	customers, _ := ExtractCustomers(f, records)

	opts := DefaultOptions()
	opts.LinkMode = LinkRow
	loans, err := ExtractLoans(f, records, customers, opts)
	if err != nil {
		t.Fatalf("ExtractLoans failed: %v", err)
	}

	for i, l := range loans {
		if l.CustomerID != customers[i].ID {
			t.Errorf("Row %d: loan customer %d, expected %d", i, l.CustomerID, customers[i].ID)
		}
	}
}

func TestExtractLoansIndependentLink(t *testing.T) {
	records := make([]staging.Record, 200)
	for i := range records {
		records[i] = record(i+2, 30, 1000, 1000, 0)
	}
	f := datagen.NewFakerWithSeed(5)
	customers, _ := ExtractCustomers(f, records)
	loans, err := ExtractLoans(f, records, customers, DefaultOptions())
	if err != nil {
		t.Fatalf("ExtractLoans failed: %v", err)
	}

	links := make([]int64, len(loans))
	same := 0
	for i, l := range loans {
		links[i] = l.CustomerID
		if l.CustomerID == customers[i].ID {
			same++
		}
	}
	if msg := checkPermutation(links); msg != "" {
		t.Errorf("Independent links should be a permutation: %s", msg)
	}
	if same == len(loans) {
		t.Error("Independent links matched every source row")
	}
}

func TestExtractLoansErrors(t *testing.T) {
	records := []staging.Record{record(2, 30, 1000, 1000, 2)}
	f := datagen.NewFakerWithSeed(6)
	customers, _ := ExtractCustomers(f, records)

	_, err := ExtractLoans(f, records, customers, DefaultOptions())
	if !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("Expected ErrInvalidStatus, got: %v", err)
	}

	_, err = ExtractLoans(f, records, nil, DefaultOptions())
	if err == nil {
		t.Error("Expected error for mismatched customers, got nil")
	}

	opts := DefaultOptions()
	opts.LinkMode = "sideways"
	records[0].LoanStatus = 0
	_, err = ExtractLoans(f, records, customers, opts)
	if err == nil {
		t.Error("Expected error for unknown link mode, got nil")
	}
}

func TestExtractDefaults(t *testing.T) {
	records := make([]staging.Record, 1000)
	for i := range records {
		records[i] = record(i+2, 30, 40000, float64(1000+i*37), i%3%2)
	}
	ds := build(t, 8, records, LinkIndependent)

	loans := make(map[int64]Loan)
	defaulted := 0
	for _, l := range ds.Loans {
		loans[l.ID] = l
		if l.Defaulted() {
			defaulted++
		}
	}
	if len(ds.Defaults) != defaulted {
		t.Fatalf("Expected %d defaults, got %d", defaulted, len(ds.Defaults))
	}

	statuses := make(map[RecoveryStatus]int)
	for i, d := range ds.Defaults {
		if d.ID != int64(i+1) {
			t.Errorf("Default ids should be sequential, got %d at %d", d.ID, i)
		}
		l := loans[d.LoanID]
		if !l.Defaulted() {
			t.Errorf("Default %d references non-defaulted loan %d", d.ID, l.ID)
		}
		if d.CustomerID != l.CustomerID {
			t.Errorf("Default %d customer %d, loan customer %d", d.ID, d.CustomerID, l.CustomerID)
		}
		if d.OutstandingBalance < l.Amount*0.4-0.005 || d.OutstandingBalance > l.Amount*0.8+0.005 {
			t.Errorf("Default %d balance %.2f outside [%.2f, %.2f]",
				d.ID, d.OutstandingBalance, l.Amount*0.4, l.Amount*0.8)
		}
		if d.RecoveredAmount < d.OutstandingBalance*0.2-0.005 || d.RecoveredAmount > d.OutstandingBalance*0.5+0.005 {
			t.Errorf("Default %d recovered %.2f outside [%.2f, %.2f]",
				d.ID, d.RecoveredAmount, d.OutstandingBalance*0.2, d.OutstandingBalance*0.5)
		}

		lower := AddMonths(l.OriginationDate, int(math.Floor(float64(l.TermMonths)*MinDefaultPoint)))
		if d.DefaultDate.Before(lower) {
			t.Errorf("Default %d date %v before %v", d.ID, d.DefaultDate, lower)
		}
		upper := int(math.Ceil(float64(l.TermMonths) * MaxDefaultPoint))
		if m := MonthsBetween(l.OriginationDate, d.DefaultDate); m > upper {
			t.Errorf("Default %d is %d months after origination, expected at most %d", d.ID, m, upper)
		}
		statuses[d.RecoveryStatus]++
	}

	for _, s := range recoveryStatuses {
		if statuses[s] == 0 {
			t.Errorf("Recovery status %s never drawn", s)
		}
	}
}

func TestWorkedExampleNoDefault(t *testing.T) {
	records := []staging.Record{record(2, 30, 50000, 12000, 0)}
	ds := build(t, 9, records, LinkIndependent)

	l := ds.Loans[0]
	if l.TermMonths != 36 {
		t.Errorf("Expected term 36, got %d", l.TermMonths)
	}
	if l.MonthlyPayment != 333.33 {
		t.Errorf("Expected monthly payment 333.33, got %.2f", l.MonthlyPayment)
	}
	if len(ds.Defaults) != 0 {
		t.Errorf("Expected no default rows, got %d", len(ds.Defaults))
	}
}

func TestWorkedExampleDefault(t *testing.T) {
	records := []staging.Record{record(2, 30, 50000, 3000, 1)}
	ds := build(t, 10, records, LinkIndependent)

	l := ds.Loans[0]
	if l.TermMonths != 12 {
		t.Errorf("Expected term 12, got %d", l.TermMonths)
	}
	if l.MonthlyPayment != 250.00 {
		t.Errorf("Expected monthly payment 250.00, got %.2f", l.MonthlyPayment)
	}
	if len(ds.Defaults) != 1 {
		t.Fatalf("Expected exactly one default row, got %d", len(ds.Defaults))
	}
	d := ds.Defaults[0]
	if d.OutstandingBalance < 1200 || d.OutstandingBalance > 2400 {
		t.Errorf("Expected outstanding balance in [1200, 2400], got %.2f", d.OutstandingBalance)
	}
	if d.LoanID != l.ID {
		t.Errorf("Default loan id %d, expected %d", d.LoanID, l.ID)
	}
}

func TestBuildDeterministic(t *testing.T) {
	a := build(t, 42, tenRecords(), LinkIndependent)
	b := build(t, 42, tenRecords(), LinkIndependent)
	if !reflect.DeepEqual(a, b) {
		t.Error("Same seed produced different datasets")
	}

	c := build(t, 43, tenRecords(), LinkIndependent)
	if reflect.DeepEqual(a, c) {
		t.Error("Different seeds produced identical datasets")
	}
}

func TestBuildPropagatesErrors(t *testing.T) {
	records := []staging.Record{record(2, 30, -5, 1000, 0)}
	_, err := Build(datagen.NewFakerWithSeed(1), records, DefaultOptions())
	if !errors.Is(err, ErrNegativeIncome) {
		t.Errorf("Expected ErrNegativeIncome, got: %v", err)
	}
}

func TestDefaultDate(t *testing.T) {
	orig := time.Date(2019, 1, 31, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		term  int
		point float64
		want  time.Time
	}{
		// 12 * 0.5 = 6 months
		{name: "whole months", term: 12, point: 0.5, want: time.Date(2019, 7, 31, 0, 0, 0, 0, time.UTC)},
		// 12 * 0.625 = 7.5 months = 7 months + 15 days
		{name: "fractional month", term: 12, point: 0.625, want: time.Date(2019, 9, 15, 0, 0, 0, 0, time.UTC)},
		// 12 * 0.125 = 1.5 months, Jan 31 clamps to Feb 28 then adds 15 days
		{name: "clamped month end", term: 12, point: 0.125, want: time.Date(2019, 3, 15, 0, 0, 0, 0, time.UTC)},
		// 60 * 0.75 = 45 months
		{name: "long term", term: 60, point: 0.75, want: time.Date(2022, 10, 31, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DefaultDate(orig, tt.term, tt.point)
			if !got.Equal(tt.want) {
				t.Errorf("Expected %s, got %s", tt.want.Format("2006-01-02"), got.Format("2006-01-02"))
			}
		})
	}
}

func TestAddMonths(t *testing.T) {
	tests := []struct {
		from   string
		months int
		want   string
	}{
		{"2019-01-31", 1, "2019-02-28"},
		{"2020-01-31", 1, "2020-02-29"},
		{"2019-01-15", 1, "2019-02-15"},
		{"2019-10-31", 4, "2020-02-29"},
		{"2019-12-01", 13, "2021-01-01"},
		{"2019-05-20", 0, "2019-05-20"},
	}

	for _, tt := range tests {
		from, _ := time.Parse("2006-01-02", tt.from)
		got := AddMonths(from, tt.months).Format("2006-01-02")
		if got != tt.want {
			t.Errorf("AddMonths(%s, %d) = %s, expected %s", tt.from, tt.months, got, tt.want)
		}
	}
}

func TestMonthsBetween(t *testing.T) {
	tests := []struct {
		from, to string
		want     int
	}{
		{"2019-01-15", "2019-01-15", 0},
		{"2019-01-15", "2019-02-14", 0},
		{"2019-01-15", "2019-02-15", 1},
		{"2019-01-31", "2019-02-28", 0},
		{"2018-06-01", "2021-06-01", 36},
		{"2018-06-10", "2021-06-09", 35},
		{"2021-06-01", "2018-06-01", -36},
	}

	for _, tt := range tests {
		from, _ := time.Parse("2006-01-02", tt.from)
		to, _ := time.Parse("2006-01-02", tt.to)
		if got := MonthsBetween(from, to); got != tt.want {
			t.Errorf("MonthsBetween(%s, %s) = %d, expected %d", tt.from, tt.to, got, tt.want)
		}
	}
}
