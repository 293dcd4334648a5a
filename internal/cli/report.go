package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/pgEdge/pgedge-loanetl/internal/db"
	"github.com/pgEdge/pgedge-loanetl/internal/portfolio"
	"github.com/pgEdge/pgedge-loanetl/internal/staging"
	"github.com/pgEdge/pgedge-loanetl/internal/store"
)

var reportLimit int

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print rows of the loan_summary view",
	Long: `Print the loan_summary reporting view ordered by loan ID, followed
by the grade summary.

Example:
  pgedge-loanetl report --limit 50
  pgedge-loanetl report --limit 0   # every row`,
	RunE: runReport,
}

func init() {
	reportCmd.Flags().IntVar(&reportLimit, "limit", -1,
		"maximum rows to print (0 = all)")
}

func runReport(cmd *cobra.Command, args []string) error {
	if reportLimit >= 0 {
		cfg.Report.Limit = reportLimit
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	pool, err := db.Connect(ctx, cfg.Connection)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	rows, err := store.QuerySummaries(ctx, pool, cfg.Report.Limit)
	if err != nil {
		return err
	}
	grades, err := store.GradeSummary(ctx, pool)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	printSummaries(out, rows)
	fmt.Fprintln(out)
	printGrades(out, grades)
	return nil
}

func newTable(out io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(out)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)
	table.SetHeader(header)
	return table
}

func money(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

func printSummaries(out io.Writer, rows []portfolio.LoanSummary) {
	table := newTable(out,
		"LOAN", "CUSTOMER", "REGION", "GRADE", "AMOUNT", "RATE", "TERM", "PAYMENT",
		"ORIGINATED", "STATUS", "DEFAULTED", "OUTSTANDING", "RECOVERED", "AGE")

	for _, s := range rows {
		defaulted, outstanding, recovered := "-", "-", "-"
		status := "CURRENT"
		if s.DefaultDate != nil {
			defaulted = s.DefaultDate.Format("2006-01-02")
		}
		if s.OutstandingBalance != nil {
			outstanding = money(*s.OutstandingBalance)
		}
		if s.RecoveredAmount != nil {
			recovered = money(*s.RecoveredAmount)
		}
		if s.RecoveryStatus != nil {
			status = string(*s.RecoveryStatus)
		}
		table.Append([]string{
			strconv.FormatInt(s.LoanID, 10),
			strconv.FormatInt(s.CustomerID, 10),
			s.Region,
			s.Grade,
			money(s.Amount),
			money(s.InterestRate),
			strconv.Itoa(s.TermMonths),
			money(s.MonthlyPayment),
			s.OriginationDate.Format("2006-01-02"),
			status,
			defaulted,
			outstanding,
			recovered,
			strconv.Itoa(s.LoanAgeMonths),
		})
	}
	table.Render()
}

func printGrades(out io.Writer, grades []portfolio.GradeSummary) {
	table := newTable(out, "GRADE", "LOANS", "DEFAULTS", "DEFAULT %", "AVG RATE", "TOTAL AMOUNT")
	for _, g := range grades {
		table.Append([]string{
			g.Grade,
			strconv.FormatInt(g.Loans, 10),
			strconv.FormatInt(g.Defaults, 10),
			money(g.DefaultRate),
			money(g.AvgInterestRate),
			money(g.TotalAmount),
		})
	}
	table.Render()
}

func printReport(out io.Writer, r store.Report) {
	s := r.Staging
	c := r.Counts
	o := r.Orphans
	p := r.Portfolio

	table := newTable(out, "CHECK", "VALUE")
	table.AppendBulk([][]string{
		{"staging rows", strconv.FormatInt(s.Rows, 10)},
		{"age", fmt.Sprintf("%d - %d", s.MinAge, s.MaxAge)},
		{"income", fmt.Sprintf("%s - %s", money(s.MinIncome), money(s.MaxIncome))},
		{"loan amount", fmt.Sprintf("%s - %s", money(s.MinLoanAmount), money(s.MaxLoanAmount))},
		{"missing emp length", fmt.Sprintf("%d (%.2f%%)", s.NullEmpLength, s.EmpLengthNullRate())},
		{"missing interest rate", fmt.Sprintf("%d (%.2f%%)", s.NullInterestRate, s.InterestRateNullRate())},
		{"status 0 / 1", fmt.Sprintf("%d / %d", s.Rows-s.Defaulted, s.Defaulted)},
		{fmt.Sprintf("age over %d", staging.ImplausibleAge), strconv.FormatInt(s.ImplausibleAges, 10)},
		{"customers", strconv.FormatInt(c.Customers, 10)},
		{"loans", strconv.FormatInt(c.Loans, 10)},
		{"defaults", fmt.Sprintf("%d (defaulted loans %d)", c.Defaults, c.DefaultedLoans)},
		{"loans without customer", strconv.FormatInt(o.LoansWithoutCustomer, 10)},
		{"defaulted loans without record", strconv.FormatInt(o.DefaultedWithoutEvent, 10)},
		{"records without loan", strconv.FormatInt(o.EventsWithoutLoan, 10)},
		{"default rate", fmt.Sprintf("%.2f%%", p.DefaultRate)},
		{"average rate", money(p.AvgInterestRate)},
		{"total amount", money(p.TotalAmount)},
		{"outstanding", money(p.TotalOutstanding)},
		{"recovered", fmt.Sprintf("%s (%.2f%%)", money(p.TotalRecovered), p.RecoveryRate)},
	})
	table.Render()

	fmt.Fprintln(out)
	printGrades(out, r.Grades)
}

func printMetadata(out io.Writer, meta map[string]string) {
	table := newTable(out, "LAST LOAD", "")
	for _, k := range sortedKeys(meta) {
		table.Append([]string{k, meta[k]})
	}
	table.Render()
	fmt.Fprintln(out)
}
