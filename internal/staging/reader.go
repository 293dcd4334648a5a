package staging

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// ErrHeader is returned when the first row is not the expected header.
var ErrHeader = errors.New("unexpected header")

// ParseError reports a field that could not be converted to its column type.
type ParseError struct {
	Line   int
	Column string
	Value  string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("line %d: column %s: invalid value %q: %v",
		e.Line, e.Column, e.Value, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

var errEmpty = errors.New("value is required")

// ReadFile reads every record from the CSV file at path.
func ReadFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open source file: %w", err)
	}
	defer f.Close()

	records, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return records, nil
}

// Read parses a headered CSV stream. The header must match Columns; any
// row with a missing required value or a value of the wrong type fails
// the whole read.
func Read(r io.Reader) ([]Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: file is empty", ErrHeader)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	if err := checkHeader(header); err != nil {
		return nil, err
	}

	var records []Record
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row: %w", err)
		}
		line, _ := cr.FieldPos(0)

		rec, err := parseRow(row, line)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	return records, nil
}

func checkHeader(header []string) error {
	if len(header) != len(Columns) {
		return fmt.Errorf("%w: expected %d columns, got %d",
			ErrHeader, len(Columns), len(header))
	}
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		if !strings.EqualFold(name, Columns[i]) {
			return fmt.Errorf("%w: column %d is %q, expected %q",
				ErrHeader, i+1, name, Columns[i])
		}
	}
	return nil
}

// fieldParser converts one row, remembering the first failure.
type fieldParser struct {
	row  []string
	line int
	err  error
}

func (p *fieldParser) raw(i int) string {
	return strings.TrimSpace(p.row[i])
}

func (p *fieldParser) fail(i int, v string, err error) {
	if p.err == nil {
		p.err = &ParseError{Line: p.line, Column: Columns[i], Value: v, Err: err}
	}
}

func (p *fieldParser) str(i int) string {
	v := p.raw(i)
	if v == "" {
		p.fail(i, v, errEmpty)
	}
	return v
}

func (p *fieldParser) integer(i int) int {
	v := p.raw(i)
	if v == "" {
		p.fail(i, v, errEmpty)
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.fail(i, v, err)
	}
	return n
}

func (p *fieldParser) float(i int) float64 {
	v := p.raw(i)
	if v == "" {
		p.fail(i, v, errEmpty)
		return 0
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.fail(i, v, err)
	}
	return f
}

func (p *fieldParser) nullableFloat(i int) *float64 {
	v := p.raw(i)
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.fail(i, v, err)
		return nil
	}
	return &f
}

func parseRow(row []string, line int) (Record, error) {
	if len(row) != len(Columns) {
		return Record{}, &ParseError{
			Line: line,
			Err:  fmt.Errorf("expected %d fields, got %d", len(Columns), len(row)),
		}
	}

	p := &fieldParser{row: row, line: line}
	rec := Record{
		Line:           line,
		PersonAge:      p.integer(0),
		PersonIncome:   p.float(1),
		HomeOwnership:  p.str(2),
		EmpLength:      p.nullableFloat(3),
		LoanIntent:     p.str(4),
		LoanGrade:      p.str(5),
		LoanAmount:     p.float(6),
		InterestRate:   p.nullableFloat(7),
		LoanStatus:     p.integer(8),
		PercentIncome:  p.float(9),
		DefaultOnFile:  p.str(10),
		CredHistLength: p.integer(11),
	}
	if p.err != nil {
		return Record{}, p.err
	}
	return rec, nil
}
