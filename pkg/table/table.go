// Package table reads and writes the flat text tables exchanged between the
// estimation, inversion and correction stages: the pair coefficient table,
// the RMS table, the interferogram pair list and the baseline table.
package table

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/hrishikeshrai/PyGdalSAR/internal/models"
	"github.com/hrishikeshrai/PyGdalSAR/pkg/model"
)

// ErrTableShape is returned when a persisted table does not have the
// expected number of columns or references unknown pairs.
var ErrTableShape = errors.New("table: unexpected table shape")

// CoefficientColumns is the number of fields of a coefficient table row
const CoefficientColumns = 3 + model.NumCoefficients

// Row is one line of the pair coefficient table
type Row struct {
	Primary   string
	Secondary string

	// Extent is the usable along-track length of the interferogram
	Extent float64

	Coefficients model.Coefficients
}

// Pair returns the pair referenced by the row
func (r Row) Pair() models.Pair {
	return models.Pair{Primary: r.Primary, Secondary: r.Secondary}
}

// RMSRow is one line of the RMS table
type RMSRow struct {
	Primary   string
	Secondary string
	RMS       float64
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// WriteCoefficients writes the coefficient table. Values are written with
// the shortest representation that parses back to the same float64.
func WriteCoefficients(w io.Writer, rows []Row, comment string) error {
	bw := bufio.NewWriter(w)
	if comment != "" {
		fmt.Fprintf(bw, "# %s\n", comment)
	}
	fmt.Fprintf(bw, "# date1 date2 length %s\n", strings.Join(model.Header(), " "))
	for _, r := range rows {
		fields := make([]string, 0, CoefficientColumns)
		fields = append(fields, r.Primary, r.Secondary, formatFloat(r.Extent))
		for _, c := range r.Coefficients {
			fields = append(fields, formatFloat(c))
		}
		if _, err := fmt.Fprintln(bw, strings.Join(fields, " ")); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// ReadCoefficients parses a coefficient table. Any row without exactly
// CoefficientColumns fields is a fatal ErrTableShape.
func ReadCoefficients(r io.Reader) ([]Row, error) {
	var rows []Row
	err := scanRows(r, func(line int, fields []string) error {
		if len(fields) != CoefficientColumns {
			return fmt.Errorf("%w: line %d has %d columns, want %d", ErrTableShape, line, len(fields), CoefficientColumns)
		}
		row := Row{Primary: fields[0], Secondary: fields[1]}
		values, err := parseFloats(fields[2:])
		if err != nil {
			return fmt.Errorf("%w: line %d: %v", ErrTableShape, line, err)
		}
		row.Extent = values[0]
		copy(row.Coefficients[:], values[1:])
		rows = append(rows, row)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// CheckPairs verifies that every row references a pair of the list
func CheckPairs(rows []Row, pairs []models.Pair) error {
	known := make(map[models.Pair]bool, len(pairs))
	for _, p := range pairs {
		known[p] = true
	}
	seen := make(map[models.Pair]bool, len(rows))
	for _, r := range rows {
		p := r.Pair()
		if !known[p] {
			return fmt.Errorf("%w: pair %s is not in the pair list", ErrTableShape, p)
		}
		if seen[p] {
			return fmt.Errorf("%w: pair %s appears twice", ErrTableShape, p)
		}
		seen[p] = true
	}
	return nil
}

// WriteRMS writes the RMS table
func WriteRMS(w io.Writer, rows []RMSRow) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "# date1 date2 RMS")
	for _, r := range rows {
		if _, err := fmt.Fprintf(bw, "%s %s %.8f\n", r.Primary, r.Secondary, r.RMS); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// ReadRMS parses an RMS table
func ReadRMS(r io.Reader) ([]RMSRow, error) {
	var rows []RMSRow
	err := scanRows(r, func(line int, fields []string) error {
		if len(fields) != 3 {
			return fmt.Errorf("%w: line %d has %d columns, want 3", ErrTableShape, line, len(fields))
		}
		v, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			return fmt.Errorf("%w: line %d: %v", ErrTableShape, line, err)
		}
		rows = append(rows, RMSRow{Primary: fields[0], Secondary: fields[1], RMS: v})
		return nil
	})
	return rows, err
}

// ReadPairs parses an interferogram list: two columns "date1 date2"
func ReadPairs(r io.Reader) ([]models.Pair, error) {
	var pairs []models.Pair
	err := scanRows(r, func(line int, fields []string) error {
		if len(fields) < 2 {
			return fmt.Errorf("pair list line %d: want 2 columns, got %d", line, len(fields))
		}
		pairs = append(pairs, models.Pair{Primary: fields[0], Secondary: fields[1]})
		return nil
	})
	return pairs, err
}

// ReadBaselines parses a baseline table whose first three columns are
// the acquisition id, the perpendicular and the temporal baseline.
// Row order defines the acquisition index; the first row is the reference.
func ReadBaselines(r io.Reader) ([]models.Acquisition, error) {
	var acqs []models.Acquisition
	err := scanRows(r, func(line int, fields []string) error {
		if len(fields) < 3 {
			return fmt.Errorf("baseline line %d: want at least 3 columns, got %d", line, len(fields))
		}
		values, err := parseFloats(fields[1:3])
		if err != nil {
			return fmt.Errorf("baseline line %d: %v", line, err)
		}
		acqs = append(acqs, models.Acquisition{ID: fields[0], PerpBaseline: values[0], TempBaseline: values[1]})
		return nil
	})
	return acqs, err
}

// ReadFile opens path and applies parse to it
func ReadFile[T any](path string, parse func(io.Reader) (T, error)) (T, error) {
	var zero T
	f, err := os.Open(path)
	if err != nil {
		return zero, err
	}
	defer f.Close()
	out, err := parse(f)
	if err != nil {
		return zero, fmt.Errorf("%s: %w", path, err)
	}
	return out, nil
}

// WriteFile creates path and applies write to it
func WriteFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("%s: %w", path, err)
	}
	return f.Close()
}

// scanRows calls fn with the whitespace-separated fields of every
// non-empty, non-comment line
func scanRows(r io.Reader, fn func(line int, fields []string) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		if err := fn(line, strings.Fields(text)); err != nil {
			return err
		}
	}
	return sc.Err()
}

func parseFloats(fields []string) ([]float64, error) {
	out := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
