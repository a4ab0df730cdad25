// Package tabular projects measurements onto the companion table stored next
// to the model: one time column, one column per measured species and an id
// column naming the measurement each row belongs to.
package tabular

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"slices"
	"strconv"
	"strings"

	"enzymeml/pkg/domain"
)

// Column names with a fixed meaning.
const (
	TimeColumn = "time"
	IDColumn   = "id"
)

// Table is a numeric table. Missing cells hold NaN. IDs, when present, has one
// measurement id per row.
type Table struct {
	Columns []string
	Rows    [][]float64
	IDs     []string
}

// FromMeasurements builds the table of every measurement. Species columns
// appear in order of first use. A measurement without series gets a single
// row at time zero with empty cells so readers still find its id. Nil is
// returned when no measurement has data.
func FromMeasurements(ms []domain.Measurement) (*Table, error) {
	t := &Table{Columns: []string{TimeColumn}}
	index := make(map[string]int)
	for _, m := range ms {
		for _, d := range m.SpeciesData {
			if len(d.Data) == 0 {
				continue
			}
			if _, ok := index[d.SpeciesID]; !ok {
				index[d.SpeciesID] = len(t.Columns)
				t.Columns = append(t.Columns, d.SpeciesID)
			}
		}
	}
	if len(t.Columns) == 1 {
		return nil, nil
	}

	for _, m := range ms {
		time, err := timeAxis(m)
		if err != nil {
			return nil, err
		}
		if time == nil {
			time = []float64{0}
		}
		for i, ts := range time {
			row := make([]float64, len(t.Columns))
			for j := range row {
				row[j] = math.NaN()
			}
			row[0] = ts
			for _, d := range m.SpeciesData {
				if len(d.Data) == 0 {
					continue
				}
				if i < len(d.Data) {
					row[index[d.SpeciesID]] = d.Data[i]
				}
			}
			t.Rows = append(t.Rows, row)
			t.IDs = append(t.IDs, m.ID)
		}
	}
	return t, nil
}

// timeAxis returns the shared time points of a measurement. Every species
// with data must use the same time points.
func timeAxis(m domain.Measurement) ([]float64, error) {
	var time []float64
	var owner string
	for _, d := range m.SpeciesData {
		if len(d.Time) == 0 {
			if len(d.Data) > 0 {
				return nil, domain.Structuralf("tabulate measurement "+m.ID, "species %s has data but no time points", d.SpeciesID)
			}
			continue
		}
		if len(d.Data) > 0 && len(d.Data) != len(d.Time) {
			return nil, domain.Structuralf("tabulate measurement "+m.ID, "species %s has %d values for %d time points", d.SpeciesID, len(d.Data), len(d.Time))
		}
		if time == nil {
			time, owner = d.Time, d.SpeciesID
			continue
		}
		if !slices.Equal(time, d.Time) {
			return nil, domain.Structuralf("tabulate measurement "+m.ID, "time points of %s and %s differ", owner, d.SpeciesID)
		}
	}
	return time, nil
}

// Encode writes the table with a header. Rows carry their measurement id in a
// trailing id column when IDs is set. NaN cells are written empty.
func (t *Table) Encode(w io.Writer, sep rune) error {
	cw := csv.NewWriter(w)
	cw.Comma = sep
	header := append([]string(nil), t.Columns...)
	if t.IDs != nil {
		header = append(header, IDColumn)
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	for i, row := range t.Rows {
		record := make([]string, 0, len(header))
		for _, v := range row {
			record = append(record, formatCell(v))
		}
		if t.IDs != nil {
			record = append(record, t.IDs[i])
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatCell(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// Decode reads a table. With header the first record names the columns and an
// id column fills IDs; without header columns are named by their zero based
// index.
func Decode(r io.Reader, sep rune, header bool) (*Table, error) {
	cr := csv.NewReader(r)
	cr.Comma = sep
	cr.FieldsPerRecord = -1
	records, err := cr.ReadAll()
	if err != nil {
		return nil, domain.Structuralf("read table", "%v", err)
	}
	t := &Table{}
	if len(records) == 0 {
		return t, nil
	}

	idCol := -1
	width := len(records[0])
	if header {
		for i, name := range records[0] {
			name = strings.TrimSpace(name)
			if name == IDColumn {
				idCol = i
				continue
			}
			t.Columns = append(t.Columns, name)
		}
		records = records[1:]
		if idCol >= 0 {
			t.IDs = make([]string, 0, len(records))
		}
	} else {
		for i := 0; i < width; i++ {
			t.Columns = append(t.Columns, strconv.Itoa(i))
		}
	}

	for n, rec := range records {
		if len(rec) != width {
			return nil, domain.Structuralf("read table", "row %d has %d fields, want %d", n+1, len(rec), width)
		}
		row := make([]float64, 0, len(t.Columns))
		for i, cell := range rec {
			if i == idCol {
				t.IDs = append(t.IDs, strings.TrimSpace(cell))
				continue
			}
			v, err := parseCell(cell)
			if err != nil {
				return nil, domain.Structuralf("read table", "row %d column %d: %v", n+1, i, err)
			}
			row = append(row, v)
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

func parseCell(cell string) (float64, error) {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return math.NaN(), nil
	}
	return strconv.ParseFloat(cell, 64)
}

// Slice returns the rows of measurement id. A table without ids belongs to
// every measurement and is returned unchanged.
func (t *Table) Slice(id string) *Table {
	if t.IDs == nil {
		return t
	}
	out := &Table{Columns: t.Columns, IDs: []string{}}
	for i, rowID := range t.IDs {
		if rowID == id {
			out.Rows = append(out.Rows, t.Rows[i])
			out.IDs = append(out.IDs, rowID)
		}
	}
	return out
}

// Has reports whether the table holds rows of measurement id.
func (t *Table) Has(id string) bool {
	if t.IDs == nil {
		return len(t.Rows) > 0
	}
	return slices.Contains(t.IDs, id)
}

// Column returns the values of the named column.
func (t *Table) Column(name string) ([]float64, bool) {
	idx := slices.Index(t.Columns, name)
	if idx < 0 {
		return nil, false
	}
	return t.columnAt(idx), true
}

// ColumnAt returns the values at a zero based column index.
func (t *Table) ColumnAt(idx int) ([]float64, error) {
	if idx < 0 || idx >= len(t.Columns) {
		return nil, fmt.Errorf("column index %d out of range [0,%d)", idx, len(t.Columns))
	}
	return t.columnAt(idx), nil
}

func (t *Table) columnAt(idx int) []float64 {
	out := make([]float64, 0, len(t.Rows))
	for _, row := range t.Rows {
		out = append(out, row[idx])
	}
	return out
}

// Validate checks that the table has a time column starting at zero.
func (t *Table) Validate() error {
	time, ok := t.Column(TimeColumn)
	if !ok {
		return domain.Structuralf("validate table", "missing %q column", TimeColumn)
	}
	if len(time) > 0 && time[0] != 0 {
		return domain.Structuralf("validate table", "time column starts at %g, not 0", time[0])
	}
	return nil
}

// Fill copies the time axis and the data columns of the table into every
// species data entry of m that has a column. Entries without a column keep
// empty series.
func (t *Table) Fill(m *domain.Measurement) error {
	if err := t.Validate(); err != nil {
		return err
	}
	time, _ := t.Column(TimeColumn)
	for i := range m.SpeciesData {
		d := &m.SpeciesData[i]
		values, ok := t.Column(d.SpeciesID)
		if !ok || allNaN(values) {
			continue
		}
		d.Time = append([]float64(nil), time...)
		d.Data = values
	}
	return nil
}

func allNaN(values []float64) bool {
	for _, v := range values {
		if !math.IsNaN(v) {
			return false
		}
	}
	return true
}
