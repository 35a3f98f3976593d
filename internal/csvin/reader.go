// Package csvin reads schedule CSV files into header-keyed rows.
package csvin

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/language"
	"golang.org/x/text/transform"

	"coursecal/internal/model"
)

// Schema names the columns a file must carry.
type Schema struct {
	Name     string
	Required []string
}

var (
	// SimpleSchema: every row is a weekly meeting for the whole term.
	SimpleSchema = Schema{
		Name:     "simple",
		Required: []string{"name", "weekday", "start", "end", "location"},
	}
	// FlexibleSchema: rows are single-date or recurring, decided per row.
	FlexibleSchema = Schema{
		Name:     "flexible",
		Required: []string{"name", "start", "end"},
	}
)

// recurringColumns mark a row as a recurring series when any is non-empty.
var recurringColumns = []string{"weekday", "start_date", "end_date", "count"}

// Reader yields rows lazily from a CSV stream.
type Reader struct {
	csv    *csv.Reader
	header []string
}

// NewReader reads and validates the header line.
//
// Behavior:
//   - a leading UTF-8 byte-order mark is dropped
//   - header names are trimmed and lower-cased before matching
//   - every required column that is absent is reported in one ConfigError
func NewReader(r io.Reader, schema Schema) (*Reader, error) {
	decoded := transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))

	cr := csv.NewReader(decoded)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	// Accept stray quotes inside unquoted cells, e.g. Room "B" annex.
	cr.LazyQuotes = true

	raw, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &model.ConfigError{Msg: "CSV is empty; a header line is required"}
		}
		return nil, fmt.Errorf("csvin: read header: %w", err)
	}

	lower := cases.Lower(language.Und)
	header := make([]string, len(raw))
	present := make(map[string]bool, len(raw))
	for i, h := range raw {
		header[i] = lower.String(strings.TrimSpace(h))
		present[header[i]] = true
	}

	var missing []string
	for _, col := range schema.Required {
		if !present[col] {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, &model.ConfigError{
			Missing: missing,
			Msg:     fmt.Sprintf("%s CSV requires columns %s", schema.Name, strings.Join(schema.Required, ",")),
		}
	}

	return &Reader{csv: cr, header: header}, nil
}

// Header returns the normalized column names in file order.
func (r *Reader) Header() []string {
	return append([]string(nil), r.header...)
}

// Next returns the next non-blank row, or io.EOF.
func (r *Reader) Next() (model.Row, error) {
	for {
		rec, err := r.csv.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return model.Row{}, io.EOF
			}
			return model.Row{}, fmt.Errorf("csvin: %w", err)
		}
		line, _ := r.csv.FieldPos(0)

		row := model.Row{Line: line, Fields: make(map[string]string, len(r.header))}
		blank := true
		for i, col := range r.header {
			v := ""
			if i < len(rec) {
				v = rec[i]
			}
			if strings.TrimSpace(v) != "" {
				blank = false
			}
			// Duplicate header names: the first non-empty cell wins.
			if prev, ok := row.Fields[col]; ok && strings.TrimSpace(prev) != "" {
				continue
			}
			row.Fields[col] = v
		}
		if blank {
			continue
		}
		return row, nil
	}
}

// ReadAll drains the reader.
func (r *Reader) ReadAll() ([]model.Row, error) {
	var rows []model.Row
	for {
		row, err := r.Next()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
}

// Classify decides whether a flexible-schema row is a single event or a
// recurring series. A non-empty date always wins.
func Classify(row model.Row) model.RowKind {
	if strings.TrimSpace(row.Get("date")) != "" {
		return model.RowSingle
	}
	for _, col := range recurringColumns {
		if strings.TrimSpace(row.Get(col)) != "" {
			return model.RowRecurring
		}
	}
	return model.RowUnknown
}
