// Package convert wires the CSV reader, field normalizers and event builder
// into the two supported conversions. Both build the complete calendar in
// memory; nothing is written unless every row converts.
package convert

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"coursecal/internal/csvin"
	"coursecal/internal/field"
	"coursecal/internal/ics"
	appLog "coursecal/internal/log"
	"coursecal/internal/model"
)

// Result is a built calendar plus what went into it.
type Result struct {
	Calendar  *ics.Calendar
	Single    int
	Recurring int
	// Warnings counts optional tokens that were dropped.
	Warnings int
}

// SimpleOptions configures the fixed-term converter.
type SimpleOptions struct {
	TermStart model.Date
	Weeks     int
	Location  *time.Location
	ProdID    string
}

// FlexibleOptions configures the per-row converter.
type FlexibleOptions struct {
	Location          *time.Location
	ProdID            string
	FallbackCount     int
	ExDateAtStartTime bool
}

// SimpleFile opens path and runs Simple on it.
func SimpleFile(path string, opts SimpleOptions) (*Result, error) {
	f, err := openCSV(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Simple(f, opts)
}

// FlexibleFile opens path and runs Flexible on it.
func FlexibleFile(path string, opts FlexibleOptions) (*Result, error) {
	f, err := openCSV(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Flexible(f, opts)
}

func openCSV(path string) (*os.File, error) {
	if path == "" {
		return nil, &model.ConfigError{Missing: []string{"--csv"}, Msg: "path to the CSV file is required"}
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("convert: open CSV: %w", err)
	}
	return f, nil
}

// Simple converts a name,weekday,start,end,location file. Every row becomes
// a weekly series of opts.Weeks occurrences anchored on the first matching
// weekday on or after opts.TermStart.
func Simple(r io.Reader, opts SimpleOptions) (*Result, error) {
	if opts.Weeks < 1 {
		return nil, &model.ConfigError{Msg: fmt.Sprintf("--weeks must be at least 1, got %d", opts.Weeks)}
	}

	rd, err := csvin.NewReader(r, csvin.SimpleSchema)
	if err != nil {
		return nil, err
	}

	b := &ics.Builder{Location: opts.Location}
	res := &Result{Calendar: ics.NewCalendar(opts.ProdID, opts.Location)}

	for {
		row, err := rd.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		in, err := simpleInput(row)
		if err != nil {
			return nil, err
		}
		in.TermStart = opts.TermStart
		in.Count = opts.Weeks

		ev, err := b.BuildRecurring(in)
		if err != nil {
			return nil, err
		}
		res.Calendar.Add(ev)
		res.Recurring++
	}

	if res.Calendar.Len() == 0 {
		return nil, &model.ConfigError{Msg: "no meetings in CSV"}
	}
	return res, nil
}

func simpleInput(row model.Row) (ics.RecurringInput, error) {
	in := ics.RecurringInput{
		Line:     row.Line,
		Name:     row.Get("name"),
		Location: row.Get("location"),
	}

	wd, ok := field.NormalizeWeekday(row.Get("weekday"))
	if !ok {
		return in, invalidWeekday(row)
	}
	in.Weekday = wd

	var err error
	if in.Start, err = clockField(row, "start"); err != nil {
		return in, err
	}
	if in.End, err = clockField(row, "end"); err != nil {
		return in, err
	}
	return in, nil
}

// Flexible converts a file whose rows are either single-date events
// (date column set) or weekly series (weekday/start_date and friends).
func Flexible(r io.Reader, opts FlexibleOptions) (*Result, error) {
	rd, err := csvin.NewReader(r, csvin.FlexibleSchema)
	if err != nil {
		return nil, err
	}

	b := &ics.Builder{
		Location:          opts.Location,
		FallbackCount:     opts.FallbackCount,
		ExDateAtStartTime: opts.ExDateAtStartTime,
	}
	res := &Result{Calendar: ics.NewCalendar(opts.ProdID, opts.Location)}

	for {
		row, err := rd.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		kind := csvin.Classify(row)
		appLog.Debug("row classified", "line", row.Line, "kind", kind)

		var ev model.EventRecord
		switch kind {
		case model.RowSingle:
			in, err := singleInput(row)
			if err != nil {
				return nil, err
			}
			if ev, err = b.BuildSingle(in); err != nil {
				return nil, err
			}
			res.Single++

		case model.RowRecurring:
			in, warnings, err := recurringInput(row)
			if err != nil {
				return nil, err
			}
			res.Warnings += warnings
			if ev, err = b.BuildRecurring(in); err != nil {
				return nil, err
			}
			res.Recurring++

		default:
			return nil, &model.FormatError{
				Line: row.Line,
				Err:  errors.New("row has neither date nor weekday/start_date"),
			}
		}
		res.Calendar.Add(ev)
	}

	return res, nil
}

func singleInput(row model.Row) (ics.SingleInput, error) {
	in := ics.SingleInput{
		Line:     row.Line,
		Name:     row.Get("name"),
		Location: row.Get("location"),
	}

	var err error
	if in.Start, err = clockField(row, "start"); err != nil {
		return in, err
	}
	if in.End, err = clockField(row, "end"); err != nil {
		return in, err
	}
	if in.Date, err = dateField(row, "date"); err != nil {
		return in, err
	}
	return in, nil
}

// recurringInput maps a recurring row. weekday and start_date are required;
// interval, count and end_date fall back quietly; malformed exception and
// extra-date tokens are dropped with a warning.
func recurringInput(row model.Row) (ics.RecurringInput, int, error) {
	in := ics.RecurringInput{
		Line:     row.Line,
		Name:     row.Get("name"),
		Location: row.Get("location"),
	}

	for _, col := range []string{"weekday", "start_date"} {
		if strings.TrimSpace(row.Get(col)) == "" {
			return in, 0, &model.FormatError{
				Line:  row.Line,
				Field: col,
				Err:   fmt.Errorf("recurring row requires %s", col),
			}
		}
	}

	wd, ok := field.NormalizeWeekday(row.Get("weekday"))
	if !ok {
		return in, 0, invalidWeekday(row)
	}
	in.Weekday = wd

	var err error
	if in.Start, err = clockField(row, "start"); err != nil {
		return in, 0, err
	}
	if in.End, err = clockField(row, "end"); err != nil {
		return in, 0, err
	}
	if in.TermStart, err = dateField(row, "start_date"); err != nil {
		return in, 0, err
	}

	warnings := 0
	warn := func(col, token string, err error) {
		warnings++
		w := model.DataIntegrityWarning{Line: row.Line, Field: col, Token: token, Err: err}
		appLog.Warn(w.String())
	}

	if raw := strings.TrimSpace(row.Get("interval")); raw != "" {
		n, ok := field.ParseInt(raw)
		if !ok || n < 1 {
			warn("interval", raw, errors.New("not a positive integer; using 1"))
		} else {
			in.Interval = n
		}
	}

	if raw := strings.TrimSpace(row.Get("count")); raw != "" {
		n, ok := field.ParseInt(raw)
		if !ok || n < 1 {
			warn("count", raw, errors.New("not a positive integer"))
		} else {
			in.Count = n
		}
	}

	if raw := strings.TrimSpace(row.Get("end_date")); raw != "" && in.Count == 0 {
		d, err := field.ParseDate(raw)
		if err != nil {
			warn("end_date", raw, err)
		} else {
			in.Until = &d
		}
	}

	for _, tok := range field.SplitList(row.Get("exceptions")) {
		d, err := field.ParseDate(tok)
		if err != nil {
			warn("exceptions", tok, err)
			continue
		}
		in.ExDates = append(in.ExDates, d)
	}
	for _, tok := range field.SplitList(row.Get("rdates")) {
		d, err := field.ParseDate(tok)
		if err != nil {
			warn("rdates", tok, err)
			continue
		}
		in.RDates = append(in.RDates, d)
	}

	return in, warnings, nil
}

func invalidWeekday(row model.Row) error {
	return &model.FormatError{
		Line:  row.Line,
		Field: "weekday",
		Value: row.Get("weekday"),
		Err:   fmt.Errorf("unknown weekday for %q", strings.TrimSpace(row.Get("name"))),
	}
}

func clockField(row model.Row, col string) (model.Clock, error) {
	c, err := field.ParseClock(row.Get(col))
	return c, locate(err, row.Line, col)
}

func dateField(row model.Row, col string) (model.Date, error) {
	d, err := field.ParseDate(row.Get(col))
	return d, locate(err, row.Line, col)
}

// locate stamps a FormatError with the row line and column name.
func locate(err error, line int, col string) error {
	var fe *model.FormatError
	if errors.As(err, &fe) {
		fe.Line = line
		fe.Field = col
	}
	return err
}
