package field

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"coursecal/internal/model"
)

var (
	clockPattern = regexp.MustCompile(`^(\d{1,2}):(\d{2})$`)

	// Date shapes, tried in order after separator normalization.
	yearFirstPattern = regexp.MustCompile(`^(\d{4})-(\d{1,2})-(\d{1,2})$`)
	dayFirstPattern  = regexp.MustCompile(`^(\d{1,2})-(\d{1,2})-(\d{4})$`)

	errClockShape = errors.New("expected H:MM or HH:MM")
	errDateShape  = errors.New("expected YYYY-M-D, D-M-YYYY or YYYY-MM-DD")
)

// ParseClock parses "H:MM" or "HH:MM" (24-hour, surrounding whitespace
// ignored) into a Clock.
func ParseClock(text string) (model.Clock, error) {
	s := strings.TrimSpace(text)
	m := clockPattern.FindStringSubmatch(s)
	if m == nil {
		return model.Clock{}, &model.FormatError{Field: "time", Value: text, Err: errClockShape}
	}
	h, _ := strconv.Atoi(m[1])
	mm, _ := strconv.Atoi(m[2])
	if h > 23 || mm > 59 {
		return model.Clock{}, &model.FormatError{Field: "time", Value: text, Err: errors.New("hour or minute out of range")}
	}
	return model.Clock{Hour: h, Minute: mm}, nil
}

// ParseDate parses a calendar date in one of the accepted shapes.
//
// Separators "." and "/" are treated as "-". The shapes are tried in order:
//   - YYYY-M-D
//   - D-M-YYYY
//   - strict ISO 8601 (YYYY-MM-DD or YYYYMMDD)
//
// The first shape that matches decides the interpretation, so a string that
// starts with four digits is always read year-month-day. A matching shape
// whose numbers do not form a real date fails without trying later shapes.
func ParseDate(text string) (model.Date, error) {
	s := strings.TrimSpace(text)
	s = strings.NewReplacer(".", "-", "/", "-").Replace(s)

	if m := yearFirstPattern.FindStringSubmatch(s); m != nil {
		return buildDate(text, m[1], m[2], m[3])
	}
	if m := dayFirstPattern.FindStringSubmatch(s); m != nil {
		return buildDate(text, m[3], m[2], m[1])
	}
	for _, layout := range []string{time.DateOnly, "20060102"} {
		if t, err := time.Parse(layout, s); err == nil {
			return model.Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}, nil
		}
	}
	return model.Date{}, &model.FormatError{Field: "date", Value: text, Err: errDateShape}
}

// ParseISODate accepts only YYYY-MM-DD.
func ParseISODate(text string) (model.Date, error) {
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(text))
	if err != nil {
		return model.Date{}, &model.FormatError{Field: "date", Value: text, Err: errors.New("expected YYYY-MM-DD")}
	}
	return model.Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}, nil
}

func buildDate(raw, year, month, day string) (model.Date, error) {
	y, _ := strconv.Atoi(year)
	mo, _ := strconv.Atoi(month)
	d, _ := strconv.Atoi(day)

	t := time.Date(y, time.Month(mo), d, 0, 0, 0, 0, time.UTC)
	// time.Date normalizes overflow (Feb 30 -> Mar 1); reject instead.
	if t.Year() != y || int(t.Month()) != mo || t.Day() != d {
		return model.Date{}, &model.FormatError{
			Field: "date",
			Value: raw,
			Err:   fmt.Errorf("no such date %04d-%02d-%02d", y, mo, d),
		}
	}
	return model.Date{Year: y, Month: time.Month(mo), Day: d}, nil
}

// ParseInt parses a trimmed base-10 integer. The second result is false for
// empty or non-numeric text.
func ParseInt(text string) (int, bool) {
	s := strings.TrimSpace(text)
	if s == "" {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}

// SplitList splits a comma-separated cell into trimmed, non-empty tokens.
func SplitList(text string) []string {
	var out []string
	for _, part := range strings.Split(text, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
