package model

import (
	"fmt"
	"time"
)

// Row is one CSV record keyed by lower-cased, trimmed column name.
type Row struct {
	// Line is the 1-based line number of the record in the source file.
	Line   int
	Fields map[string]string
}

// Get returns the raw value for a column, or "" when the column is absent.
func (r Row) Get(column string) string {
	return r.Fields[column]
}

// RowKind tells the event builder which construction a row needs.
type RowKind int

const (
	RowUnknown RowKind = iota
	RowSingle
	RowRecurring
)

func (k RowKind) String() string {
	switch k {
	case RowSingle:
		return "single"
	case RowRecurring:
		return "recurring"
	default:
		return "unknown"
	}
}

// Clock is a wall-clock time of day without a date.
type Clock struct {
	Hour   int
	Minute int
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// Before reports whether c is strictly earlier in the day than o.
func (c Clock) Before(o Clock) bool {
	return c.Hour*60+c.Minute < o.Hour*60+o.Minute
}

// Date is a calendar date with no time or zone attached.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// At combines the date with a clock time in loc.
func (d Date) At(c Clock, loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, c.Hour, c.Minute, 0, 0, loc)
}

// Weekday returns the day of week of d.
func (d Date) Weekday() time.Weekday {
	return d.At(Clock{}, time.UTC).Weekday()
}

// AddDays returns d shifted by n days.
func (d Date) AddDays(n int) Date {
	t := d.At(Clock{}, time.UTC).AddDate(0, 0, n)
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}
}

// Weekday is the two-letter RFC 5545 day code.
type Weekday string

const (
	Monday    Weekday = "MO"
	Tuesday   Weekday = "TU"
	Wednesday Weekday = "WE"
	Thursday  Weekday = "TH"
	Friday    Weekday = "FR"
	Saturday  Weekday = "SA"
	Sunday    Weekday = "SU"
)

// Weekdays lists the codes Monday first.
var Weekdays = []Weekday{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

// Index returns 0 for Monday through 6 for Sunday, or -1 for an invalid code.
func (w Weekday) Index() int {
	for i, c := range Weekdays {
		if c == w {
			return i
		}
	}
	return -1
}

// RecurrenceRule is a weekly rule. Exactly one of Count and Until is set.
type RecurrenceRule struct {
	Interval int
	Count    int
	// Until is the inclusive end bound; zero when Count is used.
	Until time.Time
}

// EventRecord is a single VEVENT ready for serialization.
type EventRecord struct {
	UID string

	Summary  string
	Location string

	// Start / End are in the configured timezone and fall on the same day.
	Start time.Time
	End   time.Time

	Rule *RecurrenceRule
	// ExDates suppress occurrences; RDates add occurrences of the same duration.
	ExDates []time.Time
	RDates  []time.Time
}

// Recurring reports whether the record carries a recurrence rule.
func (e EventRecord) Recurring() bool {
	return e.Rule != nil
}

// Occurrence is one concrete instance of an EventRecord after expansion.
type Occurrence struct {
	UID      string
	Summary  string
	Location string

	Start time.Time
	End   time.Time

	// Extra marks occurrences that come from an RDATE rather than the rule.
	Extra bool
}
