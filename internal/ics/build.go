package ics

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"coursecal/internal/field"
	appLog "coursecal/internal/log"
	"coursecal/internal/model"
)

const (
	defaultSummary       = "Course"
	defaultFallbackCount = 30
	uidDomain            = "coursecal"
)

// untilClock is the local wall time used for the inclusive UNTIL bound.
var untilClock = model.Clock{Hour: 23, Minute: 59}

// uidNamespace seeds the name-based UUIDs so equal input gives equal UIDs.
var uidNamespace = uuid.NewSHA1(uuid.NameSpaceDNS, []byte(uidDomain))

// Builder turns normalized row values into EventRecords.
type Builder struct {
	// Location is the zone for every instant. If nil, time.Local is used.
	Location *time.Location

	// FallbackCount terminates series that have neither count nor until.
	// If zero, defaultFallbackCount is used.
	FallbackCount int

	// ExDateAtStartTime puts EXDATEs at the series start time instead of
	// local midnight.
	ExDateAtStartTime bool
}

// SingleInput describes a one-off event.
type SingleInput struct {
	Line     int
	Name     string
	Location string
	Start    model.Clock
	End      model.Clock
	Date     model.Date
}

// RecurringInput describes a weekly series.
type RecurringInput struct {
	Line     int
	Name     string
	Location string
	Start    model.Clock
	End      model.Clock

	// TermStart is the reference date; the first occurrence is the first
	// Weekday on or after it.
	TermStart model.Date
	Weekday   model.Weekday

	// Interval < 1 means every week.
	Interval int
	// Count > 0 wins over Until; with neither, the fallback count applies.
	Count int
	Until *model.Date

	ExDates []model.Date
	RDates  []model.Date
}

func (b *Builder) location() *time.Location {
	if b.Location == nil {
		return time.Local
	}
	return b.Location
}

func (b *Builder) fallbackCount() int {
	if b.FallbackCount <= 0 {
		return defaultFallbackCount
	}
	return b.FallbackCount
}

// BuildSingle builds an event without a recurrence rule.
func (b *Builder) BuildSingle(in SingleInput) (model.EventRecord, error) {
	if err := checkSpan(in.Line, in.Start, in.End); err != nil {
		return model.EventRecord{}, err
	}
	loc := b.location()
	ev := model.EventRecord{
		Summary:  summaryOrDefault(in.Name),
		Location: strings.TrimSpace(in.Location),
		Start:    in.Date.At(in.Start, loc),
		End:      in.Date.At(in.End, loc),
	}
	ev.UID = eventUID(in.Line, ev)
	return ev, nil
}

// BuildRecurring builds a weekly series.
//
// Steps:
//   - anchor the first occurrence on the first matching weekday >= TermStart
//   - weekly rule with Interval (default 1)
//   - terminate by Count, else Until (23:59 local on that date), else the
//     fallback count
//   - EXDATEs at local midnight (or start time, see ExDateAtStartTime)
//   - RDATEs at the series start time on each extra date
func (b *Builder) BuildRecurring(in RecurringInput) (model.EventRecord, error) {
	if in.Weekday.Index() < 0 {
		return model.EventRecord{}, &model.FormatError{Line: in.Line, Field: "weekday", Value: string(in.Weekday), Err: errors.New("unknown weekday code")}
	}
	if err := checkSpan(in.Line, in.Start, in.End); err != nil {
		return model.EventRecord{}, err
	}

	loc := b.location()
	anchor := field.AnchorDate(in.TermStart, in.Weekday)

	ev := model.EventRecord{
		Summary:  summaryOrDefault(in.Name),
		Location: strings.TrimSpace(in.Location),
		Start:    anchor.At(in.Start, loc),
		End:      anchor.At(in.End, loc),
	}

	rule := &model.RecurrenceRule{Interval: in.Interval}
	if rule.Interval < 1 {
		rule.Interval = 1
	}
	switch {
	case in.Count > 0:
		rule.Count = in.Count
	case in.Until != nil:
		rule.Until = in.Until.At(untilClock, loc)
		if rule.Until.Before(ev.Start) {
			appLog.Warn("until precedes first occurrence; series is empty",
				"line", in.Line, "summary", ev.Summary, "until", in.Until.String(), "first", anchor.String())
		}
	default:
		rule.Count = b.fallbackCount()
		appLog.Debug("no count or end_date; using fallback count",
			"line", in.Line, "summary", ev.Summary, "count", rule.Count)
	}
	ev.Rule = rule

	exClock := model.Clock{}
	if b.ExDateAtStartTime {
		exClock = in.Start
	}
	for _, d := range in.ExDates {
		ev.ExDates = append(ev.ExDates, d.At(exClock, loc))
	}
	for _, d := range in.RDates {
		ev.RDates = append(ev.RDates, d.At(in.Start, loc))
	}

	ev.UID = eventUID(in.Line, ev)
	return ev, nil
}

// checkSpan enforces start < end within one day.
func checkSpan(line int, start, end model.Clock) error {
	if !start.Before(end) {
		return &model.FormatError{
			Line:  line,
			Field: "end",
			Value: end.String(),
			Err:   fmt.Errorf("must be after start %s on the same day", start),
		}
	}
	return nil
}

func summaryOrDefault(name string) string {
	if s := strings.TrimSpace(name); s != "" {
		return s
	}
	return defaultSummary
}

func eventUID(line int, ev model.EventRecord) string {
	key := fmt.Sprintf("%d|%s|%s|%s", line, ev.Summary, ev.Location, ev.Start.Format(time.RFC3339))
	return uuid.NewSHA1(uidNamespace, []byte(key)).String() + "@" + uidDomain
}
