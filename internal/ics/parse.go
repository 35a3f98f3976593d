package ics

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"

	"coursecal/internal/model"
)

// ReadBack parses an ICS payload into EventRecords.
//
//   - DTSTART/DTEND go through the library's TZID handling.
//   - RRULE is decoded with rrule-go; only INTERVAL, COUNT and UNTIL are
//     kept because the converter never writes anything else.
//   - EXDATE/RDATE may repeat and may hold comma-separated lists.
//
// It is used to check written calendars and in tests.
func ReadBack(body []byte) ([]model.EventRecord, error) {
	if len(body) == 0 {
		return nil, errors.New("empty ICS body")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	events := make([]model.EventRecord, 0)
	for _, ve := range cal.Events() {
		ev, err := readVEvent(ve)
		if err != nil {
			return nil, fmt.Errorf("vevent %s: %w", ve.Id(), err)
		}
		events = append(events, ev)
	}
	return events, nil
}

func readVEvent(ve *ical.VEvent) (model.EventRecord, error) {
	var out model.EventRecord

	uidProp := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uidProp == nil || uidProp.Value == "" {
		return out, errors.New("missing UID")
	}
	out.UID = uidProp.Value

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Summary = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyLocation); p != nil {
		out.Location = p.Value
	}

	start, err := ve.GetStartAt()
	if err != nil {
		return out, fmt.Errorf("DTSTART: %w", err)
	}
	end, err := ve.GetEndAt()
	if err != nil {
		return out, fmt.Errorf("DTEND: %w", err)
	}
	out.Start = start
	out.End = end

	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil {
		opt, err := rrule.StrToROptionInLocation(p.Value, start.Location())
		if err != nil {
			return out, fmt.Errorf("RRULE: %w", err)
		}
		out.Rule = &model.RecurrenceRule{
			Interval: opt.Interval,
			Count:    opt.Count,
			Until:    opt.Until,
		}
	}

	if out.ExDates, err = readInstants(ve, ical.ComponentPropertyExdate); err != nil {
		return out, err
	}
	if out.RDates, err = readInstants(ve, ical.ComponentPropertyRdate); err != nil {
		return out, err
	}
	return out, nil
}

// readInstants collects every instant of a repeatable date-time property.
func readInstants(ve *ical.VEvent, prop ical.ComponentProperty) ([]time.Time, error) {
	var out []time.Time
	for _, p := range ve.GetProperties(prop) {
		loc := time.Local
		if tz, ok := p.ICalParameters[string(ical.ParameterTzid)]; ok && len(tz) == 1 {
			l, err := time.LoadLocation(tz[0])
			if err != nil {
				return nil, fmt.Errorf("%s TZID: %w", prop, err)
			}
			loc = l
		}
		for _, part := range strings.Split(p.Value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			t, err := parseICSTime(part, loc)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", prop, err)
			}
			out = append(out, t)
		}
	}
	return out, nil
}

// parseICSTime parses a basic ICS date/date-time string. Values without a
// trailing Z are read in loc.
func parseICSTime(v string, loc *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, errors.New("empty time value")
	}

	// UTC form, e.g., 20250101T090000Z
	if strings.HasSuffix(v, "Z") {
		return time.Parse("20060102T150405Z", v)
	}

	// Local date-time, e.g., 20250101T090000
	if strings.Contains(v, "T") {
		return time.ParseInLocation(localLayout, v, loc)
	}

	// Date-only, e.g., 20250101
	return time.ParseInLocation("20060102", v, loc)
}
