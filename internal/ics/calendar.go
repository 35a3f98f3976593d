package ics

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"

	appLog "coursecal/internal/log"
	"coursecal/internal/model"
)

const (
	calendarVersion = "2.0"

	// localLayout is a DATE-TIME with no zone suffix; the zone goes in TZID.
	localLayout = "20060102T150405"
)

// Calendar accumulates EventRecords in insertion order and serializes them
// as one VCALENDAR.
type Calendar struct {
	ProdID   string
	Location *time.Location

	// Now stamps DTSTAMP. If nil, time.Now is used.
	Now func() time.Time

	events []model.EventRecord
}

// NewCalendar creates an empty calendar whose instants are written in loc.
func NewCalendar(prodID string, loc *time.Location) *Calendar {
	if loc == nil {
		loc = time.Local
	}
	return &Calendar{ProdID: prodID, Location: loc}
}

// Add appends an event.
func (c *Calendar) Add(ev model.EventRecord) {
	c.events = append(c.events, ev)
}

func (c *Calendar) Len() int {
	return len(c.events)
}

// Events returns the accumulated events in insertion order.
func (c *Calendar) Events() []model.EventRecord {
	return c.events
}

// Serialize renders the calendar in RFC 5545 text form.
func (c *Calendar) Serialize() ([]byte, error) {
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	stamp := now().UTC()
	tzid := c.Location.String()

	cal := ical.NewCalendar()
	cal.SetProductId(c.ProdID)
	cal.SetVersion(calendarVersion)
	cal.SetCalscale("GREGORIAN")
	cal.SetMethod(ical.MethodPublish)
	cal.SetXWRTimezone(tzid)

	for _, rec := range c.events {
		if rec.UID == "" {
			return nil, fmt.Errorf("ics: event %q has no UID", rec.Summary)
		}
		e := cal.AddEvent(rec.UID)
		e.SetDtStampTime(stamp)
		e.SetSummary(rec.Summary)
		if rec.Location != "" {
			e.SetLocation(rec.Location)
		}
		e.SetProperty(ical.ComponentPropertyDtStart, c.local(rec.Start), ical.WithTZID(tzid))
		e.SetProperty(ical.ComponentPropertyDtEnd, c.local(rec.End), ical.WithTZID(tzid))

		if rec.Rule != nil {
			e.AddProperty(ical.ComponentPropertyRrule, ruleString(rec.Rule))
		}
		for _, ex := range rec.ExDates {
			e.AddProperty(ical.ComponentPropertyExdate, c.local(ex), ical.WithTZID(tzid))
		}
		for _, rd := range rec.RDates {
			e.AddProperty(ical.ComponentPropertyRdate, c.local(rd), ical.WithTZID(tzid))
		}
	}

	var buf bytes.Buffer
	if err := cal.SerializeTo(&buf); err != nil {
		return nil, fmt.Errorf("ics: serialize: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteFile serializes the calendar, checks that the bytes parse back to the
// same number of events, and replaces path with them.
//
// Implementation details:
//   - Writes to a temp file in the target directory, then renames, so a
//     failed run never leaves a truncated calendar behind.
//   - Final permissions are 0644.
func (c *Calendar) WriteFile(path string) error {
	if path == "" {
		return errors.New("ics: output path is empty")
	}

	data, err := c.Serialize()
	if err != nil {
		return err
	}

	parsed, err := ReadBack(data)
	if err != nil {
		return fmt.Errorf("ics: serialized calendar does not parse: %w", err)
	}
	if len(parsed) != c.Len() {
		return fmt.Errorf("ics: serialized calendar has %d events, expected %d", len(parsed), c.Len())
	}

	if err := replaceFile(path, data); err != nil {
		appLog.Error("calendar write failed", err, "path", path, "events", c.Len())
		return err
	}

	appLog.Info("calendar written", "path", path, "events", c.Len(), "bytes", len(data))
	return nil
}

// replaceFile writes data to a temp file beside path and renames it over
// path, so a failed run never leaves a truncated calendar behind.
func replaceFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".coursecal-*.ics.tmp")
	if err != nil {
		return fmt.Errorf("ics: create temp file: %w", err)
	}
	tmpName := tmp.Name()

	// Ensure we clean up temp file on error.
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("ics: replace %s: %w", path, err)
	}

	return nil
}

func (c *Calendar) local(t time.Time) string {
	return t.In(c.Location).Format(localLayout)
}

// ruleString renders a weekly rule; UNTIL is converted to UTC as RFC 5545
// requires when DTSTART carries a TZID.
func ruleString(r *model.RecurrenceRule) string {
	opt := rrule.ROption{
		Freq:     rrule.WEEKLY,
		Interval: r.Interval,
		Count:    r.Count,
	}
	if !r.Until.IsZero() {
		opt.Until = r.Until.UTC()
	}
	return opt.String()
}
