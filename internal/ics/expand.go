package ics

import (
	"errors"
	"time"

	"github.com/teambition/rrule-go"

	appLog "coursecal/internal/log"
	"coursecal/internal/model"
)

const (
	defaultMaxOccurrencesPerEvent = 5000
)

// ExpandResult wraps the expanded occurrences and the UIDs that hit the cap.
type ExpandResult struct {
	Occurrences []model.Occurrence
	// TruncatedEvents records UIDs that hit the per-event cap.
	TruncatedEvents []string
}

// ExpandOccurrences turns EventRecords into concrete occurrences, in input
// order and chronological within each event. It handles:
//
//   - Single non-recurring events
//   - Weekly RRULE with COUNT or UNTIL
//   - RDATE additions (same duration as the base event)
//   - EXDATE removal (exact instant match, as calendar clients do)
//
// maxPerEvent bounds each event's expansion; zero means
// defaultMaxOccurrencesPerEvent.
func ExpandOccurrences(events []model.EventRecord, maxPerEvent int) (ExpandResult, error) {
	var result ExpandResult
	if maxPerEvent <= 0 {
		maxPerEvent = defaultMaxOccurrencesPerEvent
	}

	for _, ev := range events {
		if !ev.Start.Before(ev.End) {
			return result, errors.New("expand: event end is not after start: " + ev.UID)
		}

		occ, hitCap, err := expandEvent(ev, maxPerEvent)
		if err != nil {
			return result, err
		}
		if hitCap {
			result.TruncatedEvents = append(result.TruncatedEvents, ev.UID)
			appLog.Warn("expand: truncated occurrences for UID due to cap",
				"uid", ev.UID,
				"cap", maxPerEvent,
			)
		}
		result.Occurrences = append(result.Occurrences, occ...)
	}

	return result, nil
}

// CountOccurrences returns how many instances ev produces.
func CountOccurrences(ev model.EventRecord) (int, error) {
	occ, _, err := expandEvent(ev, defaultMaxOccurrencesPerEvent)
	return len(occ), err
}

func expandEvent(ev model.EventRecord, maxPerEvent int) ([]model.Occurrence, bool, error) {
	if ev.Rule == nil {
		return []model.Occurrence{makeOccurrence(ev, ev.Start, false)}, false, nil
	}

	opt := rrule.ROption{
		Freq:     rrule.WEEKLY,
		Interval: ev.Rule.Interval,
		Count:    ev.Rule.Count,
		Until:    ev.Rule.Until,
		Dtstart:  ev.Start,
	}
	r, err := rrule.NewRRule(opt)
	if err != nil {
		return nil, false, err
	}

	var set rrule.Set
	set.RRule(r)

	extra := make(map[int64]bool, len(ev.RDates))
	for _, rd := range ev.RDates {
		set.RDate(rd)
		extra[rd.Unix()] = true
	}
	for _, ex := range ev.ExDates {
		set.ExDate(ex)
	}

	out := make([]model.Occurrence, 0)
	next := set.Iterator()
	for {
		start, ok := next()
		if !ok {
			return out, false, nil
		}
		if len(out) == maxPerEvent {
			return out, true, nil
		}
		out = append(out, makeOccurrence(ev, start, extra[start.Unix()]))
	}
}

// makeOccurrence places one instance at start, keeping the base duration.
func makeOccurrence(ev model.EventRecord, start time.Time, extra bool) model.Occurrence {
	dur := ev.End.Sub(ev.Start)
	return model.Occurrence{
		UID:      ev.UID,
		Summary:  ev.Summary,
		Location: ev.Location,
		Start:    start,
		End:      start.Add(dur),
		Extra:    extra,
	}
}
