package ics

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	_ "time/tzdata"

	appLog "coursecal/internal/log"
	"coursecal/internal/model"
)

func hongKong(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Hong_Kong")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	return loc
}

func date(y int, m time.Month, d int) model.Date {
	return model.Date{Year: y, Month: m, Day: d}
}

func calculus() RecurringInput {
	return RecurringInput{
		Line:      2,
		Name:      "Calculus",
		Start:     model.Clock{Hour: 9},
		End:       model.Clock{Hour: 10, Minute: 30},
		TermStart: date(2024, time.September, 2),
		Weekday:   model.Monday,
		Count:     5,
	}
}

func serialize(t *testing.T, loc *time.Location, events ...model.EventRecord) string {
	t.Helper()
	cal := NewCalendar("-//Test//EN", loc)
	cal.Now = func() time.Time { return time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC) }
	for _, ev := range events {
		cal.Add(ev)
	}
	data, err := cal.Serialize()
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	return string(data)
}

func TestBuildRecurringCalculusExample(t *testing.T) {
	loc := hongKong(t)
	b := &Builder{Location: loc}

	ev, err := b.BuildRecurring(calculus())
	if err != nil {
		t.Fatalf("BuildRecurring: %v", err)
	}

	wantStart := time.Date(2024, 9, 2, 9, 0, 0, 0, loc)
	wantEnd := time.Date(2024, 9, 2, 10, 30, 0, 0, loc)
	if !ev.Start.Equal(wantStart) || !ev.End.Equal(wantEnd) {
		t.Errorf("span = %v..%v, want %v..%v", ev.Start, ev.End, wantStart, wantEnd)
	}
	if ev.Summary != "Calculus" {
		t.Errorf("Summary = %q", ev.Summary)
	}
	if ev.Rule == nil || ev.Rule.Interval != 1 || ev.Rule.Count != 5 || !ev.Rule.Until.IsZero() {
		t.Fatalf("Rule = %+v", ev.Rule)
	}

	out := serialize(t, loc, ev)
	for _, want := range []string{
		"PRODID:-//Test//EN",
		"VERSION:2.0",
		"SUMMARY:Calculus",
		"DTSTART;TZID=Asia/Hong_Kong:20240902T090000",
		"DTEND;TZID=Asia/Hong_Kong:20240902T103000",
		"RRULE:FREQ=WEEKLY;INTERVAL=1;COUNT=5",
		"DTSTAMP:20240801T000000Z",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("serialized calendar missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "LOCATION") {
		t.Errorf("empty location should not be written:\n%s", out)
	}
}

func TestBuildRecurringCountHasNoUntil(t *testing.T) {
	b := &Builder{Location: hongKong(t)}
	in := calculus()
	in.Count = 10

	ev, err := b.BuildRecurring(in)
	if err != nil {
		t.Fatal(err)
	}
	n, err := CountOccurrences(ev)
	if err != nil {
		t.Fatal(err)
	}
	if n != 10 {
		t.Errorf("occurrences = %d, want 10", n)
	}
	if !ev.Rule.Until.IsZero() {
		t.Errorf("Until = %v, want zero", ev.Rule.Until)
	}
	if out := serialize(t, b.Location, ev); strings.Contains(out, "UNTIL") {
		t.Errorf("RRULE should not carry UNTIL:\n%s", out)
	}
}

func TestBuildRecurringFallbackCount(t *testing.T) {
	b := &Builder{Location: hongKong(t)}
	in := calculus()
	in.Count = 0

	ev, err := b.BuildRecurring(in)
	if err != nil {
		t.Fatal(err)
	}
	if ev.Rule.Count != 30 {
		t.Errorf("Count = %d, want 30", ev.Rule.Count)
	}
	if n, _ := CountOccurrences(ev); n != 30 {
		t.Errorf("occurrences = %d, want 30", n)
	}

	b.FallbackCount = 12
	ev, _ = b.BuildRecurring(in)
	if n, _ := CountOccurrences(ev); n != 12 {
		t.Errorf("occurrences with custom fallback = %d, want 12", n)
	}
}

func TestBuildRecurringUntil(t *testing.T) {
	loc := hongKong(t)
	b := &Builder{Location: loc}
	in := calculus()
	in.Count = 0
	until := date(2024, time.October, 28)
	in.Until = &until

	ev, err := b.BuildRecurring(in)
	if err != nil {
		t.Fatal(err)
	}
	if ev.Rule.Count != 0 {
		t.Errorf("Count = %d, want 0", ev.Rule.Count)
	}
	if want := time.Date(2024, 10, 28, 23, 59, 0, 0, loc); !ev.Rule.Until.Equal(want) {
		t.Errorf("Until = %v, want %v", ev.Rule.Until, want)
	}
	// Mondays Sep 2 .. Oct 28 inclusive.
	if n, _ := CountOccurrences(ev); n != 9 {
		t.Errorf("occurrences = %d, want 9", n)
	}

	out := serialize(t, loc, ev)
	if !strings.Contains(out, "RRULE:FREQ=WEEKLY;INTERVAL=1;UNTIL=20241028T155900Z") {
		t.Errorf("UNTIL should be written in UTC:\n%s", out)
	}
}

func TestBuildRecurringCountWinsOverUntil(t *testing.T) {
	b := &Builder{Location: hongKong(t)}
	in := calculus()
	until := date(2025, time.June, 30)
	in.Until = &until

	ev, err := b.BuildRecurring(in)
	if err != nil {
		t.Fatal(err)
	}
	if ev.Rule.Count != 5 || !ev.Rule.Until.IsZero() {
		t.Errorf("Rule = %+v, want count only", ev.Rule)
	}
}

func TestBuildRecurringIntervalAndAnchor(t *testing.T) {
	loc := hongKong(t)
	b := &Builder{Location: loc}
	in := calculus()
	in.Weekday = model.Wednesday
	in.Interval = 2
	in.Count = 3

	ev, err := b.BuildRecurring(in)
	if err != nil {
		t.Fatal(err)
	}
	res, err := ExpandOccurrences([]model.EventRecord{ev}, 0)
	if err != nil {
		t.Fatal(err)
	}
	want := []time.Time{
		time.Date(2024, 9, 4, 9, 0, 0, 0, loc),
		time.Date(2024, 9, 18, 9, 0, 0, 0, loc),
		time.Date(2024, 10, 2, 9, 0, 0, 0, loc),
	}
	if len(res.Occurrences) != len(want) {
		t.Fatalf("got %d occurrences, want %d", len(res.Occurrences), len(want))
	}
	for i, occ := range res.Occurrences {
		if !occ.Start.Equal(want[i]) {
			t.Errorf("occurrence %d = %v, want %v", i, occ.Start, want[i])
		}
		if occ.End.Sub(occ.Start) != 90*time.Minute {
			t.Errorf("occurrence %d duration = %v", i, occ.End.Sub(occ.Start))
		}
	}

	in.Interval = 0
	ev, _ = b.BuildRecurring(in)
	if ev.Rule.Interval != 1 {
		t.Errorf("Interval = %d, want default 1", ev.Rule.Interval)
	}
}

func TestBuildRecurringExceptionsAtMidnight(t *testing.T) {
	loc := hongKong(t)
	b := &Builder{Location: loc}
	in := calculus()
	in.ExDates = []model.Date{date(2024, time.September, 16)}
	in.RDates = []model.Date{date(2024, time.October, 10)}

	ev, err := b.BuildRecurring(in)
	if err != nil {
		t.Fatal(err)
	}
	if len(ev.ExDates) != 1 || !ev.ExDates[0].Equal(time.Date(2024, 9, 16, 0, 0, 0, 0, loc)) {
		t.Errorf("ExDates = %v, want local midnight", ev.ExDates)
	}
	if len(ev.RDates) != 1 || !ev.RDates[0].Equal(time.Date(2024, 10, 10, 9, 0, 0, 0, loc)) {
		t.Errorf("RDates = %v, want start time on extra date", ev.RDates)
	}

	out := serialize(t, loc, ev)
	for _, want := range []string{
		"EXDATE;TZID=Asia/Hong_Kong:20240916T000000",
		"RDATE;TZID=Asia/Hong_Kong:20241010T090000",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q:\n%s", want, out)
		}
	}

	// A midnight EXDATE does not match the 09:00 instance.
	if n, _ := CountOccurrences(ev); n != 6 {
		t.Errorf("occurrences = %d, want 5 rule + 1 extra", n)
	}
}

func TestBuildRecurringExceptionsAtStartTime(t *testing.T) {
	loc := hongKong(t)
	b := &Builder{Location: loc, ExDateAtStartTime: true}
	in := calculus()
	in.ExDates = []model.Date{date(2024, time.September, 16)}
	in.RDates = []model.Date{date(2024, time.October, 10)}

	ev, err := b.BuildRecurring(in)
	if err != nil {
		t.Fatal(err)
	}
	res, err := ExpandOccurrences([]model.EventRecord{ev}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Occurrences) != 5 {
		t.Fatalf("occurrences = %d, want 5 (5 - 1 exception + 1 extra)", len(res.Occurrences))
	}
	for _, occ := range res.Occurrences {
		if occ.Start.Equal(time.Date(2024, 9, 16, 9, 0, 0, 0, loc)) {
			t.Errorf("excepted occurrence still present")
		}
	}
	last := res.Occurrences[len(res.Occurrences)-1]
	if !last.Extra || !last.Start.Equal(time.Date(2024, 10, 10, 9, 0, 0, 0, loc)) {
		t.Errorf("last occurrence = %+v, want the extra date", last)
	}
}

func TestBuildRejectsBadSpan(t *testing.T) {
	b := &Builder{Location: time.UTC}
	in := calculus()
	in.End = in.Start

	var fe *model.FormatError
	if _, err := b.BuildRecurring(in); !errors.As(err, &fe) {
		t.Errorf("recurring err = %v, want FormatError", err)
	}

	_, err := b.BuildSingle(SingleInput{
		Name:  "Backwards",
		Start: model.Clock{Hour: 11},
		End:   model.Clock{Hour: 10},
		Date:  date(2024, time.October, 1),
	})
	if !errors.As(err, &fe) {
		t.Errorf("single err = %v, want FormatError", err)
	}

	in = calculus()
	in.Weekday = "XX"
	if _, err := b.BuildRecurring(in); !errors.As(err, &fe) {
		t.Errorf("bad weekday err = %v, want FormatError", err)
	}
}

func TestBuildSingle(t *testing.T) {
	loc := hongKong(t)
	b := &Builder{Location: loc}

	ev, err := b.BuildSingle(SingleInput{
		Line:     3,
		Name:     "  ",
		Location: " Hall A ",
		Start:    model.Clock{Hour: 14},
		End:      model.Clock{Hour: 15, Minute: 15},
		Date:     date(2024, time.November, 5),
	})
	if err != nil {
		t.Fatal(err)
	}
	if ev.Rule != nil || ev.Recurring() {
		t.Errorf("single event has a rule: %+v", ev.Rule)
	}
	if ev.Summary != "Course" || ev.Location != "Hall A" {
		t.Errorf("Summary/Location = %q/%q", ev.Summary, ev.Location)
	}
	if !ev.Start.Equal(time.Date(2024, 11, 5, 14, 0, 0, 0, loc)) {
		t.Errorf("Start = %v", ev.Start)
	}
	if !strings.HasSuffix(ev.UID, "@coursecal") {
		t.Errorf("UID = %q", ev.UID)
	}

	again, _ := b.BuildSingle(SingleInput{
		Line: 3, Name: "", Location: "Hall A",
		Start: model.Clock{Hour: 14}, End: model.Clock{Hour: 15, Minute: 15},
		Date: date(2024, time.November, 5),
	})
	if again.UID != ev.UID {
		t.Errorf("UIDs differ for equal input: %q vs %q", again.UID, ev.UID)
	}

	if n, _ := CountOccurrences(ev); n != 1 {
		t.Errorf("single event occurrences = %d", n)
	}
}

func TestSerializeReadBackRoundTrip(t *testing.T) {
	loc := hongKong(t)
	b := &Builder{Location: loc}

	in := calculus()
	in.Location = "Rm 301, Block A; 2/F"
	in.ExDates = []model.Date{date(2024, time.September, 9), date(2024, time.September, 23)}
	in.RDates = []model.Date{date(2024, time.December, 2)}
	rec, err := b.BuildRecurring(in)
	if err != nil {
		t.Fatal(err)
	}
	single, err := b.BuildSingle(SingleInput{
		Line: 3, Name: "Exam", Start: model.Clock{Hour: 18}, End: model.Clock{Hour: 20},
		Date: date(2024, time.December, 12),
	})
	if err != nil {
		t.Fatal(err)
	}

	got, err := ReadBack([]byte(serialize(t, loc, rec, single)))
	if err != nil {
		t.Fatalf("ReadBack: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d events, want 2", len(got))
	}

	r := got[0]
	if r.UID != rec.UID || r.Summary != rec.Summary || r.Location != rec.Location {
		t.Errorf("text fields = %q/%q/%q", r.UID, r.Summary, r.Location)
	}
	if !r.Start.Equal(rec.Start) || !r.End.Equal(rec.End) {
		t.Errorf("span = %v..%v", r.Start, r.End)
	}
	if r.Rule == nil || r.Rule.Count != 5 || r.Rule.Interval != 1 {
		t.Errorf("Rule = %+v", r.Rule)
	}
	if len(r.ExDates) != 2 || !r.ExDates[1].Equal(rec.ExDates[1]) {
		t.Errorf("ExDates = %v", r.ExDates)
	}
	if len(r.RDates) != 1 || !r.RDates[0].Equal(rec.RDates[0]) {
		t.Errorf("RDates = %v", r.RDates)
	}

	if got[1].Rule != nil || got[1].Summary != "Exam" {
		t.Errorf("second event = %+v", got[1])
	}
}

func TestReadBackRejectsGarbage(t *testing.T) {
	if _, err := ReadBack(nil); err == nil {
		t.Error("expected error for empty body")
	}
	if _, err := ReadBack([]byte("BEGIN:VCALENDAR\r\nBEGIN:VEVENT\r\nSUMMARY:x\r\nEND:VEVENT\r\nEND:VCALENDAR\r\n")); err == nil {
		t.Error("expected error for event without UID")
	}
}

func TestWriteFileOverwrites(t *testing.T) {
	loc := hongKong(t)
	b := &Builder{Location: loc}
	ev, err := b.BuildRecurring(calculus())
	if err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "out.ics")
	if err := os.WriteFile(path, []byte("stale"), 0o600); err != nil {
		t.Fatal(err)
	}

	cal := NewCalendar("-//Test//EN", loc)
	cal.Add(ev)
	if err := cal.WriteFile(path); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "BEGIN:VCALENDAR") {
		t.Errorf("file not replaced: %q", data)
	}
	events, err := ReadBack(data)
	if err != nil || len(events) != 1 {
		t.Errorf("ReadBack = %d events, %v", len(events), err)
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("temp files left behind: %v", entries)
	}
}

func TestWriteFileMissingDirectory(t *testing.T) {
	var logs bytes.Buffer
	appLog.SetOutput(&logs)
	t.Cleanup(func() { appLog.SetOutput(os.Stderr) })

	cal := NewCalendar("-//Test//EN", time.UTC)
	path := filepath.Join(t.TempDir(), "nope", "out.ics")
	if err := cal.WriteFile(path); err == nil {
		t.Fatal("expected error for missing directory")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("output exists after failure: %v", err)
	}
	if !strings.Contains(logs.String(), "[ERROR] calendar write failed") {
		t.Errorf("write failure not logged:\n%s", logs.String())
	}
}

func TestExpandOccurrencesCap(t *testing.T) {
	b := &Builder{Location: time.UTC}
	in := calculus()
	in.Count = 50
	ev, err := b.BuildRecurring(in)
	if err != nil {
		t.Fatal(err)
	}

	res, err := ExpandOccurrences([]model.EventRecord{ev}, 7)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Occurrences) != 7 {
		t.Errorf("occurrences = %d, want 7", len(res.Occurrences))
	}
	if len(res.TruncatedEvents) != 1 || res.TruncatedEvents[0] != ev.UID {
		t.Errorf("TruncatedEvents = %v", res.TruncatedEvents)
	}
}
