package field

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"coursecal/internal/model"
)

// weekdayAliases maps lower-cased, whitespace-collapsed text to a day code.
var weekdayAliases = map[string]model.Weekday{
	"mo": model.Monday, "mon": model.Monday, "monday": model.Monday, "1": model.Monday,
	"tu": model.Tuesday, "tue": model.Tuesday, "tues": model.Tuesday, "tuesday": model.Tuesday, "2": model.Tuesday,
	"we": model.Wednesday, "wed": model.Wednesday, "weds": model.Wednesday, "wednesday": model.Wednesday, "3": model.Wednesday,
	"th": model.Thursday, "thu": model.Thursday, "thur": model.Thursday, "thurs": model.Thursday, "thursday": model.Thursday, "4": model.Thursday,
	"fr": model.Friday, "fri": model.Friday, "friday": model.Friday, "5": model.Friday,
	"sa": model.Saturday, "sat": model.Saturday, "saturday": model.Saturday, "6": model.Saturday,
	"su": model.Sunday, "sun": model.Sunday, "sunday": model.Sunday, "7": model.Sunday,

	"周一": model.Monday,
	"周二": model.Tuesday,
	"周三": model.Wednesday,
	"周四": model.Thursday,
	"周五": model.Friday,
	"周六": model.Saturday,
	"周日": model.Sunday,
}

// NormalizeWeekday resolves a weekday alias ("Mon", " TUESDAY ", "3", "周五")
// to its day code. The second result is false when the text is not a known
// alias; callers decide how to report that.
func NormalizeWeekday(text string) (model.Weekday, bool) {
	key := cases.Lower(language.Und).String(collapseSpace(text))
	wd, ok := weekdayAliases[key]
	return wd, ok
}

// collapseSpace trims text and folds every whitespace run into one space.
func collapseSpace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// AnchorDate returns the first date on or after ref that falls on wd.
// The result is at most six days after ref.
func AnchorDate(ref model.Date, wd model.Weekday) model.Date {
	target := wd.Index()
	if target < 0 {
		return ref
	}
	// time.Weekday is Sunday-based; shift to Monday = 0.
	current := (int(ref.Weekday()) + 6) % 7
	offset := ((target-current)%7 + 7) % 7
	return ref.AddDays(offset)
}
