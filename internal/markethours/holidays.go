package markethours

import "time"

// Full-day NYSE closures, observed dates. Years outside the table have no
// holidays; see Covers.
var nyseHolidays = map[int][]struct {
	month time.Month
	day   int
}{
	2026: {
		{time.January, 1},   // New Year's Day
		{time.January, 19},  // Martin Luther King Jr. Day
		{time.February, 16}, // Washington's Birthday
		{time.April, 3},     // Good Friday
		{time.May, 25},      // Memorial Day
		{time.June, 19},     // Juneteenth
		{time.July, 3},      // Independence Day (observed)
		{time.September, 7}, // Labor Day
		{time.November, 26}, // Thanksgiving
		{time.December, 25}, // Christmas
	},
	2027: {
		{time.January, 1},
		{time.January, 18},
		{time.February, 15},
		{time.March, 26},
		{time.May, 31},
		{time.June, 18},
		{time.July, 5},
		{time.September, 6},
		{time.November, 25},
		{time.December, 24},
	},
	2028: {
		// New Year's Day falls on a Saturday and is not observed.
		{time.January, 17},
		{time.February, 21},
		{time.April, 14},
		{time.May, 29},
		{time.June, 19},
		{time.July, 4},
		{time.September, 4},
		{time.November, 23},
		{time.December, 25},
	},
}

var holidaySet map[string]bool

func init() {
	holidaySet = make(map[string]bool)
	for year, days := range nyseHolidays {
		for _, h := range days {
			holidaySet[dateKey(year, h.month, h.day)] = true
		}
	}
}

// Covers reports whether the holiday table includes the exchange year of t.
func Covers(t time.Time) bool {
	_, ok := nyseHolidays[t.In(Eastern).Year()]
	return ok
}

// IsHoliday returns true if the exchange date of t is a full-day closure.
func IsHoliday(t time.Time) bool {
	et := t.In(Eastern)
	return holidaySet[dateKey(et.Year(), et.Month(), et.Day())]
}

func dateKey(year int, month time.Month, day int) string {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC).Format("2006-01-02")
}
