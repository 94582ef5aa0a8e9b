// Package period maps instants and YYYY-WW keys to ISO 8601 weeks.
//
// A period starts Monday 00:00:00.000 and ends Sunday 23:59:59.999 in a single
// configured location. Week numbering follows ISO 8601: week 1 is the week that
// contains the first Thursday of the year, and the key uses the ISO week-year,
// so 2024-12-30 belongs to "2025-01".
package period

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Days is the number of days in a period.
const Days = 7

var ErrInvalidKey = errors.New("invalid period key")

type Period struct {
	Key   string
	Year  int
	Week  int
	Start time.Time
	End   time.Time
}

// Of returns the period containing t, evaluated in loc.
func Of(t time.Time, loc *time.Location) Period {
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	year, week := local.ISOWeek()

	weekday := int(local.Weekday()+6) % 7 // Monday = 0
	day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	start := day.AddDate(0, 0, -weekday)

	return build(year, week, start)
}

// Parse resolves a YYYY-WW key into its period in loc.
func Parse(key string, loc *time.Location) (Period, error) {
	if loc == nil {
		loc = time.UTC
	}

	parts := strings.Split(strings.TrimSpace(key), "-")
	if len(parts) != 2 || len(parts[0]) != 4 || len(parts[1]) != 2 {
		return Period{}, fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}

	year, err := strconv.Atoi(parts[0])
	if err != nil {
		return Period{}, fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	week, err := strconv.Atoi(parts[1])
	if err != nil || week < 1 || week > WeeksInYear(year) {
		return Period{}, fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}

	// January 4th is always in ISO week 1.
	jan4 := time.Date(year, time.January, 4, 0, 0, 0, 0, loc)
	offset := int(jan4.Weekday()+6) % 7
	week1 := jan4.AddDate(0, 0, -offset)
	start := week1.AddDate(0, 0, (week-1)*Days)

	return build(year, week, start), nil
}

// WeeksInYear returns 52 or 53 for the given ISO week-year.
func WeeksInYear(year int) int {
	_, week := time.Date(year, time.December, 28, 12, 0, 0, 0, time.UTC).ISOWeek()
	return week
}

func Key(year, week int) string {
	return fmt.Sprintf("%04d-%02d", year, week)
}

func build(year, week int, start time.Time) Period {
	end := start.AddDate(0, 0, Days-1)
	return Period{
		Key:   Key(year, week),
		Year:  year,
		Week:  week,
		Start: start,
		End:   EndOfDay(end),
	}
}

// EndOfDay returns 23:59:59.999 of t's calendar day in t's location.
func EndOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, int(999*time.Millisecond), t.Location())
}

// Contains reports whether t falls inside the inclusive period bounds.
func (p Period) Contains(t time.Time) bool {
	return !t.Before(p.Start) && !t.After(p.End)
}

// Day returns the start of the given day of the period, clamped to 0..6.
func (p Period) Day(offset int) time.Time {
	if offset < 0 {
		offset = 0
	}
	if offset > Days-1 {
		offset = Days - 1
	}
	return p.Start.AddDate(0, 0, offset)
}

// Next returns the following period.
func (p Period) Next() Period {
	return Of(p.Start.AddDate(0, 0, Days), p.Start.Location())
}

// Prev returns the preceding period.
func (p Period) Prev() Period {
	return Of(p.Start.AddDate(0, 0, -Days), p.Start.Location())
}

func (p Period) String() string {
	return p.Key
}
