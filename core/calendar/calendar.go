package calendar

import "time"

// Easter returns the date of Easter Sunday for the given year in the
// Gregorian calendar (anonymous Gauss algorithm).
func Easter(year int) time.Time {
	a := year % 19
	b := year / 100
	c := year % 100
	d := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451
	month := (h + l - 7*m + 114) / 31
	day := (h+l-7*m+114)%31 + 1
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}

// IsSwedishHoliday reports whether the date is a Swedish public holiday or a
// de-facto full holiday (Midsummer Eve, Christmas Eve, New Year's Eve).
func IsSwedishHoliday(t time.Time) bool {
	y, m, d := t.Date()

	switch {
	case m == time.January && (d == 1 || d == 6):
		return true // New Year's Day, Epiphany
	case m == time.May && d == 1:
		return true // May Day
	case m == time.June && d == 6:
		return true // National Day
	case m == time.December && (d == 24 || d == 25 || d == 26 || d == 31):
		return true // Christmas Eve through Boxing Day, New Year's Eve
	}

	// Midsummer Eve is the Friday between June 19 and 25, Midsummer Day the
	// Saturday after; All Saints' Day the Saturday between Oct 31 and Nov 6.
	if m == time.June && d >= 19 && d <= 26 {
		wd := t.Weekday()
		if (wd == time.Friday && d <= 25) || (wd == time.Saturday && d >= 20) {
			return true
		}
	}
	if (m == time.October && d == 31 || m == time.November && d <= 6) && t.Weekday() == time.Saturday {
		return true
	}

	easter := Easter(y)
	day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	for _, off := range []int{-2, 0, 1, 39, 49} { // Good Friday, Easter, Easter Monday, Ascension, Pentecost
		if day.Equal(easter.AddDate(0, 0, off)) {
			return true
		}
	}
	return false
}

// IsPriceWeekend reports whether the date follows the weekend consumption
// pattern: Saturdays, Sundays and Swedish holidays.
func IsPriceWeekend(t time.Time) bool {
	if wd := t.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return true
	}
	return IsSwedishHoliday(t)
}
