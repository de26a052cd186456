package calendar

import (
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
}

func TestEaster(t *testing.T) {
	cases := []struct {
		year int
		want time.Time
	}{
		{2024, time.Date(2024, time.March, 31, 0, 0, 0, 0, time.UTC)},
		{2025, time.Date(2025, time.April, 20, 0, 0, 0, 0, time.UTC)},
		{2026, time.Date(2026, time.April, 5, 0, 0, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		if got := Easter(tc.year); !got.Equal(tc.want) {
			t.Errorf("Easter(%d) = %v, want %v", tc.year, got, tc.want)
		}
	}
}

func TestFixedHolidays(t *testing.T) {
	for _, d := range []time.Time{
		date(2024, time.January, 1),
		date(2024, time.January, 6),
		date(2024, time.May, 1),
		date(2024, time.June, 6),
		date(2024, time.December, 24),
		date(2024, time.December, 25),
		date(2024, time.December, 26),
		date(2024, time.December, 31),
	} {
		if !IsSwedishHoliday(d) {
			t.Errorf("%v should be a holiday", d)
		}
	}
}

func TestMovableHolidays(t *testing.T) {
	// 2024: Easter Mar 31, Good Friday Mar 29, Easter Monday Apr 1,
	// Ascension May 9, Pentecost May 19, Midsummer Eve Jun 21.
	for _, d := range []time.Time{
		date(2024, time.March, 29),
		date(2024, time.March, 31),
		date(2024, time.April, 1),
		date(2024, time.May, 9),
		date(2024, time.May, 19),
		date(2024, time.June, 21),
		date(2024, time.June, 22),
		date(2024, time.November, 2), // All Saints' Day 2024
	} {
		if !IsSwedishHoliday(d) {
			t.Errorf("%v should be a holiday", d)
		}
	}
}

func TestOrdinaryDays(t *testing.T) {
	for _, d := range []time.Time{
		date(2024, time.March, 28), // Maundy Thursday is a working day
		date(2024, time.February, 13),
		date(2024, time.September, 17),
		date(2024, time.June, 19), // Wednesday before Midsummer 2024
	} {
		if IsSwedishHoliday(d) {
			t.Errorf("%v should not be a holiday", d)
		}
	}
}

func TestIsPriceWeekend(t *testing.T) {
	if !IsPriceWeekend(date(2024, time.September, 14)) { // Saturday
		t.Error("Saturday should follow the weekend pattern")
	}
	if !IsPriceWeekend(date(2024, time.May, 1)) { // Wednesday, May Day
		t.Error("holidays should follow the weekend pattern")
	}
	if IsPriceWeekend(date(2024, time.September, 17)) { // Tuesday
		t.Error("an ordinary Tuesday is not a weekend")
	}
}
