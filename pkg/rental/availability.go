package rental

import (
	"iter"
	"sort"
)

// DatesBetween yields every calendar date from start through end inclusive.
// The sequence is finite and restartable; an inverted span yields nothing.
func DatesBetween(start Date, end Date) iter.Seq[Date] {
	return func(yield func(Date) bool) {
		for current := start; !current.After(end); current = current.AddDays(1) {
			if !yield(current) {
				return
			}
		}
	}
}

// DateWithinWindow reports whether a date falls inside an inclusive
// window. Only calendar dates are compared.
func DateWithinWindow(date Date, windowStart Date, windowEnd Date) bool {
	return !date.Before(windowStart) && !date.After(windowEnd)
}

// BlockedRanges collects the ranges a product cannot be booked for: the
// product's own configured window, when present, plus the date range of
// every approved booking against it.
func BlockedRanges(window *DateRange, approvedBookings []Booking) []DateRange {
	blocked := make([]DateRange, 0, len(approvedBookings)+1)
	if window != nil {
		blocked = append(blocked, *window)
	}
	for _, booking := range approvedBookings {
		blocked = append(blocked, booking.Dates)
	}
	return blocked
}

// BlockedDates expands a set of blocked ranges into the union of their
// calendar dates, sorted and duplicate-free.
func BlockedDates(blocked []DateRange) []Date {
	seen := make(map[Date]struct{})
	dates := make([]Date, 0)
	for _, dateRange := range blocked {
		for date := range DatesBetween(dateRange.Start(), dateRange.End()) {
			if _, duplicate := seen[date]; duplicate {
				continue
			}
			seen[date] = struct{}{}
			dates = append(dates, date)
		}
	}
	sort.Slice(dates, func(left, right int) bool {
		return dates[left].Before(dates[right])
	})
	return dates
}

// rangeAvailable reports whether a requested range avoids every blocked
// range.
func rangeAvailable(requested DateRange, blocked []DateRange) bool {
	for _, blockedRange := range blocked {
		if requested.Overlaps(blockedRange) {
			return false
		}
	}
	return true
}
