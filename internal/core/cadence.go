package core

// Cadence strategies project the occurrences of a recurring item. Each
// cadence Lunch Money knows has its own strategy, looked up by name.

import (
	"fmt"
	"strings"
	"time"
)

// maxOccurrences bounds the forward search from an old anchor.
const maxOccurrences = 100000

// Cadence computes the n-th occurrence of a schedule anchored at anchor.
// Occurrence 0 is the anchor itself.
type Cadence interface {
	Nth(anchor Date, n int) Date
}

// EveryWeeks repeats every Weeks weeks.
type EveryWeeks struct{ Weeks int }

func (c EveryWeeks) Nth(anchor Date, n int) Date {
	return Date{Time: anchor.AddDate(0, 0, 7*c.Weeks*n)}
}

// EveryMonths repeats every Months months on the anchor's day, clamped to
// the last day of shorter months.
type EveryMonths struct{ Months int }

func (c EveryMonths) Nth(anchor Date, n int) Date {
	return addMonthsClamped(anchor, c.Months*n)
}

// TwiceMonthly repeats on the anchor's day and fifteen days later.
type TwiceMonthly struct{}

func (TwiceMonthly) Nth(anchor Date, n int) Date {
	base := addMonthsClamped(anchor, n/2)
	if n%2 == 0 {
		return base
	}
	second := base.AddDate(0, 0, 15)
	if second.Month() != base.Month() {
		return Date{Time: lastOfMonth(base.Time)}
	}
	return Date{Time: second}
}

func addMonthsClamped(anchor Date, months int) Date {
	first := time.Date(anchor.Year(), anchor.Month()+time.Month(months), 1, 0, 0, 0, 0, time.UTC)
	day := anchor.Day()
	if last := lastOfMonth(first).Day(); day > last {
		day = last
	}
	return NewDate(first.Year(), int(first.Month()), day)
}

func lastOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, time.UTC)
}

var cadences = map[string]Cadence{
	"once a week":    EveryWeeks{Weeks: 1},
	"weekly":         EveryWeeks{Weeks: 1},
	"every 2 weeks":  EveryWeeks{Weeks: 2},
	"twice a month":  TwiceMonthly{},
	"monthly":        EveryMonths{Months: 1},
	"every month":    EveryMonths{Months: 1},
	"every 2 months": EveryMonths{Months: 2},
	"every 3 months": EveryMonths{Months: 3},
	"every 4 months": EveryMonths{Months: 4},
	"twice a year":   EveryMonths{Months: 6},
	"yearly":         EveryMonths{Months: 12},
	"once a year":    EveryMonths{Months: 12},
}

// CadenceFor returns the strategy for a cadence name.
func CadenceFor(name string) (Cadence, error) {
	c, ok := cadences[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("unknown cadence: %s", name)
	}
	return c, nil
}

// NextOccurrence returns the first occurrence on or after from. The second
// result is false when none is found within the search bound.
func NextOccurrence(c Cadence, anchor, from Date) (Date, bool) {
	if !anchor.Before(from.Time) {
		return anchor, true
	}
	for n := 1; n <= maxOccurrences; n++ {
		if d := c.Nth(anchor, n); !d.Before(from.Time) {
			return d, true
		}
	}
	return Date{}, false
}
