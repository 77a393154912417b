package core

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// Summary holds the household aggregates derived from the two fetched lists.
// It is never stored; callers recompute it after every fetch.
type Summary struct {
	TotalCollected decimal.Decimal
	TotalSpent     decimal.Decimal
	Balance        decimal.Decimal
	FirstDate      time.Time
	HasFirstDate   bool
	DaysTracked    int
	MealRate       decimal.Decimal
}

// TotalCollected sums the collected amounts.
func TotalCollected(rows []CollectionRow) decimal.Decimal {
	total := decimal.Zero
	for _, r := range rows {
		total = total.Add(r.Amount)
	}
	return total
}

// TotalSpent sums the expense amounts.
func TotalSpent(expenses []ExpenseRecord) decimal.Decimal {
	total := decimal.Zero
	for _, e := range expenses {
		total = total.Add(e.Amount)
	}
	return total
}

func Balance(collected, spent decimal.Decimal) decimal.Decimal {
	return collected.Sub(spent)
}

// EarliestDate returns the earliest parseable expense date. The second
// result is false when no expense carries a usable date.
func EarliestDate(expenses []ExpenseRecord) (time.Time, bool) {
	var (
		first time.Time
		found bool
	)
	for _, e := range expenses {
		d, ok := ParseDate(e.Date)
		if !ok {
			continue
		}
		if !found || d.Before(first) {
			first = d
			found = true
		}
	}
	return first, found
}

// DaysTracked counts the days from the earliest expense to now, inclusive:
// ceil((now - first) / 24h) + 1. It is 0 when there is no earliest date.
func DaysTracked(first time.Time, ok bool, now time.Time) int {
	if !ok {
		return 0
	}
	days := now.Sub(first).Hours() / 24
	return int(math.Ceil(days)) + 1
}

// MealRate spreads the total spend over every meal slot of the tracked days.
// It is zero when no day is tracked.
func MealRate(spent decimal.Decimal, daysTracked int, plan MealPlan) decimal.Decimal {
	slots := plan.Slots() * int64(daysTracked)
	if daysTracked <= 0 || slots <= 0 {
		return decimal.Zero
	}
	return spent.Div(decimal.NewFromInt(slots))
}

// Summarize computes every aggregate in one pass over the lists.
func Summarize(collections []CollectionRow, expenses []ExpenseRecord, now time.Time, plan MealPlan) Summary {
	collected := TotalCollected(collections)
	spent := TotalSpent(expenses)
	first, ok := EarliestDate(expenses)
	days := DaysTracked(first, ok, now)

	return Summary{
		TotalCollected: collected,
		TotalSpent:     spent,
		Balance:        Balance(collected, spent),
		FirstDate:      first,
		HasFirstDate:   ok,
		DaysTracked:    days,
		MealRate:       MealRate(spent, days, plan),
	}
}
