package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type (
	// CollectionRow is one member's contribution to the household pot.
	CollectionRow struct {
		Name   string
		Amount decimal.Decimal
	}

	// ExpenseRecord is a single dated spending entry. Date keeps the raw
	// string returned by the data source.
	ExpenseRecord struct {
		Name   string
		Date   string
		Item   string
		Amount decimal.Decimal
	}

	// MealPlan describes how spending is spread into meal slots.
	MealPlan struct {
		Members     int
		MealsPerDay int
	}
)

const (
	DefaultMembers     = 9
	DefaultMealsPerDay = 2
)

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrInvalidDate   = errors.New("invalid date")
	ErrEmptyName     = errors.New("empty name")
	ErrEmptyItem     = errors.New("empty item")
)

// DefaultMealPlan returns the household defaults (9 members, 2 meals a day).
func DefaultMealPlan() MealPlan {
	return MealPlan{Members: DefaultMembers, MealsPerDay: DefaultMealsPerDay}
}

// Slots returns the number of meal slots per tracked day.
func (p MealPlan) Slots() int64 {
	if p.Members <= 0 || p.MealsPerDay <= 0 {
		return 0
	}
	return int64(p.Members) * int64(p.MealsPerDay)
}

func (c CollectionRow) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	if c.Amount.IsNegative() {
		return ErrInvalidAmount
	}
	return nil
}

func (e ExpenseRecord) Validate() error {
	if strings.TrimSpace(e.Name) == "" {
		return ErrEmptyName
	}
	if _, ok := ParseDate(e.Date); !ok {
		return ErrInvalidDate
	}
	if strings.TrimSpace(e.Item) == "" {
		return ErrEmptyItem
	}
	if !e.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	return nil
}

// DateLayout is the calendar date format used when writing records.
const DateLayout = "2006-01-02"

var dateLayouts = []string{
	DateLayout,
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseDate parses the date formats the spreadsheet endpoints emit.
// Plain calendar dates are interpreted as UTC midnight.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// CalendarDate returns the YYYY-MM-DD part of a stored date string.
func CalendarDate(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, 'T'); i >= 0 {
		return s[:i]
	}
	return s
}
