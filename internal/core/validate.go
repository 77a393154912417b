package core

import (
	"strings"
	"time"
)

// Expense form field names.
const (
	FieldName   = "name"
	FieldDate   = "date"
	FieldItem   = "item"
	FieldAmount = "amount"

	// FieldGoods is the spreadsheet column name for FieldItem.
	FieldGoods = "goods"
)

// ExpenseFields lists the form fields in display order.
var ExpenseFields = []string{FieldName, FieldDate, FieldItem, FieldAmount}

// FormResult is the outcome of validating a whole expense form.
type FormResult struct {
	Errors map[string]string
	Valid  bool
}

// ValidateField checks one raw form value and returns a user-facing message,
// or "" when the value is acceptable. now is the reference for future dates.
func ValidateField(field, value string, now time.Time) string {
	switch strings.ToLower(strings.TrimSpace(field)) {
	case FieldName:
		v := strings.TrimSpace(value)
		if v == "" {
			return "Name is required"
		}
		if len([]rune(v)) < 2 {
			return "Name must be at least 2 characters"
		}
		return ""
	case FieldDate:
		v := strings.TrimSpace(value)
		if v == "" {
			return "Date is required"
		}
		d, err := time.Parse(DateLayout, CalendarDate(v))
		if err != nil {
			return "Date must be a valid date (YYYY-MM-DD)"
		}
		// "Today" is the calendar day of now in now's location, i.e. the
		// server's day. A user in a zone ahead of the server cannot enter
		// their own today until the server's day catches up.
		y, m, day := now.Date()
		today := time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
		if d.After(today) {
			return "Date cannot be in the future"
		}
		return ""
	case FieldItem, FieldGoods:
		v := strings.TrimSpace(value)
		if v == "" {
			return "Item/Service is required"
		}
		if len([]rune(v)) < 2 {
			return "Item/Service must be at least 2 characters"
		}
		return ""
	case FieldAmount:
		v := strings.TrimSpace(value)
		if v == "" {
			return "Amount is required"
		}
		amt, err := ParseAmount(v)
		if err != nil {
			return "Amount must be a number"
		}
		if !amt.IsPositive() {
			return "Amount must be greater than 0"
		}
		if amt.GreaterThan(MaxExpenseAmount) {
			return "Amount is too large"
		}
		return ""
	default:
		return ""
	}
}

// ValidateForm applies ValidateField to every expense field. Missing keys are
// validated as empty values.
func ValidateForm(values map[string]string, now time.Time) FormResult {
	res := FormResult{Errors: make(map[string]string, len(ExpenseFields)), Valid: true}
	for _, f := range ExpenseFields {
		v, ok := values[f]
		if !ok && f == FieldItem {
			v = values[FieldGoods]
		}
		msg := ValidateField(f, v, now)
		res.Errors[f] = msg
		if msg != "" {
			res.Valid = false
		}
	}
	return res
}
