// Package form holds the transient state of the new-expense form.
//
// A State moves through Empty -> Editing -> Validating and then either to
// Submitting (valid) or back to Editing (invalid). A finished submission
// resets it to Empty; a failed one returns it to Editing with the values
// intact.
package form

import (
	"strings"
	"time"

	"kobitar/internal/core"
)

// Phase is a step of the entry form lifecycle.
type Phase int

const (
	Empty Phase = iota
	Editing
	Validating
	Submitting
)

func (p Phase) String() string {
	switch p {
	case Empty:
		return "empty"
	case Editing:
		return "editing"
	case Validating:
		return "validating"
	case Submitting:
		return "submitting"
	default:
		return "unknown"
	}
}

// State is one expense record under construction plus its per-field errors
// and touched flags.
type State struct {
	values  map[string]string
	errors  map[string]string
	touched map[string]bool
	phase   Phase
	now     func() time.Time
}

// New returns an empty form. now supplies the reference time for date
// validation; nil means time.Now.
func New(now func() time.Time) *State {
	if now == nil {
		now = time.Now
	}
	return &State{
		values:  make(map[string]string),
		errors:  make(map[string]string),
		touched: make(map[string]bool),
		now:     now,
	}
}

// FromValues rebuilds a form from submitted values. Fields listed in touched
// are marked touched and validated.
func FromValues(values map[string]string, touched []string, now func() time.Time) *State {
	s := New(now)
	for _, f := range core.ExpenseFields {
		if v, ok := values[f]; ok {
			s.Change(f, v)
		}
	}
	for _, f := range touched {
		s.Blur(f)
	}
	return s
}

func canonical(field string) string {
	f := strings.ToLower(strings.TrimSpace(field))
	if f == core.FieldGoods {
		return core.FieldItem
	}
	return f
}

func known(field string) bool {
	for _, f := range core.ExpenseFields {
		if f == field {
			return true
		}
	}
	return false
}

// Change records a new value. A touched field is re-validated immediately.
func (s *State) Change(field, value string) {
	field = canonical(field)
	if !known(field) {
		return
	}
	s.values[field] = value
	if s.phase != Submitting {
		s.phase = Editing
	}
	if s.touched[field] {
		s.errors[field] = core.ValidateField(field, value, s.now())
	}
}

// Blur marks a field touched and validates it.
func (s *State) Blur(field string) {
	field = canonical(field)
	if !known(field) {
		return
	}
	s.touched[field] = true
	s.errors[field] = core.ValidateField(field, s.values[field], s.now())
}

// BeginSubmit force-validates every field. It reports whether the form may
// be sent; an invalid form goes back to Editing with all fields touched.
func (s *State) BeginSubmit() bool {
	s.phase = Validating
	for _, f := range core.ExpenseFields {
		s.touched[f] = true
	}
	res := core.ValidateForm(s.values, s.now())
	s.errors = res.Errors
	if !res.Valid {
		s.phase = Editing
		return false
	}
	s.phase = Submitting
	return true
}

// Complete ends a submission. Success clears the form; failure keeps the
// values so the user can retry.
func (s *State) Complete(err error) {
	if err != nil {
		s.phase = Editing
		return
	}
	s.Reset()
}

// Reset drops every value, error and touched flag.
func (s *State) Reset() {
	s.values = make(map[string]string)
	s.errors = make(map[string]string)
	s.touched = make(map[string]bool)
	s.phase = Empty
}

// Record builds the expense to send. Only meaningful in the Submitting phase.
func (s *State) Record() core.ExpenseRecord {
	amount, _ := core.ParseAmount(s.values[core.FieldAmount])
	return core.ExpenseRecord{
		Name:   strings.TrimSpace(s.values[core.FieldName]),
		Date:   core.CalendarDate(s.values[core.FieldDate]),
		Item:   strings.TrimSpace(s.values[core.FieldItem]),
		Amount: amount,
	}
}

func (s *State) Phase() Phase { return s.phase }

func (s *State) Value(field string) string { return s.values[canonical(field)] }

// Error returns the message to show for a field; untouched fields show none.
func (s *State) Error(field string) string {
	field = canonical(field)
	if !s.touched[field] {
		return ""
	}
	return s.errors[field]
}

func (s *State) Touched(field string) bool { return s.touched[canonical(field)] }

// HasErrors reports whether any visible error is set.
func (s *State) HasErrors() bool {
	for f, msg := range s.errors {
		if msg != "" && s.touched[f] {
			return true
		}
	}
	return false
}

// Ready mirrors the submit button state: every field filled and no errors.
func (s *State) Ready() bool {
	for _, f := range core.ExpenseFields {
		if strings.TrimSpace(s.values[f]) == "" {
			return false
		}
	}
	for _, msg := range s.errors {
		if msg != "" {
			return false
		}
	}
	return true
}
