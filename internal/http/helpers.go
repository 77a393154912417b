package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"kobitar/internal/core"
	"kobitar/internal/form"
)

var errTemplatesNotLoaded = errors.New("templates not loaded")

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// expenseValues reads the expense form fields. "goods" is accepted as an
// alias of "item".
func expenseValues(r *http.Request) map[string]string {
	values := make(map[string]string, len(core.ExpenseFields))
	for _, f := range core.ExpenseFields {
		if _, ok := r.PostForm[f]; ok {
			values[f] = sanitizeInput(r.PostFormValue(f))
		}
	}
	if _, ok := values[core.FieldItem]; !ok {
		if _, ok := r.PostForm[core.FieldGoods]; ok {
			values[core.FieldItem] = sanitizeInput(r.PostFormValue(core.FieldGoods))
		}
	}
	return values
}

// touchedFields returns the fields the browser reports as touched. Both
// repeated "touched" values and a comma separated list are accepted.
func touchedFields(r *http.Request) []string {
	var out []string
	for _, v := range r.PostForm["touched"] {
		for _, f := range strings.Split(v, ",") {
			if f = strings.TrimSpace(f); f != "" {
				out = append(out, f)
			}
		}
	}
	return out
}

func confirmed(r *http.Request) bool {
	return strings.EqualFold(strings.TrimSpace(r.PostFormValue("confirm")), "yes")
}

func formCount(r *http.Request, key string) int {
	n, err := strconv.Atoi(strings.TrimSpace(r.PostFormValue(key)))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// formFromRequest rebuilds the entry form from a POST body.
func (s *Server) formFromRequest(r *http.Request) *form.State {
	return form.FromValues(expenseValues(r), touchedFields(r), s.svc.Now)
}
