package http

import (
	"errors"
	"net/http"
	"strings"

	"kobitar/internal/core"
	"kobitar/internal/dashboard"
	"kobitar/internal/form"
	"kobitar/internal/log"
	"kobitar/internal/notify"
)

func (s *Server) handlePersonal(w http.ResponseWriter, r *http.Request) {
	list, _ := s.svc.Expenses(r.Context())
	view := personalView{
		Form:     s.newFormView(form.New(s.svc.Now)),
		Expenses: newExpenseListView(s.svc.Formatter(), list),
	}
	view.pageView = page(r.Context(), siteTitle+" · Expenses", "personal")
	s.respond(w, r, NewHTMXResponse(), "personal.html", view)
}

func (s *Server) handleExpenseList(w http.ResponseWriter, r *http.Request) {
	list, _ := s.svc.Expenses(r.Context())
	s.respond(w, r, NewHTMXResponse(), "expense-list", newExpenseListView(s.svc.Formatter(), list))
}

// handleCreateExpense validates and appends one expense. An invalid form
// comes back with its errors and never reaches the data source; a failed
// append keeps the entered values.
func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	if !s.parseForm(w, r) {
		return
	}

	st := s.formFromRequest(r)
	list, err := s.svc.SubmitExpense(r.Context(), st)
	switch {
	case errors.Is(err, dashboard.ErrInvalidForm):
		s.appMetrics.invalidForms.Add(1)
		s.respond(w, r, NewHTMXResponse().Status(http.StatusUnprocessableEntity), "expense-form", s.newFormView(st))
	case err != nil:
		s.appMetrics.expenseFailures.Add(1)
		s.respond(w, r, NewHTMXResponse().Status(http.StatusBadGateway), "expense-form", s.newFormView(st))
	default:
		s.appMetrics.expensesAdded.Add(1)
		expenses := newExpenseListView(s.svc.Formatter(), list)
		expenses.OOB = true
		s.respond(w, r,
			NewHTMXResponse().TriggerExpenseCreated().TriggerFormReset(),
			"expense-created",
			expenseCreatedView{Form: s.newFormView(st), Expenses: expenses})
	}
}

// handleValidateField re-validates one field with the browser's touched
// set and returns its error slot plus the submit button state.
func (s *Server) handleValidateField(w http.ResponseWriter, r *http.Request) {
	if !s.parseForm(w, r) {
		return
	}

	field := strings.ToLower(strings.TrimSpace(r.PostFormValue("field")))
	if field == core.FieldGoods {
		field = core.FieldItem
	}
	if _, ok := fieldLabels[field]; !ok {
		UnprocessableEntityError("Unknown field").Write(w)
		return
	}

	st := s.formFromRequest(r)
	s.respond(w, r, NewHTMXResponse(), "field-feedback", fieldFeedbackView{
		Field: newFieldView(st, field),
		Ready: st.Ready(),
	})
}

// handleDeleteAll asks for confirmation first: without confirm=yes it
// returns the prompt naming the record count and total. With it, every
// expense is removed, unless the list changed since the prompt was shown, in
// which case the prompt is shown again with the current numbers (409).
func (s *Server) handleDeleteAll(w http.ResponseWriter, r *http.Request) {
	if !s.parseForm(w, r) {
		return
	}

	if !confirmed(r) {
		c := s.svc.PrepareDeleteAll(r.Context())
		s.respond(w, r, NewHTMXResponse(), "delete-confirm", newConfirmView(c))
		return
	}

	c := dashboard.Confirmation{
		Count:     formCount(r, "count"),
		Total:     core.LooseAmount(r.PostFormValue("total")),
		Confirmed: true,
	}
	list, err := s.svc.DeleteAllExpenses(r.Context(), c)
	var stale *dashboard.StaleConfirmationError
	switch {
	case errors.As(err, &stale):
		s.respond(w, r, NewHTMXResponse().Status(http.StatusConflict), "delete-confirm", newConfirmView(stale.Current))
		return
	case err != nil:
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Delete all expenses failed", log.FieldError, err)
		b := BadGatewayError("Could not check the expense list, nothing was deleted")
		if rec, ok := notify.RecorderFromContext(r.Context()); ok {
			b.TriggerNotifications(rec.Messages())
		}
		b.Write(w)
		return
	}
	s.appMetrics.bulkDeletes.Add(1)

	expenses := newExpenseListView(s.svc.Formatter(), list)
	expenses.OOB = true
	s.respond(w, r, NewHTMXResponse().TriggerExpensesCleared(), "expenses-cleared", expenses)
}

func (s *Server) parseForm(w http.ResponseWriter, r *http.Request) bool {
	if err := r.ParseForm(); err != nil {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Parse form error",
			log.FieldError, err, log.FieldMethod, r.Method, log.FieldPath, r.URL.Path)
		BadRequestError("Invalid request format").Write(w)
		return false
	}
	return true
}
