package http

import (
	"context"

	"kobitar/internal/core"
	"kobitar/internal/dashboard"
	"kobitar/internal/form"
	"kobitar/internal/format"
	"kobitar/internal/notify"
)

type pageView struct {
	Title   string
	Active  string
	Notices []notify.Message
}

type summaryView struct {
	TotalCollected  string
	TotalSpent      string
	Balance         string
	BalanceNegative bool
	MealRate        string
	DaysTracked     int
	FirstDate       string
	Members         int
	MealsPerDay     int
}

type collectionView struct {
	Name   string
	Amount string
	// Input is the plain decimal used to prefill edit forms.
	Input string
}

type expenseView struct {
	Name   string
	Date   string
	Item   string
	Amount string
}

type expenseListView struct {
	Expenses []expenseView
	Total    string
	Count    int
	OOB      bool
}

type confirmView struct {
	Message string
	Count   int
	Total   string
}

type fieldView struct {
	Name    string
	Label   string
	Type    string
	Value   string
	Error   string
	Touched bool
	// Max bounds date inputs to today.
	Max string
}

type formView struct {
	Fields  []fieldView
	Ready   bool
	MaxDate string
}

type dashboardView struct {
	Summary     summaryView
	Collections []collectionView
	Expenses    expenseListView
	FetchedAt   string
}

type personalView struct {
	pageView
	Form     formView
	Expenses expenseListView
}

type adminView struct {
	pageView
	Collections collectionsView
}

type collectionsView struct {
	Rows  []collectionView
	Total string
}

type fieldFeedbackView struct {
	Field fieldView
	Ready bool
}

type expenseCreatedView struct {
	Form     formView
	Expenses expenseListView
}

var fieldLabels = map[string]string{
	core.FieldName:   "Name",
	core.FieldDate:   "Date",
	core.FieldItem:   "Item",
	core.FieldAmount: "Amount",
}

var fieldTypes = map[string]string{
	core.FieldName:   "text",
	core.FieldDate:   "date",
	core.FieldItem:   "text",
	core.FieldAmount: "number",
}

func newSummaryView(f *format.Formatter, sum core.Summary, plan core.MealPlan) summaryView {
	v := summaryView{
		TotalCollected:  f.Money(sum.TotalCollected),
		TotalSpent:      f.Money(sum.TotalSpent),
		Balance:         f.Money(sum.Balance),
		BalanceNegative: sum.Balance.IsNegative(),
		MealRate:        f.Money(sum.MealRate),
		DaysTracked:     sum.DaysTracked,
		Members:         plan.Members,
		MealsPerDay:     plan.MealsPerDay,
	}
	if sum.HasFirstDate {
		v.FirstDate = sum.FirstDate.Format("2006-01-02")
	}
	return v
}

func newCollectionsView(f *format.Formatter, rows []core.CollectionRow) collectionsView {
	out := collectionsView{
		Rows:  make([]collectionView, 0, len(rows)),
		Total: f.Money(core.TotalCollected(rows)),
	}
	for _, r := range rows {
		out.Rows = append(out.Rows, collectionView{
			Name:   r.Name,
			Amount: f.Money(r.Amount),
			Input:  r.Amount.StringFixedBank(2),
		})
	}
	return out
}

func newExpenseListView(f *format.Formatter, list []core.ExpenseRecord) expenseListView {
	out := expenseListView{
		Expenses: make([]expenseView, 0, len(list)),
		Total:    f.Money(core.TotalSpent(list)),
		Count:    len(list),
	}
	for _, e := range list {
		out.Expenses = append(out.Expenses, expenseView{
			Name:   e.Name,
			Date:   f.Date(e.Date),
			Item:   e.Item,
			Amount: f.Money(e.Amount),
		})
	}
	return out
}

func newConfirmView(c dashboard.Confirmation) confirmView {
	return confirmView{
		Message: c.Message,
		Count:   c.Count,
		Total:   c.Total.String(),
	}
}

func newFieldView(st *form.State, field string) fieldView {
	return fieldView{
		Name:    field,
		Label:   fieldLabels[field],
		Type:    fieldTypes[field],
		Value:   st.Value(field),
		Error:   st.Error(field),
		Touched: st.Touched(field),
	}
}

func (s *Server) newFormView(st *form.State) formView {
	v := formView{
		Fields:  make([]fieldView, 0, len(core.ExpenseFields)),
		Ready:   st.Ready(),
		MaxDate: s.svc.Now().Format("2006-01-02"),
	}
	for _, f := range core.ExpenseFields {
		fv := newFieldView(st, f)
		if f == core.FieldDate {
			fv.Max = v.MaxDate
		}
		v.Fields = append(v.Fields, fv)
	}
	return v
}

// page builds the page header data. Call it after the page's fetches so
// their notifications are rendered inline.
func page(ctx context.Context, title, active string) pageView {
	v := pageView{Title: title, Active: active}
	if rec, ok := notify.RecorderFromContext(ctx); ok {
		v.Notices = rec.Messages()
	}
	return v
}
