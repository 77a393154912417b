package http

import (
	"net/http"
)

const siteTitle = "Kobitar House"

// handleIndex serves the loading screen; the dashboard arrives through
// /ui/dashboard once the page is up.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, NewHTMXResponse(), "index.html", page(r.Context(), siteTitle, "home"))
}

// handleDashboard fetches both lists concurrently and renders the summary
// cards plus both tables. A failed list renders empty.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	snap := s.svc.Load(r.Context())
	f := s.svc.Formatter()

	view := dashboardView{
		Summary:     newSummaryView(f, snap.Summary, s.svc.MealPlan()),
		Collections: newCollectionsView(f, snap.Collections).Rows,
		Expenses:    newExpenseListView(f, snap.Expenses),
		FetchedAt:   snap.FetchedAt.Format("15:04:05"),
	}
	s.respond(w, r, NewHTMXResponse(), "dashboard", view)
}

func (s *Server) handleAdmin(w http.ResponseWriter, r *http.Request) {
	rows, _ := s.svc.Collections(r.Context())
	view := adminView{
		Collections: newCollectionsView(s.svc.Formatter(), rows),
	}
	view.pageView = page(r.Context(), siteTitle+" · Collections", "admin")
	s.respond(w, r, NewHTMXResponse(), "admin.html", view)
}

// handleUpdateCollection sets one member's collected amount and returns the
// re-fetched collections table.
func (s *Server) handleUpdateCollection(w http.ResponseWriter, r *http.Request) {
	if !s.parseForm(w, r) {
		return
	}

	name := sanitizeInput(r.PostFormValue("name"))
	amount := sanitizeInput(r.PostFormValue("amount"))
	_, rows, err := s.svc.UpdateCollectionAmount(r.Context(), name, amount)

	b := NewHTMXResponse()
	switch {
	case err != nil && rows == nil:
		// rejected before reaching the data source
		rows, _ = s.svc.Collections(r.Context())
		b.Status(http.StatusUnprocessableEntity)
	case err != nil:
		b.Status(http.StatusBadGateway)
	default:
		s.appMetrics.collectionUpdates.Add(1)
		b.TriggerCollectionUpdated(name)
	}
	s.respond(w, r, b, "collections-table", newCollectionsView(s.svc.Formatter(), rows))
}
