package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.appMetrics.uptime).Round(time.Second).String(),
	})
}

// handleReady checks templates and every registered dependency.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]string)

	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			checks[name] = fmt.Sprintf("failed: %v", err)
			status = "not_ready"
			httpStatus = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}

// handleMetrics provides application and security metrics in plain text format
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	security := s.detector.GetMetrics()
	limits := s.limiter.GetMetrics()
	traces := s.tracer.GetMetrics()

	loading := 0
	if s.svc.Loading() {
		loading = 1
	}

	metrics := map[string]int64{
		"kobitar_uptime_seconds":               int64(time.Since(s.appMetrics.uptime).Seconds()),
		"kobitar_http_requests_total":          traces.TotalRequests,
		"kobitar_http_server_errors_total":     traces.ServerErrors,
		"kobitar_http_last_response_micros":    traces.LastResponseMicros,
		"kobitar_rate_limit_hits_total":        limits.TotalHits,
		"kobitar_rate_limit_clients":           limits.ClientCount,
		"kobitar_suspicious_requests_total":    security.SuspiciousRequests,
		"kobitar_invalid_ip_total":             security.InvalidIPAttempts,
		"kobitar_expenses_added_total":         s.appMetrics.expensesAdded.Load(),
		"kobitar_expense_failures_total":       s.appMetrics.expenseFailures.Load(),
		"kobitar_invalid_forms_total":          s.appMetrics.invalidForms.Load(),
		"kobitar_bulk_deletes_total":           s.appMetrics.bulkDeletes.Load(),
		"kobitar_collection_updates_total":     s.appMetrics.collectionUpdates.Load(),
		"kobitar_template_render_errors_total": s.appMetrics.renderFailures.Load(),
		"kobitar_fetch_in_flight":              int64(loading),
	}

	names := make([]string, 0, len(metrics))
	for name := range metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "%s %d\n", name, metrics[name])
	}
}
