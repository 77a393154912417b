package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"kobitar/internal/core"
	"kobitar/internal/dashboard"
	"kobitar/internal/log"
	"kobitar/internal/middleware/ratelimit"
	"kobitar/internal/notify"
	"kobitar/internal/sheets"
	"kobitar/internal/sheets/memory"
)

func fixedNow() time.Time { return time.Date(2024, 1, 5, 18, 0, 0, 0, time.UTC) }

func quietLogger() *log.Logger { return log.New(log.Config{Output: io.Discard}) }

func seededStore() *memory.Store {
	return memory.New(
		[]core.CollectionRow{
			{Name: "A", Amount: decimal.NewFromInt(100)},
			{Name: "B", Amount: decimal.NewFromInt(50)},
		},
		[]core.ExpenseRecord{
			{Name: "A", Date: "2024-01-01", Item: "Rice", Amount: decimal.NewFromInt(30)},
			{Name: "B", Date: "2024-01-03", Item: "Fish", Amount: decimal.NewFromInt(20)},
		},
	)
}

func newTestServer(t *testing.T, store sheets.Store, opts ...Option) *Server {
	t.Helper()
	svc := dashboard.NewService(store).
		WithNotifier(notify.Contextual).
		WithClock(fixedNow).
		WithLogger(quietLogger())
	srv := NewServer(":0", svc, append([]Option{WithLogger(quietLogger())}, opts...)...)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv
}

func get(srv *Server, path string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	return rr
}

func post(srv *Server, path string, form url.Values) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

// failingStore fails every call of the kinds switched on.
type failingStore struct {
	*memory.Store
	reads, appends, clears, updates bool
}

var errRemote = errors.New("remote unavailable")

func (f *failingStore) ListCollections(ctx context.Context) ([]core.CollectionRow, error) {
	if f.reads {
		return nil, errRemote
	}
	return f.Store.ListCollections(ctx)
}

func (f *failingStore) ListExpenses(ctx context.Context) ([]core.ExpenseRecord, error) {
	if f.reads {
		return nil, errRemote
	}
	return f.Store.ListExpenses(ctx)
}

func (f *failingStore) AppendExpense(ctx context.Context, e core.ExpenseRecord) error {
	if f.appends {
		return errRemote
	}
	return f.Store.AppendExpense(ctx, e)
}

func (f *failingStore) ClearExpenses(ctx context.Context) error {
	if f.clears {
		return errRemote
	}
	return f.Store.ClearExpenses(ctx)
}

func (f *failingStore) UpdateCollectionAmount(ctx context.Context, name string, amount decimal.Decimal) (string, error) {
	if f.updates {
		return "", errRemote
	}
	return f.Store.UpdateCollectionAmount(ctx, name, amount)
}

func TestIndexAndHealth(t *testing.T) {
	srv := newTestServer(t, seededStore())

	rr := get(srv, "/")
	if rr.Code != http.StatusOK {
		t.Fatalf("index status=%d", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "Kobitar House") || !strings.Contains(body, `hx-get="/ui/dashboard"`) {
		t.Fatalf("index body missing loading screen: %s", body)
	}
	if rr.Header().Get("X-Frame-Options") != "DENY" {
		t.Fatalf("security headers missing")
	}

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := get(srv, path)
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
	}

	rr = get(srv, "/metrics")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "kobitar_http_requests_total") {
		t.Fatalf("metrics: %d %s", rr.Code, rr.Body.String())
	}
}

func TestUnknownPathIs404(t *testing.T) {
	srv := newTestServer(t, seededStore())
	if rr := get(srv, "/nope"); rr.Code != http.StatusNotFound {
		t.Fatalf("status=%d", rr.Code)
	}
}

func TestReadyFailsWhenCheckFails(t *testing.T) {
	srv := newTestServer(t, seededStore(), WithReadinessCheck("backend", func(context.Context) error {
		return errRemote
	}))
	rr := get(srv, "/readyz")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "remote unavailable") {
		t.Fatalf("body=%s", rr.Body.String())
	}
}

func TestDashboardShowsAggregates(t *testing.T) {
	srv := newTestServer(t, seededStore())

	rr := get(srv, "/ui/dashboard")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	body := rr.Body.String()
	for _, want := range []string{"৳150", "৳50", "৳100", "5 days tracked", "৳0.56", "Rice", "Fish"} {
		if !strings.Contains(body, want) {
			t.Errorf("dashboard missing %q", want)
		}
	}
	if rr.Header().Get("HX-Trigger") != "" {
		t.Errorf("unexpected notification: %s", rr.Header().Get("HX-Trigger"))
	}
}

func TestDashboardFetchFailureStillRenders(t *testing.T) {
	srv := newTestServer(t, &failingStore{Store: seededStore(), reads: true})

	rr := get(srv, "/ui/dashboard")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	trigger := rr.Header().Get("HX-Trigger")
	for _, want := range []string{dashboard.MsgLoadCollections, dashboard.MsgLoadExpenses, `"type":"error"`} {
		if !strings.Contains(trigger, want) {
			t.Errorf("trigger missing %q: %s", want, trigger)
		}
	}
	if !strings.Contains(rr.Body.String(), "No expenses recorded.") {
		t.Errorf("expected empty expense table")
	}
}

func TestCreateExpenseRejectsInvalidForm(t *testing.T) {
	store := seededStore()
	srv := newTestServer(t, store)

	rr := post(srv, "/expenses", url.Values{
		"name":   {""},
		"date":   {"2024-01-04"},
		"item":   {"Oil"},
		"amount": {"12"},
	})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status=%d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Name is required") {
		t.Fatalf("missing field error: %s", rr.Body.String())
	}
	if !strings.Contains(rr.Header().Get("HX-Trigger"), dashboard.MsgFixErrors) {
		t.Fatalf("missing notification: %s", rr.Header().Get("HX-Trigger"))
	}
	list, _ := store.ListExpenses(context.Background())
	if len(list) != 2 {
		t.Fatalf("invalid form reached the store: %d expenses", len(list))
	}
}

func TestCreateExpenseSuccess(t *testing.T) {
	store := seededStore()
	srv := newTestServer(t, store)

	rr := post(srv, "/expenses", url.Values{
		"name":   {"Rafi"},
		"date":   {"2024-01-04"},
		"goods":  {"Lentils"},
		"amount": {"25.50"},
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	trigger := rr.Header().Get("HX-Trigger")
	for _, want := range []string{EventExpenseCreated, EventFormReset, dashboard.MsgExpenseAdded} {
		if !strings.Contains(trigger, want) {
			t.Errorf("trigger missing %q: %s", want, trigger)
		}
	}
	body := rr.Body.String()
	if !strings.Contains(body, `hx-swap-oob="true"`) || !strings.Contains(body, "Lentils") {
		t.Errorf("expected refreshed list in body: %s", body)
	}
	if strings.Contains(body, `value="Rafi"`) {
		t.Errorf("form was not reset")
	}

	list, _ := store.ListExpenses(context.Background())
	if len(list) != 3 || list[2].Item != "Lentils" || !list[2].Amount.Equal(decimal.RequireFromString("25.5")) {
		t.Fatalf("unexpected store contents: %+v", list)
	}
}

func TestCreateExpenseFailureKeepsValues(t *testing.T) {
	srv := newTestServer(t, &failingStore{Store: seededStore(), appends: true})

	rr := post(srv, "/expenses", url.Values{
		"name":   {"Rafi"},
		"date":   {"2024-01-04"},
		"item":   {"Lentils"},
		"amount": {"25.50"},
	})
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("status=%d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `value="Lentils"`) {
		t.Fatalf("values lost: %s", rr.Body.String())
	}
	if !strings.Contains(rr.Header().Get("HX-Trigger"), dashboard.MsgAddFailed) {
		t.Fatalf("missing failure notification")
	}
}

func TestCreateExpenseWrongMethod(t *testing.T) {
	srv := newTestServer(t, seededStore())
	if rr := get(srv, "/expenses"); rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}
}

func TestValidateFieldHonoursTouched(t *testing.T) {
	srv := newTestServer(t, seededStore())

	rr := post(srv, "/ui/expense-form/field", url.Values{
		"field":   {"amount"},
		"amount":  {"0"},
		"touched": {"amount"},
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "Amount must be greater than 0") {
		t.Fatalf("missing error: %s", body)
	}
	if !strings.Contains(body, `id="submit-expense"`) || !strings.Contains(body, "disabled") {
		t.Fatalf("submit button should be disabled: %s", body)
	}

	rr = post(srv, "/ui/expense-form/field", url.Values{"field": {"name"}, "name": {"R"}})
	if strings.Contains(rr.Body.String(), "at least 2 characters") {
		t.Fatalf("untouched field showed an error: %s", rr.Body.String())
	}

	rr = post(srv, "/ui/expense-form/field", url.Values{"field": {"nickname"}})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("unknown field status=%d", rr.Code)
	}
}

func TestValidateFieldEnablesSubmitWhenReady(t *testing.T) {
	srv := newTestServer(t, seededStore())

	rr := post(srv, "/ui/expense-form/field", url.Values{
		"field":   {"amount"},
		"name":    {"Rafi"},
		"date":    {"2024-01-04"},
		"item":    {"Rice"},
		"amount":  {"10"},
		"touched": {"name,date,item,amount"},
	})
	if strings.Contains(rr.Body.String(), "disabled") {
		t.Fatalf("submit should be enabled: %s", rr.Body.String())
	}
}

func TestDeleteAllNeedsConfirmation(t *testing.T) {
	store := seededStore()
	srv := newTestServer(t, store)

	rr := post(srv, "/expenses/delete-all", url.Values{})
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "delete ALL 2 expenses") || !strings.Contains(body, "৳50") {
		t.Fatalf("prompt missing count or total: %s", body)
	}
	list, _ := store.ListExpenses(context.Background())
	if len(list) != 2 {
		t.Fatalf("expenses deleted without confirmation")
	}

	rr = post(srv, "/expenses/delete-all", url.Values{"confirm": {"yes"}, "count": {"2"}, "total": {"50"}})
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	trigger := rr.Header().Get("HX-Trigger")
	if !strings.Contains(trigger, EventExpensesCleared) || !strings.Contains(trigger, dashboard.MsgDeleted) {
		t.Fatalf("trigger=%s", trigger)
	}
	list, _ = store.ListExpenses(context.Background())
	if len(list) != 0 {
		t.Fatalf("expenses left: %d", len(list))
	}
}

func TestDeleteAllStaleConfirmationShowsPromptAgain(t *testing.T) {
	store := seededStore()
	srv := newTestServer(t, store)

	if rr := post(srv, "/expenses/delete-all", url.Values{}); !strings.Contains(rr.Body.String(), "delete ALL 2 expenses") {
		t.Fatalf("unexpected prompt: %s", rr.Body.String())
	}
	if err := store.AppendExpense(context.Background(), core.ExpenseRecord{Name: "C", Date: "2024-01-04", Item: "Fish", Amount: decimal.NewFromInt(500)}); err != nil {
		t.Fatal(err)
	}

	rr := post(srv, "/expenses/delete-all", url.Values{"confirm": {"yes"}, "count": {"2"}, "total": {"50"}})
	if rr.Code != http.StatusConflict {
		t.Fatalf("status=%d", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "delete ALL 3 expenses") || !strings.Contains(body, `name="total" value="550"`) {
		t.Fatalf("expected refreshed prompt: %s", body)
	}
	if !strings.Contains(rr.Header().Get("HX-Trigger"), dashboard.MsgDeleteStale) {
		t.Fatalf("trigger=%s", rr.Header().Get("HX-Trigger"))
	}
	if list, _ := store.ListExpenses(context.Background()); len(list) != 3 {
		t.Fatalf("stale confirmation deleted expenses: %d left", len(list))
	}
}

func TestDeleteAllIgnoresClientTotals(t *testing.T) {
	store := seededStore()
	srv := newTestServer(t, store)

	rr := post(srv, "/expenses/delete-all", url.Values{"confirm": {"yes"}, "count": {"999"}, "total": {"-123456"}})
	if rr.Code != http.StatusConflict {
		t.Fatalf("status=%d", rr.Code)
	}
	if list, _ := store.ListExpenses(context.Background()); len(list) != 2 {
		t.Fatalf("forged confirmation deleted expenses: %d left", len(list))
	}
}

func TestDeleteAllFetchFailureDeletesNothing(t *testing.T) {
	store := seededStore()
	srv := newTestServer(t, &failingStore{Store: store, reads: true})

	rr := post(srv, "/expenses/delete-all", url.Values{"confirm": {"yes"}, "count": {"2"}, "total": {"50"}})
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("status=%d", rr.Code)
	}
	if !strings.Contains(rr.Header().Get("HX-Trigger"), dashboard.MsgLoadExpenses) {
		t.Fatalf("trigger=%s", rr.Header().Get("HX-Trigger"))
	}
	if list, _ := store.ListExpenses(context.Background()); len(list) != 2 {
		t.Fatalf("expenses deleted: %d left", len(list))
	}
}

func TestDeleteAllFailureIsOptimistic(t *testing.T) {
	srv := newTestServer(t, &failingStore{Store: seededStore(), clears: true})

	rr := post(srv, "/expenses/delete-all", url.Values{"confirm": {"yes"}, "count": {"2"}, "total": {"50"}})
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	if !strings.Contains(rr.Header().Get("HX-Trigger"), dashboard.MsgDeleteSent) {
		t.Fatalf("trigger=%s", rr.Header().Get("HX-Trigger"))
	}
	if !strings.Contains(rr.Body.String(), "No expenses recorded.") {
		t.Fatalf("list should render empty: %s", rr.Body.String())
	}
}

func TestUpdateCollection(t *testing.T) {
	store := seededStore()
	srv := newTestServer(t, store)

	rr := post(srv, "/collections", url.Values{"name": {"A"}, "amount": {"250"}})
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	trigger := rr.Header().Get("HX-Trigger")
	if !strings.Contains(trigger, EventCollectionUpdated) || !strings.Contains(trigger, "Updated A to 250") {
		t.Fatalf("trigger=%s", trigger)
	}
	if !strings.Contains(rr.Body.String(), "৳250") {
		t.Fatalf("table not refreshed: %s", rr.Body.String())
	}

	rr = post(srv, "/collections", url.Values{"name": {"A"}, "amount": {"abc"}})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status=%d", rr.Code)
	}
	if !strings.Contains(rr.Header().Get("HX-Trigger"), dashboard.MsgInvalidCollection) {
		t.Fatalf("trigger=%s", rr.Header().Get("HX-Trigger"))
	}
}

func TestUpdateCollectionNonASCIINameInTrigger(t *testing.T) {
	srv := newTestServer(t, seededStore())

	rr := post(srv, "/collections", url.Values{"name": {"রাফি"}, "amount": {"100"}})
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	trigger := rr.Header().Get("HX-Trigger")
	for i := 0; i < len(trigger); i++ {
		if trigger[i] >= 0x80 {
			t.Fatalf("HX-Trigger has non-ASCII byte at %d: %s", i, trigger)
		}
	}
	var decoded map[string]map[string]any
	if err := json.Unmarshal([]byte(trigger), &decoded); err != nil {
		t.Fatalf("decode trigger: %v", err)
	}
	if decoded[EventCollectionUpdated]["name"] != "রাফি" {
		t.Fatalf("name = %v", decoded[EventCollectionUpdated]["name"])
	}
}

func TestUpdateCollectionFailureRefetches(t *testing.T) {
	srv := newTestServer(t, &failingStore{Store: seededStore(), updates: true})

	rr := post(srv, "/collections", url.Values{"name": {"A"}, "amount": {"250"}})
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("status=%d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "৳100") {
		t.Fatalf("expected unchanged table: %s", rr.Body.String())
	}
	if !strings.Contains(rr.Header().Get("HX-Trigger"), dashboard.MsgUpdateFailed) {
		t.Fatalf("trigger=%s", rr.Header().Get("HX-Trigger"))
	}
}

func TestPages(t *testing.T) {
	srv := newTestServer(t, seededStore())

	tests := []struct {
		path string
		want string
	}{
		{"/personal", `id="expense-form"`},
		{"/ui/expenses", "Rice"},
		{"/admin", `id="collections-table"`},
		{"/static/app.css", "--accent"},
	}
	for _, tt := range tests {
		rr := get(srv, tt.path)
		if rr.Code != http.StatusOK {
			t.Errorf("%s status=%d", tt.path, rr.Code)
			continue
		}
		if !strings.Contains(rr.Body.String(), tt.want) {
			t.Errorf("%s missing %q", tt.path, tt.want)
		}
	}
}

func TestPostsAreRateLimited(t *testing.T) {
	srv := newTestServer(t, seededStore(), WithRateLimit(ratelimit.Config{Limit: 1, Window: time.Minute}))

	form := url.Values{"field": {"name"}, "name": {"Rafi"}}
	if rr := post(srv, "/ui/expense-form/field", form); rr.Code != http.StatusOK {
		t.Fatalf("first status=%d", rr.Code)
	}
	rr := post(srv, "/ui/expense-form/field", form)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("second status=%d", rr.Code)
	}
	if get(srv, "/ui/expenses").Code != http.StatusOK {
		t.Fatalf("reads must not be limited")
	}
}
