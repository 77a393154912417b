package script

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"kobitar/internal/core"
)

type fakeEndpoint struct {
	mu    sync.Mutex
	posts []url.Values
	get   string
	reply string
	code  int
}

func (f *fakeEndpoint) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	code := f.code
	if code == 0 {
		code = http.StatusOK
	}
	switch r.Method {
	case http.MethodGet:
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_, _ = io.WriteString(w, f.get)
	case http.MethodPost:
		if ct := r.Header.Get("Content-Type"); ct != "application/x-www-form-urlencoded" {
			http.Error(w, "bad content type "+ct, http.StatusBadRequest)
			return
		}
		_ = r.ParseForm()
		f.posts = append(f.posts, r.PostForm)
		w.WriteHeader(code)
		_, _ = io.WriteString(w, f.reply)
	}
}

func newClient(t *testing.T, collections, expenses http.Handler) *Client {
	t.Helper()
	cs := httptest.NewServer(collections)
	t.Cleanup(cs.Close)
	es := httptest.NewServer(expenses)
	t.Cleanup(es.Close)
	c, err := New(Config{CollectionsURL: cs.URL, ExpensesURL: es.URL, Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestNewRejectsBadURL(t *testing.T) {
	if _, err := New(Config{CollectionsURL: "not a url", ExpensesURL: "http://x"}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestListCollectionsLooseAmounts(t *testing.T) {
	coll := &fakeEndpoint{get: `[{"Name":"A","Amount":100},{"Name":"B","Amount":"50"},{"Name":"C","Amount":"n/a"},{"Name":"D"}]`}
	c := newClient(t, coll, &fakeEndpoint{get: `[]`})

	rows, err := c.ListCollections(context.Background())
	if err != nil {
		t.Fatalf("ListCollections: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("got %d rows", len(rows))
	}
	want := []string{"100", "50", "0", "0"}
	for i, w := range want {
		if !rows[i].Amount.Equal(decimal.RequireFromString(w)) {
			t.Errorf("row %d amount = %s, want %s", i, rows[i].Amount, w)
		}
	}
	if core.TotalCollected(rows).String() != "150" {
		t.Fatalf("total = %s", core.TotalCollected(rows))
	}
}

func TestListExpensesKeepsOrder(t *testing.T) {
	exp := &fakeEndpoint{get: `[
		{"Name":"Rafi","Goods":"Rice","Date":"2024-01-03T00:00:00.000Z","Amount":20},
		{"Name":"Mim","Goods":"Oil","Date":"2024-01-01","Amount":"30.25"}
	]`}
	c := newClient(t, &fakeEndpoint{get: `[]`}, exp)

	got, err := c.ListExpenses(context.Background())
	if err != nil {
		t.Fatalf("ListExpenses: %v", err)
	}
	if len(got) != 2 || got[0].Item != "Rice" || got[1].Name != "Mim" {
		t.Fatalf("unexpected records: %+v", got)
	}
	if !got[1].Amount.Equal(decimal.RequireFromString("30.25")) {
		t.Fatalf("amount = %s", got[1].Amount)
	}
}

func TestListBadJSON(t *testing.T) {
	c := newClient(t, &fakeEndpoint{get: `<html>`}, &fakeEndpoint{get: `[]`})
	if _, err := c.ListCollections(context.Background()); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestStatusError(t *testing.T) {
	c := newClient(t, &fakeEndpoint{get: `oops`, code: http.StatusBadGateway}, &fakeEndpoint{})
	_, err := c.ListCollections(context.Background())
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if se.Body != "oops" || !IsStatus(err, http.StatusBadGateway) {
		t.Fatalf("unexpected status error: %+v", se)
	}
}

func TestAppendExpenseForm(t *testing.T) {
	exp := &fakeEndpoint{reply: "ok"}
	c := newClient(t, &fakeEndpoint{}, exp)

	err := c.AppendExpense(context.Background(), core.ExpenseRecord{
		Name: "Rafi", Date: "2024-06-10", Item: "Rice", Amount: decimal.RequireFromString("25.5"),
	})
	if err != nil {
		t.Fatalf("AppendExpense: %v", err)
	}
	if len(exp.posts) != 1 {
		t.Fatalf("posts = %d", len(exp.posts))
	}
	p := exp.posts[0]
	if p.Get("Name") != "Rafi" || p.Get("Date") != "2024-06-10" || p.Get("Goods") != "Rice" || p.Get("Amount") != "25.5" {
		t.Fatalf("unexpected form: %v", p)
	}
}

func TestClearExpensesForm(t *testing.T) {
	exp := &fakeEndpoint{}
	c := newClient(t, &fakeEndpoint{}, exp)
	if err := c.ClearExpenses(context.Background()); err != nil {
		t.Fatalf("ClearExpenses: %v", err)
	}
	if exp.posts[0].Get("action") != "deleteAll" {
		t.Fatalf("unexpected form: %v", exp.posts[0])
	}
}

func TestUpdateCollectionReturnsAck(t *testing.T) {
	coll := &fakeEndpoint{reply: "Updated A\n"}
	c := newClient(t, coll, &fakeEndpoint{})

	ack, err := c.UpdateCollectionAmount(context.Background(), "A", decimal.NewFromInt(120))
	if err != nil {
		t.Fatalf("UpdateCollectionAmount: %v", err)
	}
	if ack != "Updated A" {
		t.Fatalf("ack = %q", ack)
	}
	if coll.posts[0].Get("Name") != "A" || coll.posts[0].Get("Amount") != "120" {
		t.Fatalf("unexpected form: %v", coll.posts[0])
	}
}

func TestContextCancel(t *testing.T) {
	block := make(chan struct{})
	slow := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	})
	c := newClient(t, slow, &fakeEndpoint{})
	defer close(block)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := c.ListCollections(ctx); err == nil {
		t.Fatalf("expected context error")
	}
}
