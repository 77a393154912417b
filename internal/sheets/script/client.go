// Package script talks to the spreadsheet web-app endpoints that back the
// household sheets. Reads are JSON arrays; writes are form-encoded POSTs
// answered with plain text.
package script

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"kobitar/internal/core"
	ports "kobitar/internal/sheets"
)

const maxBodyBytes = 4 << 20

var _ ports.Store = (*Client)(nil)

// StatusError is returned when an endpoint answers with a non-2xx status.
type StatusError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", e.URL, e.StatusCode, strings.TrimSpace(e.Body))
}

// ResponseText returns the trimmed response body.
func (e *StatusError) ResponseText() string { return strings.TrimSpace(e.Body) }

// Config holds the endpoint URLs.
type Config struct {
	CollectionsURL string
	ExpensesURL    string
	// Timeout bounds each request. Zero means no client-side timeout.
	Timeout time.Duration
}

type Client struct {
	http           *http.Client
	collectionsURL string
	expensesURL    string
}

// New validates the endpoints and builds a client with a pooled transport.
func New(cfg Config) (*Client, error) {
	for name, raw := range map[string]string{"collections": cfg.CollectionsURL, "expenses": cfg.ExpensesURL} {
		u, err := url.Parse(strings.TrimSpace(raw))
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("invalid %s endpoint %q", name, raw)
		}
	}
	return NewWithHTTPClient(cfg, newHTTPClientWithPooling(cfg.Timeout)), nil
}

// NewWithHTTPClient uses the given client as is.
func NewWithHTTPClient(cfg Config, hc *http.Client) *Client {
	return &Client{
		http:           hc,
		collectionsURL: strings.TrimSpace(cfg.CollectionsURL),
		expensesURL:    strings.TrimSpace(cfg.ExpensesURL),
	}
}

// newHTTPClientWithPooling keeps connections to the endpoints alive between
// dashboard loads.
func newHTTPClientWithPooling(timeout time.Duration) *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{Transport: transport, Timeout: timeout}
}

type collectionDTO struct {
	Name   any `json:"Name"`
	Amount any `json:"Amount"`
}

type expenseDTO struct {
	Name   any `json:"Name"`
	Goods  any `json:"Goods"`
	Item   any `json:"Item"`
	Date   any `json:"Date"`
	Amount any `json:"Amount"`
}

func text(v any) string {
	if v == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

func (c *Client) ListCollections(ctx context.Context) ([]core.CollectionRow, error) {
	var rows []collectionDTO
	if err := c.getJSON(ctx, c.collectionsURL, &rows); err != nil {
		return nil, err
	}
	out := make([]core.CollectionRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, core.CollectionRow{Name: text(r.Name), Amount: core.LooseAmount(r.Amount)})
	}
	return out, nil
}

func (c *Client) ListExpenses(ctx context.Context) ([]core.ExpenseRecord, error) {
	var rows []expenseDTO
	if err := c.getJSON(ctx, c.expensesURL, &rows); err != nil {
		return nil, err
	}
	out := make([]core.ExpenseRecord, 0, len(rows))
	for _, r := range rows {
		item := text(r.Goods)
		if item == "" {
			item = text(r.Item)
		}
		out = append(out, core.ExpenseRecord{
			Name:   text(r.Name),
			Date:   text(r.Date),
			Item:   item,
			Amount: core.LooseAmount(r.Amount),
		})
	}
	return out, nil
}

func (c *Client) AppendExpense(ctx context.Context, e core.ExpenseRecord) error {
	form := url.Values{}
	form.Set("Name", e.Name)
	form.Set("Date", e.Date)
	form.Set("Goods", e.Item)
	form.Set("Amount", e.Amount.String())
	_, err := c.postForm(ctx, c.expensesURL, form)
	return err
}

func (c *Client) ClearExpenses(ctx context.Context) error {
	form := url.Values{}
	form.Set("action", "deleteAll")
	_, err := c.postForm(ctx, c.expensesURL, form)
	return err
}

func (c *Client) UpdateCollectionAmount(ctx context.Context, name string, amount decimal.Decimal) (string, error) {
	form := url.Values{}
	form.Set("Name", name)
	form.Set("Amount", amount.String())
	return c.postForm(ctx, c.collectionsURL, form)
}

func (c *Client) getJSON(ctx context.Context, endpoint string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	body, err := c.do(req)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("decode %s: %w", endpoint, err)
	}
	return nil
}

func (c *Client) postForm(ctx context.Context, endpoint string, form url.Values) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	body, err := c.do(req)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(body)), nil
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Redacted(), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", req.URL.Redacted(), err)
	}
	slog.DebugContext(req.Context(), "Remote request completed",
		"component", "remote",
		"method", req.Method,
		"status", resp.StatusCode,
		"duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{URL: req.URL.Redacted(), StatusCode: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}
