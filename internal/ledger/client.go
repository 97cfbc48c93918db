// Package ledger talks to the external receivables ledger endpoint. The
// ledger owns the source-of-truth open-item query; this client only fetches
// its results.
package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ledgerbridge/recvdash/internal/aging"
)

// TransportError marks a network or HTTP-level failure. Callers surface these
// to the user; malformed payloads are recovered locally instead.
type TransportError struct {
	Op     string
	Status int
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("ledger: %s returned status %d", e.Op, e.Status)
	}
	return fmt.Sprintf("ledger: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Client calls the ledger HTTP endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient constructs a ledger client.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// InvoiceQuery identifies a customer and the active bucket context for a
// drill-down fetch.
type InvoiceQuery struct {
	CustomerCode string `json:"customer_code" validate:"required_without=CustomerName"`
	CustomerName string `json:"customer_name" validate:"required_without=CustomerCode"`
	Bucket       string `json:"bucket"`
}

// envelope covers both response shapes the ledger is known to emit: a flat
// {"rows": [...]} and a nested {"result": {"rows": [...]}}.
type envelope struct {
	Rows   []aging.InvoiceRecord `json:"rows"`
	Result *struct {
		Rows []aging.InvoiceRecord `json:"rows"`
	} `json:"result"`
}

func (e envelope) unwrap() []aging.InvoiceRecord {
	if e.Result != nil && e.Result.Rows != nil {
		return e.Result.Rows
	}
	return e.Rows
}

// OpenItems fetches every open invoice line. Called once per view session; the
// engine aggregates the result itself.
func (c *Client) OpenItems(ctx context.Context) ([]aging.InvoiceRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/ar/open-items", nil)
	if err != nil {
		return nil, &TransportError{Op: "open items", Err: err}
	}
	return c.fetchRows(req, "open items")
}

// Invoices fetches invoice detail for one customer scoped to the given bucket
// context.
func (c *Client) Invoices(ctx context.Context, query InvoiceQuery) ([]aging.InvoiceRecord, error) {
	payload, err := json.Marshal(query)
	if err != nil {
		return nil, &TransportError{Op: "invoices", Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/ar/invoices", bytes.NewReader(payload))
	if err != nil {
		return nil, &TransportError{Op: "invoices", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	return c.fetchRows(req, "invoices")
}

func (c *Client) fetchRows(req *http.Request, op string) ([]aging.InvoiceRecord, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 400 {
		return nil, &TransportError{Op: op, Status: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}

	// An absent or unparseable body is zero rows, not a hard failure. The
	// transport succeeded; showing "no data" beats breaking the view.
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		if c.logger != nil {
			c.logger.Warn("ledger response unparseable", slog.String("op", op), slog.Any("error", err))
		}
		return []aging.InvoiceRecord{}, nil
	}
	rows := env.unwrap()
	if rows == nil {
		rows = []aging.InvoiceRecord{}
	}
	return rows, nil
}
