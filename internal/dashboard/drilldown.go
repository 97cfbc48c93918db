package dashboard

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/ledgerbridge/recvdash/internal/aging"
	"github.com/ledgerbridge/recvdash/internal/ledger"
)

// RowState enumerates the per-row drill-down states.
type RowState string

const (
	RowCollapsed       RowState = "collapsed"
	RowLoading         RowState = "loading"
	RowLoadedOpen      RowState = "loaded-open"
	RowLoadedCollapsed RowState = "loaded-collapsed"
	RowError           RowState = "error"
)

type drillEntry struct {
	rows      []aging.InvoiceRecord
	state     RowState
	bucketCtx string
	loaded    bool
}

// FetchObserver counts drill-down fetch outcomes ("ok", "error", "stale").
type FetchObserver interface {
	DrillFetch(outcome string)
}

// DrillDown is the per-session drill-down cache and row state machine.
// Entries are keyed by customer under the active bucket context; changing the
// context invalidates every entry, because the ledger scopes its drill-down
// result set to the selected bucket.
type DrillDown struct {
	mu        sync.Mutex
	ledger    LedgerPort
	logger    *slog.Logger
	observe   FetchObserver
	entries   map[string]*drillEntry
	bucketCtx string
	group     singleflight.Group
}

// NewDrillDown builds the drill-down cache for one session.
func NewDrillDown(port LedgerPort, logger *slog.Logger) *DrillDown {
	return &DrillDown{
		ledger:  port,
		logger:  logger,
		entries: make(map[string]*drillEntry),
	}
}

// SetBucketContext records the active bucket selector. On change, every cache
// entry is invalidated: rows previously loaded under the old context must be
// refetched on their next expand, even if never touched since.
func (d *DrillDown) SetBucketContext(bucket string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if bucket == d.bucketCtx {
		return
	}
	d.bucketCtx = bucket
	for _, entry := range d.entries {
		entry.loaded = false
		entry.rows = nil
		entry.state = RowCollapsed
	}
}

// BucketContext returns the active bucket selector.
func (d *DrillDown) BucketContext() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.bucketCtx
}

// State reports the current state of one row.
func (d *DrillDown) State(customerCode string) RowState {
	d.mu.Lock()
	defer d.mu.Unlock()
	entry, ok := d.entries[customerCode]
	if !ok {
		return RowCollapsed
	}
	return entry.state
}

// Result is the outcome of an expand action.
type Result struct {
	State  RowState      `json:"state"`
	Groups []BucketGroup `json:"groups,omitempty"`
	Empty  bool          `json:"empty,omitempty"`
}

// Expand drives the row state machine for one expand click.
//
//   - loaded under the current context: pure UI toggle, no I/O;
//   - loading: no-op (a second click must not issue a duplicate request);
//   - otherwise: fetch under the current bucket context. A response that comes
//     back after the context has been superseded is discarded, not rendered.
func (d *DrillDown) Expand(ctx context.Context, customerCode, customerName string) (Result, error) {
	d.mu.Lock()
	entry, ok := d.entries[customerCode]
	if !ok {
		entry = &drillEntry{state: RowCollapsed}
		d.entries[customerCode] = entry
	}

	switch entry.state {
	case RowLoading:
		d.mu.Unlock()
		return Result{State: RowLoading}, nil
	case RowLoadedOpen:
		if entry.loaded && entry.bucketCtx == d.bucketCtx {
			entry.state = RowLoadedCollapsed
			d.mu.Unlock()
			return Result{State: RowLoadedCollapsed}, nil
		}
	case RowLoadedCollapsed:
		if entry.loaded && entry.bucketCtx == d.bucketCtx {
			entry.state = RowLoadedOpen
			rows := entry.rows
			d.mu.Unlock()
			return openResult(rows), nil
		}
	}

	originCtx := d.bucketCtx
	entry.state = RowLoading
	d.mu.Unlock()

	rows, err, _ := d.fetch(ctx, customerCode, customerName, originCtx)

	d.mu.Lock()
	defer d.mu.Unlock()
	entry = d.entries[customerCode]

	if err != nil {
		entry.state = RowError
		d.report("error")
		if d.logger != nil {
			d.logger.Error("drill-down fetch failed",
				slog.String("customer", customerCode), slog.Any("error", err))
		}
		return Result{State: RowError}, err
	}

	if originCtx != d.bucketCtx {
		// Stale response for a superseded bucket context. Drop it; the row
		// goes back to collapsed and the next expand refetches.
		entry.state = RowCollapsed
		entry.loaded = false
		entry.rows = nil
		d.report("stale")
		if d.logger != nil {
			d.logger.Warn("discarding stale drill-down response",
				slog.String("customer", customerCode),
				slog.String("fetched_ctx", originCtx),
				slog.String("current_ctx", d.bucketCtx))
		}
		return Result{State: RowCollapsed}, nil
	}

	entry.rows = rows
	entry.loaded = true
	entry.bucketCtx = originCtx
	entry.state = RowLoadedOpen
	d.report("ok")
	return openResult(rows), nil
}

func (d *DrillDown) report(outcome string) {
	if d.observe != nil {
		d.observe.DrillFetch(outcome)
	}
}

// fetch issues the ledger call through singleflight so that concurrent expands
// of the same customer share one outstanding request.
func (d *DrillDown) fetch(ctx context.Context, code, name, bucketCtx string) ([]aging.InvoiceRecord, error, bool) {
	ch := d.group.DoChan(code+"\x00"+bucketCtx, func() (interface{}, error) {
		return d.ledger.Invoices(ctx, ledger.InvoiceQuery{
			CustomerCode: code,
			CustomerName: name,
			Bucket:       bucketCtx,
		})
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err(), false
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err, res.Shared
		}
		return res.Val.([]aging.InvoiceRecord), nil, res.Shared
	}
}

func openResult(rows []aging.InvoiceRecord) Result {
	groups := GroupByBucket(rows)
	return Result{
		State:  RowLoadedOpen,
		Groups: groups,
		Empty:  len(groups) == 0,
	}
}
