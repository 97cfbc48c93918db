// Package dashboard implements the receivables aging view engine: snapshot
// aggregation, filtering, drill-down retrieval, and session state.
package dashboard

import (
	"context"
	"fmt"
	"time"

	"github.com/ledgerbridge/recvdash/internal/aging"
	"github.com/ledgerbridge/recvdash/internal/ledger"
)

// LedgerPort is the slice of the ledger client the engine consumes.
type LedgerPort interface {
	OpenItems(ctx context.Context) ([]aging.InvoiceRecord, error)
	Invoices(ctx context.Context, query ledger.InvoiceQuery) ([]aging.InvoiceRecord, error)
}

// Snapshot is the aggregated baseline for one view session: every customer row
// plus grand totals, derived from the full open-item set.
type Snapshot struct {
	Rows   []aging.CustomerRow `json:"rows"`
	Totals aging.BucketTotals  `json:"totals"`
	AsOf   time.Time           `json:"as_of"`
}

// View is a snapshot seen through a filter: the visible rows and totals
// recomputed over exactly those rows. Baseline totals ride along so the two
// are never conflated.
type View struct {
	Rows           []aging.CustomerRow `json:"rows"`
	VisibleTotals  aging.BucketTotals  `json:"totals"`
	BaselineTotals aging.BucketTotals  `json:"baseline_totals"`
	Filter         aging.FilterState   `json:"-"`
}

// Service coordinates ledger access with the snapshot cache.
type Service struct {
	ledger LedgerPort
	cache  *SnapshotCache
	now    func() time.Time
}

// NewService wires the ledger port with the cache helper.
func NewService(port LedgerPort, cache *SnapshotCache) *Service {
	return &Service{ledger: port, cache: cache, now: time.Now}
}

// WithNow overrides the service clock for testing.
func (s *Service) WithNow(fn func() time.Time) {
	if fn != nil {
		s.now = fn
	}
}

// openItems returns the cached open-item set, fetching from the ledger on a
// cache miss.
func (s *Service) openItems(ctx context.Context) ([]aging.InvoiceRecord, error) {
	loader := func(ctx context.Context) (interface{}, error) {
		return s.ledger.OpenItems(ctx)
	}
	if s.cache == nil {
		value, err := loader(ctx)
		if err != nil {
			return nil, err
		}
		return value.([]aging.InvoiceRecord), nil
	}
	key, err := s.cache.BuildKey(ctx, keyOpenItems()...)
	if err != nil {
		return nil, err
	}
	var records []aging.InvoiceRecord
	if err := s.cache.FetchJSON(ctx, key, &records, loader); err != nil {
		return nil, err
	}
	return records, nil
}

// GetSnapshot aggregates the open-item set into the baseline snapshot.
func (s *Service) GetSnapshot(ctx context.Context) (Snapshot, error) {
	records, err := s.openItems(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("dashboard: load open items: %w", err)
	}
	rowsByCode, totals := aging.Aggregate(records)
	return Snapshot{
		Rows:   aging.SortRows(rowsByCode),
		Totals: totals,
		AsOf:   s.now().UTC(),
	}, nil
}

// Refresh invalidates the cached snapshot and reloads it.
func (s *Service) Refresh(ctx context.Context) (Snapshot, error) {
	if err := s.cache.Bump(ctx); err != nil {
		return Snapshot{}, fmt.Errorf("dashboard: bump cache: %w", err)
	}
	return s.GetSnapshot(ctx)
}

// GetView applies a filter over the snapshot. Visible totals are recomputed
// from scratch over the visible subset on every call; the rendered grand total
// therefore always equals the sum over exactly the visible rows.
func (s *Service) GetView(ctx context.Context, state aging.FilterState) (View, error) {
	snapshot, err := s.GetSnapshot(ctx)
	if err != nil {
		return View{}, err
	}
	return NewView(snapshot, state), nil
}

// NewView filters an already-materialised snapshot. No refetch happens here;
// re-running on every interaction is linear over the row set.
func NewView(snapshot Snapshot, state aging.FilterState) View {
	state = state.Normalize()
	visible := aging.VisibleRows(snapshot.Rows, state)
	return View{
		Rows:           visible,
		VisibleTotals:  aging.RecomputeTotals(visible),
		BaselineTotals: snapshot.Totals,
		Filter:         state,
	}
}

// TopCustomers ranks the snapshot's rows by grand total.
func (s *Service) TopCustomers(ctx context.Context, n int) ([]aging.CustomerRow, error) {
	snapshot, err := s.GetSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	return aging.TopByGrand(snapshot.Rows, n), nil
}

// BucketInvoice is one invoice line on the bucket-wide listing.
type BucketInvoice struct {
	aging.InvoiceRecord
	Bucket aging.BucketKey `json:"bucket"`
}

// BucketInvoices lists every open invoice that contributes to the given bucket
// total, scoped to the same customer set the summary shows: customers whose
// net open balance is zero are excluded so the listing total matches the card.
func (s *Service) BucketInvoices(ctx context.Context, bucket aging.BucketKey) ([]BucketInvoice, error) {
	records, err := s.openItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("dashboard: load open items: %w", err)
	}
	rowsByCode, _ := aging.Aggregate(records)

	out := make([]BucketInvoice, 0)
	for _, rec := range records {
		if aging.ClassifyRecord(rec) != bucket {
			continue
		}
		if row, ok := rowsByCode[rec.CustomerCode]; !ok || row.Totals.Grand == 0 {
			continue
		}
		out = append(out, BucketInvoice{InvoiceRecord: rec, Bucket: bucket})
	}
	return out, nil
}
