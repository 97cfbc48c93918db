package dashboard

import (
	"context"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/ledgerbridge/recvdash/internal/aging"
	"github.com/ledgerbridge/recvdash/internal/ledger"
)

type fakeLedger struct {
	mu            sync.Mutex
	openRows      []aging.InvoiceRecord
	openErr       error
	openCalls     int
	invoiceRows   map[string][]aging.InvoiceRecord
	invoiceErr    error
	invoiceCalls  int
	lastQuery     ledger.InvoiceQuery
	invoiceGate   chan struct{}
	invoiceEnter  chan struct{}
}

func (f *fakeLedger) OpenItems(ctx context.Context) ([]aging.InvoiceRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.openCalls++
	return f.openRows, f.openErr
}

func (f *fakeLedger) Invoices(ctx context.Context, query ledger.InvoiceQuery) ([]aging.InvoiceRecord, error) {
	f.mu.Lock()
	f.invoiceCalls++
	f.lastQuery = query
	gate := f.invoiceGate
	enter := f.invoiceEnter
	rows := f.invoiceRows[query.CustomerCode]
	err := f.invoiceErr
	f.mu.Unlock()

	if enter != nil {
		enter <- struct{}{}
	}
	if gate != nil {
		<-gate
	}
	return rows, err
}

func (f *fakeLedger) calls() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.openCalls, f.invoiceCalls
}

func testRecords() []aging.InvoiceRecord {
	return []aging.InvoiceRecord{
		{CustomerCode: "A", CustomerName: "Alpha Traders", DaysOverdue: -5, Amount: 100},
		{CustomerCode: "A", CustomerName: "Alpha Traders", DaysOverdue: 45, Amount: 50},
		{CustomerCode: "B", CustomerName: "Beta Industrial", DaysOverdue: 120, Amount: 900},
		{CustomerCode: "Z", CustomerName: "Zero Sum Co", DaysOverdue: 10, Amount: 40},
		{CustomerCode: "Z", CustomerName: "Zero Sum Co", DaysOverdue: 10, Amount: -40},
	}
}

func newTestService(t *testing.T, port LedgerPort) *Service {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewService(port, NewSnapshotCache(client, time.Minute))
}

func TestGetSnapshotAggregatesAndCaches(t *testing.T) {
	fake := &fakeLedger{openRows: testRecords()}
	svc := newTestService(t, fake)
	ctx := context.Background()

	snapshot, err := svc.GetSnapshot(ctx)
	require.NoError(t, err)
	require.Len(t, snapshot.Rows, 3)
	require.Equal(t, 1050.0, snapshot.Totals.Grand)
	sum := snapshot.Totals.Current + snapshot.Totals.D0to30 + snapshot.Totals.D31to60 +
		snapshot.Totals.D61to90 + snapshot.Totals.D90Plus
	require.Equal(t, sum, snapshot.Totals.Grand)

	// Second load hits the cache, not the ledger.
	_, err = svc.GetSnapshot(ctx)
	require.NoError(t, err)
	open, _ := fake.calls()
	require.Equal(t, 1, open)
}

func TestRefreshBumpsCache(t *testing.T) {
	fake := &fakeLedger{openRows: testRecords()}
	svc := newTestService(t, fake)
	ctx := context.Background()

	_, err := svc.GetSnapshot(ctx)
	require.NoError(t, err)

	fake.mu.Lock()
	fake.openRows = append(fake.openRows, aging.InvoiceRecord{CustomerCode: "N", CustomerName: "New Co", DaysOverdue: 5, Amount: 10})
	fake.mu.Unlock()

	snapshot, err := svc.Refresh(ctx)
	require.NoError(t, err)
	require.Len(t, snapshot.Rows, 4)
	open, _ := fake.calls()
	require.Equal(t, 2, open)
}

func TestGetViewRecomputesVisibleTotals(t *testing.T) {
	fake := &fakeLedger{openRows: testRecords()}
	svc := newTestService(t, fake)
	ctx := context.Background()

	view, err := svc.GetView(ctx, aging.FilterState{Bucket: "d90p"})
	require.NoError(t, err)
	require.Len(t, view.Rows, 1)
	require.Equal(t, "B", view.Rows[0].CustomerCode)
	require.Equal(t, 900.0, view.VisibleTotals.Grand)
	// Baseline rides along untouched.
	require.Equal(t, 1050.0, view.BaselineTotals.Grand)
}

func TestGetViewHideZero(t *testing.T) {
	fake := &fakeLedger{openRows: testRecords()}
	svc := newTestService(t, fake)

	view, err := svc.GetView(context.Background(), aging.FilterState{ZeroPolicy: aging.HideZero})
	require.NoError(t, err)
	for _, row := range view.Rows {
		require.NotEqual(t, "Z", row.CustomerCode)
	}
	require.Equal(t, 1050.0, view.VisibleTotals.Grand)
}

func TestTopCustomers(t *testing.T) {
	fake := &fakeLedger{openRows: testRecords()}
	svc := newTestService(t, fake)

	top, err := svc.TopCustomers(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	require.Equal(t, "B", top[0].CustomerCode)
}

func TestBucketInvoicesExcludesNetZeroCustomers(t *testing.T) {
	fake := &fakeLedger{openRows: testRecords()}
	svc := newTestService(t, fake)

	// Z's lines classify to d0_30 but Z nets to zero, so the listing skips
	// them and its total matches the summary card.
	rows, err := svc.BucketInvoices(context.Background(), aging.Bucket0to30)
	require.NoError(t, err)
	require.Empty(t, rows)

	rows, err = svc.BucketInvoices(context.Background(), aging.Bucket90Plus)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "B", rows[0].CustomerCode)
}

func TestGetSnapshotSurfacesTransportFailure(t *testing.T) {
	fake := &fakeLedger{openErr: &ledger.TransportError{Op: "open items", Status: 502}}
	svc := newTestService(t, fake)

	_, err := svc.GetSnapshot(context.Background())
	require.Error(t, err)
	var terr *ledger.TransportError
	require.ErrorAs(t, err, &terr)
}
