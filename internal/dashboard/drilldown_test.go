package dashboard

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ledgerbridge/recvdash/internal/aging"
)

func drillFixture() *fakeLedger {
	return &fakeLedger{
		invoiceRows: map[string][]aging.InvoiceRecord{
			"A": {
				{CustomerCode: "A", InvoiceID: "INV-1", DaysOverdue: -5, Amount: 100},
				{CustomerCode: "A", InvoiceID: "INV-2", DaysOverdue: 45, Amount: 50},
			},
		},
	}
}

func TestExpandLoadsOnceUnderUnchangedContext(t *testing.T) {
	fake := drillFixture()
	drill := NewDrillDown(fake, nil)
	drill.SetBucketContext("all")
	ctx := context.Background()

	result, err := drill.Expand(ctx, "A", "Alpha Traders")
	require.NoError(t, err)
	require.Equal(t, RowLoadedOpen, result.State)
	require.Len(t, result.Groups, 2)
	require.Equal(t, aging.BucketCurrent, result.Groups[0].Bucket)
	require.Equal(t, aging.Bucket31to60, result.Groups[1].Bucket)

	// Second click: pure UI toggle, no I/O.
	result, err = drill.Expand(ctx, "A", "Alpha Traders")
	require.NoError(t, err)
	require.Equal(t, RowLoadedCollapsed, result.State)

	// Third click reopens from cache.
	result, err = drill.Expand(ctx, "A", "Alpha Traders")
	require.NoError(t, err)
	require.Equal(t, RowLoadedOpen, result.State)

	_, invoiceCalls := fake.calls()
	require.Equal(t, 1, invoiceCalls)
}

func TestBucketContextChangeForcesRefetch(t *testing.T) {
	fake := drillFixture()
	drill := NewDrillDown(fake, nil)
	drill.SetBucketContext("all")
	ctx := context.Background()

	_, err := drill.Expand(ctx, "A", "Alpha Traders")
	require.NoError(t, err)

	drill.SetBucketContext("d31_60")
	require.Equal(t, RowCollapsed, drill.State("A"))

	result, err := drill.Expand(ctx, "A", "Alpha Traders")
	require.NoError(t, err)
	require.Equal(t, RowLoadedOpen, result.State)

	_, invoiceCalls := fake.calls()
	require.Equal(t, 2, invoiceCalls)
	require.Equal(t, "d31_60", fake.lastQuery.Bucket)
}

func TestStaleResponseIsDiscarded(t *testing.T) {
	fake := drillFixture()
	fake.invoiceGate = make(chan struct{})
	fake.invoiceEnter = make(chan struct{}, 1)
	drill := NewDrillDown(fake, nil)
	drill.SetBucketContext("all")

	done := make(chan Result, 1)
	go func() {
		result, _ := drill.Expand(context.Background(), "A", "Alpha Traders")
		done <- result
	}()

	// Wait for the fetch to be in flight, supersede its context, then let the
	// response land.
	<-fake.invoiceEnter
	drill.SetBucketContext("d90p")
	close(fake.invoiceGate)

	result := <-done
	require.Equal(t, RowCollapsed, result.State)
	require.Empty(t, result.Groups)
	require.Equal(t, RowCollapsed, drill.State("A"))
}

func TestExpandWhileLoadingIsNoOp(t *testing.T) {
	fake := drillFixture()
	fake.invoiceGate = make(chan struct{})
	fake.invoiceEnter = make(chan struct{}, 1)
	drill := NewDrillDown(fake, nil)
	drill.SetBucketContext("all")

	done := make(chan struct{})
	go func() {
		_, _ = drill.Expand(context.Background(), "A", "Alpha Traders")
		close(done)
	}()
	<-fake.invoiceEnter

	result, err := drill.Expand(context.Background(), "A", "Alpha Traders")
	require.NoError(t, err)
	require.Equal(t, RowLoading, result.State)

	close(fake.invoiceGate)
	<-done

	_, invoiceCalls := fake.calls()
	require.Equal(t, 1, invoiceCalls)
}

func TestExpandFailureEntersErrorStateAndRetries(t *testing.T) {
	fake := drillFixture()
	fake.invoiceErr = errors.New("dial tcp: connection refused")
	drill := NewDrillDown(fake, nil)
	drill.SetBucketContext("all")
	ctx := context.Background()

	result, err := drill.Expand(ctx, "A", "Alpha Traders")
	require.Error(t, err)
	require.Equal(t, RowError, result.State)
	require.Equal(t, RowError, drill.State("A"))

	// Retry after the fault clears.
	fake.mu.Lock()
	fake.invoiceErr = nil
	fake.mu.Unlock()

	result, err = drill.Expand(ctx, "A", "Alpha Traders")
	require.NoError(t, err)
	require.Equal(t, RowLoadedOpen, result.State)
}

func TestExpandEmptyCustomerShowsPlaceholder(t *testing.T) {
	fake := drillFixture()
	drill := NewDrillDown(fake, nil)
	drill.SetBucketContext("all")

	result, err := drill.Expand(context.Background(), "NOBODY", "")
	require.NoError(t, err)
	require.Equal(t, RowLoadedOpen, result.State)
	require.True(t, result.Empty)
	require.Empty(t, result.Groups)
}

func TestGroupByBucketOrderAndSubtotals(t *testing.T) {
	rows := []aging.InvoiceRecord{
		{InvoiceID: "I-3", DaysOverdue: 120, Amount: 900},
		{InvoiceID: "I-1", DaysOverdue: -2, Amount: 100},
		{InvoiceID: "I-2", DaysOverdue: 95, Amount: 1.5},
	}
	groups := GroupByBucket(rows)
	require.Len(t, groups, 2)
	require.Equal(t, aging.BucketCurrent, groups[0].Bucket)
	require.Equal(t, aging.Bucket90Plus, groups[1].Bucket)
	require.Equal(t, 901.5, groups[1].Subtotal)
	require.Equal(t, "901.500", groups[1].SubtotalDisplay)
}
