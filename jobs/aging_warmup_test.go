package jobs

import (
	"context"
	"fmt"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/ledgerbridge/recvdash/internal/aging"
	"github.com/ledgerbridge/recvdash/internal/dashboard"
	"github.com/ledgerbridge/recvdash/internal/ledger"
)

type warmupLedger struct {
	rows  []aging.InvoiceRecord
	err   error
	calls int
}

func (l *warmupLedger) OpenItems(ctx context.Context) ([]aging.InvoiceRecord, error) {
	l.calls++
	return l.rows, l.err
}

func (l *warmupLedger) Invoices(ctx context.Context, query ledger.InvoiceQuery) ([]aging.InvoiceRecord, error) {
	return nil, nil
}

func TestAgingWarmupHandle(t *testing.T) {
	port := &warmupLedger{rows: []aging.InvoiceRecord{
		{CustomerCode: "ACME", CustomerName: "Acme Industrial", InvoiceID: "INV-001", Amount: 150, DaysOverdue: 12},
	}}
	job := NewAgingWarmupJob(dashboard.NewService(port, nil), nil, nil)

	task, err := NewAgingWarmupTask(AgingWarmupPayload{})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.GreaterOrEqual(t, port.calls, 1)
}

func TestAgingWarmupSurfacesLedgerFailure(t *testing.T) {
	port := &warmupLedger{err: fmt.Errorf("ledger offline")}
	job := NewAgingWarmupJob(dashboard.NewService(port, nil), nil, nil)

	task, err := NewAgingWarmupTask(AgingWarmupPayload{TopN: 5})
	require.NoError(t, err)
	require.Error(t, job.Handle(context.Background(), task))
}

func TestAgingWarmupRejectsMalformedPayload(t *testing.T) {
	job := NewAgingWarmupJob(dashboard.NewService(&warmupLedger{}, nil), nil, nil)
	task := asynq.NewTask(TaskAgingWarmup, []byte("{not json"))
	require.Error(t, job.Handle(context.Background(), task))
}
