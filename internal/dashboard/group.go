package dashboard

import (
	"github.com/ledgerbridge/recvdash/internal/aging"
	"github.com/ledgerbridge/recvdash/internal/money"
)

// BucketGroup is one bucket section of a drill-down rendering: the invoices
// that classified into that bucket plus their subtotal.
type BucketGroup struct {
	Bucket          aging.BucketKey       `json:"bucket"`
	Rows            []aging.InvoiceRecord `json:"rows"`
	Subtotal        float64               `json:"subtotal"`
	SubtotalDisplay string                `json:"subtotal_display"`
}

// GroupByBucket splits drill-down rows into bucket sections in the fixed
// rendering order. Empty groups are omitted entirely; callers render an
// explicit "no invoices" placeholder when nothing remains.
func GroupByBucket(rows []aging.InvoiceRecord) []BucketGroup {
	byBucket := make(map[aging.BucketKey][]aging.InvoiceRecord, len(aging.BucketOrder))
	for _, rec := range rows {
		key := aging.ClassifyRecord(rec)
		byBucket[key] = append(byBucket[key], rec)
	}

	groups := make([]BucketGroup, 0, len(byBucket))
	for _, key := range aging.BucketOrder {
		members := byBucket[key]
		if len(members) == 0 {
			continue
		}
		var subtotal float64
		for _, rec := range members {
			subtotal += rec.Amount
		}
		groups = append(groups, BucketGroup{
			Bucket:          key,
			Rows:            members,
			Subtotal:        subtotal,
			SubtotalDisplay: money.FormatBlank(subtotal),
		})
	}
	return groups
}
