// Package export serialises aging views for download.
package export

import (
	"encoding/csv"
	"io"

	"github.com/ledgerbridge/recvdash/internal/aging"
	"github.com/ledgerbridge/recvdash/internal/dashboard"
	"github.com/ledgerbridge/recvdash/internal/money"
)

var summaryHeader = []string{"Customer Code", "Customer", "Current", "0-30", "31-60", "61-90", "90+", "Total"}

// WriteAgingCSV emits the visible rows of a view plus a totals line. The
// totals line reflects the recomputed visible-subset totals, never the
// baseline, so the file reconciles with what the table showed.
func WriteAgingCSV(w io.Writer, view dashboard.View) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write(summaryHeader); err != nil {
		return err
	}
	for _, row := range view.Rows {
		record := []string{
			row.CustomerCode,
			row.CustomerName,
			money.Format(row.Totals.Current),
			money.Format(row.Totals.D0to30),
			money.Format(row.Totals.D31to60),
			money.Format(row.Totals.D61to90),
			money.Format(row.Totals.D90Plus),
			money.Format(row.Totals.Grand),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	totals := view.VisibleTotals
	if err := writer.Write([]string{
		"", "Total",
		money.Format(totals.Current),
		money.Format(totals.D0to30),
		money.Format(totals.D31to60),
		money.Format(totals.D61to90),
		money.Format(totals.D90Plus),
		money.Format(totals.Grand),
	}); err != nil {
		return err
	}

	writer.Flush()
	return writer.Error()
}

// WriteBucketCSV emits a bucket-wide invoice listing.
func WriteBucketCSV(w io.Writer, bucket aging.BucketKey, rows []dashboard.BucketInvoice) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write([]string{"Customer Code", "Customer", "Invoice", "Date", "Due Date", "Order", "PO", "Amount", "Bucket"}); err != nil {
		return err
	}
	var total float64
	for _, row := range rows {
		total += row.Amount
		record := []string{
			row.CustomerCode,
			row.DisplayName(),
			row.InvoiceID,
			row.Date,
			row.DueDate,
			row.OrderNumber,
			row.CustomerPO,
			money.Format(row.Amount),
			string(bucket),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	if err := writer.Write([]string{"", "", "", "", "", "", "Total", money.Format(total), string(bucket)}); err != nil {
		return err
	}

	writer.Flush()
	return writer.Error()
}
