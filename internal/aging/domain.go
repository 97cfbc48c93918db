package aging

import "strings"

// BucketKey identifies one of the five mutually exclusive overdue-age classes.
type BucketKey string

const (
	BucketCurrent BucketKey = "current"
	Bucket0to30   BucketKey = "d0_30"
	Bucket31to60  BucketKey = "d31_60"
	Bucket61to90  BucketKey = "d61_90"
	Bucket90Plus  BucketKey = "d90p"
)

// BucketOrder is the fixed rendering order for bucket-grouped output.
var BucketOrder = [5]BucketKey{BucketCurrent, Bucket0to30, Bucket31to60, Bucket61to90, Bucket90Plus}

// ParseBucketKey normalises a bucket label from upstream. The second return
// reports whether the label named a known bucket.
func ParseBucketKey(label string) (BucketKey, bool) {
	switch BucketKey(strings.ToLower(strings.TrimSpace(label))) {
	case BucketCurrent:
		return BucketCurrent, true
	case Bucket0to30:
		return Bucket0to30, true
	case Bucket31to60:
		return Bucket31to60, true
	case Bucket61to90:
		return Bucket61to90, true
	case Bucket90Plus:
		return Bucket90Plus, true
	}
	return BucketCurrent, false
}

// InvoiceRecord is one outstanding invoice line as delivered by the ledger.
// Records are immutable once received and live only for the view session.
type InvoiceRecord struct {
	CustomerCode string  `json:"customer_code"`
	CustomerName string  `json:"customer_name"`
	InvoiceID    string  `json:"invoice_id"`
	Date         string  `json:"date"`
	DueDate      string  `json:"due_date"`
	Description  string  `json:"description"`
	OrderNumber  string  `json:"order_number"`
	CustomerPO   string  `json:"customer_po"`
	Amount       float64 `json:"amount"`
	DaysOverdue  int     `json:"days_overdue"`
	Bucket       string  `json:"bucket,omitempty"`
}

// DisplayName returns the customer name, falling back to the code.
func (r InvoiceRecord) DisplayName() string {
	if r.CustomerName != "" {
		return r.CustomerName
	}
	return r.CustomerCode
}

// BucketTotals maps each bucket to a summed amount plus the grand total.
// Invariant: Grand equals the sum of the five buckets exactly.
type BucketTotals struct {
	Current float64 `json:"current"`
	D0to30  float64 `json:"d0_30"`
	D31to60 float64 `json:"d31_60"`
	D61to90 float64 `json:"d61_90"`
	D90Plus float64 `json:"d90p"`
	Grand   float64 `json:"total"`
}

// Add accumulates an amount into the named bucket and the grand total.
func (t *BucketTotals) Add(bucket BucketKey, amount float64) {
	switch bucket {
	case BucketCurrent:
		t.Current += amount
	case Bucket0to30:
		t.D0to30 += amount
	case Bucket31to60:
		t.D31to60 += amount
	case Bucket61to90:
		t.D61to90 += amount
	case Bucket90Plus:
		t.D90Plus += amount
	}
	t.Grand += amount
}

// Amount returns the summed amount for one bucket.
func (t BucketTotals) Amount(bucket BucketKey) float64 {
	switch bucket {
	case BucketCurrent:
		return t.Current
	case Bucket0to30:
		return t.D0to30
	case Bucket31to60:
		return t.D31to60
	case Bucket61to90:
		return t.D61to90
	case Bucket90Plus:
		return t.D90Plus
	}
	return 0
}

// HasNegative reports whether any of the five buckets is negative.
func (t BucketTotals) HasNegative() bool {
	for _, key := range BucketOrder {
		if t.Amount(key) < 0 {
			return true
		}
	}
	return false
}

// CustomerRow is one row of the aging summary table.
type CustomerRow struct {
	CustomerCode string       `json:"customer_code"`
	CustomerName string       `json:"customer_name"`
	Totals       BucketTotals `json:"totals"`
	HasNegative  bool         `json:"has_negative"`
}
