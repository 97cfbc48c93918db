package aging

// Classify maps days overdue to its aging bucket. Not-yet-due balances
// (daysOverdue <= 0) are current.
func Classify(daysOverdue int) BucketKey {
	switch {
	case daysOverdue <= 0:
		return BucketCurrent
	case daysOverdue <= 30:
		return Bucket0to30
	case daysOverdue <= 60:
		return Bucket31to60
	case daysOverdue <= 90:
		return Bucket61to90
	default:
		return Bucket90Plus
	}
}

// ClassifyRecord resolves the bucket for a record. A server-assigned bucket
// label is authoritative when it names a known bucket; an unknown label falls
// back to current rather than dropping the record, so bad bucket data never
// removes money from the displayed totals. Records without a label are
// classified from DaysOverdue.
func ClassifyRecord(r InvoiceRecord) BucketKey {
	if r.Bucket != "" {
		key, _ := ParseBucketKey(r.Bucket)
		return key
	}
	return Classify(r.DaysOverdue)
}
