package aging

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassifyThresholds(t *testing.T) {
	cases := []struct {
		days int
		want BucketKey
	}{
		{-30, BucketCurrent},
		{-1, BucketCurrent},
		{0, BucketCurrent},
		{1, Bucket0to30},
		{30, Bucket0to30},
		{31, Bucket31to60},
		{60, Bucket31to60},
		{61, Bucket61to90},
		{90, Bucket61to90},
		{91, Bucket90Plus},
		{400, Bucket90Plus},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, Classify(tc.days), "days=%d", tc.days)
	}
}

func TestClassifyRecordPrefersServerLabel(t *testing.T) {
	rec := InvoiceRecord{DaysOverdue: 5, Bucket: "d90p"}
	require.Equal(t, Bucket90Plus, ClassifyRecord(rec))

	rec.Bucket = " D31_60 "
	require.Equal(t, Bucket31to60, ClassifyRecord(rec))
}

func TestClassifyRecordUnknownLabelFallsBackToCurrent(t *testing.T) {
	// Bad bucket data must never drop a record; it lands in current.
	rec := InvoiceRecord{DaysOverdue: 45, Bucket: "overdue??"}
	require.Equal(t, BucketCurrent, ClassifyRecord(rec))
}

func TestClassifyRecordWithoutLabelUsesDays(t *testing.T) {
	rec := InvoiceRecord{DaysOverdue: 45}
	require.Equal(t, Bucket31to60, ClassifyRecord(rec))
}
