package aging

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func filterRows() []CustomerRow {
	rows, _ := Aggregate(sampleRecords())
	out := SortRows(rows)
	// Customer with an all-zero row: offsetting amounts in the same bucket.
	zero, _ := Aggregate([]InvoiceRecord{
		{CustomerCode: "Z", CustomerName: "Zero Sum Co", DaysOverdue: 15, Amount: 40},
		{CustomerCode: "Z", CustomerName: "Zero Sum Co", DaysOverdue: 15, Amount: -40},
	})
	return append(out, zero["Z"])
}

func codes(rows []CustomerRow) []string {
	out := make([]string, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.CustomerCode)
	}
	return out
}

func TestVisibleBucketSelector(t *testing.T) {
	rows, _ := Aggregate([]InvoiceRecord{
		{CustomerCode: "A", CustomerName: "A", DaysOverdue: -5, Amount: 100},
		{CustomerCode: "A", CustomerName: "A", DaysOverdue: 45, Amount: 50},
	})
	row := rows["A"]

	require.True(t, FilterState{Bucket: "current"}.Visible(row))
	require.True(t, FilterState{Bucket: "d31_60"}.Visible(row))
	require.False(t, FilterState{Bucket: "d90p"}.Visible(row))
	require.True(t, FilterState{Bucket: "all"}.Visible(row))
	require.True(t, FilterState{}.Visible(row))
}

func TestVisibleHasNegativeSelector(t *testing.T) {
	rows := filterRows()
	visible := VisibleRows(rows, FilterState{Bucket: SelectorHasNegative})
	require.Equal(t, []string{"B"}, codes(visible))
}

func TestVisibleSearchQuery(t *testing.T) {
	rows := filterRows()

	visible := VisibleRows(rows, FilterState{Query: "BETA"})
	require.Equal(t, []string{"B"}, codes(visible))

	// Single-character queries do not take effect.
	visible = VisibleRows(rows, FilterState{Query: "b"})
	require.Len(t, visible, len(rows))
}

func TestHideZeroExcludesRowAndTotals(t *testing.T) {
	rows := filterRows()

	state := FilterState{ZeroPolicy: HideZero}
	visible := VisibleRows(rows, state)
	require.NotContains(t, codes(visible), "Z")

	totals := RecomputeTotals(visible)
	withZero := RecomputeTotals(VisibleRows(rows, FilterState{ZeroPolicy: ShowZero}))
	require.Equal(t, withZero.Grand, totals.Grand)
	require.Contains(t, codes(VisibleRows(rows, FilterState{})), "Z")
}

func TestPredicatePrecedence(t *testing.T) {
	// A zero-total row that would match both the query and the bucket selector
	// is still hidden by the zero policy.
	rows := filterRows()
	state := FilterState{Query: "zero", Bucket: SelectorAll, ZeroPolicy: HideZero}
	visible := VisibleRows(rows, state)
	require.Empty(t, visible)
}

func TestFilterIdempotence(t *testing.T) {
	rows := filterRows()
	state := FilterState{Query: "al", Bucket: "current", ZeroPolicy: HideZero}

	first := VisibleRows(rows, state)
	second := VisibleRows(rows, state)
	require.Equal(t, codes(first), codes(second))
	require.Equal(t, RecomputeTotals(first), RecomputeTotals(second))
}

func TestRecomputeTotalsReconciles(t *testing.T) {
	rows := filterRows()
	for _, state := range []FilterState{
		{},
		{Bucket: "d90p"},
		{Query: "industrial"},
		{ZeroPolicy: HideZero},
		{Bucket: SelectorHasNegative, ZeroPolicy: HideZero},
	} {
		totals := RecomputeTotals(VisibleRows(rows, state))
		sum := totals.Current + totals.D0to30 + totals.D31to60 + totals.D61to90 + totals.D90Plus
		require.Equal(t, sum, totals.Grand, "state=%+v", state)
	}
}

func TestNormalizeUnknownSelector(t *testing.T) {
	state := FilterState{Bucket: "d15_45"}.Normalize()
	require.Equal(t, SelectorAll, state.Bucket)
	require.Equal(t, ShowZero, state.ZeroPolicy)
}
