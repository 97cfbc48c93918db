package aging

import "sort"

// Aggregate folds classified records into per-customer rows and grand bucket
// totals in a single pass. Summation is commutative, so the result does not
// depend on input ordering. Rows exist for exactly the distinct customers in
// the input.
func Aggregate(records []InvoiceRecord) (map[string]CustomerRow, BucketTotals) {
	rows := make(map[string]CustomerRow, len(records))
	var grand BucketTotals

	for _, rec := range records {
		bucket := ClassifyRecord(rec)

		row, ok := rows[rec.CustomerCode]
		if !ok {
			row = CustomerRow{
				CustomerCode: rec.CustomerCode,
				CustomerName: rec.DisplayName(),
			}
		}
		if row.CustomerName == row.CustomerCode && rec.CustomerName != "" {
			row.CustomerName = rec.CustomerName
		}
		row.Totals.Add(bucket, rec.Amount)
		row.HasNegative = row.Totals.HasNegative()
		rows[rec.CustomerCode] = row

		grand.Add(bucket, rec.Amount)
	}

	return rows, grand
}

// SortRows returns the rows ordered by customer code for stable rendering.
func SortRows(rows map[string]CustomerRow) []CustomerRow {
	out := make([]CustomerRow, 0, len(rows))
	for _, row := range rows {
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CustomerCode < out[j].CustomerCode })
	return out
}

// TopByGrand ranks rows by grand total descending and returns at most n of
// them. Ties break on customer code so the ranking is deterministic.
func TopByGrand(rows []CustomerRow, n int) []CustomerRow {
	ranked := make([]CustomerRow, len(rows))
	copy(ranked, rows)
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Totals.Grand != ranked[j].Totals.Grand {
			return ranked[i].Totals.Grand > ranked[j].Totals.Grand
		}
		return ranked[i].CustomerCode < ranked[j].CustomerCode
	})
	if n > 0 && len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}
