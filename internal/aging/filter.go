package aging

import "strings"

// Bucket selector values beyond the five bucket keys.
const (
	SelectorAll         = "all"
	SelectorHasNegative = "hasneg"
)

// ZeroPolicy controls whether rows whose grand total is exactly zero are shown.
type ZeroPolicy string

const (
	ShowZero ZeroPolicy = "show_zero"
	HideZero ZeroPolicy = "hide_zero"
)

// minQueryLen is the minimum search length before the query takes effect.
const minQueryLen = 2

// FilterState is the view-session filter input. It is mutated only by user
// interaction handlers, never by the aggregation or drill-down layers.
type FilterState struct {
	Query      string
	Bucket     string
	ZeroPolicy ZeroPolicy
}

// Normalize canonicalises the state: trims and lowercases the query, maps an
// empty or unknown selector to "all" and an unset policy to show_zero.
func (f FilterState) Normalize() FilterState {
	f.Query = strings.ToLower(strings.TrimSpace(f.Query))
	f.Bucket = strings.ToLower(strings.TrimSpace(f.Bucket))
	switch f.Bucket {
	case "", SelectorAll:
		f.Bucket = SelectorAll
	case SelectorHasNegative:
	default:
		if _, ok := ParseBucketKey(f.Bucket); !ok {
			f.Bucket = SelectorAll
		}
	}
	if f.ZeroPolicy != HideZero {
		f.ZeroPolicy = ShowZero
	}
	return f
}

// Visible decides row visibility. Predicates short-circuit in a fixed order:
// zero-total policy first, then the search query, then the bucket selector.
func (f FilterState) Visible(row CustomerRow) bool {
	f = f.Normalize()

	if f.ZeroPolicy == HideZero && row.Totals.Grand == 0 {
		return false
	}
	if len(f.Query) >= minQueryLen {
		name := strings.ToLower(row.CustomerName)
		if !strings.Contains(name, f.Query) {
			return false
		}
	}
	switch f.Bucket {
	case SelectorAll:
		return true
	case SelectorHasNegative:
		return row.Totals.HasNegative()
	default:
		key, _ := ParseBucketKey(f.Bucket)
		return row.Totals.Amount(key) != 0
	}
}

// ComputeVisibility returns the set of customer codes visible under the state.
func ComputeVisibility(rows []CustomerRow, state FilterState) map[string]bool {
	visible := make(map[string]bool, len(rows))
	for _, row := range rows {
		if state.Visible(row) {
			visible[row.CustomerCode] = true
		}
	}
	return visible
}

// VisibleRows filters rows down to the visible subset, preserving order.
func VisibleRows(rows []CustomerRow, state FilterState) []CustomerRow {
	out := make([]CustomerRow, 0, len(rows))
	for _, row := range rows {
		if state.Visible(row) {
			out = append(out, row)
		}
	}
	return out
}

// RecomputeTotals sums bucket totals from scratch over the given rows. Filtered
// views call this on every change; the rendered grand total therefore always
// equals the sum over exactly the rows marked visible.
func RecomputeTotals(rows []CustomerRow) BucketTotals {
	var totals BucketTotals
	for _, row := range rows {
		for _, key := range BucketOrder {
			totals.Add(key, row.Totals.Amount(key))
		}
	}
	return totals
}
