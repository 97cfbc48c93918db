// Package charts shapes aging data into payloads for an external chart
// renderer. Pure transforms only; nothing here holds state.
package charts

import "github.com/ledgerbridge/recvdash/internal/aging"

// MaxLabelLen is the display budget for series labels before truncation.
const MaxLabelLen = 24

// Ellipsis marks a truncated label.
const Ellipsis = "…"

// Bucket display labels in fixed order.
var bucketLabels = [5]string{"Current", "1–30", "31–60", "61–90", "90+"}

// One colour per bucket, same order as aging.BucketOrder. 90+ is always the
// alarm red.
var bucketColors = [5]string{"#22c55e", "#facc15", "#f97316", "#f87171", "#ef4444"}

// Series is the renderer contract: parallel label/value/colour slices.
type Series struct {
	Labels []string  `json:"labels"`
	Values []float64 `json:"values"`
	Colors []string  `json:"colors,omitempty"`
}

// Empty reports whether there is nothing to draw.
func (s Series) Empty() bool {
	return len(s.Labels) == 0 || len(s.Values) == 0
}

// BucketSeries builds the fixed five-bucket series from totals.
func BucketSeries(totals aging.BucketTotals) Series {
	values := make([]float64, len(aging.BucketOrder))
	for i, key := range aging.BucketOrder {
		values[i] = totals.Amount(key)
	}
	return Series{
		Labels: bucketLabels[:],
		Values: values,
		Colors: bucketColors[:],
	}
}

// TopCustomerSeries builds a labelled series from ranked customer rows. Labels
// are shortened to the display budget; missing names fall back to the code.
func TopCustomerSeries(rows []aging.CustomerRow) Series {
	if len(rows) == 0 {
		return Series{}
	}
	labels := make([]string, 0, len(rows))
	values := make([]float64, 0, len(rows))
	for _, row := range rows {
		name := row.CustomerName
		if name == "" {
			name = row.CustomerCode
		}
		labels = append(labels, Shorten(name, MaxLabelLen))
		values = append(values, row.Totals.Grand)
	}
	return Series{Labels: labels, Values: values}
}

// Shorten truncates a label to max runes, replacing the tail with an ellipsis.
// Labels within budget pass through unchanged.
func Shorten(label string, max int) string {
	if max <= 0 {
		return label
	}
	runes := []rune(label)
	if len(runes) <= max {
		return label
	}
	return string(runes[:max-1]) + Ellipsis
}

// Coerce forces an arbitrary decoded JSON value to a number; non-numeric and
// missing values become zero so a bad datapoint never breaks a chart.
func Coerce(v interface{}) float64 {
	switch val := v.(type) {
	case nil:
		return 0
	case float64:
		return val
	case float32:
		return float64(val)
	case int:
		return float64(val)
	case int32:
		return float64(val)
	case int64:
		return float64(val)
	case uint:
		return float64(val)
	case uint32:
		return float64(val)
	case uint64:
		return float64(val)
	default:
		return 0
	}
}

// CoerceSeries maps Coerce over a raw value slice.
func CoerceSeries(raw []interface{}) []float64 {
	out := make([]float64, len(raw))
	for i, v := range raw {
		out[i] = Coerce(v)
	}
	return out
}
