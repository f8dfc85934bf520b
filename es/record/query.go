package record

// RangeQuery bounds a scan over one sequence's positions. All bounds are
// optional; nil means unbounded on that side. The zero value scans the whole
// sequence in ascending order.
type RangeQuery struct {
	// Gt selects positions strictly greater than the value.
	Gt *int64

	// Gte selects positions greater than or equal to the value.
	// When combined with Gt, the tighter lower bound wins.
	Gte *int64

	// Lt selects positions strictly less than the value.
	Lt *int64

	// Lte selects positions less than or equal to the value.
	// When combined with Lt, the tighter upper bound wins.
	Lte *int64

	// Limit cuts the scan to its first Limit positions, applied in query
	// order before any final reversal. Zero or negative means no limit.
	Limit int

	// QueryDescending scans positions from high to low. The limit prefix is
	// taken in this order.
	QueryDescending bool

	// ResultsDescending orders the returned items from high to low. When it
	// differs from QueryDescending the scanned prefix is reversed.
	ResultsDescending bool
}

// Int64 returns a pointer to v, for building query bounds inline.
func Int64(v int64) *int64 { return &v }

// Bounds resolves the query to a closed-open interval [start, end) over
// positions, given the minimum and maximum positions that currently exist in
// the sequence. The lower bound is the tightest of gt+1 and gte, defaulting
// to the minimum existing position; the upper bound is the tightest of lt and
// lte+1, defaulting to one past the maximum existing position.
func (q RangeQuery) Bounds(minExisting, maxExisting int64) (start, end int64) {
	var lower *int64
	if q.Gt != nil {
		v := *q.Gt + 1
		lower = &v
	}
	if q.Gte != nil {
		if lower == nil || *q.Gte > *lower {
			lower = q.Gte
		}
	}

	var upper *int64
	if q.Lt != nil {
		upper = q.Lt
	}
	if q.Lte != nil {
		v := *q.Lte + 1
		if upper == nil || v < *upper {
			upper = &v
		}
	}

	start = minExisting
	if lower != nil {
		start = *lower
	}
	end = maxExisting + 1
	if upper != nil {
		end = *upper
	}
	return start, end
}

// NeedsReverse reports whether the scanned prefix must be reversed to honor
// the requested result order.
func (q RangeQuery) NeedsReverse() bool {
	return q.QueryDescending != q.ResultsDescending
}
