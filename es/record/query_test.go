package record

import "testing"

func TestRangeQuery_Bounds(t *testing.T) {
	tests := []struct {
		name        string
		query       RangeQuery
		minExisting int64
		maxExisting int64
		wantStart   int64
		wantEnd     int64
	}{
		{
			name:        "zero query spans all existing positions",
			query:       RangeQuery{},
			minExisting: 0,
			maxExisting: 9,
			wantStart:   0,
			wantEnd:     10,
		},
		{
			name:        "gt excludes the bound itself",
			query:       RangeQuery{Gt: Int64(3)},
			minExisting: 0,
			maxExisting: 9,
			wantStart:   4,
			wantEnd:     10,
		},
		{
			name:        "gte includes the bound",
			query:       RangeQuery{Gte: Int64(3)},
			minExisting: 0,
			maxExisting: 9,
			wantStart:   3,
			wantEnd:     10,
		},
		{
			name:        "lt excludes the bound itself",
			query:       RangeQuery{Lt: Int64(7)},
			minExisting: 0,
			maxExisting: 9,
			wantStart:   0,
			wantEnd:     7,
		},
		{
			name:        "lte includes the bound",
			query:       RangeQuery{Lte: Int64(7)},
			minExisting: 0,
			maxExisting: 9,
			wantStart:   0,
			wantEnd:     8,
		},
		{
			name:        "tighter of gt and gte wins",
			query:       RangeQuery{Gt: Int64(2), Gte: Int64(5)},
			minExisting: 0,
			maxExisting: 9,
			wantStart:   5,
			wantEnd:     10,
		},
		{
			name:        "tighter of lt and lte wins",
			query:       RangeQuery{Lt: Int64(9), Lte: Int64(5)},
			minExisting: 0,
			maxExisting: 9,
			wantStart:   0,
			wantEnd:     6,
		},
		{
			name:        "gt plus one can exceed gte",
			query:       RangeQuery{Gt: Int64(5), Gte: Int64(4)},
			minExisting: 0,
			maxExisting: 9,
			wantStart:   6,
			wantEnd:     10,
		},
		{
			name:        "both sides bounded",
			query:       RangeQuery{Gte: Int64(2), Lte: Int64(4)},
			minExisting: 0,
			maxExisting: 9,
			wantStart:   2,
			wantEnd:     5,
		},
		{
			name:        "empty interval when bounds cross",
			query:       RangeQuery{Gte: Int64(8), Lt: Int64(3)},
			minExisting: 0,
			maxExisting: 9,
			wantStart:   8,
			wantEnd:     3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end := tt.query.Bounds(tt.minExisting, tt.maxExisting)
			if start != tt.wantStart || end != tt.wantEnd {
				t.Errorf("Bounds() = [%d, %d), want [%d, %d)", start, end, tt.wantStart, tt.wantEnd)
			}
		})
	}
}

func TestRangeQuery_NeedsReverse(t *testing.T) {
	tests := []struct {
		name  string
		query RangeQuery
		want  bool
	}{
		{
			name:  "ascending query with ascending results",
			query: RangeQuery{},
			want:  false,
		},
		{
			name:  "descending query with descending results",
			query: RangeQuery{QueryDescending: true, ResultsDescending: true},
			want:  false,
		},
		{
			name:  "descending query with ascending results",
			query: RangeQuery{QueryDescending: true},
			want:  true,
		},
		{
			name:  "ascending query with descending results",
			query: RangeQuery{ResultsDescending: true},
			want:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.query.NeedsReverse(); got != tt.want {
				t.Errorf("NeedsReverse() = %v, want %v", got, tt.want)
			}
		})
	}
}
