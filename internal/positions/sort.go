package positions

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rickgao/reya-positions/internal/model"
)

// SortField is a column aggregated rows can be ordered by.
type SortField string

const (
	SortBySymbol SortField = "symbol"
	SortBySize   SortField = "size"
	SortByValue  SortField = "value"
	SortByPrice  SortField = "price"
)

// SortDirection is ascending or descending.
type SortDirection string

const (
	Ascending  SortDirection = "asc"
	Descending SortDirection = "desc"
)

// SortState is the current ordering of a positions view.
type SortState struct {
	Field     SortField
	Direction SortDirection
}

// DefaultSortState orders by symbol ascending.
var DefaultSortState = SortState{Field: SortBySymbol, Direction: Ascending}

// ParseSortField validates a field name.
func ParseSortField(s string) (SortField, error) {
	switch f := SortField(strings.ToLower(s)); f {
	case SortBySymbol, SortBySize, SortByValue, SortByPrice:
		return f, nil
	}
	return "", fmt.Errorf("unknown sort field %q", s)
}

// ParseSortDirection validates a direction name.
func ParseSortDirection(s string) (SortDirection, error) {
	switch d := SortDirection(strings.ToLower(s)); d {
	case Ascending, Descending:
		return d, nil
	}
	return "", fmt.Errorf("unknown sort direction %q", s)
}

// Next returns the state after selecting field: the same field flips
// direction, a different field starts ascending.
func (s SortState) Next(field SortField) SortState {
	if s.Field == field {
		if s.Direction == Ascending {
			return SortState{Field: field, Direction: Descending}
		}
		return SortState{Field: field, Direction: Ascending}
	}
	return SortState{Field: field, Direction: Ascending}
}

// Rows flattens an aggregate map into a slice ordered by symbol.
func Rows(agg map[string]model.AggregatedPosition) []model.AggregatedPosition {
	rows := make([]model.AggregatedPosition, 0, len(agg))
	for _, row := range agg {
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Symbol < rows[j].Symbol })
	return rows
}

// Sort returns a sorted copy of rows. Size sorts by absolute quantity.
// Ties keep their input order.
func Sort(rows []model.AggregatedPosition, state SortState) []model.AggregatedPosition {
	out := make([]model.AggregatedPosition, len(rows))
	copy(out, rows)

	cmp := compareBy(state.Field)
	if cmp == nil {
		return out
	}

	sort.SliceStable(out, func(i, j int) bool {
		c := cmp(out[i], out[j])
		if state.Direction == Descending {
			return c > 0
		}
		return c < 0
	})
	return out
}

func compareBy(field SortField) func(a, b model.AggregatedPosition) int {
	switch field {
	case SortBySymbol:
		return func(a, b model.AggregatedPosition) int { return strings.Compare(a.Symbol, b.Symbol) }
	case SortBySize:
		return func(a, b model.AggregatedPosition) int { return a.Size().Cmp(b.Size()) }
	case SortByValue:
		return func(a, b model.AggregatedPosition) int { return a.PositionValue.Cmp(b.PositionValue) }
	case SortByPrice:
		return func(a, b model.AggregatedPosition) int { return a.MarkPrice.Cmp(b.MarkPrice) }
	}
	return nil
}
