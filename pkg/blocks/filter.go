package blocks

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dukex/leadflow/pkg/dataset"
	"github.com/dukex/leadflow/pkg/models"
)

// runFilter keeps the rows matching the operator, preserving source order and
// renumbering contiguously. Operator semantics:
//
//   - contains/not_contains: case-sensitive substring over the cell's text
//     form; nil cells never match contains, so they always match not_contains.
//   - equals/not_equals: numeric comparison when the filter value parses as a
//     number, exact string comparison otherwise. The silent fallback mirrors
//     the engine's historical behavior.
//   - gt/gte/lt/lte: the filter value must be numeric or the block fails;
//     cells that do not coerce to a number are excluded, not errors.
func runFilter(params models.FilterParams, ds *dataset.Dataset) (*dataset.Dataset, error) {
	if !ds.HasColumn(params.Column) {
		return nil, fmt.Errorf("%w: %q", ErrColumnNotFound, params.Column)
	}

	var numericValue float64

	switch params.Operator {
	case models.FilterOperatorGT, models.FilterOperatorGTE,
		models.FilterOperatorLT, models.FilterOperatorLTE:
		parsed, err := strconv.ParseFloat(params.Value, 64)
		if err != nil {
			return nil, fmt.Errorf("filter operator %q requires a numeric value, got %q",
				params.Operator, params.Value)
		}

		numericValue = parsed
	}

	mask := make([]bool, ds.Len())

	for i := range mask {
		cell, _ := ds.Cell(i, params.Column)
		mask[i] = matchCell(cell, params.Operator, params.Value, numericValue)
	}

	return ds.FilterRows(mask), nil
}

func matchCell(cell any, operator models.FilterOperator, value string, numericValue float64) bool {
	switch operator {
	case models.FilterOperatorContains:
		return cell != nil && strings.Contains(dataset.CellString(cell), value)
	case models.FilterOperatorNotContains:
		return cell == nil || !strings.Contains(dataset.CellString(cell), value)
	case models.FilterOperatorEquals:
		return equalsMatch(cell, value)
	case models.FilterOperatorNotEquals:
		return !equalsMatch(cell, value)
	case models.FilterOperatorGT:
		f, ok := dataset.CellFloat(cell)

		return ok && f > numericValue
	case models.FilterOperatorGTE:
		f, ok := dataset.CellFloat(cell)

		return ok && f >= numericValue
	case models.FilterOperatorLT:
		f, ok := dataset.CellFloat(cell)

		return ok && f < numericValue
	case models.FilterOperatorLTE:
		f, ok := dataset.CellFloat(cell)

		return ok && f <= numericValue
	default:
		return false
	}
}

// equalsMatch tries numeric equality first and falls back to exact string
// equality when the filter value is not numeric-parseable. Nil cells equal
// nothing.
func equalsMatch(cell any, value string) bool {
	if cell == nil {
		return false
	}

	if target, err := strconv.ParseFloat(value, 64); err == nil {
		f, ok := dataset.CellFloat(cell)

		return ok && f == target
	}

	return dataset.CellString(cell) == value
}
