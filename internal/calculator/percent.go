package calculator

import (
	"EconDash/internal/model"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// NormalizeToPercent min-max scales the table's values onto 0..100 and
// returns them as Value_Percent alongside each row. When every value is equal
// (or there are none) the whole column is 0. Null values stay null otherwise.
// The input is not modified.
func NormalizeToPercent(t model.Table) []model.DerivedObservation {
	out := make([]model.DerivedObservation, len(t))
	min, max, ok := MinMax(t)
	flat := !ok || min.Equal(max)
	span := max.Sub(min)

	for i, o := range t {
		out[i].Observation = o
		switch {
		case flat:
			out[i].ValuePercent = decimal.NewNullDecimal(decimal.Zero)
		case o.Value.Valid:
			pct := hundred.Mul(o.Value.Decimal.Sub(min)).Div(span)
			out[i].ValuePercent = decimal.NewNullDecimal(pct)
		}
	}
	return out
}
