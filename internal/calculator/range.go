package calculator

import (
	"EconDash/internal/model"

	"github.com/shopspring/decimal"
)

// MinMax scans the non-null values of the table. ok is false when there are none.
func MinMax(t model.Table) (min, max decimal.Decimal, ok bool) {
	for _, o := range t {
		if !o.Value.Valid {
			continue
		}
		v := o.Value.Decimal
		if !ok {
			min, max, ok = v, v, true
			continue
		}
		if v.LessThan(min) {
			min = v
		}
		if v.GreaterThan(max) {
			max = v
		}
	}
	return min, max, ok
}

// Change describes the move between the two most recent valued observations.
type Change struct {
	Latest   model.Observation
	Previous model.Observation
	Delta    decimal.Decimal
	HasPrev  bool
}

// LatestChange returns the latest valued observation and its change from the
// one before. ok is false when the table holds no values.
func LatestChange(t model.Table) (c Change, ok bool) {
	idx := -1
	for i := len(t) - 1; i >= 0; i-- {
		if !t[i].Value.Valid {
			continue
		}
		if idx < 0 {
			idx = i
			c.Latest = t[i]
			ok = true
			continue
		}
		c.Previous = t[i]
		c.HasPrev = true
		c.Delta = c.Latest.Value.Decimal.Sub(t[i].Value.Decimal)
		break
	}
	return c, ok
}
