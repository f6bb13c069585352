package model

import (
	"encoding/json"
	"errors"
	"sort"

	"github.com/shopspring/decimal"
)

// Observation is a single dated value of a series. Value is invalid (null)
// when the provider sent something that is not a number.
type Observation struct {
	Date  Date
	Value decimal.NullDecimal
}

// NewObservation returns a valid observation for v.
func NewObservation(d Date, v decimal.Decimal) Observation {
	return Observation{Date: d, Value: decimal.NewNullDecimal(v)}
}

type observationJSON struct {
	Date  Date             `json:"Date"`
	Value *json.RawMessage `json:"Value"`
}

// MarshalJSON writes {"Date":"YYYY-MM-DD","Value":number|null}.
func (o Observation) MarshalJSON() ([]byte, error) {
	raw := json.RawMessage("null")
	if o.Value.Valid {
		raw = json.RawMessage(o.Value.Decimal.String())
	}
	return json.Marshal(observationJSON{Date: o.Date, Value: &raw})
}

var errMissingDate = errors.New("observation without Date")

// UnmarshalJSON accepts numbers, numeric strings and null for Value.
// A row without a Date (including a null row) is rejected.
func (o *Observation) UnmarshalJSON(data []byte) error {
	var aux observationJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.Date.IsZero() {
		return errMissingDate
	}
	o.Date = aux.Date
	o.Value = decimal.NullDecimal{}
	if aux.Value == nil {
		return nil
	}
	return o.Value.UnmarshalJSON(*aux.Value)
}

// Table is an ordered sequence of observations for one series.
type Table []Observation

// MaxDate returns the latest date in the table; ok is false for an empty table.
func (t Table) MaxDate() (max Date, ok bool) {
	for _, o := range t {
		if !ok || o.Date.After(max) {
			max, ok = o.Date, true
		}
	}
	return max, ok
}

// SortByDate sorts the table in place, oldest first.
func (t Table) SortByDate() {
	sort.SliceStable(t, func(i, j int) bool { return t[i].Date.Before(t[j].Date) })
}

// Tail returns the last n rows.
func (t Table) Tail(n int) Table {
	if n >= len(t) {
		return t
	}
	return t[len(t)-n:]
}

// Latest returns the most recent observation holding a value.
func (t Table) Latest() (Observation, bool) {
	for i := len(t) - 1; i >= 0; i-- {
		if t[i].Value.Valid {
			return t[i], true
		}
	}
	return Observation{}, false
}

// Snapshot maps a logical series name to its accumulated table.
type Snapshot map[string]Table

// Names returns the snapshot keys in sorted order.
func (s Snapshot) Names() []string {
	names := make([]string, 0, len(s))
	for n := range s {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// DerivedObservation carries the min-max percentage alongside the raw value.
type DerivedObservation struct {
	Observation
	ValuePercent decimal.NullDecimal
}

func (d DerivedObservation) MarshalJSON() ([]byte, error) {
	base, err := d.Observation.MarshalJSON()
	if err != nil {
		return nil, err
	}
	pct := "null"
	if d.ValuePercent.Valid {
		pct = d.ValuePercent.Decimal.StringFixed(2)
	}
	// splice Value_Percent into the observation object
	out := append(base[:len(base)-1], []byte(`,"Value_Percent":`+pct+`}`)...)
	return out, nil
}

// SeriesSpec ties a provider series key to the logical name it is stored under.
type SeriesSpec struct {
	Name     string `yaml:"name" json:"name"`
	Key      string `yaml:"key" json:"key"`
	Title    string `yaml:"title" json:"title"`
	Provider string `yaml:"provider" json:"provider,omitempty"` // "fred" (default) or "markets"
	Percent  bool   `yaml:"percent" json:"percent"`
}
