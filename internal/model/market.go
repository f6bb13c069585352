package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// IndicesLimit is how many rows of the indices list are shown or sent.
const IndicesLimit = 50

// IndexQuote is one row of the global stock indices list.
type IndexQuote struct {
	Symbol             string              `json:"symbol"`
	Name               string              `json:"name"`
	Country            string              `json:"country,omitempty"`
	Close              decimal.NullDecimal `json:"close"`
	DailyChange        decimal.NullDecimal `json:"daily_change"`
	DailyPercentChange decimal.NullDecimal `json:"daily_percentual_change"`
	LastUpdate         time.Time           `json:"last_update,omitempty"`
}

// IndexBar is a single historical OHLC record for an index.
type IndexBar struct {
	Symbol string              `json:"symbol"`
	Date   Date                `json:"date"`
	Open   decimal.NullDecimal `json:"open"`
	High   decimal.NullDecimal `json:"high"`
	Low    decimal.NullDecimal `json:"low"`
	Close  decimal.NullDecimal `json:"close"`
}
