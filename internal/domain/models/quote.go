package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// NormalizedQuote is the canonical quote record every provider response is
// converted into. ChangePercent is expressed in percent units (1.5 == 1.5%).
type NormalizedQuote struct {
	Symbol        string          `json:"symbol"`
	Price         decimal.Decimal `json:"price"`
	Change        decimal.Decimal `json:"change"`
	ChangePercent float64         `json:"change_percent"`
	Open          decimal.Decimal `json:"open"`
	High          decimal.Decimal `json:"high"`
	Low           decimal.Decimal `json:"low"`
	PrevClose     decimal.Decimal `json:"prev_close"`
	Volume        int64           `json:"volume"`
	Timestamp     time.Time       `json:"timestamp"`
	Source        string          `json:"source"`
}

// Positive reports whether the quote moved up on the session.
func (q NormalizedQuote) Positive() bool { return q.ChangePercent > 0 }
