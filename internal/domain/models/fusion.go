package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// SignalType enumerates the detector outputs the fusion engine knows how to weigh.
type SignalType string

const (
	SignalPriceMomentum     SignalType = "price_momentum"
	SignalVolumeSpike       SignalType = "volume_spike"
	SignalTechnicalBreakout SignalType = "technical_breakout"
	SignalOptionsFlow       SignalType = "options_flow"
	SignalDarkPool          SignalType = "dark_pool"
	SignalNewsSentiment     SignalType = "news_sentiment"
	SignalSocialSentiment   SignalType = "social_sentiment"
	SignalEarningsSurprise  SignalType = "earnings_surprise"
	SignalAnalystUpgrade    SignalType = "analyst_upgrade"
	SignalAnalystDowngrade  SignalType = "analyst_downgrade"
	SignalShortInterest     SignalType = "short_interest"
	SignalInsiderBuying     SignalType = "insider_buying"
	SignalInsiderSelling    SignalType = "insider_selling"
	SignalCongressTrade     SignalType = "congress_trade"
	SignalHedgeFundPosition SignalType = "hedge_fund_position"
)

// SignalTypes lists every known signal type in a stable order.
var SignalTypes = []SignalType{
	SignalPriceMomentum, SignalVolumeSpike, SignalTechnicalBreakout, SignalOptionsFlow,
	SignalDarkPool, SignalNewsSentiment, SignalSocialSentiment, SignalEarningsSurprise,
	SignalAnalystUpgrade, SignalAnalystDowngrade, SignalShortInterest, SignalInsiderBuying,
	SignalInsiderSelling, SignalCongressTrade, SignalHedgeFundPosition,
}

// Valid reports whether t is a known signal type.
func (t SignalType) Valid() bool {
	for _, x := range SignalTypes {
		if x == t {
			return true
		}
	}
	return false
}

// Direction is the directional call of a signal.
type Direction string

const (
	Bullish Direction = "bullish"
	Bearish Direction = "bearish"
	Neutral Direction = "neutral"
)

// Valid reports whether d is a known direction.
func (d Direction) Valid() bool {
	return d == Bullish || d == Bearish || d == Neutral
}

// Horizon buckets how long a fused conclusion is expected to play out.
type Horizon string

const (
	HorizonShort  Horizon = "short"
	HorizonMedium Horizon = "medium"
	HorizonLong   Horizon = "long"
)

// Signal is one detector output about a subject.
type Signal struct {
	ID        string            `json:"id,omitempty"`
	Source    string            `json:"source" validate:"required"`
	Type      SignalType        `json:"type" validate:"required"`
	Subject   string            `json:"subject" validate:"required"`
	Direction Direction         `json:"direction" validate:"required,oneof=bullish bearish neutral"`
	Strength  float64           `json:"strength" validate:"gte=0,lte=1"`
	CreatedAt time.Time         `json:"created_at"`
	ExpiresAt time.Time         `json:"expires_at,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Expired reports whether the signal is no longer active at now.
func (s Signal) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// FusedSignal is the derived conclusion for a subject whose active signals agree.
type FusedSignal struct {
	Subject     string          `json:"subject"`
	Direction   Direction       `json:"direction"`
	Conviction  float64         `json:"conviction"`
	SignalCount int             `json:"signal_count"`
	Sources     []string        `json:"sources"`
	Types       []SignalType    `json:"types"`
	Entry       decimal.Decimal `json:"entry"`
	Target      decimal.Decimal `json:"target"`
	Stop        decimal.Decimal `json:"stop"`
	Horizon     Horizon         `json:"horizon"`
	CreatedAt   time.Time       `json:"created_at"`
}

// PerformanceRecord tracks how often a signal type called the outcome right.
type PerformanceRecord struct {
	Type    SignalType `json:"type"`
	Correct int        `json:"correct"`
	Total   int        `json:"total"`
	Weight  float64    `json:"weight"`
}

// Accuracy is Correct/Total, or 0 before any outcome was recorded.
func (p PerformanceRecord) Accuracy() float64 {
	if p.Total == 0 {
		return 0
	}
	return float64(p.Correct) / float64(p.Total)
}
