package models

import "time"

// ProviderUsage is a point-in-time view of one provider's quota state.
type ProviderUsage struct {
	Provider        string     `json:"provider"`
	AvailableTokens float64    `json:"available_tokens"`
	Capacity        float64    `json:"capacity"`
	CallsPerMinute  int        `json:"calls_per_minute"`
	CallsPerDay     int        `json:"calls_per_day,omitempty"`
	CallsPerMonth   int        `json:"calls_per_month,omitempty"`
	CallsLastMinute int        `json:"calls_last_minute"`
	CallsLastDay    int        `json:"calls_last_day"`
	CallsLastMonth  int        `json:"calls_last_month"`
	BlockedUntil    *time.Time `json:"blocked_until,omitempty"`
	Blocked         bool       `json:"blocked"`
}
