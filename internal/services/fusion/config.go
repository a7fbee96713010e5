package fusion

import (
	"time"

	"FinFuse/internal/domain/models"
)

// Config holds every tunable of the engine. The bonus values are heuristics
// and are kept configurable rather than derived.
type Config struct {
	DefaultExpiry    time.Duration `yaml:"default_expiry" default:"168h"`
	MinSignals       int           `yaml:"min_signals" default:"1" validate:"gte=1"`
	DirectionalRatio float64       `yaml:"directional_ratio" default:"2" validate:"gt=0"`

	SourceBonusPer float64 `yaml:"source_bonus_per" default:"0.05"`
	SourceBonusCap float64 `yaml:"source_bonus_cap" default:"0.2"`
	TypeBonusPer   float64 `yaml:"type_bonus_per" default:"0.03"`
	TypeBonusCap   float64 `yaml:"type_bonus_cap" default:"0.15"`
	// HighValueBonus is added once per present type.
	HighValueBonus map[models.SignalType]float64 `yaml:"high_value_bonus"`

	// AdaptAfter is the number of outcomes before a type's weight starts adapting.
	AdaptAfter int `yaml:"adapt_after" default:"10" validate:"gte=1"`
	// AdaptRate is the share of observed accuracy blended into the weight per outcome.
	AdaptRate float64 `yaml:"adapt_rate" default:"0.1" validate:"gte=0,lte=1"`

	TargetBase  float64 `yaml:"target_base" default:"0.05"`
	TargetScale float64 `yaml:"target_scale" default:"0.10"`
	StopRatio   float64 `yaml:"stop_ratio" default:"0.5"`

	PriceTimeout time.Duration `yaml:"price_timeout" default:"5s"`
}

// DefaultConfig returns the stock settings.
func DefaultConfig() Config {
	return Config{
		DefaultExpiry:    7 * 24 * time.Hour,
		MinSignals:       1,
		DirectionalRatio: 2,
		SourceBonusPer:   0.05,
		SourceBonusCap:   0.2,
		TypeBonusPer:     0.03,
		TypeBonusCap:     0.15,
		HighValueBonus:   DefaultHighValueBonus(),
		AdaptAfter:       10,
		AdaptRate:        0.1,
		TargetBase:       0.05,
		TargetScale:      0.10,
		StopRatio:        0.5,
		PriceTimeout:     5 * time.Second,
	}
}

// DefaultHighValueBonus are the fixed bonuses for types that historically lead price.
func DefaultHighValueBonus() map[models.SignalType]float64 {
	return map[models.SignalType]float64{
		models.SignalInsiderBuying:     0.10,
		models.SignalCongressTrade:     0.08,
		models.SignalHedgeFundPosition: 0.07,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.DefaultExpiry <= 0 {
		c.DefaultExpiry = d.DefaultExpiry
	}
	if c.MinSignals <= 0 {
		c.MinSignals = d.MinSignals
	}
	if c.DirectionalRatio <= 0 {
		c.DirectionalRatio = d.DirectionalRatio
	}
	if c.HighValueBonus == nil {
		c.HighValueBonus = d.HighValueBonus
	}
	if c.AdaptAfter <= 0 {
		c.AdaptAfter = d.AdaptAfter
	}
	if c.PriceTimeout <= 0 {
		c.PriceTimeout = d.PriceTimeout
	}
	return c
}
