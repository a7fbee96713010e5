package fusion

import (
	"math"
	"time"

	"FinFuse/internal/domain/models"
)

// baseWeights is the static prior per type. Negative weight means the type
// tends to precede the opposite of what its direction names.
var baseWeights = map[models.SignalType]float64{
	models.SignalInsiderBuying:     0.9,
	models.SignalCongressTrade:     0.85,
	models.SignalHedgeFundPosition: 0.8,
	models.SignalOptionsFlow:       0.7,
	models.SignalEarningsSurprise:  0.7,
	models.SignalAnalystUpgrade:    0.65,
	models.SignalAnalystDowngrade:  -0.65,
	models.SignalPriceMomentum:     0.6,
	models.SignalDarkPool:          0.6,
	models.SignalTechnicalBreakout: 0.55,
	models.SignalVolumeSpike:       0.5,
	models.SignalShortInterest:     -0.5,
	models.SignalNewsSentiment:     0.4,
	models.SignalSocialSentiment:   0.3,
	models.SignalInsiderSelling:    -0.6,
}

// typeHorizons is the canonical horizon bucket per type.
var typeHorizons = map[models.SignalType]models.Horizon{
	models.SignalPriceMomentum:     models.HorizonShort,
	models.SignalVolumeSpike:       models.HorizonShort,
	models.SignalTechnicalBreakout: models.HorizonShort,
	models.SignalOptionsFlow:       models.HorizonShort,
	models.SignalDarkPool:          models.HorizonShort,
	models.SignalNewsSentiment:     models.HorizonShort,
	models.SignalSocialSentiment:   models.HorizonShort,
	models.SignalEarningsSurprise:  models.HorizonMedium,
	models.SignalAnalystUpgrade:    models.HorizonMedium,
	models.SignalAnalystDowngrade:  models.HorizonMedium,
	models.SignalShortInterest:     models.HorizonMedium,
	models.SignalInsiderBuying:     models.HorizonLong,
	models.SignalInsiderSelling:    models.HorizonLong,
	models.SignalCongressTrade:     models.HorizonLong,
	models.SignalHedgeFundPosition: models.HorizonLong,
}

// BaseWeight returns the static prior for t.
func BaseWeight(t models.SignalType) float64 { return baseWeights[t] }

// WeightTable is a versioned snapshot of the per-type weights. Version is
// bumped on every adaptive update.
type WeightTable struct {
	Version   int                           `json:"version"`
	Weights   map[models.SignalType]float64 `json:"weights"`
	UpdatedAt time.Time                     `json:"updated_at"`
}

func newWeightTable(now time.Time) WeightTable {
	w := make(map[models.SignalType]float64, len(baseWeights))
	for t, v := range baseWeights {
		w[t] = v
	}
	return WeightTable{Version: 1, Weights: w, UpdatedAt: now}
}

func (wt WeightTable) clone() WeightTable {
	w := make(map[models.SignalType]float64, len(wt.Weights))
	for t, v := range wt.Weights {
		w[t] = v
	}
	wt.Weights = w
	return wt
}

// adapt blends the current magnitude with observed accuracy, keeping the
// sign of the base weight.
func adapt(current, base, accuracy, rate float64) float64 {
	mag := (1-rate)*math.Abs(current) + rate*accuracy
	if base < 0 {
		return -mag
	}
	return mag
}
