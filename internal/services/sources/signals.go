package sources

import (
	"context"

	"FinFuse/internal/domain/models"
)

// ActiveSignals is the read side of the fusion engine.
type ActiveSignals interface {
	ActiveSignals(subject string) []models.Signal
}

// Signals turns the engine's active signals into one indication per signal.
// Bullish signals are positive; neutral ones carry no vote and are skipped.
type Signals struct {
	engine   ActiveSignals
	priority int
}

func NewSignals(engine ActiveSignals, priority int) *Signals {
	return &Signals{engine: engine, priority: priority}
}

func (s *Signals) Name() string  { return "signals" }
func (s *Signals) Priority() int { return s.priority }

func (s *Signals) Collect(ctx context.Context, subjects []string) ([]models.Indication, error) {
	var out []models.Indication
	for _, subject := range subjects {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, sig := range s.engine.ActiveSignals(subject) {
			if sig.Direction == models.Neutral {
				continue
			}
			out = append(out, models.Indication{
				Subject:  subject,
				Positive: sig.Direction == models.Bullish,
				Value:    sig.Strength,
			})
		}
	}
	return out, nil
}
