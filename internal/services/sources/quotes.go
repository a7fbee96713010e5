package sources

import (
	"context"
	"fmt"

	"FinFuse/internal/domain/models"
	"FinFuse/internal/service/provider"

	"golang.org/x/sync/errgroup"
)

// QuoteGetter is the part of the quote service the quotes source needs.
type QuoteGetter interface {
	GetQuote(ctx context.Context, symbol string) provider.Result[*models.NormalizedQuote]
}

// Quotes reports a subject as positive when its session change is above zero.
type Quotes struct {
	quotes      QuoteGetter
	priority    int
	maxParallel int
}

// NewQuotes creates the quotes source. maxParallel bounds concurrent lookups
// within one batch.
func NewQuotes(q QuoteGetter, priority, maxParallel int) *Quotes {
	if maxParallel <= 0 {
		maxParallel = 4
	}
	return &Quotes{quotes: q, priority: priority, maxParallel: maxParallel}
}

func (s *Quotes) Name() string  { return "quotes" }
func (s *Quotes) Priority() int { return s.priority }

// Collect looks up every subject. Subjects with no quote are left out; the
// batch fails only when none of them produced one.
func (s *Quotes) Collect(ctx context.Context, subjects []string) ([]models.Indication, error) {
	found := make([]*models.Indication, len(subjects))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxParallel)
	for i, subject := range subjects {
		g.Go(func() error {
			res := s.quotes.GetQuote(gctx, subject)
			if res.Unavailable || res.Value == nil {
				return nil
			}
			q := res.Value
			found[i] = &models.Indication{Subject: subject, Positive: q.Positive(), Value: q.ChangePercent}
			return nil
		})
	}
	_ = g.Wait()

	out := make([]models.Indication, 0, len(subjects))
	for _, ind := range found {
		if ind != nil {
			out = append(out, *ind)
		}
	}
	if len(out) == 0 && len(subjects) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("quotes: %w", provider.ErrNoData)
	}
	return out, nil
}
