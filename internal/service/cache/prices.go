package cache

import (
	"context"
	"errors"
	"strings"

	pkgcache "FinFuse/pkg/cache"

	"github.com/shopspring/decimal"
)

// PriceSource is the uncached price lookup, normally the quote cascade.
type PriceSource interface {
	Price(ctx context.Context, symbol string) (decimal.Decimal, bool)
}

var errNoPrice = errors.New("no price")

// Prices serves a PriceSource through a short-lived cache so that repeated
// fusions of one subject spend a single provider permit. Misses are not cached.
type Prices struct {
	src   PriceSource
	cache *Cache
}

func NewPrices(src PriceSource, c *Cache) *Prices {
	return &Prices{src: src, cache: c}
}

func PriceKey(symbol string) string {
	return pkgcache.GenerateKey("price", strings.ToUpper(strings.TrimSpace(symbol)))
}

func (p *Prices) Price(ctx context.Context, symbol string) (decimal.Decimal, bool) {
	v, _, err := GetOrLoad(ctx, p.cache, PriceKey(symbol), func(ctx context.Context) (decimal.Decimal, error) {
		price, ok := p.src.Price(ctx, symbol)
		if !ok {
			return decimal.Zero, errNoPrice
		}
		return price, nil
	})
	if err != nil {
		return decimal.Zero, false
	}
	return v, true
}
