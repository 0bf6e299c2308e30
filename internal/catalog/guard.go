package catalog

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/clothy-store/checkout-service/internal/redisx"
)

type ProductFinder interface {
	FindByID(ctx context.Context, id string) (Product, error)
}

// StockGuard answers the pre-checkout "is there enough stock" question.
// The answer is advisory UI feedback only: confirmation relies on the atomic
// conditional decrement, never on this check.
type StockGuard struct {
	Finder ProductFinder
	Redis  *redis.Client
}

func (g *StockGuard) HasStock(ctx context.Context, productID string, qty int) (bool, error) {
	key := fmt.Sprintf(redisx.KeyProductStock, productID)
	if g.Redis != nil {
		if s, err := g.Redis.Get(ctx, key).Result(); err == nil {
			if n, err := strconv.Atoi(s); err == nil {
				return n >= qty, nil
			}
		}
	}

	p, err := g.Finder.FindByID(ctx, productID)
	if err != nil {
		return false, err
	}
	if g.Redis != nil {
		_ = g.Redis.Set(ctx, key, strconv.Itoa(p.StorageQuantity), redisx.TTLProductStock).Err()
	}
	return p.StorageQuantity >= qty, nil
}
