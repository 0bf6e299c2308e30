package catalog

import (
	"context"
	"fmt"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/clothy-store/checkout-service/internal/redisx"
)

type finderStub struct {
	calls   int
	product Product
	err     error
}

func (f *finderStub) FindByID(context.Context, string) (Product, error) {
	f.calls++
	if f.err != nil {
		return Product{}, f.err
	}
	return f.product, nil
}

func newGuard(t *testing.T, finder *finderStub) (*StockGuard, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return &StockGuard{Finder: finder, Redis: rdb}, mr
}

func TestHasStockCacheMiss(t *testing.T) {
	finder := &finderStub{product: Product{ID: "p1", StorageQuantity: 5}}
	guard, mr := newGuard(t, finder)

	ok, err := guard.HasStock(context.Background(), "p1", 3)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 1, finder.calls)

	cached, err := mr.Get(fmt.Sprintf(redisx.KeyProductStock, "p1"))
	require.NoError(t, err)
	require.Equal(t, "5", cached)
}

func TestHasStockCacheHit(t *testing.T) {
	finder := &finderStub{product: Product{ID: "p1", StorageQuantity: 5}}
	guard, mr := newGuard(t, finder)
	require.NoError(t, mr.Set(fmt.Sprintf(redisx.KeyProductStock, "p1"), "2"))

	ok, err := guard.HasStock(context.Background(), "p1", 3)
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, 0, finder.calls, "cached answer must not hit the catalog")
}

func TestHasStockInsufficient(t *testing.T) {
	finder := &finderStub{product: Product{ID: "p1", StorageQuantity: 2}}
	guard, _ := newGuard(t, finder)

	ok, err := guard.HasStock(context.Background(), "p1", 3)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestHasStockProductNotFound(t *testing.T) {
	finder := &finderStub{err: ErrProductNotFound}
	guard, _ := newGuard(t, finder)

	_, err := guard.HasStock(context.Background(), "missing", 1)
	require.ErrorIs(t, err, ErrProductNotFound)
}
