// Package reconcile turns failed post-checkout stock decrements into durable
// reconciliation records operators can act on.
package reconcile

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/clothy-store/checkout-service/internal/checkout"
	kafkax "github.com/clothy-store/checkout-service/internal/kafka"
	"github.com/clothy-store/checkout-service/internal/redisx"
)

type Store interface {
	Insert(ctx context.Context, rec Record) error
}

type Service struct {
	Store Store
	Redis *redis.Client
	Log   *zap.Logger
}

// HandleDecrementFailed is the consumer handler for stock.decrement.failed.
// The insert is idempotent by event id; redis dedup is only a fast path.
func (s *Service) HandleDecrementFailed(ctx context.Context, m kafkago.Message) error {
	var env checkout.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return fmt.Errorf("decode envelope: %w", err)
	}
	if env.EventType != checkout.EventStockDecrementFailed {
		return nil
	}

	dkey := fmt.Sprintf(redisx.KeyDedup, "reconciler", env.EventID)
	if exists, _ := redisx.Exists(ctx, s.Redis, dkey); exists {
		return nil
	}

	p, err := kafkax.UnwrapPayload[checkout.DecrementFailedPayload](env.Payload)
	if err != nil {
		return err
	}
	if err := s.Store.Insert(ctx, Record{
		EventID:    env.EventID,
		PurchaseID: p.PurchaseID,
		ProductID:  p.ProductID,
		Quantity:   p.Quantity,
		Reason:     p.Reason,
	}); err != nil {
		return err
	}
	_ = s.Redis.Set(ctx, dkey, "1", redisx.TTLDedup).Err()

	s.Log.Warn("stock reconciliation recorded",
		zap.String("purchase_id", p.PurchaseID),
		zap.String("product_id", p.ProductID),
		zap.Int("quantity", p.Quantity),
		zap.String("reason", p.Reason))
	return nil
}
