package checkout

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/clothy-store/checkout-service/internal/redisx"
)

// ConfirmIdempotency remembers recently confirmed checkouts so a client retry
// of the same confirmation does not create a second purchase. Keyed by user
// and payment method reference; the ledger stays the source of truth, this is
// a short-lived guard.
type ConfirmIdempotency struct {
	Redis *redis.Client
}

func (c *ConfirmIdempotency) Seen(ctx context.Context, userID, paymentMethodRef string) (string, bool) {
	key := fmt.Sprintf(redisx.KeyIdemConfirm, userID, paymentMethodRef)
	id, err := c.Redis.Get(ctx, key).Result()
	if err != nil || id == "" {
		return "", false
	}
	return id, true
}

func (c *ConfirmIdempotency) Remember(ctx context.Context, userID, paymentMethodRef, purchaseID string) {
	key := fmt.Sprintf(redisx.KeyIdemConfirm, userID, paymentMethodRef)
	_ = c.Redis.Set(ctx, key, purchaseID, redisx.TTLIdempotency).Err()
}
