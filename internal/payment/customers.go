package payment

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/clothy-store/checkout-service/internal/redisx"
)

// CustomerDirectory binds users to gateway customer identities, creating them
// lazily. The mapping is stored without expiry: the gateway customer lives as
// long as the user does.
type CustomerDirectory struct {
	Redis   *redis.Client
	Gateway Gateway
}

func (d *CustomerDirectory) Ensure(ctx context.Context, userID string) (string, error) {
	key := fmt.Sprintf(redisx.KeyPaymentCustomer, userID)
	if id, err := d.Redis.Get(ctx, key).Result(); err == nil && id != "" {
		return id, nil
	}

	id, err := d.Gateway.CreateCustomer(ctx)
	if err != nil {
		return "", fmt.Errorf("create gateway customer: %w", err)
	}
	if err := d.Redis.Set(ctx, key, id, 0).Err(); err != nil {
		return "", fmt.Errorf("store customer mapping: %w", err)
	}
	return id, nil
}
