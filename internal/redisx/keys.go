package redisx

import "time"

const (
	// Idempotency for checkout confirmation:
	// idem:checkout:confirm:{user_id}:{payment_method} -> purchase_id
	KeyIdemConfirm = "idem:checkout:confirm:%s:%s"

	// Advisory stock cache for the pre-checkout product check:
	// stock:{product_id} -> storage_quantity
	KeyProductStock = "stock:%s"

	// External payment customer bound to a user:
	// pay:customer:{user_id} -> gateway customer id
	KeyPaymentCustomer = "pay:customer:%s"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLIdempotency  = 24 * time.Hour
	TTLProductStock = 30 * time.Second
	TTLDedup        = 48 * time.Hour
)
