package reconcile

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Record is one stock decrement that failed after its purchase was already
// persisted, kept for operator reconciliation.
type Record struct {
	EventID    string
	PurchaseID string
	ProductID  string
	Quantity   int
	Reason     string
}

type Repo struct{ DB *pgxpool.Pool }

func (r *Repo) Insert(ctx context.Context, rec Record) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO stock_reconciliations(event_id, purchase_id, product_id, quantity, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (event_id) DO NOTHING
	`, rec.EventID, rec.PurchaseID, rec.ProductID, rec.Quantity, rec.Reason)
	if err != nil {
		return fmt.Errorf("insert reconciliation record: %w", err)
	}
	return nil
}
