package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Ledger owns the purchase records and their status lifecycle.
type Ledger struct{ DB *pgxpool.Pool }

const purchaseColumns = `id, user_id, status, payment_method, total_bill, package_date, arrive_date, billing, created_at, updated_at`

// Create assigns an id and timestamps, persists the purchase with its lines in
// one transaction and returns the stored record.
func (l *Ledger) Create(ctx context.Context, p Purchase) (Purchase, error) {
	if p.UserID == "" {
		return Purchase{}, fmt.Errorf("invalid purchase: missing user id")
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	billing, err := json.Marshal(p.Billing)
	if err != nil {
		return Purchase{}, fmt.Errorf("encode billing details: %w", err)
	}

	tx, err := l.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Purchase{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO purchases(id, user_id, status, payment_method, total_bill, package_date, arrive_date, billing, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb, $9, $9)
	`, p.ID, p.UserID, p.Status, p.PaymentMethod, p.TotalBill, p.PackageDate, p.ArriveDate, billing, now)
	if err != nil {
		return Purchase{}, fmt.Errorf("insert purchase: %w", err)
	}

	for i, ln := range p.Lines {
		_, err = tx.Exec(ctx, `
			INSERT INTO purchase_lines(purchase_id, position, product_id, color, quantity)
			VALUES ($1, $2, $3, $4, $5)
		`, p.ID, i, ln.ProductID, ln.Color, ln.Quantity)
		if err != nil {
			return Purchase{}, fmt.Errorf("insert purchase line: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return Purchase{}, fmt.Errorf("commit purchase: %w", err)
	}
	return p, nil
}

func (l *Ledger) Get(ctx context.Context, id string) (Purchase, error) {
	row := l.DB.QueryRow(ctx, `SELECT `+purchaseColumns+` FROM purchases WHERE id = $1`, id)
	p, err := scanPurchase(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Purchase{}, ErrPurchaseNotFound
		}
		return Purchase{}, fmt.Errorf("get purchase: %w", err)
	}
	if err := l.attachLines(ctx, []*Purchase{&p}); err != nil {
		return Purchase{}, err
	}
	return p, nil
}

// ListForUser returns all purchases of one user, newest first.
func (l *Ledger) ListForUser(ctx context.Context, userID string) ([]Purchase, error) {
	rows, err := l.DB.Query(ctx, `
		SELECT `+purchaseColumns+` FROM purchases
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list purchases for user: %w", err)
	}
	return l.collect(ctx, rows)
}

// ListAll is the reporting/CMS query: free-text filter over status, payment
// method and billing details, newest first. limit 0 means no explicit cap.
func (l *Ledger) ListAll(ctx context.Context, search string, offset, limit int) ([]Purchase, int, error) {
	where := `($1 = '' OR user_id = $1 OR status ILIKE '%' || $1 || '%' OR payment_method ILIKE '%' || $1 || '%' OR billing::text ILIKE '%' || $1 || '%')`

	var total int
	if err := l.DB.QueryRow(ctx, `SELECT COUNT(*) FROM purchases WHERE `+where, search).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count purchases: %w", err)
	}

	rows, err := l.DB.Query(ctx, `
		SELECT `+purchaseColumns+` FROM purchases
		WHERE `+where+`
		ORDER BY created_at DESC
		LIMIT NULLIF($3, 0) OFFSET $2
	`, search, offset, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("list purchases: %w", err)
	}
	items, err := l.collect(ctx, rows)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// UpdatePatch carries the fields of a purchase update. Every present field
// overwrites the stored value, including overwriting with an empty value.
type UpdatePatch struct {
	Status      *Status
	ArriveDate  *time.Time
	PackageDate *time.Time
	TotalBill   *decimal.Decimal
	Billing     *BillingDetails
}

// Update applies the patch. Status changes must follow
// PLACED -> SHIPPING -> ARRIVED or PLACED -> CANCELLED.
func (l *Ledger) Update(ctx context.Context, id string, patch UpdatePatch) (Purchase, error) {
	tx, err := l.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Purchase{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var current Status
	err = tx.QueryRow(ctx, `SELECT status FROM purchases WHERE id = $1 FOR UPDATE`, id).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return Purchase{}, ErrPurchaseNotFound
	}
	if err != nil {
		return Purchase{}, fmt.Errorf("lock purchase: %w", err)
	}

	set := []string{"updated_at = NOW()"}
	args := []any{id}
	add := func(col string, v any) {
		args = append(args, v)
		set = append(set, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if patch.Status != nil && *patch.Status != current {
		if !patch.Status.Valid() || !CanTransition(current, *patch.Status) {
			return Purchase{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, *patch.Status)
		}
		add("status", *patch.Status)
	}
	if patch.ArriveDate != nil {
		add("arrive_date", *patch.ArriveDate)
	}
	if patch.PackageDate != nil {
		add("package_date", *patch.PackageDate)
	}
	if patch.TotalBill != nil {
		add("total_bill", *patch.TotalBill)
	}
	if patch.Billing != nil {
		billing, err := json.Marshal(patch.Billing)
		if err != nil {
			return Purchase{}, fmt.Errorf("encode billing details: %w", err)
		}
		add("billing", billing)
	}

	_, err = tx.Exec(ctx, `UPDATE purchases SET `+strings.Join(set, ", ")+` WHERE id = $1`, args...)
	if err != nil {
		return Purchase{}, fmt.Errorf("update purchase: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return Purchase{}, fmt.Errorf("commit update: %w", err)
	}
	return l.Get(ctx, id)
}

// SetLineRating writes the buyer's rating on the unique line matching
// product_id and color.
func (l *Ledger) SetLineRating(ctx context.Context, purchaseID, productID, color string, rate int) (Purchase, error) {
	ct, err := l.DB.Exec(ctx, `
		UPDATE purchase_lines SET rating = $4
		WHERE purchase_id = $1 AND product_id = $2 AND color = $3
	`, purchaseID, productID, color, rate)
	if err != nil {
		return Purchase{}, fmt.Errorf("set line rating: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return Purchase{}, l.lineMissing(ctx, purchaseID)
	}
	return l.Get(ctx, purchaseID)
}

// MarkLineCounted flips the per-line counted flag used to keep the product
// aggregate idempotent. It reports true only for the first successful flip.
func (l *Ledger) MarkLineCounted(ctx context.Context, purchaseID, productID, color string) (bool, error) {
	ct, err := l.DB.Exec(ctx, `
		UPDATE purchase_lines SET rating_counted = TRUE
		WHERE purchase_id = $1 AND product_id = $2 AND color = $3 AND NOT rating_counted
	`, purchaseID, productID, color)
	if err != nil {
		return false, fmt.Errorf("mark line counted: %w", err)
	}
	if ct.RowsAffected() == 1 {
		return true, nil
	}

	var counted bool
	err = l.DB.QueryRow(ctx, `
		SELECT rating_counted FROM purchase_lines
		WHERE purchase_id = $1 AND product_id = $2 AND color = $3
	`, purchaseID, productID, color).Scan(&counted)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, l.lineMissing(ctx, purchaseID)
	}
	if err != nil {
		return false, fmt.Errorf("check line counted: %w", err)
	}
	return false, nil
}

// UnmarkLineCounted is the compensation for an aggregate update that failed
// after the flag was flipped, so the caller's retry counts the line again.
func (l *Ledger) UnmarkLineCounted(ctx context.Context, purchaseID, productID, color string) error {
	_, err := l.DB.Exec(ctx, `
		UPDATE purchase_lines SET rating_counted = FALSE
		WHERE purchase_id = $1 AND product_id = $2 AND color = $3
	`, purchaseID, productID, color)
	if err != nil {
		return fmt.Errorf("unmark line counted: %w", err)
	}
	return nil
}

func (l *Ledger) lineMissing(ctx context.Context, purchaseID string) error {
	var one int
	err := l.DB.QueryRow(ctx, `SELECT 1 FROM purchases WHERE id = $1`, purchaseID).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrPurchaseNotFound
	}
	if err != nil {
		return fmt.Errorf("check purchase: %w", err)
	}
	return ErrLineNotFound
}

func (l *Ledger) collect(ctx context.Context, rows pgx.Rows) ([]Purchase, error) {
	defer rows.Close()

	var out []Purchase
	for rows.Next() {
		p, err := scanPurchase(rows)
		if err != nil {
			return nil, fmt.Errorf("scan purchase: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	refs := make([]*Purchase, len(out))
	for i := range out {
		refs[i] = &out[i]
	}
	if err := l.attachLines(ctx, refs); err != nil {
		return nil, err
	}
	return out, nil
}

func (l *Ledger) attachLines(ctx context.Context, purchases []*Purchase) error {
	if len(purchases) == 0 {
		return nil
	}
	ids := make([]string, 0, len(purchases))
	byID := make(map[string]*Purchase, len(purchases))
	for _, p := range purchases {
		ids = append(ids, p.ID)
		byID[p.ID] = p
	}

	rows, err := l.DB.Query(ctx, `
		SELECT purchase_id, product_id, color, quantity, rating
		FROM purchase_lines
		WHERE purchase_id = ANY($1)
		ORDER BY purchase_id, position
	`, ids)
	if err != nil {
		return fmt.Errorf("load purchase lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			pid string
			ln  PurchaseLine
		)
		if err := rows.Scan(&pid, &ln.ProductID, &ln.Color, &ln.Quantity, &ln.Rating); err != nil {
			return fmt.Errorf("scan purchase line: %w", err)
		}
		if p, ok := byID[pid]; ok {
			p.Lines = append(p.Lines, ln)
		}
	}
	return rows.Err()
}

func scanPurchase(row pgx.Row) (Purchase, error) {
	var (
		p       Purchase
		billing []byte
	)
	err := row.Scan(&p.ID, &p.UserID, &p.Status, &p.PaymentMethod, &p.TotalBill,
		&p.PackageDate, &p.ArriveDate, &billing, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return Purchase{}, err
	}
	if len(billing) > 0 {
		if err := json.Unmarshal(billing, &p.Billing); err != nil {
			return Purchase{}, fmt.Errorf("decode billing details: %w", err)
		}
	}
	return p, nil
}
