// Package catalog exposes the product primitives the checkout core needs:
// lookup, the atomic stock decrement and the atomic rating accumulate.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	ErrProductNotFound   = errors.New("product not found")
	ErrInsufficientStock = errors.New("insufficient stock")
)

type Rating struct {
	Rate      decimal.Decimal `json:"rate"`
	NumOfRate int             `json:"num_of_rate"`
}

type Product struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	Price           decimal.Decimal `json:"price"`
	StorageQuantity int             `json:"storage_quantity"`
	Rating          Rating          `json:"rating"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Reviewer is one deduplicated entry of a product's review set.
type Reviewer struct {
	UserID string
	Name   string
	Email  string
	Phone  string
}

type Repo struct{ DB *pgxpool.Pool }

const productColumns = `id, name, price, storage_quantity, rating_rate, rating_count, created_at, updated_at`

func (r *Repo) FindByID(ctx context.Context, id string) (Product, error) {
	p, err := scanProduct(r.DB.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrProductNotFound
	}
	if err != nil {
		return Product{}, fmt.Errorf("find product by id: %w", err)
	}
	return p, nil
}

// DecrementStock applies storage_quantity -= qty as one conditional update.
// Two concurrent confirmations cannot drive the stock negative: the guard is
// part of the same statement, not a read-then-write in application code.
func (r *Repo) DecrementStock(ctx context.Context, id string, qty int) (Product, error) {
	if qty <= 0 {
		return Product{}, fmt.Errorf("invalid decrement quantity %d", qty)
	}
	p, err := scanProduct(r.DB.QueryRow(ctx, `
		UPDATE products
		SET storage_quantity = storage_quantity - $2, updated_at = NOW()
		WHERE id = $1 AND storage_quantity >= $2
		RETURNING `+productColumns, id, qty))
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Product{}, fmt.Errorf("decrement stock: %w", err)
	}

	var one int
	err = r.DB.QueryRow(ctx, `SELECT 1 FROM products WHERE id = $1`, id).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrProductNotFound
	}
	if err != nil {
		return Product{}, fmt.Errorf("check product: %w", err)
	}
	return Product{}, ErrInsufficientStock
}

// AccumulateRating folds one new rate into the product's running average in a
// single statement, so concurrent raters serialize at the storage layer:
//
//	rate'  = rate                       if n == 0
//	       = (rate*n + new) / (n + 1)   otherwise
//	n'     = n + 1
func (r *Repo) AccumulateRating(ctx context.Context, id string, rate int) (Rating, error) {
	var out Rating
	err := r.DB.QueryRow(ctx, `
		UPDATE products
		SET rating_rate = CASE
				WHEN rating_count = 0 THEN $2::numeric
				ELSE (rating_rate * rating_count + $2) / (rating_count + 1)
			END,
			rating_count = rating_count + 1,
			updated_at = NOW()
		WHERE id = $1
		RETURNING rating_rate, rating_count
	`, id, rate).Scan(&out.Rate, &out.NumOfRate)
	if errors.Is(err, pgx.ErrNoRows) {
		return Rating{}, ErrProductNotFound
	}
	if err != nil {
		return Rating{}, fmt.Errorf("accumulate rating: %w", err)
	}
	return out, nil
}

// AddReviewer appends the reviewer to the product's review set, deduplicated
// by the full tuple.
func (r *Repo) AddReviewer(ctx context.Context, productID string, rev Reviewer) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO product_reviews(product_id, user_id, name, email, phone)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT DO NOTHING
	`, productID, rev.UserID, rev.Name, rev.Email, rev.Phone)
	if err != nil {
		return fmt.Errorf("add reviewer: %w", err)
	}
	return nil
}

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Name, &p.Price, &p.StorageQuantity,
		&p.Rating.Rate, &p.Rating.NumOfRate, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}
