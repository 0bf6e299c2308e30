// Package userdir is the read-only view of the user directory the checkout
// core depends on: user identity plus the current cart. Carts are mutated by
// the storefront service, never here.
package userdir

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var ErrUserNotFound = errors.New("user not found")

type CartLine struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Color     string `json:"color"`
}

type User struct {
	ID        string
	Username  string
	Email     string
	Phone     string
	CartTotal decimal.Decimal
	Cart      []CartLine
}

type Repo struct{ DB *pgxpool.Pool }

func (r *Repo) FindByID(ctx context.Context, id string) (User, error) {
	var (
		u    User
		cart []byte
	)
	err := r.DB.QueryRow(ctx, `
		SELECT id, username, email, COALESCE(phone, ''), cart_total, cart
		FROM users WHERE id = $1
	`, id).Scan(&u.ID, &u.Username, &u.Email, &u.Phone, &u.CartTotal, &cart)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("find user by id: %w", err)
	}
	if len(cart) > 0 {
		if err := json.Unmarshal(cart, &u.Cart); err != nil {
			return User{}, fmt.Errorf("decode cart: %w", err)
		}
	}
	return u, nil
}
