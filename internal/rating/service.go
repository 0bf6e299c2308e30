// Package rating maintains the per-line rating on purchases and the running
// weighted average on products.
package rating

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/clothy-store/checkout-service/internal/catalog"
	"github.com/clothy-store/checkout-service/internal/checkout"
	"github.com/clothy-store/checkout-service/internal/userdir"
)

var (
	ErrInvalidRate     = errors.New("rate must be between 1 and 5")
	ErrRatingAggregate = errors.New("failed to update product rating")
)

type LineStore interface {
	SetLineRating(ctx context.Context, purchaseID, productID, color string, rate int) (checkout.Purchase, error)
	MarkLineCounted(ctx context.Context, purchaseID, productID, color string) (bool, error)
	UnmarkLineCounted(ctx context.Context, purchaseID, productID, color string) error
}

type ProductStore interface {
	AccumulateRating(ctx context.Context, productID string, rate int) (catalog.Rating, error)
	AddReviewer(ctx context.Context, productID string, rev catalog.Reviewer) error
}

type UserDirectory interface {
	FindByID(ctx context.Context, id string) (userdir.User, error)
}

type Service struct {
	lines    LineStore
	products ProductStore
	users    UserDirectory
	log      *zap.Logger
}

type Dependencies struct {
	Lines    LineStore
	Products ProductStore
	Users    UserDirectory
	Logger   *zap.Logger
}

func NewService(deps Dependencies) *Service {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		lines:    deps.Lines,
		products: deps.Products,
		users:    deps.Users,
		log:      log,
	}
}

type Input struct {
	UserID     string
	PurchaseID string
	ProductID  string
	Color      string
	Rate       int
}

// Apply writes the line rating first, then folds the rate into the product
// aggregate. The two writes are ordered, not transactional: a failed aggregate
// leaves the line rating set and returns ErrRatingAggregate, which is safe to
// retry — the per-line counted flag keeps the aggregate from double-counting.
func (s *Service) Apply(ctx context.Context, in Input) error {
	if in.Rate < 1 || in.Rate > 5 {
		return ErrInvalidRate
	}
	user, err := s.users.FindByID(ctx, in.UserID)
	if err != nil {
		return err
	}

	if _, err := s.lines.SetLineRating(ctx, in.PurchaseID, in.ProductID, in.Color, in.Rate); err != nil {
		return err
	}

	counted, err := s.lines.MarkLineCounted(ctx, in.PurchaseID, in.ProductID, in.Color)
	if err != nil {
		s.log.Error("mark line counted", zap.String("purchase_id", in.PurchaseID), zap.Error(err))
		return ErrRatingAggregate
	}
	if counted {
		if _, err := s.products.AccumulateRating(ctx, in.ProductID, in.Rate); err != nil {
			s.log.Error("accumulate product rating",
				zap.String("purchase_id", in.PurchaseID),
				zap.String("product_id", in.ProductID),
				zap.Error(err))
			// put the flag back so a retry counts this line again
			if rerr := s.lines.UnmarkLineCounted(ctx, in.PurchaseID, in.ProductID, in.Color); rerr != nil {
				s.log.Error("unmark line counted", zap.String("purchase_id", in.PurchaseID), zap.Error(rerr))
			}
			return ErrRatingAggregate
		}
	}

	if err := s.products.AddReviewer(ctx, in.ProductID, catalog.Reviewer{
		UserID: user.ID,
		Name:   user.Username,
		Email:  user.Email,
		Phone:  user.Phone,
	}); err != nil {
		s.log.Error("add reviewer", zap.String("product_id", in.ProductID), zap.Error(err))
		return ErrRatingAggregate
	}
	return nil
}
