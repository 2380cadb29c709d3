// Package review holds the public testimonials shown on the landing page.
package review

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/memoraid/memoraid/core"
)

// ListLimit caps the reviews returned by List.
const ListLimit = 50

type (
	Review struct {
		ID        int64     `json:"id"`
		Name      string    `json:"name"`
		Stars     int       `json:"stars"`
		Comment   string    `json:"comment"`
		CreatedAt time.Time `json:"created_at"` // UTC
	}

	NewReview struct {
		Name    string `json:"name" validate:"required,notblank,max=100"`
		Stars   int    `json:"stars" validate:"required,min=1,max=5"`
		Comment string `json:"comment" validate:"max=2000"`
	}

	Repository interface {
		CreateReview(ctx context.Context, rev Review, exec ...core.DBExecutor) (Review, error)
		// QueryReviews returns up to limit reviews, newest first.
		QueryReviews(ctx context.Context, limit int, exec ...core.DBExecutor) ([]Review, error)
	}

	Service interface {
		List(ctx context.Context) ([]Review, error)
		Create(ctx context.Context, nr NewReview) (Review, error)
	}

	service struct {
		repo Repository
	}
)

var _ Service = (*service)(nil)

func (nr *NewReview) Validate(validate *validator.Validate) error {
	nr.Name = core.CleanString(nr.Name)
	nr.Comment = core.CleanString(nr.Comment)
	return validate.Struct(nr)
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (svc *service) List(ctx context.Context) ([]Review, error) {
	revs, err := svc.repo.QueryReviews(ctx, ListLimit)
	return revs, errors.Wrap(err, "querying reviews")
}

func (svc *service) Create(ctx context.Context, nr NewReview) (Review, error) {
	rev, err := svc.repo.CreateReview(ctx, Review{
		Name:      nr.Name,
		Stars:     nr.Stars,
		Comment:   nr.Comment,
		CreatedAt: core.Now(),
	})
	return rev, errors.Wrap(err, "creating review")
}
