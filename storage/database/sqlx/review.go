package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/memoraid/memoraid/core"
	"github.com/memoraid/memoraid/core/review"
)

type reviewRow struct {
	ID        int64     `db:"id"`
	Name      string    `db:"name"`
	Stars     int       `db:"stars"`
	Comment   string    `db:"comment"`
	CreatedAt time.Time `db:"created_at"`
}

type reviewRepository struct {
	db core.DBExecutor
}

var _ review.Repository = (*reviewRepository)(nil)

func NewReviewRepository(db *sqlx.DB) review.Repository {
	return &reviewRepository{db: db}
}

func (repo *reviewRepository) CreateReview(ctx context.Context, rev review.Review, exec ...core.DBExecutor) (review.Review, error) {
	db := core.GetExec(repo.db, exec)
	q := db.Rebind(`INSERT INTO reviews (name, stars, comment, created_at) VALUES (?, ?, ?, ?) RETURNING id`)
	if err := db.QueryRowxContext(ctx, q, rev.Name, rev.Stars, rev.Comment, utc(rev.CreatedAt)).Scan(&rev.ID); err != nil {
		return review.Review{}, errors.Wrap(err, "inserting review")
	}
	return rev, nil
}

func (repo *reviewRepository) QueryReviews(ctx context.Context, limit int, exec ...core.DBExecutor) ([]review.Review, error) {
	db := core.GetExec(repo.db, exec)
	var rows []reviewRow
	q := db.Rebind(`SELECT id, name, stars, comment, created_at FROM reviews ORDER BY created_at DESC, id DESC LIMIT ?`)
	if err := sqlx.SelectContext(ctx, db, &rows, q, limit); err != nil {
		return nil, errors.Wrap(err, "querying reviews")
	}
	out := make([]review.Review, 0, len(rows))
	for _, r := range rows {
		out = append(out, review.Review{ID: r.ID, Name: r.Name, Stars: r.Stars, Comment: r.Comment, CreatedAt: utc(r.CreatedAt)})
	}
	return out, nil
}
