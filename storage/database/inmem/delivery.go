package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/memoraid/memoraid/core"
	"github.com/memoraid/memoraid/core/delivery"
	"github.com/memoraid/memoraid/core/review"
)

type deliveryRepository struct {
	db *DB
}

var _ delivery.Repository = (*deliveryRepository)(nil)

func NewDeliveryRepository(db *DB) delivery.Repository {
	return &deliveryRepository{db: db}
}

func sortEmails(emails []delivery.Email, less func(a, b delivery.Email) bool) {
	sort.Slice(emails, func(i, j int) bool { return less(emails[i], emails[j]) })
}

func (repo *deliveryRepository) CreateEmails(_ context.Context, emails []delivery.Email, _ ...core.DBExecutor) ([]delivery.Email, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	out := make([]delivery.Email, 0, len(emails))
	for _, e := range emails {
		e.ID = repo.db.nextID()
		repo.db.emails[e.ID] = e
		out = append(out, e)
	}
	return out, nil
}

func (repo *deliveryRepository) GetEmail(_ context.Context, id int64, _ ...core.DBExecutor) (delivery.Email, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	e, ok := repo.db.emails[id]
	if !ok {
		return delivery.Email{}, delivery.ErrNotFound
	}
	return e, nil
}

func (repo *deliveryRepository) QueryDueEmails(_ context.Context, now time.Time, _ ...core.DBExecutor) ([]delivery.Email, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	out := make([]delivery.Email, 0)
	for _, e := range repo.db.emails {
		if !e.Sent && !e.SendDate.After(now) {
			out = append(out, e)
		}
	}
	sortEmails(out, func(a, b delivery.Email) bool {
		if !a.SendDate.Equal(b.SendDate) {
			return a.SendDate.Before(b.SendDate)
		}
		return a.ID < b.ID
	})
	return out, nil
}

func (repo *deliveryRepository) QueryPlanEmails(_ context.Context, kind string, planID int64, _ ...core.DBExecutor) ([]delivery.Email, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	out := make([]delivery.Email, 0)
	for _, e := range repo.db.emails {
		if e.PlanKind == kind && e.PlanID == planID {
			out = append(out, e)
		}
	}
	sortEmails(out, func(a, b delivery.Email) bool {
		if a.Position != b.Position {
			return a.Position < b.Position
		}
		return a.ID < b.ID
	})
	return out, nil
}

func (repo *deliveryRepository) CountPlanEmails(_ context.Context, kind string, planID int64, _ ...core.DBExecutor) (total, sent int, err error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, e := range repo.db.emails {
		if e.PlanKind == kind && e.PlanID == planID {
			total++
			if e.Sent {
				sent++
			}
		}
	}
	return total, sent, nil
}

func (repo *deliveryRepository) MarkEmailSent(_ context.Context, email delivery.Email, _ ...core.DBExecutor) (bool, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	e, ok := repo.db.emails[email.ID]
	if !ok || e.Sent {
		return false, nil
	}
	e.Sent = true
	e.SentAt = email.SentAt
	e.HTMLContent = email.HTMLContent
	e.Title = email.Title
	repo.db.emails[e.ID] = e
	return true, nil
}

func (repo *deliveryRepository) UpdateSendDate(_ context.Context, id int64, sendDate time.Time, _ ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if e, ok := repo.db.emails[id]; ok {
		e.SendDate = sendDate.UTC()
		repo.db.emails[id] = e
	}
	return nil
}

func (repo *deliveryRepository) DeleteUnsentPlanEmails(_ context.Context, kind string, planID int64, _ ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for k, e := range repo.db.emails {
		if e.PlanKind == kind && e.PlanID == planID && !e.Sent {
			delete(repo.db.emails, k)
		}
	}
	return nil
}

func (repo *deliveryRepository) CreatePastContent(_ context.Context, pc delivery.PastContent, _ ...core.DBExecutor) (delivery.PastContent, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	pc.ID = repo.db.nextID()
	repo.db.pastContent[pc.ID] = pc
	return pc, nil
}

func (repo *deliveryRepository) QueryRecentPastContent(_ context.Context, userID int64, kind string, limit int, _ ...core.DBExecutor) ([]delivery.PastContent, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	out := make([]delivery.PastContent, 0)
	for _, pc := range repo.db.pastContent {
		if pc.UserID == userID && pc.PlanKind == kind {
			out = append(out, pc)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type reviewRepository struct {
	db *DB
}

var _ review.Repository = (*reviewRepository)(nil)

func NewReviewRepository(db *DB) review.Repository {
	return &reviewRepository{db: db}
}

func (repo *reviewRepository) CreateReview(_ context.Context, rev review.Review, _ ...core.DBExecutor) (review.Review, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	rev.ID = repo.db.nextID()
	repo.db.reviews[rev.ID] = rev
	return rev, nil
}

func (repo *reviewRepository) QueryReviews(_ context.Context, limit int, _ ...core.DBExecutor) ([]review.Review, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	out := make([]review.Review, 0, len(repo.db.reviews))
	for _, rev := range repo.db.reviews {
		out = append(out, rev)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
