package inmemdb

import (
	"context"
	"sort"

	"github.com/memoraid/memoraid/core"
	"github.com/memoraid/memoraid/core/user"
)

type userRepository struct {
	db *DB
}

var _ user.Repository = (*userRepository)(nil)

func NewUserRepository(db *DB) user.Repository {
	return &userRepository{db: db}
}

func (repo *userRepository) EmailExists(_ context.Context, email string, _ ...core.DBExecutor) (bool, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, usr := range repo.db.users {
		if usr.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (repo *userRepository) CreateUser(_ context.Context, usr user.User, _ ...core.DBExecutor) (user.User, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	usr.ID = repo.db.nextID()
	usr.Tier = usr.TierOrFree()
	repo.db.users[usr.ID] = usr
	return usr, nil
}

func (repo *userRepository) GetUser(_ context.Context, filter user.GetFilter, _ ...core.DBExecutor) (user.User, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if filter.ID != 0 {
		if usr, ok := repo.db.users[filter.ID]; ok {
			return usr, nil
		}
		return user.User{}, user.ErrNotFound
	}
	if filter.Email != "" {
		for _, usr := range repo.db.users {
			if usr.Email == filter.Email {
				return usr, nil
			}
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) QueryUsers(_ context.Context, filter user.QueryFilter, _ ...core.DBExecutor) ([]user.User, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	users := make([]user.User, 0)
	for _, usr := range repo.db.users {
		if filter.Tier != "" && usr.Tier != filter.Tier {
			continue
		}
		if filter.SubscriptionID != "" && usr.SubscriptionID.String != filter.SubscriptionID {
			continue
		}
		if filter.StripeCustomerID != "" && usr.StripeCustomerID.String != filter.StripeCustomerID {
			continue
		}
		if !filter.SubscriptionEndBefore.IsZero() {
			if !usr.SubscriptionEndDate.Valid || !usr.DowngradeTo.Valid || usr.SubscriptionEndDate.Time.After(filter.SubscriptionEndBefore) {
				continue
			}
		}
		users = append(users, usr)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

func (repo *userRepository) UpdateUser(_ context.Context, usr user.User, _ ...core.DBExecutor) (user.User, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	orig, ok := repo.db.users[usr.ID]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	usr.CreatedAt = orig.CreatedAt
	usr.Tier = usr.TierOrFree()
	repo.db.users[usr.ID] = usr
	return usr, nil
}

func (repo *userRepository) DeleteUser(_ context.Context, id int64, _ ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	delete(repo.db.users, id)
	for k, v := range repo.db.newsletters {
		if v.UserID == id {
			delete(repo.db.newsletters, k)
		}
	}
	for k, v := range repo.db.studyPlans {
		if v.UserID == id {
			delete(repo.db.studyPlans, k)
		}
	}
	for k, v := range repo.db.emails {
		if v.UserID == id {
			delete(repo.db.emails, k)
		}
	}
	for k, v := range repo.db.pastContent {
		if v.UserID == id {
			delete(repo.db.pastContent, k)
		}
	}
	return nil
}
