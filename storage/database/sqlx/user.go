package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/memoraid/memoraid/core"
	"github.com/memoraid/memoraid/core/user"
)

const userColumns = `id, email, password_hash, tier, stripe_customer_id, subscription_id, subscription_end_date,
	downgrade_to, is_active, created_at, updated_at, last_login`

type userRow struct {
	ID                  int64       `db:"id"`
	Email               string      `db:"email"`
	PasswordHash        []byte      `db:"password_hash"`
	Tier                string      `db:"tier"`
	StripeCustomerID    null.String `db:"stripe_customer_id"`
	SubscriptionID      null.String `db:"subscription_id"`
	SubscriptionEndDate null.Time   `db:"subscription_end_date"`
	DowngradeTo         null.String `db:"downgrade_to"`
	IsActive            bool        `db:"is_active"`
	CreatedAt           time.Time   `db:"created_at"`
	UpdatedAt           time.Time   `db:"updated_at"`
	LastLogin           null.Time   `db:"last_login"`
}

func (r userRow) toUser() user.User {
	return user.User{
		ID:                  r.ID,
		Email:               r.Email,
		PasswordHash:        r.PasswordHash,
		Tier:                r.Tier,
		StripeCustomerID:    r.StripeCustomerID,
		SubscriptionID:      r.SubscriptionID,
		SubscriptionEndDate: nullUTC(r.SubscriptionEndDate),
		DowngradeTo:         r.DowngradeTo,
		IsActive:            r.IsActive,
		CreatedAt:           utc(r.CreatedAt),
		UpdatedAt:           utc(r.UpdatedAt),
		LastLogin:           nullUTC(r.LastLogin),
	}
}

type userRepository struct {
	db core.DBExecutor
}

var _ user.Repository = (*userRepository)(nil)

func NewUserRepository(db *sqlx.DB) user.Repository {
	return &userRepository{db: db}
}

func (repo *userRepository) EmailExists(ctx context.Context, email string, exec ...core.DBExecutor) (bool, error) {
	db := core.GetExec(repo.db, exec)
	var n int
	err := sqlx.GetContext(ctx, db, &n, db.Rebind(`SELECT COUNT(*) FROM users WHERE email = ?`), email)
	return n > 0, errors.Wrap(err, "checking email")
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	db := core.GetExec(repo.db, exec)
	if usr.PasswordHash == nil {
		usr.PasswordHash = []byte{}
	}
	q := db.Rebind(`INSERT INTO users (email, password_hash, tier, stripe_customer_id, subscription_id,
		subscription_end_date, downgrade_to, is_active, created_at, updated_at, last_login)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`)
	err := db.QueryRowxContext(ctx, q,
		usr.Email, usr.PasswordHash, usr.TierOrFree(), usr.StripeCustomerID, usr.SubscriptionID,
		nullUTC(usr.SubscriptionEndDate), usr.DowngradeTo, usr.IsActive, utc(usr.CreatedAt), utc(usr.UpdatedAt),
		nullUTC(usr.LastLogin),
	).Scan(&usr.ID)
	if err != nil {
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	usr.Tier = usr.TierOrFree()
	return usr, nil
}

func (repo *userRepository) GetUser(ctx context.Context, filter user.GetFilter, exec ...core.DBExecutor) (user.User, error) {
	db := core.GetExec(repo.db, exec)

	var (
		where string
		arg   interface{}
	)
	switch {
	case filter.ID != 0:
		where, arg = "id = ?", filter.ID
	case filter.Email != "":
		where, arg = "email = ?", filter.Email
	default:
		return user.User{}, user.ErrNotFound
	}

	var row userRow
	err := sqlx.GetContext(ctx, db, &row, db.Rebind(`SELECT `+userColumns+` FROM users WHERE `+where), arg)
	if errors.Is(err, sql.ErrNoRows) {
		return user.User{}, user.ErrNotFound
	}
	if err != nil {
		return user.User{}, errors.Wrap(err, "getting user")
	}
	return row.toUser(), nil
}

func (repo *userRepository) QueryUsers(ctx context.Context, filter user.QueryFilter, exec ...core.DBExecutor) ([]user.User, error) {
	db := core.GetExec(repo.db, exec)

	var (
		conds []string
		args  []interface{}
	)
	if filter.Tier != "" {
		conds, args = append(conds, "tier = ?"), append(args, filter.Tier)
	}
	if filter.SubscriptionID != "" {
		conds, args = append(conds, "subscription_id = ?"), append(args, filter.SubscriptionID)
	}
	if filter.StripeCustomerID != "" {
		conds, args = append(conds, "stripe_customer_id = ?"), append(args, filter.StripeCustomerID)
	}
	if !filter.SubscriptionEndBefore.IsZero() {
		conds = append(conds, "subscription_end_date IS NOT NULL", "downgrade_to IS NOT NULL", "subscription_end_date <= ?")
		args = append(args, utc(filter.SubscriptionEndBefore))
	}

	q := `SELECT ` + userColumns + ` FROM users`
	if len(conds) > 0 {
		q += ` WHERE ` + strings.Join(conds, " AND ")
	}
	q += ` ORDER BY id`

	var rows []userRow
	if err := sqlx.SelectContext(ctx, db, &rows, db.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	users := make([]user.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, r.toUser())
	}
	return users, nil
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	db := core.GetExec(repo.db, exec)
	q := db.Rebind(`UPDATE users SET email = ?, password_hash = ?, tier = ?, stripe_customer_id = ?,
		subscription_id = ?, subscription_end_date = ?, downgrade_to = ?, is_active = ?, updated_at = ?, last_login = ?
		WHERE id = ?`)
	res, err := db.ExecContext(ctx, q,
		usr.Email, usr.PasswordHash, usr.TierOrFree(), usr.StripeCustomerID, usr.SubscriptionID,
		nullUTC(usr.SubscriptionEndDate), usr.DowngradeTo, usr.IsActive, utc(usr.UpdatedAt), nullUTC(usr.LastLogin),
		usr.ID,
	)
	if err != nil {
		return user.User{}, errors.Wrap(err, "updating user")
	}
	if n, err := rowsAffected(res); err != nil {
		return user.User{}, err
	} else if n == 0 {
		return user.User{}, user.ErrNotFound
	}
	usr.Tier = usr.TierOrFree()
	return usr, nil
}

// DeleteUser relies on ON DELETE CASCADE for the user's plans, emails and past content.
func (repo *userRepository) DeleteUser(ctx context.Context, id int64, exec ...core.DBExecutor) error {
	db := core.GetExec(repo.db, exec)
	_, err := db.ExecContext(ctx, db.Rebind(`DELETE FROM users WHERE id = ?`), id)
	return errors.Wrap(err, "deleting user")
}
