package user

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"
	"golang.org/x/crypto/bcrypt"

	"github.com/memoraid/memoraid/core"
)

// Tiers
const (
	TierFree = "free"
	TierPlus = "plus"
	TierPro  = "pro"
)

type User struct {
	ID                  int64       `json:"id"`
	Email               string      `json:"email"`
	PasswordHash        []byte      `json:"-"`
	Tier                string      `json:"tier"`
	StripeCustomerID    null.String `json:"-"`
	SubscriptionID      null.String `json:"-"`
	SubscriptionEndDate null.Time   `json:"subscription_end_date"` // UTC
	DowngradeTo         null.String `json:"downgrade_to"`
	IsActive            bool        `json:"is_active"`
	CreatedAt           time.Time   `json:"created_at"` // UTC
	UpdatedAt           time.Time   `json:"updated_at"` // UTC
	LastLogin           null.Time   `json:"last_login"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

// TierOrFree returns the user's tier, defaulting to free.
func (u *User) TierOrFree() string {
	if u.Tier == "" {
		return TierFree
	}
	return u.Tier
}

// NewUser contains information needed to create a new User.
type NewUser struct {
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

func (nu *NewUser) Validate(validate *validator.Validate) error {
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	return validate.Struct(nu)
}

type ChangePassword struct {
	CurrentPassword    string `json:"current_password" validate:"required"`
	NewPassword        string `json:"new_password" validate:"required"`
	NewPasswordConfirm string `json:"new_password_confirm" validate:"required,eqfield=NewPassword"`

	email string
}

func (cp *ChangePassword) Validate(validate *validator.Validate, usr User) error {
	cp.email = usr.Email
	return validate.Struct(cp)
}

type DeleteAccount struct {
	Password string `json:"password" validate:"required"`
}

func (da DeleteAccount) Validate(validate *validator.Validate) error { return validate.Struct(da) }

type ResetUserPassword struct {
	Token           string `json:"token,omitempty" validate:"required"`
	UID             string `json:"uid,omitempty" validate:"required"`
	Password        string `json:"password,omitempty" validate:"required"`
	PasswordConfirm string `json:"password_confirm,omitempty" validate:"required,eqfield=Password"`
}

func (rp ResetUserPassword) Validate(validate *validator.Validate) error { return validate.Struct(rp) }

type GetFilter struct {
	ID    int64
	Email string
}

type QueryFilter struct {
	Tier             string
	SubscriptionID   string
	StripeCustomerID string
	// SubscriptionEndBefore selects users with a scheduled downgrade due before this time.
	SubscriptionEndBefore time.Time
}
