package user

import (
	"context"
	"errors"
	"net/mail"
	"strconv"
	"time"

	perrors "github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/memoraid/memoraid/core"
)

var (
	// errors
	ErrNotFound           = errors.New("user not found")
	ErrEmailExists        = errors.New("a user with this email already exists")
	ErrIncorrectPassword  = errors.New("incorrect password")
	ErrInvalidResetToken  = errors.New("invalid or expired password reset link")
	errPasswordsDontMatch = errors.New("passwords do not match")
)

type (
	Repository interface {
		EmailExists(ctx context.Context, email string, exec ...core.DBExecutor) (bool, error)
		CreateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
		GetUser(ctx context.Context, filter GetFilter, exec ...core.DBExecutor) (User, error)
		QueryUsers(ctx context.Context, filter QueryFilter, exec ...core.DBExecutor) ([]User, error)
		UpdateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
		// DeleteUser removes the user along with their plans, emails and past content.
		DeleteUser(ctx context.Context, id int64, exec ...core.DBExecutor) error
	}

	Service interface {
		Register(ctx context.Context, nu NewUser) (User, error)
		GetByID(ctx context.Context, id int64) (User, error)
		GetByEmail(ctx context.Context, email string) (User, error)
		Query(ctx context.Context, filter QueryFilter) ([]User, error)
		Update(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
		SetLastLogin(ctx context.Context, usr User) (User, error)
		ChangePassword(ctx context.Context, usr User, cp ChangePassword) error
		SetPassword(ctx context.Context, usr User, pwd string) (User, error)
		Delete(ctx context.Context, usr User, da DeleteAccount) error
		RequestPasswordReset(ctx context.Context, email string) error
		ResetPassword(ctx context.Context, data ResetUserPassword) error
	}

	service struct {
		db      core.Transactor
		repo    Repository
		mailSvc core.EmailService
		conf    *core.Config
	}
)

var _ Service = (*service)(nil) // interface compliance check

func NewService(db core.Transactor, repo Repository, mailSvc core.EmailService, conf *core.Config) Service {
	secretKey = []byte(conf.SecretKey)
	passwordResetTimeoutDelta = conf.PasswordResetTimeoutDelta
	return &service{db: db, repo: repo, mailSvc: mailSvc, conf: conf}
}

func (svc *service) Register(ctx context.Context, nu NewUser) (User, error) {
	email := core.CleanString(nu.Email, true /* lower */)
	exists, err := svc.repo.EmailExists(ctx, email)
	if err != nil {
		return User{}, perrors.Wrap(err, "checking email uniqueness")
	}
	if exists {
		return User{}, core.NewValidationError(ErrEmailExists, core.FieldError{Field: "email", Error: ErrEmailExists.Error()})
	}

	now := core.Now()
	usr := User{
		Email:     email,
		Tier:      TierFree,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, perrors.Wrap(err, "setting password")
	}
	return svc.repo.CreateUser(ctx, usr)
}

func (svc *service) GetByID(ctx context.Context, id int64) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{ID: id})
}

func (svc *service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{Email: core.CleanString(email, true /* lower */)})
}

func (svc *service) Query(ctx context.Context, filter QueryFilter) ([]User, error) {
	return svc.repo.QueryUsers(ctx, filter)
}

func (svc *service) Update(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error) {
	usr.UpdatedAt = core.Now()
	return svc.repo.UpdateUser(ctx, usr, exec...)
}

func (svc *service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	usr.LastLogin = null.TimeFrom(core.Now())
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *service) ChangePassword(ctx context.Context, usr User, cp ChangePassword) error {
	if err := usr.CheckPassword(cp.CurrentPassword); err != nil {
		return core.NewValidationError(ErrIncorrectPassword, core.FieldError{Field: "current_password", Error: ErrIncorrectPassword.Error()})
	}
	if cp.NewPassword != cp.NewPasswordConfirm {
		return core.NewValidationError(errPasswordsDontMatch, core.FieldError{Field: "new_password_confirm", Error: errPasswordsDontMatch.Error()})
	}
	_, err := svc.SetPassword(ctx, usr, cp.NewPassword)
	return err
}

func (svc *service) SetPassword(ctx context.Context, usr User, pwd string) (User, error) {
	if err := usr.SetPassword(pwd); err != nil {
		return User{}, perrors.Wrap(err, "setting password")
	}
	usr, err := svc.Update(ctx, usr)
	return usr, perrors.Wrap(err, "updating user")
}

func (svc *service) Delete(ctx context.Context, usr User, da DeleteAccount) error {
	if err := usr.CheckPassword(da.Password); err != nil {
		return core.NewValidationError(ErrIncorrectPassword, core.FieldError{Field: "password", Error: ErrIncorrectPassword.Error()})
	}
	return svc.db.RunInTx(ctx, func(exec core.DBExecutor) error {
		return perrors.Wrap(svc.repo.DeleteUser(ctx, usr.ID, exec), "deleting user")
	})
}

func (svc *service) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if !usr.IsActive {
		return ErrNotFound
	}

	uid := EncodeUID(usr)
	token := makeToken(usr)
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Address: usr.Email}},
		Subject:      "Password Reset",
		TemplateName: "password_reset",
		TemplateData: map[string]interface{}{
			"Email":   usr.Email,
			"UID":     uid,
			"Token":   token,
			"URL":     svc.conf.FrontendURL("/password-reset?uid=" + uid + "&token=" + token),
			"Timeout": strconv.Itoa(int(passwordResetTimeoutDelta / (24 * time.Hour))),
		},
	})
	return nil
}

func (svc *service) ResetPassword(ctx context.Context, data ResetUserPassword) error {
	id, err := decodeUID(data.UID)
	if err != nil {
		return core.NewValidationError(ErrInvalidResetToken)
	}
	usr, err := svc.GetByID(ctx, id)
	if err != nil {
		if perrors.Cause(err) == ErrNotFound {
			return core.NewValidationError(ErrInvalidResetToken)
		}
		return perrors.Wrap(err, "finding user by ID")
	}
	if err := verifyToken(usr, data.Token); err != nil {
		return core.NewValidationError(ErrInvalidResetToken)
	}
	_, err = svc.SetPassword(ctx, usr, data.Password)
	return err
}
