package user_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memoraid/memoraid/core"
	"github.com/memoraid/memoraid/core/delivery"
	"github.com/memoraid/memoraid/core/newsletter"
	"github.com/memoraid/memoraid/core/user"
	appfs "github.com/memoraid/memoraid/fs"
	emailsvc "github.com/memoraid/memoraid/services/email"
	inmemdb "github.com/memoraid/memoraid/storage/database/inmem"
	testutil "github.com/memoraid/memoraid/tests"
)

var (
	ctx  = context.Background()
	conf = core.NewTestConfig()
)

func TestMain(m *testing.M) {
	if err := core.ParseEmailTemplates(appfs.FS, appfs.EmailTemplatesDir, conf); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

type fixture struct {
	db      *inmemdb.DB
	repo    user.Repository
	mailSvc *emailsvc.ServiceMock
	svc     user.Service
}

func newFixture() *fixture {
	db := inmemdb.NewDB()
	f := &fixture{db: db, repo: inmemdb.NewUserRepository(db), mailSvc: emailsvc.NewServiceMock(conf)}
	f.svc = user.NewService(db, f.repo, f.mailSvc, conf)
	return f
}

func TestRegister(t *testing.T) {
	f := newFixture()

	usr, err := f.svc.Register(ctx, user.NewUser{Email: " New@Example.com ", Password: "kangaroo-path", PasswordConfirm: "kangaroo-path"})
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", usr.Email)
	assert.Equal(t, user.TierFree, usr.Tier)
	assert.True(t, usr.IsActive)
	assert.NoError(t, usr.CheckPassword("kangaroo-path"))

	_, err = f.svc.Register(ctx, user.NewUser{Email: "new@example.com", Password: "x"})
	var vErr *core.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, user.ErrEmailExists, vErr.Err)

	got, err := f.svc.GetByEmail(ctx, "NEW@example.com")
	require.NoError(t, err)
	assert.Equal(t, usr.ID, got.ID)
}

func TestChangePassword(t *testing.T) {
	f := newFixture()
	usr := testutil.CreateUser(t, f.repo, "a@example.com", "old-password", user.TierFree)

	err := f.svc.ChangePassword(ctx, usr, user.ChangePassword{CurrentPassword: "wrong", NewPassword: "n3w-password", NewPasswordConfirm: "n3w-password"})
	var vErr *core.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "current_password", vErr.Fields[0].Field)

	require.NoError(t, f.svc.ChangePassword(ctx, usr, user.ChangePassword{CurrentPassword: "old-password", NewPassword: "n3w-password", NewPasswordConfirm: "n3w-password"}))
	usr, err = f.svc.GetByID(ctx, usr.ID)
	require.NoError(t, err)
	assert.NoError(t, usr.CheckPassword("n3w-password"))
}

func TestDelete(t *testing.T) {
	f := newFixture()
	usr := testutil.CreateUser(t, f.repo, "a@example.com", "password1", user.TierFree)
	nlRepo := inmemdb.NewNewsletterRepository(f.db)
	mailRepo := inmemdb.NewDeliveryRepository(f.db)
	nl, err := nlRepo.CreateNewsletter(ctx, newsletter.Newsletter{UserID: usr.ID, Topic: "Go", IsActive: true})
	require.NoError(t, err)
	_, err = mailRepo.CreateEmails(ctx, []delivery.Email{{UserID: usr.ID, PlanID: nl.ID, PlanKind: delivery.KindNewsletter, Position: 1}})
	require.NoError(t, err)

	err = f.svc.Delete(ctx, usr, user.DeleteAccount{Password: "nope"})
	var vErr *core.ValidationError
	require.ErrorAs(t, err, &vErr)

	require.NoError(t, f.svc.Delete(ctx, usr, user.DeleteAccount{Password: "password1"}))
	_, err = f.svc.GetByID(ctx, usr.ID)
	assert.ErrorIs(t, err, user.ErrNotFound)
	_, err = nlRepo.GetNewsletter(ctx, nl.ID)
	assert.ErrorIs(t, err, newsletter.ErrNotFound)
	emails, err := mailRepo.QueryPlanEmails(ctx, delivery.KindNewsletter, nl.ID)
	require.NoError(t, err)
	assert.Empty(t, emails)
}

func TestPasswordReset(t *testing.T) {
	f := newFixture()
	usr := testutil.CreateUser(t, f.repo, "a@example.com", "password1", user.TierFree, time.Now().Add(-time.Hour))

	assert.ErrorIs(t, f.svc.RequestPasswordReset(ctx, "nobody@example.com"), user.ErrNotFound)
	require.NoError(t, f.svc.RequestPasswordReset(ctx, "A@example.com"))

	sent := f.mailSvc.SentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, "Password Reset", sent[0].Subject)
	assert.Equal(t, "a@example.com", sent[0].To[0].Address)
	data := sent[0].TemplateData.(map[string]interface{})
	uid, token := data["UID"].(string), data["Token"].(string)
	assert.Contains(t, sent[0].TextContent, "/password-reset?uid="+uid+"&token="+token)

	err := f.svc.ResetPassword(ctx, user.ResetUserPassword{UID: uid, Token: "bad-token", Password: "n3w-password", PasswordConfirm: "n3w-password"})
	var vErr *core.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, user.ErrInvalidResetToken, vErr.Err)

	require.NoError(t, f.svc.ResetPassword(ctx, user.ResetUserPassword{UID: uid, Token: token, Password: "n3w-password", PasswordConfirm: "n3w-password"}))
	usr, err = f.svc.GetByID(ctx, usr.ID)
	require.NoError(t, err)
	assert.NoError(t, usr.CheckPassword("n3w-password"))

	// the token is single use: the password hash changed
	err = f.svc.ResetPassword(ctx, user.ResetUserPassword{UID: uid, Token: token, Password: "an0ther-pass", PasswordConfirm: "an0ther-pass"})
	require.ErrorAs(t, err, &vErr)
}
