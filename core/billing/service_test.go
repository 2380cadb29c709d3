package billing_test

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/memoraid/memoraid/core"
	"github.com/memoraid/memoraid/core/billing"
	"github.com/memoraid/memoraid/core/user"
	emailsvc "github.com/memoraid/memoraid/services/email"
	inmemdb "github.com/memoraid/memoraid/storage/database/inmem"
	testutil "github.com/memoraid/memoraid/tests"
)

var ctx = context.Background()

type gateway struct {
	event   billing.Event
	err     error
	lastReq billing.CheckoutRequest
}

func (gw *gateway) CreateCheckoutSession(_ context.Context, req billing.CheckoutRequest) (string, error) {
	gw.lastReq = req
	if gw.err != nil {
		return "", gw.err
	}
	return "https://checkout.example.com/s/1", nil
}

func (gw *gateway) ParseWebhook([]byte, string) (billing.Event, error) {
	return gw.event, gw.err
}

type fixture struct {
	gw      *gateway
	usrRepo user.Repository
	svc     billing.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conf := core.NewTestConfig()
	conf.Billing.Prices = map[string]string{user.TierPlus: "price_plus", user.TierPro: "price_pro"}

	db := inmemdb.NewDB()
	f := &fixture{gw: &gateway{}, usrRepo: inmemdb.NewUserRepository(db)}
	usrSvc := user.NewService(db, f.usrRepo, emailsvc.NewServiceMock(conf), conf)
	f.svc = billing.NewService(f.gw, usrSvc, testutil.NewLogger(), conf)
	return f
}

func (f *fixture) reload(t *testing.T, usr user.User) user.User {
	t.Helper()
	usr, err := f.usrRepo.GetUser(ctx, user.GetFilter{ID: usr.ID})
	require.NoError(t, err)
	return usr
}

func TestCheckout(t *testing.T) {
	f := newFixture(t)
	usr := testutil.CreateUser(t, f.usrRepo, "a@example.com", "", user.TierFree)

	url, err := f.svc.Checkout(ctx, usr, " PRO ")
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.example.com/s/1", url)
	assert.Equal(t, "price_pro", f.gw.lastReq.PriceID)
	assert.Equal(t, user.TierPro, f.gw.lastReq.NewTier)
	assert.Equal(t, usr.ID, f.gw.lastReq.UserID)
	assert.Equal(t, "http://localhost:3000/billing/success", f.gw.lastReq.SuccessURL)

	_, err = f.svc.Checkout(ctx, usr, "free")
	var vErr *core.ValidationError
	require.ErrorAs(t, err, &vErr)

	f.gw.err = errors.New("stripe down")
	_, err = f.svc.Checkout(ctx, usr, "plus")
	var upErr *core.UpstreamError
	require.ErrorAs(t, err, &upErr)
}

func TestPricing(t *testing.T) {
	f := newFixture(t)
	p := f.svc.Pricing(user.User{Tier: user.TierPlus})
	assert.Equal(t, user.TierPlus, p.CurrentTier)
	assert.Equal(t, 1, p.CurrentRank)
	assert.Len(t, p.Tiers, 3)
}

func TestHandleWebhook(t *testing.T) {
	f := newFixture(t)
	usr := testutil.CreateUser(t, f.usrRepo, "a@example.com", "", user.TierFree)
	end := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	// checkout completed upgrades and stores the Stripe ids
	f.gw.event = billing.Event{
		Type:           billing.EventCheckoutCompleted,
		Metadata:       map[string]string{"user_id": strconv.FormatInt(usr.ID, 10), "new_plan": "pro"},
		CustomerID:     "cus_1",
		SubscriptionID: "sub_1",
	}
	require.NoError(t, f.svc.HandleWebhook(ctx, []byte("{}"), "sig"))
	usr = f.reload(t, usr)
	assert.Equal(t, user.TierPro, usr.Tier)
	assert.Equal(t, "cus_1", usr.StripeCustomerID.String)
	assert.Equal(t, "sub_1", usr.SubscriptionID.String)

	// cancel at period end schedules a downgrade
	f.gw.event = billing.Event{Type: billing.EventSubscriptionUpdated, SubscriptionID: "sub_1", CancelAtPeriodEnd: true, CurrentPeriodEnd: end}
	require.NoError(t, f.svc.HandleWebhook(ctx, nil, ""))
	usr = f.reload(t, usr)
	assert.Equal(t, user.TierPro, usr.Tier)
	assert.Equal(t, end, usr.SubscriptionEndDate.Time)
	assert.Equal(t, user.TierFree, usr.DowngradeTo.String)

	// resuming clears it
	f.gw.event = billing.Event{Type: billing.EventSubscriptionUpdated, CustomerID: "cus_1"}
	require.NoError(t, f.svc.HandleWebhook(ctx, nil, ""))
	usr = f.reload(t, usr)
	assert.False(t, usr.SubscriptionEndDate.Valid)
	assert.False(t, usr.DowngradeTo.Valid)

	// deletion downgrades right away
	f.gw.event = billing.Event{Type: billing.EventSubscriptionDeleted, SubscriptionID: "sub_1"}
	require.NoError(t, f.svc.HandleWebhook(ctx, nil, ""))
	usr = f.reload(t, usr)
	assert.Equal(t, user.TierFree, usr.Tier)
	assert.False(t, usr.SubscriptionID.Valid)
}

func TestHandleWebhookIgnored(t *testing.T) {
	tests := []struct {
		name  string
		event billing.Event
	}{
		{"unknown type", billing.Event{Type: "invoice.paid"}},
		{"bad metadata", billing.Event{Type: billing.EventCheckoutCompleted, Metadata: map[string]string{"user_id": "x", "new_plan": "pro"}}},
		{"unknown user", billing.Event{Type: billing.EventCheckoutCompleted, Metadata: map[string]string{"user_id": "999", "new_plan": "pro"}}},
		{"unknown subscriber", billing.Event{Type: billing.EventSubscriptionDeleted, SubscriptionID: "sub_x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.gw.event = tt.event
			assert.NoError(t, f.svc.HandleWebhook(ctx, nil, ""))
		})
	}
}

func TestHandleWebhookBadSignature(t *testing.T) {
	f := newFixture(t)
	f.gw.err = errors.New("signature mismatch")
	err := f.svc.HandleWebhook(ctx, nil, "bad")
	var vErr *core.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.ErrorIs(t, vErr.Err, billing.ErrInvalidSignature)
}

func TestApplyDueDowngrades(t *testing.T) {
	f := newFixture(t)
	now := time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC)

	due := testutil.CreateUser(t, f.usrRepo, "due@example.com", "", user.TierPro)
	due.SubscriptionID = null.StringFrom("sub_due")
	due.SubscriptionEndDate = null.TimeFrom(now.Add(-time.Hour))
	due.DowngradeTo = null.StringFrom(user.TierFree)
	_, err := f.usrRepo.UpdateUser(ctx, due)
	require.NoError(t, err)

	later := testutil.CreateUser(t, f.usrRepo, "later@example.com", "", user.TierPlus)
	later.SubscriptionEndDate = null.TimeFrom(now.Add(time.Hour))
	later.DowngradeTo = null.StringFrom(user.TierFree)
	_, err = f.usrRepo.UpdateUser(ctx, later)
	require.NoError(t, err)

	n, err := f.svc.ApplyDueDowngrades(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	due = f.reload(t, due)
	assert.Equal(t, user.TierFree, due.Tier)
	assert.False(t, due.SubscriptionID.Valid)
	assert.False(t, due.DowngradeTo.Valid)
	assert.Equal(t, user.TierPlus, f.reload(t, later).Tier)
}

func TestCheckCanCreate(t *testing.T) {
	tests := []struct {
		tier          string
		total, active int
		wantErr       bool
	}{
		{user.TierFree, 0, 0, false},
		{user.TierFree, 1, 0, true},
		{user.TierPlus, 10, 0, false},
		{user.TierPlus, 10, 1, true},
		{user.TierPro, 100, 100, false},
		{"", 1, 0, true},
	}
	for _, tt := range tests {
		err := billing.CheckCanCreate(user.User{Tier: tt.tier}, tt.total, tt.active)
		assert.Equal(t, tt.wantErr, err != nil, "%s %d/%d", tt.tier, tt.total, tt.active)
	}
}

func TestCapStudyEmails(t *testing.T) {
	assert.Equal(t, 5, billing.CapStudyEmails(user.User{}, 0, 12))
	assert.Equal(t, 3, billing.CapStudyEmails(user.User{}, 3, 12))
	assert.Equal(t, 12, billing.CapStudyEmails(user.User{Tier: user.TierPlus}, 0, 12))
	assert.Equal(t, 30, billing.CapStudyEmails(user.User{Tier: user.TierPlus}, 50, 12))
	assert.Equal(t, 200, billing.CapStudyEmails(user.User{Tier: user.TierPro}, 200, 12))
}
