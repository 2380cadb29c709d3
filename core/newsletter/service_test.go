package newsletter_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memoraid/memoraid/core"
	"github.com/memoraid/memoraid/core/delivery"
	"github.com/memoraid/memoraid/core/newsletter"
	"github.com/memoraid/memoraid/core/user"
	inmemdb "github.com/memoraid/memoraid/storage/database/inmem"
	testutil "github.com/memoraid/memoraid/tests"
)

var (
	ctx = context.Background()
	t0  = time.Date(2024, 3, 4, 9, 30, 15, 0, time.UTC)
)

type fixture struct {
	nlRepo   newsletter.Repository
	mailRepo delivery.Repository
	usrRepo  user.Repository
	gen      *testutil.FakeGenerator
	svc      newsletter.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	orig := core.NowFunc
	core.NowFunc = func() time.Time { return t0 }
	t.Cleanup(func() { core.NowFunc = orig })

	db := inmemdb.NewDB()
	f := &fixture{
		nlRepo:   inmemdb.NewNewsletterRepository(db),
		mailRepo: inmemdb.NewDeliveryRepository(db),
		usrRepo:  inmemdb.NewUserRepository(db),
		gen:      testutil.NewFakeGenerator(),
	}
	f.svc = newsletter.NewService(db, f.nlRepo, f.mailRepo, f.gen, testutil.NewLogger())
	return f
}

func draft() newsletter.DraftRequest {
	return newsletter.DraftRequest{Topic: "Go", Demographic: "developers", Tone: "casual", Frequency: delivery.FreqWeekly}
}

func (f *fixture) confirm(t *testing.T, usr user.User, sendTime string) newsletter.Newsletter {
	t.Helper()
	nl, err := f.svc.Confirm(ctx, usr, newsletter.ConfirmRequest{
		DraftRequest:  draft(),
		SendTime:      sendTime,
		PlanTitle:     "Go in five emails",
		SectionTitles: []string{"One", "Two", "Three", "Four", "Five"},
	})
	require.NoError(t, err)
	return nl
}

func TestPreview(t *testing.T) {
	f := newFixture(t)
	usr := testutil.CreateUser(t, f.usrRepo, "a@example.com", "", user.TierFree)

	d, err := f.svc.Preview(ctx, usr, draft())
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", d.Email)
	assert.Equal(t, f.gen.Plan.PlanTitle, d.PlanTitle)
	assert.Equal(t, f.gen.Plan.SectionTitles, d.SectionTitles)
	assert.Equal(t, "A short series about Go.", d.Summary)
	assert.Equal(t, time.Date(2024, 3, 11, 9, 30, 0, 0, time.UTC), d.MaxSendTime)
}

func TestPreviewUpstreamErrors(t *testing.T) {
	tests := []struct {
		name  string
		setup func(g *testutil.FakeGenerator)
	}{
		{"generator fails", func(g *testutil.FakeGenerator) { g.Err = errors.New("boom") }},
		{"wrong section count", func(g *testutil.FakeGenerator) { g.Plan.SectionTitles = g.Plan.SectionTitles[:4] }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			usr := testutil.CreateUser(t, f.usrRepo, "a@example.com", "", user.TierFree)
			tt.setup(f.gen)

			_, err := f.svc.Preview(ctx, usr, draft())
			var upErr *core.UpstreamError
			require.ErrorAs(t, err, &upErr)
			assert.Equal(t, "Failed to generate plan", upErr.Message)
		})
	}
}

func TestConfirm(t *testing.T) {
	f := newFixture(t)
	usr := testutil.CreateUser(t, f.usrRepo, "a@example.com", "", user.TierFree)
	nl := f.confirm(t, usr, delivery.OffsetTomorrow)

	first := time.Date(2024, 3, 5, 9, 30, 0, 0, time.UTC)
	assert.True(t, nl.IsActive)
	assert.Equal(t, "a@example.com", nl.Email)
	assert.Equal(t, first, nl.NextSendTime.Time)

	emails, err := f.svc.Emails(ctx, usr, nl.ID)
	require.NoError(t, err)
	require.Len(t, emails, 5)
	for i, e := range emails {
		assert.Equal(t, i+1, e.Position)
		assert.Equal(t, first.Add(time.Duration(i)*7*24*time.Hour), e.SendDate)
		assert.False(t, e.Sent)
	}
}

func TestConfirmLimits(t *testing.T) {
	f := newFixture(t)
	free := testutil.CreateUser(t, f.usrRepo, "free@example.com", "", user.TierFree)
	f.confirm(t, free, "")

	_, err := f.svc.Confirm(ctx, free, newsletter.ConfirmRequest{DraftRequest: draft(), SectionTitles: []string{"a", "b", "c", "d", "e"}})
	var fErr *core.ForbiddenError
	require.ErrorAs(t, err, &fErr)

	_, err = f.svc.Preview(ctx, free, draft())
	require.ErrorAs(t, err, &fErr)
	assert.Zero(t, f.gen.Calls("CreateEmailPlan"))

	pro := testutil.CreateUser(t, f.usrRepo, "pro@example.com", "", user.TierPro)
	for i := 0; i < 3; i++ {
		f.confirm(t, pro, "")
	}
	dash, err := f.svc.Dashboard(ctx, pro)
	require.NoError(t, err)
	assert.Equal(t, 3, dash.Total)
	assert.Len(t, dash.Active, 3)
	assert.Equal(t, user.TierPro, dash.Tier)
}

func TestGetOtherUsersNewsletter(t *testing.T) {
	f := newFixture(t)
	owner := testutil.CreateUser(t, f.usrRepo, "owner@example.com", "", user.TierFree)
	other := testutil.CreateUser(t, f.usrRepo, "other@example.com", "", user.TierFree)
	nl := f.confirm(t, owner, "")

	_, err := f.svc.Get(ctx, other, nl.ID)
	assert.ErrorIs(t, err, newsletter.ErrNotFound)
	assert.ErrorIs(t, f.svc.Delete(ctx, other, nl.ID), newsletter.ErrNotFound)
	_, err = f.svc.Get(ctx, owner, nl.ID+100)
	assert.ErrorIs(t, err, newsletter.ErrNotFound)
}

func TestUpdateSendTime(t *testing.T) {
	f := newFixture(t)
	usr := testutil.CreateUser(t, f.usrRepo, "a@example.com", "", user.TierFree)
	nl := f.confirm(t, usr, "")

	_, err := f.svc.UpdateSendTime(ctx, usr, nl.ID, t0.Add(6*24*time.Hour))
	var vErr *core.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "send_time", vErr.Fields[0].Field)

	at := t0.Add(8 * 24 * time.Hour)
	nl, err = f.svc.UpdateSendTime(ctx, usr, nl.ID, at)
	require.NoError(t, err)
	want := at.Truncate(time.Minute)
	assert.Equal(t, want, nl.NextSendTime.Time)

	emails, err := f.svc.Emails(ctx, usr, nl.ID)
	require.NoError(t, err)
	for i, e := range emails {
		assert.Equal(t, want.Add(time.Duration(i)*7*24*time.Hour), e.SendDate)
	}
}

func TestToggle(t *testing.T) {
	f := newFixture(t)
	usr := testutil.CreateUser(t, f.usrRepo, "plus@example.com", "", user.TierPlus)
	first := f.confirm(t, usr, "")

	first, err := f.svc.Toggle(ctx, usr, first.ID)
	require.NoError(t, err)
	assert.False(t, first.IsActive)

	// plus allows one active newsletter
	second := f.confirm(t, usr, "")
	assert.True(t, second.IsActive)
	_, err = f.svc.Toggle(ctx, usr, first.ID)
	var fErr *core.ForbiddenError
	require.ErrorAs(t, err, &fErr)

	dash, err := f.svc.Dashboard(ctx, usr)
	require.NoError(t, err)
	assert.Len(t, dash.Active, 1)
	assert.Len(t, dash.Paused, 1)

	second, err = f.svc.Deactivate(ctx, usr, second.ID)
	require.NoError(t, err)
	assert.False(t, second.IsActive)
	first, err = f.svc.Toggle(ctx, usr, first.ID)
	require.NoError(t, err)
	assert.True(t, first.IsActive)
}

func TestToggleResumeReschedules(t *testing.T) {
	f := newFixture(t)
	usr := testutil.CreateUser(t, f.usrRepo, "a@example.com", "", user.TierFree)
	nl := f.confirm(t, usr, delivery.OffsetTomorrow)
	week := 7 * 24 * time.Hour

	before, err := f.svc.Emails(ctx, usr, nl.ID)
	require.NoError(t, err)

	// a short pause keeps the schedule
	_, err = f.svc.Toggle(ctx, usr, nl.ID)
	require.NoError(t, err)
	_, err = f.svc.Toggle(ctx, usr, nl.ID)
	require.NoError(t, err)
	emails, err := f.svc.Emails(ctx, usr, nl.ID)
	require.NoError(t, err)
	assert.Equal(t, before, emails)

	// resuming after the emails fell due restarts them from now, one per interval
	_, err = f.svc.Toggle(ctx, usr, nl.ID)
	require.NoError(t, err)
	resumed := t0.Add(10 * week)
	core.NowFunc = func() time.Time { return resumed }

	nl, err = f.svc.Toggle(ctx, usr, nl.ID)
	require.NoError(t, err)
	assert.True(t, nl.IsActive)
	now := core.Now()
	assert.Equal(t, now, nl.NextSendTime.Time)

	emails, err = f.svc.Emails(ctx, usr, nl.ID)
	require.NoError(t, err)
	require.Len(t, emails, newsletter.SectionCount)
	for i, e := range emails {
		assert.Equal(t, now.Add(time.Duration(i)*week), e.SendDate)
	}
}

func TestDelete(t *testing.T) {
	f := newFixture(t)
	usr := testutil.CreateUser(t, f.usrRepo, "a@example.com", "", user.TierFree)
	nl := f.confirm(t, usr, "")

	require.NoError(t, f.svc.Delete(ctx, usr, nl.ID))
	_, err := f.nlRepo.GetNewsletter(ctx, nl.ID)
	assert.ErrorIs(t, err, newsletter.ErrNotFound)
	emails, err := f.mailRepo.QueryPlanEmails(ctx, delivery.KindNewsletter, nl.ID)
	require.NoError(t, err)
	assert.Empty(t, emails)
}
