package testutil

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/memoraid/memoraid/core"
	"github.com/memoraid/memoraid/core/delivery"
	"github.com/memoraid/memoraid/core/newsletter"
	"github.com/memoraid/memoraid/core/review"
	"github.com/memoraid/memoraid/core/studyplan"
	"github.com/memoraid/memoraid/core/user"
)

// Repos is one storage backend.
type Repos struct {
	DB          core.Transactor
	Users       user.Repository
	Newsletters newsletter.Repository
	StudyPlans  studyplan.Repository
	Delivery    delivery.Repository
	Reviews     review.Repository
}

// RunRepositoryTests checks a storage backend against the behaviour the services rely on.
func RunRepositoryTests(t *testing.T, newRepos func(t *testing.T) Repos) {
	t.Run("users", func(t *testing.T) { testUsers(t, newRepos(t)) })
	t.Run("newsletters", func(t *testing.T) { testNewsletters(t, newRepos(t)) })
	t.Run("study plans", func(t *testing.T) { testStudyPlans(t, newRepos(t)) })
	t.Run("delivery", func(t *testing.T) { testDelivery(t, newRepos(t)) })
	t.Run("transactions", func(t *testing.T) { testTransactions(t, newRepos(t)) })
	t.Run("cascade", func(t *testing.T) { testCascade(t, newRepos(t)) })
	t.Run("reviews", func(t *testing.T) { testReviews(t, newRepos(t)) })
}

var (
	ctx = context.Background()
	t0  = time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
)

func testUsers(t *testing.T, r Repos) {
	usr := CreateUser(t, r.Users, "a@example.com", "password1", user.TierPlus, t0)
	assert.NotZero(t, usr.ID)

	exists, err := r.Users.EmailExists(ctx, "a@example.com")
	require.NoError(t, err)
	assert.True(t, exists)
	exists, err = r.Users.EmailExists(ctx, "b@example.com")
	require.NoError(t, err)
	assert.False(t, exists)

	got, err := r.Users.GetUser(ctx, user.GetFilter{Email: "a@example.com"})
	require.NoError(t, err)
	assert.Equal(t, usr.ID, got.ID)
	assert.Equal(t, user.TierPlus, got.Tier)
	assert.Equal(t, t0, got.CreatedAt)
	assert.NoError(t, got.CheckPassword("password1"))

	_, err = r.Users.GetUser(ctx, user.GetFilter{ID: usr.ID + 1000})
	assert.ErrorIs(t, err, user.ErrNotFound)
	_, err = r.Users.GetUser(ctx, user.GetFilter{})
	assert.ErrorIs(t, err, user.ErrNotFound)

	end := t0.Add(48 * time.Hour)
	got.StripeCustomerID = null.StringFrom("cus_1")
	got.SubscriptionID = null.StringFrom("sub_1")
	got.SubscriptionEndDate = null.TimeFrom(end)
	got.DowngradeTo = null.StringFrom(user.TierFree)
	got.LastLogin = null.TimeFrom(t0.Add(time.Hour))
	_, err = r.Users.UpdateUser(ctx, got)
	require.NoError(t, err)

	CreateUser(t, r.Users, "b@example.com", "", user.TierFree, t0)

	tests := []struct {
		name   string
		filter user.QueryFilter
		want   int
	}{
		{"all", user.QueryFilter{}, 2},
		{"tier", user.QueryFilter{Tier: user.TierFree}, 1},
		{"subscription", user.QueryFilter{SubscriptionID: "sub_1"}, 1},
		{"customer", user.QueryFilter{StripeCustomerID: "cus_1"}, 1},
		{"due downgrade", user.QueryFilter{SubscriptionEndBefore: end.Add(time.Minute)}, 1},
		{"downgrade not due", user.QueryFilter{SubscriptionEndBefore: end.Add(-time.Minute)}, 0},
	}
	for _, tt := range tests {
		users, err := r.Users.QueryUsers(ctx, tt.filter)
		require.NoError(t, err, tt.name)
		assert.Len(t, users, tt.want, tt.name)
	}

	users, err := r.Users.QueryUsers(ctx, user.QueryFilter{SubscriptionID: "sub_1"})
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, end, users[0].SubscriptionEndDate.Time)
	assert.Equal(t, t0.Add(time.Hour), users[0].LastLogin.Time)

	_, err = r.Users.UpdateUser(ctx, user.User{ID: usr.ID + 1000, Email: "x@example.com"})
	assert.ErrorIs(t, err, user.ErrNotFound)
}

func newNewsletter(userID int64, next null.Time, active bool) newsletter.Newsletter {
	return newsletter.Newsletter{
		UserID:        userID,
		Email:         "a@example.com",
		Topic:         "Go",
		Demographic:   "developers",
		Tone:          "dry",
		Frequency:     delivery.FreqWeekly,
		PlanTitle:     "Go weekly",
		SectionTitles: []string{"1", "2", "3", "4", "5"},
		NextSendTime:  next,
		IsActive:      active,
		CreatedAt:     t0,
	}
}

func testNewsletters(t *testing.T, r Repos) {
	usr := CreateUser(t, r.Users, "a@example.com", "", user.TierPro)

	early, err := r.Newsletters.CreateNewsletter(ctx, newNewsletter(usr.ID, null.TimeFrom(t0), true))
	require.NoError(t, err)
	late, err := r.Newsletters.CreateNewsletter(ctx, newNewsletter(usr.ID, null.TimeFrom(t0.Add(time.Hour)), false))
	require.NoError(t, err)
	done, err := r.Newsletters.CreateNewsletter(ctx, newNewsletter(usr.ID, null.Time{}, true))
	require.NoError(t, err)

	got, err := r.Newsletters.GetNewsletter(ctx, early.ID)
	require.NoError(t, err)
	assert.Equal(t, early, got)

	nls, err := r.Newsletters.QueryUserNewsletters(ctx, usr.ID)
	require.NoError(t, err)
	require.Len(t, nls, 3)
	assert.Equal(t, []int64{late.ID, early.ID, done.ID}, []int64{nls[0].ID, nls[1].ID, nls[2].ID})

	total, active, err := r.Newsletters.CountUserNewsletters(ctx, usr.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Equal(t, 2, active)

	early.IsActive = false
	early.SectionTitles = []string{"a", "b", "c", "d", "e"}
	_, err = r.Newsletters.UpdateNewsletter(ctx, early)
	require.NoError(t, err)
	got, err = r.Newsletters.GetNewsletter(ctx, early.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)
	assert.Equal(t, early.SectionTitles, got.SectionTitles)

	require.NoError(t, r.Newsletters.DeleteNewsletter(ctx, early.ID))
	_, err = r.Newsletters.GetNewsletter(ctx, early.ID)
	assert.ErrorIs(t, err, newsletter.ErrNotFound)
	_, err = r.Newsletters.UpdateNewsletter(ctx, early)
	assert.ErrorIs(t, err, newsletter.ErrNotFound)
}

func testStudyPlans(t *testing.T, r Repos) {
	usr := CreateUser(t, r.Users, "a@example.com", "", user.TierPro)

	sp := studyplan.StudyPlan{
		UserID:       usr.ID,
		Email:        "a@example.com",
		CourseName:   "Biology",
		PlanTitle:    "Biology 101",
		Topics:       []string{"Cells", "Genetics"},
		ContentTypes: []string{"summary", "quiz"},
		Frequency:    delivery.FreqDaily,
		MaxEmails:    null.IntFrom(2),
		NextSendTime: null.TimeFrom(t0),
		IsActive:     true,
		CreatedAt:    t0,
	}
	first, err := r.StudyPlans.CreateStudyPlan(ctx, sp)
	require.NoError(t, err)
	sp.CreatedAt = t0.Add(time.Minute)
	sp.IsActive = false
	second, err := r.StudyPlans.CreateStudyPlan(ctx, sp)
	require.NoError(t, err)

	got, err := r.StudyPlans.GetStudyPlan(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, first, got)

	plans, err := r.StudyPlans.QueryUserStudyPlans(ctx, usr.ID)
	require.NoError(t, err)
	require.Len(t, plans, 2)
	assert.Equal(t, second.ID, plans[0].ID, "newest first")

	total, active, err := r.StudyPlans.CountUserStudyPlans(ctx, usr.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, 1, active)

	first.FirstPassComplete = true
	first.CompletedAt = null.TimeFrom(t0.Add(time.Hour))
	first.NextSendTime = null.Time{}
	_, err = r.StudyPlans.UpdateStudyPlan(ctx, first)
	require.NoError(t, err)
	got, err = r.StudyPlans.GetStudyPlan(ctx, first.ID)
	require.NoError(t, err)
	assert.True(t, got.FirstPassComplete)
	assert.Equal(t, t0.Add(time.Hour), got.CompletedAt.Time)
	assert.False(t, got.NextSendTime.Valid)

	require.NoError(t, r.StudyPlans.DeleteStudyPlan(ctx, first.ID))
	_, err = r.StudyPlans.GetStudyPlan(ctx, first.ID)
	assert.ErrorIs(t, err, studyplan.ErrNotFound)
}

func testDelivery(t *testing.T, r Repos) {
	usr := CreateUser(t, r.Users, "a@example.com", "", user.TierPro)
	nl, err := r.Newsletters.CreateNewsletter(ctx, newNewsletter(usr.ID, null.TimeFrom(t0), true))
	require.NoError(t, err)

	emails, err := r.Delivery.CreateEmails(ctx, []delivery.Email{
		{UserID: usr.ID, PlanID: nl.ID, PlanKind: delivery.KindNewsletter, Position: 1, Title: "One", SendDate: t0},
		{UserID: usr.ID, PlanID: nl.ID, PlanKind: delivery.KindNewsletter, Position: 2, Title: "Two", SendDate: t0.Add(time.Hour)},
		{UserID: usr.ID, PlanID: nl.ID, PlanKind: delivery.KindNewsletter, Position: 3, Title: "Three", SendDate: t0.Add(2 * time.Hour)},
	})
	require.NoError(t, err)
	require.Len(t, emails, 3)
	// same plan id, other kind
	_, err = r.Delivery.CreateEmails(ctx, []delivery.Email{
		{UserID: usr.ID, PlanID: nl.ID, PlanKind: delivery.KindStudy, Position: 1, Title: "Lesson", Topic: "Cells", SendDate: t0.Add(-time.Minute)},
	})
	require.NoError(t, err)

	due, err := r.Delivery.QueryDueEmails(ctx, t0.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, due, 3)
	assert.Equal(t, delivery.KindStudy, due[0].PlanKind, "oldest first")
	assert.Equal(t, "Cells", due[0].Topic)
	assert.Equal(t, emails[0].ID, due[1].ID)
	assert.Equal(t, emails[1].ID, due[2].ID)

	sent := emails[0]
	sent.HTMLContent = null.StringFrom("<p>one</p>")
	sent.SentAt = null.TimeFrom(t0)
	claimed, err := r.Delivery.MarkEmailSent(ctx, sent)
	require.NoError(t, err)
	assert.True(t, claimed)
	claimed, err = r.Delivery.MarkEmailSent(ctx, sent)
	require.NoError(t, err)
	assert.False(t, claimed, "an email is claimed once")

	got, err := r.Delivery.GetEmail(ctx, sent.ID)
	require.NoError(t, err)
	assert.True(t, got.Sent)
	assert.Equal(t, "<p>one</p>", got.HTMLContent.String)
	assert.Equal(t, t0, got.SentAt.Time)

	total, sentCount, err := r.Delivery.CountPlanEmails(ctx, delivery.KindNewsletter, nl.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Equal(t, 1, sentCount)

	require.NoError(t, r.Delivery.UpdateSendDate(ctx, emails[2].ID, t0.Add(24*time.Hour)))
	planEmails, err := r.Delivery.QueryPlanEmails(ctx, delivery.KindNewsletter, nl.ID)
	require.NoError(t, err)
	require.Len(t, planEmails, 3)
	assert.Equal(t, []int{1, 2, 3}, []int{planEmails[0].Position, planEmails[1].Position, planEmails[2].Position})
	assert.Equal(t, t0.Add(24*time.Hour), planEmails[2].SendDate)

	require.NoError(t, r.Delivery.DeleteUnsentPlanEmails(ctx, delivery.KindNewsletter, nl.ID))
	planEmails, err = r.Delivery.QueryPlanEmails(ctx, delivery.KindNewsletter, nl.ID)
	require.NoError(t, err)
	require.Len(t, planEmails, 1)
	assert.Equal(t, sent.ID, planEmails[0].ID)
	lessons, err := r.Delivery.QueryPlanEmails(ctx, delivery.KindStudy, nl.ID)
	require.NoError(t, err)
	assert.Len(t, lessons, 1)

	_, err = r.Delivery.GetEmail(ctx, emails[1].ID)
	assert.ErrorIs(t, err, delivery.ErrNotFound)

	for i := 0; i < 4; i++ {
		_, err = r.Delivery.CreatePastContent(ctx, delivery.PastContent{
			UserID:    usr.ID,
			PlanID:    nl.ID,
			PlanKind:  delivery.KindNewsletter,
			Content:   string(rune('a' + i)),
			CreatedAt: t0.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}
	past, err := r.Delivery.QueryRecentPastContent(ctx, usr.ID, delivery.KindNewsletter, 3)
	require.NoError(t, err)
	require.Len(t, past, 3)
	assert.Equal(t, "d", past[0].Content)
	assert.Equal(t, "b", past[2].Content)
	past, err = r.Delivery.QueryRecentPastContent(ctx, usr.ID, delivery.KindStudy, 3)
	require.NoError(t, err)
	assert.Empty(t, past)
}

func testTransactions(t *testing.T, r Repos) {
	usr := CreateUser(t, r.Users, "a@example.com", "", user.TierPro)
	boom := errors.New("boom")

	err := r.DB.RunInTx(ctx, func(exec core.DBExecutor) error {
		if _, err := r.Newsletters.CreateNewsletter(ctx, newNewsletter(usr.ID, null.Time{}, true), exec); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	total, _, err := r.Newsletters.CountUserNewsletters(ctx, usr.ID)
	require.NoError(t, err)
	assert.Zero(t, total, "rolled back")

	err = r.DB.RunInTx(ctx, func(exec core.DBExecutor) error {
		_, err := r.Newsletters.CreateNewsletter(ctx, newNewsletter(usr.ID, null.Time{}, true), exec)
		return err
	})
	require.NoError(t, err)
	total, _, err = r.Newsletters.CountUserNewsletters(ctx, usr.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, total)

	assert.Panics(t, func() {
		_ = r.DB.RunInTx(ctx, func(exec core.DBExecutor) error {
			_, _ = r.Newsletters.CreateNewsletter(ctx, newNewsletter(usr.ID, null.Time{}, true), exec)
			panic("oops")
		})
	})
	total, _, err = r.Newsletters.CountUserNewsletters(ctx, usr.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func testCascade(t *testing.T, r Repos) {
	usr := CreateUser(t, r.Users, "a@example.com", "", user.TierPro)
	keep := CreateUser(t, r.Users, "b@example.com", "", user.TierPro)

	for _, u := range []user.User{usr, keep} {
		nl, err := r.Newsletters.CreateNewsletter(ctx, newNewsletter(u.ID, null.Time{}, true))
		require.NoError(t, err)
		_, err = r.Delivery.CreateEmails(ctx, []delivery.Email{{UserID: u.ID, PlanID: nl.ID, PlanKind: delivery.KindNewsletter, Position: 1, SendDate: t0}})
		require.NoError(t, err)
		_, err = r.Delivery.CreatePastContent(ctx, delivery.PastContent{UserID: u.ID, PlanID: nl.ID, PlanKind: delivery.KindNewsletter, Content: "x", CreatedAt: t0})
		require.NoError(t, err)
	}

	require.NoError(t, r.Users.DeleteUser(ctx, usr.ID))
	_, err := r.Users.GetUser(ctx, user.GetFilter{ID: usr.ID})
	assert.ErrorIs(t, err, user.ErrNotFound)

	total, _, err := r.Newsletters.CountUserNewsletters(ctx, usr.ID)
	require.NoError(t, err)
	assert.Zero(t, total)
	past, err := r.Delivery.QueryRecentPastContent(ctx, usr.ID, delivery.KindNewsletter, 10)
	require.NoError(t, err)
	assert.Empty(t, past)

	due, err := r.Delivery.QueryDueEmails(ctx, t0)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, keep.ID, due[0].UserID)
}

func testReviews(t *testing.T, r Repos) {
	for i := 0; i < 3; i++ {
		_, err := r.Reviews.CreateReview(ctx, review.Review{Name: "Reader", Stars: i + 1, CreatedAt: t0.Add(time.Duration(i) * time.Minute)})
		require.NoError(t, err)
	}
	revs, err := r.Reviews.QueryReviews(ctx, 2)
	require.NoError(t, err)
	require.Len(t, revs, 2)
	assert.Equal(t, 3, revs[0].Stars)
	assert.Equal(t, "", revs[0].Comment)
	assert.Equal(t, t0.Add(2*time.Minute), revs[0].CreatedAt)
}
