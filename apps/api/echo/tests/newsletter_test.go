package tests

import (
	"errors"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memoraid/memoraid/core/delivery"
	"github.com/memoraid/memoraid/core/newsletter"
	"github.com/memoraid/memoraid/core/user"
	testutil "github.com/memoraid/memoraid/tests"
)

var (
	draftBody   = []byte(`{"topic": " Go ", "demographic": "developers", "tone": "casual", "frequency": "Weekly"}`)
	confirmBody = []byte(`{"topic": "Go", "demographic": "developers", "tone": "casual", "frequency": "daily",
		"send_time": "tomorrow", "plan_title": "Go in five emails", "summary": "A short series about Go.",
		"section_titles": ["Basics", "Types", "Interfaces", "Concurrency", "Tooling"]}`)
)

func createNewsletter(t *testing.T, e *env, token string) newsletter.Newsletter {
	t.Helper()
	req, rec := newAuthRequest(http.MethodPost, "/v1/newsletters", token, confirmBody)
	e.app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var nl newsletter.Newsletter
	unmarshal(t, rec, &nl)
	return nl
}

func Test_newsletterApi_preview(t *testing.T) {
	e := setup(t)
	usr := testutil.CreateUser(t, e.usrRepo, "ada@example.com", pwd, user.TierFree)
	token := getToken(t, usr)

	t.Run("success", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/newsletters/preview", token, draftBody)
		e.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var d newsletter.Draft
		unmarshal(t, rec, &d)
		assert.Equal(t, "Go", d.Topic)
		assert.Equal(t, delivery.FreqWeekly, d.Frequency)
		assert.Equal(t, "ada@example.com", d.Email)
		assert.Equal(t, e.gen.Plan.PlanTitle, d.PlanTitle)
		assert.Len(t, d.SectionTitles, newsletter.SectionCount)
		assert.Equal(t, t0.Add(delivery.MaxFirstSendWindow), d.MaxSendTime)
	})

	tests := []httpTest{
		{
			name:     "no token",
			body:     draftBody,
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, errMissingToken),
		},
		{
			name:     "bad frequency",
			token:    token,
			body:     []byte(`{"topic": "Go", "demographic": "developers", "tone": "casual", "frequency": "hourly"}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"frequency": "invalid frequency"}),
		},
		{
			name:     "blank topic",
			token:    token,
			body:     []byte(`{"topic": "  ", "demographic": "developers", "tone": "casual", "frequency": "weekly"}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"topic": "this field is required"}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPost, "/v1/newsletters/preview", tt.token, tt.body)
			e.app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("planner down", func(t *testing.T) {
		e.gen.Err = errors.New("boom")
		defer func() { e.gen.Err = nil }()

		req, rec := newAuthRequest(http.MethodPost, "/v1/newsletters/preview", token, draftBody)
		e.app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadGateway,
			wantData: marchallObj(t, httpErr{Error: "Failed to generate plan"}),
		}, rec)
	})
}

func Test_newsletterApi_create(t *testing.T) {
	e := setup(t)
	usr := testutil.CreateUser(t, e.usrRepo, "ada@example.com", pwd, user.TierFree)
	token := getToken(t, usr)

	nl := createNewsletter(t, e, token)
	assert.Equal(t, "ada@example.com", nl.Email)
	assert.True(t, nl.IsActive)
	assert.Equal(t, t0.Add(24*time.Hour), nl.NextSendTime.Time)

	emails, err := e.mailRepo.QueryPlanEmails(ctx, delivery.KindNewsletter, nl.ID)
	require.NoError(t, err)
	require.Len(t, emails, 5)
	for i, em := range emails {
		assert.Equal(t, i+1, em.Position)
		assert.Equal(t, nl.SectionTitles[i], em.Title)
		assert.Equal(t, t0.Add(time.Duration(i+1)*24*time.Hour), em.SendDate)
	}

	// free tier: one newsletter in total
	req, rec := newAuthRequest(http.MethodPost, "/v1/newsletters", token, confirmBody)
	e.app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// the preview is refused as well
	req, rec = newAuthRequest(http.MethodPost, "/v1/newsletters/preview", token, draftBody)
	e.app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req, rec = newAuthRequest(http.MethodPost, "/v1/newsletters", token, []byte(`{"topic": "Go", "demographic": "developers",
		"tone": "casual", "frequency": "daily", "plan_title": "Go", "section_titles": ["One", "Two"]}`))
	e.app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func Test_newsletterApi_detail(t *testing.T) {
	e := setup(t)
	usr := testutil.CreateUser(t, e.usrRepo, "ada@example.com", pwd, user.TierPlus)
	other := testutil.CreateUser(t, e.usrRepo, "bob@example.com", pwd, user.TierPlus)
	token := getToken(t, usr)
	nl := createNewsletter(t, e, token)
	path := "/v1/newsletters/" + strconv.FormatInt(nl.ID, 10)

	tests := []httpTest{
		{
			name:     "retrieve",
			method:   http.MethodGet,
			path:     path,
			token:    token,
			wantCode: http.StatusOK,
			wantData: marchallObj(t, nl),
		},
		{
			name:     "other user",
			method:   http.MethodGet,
			path:     path,
			token:    getToken(t, other),
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: "newsletter not found"}),
		},
		{
			name:     "unknown id",
			method:   http.MethodGet,
			path:     "/v1/newsletters/999",
			token:    token,
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: "newsletter not found"}),
		},
		{
			name:     "bad id",
			method:   http.MethodGet,
			path:     "/v1/newsletters/abc",
			token:    token,
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: "not found"}),
		},
		{
			name:     "other user cannot delete",
			method:   http.MethodDelete,
			path:     path,
			token:    getToken(t, other),
			wantCode: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			e.app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("emails", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, path+"/emails", token)
		e.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var emails []delivery.Email
		unmarshal(t, rec, &emails)
		assert.Len(t, emails, 5)
	})

	t.Run("dashboard", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/newsletters", token)
		e.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var dash newsletter.Dashboard
		unmarshal(t, rec, &dash)
		assert.Equal(t, 1, dash.Total)
		assert.Equal(t, user.TierPlus, dash.Tier)
		require.Len(t, dash.Active, 1)
		assert.Equal(t, nl.ID, dash.Active[0].ID)
		assert.Empty(t, dash.Paused)
		assert.Equal(t, t0.Add(delivery.MinReschedule), dash.MinReschedule)
	})

	t.Run("delete", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodDelete, path, token)
		e.app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNoContent, rec.Code)

		req, rec = newAuthRequest(http.MethodGet, path, token)
		e.app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func Test_newsletterApi_updateSendTime(t *testing.T) {
	e := setup(t)
	usr := testutil.CreateUser(t, e.usrRepo, "ada@example.com", pwd, user.TierFree)
	token := getToken(t, usr)
	nl := createNewsletter(t, e, token)
	path := "/v1/newsletters/" + strconv.FormatInt(nl.ID, 10) + "/send-time"

	tests := []httpTest{
		{
			name:     "too soon",
			body:     marchallObj(t, newsletter.UpdateSendTime{SendTime: t0.Add(6 * 24 * time.Hour)}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"send_time": newsletter.ErrTooSoon.Error()}),
		},
		{
			name:     "missing",
			body:     []byte(`{}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"send_time": "this field is required"}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPut, path, token, tt.body)
			e.app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("success", func(t *testing.T) {
		at := t0.Add(10 * 24 * time.Hour)
		req, rec := newAuthRequest(http.MethodPut, path, token, marchallObj(t, newsletter.UpdateSendTime{SendTime: at}))
		e.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var got newsletter.Newsletter
		unmarshal(t, rec, &got)
		assert.Equal(t, at, got.NextSendTime.Time)

		emails, err := e.mailRepo.QueryPlanEmails(ctx, delivery.KindNewsletter, nl.ID)
		require.NoError(t, err)
		for i, em := range emails {
			assert.Equal(t, at.Add(time.Duration(i)*24*time.Hour), em.SendDate)
		}
	})
}

func Test_newsletterApi_toggle(t *testing.T) {
	e := setup(t)
	usr := testutil.CreateUser(t, e.usrRepo, "ada@example.com", pwd, user.TierPlus)
	token := getToken(t, usr)
	first := createNewsletter(t, e, token)
	path := func(nl newsletter.Newsletter, action string) string {
		return "/v1/newsletters/" + strconv.FormatInt(nl.ID, 10) + "/" + action
	}

	toggle := func(nl newsletter.Newsletter, action string, wantCode int) newsletter.Newsletter {
		req, rec := newAuthRequest(http.MethodPost, path(nl, action), token)
		e.app.ServeHTTP(rec, req)
		require.Equal(t, wantCode, rec.Code, rec.Body.String())
		var got newsletter.Newsletter
		if wantCode == http.StatusOK {
			unmarshal(t, rec, &got)
		}
		return got
	}

	got := toggle(first, "toggle", http.StatusOK)
	assert.False(t, got.IsActive)

	// plus: one active newsletter at a time
	second := createNewsletter(t, e, token)
	toggle(first, "toggle", http.StatusForbidden)

	got = toggle(second, "deactivate", http.StatusOK)
	assert.False(t, got.IsActive)
	got = toggle(second, "deactivate", http.StatusOK)
	assert.False(t, got.IsActive)

	got = toggle(first, "toggle", http.StatusOK)
	assert.True(t, got.IsActive)
}
