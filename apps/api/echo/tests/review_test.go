package tests

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memoraid/memoraid/core/review"
)

func Test_reviewApi(t *testing.T) {
	e := setup(t)

	req, rec := newRequest(http.MethodGet, "/v1/reviews")
	e.app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: []byte(`[]`)}, rec)

	tests := []httpTest{
		{
			name:     "success",
			body:     []byte(`{"name": "  Ada  ", "stars": 5, "comment": "Great lessons"}`),
			wantCode: http.StatusCreated,
			wantData: marchallObj(t, review.Review{ID: 1, Name: "Ada", Stars: 5, Comment: "Great lessons", CreatedAt: t0}),
		},
		{
			name:     "no comment",
			body:     []byte(`{"name": "Bob", "stars": 3}`),
			wantCode: http.StatusCreated,
		},
		{
			name:     "missing name",
			body:     []byte(`{"stars": 4}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"name": "this field is required"}),
		},
		{
			name:     "too many stars",
			body:     []byte(`{"name": "Eve", "stars": 6}`),
			wantCode: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(http.MethodPost, "/v1/reviews", tt.body)
			e.app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	req, rec = newRequest(http.MethodGet, "/v1/reviews")
	e.app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var revs []review.Review
	unmarshal(t, rec, &revs)
	require.Len(t, revs, 2)
	assert.ElementsMatch(t, []string{"Ada", "Bob"}, []string{revs[0].Name, revs[1].Name})
}
