package tests

import (
	"archive/zip"
	"bytes"
	"net/http"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memoraid/memoraid/core/content"
	"github.com/memoraid/memoraid/core/delivery"
	"github.com/memoraid/memoraid/core/studyplan"
	"github.com/memoraid/memoraid/core/user"
	testutil "github.com/memoraid/memoraid/tests"
)

var studyPlanBody = []byte(`{"course_name": "Biology 101", "topics": ["Cells", "Genetics", "Evolution"],
	"content_types": ["Summary", "quiz"], "frequency": "daily", "send_time": "now"}`)

func docx(t *testing.T, text string) []byte {
	t.Helper()
	buf := new(bytes.Buffer)
	zw := zip.NewWriter(buf)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body><w:p><w:r><w:t>` + text + `</w:t></w:r></w:p></w:body></w:document>`))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func Test_studyPlanApi_extract(t *testing.T) {
	e := setup(t)
	usr := testutil.CreateUser(t, e.usrRepo, "ada@example.com", pwd, user.TierFree)
	token := getToken(t, usr)
	syllabus := docx(t, "Week 1: Cells. Week 2: Genetics.")

	tests := []struct {
		httpTest
		fields   map[string]string
		filename string
		file     []byte
	}{
		{
			httpTest: httpTest{
				name:     "syllabus",
				wantCode: http.StatusOK,
				wantData: marchallObj(t, content.Extraction{CourseTitle: "Biology 101", Topics: []string{"Cells", "Genetics"}}),
			},
			fields:   map[string]string{"kind": "Syllabus"},
			filename: "syllabus.docx",
			file:     syllabus,
		},
		{
			httpTest: httpTest{
				name:     "bad kind",
				wantCode: http.StatusBadRequest,
				wantData: marchallObj(t, map[string]string{"kind": "kind must be one of syllabus, material"}),
			},
			fields:   map[string]string{"kind": "novel"},
			filename: "syllabus.docx",
			file:     syllabus,
		},
		{
			httpTest: httpTest{
				name:     "missing file",
				wantCode: http.StatusBadRequest,
				wantData: marchallObj(t, map[string]string{"file": "a file is required"}),
			},
			fields: map[string]string{"kind": "material"},
		},
		{
			httpTest: httpTest{
				name:     "unsupported file",
				wantCode: http.StatusBadRequest,
				wantData: marchallObj(t, map[string]string{"file": content.ErrUnsupportedFile.Error()}),
			},
			fields:   map[string]string{"kind": "material"},
			filename: "notes.txt",
			file:     []byte("Cells"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newMultipartRequest(t, "/v1/study-plans/extract", token, tt.fields, tt.filename, tt.file)
			e.app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt.httpTest, rec)
		})
	}

	assert.Equal(t, 1, e.gen.Calls("ExtractSyllabus"))
	assert.Equal(t, 0, e.gen.Calls("ExtractMaterial"))
}

func Test_studyPlanApi_create(t *testing.T) {
	e := setup(t)
	usr := testutil.CreateUser(t, e.usrRepo, "ada@example.com", pwd, user.TierFree)
	token := getToken(t, usr)

	req, rec := newAuthRequest(http.MethodPost, "/v1/study-plans", token, studyPlanBody)
	e.app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var sp studyplan.StudyPlan
	unmarshal(t, rec, &sp)
	assert.Equal(t, "Biology 101", sp.CourseName)
	assert.Equal(t, []string{content.TypeSummary, content.TypeQuiz}, sp.ContentTypes)
	assert.Equal(t, e.gen.StudyPlan.Topics, sp.Topics)
	assert.Equal(t, 3, sp.MaxEmails.Int)
	assert.Equal(t, t0, sp.NextSendTime.Time)

	lessons, err := e.mailRepo.QueryPlanEmails(ctx, delivery.KindStudy, sp.ID)
	require.NoError(t, err)
	require.Len(t, lessons, 1)
	assert.Equal(t, "Cells", lessons[0].Topic)

	// free tier: one plan in total
	req, rec = newAuthRequest(http.MethodPost, "/v1/study-plans", token, studyPlanBody)
	e.app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	tests := []httpTest{
		{
			name:     "no content types",
			body:     []byte(`{"course_name": "Biology", "topics": ["Cells"], "content_types": ["poems"], "frequency": "daily"}`),
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "no topics nor text",
			body:     []byte(`{"course_name": "Biology", "content_types": ["quiz"], "frequency": "daily"}`),
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "bad send time",
			body:     []byte(`{"course_name": "Biology", "text": "cells", "content_types": ["quiz"], "frequency": "daily", "send_time": "someday"}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"send_time": "invalid send time"}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPost, "/v1/study-plans", token, tt.body)
			e.app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_studyPlanApi_detail(t *testing.T) {
	e := setup(t)
	usr := testutil.CreateUser(t, e.usrRepo, "ada@example.com", pwd, user.TierPro)
	other := testutil.CreateUser(t, e.usrRepo, "bob@example.com", pwd, user.TierPro)
	token := getToken(t, usr)

	req, rec := newAuthRequest(http.MethodPost, "/v1/study-plans", token, studyPlanBody)
	e.app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var sp studyplan.StudyPlan
	unmarshal(t, rec, &sp)
	path := "/v1/study-plans/" + strconv.FormatInt(sp.ID, 10)

	t.Run("list", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/study-plans", token)
		e.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var plans []studyplan.Summary
		unmarshal(t, rec, &plans)
		require.Len(t, plans, 1)
		assert.Equal(t, sp.ID, plans[0].ID)
		assert.Equal(t, 0, plans[0].SentCount)
		assert.Equal(t, 3, plans[0].TotalAllowed)
		assert.Empty(t, plans[0].LockedTopics)

		req, rec = newAuthRequest(http.MethodGet, "/v1/study-plans", getToken(t, other))
		e.app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: []byte(`[]`)}, rec)
	})

	t.Run("retrieve", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, path, token)
		e.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var detail studyplan.Detail
		unmarshal(t, rec, &detail)
		assert.Equal(t, sp.ID, detail.ID)
		require.Len(t, detail.Lessons, 1)
		assert.Equal(t, t0, detail.Lessons[0].SendDate)

		req, rec = newAuthRequest(http.MethodGet, path, getToken(t, other))
		e.app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: "study plan not found"}),
		}, rec)
	})

	t.Run("toggle", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, path+"/toggle", token)
		e.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var got studyplan.StudyPlan
		unmarshal(t, rec, &got)
		assert.False(t, got.IsActive)
	})

	t.Run("delete", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodDelete, path, token)
		e.app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNoContent, rec.Code)

		_, err := e.spRepo.GetStudyPlan(ctx, sp.ID)
		assert.ErrorIs(t, err, studyplan.ErrNotFound)
		lessons, err := e.mailRepo.QueryPlanEmails(ctx, delivery.KindStudy, sp.ID)
		require.NoError(t, err)
		assert.Empty(t, lessons)
	})

}
