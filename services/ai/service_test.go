package aisvc

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memoraid/memoraid/core"
	"github.com/memoraid/memoraid/core/content"
	appfs "github.com/memoraid/memoraid/fs"
	testutil "github.com/memoraid/memoraid/tests"
)

// fakeCompleter answers with the queued replies, in order; the last one repeats.
type fakeCompleter struct {
	mu       sync.Mutex
	replies  []string
	err      error
	requests []openai.ChatCompletionRequest
}

func (f *fakeCompleter) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return openai.ChatCompletionResponse{}, f.err
	}
	reply := f.replies[0]
	if len(f.replies) > 1 {
		f.replies = f.replies[1:]
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: reply}}},
	}, nil
}

func (f *fakeCompleter) prompt(i int) string { return f.requests[i].Messages[0].Content }

func newService(t *testing.T, f *fakeCompleter) *Service {
	conf := core.NewTestConfig()
	conf.AI.FailureThreshold = 2
	svc, err := NewService(f, appfs.FS, appfs.PromptsDir, testutil.NewLogger(), conf)
	require.NoError(t, err)
	return svc
}

func TestService_CreateEmailPlan(t *testing.T) {
	f := &fakeCompleter{replies: []string{"```json\n" +
		`{"plan_title": "Money Moves", "section_titles": ["One", "Two", "Three", "Four", "Five"]}` + "\n```"}}
	svc := newService(t, f)

	plan, err := svc.CreateEmailPlan(context.Background(), content.PlanRequest{Topic: "Investing", Demographic: "students", Tone: "playful"})
	require.NoError(t, err)
	assert.Equal(t, "Money Moves", plan.PlanTitle)
	assert.Len(t, plan.SectionTitles, 5)

	require.Len(t, f.requests, 1)
	assert.Equal(t, core.NewTestConfig().AI.PlannerModel, f.requests[0].Model)
	assert.Contains(t, f.prompt(0), `"Investing"`)
	assert.Contains(t, f.prompt(0), "Audience: students.")
}

func TestService_CreateEmailPlan_badJSON(t *testing.T) {
	svc := newService(t, &fakeCompleter{replies: []string{"Sure! Here is your plan."}})

	_, err := svc.CreateEmailPlan(context.Background(), content.PlanRequest{Topic: "Investing"})
	assert.ErrorIs(t, err, content.ErrBadResponse)
}

func TestService_CreateStudyPlan_strictRetry(t *testing.T) {
	f := &fakeCompleter{replies: []string{
		"not json",
		`{"plan_title": " Biochem ", "summary": "You'll build mastery.", "topics": ["Glycolysis", "glycolysis", "TCA Cycle", "x"]}`,
	}}
	svc := newService(t, f)

	plan, err := svc.CreateStudyPlan(context.Background(), content.StudyPlanRequest{
		CourseName: "BIO 201",
		Topics:     []string{"Glycolysis", "TCA Cycle"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Biochem", plan.PlanTitle)
	assert.Equal(t, []string{"Glycolysis", "TCA Cycle"}, plan.Topics)

	require.Len(t, f.requests, 2)
	assert.Contains(t, f.prompt(0), "Input kind: LIST")
	assert.Contains(t, f.prompt(0), "- Glycolysis")
	assert.NotContains(t, f.prompt(0), "REMINDER")
	assert.Contains(t, f.prompt(1), "REMINDER")
}

func TestService_CreateStudyPlan_noTopics(t *testing.T) {
	svc := newService(t, &fakeCompleter{replies: []string{`{"plan_title": "x", "topics": []}`}})

	_, err := svc.CreateStudyPlan(context.Background(), content.StudyPlanRequest{CourseName: "BIO", Text: "notes"})
	assert.ErrorIs(t, err, content.ErrBadResponse)
}

func TestService_WriteStudyEmail(t *testing.T) {
	long := "<h1>Glycolysis</h1>" + strings.Repeat("a", content.MaxStudyHTML)
	f := &fakeCompleter{replies: []string{"```html\n" + long + "\n```"}}
	svc := newService(t, f)

	html, err := svc.WriteStudyEmail(context.Background(), content.StudyEmailRequest{
		CourseName:   "BIO 201",
		Topics:       []string{"Glycolysis", "TCA Cycle"},
		SectionTitle: "Glycolysis",
		ContentTypes: []string{"quiz", "summary"},
		PlanTitle:    "BIO 201",
		Position:     1,
	})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(html, "<p>[Content trimmed]</p>"))
	assert.True(t, strings.HasPrefix(html, "<h1>Glycolysis</h1>"))

	prompt := f.prompt(0)
	assert.Contains(t, prompt, "QUIZ FORMAT")
	assert.Contains(t, prompt, "Glycolysis, TCA Cycle")
	assert.Less(t, strings.Index(prompt, "<h2>Quiz</h2>"), strings.Index(prompt, "<h2>Summary</h2>"))
	assert.NotContains(t, prompt, "<h2>Flashcards</h2>")
}

func TestService_SubjectLine(t *testing.T) {
	svc := newService(t, &fakeCompleter{replies: []string{`"Crack the Code on Glycolysis!"`}})

	subj, err := svc.SubjectLine(context.Background(), "Glycolysis", "BIO 201")
	require.NoError(t, err)
	assert.Equal(t, "Crack the Code on Glycolysis", subj)
}

func TestService_ExtractSyllabus(t *testing.T) {
	svc := newService(t, &fakeCompleter{replies: []string{`{"course_title": "World History", "topics": ["World War II"]}`}})

	ext, err := svc.ExtractSyllabus(context.Background(), "syllabus text")
	require.NoError(t, err)
	assert.Equal(t, "World History", ext.CourseTitle)
	assert.Equal(t, []string{"World War II"}, ext.Topics)
	assert.NotNil(t, ext.DateTopicMap)
}

func TestService_circuitBreaker(t *testing.T) {
	f := &fakeCompleter{err: errors.New("503 service unavailable")}
	svc := newService(t, f)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := svc.WriteNewsletter(ctx, content.NewsletterRequest{Topic: "x"})
		require.Error(t, err)
		assert.NotErrorIs(t, err, gobreaker.ErrOpenState)
	}
	_, err := svc.WriteNewsletter(ctx, content.NewsletterRequest{Topic: "x"})
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Len(t, f.requests, 2)
}

func TestStudySections(t *testing.T) {
	instructions, skeleton, hasQuiz := studySections(nil)
	assert.Len(t, instructions, 2)
	assert.Contains(t, skeleton, "<h2>Summary</h2>")
	assert.Contains(t, skeleton, "<h2>Flashcards</h2>")
	assert.False(t, hasQuiz)

	instructions, _, hasQuiz = studySections([]string{"Suggested Reading", "bogus", "quiz"})
	assert.Len(t, instructions, 2)
	assert.True(t, hasQuiz)
}
