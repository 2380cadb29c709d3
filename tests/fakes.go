package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/memoraid/memoraid/core/content"
)

// FakeGenerator is a canned content.Generator. Set Err to make every call fail.
type FakeGenerator struct {
	Err error

	Plan       content.EmailPlan
	StudyPlan  content.StudyPlan
	Extraction content.Extraction

	mu    sync.Mutex
	calls map[string]int
}

var _ content.Generator = (*FakeGenerator)(nil)

func NewFakeGenerator() *FakeGenerator {
	return &FakeGenerator{
		Plan: content.EmailPlan{
			PlanTitle:     "Go in five emails",
			SectionTitles: []string{"Basics", "Types", "Interfaces", "Concurrency", "Tooling"},
		},
		StudyPlan: content.StudyPlan{
			PlanTitle: "Biology 101",
			Summary:   "Cells to ecosystems.",
			Topics:    []string{"Cells", "Genetics", "Evolution"},
		},
		Extraction: content.Extraction{
			CourseTitle: "Biology 101",
			Topics:      []string{"Cells", "Genetics"},
		},
		calls: make(map[string]int),
	}
}

func (g *FakeGenerator) record(name string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls[name]++
	return g.Err
}

// Calls returns how many times the named method was called.
func (g *FakeGenerator) Calls(name string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[name]
}

func (g *FakeGenerator) CreateEmailPlan(context.Context, content.PlanRequest) (content.EmailPlan, error) {
	if err := g.record("CreateEmailPlan"); err != nil {
		return content.EmailPlan{}, err
	}
	return g.Plan, nil
}

func (g *FakeGenerator) Teaser(context.Context, content.PlanRequest, content.EmailPlan) (string, error) {
	if err := g.record("Teaser"); err != nil {
		return "", err
	}
	return "A short series about Go.", nil
}

func (g *FakeGenerator) WriteNewsletter(_ context.Context, req content.NewsletterRequest) (string, error) {
	if err := g.record("WriteNewsletter"); err != nil {
		return "", err
	}
	return fmt.Sprintf("```html\n<h1>%s</h1><p>Part %d</p>\n```", req.Title, req.Position), nil
}

func (g *FakeGenerator) CreateStudyPlan(context.Context, content.StudyPlanRequest) (content.StudyPlan, error) {
	if err := g.record("CreateStudyPlan"); err != nil {
		return content.StudyPlan{}, err
	}
	return g.StudyPlan, nil
}

func (g *FakeGenerator) WriteStudyEmail(_ context.Context, req content.StudyEmailRequest) (string, error) {
	if err := g.record("WriteStudyEmail"); err != nil {
		return "", err
	}
	return fmt.Sprintf("<h2>%s</h2><p>Lesson %d</p>", req.SectionTitle, req.Position), nil
}

func (g *FakeGenerator) SubjectLine(_ context.Context, topic, _ string) (string, error) {
	if err := g.record("SubjectLine"); err != nil {
		return "", err
	}
	return "All about " + topic, nil
}

func (g *FakeGenerator) ExtractSyllabus(context.Context, string) (content.Extraction, error) {
	if err := g.record("ExtractSyllabus"); err != nil {
		return content.Extraction{}, err
	}
	return g.Extraction, nil
}

func (g *FakeGenerator) ExtractMaterial(context.Context, string) (content.Extraction, error) {
	if err := g.record("ExtractMaterial"); err != nil {
		return content.Extraction{}, err
	}
	return g.Extraction, nil
}
