// Package content defines the contracts of the generation and extraction providers.
package content

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"
)

const (
	// MaxStudyHTML is the longest study email body kept, in characters.
	MaxStudyHTML = 15000
	// MaxTopics caps the topics kept by the study planner.
	MaxTopics = 200
	// MinTopicLen drops junk topics.
	MinTopicLen = 3

	trimmedNote = "\n<p>[Content trimmed]</p>"
)

// Study content types
const (
	TypeSummary          = "summary"
	TypeExample          = "example"
	TypeQuiz             = "quiz"
	TypeFlashcards       = "flashcards"
	TypeSuggestedReading = "suggested reading"
)

// Document kinds
const (
	KindSyllabus = "syllabus"
	KindMaterial = "material"
)

var (
	ContentTypes = []string{TypeSummary, TypeExample, TypeQuiz, TypeFlashcards, TypeSuggestedReading}

	// errors
	ErrUnsupportedFile = errors.New("unsupported file type, upload a PDF or DOCX")
	ErrNoText          = errors.New("no text could be extracted from the file")
	ErrBadResponse     = errors.New("unexpected response from the content generator")
)

type (
	EmailPlan struct {
		PlanTitle     string   `json:"plan_title"`
		SectionTitles []string `json:"section_titles"`
	}

	PlanRequest struct {
		Topic       string
		Demographic string
		Tone        string
	}

	NewsletterRequest struct {
		Topic        string
		Demographic  string
		Tone         string
		Title        string
		PlanTitle    string
		SectionTitle string
		Position     int
		PastContent  string
	}

	StudyPlan struct {
		PlanTitle string   `json:"plan_title"`
		Summary   string   `json:"summary"`
		Topics    []string `json:"topics"`
	}

	StudyPlanRequest struct {
		CourseName   string
		Topics       []string // either Topics...
		Text         string   // ...or free text
		ContentTypes []string
	}

	StudyEmailRequest struct {
		CourseName   string
		Topics       []string
		SectionTitle string
		ContentTypes []string
		PlanTitle    string
		Position     int
		PastContent  string
	}

	Extraction struct {
		CourseTitle  string            `json:"course_title"`
		Topics       []string          `json:"topics"`
		DateTopicMap map[string]string `json:"date_topic_map,omitempty"` // YYYY-MM-DD -> topic (syllabus only)
	}

	Planner interface {
		CreateEmailPlan(ctx context.Context, req PlanRequest) (EmailPlan, error)
		Teaser(ctx context.Context, req PlanRequest, plan EmailPlan) (string, error)
	}

	Writer interface {
		WriteNewsletter(ctx context.Context, req NewsletterRequest) (string, error)
	}

	StudyPlanner interface {
		CreateStudyPlan(ctx context.Context, req StudyPlanRequest) (StudyPlan, error)
	}

	StudyWriter interface {
		WriteStudyEmail(ctx context.Context, req StudyEmailRequest) (string, error)
		SubjectLine(ctx context.Context, topic, courseName string) (string, error)
	}

	TopicExtractor interface {
		ExtractSyllabus(ctx context.Context, text string) (Extraction, error)
		ExtractMaterial(ctx context.Context, text string) (Extraction, error)
	}

	// Generator is everything the language model provider does.
	Generator interface {
		Planner
		Writer
		StudyPlanner
		StudyWriter
		TopicExtractor
	}

	// TextExtractor pulls plain text out of an uploaded document.
	TextExtractor interface {
		Extract(data []byte, filename string) (string, error)
	}
)

// StripCodeFences removes markdown fences models sometimes wrap output in.
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimLeft(s, "`")
		s = strings.TrimPrefix(s, "json")
		s = strings.TrimPrefix(s, "html")
		s = strings.TrimSpace(s)
	}
	if i := strings.Index(s, "```"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

// CleanStudyHTML strips fences and cuts overly long bodies.
func CleanStudyHTML(s string) string {
	s = StripCodeFences(s)
	if utf8.RuneCountInString(s) <= MaxStudyHTML {
		return s
	}
	var n int
	for i := range s {
		if n == MaxStudyHTML {
			return s[:i] + trimmedNote
		}
		n++
	}
	return s
}

// CoerceTopics trims, drops empties, dedupes case-insensitively keeping order, caps at MaxTopics
// and finally drops topics shorter than MinTopicLen.
func CoerceTopics(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, t := range raw {
		s := strings.TrimSpace(t)
		if s == "" {
			continue
		}
		k := strings.ToLower(s)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, s)
		if len(out) >= MaxTopics {
			break
		}
	}

	kept := out[:0]
	for _, t := range out {
		if len([]rune(t)) >= MinTopicLen {
			kept = append(kept, t)
		}
	}
	return kept
}

// NormalizeContentTypes lowercases and keeps known content types only.
func NormalizeContentTypes(types []string) []string {
	out := make([]string, 0, len(types))
	seen := make(map[string]struct{}, len(types))
	for _, t := range types {
		t = strings.ToLower(strings.TrimSpace(t))
		if _, dup := seen[t]; dup {
			continue
		}
		for _, known := range ContentTypes {
			if t == known {
				out = append(out, t)
				seen[t] = struct{}{}
				break
			}
		}
	}
	return out
}
