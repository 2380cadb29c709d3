package aisvc

import (
	"bytes"
	"io/fs"
	"strings"
	"text/template"

	"github.com/pkg/errors"
)

// Prompt templates
const (
	promptEmailPlan       = "email_plan.tmpl"
	promptTeaser          = "teaser.tmpl"
	promptNewsletter      = "newsletter.tmpl"
	promptStudyPlan       = "study_plan.tmpl"
	promptSubjectLine     = "subject_line.tmpl"
	promptStudyEmail      = "study_email.tmpl"
	promptExtractSyllabus = "extract_syllabus.tmpl"
	promptExtractMaterial = "extract_material.tmpl"
)

const (
	maxStudyInput   = 8000
	maxDocumentText = 4000
)

func parsePrompts(fsys fs.FS, dir string) (*template.Template, error) {
	tmpl, err := template.New("prompts").
		Option("missingkey=error").
		Funcs(template.FuncMap{"join": strings.Join}).
		ParseFS(fsys, dir+"/*.tmpl")
	if err != nil {
		return nil, errors.Wrap(err, "parsing prompts")
	}
	return tmpl, nil
}

func render(tmpl *template.Template, name string, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return "", errors.Wrapf(err, "rendering %s", name)
	}
	return strings.TrimSpace(buf.String()), nil
}

// study email section instructions and skeletons, by content type
var (
	sectionInstructions = map[string]string{
		"summary":           "Summary: a deep explanation of the subtopic's mechanism and logic, with at least one non-obvious insight or exception.",
		"example":           "Example: a realistic applied scenario and the reasoning chain to its outcome, different from the summary.",
		"quiz":              "Quiz: 5 challenging multiple-choice questions testing application and reasoning, not recall.",
		"flashcards":        "Flashcards: 6-8 cards on different dimensions of the subtopic (mechanism, regulators, detection, consequences).",
		"suggested reading": "Suggested Reading: 2-3 advanced, realistic resources that fill the gaps left by the other sections.",
	}

	sectionSkeletons = map[string]string{
		"summary": "<h2>Summary</h2>\n<ul>\n  <li><strong>Mechanism:</strong> ...</li>\n  <li><strong>Regulation:</strong> ...</li>\n" +
			"  <li><strong>Exception/Pitfall:</strong> ...</li>\n</ul>",
		"example": "<h2>Example</h2>\n<p><strong>Scenario:</strong> ...</p>\n<p><strong>Task:</strong> ...</p>\n" +
			"<p><strong>Reasoning:</strong> ...</p>\n<p><strong>Conclusion:</strong> ...</p>",
		"quiz":              "<h2>Quiz</h2>\n<ol class=\"quiz\">...</ol>",
		"flashcards":        "<h2>Flashcards</h2>\n<ul>\n  <li>Term — Definition</li>\n  ...\n</ul>",
		"suggested reading": "<h2>Suggested Reading</h2>\n<ul>\n  <li>Title/Section — why it helps</li>\n  ...\n</ul>",
	}

	defaultSections = []string{"summary", "flashcards"}
)

type studyEmailData struct {
	PlanTitle    string
	Position     int
	SectionTitle string
	Topics       []string
	PastContent  string
	Sections     []string
	HasQuiz      bool
	Skeleton     string
}

// studySections picks the instructions and skeleton of the requested content types, in request order.
func studySections(contentTypes []string) (instructions []string, skeleton string, hasQuiz bool) {
	selected := make([]string, 0, len(contentTypes))
	for _, ct := range contentTypes {
		ct = strings.ToLower(strings.TrimSpace(ct))
		if _, ok := sectionInstructions[ct]; ok {
			selected = append(selected, ct)
		}
	}
	if len(selected) == 0 {
		selected = defaultSections
	}

	skeletons := make([]string, 0, len(selected))
	for _, ct := range selected {
		instructions = append(instructions, sectionInstructions[ct])
		skeletons = append(skeletons, sectionSkeletons[ct])
		if ct == "quiz" {
			hasQuiz = true
		}
	}
	return instructions, strings.Join(skeletons, "\n\n"), hasQuiz
}
