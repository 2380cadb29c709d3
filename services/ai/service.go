// Package aisvc generates newsletter and study content with the OpenAI chat completions API.
package aisvc

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"strings"
	"text/template"
	"time"

	perrors "github.com/pkg/errors"
	openai "github.com/sashabaranov/go-openai"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/memoraid/memoraid/core"
	"github.com/memoraid/memoraid/core/content"
)

var (
	defaultPlanTitle  = "Untitled Series"
	defaultStudyTitle = "Study Plan"
)

// Completer is the part of *openai.Client the service uses.
type Completer interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

type Service struct {
	client  Completer
	cb      *gobreaker.CircuitBreaker[string]
	prompts *template.Template
	conf    core.AIConfig
	logger  core.Logger
}

var _ content.Generator = (*Service)(nil) // interface compliance check

func NewClient(conf *core.Config) *openai.Client {
	return openai.NewClient(conf.AI.APIKey)
}

// NewService wraps client with a circuit breaker that opens after conf.AI.FailureThreshold
// consecutive failures and half-opens after conf.AI.OpenTimeout.
func NewService(client Completer, fsys fs.FS, promptsDir string, logger core.Logger, conf *core.Config) (*Service, error) {
	prompts, err := parsePrompts(fsys, promptsDir)
	if err != nil {
		return nil, err
	}

	threshold := conf.AI.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}
	cb := gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        "openai",
		MaxRequests: 1,
		Timeout:     conf.AI.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change", map[string]interface{}{"name": name, "from": from.String(), "to": to.String()})
		},
		// a cancelled caller says nothing about the provider's health
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	})

	return &Service{
		client:  client,
		cb:      cb,
		prompts: prompts,
		conf:    conf.AI,
		logger:  logger,
	}, nil
}

func (svc *Service) complete(ctx context.Context, model string, temperature float32, prompt string) (string, error) {
	if svc.conf.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, svc.conf.RequestTimeout)
		defer cancel()
	}

	start := time.Now()
	out, err := svc.cb.Execute(func() (string, error) {
		resp, err := svc.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       model,
			Temperature: temperature,
			Messages:    []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleUser, Content: prompt}},
		})
		if err != nil {
			return "", err
		}
		if len(resp.Choices) == 0 {
			return "", content.ErrBadResponse
		}
		return strings.TrimSpace(resp.Choices[0].Message.Content), nil
	})
	if err != nil {
		return "", perrors.Wrapf(err, "chat completion (%s)", model)
	}
	svc.logger.Debug("chat completion", map[string]interface{}{"model": model, "took": time.Since(start).String()})
	return out, nil
}

// completeJSON asks for a JSON object and decodes it into v.
func (svc *Service) completeJSON(ctx context.Context, model string, temperature float32, prompt string, v interface{}) error {
	out, err := svc.complete(ctx, model, temperature, prompt)
	if err != nil {
		return err
	}
	if err = json.Unmarshal([]byte(content.StripCodeFences(out)), v); err != nil {
		return perrors.Wrap(content.ErrBadResponse, err.Error())
	}
	return nil
}

func (svc *Service) CreateEmailPlan(ctx context.Context, req content.PlanRequest) (content.EmailPlan, error) {
	prompt, err := render(svc.prompts, promptEmailPlan, req)
	if err != nil {
		return content.EmailPlan{}, err
	}
	var plan content.EmailPlan
	if err = svc.completeJSON(ctx, svc.conf.PlannerModel, 0.7, prompt, &plan); err != nil {
		return content.EmailPlan{}, err
	}
	plan.PlanTitle = strings.TrimSpace(plan.PlanTitle)
	if plan.PlanTitle == "" {
		plan.PlanTitle = defaultPlanTitle
	}
	return plan, nil
}

func (svc *Service) Teaser(ctx context.Context, req content.PlanRequest, plan content.EmailPlan) (string, error) {
	prompt, err := render(svc.prompts, promptTeaser, struct {
		content.PlanRequest
		content.EmailPlan
	}{req, plan})
	if err != nil {
		return "", err
	}
	return svc.complete(ctx, svc.conf.PlannerModel, 0.9, prompt)
}

func (svc *Service) WriteNewsletter(ctx context.Context, req content.NewsletterRequest) (string, error) {
	prompt, err := render(svc.prompts, promptNewsletter, req)
	if err != nil {
		return "", err
	}
	out, err := svc.complete(ctx, svc.conf.WriterModel, 0.7, prompt)
	if err != nil {
		return "", err
	}
	return content.StripCodeFences(out), nil
}

type studyPlanData struct {
	CourseName string
	InputKind  string
	Input      string
	Strict     bool
}

// CreateStudyPlan retries once with a stricter prompt when the first answer is unusable.
func (svc *Service) CreateStudyPlan(ctx context.Context, req content.StudyPlanRequest) (content.StudyPlan, error) {
	data := studyPlanData{CourseName: req.CourseName, InputKind: "PARAGRAPH_OR_MIXED", Input: req.Text}
	if len(req.Topics) > 0 {
		lines := make([]string, 0, len(req.Topics))
		for _, t := range req.Topics {
			lines = append(lines, "- "+t)
		}
		data.InputKind, data.Input = "LIST", strings.Join(lines, "\n")
	}
	data.Input = core.Truncate(strings.TrimSpace(data.Input), maxStudyInput)

	var lastErr error
	for _, strict := range []bool{false, true} {
		data.Strict = strict
		prompt, err := render(svc.prompts, promptStudyPlan, data)
		if err != nil {
			return content.StudyPlan{}, err
		}
		var plan content.StudyPlan
		if err = svc.completeJSON(ctx, svc.conf.PlannerModel, 0.2, prompt, &plan); err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || ctx.Err() != nil {
				return content.StudyPlan{}, err
			}
			lastErr = err
			continue
		}
		plan.Topics = content.CoerceTopics(plan.Topics)
		if len(plan.Topics) == 0 {
			lastErr = perrors.Wrap(content.ErrBadResponse, "no topics extracted")
			continue
		}
		plan.PlanTitle = strings.TrimSpace(plan.PlanTitle)
		if plan.PlanTitle == "" {
			plan.PlanTitle = defaultStudyTitle
		}
		plan.Summary = strings.TrimSpace(plan.Summary)
		return plan, nil
	}
	return content.StudyPlan{}, lastErr
}

func (svc *Service) SubjectLine(ctx context.Context, topic, courseName string) (string, error) {
	prompt, err := render(svc.prompts, promptSubjectLine, map[string]string{"Topic": topic, "CourseName": courseName})
	if err != nil {
		return "", err
	}
	out, err := svc.complete(ctx, svc.conf.WriterModel, 0.6, prompt)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(strings.Trim(out, `"'`), ".!"), nil
}

func (svc *Service) WriteStudyEmail(ctx context.Context, req content.StudyEmailRequest) (string, error) {
	sections, skeleton, hasQuiz := studySections(req.ContentTypes)
	prompt, err := render(svc.prompts, promptStudyEmail, studyEmailData{
		PlanTitle:    req.PlanTitle,
		Position:     req.Position,
		SectionTitle: req.SectionTitle,
		Topics:       req.Topics,
		PastContent:  req.PastContent,
		Sections:     sections,
		HasQuiz:      hasQuiz,
		Skeleton:     skeleton,
	})
	if err != nil {
		return "", err
	}
	out, err := svc.complete(ctx, svc.conf.WriterModel, 0.5, prompt)
	if err != nil {
		return "", err
	}
	return content.CleanStudyHTML(out), nil
}

func (svc *Service) extract(ctx context.Context, name, text string) (content.Extraction, error) {
	prompt, err := render(svc.prompts, name, map[string]string{"Text": core.Truncate(text, maxDocumentText)})
	if err != nil {
		return content.Extraction{}, err
	}
	var ext content.Extraction
	if err = svc.completeJSON(ctx, svc.conf.ExtractionModel, 0.3, prompt, &ext); err != nil {
		return content.Extraction{}, err
	}
	ext.CourseTitle = strings.TrimSpace(ext.CourseTitle)
	if ext.Topics == nil {
		ext.Topics = []string{}
	}
	return ext, nil
}

func (svc *Service) ExtractSyllabus(ctx context.Context, text string) (content.Extraction, error) {
	ext, err := svc.extract(ctx, promptExtractSyllabus, text)
	if err != nil {
		return content.Extraction{}, err
	}
	if ext.DateTopicMap == nil {
		ext.DateTopicMap = map[string]string{}
	}
	return ext, nil
}

func (svc *Service) ExtractMaterial(ctx context.Context, text string) (content.Extraction, error) {
	ext, err := svc.extract(ctx, promptExtractMaterial, text)
	if err != nil {
		return content.Extraction{}, err
	}
	ext.DateTopicMap = nil
	return ext, nil
}
