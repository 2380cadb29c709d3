package studyplan

import (
	"context"
	"errors"
	"strings"

	perrors "github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/memoraid/memoraid/core"
	"github.com/memoraid/memoraid/core/billing"
	"github.com/memoraid/memoraid/core/content"
	"github.com/memoraid/memoraid/core/delivery"
	"github.com/memoraid/memoraid/core/user"
)

var (
	// errors
	ErrNotFound = errors.New("study plan not found")
	ErrNoTopics = errors.New("no topics could be found in the input")

	errPlanGeneration  = "Failed to generate study plan"
	errExtractionError = "Failed to extract topics"
)

type (
	Service interface {
		ExtractTopics(ctx context.Context, data []byte, filename, kind string) (content.Extraction, error)
		Create(ctx context.Context, usr user.User, ns NewStudyPlan) (StudyPlan, error)
		List(ctx context.Context, usr user.User) ([]Summary, error)
		Get(ctx context.Context, usr user.User, id int64) (Detail, error)
		Toggle(ctx context.Context, usr user.User, id int64) (StudyPlan, error)
		Delete(ctx context.Context, usr user.User, id int64) error
	}

	service struct {
		db        core.Transactor
		repo      Repository
		mailRepo  delivery.Repository
		planner   content.StudyPlanner
		extractor content.TopicExtractor
		docs      content.TextExtractor
		logger    core.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(
	db core.Transactor,
	repo Repository,
	mailRepo delivery.Repository,
	planner content.StudyPlanner,
	extractor content.TopicExtractor,
	docs content.TextExtractor,
	logger core.Logger,
) Service {
	return &service{
		db:        db,
		repo:      repo,
		mailRepo:  mailRepo,
		planner:   planner,
		extractor: extractor,
		docs:      docs,
		logger:    logger,
	}
}

func (svc *service) ExtractTopics(ctx context.Context, data []byte, filename, kind string) (content.Extraction, error) {
	text, err := svc.docs.Extract(data, filename)
	if err != nil {
		if errors.Is(err, content.ErrUnsupportedFile) || errors.Is(err, content.ErrNoText) {
			return content.Extraction{}, core.NewValidationError(err, core.FieldError{Field: "file", Error: err.Error()})
		}
		return content.Extraction{}, perrors.Wrap(err, "extracting text")
	}

	var ext content.Extraction
	if kind == content.KindSyllabus {
		ext, err = svc.extractor.ExtractSyllabus(ctx, text)
	} else {
		ext, err = svc.extractor.ExtractMaterial(ctx, text)
	}
	if err != nil {
		svc.logger.Error("extracting topics", err)
		return content.Extraction{}, core.NewUpstreamError(errExtractionError, err)
	}
	ext.CourseTitle = strings.TrimSpace(ext.CourseTitle)
	ext.Topics = content.CoerceTopics(ext.Topics)
	if ext.DateTopicMap == nil && kind == content.KindSyllabus {
		ext.DateTopicMap = map[string]string{}
	}
	return ext, nil
}

func (svc *service) Create(ctx context.Context, usr user.User, ns NewStudyPlan) (StudyPlan, error) {
	total, active, err := svc.repo.CountUserStudyPlans(ctx, usr.ID)
	if err != nil {
		return StudyPlan{}, perrors.Wrap(err, "counting study plans")
	}
	if err := billing.CheckCanCreate(usr, total, active); err != nil {
		return StudyPlan{}, err
	}

	plan, err := svc.planner.CreateStudyPlan(ctx, content.StudyPlanRequest{
		CourseName:   ns.CourseName,
		Topics:       ns.Topics,
		Text:         ns.Text,
		ContentTypes: ns.ContentTypes,
	})
	if err != nil {
		svc.logger.Error("creating study plan", err, usr)
		return StudyPlan{}, core.NewUpstreamError(errPlanGeneration, err)
	}
	topics := content.CoerceTopics(plan.Topics)
	if len(topics) == 0 {
		return StudyPlan{}, core.NewValidationError(ErrNoTopics, core.FieldError{Field: "topics", Error: ErrNoTopics.Error()})
	}

	email := ns.Email
	if email == "" {
		email = usr.Email
	}
	now := core.Now()
	first := delivery.FirstSend(now, ns.SendTime)
	sp := StudyPlan{
		UserID:       usr.ID,
		Email:        email,
		CourseName:   ns.CourseName,
		PlanTitle:    strings.TrimSpace(plan.PlanTitle),
		Summary:      strings.TrimSpace(plan.Summary),
		Topics:       topics,
		ContentTypes: ns.ContentTypes,
		Frequency:    ns.Frequency,
		MaxEmails:    null.IntFrom(billing.CapStudyEmails(usr, ns.MaxEmails, len(topics))),
		NextSendTime: null.TimeFrom(first),
		IsActive:     true,
		CreatedAt:    now,
	}
	if sp.PlanTitle == "" {
		sp.PlanTitle = "Study Plan"
	}

	err = svc.db.RunInTx(ctx, func(exec core.DBExecutor) error {
		var err error
		if sp, err = svc.repo.CreateStudyPlan(ctx, sp, exec); err != nil {
			return perrors.Wrap(err, "creating study plan")
		}
		_, err = svc.mailRepo.CreateEmails(ctx, []delivery.Email{{
			UserID:   usr.ID,
			PlanID:   sp.ID,
			PlanKind: delivery.KindStudy,
			Position: 1,
			Title:    topics[0],
			Topic:    topics[0],
			SendDate: first,
		}}, exec)
		return perrors.Wrap(err, "scheduling first lesson")
	})
	if err != nil {
		return StudyPlan{}, err
	}
	return sp, nil
}

func (svc *service) get(ctx context.Context, usr user.User, id int64) (StudyPlan, error) {
	sp, err := svc.repo.GetStudyPlan(ctx, id)
	if err != nil {
		return StudyPlan{}, err
	}
	if sp.UserID != usr.ID {
		return StudyPlan{}, ErrNotFound
	}
	return sp, nil
}

func (svc *service) summarize(ctx context.Context, sp StudyPlan) (Summary, error) {
	_, sent, err := svc.mailRepo.CountPlanEmails(ctx, delivery.KindStudy, sp.ID)
	if err != nil {
		return Summary{}, perrors.Wrap(err, "counting lessons")
	}
	return Summary{
		StudyPlan:    sp,
		SentCount:    sent,
		TotalAllowed: sp.TotalAllowed(),
		LockedTopics: sp.LockedTopics(),
	}, nil
}

func (svc *service) List(ctx context.Context, usr user.User) ([]Summary, error) {
	plans, err := svc.repo.QueryUserStudyPlans(ctx, usr.ID)
	if err != nil {
		return nil, perrors.Wrap(err, "querying study plans")
	}
	out := make([]Summary, 0, len(plans))
	for _, sp := range plans {
		s, err := svc.summarize(ctx, sp)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func (svc *service) Get(ctx context.Context, usr user.User, id int64) (Detail, error) {
	sp, err := svc.get(ctx, usr, id)
	if err != nil {
		return Detail{}, err
	}
	s, err := svc.summarize(ctx, sp)
	if err != nil {
		return Detail{}, err
	}
	lessons, err := svc.mailRepo.QueryPlanEmails(ctx, delivery.KindStudy, sp.ID)
	if err != nil {
		return Detail{}, perrors.Wrap(err, "querying lessons")
	}
	return Detail{Summary: s, Lessons: lessons}, nil
}

func (svc *service) Toggle(ctx context.Context, usr user.User, id int64) (StudyPlan, error) {
	sp, err := svc.get(ctx, usr, id)
	if err != nil {
		return StudyPlan{}, err
	}
	if !sp.IsActive {
		_, active, err := svc.repo.CountUserStudyPlans(ctx, usr.ID)
		if err != nil {
			return StudyPlan{}, perrors.Wrap(err, "counting study plans")
		}
		if err := billing.CheckCanActivate(usr, active); err != nil {
			return StudyPlan{}, err
		}
	}
	sp.IsActive = !sp.IsActive
	sp, err = svc.repo.UpdateStudyPlan(ctx, sp)
	return sp, perrors.Wrap(err, "toggling study plan")
}

func (svc *service) Delete(ctx context.Context, usr user.User, id int64) error {
	sp, err := svc.get(ctx, usr, id)
	if err != nil {
		return err
	}
	return svc.db.RunInTx(ctx, func(exec core.DBExecutor) error {
		if err := svc.mailRepo.DeleteUnsentPlanEmails(ctx, delivery.KindStudy, sp.ID, exec); err != nil {
			return perrors.Wrap(err, "deleting unsent lessons")
		}
		return perrors.Wrap(svc.repo.DeleteStudyPlan(ctx, sp.ID, exec), "deleting study plan")
	})
}
