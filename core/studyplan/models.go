package studyplan

import (
	"context"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/memoraid/memoraid/core"
	"github.com/memoraid/memoraid/core/content"
	"github.com/memoraid/memoraid/core/delivery"
)

var (
	contentTypeTag  = "content_type"
	contentTypeText = "invalid content type"
	docKindTag      = "doc_kind"
	docKindText     = "kind must be one of syllabus, material"
)

type StudyPlan struct {
	ID                int64     `json:"id"`
	UserID            int64     `json:"-"`
	Email             string    `json:"email"`
	CourseName        string    `json:"course_name"`
	PlanTitle         string    `json:"plan_title"`
	Summary           string    `json:"summary"`
	Topics            []string  `json:"topics"`
	ContentTypes      []string  `json:"content_types"`
	Frequency         string    `json:"frequency"`
	MaxEmails         null.Int  `json:"max_emails"`
	NextSendTime      null.Time `json:"next_send_time"` // UTC
	IsActive          bool      `json:"is_active"`
	FirstPassComplete bool      `json:"first_pass_complete"`
	CompletedAt       null.Time `json:"completed_at"` // UTC
	CreatedAt         time.Time `json:"created_at"`   // UTC
}

// TotalAllowed is the number of lessons the plan sends: MaxEmails when set, else one per topic.
func (sp StudyPlan) TotalAllowed() int {
	if sp.MaxEmails.Valid && sp.MaxEmails.Int > 0 {
		return sp.MaxEmails.Int
	}
	return len(sp.Topics)
}

// LockedTopics are topics the plan will never reach with its current allowance.
func (sp StudyPlan) LockedTopics() []string {
	n := sp.TotalAllowed()
	if n >= len(sp.Topics) {
		return []string{}
	}
	return append([]string{}, sp.Topics[n:]...)
}

// TopicAt returns the topic of a (1-based) lesson position, cycling back through earlier
// topics once every topic has been covered.
func (sp StudyPlan) TopicAt(pos int) (string, bool) {
	n := len(sp.Topics)
	if n == 0 || pos < 1 {
		return "", false
	}
	if pos <= n {
		return sp.Topics[pos-1], true
	}
	return sp.Topics[(pos-n-1)%n], true
}

// NextLesson builds the lesson following justSent, or false when the plan's allowance is used up.
func (sp StudyPlan) NextLesson(justSent int, now time.Time) (delivery.Email, bool) {
	next := justSent + 1
	if next > sp.TotalAllowed() {
		return delivery.Email{}, false
	}
	topic, ok := sp.TopicAt(next)
	if !ok {
		return delivery.Email{}, false
	}
	return delivery.Email{
		UserID:   sp.UserID,
		PlanID:   sp.ID,
		PlanKind: delivery.KindStudy,
		Position: next,
		Title:    topic,
		Topic:    topic,
		SendDate: now.UTC().Add(delivery.Interval(sp.Frequency)).Truncate(time.Second),
	}, true
}

type NewStudyPlan struct {
	CourseName   string   `json:"course_name" validate:"required,notblank,max=300"`
	Topics       []string `json:"topics" validate:"required_without=Text,max=500"`
	Text         string   `json:"text" validate:"required_without=Topics,max=50000"`
	ContentTypes []string `json:"content_types" validate:"required,min=1,dive,content_type"`
	Frequency    string   `json:"frequency" validate:"required,frequency"`
	SendTime     string   `json:"send_time" validate:"omitempty,send_offset"`
	MaxEmails    int      `json:"max_emails" validate:"min=0,max=1000"`
	Email        string   `json:"email" validate:"omitempty,email"`
}

func (ns *NewStudyPlan) Validate(validate *validator.Validate) error {
	ns.CourseName = core.CleanString(ns.CourseName)
	ns.Text = core.CleanString(ns.Text)
	ns.Frequency = core.CleanString(ns.Frequency, true /* lower */)
	ns.SendTime = core.CleanString(ns.SendTime, true /* lower */)
	ns.Email = core.CleanString(ns.Email, true /* lower */)
	ns.ContentTypes = content.NormalizeContentTypes(ns.ContentTypes)
	if len(ns.Topics) > 0 {
		ns.Topics = content.CoerceTopics(ns.Topics)
	}
	return validate.Struct(ns)
}

type ExtractRequest struct {
	Kind string `form:"kind" validate:"required,doc_kind"`
}

func (er *ExtractRequest) Validate(validate *validator.Validate) error {
	er.Kind = core.CleanString(er.Kind, true /* lower */)
	return validate.Struct(er)
}

type Summary struct {
	StudyPlan
	SentCount    int      `json:"sent_count"`
	TotalAllowed int      `json:"total_allowed"`
	LockedTopics []string `json:"locked_topics"`
}

type Detail struct {
	Summary
	Lessons []delivery.Email `json:"lessons"`
}

type Repository interface {
	CreateStudyPlan(ctx context.Context, sp StudyPlan, exec ...core.DBExecutor) (StudyPlan, error)
	GetStudyPlan(ctx context.Context, id int64, exec ...core.DBExecutor) (StudyPlan, error)
	QueryUserStudyPlans(ctx context.Context, userID int64, exec ...core.DBExecutor) ([]StudyPlan, error)
	CountUserStudyPlans(ctx context.Context, userID int64, exec ...core.DBExecutor) (total, active int, err error)
	UpdateStudyPlan(ctx context.Context, sp StudyPlan, exec ...core.DBExecutor) (StudyPlan, error)
	DeleteStudyPlan(ctx context.Context, id int64, exec ...core.DBExecutor) error
}

func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(contentTypeTag, core.OneOfValidation(content.ContentTypes...))
	core.RegisterCustomTranslation(validate, translator, contentTypeTag, contentTypeText)

	_ = validate.RegisterValidation(docKindTag, core.OneOfValidation(content.KindSyllabus, content.KindMaterial))
	core.RegisterCustomTranslation(validate, translator, docKindTag, docKindText)
}
