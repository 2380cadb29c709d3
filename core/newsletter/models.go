package newsletter

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/memoraid/memoraid/core"
	"github.com/memoraid/memoraid/core/billing"
	"github.com/memoraid/memoraid/core/delivery"
)

// SectionCount is the number of emails of a newsletter series.
const SectionCount = 5

type Newsletter struct {
	ID            int64     `json:"id"`
	UserID        int64     `json:"-"`
	Email         string    `json:"email"`
	Topic         string    `json:"topic"`
	Demographic   string    `json:"demographic"`
	Tone          string    `json:"tone"`
	Frequency     string    `json:"frequency"`
	PlanTitle     string    `json:"plan_title"`
	SectionTitles []string  `json:"section_titles"`
	Summary       string    `json:"summary"`
	NextSendTime  null.Time `json:"next_send_time"` // UTC
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"` // UTC
}

type DraftRequest struct {
	Topic       string `json:"topic" validate:"required,notblank,max=500"`
	Demographic string `json:"demographic" validate:"required,notblank,max=200"`
	Tone        string `json:"tone" validate:"required,notblank,max=100"`
	Frequency   string `json:"frequency" validate:"required,frequency"`
	Email       string `json:"email" validate:"omitempty,email"`
}

func (dr *DraftRequest) clean() {
	dr.Topic = core.CleanString(dr.Topic)
	dr.Demographic = core.CleanString(dr.Demographic)
	dr.Tone = core.CleanString(dr.Tone)
	dr.Frequency = core.CleanString(dr.Frequency, true /* lower */)
	dr.Email = core.CleanString(dr.Email, true /* lower */)
}

func (dr *DraftRequest) Validate(validate *validator.Validate) error {
	dr.clean()
	return validate.Struct(dr)
}

// Draft is a generated, not yet stored, newsletter plan.
type Draft struct {
	DraftRequest
	PlanTitle     string    `json:"plan_title"`
	SectionTitles []string  `json:"section_titles"`
	Summary       string    `json:"summary"`
	MaxSendTime   time.Time `json:"max_send_time"`
}

type ConfirmRequest struct {
	DraftRequest
	SendTime      string   `json:"send_time" validate:"omitempty,send_offset"`
	PlanTitle     string   `json:"plan_title" validate:"required,notblank,max=300"`
	SectionTitles []string `json:"section_titles" validate:"required,len=5,dive,required,notblank"`
	Summary       string   `json:"summary" validate:"max=2000"`
}

func (cr *ConfirmRequest) Validate(validate *validator.Validate) error {
	cr.DraftRequest.clean()
	cr.SendTime = core.CleanString(cr.SendTime, true /* lower */)
	cr.PlanTitle = core.CleanString(cr.PlanTitle)
	for i, t := range cr.SectionTitles {
		cr.SectionTitles[i] = core.CleanString(t)
	}
	cr.Summary = core.CleanString(cr.Summary)
	return validate.Struct(cr)
}

type UpdateSendTime struct {
	SendTime time.Time `json:"send_time" validate:"required"`
}

func (us UpdateSendTime) Validate(validate *validator.Validate) error { return validate.Struct(us) }

type Dashboard struct {
	Active        []Newsletter     `json:"active"`
	Paused        []Newsletter     `json:"paused"`
	Total         int              `json:"total"`
	Tier          string           `json:"tier"`
	Limits        billing.Features `json:"limits"`
	MinReschedule time.Time        `json:"min_reschedule"`
}

type Detail struct {
	Newsletter
	Emails []delivery.Email `json:"emails"`
}

type Repository interface {
	CreateNewsletter(ctx context.Context, nl Newsletter, exec ...core.DBExecutor) (Newsletter, error)
	GetNewsletter(ctx context.Context, id int64, exec ...core.DBExecutor) (Newsletter, error)
	// QueryUserNewsletters returns the user's newsletters, latest next send first.
	QueryUserNewsletters(ctx context.Context, userID int64, exec ...core.DBExecutor) ([]Newsletter, error)
	CountUserNewsletters(ctx context.Context, userID int64, exec ...core.DBExecutor) (total, active int, err error)
	UpdateNewsletter(ctx context.Context, nl Newsletter, exec ...core.DBExecutor) (Newsletter, error)
	DeleteNewsletter(ctx context.Context, id int64, exec ...core.DBExecutor) error
}
