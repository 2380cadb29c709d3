package delivery

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/memoraid/memoraid/core"
)

// Plan kinds
const (
	KindNewsletter = "newsletter"
	KindStudy      = "study"
)

var (
	// errors
	ErrNotFound = errors.New("email not found")

	pastContentSep = "\n\n---\n\n"
)

// Email is one scheduled send of a plan.
type Email struct {
	ID          int64       `json:"id"`
	UserID      int64       `json:"-"`
	PlanID      int64       `json:"plan_id"`
	PlanKind    string      `json:"plan_kind"`
	Position    int         `json:"position"`
	Title       string      `json:"title"`
	Topic       string      `json:"topic,omitempty"`
	HTMLContent null.String `json:"html_content"`
	Sent        bool        `json:"sent"`
	SendDate    time.Time   `json:"send_date"` // UTC
	SentAt      null.Time   `json:"sent_at"`   // UTC
}

// PastContent is the log of everything already sent to a user; fed back to the writer to avoid repetition.
type PastContent struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"-"`
	PlanID    int64     `json:"plan_id"`
	PlanKind  string    `json:"plan_kind"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// JoinPastContent joins past contents for the writer prompt.
func JoinPastContent(past []PastContent) string {
	parts := make([]string, 0, len(past))
	for _, pc := range past {
		if c := strings.TrimSpace(pc.Content); c != "" {
			parts = append(parts, c)
		}
	}
	return strings.Join(parts, pastContentSep)
}

type Repository interface {
	CreateEmails(ctx context.Context, emails []Email, exec ...core.DBExecutor) ([]Email, error)
	GetEmail(ctx context.Context, id int64, exec ...core.DBExecutor) (Email, error)
	// QueryDueEmails returns unsent emails with send_date <= now, oldest first.
	QueryDueEmails(ctx context.Context, now time.Time, exec ...core.DBExecutor) ([]Email, error)
	// QueryPlanEmails returns all emails of a plan ordered by position.
	QueryPlanEmails(ctx context.Context, kind string, planID int64, exec ...core.DBExecutor) ([]Email, error)
	CountPlanEmails(ctx context.Context, kind string, planID int64, exec ...core.DBExecutor) (total, sent int, err error)
	// MarkEmailSent flips sent only if the row is still unsent; claimed reports whether this call did it.
	MarkEmailSent(ctx context.Context, email Email, exec ...core.DBExecutor) (claimed bool, err error)
	UpdateSendDate(ctx context.Context, id int64, sendDate time.Time, exec ...core.DBExecutor) error
	DeleteUnsentPlanEmails(ctx context.Context, kind string, planID int64, exec ...core.DBExecutor) error
	CreatePastContent(ctx context.Context, pc PastContent, exec ...core.DBExecutor) (PastContent, error)
	// QueryRecentPastContent returns up to limit past contents of a user's plans of kind, newest first.
	QueryRecentPastContent(ctx context.Context, userID int64, kind string, limit int, exec ...core.DBExecutor) ([]PastContent, error)
}
