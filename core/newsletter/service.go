package newsletter

import (
	"context"
	"errors"
	"time"

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
	ErrNotFound        = errors.New("newsletter not found")
	ErrTooSoon         = errors.New("send time must be at least one week from now")
	errPlanGeneration  = "Failed to generate plan"
	errTeaserFailedLog = "generating teaser"
)

type (
	Service interface {
		Preview(ctx context.Context, usr user.User, dr DraftRequest) (Draft, error)
		Confirm(ctx context.Context, usr user.User, cr ConfirmRequest) (Newsletter, error)
		Dashboard(ctx context.Context, usr user.User) (Dashboard, error)
		Get(ctx context.Context, usr user.User, id int64) (Newsletter, error)
		Emails(ctx context.Context, usr user.User, id int64) ([]delivery.Email, error)
		Delete(ctx context.Context, usr user.User, id int64) error
		UpdateSendTime(ctx context.Context, usr user.User, id int64, t time.Time) (Newsletter, error)
		Deactivate(ctx context.Context, usr user.User, id int64) (Newsletter, error)
		Toggle(ctx context.Context, usr user.User, id int64) (Newsletter, error)
	}

	service struct {
		db       core.Transactor
		repo     Repository
		mailRepo delivery.Repository
		planner  content.Planner
		logger   core.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(
	db core.Transactor,
	repo Repository,
	mailRepo delivery.Repository,
	planner content.Planner,
	logger core.Logger,
) Service {
	return &service{db: db, repo: repo, mailRepo: mailRepo, planner: planner, logger: logger}
}

func (svc *service) checkCanCreate(ctx context.Context, usr user.User) error {
	total, active, err := svc.repo.CountUserNewsletters(ctx, usr.ID)
	if err != nil {
		return perrors.Wrap(err, "counting newsletters")
	}
	return billing.CheckCanCreate(usr, total, active)
}

func (svc *service) Preview(ctx context.Context, usr user.User, dr DraftRequest) (Draft, error) {
	if err := svc.checkCanCreate(ctx, usr); err != nil {
		return Draft{}, err
	}
	if dr.Email == "" {
		dr.Email = usr.Email
	}

	req := content.PlanRequest{Topic: dr.Topic, Demographic: dr.Demographic, Tone: dr.Tone}
	plan, err := svc.planner.CreateEmailPlan(ctx, req)
	if err != nil {
		svc.logger.Error("creating email plan", err, usr)
		return Draft{}, core.NewUpstreamError(errPlanGeneration, err)
	}
	if len(plan.SectionTitles) != SectionCount {
		return Draft{}, core.NewUpstreamError(errPlanGeneration, content.ErrBadResponse)
	}
	teaser, err := svc.planner.Teaser(ctx, req, plan)
	if err != nil {
		// the teaser is cosmetic
		svc.logger.Warn(errTeaserFailedLog, err, usr)
	}

	return Draft{
		DraftRequest:  dr,
		PlanTitle:     plan.PlanTitle,
		SectionTitles: plan.SectionTitles,
		Summary:       teaser,
		MaxSendTime:   core.Now().Add(delivery.MaxFirstSendWindow).Truncate(time.Minute),
	}, nil
}

func (svc *service) Confirm(ctx context.Context, usr user.User, cr ConfirmRequest) (Newsletter, error) {
	if err := svc.checkCanCreate(ctx, usr); err != nil {
		return Newsletter{}, err
	}
	if cr.Email == "" {
		cr.Email = usr.Email
	}

	now := core.Now()
	first := delivery.FirstSend(now, cr.SendTime)
	dates := delivery.Spread(first, delivery.Interval(cr.Frequency), len(cr.SectionTitles))

	nl := Newsletter{
		UserID:        usr.ID,
		Email:         cr.Email,
		Topic:         cr.Topic,
		Demographic:   cr.Demographic,
		Tone:          cr.Tone,
		Frequency:     cr.Frequency,
		PlanTitle:     cr.PlanTitle,
		SectionTitles: cr.SectionTitles,
		Summary:       cr.Summary,
		NextSendTime:  null.TimeFrom(first),
		IsActive:      true,
		CreatedAt:     now,
	}
	err := svc.db.RunInTx(ctx, func(exec core.DBExecutor) error {
		var err error
		if nl, err = svc.repo.CreateNewsletter(ctx, nl, exec); err != nil {
			return perrors.Wrap(err, "creating newsletter")
		}
		emails := make([]delivery.Email, 0, len(cr.SectionTitles))
		for i, title := range cr.SectionTitles {
			emails = append(emails, delivery.Email{
				UserID:   usr.ID,
				PlanID:   nl.ID,
				PlanKind: delivery.KindNewsletter,
				Position: i + 1,
				Title:    title,
				SendDate: dates[i],
			})
		}
		_, err = svc.mailRepo.CreateEmails(ctx, emails, exec)
		return perrors.Wrap(err, "scheduling emails")
	})
	if err != nil {
		return Newsletter{}, err
	}
	return nl, nil
}

func (svc *service) Dashboard(ctx context.Context, usr user.User) (Dashboard, error) {
	nls, err := svc.repo.QueryUserNewsletters(ctx, usr.ID)
	if err != nil {
		return Dashboard{}, perrors.Wrap(err, "querying newsletters")
	}
	dash := Dashboard{
		Active:        make([]Newsletter, 0),
		Paused:        make([]Newsletter, 0),
		Total:         len(nls),
		Tier:          billing.Tier(usr.TierOrFree()).Name,
		Limits:        billing.FeaturesFor(usr),
		MinReschedule: delivery.EarliestReschedule(core.Now()),
	}
	for _, nl := range nls {
		if nl.IsActive {
			dash.Active = append(dash.Active, nl)
		} else {
			dash.Paused = append(dash.Paused, nl)
		}
	}
	return dash, nil
}

// Get returns the user's newsletter; other users' newsletters are not found.
func (svc *service) Get(ctx context.Context, usr user.User, id int64) (Newsletter, error) {
	nl, err := svc.repo.GetNewsletter(ctx, id)
	if err != nil {
		return Newsletter{}, err
	}
	if nl.UserID != usr.ID {
		return Newsletter{}, ErrNotFound
	}
	return nl, nil
}

func (svc *service) Emails(ctx context.Context, usr user.User, id int64) ([]delivery.Email, error) {
	nl, err := svc.Get(ctx, usr, id)
	if err != nil {
		return nil, err
	}
	emails, err := svc.mailRepo.QueryPlanEmails(ctx, delivery.KindNewsletter, nl.ID)
	return emails, perrors.Wrap(err, "querying emails")
}

// Delete removes the plan and its unsent emails; sent history is kept.
func (svc *service) Delete(ctx context.Context, usr user.User, id int64) error {
	nl, err := svc.Get(ctx, usr, id)
	if err != nil {
		return err
	}
	return svc.db.RunInTx(ctx, func(exec core.DBExecutor) error {
		if err := svc.mailRepo.DeleteUnsentPlanEmails(ctx, delivery.KindNewsletter, nl.ID, exec); err != nil {
			return perrors.Wrap(err, "deleting unsent emails")
		}
		return perrors.Wrap(svc.repo.DeleteNewsletter(ctx, nl.ID, exec), "deleting newsletter")
	})
}

func (svc *service) UpdateSendTime(ctx context.Context, usr user.User, id int64, t time.Time) (Newsletter, error) {
	t = t.UTC().Truncate(time.Minute)
	if !delivery.CanReschedule(core.Now(), t) {
		return Newsletter{}, core.NewValidationError(ErrTooSoon, core.FieldError{Field: "send_time", Error: ErrTooSoon.Error()})
	}
	nl, err := svc.Get(ctx, usr, id)
	if err != nil {
		return Newsletter{}, err
	}

	err = svc.db.RunInTx(ctx, func(exec core.DBExecutor) error {
		emails, err := svc.mailRepo.QueryPlanEmails(ctx, delivery.KindNewsletter, nl.ID, exec)
		if err != nil {
			return perrors.Wrap(err, "querying emails")
		}
		nl, err = svc.respread(ctx, nl, emails, t, exec)
		return err
	})
	if err != nil {
		return Newsletter{}, err
	}
	return nl, nil
}

// respread reschedules the unsent emails one interval apart starting at start.
func (svc *service) respread(ctx context.Context, nl Newsletter, emails []delivery.Email, start time.Time, exec core.DBExecutor) (Newsletter, error) {
	interval := delivery.Interval(nl.Frequency)
	var i int
	for _, e := range emails {
		if e.Sent {
			continue
		}
		if err := svc.mailRepo.UpdateSendDate(ctx, e.ID, start.Add(time.Duration(i)*interval), exec); err != nil {
			return nl, perrors.Wrap(err, "rescheduling email")
		}
		i++
	}
	if i > 0 {
		nl.NextSendTime = null.TimeFrom(start)
	}
	nl, err := svc.repo.UpdateNewsletter(ctx, nl, exec)
	return nl, perrors.Wrap(err, "updating newsletter")
}

func (svc *service) Deactivate(ctx context.Context, usr user.User, id int64) (Newsletter, error) {
	nl, err := svc.Get(ctx, usr, id)
	if err != nil {
		return Newsletter{}, err
	}
	if !nl.IsActive {
		return nl, nil
	}
	nl.IsActive = false
	nl, err = svc.repo.UpdateNewsletter(ctx, nl)
	return nl, perrors.Wrap(err, "deactivating newsletter")
}

func (svc *service) Toggle(ctx context.Context, usr user.User, id int64) (Newsletter, error) {
	nl, err := svc.Get(ctx, usr, id)
	if err != nil {
		return Newsletter{}, err
	}
	if !nl.IsActive {
		_, active, err := svc.repo.CountUserNewsletters(ctx, usr.ID)
		if err != nil {
			return Newsletter{}, perrors.Wrap(err, "counting newsletters")
		}
		if err := billing.CheckCanActivate(usr, active); err != nil {
			return Newsletter{}, err
		}
	}
	nl.IsActive = !nl.IsActive
	if !nl.IsActive {
		nl, err = svc.repo.UpdateNewsletter(ctx, nl)
		return nl, perrors.Wrap(err, "toggling newsletter")
	}

	// emails that fell due while paused restart from now at the plan's frequency
	err = svc.db.RunInTx(ctx, func(exec core.DBExecutor) error {
		emails, err := svc.mailRepo.QueryPlanEmails(ctx, delivery.KindNewsletter, nl.ID, exec)
		if err != nil {
			return perrors.Wrap(err, "querying emails")
		}
		now := core.Now()
		for _, e := range emails {
			if !e.Sent {
				if e.SendDate.Before(now) {
					nl, err = svc.respread(ctx, nl, emails, now, exec)
					return err
				}
				break
			}
		}
		nl, err = svc.repo.UpdateNewsletter(ctx, nl, exec)
		return perrors.Wrap(err, "toggling newsletter")
	})
	if err != nil {
		return Newsletter{}, err
	}
	return nl, nil
}
