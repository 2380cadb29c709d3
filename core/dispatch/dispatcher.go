// Package dispatch sends due emails and advances the plans they belong to.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	htmltmpl "html/template"
	"net/mail"
	"strconv"
	"time"

	perrors "github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/memoraid/memoraid/core"
	"github.com/memoraid/memoraid/core/content"
	"github.com/memoraid/memoraid/core/delivery"
	"github.com/memoraid/memoraid/core/newsletter"
	"github.com/memoraid/memoraid/core/studyplan"
	"github.com/memoraid/memoraid/core/user"
)

const pastContentLimit = 5

var (
	// ErrLocked is returned by a Locker when another process holds the dispatch lock.
	ErrLocked = errors.New("another process is already running")

	errSkip = errors.New("skip")

	newsletterTemplate = "newsletter"
	lessonTemplate     = "lesson_ready"
)

type (
	// Locker guards a check-and-send pass across processes.
	Locker interface {
		// Acquire takes the lock or fails with ErrLocked once its wait timeout elapses.
		Acquire(ctx context.Context) (release func() error, err error)
	}

	// Generator writes newsletter sections and study lessons.
	Generator interface {
		content.Writer
		content.StudyWriter
	}

	// Report sums up one check-and-send pass.
	Report struct {
		Due            int
		Sent           int
		Skipped        int
		Failed         int
		DeliveryFailed int
	}

	// Dispatcher runs check-and-send passes over due emails.
	Dispatcher struct {
		db       core.Transactor
		locker   Locker
		mailRepo delivery.Repository
		nlRepo   newsletter.Repository
		spRepo   studyplan.Repository
		usrRepo  user.Repository
		gen      Generator
		mailSvc  core.EmailService
		logger   core.Logger
		conf     *core.Config
	}

	// job is a due email with everything needed to send it.
	job struct {
		email delivery.Email
		usr   user.User
		nl    newsletter.Newsletter
		sp    studyplan.StudyPlan

		subject  string // delivered subject
		headline string // generated lesson subject line
		html     string
	}
)

func NewDispatcher(
	db core.Transactor,
	locker Locker,
	mailRepo delivery.Repository,
	nlRepo newsletter.Repository,
	spRepo studyplan.Repository,
	usrRepo user.Repository,
	gen Generator,
	mailSvc core.EmailService,
	logger core.Logger,
	conf *core.Config,
) *Dispatcher {
	return &Dispatcher{
		db:       db,
		locker:   locker,
		mailRepo: mailRepo,
		nlRepo:   nlRepo,
		spRepo:   spRepo,
		usrRepo:  usrRepo,
		gen:      gen,
		mailSvc:  mailSvc,
		logger:   logger,
		conf:     conf,
	}
}

// CheckAndSend sends every due email once. It returns ErrLocked when another pass holds the lock.
func (d *Dispatcher) CheckAndSend(ctx context.Context) (Report, error) {
	release, err := d.locker.Acquire(ctx)
	if err != nil {
		if errors.Is(err, ErrLocked) {
			runsTotal.WithLabelValues(runLocked).Inc()
			d.logger.Info(ErrLocked.Error())
			return Report{}, ErrLocked
		}
		runsTotal.WithLabelValues(runError).Inc()
		return Report{}, perrors.Wrap(err, "acquiring dispatch lock")
	}
	defer func() {
		if err := release(); err != nil {
			d.logger.Error("releasing dispatch lock", err)
		}
	}()

	start := time.Now()
	defer func() { runDuration.Observe(time.Since(start).Seconds()) }()

	due, err := d.mailRepo.QueryDueEmails(ctx, core.Now())
	if err != nil {
		runsTotal.WithLabelValues(runError).Inc()
		return Report{}, perrors.Wrap(err, "querying due emails")
	}

	rep := Report{Due: len(due)}
	for _, email := range due {
		if ctx.Err() != nil {
			break
		}
		outcome := d.process(ctx, email)
		emailsTotal.WithLabelValues(email.PlanKind, outcome).Inc()
		switch outcome {
		case emailSent:
			rep.Sent++
		case emailSkipped:
			rep.Skipped++
		case emailDeliveryFailed:
			rep.DeliveryFailed++
		default:
			rep.Failed++
		}
	}
	runsTotal.WithLabelValues(runOK).Inc()
	if rep.Due > 0 {
		d.logger.Info("dispatch pass done", map[string]interface{}{
			"due":             rep.Due,
			"sent":            rep.Sent,
			"skipped":         rep.Skipped,
			"failed":          rep.Failed,
			"delivery_failed": rep.DeliveryFailed,
		})
	}
	return rep, nil
}

func (d *Dispatcher) process(ctx context.Context, email delivery.Email) string {
	fields := map[string]interface{}{"email_id": email.ID, "plan_id": email.PlanID, "kind": email.PlanKind}

	j, err := d.load(ctx, email)
	if err != nil {
		if errors.Is(err, errSkip) {
			return emailSkipped
		}
		d.logger.Error("loading due email", err, fields)
		return emailFailed
	}

	if err = d.generate(ctx, j); err != nil {
		d.logger.Error("generating email content", err, fields, j.usr)
		return emailFailed
	}

	claimed, err := d.commit(ctx, j)
	if err != nil {
		d.logger.Error("committing sent email", err, fields, j.usr)
		return emailFailed
	}
	if !claimed {
		d.logger.Debug("email already claimed", fields)
		return emailSkipped
	}

	outcome := emailSent
	if err = d.deliver(ctx, j); err != nil {
		d.logger.Error("delivering email", err, fields, j.usr)
		outcome = emailDeliveryFailed
	}

	// the claimed email counts as sent either way, so the last one must still close the plan
	if email.PlanKind == delivery.KindNewsletter {
		d.finishNewsletter(ctx, j.nl)
	}
	return outcome
}

// load resolves the email's plan and user. errSkip leaves the email for a later pass.
func (d *Dispatcher) load(ctx context.Context, email delivery.Email) (*job, error) {
	j := &job{email: email}
	var (
		userID int64
		active bool
		err    error
	)

	switch email.PlanKind {
	case delivery.KindNewsletter:
		j.nl, err = d.nlRepo.GetNewsletter(ctx, email.PlanID)
		if errors.Is(err, newsletter.ErrNotFound) {
			d.logger.Warn("due email without newsletter", map[string]interface{}{"email_id": email.ID, "plan_id": email.PlanID})
			return nil, errSkip
		}
		userID, active = j.nl.UserID, j.nl.IsActive
	case delivery.KindStudy:
		j.sp, err = d.spRepo.GetStudyPlan(ctx, email.PlanID)
		if errors.Is(err, studyplan.ErrNotFound) {
			d.logger.Warn("due email without study plan", map[string]interface{}{"email_id": email.ID, "plan_id": email.PlanID})
			return nil, errSkip
		}
		userID, active = j.sp.UserID, j.sp.IsActive
	default:
		d.logger.Warn("due email of unknown kind", map[string]interface{}{"email_id": email.ID, "kind": email.PlanKind})
		return nil, errSkip
	}
	if err != nil {
		return nil, perrors.Wrap(err, "getting plan")
	}
	if !active {
		return nil, errSkip
	}

	j.usr, err = d.usrRepo.GetUser(ctx, user.GetFilter{ID: userID})
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			d.logger.Warn("due email without user", map[string]interface{}{"email_id": email.ID, "user_id": userID})
			return nil, errSkip
		}
		return nil, perrors.Wrap(err, "getting user")
	}
	return j, nil
}

func (d *Dispatcher) generate(ctx context.Context, j *job) error {
	switch j.email.PlanKind {
	case delivery.KindNewsletter:
		past, err := d.mailRepo.QueryRecentPastContent(ctx, j.usr.ID, delivery.KindNewsletter, pastContentLimit)
		if err != nil {
			return perrors.Wrap(err, "querying past content")
		}
		html, err := d.gen.WriteNewsletter(ctx, content.NewsletterRequest{
			Topic:        j.nl.Topic,
			Demographic:  j.nl.Demographic,
			Tone:         j.nl.Tone,
			Title:        j.email.Title,
			PlanTitle:    j.nl.PlanTitle,
			SectionTitle: j.email.Title,
			Position:     j.email.Position,
			PastContent:  delivery.JoinPastContent(past),
		})
		if err != nil {
			return perrors.Wrap(err, "writing newsletter")
		}
		j.html = content.StripCodeFences(html)
		j.subject = j.email.Title

	case delivery.KindStudy:
		topic := j.email.Topic
		if topic == "" {
			topic = j.email.Title
		}
		headline, err := d.gen.SubjectLine(ctx, topic, j.sp.CourseName)
		if err != nil {
			return perrors.Wrap(err, "writing subject line")
		}
		html, err := d.gen.WriteStudyEmail(ctx, content.StudyEmailRequest{
			CourseName:   j.sp.CourseName,
			Topics:       j.sp.Topics,
			SectionTitle: topic,
			ContentTypes: j.sp.ContentTypes,
			PlanTitle:    j.sp.CourseName,
			Position:     j.email.Position,
		})
		if err != nil {
			return perrors.Wrap(err, "writing study email")
		}
		j.html = content.CleanStudyHTML(html)
		j.headline = headline
		j.subject = LessonSubject(j.sp.CourseName, topic, j.email.Position)
	}
	return nil
}

// LessonSubject is the subject of a study lesson notification.
func LessonSubject(course, topic string, pos int) string {
	return fmt.Sprintf("[%s] %s — Lesson #%d", course, topic, pos)
}

// commit claims the email and advances its plan in one transaction.
func (d *Dispatcher) commit(ctx context.Context, j *job) (claimed bool, err error) {
	now := core.Now()
	j.email.HTMLContent = null.StringFrom(j.html)
	j.email.SentAt = null.TimeFrom(now)
	if j.email.PlanKind == delivery.KindStudy {
		j.email.Title = j.subject
	}

	err = d.db.RunInTx(ctx, func(exec core.DBExecutor) error {
		var err error
		if claimed, err = d.mailRepo.MarkEmailSent(ctx, j.email, exec); err != nil {
			return perrors.Wrap(err, "marking email sent")
		}
		if !claimed {
			return nil
		}
		j.email.Sent = true

		_, err = d.mailRepo.CreatePastContent(ctx, delivery.PastContent{
			UserID:    j.usr.ID,
			PlanID:    j.email.PlanID,
			PlanKind:  j.email.PlanKind,
			Content:   j.html,
			CreatedAt: now,
		}, exec)
		if err != nil {
			return perrors.Wrap(err, "logging past content")
		}

		if j.email.PlanKind == delivery.KindNewsletter {
			return d.advanceNewsletter(ctx, j, exec)
		}
		return d.advanceStudyPlan(ctx, j, now, exec)
	})
	return claimed, err
}

func (d *Dispatcher) advanceNewsletter(ctx context.Context, j *job, exec core.DBExecutor) error {
	emails, err := d.mailRepo.QueryPlanEmails(ctx, delivery.KindNewsletter, j.nl.ID, exec)
	if err != nil {
		return perrors.Wrap(err, "querying newsletter emails")
	}
	j.nl.NextSendTime = null.Time{}
	for _, e := range emails {
		if !e.Sent {
			j.nl.NextSendTime = null.TimeFrom(e.SendDate)
			break
		}
	}
	j.nl, err = d.nlRepo.UpdateNewsletter(ctx, j.nl, exec)
	return perrors.Wrap(err, "updating newsletter")
}

func (d *Dispatcher) advanceStudyPlan(ctx context.Context, j *job, now time.Time, exec core.DBExecutor) error {
	_, sent, err := d.mailRepo.CountPlanEmails(ctx, delivery.KindStudy, j.sp.ID, exec)
	if err != nil {
		return perrors.Wrap(err, "counting lessons")
	}

	next, ok := j.sp.NextLesson(j.email.Position, now)
	if sent >= j.sp.TotalAllowed() || !ok {
		j.sp.FirstPassComplete = true
		j.sp.CompletedAt = null.TimeFrom(now)
		j.sp.NextSendTime = null.Time{}
	} else {
		if _, err = d.mailRepo.CreateEmails(ctx, []delivery.Email{next}, exec); err != nil {
			return perrors.Wrap(err, "scheduling next lesson")
		}
		j.sp.NextSendTime = null.TimeFrom(next.SendDate)
	}
	j.sp, err = d.spRepo.UpdateStudyPlan(ctx, j.sp, exec)
	return perrors.Wrap(err, "updating study plan")
}

type (
	newsletterData struct {
		PlanTitle string
		Title     string
		Position  int
		Total     int
		Content   htmltmpl.HTML
		URL       string
	}

	lessonData struct {
		CourseName string
		Headline   string
		Topic      string
		Position   int
		URL        string
	}
)

func (d *Dispatcher) deliver(ctx context.Context, j *job) error {
	msg := &core.EmailMessage{Subject: j.subject}

	switch j.email.PlanKind {
	case delivery.KindNewsletter:
		msg.To = []mail.Address{{Address: j.nl.Email}}
		msg.TemplateName = newsletterTemplate
		msg.TemplateData = newsletterData{
			PlanTitle: j.nl.PlanTitle,
			Title:     j.email.Title,
			Position:  j.email.Position,
			Total:     len(j.nl.SectionTitles),
			Content:   htmltmpl.HTML(j.html),
			URL:       d.conf.FrontendURL("/newsletters/" + strconv.FormatInt(j.nl.ID, 10)),
		}
		msg.Params = map[string]string{"subject": j.subject, "content": j.html}
		msg.Tags = []string{delivery.KindNewsletter}

	case delivery.KindStudy:
		url := d.conf.FrontendURL("/study-plans/" + strconv.FormatInt(j.sp.ID, 10))
		msg.To = []mail.Address{{Address: j.sp.Email}}
		msg.TemplateName = lessonTemplate
		msg.TemplateData = lessonData{
			CourseName: j.sp.CourseName,
			Headline:   j.headline,
			Topic:      j.email.Topic,
			Position:   j.email.Position,
			URL:        url,
		}
		msg.Params = map[string]string{"subject": j.subject, "content": "", "url": url}
		msg.Tags = []string{delivery.KindStudy}
	}
	return d.mailSvc.Send(ctx, msg)
}

// finishNewsletter deletes a newsletter once all of its emails are sent. Sent emails are kept.
func (d *Dispatcher) finishNewsletter(ctx context.Context, nl newsletter.Newsletter) {
	total, sent, err := d.mailRepo.CountPlanEmails(ctx, delivery.KindNewsletter, nl.ID)
	if err != nil {
		d.logger.Error("counting newsletter emails", err)
		return
	}
	if sent < total {
		return
	}
	if err = d.nlRepo.DeleteNewsletter(ctx, nl.ID); err != nil {
		d.logger.Error("deleting completed newsletter", err, map[string]interface{}{"plan_id": nl.ID})
		return
	}
	d.logger.Info("newsletter completed", map[string]interface{}{"plan_id": nl.ID, "emails": total})
}
