package dig_container

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/memoraid/memoraid/apps/api/echo"
	"github.com/memoraid/memoraid/core"
	"github.com/memoraid/memoraid/core/billing"
	"github.com/memoraid/memoraid/core/content"
	"github.com/memoraid/memoraid/core/delivery"
	"github.com/memoraid/memoraid/core/dispatch"
	"github.com/memoraid/memoraid/core/newsletter"
	"github.com/memoraid/memoraid/core/review"
	"github.com/memoraid/memoraid/core/studyplan"
	"github.com/memoraid/memoraid/core/user"
	appfs "github.com/memoraid/memoraid/fs"
	aisvc "github.com/memoraid/memoraid/services/ai"
	docsvc "github.com/memoraid/memoraid/services/docs"
	emailsvc "github.com/memoraid/memoraid/services/email"
	locksvc "github.com/memoraid/memoraid/services/lock"
	logsvc "github.com/memoraid/memoraid/services/logger"
	paymentsvc "github.com/memoraid/memoraid/services/payments"
	"github.com/memoraid/memoraid/storage/database"
	sqlxrepos "github.com/memoraid/memoraid/storage/database/sqlx"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

// ServerParams collects what the HTTP server needs.
type ServerParams struct {
	dig.In

	Conf       *core.Config
	Logger     core.Logger
	Validate   *validator.Validate
	Translator ut.Translator

	UserSvc       user.Service
	NewsletterSvc newsletter.Service
	StudyPlanSvc  studyplan.Service
	BillingSvc    billing.Service
	ReviewSvc     review.Service
}

func newLogger(conf *core.Config) core.Logger {
	logger := logsvc.NewRollbarLogger(os.Stdout, "api", conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDBLogger(conf *core.Config) core.Logger {
	logger := logsvc.NewRollbarLogger(os.Stdout, "db", conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDB(conf *core.Config, loggerParam DBLoggerParam) *sqlx.DB {
	setUp := func() (*sqlx.DB, error) {
		if err := database.CreateIfNotExist(conf); err != nil {
			return nil, err
		}

		db, err := database.Open(conf)
		if err != nil {
			return nil, err
		}

		if err = database.Migrate(context.Background(), db); err != nil {
			return nil, err
		}
		return db, nil
	}

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return db
}

func newGenerator(conf *core.Config, logger core.Logger) (content.Generator, error) {
	return aisvc.NewService(aisvc.NewClient(conf), appfs.FS, appfs.PromptsDir, logger, conf)
}

func newNewsletterService(
	db core.Transactor,
	repo newsletter.Repository,
	mailRepo delivery.Repository,
	gen content.Generator,
	logger core.Logger,
) newsletter.Service {
	return newsletter.NewService(db, repo, mailRepo, gen, logger)
}

func newStudyPlanService(
	db core.Transactor,
	repo studyplan.Repository,
	mailRepo delivery.Repository,
	gen content.Generator,
	docs content.TextExtractor,
	logger core.Logger,
) studyplan.Service {
	return studyplan.NewService(db, repo, mailRepo, gen, gen, docs, logger)
}

type dispatcherParams struct {
	dig.In

	DB       core.Transactor
	Locker   dispatch.Locker
	MailRepo delivery.Repository
	NlRepo   newsletter.Repository
	SpRepo   studyplan.Repository
	UsrRepo  user.Repository
	Gen      content.Generator
	MailSvc  core.EmailService
	Logger   core.Logger
	Conf     *core.Config
}

func newDispatcher(p dispatcherParams) *dispatch.Dispatcher {
	return dispatch.NewDispatcher(p.DB, p.Locker, p.MailRepo, p.NlRepo, p.SpRepo, p.UsrRepo, p.Gen, p.MailSvc, p.Logger, p.Conf)
}

func newScheduler(d *dispatch.Dispatcher, billingSvc billing.Service, logger core.Logger, conf *core.Config) (*dispatch.Scheduler, error) {
	return dispatch.NewScheduler(d, billingSvc, logger, conf)
}

func newValidator() *validator.Validate {
	return validator.New()
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

func newServer(p ServerParams) echoapi.Server {
	return echoapi.NewServer(&echoapi.Options{
		Conf:          p.Conf,
		Logger:        p.Logger,
		Validate:      p.Validate,
		Translator:    p.Translator,
		UserSvc:       p.UserSvc,
		NewsletterSvc: p.NewsletterSvc,
		StudyPlanSvc:  p.StudyPlanSvc,
		BillingSvc:    p.BillingSvc,
		ReviewSvc:     p.ReviewSvc,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))

	// storage
	must(c.Provide(newDB))
	must(c.Provide(database.NewTransactor, dig.As(new(core.Transactor))))
	must(c.Provide(sqlxrepos.NewUserRepository))
	must(c.Provide(sqlxrepos.NewNewsletterRepository))
	must(c.Provide(sqlxrepos.NewStudyPlanRepository))
	must(c.Provide(sqlxrepos.NewDeliveryRepository))
	must(c.Provide(sqlxrepos.NewReviewRepository))

	// providers
	must(c.Provide(emailsvc.NewService))
	must(c.Provide(newGenerator))
	must(c.Provide(docsvc.NewExtractor, dig.As(new(content.TextExtractor))))
	must(c.Provide(paymentsvc.NewStripeGateway, dig.As(new(billing.Gateway))))
	must(c.Provide(locksvc.NewLocker))

	// core
	must(c.Provide(user.NewService))
	must(c.Provide(newNewsletterService))
	must(c.Provide(newStudyPlanService))
	must(c.Provide(billing.NewService))
	must(c.Provide(review.NewService))
	must(c.Provide(newDispatcher))
	must(c.Provide(newScheduler))

	// api
	must(c.Provide(newValidator))
	must(c.Provide(newTranslator))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
