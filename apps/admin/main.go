package main

import (
	"os"

	"github.com/memoraid/memoraid/core"
	"github.com/memoraid/memoraid/core/dispatch"
	appfs "github.com/memoraid/memoraid/fs"
	aisvc "github.com/memoraid/memoraid/services/ai"
	emailsvc "github.com/memoraid/memoraid/services/email"
	locksvc "github.com/memoraid/memoraid/services/lock"
	logsvc "github.com/memoraid/memoraid/services/logger"
	"github.com/memoraid/memoraid/storage/database"
	sqlxrepos "github.com/memoraid/memoraid/storage/database/sqlx"
)

var logger core.Logger

func main() {
	conf := core.NewConfig()
	rl := logsvc.NewRollbarLogger(os.Stdout, "admin", conf)
	rl.Enable(!conf.Debug)
	logger = rl

	// set up DB
	db, err := database.Open(conf)
	errAndDie(err)
	defer func() { _ = db.Close() }()

	errAndDie(core.ParseEmailTemplates(appfs.FS, appfs.EmailTemplatesDir, conf))
	gen, err := aisvc.NewService(aisvc.NewClient(conf), appfs.FS, appfs.PromptsDir, logger, conf)
	errAndDie(err)

	usrRepo := sqlxrepos.NewUserRepository(db)

	// start CLI
	cli := commandLine{
		db:      db,
		usrRepo: usrRepo,
		dispatcher: dispatch.NewDispatcher(
			database.NewTransactor(db),
			locksvc.NewLocker(conf),
			sqlxrepos.NewDeliveryRepository(db),
			sqlxrepos.NewNewsletterRepository(db),
			sqlxrepos.NewStudyPlanRepository(db),
			usrRepo,
			gen,
			emailsvc.NewService(logger, conf),
			logger,
			conf,
		),
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Error("admin command failed", err)
		}
		_ = db.Close()
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err.Error(), err)
	}
}
