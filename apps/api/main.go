package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	dig_container "github.com/memoraid/memoraid/apps/api/di/dig"
	echoapi "github.com/memoraid/memoraid/apps/api/echo"
	"github.com/memoraid/memoraid/core"
	"github.com/memoraid/memoraid/core/billing"
	"github.com/memoraid/memoraid/core/delivery"
	"github.com/memoraid/memoraid/core/dispatch"
	"github.com/memoraid/memoraid/core/studyplan"
	"github.com/memoraid/memoraid/core/user"
	appfs "github.com/memoraid/memoraid/fs"
)

func main() {
	c := dig_container.New()

	must(c.Invoke(func(
		conf *core.Config,
		apiLogger core.Logger,
		dbLoggerParam dig_container.DBLoggerParam,
		db *sqlx.DB,
		validate *validator.Validate,
		translator ut.Translator,
		server echoapi.Server,
		scheduler *dispatch.Scheduler,
	) {
		// =========================================================================
		// Initialize App

		apiLogger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))

		core.InitValidators(validate, translator)
		user.InitValidators(validate, translator)
		delivery.InitValidators(validate, translator)
		billing.InitValidators(validate, translator)
		studyplan.InitValidators(validate, translator)

		if err := core.ParseEmailTemplates(appfs.FS, appfs.EmailTemplatesDir, conf); err != nil {
			apiLogger.Fatal("parsing email templates", err)
		}

		dbLogger := dbLoggerParam.Logger
		defer func() {
			if err := db.Close(); err != nil {
				dbLogger.Error("Failed to close", err)
			}
		}()
		defer apiLogger.Info("Application stopped")

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		g, gctx := errgroup.WithContext(ctx)

		// =========================================================================
		// Start Debug Service
		//
		// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
		// /debug/vars - Added to the default mux by importing the expvar package.

		// Expose important info under /debug/vars.
		expvar.NewString("build").Set(conf.Build)
		expvar.NewString("env").Set(conf.Env)

		debugSrv := &http.Server{Addr: conf.Server.DebugHost, Handler: http.DefaultServeMux}
		g.Go(func() error {
			if err := debugSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				apiLogger.Error(fmt.Sprintf("debug server closed: %v", err), err)
			}
			return nil
		})

		// =========================================================================
		// Start API Service & Scheduler

		g.Go(func() error {
			return errors.Wrap(server.Start(), "api server")
		})

		if conf.Scheduler.Enabled {
			scheduler.Start()
		}

		// =========================================================================
		// Shutdown

		g.Go(func() error {
			select {
			case <-gctx.Done():
				apiLogger.Info("Start shutdown...")
			case <-server.ShutdownSignal():
				apiLogger.Info("integrity issue: Start shutdown...")
			}

			// give outstanding requests and a running send pass a deadline for completion
			sctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
			defer cancel()

			if conf.Scheduler.Enabled {
				if err := scheduler.Stop(sctx); err != nil {
					apiLogger.Error("could not stop scheduler gracefully", err)
				}
			}
			_ = debugSrv.Shutdown(sctx)

			// asking listener to shut down and shed load
			if err := server.Shutdown(sctx); err != nil {
				apiLogger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

				if err = server.Close(); err != nil {
					return errors.Wrap(err, "could not force stop server")
				}
			}
			return nil
		})

		if err := g.Wait(); err != nil {
			apiLogger.Error(fmt.Sprintf("server error: %v", err), err)
		}
	}))
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}
