package dispatch

import (
	"context"
	"errors"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/memoraid/memoraid/core"
)

// Downgrader applies subscription downgrades that fell due.
type Downgrader interface {
	ApplyDueDowngrades(ctx context.Context, now time.Time) (int, error)
}

// Scheduler runs check-and-send passes and due downgrades on a cron spec.
type Scheduler struct {
	cron       *cron.Cron
	dispatcher *Dispatcher
	downgrader Downgrader
	logger     core.Logger
	timeout    time.Duration
}

func NewScheduler(dispatcher *Dispatcher, downgrader Downgrader, logger core.Logger, conf *core.Config) (*Scheduler, error) {
	cl := cronLogger{logger}
	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		dispatcher: dispatcher,
		downgrader: downgrader,
		logger:     logger,
		timeout:    10 * time.Minute,
	}
	if conf.Scheduler.LockTTL > 0 {
		s.timeout = conf.Scheduler.LockTTL
	}
	if _, err := s.cron.AddFunc(conf.Scheduler.Spec, s.Tick); err != nil {
		return nil, err
	}
	return s, nil
}

// Tick runs one pass: due downgrades first, then due emails.
func (s *Scheduler) Tick() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if s.downgrader != nil {
		n, err := s.downgrader.ApplyDueDowngrades(ctx, core.Now())
		if err != nil {
			s.logger.Error("applying due downgrades", err)
		}
		downgradesTotal.Add(float64(n))
	}

	if _, err := s.dispatcher.CheckAndSend(ctx); err != nil && !errors.Is(err, ErrLocked) {
		s.logger.Error("check and send", err)
	}
}

func (s *Scheduler) Start() {
	s.logger.Info("scheduler started", map[string]interface{}{"entries": len(s.cron.Entries())})
	s.cron.Start()
}

// Stop stops scheduling and waits for a running pass to finish, or for ctx to be done.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// cronLogger adapts core.Logger to cron.Logger.
type cronLogger struct {
	logger core.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, kvFields(keysAndValues))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, err, kvFields(keysAndValues))
}

func kvFields(kv []interface{}) map[string]interface{} {
	fields := make(map[string]interface{}, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		if k, ok := kv[i].(string); ok {
			fields[k] = kv[i+1]
		}
	}
	return fields
}
