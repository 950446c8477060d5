package scheduler

import (
	"context"
	"time"

	"notification_dispatcher/internal/app"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// dispatchTimeout bounds one cron-triggered cycle so a hung transport
// cannot wedge the scheduler forever.
const dispatchTimeout = 5 * time.Minute

// DispatchScheduler triggers batch dispatch cycles on a cron spec. The
// dispatcher itself is not a long-lived loop; this is the periodic trigger
// that invokes it. A single cron engine also means runs from this process
// never overlap, which is the mitigation for the pipeline's at-least-once
// delivery behavior.
type DispatchScheduler struct {
	cronEngine *cron.Cron
	dispatch   *app.DispatchService
	log        *logrus.Logger
	cronSpec   string
}

func NewDispatchScheduler(dispatch *app.DispatchService, log *logrus.Logger, cronSpec string) *DispatchScheduler {
	return &DispatchScheduler{
		cronEngine: cron.New(cron.WithLocation(time.UTC)),
		dispatch:   dispatch,
		log:        log,
		cronSpec:   cronSpec,
	}
}

func (s *DispatchScheduler) Start() error {
	_, err := s.cronEngine.AddFunc(s.cronSpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
		defer cancel()

		summary, err := s.dispatch.Run(ctx)
		if err != nil {
			s.log.WithError(err).Error("scheduled dispatch cycle failed")
			return
		}
		s.log.WithFields(logrus.Fields{
			"eventsProcessed": summary.EventsProcessed,
			"deliveriesSent":  summary.DeliveriesSent,
		}).Debug("scheduled dispatch cycle finished")
	})
	if err != nil {
		return err
	}

	s.cronEngine.Start()
	s.log.WithField("cronSpec", s.cronSpec).Info("dispatch scheduler started")
	return nil
}

func (s *DispatchScheduler) Stop() {
	s.log.Info("stopping dispatch scheduler")
	ctx := s.cronEngine.Stop() // Waits for a running job to finish.
	<-ctx.Done()
	s.log.Info("dispatch scheduler stopped")
}
