package scheduler

import (
	"context"
	"fmt"
	"time"

	"crew-scheduler/internal/clock"
	"crew-scheduler/internal/logger"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const tickTimeout = 30 * time.Second

// Ticker opens the current business day if it is not open yet.
type Ticker interface {
	Tick(ctx context.Context) (clock.Date, bool, error)
}

// DayAdvancer drives the day-advance trigger from a cron schedule. Ticks are
// cheap and idempotent, so the schedule may fire far more often than once a day.
type DayAdvancer struct {
	cron   *cron.Cron
	ticker Ticker
	logger *logrus.Logger
}

func NewDayAdvancer(spec string, loc *time.Location, ticker Ticker, log *logrus.Logger) (*DayAdvancer, error) {
	log = logger.OrDefault(log)
	if loc == nil {
		loc = time.UTC
	}

	c := cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(cron.PrintfLogger(log)),
		cron.WithChain(
			cron.Recover(cron.PrintfLogger(log)),
			cron.SkipIfStillRunning(cron.PrintfLogger(log)),
		),
	)

	a := &DayAdvancer{cron: c, ticker: ticker, logger: log}
	if _, err := c.AddFunc(spec, a.run); err != nil {
		return nil, fmt.Errorf("schedule day advance %q: %w", spec, err)
	}
	return a, nil
}

func (a *DayAdvancer) run() {
	ctx, cancel := context.WithTimeout(context.Background(), tickTimeout)
	defer cancel()
	a.RunOnce(ctx)
}

// RunOnce performs a single tick and logs the outcome.
func (a *DayAdvancer) RunOnce(ctx context.Context) {
	date, advanced, err := a.ticker.Tick(ctx)
	if err != nil {
		a.logger.WithError(err).Error("Day advance tick failed")
		return
	}
	if advanced {
		a.logger.WithField("date", date.String()).Info("Day advance trigger opened a new day")
	}
}

// Start ticks once right away so a restarted process catches up, then
// follows the schedule.
func (a *DayAdvancer) Start(ctx context.Context) {
	a.RunOnce(ctx)
	a.cron.Start()
	a.logger.Info("Day advance scheduler started")
}

// Stop halts the schedule and waits for a running tick to finish.
func (a *DayAdvancer) Stop() {
	<-a.cron.Stop().Done()
	a.logger.Info("Day advance scheduler stopped")
}

// Next reports when the next tick is due.
func (a *DayAdvancer) Next() time.Time {
	entries := a.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}
