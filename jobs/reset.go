package jobs

import (
	"context"
	"time"

	"github.com/kevinaaaquil/writeups/logging"
	"github.com/kevinaaaquil/writeups/metrics"
	"github.com/kevinaaaquil/writeups/service"
	"github.com/robfig/cron/v3"
)

const (
	DefaultResetSchedule = "0 0 * * *"
	resetLockKey         = "daily-reset"
	resetLockTTL         = 10 * time.Minute
)

type BookResetter interface {
	ResetTodayReads(ctx context.Context) (service.ResetReport, error)
}

type WriteupResetter interface {
	ResetTodayReads(ctx context.Context) (int64, error)
}

// ResetResult summarises one run. Skipped is set when another replica held the lock.
type ResetResult struct {
	Skipped  bool
	Books    service.ResetReport
	Writeups int64
}

// DailyReset zeroes the todayReads counters of books and writeups.
type DailyReset struct {
	books    BookResetter
	writeups WriteupResetter
	locker   Locker
}

func NewDailyReset(books BookResetter, writeups WriteupResetter, locker Locker) *DailyReset {
	if locker == nil {
		locker = LocalLocker{}
	}
	return &DailyReset{books: books, writeups: writeups, locker: locker}
}

// Run performs one reset. A failing book does not stop the others; see service.ResetReport.
func (d *DailyReset) Run(ctx context.Context) (ResetResult, error) {
	log := logging.WithComponent("jobs")
	release, ok, err := d.locker.Acquire(ctx, resetLockKey, resetLockTTL)
	if err != nil {
		metrics.DailyResetRuns.WithLabelValues("error").Inc()
		return ResetResult{}, err
	}
	if !ok {
		metrics.DailyResetRuns.WithLabelValues("skipped").Inc()
		log.Info().Msg("daily reset already running elsewhere")
		return ResetResult{Skipped: true}, nil
	}
	defer release()

	var res ResetResult
	if res.Books, err = d.books.ResetTodayReads(ctx); err != nil {
		metrics.DailyResetRuns.WithLabelValues("error").Inc()
		return res, err
	}
	if res.Writeups, err = d.writeups.ResetTodayReads(ctx); err != nil {
		metrics.DailyResetRuns.WithLabelValues("error").Inc()
		return res, err
	}

	if len(res.Books.Failed) > 0 {
		metrics.DailyResetRuns.WithLabelValues("partial").Inc()
		log.Warn().Int("books_reset", res.Books.Reset).Int("books_failed", len(res.Books.Failed)).Msg("daily reset partially failed")
		return res, nil
	}
	metrics.DailyResetRuns.WithLabelValues("ok").Inc()
	metrics.DailyResetLastSuccess.SetToCurrentTime()
	log.Info().Int("books_reset", res.Books.Reset).Int64("writeups_reset", res.Writeups).Msg("daily reset complete")
	return res, nil
}

// Scheduler runs DailyReset on a cron schedule.
type Scheduler struct {
	cron *cron.Cron
}

// Schedule registers job under spec (standard five-field cron, UTC) and starts the scheduler.
func Schedule(ctx context.Context, spec string, job *DailyReset) (*Scheduler, error) {
	if spec == "" {
		spec = DefaultResetSchedule
	}
	c := cron.New(cron.WithLocation(time.UTC))
	_, err := c.AddFunc(spec, func() {
		if _, err := job.Run(ctx); err != nil {
			logging.WithComponent("jobs").Error().Err(err).Msg("daily reset failed")
		}
	})
	if err != nil {
		return nil, err
	}
	c.Start()
	logging.WithComponent("jobs").Info().Str("schedule", spec).Msg("daily reset scheduled")
	return &Scheduler{cron: c}, nil
}

// Stop prevents new runs and waits for a running one to finish or ctx to end.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}
