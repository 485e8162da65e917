// Package schedule triggers the scrape and send batches at the configured
// email time.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jimezsa/gigscope/internal/delivery"
	"github.com/jimezsa/gigscope/internal/models"
	"github.com/jimezsa/gigscope/internal/store"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// TickSpec checks the settings once a minute.
const TickSpec = "@every 1m"

type Job string

const (
	JobScrape Job = "scrape"
	JobSend   Job = "send"
)

// SendDay reports whether day is a delivery day for freq. every_2_days runs
// on even days of the month and weekly on Mondays.
func SendDay(freq models.EmailFrequency, day time.Time) bool {
	switch freq {
	case models.FrequencyDaily:
		return true
	case models.FrequencyEvery2Days:
		return day.Day()%2 == 0
	case models.FrequencyWeekly:
		return day.Weekday() == time.Monday
	default:
		return false
	}
}

// ScrapeClock is one hour before the send clock. A send at 00:MM scrapes at
// 23:MM of the same day.
func ScrapeClock(settings models.Settings) (int, int) {
	h, m := settings.SendClock()
	h--
	if h < 0 {
		h = 23
	}
	return h, m
}

// DueJobs returns the jobs whose minute is now.
func DueJobs(settings models.Settings, now time.Time) []Job {
	if !SendDay(settings.EmailFrequency, now) {
		return nil
	}
	var jobs []Job
	if h, m := ScrapeClock(settings); now.Hour() == h && now.Minute() == m {
		jobs = append(jobs, JobScrape)
	}
	if h, m := settings.SendClock(); now.Hour() == h && now.Minute() == m {
		jobs = append(jobs, JobSend)
	}
	return jobs
}

// Store is the part of the store the scheduler reads.
type Store interface {
	Settings(ctx context.Context) (models.Settings, error)
	HasRunLogOn(ctx context.Context, kind store.RunKind, day time.Time) (bool, error)
}

type Batches interface {
	ScrapeAll(ctx context.Context) (delivery.ScrapeBatchResult, error)
	SendAll(ctx context.Context) (delivery.SendBatchResult, error)
}

type Scheduler struct {
	cron    *cron.Cron
	store   Store
	batches Batches
	logger  zerolog.Logger
	now     func() time.Time
}

func New(st Store, batches Batches, logger zerolog.Logger) *Scheduler {
	cronLogger := cronLog{logger: logger}
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
		store:   st,
		batches: batches,
		logger:  logger,
		now:     time.Now,
	}
}

// Start registers the minute tick and starts the cron loop.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(TickSpec, func() { s.Tick(ctx) }); err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}
	s.cron.Start()
	s.logger.Info().Str("spec", TickSpec).Msg("scheduler started")
	return nil
}

// Stop stops the cron loop and waits for a running tick to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info().Msg("scheduler stopped")
}

// Tick runs whatever is due now. A job that already left a run log today is
// skipped.
func (s *Scheduler) Tick(ctx context.Context) []Job {
	now := s.now()
	settings, err := s.store.Settings(ctx)
	if errors.Is(err, store.ErrNoSettings) {
		return nil
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("scheduler could not load settings")
		return nil
	}

	var ran []Job
	for _, job := range DueJobs(settings, now) {
		kind := store.RunScrape
		if job == JobSend {
			kind = store.RunMail
		}
		done, err := s.store.HasRunLogOn(ctx, kind, now)
		if err != nil {
			s.logger.Error().Err(err).Str("job", string(job)).Msg("scheduler could not read run logs")
			continue
		}
		if done {
			s.logger.Info().Str("job", string(job)).Msg("already ran today, skipping")
			continue
		}

		s.logger.Info().Str("job", string(job)).Msg("scheduled run starting")
		if job == JobScrape {
			_, err = s.batches.ScrapeAll(ctx)
		} else {
			_, err = s.batches.SendAll(ctx)
		}
		if err != nil {
			s.logger.Error().Err(err).Str("job", string(job)).Msg("scheduled run failed")
		}
		ran = append(ran, job)
	}
	return ran
}

// cronLog adapts zerolog to cron.Logger.
type cronLog struct {
	logger zerolog.Logger
}

func (c cronLog) Info(msg string, keysAndValues ...interface{}) {
	c.logger.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (c cronLog) Error(err error, msg string, keysAndValues ...interface{}) {
	c.logger.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}
