package delivery

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jimezsa/gigscope/internal/models"
	"github.com/jimezsa/gigscope/internal/pipeline"
	"github.com/jimezsa/gigscope/internal/scraper"
	"github.com/jimezsa/gigscope/internal/store"
	"github.com/jimezsa/gigscope/internal/subscribers"
	"github.com/rs/zerolog"
)

// UserScrape is the outcome of scraping for one user.
type UserScrape struct {
	UserID      int64                          `json:"user_id"`
	Email       string                         `json:"email"`
	BundleID    int64                          `json:"bundle_id,omitempty"`
	Scraped     int                            `json:"scraped"`
	Stored      int                            `json:"stored"`
	Diagnostics map[string]pipeline.Diagnostic `json:"diagnostics,omitempty"`
	Error       string                         `json:"error,omitempty"`
}

type ScrapeBatchResult struct {
	RunID string           `json:"run_id"`
	Log   models.ScrapeLog `json:"log"`
	Users []UserScrape     `json:"users"`
}

// ScrapeAll creates one pending bundle for every active user. Per-user
// failures are recorded and the loop continues. A scrape log is always
// attempted.
func (s *Service) ScrapeAll(ctx context.Context) (ScrapeBatchResult, error) {
	start := s.now()
	res := ScrapeBatchResult{RunID: uuid.NewString(), Users: []UserScrape{}}
	logger := s.logger.With().Str("run_id", res.RunID).Str("batch", "scrape").Logger()
	res.Log = models.ScrapeLog{ExecutedAt: start, Errors: models.RunErrors{}}

	err := s.scrapeBatch(ctx, &res, logger)
	res.Log.Duration = s.now().Sub(start)
	if err != nil {
		res.Log.BatchError = err.Error()
		logger.Error().Err(err).Msg("scrape batch failed")
	}
	if id, logErr := s.store.InsertScrapeLog(context.WithoutCancel(ctx), res.Log); logErr != nil {
		logger.Error().Err(logErr).Msg("failed to save scrape log")
	} else {
		res.Log.ID = id
	}

	logger.Info().
		Int("users", res.Log.TotalUsers).
		Int("successful", res.Log.Successful).
		Int("failed", res.Log.Failed).
		Int("offers", res.Log.TotalOffers).
		Dur("duration", res.Log.Duration).
		Msg("scrape batch finished")
	return res, err
}

func (s *Service) scrapeBatch(ctx context.Context, res *ScrapeBatchResult, logger zerolog.Logger) error {
	settings, err := s.store.Settings(ctx)
	if err != nil {
		return err
	}
	if len(scraper.NormalizePlatforms(settings.EnabledPlatforms)) == 0 {
		return pipeline.ErrNoPlatforms
	}

	started, err := s.store.TryStartScrape(ctx, s.now(), store.StaleScrapeAfter)
	if err != nil {
		return err
	}
	if !started {
		return ErrScrapeRunning
	}
	defer func() {
		if err := s.store.FinishScrape(context.WithoutCancel(ctx)); err != nil {
			logger.Error().Err(err).Msg("failed to clear scrape running flag")
		}
	}()

	snapshot, err := subscribers.Fetch(ctx, s.subscribers)
	if err != nil {
		return err
	}
	users, err := s.store.Users(ctx)
	if err != nil {
		return fmt.Errorf("load users: %w", err)
	}

	orch := s.orchestrator(settings, logger)
	for _, user := range users {
		if !snapshot.Contains(user.Email) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		res.Log.TotalUsers++

		var outcome UserScrape
		err := guard(func() error {
			var err error
			outcome, err = s.scrapeUser(ctx, orch, settings, user)
			return err
		})
		outcome.UserID, outcome.Email = user.ID, user.Email
		if err != nil {
			outcome.Error = err.Error()
			res.Log.Failed++
			res.Log.Errors.Add(models.RunError{UserID: user.ID, Email: user.Email, Error: err.Error()})
			logger.Warn().Err(err).Int64("user_id", user.ID).Msg("user scrape failed")
		} else {
			res.Log.Successful++
			res.Log.TotalOffers += outcome.Stored
		}
		res.Users = append(res.Users, outcome)
	}
	return nil
}

// ScrapeUser scrapes and stores a bundle for one subscribed user. It does not
// take the batch running flag.
func (s *Service) ScrapeUser(ctx context.Context, userID int64) (UserScrape, error) {
	settings, err := s.store.Settings(ctx)
	if err != nil {
		return UserScrape{}, err
	}
	if len(scraper.NormalizePlatforms(settings.EnabledPlatforms)) == 0 {
		return UserScrape{}, pipeline.ErrNoPlatforms
	}
	user, err := s.store.User(ctx, userID)
	if err != nil {
		return UserScrape{UserID: userID}, fmt.Errorf("user %d: %w", userID, err)
	}
	snapshot, err := subscribers.Fetch(ctx, s.subscribers)
	if err != nil {
		return UserScrape{UserID: userID, Email: user.Email}, err
	}
	if !snapshot.Contains(user.Email) {
		return UserScrape{UserID: userID, Email: user.Email}, ErrNotSubscribed
	}

	logger := s.logger.With().Int64("user_id", userID).Logger()
	outcome, err := s.scrapeUser(ctx, s.orchestrator(settings, logger), settings, user)
	outcome.UserID, outcome.Email = user.ID, user.Email
	if err != nil {
		outcome.Error = err.Error()
	}
	return outcome, err
}

func (s *Service) scrapeUser(ctx context.Context, orch *pipeline.Orchestrator, settings models.Settings, user models.User) (UserScrape, error) {
	if user.Keywords == nil {
		return UserScrape{}, ErrNoPreferences
	}
	kw := user.Keywords.Clone()

	result, err := orch.ScrapeAll(ctx, s.request(settings, kw))
	if err != nil {
		return UserScrape{}, err
	}
	outcome := UserScrape{Scraped: result.TotalOffers, Diagnostics: result.Diagnostics}

	bundle := models.Bundle{
		UserID:         user.ID,
		ScrapedAt:      s.now(),
		Keywords:       kw,
		ScrapeDuration: result.TotalDuration,
		Offers:         make([]models.BundledOffer, 0, len(result.Selected)),
	}
	for _, offer := range result.Selected {
		bundle.Offers = append(bundle.Offers, models.BundledOffer{ScoredOffer: offer})
	}
	id, err := s.store.CreateBundle(ctx, bundle)
	if err != nil {
		return outcome, fmt.Errorf("store bundle: %w", err)
	}
	outcome.BundleID = id
	outcome.Stored = len(bundle.Offers)

	if failed := result.Failed(); len(failed) > 0 {
		platforms := make([]string, 0, len(failed))
		for _, d := range failed {
			platforms = append(platforms, d.Platform)
		}
		s.logger.Debug().Int64("user_id", user.ID).Strs("platforms", platforms).Msg("platforms failed for user")
	}
	return outcome, nil
}

// IsConfigError reports whether err fails a batch before any user is touched.
func IsConfigError(err error) bool {
	return errors.Is(err, store.ErrNoSettings) ||
		errors.Is(err, pipeline.ErrNoPlatforms) ||
		errors.Is(err, ErrMailNotConfigured)
}
