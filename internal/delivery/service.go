// Package delivery runs the scrape and send batches: one pending bundle per
// active user per scrape, one email per recipient per send.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jimezsa/gigscope/internal/mail"
	"github.com/jimezsa/gigscope/internal/models"
	"github.com/jimezsa/gigscope/internal/pipeline"
	"github.com/jimezsa/gigscope/internal/scoring"
	"github.com/jimezsa/gigscope/internal/scraper"
	"github.com/jimezsa/gigscope/internal/secrets"
	"github.com/jimezsa/gigscope/internal/store"
	"github.com/jimezsa/gigscope/internal/subscribers"
	"github.com/rs/zerolog"
)

var (
	ErrScrapeRunning     = errors.New("scrape batch already running")
	ErrMailNotConfigured = errors.New("mail not configured: set mail api key and sender email")
	ErrNotSubscribed     = errors.New("user has no active subscription")
	ErrNoPreferences     = errors.New("user has no active email preferences")
)

// DefaultSendDelay keeps sends under the mail provider's rate limit.
const DefaultSendDelay = 600 * time.Millisecond

type ProviderFactory func(apiKey, model string) (scoring.Provider, error)

type SenderFactory func(apiKey string) (mail.Sender, error)

type Options struct {
	Store       store.Store
	Subscribers subscribers.Source
	Scrapers    map[string]scraper.Scraper
	// Secrets decrypts stored API keys. Nil means keys are stored in plain text.
	Secrets *secrets.Box

	NewProvider ProviderFactory
	NewSender   SenderFactory

	// BaseURL is the public site used for preference and unsubscribe links.
	BaseURL    string
	RenewalURL string

	SendDelay   time.Duration
	Concurrency int
	// Mock switches scraping and scoring to the offline generators.
	Mock bool

	Logger zerolog.Logger
	Now    func() time.Time
}

type Service struct {
	store       store.Store
	subscribers subscribers.Source
	scrapers    map[string]scraper.Scraper
	secrets     *secrets.Box
	newProvider ProviderFactory
	newSender   SenderFactory
	baseURL     string
	renewalURL  string
	sendDelay   time.Duration
	concurrency int
	mock        bool
	logger      zerolog.Logger
	now         func() time.Time
}

func New(opts Options) *Service {
	if opts.NewProvider == nil {
		opts.NewProvider = func(apiKey, model string) (scoring.Provider, error) {
			return scoring.NewOpenAI(scoring.OpenAIOptions{APIKey: apiKey, Model: model})
		}
	}
	if opts.NewSender == nil {
		opts.NewSender = func(apiKey string) (mail.Sender, error) {
			return mail.NewResend(mail.ResendOptions{APIKey: apiKey})
		}
	}
	if opts.SendDelay < 0 {
		opts.SendDelay = 0
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		store:       opts.Store,
		subscribers: opts.Subscribers,
		scrapers:    opts.Scrapers,
		secrets:     opts.Secrets,
		newProvider: opts.NewProvider,
		newSender:   opts.NewSender,
		baseURL:     opts.BaseURL,
		renewalURL:  opts.RenewalURL,
		sendDelay:   opts.SendDelay,
		concurrency: opts.Concurrency,
		mock:        opts.Mock,
		logger:      opts.Logger,
		now:         opts.Now,
	}
}

// RunResult is the outcome of ScrapeThenSend.
type RunResult struct {
	Scrape ScrapeBatchResult `json:"scrape"`
	Send   SendBatchResult   `json:"send"`
}

// ScrapeThenSend runs a scrape batch followed by a send batch. The send runs
// even when the scrape fails so earlier pending bundles still go out.
func (s *Service) ScrapeThenSend(ctx context.Context) (RunResult, error) {
	scrape, scrapeErr := s.ScrapeAll(ctx)
	if ctx.Err() != nil {
		return RunResult{Scrape: scrape}, errors.Join(scrapeErr, ctx.Err())
	}
	send, sendErr := s.SendAll(ctx)
	return RunResult{Scrape: scrape, Send: send}, errors.Join(scrapeErr, sendErr)
}

// reveal decrypts a stored API key. Empty values stay empty.
func (s *Service) reveal(stored string) (string, error) {
	if stored == "" || s.secrets == nil {
		return stored, nil
	}
	return s.secrets.Decrypt(stored)
}

// orchestrator builds the per-batch pipeline from settings so a batch never
// sees configuration changes made while it runs.
func (s *Service) orchestrator(settings models.Settings, logger zerolog.Logger) *pipeline.Orchestrator {
	var provider scoring.Provider
	if !s.mock && settings.OpenAIAPIKey != "" {
		key, err := s.reveal(settings.OpenAIAPIKey)
		if err != nil {
			logger.Warn().Err(err).Msg("openai key unusable, scoring falls back to mock")
		} else if provider, err = s.newProvider(key, settings.Model()); err != nil {
			logger.Warn().Err(err).Msg("openai provider unavailable, scoring falls back to mock")
			provider = nil
		}
	}
	engine := scoring.NewEngine(scoring.Options{
		Provider: provider,
		Prompt:   settings.ScoringPrompt,
		Logger:   logger,
	})
	return pipeline.New(pipeline.Options{
		Scrapers:    s.scrapers,
		Scorer:      engine,
		Concurrency: s.concurrency,
		Logger:      logger,
	})
}

func (s *Service) request(settings models.Settings, kw models.Keywords) pipeline.Request {
	req := pipeline.Request{
		Keywords:        kw,
		Platforms:       settings.EnabledPlatforms,
		PerPlatformCap:  settings.MaxOffers(),
		PlatformCaps:    settings.PlatformCaps,
		FinalCap:        settings.MaxOffers(),
		RealScrape:      !s.mock,
		RealScore:       !s.mock,
		MinOverallScore: settings.MinOverallScore,
	}
	if settings.ApifyAPIKey != "" {
		key, err := s.reveal(settings.ApifyAPIKey)
		if err != nil {
			req.CredentialErrors = map[string]error{scraper.PlatformUpwork: err}
		} else {
			req.Credentials = map[string]scraper.Credentials{scraper.PlatformUpwork: {APIKey: key}}
		}
	}
	return req
}

// guard runs fn and turns a panic into an error so one user cannot abort a
// batch.
func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
