package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jimezsa/gigscope/internal/filter"
	"github.com/jimezsa/gigscope/internal/models"
	"github.com/jimezsa/gigscope/internal/scoring"
	"github.com/jimezsa/gigscope/internal/scraper"
	"github.com/jimezsa/gigscope/internal/selection"
	"github.com/rs/zerolog"
)

var (
	ErrNoPlatforms     = errors.New("no platforms enabled")
	ErrUnknownPlatform = errors.New("unknown platform")
)

// DefaultPerPlatformCap applies when a request sets no per-platform cap.
const DefaultPerPlatformCap = 10

// Scorer attaches scores to offers in input order.
type Scorer interface {
	Score(ctx context.Context, offers []models.Offer, kw models.Keywords, mode scoring.Mode) []models.ScoredOffer
}

type Request struct {
	Keywords  models.Keywords
	Platforms []string
	// PerPlatformCap bounds each scraper. PlatformCaps overrides it per id.
	PerPlatformCap int
	PlatformCaps   map[string]int
	// FinalCap bounds the selection. Zero or less selects every candidate.
	FinalCap   int
	RealScrape bool
	RealScore  bool

	Credentials map[string]scraper.Credentials
	// CredentialErrors holds keys that exist but could not be decrypted.
	CredentialErrors map[string]error

	MinOverallScore float64
}

// Diagnostic is the per-platform outcome of one orchestration call.
type Diagnostic struct {
	Platform  string        `json:"platform"`
	Count     int           `json:"count"`
	Duration  time.Duration `json:"duration"`
	SearchURL string        `json:"search_url,omitempty"`
	Error     string        `json:"error,omitempty"`
	Err       error         `json:"-"`
}

type Result struct {
	TotalOffers    int                   `json:"total_offers"`
	BelowThreshold int                   `json:"below_threshold"`
	Offers         []models.ScoredOffer  `json:"offers"`
	Selected       []models.ScoredOffer  `json:"selected"`
	Diagnostics    map[string]Diagnostic `json:"diagnostics"`
	Platforms      []string              `json:"platforms"`
	TotalDuration  time.Duration         `json:"total_duration"`
	ScoringMode    string                `json:"scoring_mode"`
}

// Failed lists platforms whose diagnostic carries an error, in request order.
func (r Result) Failed() []Diagnostic {
	var out []Diagnostic
	for _, platform := range r.Platforms {
		if d, ok := r.Diagnostics[platform]; ok && d.Err != nil {
			out = append(out, d)
		}
	}
	return out
}

type Options struct {
	Scrapers map[string]scraper.Scraper
	Scorer   Scorer
	// Concurrency bounds parallel platform scrapes. One or less is sequential.
	Concurrency int
	Logger      zerolog.Logger
}

type Orchestrator struct {
	scrapers    map[string]scraper.Scraper
	scorer      Scorer
	concurrency int
	logger      zerolog.Logger
}

func New(opts Options) *Orchestrator {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.Scorer == nil {
		opts.Scorer = scoring.NewEngine(scoring.Options{Logger: opts.Logger})
	}
	return &Orchestrator{
		scrapers:    opts.Scrapers,
		scorer:      opts.Scorer,
		concurrency: opts.Concurrency,
		logger:      opts.Logger,
	}
}

// ScrapeAll fans out to the requested platforms, merges their offers, scores
// and selects them. Platform failures land in Diagnostics and never abort the
// call; the only error is an empty platform list.
func (o *Orchestrator) ScrapeAll(ctx context.Context, req Request) (Result, error) {
	start := time.Now()
	platforms := scraper.NormalizePlatforms(req.Platforms)
	if len(platforms) == 0 {
		return Result{}, ErrNoPlatforms
	}

	outcomes := o.runScrapers(ctx, platforms, req)

	res := Result{
		Platforms:   platforms,
		Diagnostics: make(map[string]Diagnostic, len(platforms)),
		ScoringMode: modeFor(req.RealScore).String(),
	}
	var pool []models.Offer
	for i, platform := range platforms {
		out := outcomes[i]
		diag := Diagnostic{
			Platform:  platform,
			Count:     len(out.Offers),
			Duration:  out.Duration,
			SearchURL: out.SearchURL,
			Err:       out.Err,
		}
		if out.Err != nil {
			diag.Error = out.Err.Error()
			o.logger.Warn().Err(out.Err).Str("platform", platform).Msg("platform scrape failed")
		}
		res.Diagnostics[platform] = diag
		pool = append(pool, out.Offers...)
	}

	pool = filter.Deduplicate(pool)
	scored := o.scorer.Score(ctx, pool, req.Keywords, modeFor(req.RealScore))

	candidates := make([]models.ScoredOffer, 0, len(scored))
	for _, offer := range scored {
		if offer.Scores.Overall < req.MinOverallScore {
			res.BelowThreshold++
			continue
		}
		candidates = append(candidates, offer)
	}

	finalCap := req.FinalCap
	if finalCap <= 0 {
		finalCap = len(candidates)
	}
	res.Selected = selection.Select(candidates, finalCap)
	for i := range res.Selected {
		res.Selected[i].Selected = true
	}

	res.Offers = markSelected(scored, res.Selected)
	sort.SliceStable(res.Offers, func(i, j int) bool {
		return res.Offers[i].Scores.Overall > res.Offers[j].Scores.Overall
	})
	res.TotalOffers = len(res.Offers)
	res.TotalDuration = time.Since(start)

	o.logger.Debug().
		Int("offers", res.TotalOffers).
		Int("selected", len(res.Selected)).
		Dur("duration", res.TotalDuration).
		Msg("scrape finished")
	return res, nil
}

func (o *Orchestrator) runScrapers(ctx context.Context, platforms []string, req Request) []models.ScrapeResult {
	var (
		wg       sync.WaitGroup
		sem      = make(chan struct{}, o.concurrency)
		outcomes = make([]models.ScrapeResult, len(platforms))
	)

	for i, platform := range platforms {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, platform string) {
			defer wg.Done()
			defer func() { <-sem }()
			outcomes[i] = o.scrapeOne(ctx, platform, req)
		}(i, platform)
	}
	wg.Wait()
	return outcomes
}

func (o *Orchestrator) scrapeOne(ctx context.Context, platform string, req Request) (res models.ScrapeResult) {
	res.Platform = platform
	defer func() {
		if r := recover(); r != nil {
			res = models.ScrapeResult{Platform: platform, Err: fmt.Errorf("%s: scraper panic: %v", platform, r)}
		}
	}()

	sc, ok := o.scrapers[platform]
	if !ok {
		res.Err = fmt.Errorf("%w: %s", ErrUnknownPlatform, platform)
		return res
	}

	limit := req.PerPlatformCap
	if limit <= 0 {
		limit = DefaultPerPlatformCap
	}
	if n, ok := req.PlatformCaps[platform]; ok && n > 0 {
		limit = n
	}

	if !req.RealScrape {
		return sc.ScrapeMock(ctx, req.Keywords, limit)
	}

	creds := req.Credentials[platform]
	if scraper.RequiresCredentials(platform) {
		if err := req.CredentialErrors[platform]; err != nil {
			res.SearchURL = sc.SearchURL(req.Keywords)
			res.Err = fmt.Errorf("%s: credentials: %w", platform, err)
			return res
		}
		if strings.TrimSpace(creds.APIKey) == "" {
			res.SearchURL = sc.SearchURL(req.Keywords)
			res.Err = fmt.Errorf("%s: %w", platform, scraper.ErrMissingCredentials)
			return res
		}
	}
	return sc.Scrape(ctx, req.Keywords, limit, creds)
}

// markSelected copies offers and flags the ones present in selected. Offers
// are matched by URL, or by title and platform when the URL is empty.
func markSelected(offers, selected []models.ScoredOffer) []models.ScoredOffer {
	remaining := map[string]int{}
	for _, offer := range selected {
		remaining[selectionKey(offer)]++
	}
	out := make([]models.ScoredOffer, len(offers))
	for i, offer := range offers {
		key := selectionKey(offer)
		if remaining[key] > 0 {
			offer.Selected = true
			remaining[key]--
		}
		out[i] = offer
	}
	return out
}

func selectionKey(offer models.ScoredOffer) string {
	if offer.URL != "" {
		return offer.URL
	}
	return offer.Platform + "\x00" + offer.Title
}

func modeFor(real bool) scoring.Mode {
	if real {
		return scoring.ModeReal
	}
	return scoring.ModeMock
}
