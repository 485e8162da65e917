package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/jimezsa/gigscope/internal/filter"
	"github.com/jimezsa/gigscope/internal/models"
	"github.com/jimezsa/gigscope/internal/scoring"
	"github.com/jimezsa/gigscope/internal/scraper"
	"github.com/rs/zerolog"
)

// fakeScraper serves fixed offers. Real scrapes return err when set.
type fakeScraper struct {
	name     string
	offers   []models.Offer
	err      error
	panics   bool
	realHits atomic.Int32
	mockHits atomic.Int32
}

func (f *fakeScraper) Name() string { return f.name }

func (f *fakeScraper) SearchURL(models.Keywords) string { return "https://" + f.name + "/search" }

func (f *fakeScraper) Scrape(_ context.Context, kw models.Keywords, max int, _ scraper.Credentials) models.ScrapeResult {
	f.realHits.Add(1)
	if f.panics {
		panic("selector exploded")
	}
	if f.err != nil {
		return models.ScrapeResult{Platform: f.name, Err: fmt.Errorf("%s: %w", f.name, f.err)}
	}
	return f.result(kw, max)
}

func (f *fakeScraper) ScrapeMock(_ context.Context, kw models.Keywords, max int) models.ScrapeResult {
	f.mockHits.Add(1)
	return f.result(kw, max)
}

func (f *fakeScraper) result(kw models.Keywords, max int) models.ScrapeResult {
	offers := filter.Filter(f.offers, kw)
	if len(offers) > max {
		offers = offers[:max]
	}
	return models.ScrapeResult{Platform: f.name, Offers: offers, SearchURL: f.SearchURL(kw)}
}

// platformOffers returns five offers of which the first react count mention react.
func platformOffers(platform string, react int) []models.Offer {
	offers := make([]models.Offer, 5)
	for i := range offers {
		title := fmt.Sprintf("%s job %d", platform, i)
		if i < react {
			title += " React"
		}
		offers[i] = models.Offer{Title: title, URL: fmt.Sprintf("https://%s/%d", platform, i), Platform: platform}
	}
	return offers
}

func newOrchestrator(scrapers ...*fakeScraper) *Orchestrator {
	registry := map[string]scraper.Scraper{}
	for _, sc := range scrapers {
		registry[sc.name] = sc
	}
	return New(Options{
		Scrapers: registry,
		Scorer:   scoring.NewEngine(scoring.Options{Rand: rand.New(rand.NewSource(3))}),
		Logger:   zerolog.Nop(),
	})
}

func TestScrapeAllHappyPath(t *testing.T) {
	a := &fakeScraper{name: "useme", offers: platformOffers("useme", 3)}
	b := &fakeScraper{name: "justjoinit", offers: platformOffers("justjoinit", 3)}
	orch := newOrchestrator(a, b)

	res, err := orch.ScrapeAll(context.Background(), Request{
		Keywords:       models.Keywords{Must: []string{"react"}},
		Platforms:      []string{"useme", "justjoinit"},
		PerPlatformCap: 10,
		FinalCap:       4,
	})
	if err != nil {
		t.Fatalf("ScrapeAll: %v", err)
	}
	if res.TotalOffers != 6 {
		t.Fatalf("expected 6 matching offers, got %d", res.TotalOffers)
	}
	if res.Diagnostics["useme"].Count != 3 || res.Diagnostics["justjoinit"].Count != 3 {
		t.Fatalf("unexpected diagnostics: %+v", res.Diagnostics)
	}
	if len(res.Selected) != 4 {
		t.Fatalf("expected 4 selected, got %d", len(res.Selected))
	}
	seen := map[string]bool{}
	for _, offer := range res.Selected {
		seen[offer.Platform] = true
		if !offer.Selected {
			t.Fatalf("selected offer not flagged")
		}
	}
	if !seen["useme"] || !seen["justjoinit"] {
		t.Fatalf("expected both platforms represented: %+v", res.Selected)
	}
	flagged := 0
	for i, offer := range res.Offers {
		if offer.Selected {
			flagged++
		}
		if i > 0 && res.Offers[i-1].Scores.Overall < offer.Scores.Overall {
			t.Fatalf("offers not sorted by overall score")
		}
	}
	if flagged != 4 {
		t.Fatalf("expected 4 flagged offers, got %d", flagged)
	}
	if a.realHits.Load() != 0 || a.mockHits.Load() != 1 {
		t.Fatalf("mock mode must not hit real scrapers")
	}
}

func TestScrapeAllPlatformOutage(t *testing.T) {
	down := &fakeScraper{name: "useme", err: errors.New("connection refused")}
	up := &fakeScraper{name: "rocketjobs", offers: platformOffers("rocketjobs", 0)[:4]}
	orch := newOrchestrator(down, up)

	res, err := orch.ScrapeAll(context.Background(), Request{
		Platforms:  []string{"useme", "rocketjobs"},
		FinalCap:   10,
		RealScrape: true,
	})
	if err != nil {
		t.Fatalf("ScrapeAll: %v", err)
	}
	if res.Diagnostics["useme"].Error == "" {
		t.Fatalf("expected outage diagnostic")
	}
	if res.Diagnostics["rocketjobs"].Count != 4 || len(res.Selected) != 4 {
		t.Fatalf("expected healthy platform offers selected: %+v", res.Diagnostics)
	}
	if failed := res.Failed(); len(failed) != 1 || failed[0].Platform != "useme" {
		t.Fatalf("unexpected failures: %+v", failed)
	}
}

func TestScrapeAllMissingCredentials(t *testing.T) {
	upwork := &fakeScraper{name: scraper.PlatformUpwork, offers: platformOffers("upwork", 5)}
	orch := newOrchestrator(upwork)
	req := Request{Platforms: []string{scraper.PlatformUpwork}, FinalCap: 5, RealScrape: true}

	res, err := orch.ScrapeAll(context.Background(), req)
	if err != nil {
		t.Fatalf("ScrapeAll: %v", err)
	}
	diag := res.Diagnostics[scraper.PlatformUpwork]
	if !errors.Is(diag.Err, scraper.ErrMissingCredentials) || diag.Count != 0 {
		t.Fatalf("expected missing credential diagnostic, got %+v", diag)
	}
	if upwork.realHits.Load() != 0 || upwork.mockHits.Load() != 0 {
		t.Fatalf("scraper must not run without credentials")
	}

	req.CredentialErrors = map[string]error{scraper.PlatformUpwork: errors.New("invalid token")}
	req.Credentials = map[string]scraper.Credentials{scraper.PlatformUpwork: {APIKey: "k"}}
	res, _ = orch.ScrapeAll(context.Background(), req)
	if !strings.Contains(res.Diagnostics[scraper.PlatformUpwork].Error, "invalid token") {
		t.Fatalf("expected decrypt error diagnostic, got %+v", res.Diagnostics)
	}

	req.RealScrape = false
	res, _ = orch.ScrapeAll(context.Background(), req)
	if res.Diagnostics[scraper.PlatformUpwork].Err != nil || res.TotalOffers != 5 {
		t.Fatalf("mock mode should ignore credentials: %+v", res.Diagnostics)
	}
}

func TestScrapeAllUnknownAndPanickingPlatforms(t *testing.T) {
	bad := &fakeScraper{name: "useme", panics: true}
	good := &fakeScraper{name: "contra", offers: platformOffers("contra", 0)}
	orch := New(Options{
		Scrapers:    map[string]scraper.Scraper{"useme": bad, "contra": good},
		Concurrency: 3,
		Logger:      zerolog.Nop(),
	})

	res, err := orch.ScrapeAll(context.Background(), Request{
		Platforms:  []string{"useme", "myspace", "contra"},
		RealScrape: true,
	})
	if err != nil {
		t.Fatalf("ScrapeAll: %v", err)
	}
	if !errors.Is(res.Diagnostics["myspace"].Err, ErrUnknownPlatform) {
		t.Fatalf("expected unknown platform diagnostic")
	}
	if !strings.Contains(res.Diagnostics["useme"].Error, "panic") {
		t.Fatalf("expected panic converted into diagnostic, got %q", res.Diagnostics["useme"].Error)
	}
	if res.TotalOffers != 5 || len(res.Selected) != 5 {
		t.Fatalf("expected contra offers selected without a final cap, got %d/%d", res.TotalOffers, len(res.Selected))
	}
	if got := strings.Join(res.Platforms, ","); got != "useme,myspace,contra" {
		t.Fatalf("platform order not preserved: %s", got)
	}
}

func TestScrapeAllCapsAndThreshold(t *testing.T) {
	a := &fakeScraper{name: "useme", offers: platformOffers("useme", 0)}
	dup := &fakeScraper{name: "fiverr", offers: []models.Offer{{Title: "dup", URL: "https://useme/0", Platform: "fiverr"}}}
	orch := newOrchestrator(a, dup)

	res, err := orch.ScrapeAll(context.Background(), Request{
		Platforms:       []string{"useme", "fiverr"},
		PerPlatformCap:  10,
		PlatformCaps:    map[string]int{"useme": 2},
		FinalCap:        10,
		MinOverallScore: 11,
	})
	if err != nil {
		t.Fatalf("ScrapeAll: %v", err)
	}
	if res.Diagnostics["useme"].Count != 2 {
		t.Fatalf("expected platform cap applied, got %d", res.Diagnostics["useme"].Count)
	}
	if res.TotalOffers != 2 {
		t.Fatalf("expected cross-platform duplicate removed, got %d", res.TotalOffers)
	}
	if len(res.Selected) != 0 || res.BelowThreshold != 2 {
		t.Fatalf("expected every offer below threshold, got selected=%d below=%d", len(res.Selected), res.BelowThreshold)
	}
}

func TestScrapeAllNoPlatforms(t *testing.T) {
	if _, err := newOrchestrator().ScrapeAll(context.Background(), Request{Platforms: []string{" "}}); !errors.Is(err, ErrNoPlatforms) {
		t.Fatalf("expected ErrNoPlatforms, got %v", err)
	}
}
