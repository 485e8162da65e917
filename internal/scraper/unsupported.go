package scraper

import (
	"context"
	"time"

	"github.com/jimezsa/gigscope/internal/models"
)

// Fiverr and Contra only support mock scraping. Both sites render listings
// client-side behind bot protection.

const (
	fiverrBaseURL   = "https://www.fiverr.com"
	contraSearchURL = "https://contra.com/opportunities"
)

type Fiverr struct{}

func NewFiverr() *Fiverr {
	return &Fiverr{}
}

func (f *Fiverr) Name() string {
	return PlatformFiverr
}

func (f *Fiverr) SearchURL(kw models.Keywords) string {
	terms := kw.Positive()
	if len(terms) == 0 {
		return fiverrBaseURL + "/categories"
	}
	return fiverrBaseURL + "/search/gigs?query=" + plusQuery(terms, " ")
}

func (f *Fiverr) Scrape(_ context.Context, kw models.Keywords, maxOffers int, _ Credentials) models.ScrapeResult {
	return result(f.Name(), f.SearchURL(kw), time.Now(), nil, maxOffers, ErrNotImplemented)
}

func (f *Fiverr) ScrapeMock(ctx context.Context, kw models.Keywords, maxOffers int) models.ScrapeResult {
	return mockResult(ctx, f.Name(), f.SearchURL(kw), kw, maxOffers)
}

type Contra struct{}

func NewContra() *Contra {
	return &Contra{}
}

func (c *Contra) Name() string {
	return PlatformContra
}

func (c *Contra) SearchURL(kw models.Keywords) string {
	terms := kw.Positive()
	if len(terms) == 0 {
		return contraSearchURL
	}
	return contraSearchURL + "?q=" + plusQuery(terms, " ")
}

func (c *Contra) Scrape(_ context.Context, kw models.Keywords, maxOffers int, _ Credentials) models.ScrapeResult {
	return result(c.Name(), c.SearchURL(kw), time.Now(), nil, maxOffers, ErrNotImplemented)
}

func (c *Contra) ScrapeMock(ctx context.Context, kw models.Keywords, maxOffers int) models.ScrapeResult {
	return mockResult(ctx, c.Name(), c.SearchURL(kw), kw, maxOffers)
}
