package scraper

import (
	"context"
	"errors"

	"github.com/jimezsa/gigscope/internal/models"
)

var (
	ErrNotImplemented     = errors.New("scraper not implemented")
	ErrMissingCredentials = errors.New("api key is required for real scraping")
)

// Credentials carries the secrets a platform needs for real scraping.
type Credentials struct {
	APIKey string
}

// Scraper collects offers from one platform. Scrape and ScrapeMock never
// return an error value: failures are reported in ScrapeResult.Err.
type Scraper interface {
	Name() string
	SearchURL(kw models.Keywords) string
	Scrape(ctx context.Context, kw models.Keywords, maxOffers int, creds Credentials) models.ScrapeResult
	ScrapeMock(ctx context.Context, kw models.Keywords, maxOffers int) models.ScrapeResult
}
