package scraper

import (
	"context"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/jimezsa/gigscope/internal/models"
)

const (
	usemeBaseURL   = "https://useme.com"
	usemeSearchURL = "https://useme.com/pl/jobs/"
)

type Useme struct {
	fetcher
}

func NewUseme(f fetcher) *Useme {
	return &Useme{fetcher: f}
}

func (u *Useme) Name() string {
	return PlatformUseme
}

func (u *Useme) SearchURL(kw models.Keywords) string {
	return buildUsemeURL(kw.Positive())
}

func (u *Useme) ScrapeMock(ctx context.Context, kw models.Keywords, maxOffers int) models.ScrapeResult {
	return mockResult(ctx, u.Name(), u.SearchURL(kw), kw, maxOffers)
}

func (u *Useme) Scrape(ctx context.Context, kw models.Keywords, maxOffers int, _ Credentials) models.ScrapeResult {
	start := time.Now()
	offers, err := u.searchByKeywords(ctx, kw, maxOffers, func(ctx context.Context, terms []string) ([]models.Offer, error) {
		doc, err := u.document(ctx, buildUsemeURL(terms), nil)
		if err != nil {
			return nil, err
		}
		return parseUsemeOffers(doc), nil
	})
	return result(u.Name(), u.SearchURL(kw), start, offers, maxOffers, err)
}

func buildUsemeURL(terms []string) string {
	if len(terms) == 0 {
		return usemeSearchURL
	}
	return usemeSearchURL + "?query=" + plusQuery(terms, ", ")
}

// parseUsemeOffers reads open listings from a search results page. Closed
// listings are skipped.
func parseUsemeOffers(doc *goquery.Document) []models.Offer {
	var offers []models.Offer
	doc.Find("article.job").Each(func(_ int, card *goquery.Selection) {
		if card.Find("a.job__title-link--closed").Length() > 0 {
			return
		}
		title := card.Find("a.job__title").First()
		if title.Length() == 0 {
			return
		}
		href, _ := title.Attr("href")

		offers = append(offers, models.Offer{
			Title:          cleanText(title.Text()),
			URL:            absoluteURL(usemeBaseURL, href),
			Platform:       PlatformUseme,
			Description:    cleanText(card.Find("p").First().Text()),
			Budget:         cleanText(card.Find("div.job__budget span.job__budget-value").First().Text()),
			ClientName:     cleanText(card.Find("div.job__employer a, div.job__employer span").First().Text()),
			ClientLocation: cleanText(card.Find("div.job__location").First().Text()),
		})
	})
	return offers
}
