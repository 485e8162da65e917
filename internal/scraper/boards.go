package scraper

import (
	"context"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/jimezsa/gigscope/internal/models"
)

// JustJoinIT and RocketJobs are job boards from the same publisher. Both
// render listings with schema.org JobPosting data, with plain offer links as
// a fallback.

const (
	justJoinITBaseURL   = "https://justjoin.it"
	rocketJobsBaseURL   = "https://rocketjobs.pl"
	rocketJobsSearchURL = "https://rocketjobs.pl/oferty-pracy"
)

type JustJoinIT struct {
	fetcher
}

func NewJustJoinIT(f fetcher) *JustJoinIT {
	return &JustJoinIT{fetcher: f}
}

func (j *JustJoinIT) Name() string {
	return PlatformJustJoinIT
}

func (j *JustJoinIT) SearchURL(kw models.Keywords) string {
	return buildJustJoinITURL(kw.Positive())
}

func (j *JustJoinIT) ScrapeMock(ctx context.Context, kw models.Keywords, maxOffers int) models.ScrapeResult {
	return mockResult(ctx, j.Name(), j.SearchURL(kw), kw, maxOffers)
}

func (j *JustJoinIT) Scrape(ctx context.Context, kw models.Keywords, maxOffers int, _ Credentials) models.ScrapeResult {
	start := time.Now()
	offers, err := j.searchByKeywords(ctx, kw, maxOffers, func(ctx context.Context, terms []string) ([]models.Offer, error) {
		doc, err := j.document(ctx, buildJustJoinITURL(terms), nil)
		if err != nil {
			return nil, err
		}
		return parseBoardOffers(doc, PlatformJustJoinIT, justJoinITBaseURL, "/job-offer/"), nil
	})
	return result(j.Name(), j.SearchURL(kw), start, offers, maxOffers, err)
}

func buildJustJoinITURL(terms []string) string {
	if len(terms) == 0 {
		return justJoinITBaseURL + "/"
	}
	return justJoinITBaseURL + "/?keyword=" + plusQuery(terms, " ")
}

type RocketJobs struct {
	fetcher
}

func NewRocketJobs(f fetcher) *RocketJobs {
	return &RocketJobs{fetcher: f}
}

func (r *RocketJobs) Name() string {
	return PlatformRocketJobs
}

func (r *RocketJobs) SearchURL(kw models.Keywords) string {
	return buildRocketJobsURL(kw.Positive())
}

func (r *RocketJobs) ScrapeMock(ctx context.Context, kw models.Keywords, maxOffers int) models.ScrapeResult {
	return mockResult(ctx, r.Name(), r.SearchURL(kw), kw, maxOffers)
}

func (r *RocketJobs) Scrape(ctx context.Context, kw models.Keywords, maxOffers int, _ Credentials) models.ScrapeResult {
	start := time.Now()
	offers, err := r.searchByKeywords(ctx, kw, maxOffers, func(ctx context.Context, terms []string) ([]models.Offer, error) {
		doc, err := r.document(ctx, buildRocketJobsURL(terms), nil)
		if err != nil {
			return nil, err
		}
		return parseBoardOffers(doc, PlatformRocketJobs, rocketJobsBaseURL, "/oferta-pracy/"), nil
	})
	return result(r.Name(), r.SearchURL(kw), start, offers, maxOffers, err)
}

func buildRocketJobsURL(terms []string) string {
	if len(terms) == 0 {
		return rocketJobsSearchURL
	}
	return rocketJobsSearchURL + "?keyword=" + plusQuery(terms, " ")
}

func parseBoardOffers(doc *goquery.Document, platform, baseURL, offerPath string) []models.Offer {
	if offers := parseJSONLDOffers(doc, platform); len(offers) > 0 {
		for i := range offers {
			offers[i].URL = absoluteURL(baseURL, offers[i].URL)
		}
		return offers
	}

	var offers []models.Offer
	seen := map[string]struct{}{}
	doc.Find("a[href*='" + offerPath + "']").Each(func(_ int, link *goquery.Selection) {
		href, _ := link.Attr("href")
		target := absoluteURL(baseURL, href)
		if _, ok := seen[target]; ok {
			return
		}
		title := cleanText(link.Find("h2, h3").First().Text())
		if title == "" {
			title = cleanText(link.AttrOr("title", ""))
		}
		if title == "" {
			return
		}
		seen[target] = struct{}{}

		offer := models.Offer{
			Title:    title,
			URL:      target,
			Platform: platform,
		}
		var details []string
		link.Find("span").Each(func(_ int, s *goquery.Selection) {
			if text := cleanText(s.Text()); text != "" && text != title {
				details = append(details, text)
			}
		})
		offer.Description = strings.Join(details, " · ")
		offers = append(offers, offer)
	})
	return offers
}
