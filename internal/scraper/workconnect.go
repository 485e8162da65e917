package scraper

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/jimezsa/gigscope/internal/cache"
	"github.com/jimezsa/gigscope/internal/filter"
	"github.com/jimezsa/gigscope/internal/models"
)

const (
	workConnectBaseURL  = "https://www.workconnect.app"
	workConnectListURL  = "https://www.workconnect.app/zlecenia"
	workConnectCacheKey = "workconnect"
)

type WorkConnectOptions struct {
	CacheTTL  time.Duration
	MaxOffers int
	// SkipDetails disables fetching each offer page for its description.
	SkipDetails bool
}

func (o WorkConnectOptions) withDefaults() WorkConnectOptions {
	if o.CacheTTL <= 0 {
		o.CacheTTL = 2 * time.Hour
	}
	if o.MaxOffers <= 0 {
		o.MaxOffers = 50
	}
	return o
}

// WorkConnect has no search endpoint. The whole catalogue is crawled,
// cached, and filtered client-side for each keyword set.
type WorkConnect struct {
	fetcher
	listings cache.Listings
	opts     WorkConnectOptions
}

func NewWorkConnect(f fetcher, listings cache.Listings, opts WorkConnectOptions) *WorkConnect {
	if listings == nil {
		listings = cache.NewMemory()
	}
	return &WorkConnect{fetcher: f, listings: listings, opts: opts.withDefaults()}
}

func (w *WorkConnect) Name() string {
	return PlatformWorkConnect
}

func (w *WorkConnect) SearchURL(models.Keywords) string {
	return workConnectListURL
}

func (w *WorkConnect) ScrapeMock(ctx context.Context, kw models.Keywords, maxOffers int) models.ScrapeResult {
	return mockResult(ctx, w.Name(), w.SearchURL(kw), kw, maxOffers)
}

func (w *WorkConnect) Scrape(ctx context.Context, kw models.Keywords, maxOffers int, _ Credentials) models.ScrapeResult {
	start := time.Now()
	catalogue, err := w.Catalogue(ctx, false)
	if err != nil {
		return result(w.Name(), workConnectListURL, start, nil, maxOffers, err)
	}
	offers := filter.Deduplicate(filter.Filter(catalogue, kw))
	return result(w.Name(), workConnectListURL, start, offers, maxOffers, nil)
}

// Catalogue returns cached listings, crawling the site when the cache is
// empty, expired, or refresh is set.
func (w *WorkConnect) Catalogue(ctx context.Context, refresh bool) ([]models.Offer, error) {
	if !refresh {
		offers, ok, err := w.listings.Get(ctx, workConnectCacheKey)
		if err != nil {
			w.logger.Warn().Err(err).Msg("listing cache unavailable, crawling")
		}
		if ok {
			return offers, nil
		}
	}

	offers, err := w.crawl(ctx)
	if err != nil {
		return nil, err
	}
	if err := w.listings.Set(ctx, workConnectCacheKey, offers, w.opts.CacheTTL); err != nil {
		w.logger.Warn().Err(err).Msg("could not store listings")
	}
	return offers, nil
}

func (w *WorkConnect) crawl(ctx context.Context) ([]models.Offer, error) {
	index, err := w.document(ctx, workConnectListURL, nil)
	if err != nil {
		return nil, err
	}
	categories := parseWorkConnectCategories(index)
	if len(categories) == 0 {
		return nil, fmt.Errorf("no categories found on %s", workConnectListURL)
	}

	var offers []models.Offer
	seen := map[string]struct{}{}
	for _, category := range categories {
		if len(offers) >= w.opts.MaxOffers {
			break
		}
		if err := sleepCtx(ctx, w.pace); err != nil {
			return nil, err
		}
		doc, err := w.document(ctx, category.url, nil)
		if err != nil {
			w.logger.Debug().Err(err).Str("category", category.name).Msg("category fetch failed")
			continue
		}
		for _, offer := range parseWorkConnectOffers(doc) {
			if len(offers) >= w.opts.MaxOffers {
				break
			}
			if _, ok := seen[offer.URL]; ok {
				continue
			}
			seen[offer.URL] = struct{}{}
			offer.Tags = []string{category.name}
			offers = append(offers, offer)
		}
	}

	if !w.opts.SkipDetails {
		for i := range offers {
			if err := sleepCtx(ctx, w.pace); err != nil {
				return nil, err
			}
			doc, err := w.document(ctx, offers[i].URL, nil)
			if err != nil {
				continue
			}
			offers[i].Description = parseWorkConnectDescription(doc)
		}
	}

	w.logger.Debug().Int("offers", len(offers)).Msg("catalogue crawled")
	return offers, nil
}

type workConnectCategory struct {
	name string
	url  string
}

func parseWorkConnectCategories(doc *goquery.Document) []workConnectCategory {
	var categories []workConnectCategory
	doc.Find("div.mt-6 div.relative ul").First().ChildrenFiltered("li").Each(func(_ int, li *goquery.Selection) {
		link := li.ChildrenFiltered("a").First()
		href, ok := link.Attr("href")
		if !ok || href == "" {
			return
		}
		categories = append(categories, workConnectCategory{
			name: cleanText(link.Text()),
			url:  absoluteURL(workConnectBaseURL, href),
		})
	})
	return categories
}

// parseWorkConnectOffers reads active offers from a category page. Inactive
// offers are rendered with a grey background and skipped.
func parseWorkConnectOffers(doc *goquery.Document) []models.Offer {
	var offers []models.Offer
	doc.Find("li[class*='break-words'][class*='border-t']").Each(func(_ int, li *goquery.Selection) {
		link := li.Find("a[class*='rounded-2xl']").First()
		if link.Length() == 0 {
			return
		}
		if class, _ := link.Attr("class"); containsClass(class, "lg:bg-[#FAFAFA]") {
			return
		}
		href, _ := link.Attr("href")
		if href == "" {
			return
		}
		offers = append(offers, models.Offer{
			Title:      cleanText(link.Find("h5").First().Text()),
			URL:        absoluteURL(workConnectBaseURL, href),
			Platform:   PlatformWorkConnect,
			ClientName: cleanText(link.Find("div.t-14-medium:not(.leading-4)").First().Text()),
			Budget:     cleanText(link.Find("div.t-14-medium.leading-4").First().Text()),
		})
	})
	return offers
}

func parseWorkConnectDescription(doc *goquery.Document) string {
	return cleanText(doc.Find("div[class*='t-16-default'][class*='text-gray-primary']").First().Text())
}

func containsClass(classAttr, class string) bool {
	for _, c := range strings.Fields(classAttr) {
		if c == class {
			return true
		}
	}
	return false
}
