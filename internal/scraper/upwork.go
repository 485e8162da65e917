package scraper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	fhttp "github.com/bogdanfinn/fhttp"
	"github.com/jimezsa/gigscope/internal/filter"
	"github.com/jimezsa/gigscope/internal/models"
	"github.com/jimezsa/gigscope/internal/network"
)

const (
	upworkSearchBase = "https://www.upwork.com/nx/search/jobs/"
	apifyBaseURL     = "https://api.apify.com/v2"
	upworkActorID    = "XYTgO05GT5qAoSlxy"
)

// Apify run states that end polling.
var apifyTerminal = map[string]bool{
	"SUCCEEDED": true,
	"FAILED":    true,
	"ABORTED":   true,
	"TIMED-OUT": true,
}

type ApifyOptions struct {
	BaseURL    string
	ActorID    string
	RunTimeout time.Duration
	// Wait is added to RunTimeout to form the overall ceiling.
	Wait         time.Duration
	PollInterval time.Duration
	MaxJobAge    time.Duration
}

func (o ApifyOptions) withDefaults() ApifyOptions {
	if o.BaseURL == "" {
		o.BaseURL = apifyBaseURL
	}
	if o.ActorID == "" {
		o.ActorID = upworkActorID
	}
	if o.RunTimeout <= 0 {
		o.RunTimeout = 150 * time.Second
	}
	if o.Wait <= 0 {
		o.Wait = 30 * time.Second
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 5 * time.Second
	}
	if o.MaxJobAge <= 0 {
		o.MaxJobAge = 24 * time.Hour
	}
	return o
}

type Upwork struct {
	fetcher
	apify ApifyOptions
}

func NewUpwork(f fetcher, apify ApifyOptions) *Upwork {
	return &Upwork{fetcher: f, apify: apify.withDefaults()}
}

func (u *Upwork) Name() string {
	return PlatformUpwork
}

func (u *Upwork) SearchURL(kw models.Keywords) string {
	return upworkSearchURL(kw, 50)
}

func (u *Upwork) ScrapeMock(ctx context.Context, kw models.Keywords, maxOffers int) models.ScrapeResult {
	return mockResult(ctx, u.Name(), u.SearchURL(kw), kw, maxOffers)
}

func (u *Upwork) Scrape(ctx context.Context, kw models.Keywords, maxOffers int, creds Credentials) models.ScrapeResult {
	start := time.Now()
	perPage := 50
	if maxOffers <= 10 {
		perPage = 10
	}
	searchURL := upworkSearchURL(kw, perPage)

	if strings.TrimSpace(creds.APIKey) == "" {
		return result(u.Name(), searchURL, start, nil, maxOffers, ErrMissingCredentials)
	}

	ctx, cancel := context.WithTimeout(ctx, u.apify.RunTimeout+u.apify.Wait)
	defer cancel()

	offers, err := u.runActor(ctx, creds.APIKey, searchURL)
	return result(u.Name(), searchURL, start, offers, maxOffers, err)
}

type apifyRun struct {
	ID               string `json:"id"`
	Status           string `json:"status"`
	DefaultDatasetID string `json:"defaultDatasetId"`
}

type apifyEnvelope struct {
	Data apifyRun `json:"data"`
}

type upworkItem struct {
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	URL            string   `json:"url"`
	Budget         any      `json:"budget"`
	ClientLocation string   `json:"clientLocation"`
	AbsoluteDate   string   `json:"absoluteDate"`
	Tags           []string `json:"tags"`
}

func (u *Upwork) runActor(ctx context.Context, token, searchURL string) ([]models.Offer, error) {
	input, err := json.Marshal(map[string]any{
		"rawUrl":          searchURL,
		"paymentVerified": false,
		"maxJobAge": map[string]any{
			"value": int(u.apify.MaxJobAge.Hours()),
			"unit":  "hours",
		},
	})
	if err != nil {
		return nil, err
	}

	startURL := fmt.Sprintf("%s/acts/%s/runs?timeout=%d", u.apify.BaseURL, u.apify.ActorID, int(u.apify.RunTimeout.Seconds()))
	resp, err := network.Do(ctx, u.client, u.retry, func(ctx context.Context) (*fhttp.Request, error) {
		req, err := fhttp.NewRequestWithContext(ctx, fhttp.MethodPost, startURL, bytes.NewReader(input))
		if err != nil {
			return nil, err
		}
		req.Header.Set("content-type", "application/json")
		req.Header.Set("authorization", "Bearer "+token)
		return req, nil
	})
	if err != nil {
		return nil, fmt.Errorf("start apify run: %w", err)
	}
	var started apifyEnvelope
	err = decodeJSON(resp.Body, &started)
	resp.Body.Close()
	if err != nil {
		return nil, err
	}

	run, err := u.waitForRun(ctx, token, started.Data)
	if err != nil {
		return nil, err
	}
	if run.Status != "SUCCEEDED" {
		return nil, fmt.Errorf("apify run %s ended with status %s", run.ID, run.Status)
	}

	var items []upworkItem
	itemsURL := fmt.Sprintf("%s/datasets/%s/items?clean=true&format=json", u.apify.BaseURL, url.PathEscape(run.DefaultDatasetID))
	if err := u.getJSON(ctx, itemsURL, authHeader(token), &items); err != nil {
		return nil, fmt.Errorf("fetch dataset: %w", err)
	}

	offers := make([]models.Offer, 0, len(items))
	for _, item := range items {
		offer := models.Offer{
			Title:          cleanText(item.Title),
			Description:    strings.TrimSpace(item.Description),
			URL:            item.URL,
			Platform:       PlatformUpwork,
			Budget:         stringValue(item.Budget),
			ClientLocation: item.ClientLocation,
			Tags:           item.Tags,
		}
		if ts, err := parsePostedAt(item.AbsoluteDate); err == nil {
			offer.PostedAt = ts
		}
		offers = append(offers, offer)
	}
	return filter.Deduplicate(offers), nil
}

func (u *Upwork) waitForRun(ctx context.Context, token string, run apifyRun) (apifyRun, error) {
	for !apifyTerminal[run.Status] {
		if err := sleepCtx(ctx, u.apify.PollInterval); err != nil {
			return run, fmt.Errorf("apify run %s: %w", run.ID, err)
		}
		var polled apifyEnvelope
		runURL := fmt.Sprintf("%s/actor-runs/%s?waitForFinish=60", u.apify.BaseURL, url.PathEscape(run.ID))
		if err := u.getJSON(ctx, runURL, authHeader(token), &polled); err != nil {
			return run, fmt.Errorf("poll apify run: %w", err)
		}
		run = polled.Data
	}
	return run, nil
}

func authHeader(token string) map[string]string {
	return map[string]string{"authorization": "Bearer " + token}
}

func upworkSearchURL(kw models.Keywords, perPage int) string {
	query := url.QueryEscape(upworkQuery(kw))
	query = strings.ReplaceAll(query, "+", "%20")
	return fmt.Sprintf("%s?per_page=%d&sort=recency&t=1&q=%s", upworkSearchBase, perPage, query)
}

// upworkQuery renders keywords in Upwork's boolean search syntax, for
// example "(a AND b) AND (c OR d) AND NOT (e OR f)".
func upworkQuery(kw models.Keywords) string {
	group := func(terms []string, op string) string {
		if len(terms) == 1 {
			return terms[0]
		}
		return "(" + strings.Join(terms, " "+op+" ") + ")"
	}

	var query string
	if len(kw.Must) > 0 {
		query = group(kw.Must, "AND")
	}
	if len(kw.May) > 0 {
		if query != "" {
			query += " AND "
		}
		query += group(kw.May, "OR")
	}
	if len(kw.MustNot) > 0 {
		if query != "" {
			query += " AND NOT "
		} else {
			query = "NOT "
		}
		query += group(kw.MustNot, "OR")
	}
	return query
}
