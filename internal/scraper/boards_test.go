package scraper

import (
	"context"
	"testing"

	"github.com/jimezsa/gigscope/internal/models"
)

func TestParseBoardOffersFallsBackToLinks(t *testing.T) {
	html := `
<div>
  <a href="/oferta-pracy/backend-dev-1"><h3>Backend Developer</h3><span>SoftwareHouse</span><span>Kraków</span></a>
  <a href="/oferta-pracy/backend-dev-1"><h3>Backend Developer</h3></a>
  <a href="/o-nas">About</a>
</div>`

	offers := parseBoardOffers(mustDoc(t, html), PlatformRocketJobs, rocketJobsBaseURL, "/oferta-pracy/")
	if len(offers) != 1 {
		t.Fatalf("expected 1 offer, got %d", len(offers))
	}
	if offers[0].URL != "https://rocketjobs.pl/oferta-pracy/backend-dev-1" {
		t.Fatalf("unexpected url: %q", offers[0].URL)
	}
	if offers[0].Description != "SoftwareHouse · Kraków" {
		t.Fatalf("unexpected description: %q", offers[0].Description)
	}
}

func TestJustJoinITScrape(t *testing.T) {
	page := `<script type="application/ld+json">[
		{"@type":"JobPosting","title":"Go Engineer","url":"/job-offer/go-1","description":"Go and Kubernetes"},
		{"@type":"JobPosting","title":"PHP Engineer","url":"/job-offer/php-2","description":"Go and PHP"}
	]</script>`
	doer := &routeDoer{routes: map[string]string{
		buildJustJoinITURL([]string{"go"}): page,
	}}
	sc := NewJustJoinIT(testFetcher(doer))

	res := sc.Scrape(context.Background(), models.Keywords{Must: []string{"go"}, MustNot: []string{"php"}}, 5, Credentials{})
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if len(res.Offers) != 1 || res.Offers[0].URL != "https://justjoin.it/job-offer/go-1" {
		t.Fatalf("unexpected offers: %+v", res.Offers)
	}
}

func TestBoardSearchURLs(t *testing.T) {
	if got := buildJustJoinITURL([]string{"react", "node js"}); got != "https://justjoin.it/?keyword=react+node+js" {
		t.Fatalf("unexpected justjoinit url: %q", got)
	}
	if got := buildRocketJobsURL(nil); got != rocketJobsSearchURL {
		t.Fatalf("unexpected rocketjobs url: %q", got)
	}
	if got := NewFiverr().SearchURL(models.Keywords{}); got != "https://www.fiverr.com/categories" {
		t.Fatalf("unexpected fiverr url: %q", got)
	}
}
