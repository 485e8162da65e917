package scraper

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jimezsa/gigscope/internal/models"
)

func TestUpworkQuery(t *testing.T) {
	cases := []struct {
		kw   models.Keywords
		want string
	}{
		{models.Keywords{Must: []string{"a", "b"}, May: []string{"c", "d"}, MustNot: []string{"e", "f"}}, "(a AND b) AND (c OR d) AND NOT (e OR f)"},
		{models.Keywords{Must: []string{"go"}}, "go"},
		{models.Keywords{May: []string{"react"}, MustNot: []string{"php"}}, "react AND NOT php"},
		{models.Keywords{MustNot: []string{"php", "java"}}, "NOT (php OR java)"},
		{models.Keywords{}, ""},
	}
	for _, tc := range cases {
		if got := upworkQuery(tc.kw); got != tc.want {
			t.Fatalf("upworkQuery(%+v) = %q, want %q", tc.kw, got, tc.want)
		}
	}
}

func TestUpworkSearchURL(t *testing.T) {
	got := upworkSearchURL(models.Keywords{Must: []string{"go", "api"}}, 10)
	want := "https://www.upwork.com/nx/search/jobs/?per_page=10&sort=recency&t=1&q=%28go%20AND%20api%29"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestUpworkRequiresAPIKey(t *testing.T) {
	doer := &routeDoer{}
	sc := NewUpwork(testFetcher(doer), ApifyOptions{})

	res := sc.Scrape(context.Background(), models.Keywords{Must: []string{"go"}}, 10, Credentials{})
	if !errors.Is(res.Err, ErrMissingCredentials) {
		t.Fatalf("expected missing credentials error, got %v", res.Err)
	}
	if doer.count() != 0 {
		t.Fatalf("no request should be made without a key")
	}
}

func TestUpworkScrapeRunsActor(t *testing.T) {
	base := "https://apify.test/v2"
	doer := &routeDoer{routes: map[string]string{
		base + "/acts/XYTgO05GT5qAoSlxy/runs?timeout=150": `{"data":{"id":"run1","status":"RUNNING","defaultDatasetId":"ds1"}}`,
		base + "/actor-runs/run1?waitForFinish=60":        `{"data":{"id":"run1","status":"SUCCEEDED","defaultDatasetId":"ds1"}}`,
		base + "/datasets/ds1/items?clean=true&format=json": `[
			{"title":"Go developer","description":"Build APIs","url":"https://www.upwork.com/jobs/~01","budget":"$50.00","clientLocation":"Denmark","absoluteDate":"2025-11-24T12:29:06.297Z","tags":["Go"]},
			{"title":"Go developer dup","url":"https://www.upwork.com/jobs/~01"},
			{"title":"Rust","url":"https://www.upwork.com/jobs/~02","budget":120}
		]`,
	}}
	sc := NewUpwork(testFetcher(doer), ApifyOptions{BaseURL: base, PollInterval: time.Millisecond})

	res := sc.Scrape(context.Background(), models.Keywords{Must: []string{"go"}}, 10, Credentials{APIKey: "secret"})
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if len(res.Offers) != 2 {
		t.Fatalf("expected 2 deduplicated offers, got %d", len(res.Offers))
	}
	first := res.Offers[0]
	if first.Budget != "$50.00" || first.ClientLocation != "Denmark" || first.PostedAt.IsZero() {
		t.Fatalf("unexpected offer: %+v", first)
	}
	if res.Offers[1].Budget != "120" {
		t.Fatalf("expected numeric budget to be stringified, got %q", res.Offers[1].Budget)
	}
	if !strings.Contains(res.SearchURL, "per_page=10") {
		t.Fatalf("expected small page size for small caps: %s", res.SearchURL)
	}
	for _, req := range doer.requests {
		if req.Header.Get("authorization") != "Bearer secret" {
			t.Fatalf("missing bearer token on %s", req.URL)
		}
	}
}

func TestUpworkFailedRun(t *testing.T) {
	base := "https://apify.test/v2"
	doer := &routeDoer{routes: map[string]string{
		base + "/acts/XYTgO05GT5qAoSlxy/runs?timeout=150": `{"data":{"id":"run2","status":"FAILED","defaultDatasetId":"ds2"}}`,
	}}
	sc := NewUpwork(testFetcher(doer), ApifyOptions{BaseURL: base, PollInterval: time.Millisecond})

	res := sc.Scrape(context.Background(), models.Keywords{}, 10, Credentials{APIKey: "k"})
	if res.Err == nil || !strings.Contains(res.Err.Error(), "FAILED") {
		t.Fatalf("expected failed run error, got %v", res.Err)
	}
}
