package scraper

import (
	"context"
	"testing"

	"github.com/jimezsa/gigscope/internal/models"
)

const usemeFixture = `
<section>
  <article class="job">
    <a class="job__title" href="/pl/jobs/sklep-internetowy,1001/">Sklep internetowy w React</a>
    <p>Potrzebny sklep w React i Node.</p>
    <div class="job__budget"><span class="job__budget-value">2500 - 5000 PLN</span></div>
    <div class="job__employer"><a href="/pl/u/acme">ACME</a></div>
    <div class="job__location">Warszawa</div>
  </article>
  <article class="job">
    <a class="job__title job__title-link--closed" href="/pl/jobs/closed,1002/">Zamknięte zlecenie React</a>
    <p>Już nieaktualne.</p>
  </article>
  <article class="job">
    <a class="job__title" href="/pl/jobs/wordpress,1003/">Strona WordPress z React</a>
    <p>Migracja WordPress.</p>
  </article>
</section>`

func TestParseUsemeOffers(t *testing.T) {
	offers := parseUsemeOffers(mustDoc(t, usemeFixture))
	if len(offers) != 2 {
		t.Fatalf("expected closed offer to be skipped, got %d offers", len(offers))
	}
	got := offers[0]
	if got.Title != "Sklep internetowy w React" {
		t.Fatalf("unexpected title: %q", got.Title)
	}
	if got.URL != "https://useme.com/pl/jobs/sklep-internetowy,1001/" {
		t.Fatalf("unexpected url: %q", got.URL)
	}
	if got.Budget != "2500 - 5000 PLN" || got.ClientName != "ACME" || got.ClientLocation != "Warszawa" {
		t.Fatalf("unexpected details: %+v", got)
	}
}

func TestUsemeSearchURL(t *testing.T) {
	got := buildUsemeURL([]string{"react native", "node"})
	want := "https://useme.com/pl/jobs/?query=react+native%2C+node"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
	if buildUsemeURL(nil) != usemeSearchURL {
		t.Fatalf("expected bare listing url without keywords")
	}
}

func TestUsemeScrapeAppliesMustNot(t *testing.T) {
	doer := &routeDoer{routes: map[string]string{
		buildUsemeURL([]string{"react"}): usemeFixture,
	}}
	sc := NewUseme(testFetcher(doer))

	res := sc.Scrape(context.Background(), models.Keywords{Must: []string{"react"}, MustNot: []string{"wordpress"}}, 10, Credentials{})
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if len(res.Offers) != 1 || res.Offers[0].Title != "Sklep internetowy w React" {
		t.Fatalf("unexpected offers: %+v", res.Offers)
	}
	if res.Platform != PlatformUseme || res.SearchURL == "" {
		t.Fatalf("unexpected result metadata: %+v", res)
	}
}

func TestUsemeScrapeReportsHTTPFailure(t *testing.T) {
	doer := &routeDoer{statuses: map[string]int{buildUsemeURL([]string{"go"}): 403}}
	sc := NewUseme(testFetcher(doer))

	res := sc.Scrape(context.Background(), models.Keywords{Must: []string{"go"}}, 10, Credentials{})
	if res.Err == nil {
		t.Fatalf("expected error")
	}
	if len(res.Offers) != 0 {
		t.Fatalf("expected no offers on failure")
	}
}
