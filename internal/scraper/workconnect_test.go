package scraper

import (
	"context"
	"testing"
	"time"

	"github.com/jimezsa/gigscope/internal/cache"
	"github.com/jimezsa/gigscope/internal/models"
)

const workConnectIndex = `
<div class="mt-6"><div class="relative"><ul>
  <li><a href="/zlecenia/grafika">Grafika</a></li>
  <li><a href="/zlecenia/it">Programowanie i IT</a></li>
</ul></div></div>`

const workConnectGrafika = `
<ul>
  <li class="py-4 break-words border-t">
    <a class="block rounded-2xl p-4" href="/zlecenie/logo-1">
      <h5>Projekt logo firmy</h5>
      <div class="t-14-medium">MAGTRANS</div>
      <div class="t-14-medium leading-4">500 - 1000 PLN</div>
    </a>
  </li>
  <li class="py-4 break-words border-t">
    <a class="block rounded-2xl lg:bg-[#FAFAFA]" href="/zlecenie/old-2">
      <h5>Nieaktywne zlecenie</h5>
    </a>
  </li>
</ul>`

const workConnectIT = `
<ul>
  <li class="break-words border-t">
    <a class="rounded-2xl" href="/zlecenie/crm-3">
      <h5>Wdrożenie systemu CRM</h5>
      <div class="t-14-medium">Tech Solutions</div>
      <div class="t-14-medium leading-4">Do ustalenia</div>
    </a>
  </li>
  <li class="break-words border-t">
    <a class="rounded-2xl" href="/zlecenie/logo-1"><h5>Projekt logo firmy</h5></a>
  </li>
</ul>`

const workConnectDetail = `<div class="t-16-default max-w-[44.063rem] text-gray-primary">Opis zlecenia z React.</div>`

func workConnectDoer() *routeDoer {
	return &routeDoer{routes: map[string]string{
		workConnectListURL:                       workConnectIndex,
		workConnectBaseURL + "/zlecenia/grafika": workConnectGrafika,
		workConnectBaseURL + "/zlecenia/it":      workConnectIT,
		workConnectBaseURL + "/zlecenie/logo-1":  `<div class="t-16-default text-gray-primary">Logo dla firmy.</div>`,
		workConnectBaseURL + "/zlecenie/crm-3":   workConnectDetail,
	}}
}

func TestParseWorkConnectOffers(t *testing.T) {
	offers := parseWorkConnectOffers(mustDoc(t, workConnectGrafika))
	if len(offers) != 1 {
		t.Fatalf("expected inactive offer to be skipped, got %d", len(offers))
	}
	got := offers[0]
	if got.Title != "Projekt logo firmy" || got.ClientName != "MAGTRANS" || got.Budget != "500 - 1000 PLN" {
		t.Fatalf("unexpected offer: %+v", got)
	}
	if got.URL != "https://www.workconnect.app/zlecenie/logo-1" {
		t.Fatalf("unexpected url: %q", got.URL)
	}
}

func TestWorkConnectCachesCatalogue(t *testing.T) {
	doer := workConnectDoer()
	listings := cache.NewMemory()
	sc := NewWorkConnect(testFetcher(doer), listings, WorkConnectOptions{CacheTTL: time.Hour})

	res := sc.Scrape(context.Background(), models.Keywords{May: []string{"react"}}, 10, Credentials{})
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if len(res.Offers) != 1 || res.Offers[0].Title != "Wdrożenie systemu CRM" {
		t.Fatalf("expected description match on the CRM offer, got %+v", res.Offers)
	}
	if res.Offers[0].Tags[0] != "Programowanie i IT" {
		t.Fatalf("expected category tag, got %v", res.Offers[0].Tags)
	}

	requests := doer.count()
	res = sc.Scrape(context.Background(), models.Keywords{Must: []string{"logo"}}, 10, Credentials{})
	if res.Err != nil || len(res.Offers) != 1 {
		t.Fatalf("unexpected second scrape: err=%v offers=%d", res.Err, len(res.Offers))
	}
	if doer.count() != requests {
		t.Fatalf("second scrape should be served from cache")
	}
}

func TestWorkConnectRespectsMaxOffers(t *testing.T) {
	sc := NewWorkConnect(testFetcher(workConnectDoer()), nil, WorkConnectOptions{MaxOffers: 1, SkipDetails: true})
	catalogue, err := sc.Catalogue(context.Background(), true)
	if err != nil {
		t.Fatalf("Catalogue: %v", err)
	}
	if len(catalogue) != 1 {
		t.Fatalf("expected catalogue capped at 1, got %d", len(catalogue))
	}
}

func TestWorkConnectIndexFailure(t *testing.T) {
	doer := &routeDoer{statuses: map[string]int{workConnectListURL: 500}}
	sc := NewWorkConnect(testFetcher(doer), nil, WorkConnectOptions{})
	res := sc.Scrape(context.Background(), models.Keywords{}, 10, Credentials{})
	if res.Err == nil {
		t.Fatalf("expected error")
	}
}
