package scraper

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jimezsa/gigscope/internal/models"
)

func TestPlanQueries(t *testing.T) {
	kw := models.Keywords{
		Must:    []string{"go", "api"},
		May:     []string{"react", "vue"},
		MustNot: []string{"php"},
	}
	plans := planQueries(kw)
	if len(plans) != 3 {
		t.Fatalf("expected 3 sub-queries, got %d", len(plans))
	}
	if strings.Join(plans[0].terms, ",") != "go,api" || len(plans[0].post.Must) != 0 {
		t.Fatalf("unexpected must plan: %+v", plans[0])
	}
	for _, plan := range plans[1:] {
		if len(plan.terms) != 1 || len(plan.post.Must) != 2 || len(plan.post.MustNot) != 1 {
			t.Fatalf("unexpected may plan: %+v", plan)
		}
	}

	if plans := planQueries(models.Keywords{MustNot: []string{"php"}}); len(plans) != 1 || len(plans[0].terms) != 0 {
		t.Fatalf("expected one unfiltered query, got %+v", plans)
	}
}

func TestSearchByKeywordsFiltersAndPools(t *testing.T) {
	f := testFetcher(&routeDoer{})
	kw := models.Keywords{
		Must:    []string{"go"},
		May:     []string{"react"},
		MustNot: []string{"php"},
	}

	responses := map[string][]models.Offer{
		"go": {
			{Title: "Go API", URL: "a"},
			{Title: "Go and PHP", URL: "b"},
		},
		"react": {
			{Title: "React only", URL: "c"},
			{Title: "Go with React", URL: "d"},
			{Title: "Go API", URL: "a"},
		},
	}

	var queries []string
	offers, err := f.searchByKeywords(context.Background(), kw, 10, func(_ context.Context, terms []string) ([]models.Offer, error) {
		key := strings.Join(terms, " ")
		queries = append(queries, key)
		return responses[key], nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Join(queries, "|") != "go|react" {
		t.Fatalf("unexpected queries: %v", queries)
	}

	var urls []string
	for _, o := range offers {
		urls = append(urls, o.URL)
	}
	if strings.Join(urls, ",") != "a,d" {
		t.Fatalf("expected [a d], got %v", urls)
	}
}

func TestSearchByKeywordsPartialFailure(t *testing.T) {
	f := testFetcher(&routeDoer{})
	kw := models.Keywords{May: []string{"one", "two"}}

	offers, err := f.searchByKeywords(context.Background(), kw, 5, func(_ context.Context, terms []string) ([]models.Offer, error) {
		if terms[0] == "one" {
			return nil, errors.New("boom")
		}
		return []models.Offer{{Title: "two", URL: "x"}}, nil
	})
	if err != nil {
		t.Fatalf("partial failure should not fail the scrape: %v", err)
	}
	if len(offers) != 1 {
		t.Fatalf("expected 1 offer, got %d", len(offers))
	}

	_, err = f.searchByKeywords(context.Background(), kw, 5, func(context.Context, []string) ([]models.Offer, error) {
		return nil, errors.New("down")
	})
	if err == nil {
		t.Fatalf("expected error when every query fails")
	}
}

func TestSearchByKeywordsCaps(t *testing.T) {
	f := testFetcher(&routeDoer{})
	calls := 0
	offers, _ := f.searchByKeywords(context.Background(), models.Keywords{May: []string{"a", "b", "c"}}, 2, func(_ context.Context, terms []string) ([]models.Offer, error) {
		calls++
		return []models.Offer{{Title: terms[0], URL: terms[0] + "1"}, {Title: terms[0], URL: terms[0] + "2"}}, nil
	})
	if len(offers) != 2 {
		t.Fatalf("expected cap of 2, got %d", len(offers))
	}
	if calls != 1 {
		t.Fatalf("expected early stop after the cap was reached, got %d calls", calls)
	}
}
