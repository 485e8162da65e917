package selection

import (
	"fmt"
	"testing"

	"github.com/jimezsa/gigscope/internal/models"
)

func scored(platform string, overall float64) models.ScoredOffer {
	return models.ScoredOffer{
		Offer:  models.Offer{Platform: platform, URL: fmt.Sprintf("https://%s/%v", platform, overall)},
		Scores: models.Scores{Overall: overall},
	}
}

func assertSorted(t *testing.T, offers []models.ScoredOffer) {
	t.Helper()
	for i := 1; i < len(offers); i++ {
		if offers[i-1].Scores.Overall < offers[i].Scores.Overall {
			t.Fatalf("not sorted at %d: %v < %v", i, offers[i-1].Scores.Overall, offers[i].Scores.Overall)
		}
	}
}

func TestSelectCoversEveryPlatform(t *testing.T) {
	offers := []models.ScoredOffer{
		scored("upwork", 9.5), scored("upwork", 9.1), scored("upwork", 8.8), scored("upwork", 8.7),
		scored("useme", 3.0), scored("useme", 2.0),
		scored("justjoinit", 4.0),
	}

	got := Select(offers, 4)
	if len(got) != 4 {
		t.Fatalf("expected 4 offers, got %d", len(got))
	}
	platforms := map[string]int{}
	for _, offer := range got {
		platforms[offer.Platform]++
	}
	if platforms["useme"] != 1 || platforms["justjoinit"] != 1 || platforms["upwork"] != 2 {
		t.Fatalf("unexpected platform mix: %v", platforms)
	}
	if got[0].Scores.Overall != 9.5 || got[1].Scores.Overall != 9.1 {
		t.Fatalf("expected best upwork offers first: %+v", got)
	}
	assertSorted(t, got)
}

func TestSelectFirstPassRespectsMax(t *testing.T) {
	offers := []models.ScoredOffer{
		scored("a", 1), scored("b", 9), scored("c", 5), scored("a", 8),
	}
	got := Select(offers, 2)
	if len(got) != 2 {
		t.Fatalf("expected 2 offers, got %d", len(got))
	}
	// platforms are taken in first-seen order: a then b.
	if got[0].Platform != "b" || got[1].Platform != "a" || got[1].Scores.Overall != 8 {
		t.Fatalf("unexpected selection: %+v", got)
	}
}

func TestSelectReturnsAllWhenUnderMax(t *testing.T) {
	offers := []models.ScoredOffer{scored("a", 1), scored("b", 3), scored("a", 2)}
	got := Select(offers, 5)
	if len(got) != 3 {
		t.Fatalf("expected all offers, got %d", len(got))
	}
	assertSorted(t, got)
	if offers[0].Scores.Overall != 1 {
		t.Fatalf("input must not be reordered")
	}
}

func TestSelectEdgeCases(t *testing.T) {
	if got := Select([]models.ScoredOffer{scored("a", 1)}, 0); len(got) != 0 {
		t.Fatalf("expected empty result for max 0")
	}
	if got := Select(nil, 3); got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil result")
	}
}

func TestSelectIsStableForTies(t *testing.T) {
	offers := []models.ScoredOffer{scored("a", 5), scored("b", 5), scored("c", 5), scored("a", 5)}
	offers[3].URL = "second-a"
	first := Select(offers, 3)
	second := Select(offers, 3)
	for i := range first {
		if first[i].URL != second[i].URL {
			t.Fatalf("selection is not deterministic")
		}
	}
	for _, offer := range first {
		if offer.URL == "second-a" {
			t.Fatalf("tie should keep one offer per platform before backfilling")
		}
	}
}
