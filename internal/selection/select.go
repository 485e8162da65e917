package selection

import (
	"sort"

	"github.com/jimezsa/gigscope/internal/models"
)

// Select picks up to max offers, first taking the best offer of every
// platform (in the order platforms first appear) and then filling the
// remaining slots by overall score. The result is sorted by overall score,
// highest first. The input is not modified.
func Select(offers []models.ScoredOffer, max int) []models.ScoredOffer {
	if max <= 0 || len(offers) == 0 {
		return []models.ScoredOffer{}
	}
	if len(offers) <= max {
		out := append([]models.ScoredOffer(nil), offers...)
		byOverall(out)
		return out
	}

	var platforms []string
	groups := map[string][]models.ScoredOffer{}
	for _, offer := range offers {
		if _, ok := groups[offer.Platform]; !ok {
			platforms = append(platforms, offer.Platform)
		}
		groups[offer.Platform] = append(groups[offer.Platform], offer)
	}
	for _, platform := range platforms {
		byOverall(groups[platform])
	}

	selected := make([]models.ScoredOffer, 0, max)
	for _, platform := range platforms {
		if len(selected) >= max {
			break
		}
		group := groups[platform]
		selected = append(selected, group[0])
		groups[platform] = group[1:]
	}

	var rest []models.ScoredOffer
	for _, platform := range platforms {
		rest = append(rest, groups[platform]...)
	}
	byOverall(rest)
	for _, offer := range rest {
		if len(selected) >= max {
			break
		}
		selected = append(selected, offer)
	}

	byOverall(selected)
	return selected
}

func byOverall(offers []models.ScoredOffer) {
	sort.SliceStable(offers, func(i, j int) bool {
		return offers[i].Scores.Overall > offers[j].Scores.Overall
	})
}
