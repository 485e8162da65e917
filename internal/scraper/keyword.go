package scraper

import (
	"context"

	"github.com/jimezsa/gigscope/internal/filter"
	"github.com/jimezsa/gigscope/internal/models"
)

// queryFunc runs one platform search for terms. An empty terms slice means
// the platform's unfiltered listing.
type queryFunc func(ctx context.Context, terms []string) ([]models.Offer, error)

type subQuery struct {
	terms []string
	post  models.Keywords
}

// planQueries turns keywords into platform searches. Must keywords share a
// single search and every may keyword gets its own; anything the platform
// cannot express is enforced client-side through post.
func planQueries(kw models.Keywords) []subQuery {
	var plans []subQuery
	if len(kw.Must) > 0 {
		plans = append(plans, subQuery{
			terms: kw.Must,
			post:  models.Keywords{MustNot: kw.MustNot},
		})
	}
	for _, may := range kw.May {
		plans = append(plans, subQuery{
			terms: []string{may},
			post:  models.Keywords{Must: kw.Must, MustNot: kw.MustNot},
		})
	}
	if len(plans) == 0 {
		plans = append(plans, subQuery{post: models.Keywords{MustNot: kw.MustNot}})
	}
	return plans
}

// searchByKeywords executes the planned searches one per pace interval and
// pools their filtered results. It fails only when every search failed.
func (f fetcher) searchByKeywords(ctx context.Context, kw models.Keywords, maxOffers int, run queryFunc) ([]models.Offer, error) {
	var (
		pooled   []models.Offer
		firstErr error
		attempts int
		failures int
	)

	for i, plan := range planQueries(kw) {
		if i > 0 {
			if err := sleepCtx(ctx, f.pace); err != nil {
				return nil, err
			}
		}

		attempts++
		offers, err := run(ctx, plan.terms)
		if err != nil {
			failures++
			if firstErr == nil {
				firstErr = err
			}
			f.logger.Debug().Err(err).Strs("terms", plan.terms).Msg("keyword query failed")
			continue
		}

		pooled = filter.Deduplicate(append(pooled, filter.Filter(offers, plan.post)...))
		if maxOffers > 0 && len(pooled) >= maxOffers {
			break
		}
	}

	if attempts > 0 && failures == attempts {
		return nil, firstErr
	}
	if maxOffers > 0 && len(pooled) > maxOffers {
		pooled = pooled[:maxOffers]
	}
	return pooled, nil
}
