package scoring

import (
	"math/rand"

	"github.com/jimezsa/gigscope/internal/filter"
	"github.com/jimezsa/gigscope/internal/models"
)

// mockScores is the offline heuristic. Fit follows keyword matches,
// attractiveness is random in [4, 9] and overall blends the two 60/40 with up
// to half a point of jitter.
func mockScores(offers []models.Offer, kw models.Keywords, rng *rand.Rand) []models.Scores {
	scores := make([]models.Scores, len(offers))
	for i, offer := range offers {
		must, may, mustNot := filter.MatchCounts(offer, kw)
		fit := Clamp(neutral + 1.5*float64(must) + 0.5*float64(may) - 2.0*float64(mustNot))
		attractiveness := 4.0 + rng.Float64()*5.0
		overall := Clamp(fit*0.6 + attractiveness*0.4 + (rng.Float64() - 0.5))

		scores[i] = models.Scores{
			Fit:            round1(fit),
			Attractiveness: round1(attractiveness),
			Overall:        round1(overall),
		}
	}
	return scores
}
