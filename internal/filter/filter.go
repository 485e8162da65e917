// Package filter applies keyword preferences to scraped offers.
package filter

import (
	"strings"

	"github.com/jimezsa/gigscope/internal/models"
)

// Stats captures how a filter pass treated its input.
type Stats struct {
	Input       int
	Kept        int
	MissingMust int
	MissingMay  int
	Excluded    int
}

// Dropped returns the number of offers removed by the pass.
func (s Stats) Dropped() int {
	return s.Input - s.Kept
}

// Normalize lowercases value and collapses internal whitespace.
func Normalize(value string) string {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(value)))
	return strings.Join(fields, " ")
}

// Filter keeps offers that satisfy kw. Must keywords all have to appear in
// title+description. When there are no must keywords, at least one may
// keyword has to appear. Any must-not keyword excludes the offer.
func Filter(offers []models.Offer, kw models.Keywords) []models.Offer {
	out, _ := FilterWithStats(offers, kw)
	return out
}

func FilterWithStats(offers []models.Offer, kw models.Keywords) ([]models.Offer, Stats) {
	m := newMatcher(kw)
	stats := Stats{Input: len(offers)}
	out := make([]models.Offer, 0, len(offers))

	for _, offer := range offers {
		text := Normalize(offer.Text())
		switch {
		case m.excluded(text):
			stats.Excluded++
		case len(m.must) > 0 && !m.allMust(text):
			stats.MissingMust++
		case len(m.must) == 0 && len(m.may) > 0 && !m.anyMay(text):
			stats.MissingMay++
		default:
			out = append(out, offer)
		}
	}
	stats.Kept = len(out)
	return out, stats
}

// Matches reports whether a single offer passes kw.
func Matches(offer models.Offer, kw models.Keywords) bool {
	return len(Filter([]models.Offer{offer}, kw)) == 1
}

// MatchCounts counts how many keywords of each list occur in the offer.
func MatchCounts(offer models.Offer, kw models.Keywords) (must, may, mustNot int) {
	m := newMatcher(kw)
	text := Normalize(offer.Text())
	return countIn(text, m.must), countIn(text, m.may), countIn(text, m.mustNot)
}

// Deduplicate removes offers whose URL was already seen, keeping the first
// occurrence and the input order. An empty URL is a key like any other, so
// offers without one collapse to the first.
func Deduplicate(offers []models.Offer) []models.Offer {
	seen := make(map[string]struct{}, len(offers))
	out := make([]models.Offer, 0, len(offers))
	for _, offer := range offers {
		key := strings.TrimSpace(offer.URL)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, offer)
	}
	return out
}

// ParseList splits a comma-separated keyword field. Blank entries and
// case-insensitive duplicates are dropped.
func ParseList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key := Normalize(part)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, part)
	}
	return out
}

// ParseKeywords builds Keywords from three comma-separated fields.
func ParseKeywords(must, may, mustNot string) models.Keywords {
	return models.Keywords{
		Must:    ParseList(must),
		May:     ParseList(may),
		MustNot: ParseList(mustNot),
	}
}

type matcher struct {
	must    []string
	may     []string
	mustNot []string
}

func newMatcher(kw models.Keywords) matcher {
	return matcher{
		must:    normalizeAll(kw.Must),
		may:     normalizeAll(kw.May),
		mustNot: normalizeAll(kw.MustNot),
	}
}

func (m matcher) excluded(text string) bool {
	return countIn(text, m.mustNot) > 0
}

func (m matcher) allMust(text string) bool {
	return countIn(text, m.must) == len(m.must)
}

func (m matcher) anyMay(text string) bool {
	return countIn(text, m.may) > 0
}

func countIn(text string, keywords []string) int {
	n := 0
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			n++
		}
	}
	return n
}

func normalizeAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		value = Normalize(value)
		if value == "" {
			continue
		}
		out = append(out, value)
	}
	return out
}
