package scoring

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/jimezsa/gigscope/internal/models"
)

const neutral = 5.0

type rawScore struct {
	OfferIndex     any `json:"offer_index"`
	Fit            any `json:"fit_score"`
	Attractiveness any `json:"attractiveness_score"`
	Overall        any `json:"overall_score"`
}

// ParseScores maps a provider response onto n offers. The result always has
// length n. Entries are placed by offer_index when it is valid and by array
// position otherwise; anything missing stays neutral. A response that is not
// a JSON array yields all-neutral scores and an error.
func ParseScores(content string, n int) ([]models.Scores, error) {
	scores := make([]models.Scores, n)
	for i := range scores {
		scores[i] = models.NeutralScores
	}
	if n == 0 {
		return scores, nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal([]byte(stripFence(content)), &items); err != nil {
		return scores, fmt.Errorf("parse scores: %w", err)
	}

	filled := make([]bool, n)
	var unindexed []int
	parsed := make([]models.Scores, len(items))
	for pos, item := range items {
		var raw rawScore
		if err := json.Unmarshal(item, &raw); err != nil {
			continue
		}
		parsed[pos] = models.Scores{
			Fit:            scoreValue(raw.Fit),
			Attractiveness: scoreValue(raw.Attractiveness),
			Overall:        scoreValue(raw.Overall),
		}
		idx, ok := indexValue(raw.OfferIndex)
		if !ok || idx < 0 || idx >= n || filled[idx] {
			unindexed = append(unindexed, pos)
			continue
		}
		scores[idx] = parsed[pos]
		filled[idx] = true
	}
	for _, pos := range unindexed {
		if pos < n && !filled[pos] {
			scores[pos] = parsed[pos]
			filled[pos] = true
		}
	}
	return scores, nil
}

// stripFence removes a surrounding ``` block, with or without a language tag.
func stripFence(content string) string {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "```") {
		return content
	}
	parts := strings.Split(content, "```")
	if len(parts) < 2 {
		return content
	}
	body := strings.TrimSpace(parts[1])
	body = strings.TrimPrefix(body, "json")
	return strings.TrimSpace(body)
}

func indexValue(v any) (int, bool) {
	switch t := v.(type) {
	case float64:
		if t != math.Trunc(t) {
			return 0, false
		}
		return int(t), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		return n, err == nil
	}
	return 0, false
}

func scoreValue(v any) float64 {
	switch t := v.(type) {
	case float64:
		return Clamp(t)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return neutral
		}
		return Clamp(f)
	}
	return neutral
}

// Clamp bounds a score to [0, 10]. NaN and infinities become neutral.
func Clamp(v float64) float64 {
	switch {
	case math.IsNaN(v), math.IsInf(v, 0):
		return neutral
	case v < 0:
		return 0
	case v > 10:
		return 10
	}
	return v
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
