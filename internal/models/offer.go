package models

import (
	"strings"
	"time"
)

// Offer is the normalized listing returned by scrapers.
type Offer struct {
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	URL            string    `json:"url"`
	Platform       string    `json:"platform"`
	Budget         string    `json:"budget,omitempty"`
	ClientName     string    `json:"client_name,omitempty"`
	ClientLocation string    `json:"client_location,omitempty"`
	PostedAt       time.Time `json:"posted_at,omitempty"`
	Tags           []string  `json:"tags,omitempty"`
}

// Text returns the searchable text used by keyword matching.
func (o Offer) Text() string {
	return o.Title + " " + o.Description
}

type Scores struct {
	Fit            float64 `json:"fit"`
	Attractiveness float64 `json:"attractiveness"`
	Overall        float64 `json:"overall"`
}

// NeutralScores is used whenever a scorer cannot produce a value.
var NeutralScores = Scores{Fit: 5, Attractiveness: 5, Overall: 5}

// ScoredOffer is an offer with its scores attached. Scores are set once.
type ScoredOffer struct {
	Offer
	Scores   Scores `json:"scores"`
	Selected bool   `json:"selected"`
}

// ScrapeResult is the outcome of one platform scrape. Err is never a panic
// surrogate: scrapers always return a result.
type ScrapeResult struct {
	Platform  string        `json:"platform"`
	Offers    []Offer       `json:"offers"`
	SearchURL string        `json:"search_url"`
	Duration  time.Duration `json:"duration"`
	Err       error         `json:"-"`
}

func (r ScrapeResult) ErrorText() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// Keywords holds the three keyword lists of a preference.
type Keywords struct {
	Must    []string `json:"must_contain"`
	May     []string `json:"may_contain"`
	MustNot []string `json:"must_not_contain"`
}

func (k Keywords) Empty() bool {
	return len(k.Must) == 0 && len(k.May) == 0 && len(k.MustNot) == 0
}

// Positive returns must followed by may keywords.
func (k Keywords) Positive() []string {
	out := make([]string, 0, len(k.Must)+len(k.May))
	out = append(out, k.Must...)
	return append(out, k.May...)
}

// Clone returns a deep copy so a snapshot never aliases live preferences.
func (k Keywords) Clone() Keywords {
	return Keywords{
		Must:    append([]string(nil), k.Must...),
		May:     append([]string(nil), k.May...),
		MustNot: append([]string(nil), k.MustNot...),
	}
}

func (k Keywords) String() string {
	return "must=[" + strings.Join(k.Must, ", ") + "] may=[" + strings.Join(k.May, ", ") + "] must_not=[" + strings.Join(k.MustNot, ", ") + "]"
}
