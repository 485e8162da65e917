package scoring

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/jimezsa/gigscope/internal/models"
	"github.com/rs/zerolog"
)

type Mode int

const (
	ModeMock Mode = iota
	ModeReal
)

func (m Mode) String() string {
	if m == ModeReal {
		return "real"
	}
	return "mock"
}

// ErrNoProvider is reported when real scoring is requested without a
// configured provider.
var ErrNoProvider = errors.New("scoring provider not configured")

type Options struct {
	Provider Provider
	// Prompt overrides DefaultPrompt.
	Prompt string
	Logger zerolog.Logger
	// Rand drives the mock heuristic. Nil seeds from the clock.
	Rand *rand.Rand
}

// Engine attaches scores to offers. It never fails: provider errors fall
// back to the mock heuristic and unusable answers yield neutral scores.
type Engine struct {
	provider Provider
	prompt   string
	logger   zerolog.Logger

	mu           sync.Mutex
	rng          *rand.Rand
	lastFallback error
}

func NewEngine(opts Options) *Engine {
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Engine{
		provider: opts.Provider,
		prompt:   opts.Prompt,
		logger:   opts.Logger,
		rng:      rng,
	}
}

// Score returns one ScoredOffer per input offer, in input order.
func (e *Engine) Score(ctx context.Context, offers []models.Offer, kw models.Keywords, mode Mode) []models.ScoredOffer {
	if len(offers) == 0 {
		return []models.ScoredOffer{}
	}

	var scores []models.Scores
	if mode == ModeReal {
		scores = e.realScores(ctx, offers, kw)
	} else {
		scores = e.mock(offers, kw)
	}

	out := make([]models.ScoredOffer, len(offers))
	for i, offer := range offers {
		out[i] = models.ScoredOffer{Offer: offer, Scores: scores[i]}
	}
	return out
}

// LastFallback returns the provider error that forced the most recent real
// scoring call onto the mock heuristic, or nil.
func (e *Engine) LastFallback() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastFallback
}

func (e *Engine) realScores(ctx context.Context, offers []models.Offer, kw models.Keywords) []models.Scores {
	e.setFallback(nil)
	if e.provider == nil {
		return e.fallback(offers, kw, ErrNoProvider)
	}

	prompt, err := BuildPrompt(e.prompt, kw, offers)
	if err != nil {
		return e.fallback(offers, kw, err)
	}
	content, err := e.provider.Complete(ctx, prompt)
	if err != nil {
		return e.fallback(offers, kw, err)
	}

	scores, err := ParseScores(content, len(offers))
	if err != nil {
		e.logger.Warn().Err(err).Int("offers", len(offers)).Msg("unparseable scoring response, using neutral scores")
	}
	return scores
}

func (e *Engine) fallback(offers []models.Offer, kw models.Keywords, cause error) []models.Scores {
	e.logger.Warn().Err(cause).Int("offers", len(offers)).Msg("scoring provider failed, using mock scores")
	e.setFallback(cause)
	return e.mock(offers, kw)
}

func (e *Engine) mock(offers []models.Offer, kw models.Keywords) []models.Scores {
	e.mu.Lock()
	defer e.mu.Unlock()
	return mockScores(offers, kw, e.rng)
}

func (e *Engine) setFallback(err error) {
	e.mu.Lock()
	e.lastFallback = err
	e.mu.Unlock()
}
