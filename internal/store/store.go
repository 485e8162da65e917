// Package store persists settings, users, bundles, sent emails and run logs.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/jimezsa/gigscope/internal/models"
)

var (
	ErrNoSettings = errors.New("settings row not found")
	ErrNotFound   = errors.New("not found")
)

type RunKind string

const (
	RunScrape RunKind = "scrape"
	RunMail   RunKind = "mail"
)

// StaleScrapeAfter is how long a running flag is honoured before a new batch
// may take it over.
const StaleScrapeAfter = 3 * time.Hour

// Store is the persistence boundary of the delivery pipeline.
type Store interface {
	Settings(ctx context.Context) (models.Settings, error)
	// TryStartScrape sets the running flag unless another batch holds it. A
	// flag older than staleAfter is taken over.
	TryStartScrape(ctx context.Context, now time.Time, staleAfter time.Duration) (bool, error)
	FinishScrape(ctx context.Context) error

	// Users returns users with a live preference row, ordered by id.
	Users(ctx context.Context) ([]models.User, error)
	User(ctx context.Context, id int64) (models.User, error)

	// LatestPendingBundle returns the most recently scraped unsent bundle with
	// at most maxOffers offers, best first. It returns nil when none exists.
	LatestPendingBundle(ctx context.Context, userID int64, maxOffers int) (*models.Bundle, error)
	// CreateBundle stores the bundle and its offers atomically.
	CreateBundle(ctx context.Context, bundle models.Bundle) (int64, error)

	// HasPromo reports whether recipient got a notice of kind at or after since.
	HasPromo(ctx context.Context, recipient string, kind models.PromoKind, since time.Time) (bool, error)
	// RecordDeliveries inserts the sent emails and links offer deliveries to
	// their bundles where still unlinked, all in one transaction. It returns
	// the new ids in input order.
	RecordDeliveries(ctx context.Context, sent []models.SentEmail) ([]int64, error)

	InsertScrapeLog(ctx context.Context, log models.ScrapeLog) (int64, error)
	InsertMailLog(ctx context.Context, log models.MailLog) (int64, error)
	// HasRunLogOn reports whether a run log of kind exists on day's date in
	// day's location.
	HasRunLogOn(ctx context.Context, kind RunKind, day time.Time) (bool, error)
}

func dayBounds(day time.Time) (time.Time, time.Time) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	return start, start.AddDate(0, 0, 1)
}
