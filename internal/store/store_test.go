package store

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/jimezsa/gigscope/internal/models"
)

var (
	_ Store = (*Postgres)(nil)
	_ Store = (*Memory)(nil)
)

func bundleWith(userID int64, at time.Time, overall ...float64) models.Bundle {
	b := models.Bundle{UserID: userID, ScrapedAt: at, Keywords: models.Keywords{Must: []string{"go"}}}
	for _, o := range overall {
		b.Offers = append(b.Offers, models.BundledOffer{ScoredOffer: models.ScoredOffer{
			Offer:  models.Offer{Title: "offer", Platform: "useme"},
			Scores: models.Scores{Overall: o},
		}})
	}
	return b
}

func TestDayBounds(t *testing.T) {
	loc := time.FixedZone("CET", 3600)
	start, end := dayBounds(time.Date(2024, 3, 9, 17, 45, 0, 0, loc))
	if !start.Equal(time.Date(2024, 3, 9, 0, 0, 0, 0, loc)) || !end.Equal(time.Date(2024, 3, 10, 0, 0, 0, 0, loc)) {
		t.Fatalf("unexpected bounds %v - %v", start, end)
	}
}

func TestMemoryRunningFlag(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(&models.Settings{})
	now := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

	ok, err := m.TryStartScrape(ctx, now, StaleScrapeAfter)
	if err != nil || !ok {
		t.Fatalf("expected first start to succeed: %v %v", ok, err)
	}
	if ok, _ := m.TryStartScrape(ctx, now.Add(time.Hour), StaleScrapeAfter); ok {
		t.Fatalf("expected running flag to block a second batch")
	}
	if ok, _ := m.TryStartScrape(ctx, now.Add(4*time.Hour), StaleScrapeAfter); !ok {
		t.Fatalf("expected stale flag to be taken over")
	}
	if err := m.FinishScrape(ctx); err != nil {
		t.Fatalf("FinishScrape: %v", err)
	}
	s, _ := m.Settings(ctx)
	if s.IsScrapeRunning || s.ScrapeStartedAt != nil {
		t.Fatalf("expected flag cleared")
	}

	if _, err := NewMemory(nil).Settings(ctx); !errors.Is(err, ErrNoSettings) {
		t.Fatalf("expected ErrNoSettings, got %v", err)
	}
}

func TestMemoryLatestPendingBundle(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(&models.Settings{})
	base := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

	if b, err := m.LatestPendingBundle(ctx, 1, 10); err != nil || b != nil {
		t.Fatalf("expected no bundle, got %+v %v", b, err)
	}

	older, _ := m.CreateBundle(ctx, bundleWith(1, base, 1))
	newer, _ := m.CreateBundle(ctx, bundleWith(1, base.Add(time.Hour), 2, 9, 5))
	_, _ = m.CreateBundle(ctx, bundleWith(2, base.Add(2*time.Hour), 3))

	b, err := m.LatestPendingBundle(ctx, 1, 2)
	if err != nil {
		t.Fatalf("LatestPendingBundle: %v", err)
	}
	if b.ID != newer {
		t.Fatalf("expected bundle %d, got %d", newer, b.ID)
	}
	if len(b.Offers) != 2 || b.Offers[0].Scores.Overall != 9 || b.Offers[1].Scores.Overall != 5 {
		t.Fatalf("expected two best offers, got %+v", b.Offers)
	}

	if _, err := m.RecordDeliveries(ctx, []models.SentEmail{{UserID: 1, Recipient: "a@x.pl", Delivery: models.OfferDelivery{BundleID: newer}}}); err != nil {
		t.Fatalf("RecordDeliveries: %v", err)
	}
	b, _ = m.LatestPendingBundle(ctx, 1, 10)
	if b == nil || b.ID != older {
		t.Fatalf("expected fallback to older pending bundle, got %+v", b)
	}
}

func TestMemoryRecordDeliveriesLinksOnce(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(&models.Settings{})
	id, _ := m.CreateBundle(ctx, bundleWith(1, time.Now(), 5))

	first, err := m.RecordDeliveries(ctx, []models.SentEmail{{Recipient: "a@x.pl", Delivery: models.OfferDelivery{BundleID: id}}})
	if err != nil {
		t.Fatalf("RecordDeliveries: %v", err)
	}
	if _, err := m.RecordDeliveries(ctx, []models.SentEmail{{Recipient: "a@x.pl", Delivery: models.OfferDelivery{BundleID: id}}}); err != nil {
		t.Fatalf("RecordDeliveries: %v", err)
	}
	bundles := m.Bundles()
	if bundles[0].SentEmailID == nil || *bundles[0].SentEmailID != first[0] {
		t.Fatalf("expected bundle linked to the first send")
	}

	if _, err := m.RecordDeliveries(ctx, []models.SentEmail{{Recipient: "a@x.pl"}}); err == nil {
		t.Fatalf("expected error for a send without delivery")
	}
	if len(m.SentEmails()) != 2 {
		t.Fatalf("invalid batch must not be written")
	}

	boom := errors.New("disk full")
	m.FailLinking(boom)
	if _, err := m.RecordDeliveries(ctx, []models.SentEmail{{Delivery: models.PromotionalNotice{Kind: models.PromoRenewal}}}); !errors.Is(err, boom) {
		t.Fatalf("expected linking failure, got %v", err)
	}
}

func TestMemoryHasPromo(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(&models.Settings{})
	sentAt := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	_, _ = m.RecordDeliveries(ctx, []models.SentEmail{{
		Recipient: "Ola@Example.com",
		SentAt:    sentAt,
		Delivery:  models.PromotionalNotice{Kind: models.PromoRenewal},
	}})

	cases := []struct {
		kind  models.PromoKind
		since time.Time
		want  bool
	}{
		{models.PromoRenewal, time.Time{}, true},
		{models.PromoRenewal, sentAt, true},
		{models.PromoRenewal, sentAt.Add(time.Second), false},
		{models.PromoNeverSubscribed, time.Time{}, false},
	}
	for _, tc := range cases {
		got, err := m.HasPromo(ctx, "ola@example.com", tc.kind, tc.since)
		if err != nil || got != tc.want {
			t.Fatalf("HasPromo(%s, %v) = %v %v, want %v", tc.kind, tc.since, got, err, tc.want)
		}
	}
}

func TestMemoryRunLogs(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(&models.Settings{})
	day := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	_, _ = m.InsertScrapeLog(ctx, models.ScrapeLog{ExecutedAt: day.Add(-2 * time.Hour)})

	if ok, _ := m.HasRunLogOn(ctx, RunScrape, day); !ok {
		t.Fatalf("expected scrape log on day")
	}
	if ok, _ := m.HasRunLogOn(ctx, RunMail, day); ok {
		t.Fatalf("unexpected mail log")
	}
	if ok, _ := m.HasRunLogOn(ctx, RunScrape, day.AddDate(0, 0, 1)); ok {
		t.Fatalf("log should not leak into the next day")
	}
}

func TestMemoryUsersRequireLivePreference(t *testing.T) {
	kw := &models.Keywords{Must: []string{"go"}}
	m := NewMemory(&models.Settings{},
		models.User{ID: 3, Email: "c@x.pl", Keywords: kw},
		models.User{ID: 1, Email: "a@x.pl", Keywords: kw},
		models.User{ID: 2, Email: "b@x.pl"},
	)
	users, _ := m.Users(context.Background())
	if len(users) != 2 || users[0].ID != 1 || users[1].ID != 3 {
		t.Fatalf("unexpected users %+v", users)
	}
	if _, err := m.User(context.Background(), 9); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

// TestPostgresRoundTrip runs against a disposable database named by
// GIGSCOPE_TEST_DATABASE_URL.
func TestPostgresRoundTrip(t *testing.T) {
	url := os.Getenv("GIGSCOPE_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("GIGSCOPE_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := NewPostgresPool(ctx, url)
	if err != nil {
		t.Fatalf("NewPostgresPool: %v", err)
	}
	defer pool.Close()
	if err := Migrate(ctx, pool); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	pg := NewPostgres(pool)

	if _, err := pg.Settings(ctx); err != nil {
		t.Fatalf("Settings: %v", err)
	}
	_ = pg.FinishScrape(ctx)
	ok, err := pg.TryStartScrape(ctx, time.Now(), StaleScrapeAfter)
	if err != nil || !ok {
		t.Fatalf("TryStartScrape: %v %v", ok, err)
	}
	if ok, _ := pg.TryStartScrape(ctx, time.Now(), StaleScrapeAfter); ok {
		t.Fatalf("expected second start to be refused")
	}
	if err := pg.FinishScrape(ctx); err != nil {
		t.Fatalf("FinishScrape: %v", err)
	}

	var userID int64
	email := "roundtrip-" + time.Now().Format("150405.000000") + "@example.com"
	if err := pool.QueryRow(ctx, `INSERT INTO users (email) VALUES ($1) RETURNING id`, email).Scan(&userID); err != nil {
		t.Fatalf("insert user: %v", err)
	}
	bundleID, err := pg.CreateBundle(ctx, bundleWith(userID, time.Now(), 4, 8))
	if err != nil {
		t.Fatalf("CreateBundle: %v", err)
	}
	b, err := pg.LatestPendingBundle(ctx, userID, 10)
	if err != nil || b == nil || b.ID != bundleID || len(b.Offers) != 2 || b.Offers[0].Scores.Overall != 8 {
		t.Fatalf("unexpected pending bundle %+v %v", b, err)
	}

	ids, err := pg.RecordDeliveries(ctx, []models.SentEmail{{
		UserID: userID, Recipient: email, Subject: "s", Body: "b", SentAt: time.Now(),
		Delivery: models.OfferDelivery{BundleID: bundleID},
	}})
	if err != nil || len(ids) != 1 {
		t.Fatalf("RecordDeliveries: %v", err)
	}
	if b, _ := pg.LatestPendingBundle(ctx, userID, 10); b != nil {
		t.Fatalf("expected bundle linked")
	}
}
