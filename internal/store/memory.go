package store

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jimezsa/gigscope/internal/models"
)

// Memory is an in-process Store. It backs tests and dry runs.
type Memory struct {
	mu sync.Mutex

	settings    *models.Settings
	users       []models.User
	bundles     []models.Bundle
	sent        []models.SentEmail
	scrapeLogs  []models.ScrapeLog
	mailLogs    []models.MailLog
	nextID      int64
	failLinking error
}

func NewMemory(settings *models.Settings, users ...models.User) *Memory {
	return &Memory{settings: settings, users: users}
}

// FailLinking makes RecordDeliveries fail with err without writing anything.
func (m *Memory) FailLinking(err error) {
	m.mu.Lock()
	m.failLinking = err
	m.mu.Unlock()
}

func (m *Memory) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *Memory) Settings(context.Context) (models.Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.settings == nil {
		return models.Settings{}, ErrNoSettings
	}
	s := *m.settings
	return s, nil
}

// UpdateSettings replaces the settings row.
func (m *Memory) UpdateSettings(s models.Settings) {
	m.mu.Lock()
	m.settings = &s
	m.mu.Unlock()
}

func (m *Memory) TryStartScrape(_ context.Context, now time.Time, staleAfter time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.settings == nil {
		return false, ErrNoSettings
	}
	s := m.settings
	if s.IsScrapeRunning && s.ScrapeStartedAt != nil && !s.ScrapeStartedAt.Before(now.Add(-staleAfter)) {
		return false, nil
	}
	started := now
	s.IsScrapeRunning = true
	s.ScrapeStartedAt = &started
	return true, nil
}

func (m *Memory) FinishScrape(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.settings != nil {
		m.settings.IsScrapeRunning = false
		m.settings.ScrapeStartedAt = nil
	}
	return nil
}

func (m *Memory) Users(context.Context) ([]models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.User, 0, len(m.users))
	for _, u := range m.users {
		if u.Keywords != nil {
			out = append(out, u)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) User(_ context.Context, id int64) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.ID == id {
			return u, nil
		}
	}
	return models.User{}, ErrNotFound
}

func (m *Memory) LatestPendingBundle(_ context.Context, userID int64, maxOffers int) (*models.Bundle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *models.Bundle
	for i := range m.bundles {
		b := &m.bundles[i]
		if b.UserID != userID || !b.Pending() {
			continue
		}
		if latest == nil || b.ScrapedAt.After(latest.ScrapedAt) ||
			(b.ScrapedAt.Equal(latest.ScrapedAt) && b.ID > latest.ID) {
			latest = b
		}
	}
	if latest == nil {
		return nil, nil
	}

	out := *latest
	out.Offers = append([]models.BundledOffer(nil), latest.Offers...)
	sort.SliceStable(out.Offers, func(i, j int) bool {
		return out.Offers[i].Scores.Overall > out.Offers[j].Scores.Overall
	})
	if maxOffers <= 0 {
		maxOffers = models.DefaultEmailMaxOffers
	}
	if len(out.Offers) > maxOffers {
		out.Offers = out.Offers[:maxOffers]
	}
	return &out, nil
}

func (m *Memory) CreateBundle(_ context.Context, bundle models.Bundle) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	bundle.ID = m.id()
	bundle.SentEmailID = nil
	bundle.Keywords = bundle.Keywords.Clone()
	offers := make([]models.BundledOffer, len(bundle.Offers))
	for i, o := range bundle.Offers {
		o.ID = m.id()
		o.BundleID = bundle.ID
		offers[i] = o
	}
	bundle.Offers = offers
	m.bundles = append(m.bundles, bundle)
	return bundle.ID, nil
}

// Bundles returns a copy of every stored bundle.
func (m *Memory) Bundles() []models.Bundle {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Bundle(nil), m.bundles...)
}

func (m *Memory) HasPromo(_ context.Context, recipient string, kind models.PromoKind, since time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, email := range m.sent {
		got, ok := email.PromoKind()
		if !ok || got != kind || !strings.EqualFold(email.Recipient, recipient) {
			continue
		}
		if !email.SentAt.Before(since) {
			return true, nil
		}
	}
	return false, nil
}

func (m *Memory) RecordDeliveries(_ context.Context, sent []models.SentEmail) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failLinking != nil {
		return nil, m.failLinking
	}
	for _, email := range sent {
		if _, ok := email.BundleID(); ok {
			continue
		}
		if _, ok := email.PromoKind(); !ok {
			return nil, errors.New("sent email has no delivery")
		}
	}

	ids := make([]int64, len(sent))
	for i, email := range sent {
		email.ID = m.id()
		ids[i] = email.ID
		m.sent = append(m.sent, email)
		bundleID, ok := email.BundleID()
		if !ok {
			continue
		}
		for j := range m.bundles {
			if m.bundles[j].ID == bundleID && m.bundles[j].SentEmailID == nil {
				id := email.ID
				m.bundles[j].SentEmailID = &id
			}
		}
	}
	return ids, nil
}

// SentEmails returns a copy of every recorded send.
func (m *Memory) SentEmails() []models.SentEmail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.SentEmail(nil), m.sent...)
}

func (m *Memory) InsertScrapeLog(_ context.Context, log models.ScrapeLog) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	log.ID = m.id()
	m.scrapeLogs = append(m.scrapeLogs, log)
	return log.ID, nil
}

func (m *Memory) InsertMailLog(_ context.Context, log models.MailLog) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	log.ID = m.id()
	m.mailLogs = append(m.mailLogs, log)
	return log.ID, nil
}

func (m *Memory) ScrapeLogs() []models.ScrapeLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.ScrapeLog(nil), m.scrapeLogs...)
}

func (m *Memory) MailLogs() []models.MailLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.MailLog(nil), m.mailLogs...)
}

func (m *Memory) HasRunLogOn(_ context.Context, kind RunKind, day time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	start, end := dayBounds(day)
	in := func(t time.Time) bool { return !t.Before(start) && t.Before(end) }
	if kind == RunMail {
		for _, log := range m.mailLogs {
			if in(log.ExecutedAt) {
				return true, nil
			}
		}
		return false, nil
	}
	for _, log := range m.scrapeLogs {
		if in(log.ExecutedAt) {
			return true, nil
		}
	}
	return false, nil
}
