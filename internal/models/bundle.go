package models

import "time"

// Bundle is the set of offers produced for one user by one scrape run.
// It is pending until SentEmailID is set; after that it is never modified.
type Bundle struct {
	ID             int64          `json:"id"`
	UserID         int64          `json:"user_id"`
	ScrapedAt      time.Time      `json:"scraped_at"`
	Keywords       Keywords       `json:"keywords"`
	ScrapeDuration time.Duration  `json:"scrape_duration"`
	SentEmailID    *int64         `json:"sent_email_id,omitempty"`
	Offers         []BundledOffer `json:"offers"`
}

func (b Bundle) Pending() bool {
	return b.SentEmailID == nil
}

// BundledOffer is a persisted, scored offer that belongs to a bundle.
type BundledOffer struct {
	ID       int64 `json:"id"`
	BundleID int64 `json:"bundle_id"`
	ScoredOffer
}

type PromoKind string

const (
	PromoNeverSubscribed PromoKind = "never_subscribed"
	PromoRenewal         PromoKind = "renewal"
)

// Delivery is what a sent email carried. It is either an OfferDelivery or a
// PromotionalNotice.
type Delivery interface {
	isDelivery()
}

type OfferDelivery struct {
	BundleID int64
}

type PromotionalNotice struct {
	Kind PromoKind
}

func (OfferDelivery) isDelivery()     {}
func (PromotionalNotice) isDelivery() {}

// SentEmail is an immutable record of one successful send.
type SentEmail struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"user_id"`
	Recipient  string    `json:"recipient"`
	Subject    string    `json:"subject"`
	Body       string    `json:"-"`
	SentAt     time.Time `json:"sent_at"`
	ProviderID string    `json:"provider_id,omitempty"`
	Delivery   Delivery  `json:"-"`
}

// BundleID returns the linked bundle for offer deliveries.
func (s SentEmail) BundleID() (int64, bool) {
	d, ok := s.Delivery.(OfferDelivery)
	if !ok {
		return 0, false
	}
	return d.BundleID, true
}

// PromoKind returns the notice kind for promotional deliveries.
func (s SentEmail) PromoKind() (PromoKind, bool) {
	d, ok := s.Delivery.(PromotionalNotice)
	if !ok {
		return "", false
	}
	return d.Kind, true
}
