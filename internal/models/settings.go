package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type EmailFrequency string

const (
	FrequencyDaily      EmailFrequency = "daily"
	FrequencyEvery2Days EmailFrequency = "every_2_days"
	FrequencyWeekly     EmailFrequency = "weekly"
	FrequencyDisabled   EmailFrequency = "disabled"
)

const (
	DefaultEmailMaxOffers = 10
	DefaultEmailDaytime   = "09:00"
	DefaultScoringModel   = "gpt-4.1-mini"
)

// Settings is the singleton runtime configuration row. API keys are stored
// encrypted and decrypted by the caller when needed.
type Settings struct {
	EnabledPlatforms []string       `json:"enabled_platforms"`
	EmailFrequency   EmailFrequency `json:"email_frequency"`
	EmailDaytime     string         `json:"email_daytime"`
	EmailMaxOffers   int            `json:"email_max_offers"`
	PlatformCaps     map[string]int `json:"platform_caps,omitempty"`
	MinOverallScore  float64        `json:"min_overall_score"`

	MailAPIKey      string `json:"-"`
	MailSenderEmail string `json:"mail_sender_email"`
	ApifyAPIKey     string `json:"-"`
	OpenAIAPIKey    string `json:"-"`
	ScoringPrompt   string `json:"scoring_prompt,omitempty"`
	ScoringModel    string `json:"scoring_model,omitempty"`

	TestKeywords Keywords `json:"test_keywords"`

	IsScrapeRunning bool       `json:"is_scrape_running"`
	ScrapeStartedAt *time.Time `json:"scrape_started_at,omitempty"`
}

// MaxOffers returns the per-email offer cap with the default applied.
func (s Settings) MaxOffers() int {
	if s.EmailMaxOffers > 0 {
		return s.EmailMaxOffers
	}
	return DefaultEmailMaxOffers
}

// CapFor returns the configured per-platform cap or fallback.
func (s Settings) CapFor(platform string, fallback int) int {
	if n, ok := s.PlatformCaps[platform]; ok && n > 0 {
		return n
	}
	return fallback
}

func (s Settings) Model() string {
	if strings.TrimSpace(s.ScoringModel) != "" {
		return s.ScoringModel
	}
	return DefaultScoringModel
}

// SendClock parses EmailDaytime as HH:MM, falling back to the default.
func (s Settings) SendClock() (hour int, minute int) {
	h, m, err := ParseDaytime(s.EmailDaytime)
	if err != nil {
		h, m, _ = ParseDaytime(DefaultEmailDaytime)
	}
	return h, m
}

func ParseDaytime(value string) (int, int, error) {
	parts := strings.Split(strings.TrimSpace(value), ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid daytime %q", value)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", value)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", value)
	}
	return h, m, nil
}

// User is a registered recipient. Keywords is nil when the user has no
// live preference row.
type User struct {
	ID               int64      `json:"id"`
	Email            string     `json:"email"`
	PreferencesToken string     `json:"-"`
	UnsubscribeToken string     `json:"-"`
	Keywords         *Keywords  `json:"keywords,omitempty"`
	LastExpiry       *time.Time `json:"last_expiry,omitempty"`
}

// EverSubscribed reports whether a subscription history row exists.
func (u User) EverSubscribed() bool {
	return u.LastExpiry != nil
}

// Lapsed reports whether the latest subscription ended at or before now.
func (u User) Lapsed(now time.Time) bool {
	return u.LastExpiry != nil && !u.LastExpiry.After(now)
}
