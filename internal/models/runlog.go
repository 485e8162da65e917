package models

import "time"

// MaxRunErrors bounds every error list stored in a run log.
const MaxRunErrors = 50

// RunError is one per-item failure recorded by a batch.
type RunError struct {
	UserID int64  `json:"user_id"`
	Email  string `json:"email"`
	Error  string `json:"error"`
}

type RunErrors []RunError

// Add appends e unless the list is full. It reports whether e was kept.
func (r *RunErrors) Add(e RunError) bool {
	if len(*r) >= MaxRunErrors {
		return false
	}
	*r = append(*r, e)
	return true
}

type ScrapeLog struct {
	ID          int64         `json:"id"`
	ExecutedAt  time.Time     `json:"executed_at"`
	Duration    time.Duration `json:"duration"`
	TotalUsers  int           `json:"total_users"`
	Successful  int           `json:"successful"`
	Failed      int           `json:"failed"`
	TotalOffers int           `json:"total_offers"`
	Errors      RunErrors     `json:"errors"`
	BatchError  string        `json:"batch_error,omitempty"`
}

type CohortStats struct {
	Total   int       `json:"total"`
	Sent    int       `json:"sent"`
	Failed  int       `json:"failed"`
	Skipped int       `json:"skipped"`
	Errors  RunErrors `json:"errors"`
}

type MailLog struct {
	ID              int64         `json:"id"`
	ExecutedAt      time.Time     `json:"executed_at"`
	Duration        time.Duration `json:"duration"`
	Active          CohortStats   `json:"active"`
	NeverSubscribed CohortStats   `json:"never_subscribed"`
	Lapsed          CohortStats   `json:"lapsed"`
	LinkageError    string        `json:"linkage_error,omitempty"`
	BatchError      string        `json:"batch_error,omitempty"`
}

// TotalSent is the number of successful sends across cohorts.
func (l MailLog) TotalSent() int {
	return l.Active.Sent + l.NeverSubscribed.Sent + l.Lapsed.Sent
}
