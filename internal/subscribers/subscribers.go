// Package subscribers reads the set of currently subscribed emails.
package subscribers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/jimezsa/gigscope/internal/network"
)

// Source returns the emails with a current subscription.
type Source interface {
	ActiveEmails(ctx context.Context) ([]string, error)
}

// Snapshot is the subscriber set of one batch. It is never reused across
// batches.
type Snapshot struct {
	emails map[string]struct{}
}

func NewSnapshot(emails []string) Snapshot {
	set := make(map[string]struct{}, len(emails))
	for _, email := range emails {
		email = normalize(email)
		if email == "" {
			continue
		}
		set[email] = struct{}{}
	}
	return Snapshot{emails: set}
}

// Fetch builds a fresh snapshot from src.
func Fetch(ctx context.Context, src Source) (Snapshot, error) {
	if src == nil {
		return Snapshot{}, errors.New("subscriber source not configured")
	}
	emails, err := src.ActiveEmails(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("fetch subscribers: %w", err)
	}
	return NewSnapshot(emails), nil
}

// Contains reports whether email is subscribed, ignoring case.
func (s Snapshot) Contains(email string) bool {
	_, ok := s.emails[normalize(email)]
	return ok
}

func (s Snapshot) Len() int {
	return len(s.emails)
}

func normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// HTTP reads the registry from a JSON endpoint answering either a bare array
// of emails or an object with an "emails" array.
type HTTP struct {
	URL   string
	Token string

	Client network.Doer
	Retry  network.RetryPolicy
}

func (h *HTTP) ActiveEmails(ctx context.Context) ([]string, error) {
	if strings.TrimSpace(h.URL) == "" {
		return nil, errors.New("subscribers url is required")
	}
	policy := h.Retry
	if policy.MaxRetries == 0 && policy.Initial == 0 {
		policy = network.DefaultRetryPolicy()
	}

	headers := map[string]string{"accept": "application/json"}
	if h.Token != "" {
		headers["authorization"] = "Bearer " + h.Token
	}
	resp, err := network.Get(ctx, h.Client, policy, h.URL, headers)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("read subscribers: %w", err)
	}
	return decodeEmails(body)
}

func decodeEmails(body []byte) ([]string, error) {
	var list []string
	if err := json.Unmarshal(body, &list); err == nil {
		return list, nil
	}
	var wrapped struct {
		Emails []string `json:"emails"`
	}
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, fmt.Errorf("decode subscribers: %w", err)
	}
	if wrapped.Emails == nil {
		return nil, errors.New("decode subscribers: missing emails field")
	}
	return wrapped.Emails, nil
}

// Static is a fixed subscriber list.
type Static []string

func (s Static) ActiveEmails(context.Context) ([]string, error) {
	return append([]string(nil), s...), nil
}
