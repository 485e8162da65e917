// Package mail renders notification emails and hands them to the mail
// provider.
package mail

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/resend/resend-go/v2"
)

var ErrNotConfigured = errors.New("mail provider not configured")

type Message struct {
	From    string
	To      string
	Subject string
	HTML    string
	// IdempotencyKey lets the provider drop a repeated send of the same email.
	IdempotencyKey string
}

// Sender delivers one message and returns the provider's message id.
type Sender interface {
	Send(ctx context.Context, msg Message) (string, error)
}

type ResendOptions struct {
	APIKey string
	// BaseURL overrides the API endpoint. It must end with a slash.
	BaseURL string
}

type Resend struct {
	client *resend.Client
}

func NewResend(opts ResendOptions) (*Resend, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, ErrNotConfigured
	}
	client := resend.NewClient(opts.APIKey)
	if opts.BaseURL != "" {
		base, err := url.Parse(opts.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("resend base url: %w", err)
		}
		client.BaseURL = base
	}
	return &Resend{client: client}, nil
}

func (r *Resend) Send(ctx context.Context, msg Message) (string, error) {
	req := &resend.SendEmailRequest{
		From:    msg.From,
		To:      []string{msg.To},
		Subject: msg.Subject,
		Html:    msg.HTML,
	}

	var (
		sent *resend.SendEmailResponse
		err  error
	)
	if msg.IdempotencyKey != "" {
		sent, err = r.client.Emails.SendWithOptions(ctx, req, &resend.SendEmailOptions{IdempotencyKey: msg.IdempotencyKey})
	} else {
		sent, err = r.client.Emails.SendWithContext(ctx, req)
	}
	if err != nil {
		return "", fmt.Errorf("resend: %w", err)
	}
	return sent.Id, nil
}
