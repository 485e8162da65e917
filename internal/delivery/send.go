package delivery

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jimezsa/gigscope/internal/mail"
	"github.com/jimezsa/gigscope/internal/models"
	"github.com/jimezsa/gigscope/internal/subscribers"
	"github.com/rs/zerolog"
)

type Cohort string

const (
	CohortActive          Cohort = "active"
	CohortNeverSubscribed Cohort = "never_subscribed"
	CohortLapsed          Cohort = "lapsed"
)

type Status string

const (
	StatusSent    Status = "sent"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// Outcome is the result of one recipient in a send batch.
type Outcome struct {
	UserID   int64  `json:"user_id"`
	Email    string `json:"email"`
	Cohort   Cohort `json:"cohort,omitempty"`
	Status   Status `json:"status"`
	BundleID int64  `json:"bundle_id,omitempty"`
	Offers   int    `json:"offers,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

type SendBatchResult struct {
	RunID    string         `json:"run_id"`
	Log      models.MailLog `json:"log"`
	Outcomes []Outcome      `json:"outcomes"`
}

// LinkageError reports that emails went out but could not be recorded. The
// linked bundles stay pending.
type LinkageError struct {
	Sent int
	Err  error
}

func (e *LinkageError) Error() string {
	return fmt.Sprintf("failed to save email logs for %d sent emails: %v", e.Sent, e.Err)
}

func (e *LinkageError) Unwrap() error {
	return e.Err
}

// sendRun carries the state of one send batch.
type sendRun struct {
	settings models.Settings
	sender   mail.Sender
	from     string
	date     string
	logger   zerolog.Logger

	res  *SendBatchResult
	sent []models.SentEmail
}

// SendAll emails every cohort once: active users get their latest pending
// bundle, never-subscribed users one lifetime promotion and lapsed users one
// renewal reminder per expiry. Sends are sequential with a fixed delay and
// are recorded in a single transaction at the end. A mail log is always
// attempted.
func (s *Service) SendAll(ctx context.Context) (SendBatchResult, error) {
	start := s.now()
	res := SendBatchResult{RunID: uuid.NewString(), Outcomes: []Outcome{}}
	res.Log = models.MailLog{ExecutedAt: start}
	logger := s.logger.With().Str("run_id", res.RunID).Str("batch", "send").Logger()

	err := s.sendBatch(ctx, &res, logger)
	res.Log.Duration = s.now().Sub(start)
	var linkErr *LinkageError
	switch {
	case errors.As(err, &linkErr):
		res.Log.LinkageError = linkErr.Error()
		logger.Error().Err(linkErr.Err).Int("sent", linkErr.Sent).Msg("failed to link sent emails")
	case err != nil:
		res.Log.BatchError = err.Error()
		logger.Error().Err(err).Msg("send batch failed")
	}
	for _, c := range []*models.CohortStats{&res.Log.Active, &res.Log.NeverSubscribed, &res.Log.Lapsed} {
		if c.Errors == nil {
			c.Errors = models.RunErrors{}
		}
	}
	if id, logErr := s.store.InsertMailLog(context.WithoutCancel(ctx), res.Log); logErr != nil {
		logger.Error().Err(logErr).Msg("failed to save mail log")
	} else {
		res.Log.ID = id
	}

	logger.Info().
		Int("sent", res.Log.TotalSent()).
		Int("active", res.Log.Active.Total).
		Int("never_subscribed", res.Log.NeverSubscribed.Total).
		Int("lapsed", res.Log.Lapsed.Total).
		Dur("duration", res.Log.Duration).
		Msg("send batch finished")
	return res, err
}

func (s *Service) sendBatch(ctx context.Context, res *SendBatchResult, logger zerolog.Logger) error {
	settings, err := s.store.Settings(ctx)
	if err != nil {
		return err
	}
	sender, err := s.mailer(settings)
	if err != nil {
		return err
	}
	snapshot, err := subscribers.Fetch(ctx, s.subscribers)
	if err != nil {
		return err
	}
	users, err := s.store.Users(ctx)
	if err != nil {
		return fmt.Errorf("load users: %w", err)
	}

	now := s.now()
	var active, never, lapsed, unexpired []models.User
	for _, user := range users {
		switch {
		case snapshot.Contains(user.Email):
			active = append(active, user)
		case user.Lapsed(now):
			lapsed = append(lapsed, user)
		case user.EverSubscribed():
			// Missing from the registry while the recorded subscription still
			// runs. Neither cohort applies until it expires.
			unexpired = append(unexpired, user)
		default:
			never = append(never, user)
		}
	}
	res.Log.Active.Total = len(active)
	res.Log.NeverSubscribed.Total = len(never)
	res.Log.Lapsed.Total = len(lapsed)

	run := &sendRun{
		settings: settings,
		sender:   sender,
		from:     settings.MailSenderEmail,
		date:     now.Format(time.DateOnly),
		logger:   logger,
		res:      res,
	}
	cohorts := []struct {
		cohort Cohort
		users  []models.User
		stats  *models.CohortStats
		send   func(context.Context, *sendRun, models.User) (Outcome, *models.SentEmail, error)
	}{
		{CohortActive, active, &res.Log.Active, s.sendOffers},
		{CohortNeverSubscribed, never, &res.Log.NeverSubscribed, s.sendNeverSubscribed},
		{CohortLapsed, lapsed, &res.Log.Lapsed, s.sendRenewal},
	}

	var interrupted error
	for _, c := range cohorts {
		for _, user := range c.users {
			if interrupted = ctx.Err(); interrupted != nil {
				break
			}
			var (
				outcome Outcome
				email   *models.SentEmail
			)
			err := guard(func() error {
				var err error
				outcome, email, err = c.send(ctx, run, user)
				return err
			})
			outcome.UserID, outcome.Email, outcome.Cohort = user.ID, user.Email, c.cohort

			switch {
			case err != nil:
				outcome.Status = StatusFailed
				outcome.Reason = err.Error()
				c.stats.Failed++
				c.stats.Errors.Add(models.RunError{UserID: user.ID, Email: user.Email, Error: err.Error()})
				logger.Warn().Err(err).Int64("user_id", user.ID).Str("cohort", string(c.cohort)).Msg("send failed")
			case email == nil:
				outcome.Status = StatusSkipped
				c.stats.Skipped++
			default:
				outcome.Status = StatusSent
				c.stats.Sent++
				run.sent = append(run.sent, *email)
			}
			res.Outcomes = append(res.Outcomes, outcome)

			if outcome.Status != StatusSkipped {
				if interrupted = sleepCtx(ctx, s.sendDelay); interrupted != nil {
					break
				}
			}
		}
		if interrupted != nil {
			break
		}
	}
	for _, user := range unexpired {
		res.Outcomes = append(res.Outcomes, Outcome{
			UserID: user.ID,
			Email:  user.Email,
			Status: StatusSkipped,
			Reason: "not in subscriber registry, subscription not yet expired",
		})
		logger.Debug().Int64("user_id", user.ID).Time("expires_at", *user.LastExpiry).Msg("skipping unexpired subscription")
	}

	if len(run.sent) > 0 {
		if _, err := s.store.RecordDeliveries(context.WithoutCancel(ctx), run.sent); err != nil {
			return &LinkageError{Sent: len(run.sent), Err: err}
		}
	}
	return interrupted
}

// mailer builds the sender from settings. Both the API key and the sender
// address are required.
func (s *Service) mailer(settings models.Settings) (mail.Sender, error) {
	if strings.TrimSpace(settings.MailAPIKey) == "" || strings.TrimSpace(settings.MailSenderEmail) == "" {
		return nil, ErrMailNotConfigured
	}
	key, err := s.reveal(settings.MailAPIKey)
	if err != nil {
		return nil, fmt.Errorf("%w: mail api key: %v", ErrMailNotConfigured, err)
	}
	sender, err := s.newSender(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMailNotConfigured, err)
	}
	return sender, nil
}

func (s *Service) links(user models.User) mail.Links {
	return mail.LinksFor(s.baseURL, s.renewalURL, user)
}

// sendOffers emails the latest pending bundle. A user without one is skipped.
func (s *Service) sendOffers(ctx context.Context, run *sendRun, user models.User) (Outcome, *models.SentEmail, error) {
	bundle, err := s.store.LatestPendingBundle(ctx, user.ID, run.settings.MaxOffers())
	if err != nil {
		return Outcome{}, nil, err
	}
	if bundle == nil || len(bundle.Offers) == 0 {
		return Outcome{Reason: "no unsent offers available"}, nil, nil
	}

	rendered, err := mail.OffersEmail(bundle.Offers, s.links(user))
	if err != nil {
		return Outcome{BundleID: bundle.ID}, nil, err
	}
	email, err := s.deliver(ctx, run, user, rendered, fmt.Sprintf("bundle-%d", bundle.ID), models.OfferDelivery{BundleID: bundle.ID})
	return Outcome{BundleID: bundle.ID, Offers: len(bundle.Offers)}, email, err
}

// sendNeverSubscribed sends the one lifetime promotion.
func (s *Service) sendNeverSubscribed(ctx context.Context, run *sendRun, user models.User) (Outcome, *models.SentEmail, error) {
	done, err := s.store.HasPromo(ctx, user.Email, models.PromoNeverSubscribed, time.Time{})
	if err != nil {
		return Outcome{}, nil, err
	}
	if done {
		return Outcome{Reason: "promotion already sent"}, nil, nil
	}

	rendered, err := mail.NeverSubscribedEmail(run.settings.MaxOffers(), s.links(user))
	if err != nil {
		return Outcome{}, nil, err
	}
	email, err := s.deliver(ctx, run, user, rendered, promoKey(models.PromoNeverSubscribed, user.ID, run.date), models.PromotionalNotice{Kind: models.PromoNeverSubscribed})
	return Outcome{Offers: run.settings.MaxOffers()}, email, err
}

// sendRenewal reminds a lapsed user once per expiry. A reminder sent before
// the latest expiry does not count.
func (s *Service) sendRenewal(ctx context.Context, run *sendRun, user models.User) (Outcome, *models.SentEmail, error) {
	since := s.now()
	if user.LastExpiry != nil && user.LastExpiry.Before(since) {
		since = *user.LastExpiry
	}
	done, err := s.store.HasPromo(ctx, user.Email, models.PromoRenewal, since)
	if err != nil {
		return Outcome{}, nil, err
	}
	if done {
		return Outcome{Reason: "renewal reminder already sent"}, nil, nil
	}

	rendered, err := mail.RenewalEmail(s.links(user))
	if err != nil {
		return Outcome{}, nil, err
	}
	email, err := s.deliver(ctx, run, user, rendered, promoKey(models.PromoRenewal, user.ID, run.date), models.PromotionalNotice{Kind: models.PromoRenewal})
	return Outcome{}, email, err
}

func (s *Service) deliver(ctx context.Context, run *sendRun, user models.User, rendered mail.Rendered, key string, delivery models.Delivery) (*models.SentEmail, error) {
	id, err := run.sender.Send(ctx, mail.Message{
		From:           run.from,
		To:             user.Email,
		Subject:        rendered.Subject,
		HTML:           rendered.HTML,
		IdempotencyKey: key,
	})
	if err != nil {
		return nil, err
	}
	run.logger.Debug().Int64("user_id", user.ID).Str("provider_id", id).Msg("email sent")
	return &models.SentEmail{
		UserID:     user.ID,
		Recipient:  user.Email,
		Subject:    rendered.Subject,
		Body:       rendered.HTML,
		SentAt:     s.now(),
		ProviderID: id,
		Delivery:   delivery,
	}, nil
}

func promoKey(kind models.PromoKind, userID int64, date string) string {
	return fmt.Sprintf("promo-%s-%d-%s", kind, userID, date)
}

// SendTestEmail sends the gateway check email to one address. Nothing is
// recorded.
func (s *Service) SendTestEmail(ctx context.Context, to string) (string, error) {
	settings, err := s.store.Settings(ctx)
	if err != nil {
		return "", err
	}
	sender, err := s.mailer(settings)
	if err != nil {
		return "", err
	}
	rendered, err := mail.TestEmail()
	if err != nil {
		return "", err
	}
	return sender.Send(ctx, mail.Message{
		From:    settings.MailSenderEmail,
		To:      strings.TrimSpace(to),
		Subject: rendered.Subject,
		HTML:    rendered.HTML,
	})
}
