package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jimezsa/gigscope/internal/models"
)

//go:embed schema.sql
var schema string

// NewPostgresPool creates and verifies a pgxpool connection pool.
func NewPostgresPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, errors.New("database url is required")
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}

	return pool, nil
}

// Migrate applies the embedded schema. Every statement is idempotent.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) Settings(ctx context.Context) (models.Settings, error) {
	var (
		s         models.Settings
		frequency string
	)
	err := p.pool.QueryRow(ctx,
		`SELECT enabled_platforms, email_frequency, email_daytime, email_max_offers,
		        platform_caps, min_overall_score,
		        mail_api_key, mail_sender_email, apify_api_key, openai_api_key,
		        scoring_prompt, scoring_model,
		        test_must_contain, test_may_contain, test_must_not_contain,
		        is_scrape_running, scrape_started_at
		 FROM settings WHERE id = 1`,
	).Scan(
		&s.EnabledPlatforms, &frequency, &s.EmailDaytime, &s.EmailMaxOffers,
		&s.PlatformCaps, &s.MinOverallScore,
		&s.MailAPIKey, &s.MailSenderEmail, &s.ApifyAPIKey, &s.OpenAIAPIKey,
		&s.ScoringPrompt, &s.ScoringModel,
		&s.TestKeywords.Must, &s.TestKeywords.May, &s.TestKeywords.MustNot,
		&s.IsScrapeRunning, &s.ScrapeStartedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Settings{}, ErrNoSettings
	}
	if err != nil {
		return models.Settings{}, fmt.Errorf("settings query: %w", err)
	}
	s.EmailFrequency = models.EmailFrequency(frequency)
	return s, nil
}

func (p *Postgres) TryStartScrape(ctx context.Context, now time.Time, staleAfter time.Duration) (bool, error) {
	tag, err := p.pool.Exec(ctx,
		`UPDATE settings
		 SET is_scrape_running = TRUE, scrape_started_at = $1
		 WHERE id = 1
		   AND (NOT is_scrape_running OR scrape_started_at IS NULL OR scrape_started_at < $2)`,
		now, now.Add(-staleAfter),
	)
	if err != nil {
		return false, fmt.Errorf("tryStartScrape: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (p *Postgres) FinishScrape(ctx context.Context) error {
	_, err := p.pool.Exec(ctx,
		`UPDATE settings SET is_scrape_running = FALSE, scrape_started_at = NULL WHERE id = 1`)
	if err != nil {
		return fmt.Errorf("finishScrape: %w", err)
	}
	return nil
}

const userColumns = `
	SELECT DISTINCT ON (u.id)
	       u.id, u.email, u.preferences_token, u.unsubscribe_token,
	       p.must_contain, p.may_contain, p.must_not_contain,
	       (SELECT max(s.expires_at) FROM subscriptions s WHERE lower(s.email) = lower(u.email))
	FROM users u
	JOIN preferences p ON p.user_id = u.id AND p.deleted_at IS NULL`

func scanUser(row pgx.Row) (models.User, error) {
	var (
		u  models.User
		kw models.Keywords
	)
	if err := row.Scan(
		&u.ID, &u.Email, &u.PreferencesToken, &u.UnsubscribeToken,
		&kw.Must, &kw.May, &kw.MustNot, &u.LastExpiry,
	); err != nil {
		return models.User{}, err
	}
	u.Keywords = &kw
	return u, nil
}

func (p *Postgres) Users(ctx context.Context) ([]models.User, error) {
	rows, err := p.pool.Query(ctx, userColumns+` ORDER BY u.id, p.created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("users query: %w", err)
	}
	defer rows.Close()

	users := make([]models.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("users scan: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// User returns one user. Keywords is nil when the user has no live
// preference row.
func (p *Postgres) User(ctx context.Context, id int64) (models.User, error) {
	u, err := scanUser(p.pool.QueryRow(ctx, userColumns+` WHERE u.id = $1 ORDER BY u.id, p.created_at DESC`, id))
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return models.User{}, fmt.Errorf("user query: %w", err)
	}

	err = p.pool.QueryRow(ctx,
		`SELECT u.id, u.email, u.preferences_token, u.unsubscribe_token,
		        (SELECT max(s.expires_at) FROM subscriptions s WHERE lower(s.email) = lower(u.email))
		 FROM users u WHERE u.id = $1`, id,
	).Scan(&u.ID, &u.Email, &u.PreferencesToken, &u.UnsubscribeToken, &u.LastExpiry)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.User{}, ErrNotFound
	}
	if err != nil {
		return models.User{}, fmt.Errorf("user query: %w", err)
	}
	return u, nil
}

func (p *Postgres) LatestPendingBundle(ctx context.Context, userID int64, maxOffers int) (*models.Bundle, error) {
	var (
		b          models.Bundle
		durationMS int64
	)
	err := p.pool.QueryRow(ctx,
		`SELECT id, user_id, scraped_at, must_contain, may_contain, must_not_contain, scrape_duration_ms
		 FROM offer_bundles
		 WHERE user_id = $1 AND sent_email_id IS NULL
		 ORDER BY scraped_at DESC, id DESC
		 LIMIT 1`, userID,
	).Scan(&b.ID, &b.UserID, &b.ScrapedAt, &b.Keywords.Must, &b.Keywords.May, &b.Keywords.MustNot, &durationMS)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("pending bundle query: %w", err)
	}
	b.ScrapeDuration = time.Duration(durationMS) * time.Millisecond

	if maxOffers <= 0 {
		maxOffers = models.DefaultEmailMaxOffers
	}
	rows, err := p.pool.Query(ctx,
		`SELECT id, title, description, url, platform, budget, client_name, client_location,
		        posted_at, tags, fit_score, attractiveness_score, overall_score
		 FROM offers
		 WHERE bundle_id = $1
		 ORDER BY overall_score DESC, position
		 LIMIT $2`, b.ID, maxOffers,
	)
	if err != nil {
		return nil, fmt.Errorf("bundle offers query: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			o        models.BundledOffer
			postedAt *time.Time
		)
		if err := rows.Scan(
			&o.ID, &o.Title, &o.Description, &o.URL, &o.Platform, &o.Budget, &o.ClientName, &o.ClientLocation,
			&postedAt, &o.Tags, &o.Scores.Fit, &o.Scores.Attractiveness, &o.Scores.Overall,
		); err != nil {
			return nil, fmt.Errorf("bundle offers scan: %w", err)
		}
		if postedAt != nil {
			o.PostedAt = *postedAt
		}
		o.BundleID = b.ID
		o.Selected = true
		b.Offers = append(b.Offers, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &b, nil
}

func (p *Postgres) CreateBundle(ctx context.Context, bundle models.Bundle) (int64, error) {
	var id int64
	err := p.runInTx(ctx, func(tx pgx.Tx) error {
		kw := bundle.Keywords
		if err := tx.QueryRow(ctx,
			`INSERT INTO offer_bundles (user_id, scraped_at, must_contain, may_contain, must_not_contain, scrape_duration_ms)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 RETURNING id`,
			bundle.UserID, bundle.ScrapedAt, nonNil(kw.Must), nonNil(kw.May), nonNil(kw.MustNot),
			bundle.ScrapeDuration.Milliseconds(),
		).Scan(&id); err != nil {
			return fmt.Errorf("insert bundle: %w", err)
		}

		if len(bundle.Offers) == 0 {
			return nil
		}
		rows := make([][]any, 0, len(bundle.Offers))
		for i, o := range bundle.Offers {
			var postedAt *time.Time
			if !o.PostedAt.IsZero() {
				t := o.PostedAt
				postedAt = &t
			}
			rows = append(rows, []any{
				id, i, o.Title, o.Description, o.URL, o.Platform, o.Budget, o.ClientName, o.ClientLocation,
				postedAt, nonNil(o.Tags), o.Scores.Fit, o.Scores.Attractiveness, o.Scores.Overall,
			})
		}
		_, err := tx.CopyFrom(ctx,
			pgx.Identifier{"offers"},
			[]string{
				"bundle_id", "position", "title", "description", "url", "platform", "budget", "client_name",
				"client_location", "posted_at", "tags", "fit_score", "attractiveness_score", "overall_score",
			},
			pgx.CopyFromRows(rows),
		)
		if err != nil {
			return fmt.Errorf("insert offers: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (p *Postgres) HasPromo(ctx context.Context, recipient string, kind models.PromoKind, since time.Time) (bool, error) {
	var exists bool
	err := p.pool.QueryRow(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM sent_emails
		   WHERE lower(recipient) = lower($1)
		     AND offer_bundle_id IS NULL
		     AND kind = $2
		     AND sent_at >= $3
		 )`, recipient, string(kind), since,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("hasPromo: %w", err)
	}
	return exists, nil
}

func (p *Postgres) RecordDeliveries(ctx context.Context, sent []models.SentEmail) ([]int64, error) {
	ids := make([]int64, len(sent))
	if len(sent) == 0 {
		return ids, nil
	}
	err := p.runInTx(ctx, func(tx pgx.Tx) error {
		for i, email := range sent {
			kind := "offers"
			var bundleID *int64
			if id, ok := email.BundleID(); ok {
				bundleID = &id
			} else if promo, ok := email.PromoKind(); ok {
				kind = string(promo)
			} else {
				return fmt.Errorf("sent email %d has no delivery", i)
			}

			if err := tx.QueryRow(ctx,
				`INSERT INTO sent_emails (user_id, recipient, subject, body, sent_at, kind, offer_bundle_id, provider_id)
				 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
				 RETURNING id`,
				email.UserID, email.Recipient, email.Subject, email.Body, email.SentAt, kind, bundleID, email.ProviderID,
			).Scan(&ids[i]); err != nil {
				return fmt.Errorf("insert sent email: %w", err)
			}
		}

		batch := &pgx.Batch{}
		for i, email := range sent {
			if bundleID, ok := email.BundleID(); ok {
				batch.Queue(
					`UPDATE offer_bundles SET sent_email_id = $1 WHERE id = $2 AND sent_email_id IS NULL`,
					ids[i], bundleID,
				)
			}
		}
		if batch.Len() == 0 {
			return nil
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("link bundles: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (p *Postgres) InsertScrapeLog(ctx context.Context, log models.ScrapeLog) (int64, error) {
	var id int64
	err := p.pool.QueryRow(ctx,
		`INSERT INTO scrape_logs (executed_at, duration_ms, total_users, successful, failed, total_offers, errors, batch_error)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id`,
		log.ExecutedAt, log.Duration.Milliseconds(), log.TotalUsers, log.Successful, log.Failed,
		log.TotalOffers, nonNilErrors(log.Errors), log.BatchError,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert scrape log: %w", err)
	}
	return id, nil
}

func (p *Postgres) InsertMailLog(ctx context.Context, log models.MailLog) (int64, error) {
	var id int64
	err := p.pool.QueryRow(ctx,
		`INSERT INTO mail_logs (executed_at, duration_ms, active, never_subscribed, lapsed, linkage_error, batch_error)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id`,
		log.ExecutedAt, log.Duration.Milliseconds(),
		cohortJSON(log.Active), cohortJSON(log.NeverSubscribed), cohortJSON(log.Lapsed),
		log.LinkageError, log.BatchError,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert mail log: %w", err)
	}
	return id, nil
}

func (p *Postgres) HasRunLogOn(ctx context.Context, kind RunKind, day time.Time) (bool, error) {
	table := "scrape_logs"
	if kind == RunMail {
		table = "mail_logs"
	}
	start, end := dayBounds(day)
	var exists bool
	err := p.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM `+table+` WHERE executed_at >= $1 AND executed_at < $2)`,
		start, end,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("hasRunLogOn: %w", err)
	}
	return exists, nil
}

func (p *Postgres) runInTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func nonNilErrors(errs models.RunErrors) models.RunErrors {
	if errs == nil {
		return models.RunErrors{}
	}
	return errs
}

func cohortJSON(stats models.CohortStats) models.CohortStats {
	stats.Errors = nonNilErrors(stats.Errors)
	return stats
}

// ActiveEmails lists emails whose subscription has not expired. It serves as
// the subscriber source when no external registry is configured.
func (p *Postgres) ActiveEmails(ctx context.Context) ([]string, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT DISTINCT lower(email) FROM subscriptions WHERE expires_at > now()`)
	if err != nil {
		return nil, fmt.Errorf("active emails query: %w", err)
	}
	defer rows.Close()

	emails := make([]string, 0)
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, fmt.Errorf("active emails scan: %w", err)
		}
		emails = append(emails, email)
	}
	return emails, rows.Err()
}
