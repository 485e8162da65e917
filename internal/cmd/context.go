package cmd

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jimezsa/gigscope/internal/cache"
	"github.com/jimezsa/gigscope/internal/config"
	"github.com/jimezsa/gigscope/internal/delivery"
	"github.com/jimezsa/gigscope/internal/network"
	"github.com/jimezsa/gigscope/internal/scraper"
	"github.com/jimezsa/gigscope/internal/secrets"
	"github.com/jimezsa/gigscope/internal/store"
	"github.com/jimezsa/gigscope/internal/subscribers"
	"github.com/jimezsa/gigscope/internal/ui"
	"github.com/rs/zerolog"
)

var errNoDatabase = errors.New("database_url is not configured (config file or GIGSCOPE_DATABASE_URL)")

type Context struct {
	Out        io.Writer
	Err        io.Writer
	UI         *ui.UI
	Config     config.Config
	ConfigDir  string
	Logger     zerolog.Logger
	Verbose    bool
	JSONOutput bool
	PlainText  bool
	Version    string
	ColorMode  ui.ColorMode
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// resources holds the process-wide collaborators of a batch command.
type resources struct {
	store   *store.Postgres
	service *delivery.Service
	closers []func()
}

func (r *resources) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
}

type ServiceFlags struct {
	Mock    bool   `help:"Use the offline scrapers and mock scoring."`
	Proxies string `help:"Comma-separated proxy URLs." env:"GIGSCOPE_PROXIES"`
}

// openStore connects to Postgres. The caller closes the pool.
func (c *Context) openStore(ctx context.Context) (*store.Postgres, func(), error) {
	if strings.TrimSpace(c.Config.DatabaseURL) == "" {
		return nil, nil, errNoDatabase
	}
	pool, err := store.NewPostgresPool(ctx, c.Config.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	return store.NewPostgres(pool), pool.Close, nil
}

// listings uses Redis when configured and an in-process cache otherwise.
func (c *Context) listings(ctx context.Context) (cache.Listings, func(), error) {
	if strings.TrimSpace(c.Config.RedisURL) == "" {
		return cache.NewMemory(), func() {}, nil
	}
	rdb, err := cache.NewRedisClient(ctx, c.Config.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	return cache.NewRedis(rdb), func() { _ = rdb.Close() }, nil
}

func (c *Context) rotator(proxiesFlag string) (*network.Rotator, error) {
	proxies, err := config.LoadProxies(proxiesFlag, c.Config)
	if err != nil {
		return nil, err
	}
	if len(proxies) == 0 {
		return nil, nil
	}
	return network.NewRotator(proxies, 10*time.Minute)
}

func (c *Context) registry(proxiesFlag string, listings cache.Listings) (map[string]scraper.Scraper, error) {
	rotator, err := c.rotator(proxiesFlag)
	if err != nil {
		return nil, err
	}
	return scraper.Registry(scraper.RegistryOptions{
		Rotator:  rotator,
		Timeout:  c.Config.HTTPTimeout(),
		Logger:   c.Logger,
		Pace:     time.Second,
		Listings: listings,
		WorkConnect: scraper.WorkConnectOptions{
			CacheTTL:  c.Config.WorkConnectCacheTTL(),
			MaxOffers: c.Config.WorkConnectMaxOffers,
		},
	})
}

// secretsBox returns nil when no encryption key is configured, meaning API
// keys are stored in plain text.
func (c *Context) secretsBox() (*secrets.Box, error) {
	if strings.TrimSpace(c.Config.EncryptionKey) == "" {
		return nil, nil
	}
	return secrets.New(c.Config.EncryptionKey)
}

// subscriberSource prefers the HTTP registry and falls back to the
// subscriptions table.
func (c *Context) subscriberSource(pg *store.Postgres) (subscribers.Source, error) {
	if strings.TrimSpace(c.Config.SubscribersURL) == "" {
		return pg, nil
	}
	client, err := network.NewClient(network.Options{Timeout: c.Config.HTTPTimeout()})
	if err != nil {
		return nil, err
	}
	return &subscribers.HTTP{
		URL:    c.Config.SubscribersURL,
		Token:  c.Config.SubscribersToken,
		Client: client,
		Retry:  network.DefaultRetryPolicy(),
	}, nil
}

// open wires the store, cache, scrapers and delivery service.
func (c *Context) open(ctx context.Context, flags ServiceFlags) (*resources, error) {
	res := &resources{}
	fail := func(err error) (*resources, error) {
		res.Close()
		return nil, err
	}

	pg, closePool, err := c.openStore(ctx)
	if err != nil {
		return fail(err)
	}
	res.store = pg
	res.closers = append(res.closers, closePool)

	listings, closeCache, err := c.listings(ctx)
	if err != nil {
		return fail(err)
	}
	res.closers = append(res.closers, closeCache)

	scrapers, err := c.registry(flags.Proxies, listings)
	if err != nil {
		return fail(err)
	}
	box, err := c.secretsBox()
	if err != nil {
		return fail(err)
	}
	source, err := c.subscriberSource(pg)
	if err != nil {
		return fail(err)
	}

	res.service = delivery.New(delivery.Options{
		Store:       pg,
		Subscribers: source,
		Scrapers:    scrapers,
		Secrets:     box,
		BaseURL:     c.Config.BaseURL,
		RenewalURL:  c.Config.RenewalURL,
		SendDelay:   c.Config.SendDelay(),
		Concurrency: c.Config.PlatformConcurrency,
		Mock:        flags.Mock,
		Logger:      c.Logger,
	})
	return res, nil
}
