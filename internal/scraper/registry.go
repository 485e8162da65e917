package scraper

import (
	"strings"
	"time"

	"github.com/jimezsa/gigscope/internal/cache"
	"github.com/jimezsa/gigscope/internal/network"
	"github.com/rs/zerolog"
)

const (
	PlatformUpwork      = "upwork"
	PlatformUseme       = "useme"
	PlatformJustJoinIT  = "justjoinit"
	PlatformRocketJobs  = "rocketjobs"
	PlatformFiverr      = "fiverr"
	PlatformContra      = "contra"
	PlatformWorkConnect = "workconnect"
)

var platformOrder = []string{
	PlatformUpwork,
	PlatformUseme,
	PlatformJustJoinIT,
	PlatformRocketJobs,
	PlatformFiverr,
	PlatformContra,
	PlatformWorkConnect,
}

var displayNames = map[string]string{
	PlatformUpwork:      "Upwork",
	PlatformUseme:       "Useme",
	PlatformJustJoinIT:  "JustJoinIT",
	PlatformRocketJobs:  "RocketJobs",
	PlatformFiverr:      "Fiverr",
	PlatformContra:      "Contra",
	PlatformWorkConnect: "WorkConnect",
}

// Order returns every known platform id in display order.
func Order() []string {
	return append([]string(nil), platformOrder...)
}

func DisplayName(platform string) string {
	if name, ok := displayNames[platform]; ok {
		return name
	}
	return platform
}

// RequiresCredentials reports whether real scraping of platform needs an
// API key.
func RequiresCredentials(platform string) bool {
	return platform == PlatformUpwork
}

type RegistryOptions struct {
	Rotator *network.Rotator
	Timeout time.Duration
	Retry   network.RetryPolicy
	Logger  zerolog.Logger

	// Client replaces the per-platform TLS clients when set.
	Client network.Doer

	// Pace is the delay between keyword sub-queries on one platform.
	Pace        time.Duration
	Listings    cache.Listings
	WorkConnect WorkConnectOptions
	Apify       ApifyOptions
}

func Registry(opts RegistryOptions) (map[string]Scraper, error) {
	makeClient := func() (network.Doer, error) {
		if opts.Client != nil {
			return opts.Client, nil
		}
		return network.NewClient(network.Options{Rotator: opts.Rotator, Timeout: opts.Timeout})
	}
	if opts.Retry.MaxRetries == 0 && opts.Retry.Initial == 0 {
		opts.Retry = network.DefaultRetryPolicy()
	}
	if opts.Listings == nil {
		opts.Listings = cache.NewMemory()
	}

	upwork, err := makeClient()
	if err != nil {
		return nil, err
	}
	useme, err := makeClient()
	if err != nil {
		return nil, err
	}
	justJoinIT, err := makeClient()
	if err != nil {
		return nil, err
	}
	rocketJobs, err := makeClient()
	if err != nil {
		return nil, err
	}
	workConnect, err := makeClient()
	if err != nil {
		return nil, err
	}

	fetch := func(client network.Doer, platform string) fetcher {
		return fetcher{
			client: client,
			retry:  opts.Retry,
			pace:   opts.Pace,
			logger: opts.Logger.With().Str("platform", platform).Logger(),
		}
	}

	return map[string]Scraper{
		PlatformUpwork:      NewUpwork(fetch(upwork, PlatformUpwork), opts.Apify),
		PlatformUseme:       NewUseme(fetch(useme, PlatformUseme)),
		PlatformJustJoinIT:  NewJustJoinIT(fetch(justJoinIT, PlatformJustJoinIT)),
		PlatformRocketJobs:  NewRocketJobs(fetch(rocketJobs, PlatformRocketJobs)),
		PlatformFiverr:      NewFiverr(),
		PlatformContra:      NewContra(),
		PlatformWorkConnect: NewWorkConnect(fetch(workConnect, PlatformWorkConnect), opts.Listings, opts.WorkConnect),
	}, nil
}

// NormalizePlatforms lowercases ids, drops blanks and duplicates and keeps
// the caller's order.
func NormalizePlatforms(platforms []string) []string {
	out := make([]string, 0, len(platforms))
	seen := map[string]struct{}{}
	for _, platform := range platforms {
		platform = strings.ToLower(strings.TrimSpace(platform))
		if platform == "" {
			continue
		}
		platform = strings.TrimPrefix(platform, "www.")
		if _, ok := seen[platform]; ok {
			continue
		}
		seen[platform] = struct{}{}
		out = append(out, platform)
	}
	return out
}
