package cmd

import (
	"github.com/alecthomas/kong"
)

type CLI struct {
	Color      string `help:"Color output: auto, always, never." enum:"auto,always,never" default:"auto"`
	JSON       bool   `help:"JSON output to stdout; disables colors."`
	Plain      bool   `help:"TSV output to stdout; disables colors."`
	Verbose    bool   `help:"Enable debug logging."`
	LogJSON    bool   `name:"log-json" help:"Write logs as JSON lines instead of console text." default:"true" negatable:"" env:"GIGSCOPE_LOG_JSON"`
	ConfigFile string `name:"config" help:"Path to config.json." type:"path" env:"GIGSCOPE_CONFIG"`

	VersionFlag kong.VersionFlag `help:"Print version."`

	Version   VersionCmd   `cmd:"" help:"Print version."`
	Config    ConfigCmd    `cmd:"" help:"Manage configuration."`
	Scrape    ScrapeCmd    `cmd:"" help:"Scrape offers and store a pending bundle for every active subscriber."`
	Send      SendCmd      `cmd:"" help:"Email pending bundles, promotions and renewal reminders."`
	Run       RunCmd       `cmd:"" help:"Scrape, then send."`
	Preview   PreviewCmd   `cmd:"" help:"Scrape and score offers for ad-hoc keywords without storing anything."`
	Serve     ServeCmd     `cmd:"" help:"Run the scheduler."`
	Migrate   MigrateCmd   `cmd:"" help:"Apply the database schema."`
	Platforms PlatformsCmd `cmd:"" help:"Platform utilities."`
	Secrets   SecretsCmd   `cmd:"" help:"Encrypt API keys for the settings row."`
}

func NewCLI() *CLI {
	return &CLI{}
}
