package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/jimezsa/gigscope/internal/cmd"
	"github.com/jimezsa/gigscope/internal/config"
	"github.com/jimezsa/gigscope/internal/ui"
	"github.com/rs/zerolog"
)

var (
	version = "dev"
	commit  = ""
	date    = ""
)

func main() {
	// The dotenv file is read before parsing so its values reach flag env
	// defaults such as GIGSCOPE_CONFIG and GIGSCOPE_PROXIES.
	envErr := config.LoadEnvFile(os.Getenv("GIGSCOPE_ENV_FILE"))

	cli := cmd.NewCLI()
	applyEnvDefaults(cli)
	versionString := buildVersion()

	parser, err := kong.New(cli,
		kong.Name("gigscope"),
		kong.Description("Freelance offer aggregator: scrape, score and email offers to subscribers."),
		kong.ConfigureHelp(kong.HelpOptions{Compact: true}),
		kong.Vars{"version": versionString},
	)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	kctx, err := parser.Parse(os.Args[1:])
	if err != nil {
		fallbackUI := ui.New(os.Stdout, os.Stderr, ui.NormalizeColorMode(os.Getenv("GIGSCOPE_COLOR")), false)
		fallbackUI.Errorf("%v", err)
		os.Exit(2)
	}

	colorMode := ui.NormalizeColorMode(cli.Color)
	userInterface := ui.New(os.Stdout, os.Stderr, colorMode, cli.JSON || cli.Plain)
	if envErr != nil {
		userInterface.Warnf("%v", envErr)
	}

	cfg, err := config.Load(cli.ConfigFile)
	if err != nil {
		userInterface.Errorf("config: %v", err)
		os.Exit(1)
	}
	configDir, err := config.ConfigDir()
	if err != nil {
		userInterface.Errorf("config: %v", err)
		os.Exit(1)
	}

	logger := newLogger(cli).With().Str("command", kctx.Command()).Logger()
	runCtx := &cmd.Context{
		Out:        os.Stdout,
		Err:        os.Stderr,
		UI:         userInterface,
		Config:     cfg,
		ConfigDir:  configDir,
		Logger:     logger,
		Verbose:    cli.Verbose,
		JSONOutput: cli.JSON,
		PlainText:  cli.Plain,
		Version:    versionString,
		ColorMode:  colorMode,
	}

	if err := kctx.Run(runCtx); err != nil {
		logger.Debug().Err(err).Msg("command failed")
		userInterface.Errorf("%v", err)
		os.Exit(1)
	}
}

// newLogger writes JSON lines unless --no-log-json is set.
func newLogger(cli *cmd.CLI) zerolog.Logger {
	level := zerolog.InfoLevel
	if cli.Verbose {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)

	if cli.LogJSON {
		return zerolog.New(os.Stderr).With().Timestamp().Str("version", version).Logger()
	}
	writer := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		NoColor:    cli.JSON || cli.Plain || cli.Color == "never",
		TimeFormat: "15:04:05",
	}
	return zerolog.New(writer).With().Timestamp().Logger()
}

func buildVersion() string {
	if commit == "" && date == "" {
		return version
	}
	if commit == "" {
		return fmt.Sprintf("%s (%s)", version, date)
	}
	if date == "" {
		return fmt.Sprintf("%s (%s)", version, commit)
	}
	return fmt.Sprintf("%s (%s, %s)", version, commit, date)
}

func applyEnvDefaults(cli *cmd.CLI) {
	if envBool("GIGSCOPE_JSON") {
		cli.JSON = true
	}
	if envBool("GIGSCOPE_PLAIN") {
		cli.Plain = true
	}
	if envBool("GIGSCOPE_VERBOSE") {
		cli.Verbose = true
	}
	if value := os.Getenv("GIGSCOPE_COLOR"); value != "" {
		cli.Color = value
	}
}

func envBool(key string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
