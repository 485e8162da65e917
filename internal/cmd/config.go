package cmd

import (
	"fmt"
	"strings"

	"github.com/jimezsa/gigscope/internal/config"
	"github.com/jimezsa/gigscope/internal/export"
)

type ConfigCmd struct {
	Init InitConfigCmd `cmd:"" help:"Write default config and proxies files."`
	Path PathConfigCmd `cmd:"" help:"Print config directory."`
	Show ShowConfigCmd `cmd:"" help:"Print the effective configuration with secrets masked."`
}

type InitConfigCmd struct{}

type PathConfigCmd struct{}

type ShowConfigCmd struct{}

func (c *InitConfigCmd) Run(ctx *Context) error {
	paths, err := config.Init()
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		ctx.UI.Infof("Config already initialized at %s", ctx.ConfigDir)
		return nil
	}
	ctx.UI.Infof("Created: %s", strings.Join(paths, ", "))
	return nil
}

func (c *PathConfigCmd) Run(ctx *Context) error {
	_, err := fmt.Fprintln(ctx.Out, ctx.ConfigDir)
	return err
}

func (c *ShowConfigCmd) Run(ctx *Context) error {
	cfg := ctx.Config
	cfg.DatabaseURL = mask(cfg.DatabaseURL)
	cfg.RedisURL = mask(cfg.RedisURL)
	cfg.EncryptionKey = mask(cfg.EncryptionKey)
	cfg.SubscribersToken = mask(cfg.SubscribersToken)
	if ctx.JSONOutput {
		return export.WriteJSON(ctx.Out, cfg)
	}
	rows := [][]string{
		{"database_url", cfg.DatabaseURL},
		{"redis_url", cfg.RedisURL},
		{"encryption_key", cfg.EncryptionKey},
		{"subscribers_url", cfg.SubscribersURL},
		{"subscribers_token", cfg.SubscribersToken},
		{"base_url", cfg.BaseURL},
		{"renewal_url", cfg.RenewalURL},
		{"send_delay_ms", fmt.Sprint(cfg.SendDelayMS)},
		{"platform_concurrency", fmt.Sprint(cfg.PlatformConcurrency)},
		{"proxies", strings.Join(cfg.Proxies, ",")},
		{"http_timeout_seconds", fmt.Sprint(cfg.HTTPTimeoutSeconds)},
		{"workconnect_cache_hours", fmt.Sprint(cfg.WorkConnectCacheHours)},
		{"workconnect_max_offers", fmt.Sprint(cfg.WorkConnectMaxOffers)},
	}
	return writeTable(ctx, []string{"key", "value"}, rows)
}

// mask keeps the first four characters of a secret.
func mask(value string) string {
	if value == "" {
		return ""
	}
	if len(value) <= 4 {
		return "****"
	}
	return value[:4] + "****"
}
