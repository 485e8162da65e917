package cmd

import (
	"github.com/jimezsa/gigscope/internal/schedule"
	"github.com/jimezsa/gigscope/internal/store"
)

type ServeCmd struct {
	ServiceFlags
}

// Run starts the minute scheduler and blocks until SIGINT or SIGTERM.
func (s *ServeCmd) Run(ctx *Context) error {
	runCtx, cancel := signalContext()
	defer cancel()

	res, err := ctx.open(runCtx, s.ServiceFlags)
	if err != nil {
		return err
	}
	defer res.Close()

	scheduler := schedule.New(res.store, res.service, ctx.Logger.With().Str("component", "scheduler").Logger())
	if err := scheduler.Start(runCtx); err != nil {
		return err
	}
	<-runCtx.Done()
	scheduler.Stop()
	return nil
}

type MigrateCmd struct{}

func (m *MigrateCmd) Run(ctx *Context) error {
	runCtx, cancel := signalContext()
	defer cancel()

	if ctx.Config.DatabaseURL == "" {
		return errNoDatabase
	}
	pool, err := store.NewPostgresPool(runCtx, ctx.Config.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := store.Migrate(runCtx, pool); err != nil {
		return err
	}
	ctx.UI.Successf("Schema applied")
	return nil
}
