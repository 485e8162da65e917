package cmd

import (
	"fmt"

	"github.com/jimezsa/gigscope/internal/delivery"
	"github.com/jimezsa/gigscope/internal/export"
)

type ScrapeCmd struct {
	User int64 `help:"Scrape only this user id."`
	ServiceFlags
}

type SendCmd struct {
	Test string `help:"Send only the gateway test email to this address."`
	ServiceFlags
}

type RunCmd struct {
	ServiceFlags
}

func (s *ScrapeCmd) Run(ctx *Context) error {
	runCtx, cancel := signalContext()
	defer cancel()

	res, err := ctx.open(runCtx, s.ServiceFlags)
	if err != nil {
		return err
	}
	defer res.Close()

	stop := ctx.UI.Progress("Scraping")
	if s.User != 0 {
		outcome, err := res.service.ScrapeUser(runCtx, s.User)
		stop()
		if writeErr := writeUserScrape(ctx, outcome); writeErr != nil {
			return writeErr
		}
		return err
	}

	result, err := res.service.ScrapeAll(runCtx)
	stop()
	if writeErr := writeScrapeBatch(ctx, result); writeErr != nil {
		return writeErr
	}
	return err
}

func (s *SendCmd) Run(ctx *Context) error {
	runCtx, cancel := signalContext()
	defer cancel()

	res, err := ctx.open(runCtx, s.ServiceFlags)
	if err != nil {
		return err
	}
	defer res.Close()

	if s.Test != "" {
		id, err := res.service.SendTestEmail(runCtx, s.Test)
		if err != nil {
			return err
		}
		ctx.UI.Successf("Test email sent to %s (id %s)", s.Test, id)
		return nil
	}

	stop := ctx.UI.Progress("Sending")
	result, err := res.service.SendAll(runCtx)
	stop()
	if writeErr := writeSendBatch(ctx, result); writeErr != nil {
		return writeErr
	}
	return err
}

func (r *RunCmd) Run(ctx *Context) error {
	runCtx, cancel := signalContext()
	defer cancel()

	res, err := ctx.open(runCtx, r.ServiceFlags)
	if err != nil {
		return err
	}
	defer res.Close()

	stop := ctx.UI.Progress("Running")
	result, err := res.service.ScrapeThenSend(runCtx)
	stop()
	if ctx.JSONOutput {
		if writeErr := export.WriteJSON(ctx.Out, result); writeErr != nil {
			return writeErr
		}
		return err
	}
	if writeErr := writeScrapeBatch(ctx, result.Scrape); writeErr != nil {
		return writeErr
	}
	fmt.Fprintln(ctx.Out)
	if writeErr := writeSendBatch(ctx, result.Send); writeErr != nil {
		return writeErr
	}
	return err
}

// summaryFormat is table on a terminal, TSV with --plain.
func summaryFormat(ctx *Context) export.Format {
	switch {
	case ctx.JSONOutput:
		return export.FormatJSON
	case ctx.PlainText:
		return export.FormatTSV
	default:
		return export.FormatTable
	}
}

func writeScrapeBatch(ctx *Context, result delivery.ScrapeBatchResult) error {
	if ctx.JSONOutput {
		return export.WriteJSON(ctx.Out, result)
	}
	return export.WriteScrapeLog(ctx.Out, result.Log, summaryFormat(ctx))
}

func writeSendBatch(ctx *Context, result delivery.SendBatchResult) error {
	if ctx.JSONOutput {
		return export.WriteJSON(ctx.Out, result)
	}
	if err := export.WriteMailLog(ctx.Out, result.Log, summaryFormat(ctx)); err != nil {
		return err
	}
	if ctx.Verbose {
		for _, o := range result.Outcomes {
			if o.Status != delivery.StatusSkipped || o.Reason == "" {
				continue
			}
			if o.Cohort == "" {
				ctx.UI.Warnf("  %s: skipped, %s", o.Email, o.Reason)
				continue
			}
			ctx.UI.Warnf("  %s (%s): skipped, %s", o.Email, o.Cohort, o.Reason)
		}
	}
	return nil
}

func writeUserScrape(ctx *Context, outcome delivery.UserScrape) error {
	if ctx.JSONOutput {
		return export.WriteJSON(ctx.Out, outcome)
	}
	if outcome.Error != "" {
		ctx.UI.Errorf("user %d: %s", outcome.UserID, outcome.Error)
		return nil
	}
	ctx.UI.Successf("user %d (%s): bundle %d with %d of %d offers",
		outcome.UserID, outcome.Email, outcome.BundleID, outcome.Stored, outcome.Scraped)
	for _, platform := range sortedPlatforms(outcome.Diagnostics) {
		d := outcome.Diagnostics[platform]
		if d.Error != "" {
			ctx.UI.Warnf("  %s: %s", platform, d.Error)
		}
	}
	return nil
}
