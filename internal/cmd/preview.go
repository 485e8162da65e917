package cmd

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/jimezsa/gigscope/internal/cache"
	"github.com/jimezsa/gigscope/internal/export"
	"github.com/jimezsa/gigscope/internal/filter"
	"github.com/jimezsa/gigscope/internal/models"
	"github.com/jimezsa/gigscope/internal/pipeline"
	"github.com/jimezsa/gigscope/internal/scoring"
	"github.com/jimezsa/gigscope/internal/scraper"
	"github.com/jimezsa/gigscope/internal/ui"
)

// PreviewCmd runs the multi-platform pipeline for ad-hoc keywords. Nothing
// is stored and no email is sent.
type PreviewCmd struct {
	Must      string  `help:"Comma-separated keywords an offer must contain."`
	May       string  `help:"Comma-separated keywords that raise the score."`
	MustNot   string  `name:"must-not" help:"Comma-separated keywords that exclude an offer."`
	Platforms string  `help:"Comma-separated platform ids (default: all)." default:"all"`
	Max       int     `help:"Per-platform and final cap." default:"10"`
	MinScore  float64 `name:"min-score" help:"Drop offers whose overall score is below this value."`
	Real      bool    `help:"Scrape the live platforms instead of the offline generators."`
	All       bool    `help:"Print every scored offer, not only the selection."`

	OpenAIKey string `name:"openai-key" help:"OpenAI API key for real scoring." env:"GIGSCOPE_OPENAI_API_KEY"`
	Model     string `help:"OpenAI model." default:"gpt-4.1-mini"`
	ApifyKey  string `name:"apify-key" help:"Apify API key for Upwork." env:"GIGSCOPE_APIFY_API_KEY"`
	Proxies   string `help:"Comma-separated proxy URLs." env:"GIGSCOPE_PROXIES"`

	Format string `help:"Output format: csv, json, md, tsv, table." enum:",csv,json,md,tsv,table" default:""`
	Links  string `help:"Table link display: short or full." enum:"short,full" default:"full"`
	Output string `name:"output" short:"o" help:"Write output to a file."`
}

func (p *PreviewCmd) Run(ctx *Context) error {
	runCtx, cancel := signalContext()
	defer cancel()

	platforms, err := resolvePlatforms(p.Platforms)
	if err != nil {
		return err
	}

	var listings cache.Listings = cache.NewMemory()
	if p.Real {
		var closeCache func()
		if listings, closeCache, err = ctx.listings(runCtx); err != nil {
			return err
		}
		defer closeCache()
	}
	registry, err := ctx.registry(p.Proxies, listings)
	if err != nil {
		return err
	}

	var provider scoring.Provider
	if p.Real && strings.TrimSpace(p.OpenAIKey) != "" {
		if provider, err = scoring.NewOpenAI(scoring.OpenAIOptions{APIKey: p.OpenAIKey, Model: p.Model}); err != nil {
			return err
		}
	}
	orch := pipeline.New(pipeline.Options{
		Scrapers:    registry,
		Scorer:      scoring.NewEngine(scoring.Options{Provider: provider, Logger: ctx.Logger}),
		Concurrency: ctx.Config.PlatformConcurrency,
		Logger:      ctx.Logger,
	})

	req := pipeline.Request{
		Keywords:        filter.ParseKeywords(p.Must, p.May, p.MustNot),
		Platforms:       platforms,
		PerPlatformCap:  p.Max,
		FinalCap:        p.Max,
		RealScrape:      p.Real,
		RealScore:       provider != nil,
		MinOverallScore: p.MinScore,
	}
	if p.ApifyKey != "" {
		req.Credentials = map[string]scraper.Credentials{scraper.PlatformUpwork: {APIKey: p.ApifyKey}}
	}

	stop := ctx.UI.Progress("Scraping")
	result, err := orch.ScrapeAll(runCtx, req)
	stop()
	if err != nil {
		return err
	}

	reportPlatformFailures(ctx, result)

	format, err := resolveFormat(ctx, p.Format, p.Output)
	if err != nil {
		return err
	}
	writer := ctx.Out
	if p.Output != "" {
		file, err := os.Create(p.Output)
		if err != nil {
			return err
		}
		defer file.Close()
		writer = file
	}

	if format == export.FormatJSON {
		if err := export.WriteJSON(writer, result); err != nil {
			return err
		}
	} else {
		offers := result.Selected
		if p.All {
			offers = result.Offers
		}
		colorEnabled := ctx.UI != nil && ctx.UI.ColorEnabled && p.Output == ""
		linkStyle := export.LinkStyleShort
		if strings.EqualFold(p.Links, string(export.LinkStyleFull)) {
			linkStyle = export.LinkStyleFull
		}
		if err := export.WriteOffers(writer, offers, format, export.WriteOptions{
			ColorEnabled: colorEnabled,
			Hyperlinks:   colorEnabled,
			LinkStyle:    linkStyle,
		}); err != nil {
			return err
		}
	}

	_, _ = fmt.Fprintln(ctx.Err, formatPreviewSummary(result))
	return nil
}

// resolvePlatforms expands "all" and rejects unknown ids.
func resolvePlatforms(raw string) ([]string, error) {
	requested := scraper.NormalizePlatforms(strings.Split(raw, ","))
	if len(requested) == 0 || (len(requested) == 1 && requested[0] == "all") {
		return scraper.Order(), nil
	}
	known := map[string]bool{}
	for _, platform := range scraper.Order() {
		known[platform] = true
	}
	for _, platform := range requested {
		if !known[platform] {
			return nil, fmt.Errorf("%w: %s", pipeline.ErrUnknownPlatform, platform)
		}
	}
	return requested, nil
}

func resolveFormat(ctx *Context, flag string, outputPath string) (export.Format, error) {
	if ctx.JSONOutput {
		return export.FormatJSON, nil
	}
	if ctx.PlainText {
		return export.FormatTSV, nil
	}
	if flag != "" {
		return export.ParseFormat(flag)
	}
	if outputPath == "" && ui.IsTTY(ctx.Out) {
		return export.FormatTable, nil
	}
	return export.FormatCSV, nil
}

func formatPreviewSummary(result pipeline.Result) string {
	counts := countByPlatform(result.Selected)
	if len(counts) == 0 {
		return fmt.Sprintf("summary: scraped=%d selected=0 by_platform=none", result.TotalOffers)
	}
	parts := make([]string, 0, len(counts))
	for _, platform := range sortedKeys(counts) {
		parts = append(parts, fmt.Sprintf("%s:%d", platform, counts[platform]))
	}
	return fmt.Sprintf("summary: scraped=%d selected=%d by_platform=%s",
		result.TotalOffers, len(result.Selected), strings.Join(parts, ", "))
}

func countByPlatform(offers []models.ScoredOffer) map[string]int {
	counts := make(map[string]int, len(offers))
	for _, offer := range offers {
		platform := strings.ToLower(strings.TrimSpace(offer.Platform))
		if platform == "" {
			platform = "unknown"
		}
		counts[platform]++
	}
	return counts
}

func sortedKeys(counts map[string]int) []string {
	keys := make([]string, 0, len(counts))
	for key := range counts {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func sortedPlatforms(diagnostics map[string]pipeline.Diagnostic) []string {
	keys := make([]string, 0, len(diagnostics))
	for key := range diagnostics {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func reportPlatformFailures(ctx *Context, result pipeline.Result) {
	if ctx == nil || ctx.UI == nil || !ctx.Verbose {
		return
	}
	failed := result.Failed()
	if len(failed) == 0 {
		return
	}
	ctx.UI.Warnf("\nPlatform errors:")
	for _, d := range failed {
		ctx.UI.Warnf("  %s: %s", d.Platform, d.Error)
	}
}
