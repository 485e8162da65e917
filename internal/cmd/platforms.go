package cmd

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	fhttp "github.com/bogdanfinn/fhttp"
	"github.com/jimezsa/gigscope/internal/export"
	"github.com/jimezsa/gigscope/internal/filter"
	"github.com/jimezsa/gigscope/internal/network"
	"github.com/jimezsa/gigscope/internal/scraper"
)

type PlatformsCmd struct {
	List  PlatformListCmd  `cmd:"" default:"1" help:"List supported platforms and their search URLs."`
	Check PlatformCheckCmd `cmd:"" help:"Check that each platform answers through the configured proxies."`
}

type PlatformListCmd struct {
	Must    string `help:"Comma-separated must keywords used to build the search URLs." default:"react"`
	May     string `help:"Comma-separated may keywords."`
	MustNot string `name:"must-not" help:"Comma-separated must-not keywords."`
}

type PlatformCheckCmd struct {
	Platforms string `help:"Comma-separated platform ids (default: all)." default:"all"`
	Timeout   int    `help:"Timeout in seconds." default:"15"`
	Proxies   string `help:"Comma-separated proxy URLs." env:"GIGSCOPE_PROXIES"`
}

type PlatformInfo struct {
	Platform            string `json:"platform"`
	Name                string `json:"name"`
	RequiresCredentials bool   `json:"requires_credentials"`
	SearchURL           string `json:"search_url"`
}

type PlatformCheckResult struct {
	Platform  string `json:"platform"`
	URL       string `json:"url"`
	Status    string `json:"status"`
	LatencyMS int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

func (p *PlatformListCmd) Run(ctx *Context) error {
	registry, err := ctx.registry("", nil)
	if err != nil {
		return err
	}
	kw := filter.ParseKeywords(p.Must, p.May, p.MustNot)

	infos := make([]PlatformInfo, 0, len(registry))
	for _, platform := range scraper.Order() {
		sc, ok := registry[platform]
		if !ok {
			continue
		}
		infos = append(infos, PlatformInfo{
			Platform:            platform,
			Name:                scraper.DisplayName(platform),
			RequiresCredentials: scraper.RequiresCredentials(platform),
			SearchURL:           sc.SearchURL(kw),
		})
	}

	if ctx.JSONOutput {
		return export.WriteJSON(ctx.Out, infos)
	}
	rows := make([][]string, 0, len(infos))
	for _, info := range infos {
		creds := "-"
		if info.RequiresCredentials {
			creds = "api key"
		}
		rows = append(rows, []string{info.Platform, info.Name, creds, ctx.UI.LinkText(info.SearchURL)})
	}
	return writeTable(ctx, []string{"platform", "name", "credentials", "search_url"}, rows)
}

func (p *PlatformCheckCmd) Run(ctx *Context) error {
	platforms, err := resolvePlatforms(p.Platforms)
	if err != nil {
		return err
	}
	registry, err := ctx.registry(p.Proxies, nil)
	if err != nil {
		return err
	}
	rotator, err := ctx.rotator(p.Proxies)
	if err != nil {
		return err
	}
	client, err := network.NewClient(network.Options{Rotator: rotator, Timeout: time.Duration(p.Timeout) * time.Second})
	if err != nil {
		return err
	}

	kw := filter.ParseKeywords("react", "", "")
	results := make([]PlatformCheckResult, 0, len(platforms))
	for _, platform := range platforms {
		target := registry[platform].SearchURL(kw)
		result := PlatformCheckResult{Platform: platform, URL: target}

		req, err := fhttp.NewRequest(fhttp.MethodGet, target, nil)
		if err != nil {
			result.Status = "error"
			result.Error = err.Error()
			results = append(results, result)
			continue
		}

		start := time.Now()
		resp, err := doWithTimeout(client, req, time.Duration(p.Timeout)*time.Second)
		if err != nil {
			result.Status = "error"
			result.Error = err.Error()
			results = append(results, result)
			continue
		}
		_ = resp.Body.Close()

		result.LatencyMS = time.Since(start).Milliseconds()
		result.Status = fmt.Sprintf("%d", resp.StatusCode)
		results = append(results, result)
	}

	return writeCheckResults(ctx, results)
}

func doWithTimeout(client network.Doer, req *fhttp.Request, timeout time.Duration) (*fhttp.Response, error) {
	ctx, cancel := context.WithTimeout(req.Context(), timeout)
	defer cancel()
	return client.Do(req.WithContext(ctx))
}

func writeCheckResults(ctx *Context, results []PlatformCheckResult) error {
	if ctx.JSONOutput {
		return export.WriteJSON(ctx.Out, results)
	}
	rows := make([][]string, 0, len(results))
	for _, res := range results {
		rows = append(rows, []string{res.Platform, res.Status, fmt.Sprintf("%d", res.LatencyMS), res.Error})
	}
	return writeTable(ctx, []string{"platform", "status", "latency_ms", "error"}, rows)
}

// writeTable prints TSV with --plain and an aligned table otherwise.
func writeTable(ctx *Context, header []string, rows [][]string) error {
	if ctx.PlainText {
		for _, row := range rows {
			fmt.Fprintln(ctx.Out, strings.Join(row, "\t"))
		}
		return nil
	}
	tw := tabwriter.NewWriter(ctx.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}
