package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/jimezsa/gigscope/internal/models"
	"github.com/jimezsa/gigscope/internal/network"
	"github.com/rs/zerolog"
)

// fetcher bundles the transport a real scraper needs.
type fetcher struct {
	client network.Doer
	retry  network.RetryPolicy
	pace   time.Duration
	logger zerolog.Logger
}

func (f fetcher) document(ctx context.Context, target string, headers map[string]string) (*goquery.Document, error) {
	resp, err := network.Get(ctx, f.client, f.retry, target, withDefaultHeaders(headers))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (f fetcher) getJSON(ctx context.Context, target string, headers map[string]string, out any) error {
	if headers == nil {
		headers = map[string]string{}
	}
	if _, ok := headers["accept"]; !ok {
		headers["accept"] = "application/json"
	}
	resp, err := network.Get(ctx, f.client, f.retry, target, headers)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeJSON(resp.Body, out)
}

func decodeJSON(r io.Reader, out any) error {
	if err := json.NewDecoder(r).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func withDefaultHeaders(headers map[string]string) map[string]string {
	out := map[string]string{
		"accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		"accept-language": "pl-PL,pl;q=0.9,en-US;q=0.8,en;q=0.7",
	}
	for key, value := range headers {
		out[key] = value
	}
	return out
}

// result assembles a ScrapeResult, capping offers at maxOffers.
func result(platform, searchURL string, start time.Time, offers []models.Offer, maxOffers int, err error) models.ScrapeResult {
	if maxOffers > 0 && len(offers) > maxOffers {
		offers = offers[:maxOffers]
	}
	if err != nil {
		offers = nil
		err = fmt.Errorf("%s: %w", platform, err)
	}
	return models.ScrapeResult{
		Platform:  platform,
		Offers:    offers,
		SearchURL: searchURL,
		Duration:  time.Since(start),
		Err:       err,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func cleanText(value string) string {
	value = html.UnescapeString(value)
	return strings.Join(strings.Fields(value), " ")
}

func absoluteURL(base string, href string) string {
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	if strings.HasPrefix(href, "//") {
		return "https:" + href
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return baseURL.ResolveReference(ref).String()
}

// plusQuery escapes terms for sites that expect "+" between words.
func plusQuery(terms []string, sep string) string {
	return url.QueryEscape(strings.Join(terms, sep))
}

func parsePostedAt(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	layouts := []string{
		time.RFC3339,
		time.RFC3339Nano,
		"2006-01-02T15:04:05.000Z",
		"2006-01-02",
		"2006-01-02T15:04:05-0700",
	}
	for _, layout := range layouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported time format: %s", value)
}

// parseJSONLDOffers extracts JobPosting entries from ld+json scripts.
func parseJSONLDOffers(doc *goquery.Document, platform string) []models.Offer {
	var offers []models.Offer
	seen := map[string]struct{}{}

	doc.Find("script[type='application/ld+json']").Each(func(_ int, s *goquery.Selection) {
		raw := strings.TrimSpace(s.Text())
		if raw == "" {
			return
		}

		data, err := decodeJSONLD(raw)
		if err != nil {
			return
		}

		for _, offer := range extractJSONLD(data, platform) {
			key := offer.URL
			if key == "" {
				key = strings.ToLower(offer.Title + "|" + offer.ClientName)
			}
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			offers = append(offers, offer)
		}
	})

	return offers
}

func decodeJSONLD(raw string) (any, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "<!--")
	raw = strings.TrimSuffix(raw, "-->")
	raw = strings.ReplaceAll(raw, "\u2028", "")
	raw = strings.ReplaceAll(raw, "\u2029", "")

	var data any
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &data); err != nil {
		return nil, err
	}
	return data, nil
}

func extractJSONLD(data any, platform string) []models.Offer {
	var offers []models.Offer

	switch value := data.(type) {
	case []any:
		for _, item := range value {
			offers = append(offers, extractJSONLD(item, platform)...)
		}
	case map[string]any:
		switch strings.ToLower(stringValue(value["@type"], value["type"])) {
		case "jobposting":
			return append(offers, offerFromJobPosting(value, platform))
		case "itemlist":
			offers = append(offers, extractJSONLD(value["itemListElement"], platform)...)
		case "listitem":
			offers = append(offers, extractJSONLD(value["item"], platform)...)
		}
		if graph, ok := value["@graph"]; ok {
			offers = append(offers, extractJSONLD(graph, platform)...)
		}
	}

	return offers
}

func offerFromJobPosting(value map[string]any, platform string) models.Offer {
	offer := models.Offer{Platform: platform}
	offer.Title = cleanText(stringValue(value["title"], value["name"]))
	offer.ClientName = stringValue(mapValue(value["hiringOrganization"], "name"))
	offer.URL = stringValue(value["url"], value["@id"])
	offer.Budget = salaryFromJSONLD(value["baseSalary"])
	if ts, err := parsePostedAt(stringValue(value["datePosted"])); err == nil {
		offer.PostedAt = ts
	}
	offer.ClientLocation = locationFromJSONLD(value["jobLocation"])
	offer.Description = cleanText(stripTags(stringValue(value["description"])))
	return offer
}

func stripTags(value string) string {
	if !strings.Contains(value, "<") {
		return value
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(value))
	if err != nil {
		return value
	}
	return doc.Text()
}

func salaryFromJSONLD(value any) string {
	v, ok := value.(map[string]any)
	if !ok {
		return stringValue(value)
	}
	currency := stringValue(v["currency"])
	inner := v["value"]
	if amount := stringValue(mapValue(inner, "value")); amount != "" {
		return strings.TrimSpace(amount + " " + currency)
	}
	minValue := stringValue(mapValue(inner, "minValue"))
	maxValue := stringValue(mapValue(inner, "maxValue"))
	switch {
	case minValue != "" && maxValue != "":
		return strings.TrimSpace(minValue + " - " + maxValue + " " + currency)
	case minValue != "":
		return strings.TrimSpace(minValue + " " + currency)
	}
	return ""
}

func locationFromJSONLD(value any) string {
	switch v := value.(type) {
	case []any:
		var parts []string
		for _, item := range v {
			if loc := locationFromJSONLD(item); loc != "" {
				parts = append(parts, loc)
			}
		}
		return strings.Join(parts, "; ")
	case map[string]any:
		if address, ok := v["address"].(map[string]any); ok {
			return joinAddress(address)
		}
		return joinAddress(v)
	case string:
		return v
	}
	return ""
}

func joinAddress(value map[string]any) string {
	var parts []string
	for _, key := range []string{"addressLocality", "addressRegion", "addressCountry"} {
		if part := stringValue(value[key]); part != "" {
			parts = append(parts, part)
		}
	}
	return strings.Join(parts, ", ")
}

func stringValue(values ...any) string {
	for _, value := range values {
		switch v := value.(type) {
		case string:
			if strings.TrimSpace(v) != "" {
				return strings.TrimSpace(v)
			}
		case float64:
			return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.2f", v), "0"), ".")
		case int:
			return fmt.Sprintf("%d", v)
		case int64:
			return fmt.Sprintf("%d", v)
		case json.Number:
			return v.String()
		case map[string]any:
			if name := stringValue(v["name"]); name != "" {
				return name
			}
		}
	}
	return ""
}

func mapValue(value any, key string) any {
	m, ok := value.(map[string]any)
	if !ok {
		return nil
	}
	return m[key]
}

func truncate(value string, max int) string {
	value = strings.TrimSpace(value)
	if max <= 0 {
		return value
	}
	runes := []rune(value)
	if len(runes) <= max {
		return value
	}
	return strings.TrimSpace(string(runes[:max])) + "..."
}
