// Package export writes offer previews and batch summaries for the CLI.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/jimezsa/gigscope/internal/models"
	"github.com/muesli/termenv"
)

type Format string

const (
	FormatTable    Format = "table"
	FormatCSV      Format = "csv"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "md"
	FormatTSV      Format = "tsv"
)

type WriteOptions struct {
	ColorEnabled bool
	Hyperlinks   bool
	LinkStyle    LinkStyle
}

type LinkStyle string

const (
	LinkStyleShort LinkStyle = "short"
	LinkStyleFull  LinkStyle = "full"
)

const linkColor = "#87CEEB"

func ParseFormat(value string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "csv":
		return FormatCSV, nil
	case "json":
		return FormatJSON, nil
	case "md", "markdown":
		return FormatMarkdown, nil
	case "tsv":
		return FormatTSV, nil
	case "table", "":
		return FormatTable, nil
	default:
		return "", fmt.Errorf("unknown format: %s", value)
	}
}

// WriteJSON is the machine-readable form of any result.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func WriteOffers(w io.Writer, offers []models.ScoredOffer, format Format, opts WriteOptions) error {
	switch format {
	case FormatJSON:
		return WriteJSON(w, offers)
	case FormatCSV:
		return writeOffersCSV(w, offers, ',')
	case FormatTSV:
		return writeOffersCSV(w, offers, '\t')
	case FormatMarkdown:
		return writeOffersMarkdown(w, offers)
	default:
		return writeOffersTable(w, offers, opts)
	}
}

func writeOffersCSV(w io.Writer, offers []models.ScoredOffer, delim rune) error {
	writer := csv.NewWriter(w)
	writer.Comma = delim
	if err := writer.Write(offerCSVHeader()); err != nil {
		return err
	}
	for _, offer := range offers {
		if err := writer.Write(offerCSVRow(offer)); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func writeOffersTable(w io.Writer, offers []models.ScoredOffer, opts WriteOptions) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "platform\toverall\tfit\tattr\tselected\ttitle\turl")
	output := termenv.NewOutput(w)
	for _, offer := range offers {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			safe(offer.Platform),
			score(offer.Scores.Overall),
			score(offer.Scores.Fit),
			score(offer.Scores.Attractiveness),
			yesNo(offer.Selected),
			truncate(safe(offer.Title), 60),
			displayURL(offer.URL, output, opts),
		)
	}
	return tw.Flush()
}

func writeOffersMarkdown(w io.Writer, offers []models.ScoredOffer) error {
	if len(offers) == 0 {
		_, err := fmt.Fprintln(w, "No offers.")
		return err
	}
	for _, offer := range offers {
		urlLine := "  URL: -"
		if link := safe(offer.URL); link != "" {
			urlLine = fmt.Sprintf("  URL: [Open offer](<%s>)", link)
		}
		lines := []string{
			fmt.Sprintf("- **%s** (%s)", safe(offer.Title), safe(offer.Platform)),
			fmt.Sprintf("  Score: %s (fit %s, attractiveness %s)",
				score(offer.Scores.Overall), score(offer.Scores.Fit), score(offer.Scores.Attractiveness)),
			urlLine,
		}
		if offer.Selected {
			lines = append(lines, "  Selected: yes")
		}
		if offer.Budget != "" {
			lines = append(lines, fmt.Sprintf("  Budget: %s", safe(offer.Budget)))
		}
		if offer.ClientName != "" {
			lines = append(lines, fmt.Sprintf("  Client: %s", safe(offer.ClientName)))
		}
		if offer.ClientLocation != "" {
			lines = append(lines, fmt.Sprintf("  Location: %s", safe(offer.ClientLocation)))
		}
		if !offer.PostedAt.IsZero() {
			lines = append(lines, fmt.Sprintf("  Posted: %s", offer.PostedAt.Format(time.RFC3339)))
		}
		if offer.Description != "" {
			lines = append(lines, fmt.Sprintf("  Summary: %s", truncate(safe(offer.Description), 200)))
		}
		for _, line := range lines {
			if _, err := fmt.Fprintln(w, line); err != nil {
				return err
			}
		}
	}
	return nil
}

func offerCSVHeader() []string {
	return []string{
		"platform",
		"title",
		"url",
		"budget",
		"client_name",
		"client_location",
		"posted_at",
		"fit",
		"attractiveness",
		"overall",
		"selected",
		"description",
	}
}

func offerCSVRow(offer models.ScoredOffer) []string {
	posted := ""
	if !offer.PostedAt.IsZero() {
		posted = offer.PostedAt.Format(time.RFC3339)
	}
	return []string{
		offer.Platform,
		offer.Title,
		offer.URL,
		offer.Budget,
		offer.ClientName,
		offer.ClientLocation,
		posted,
		score(offer.Scores.Fit),
		score(offer.Scores.Attractiveness),
		score(offer.Scores.Overall),
		strconv.FormatBool(offer.Selected),
		offer.Description,
	}
}

// WriteScrapeLog writes one scrape batch summary with its per-user errors.
func WriteScrapeLog(w io.Writer, log models.ScrapeLog, format Format) error {
	if format == FormatJSON {
		return WriteJSON(w, log)
	}
	header := []string{"executed_at", "duration", "users", "successful", "failed", "offers", "error"}
	row := []string{
		log.ExecutedAt.Format(time.RFC3339),
		log.Duration.Round(time.Millisecond).String(),
		strconv.Itoa(log.TotalUsers),
		strconv.Itoa(log.Successful),
		strconv.Itoa(log.Failed),
		strconv.Itoa(log.TotalOffers),
		log.BatchError,
	}
	if err := writeRows(w, format, header, [][]string{row}); err != nil {
		return err
	}
	return writeRunErrors(w, format, log.Errors)
}

// WriteMailLog writes one send batch summary, one row per cohort.
func WriteMailLog(w io.Writer, log models.MailLog, format Format) error {
	if format == FormatJSON {
		return WriteJSON(w, log)
	}
	header := []string{"cohort", "total", "sent", "failed", "skipped"}
	cohorts := []struct {
		name  string
		stats models.CohortStats
	}{
		{"active", log.Active},
		{"never_subscribed", log.NeverSubscribed},
		{"lapsed", log.Lapsed},
	}
	rows := make([][]string, 0, len(cohorts))
	var errs models.RunErrors
	for _, c := range cohorts {
		rows = append(rows, []string{
			c.name,
			strconv.Itoa(c.stats.Total),
			strconv.Itoa(c.stats.Sent),
			strconv.Itoa(c.stats.Failed),
			strconv.Itoa(c.stats.Skipped),
		})
		errs = append(errs, c.stats.Errors...)
	}
	if err := writeRows(w, format, header, rows); err != nil {
		return err
	}
	for _, msg := range []string{log.BatchError, log.LinkageError} {
		if msg != "" {
			if _, err := fmt.Fprintf(w, "error: %s\n", msg); err != nil {
				return err
			}
		}
	}
	return writeRunErrors(w, format, errs)
}

func writeRunErrors(w io.Writer, format Format, errs models.RunErrors) error {
	if len(errs) == 0 {
		return nil
	}
	rows := make([][]string, 0, len(errs))
	for _, e := range errs {
		rows = append(rows, []string{strconv.FormatInt(e.UserID, 10), e.Email, e.Error})
	}
	if format == FormatTable || format == FormatMarkdown {
		fmt.Fprintln(w)
	}
	return writeRows(w, format, []string{"user_id", "email", "error"}, rows)
}

func writeRows(w io.Writer, format Format, header []string, rows [][]string) error {
	switch format {
	case FormatCSV, FormatTSV:
		writer := csv.NewWriter(w)
		if format == FormatTSV {
			writer.Comma = '\t'
		}
		if err := writer.Write(header); err != nil {
			return err
		}
		if err := writer.WriteAll(rows); err != nil {
			return err
		}
		return writer.Error()
	case FormatMarkdown:
		fmt.Fprintf(w, "| %s |\n", strings.Join(header, " | "))
		fmt.Fprintf(w, "|%s\n", strings.Repeat(" --- |", len(header)))
		for _, row := range rows {
			if _, err := fmt.Fprintf(w, "| %s |\n", strings.Join(row, " | ")); err != nil {
				return err
			}
		}
		return nil
	default:
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, strings.Join(header, "\t"))
		for _, row := range rows {
			fmt.Fprintln(tw, strings.Join(row, "\t"))
		}
		return tw.Flush()
	}
}

func score(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}

func safe(value string) string {
	return strings.TrimSpace(value)
}

func truncate(value string, max int) string {
	runes := []rune(value)
	if len(runes) <= max {
		return value
	}
	return string(runes[:max-3]) + "..."
}

func displayURL(raw string, output *termenv.Output, opts WriteOptions) string {
	link := safe(raw)
	if link == "" {
		return "-"
	}
	label := link
	if opts.LinkStyle == LinkStyleShort && opts.Hyperlinks {
		label = shortURLLabel(link)
	}
	if opts.ColorEnabled {
		label = output.String(label).Foreground(output.Color(linkColor)).String()
	}
	if opts.Hyperlinks {
		label = hyperlink(link, label)
	}
	return label
}

func hyperlink(url string, text string) string {
	const esc = "\x1b"
	return esc + "]8;;" + url + esc + "\\" + text + esc + "]8;;" + esc + "\\"
}

func shortURLLabel(raw string) string {
	const maxLen = 60
	label := strings.TrimSpace(raw)
	if parsed, err := url.Parse(raw); err == nil {
		host := strings.TrimPrefix(parsed.Host, "www.")
		if host != "" {
			label = host + parsed.Path
		}
	}
	label = strings.TrimSpace(label)
	if label == "" {
		label = raw
	}
	return truncate(label, maxLen)
}
