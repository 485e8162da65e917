package export

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/jimezsa/gigscope/internal/models"
)

func sampleOffers() []models.ScoredOffer {
	return []models.ScoredOffer{
		{
			Offer: models.Offer{
				Title:       "React dashboard",
				Description: "Build a dashboard, with charts",
				URL:         "https://www.useme.com/pl/jobs/1/",
				Platform:    "useme",
				Budget:      "5000 PLN",
			},
			Scores:   models.Scores{Fit: 8, Attractiveness: 7, Overall: 7.5},
			Selected: true,
		},
		{
			Offer:  models.Offer{Title: "Go API", URL: "https://justjoin.it/job/2", Platform: "justjoinit"},
			Scores: models.Scores{Fit: 4, Attractiveness: 5, Overall: 4.5},
		},
	}
}

func TestWriteOffersCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteOffers(&buf, sampleOffers(), FormatCSV, WriteOptions{}); err != nil {
		t.Fatalf("WriteOffers: %v", err)
	}
	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected header and two rows, got %d", len(records))
	}
	row := records[1]
	if row[0] != "useme" || row[9] != "7.5" || row[10] != "true" || row[11] != "Build a dashboard, with charts" {
		t.Fatalf("unexpected row %v", row)
	}
}

func TestWriteOffersTableAndMarkdown(t *testing.T) {
	var table bytes.Buffer
	if err := WriteOffers(&table, sampleOffers(), FormatTable, WriteOptions{LinkStyle: LinkStyleFull}); err != nil {
		t.Fatalf("table: %v", err)
	}
	if !strings.Contains(table.String(), "https://justjoin.it/job/2") || !strings.HasPrefix(table.String(), "platform") {
		t.Fatalf("unexpected table:\n%s", table.String())
	}

	var md bytes.Buffer
	if err := WriteOffers(&md, sampleOffers(), FormatMarkdown, WriteOptions{}); err != nil {
		t.Fatalf("markdown: %v", err)
	}
	for _, want := range []string{"- **React dashboard** (useme)", "Budget: 5000 PLN", "Selected: yes"} {
		if !strings.Contains(md.String(), want) {
			t.Fatalf("markdown missing %q:\n%s", want, md.String())
		}
	}

	md.Reset()
	_ = WriteOffers(&md, nil, FormatMarkdown, WriteOptions{})
	if strings.TrimSpace(md.String()) != "No offers." {
		t.Fatalf("unexpected empty markdown %q", md.String())
	}
}

func TestWriteMailLog(t *testing.T) {
	log := models.MailLog{
		Active:       models.CohortStats{Total: 3, Sent: 2, Failed: 1, Errors: models.RunErrors{{UserID: 7, Email: "a@x.pl", Error: "boom"}}},
		Lapsed:       models.CohortStats{Total: 1, Skipped: 1},
		LinkageError: "failed to save email logs for 2 sent emails: db down",
	}
	var buf bytes.Buffer
	if err := WriteMailLog(&buf, log, FormatTSV); err != nil {
		t.Fatalf("WriteMailLog: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"active\t3\t2\t1\t0", "lapsed\t1\t0\t0\t1", "7\ta@x.pl\tboom", "error: failed to save email logs"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestWriteScrapeLogJSON(t *testing.T) {
	var buf bytes.Buffer
	log := models.ScrapeLog{ExecutedAt: time.Date(2024, 6, 3, 8, 0, 0, 0, time.UTC), TotalUsers: 2, Successful: 2, TotalOffers: 12}
	if err := WriteScrapeLog(&buf, log, FormatJSON); err != nil {
		t.Fatalf("WriteScrapeLog: %v", err)
	}
	if !strings.Contains(buf.String(), `"total_offers": 12`) {
		t.Fatalf("unexpected json %s", buf.String())
	}
}

func TestShortURLLabel(t *testing.T) {
	if got := shortURLLabel("https://www.useme.com/pl/jobs/1/"); got != "useme.com/pl/jobs/1/" {
		t.Fatalf("unexpected label %q", got)
	}
	long := "https://example.com/" + strings.Repeat("a", 100)
	if got := shortURLLabel(long); len(got) != 60 || !strings.HasSuffix(got, "...") {
		t.Fatalf("expected truncated label, got %q", got)
	}
}

func TestParseFormat(t *testing.T) {
	cases := map[string]Format{"": FormatTable, "markdown": FormatMarkdown, "TSV": FormatTSV, "json": FormatJSON}
	for in, want := range cases {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Fatalf("ParseFormat(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Fatalf("expected error for unknown format")
	}
}
