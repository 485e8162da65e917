package mail

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/jimezsa/gigscope/internal/models"
)

const (
	descriptionPreview = 200
	maskedOfferCards   = 3
)

// Links are the per-recipient URLs every email footer carries.
type Links struct {
	Preferences string
	Unsubscribe string
	// Renewal points at the subscription page.
	Renewal string
}

// LinksFor builds the footer links of user from the public base URL.
func LinksFor(baseURL, renewalURL string, user models.User) Links {
	base := strings.TrimRight(baseURL, "/")
	return Links{
		Preferences: base + "/email-preferences/" + user.PreferencesToken,
		Unsubscribe: base + "/unsubscribe/" + user.UnsubscribeToken,
		Renewal:     renewalURL,
	}
}

type Rendered struct {
	Subject string
	HTML    string
}

type offerView struct {
	Title       string
	Description string
	URL         string
	Platform    string
	Meta        []string
}

var pages = template.Must(template.New("layout").Parse(layoutHTML))

func init() {
	template.Must(pages.New("offers").Parse(offersHTML))
	template.Must(pages.New("promo").Parse(promoHTML))
	template.Must(pages.New("renewal").Parse(renewalHTML))
	template.Must(pages.New("test").Parse(testHTML))
}

func OffersEmail(offers []models.BundledOffer, links Links) (Rendered, error) {
	views := make([]offerView, 0, len(offers))
	for _, o := range offers {
		desc := o.Description
		if strings.TrimSpace(desc) == "" {
			desc = "Brak opisu"
		}
		if r := []rune(desc); len(r) > descriptionPreview {
			desc = string(r[:descriptionPreview]) + "..."
		}
		var meta []string
		for _, v := range []string{o.Budget, o.ClientName, o.ClientLocation} {
			if strings.TrimSpace(v) != "" {
				meta = append(meta, v)
			}
		}
		views = append(views, offerView{
			Title:       o.Title,
			Description: desc,
			URL:         o.URL,
			Platform:    o.Platform,
			Meta:        meta,
		})
	}
	return render("offers", fmt.Sprintf("AI Scoper - %d nowych ofert dla Ciebie!", len(offers)), map[string]any{
		"Count":  len(offers),
		"Offers": views,
		"Links":  links,
	})
}

// NeverSubscribedEmail advertises count offers to a user who never had a
// subscription.
func NeverSubscribedEmail(count int, links Links) (Rendered, error) {
	return render("promo", fmt.Sprintf("%d ofert czeka na Ciebie!", count), map[string]any{
		"Count":  count,
		"Masked": make([]struct{}, min(count, maskedOfferCards)),
		"Links":  links,
	})
}

func RenewalEmail(links Links) (Rendered, error) {
	return render("renewal", "Twoja subskrypcja AI Scoper wygasła - odnów ją!", map[string]any{
		"Links": links,
	})
}

// TestEmail verifies the mail gateway configuration.
func TestEmail() (Rendered, error) {
	return render("test", "AI Scoper - Test połączenia z bramką mailową", map[string]any{})
}

func render(name, subject string, data map[string]any) (Rendered, error) {
	var body bytes.Buffer
	if err := pages.ExecuteTemplate(&body, name, data); err != nil {
		return Rendered{}, fmt.Errorf("render %s: %w", name, err)
	}
	var page bytes.Buffer
	if err := pages.ExecuteTemplate(&page, "layout", template.HTML(body.String())); err != nil {
		return Rendered{}, fmt.Errorf("render layout: %w", err)
	}
	return Rendered{Subject: subject, HTML: page.String()}, nil
}

const layoutHTML = `<!DOCTYPE html>
<html lang="pl">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>AI Scoper</title>
<style>
body { font-family: -apple-system, 'Segoe UI', Roboto, Arial, sans-serif; background: #191B1F; color: #FFFFFF; line-height: 1.6; margin: 0; }
.container { max-width: 600px; margin: 0 auto; padding: 40px 20px; }
.header { text-align: center; margin-bottom: 32px; padding-bottom: 24px; border-bottom: 1px solid rgba(255,255,255,0.1); }
.logo { font-size: 36px; color: #F1E388; letter-spacing: 2px; }
.tagline { color: rgba(255,255,255,0.5); font-size: 14px; margin-top: 6px; }
.card { background: #2B2E33; border: 1px solid rgba(255,255,255,0.1); border-radius: 16px; padding: 28px; margin-bottom: 20px; }
.offer-card { background: #2B2E33; border: 1px solid rgba(255,255,255,0.1); border-radius: 12px; padding: 20px; margin-bottom: 12px; }
.offer-platform { display: inline-block; background: #F1E388; color: #191B1F; font-size: 11px; font-weight: 600; padding: 4px 10px; border-radius: 6px; text-transform: uppercase; }
.offer-title { font-size: 16px; font-weight: 600; margin: 10px 0 8px; }
.offer-description { color: rgba(255,255,255,0.6); font-size: 14px; }
.highlight-number { font-size: 48px; font-weight: 700; color: #F1E388; }
.btn { display: inline-block; padding: 14px 28px; border-radius: 16px; font-weight: 600; text-decoration: none; background: #F1E388; color: #191B1F; }
.footer { text-align: center; padding-top: 32px; border-top: 1px solid rgba(255,255,255,0.1); margin-top: 32px; }
.footer a { color: #60A5FA; text-decoration: none; font-size: 13px; margin: 0 10px; }
.footer-text { color: rgba(255,255,255,0.4); font-size: 12px; }
</style>
</head>
<body>
<div class="container">
<div class="header"><div class="logo">AI Scoper</div><div class="tagline">Twój osobisty łowca zleceń • Be Free Club</div></div>
{{.}}
</div>
</body>
</html>`

const footerHTML = `<div class="footer">
<div><a href="{{.Links.Preferences}}" target="_blank">Zmień słowa kluczowe</a> • <a href="{{.Links.Unsubscribe}}" target="_blank">Wypisz się</a></div>
<p class="footer-text">Ten email został wysłany przez AI Scoper.</p>
</div>`

const offersHTML = `<div class="card" style="text-align: center;">
<div class="highlight-number">{{.Count}}</div>
<p>nowych ofert dopasowanych do Twoich słów kluczowych</p>
</div>
{{range .Offers}}<a href="{{.URL}}" target="_blank" style="text-decoration: none; display: block;">
<div class="offer-card">
<div class="offer-platform">{{.Platform}}</div>
<h3 class="offer-title">{{.Title}}</h3>
<p class="offer-description">{{.Description}}</p>
{{if .Meta}}<div style="font-size: 13px;">{{range $i, $m := .Meta}}{{if $i}} • {{end}}<span>{{$m}}</span>{{end}}</div>{{end}}
</div>
</a>
{{end}}` + footerHTML

const promoHTML = `<div class="card" style="text-align: center;">
<div class="highlight-number">{{.Count}}</div>
<p>ofert czeka na Ciebie</p>
</div>
<div class="card" style="text-align: center;">
<h2>Masz nowe oferty!</h2>
<p>Znaleźliśmy oferty dopasowane do Twoich słów kluczowych, ale nie jesteś członkiem społeczności Be Free Club. Dołącz, aby otrzymywać spersonalizowane oferty codziennie!</p>
<a href="{{.Links.Renewal}}" target="_blank" class="btn">Dołącz do Be Free Club</a>
</div>
{{range .Masked}}<div class="offer-card"><div class="offer-platform">██████</div><h3 class="offer-title">████████ ████ ████████</h3><p class="offer-description">████████ ████ ██████████ ████████...</p></div>
{{end}}` + footerHTML

const renewalHTML = `<div class="card" style="text-align: center;">
<h2>Twoja subskrypcja wygasła</h2>
<p>Nie chcemy, żebyś przegapił świetne zlecenia! Odnów subskrypcję, a my wrócimy do codziennego wyszukiwania ofert dopasowanych do Twoich słów kluczowych.</p>
<a href="{{.Links.Renewal}}" target="_blank" class="btn">Odnów subskrypcję</a>
</div>` + footerHTML

const testHTML = `<div class="card" style="text-align: center;">
<h2>Konfiguracja działa!</h2>
<p>Twoja bramka mailowa jest poprawnie skonfigurowana. AI Scoper jest gotowy do wysyłania powiadomień o ofertach.</p>
</div>`
