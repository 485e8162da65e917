package scoring

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/jimezsa/gigscope/internal/models"
)

// DefaultPrompt is used when settings carry no prompt override. Overrides use
// the same placeholders.
const DefaultPrompt = `Jesteś ekspertem w ocenie ofert pracy dla freelancerów. Oceń każdą ofertę na podstawie następujących kryteriów:

**Słowa kluczowe użytkownika:**
- Musi zawierać: {must_contain}
- Może zawierać: {may_contain}
- Nie może zawierać: {must_not_contain}

**Dla każdej oferty zwróć 3 oceny w skali 0-10:**
1. **fit_score** (Dopasowanie): Jak dobrze oferta pasuje do podanych słów kluczowych i preferencji
2. **attractiveness_score** (Atrakcyjność): Jak atrakcyjna jest oferta (budżet, jakość klienta, klarowność opisu)
3. **overall_score** (Ocena ogólna): Średnia ważona powyższych z naciskiem na dopasowanie

**Format odpowiedzi:**
Zwróć JSON array z obiektami dla każdej oferty w tej samej kolejności:
[
  {{"offer_index": 0, "fit_score": 8.5, "attractiveness_score": 7.0, "overall_score": 8.0}},
  {{"offer_index": 1, "fit_score": 6.0, "attractiveness_score": 9.0, "overall_score": 7.0}},
  ...
]

**Oferty do oceny:**
{offers_json}

Odpowiedz TYLKO poprawnym JSON array, bez żadnego dodatkowego tekstu.`

// SystemMessage primes the chat model to answer in JSON only.
const SystemMessage = "Jesteś asystentem oceniającym oferty pracy. Odpowiadasz tylko w formacie JSON."

const (
	descriptionLimit = 500
	emptyKeywords    = "brak"
	notAvailable     = "N/A"
)

type promptOffer struct {
	Index          int    `json:"index"`
	Title          string `json:"title"`
	Description    string `json:"description"`
	Budget         string `json:"budget"`
	Platform       string `json:"platform"`
	ClientLocation string `json:"client_location"`
}

// BuildPrompt fills template with the keyword lists and a JSON array of
// simplified offers. Doubled braces collapse to single ones so stored
// templates can escape literal JSON.
func BuildPrompt(template string, kw models.Keywords, offers []models.Offer) (string, error) {
	if strings.TrimSpace(template) == "" {
		template = DefaultPrompt
	}

	records := make([]promptOffer, 0, len(offers))
	for i, offer := range offers {
		records = append(records, promptOffer{
			Index:          i,
			Title:          offer.Title,
			Description:    truncateRunes(offer.Description, descriptionLimit),
			Budget:         orDefault(offer.Budget, notAvailable),
			Platform:       orDefault(offer.Platform, "unknown"),
			ClientLocation: orDefault(offer.ClientLocation, notAvailable),
		})
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return "", err
	}

	r := strings.NewReplacer(
		"{{", "{",
		"}}", "}",
		"{must_contain}", joinOrEmpty(kw.Must),
		"{may_contain}", joinOrEmpty(kw.May),
		"{must_not_contain}", joinOrEmpty(kw.MustNot),
		"{offers_json}", strings.TrimRight(buf.String(), "\n"),
	)
	return r.Replace(template), nil
}

func joinOrEmpty(values []string) string {
	if len(values) == 0 {
		return emptyKeywords
	}
	return strings.Join(values, ", ")
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

func truncateRunes(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit])
}
