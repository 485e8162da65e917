package scraper

import (
	"context"
	"fmt"
	"hash/fnv"
	"math/rand"
	"strings"
	"time"
	"unicode"

	"github.com/jimezsa/gigscope/internal/models"
)

type mockCatalog struct {
	titles       []string
	descriptions []string
	budgets      []string
	locations    []string
	clients      []string
	urlPattern   string
	idBase       int64
	skillsLabel  string
	defaultSkill string
}

var mockPostedAt = time.Date(2025, 12, 12, 10, 0, 0, 0, time.UTC)

var mockCatalogs = map[string]mockCatalog{
	PlatformUpwork: {
		titles: []string{
			"Senior React Developer for E-commerce Platform",
			"Full Stack Engineer - Node.js & React",
			"Frontend Developer with TypeScript Experience",
			"Python Backend Developer for Data Processing",
			"Mobile App Developer - React Native",
			"DevOps Engineer for Cloud Infrastructure",
			"UI/UX Designer with Figma Skills",
			"WordPress Developer for Blog Migration",
			"Machine Learning Engineer for NLP Project",
			"QA Engineer for Automated Testing",
			"Database Administrator - PostgreSQL",
		},
		descriptions: []string{
			"We are looking for an experienced developer to join our growing team. The ideal candidate has 3+ years of experience and excellent communication skills.",
			"Remote-friendly position with flexible hours. Must be available for weekly sync meetings.",
			"Long-term project with potential for ongoing work. Looking for someone reliable and detail-oriented.",
			"Fast-paced environment seeking a skilled professional. You will work directly with the CTO.",
		},
		budgets:      []string{"$500", "$1,000", "$2,500", "$5,000", "$50/hr", "$75/hr", "$100/hr", "Negotiable"},
		locations:    []string{"United States", "United Kingdom", "Germany", "Canada", "Australia", "Netherlands", "Denmark"},
		urlPattern:   "https://www.upwork.com/jobs/~0%d",
		idBase:       1990000000000000000,
		skillsLabel:  "Required skills",
		defaultSkill: "software development",
	},
	PlatformUseme: {
		titles: []string{
			"Wykonanie strony internetowej dla firmy",
			"Projekt graficzny logo i wizytówek",
			"Tłumaczenie dokumentów angielski-polski",
			"Stworzenie aplikacji mobilnej",
			"Prowadzenie kampanii Google Ads",
			"Pisanie artykułów na blog firmowy",
			"Projektowanie UX/UI aplikacji webowej",
			"Programowanie wtyczki WordPress",
			"Administracja serwerem Linux",
		},
		descriptions: []string{
			"Szukamy osoby do realizacji projektu. Wymagane portfolio i doświadczenie w podobnych projektach.",
			"Pilne zlecenie z możliwością stałej współpracy.",
			"Projekt dla klienta korporacyjnego. Wymagana pełna dyspozycyjność przez okres realizacji.",
			"Zlecenie z elastycznym terminem. Liczy się jakość wykonania, nie szybkość.",
		},
		budgets:      []string{"500 - 1000 PLN", "1000 - 2500 PLN", "2500 - 5000 PLN", "5000 - 10000 PLN", "Do ustalenia"},
		locations:    []string{"Polska", "Warszawa", "Kraków", "Zdalnie"},
		urlPattern:   "https://useme.com/pl/jobs/zlecenie,%d/",
		idBase:       120000,
		skillsLabel:  "Wymagane umiejętności",
		defaultSkill: "projekt",
	},
	PlatformJustJoinIT: {
		titles: []string{
			"Senior Python Developer",
			"Full Stack Developer (React + Node)",
			"Java Backend Developer",
			"DevOps Engineer",
			"Frontend Developer (Vue.js)",
			"Data Engineer",
			"QA Automation Engineer",
			"Android Developer (Kotlin)",
			"Cloud Architect (AWS)",
		},
		descriptions: []string{
			"Remote-first company with flexible hours looking for an experienced developer.",
			"Competitive salary and stock options available.",
			"Help us build the next generation of our product. Great learning environment.",
			"International team and modern tech stack.",
		},
		budgets:      []string{"15 000 - 20 000 PLN", "18 000 - 25 000 PLN", "20 000 - 28 000 PLN", "25 000 - 35 000 PLN", "Undisclosed salary"},
		locations:    []string{"Warszawa", "Kraków", "Wrocław", "Remote"},
		clients:      []string{"TechCorp", "InnovateLab", "DataDriven", "CloudFirst", "DevHouse", "SoftwareMasters"},
		urlPattern:   "https://justjoin.it/job-offer/mock-%d",
		idBase:       50000,
		skillsLabel:  "Tech stack",
		defaultSkill: "software",
	},
	PlatformRocketJobs: {
		titles: []string{
			"Senior Backend Developer",
			"Frontend Developer React",
			"DevOps Engineer",
			"Data Analyst",
			"Product Manager",
			"UX/UI Designer",
			"Scrum Master",
			"Cloud Architect",
		},
		descriptions: []string{
			"Poszukujemy specjalisty do dynamicznego zespołu. Praca zdalna możliwa.",
			"Dołącz do naszego zespołu i rozwijaj się w międzynarodowym środowisku.",
			"Oferujemy atrakcyjne wynagrodzenie i pakiet benefitów.",
			"Szukamy osoby z pasją do technologii.",
		},
		budgets:      []string{"12 000 - 18 000 PLN", "15 000 - 22 000 PLN", "20 000 - 28 000 PLN", "30 000 - 40 000 PLN"},
		locations:    []string{"Warszawa", "Kraków", "Wrocław", "Gdańsk", "Poznań", "Remote"},
		clients:      []string{"TechStartup", "SoftwareHouse", "FinTech Sp. z o.o.", "Digital Agency", "IT Solutions"},
		urlPattern:   "https://rocketjobs.pl/oferta-pracy/mock-%d",
		idBase:       70000,
		skillsLabel:  "Wymagania",
		defaultSkill: "IT",
	},
	PlatformFiverr: {
		titles: []string{
			"I will create a professional website",
			"I will design a modern logo",
			"I will develop a mobile app",
			"I will write SEO content",
			"I will edit your video professionally",
			"I will do data entry and web research",
			"I will develop WordPress plugins",
		},
		descriptions: []string{
			"Professional service with fast delivery. Unlimited revisions included.",
			"Top-rated seller with 5 years of experience.",
			"Quick turnaround and excellent communication.",
			"High-quality work at competitive prices.",
		},
		budgets:      []string{"$50", "$100", "$150", "$200", "$300", "$500", "$1,000"},
		locations:    []string{"United States", "India", "Pakistan", "Ukraine", "Poland"},
		urlPattern:   "https://www.fiverr.com/gigs/mock-%d",
		idBase:       300000,
		skillsLabel:  "Skills",
		defaultSkill: "freelance",
	},
	PlatformContra: {
		titles: []string{
			"Design Lead needed for startup",
			"Full-Stack Developer for web app",
			"Content Strategist for brand launch",
			"Product Designer for mobile app",
			"Frontend Engineer for SaaS platform",
			"UX Researcher for user studies",
			"Copywriter for website content",
		},
		descriptions: []string{
			"Commission-free platform with direct payments.",
			"Exciting project with growth potential. Looking for creative problem solvers.",
			"Flexible schedule and competitive compensation.",
			"Long-term collaboration possible.",
		},
		budgets:      []string{"$1,000 - $2,500", "$2,500 - $5,000", "$5,000 - $10,000", "$10,000+", "Hourly rate"},
		locations:    []string{"Remote", "United States", "Europe"},
		clients:      []string{"TechStartup Inc", "Creative Agency", "Design Studio", "Innovation Lab"},
		urlPattern:   "https://contra.com/opportunity/mock-%d",
		idBase:       900000,
		skillsLabel:  "Skills",
		defaultSkill: "design",
	},
	PlatformWorkConnect: {
		titles: []string{
			"Zlecę stworzenie strony internetowej",
			"Projekt graficzny logo firmy",
			"Aplikacja mobilna dla restauracji",
			"Prowadzenie social media przez 3 miesiące",
			"Tłumaczenie dokumentacji technicznej",
			"Wdrożenie systemu CRM",
			"Optymalizacja SEO strony firmowej",
			"Stworzenie sklepu internetowego",
		},
		descriptions: []string{
			"Szukamy doświadczonego wykonawcy do realizacji projektu.",
			"Pilne zlecenie z możliwością stałej współpracy.",
			"Zlecenie z elastycznym terminem wykonania.",
			"Zlecenie długoterminowe z możliwością przedłużenia współpracy.",
		},
		budgets:      []string{"500 - 1000 PLN", "1000 - 2500 PLN", "2500 - 5000 PLN", "Nie podano", "Do ustalenia"},
		clients:      []string{"MAGTRANS", "Tech Solutions Sp. z o.o.", "Digital Agency", "Creative Studio", "Marketing Pro"},
		urlPattern:   "https://www.workconnect.app/zlecenia/mock-%d",
		idBase:       4000,
		skillsLabel:  "Wymagane umiejętności",
		defaultSkill: "projekt",
	},
}

// mockResult generates exactly maxOffers offers without any network I/O.
// The output is a pure function of platform, keywords and maxOffers.
func mockResult(ctx context.Context, platform, searchURL string, kw models.Keywords, maxOffers int) models.ScrapeResult {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return result(platform, searchURL, start, nil, maxOffers, err)
	}
	return result(platform, searchURL, start, generateMockOffers(platform, kw, maxOffers), maxOffers, nil)
}

func generateMockOffers(platform string, kw models.Keywords, maxOffers int) []models.Offer {
	catalog, ok := mockCatalogs[platform]
	if !ok || maxOffers <= 0 {
		return nil
	}

	rng := rand.New(rand.NewSource(mockSeed(platform, kw, maxOffers)))
	keywords := kw.Positive()
	skills := catalog.defaultSkill
	if len(keywords) > 0 {
		skills = strings.Join(keywords, ", ")
	}
	tags := keywords
	if len(tags) > 5 {
		tags = tags[:5]
	}

	offers := make([]models.Offer, 0, maxOffers)
	for i := 0; i < maxOffers; i++ {
		title := pick(rng, catalog.titles)
		if len(keywords) > 0 && rng.Float64() > 0.5 {
			title = capitalize(pick(rng, keywords)) + " - " + title
		}
		offers = append(offers, models.Offer{
			Title:          fmt.Sprintf("%s #%d", title, i+1),
			Description:    fmt.Sprintf("%s %s: %s.", pick(rng, catalog.descriptions), catalog.skillsLabel, skills),
			URL:            fmt.Sprintf(catalog.urlPattern, catalog.idBase+int64(i)),
			Platform:       platform,
			Budget:         pick(rng, catalog.budgets),
			ClientName:     pick(rng, catalog.clients),
			ClientLocation: pick(rng, catalog.locations),
			PostedAt:       mockPostedAt.Add(-time.Duration(i) * time.Hour),
			Tags:           append([]string(nil), tags...),
		})
	}
	return offers
}

func mockSeed(platform string, kw models.Keywords, maxOffers int) int64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s|%d|%s|%s|%s", platform, maxOffers,
		strings.Join(kw.Must, ","), strings.Join(kw.May, ","), strings.Join(kw.MustNot, ","))
	return int64(h.Sum64())
}

func pick(rng *rand.Rand, values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[rng.Intn(len(values))]
}

func capitalize(value string) string {
	runes := []rune(value)
	if len(runes) == 0 {
		return value
	}
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
