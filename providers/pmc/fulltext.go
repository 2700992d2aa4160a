// Package pmc lädt Artikel-Volltexte über die PubMed-Central-Artikelseite.
package pmc

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mrik-soulpage/pharmacovigilance/config"

	"go.uber.org/zap"
)

const defaultBaseURL = "https://pmc.ncbi.nlm.nih.gov/articles"

// maxFullTextRunes begrenzt den extrahierten Text, damit der Prompt an das
// LLM nicht unkontrolliert wächst.
const maxFullTextRunes = 200000

var httpClient = &http.Client{Timeout: 30 * time.Second}

var multiNewlineRe = regexp.MustCompile(`\n{2,}`)

// Fetcher kapselt den Abruf von PMC-Artikelseiten.
type Fetcher struct {
	Config  *config.Config
	Logger  *zap.Logger
	BaseURL string
}

// NewFetcher erstellt eine neue Instanz des PMC-Fetchers.
func NewFetcher(cfg *config.Config, logger *zap.Logger) *Fetcher {
	return &Fetcher{Config: cfg, Logger: logger, BaseURL: defaultBaseURL}
}

// Name gibt den Namen des Providers zurück.
func (f *Fetcher) Name() string {
	return "pmc"
}

// FetchFullText lädt die PMC-Seite zu einer PMCID und extrahiert den Textinhalt.
// Der Abruf ist best effort; das Monitoring fällt bei Fehlern auf das Abstract zurück.
func (f *Fetcher) FetchFullText(ctx context.Context, pmcid string) (string, error) {
	if pmcid == "" {
		return "", fmt.Errorf("leere pmcid")
	}
	pageURL := fmt.Sprintf("%s/%s/", f.BaseURL, pmcid)
	log := f.Logger.With(zap.String("pmcid", pmcid))
	log.Debug("Rufe PMC-Artikelseite auf", zap.String("url", pageURL))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("request bauen: %w", err)
	}
	// PMC blockt Clients ohne Browser-Kennung.
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("pmc-seite abrufen: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("pmc returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", fmt.Errorf("pmc-seite parsen: %w", err)
	}

	text := extractText(doc)
	if text == "" {
		return "", fmt.Errorf("kein textinhalt auf pmc-seite für %s", pmcid)
	}
	log.Debug("PMC-Volltext extrahiert", zap.Int("chars", len(text)))
	return text, nil
}

// extractText zieht den sichtbaren Text aus dem Dokument. Navigations- und
// Script-Knoten werden entfernt, der Artikel-Container bevorzugt.
func extractText(doc *goquery.Document) string {
	doc.Find("script, style, noscript, nav, header, footer, form").Remove()

	root := doc.Find("main").First()
	if root.Length() == 0 {
		root = doc.Find("article").First()
	}
	if root.Length() == 0 {
		root = doc.Find("body").First()
	}

	var b strings.Builder
	blocks := root.Find("h1, h2, h3, h4, p, li, td, figcaption")
	if blocks.Length() == 0 {
		b.WriteString(root.Text())
	} else {
		blocks.Each(func(_ int, s *goquery.Selection) {
			line := strings.TrimSpace(s.Text())
			if line != "" {
				b.WriteString(line)
				b.WriteString("\n")
			}
		})
	}

	text := strings.TrimSpace(multiNewlineRe.ReplaceAllString(b.String(), "\n"))
	if runes := []rune(text); len(runes) > maxFullTextRunes {
		text = string(runes[:maxFullTextRunes])
	}
	return text
}
