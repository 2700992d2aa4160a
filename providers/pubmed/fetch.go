package pubmed

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mrik-soulpage/pharmacovigilance/config"
	"github.com/mrik-soulpage/pharmacovigilance/models"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	maxAttempts = 3
	retryPause  = 2 * time.Second
)

var httpClient = &http.Client{Timeout: 60 * time.Second}

// Fetcher kapselt die Interaktion mit der Entrez-API (ESearch + EFetch).
type Fetcher struct {
	Config  *config.Config
	Logger  *zap.Logger
	limiter *rate.Limiter
}

// NewFetcher erstellt eine neue Instanz des PubMed-Fetchers.
// NCBI erlaubt mit API-Key 10 Requests pro Sekunde, der Limiter hält das ein.
func NewFetcher(cfg *config.Config, logger *zap.Logger) *Fetcher {
	rps := cfg.PubMedRateLimit
	if rps <= 0 {
		rps = 10
	}
	return &Fetcher{
		Config:  cfg,
		Logger:  logger,
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
	}
}

// Name gibt den Namen des Providers zurück.
func (f *Fetcher) Name() string {
	return "pubmed"
}

// DateRange baut die [PDAT]-Einschränkung für das Suchfenster.
// Offene Enden werden mit den Entrez-Sentinels 1900 bzw. 3000 aufgefüllt.
func DateRange(from, to *time.Time) string {
	const layout = "2006/01/02"
	switch {
	case from != nil && to != nil:
		return fmt.Sprintf(" AND (%s[PDAT]:%s[PDAT])", from.Format(layout), to.Format(layout))
	case from != nil:
		return fmt.Sprintf(" AND (%s[PDAT]:3000[PDAT])", from.Format(layout))
	case to != nil:
		return fmt.Sprintf(" AND (1900[PDAT]:%s[PDAT])", to.Format(layout))
	}
	return ""
}

// Search führt eine ESearch-Abfrage aus und gibt die PMIDs nach Relevanz sortiert zurück.
// Transiente Fehler werden bis zu dreimal mit zwei Sekunden Pause wiederholt.
func (f *Fetcher) Search(ctx context.Context, query string, from, to *time.Time, maxResults int) ([]string, error) {
	fullQuery := query + DateRange(from, to)
	log := f.Logger.With(zap.String("query", fullQuery))
	log.Info("Starte PubMed ESearch", zap.Int("retmax", maxResults))

	searchURL := f.buildEsearchURL(fullQuery, maxResults)

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		ids, err := f.doESearch(ctx, searchURL)
		if err == nil {
			log.Info("PubMed ESearch abgeschlossen", zap.Int("count", len(ids)))
			return ids, nil
		}
		lastErr = err
		if attempt < maxAttempts {
			log.Warn("ESearch fehlgeschlagen, neuer Versuch",
				zap.Int("attempt", attempt), zap.Error(err))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(retryPause):
			}
		}
	}
	return nil, fmt.Errorf("esearch nach %d versuchen fehlgeschlagen: %w", maxAttempts, lastErr)
}

func (f *Fetcher) doESearch(ctx context.Context, searchURL string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		f.Logger.Error("ESearch-API hat nicht-200-Status zurückgegeben",
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(body)))
		return nil, fmt.Errorf("esearch failed: status %d", resp.StatusCode)
	}

	var esearchResp ESearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&esearchResp); err != nil {
		return nil, fmt.Errorf("fehler beim parsen der esearch-antwort: %w", err)
	}
	return esearchResp.ESearchResult.IdList, nil
}

// FetchArticle holt die vollständigen Metadaten für eine einzelne PMID via EFetch.
func (f *Fetcher) FetchArticle(ctx context.Context, pmid string) (*models.Article, error) {
	log := f.Logger.With(zap.String("pmid", pmid))
	log.Debug("Hole Artikel-Details für PMID.")

	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.buildEfetchURL(pmid), nil)
	if err != nil {
		return nil, err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("efetch failed: status %d", resp.StatusCode)
	}

	var articleSet PubmedArticleSet
	if err := xml.NewDecoder(resp.Body).Decode(&articleSet); err != nil {
		return nil, fmt.Errorf("fehler beim parsen der efetch-antwort: %w", err)
	}
	if len(articleSet.PubmedArticle) == 0 {
		return nil, fmt.Errorf("kein PubmedArticle in EFetch-Antwort für PMID %s gefunden", pmid)
	}

	return mapArticleToModel(&articleSet.PubmedArticle[0]), nil
}

// TestConnection prüft die Erreichbarkeit der Entrez-API mit einer Minimal-Suche.
func (f *Fetcher) TestConnection(ctx context.Context) error {
	ids, err := f.Search(ctx, "aspirin", nil, nil, 1)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return fmt.Errorf("esearch-probe lieferte keine treffer")
	}
	return nil
}

// buildEsearchURL baut die URL für eine ESearch-Anfrage.
func (f *Fetcher) buildEsearchURL(term string, retmax int) string {
	base := fmt.Sprintf("%s/esearch.fcgi?db=pubmed&term=%s&retmode=json&retmax=%d&sort=relevance",
		f.Config.PubMedBaseURL, url.QueryEscape(term), retmax)
	return base + f.credentialParams()
}

// buildEfetchURL baut die URL für eine EFetch-Anfrage.
func (f *Fetcher) buildEfetchURL(pmid string) string {
	base := fmt.Sprintf("%s/efetch.fcgi?db=pubmed&id=%s&rettype=medline&retmode=xml",
		f.Config.PubMedBaseURL, url.QueryEscape(pmid))
	return base + f.credentialParams()
}

// credentialParams hängt tool, email und api_key an, soweit konfiguriert. NCBI
// verlangt tool und email für identifizierbare Clients.
func (f *Fetcher) credentialParams() string {
	params := ""
	if f.Config.PubMedTool != "" {
		params += "&tool=" + url.QueryEscape(f.Config.PubMedTool)
	}
	if f.Config.PubMedEmail != "" {
		params += "&email=" + url.QueryEscape(f.Config.PubMedEmail)
	}
	if f.Config.PubMedAPIKey != "" {
		params += "&api_key=" + f.Config.PubMedAPIKey
	}
	return params
}

// BuildCitation baut die Literaturangabe für den Tracker:
// "Erstautor et al. Journal. Jahr. Seiten."
func BuildCitation(firstAuthor, journal, year, pages string) string {
	var parts []string
	if firstAuthor != "" {
		parts = append(parts, firstAuthor+" et al")
	}
	if journal != "" {
		parts = append(parts, journal)
	}
	if year != "" {
		parts = append(parts, year)
	}
	if pages != "" {
		parts = append(parts, pages)
	}
	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts, ". ") + "."
}

// mapArticleToModel wandelt ein XML-Article-Objekt in unser Article-Modell um.
func mapArticleToModel(article *PubmedArticle) *models.Article {
	cit := article.MedlineCitation
	a := &models.Article{
		PMID:     cit.PMID,
		Title:    cit.Article.Title,
		Abstract: strings.Join(cit.Article.Abstract.Text, " "),
		Pages:    cit.Article.Pagination.MedlinePgn,
		Journal:  cit.Article.Journal.Title,
	}

	var authors []string
	for _, author := range cit.Article.Authors {
		if author.LastName == "" {
			continue
		}
		authors = append(authors, strings.TrimSpace(author.LastName+" "+author.Initials))
	}
	a.Authors = strings.Join(authors, "; ")

	pubDate := cit.Article.Journal.PubDate
	switch {
	case pubDate.Year != "":
		a.PublicationYear = pubDate.Year
	case len(pubDate.MedlineDate) >= 4:
		// MedlineDate wie "2023 Jan-Feb", das Jahr steht vorn.
		a.PublicationYear = pubDate.MedlineDate[:4]
	}

	for _, id := range article.PubmedData.ArticleIDs {
		switch id.IDType {
		case "pmc":
			a.PMCID = strings.TrimSpace(id.Value)
		case "doi":
			a.DOI = strings.TrimSpace(id.Value)
		case "mid":
			a.NIHMSID = strings.TrimSpace(id.Value)
		}
	}
	a.FullTextAvailable = a.PMCID != ""

	if t := parseEntrezDate(cit.DateCreated); t != nil {
		a.EntrezDate = t
	} else {
		// Neuere Records führen kein DateCreated mehr, die History schon.
		for _, h := range article.PubmedData.History {
			if h.PubStatus == "entrez" {
				a.EntrezDate = parseEntrezDate(&EntrezDate{Year: h.Year, Month: h.Month, Day: h.Day})
				break
			}
		}
	}

	a.Citation = BuildCitation(a.FirstAuthor(), a.Journal, a.PublicationYear, a.Pages)
	return a
}

// parseEntrezDate wandelt ein Entrez-Datum in time.Time um, fehlende Monate
// und Tage werden auf 1 gesetzt.
func parseEntrezDate(d *EntrezDate) *time.Time {
	if d == nil || d.Year == "" {
		return nil
	}
	year, err := strconv.Atoi(d.Year)
	if err != nil {
		return nil
	}
	month := 1
	if m, err := strconv.Atoi(d.Month); err == nil && m >= 1 && m <= 12 {
		month = m
	} else if d.Month != "" {
		if tm, err := time.Parse("Jan", d.Month); err == nil {
			month = int(tm.Month())
		}
	}
	day := 1
	if dd, err := strconv.Atoi(d.Day); err == nil && dd >= 1 && dd <= 31 {
		day = dd
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	return &t
}
