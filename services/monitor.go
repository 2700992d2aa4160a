package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/mrik-soulpage/pharmacovigilance/config"
	"github.com/mrik-soulpage/pharmacovigilance/models"
	"github.com/mrik-soulpage/pharmacovigilance/providers"
)

var (
	articlesAnalyzedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pv_monitor_articles_analyzed_total",
		Help: "Anzahl der durch die KI klassifizierten Artikel.",
	})
	icsrDetectedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pv_monitor_icsr_detected_total",
		Help: "Anzahl der als ICSR klassifizierten Artikel.",
	})
	jobsCompletedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pv_monitor_jobs_completed_total",
		Help: "Anzahl erfolgreich abgeschlossener Suchläufe.",
	})
	jobsFailedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pv_monitor_jobs_failed_total",
		Help: "Anzahl fehlgeschlagener Suchläufe.",
	})
)

func init() {
	prometheus.MustRegister(articlesAnalyzedCounter, icsrDetectedCounter, jobsCompletedCounter, jobsFailedCounter)
}

// ArticleAnalyzer klassifiziert einen Artikel für ein Produkt.
type ArticleAnalyzer interface {
	Analyze(ctx context.Context, title, abstract string, product *models.Product) (*Analysis, error)
	Enabled() bool
}

// MonitorService orchestriert Literatur-Suchläufe: Job anlegen, Hintergrund-
// Worker starten, Artikel holen, klassifizieren, Ergebnisse persistieren.
type MonitorService struct {
	Config     *config.Config
	DB         *gorm.DB
	Logger     *zap.Logger
	Literature providers.LiteratureProvider
	FullText   providers.FullTextProvider
	Analyzer   ArticleAnalyzer
	Normalizer *TextNormalizer
}

// NewMonitorService erstellt eine neue Instanz des MonitorService.
func NewMonitorService(cfg *config.Config, db *gorm.DB, logger *zap.Logger,
	lit providers.LiteratureProvider, fullText providers.FullTextProvider,
	analyzer ArticleAnalyzer, normalizer *TextNormalizer) *MonitorService {
	return &MonitorService{
		Config:     cfg,
		DB:         db,
		Logger:     logger,
		Literature: lit,
		FullText:   fullText,
		Analyzer:   analyzer,
		Normalizer: normalizer,
	}
}

// StartProductSearch legt einen Einzel-Job an und startet den Hintergrund-Worker.
func (m *MonitorService) StartProductSearch(product models.Product, from, to *time.Time) (*models.SearchJob, error) {
	job, err := m.createJob(models.JobTypeSingle, from, to, 1)
	if err != nil {
		return nil, err
	}
	go m.runJob(job.ID, []models.Product{product})
	return job, nil
}

// StartBatchSearch legt einen Batch-Job über mehrere Produkte an.
func (m *MonitorService) StartBatchSearch(products []models.Product, from, to *time.Time) (*models.SearchJob, error) {
	if len(products) == 0 {
		return nil, errors.New("keine produkte für batch-suche")
	}
	job, err := m.createJob(models.JobTypeBatch, from, to, len(products))
	if err != nil {
		return nil, err
	}
	go m.runJob(job.ID, products)
	return job, nil
}

// RunWeeklySearch führt die wöchentliche Batch-Suche über alle Produkte aus
// (Suchfenster: die letzten sieben Tage). Wird vom Cron-Eintrag aufgerufen.
func (m *MonitorService) RunWeeklySearch() {
	var products []models.Product
	if err := m.DB.Find(&products).Error; err != nil {
		m.Logger.Error("Produkte für wöchentliche Suche nicht ladbar", zap.Error(err))
		return
	}
	if len(products) == 0 {
		m.Logger.Warn("Keine Produkte im Register, wöchentliche Suche übersprungen")
		return
	}
	to := time.Now()
	from := to.AddDate(0, 0, -7)
	job, err := m.StartBatchSearch(products, &from, &to)
	if err != nil {
		m.Logger.Error("Wöchentliche Suche konnte nicht gestartet werden", zap.Error(err))
		return
	}
	m.Logger.Info("Wöchentliche Batch-Suche gestartet",
		zap.Uint("job_id", job.ID), zap.Int("products", len(products)))
}

func (m *MonitorService) createJob(jobType string, from, to *time.Time, totalProducts int) (*models.SearchJob, error) {
	now := time.Now()
	job := &models.SearchJob{
		JobType:       jobType,
		Status:        models.JobStatusRunning,
		DateFrom:      from,
		DateTo:        to,
		TotalProducts: totalProducts,
		StartedAt:     &now,
	}
	if err := m.DB.Create(job).Error; err != nil {
		return nil, fmt.Errorf("suchjob anlegen: %w", err)
	}
	return job, nil
}

// runJob ist der Hintergrund-Worker eines Suchlaufs. Bei Einzel-Jobs führt
// ein Suchfehler zum Status failed; im Batch wird das Produkt übersprungen.
func (m *MonitorService) runJob(jobID uint, products []models.Product) {
	ctx := context.Background()
	log := m.Logger.With(zap.Uint("job_id", jobID))
	log.Info("Hintergrund-Verarbeitung gestartet", zap.Int("products", len(products)))

	var job models.SearchJob
	if err := m.DB.First(&job, jobID).Error; err != nil {
		log.Error("Suchjob nicht gefunden", zap.Error(err))
		return
	}

	resultsTotal := 0
	for idx, product := range products {
		log.Info("Verarbeite Produkt",
			zap.String("inn", product.INN),
			zap.Int("position", idx+1), zap.Int("of", len(products)))

		count, err := m.processProduct(ctx, &job, product)
		if err != nil {
			if job.JobType == models.JobTypeSingle {
				m.failJob(&job, err)
				return
			}
			log.Error("Produkt übersprungen", zap.String("inn", product.INN), zap.Error(err))
			continue
		}
		resultsTotal += count

		job.ProcessedProducts = idx + 1
		if err := m.DB.Model(&job).Update("processed_products", job.ProcessedProducts).Error; err != nil {
			log.Error("Fortschritt nicht speicherbar", zap.Error(err))
		}
	}

	now := time.Now()
	job.Status = models.JobStatusCompleted
	job.CompletedAt = &now
	if err := m.DB.Model(&job).Updates(map[string]interface{}{
		"status":       models.JobStatusCompleted,
		"completed_at": &now,
	}).Error; err != nil {
		log.Error("Jobabschluss nicht speicherbar", zap.Error(err))
		return
	}
	jobsCompletedCounter.Inc()
	log.Info("Suchlauf abgeschlossen",
		zap.Int("results", resultsTotal),
		zap.Int("articles_total", job.TotalArticles),
		zap.Int("articles_processed", job.ProcessedArticles))
}

// processProduct sucht PMIDs für ein Produkt und verarbeitet jeden Treffer.
// Fehler einzelner Artikel werden geloggt und übersprungen.
func (m *MonitorService) processProduct(ctx context.Context, job *models.SearchJob, product models.Product) (int, error) {
	log := m.Logger.With(zap.Uint("job_id", job.ID), zap.String("inn", product.INN))

	pmids, err := m.Literature.Search(ctx, product.SearchStrategy, job.DateFrom, job.DateTo, m.Config.MaxArticlesPerSearch)
	if err != nil {
		return 0, fmt.Errorf("suche für %s: %w", product.INN, err)
	}
	log.Info("Suche abgeschlossen", zap.Int("pmids", len(pmids)))

	job.TotalArticles += len(pmids)
	if err := m.DB.Model(job).Update("total_articles", job.TotalArticles).Error; err != nil {
		log.Error("Artikelzähler nicht speicherbar", zap.Error(err))
	}

	results := 0
	for idx, pmid := range pmids {
		if err := m.processArticle(ctx, job, product, pmid); err != nil {
			log.Warn("Artikel übersprungen", zap.String("pmid", pmid), zap.Error(err))
		} else {
			results++
		}

		job.ProcessedArticles++
		// Fortschritt alle fünf Artikel sichern, damit bei Abbrüchen wenig verloren geht.
		if (idx+1)%5 == 0 || idx == len(pmids)-1 {
			if err := m.DB.Model(job).Update("processed_articles", job.ProcessedArticles).Error; err != nil {
				log.Error("Fortschritt nicht speicherbar", zap.Error(err))
			}
			log.Info("Fortschritt", zap.Int("processed", idx+1), zap.Int("of", len(pmids)))
		}
	}
	return results, nil
}

// processArticle holt, dedupliziert und klassifiziert einen einzelnen Artikel.
func (m *MonitorService) processArticle(ctx context.Context, job *models.SearchJob, product models.Product, pmid string) error {
	article, err := m.findOrCreateArticle(ctx, pmid)
	if err != nil {
		return err
	}

	// Ein Ergebnis pro (Job, Artikel): bereits klassifizierte Artikel dieses
	// Laufs werden nicht erneut analysiert (Batch mit überlappenden Queries).
	var existing models.SearchResult
	err = m.DB.Where("search_job_id = ? AND article_id = ?", job.ID, article.ID).First(&existing).Error
	if err == nil {
		m.Logger.Debug("Artikel in diesem Lauf bereits klassifiziert",
			zap.Uint("job_id", job.ID), zap.String("pmid", pmid))
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("ergebnis-lookup: %w", err)
	}

	analysisText := m.analysisText(ctx, article)

	analysis, err := m.Analyzer.Analyze(ctx, article.Title, analysisText, &product)
	if err != nil {
		return fmt.Errorf("klassifikation: %w", err)
	}

	result := buildSearchResult(job.ID, product.ID, article.ID, analysis)
	if err := m.DB.Create(result).Error; err != nil {
		return fmt.Errorf("ergebnis speichern: %w", err)
	}

	articlesAnalyzedCounter.Inc()
	if analysis.IsICSR {
		icsrDetectedCounter.Inc()
	}
	return nil
}

// findOrCreateArticle dedupliziert Artikel über die PMID.
func (m *MonitorService) findOrCreateArticle(ctx context.Context, pmid string) (*models.Article, error) {
	var article models.Article
	err := m.DB.Where("pmid = ?", pmid).First(&article).Error
	if err == nil {
		return &article, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("artikel-lookup: %w", err)
	}

	fetched, err := m.Literature.FetchArticle(ctx, pmid)
	if err != nil {
		return nil, fmt.Errorf("artikel-details: %w", err)
	}
	fetched.Abstract = m.Normalizer.NormalizeAbstract(fetched.Abstract)
	if err := m.DB.Create(fetched).Error; err != nil {
		return nil, fmt.Errorf("artikel speichern: %w", err)
	}
	return fetched, nil
}

// analysisText bevorzugt den PMC-Volltext, fällt sonst auf das Abstract zurück.
func (m *MonitorService) analysisText(ctx context.Context, article *models.Article) string {
	if m.FullText == nil || article.PMCID == "" {
		return article.Abstract
	}
	raw, err := m.FullText.FetchFullText(ctx, article.PMCID)
	if err != nil {
		m.Logger.Warn("Volltext nicht abrufbar, nutze Abstract",
			zap.String("pmcid", article.PMCID), zap.Error(err))
		return article.Abstract
	}
	text, stats := m.Normalizer.NormalizeFullText(raw)
	m.Logger.Debug("Volltext für Analyse aufbereitet",
		zap.String("pmcid", article.PMCID), zap.Int("words", stats.NumWords))
	if text == "" {
		return article.Abstract
	}
	return text
}

// buildSearchResult überträgt eine Analyse in die Ergebnisspalten.
func buildSearchResult(jobID, productID, articleID uint, analysis *Analysis) *models.SearchResult {
	raw := analysis.Raw
	if len(raw) == 0 {
		raw, _ = json.Marshal(analysis)
	}
	isICSR := analysis.IsICSR
	canExclude := analysis.Ownership.CanExclude
	minCriteria := analysis.MinimumCriteriaAvailable
	hasSafety := analysis.Safety.HasRelevantSafetyInfo
	return &models.SearchResult{
		SearchJobID:              jobID,
		ProductID:                productID,
		ArticleID:                articleID,
		IsICSR:                   &isICSR,
		ICSRDescription:          analysis.ICSRDescription,
		OwnershipExcluded:        &canExclude,
		ExclusionReason:          analysis.Ownership.ExclusionReason,
		MinimumCriteriaAvailable: &minCriteria,
		OtherSafetyInfo:          &hasSafety,
		SafetyInfoJustification:  analysis.Safety.Justification,
		ConfidenceScore:          analysis.ConfidenceScore,
		AIAnalysis:               datatypes.JSON(raw),
	}
}

func (m *MonitorService) failJob(job *models.SearchJob, cause error) {
	m.Logger.Error("Suchlauf fehlgeschlagen", zap.Uint("job_id", job.ID), zap.Error(cause))
	job.Status = models.JobStatusFailed
	job.ErrorMessage = cause.Error()
	if err := m.DB.Model(job).Updates(map[string]interface{}{
		"status":        models.JobStatusFailed,
		"error_message": job.ErrorMessage,
	}).Error; err != nil {
		m.Logger.Error("Fehlerstatus nicht speicherbar", zap.Error(err))
	}
	jobsFailedCounter.Inc()
}

// PreviewResult ist ein nicht persistiertes Analyse-Ergebnis der Sofort-Suche.
type PreviewResult struct {
	Article  *models.Article `json:"article"`
	Analysis *Analysis       `json:"analysis"`
}

// Preview führt Suche und Klassifikation synchron aus, ohne Job und ohne
// Persistenz. Gedacht für die Sofort-Ansicht im Dashboard.
func (m *MonitorService) Preview(ctx context.Context, product models.Product, from, to *time.Time, maxResults int) ([]PreviewResult, error) {
	if maxResults <= 0 || maxResults > m.Config.MaxArticlesPerSearch {
		maxResults = m.Config.MaxArticlesPerSearch
	}
	pmids, err := m.Literature.Search(ctx, product.SearchStrategy, from, to, maxResults)
	if err != nil {
		return nil, fmt.Errorf("suche: %w", err)
	}

	var results []PreviewResult
	for _, pmid := range pmids {
		article, err := m.Literature.FetchArticle(ctx, pmid)
		if err != nil {
			m.Logger.Warn("Artikel-Details nicht abrufbar", zap.String("pmid", pmid), zap.Error(err))
			continue
		}
		article.Abstract = m.Normalizer.NormalizeAbstract(article.Abstract)

		analysis, err := m.Analyzer.Analyze(ctx, article.Title, article.Abstract, &product)
		if err != nil {
			m.Logger.Warn("Klassifikation fehlgeschlagen", zap.String("pmid", pmid), zap.Error(err))
			continue
		}
		results = append(results, PreviewResult{Article: article, Analysis: analysis})
	}
	return results, nil
}
