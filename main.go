package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/mrik-soulpage/pharmacovigilance/config"
	"github.com/mrik-soulpage/pharmacovigilance/models"
	"github.com/mrik-soulpage/pharmacovigilance/providers/pmc"
	"github.com/mrik-soulpage/pharmacovigilance/providers/pubmed"
	"github.com/mrik-soulpage/pharmacovigilance/services"
	"github.com/mrik-soulpage/pharmacovigilance/storage"
)

// Standard-Suchfilter der Seed-Produkte. EU-Produkte bekommen den erweiterten
// Filter mit allen meldepflichtigen Szenarien.
const (
	caseReportFilter = "((case report) OR (case series) OR (case study))"
	extendedFilter   = "((case report) OR (case series) OR (case study) OR (adverse effects) OR (toxicity) OR (fatal outcomes) OR (pregnancy) OR (lactation) OR (teratogenic) OR (genotoxic) OR (mutagenic) OR (abuse) OR (misuse) OR (off label use) OR (medication errors) OR (interactions) OR (overdose) OR (pediatric population) OR (elderly population) OR (lack of efficacy))"
)

// previewMaxArticles begrenzt die synchrone Sofort-Suche.
const previewMaxArticles = 10

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("HTTP-Request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	}
}

func main() {
	logging, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logging.Sync()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal("Config load error", zap.Error(err))
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		logging.Fatal("Failed to connect to database", zap.Error(err))
	}
	logging.Info("Successfully connected to pharmacovigilance database.")

	logging.Info("Running database auto-migration...")
	if err := db.AutoMigrate(
		&models.Product{},
		&models.SearchJob{},
		&models.Article{},
		&models.SearchResult{},
		&models.Setting{},
	); err != nil {
		logging.Fatal("Auto-migration failed", zap.Error(err))
	}

	seedDefaultProducts(db, logging)
	seedSettings(db, cfg, logging)

	// Setup Providers
	literature := pubmed.NewFetcher(cfg, logging)
	fullText := pmc.NewFetcher(cfg, logging)

	// Setup Services
	normalizer := services.NewTextNormalizer(logging)
	analyzer := services.NewAnalyzer(cfg, logging)
	if !analyzer.Enabled() {
		logging.Warn("OPENAI_API_KEY fehlt, Klassifikation ist deaktiviert")
	}
	monitor := services.NewMonitorService(cfg, db, logging, literature, fullText, analyzer, normalizer)
	tracker := services.NewTrackerService(cfg, logging)

	var archive *storage.ArchiveStore
	if cfg.ArchiveEnabled() {
		archive, err = storage.NewArchiveStore(cfg)
		if err != nil {
			logging.Warn("S3-Archiv nicht verfügbar, Tracker werden nur lokal abgelegt", zap.Error(err))
			archive = nil
		}
	}

	// Setup Router
	router := gin.New()
	router.Use(requestLogger(logging), gin.Recovery())
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/health", func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.Ping()
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	// Setup Routes
	api := router.Group("/api")
	setupProductRoutes(api, db, logging)
	setupSearchRoutes(api, db, cfg, monitor, logging)
	setupExportRoutes(api, db, cfg, tracker, archive, logging)
	setupConfigRoutes(api, db, cfg, literature, analyzer, logging)

	// Setup Cron
	var cronScheduler *cron.Cron
	if cfg.WeeklySearchCron != "" {
		cronScheduler = cron.New()
		if _, err := cronScheduler.AddFunc(cfg.WeeklySearchCron, monitor.RunWeeklySearch); err != nil {
			logging.Fatal("Invalid WEEKLY_SEARCH_CRON expression", zap.Error(err))
		}
		cronScheduler.Start()
		logging.Info("Weekly search scheduled", zap.String("cron", cfg.WeeklySearchCron))
	}

	logging.Info("Starting server", zap.String("port", cfg.HTTPPort))
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Fatal("Failed to run server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logging.Info("Shutdown signal received, stopping server...")

	if cronScheduler != nil {
		cronScheduler.Stop()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error("Server shutdown failed", zap.Error(err))
	}
}

// productPayload ist der JSON-Body für Anlage und Import von Produkten.
// Der Import akzeptiert zusätzlich den Kurzschlüssel "routes".
type productPayload struct {
	INN                    string   `json:"inn"`
	SearchStrategy         string   `json:"search_strategy"`
	IsEUProduct            bool     `json:"is_eu_product"`
	Territories            []string `json:"territories"`
	DosageForms            []string `json:"dosage_forms"`
	RoutesOfAdministration []string `json:"routes_of_administration"`
	Routes                 []string `json:"routes"`
	MarketingStatus        string   `json:"marketing_status"`
}

func productFromPayload(p productPayload) models.Product {
	status := p.MarketingStatus
	if status == "" {
		status = "Active"
	}
	routes := p.RoutesOfAdministration
	if routes == nil {
		routes = p.Routes
	}
	return models.Product{
		INN:                    p.INN,
		SearchStrategy:         p.SearchStrategy,
		IsEUProduct:            p.IsEUProduct,
		Territories:            jsonList(p.Territories),
		DosageForms:            jsonList(p.DosageForms),
		RoutesOfAdministration: jsonList(routes),
		MarketingStatus:        status,
	}
}

func setupProductRoutes(rg *gin.RouterGroup, db *gorm.DB, log *zap.Logger) {
	products := rg.Group("/products")

	products.GET("", func(c *gin.Context) {
		query := db.Model(&models.Product{})
		if eu := c.Query("eu"); eu != "" {
			isEU, err := strconv.ParseBool(eu)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid eu filter, expected true or false"})
				return
			}
			query = query.Where("is_eu_product = ?", isEU)
		}

		var list []models.Product
		if err := query.Order("inn asc").Find(&list).Error; err != nil {
			log.Error("Database query for products failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "database error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "data": list, "count": len(list)})
	})

	products.GET("/:id", func(c *gin.Context) {
		var product models.Product
		if err := db.First(&product, c.Param("id")).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "product not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "database error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "data": product})
	})

	products.POST("", func(c *gin.Context) {
		var payload productPayload
		if err := c.ShouldBindJSON(&payload); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request body"})
			return
		}
		if payload.INN == "" || payload.SearchStrategy == "" {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "inn and search_strategy are required"})
			return
		}

		// INN ist der Identitätsschlüssel, Duplikate werden abgewiesen.
		var existing models.Product
		err := db.Where("inn = ?", payload.INN).First(&existing).Error
		if err == nil {
			c.JSON(http.StatusConflict, gin.H{"success": false, "error": "product with INN \"" + payload.INN + "\" already exists"})
			return
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "database error"})
			return
		}

		product := productFromPayload(payload)
		if err := db.Create(&product).Error; err != nil {
			log.Error("Failed to create product", zap.String("inn", payload.INN), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "failed to create product"})
			return
		}
		log.Info("Product created", zap.String("inn", product.INN))
		c.JSON(http.StatusCreated, gin.H{"success": true, "data": product, "message": "Product created successfully"})
	})

	products.PUT("/:id", func(c *gin.Context) {
		var product models.Product
		if err := db.First(&product, c.Param("id")).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "product not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "database error"})
			return
		}

		// Nur die gesendeten Felder übernehmen.
		var payload struct {
			INN                    *string   `json:"inn"`
			SearchStrategy         *string   `json:"search_strategy"`
			IsEUProduct            *bool     `json:"is_eu_product"`
			Territories            *[]string `json:"territories"`
			DosageForms            *[]string `json:"dosage_forms"`
			RoutesOfAdministration *[]string `json:"routes_of_administration"`
			MarketingStatus        *string   `json:"marketing_status"`
		}
		if err := c.ShouldBindJSON(&payload); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request body"})
			return
		}

		updates := map[string]interface{}{}
		if payload.INN != nil {
			updates["inn"] = *payload.INN
		}
		if payload.SearchStrategy != nil {
			updates["search_strategy"] = *payload.SearchStrategy
		}
		if payload.IsEUProduct != nil {
			updates["is_eu_product"] = *payload.IsEUProduct
		}
		if payload.Territories != nil {
			updates["territories"] = jsonList(*payload.Territories)
		}
		if payload.DosageForms != nil {
			updates["dosage_forms"] = jsonList(*payload.DosageForms)
		}
		if payload.RoutesOfAdministration != nil {
			updates["routes_of_administration"] = jsonList(*payload.RoutesOfAdministration)
		}
		if payload.MarketingStatus != nil {
			updates["marketing_status"] = *payload.MarketingStatus
		}
		if len(updates) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "no updatable fields provided"})
			return
		}

		if err := db.Model(&product).Updates(updates).Error; err != nil {
			log.Error("Failed to update product", zap.Uint("id", product.ID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "failed to update product"})
			return
		}
		log.Info("Product updated", zap.String("inn", product.INN))
		c.JSON(http.StatusOK, gin.H{"success": true, "data": product, "message": "Product updated successfully"})
	})

	products.DELETE("/:id", func(c *gin.Context) {
		var product models.Product
		if err := db.First(&product, c.Param("id")).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "product not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "database error"})
			return
		}
		if err := db.Delete(&product).Error; err != nil {
			log.Error("Failed to delete product", zap.Uint("id", product.ID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "failed to delete product"})
			return
		}
		log.Info("Product deleted", zap.String("inn", product.INN))
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "Product \"" + product.INN + "\" deleted successfully"})
	})

	products.POST("/import", func(c *gin.Context) {
		var payload []productPayload
		if err := c.ShouldBindJSON(&payload); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "expected a JSON array of products"})
			return
		}

		imported := 0
		skipped := 0
		var importErrors []string
		for _, item := range payload {
			if item.INN == "" || item.SearchStrategy == "" {
				importErrors = append(importErrors, "missing inn or search_strategy for \""+item.INN+"\"")
				continue
			}
			var existing models.Product
			err := db.Where("inn = ?", item.INN).First(&existing).Error
			if err == nil {
				skipped++
				continue
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				importErrors = append(importErrors, "lookup failed for \""+item.INN+"\": "+err.Error())
				continue
			}

			product := productFromPayload(item)
			if err := db.Create(&product).Error; err != nil {
				importErrors = append(importErrors, "import failed for \""+item.INN+"\": "+err.Error())
				continue
			}
			imported++
		}

		log.Info("Product import finished", zap.Int("imported", imported), zap.Int("skipped", skipped), zap.Int("errors", len(importErrors)))
		c.JSON(http.StatusOK, gin.H{
			"success":  true,
			"imported": imported,
			"skipped":  skipped,
			"errors":   importErrors,
		})
	})
}

func setupSearchRoutes(rg *gin.RouterGroup, db *gorm.DB, cfg *config.Config, monitor *services.MonitorService, log *zap.Logger) {
	search := rg.Group("/search")

	search.POST("/execute", func(c *gin.Context) {
		var req struct {
			ProductID uint   `json:"product_id"`
			DateFrom  string `json:"date_from"`
			DateTo    string `json:"date_to"`
		}
		if err := c.ShouldBindJSON(&req); err != nil || req.ProductID == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "product_id is required"})
			return
		}

		var product models.Product
		if err := db.First(&product, req.ProductID).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "product not found"})
			return
		}

		from, err := parseDate(req.DateFrom)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid date_from, expected YYYY-MM-DD"})
			return
		}
		to, err := parseDate(req.DateTo)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid date_to, expected YYYY-MM-DD"})
			return
		}

		job, err := monitor.StartProductSearch(product, from, to)
		if err != nil {
			log.Error("Failed to start search", zap.String("inn", product.INN), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "failed to start search"})
			return
		}
		log.Info("Search job created", zap.Uint("job_id", job.ID), zap.String("inn", product.INN))
		c.JSON(http.StatusAccepted, gin.H{
			"success": true,
			"job_id":  job.ID,
			"status":  job.Status,
			"message": "Search started for " + product.INN + ".",
		})
	})

	search.POST("/batch", func(c *gin.Context) {
		var req struct {
			ProductIDs []uint `json:"product_ids"`
			DateFrom   string `json:"date_from"`
			DateTo     string `json:"date_to"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request body"})
			return
		}

		var products []models.Product
		query := db
		if len(req.ProductIDs) > 0 {
			query = query.Where("id IN ?", req.ProductIDs)
		}
		if err := query.Find(&products).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "database error"})
			return
		}
		if len(products) == 0 {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "no products found"})
			return
		}

		from, err := parseDate(req.DateFrom)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid date_from, expected YYYY-MM-DD"})
			return
		}
		to, err := parseDate(req.DateTo)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid date_to, expected YYYY-MM-DD"})
			return
		}

		job, err := monitor.StartBatchSearch(products, from, to)
		if err != nil {
			log.Error("Failed to start batch search", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "failed to start batch search"})
			return
		}
		log.Info("Batch search job created", zap.Uint("job_id", job.ID), zap.Int("products", len(products)))
		c.JSON(http.StatusAccepted, gin.H{
			"success":        true,
			"job_id":         job.ID,
			"status":         job.Status,
			"total_products": len(products),
		})
	})

	search.GET("/jobs", func(c *gin.Context) {
		page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
		if page < 1 {
			page = 1
		}
		if limit < 1 || limit > 100 {
			limit = 20
		}

		var total int64
		if err := db.Model(&models.SearchJob{}).Count(&total).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "database error"})
			return
		}

		var jobs []models.SearchJob
		if err := db.Order("created_at desc").Offset((page - 1) * limit).Limit(limit).Find(&jobs).Error; err != nil {
			log.Error("Database query for search jobs failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "database error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "data": jobs, "count": total, "page": page, "limit": limit})
	})

	search.GET("/jobs/:id", func(c *gin.Context) {
		var job models.SearchJob
		if err := db.First(&job, c.Param("id")).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "search job not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "database error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "data": job, "progress": job.Progress()})
	})

	search.GET("/jobs/:id/results", func(c *gin.Context) {
		var job models.SearchJob
		if err := db.First(&job, c.Param("id")).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "search job not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "database error"})
			return
		}

		var results []models.SearchResult
		if err := db.Preload("Article").Preload("Product").
			Where("search_job_id = ?", job.ID).Find(&results).Error; err != nil {
			log.Error("Database query for search results failed", zap.Uint("job_id", job.ID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "database error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "job": job, "results": results, "count": len(results)})
	})

	search.PUT("/results/:id", func(c *gin.Context) {
		var result models.SearchResult
		if err := db.First(&result, c.Param("id")).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "search result not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "database error"})
			return
		}

		// Manuelle Review-Felder; nur mitgesendete Werte überschreiben.
		var payload struct {
			IsICSR                   *bool   `json:"is_icsr"`
			ICSRDescription          *string `json:"icsr_description"`
			OwnershipExcluded        *bool   `json:"ownership_excluded"`
			ExclusionReason          *string `json:"exclusion_reason"`
			IsDuplicate              *bool   `json:"is_duplicate"`
			MinimumCriteriaAvailable *bool   `json:"minimum_criteria_available"`
			OtherSafetyInfo          *bool   `json:"other_safety_info"`
			SafetyInfoJustification  *string `json:"safety_info_justification"`
			ReviewedBy               *string `json:"reviewed_by"`
			QCBy                     *string `json:"qc_by"`
			Comments                 *string `json:"comments"`
			DateSentToProvider       *string `json:"date_sent_to_provider"`
			ICSRCode                 *string `json:"icsr_code"`
		}
		if err := c.ShouldBindJSON(&payload); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request body"})
			return
		}

		updates := map[string]interface{}{}
		if payload.IsICSR != nil {
			updates["is_icsr"] = *payload.IsICSR
		}
		if payload.ICSRDescription != nil {
			updates["icsr_description"] = *payload.ICSRDescription
		}
		if payload.OwnershipExcluded != nil {
			updates["ownership_excluded"] = *payload.OwnershipExcluded
		}
		if payload.ExclusionReason != nil {
			updates["exclusion_reason"] = *payload.ExclusionReason
		}
		if payload.IsDuplicate != nil {
			updates["is_duplicate"] = *payload.IsDuplicate
		}
		if payload.MinimumCriteriaAvailable != nil {
			updates["minimum_criteria_available"] = *payload.MinimumCriteriaAvailable
		}
		if payload.OtherSafetyInfo != nil {
			updates["other_safety_info"] = *payload.OtherSafetyInfo
		}
		if payload.SafetyInfoJustification != nil {
			updates["safety_info_justification"] = *payload.SafetyInfoJustification
		}
		if payload.ReviewedBy != nil {
			updates["reviewed_by"] = *payload.ReviewedBy
		}
		if payload.QCBy != nil {
			updates["qc_by"] = *payload.QCBy
		}
		if payload.Comments != nil {
			updates["comments"] = *payload.Comments
		}
		if payload.ICSRCode != nil {
			updates["icsr_code"] = *payload.ICSRCode
		}
		if payload.DateSentToProvider != nil {
			sent, err := parseDate(*payload.DateSentToProvider)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid date_sent_to_provider, expected YYYY-MM-DD"})
				return
			}
			updates["date_sent_to_provider"] = sent
		}
		if len(updates) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "no updatable fields provided"})
			return
		}

		if err := db.Model(&result).Updates(updates).Error; err != nil {
			log.Error("Failed to update search result", zap.Uint("id", result.ID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "failed to update search result"})
			return
		}

		if err := db.Preload("Article").Preload("Product").First(&result, result.ID).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "database error"})
			return
		}
		log.Info("Search result updated", zap.Uint("id", result.ID))
		c.JSON(http.StatusOK, gin.H{"success": true, "data": result, "message": "Search result updated successfully"})
	})

	// Synchrone Sofort-Suche ohne Persistenz, für die Dashboard-Vorschau.
	search.POST("/pubmed", func(c *gin.Context) {
		var req struct {
			ProductID uint   `json:"product_id"`
			StartDate string `json:"start_date"`
			EndDate   string `json:"end_date"`
		}
		if err := c.ShouldBindJSON(&req); err != nil || req.ProductID == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "product_id is required"})
			return
		}

		var product models.Product
		if err := db.First(&product, req.ProductID).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "product not found"})
			return
		}

		from, err := parseDate(req.StartDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid start_date, expected YYYY-MM-DD"})
			return
		}
		to, err := parseDate(req.EndDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid end_date, expected YYYY-MM-DD"})
			return
		}

		previews, err := monitor.Preview(c.Request.Context(), product, from, to, previewMaxArticles)
		if err != nil {
			log.Error("Preview search failed", zap.String("inn", product.INN), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
			return
		}

		icsrCount := 0
		highConfidence := 0
		articles := make([]gin.H, 0, len(previews))
		for _, p := range previews {
			if p.Analysis.IsICSR {
				icsrCount++
			}
			if p.Analysis.ConfidenceScore >= cfg.ConfidenceThresholdHigh {
				highConfidence++
			}
			articles = append(articles, gin.H{
				"pmid":             p.Article.PMID,
				"title":            p.Article.Title,
				"abstract":         p.Article.Abstract,
				"pub_date":         p.Article.PublicationYear,
				"authors":          p.Article.Authors,
				"journal":          p.Article.Journal,
				"is_icsr":          p.Analysis.IsICSR,
				"confidence_score": p.Analysis.ConfidenceScore,
				"ai_analysis":      p.Analysis,
			})
		}
		c.JSON(http.StatusOK, gin.H{
			"success":  true,
			"articles": articles,
			"summary": gin.H{
				"total":           len(previews),
				"icsr_count":      icsrCount,
				"high_confidence": highConfidence,
			},
		})
	})
}

func setupExportRoutes(rg *gin.RouterGroup, db *gorm.DB, cfg *config.Config, tracker *services.TrackerService, archive *storage.ArchiveStore, log *zap.Logger) {
	export := rg.Group("/export")

	export.POST("/excel/:job_id", func(c *gin.Context) {
		var job models.SearchJob
		if err := db.First(&job, c.Param("job_id")).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "search job not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "database error"})
			return
		}

		var results []models.SearchResult
		if err := db.Preload("Article").Preload("Product").
			Where("search_job_id = ?", job.ID).Find(&results).Error; err != nil {
			log.Error("Database query for export failed", zap.Uint("job_id", job.ID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "database error"})
			return
		}

		// Body ist optional, nur week_number wird gelesen.
		var payload struct {
			WeekNumber string `json:"week_number"`
		}
		_ = c.ShouldBindJSON(&payload)
		week := payload.WeekNumber
		if week == "" {
			week = services.WeekNumber(time.Now())
		}

		path, err := tracker.GenerateTracker(&job, results, week)
		if err != nil {
			log.Error("Tracker generation failed", zap.Uint("job_id", job.ID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "failed to generate tracker"})
			return
		}

		if archive != nil {
			if data, err := os.ReadFile(path); err == nil {
				key := "exports/" + filepath.Base(path)
				if link, err := archive.UploadFile(c.Request.Context(), key, data); err != nil {
					log.Warn("Tracker archival failed", zap.String("key", key), zap.Error(err))
				} else {
					log.Info("Tracker archived", zap.String("link", link))
				}
			}
		}

		c.FileAttachment(path, filepath.Base(path))
	})

	export.GET("/files", func(c *gin.Context) {
		type exportFile struct {
			Filename string    `json:"filename"`
			Size     int64     `json:"size"`
			Modified time.Time `json:"modified"`
		}

		entries, err := os.ReadDir(cfg.ExportsDir)
		if err != nil {
			if os.IsNotExist(err) {
				c.JSON(http.StatusOK, gin.H{"success": true, "data": []exportFile{}, "count": 0})
				return
			}
			log.Error("Failed to list exports directory", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "failed to list exports"})
			return
		}

		files := make([]exportFile, 0, len(entries))
		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".xlsx") {
				continue
			}
			info, err := entry.Info()
			if err != nil {
				continue
			}
			files = append(files, exportFile{Filename: entry.Name(), Size: info.Size(), Modified: info.ModTime()})
		}
		sort.Slice(files, func(i, j int) bool { return files[i].Modified.After(files[j].Modified) })
		c.JSON(http.StatusOK, gin.H{"success": true, "data": files, "count": len(files)})
	})
}

func setupConfigRoutes(rg *gin.RouterGroup, db *gorm.DB, cfg *config.Config, literature *pubmed.Fetcher, analyzer *services.Analyzer, log *zap.Logger) {
	conf := rg.Group("/config")

	conf.GET("", func(c *gin.Context) {
		var settings []models.Setting
		if err := db.Order("key asc").Find(&settings).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "database error"})
			return
		}
		values := gin.H{}
		for i := range settings {
			values[settings[i].Key] = settings[i].MaskedValue()
		}

		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"data": gin.H{
				"pubmed_configured":           cfg.PubMedAPIKey != "",
				"openai_configured":           cfg.OpenAIAPIKey != "",
				"max_articles_per_search":     cfg.MaxArticlesPerSearch,
				"confidence_threshold_high":   cfg.ConfidenceThresholdHigh,
				"confidence_threshold_medium": cfg.ConfidenceThresholdMedium,
				"settings":                    values,
			},
		})
	})

	conf.POST("/test-pubmed", func(c *gin.Context) {
		if err := literature.TestConnection(c.Request.Context()); err != nil {
			log.Warn("PubMed connection test failed", zap.Error(err))
			c.JSON(http.StatusOK, gin.H{"success": false, "message": "PubMed connection failed", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "PubMed connection successful"})
	})

	conf.POST("/test-openai", func(c *gin.Context) {
		if err := analyzer.TestConnection(c.Request.Context()); err != nil {
			log.Warn("OpenAI connection test failed", zap.Error(err))
			c.JSON(http.StatusOK, gin.H{"success": false, "message": "OpenAI connection failed", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "OpenAI connection successful"})
	})
}

func seedDefaultProducts(db *gorm.DB, logger *zap.Logger) {
	var count int64
	db.Model(&models.Product{}).Count(&count)
	if count > 0 {
		return
	}
	products := []models.Product{
		{
			INN:                    "Amlodipine",
			SearchStrategy:         "Amlodipine AND " + caseReportFilter,
			Territories:            jsonList([]string{"US", "UK", "DE", "FR"}),
			DosageForms:            jsonList([]string{"Tablet", "Capsule"}),
			RoutesOfAdministration: jsonList([]string{"Oral"}),
			MarketingStatus:        "Active",
		},
		{
			INN:                    "Metformin",
			SearchStrategy:         "Metformin AND " + caseReportFilter,
			Territories:            jsonList([]string{"US", "CA", "UK"}),
			DosageForms:            jsonList([]string{"Tablet"}),
			RoutesOfAdministration: jsonList([]string{"Oral"}),
			MarketingStatus:        "Active",
		},
		{
			INN:                    "Lisinopril",
			SearchStrategy:         "Lisinopril AND " + caseReportFilter,
			Territories:            jsonList([]string{"US", "UK", "AU"}),
			DosageForms:            jsonList([]string{"Tablet"}),
			RoutesOfAdministration: jsonList([]string{"Oral"}),
			MarketingStatus:        "Active",
		},
		{
			INN:                    "Omeprazole",
			SearchStrategy:         "Omeprazole AND " + caseReportFilter,
			Territories:            jsonList([]string{"US", "UK", "DE", "FR", "ES"}),
			DosageForms:            jsonList([]string{"Capsule", "Tablet"}),
			RoutesOfAdministration: jsonList([]string{"Oral"}),
			MarketingStatus:        "Active",
		},
		{
			INN:                    "Simvastatin",
			SearchStrategy:         "Simvastatin AND " + caseReportFilter,
			Territories:            jsonList([]string{"US", "CA", "UK"}),
			DosageForms:            jsonList([]string{"Tablet"}),
			RoutesOfAdministration: jsonList([]string{"Oral"}),
			MarketingStatus:        "Active",
		},
		{
			INN:                    "Cisatracurium",
			SearchStrategy:         `(Cisatracurium OR "cisatracurium besilate" OR "cisatracurium besylate") AND ` + extendedFilter,
			IsEUProduct:            true,
			Territories:            jsonList([]string{"DE", "FR", "IT", "ES", "NL"}),
			DosageForms:            jsonList([]string{"Injection"}),
			RoutesOfAdministration: jsonList([]string{"Intravenous"}),
			MarketingStatus:        "Active",
		},
		{
			INN:                    "Methylprednisolone",
			SearchStrategy:         "Methylprednisolone AND " + extendedFilter,
			IsEUProduct:            true,
			Territories:            jsonList([]string{"DE", "FR", "IT", "ES", "UK"}),
			DosageForms:            jsonList([]string{"Injection", "Tablet"}),
			RoutesOfAdministration: jsonList([]string{"Intravenous", "Oral"}),
			MarketingStatus:        "Active",
		},
	}
	if err := db.Create(&products).Error; err != nil {
		logger.Warn("Failed to seed default products", zap.Error(err))
	} else {
		logger.Info("Default products seeded.", zap.Int("count", len(products)))
	}
}

// seedSettings spiegelt die Laufzeit-Konfiguration in die settings-Tabelle,
// damit /api/config sie maskiert ausliefern kann.
func seedSettings(db *gorm.DB, cfg *config.Config, logger *zap.Logger) {
	settings := []models.Setting{
		{Key: "pubmed_api_key", Value: cfg.PubMedAPIKey, Description: "NCBI Entrez API-Key", IsSecret: true},
		{Key: "pubmed_email", Value: cfg.PubMedEmail, Description: "Kontaktadresse für Entrez-Anfragen"},
		{Key: "openai_api_key", Value: cfg.OpenAIAPIKey, Description: "OpenAI API-Key", IsSecret: true},
		{Key: "openai_model", Value: cfg.OpenAIModel, Description: "Modell für die ICSR-Klassifikation"},
		{Key: "mah_name", Value: cfg.MAHName, Description: "Zulassungsinhaber für die Ownership-Analyse"},
		{Key: "weekly_search_cron", Value: cfg.WeeklySearchCron, Description: "Zeitplan der wöchentlichen Batch-Suche"},
		{Key: "exports_dir", Value: cfg.ExportsDir, Description: "Ablageverzeichnis für Tracker-Exporte"},
	}
	for i := range settings {
		err := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "description", "is_secret"}),
		}).Create(&settings[i]).Error
		if err != nil {
			logger.Warn("Failed to seed setting", zap.String("key", settings[i].Key), zap.Error(err))
		}
	}
}

func jsonList(values []string) datatypes.JSON {
	if values == nil {
		values = []string{}
	}
	b, _ := json.Marshal(values)
	return datatypes.JSON(b)
}

func parseDate(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
