package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/mrik-soulpage/pharmacovigilance/config"
	"github.com/mrik-soulpage/pharmacovigilance/models"
	"github.com/mrik-soulpage/pharmacovigilance/providers/pubmed"
	"github.com/mrik-soulpage/pharmacovigilance/services"
)

func qm(query string) string {
	return regexp.QuoteMeta(query)
}

// setupTestApp verdrahtet die API-Routen gegen eine gemockte Datenbank.
// cfg wird per Pointer geteilt, Tests dürfen z.B. PubMedBaseURL umbiegen.
func setupTestApp(t *testing.T) (*gin.Engine, sqlmock.Sqlmock, *config.Config) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	cfg := &config.Config{
		PubMedAPIKey:              "key",
		PubMedTool:                "pv-literature-monitor",
		PubMedRateLimit:           1000,
		MaxArticlesPerSearch:      100,
		ConfidenceThresholdHigh:   0.85,
		ConfidenceThresholdMedium: 0.60,
		MAHName:                   "Hikma",
		ExportsDir:                t.TempDir(),
	}

	logging := zap.NewNop()
	literature := pubmed.NewFetcher(cfg, logging)
	normalizer := services.NewTextNormalizer(logging)
	analyzer := services.NewAnalyzer(cfg, logging)
	monitor := services.NewMonitorService(cfg, gdb, logging, literature, nil, analyzer, normalizer)
	tracker := services.NewTrackerService(cfg, logging)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	api := router.Group("/api")
	setupProductRoutes(api, gdb, logging)
	setupSearchRoutes(api, gdb, cfg, monitor, logging)
	setupExportRoutes(api, gdb, cfg, tracker, nil, logging)
	setupConfigRoutes(api, gdb, cfg, literature, analyzer, logging)
	return router, mock, cfg
}

func doRequest(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), dst))
}

func TestListProducts(t *testing.T) {
	router, mock, _ := setupTestApp(t)

	mock.ExpectQuery(qm(`SELECT * FROM "products" ORDER BY inn asc`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "inn", "search_strategy", "is_eu_product", "marketing_status"}).
			AddRow(1, "Amlodipine", "Amlodipine AND (case report)", false, "Active").
			AddRow(2, "Cisatracurium", "Cisatracurium AND (case report)", true, "Active"))

	w := doRequest(router, http.MethodGet, "/api/products", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Success bool             `json:"success"`
		Count   int              `json:"count"`
		Data    []models.Product `json:"data"`
	}
	decodeBody(t, w, &resp)
	assert.True(t, resp.Success)
	assert.Equal(t, 2, resp.Count)
	require.Len(t, resp.Data, 2)
	assert.Equal(t, "Amlodipine", resp.Data[0].INN)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListProductsEUFilter(t *testing.T) {
	router, mock, _ := setupTestApp(t)

	t.Run("filter applied", func(t *testing.T) {
		mock.ExpectQuery(qm(`SELECT * FROM "products" WHERE is_eu_product = $1 ORDER BY inn asc`)).
			WithArgs(true).
			WillReturnRows(sqlmock.NewRows([]string{"id", "inn"}).AddRow(2, "Cisatracurium"))

		w := doRequest(router, http.MethodGet, "/api/products?eu=true", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("invalid filter value", func(t *testing.T) {
		w := doRequest(router, http.MethodGet, "/api/products?eu=banana", "")
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "invalid eu filter")
	})
}

func TestGetProductNotFound(t *testing.T) {
	router, mock, _ := setupTestApp(t)

	mock.ExpectQuery(qm(`SELECT * FROM "products" WHERE "products"."id" = $1`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	w := doRequest(router, http.MethodGet, "/api/products/999", "")
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "product not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateProduct(t *testing.T) {
	t.Run("missing fields", func(t *testing.T) {
		router, _, _ := setupTestApp(t)
		w := doRequest(router, http.MethodPost, "/api/products", `{"inn":"Amlodipine"}`)
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "inn and search_strategy are required")
	})

	t.Run("duplicate inn", func(t *testing.T) {
		router, mock, _ := setupTestApp(t)
		mock.ExpectQuery(qm(`SELECT * FROM "products" WHERE inn = $1`)).
			WithArgs("Amlodipine", 1).
			WillReturnRows(sqlmock.NewRows([]string{"id", "inn"}).AddRow(1, "Amlodipine"))

		w := doRequest(router, http.MethodPost, "/api/products",
			`{"inn":"Amlodipine","search_strategy":"Amlodipine AND (case report)"}`)
		require.Equal(t, http.StatusConflict, w.Code)
		assert.Contains(t, w.Body.String(), `already exists`)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("created", func(t *testing.T) {
		router, mock, _ := setupTestApp(t)
		mock.ExpectQuery(qm(`SELECT * FROM "products" WHERE inn = $1`)).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))
		mock.ExpectBegin()
		mock.ExpectQuery(qm(`INSERT INTO "products"`)).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(3))
		mock.ExpectCommit()

		w := doRequest(router, http.MethodPost, "/api/products",
			`{"inn":"Lisinopril","search_strategy":"Lisinopril AND (case report)","territories":["US"]}`)
		require.Equal(t, http.StatusCreated, w.Code)

		var resp struct {
			Success bool           `json:"success"`
			Message string         `json:"message"`
			Data    models.Product `json:"data"`
		}
		decodeBody(t, w, &resp)
		assert.True(t, resp.Success)
		assert.Equal(t, "Product created successfully", resp.Message)
		assert.Equal(t, "Lisinopril", resp.Data.INN)
		assert.Equal(t, "Active", resp.Data.MarketingStatus)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestUpdateProductWithoutFields(t *testing.T) {
	router, mock, _ := setupTestApp(t)

	mock.ExpectQuery(qm(`SELECT * FROM "products" WHERE "products"."id" = $1`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "inn", "search_strategy"}).
			AddRow(1, "Amlodipine", "Amlodipine AND (case report)"))

	w := doRequest(router, http.MethodPut, "/api/products/1", `{}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "no updatable fields provided")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecuteSearch(t *testing.T) {
	t.Run("missing product id", func(t *testing.T) {
		router, _, _ := setupTestApp(t)
		w := doRequest(router, http.MethodPost, "/api/search/execute", `{}`)
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "product_id is required")
	})

	t.Run("invalid date", func(t *testing.T) {
		router, mock, _ := setupTestApp(t)
		mock.ExpectQuery(qm(`SELECT * FROM "products" WHERE "products"."id" = $1`)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "inn"}).AddRow(1, "Amlodipine"))

		w := doRequest(router, http.MethodPost, "/api/search/execute",
			`{"product_id":1,"date_from":"02.02.2026"}`)
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "invalid date_from")
	})

	t.Run("job accepted", func(t *testing.T) {
		router, mock, _ := setupTestApp(t)
		mock.ExpectQuery(qm(`SELECT * FROM "products" WHERE "products"."id" = $1`)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "inn", "search_strategy"}).
				AddRow(1, "Amlodipine", "Amlodipine AND (case report)"))
		mock.ExpectBegin()
		mock.ExpectQuery(qm(`INSERT INTO "search_jobs"`)).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(11))
		mock.ExpectCommit()

		w := doRequest(router, http.MethodPost, "/api/search/execute",
			`{"product_id":1,"date_from":"2026-02-02","date_to":"2026-02-09"}`)
		require.Equal(t, http.StatusAccepted, w.Code)

		var resp struct {
			Success bool   `json:"success"`
			JobID   uint   `json:"job_id"`
			Status  string `json:"status"`
			Message string `json:"message"`
		}
		decodeBody(t, w, &resp)
		assert.True(t, resp.Success)
		assert.Equal(t, uint(11), resp.JobID)
		assert.Equal(t, models.JobStatusRunning, resp.Status)
		assert.Equal(t, "Search started for Amlodipine.", resp.Message)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestBatchSearchWithoutProducts(t *testing.T) {
	router, mock, _ := setupTestApp(t)

	mock.ExpectQuery(qm(`SELECT * FROM "products" WHERE id IN ($1,$2)`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	w := doRequest(router, http.MethodPost, "/api/search/batch", `{"product_ids":[4,5]}`)
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "no products found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListJobsPagination(t *testing.T) {
	router, mock, _ := setupTestApp(t)

	mock.ExpectQuery(qm(`SELECT count(*) FROM "search_jobs"`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))
	mock.ExpectQuery(qm(`SELECT * FROM "search_jobs" ORDER BY created_at desc`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "status"}).
			AddRow(6, models.JobStatusCompleted).
			AddRow(5, models.JobStatusFailed))

	w := doRequest(router, http.MethodGet, "/api/search/jobs?page=2&limit=5", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Success bool               `json:"success"`
		Count   int64              `json:"count"`
		Page    int                `json:"page"`
		Limit   int                `json:"limit"`
		Data    []models.SearchJob `json:"data"`
	}
	decodeBody(t, w, &resp)
	assert.True(t, resp.Success)
	assert.EqualValues(t, 7, resp.Count)
	assert.Equal(t, 2, resp.Page)
	assert.Equal(t, 5, resp.Limit)
	assert.Len(t, resp.Data, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetJobWithProgress(t *testing.T) {
	router, mock, _ := setupTestApp(t)

	mock.ExpectQuery(qm(`SELECT * FROM "search_jobs" WHERE "search_jobs"."id" = $1`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "status", "total_articles", "processed_articles"}).
			AddRow(3, models.JobStatusRunning, 10, 5))

	w := doRequest(router, http.MethodGet, "/api/search/jobs/3", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Success  bool             `json:"success"`
		Progress float64          `json:"progress"`
		Data     models.SearchJob `json:"data"`
	}
	decodeBody(t, w, &resp)
	assert.True(t, resp.Success)
	assert.InDelta(t, 50, resp.Progress, 1e-9)
	assert.Equal(t, models.JobStatusRunning, resp.Data.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateSearchResult(t *testing.T) {
	t.Run("no fields", func(t *testing.T) {
		router, mock, _ := setupTestApp(t)
		mock.ExpectQuery(qm(`SELECT * FROM "search_results" WHERE "search_results"."id" = $1`)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "search_job_id", "product_id", "article_id"}).
				AddRow(1, 3, 1, 2))

		w := doRequest(router, http.MethodPut, "/api/search/results/1", `{}`)
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "no updatable fields provided")
	})

	t.Run("review fields persisted", func(t *testing.T) {
		router, mock, _ := setupTestApp(t)
		mock.ExpectQuery(qm(`SELECT * FROM "search_results" WHERE "search_results"."id" = $1`)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "search_job_id", "product_id", "article_id"}).
				AddRow(1, 3, 1, 2))
		mock.ExpectBegin()
		mock.ExpectExec(qm(`UPDATE "search_results" SET`)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()
		// Neu laden inklusive Preloads für die Antwort.
		mock.ExpectQuery(qm(`SELECT * FROM "search_results" WHERE "search_results"."id" = $1`)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "search_job_id", "product_id", "article_id", "is_icsr", "reviewed_by"}).
				AddRow(1, 3, 1, 2, true, "Jane Doe"))
		mock.ExpectQuery(qm(`SELECT * FROM "articles" WHERE "articles"."id"`)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "pmid", "title"}).
				AddRow(2, "38012345", "Fallbericht"))
		mock.ExpectQuery(qm(`SELECT * FROM "products" WHERE "products"."id"`)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "inn"}).AddRow(1, "Amlodipine"))

		w := doRequest(router, http.MethodPut, "/api/search/results/1",
			`{"is_icsr":true,"reviewed_by":"Jane Doe"}`)
		require.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Success bool                `json:"success"`
			Message string              `json:"message"`
			Data    models.SearchResult `json:"data"`
		}
		decodeBody(t, w, &resp)
		assert.True(t, resp.Success)
		assert.Equal(t, "Search result updated successfully", resp.Message)
		require.NotNil(t, resp.Data.IsICSR)
		assert.True(t, *resp.Data.IsICSR)
		assert.Equal(t, "Jane Doe", resp.Data.ReviewedBy)
		assert.Equal(t, "38012345", resp.Data.Article.PMID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("invalid provider date", func(t *testing.T) {
		router, mock, _ := setupTestApp(t)
		mock.ExpectQuery(qm(`SELECT * FROM "search_results" WHERE "search_results"."id" = $1`)).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))

		w := doRequest(router, http.MethodPut, "/api/search/results/1",
			`{"date_sent_to_provider":"15.03.2026"}`)
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "invalid date_sent_to_provider")
	})
}

func TestPreviewSearchEndpoint(t *testing.T) {
	router, mock, cfg := setupTestApp(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"esearchresult":{"count":"0","idlist":[]}}`)
	}))
	defer srv.Close()
	cfg.PubMedBaseURL = srv.URL

	mock.ExpectQuery(qm(`SELECT * FROM "products" WHERE "products"."id" = $1`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "inn", "search_strategy"}).
			AddRow(1, "Amlodipine", "Amlodipine AND (case report)"))

	w := doRequest(router, http.MethodPost, "/api/search/pubmed", `{"product_id":1}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Success  bool `json:"success"`
		Articles []struct {
			PMID string `json:"pmid"`
		} `json:"articles"`
		Summary struct {
			Total          int `json:"total"`
			ICSRCount      int `json:"icsr_count"`
			HighConfidence int `json:"high_confidence"`
		} `json:"summary"`
	}
	decodeBody(t, w, &resp)
	assert.True(t, resp.Success)
	assert.Empty(t, resp.Articles)
	assert.Zero(t, resp.Summary.Total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExportExcelWithoutResults(t *testing.T) {
	router, mock, _ := setupTestApp(t)

	mock.ExpectQuery(qm(`SELECT * FROM "search_jobs" WHERE "search_jobs"."id" = $1`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "status", "created_at"}).
			AddRow(7, models.JobStatusCompleted, time.Now()))
	mock.ExpectQuery(qm(`SELECT * FROM "search_results" WHERE search_job_id = $1`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	w := doRequest(router, http.MethodPost, "/api/export/excel/7", `{"week_number":"07"}`)
	require.Equal(t, http.StatusOK, w.Code)

	disposition := w.Header().Get("Content-Disposition")
	assert.Contains(t, disposition, "Literature_Tracker_Week07_")
	assert.NotZero(t, w.Body.Len())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListExportFiles(t *testing.T) {
	router, _, cfg := setupTestApp(t)

	older := filepath.Join(cfg.ExportsDir, "Literature_Tracker_Week06_20260202_060000.xlsx")
	newer := filepath.Join(cfg.ExportsDir, "Literature_Tracker_Week07_20260209_060000.xlsx")
	require.NoError(t, os.WriteFile(older, []byte("alt"), 0o644))
	require.NoError(t, os.WriteFile(newer, []byte("neu"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.ExportsDir, "notes.txt"), []byte("x"), 0o644))

	base := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(older, base, base))
	require.NoError(t, os.Chtimes(newer, base.Add(time.Minute), base.Add(time.Minute)))

	w := doRequest(router, http.MethodGet, "/api/export/files", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Success bool `json:"success"`
		Count   int  `json:"count"`
		Data    []struct {
			Filename string `json:"filename"`
		} `json:"data"`
	}
	decodeBody(t, w, &resp)
	assert.True(t, resp.Success)
	require.Equal(t, 2, resp.Count)
	assert.Equal(t, "Literature_Tracker_Week07_20260209_060000.xlsx", resp.Data[0].Filename)
	assert.Equal(t, "Literature_Tracker_Week06_20260202_060000.xlsx", resp.Data[1].Filename)
}

func TestGetConfig(t *testing.T) {
	router, mock, _ := setupTestApp(t)

	mock.ExpectQuery(qm(`SELECT * FROM "settings" ORDER BY key asc`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "key", "value", "is_secret"}).
			AddRow(1, "openai_api_key", "sk-12345678", true).
			AddRow(2, "pubmed_email", "pv@example.com", false))

	w := doRequest(router, http.MethodGet, "/api/config", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Success bool `json:"success"`
		Data    struct {
			PubMedConfigured bool              `json:"pubmed_configured"`
			OpenAIConfigured bool              `json:"openai_configured"`
			MaxArticles      int               `json:"max_articles_per_search"`
			Settings         map[string]string `json:"settings"`
			ThresholdHigh    float64           `json:"confidence_threshold_high"`
			ThresholdMedium  float64           `json:"confidence_threshold_medium"`
		} `json:"data"`
	}
	decodeBody(t, w, &resp)
	assert.True(t, resp.Success)
	assert.True(t, resp.Data.PubMedConfigured)
	assert.False(t, resp.Data.OpenAIConfigured)
	assert.Equal(t, 100, resp.Data.MaxArticles)
	// Geheime Werte verlassen die API nur maskiert.
	assert.Equal(t, "****5678", resp.Data.Settings["openai_api_key"])
	assert.Equal(t, "pv@example.com", resp.Data.Settings["pubmed_email"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConnectionProbes(t *testing.T) {
	t.Run("pubmed reachable", func(t *testing.T) {
		router, _, cfg := setupTestApp(t)
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"esearchresult":{"count":"1","idlist":["1"]}}`)
		}))
		defer srv.Close()
		cfg.PubMedBaseURL = srv.URL

		w := doRequest(router, http.MethodPost, "/api/config/test-pubmed", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "PubMed connection successful")
	})

	t.Run("openai not configured", func(t *testing.T) {
		router, _, _ := setupTestApp(t)
		w := doRequest(router, http.MethodPost, "/api/config/test-openai", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "OpenAI connection failed")
	})
}

func TestParseDate(t *testing.T) {
	got, err := parseDate("2026-02-09")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, time.Date(2026, 2, 9, 0, 0, 0, 0, time.UTC), *got)

	got, err = parseDate("")
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = parseDate("09.02.2026")
	assert.Error(t, err)
}

func TestJSONList(t *testing.T) {
	assert.Equal(t, "[]", string(jsonList(nil)))
	assert.Equal(t, `["US","UK"]`, string(jsonList([]string{"US", "UK"})))
}

func TestProductFromPayload(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		p := productFromPayload(productPayload{INN: "Metformin", SearchStrategy: "Metformin"})
		assert.Equal(t, "Active", p.MarketingStatus)
		assert.Equal(t, "[]", string(p.Territories))
	})

	t.Run("routes shorthand", func(t *testing.T) {
		p := productFromPayload(productPayload{
			INN:            "Cisatracurium",
			SearchStrategy: "Cisatracurium",
			Routes:         []string{"Intravenous"},
		})
		assert.Equal(t, `["Intravenous"]`, string(p.RoutesOfAdministration))
	})

	t.Run("explicit routes win", func(t *testing.T) {
		p := productFromPayload(productPayload{
			INN:                    "Methylprednisolone",
			SearchStrategy:         "Methylprednisolone",
			RoutesOfAdministration: []string{"Oral"},
			Routes:                 []string{"Intravenous"},
		})
		assert.Equal(t, `["Oral"]`, string(p.RoutesOfAdministration))
	})
}
