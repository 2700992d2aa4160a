package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config enthält alle Konfigurationsparameter aus Umgebungsvariablen.
type Config struct {
	DBHost     string `envconfig:"DB_HOST" required:"true"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" required:"true"`
	DBPassword string `envconfig:"DB_PASSWORD" required:"true"`
	DBName     string `envconfig:"DB_NAME" required:"true"`
	DBSSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`

	HTTPPort string `envconfig:"HTTP_PORT" default:"5000"`

	PubMedBaseURL   string `envconfig:"PUBMED_BASE_URL" default:"https://eutils.ncbi.nlm.nih.gov/entrez/eutils"`
	PubMedAPIKey    string `envconfig:"PUBMED_API_KEY"`
	PubMedEmail     string `envconfig:"PUBMED_EMAIL"`
	PubMedTool      string `envconfig:"PUBMED_TOOL" default:"pv-literature-monitor"`
	PubMedRateLimit int    `envconfig:"PUBMED_RATE_LIMIT" default:"10"`

	// Maximale Treffer pro Produkt-Suche (Entrez retmax).
	MaxArticlesPerSearch int `envconfig:"MAX_ARTICLES_PER_SEARCH" default:"100"`

	OpenAIAPIKey  string `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL string `envconfig:"OPENAI_BASE_URL"`
	OpenAIModel   string `envconfig:"OPENAI_MODEL" default:"gpt-4.1-mini"`

	ConfidenceThresholdHigh   float64 `envconfig:"CONFIDENCE_THRESHOLD_HIGH" default:"0.85"`
	ConfidenceThresholdMedium float64 `envconfig:"CONFIDENCE_THRESHOLD_MEDIUM" default:"0.60"`

	// Zulassungsinhaber für die Ownership-Ausschlussanalyse im Prompt.
	MAHName string `envconfig:"MAH_NAME" default:"Hikma"`

	ExportsDir string `envconfig:"EXPORTS_DIR" default:"exports"`

	// Wöchentliche Batch-Suche über alle Produkte; leer = deaktiviert.
	WeeklySearchCron string `envconfig:"WEEKLY_SEARCH_CRON" default:"0 6 * * 1"`

	// S3-Archiv für Tracker und Backups (optional, aktiv sobald Bucket gesetzt).
	ArchiveS3Key    string `envconfig:"ARCHIVE_S3_KEY"`
	ArchiveS3Secret string `envconfig:"ARCHIVE_S3_SECRET"`
	ArchiveS3URL    string `envconfig:"ARCHIVE_S3_URL"`
	ArchiveS3Region string `envconfig:"ARCHIVE_S3_REGION" default:"eu-central-1"`
	ArchiveS3Bucket string `envconfig:"ARCHIVE_S3_BUCKET"`
}

// DSN gibt den Data Source Name für die PostgreSQL-Verbindung zurück.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=%s",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort, c.DBSSLMode)
}

// ArchiveEnabled meldet, ob ein S3-Archiv konfiguriert ist.
func (c *Config) ArchiveEnabled() bool {
	return c.ArchiveS3Bucket != "" && c.ArchiveS3URL != ""
}

// Load lädt die Konfiguration aus den Umgebungsvariablen.
func Load() (*Config, error) {
	_ = godotenv.Load()
	var c Config
	err := envconfig.Process("", &c)
	return &c, err
}
