package models

import (
	"time"
)

// Job-Status und -Typen als feste Werte, analog zur status-Spalte.
const (
	JobStatusPending   = "pending"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"

	JobTypeSingle = "single"
	JobTypeBatch  = "batch"
)

// SearchJob repräsentiert einen Literatur-Suchlauf über ein oder mehrere Produkte.
type SearchJob struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	JobType string `json:"job_type" gorm:"not null;default:'single'"`
	Status  string `json:"status" gorm:"index;not null;default:'pending'"`

	// Suchfenster; offene Enden bleiben nil.
	DateFrom *time.Time `json:"date_from,omitempty" gorm:"type:date"`
	DateTo   *time.Time `json:"date_to,omitempty" gorm:"type:date"`

	TotalProducts     int `json:"total_products"`
	ProcessedProducts int `json:"processed_products"`
	TotalArticles     int `json:"total_articles"`
	ProcessedArticles int `json:"processed_articles"`

	ErrorMessage string     `json:"error_message,omitempty" gorm:"type:text"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// TableName gibt den expliziten Tabellennamen für GORM an.
func (SearchJob) TableName() string {
	return "search_jobs"
}

// IsTerminal meldet, ob der Job einen Endzustand erreicht hat.
func (j *SearchJob) IsTerminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}

// Progress liefert den Fortschritt in Prozent über die Artikelzähler.
func (j *SearchJob) Progress() float64 {
	if j.TotalArticles <= 0 {
		if j.Status == JobStatusCompleted {
			return 100
		}
		return 0
	}
	p := float64(j.ProcessedArticles) / float64(j.TotalArticles) * 100
	if p > 100 {
		p = 100
	}
	return p
}
