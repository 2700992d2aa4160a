package models

import (
	"time"
)

// Article repräsentiert eine deduplizierte PubMed-Publikation samt Metadaten.
type Article struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	PMID     string `json:"pmid" gorm:"column:pmid;uniqueIndex;not null"`
	Title    string `json:"title" gorm:"type:text;not null"`
	Abstract string `json:"abstract,omitempty" gorm:"type:text"`
	Authors  string `json:"authors,omitempty" gorm:"type:text"` // "Nachname Initialen; ..." semikolongetrennt

	Journal         string     `json:"journal,omitempty"`
	PublicationYear string     `json:"publication_year,omitempty"`
	EntrezDate      *time.Time `json:"entrez_date,omitempty" gorm:"type:date"` // Create Date des Entrez-Eintrags
	Pages           string     `json:"pages,omitempty"`

	PMCID   string `json:"pmcid,omitempty" gorm:"column:pmcid"`
	NIHMSID string `json:"nihms_id,omitempty" gorm:"column:nihms_id"`
	DOI     string `json:"doi,omitempty" gorm:"column:doi;index"`

	// Vorformatierte Literaturangabe für den Tracker.
	Citation string `json:"citation,omitempty" gorm:"type:text"`

	FullTextAvailable bool `json:"full_text_available"`
}

// TableName gibt den expliziten Tabellennamen für GORM an.
func (Article) TableName() string {
	return "articles"
}

// FirstAuthor liefert den ersten Autor der semikolongetrennten Liste.
func (a *Article) FirstAuthor() string {
	if a.Authors == "" {
		return ""
	}
	for i := 0; i < len(a.Authors); i++ {
		if a.Authors[i] == ';' {
			return a.Authors[:i]
		}
	}
	return a.Authors
}
