package models

import (
	"time"

	"gorm.io/datatypes"
)

// SearchResult speichert das Klassifikationsergebnis der KI für einen Artikel
// innerhalb eines Suchlaufs, plus die manuellen Review-Felder des Trackers.
// Die Dreiwertigkeit Y/N/NA entsteht erst im Export: nil bedeutet "NA".
type SearchResult struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	SearchJobID uint `json:"search_job_id" gorm:"not null;uniqueIndex:idx_job_article"`
	ProductID   uint `json:"product_id" gorm:"not null;index"`
	ArticleID   uint `json:"article_id" gorm:"not null;uniqueIndex:idx_job_article"`

	SearchJob SearchJob `json:"-" gorm:"foreignKey:SearchJobID"`
	Product   Product   `json:"product,omitempty" gorm:"foreignKey:ProductID"`
	Article   Article   `json:"article,omitempty" gorm:"foreignKey:ArticleID"`

	// ICSR-Klassifikation
	IsICSR          *bool  `json:"is_icsr" gorm:"column:is_icsr"`
	ICSRDescription string `json:"icsr_description,omitempty" gorm:"column:icsr_description;type:text"`

	// Ownership-Ausschluss
	OwnershipExcluded *bool  `json:"ownership_excluded"`
	ExclusionReason   string `json:"exclusion_reason,omitempty" gorm:"type:text"`

	IsDuplicate              bool  `json:"is_duplicate" gorm:"default:false"`
	MinimumCriteriaAvailable *bool `json:"minimum_criteria_available"`

	// Sonstige Sicherheitsinformationen (Nicht-ICSR-Pfad)
	OtherSafetyInfo         *bool  `json:"other_safety_info"`
	SafetyInfoJustification string `json:"safety_info_justification,omitempty" gorm:"type:text"`

	ConfidenceScore float64        `json:"confidence_score"`
	AIAnalysis      datatypes.JSON `json:"ai_analysis,omitempty" gorm:"column:ai_analysis;type:jsonb"`

	// Manueller Review-Workflow
	ReviewedBy string `json:"reviewed_by,omitempty" gorm:"size:100"`
	QCBy       string `json:"qc_by,omitempty" gorm:"column:qc_by;size:100"`
	Comments   string `json:"comments,omitempty" gorm:"type:text"`

	DateSentToProvider *time.Time `json:"date_sent_to_provider,omitempty" gorm:"type:date"`
	ICSRCode           string     `json:"icsr_code,omitempty" gorm:"column:icsr_code;size:100"`
}

// TableName gibt den expliziten Tabellennamen für GORM an.
func (SearchResult) TableName() string {
	return "search_results"
}
