package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// Product repräsentiert ein überwachtes Arzneimittel im Monitoring-Register.
type Product struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// INN ist der Identitätsschlüssel des Produkts. z.B. "Amlodipine"
	INN            string `json:"inn" gorm:"column:inn;uniqueIndex;not null"`
	SearchStrategy string `json:"search_strategy" gorm:"type:text;not null"` // Der PubMed-Suchbegriff

	Territories            datatypes.JSON `json:"territories,omitempty" gorm:"type:jsonb"`
	DosageForms            datatypes.JSON `json:"dosage_forms,omitempty" gorm:"type:jsonb"`
	RoutesOfAdministration datatypes.JSON `json:"routes_of_administration,omitempty" gorm:"type:jsonb"`

	MarketingStatus string `json:"marketing_status,omitempty" gorm:"index"`
	IsEUProduct     bool   `json:"is_eu_product" gorm:"default:false"`
}

// TableName gibt den expliziten Tabellennamen für GORM an.
func (Product) TableName() string {
	return "products"
}

// TerritoryList dekodiert die Territories-Spalte in ein Slice.
func (p *Product) TerritoryList() []string {
	return decodeStringList(p.Territories)
}

// DosageFormList dekodiert die DosageForms-Spalte in ein Slice.
func (p *Product) DosageFormList() []string {
	return decodeStringList(p.DosageForms)
}

func decodeStringList(raw datatypes.JSON) []string {
	if len(raw) == 0 {
		return nil
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}
