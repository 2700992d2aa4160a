package models

import (
	"time"
)

// Setting ist ein Laufzeit-Konfigurationseintrag, der über /api/config
// ausgelesen wird. Geheime Werte werden nur maskiert ausgeliefert.
type Setting struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Key         string `json:"key" gorm:"uniqueIndex;not null"`
	Value       string `json:"value" gorm:"type:text"`
	Description string `json:"description,omitempty"`
	IsSecret    bool   `json:"is_secret" gorm:"default:false"`
}

// TableName gibt den expliziten Tabellennamen für GORM an.
func (Setting) TableName() string {
	return "settings"
}

// MaskedValue liefert den Wert, bei Geheimnissen nur die letzten vier Zeichen.
func (s *Setting) MaskedValue() string {
	if !s.IsSecret {
		return s.Value
	}
	if s.Value == "" {
		return ""
	}
	if len(s.Value) <= 4 {
		return "****"
	}
	return "****" + s.Value[len(s.Value)-4:]
}
