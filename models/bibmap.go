package models

import "time"

// BibMap represents a user-created canvas of nodes and connections
type BibMap struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Title        string    `gorm:"not null;size:255" json:"title"`
	Description  string    `gorm:"type:text" json:"description"`
	SettingsJSON string    `gorm:"type:text" json:"settings_json"`
	UserID       *uint     `gorm:"index" json:"user_id"`
	IsPublished  bool      `gorm:"default:false" json:"is_published"`
	PublicID     string    `gorm:"size:100;uniqueIndex" json:"public_id"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	Nodes       []Node       `gorm:"foreignKey:BibMapID" json:"nodes,omitempty"`
	Connections []Connection `gorm:"foreignKey:BibMapID" json:"connections,omitempty"`
}
