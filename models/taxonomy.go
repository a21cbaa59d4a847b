package models

import "time"

// Taxonomy is a named, colored tag attachable to nodes, references and
// media. Global taxonomies are admin-created and visible to every user.
type Taxonomy struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"not null;size:255" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	Color       string    `gorm:"size:7;default:#6B7280" json:"color"`
	UserID      *uint     `gorm:"index" json:"user_id"`
	IsGlobal    bool      `gorm:"default:false" json:"is_global"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}
