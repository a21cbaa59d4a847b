package models

import "time"

// Media represents a titled URL resource; it matches against nodes the same
// way references do (shared taxonomies or legend category)
type Media struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	Title          string    `gorm:"not null;size:255" json:"title"`
	URL            string    `gorm:"type:text;not null" json:"url"`
	Description    string    `gorm:"type:text" json:"description"`
	LegendCategory string    `gorm:"size:7" json:"legend_category"`
	UserID         *uint     `gorm:"index" json:"user_id"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	Taxonomies []Taxonomy `gorm:"many2many:media_taxonomies" json:"taxonomies"`
}

func (Media) TableName() string {
	return "media"
}
