package models

import "time"

// Reference represents a bibliographic entry parsed from BibTeX
type Reference struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	BibtexKey string `gorm:"uniqueIndex;not null;size:255" json:"bibtex_key"`
	EntryType string `gorm:"not null;size:50" json:"entry_type"` // article, book, inproceedings, etc.

	// Common BibTeX fields
	Title     string `gorm:"type:text" json:"title"`
	Author    string `gorm:"type:text" json:"author"`
	Year      string `gorm:"size:10" json:"year"`
	Journal   string `gorm:"type:text" json:"journal"`
	Booktitle string `gorm:"type:text" json:"booktitle"`
	Publisher string `gorm:"type:text" json:"publisher"`
	Volume    string `gorm:"size:50" json:"volume"`
	Number    string `gorm:"size:50" json:"number"`
	Pages     string `gorm:"size:50" json:"pages"`
	DOI       string `gorm:"size:255" json:"doi"`
	URL       string `gorm:"type:text" json:"url"`
	Abstract  string `gorm:"type:text" json:"abstract"`

	// Original BibTeX source for round-tripping
	RawBibtex string `gorm:"type:text;not null" json:"raw_bibtex"`

	// Non-standard fields kept as a JSON object
	ExtraFields string `gorm:"type:text" json:"extra_fields"`

	// Hex color linking this reference to same-colored nodes
	LegendCategory string `gorm:"size:7" json:"legend_category"`

	UserID    *uint     `gorm:"index" json:"user_id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	Taxonomies []Taxonomy `gorm:"many2many:reference_taxonomies" json:"taxonomies"`
}
