package models

import "time"

// Connection represents a directed, styled edge between two nodes of the
// same bib map
type Connection struct {
	ID           uint `gorm:"primaryKey" json:"id"`
	BibMapID     uint `gorm:"column:bibmap_id;not null;index" json:"bibmap_id"`
	SourceNodeID uint `gorm:"not null" json:"source_node_id"`
	TargetNodeID uint `gorm:"not null" json:"target_node_id"`

	// Optional attach points on the node border
	SourceAttachX *float64 `json:"source_attach_x"`
	SourceAttachY *float64 `json:"source_attach_y"`
	TargetAttachX *float64 `json:"target_attach_x"`
	TargetAttachY *float64 `json:"target_attach_y"`

	// Style
	LineColor string `gorm:"size:7;default:#6B7280" json:"line_color"`
	LineWidth int    `gorm:"default:2" json:"line_width"`
	LineStyle string `gorm:"size:20;default:solid" json:"line_style"` // solid, dashed, dotted
	ArrowType string `gorm:"size:20;default:arrow" json:"arrow_type"` // none, arrow, both
	Label     string `gorm:"size:255" json:"label"`
	ShowLabel bool   `gorm:"default:false" json:"show_label"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`

	BibMap     BibMap `gorm:"foreignKey:BibMapID" json:"-"`
	SourceNode Node   `gorm:"foreignKey:SourceNodeID" json:"-"`
	TargetNode Node   `gorm:"foreignKey:TargetNodeID" json:"-"`
}
