package models

import "time"

// DefaultNodeColor is the background color new nodes get. Nodes left at
// this color never participate in legend-category matching.
const DefaultNodeColor = "#3B82F6"

// Node represents a positioned, styled box within a bib map
type Node struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	BibMapID    uint   `gorm:"column:bibmap_id;not null;index" json:"bibmap_id"`
	Label       string `gorm:"not null;size:255" json:"label"`
	Description string `gorm:"type:text" json:"description"`

	// Position
	X float64 `gorm:"default:0" json:"x"`
	Y float64 `gorm:"default:0" json:"y"`

	// Style
	BackgroundColor  string  `gorm:"size:7;default:#3B82F6" json:"background_color"`
	TextColor        string  `gorm:"size:7;default:#FFFFFF" json:"text_color"`
	BorderColor      string  `gorm:"size:7;default:#1E40AF" json:"border_color"`
	FontSize         int     `gorm:"default:14" json:"font_size"`
	FontFamily       string  `gorm:"size:100;default:system-ui" json:"font_family"`
	FontBold         bool    `gorm:"default:false" json:"font_bold"`
	FontItalic       bool    `gorm:"default:false" json:"font_italic"`
	FontUnderline    bool    `gorm:"default:false" json:"font_underline"`
	Width            float64 `gorm:"default:150" json:"width"`
	Height           float64 `gorm:"default:60" json:"height"`
	Shape            string  `gorm:"size:50;default:rectangle" json:"shape"` // rectangle, rounded-rectangle, ellipse, diamond
	LinkToReferences bool    `gorm:"default:true" json:"link_to_references"`
	WrapText         bool    `gorm:"default:true" json:"wrap_text"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	BibMap     BibMap     `gorm:"foreignKey:BibMapID" json:"-"`
	Taxonomies []Taxonomy `gorm:"many2many:node_taxonomies" json:"taxonomies"`
}
