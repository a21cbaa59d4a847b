package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/bibmap/bibmap-api/matching"
	"github.com/bibmap/bibmap-api/middleware"
	"github.com/bibmap/bibmap-api/models"
)

// nodeRequest covers both create and update payloads; pointers distinguish
// "absent" from zero values on update.
type nodeRequest struct {
	BibMapID         uint     `json:"bibmap_id"`
	Label            *string  `json:"label"`
	Description      *string  `json:"description"`
	X                *float64 `json:"x"`
	Y                *float64 `json:"y"`
	BackgroundColor  *string  `json:"background_color"`
	TextColor        *string  `json:"text_color"`
	BorderColor      *string  `json:"border_color"`
	FontSize         *int     `json:"font_size"`
	FontFamily       *string  `json:"font_family"`
	FontBold         *bool    `json:"font_bold"`
	FontItalic       *bool    `json:"font_italic"`
	FontUnderline    *bool    `json:"font_underline"`
	Width            *float64 `json:"width"`
	Height           *float64 `json:"height"`
	Shape            *string  `json:"shape"`
	LinkToReferences *bool    `json:"link_to_references"`
	WrapText         *bool    `json:"wrap_text"`
	TaxonomyIDs      []uint   `json:"taxonomy_ids"`
}

func (h *DBHandler) loadNode(w http.ResponseWriter, r *http.Request) (*models.Node, bool) {
	nodeID, ok := pathID(r, "nodeID")
	if !ok {
		http.Error(w, "Invalid node ID", http.StatusBadRequest)
		return nil, false
	}
	var node models.Node
	if err := h.DB.Preload("Taxonomies").First(&node, nodeID).Error; err != nil {
		http.Error(w, "Node not found", http.StatusNotFound)
		return nil, false
	}
	if _, ok := h.bibmapForAccess(w, r, node.BibMapID); !ok {
		return nil, false
	}
	return &node, true
}

func (h *DBHandler) CreateNode(w http.ResponseWriter, r *http.Request) {
	var requestData nodeRequest
	if err := json.NewDecoder(r.Body).Decode(&requestData); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if requestData.BibMapID == 0 || requestData.Label == nil || *requestData.Label == "" {
		http.Error(w, "bibmap_id and label are required", http.StatusBadRequest)
		return
	}
	if _, ok := h.bibmapForAccess(w, r, requestData.BibMapID); !ok {
		return
	}

	node := models.Node{
		BibMapID:         requestData.BibMapID,
		Label:            *requestData.Label,
		BackgroundColor:  models.DefaultNodeColor,
		TextColor:        "#FFFFFF",
		BorderColor:      "#1E40AF",
		FontSize:         14,
		FontFamily:       "system-ui",
		Width:            150,
		Height:           60,
		Shape:            "rectangle",
		LinkToReferences: true,
		WrapText:         true,
	}
	applyNodeFields(&node, &requestData)

	if err := h.DB.Create(&node).Error; err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if len(requestData.TaxonomyIDs) > 0 {
		var taxonomies []models.Taxonomy
		h.DB.Where("id IN ?", requestData.TaxonomyIDs).Find(&taxonomies)
		if err := h.DB.Model(&node).Association("Taxonomies").Replace(taxonomies); err != nil {
			http.Error(w, "Failed to attach taxonomies", http.StatusInternalServerError)
			return
		}
		node.Taxonomies = taxonomies
	}

	h.respondJSON(w, http.StatusCreated, node)
}

func applyNodeFields(node *models.Node, req *nodeRequest) {
	if req.Description != nil {
		node.Description = *req.Description
	}
	if req.X != nil {
		node.X = *req.X
	}
	if req.Y != nil {
		node.Y = *req.Y
	}
	if req.BackgroundColor != nil {
		node.BackgroundColor = *req.BackgroundColor
	}
	if req.TextColor != nil {
		node.TextColor = *req.TextColor
	}
	if req.BorderColor != nil {
		node.BorderColor = *req.BorderColor
	}
	if req.FontSize != nil {
		node.FontSize = *req.FontSize
	}
	if req.FontFamily != nil {
		node.FontFamily = *req.FontFamily
	}
	if req.FontBold != nil {
		node.FontBold = *req.FontBold
	}
	if req.FontItalic != nil {
		node.FontItalic = *req.FontItalic
	}
	if req.FontUnderline != nil {
		node.FontUnderline = *req.FontUnderline
	}
	if req.Width != nil {
		node.Width = *req.Width
	}
	if req.Height != nil {
		node.Height = *req.Height
	}
	if req.Shape != nil {
		node.Shape = *req.Shape
	}
	if req.LinkToReferences != nil {
		node.LinkToReferences = *req.LinkToReferences
	}
	if req.WrapText != nil {
		node.WrapText = *req.WrapText
	}
}

func (h *DBHandler) GetNode(w http.ResponseWriter, r *http.Request) {
	node, ok := h.loadNode(w, r)
	if !ok {
		return
	}
	h.respondJSON(w, http.StatusOK, node)
}

func (h *DBHandler) UpdateNode(w http.ResponseWriter, r *http.Request) {
	node, ok := h.loadNode(w, r)
	if !ok {
		return
	}

	var requestData nodeRequest
	if err := json.NewDecoder(r.Body).Decode(&requestData); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if requestData.Label != nil {
		if *requestData.Label == "" {
			http.Error(w, "Label cannot be empty", http.StatusBadRequest)
			return
		}
		node.Label = *requestData.Label
	}
	applyNodeFields(node, &requestData)

	if err := h.DB.Save(node).Error; err != nil {
		http.Error(w, "Failed to update node", http.StatusInternalServerError)
		return
	}

	if requestData.TaxonomyIDs != nil {
		var taxonomies []models.Taxonomy
		h.DB.Where("id IN ?", requestData.TaxonomyIDs).Find(&taxonomies)
		if err := h.DB.Model(node).Association("Taxonomies").Replace(taxonomies); err != nil {
			http.Error(w, "Failed to update taxonomies", http.StatusInternalServerError)
			return
		}
		node.Taxonomies = taxonomies
	}

	h.respondJSON(w, http.StatusOK, node)
}

// DeleteNode removes a node and every connection touching it.
func (h *DBHandler) DeleteNode(w http.ResponseWriter, r *http.Request) {
	node, ok := h.loadNode(w, r)
	if !ok {
		return
	}

	tx := h.DB.Begin()
	if tx.Error != nil {
		http.Error(w, "Could not begin transaction", http.StatusInternalServerError)
		return
	}
	if err := tx.Where("source_node_id = ? OR target_node_id = ?", node.ID, node.ID).
		Delete(&models.Connection{}).Error; err != nil {
		tx.Rollback()
		http.Error(w, "Failed to delete connections", http.StatusInternalServerError)
		return
	}
	if err := tx.Model(node).Association("Taxonomies").Clear(); err != nil {
		tx.Rollback()
		http.Error(w, "Failed to detach taxonomies", http.StatusInternalServerError)
		return
	}
	if err := tx.Delete(node).Error; err != nil {
		tx.Rollback()
		http.Error(w, "Failed to delete node", http.StatusInternalServerError)
		return
	}
	if err := tx.Commit().Error; err != nil {
		http.Error(w, "Could not commit transaction", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UpdateNodePosition handles frequent drag updates without touching other
// fields.
func (h *DBHandler) UpdateNodePosition(w http.ResponseWriter, r *http.Request) {
	node, ok := h.loadNode(w, r)
	if !ok {
		return
	}

	var requestData struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
	}
	if err := json.NewDecoder(r.Body).Decode(&requestData); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	node.X = requestData.X
	node.Y = requestData.Y
	if err := h.DB.Save(node).Error; err != nil {
		http.Error(w, "Failed to update node", http.StatusInternalServerError)
		return
	}
	h.respondJSON(w, http.StatusOK, node)
}

func (h *DBHandler) UpdateNodeSize(w http.ResponseWriter, r *http.Request) {
	node, ok := h.loadNode(w, r)
	if !ok {
		return
	}

	var requestData struct {
		Width  float64 `json:"width"`
		Height float64 `json:"height"`
	}
	if err := json.NewDecoder(r.Body).Decode(&requestData); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	// Enforce minimum dimensions
	node.Width = max(50, requestData.Width)
	node.Height = max(30, requestData.Height)
	if err := h.DB.Save(node).Error; err != nil {
		http.Error(w, "Failed to update node", http.StatusInternalServerError)
		return
	}
	h.respondJSON(w, http.StatusOK, node)
}

// GetNodeReferences returns references matching the node by shared taxonomy
// or legend category, scoped to what the requester may see.
func (h *DBHandler) GetNodeReferences(w http.ResponseWriter, r *http.Request) {
	node, ok := h.loadNode(w, r)
	if !ok {
		return
	}

	results, err := matching.ReferencesForNode(h.DB, node, matching.ForRequester(middleware.UserFrom(r)))
	if err != nil {
		http.Error(w, "Error retrieving references", http.StatusInternalServerError)
		return
	}
	h.respondJSON(w, http.StatusOK, results)
}

func (h *DBHandler) GetNodeMedia(w http.ResponseWriter, r *http.Request) {
	node, ok := h.loadNode(w, r)
	if !ok {
		return
	}

	results, err := matching.MediaForNode(h.DB, node, matching.ForRequester(middleware.UserFrom(r)))
	if err != nil {
		http.Error(w, "Error retrieving media", http.StatusInternalServerError)
		return
	}
	h.respondJSON(w, http.StatusOK, results)
}

// loadPublicNode is the unauthenticated variant: the node's map must be
// published, and candidates are restricted to rows owned by the map owner.
func (h *DBHandler) loadPublicNode(w http.ResponseWriter, r *http.Request) (*models.Node, *models.BibMap, bool) {
	nodeID, ok := pathID(r, "nodeID")
	if !ok {
		http.Error(w, "Invalid node ID", http.StatusBadRequest)
		return nil, nil, false
	}
	var node models.Node
	if err := h.DB.Preload("Taxonomies").First(&node, nodeID).Error; err != nil {
		http.Error(w, "Node not found", http.StatusNotFound)
		return nil, nil, false
	}
	var bibmap models.BibMap
	if err := h.DB.First(&bibmap, node.BibMapID).Error; err != nil || !bibmap.IsPublished {
		http.Error(w, "This bib map is not published", http.StatusForbidden)
		return nil, nil, false
	}
	return &node, &bibmap, true
}

func (h *DBHandler) GetPublicNodeReferences(w http.ResponseWriter, r *http.Request) {
	node, bibmap, ok := h.loadPublicNode(w, r)
	if !ok {
		return
	}

	results, err := matching.ReferencesForNode(h.DB, node, matching.ForOwner(bibmap.UserID))
	if err != nil {
		http.Error(w, "Error retrieving references", http.StatusInternalServerError)
		return
	}
	h.respondJSON(w, http.StatusOK, results)
}

func (h *DBHandler) GetPublicNodeMedia(w http.ResponseWriter, r *http.Request) {
	node, bibmap, ok := h.loadPublicNode(w, r)
	if !ok {
		return
	}

	results, err := matching.MediaForNode(h.DB, node, matching.ForOwner(bibmap.UserID))
	if err != nil {
		http.Error(w, "Error retrieving media", http.StatusInternalServerError)
		return
	}
	h.respondJSON(w, http.StatusOK, results)
}
