package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/bibmap/bibmap-api/models"
)

func (h *DBHandler) loadConnection(w http.ResponseWriter, r *http.Request) (*models.Connection, bool) {
	connectionID, ok := pathID(r, "connectionID")
	if !ok {
		http.Error(w, "Invalid connection ID", http.StatusBadRequest)
		return nil, false
	}
	var connection models.Connection
	if err := h.DB.First(&connection, connectionID).Error; err != nil {
		http.Error(w, "Connection not found", http.StatusNotFound)
		return nil, false
	}
	if _, ok := h.bibmapForAccess(w, r, connection.BibMapID); !ok {
		return nil, false
	}
	return &connection, true
}

// nodeInBibMap verifies a node exists and belongs to the given map.
func (h *DBHandler) nodeInBibMap(nodeID, bibmapID uint) bool {
	var count int64
	h.DB.Model(&models.Node{}).Where("id = ? AND bibmap_id = ?", nodeID, bibmapID).Count(&count)
	return count == 1
}

func (h *DBHandler) CreateConnection(w http.ResponseWriter, r *http.Request) {
	var requestData struct {
		BibMapID      uint     `json:"bibmap_id"`
		SourceNodeID  uint     `json:"source_node_id"`
		TargetNodeID  uint     `json:"target_node_id"`
		SourceAttachX *float64 `json:"source_attach_x"`
		SourceAttachY *float64 `json:"source_attach_y"`
		TargetAttachX *float64 `json:"target_attach_x"`
		TargetAttachY *float64 `json:"target_attach_y"`
		LineColor     *string  `json:"line_color"`
		LineWidth     *int     `json:"line_width"`
		LineStyle     *string  `json:"line_style"`
		ArrowType     *string  `json:"arrow_type"`
		Label         string   `json:"label"`
		ShowLabel     bool     `json:"show_label"`
	}
	if err := json.NewDecoder(r.Body).Decode(&requestData); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if requestData.BibMapID == 0 || requestData.SourceNodeID == 0 || requestData.TargetNodeID == 0 {
		http.Error(w, "bibmap_id, source_node_id and target_node_id are required", http.StatusBadRequest)
		return
	}
	if _, ok := h.bibmapForAccess(w, r, requestData.BibMapID); !ok {
		return
	}

	// Both endpoints must live in the connection's map
	if !h.nodeInBibMap(requestData.SourceNodeID, requestData.BibMapID) ||
		!h.nodeInBibMap(requestData.TargetNodeID, requestData.BibMapID) {
		http.Error(w, "Source and target nodes must exist in the specified bib map", http.StatusBadRequest)
		return
	}
	if requestData.SourceNodeID == requestData.TargetNodeID {
		http.Error(w, "Cannot connect a node to itself", http.StatusBadRequest)
		return
	}

	connection := models.Connection{
		BibMapID:      requestData.BibMapID,
		SourceNodeID:  requestData.SourceNodeID,
		TargetNodeID:  requestData.TargetNodeID,
		SourceAttachX: requestData.SourceAttachX,
		SourceAttachY: requestData.SourceAttachY,
		TargetAttachX: requestData.TargetAttachX,
		TargetAttachY: requestData.TargetAttachY,
		LineColor:     "#6B7280",
		LineWidth:     2,
		LineStyle:     "solid",
		ArrowType:     "arrow",
		Label:         requestData.Label,
		ShowLabel:     requestData.ShowLabel,
	}
	if requestData.LineColor != nil {
		connection.LineColor = *requestData.LineColor
	}
	if requestData.LineWidth != nil {
		connection.LineWidth = *requestData.LineWidth
	}
	if requestData.LineStyle != nil {
		connection.LineStyle = *requestData.LineStyle
	}
	if requestData.ArrowType != nil {
		connection.ArrowType = *requestData.ArrowType
	}

	if err := h.DB.Create(&connection).Error; err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.respondJSON(w, http.StatusCreated, connection)
}

func (h *DBHandler) GetConnection(w http.ResponseWriter, r *http.Request) {
	connection, ok := h.loadConnection(w, r)
	if !ok {
		return
	}
	h.respondJSON(w, http.StatusOK, connection)
}

func (h *DBHandler) UpdateConnection(w http.ResponseWriter, r *http.Request) {
	connection, ok := h.loadConnection(w, r)
	if !ok {
		return
	}

	var requestData struct {
		SourceNodeID  *uint    `json:"source_node_id"`
		TargetNodeID  *uint    `json:"target_node_id"`
		SourceAttachX *float64 `json:"source_attach_x"`
		SourceAttachY *float64 `json:"source_attach_y"`
		TargetAttachX *float64 `json:"target_attach_x"`
		TargetAttachY *float64 `json:"target_attach_y"`
		LineColor     *string  `json:"line_color"`
		LineWidth     *int     `json:"line_width"`
		LineStyle     *string  `json:"line_style"`
		ArrowType     *string  `json:"arrow_type"`
		Label         *string  `json:"label"`
		ShowLabel     *bool    `json:"show_label"`
	}
	if err := json.NewDecoder(r.Body).Decode(&requestData); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if requestData.SourceNodeID != nil {
		if !h.nodeInBibMap(*requestData.SourceNodeID, connection.BibMapID) {
			http.Error(w, "Source node not found", http.StatusBadRequest)
			return
		}
		connection.SourceNodeID = *requestData.SourceNodeID
	}
	if requestData.TargetNodeID != nil {
		if !h.nodeInBibMap(*requestData.TargetNodeID, connection.BibMapID) {
			http.Error(w, "Target node not found", http.StatusBadRequest)
			return
		}
		connection.TargetNodeID = *requestData.TargetNodeID
	}
	if connection.SourceNodeID == connection.TargetNodeID {
		http.Error(w, "Cannot connect a node to itself", http.StatusBadRequest)
		return
	}
	if requestData.SourceAttachX != nil {
		connection.SourceAttachX = requestData.SourceAttachX
	}
	if requestData.SourceAttachY != nil {
		connection.SourceAttachY = requestData.SourceAttachY
	}
	if requestData.TargetAttachX != nil {
		connection.TargetAttachX = requestData.TargetAttachX
	}
	if requestData.TargetAttachY != nil {
		connection.TargetAttachY = requestData.TargetAttachY
	}
	if requestData.LineColor != nil {
		connection.LineColor = *requestData.LineColor
	}
	if requestData.LineWidth != nil {
		connection.LineWidth = *requestData.LineWidth
	}
	if requestData.LineStyle != nil {
		connection.LineStyle = *requestData.LineStyle
	}
	if requestData.ArrowType != nil {
		connection.ArrowType = *requestData.ArrowType
	}
	if requestData.Label != nil {
		connection.Label = *requestData.Label
	}
	if requestData.ShowLabel != nil {
		connection.ShowLabel = *requestData.ShowLabel
	}

	if err := h.DB.Save(connection).Error; err != nil {
		http.Error(w, "Failed to update connection", http.StatusInternalServerError)
		return
	}
	h.respondJSON(w, http.StatusOK, connection)
}

func (h *DBHandler) DeleteConnection(w http.ResponseWriter, r *http.Request) {
	connection, ok := h.loadConnection(w, r)
	if !ok {
		return
	}
	if err := h.DB.Delete(connection).Error; err != nil {
		http.Error(w, "Failed to delete connection", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
