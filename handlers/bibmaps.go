package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/bibmap/bibmap-api/middleware"
	"github.com/bibmap/bibmap-api/models"
	"github.com/bibmap/bibmap-api/utils"
)

func (h *DBHandler) ListBibMaps(w http.ResponseWriter, r *http.Request) {
	var bibmaps []models.BibMap
	query := scopeToRequester(h.DB.Model(&models.BibMap{}), middleware.UserFrom(r))
	if err := query.Order("id").Find(&bibmaps).Error; err != nil {
		http.Error(w, "Error retrieving bib maps", http.StatusInternalServerError)
		return
	}
	h.respondJSON(w, http.StatusOK, bibmaps)
}

func (h *DBHandler) CreateBibMap(w http.ResponseWriter, r *http.Request) {
	var requestData struct {
		Title        string `json:"title"`
		Description  string `json:"description"`
		SettingsJSON string `json:"settings_json"`
	}
	if err := json.NewDecoder(r.Body).Decode(&requestData); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if requestData.Title == "" {
		http.Error(w, "Title is required", http.StatusBadRequest)
		return
	}

	publicID, err := utils.NewPublicID()
	if err != nil {
		http.Error(w, "Failed to generate public ID", http.StatusInternalServerError)
		return
	}

	bibmap := models.BibMap{
		Title:        requestData.Title,
		Description:  requestData.Description,
		SettingsJSON: requestData.SettingsJSON,
		UserID:       ownerID(middleware.UserFrom(r)),
		PublicID:     publicID,
	}
	if err := h.DB.Create(&bibmap).Error; err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.respondJSON(w, http.StatusCreated, bibmap)
}

func (h *DBHandler) GetBibMap(w http.ResponseWriter, r *http.Request) {
	bibmapID, ok := pathID(r, "bibmapID")
	if !ok {
		http.Error(w, "Invalid bib map ID", http.StatusBadRequest)
		return
	}
	bibmap, ok := h.bibmapForAccess(w, r, bibmapID)
	if !ok {
		return
	}

	if err := h.DB.Preload("Nodes").Preload("Nodes.Taxonomies").Preload("Connections").
		First(bibmap, bibmap.ID).Error; err != nil {
		http.Error(w, "Error retrieving bib map", http.StatusInternalServerError)
		return
	}
	h.respondJSON(w, http.StatusOK, bibmap)
}

func (h *DBHandler) UpdateBibMap(w http.ResponseWriter, r *http.Request) {
	bibmapID, ok := pathID(r, "bibmapID")
	if !ok {
		http.Error(w, "Invalid bib map ID", http.StatusBadRequest)
		return
	}
	bibmap, ok := h.bibmapForAccess(w, r, bibmapID)
	if !ok {
		return
	}

	var requestData struct {
		Title        *string `json:"title"`
		Description  *string `json:"description"`
		SettingsJSON *string `json:"settings_json"`
	}
	if err := json.NewDecoder(r.Body).Decode(&requestData); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if requestData.Title != nil {
		if *requestData.Title == "" {
			http.Error(w, "Title cannot be empty", http.StatusBadRequest)
			return
		}
		bibmap.Title = *requestData.Title
	}
	if requestData.Description != nil {
		bibmap.Description = *requestData.Description
	}
	if requestData.SettingsJSON != nil {
		bibmap.SettingsJSON = *requestData.SettingsJSON
	}

	if err := h.DB.Save(bibmap).Error; err != nil {
		http.Error(w, "Failed to update bib map", http.StatusInternalServerError)
		return
	}
	h.respondJSON(w, http.StatusOK, bibmap)
}

// DeleteBibMap removes a map together with its nodes and connections.
func (h *DBHandler) DeleteBibMap(w http.ResponseWriter, r *http.Request) {
	bibmapID, ok := pathID(r, "bibmapID")
	if !ok {
		http.Error(w, "Invalid bib map ID", http.StatusBadRequest)
		return
	}
	bibmap, ok := h.bibmapForAccess(w, r, bibmapID)
	if !ok {
		return
	}

	tx := h.DB.Begin()
	if tx.Error != nil {
		http.Error(w, "Could not begin transaction", http.StatusInternalServerError)
		return
	}
	if err := tx.Where("bibmap_id = ?", bibmap.ID).Delete(&models.Connection{}).Error; err != nil {
		tx.Rollback()
		http.Error(w, "Failed to delete connections", http.StatusInternalServerError)
		return
	}
	if err := tx.Where("bibmap_id = ?", bibmap.ID).Delete(&models.Node{}).Error; err != nil {
		tx.Rollback()
		http.Error(w, "Failed to delete nodes", http.StatusInternalServerError)
		return
	}
	if err := tx.Delete(bibmap).Error; err != nil {
		tx.Rollback()
		http.Error(w, "Failed to delete bib map", http.StatusInternalServerError)
		return
	}
	if err := tx.Commit().Error; err != nil {
		http.Error(w, "Could not commit transaction", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *DBHandler) setPublished(w http.ResponseWriter, r *http.Request, published bool) {
	bibmapID, ok := pathID(r, "bibmapID")
	if !ok {
		http.Error(w, "Invalid bib map ID", http.StatusBadRequest)
		return
	}
	bibmap, ok := h.bibmapForAccess(w, r, bibmapID)
	if !ok {
		return
	}

	bibmap.IsPublished = published
	if err := h.DB.Save(bibmap).Error; err != nil {
		http.Error(w, "Failed to update bib map", http.StatusInternalServerError)
		return
	}
	h.respondJSON(w, http.StatusOK, bibmap)
}

func (h *DBHandler) PublishBibMap(w http.ResponseWriter, r *http.Request) {
	h.setPublished(w, r, true)
}

func (h *DBHandler) UnpublishBibMap(w http.ResponseWriter, r *http.Request) {
	h.setPublished(w, r, false)
}

// GetPublicBibMap serves a published map without authentication.
func (h *DBHandler) GetPublicBibMap(w http.ResponseWriter, r *http.Request) {
	bibmapID, ok := pathID(r, "bibmapID")
	if !ok {
		http.Error(w, "Invalid bib map ID", http.StatusBadRequest)
		return
	}

	var bibmap models.BibMap
	if err := h.DB.Preload("Nodes").Preload("Nodes.Taxonomies").Preload("Connections").
		First(&bibmap, bibmapID).Error; err != nil {
		http.Error(w, "BibMap not found", http.StatusNotFound)
		return
	}
	if !bibmap.IsPublished {
		http.Error(w, "This bib map is not published", http.StatusForbidden)
		return
	}
	h.respondJSON(w, http.StatusOK, bibmap)
}
