package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/bibmap/bibmap-api/middleware"
	"github.com/bibmap/bibmap-api/models"
)

func (h *DBHandler) ListMedia(w http.ResponseWriter, r *http.Request) {
	query := scopeToRequester(h.DB.Model(&models.Media{}), middleware.UserFrom(r)).
		Preload("Taxonomies")

	if taxonomyID := r.URL.Query().Get("taxonomy_id"); taxonomyID != "" {
		query = query.Joins("JOIN media_taxonomies mt ON mt.media_id = media.id").
			Where("mt.taxonomy_id = ?", taxonomyID)
	}

	var media []models.Media
	if err := query.Order("media.created_at DESC").Find(&media).Error; err != nil {
		http.Error(w, "Error retrieving media", http.StatusInternalServerError)
		return
	}
	h.respondJSON(w, http.StatusOK, media)
}

func (h *DBHandler) CreateMedia(w http.ResponseWriter, r *http.Request) {
	var requestData struct {
		Title          string `json:"title"`
		URL            string `json:"url"`
		Description    string `json:"description"`
		LegendCategory string `json:"legend_category"`
		TaxonomyIDs    []uint `json:"taxonomy_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&requestData); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if requestData.Title == "" || requestData.URL == "" {
		http.Error(w, "title and url are required", http.StatusBadRequest)
		return
	}

	media := models.Media{
		Title:          requestData.Title,
		URL:            requestData.URL,
		Description:    requestData.Description,
		LegendCategory: strings.ToUpper(requestData.LegendCategory),
		UserID:         ownerID(middleware.UserFrom(r)),
	}
	if err := h.DB.Create(&media).Error; err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if len(requestData.TaxonomyIDs) > 0 {
		var taxonomies []models.Taxonomy
		h.DB.Where("id IN ?", requestData.TaxonomyIDs).Find(&taxonomies)
		if err := h.DB.Model(&media).Association("Taxonomies").Replace(taxonomies); err != nil {
			http.Error(w, "Failed to attach taxonomies", http.StatusInternalServerError)
			return
		}
		media.Taxonomies = taxonomies
	}

	h.respondJSON(w, http.StatusCreated, media)
}

func (h *DBHandler) loadMedia(w http.ResponseWriter, r *http.Request) (*models.Media, bool) {
	mediaID, ok := pathID(r, "mediaID")
	if !ok {
		http.Error(w, "Invalid media ID", http.StatusBadRequest)
		return nil, false
	}
	var media models.Media
	if err := h.DB.Preload("Taxonomies").First(&media, mediaID).Error; err != nil {
		http.Error(w, "Media not found", http.StatusNotFound)
		return nil, false
	}
	if !checkOwnership(middleware.UserFrom(r), media.UserID) {
		http.Error(w, "Access denied", http.StatusForbidden)
		return nil, false
	}
	return &media, true
}

func (h *DBHandler) GetMedia(w http.ResponseWriter, r *http.Request) {
	media, ok := h.loadMedia(w, r)
	if !ok {
		return
	}
	h.respondJSON(w, http.StatusOK, media)
}

func (h *DBHandler) UpdateMedia(w http.ResponseWriter, r *http.Request) {
	media, ok := h.loadMedia(w, r)
	if !ok {
		return
	}

	var requestData struct {
		Title          *string `json:"title"`
		URL            *string `json:"url"`
		Description    *string `json:"description"`
		LegendCategory *string `json:"legend_category"`
		TaxonomyIDs    []uint  `json:"taxonomy_ids"`
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
		media.Title = *requestData.Title
	}
	if requestData.URL != nil {
		if *requestData.URL == "" {
			http.Error(w, "URL cannot be empty", http.StatusBadRequest)
			return
		}
		media.URL = *requestData.URL
	}
	if requestData.Description != nil {
		media.Description = *requestData.Description
	}
	if requestData.LegendCategory != nil {
		media.LegendCategory = strings.ToUpper(*requestData.LegendCategory)
	}

	if err := h.DB.Save(media).Error; err != nil {
		http.Error(w, "Failed to update media", http.StatusInternalServerError)
		return
	}

	if requestData.TaxonomyIDs != nil {
		var taxonomies []models.Taxonomy
		h.DB.Where("id IN ?", requestData.TaxonomyIDs).Find(&taxonomies)
		if err := h.DB.Model(media).Association("Taxonomies").Replace(taxonomies); err != nil {
			http.Error(w, "Failed to update taxonomies", http.StatusInternalServerError)
			return
		}
		media.Taxonomies = taxonomies
	}

	h.respondJSON(w, http.StatusOK, media)
}

func (h *DBHandler) DeleteMedia(w http.ResponseWriter, r *http.Request) {
	media, ok := h.loadMedia(w, r)
	if !ok {
		return
	}

	tx := h.DB.Begin()
	if tx.Error != nil {
		http.Error(w, "Could not begin transaction", http.StatusInternalServerError)
		return
	}
	if err := tx.Model(media).Association("Taxonomies").Clear(); err != nil {
		tx.Rollback()
		http.Error(w, "Failed to detach taxonomies", http.StatusInternalServerError)
		return
	}
	if err := tx.Delete(media).Error; err != nil {
		tx.Rollback()
		http.Error(w, "Failed to delete media", http.StatusInternalServerError)
		return
	}
	if err := tx.Commit().Error; err != nil {
		http.Error(w, "Could not commit transaction", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
