package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/bibmap/bibmap-api/middleware"
	"github.com/bibmap/bibmap-api/models"
	"github.com/bibmap/bibmap-api/utils"
)

var (
	validThemes = map[string]bool{"light": true, "dark": true, "system": true}
	validShapes = map[string]bool{
		"rectangle":         true,
		"rounded-rectangle": true,
		"ellipse":           true,
		"diamond":           true,
	}
	validRefsSorts = map[string]bool{
		"imported-desc": true,
		"imported-asc":  true,
		"year-desc":     true,
		"year-asc":      true,
		"title-asc":     true,
		"title-desc":    true,
		"author-asc":    true,
		"author-desc":   true,
	}
	validPageSizes = map[int]bool{20: true, 50: true, 100: true, 200: true}
)

// settingsFor returns the user's settings row, creating defaults on first
// access.
func (h *DBHandler) settingsFor(userID uint) (*models.UserSettings, error) {
	var settings models.UserSettings
	if err := h.DB.Where("user_id = ?", userID).First(&settings).Error; err == nil {
		return &settings, nil
	}
	settings = models.DefaultSettings(userID)
	if err := h.DB.Create(&settings).Error; err != nil {
		return nil, err
	}
	return &settings, nil
}

func (h *DBHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFrom(r)
	settings, err := h.settingsFor(user.ID)
	if err != nil {
		http.Error(w, "Error retrieving settings", http.StatusInternalServerError)
		return
	}
	h.respondJSON(w, http.StatusOK, settings)
}

func (h *DBHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFrom(r)
	settings, err := h.settingsFor(user.ID)
	if err != nil {
		http.Error(w, "Error retrieving settings", http.StatusInternalServerError)
		return
	}

	var requestData struct {
		Theme               *string `json:"theme"`
		DefaultNodeColor    *string `json:"default_node_color"`
		DefaultTextColor    *string `json:"default_text_color"`
		DefaultNodeShape    *string `json:"default_node_shape"`
		SnapToGrid          *bool   `json:"snap_to_grid"`
		GridSize            *int    `json:"grid_size"`
		AutoSave            *bool   `json:"auto_save"`
		DefaultRefsPageSize *int    `json:"default_refs_page_size"`
		DefaultRefsSort     *string `json:"default_refs_sort"`
		EmailNotifications  *bool   `json:"email_notifications"`
	}
	if err := json.NewDecoder(r.Body).Decode(&requestData); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if requestData.Theme != nil {
		if !validThemes[*requestData.Theme] {
			http.Error(w, "Theme must be light, dark or system", http.StatusBadRequest)
			return
		}
		settings.Theme = *requestData.Theme
	}
	if requestData.DefaultNodeColor != nil {
		if !utils.IsHexColor(*requestData.DefaultNodeColor) {
			http.Error(w, "default_node_color must be a hex color", http.StatusBadRequest)
			return
		}
		settings.DefaultNodeColor = *requestData.DefaultNodeColor
	}
	if requestData.DefaultTextColor != nil {
		if !utils.IsHexColor(*requestData.DefaultTextColor) {
			http.Error(w, "default_text_color must be a hex color", http.StatusBadRequest)
			return
		}
		settings.DefaultTextColor = *requestData.DefaultTextColor
	}
	if requestData.DefaultNodeShape != nil {
		if !validShapes[*requestData.DefaultNodeShape] {
			http.Error(w, "Invalid node shape", http.StatusBadRequest)
			return
		}
		settings.DefaultNodeShape = *requestData.DefaultNodeShape
	}
	if requestData.SnapToGrid != nil {
		settings.SnapToGrid = *requestData.SnapToGrid
	}
	if requestData.GridSize != nil {
		if *requestData.GridSize < 5 || *requestData.GridSize > 100 {
			http.Error(w, "grid_size must be between 5 and 100", http.StatusBadRequest)
			return
		}
		settings.GridSize = *requestData.GridSize
	}
	if requestData.AutoSave != nil {
		settings.AutoSave = *requestData.AutoSave
	}
	if requestData.DefaultRefsPageSize != nil {
		if !validPageSizes[*requestData.DefaultRefsPageSize] {
			http.Error(w, "default_refs_page_size must be one of 20, 50, 100, 200", http.StatusBadRequest)
			return
		}
		settings.DefaultRefsPageSize = *requestData.DefaultRefsPageSize
	}
	if requestData.DefaultRefsSort != nil {
		if !validRefsSorts[*requestData.DefaultRefsSort] {
			http.Error(w, "Invalid default_refs_sort", http.StatusBadRequest)
			return
		}
		settings.DefaultRefsSort = *requestData.DefaultRefsSort
	}
	if requestData.EmailNotifications != nil {
		settings.EmailNotifications = *requestData.EmailNotifications
	}

	if err := h.DB.Save(settings).Error; err != nil {
		http.Error(w, "Failed to update settings", http.StatusInternalServerError)
		return
	}
	h.respondJSON(w, http.StatusOK, settings)
}

// ResetSettings drops every preference back to its default.
func (h *DBHandler) ResetSettings(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFrom(r)
	settings, err := h.settingsFor(user.ID)
	if err != nil {
		http.Error(w, "Error retrieving settings", http.StatusInternalServerError)
		return
	}

	defaults := models.DefaultSettings(user.ID)
	defaults.ID = settings.ID
	if err := h.DB.Save(&defaults).Error; err != nil {
		http.Error(w, "Failed to reset settings", http.StatusInternalServerError)
		return
	}
	h.respondJSON(w, http.StatusOK, defaults)
}
