package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/bibmap/bibmap-api/middleware"
	"github.com/bibmap/bibmap-api/models"
	"gorm.io/gorm"
)

// visibleTaxonomies scopes a taxonomy query to what the requester may see:
// users get their own tags plus global and legacy ownerless ones, anonymous
// callers get global and ownerless tags, admins get everything.
func visibleTaxonomies(query *gorm.DB, user *models.User) *gorm.DB {
	if user == nil {
		return query.Where("is_global = ? OR user_id IS NULL", true)
	}
	if !user.IsAdmin() {
		return query.Where("user_id = ? OR is_global = ? OR user_id IS NULL", user.ID, true)
	}
	return query
}

func (h *DBHandler) ListTaxonomies(w http.ResponseWriter, r *http.Request) {
	var taxonomies []models.Taxonomy
	query := visibleTaxonomies(h.DB.Model(&models.Taxonomy{}), middleware.UserFrom(r))
	if err := query.Order("id").Find(&taxonomies).Error; err != nil {
		http.Error(w, "Error retrieving taxonomies", http.StatusInternalServerError)
		return
	}
	h.respondJSON(w, http.StatusOK, taxonomies)
}

func (h *DBHandler) CreateTaxonomy(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFrom(r)

	var requestData struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Color       string `json:"color"`
	}
	if err := json.NewDecoder(r.Body).Decode(&requestData); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if requestData.Name == "" {
		http.Error(w, "Name is required", http.StatusBadRequest)
		return
	}

	// Reject duplicate names within the requester's visible set
	var existing models.Taxonomy
	dupQuery := h.DB.Where("name = ?", requestData.Name)
	if user != nil {
		dupQuery = dupQuery.Where("user_id = ? OR is_global = ?", user.ID, true)
	} else {
		dupQuery = dupQuery.Where("user_id IS NULL")
	}
	if err := dupQuery.First(&existing).Error; err == nil {
		http.Error(w, "Taxonomy with this name already exists", http.StatusBadRequest)
		return
	}

	color := requestData.Color
	if color == "" {
		color = "#6B7280"
	}
	taxonomy := models.Taxonomy{
		Name:        requestData.Name,
		Description: requestData.Description,
		Color:       color,
		UserID:      ownerID(user),
		IsGlobal:    false,
	}
	if err := h.DB.Create(&taxonomy).Error; err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.respondJSON(w, http.StatusCreated, taxonomy)
}

// CreateGlobalTaxonomy creates an admin-owned tag visible to everyone.
func (h *DBHandler) CreateGlobalTaxonomy(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFrom(r)

	var requestData struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Color       string `json:"color"`
	}
	if err := json.NewDecoder(r.Body).Decode(&requestData); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if requestData.Name == "" {
		http.Error(w, "Name is required", http.StatusBadRequest)
		return
	}

	var existing models.Taxonomy
	if err := h.DB.Where("name = ? AND is_global = ?", requestData.Name, true).First(&existing).Error; err == nil {
		http.Error(w, "Global taxonomy with this name already exists", http.StatusBadRequest)
		return
	}

	color := requestData.Color
	if color == "" {
		color = "#6B7280"
	}
	taxonomy := models.Taxonomy{
		Name:        requestData.Name,
		Description: requestData.Description,
		Color:       color,
		UserID:      ownerID(user),
		IsGlobal:    true,
	}
	if err := h.DB.Create(&taxonomy).Error; err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.respondJSON(w, http.StatusCreated, taxonomy)
}

func (h *DBHandler) loadTaxonomy(w http.ResponseWriter, r *http.Request) (*models.Taxonomy, bool) {
	taxonomyID, ok := pathID(r, "taxonomyID")
	if !ok {
		http.Error(w, "Invalid taxonomy ID", http.StatusBadRequest)
		return nil, false
	}
	var taxonomy models.Taxonomy
	if err := h.DB.First(&taxonomy, taxonomyID).Error; err != nil {
		http.Error(w, "Taxonomy not found", http.StatusNotFound)
		return nil, false
	}
	return &taxonomy, true
}

func (h *DBHandler) GetTaxonomy(w http.ResponseWriter, r *http.Request) {
	taxonomy, ok := h.loadTaxonomy(w, r)
	if !ok {
		return
	}
	// Global tags are readable by everyone
	if !taxonomy.IsGlobal && !checkOwnership(middleware.UserFrom(r), taxonomy.UserID) {
		http.Error(w, "Access denied", http.StatusForbidden)
		return
	}
	h.respondJSON(w, http.StatusOK, taxonomy)
}

// canEditTaxonomy: global tags are admin-only, private tags follow the
// usual ownership rule.
func canEditTaxonomy(user *models.User, taxonomy *models.Taxonomy) (bool, string) {
	if taxonomy.IsGlobal {
		if user == nil || !user.IsAdmin() {
			return false, "Only admins can edit global tags"
		}
		return true, ""
	}
	if !checkOwnership(user, taxonomy.UserID) {
		return false, "Access denied"
	}
	return true, ""
}

func (h *DBHandler) UpdateTaxonomy(w http.ResponseWriter, r *http.Request) {
	taxonomy, ok := h.loadTaxonomy(w, r)
	if !ok {
		return
	}
	user := middleware.UserFrom(r)
	if allowed, reason := canEditTaxonomy(user, taxonomy); !allowed {
		http.Error(w, reason, http.StatusForbidden)
		return
	}

	var requestData struct {
		Name        *string `json:"name"`
		Description *string `json:"description"`
		Color       *string `json:"color"`
	}
	if err := json.NewDecoder(r.Body).Decode(&requestData); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if requestData.Name != nil && *requestData.Name != taxonomy.Name {
		var existing models.Taxonomy
		dupQuery := h.DB.Where("name = ? AND id != ?", *requestData.Name, taxonomy.ID)
		if user != nil {
			dupQuery = dupQuery.Where("user_id = ? OR is_global = ?", user.ID, true)
		}
		if err := dupQuery.First(&existing).Error; err == nil {
			http.Error(w, "Taxonomy with this name already exists", http.StatusBadRequest)
			return
		}
		taxonomy.Name = *requestData.Name
	}
	if requestData.Description != nil {
		taxonomy.Description = *requestData.Description
	}
	if requestData.Color != nil {
		taxonomy.Color = *requestData.Color
	}

	if err := h.DB.Save(taxonomy).Error; err != nil {
		http.Error(w, "Failed to update taxonomy", http.StatusInternalServerError)
		return
	}
	h.respondJSON(w, http.StatusOK, taxonomy)
}

func (h *DBHandler) DeleteTaxonomy(w http.ResponseWriter, r *http.Request) {
	taxonomy, ok := h.loadTaxonomy(w, r)
	if !ok {
		return
	}
	if allowed, reason := canEditTaxonomy(middleware.UserFrom(r), taxonomy); !allowed {
		http.Error(w, reason, http.StatusForbidden)
		return
	}

	tx := h.DB.Begin()
	if tx.Error != nil {
		http.Error(w, "Could not begin transaction", http.StatusInternalServerError)
		return
	}
	for _, joinTable := range []string{"node_taxonomies", "reference_taxonomies", "media_taxonomies"} {
		if err := tx.Exec("DELETE FROM "+joinTable+" WHERE taxonomy_id = ?", taxonomy.ID).Error; err != nil {
			tx.Rollback()
			http.Error(w, "Failed to detach taxonomy", http.StatusInternalServerError)
			return
		}
	}
	if err := tx.Delete(taxonomy).Error; err != nil {
		tx.Rollback()
		http.Error(w, "Failed to delete taxonomy", http.StatusInternalServerError)
		return
	}
	if err := tx.Commit().Error; err != nil {
		http.Error(w, "Could not commit transaction", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetTaxonomyReferences lists references carrying this taxonomy, scoped to
// the requester.
func (h *DBHandler) GetTaxonomyReferences(w http.ResponseWriter, r *http.Request) {
	taxonomy, ok := h.loadTaxonomy(w, r)
	if !ok {
		return
	}

	var references []models.Reference
	query := h.DB.Model(&models.Reference{}).
		Joins("JOIN reference_taxonomies rt ON rt.reference_id = \"references\".id").
		Where("rt.taxonomy_id = ?", taxonomy.ID).
		Preload("Taxonomies")
	query = scopeToRequester(query, middleware.UserFrom(r))
	if err := query.Order("\"references\".id").Find(&references).Error; err != nil {
		http.Error(w, "Error retrieving references", http.StatusInternalServerError)
		return
	}
	h.respondJSON(w, http.StatusOK, references)
}

// GetTaxonomyNodes lists nodes carrying this taxonomy, scoped through the
// owning bib map.
func (h *DBHandler) GetTaxonomyNodes(w http.ResponseWriter, r *http.Request) {
	taxonomy, ok := h.loadTaxonomy(w, r)
	if !ok {
		return
	}

	user := middleware.UserFrom(r)
	query := h.DB.Model(&models.Node{}).
		Joins("JOIN node_taxonomies nt ON nt.node_id = nodes.id").
		Joins("JOIN bibmaps ON bibmaps.id = nodes.bibmap_id").
		Where("nt.taxonomy_id = ?", taxonomy.ID).
		Preload("Taxonomies")
	if user == nil {
		query = query.Where("bibmaps.user_id IS NULL")
	} else if !user.IsAdmin() {
		query = query.Where("bibmaps.user_id = ?", user.ID)
	}

	var nodes []models.Node
	if err := query.Order("nodes.id").Find(&nodes).Error; err != nil {
		http.Error(w, "Error retrieving nodes", http.StatusInternalServerError)
		return
	}
	h.respondJSON(w, http.StatusOK, nodes)
}
