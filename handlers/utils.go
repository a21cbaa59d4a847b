package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/bibmap/bibmap-api/middleware"
	"github.com/bibmap/bibmap-api/models"
	"gorm.io/gorm"
)

// DBHandler bundles the database connection for all API handlers.
type DBHandler struct {
	DB *gorm.DB
}

func (h *DBHandler) respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		if err := json.NewEncoder(w).Encode(v); err != nil {
			http.Error(w, "Error encoding response", http.StatusInternalServerError)
		}
	}
}

// Health is the liveness probe.
func (h *DBHandler) Health(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// pathID parses a numeric path value like {nodeID}.
func pathID(r *http.Request, name string) (uint, bool) {
	raw := r.PathValue(name)
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// checkOwnership decides whether the requester may touch a resource owned
// by ownerID. Anonymous callers reach ownerless rows only (local mode);
// authenticated users reach their own rows and ownerless rows; admins reach
// everything.
func checkOwnership(user *models.User, ownerID *uint) bool {
	if user == nil {
		return ownerID == nil
	}
	if user.IsAdmin() {
		return true
	}
	return ownerID == nil || *ownerID == user.ID
}

// bibmapForAccess loads a bib map and enforces the ownership rule, writing
// the error response itself on failure.
func (h *DBHandler) bibmapForAccess(w http.ResponseWriter, r *http.Request, bibmapID uint) (*models.BibMap, bool) {
	var bibmap models.BibMap
	if err := h.DB.First(&bibmap, bibmapID).Error; err != nil {
		http.Error(w, "BibMap not found", http.StatusNotFound)
		return nil, false
	}
	if !checkOwnership(middleware.UserFrom(r), bibmap.UserID) {
		http.Error(w, "Access denied", http.StatusForbidden)
		return nil, false
	}
	return &bibmap, true
}

// scopeToRequester narrows a list query the same way checkOwnership gates
// single rows: admins see everything, users their own rows, anonymous
// callers ownerless rows.
func scopeToRequester(query *gorm.DB, user *models.User) *gorm.DB {
	if user == nil {
		return query.Where("user_id IS NULL")
	}
	if !user.IsAdmin() {
		return query.Where("user_id = ?", user.ID)
	}
	return query
}

func ownerID(user *models.User) *uint {
	if user == nil {
		return nil
	}
	id := user.ID
	return &id
}
