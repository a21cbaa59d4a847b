package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/bibmap/bibmap-api/middleware"
	"github.com/bibmap/bibmap-api/models"
	"github.com/bibmap/bibmap-api/services"
)

func (h *DBHandler) ListReferences(w http.ResponseWriter, r *http.Request) {
	query := scopeToRequester(h.DB.Model(&models.Reference{}), middleware.UserFrom(r)).
		Preload("Taxonomies")

	if taxonomyID := r.URL.Query().Get("taxonomy_id"); taxonomyID != "" {
		query = query.Joins("JOIN reference_taxonomies rt ON rt.reference_id = \"references\".id").
			Where("rt.taxonomy_id = ?", taxonomyID)
	}

	var references []models.Reference
	if err := query.Order("\"references\".id").Find(&references).Error; err != nil {
		http.Error(w, "Error retrieving references", http.StatusInternalServerError)
		return
	}
	h.respondJSON(w, http.StatusOK, references)
}

type referenceRequest struct {
	BibtexKey      *string `json:"bibtex_key"`
	EntryType      *string `json:"entry_type"`
	Title          *string `json:"title"`
	Author         *string `json:"author"`
	Year           *string `json:"year"`
	Journal        *string `json:"journal"`
	Booktitle      *string `json:"booktitle"`
	Publisher      *string `json:"publisher"`
	Volume         *string `json:"volume"`
	Number         *string `json:"number"`
	Pages          *string `json:"pages"`
	DOI            *string `json:"doi"`
	URL            *string `json:"url"`
	Abstract       *string `json:"abstract"`
	RawBibtex      *string `json:"raw_bibtex"`
	ExtraFields    *string `json:"extra_fields"`
	LegendCategory *string `json:"legend_category"`
	TaxonomyIDs    []uint  `json:"taxonomy_ids"`
}

func (h *DBHandler) CreateReference(w http.ResponseWriter, r *http.Request) {
	var requestData referenceRequest
	if err := json.NewDecoder(r.Body).Decode(&requestData); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if requestData.BibtexKey == nil || *requestData.BibtexKey == "" ||
		requestData.EntryType == nil || *requestData.EntryType == "" ||
		requestData.RawBibtex == nil || *requestData.RawBibtex == "" {
		http.Error(w, "bibtex_key, entry_type and raw_bibtex are required", http.StatusBadRequest)
		return
	}

	var existing models.Reference
	if err := h.DB.Where("bibtex_key = ?", *requestData.BibtexKey).First(&existing).Error; err == nil {
		http.Error(w, "Reference with this BibTeX key already exists", http.StatusBadRequest)
		return
	}

	reference := models.Reference{
		BibtexKey: *requestData.BibtexKey,
		EntryType: *requestData.EntryType,
		RawBibtex: *requestData.RawBibtex,
		UserID:    ownerID(middleware.UserFrom(r)),
	}
	applyReferenceFields(&reference, &requestData)

	if err := h.DB.Create(&reference).Error; err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if len(requestData.TaxonomyIDs) > 0 {
		var taxonomies []models.Taxonomy
		h.DB.Where("id IN ?", requestData.TaxonomyIDs).Find(&taxonomies)
		if err := h.DB.Model(&reference).Association("Taxonomies").Replace(taxonomies); err != nil {
			http.Error(w, "Failed to attach taxonomies", http.StatusInternalServerError)
			return
		}
		reference.Taxonomies = taxonomies
	}

	h.respondJSON(w, http.StatusCreated, reference)
}

func applyReferenceFields(reference *models.Reference, req *referenceRequest) {
	if req.Title != nil {
		reference.Title = *req.Title
	}
	if req.Author != nil {
		reference.Author = *req.Author
	}
	if req.Year != nil {
		reference.Year = *req.Year
	}
	if req.Journal != nil {
		reference.Journal = *req.Journal
	}
	if req.Booktitle != nil {
		reference.Booktitle = *req.Booktitle
	}
	if req.Publisher != nil {
		reference.Publisher = *req.Publisher
	}
	if req.Volume != nil {
		reference.Volume = *req.Volume
	}
	if req.Number != nil {
		reference.Number = *req.Number
	}
	if req.Pages != nil {
		reference.Pages = *req.Pages
	}
	if req.DOI != nil {
		reference.DOI = *req.DOI
	}
	if req.URL != nil {
		reference.URL = *req.URL
	}
	if req.Abstract != nil {
		reference.Abstract = *req.Abstract
	}
	if req.ExtraFields != nil {
		reference.ExtraFields = *req.ExtraFields
	}
	if req.LegendCategory != nil {
		// Legend colors are stored uppercased
		reference.LegendCategory = strings.ToUpper(*req.LegendCategory)
	}
}

// ImportBibTeX bulk-imports references from raw BibTeX. Each entry commits
// on its own: duplicates and bad entries become error strings while the
// rest import. Partial imports are by design.
func (h *DBHandler) ImportBibTeX(w http.ResponseWriter, r *http.Request) {
	var requestData struct {
		BibtexContent  string `json:"bibtex_content"`
		LegendCategory string `json:"legend_category"`
		TaxonomyIDs    []uint `json:"taxonomy_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&requestData); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if requestData.BibtexContent == "" {
		http.Error(w, "bibtex_content is required", http.StatusBadRequest)
		return
	}

	entries, parseErrors := services.ParseBibTeX(requestData.BibtexContent)
	errors := append([]string{}, parseErrors...)

	var taxonomies []models.Taxonomy
	if len(requestData.TaxonomyIDs) > 0 {
		h.DB.Where("id IN ?", requestData.TaxonomyIDs).Find(&taxonomies)
	}

	legendCategory := strings.ToUpper(requestData.LegendCategory)
	user := middleware.UserFrom(r)

	imported := []models.Reference{}
	for _, entry := range entries {
		var existing models.Reference
		if err := h.DB.Where("bibtex_key = ?", entry.BibtexKey).First(&existing).Error; err == nil {
			errors = append(errors, fmt.Sprintf("Skipped duplicate: %s", entry.BibtexKey))
			continue
		}

		reference := models.Reference{
			BibtexKey:      entry.BibtexKey,
			EntryType:      entry.EntryType,
			Title:          entry.Title,
			Author:         entry.Author,
			Year:           entry.Year,
			Journal:        entry.Journal,
			Booktitle:      entry.Booktitle,
			Publisher:      entry.Publisher,
			Volume:         entry.Volume,
			Number:         entry.Number,
			Pages:          entry.Pages,
			DOI:            entry.DOI,
			URL:            entry.URL,
			Abstract:       entry.Abstract,
			RawBibtex:      entry.RawBibtex,
			ExtraFields:    entry.ExtraFields,
			LegendCategory: legendCategory,
			UserID:         ownerID(user),
		}
		if err := h.DB.Create(&reference).Error; err != nil {
			errors = append(errors, fmt.Sprintf("Error importing %s: %v", entry.BibtexKey, err))
			continue
		}
		if len(taxonomies) > 0 {
			if err := h.DB.Model(&reference).Association("Taxonomies").Replace(taxonomies); err != nil {
				errors = append(errors, fmt.Sprintf("Error tagging %s: %v", entry.BibtexKey, err))
			} else {
				reference.Taxonomies = taxonomies
			}
		}
		imported = append(imported, reference)
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"imported":   len(imported),
		"errors":     errors,
		"references": imported,
	})
}

func (h *DBHandler) loadReference(w http.ResponseWriter, r *http.Request) (*models.Reference, bool) {
	referenceID, ok := pathID(r, "referenceID")
	if !ok {
		http.Error(w, "Invalid reference ID", http.StatusBadRequest)
		return nil, false
	}
	var reference models.Reference
	if err := h.DB.Preload("Taxonomies").First(&reference, referenceID).Error; err != nil {
		http.Error(w, "Reference not found", http.StatusNotFound)
		return nil, false
	}
	if !checkOwnership(middleware.UserFrom(r), reference.UserID) {
		http.Error(w, "Access denied", http.StatusForbidden)
		return nil, false
	}
	return &reference, true
}

func (h *DBHandler) GetReference(w http.ResponseWriter, r *http.Request) {
	reference, ok := h.loadReference(w, r)
	if !ok {
		return
	}
	h.respondJSON(w, http.StatusOK, reference)
}

func (h *DBHandler) UpdateReference(w http.ResponseWriter, r *http.Request) {
	reference, ok := h.loadReference(w, r)
	if !ok {
		return
	}

	var requestData referenceRequest
	if err := json.NewDecoder(r.Body).Decode(&requestData); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if requestData.BibtexKey != nil && *requestData.BibtexKey != reference.BibtexKey {
		var existing models.Reference
		if err := h.DB.Where("bibtex_key = ?", *requestData.BibtexKey).First(&existing).Error; err == nil {
			http.Error(w, "Reference with this BibTeX key already exists", http.StatusBadRequest)
			return
		}
		reference.BibtexKey = *requestData.BibtexKey
	}
	if requestData.EntryType != nil {
		reference.EntryType = *requestData.EntryType
	}
	if requestData.RawBibtex != nil {
		reference.RawBibtex = *requestData.RawBibtex
	}
	applyReferenceFields(reference, &requestData)

	if err := h.DB.Save(reference).Error; err != nil {
		http.Error(w, "Failed to update reference", http.StatusInternalServerError)
		return
	}

	if requestData.TaxonomyIDs != nil {
		var taxonomies []models.Taxonomy
		h.DB.Where("id IN ?", requestData.TaxonomyIDs).Find(&taxonomies)
		if err := h.DB.Model(reference).Association("Taxonomies").Replace(taxonomies); err != nil {
			http.Error(w, "Failed to update taxonomies", http.StatusInternalServerError)
			return
		}
		reference.Taxonomies = taxonomies
	}

	h.respondJSON(w, http.StatusOK, reference)
}

// UpdateReferenceFromBibTeX replaces a reference's fields by re-parsing a
// single BibTeX entry. Unlike bulk import, a parse error here is a hard
// failure.
func (h *DBHandler) UpdateReferenceFromBibTeX(w http.ResponseWriter, r *http.Request) {
	reference, ok := h.loadReference(w, r)
	if !ok {
		return
	}

	var requestData struct {
		BibtexContent string `json:"bibtex_content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&requestData); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	entries, parseErrors := services.ParseBibTeX(requestData.BibtexContent)
	if len(parseErrors) > 0 {
		// Parser errors already carry the "BibTeX parsing error:" prefix
		http.Error(w, parseErrors[0], http.StatusBadRequest)
		return
	}
	if len(entries) == 0 {
		http.Error(w, "No valid BibTeX entry found", http.StatusBadRequest)
		return
	}

	entry := entries[0]
	if entry.BibtexKey != reference.BibtexKey {
		var existing models.Reference
		if err := h.DB.Where("bibtex_key = ?", entry.BibtexKey).First(&existing).Error; err == nil {
			http.Error(w, "Reference with this BibTeX key already exists", http.StatusBadRequest)
			return
		}
	}

	reference.BibtexKey = entry.BibtexKey
	reference.EntryType = entry.EntryType
	reference.Title = entry.Title
	reference.Author = entry.Author
	reference.Year = entry.Year
	reference.Journal = entry.Journal
	reference.Booktitle = entry.Booktitle
	reference.Publisher = entry.Publisher
	reference.Volume = entry.Volume
	reference.Number = entry.Number
	reference.Pages = entry.Pages
	reference.DOI = entry.DOI
	reference.URL = entry.URL
	reference.Abstract = entry.Abstract
	reference.RawBibtex = entry.RawBibtex
	reference.ExtraFields = entry.ExtraFields

	if err := h.DB.Save(reference).Error; err != nil {
		http.Error(w, "Failed to update reference", http.StatusInternalServerError)
		return
	}
	h.respondJSON(w, http.StatusOK, reference)
}

func (h *DBHandler) DeleteReference(w http.ResponseWriter, r *http.Request) {
	reference, ok := h.loadReference(w, r)
	if !ok {
		return
	}

	tx := h.DB.Begin()
	if tx.Error != nil {
		http.Error(w, "Could not begin transaction", http.StatusInternalServerError)
		return
	}
	if err := tx.Model(reference).Association("Taxonomies").Clear(); err != nil {
		tx.Rollback()
		http.Error(w, "Failed to detach taxonomies", http.StatusInternalServerError)
		return
	}
	if err := tx.Delete(reference).Error; err != nil {
		tx.Rollback()
		http.Error(w, "Failed to delete reference", http.StatusInternalServerError)
		return
	}
	if err := tx.Commit().Error; err != nil {
		http.Error(w, "Could not commit transaction", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
