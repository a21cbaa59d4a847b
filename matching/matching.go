// Package matching computes which references and media are relevant to a
// node: anything sharing a taxonomy with it, plus anything whose legend
// category color equals the node's background color.
package matching

import (
	"strings"

	"github.com/bibmap/bibmap-api/models"
	"gorm.io/gorm"
)

// MatchReason explains why a candidate was included in a match result.
// Type is either "taxonomy" or "legend_category".
type MatchReason struct {
	Type           string `json:"type"`
	TaxonomyID     uint   `json:"taxonomy_id,omitempty"`
	TaxonomyName   string `json:"taxonomy_name,omitempty"`
	TaxonomyColor  string `json:"taxonomy_color,omitempty"`
	LegendCategory string `json:"legend_category,omitempty"`
}

type ReferenceMatch struct {
	models.Reference
	MatchReasons []MatchReason `json:"match_reasons"`
}

type MediaMatch struct {
	models.Media
	MatchReasons []MatchReason `json:"match_reasons"`
}

// Scope narrows match candidates to what the caller may see.
type Scope struct {
	restrictOwner bool
	owner         *uint
	user          *models.User
}

// ForRequester scopes candidates by the requesting user: admins see
// everything, users see their own rows, anonymous callers see ownerless
// rows.
func ForRequester(user *models.User) Scope {
	return Scope{user: user}
}

// ForOwner scopes candidates to rows owned by a specific owner, regardless
// of who is asking. Used for published maps; a nil owner means the map
// itself is ownerless (local mode) and only ownerless rows qualify.
func ForOwner(owner *uint) Scope {
	return Scope{restrictOwner: true, owner: owner}
}

func (s Scope) apply(q *gorm.DB) *gorm.DB {
	if s.restrictOwner {
		if s.owner == nil {
			return q.Where("user_id IS NULL")
		}
		return q.Where("user_id = ?", *s.owner)
	}
	if s.user == nil {
		return q.Where("user_id IS NULL")
	}
	if !s.user.IsAdmin() {
		return q.Where("user_id = ?", s.user.ID)
	}
	return q
}

// legendColor returns the node's background color for legend matching, or
// "" when the node is still at the default color. Default-colored nodes
// would otherwise match every candidate tagged with the default legend
// color.
func legendColor(node *models.Node) string {
	color := strings.ToUpper(node.BackgroundColor)
	if color == "" || color == strings.ToUpper(models.DefaultNodeColor) {
		return ""
	}
	return color
}

func nodeTaxonomyIDs(node *models.Node) []uint {
	ids := make([]uint, 0, len(node.Taxonomies))
	for _, t := range node.Taxonomies {
		ids = append(ids, t.ID)
	}
	return ids
}

func reasonsFor(node *models.Node, taxonomies []models.Taxonomy, legendCategory, nodeColor string) []MatchReason {
	nodeTaxonomies := make(map[uint]bool, len(node.Taxonomies))
	for _, t := range node.Taxonomies {
		nodeTaxonomies[t.ID] = true
	}

	var reasons []MatchReason
	for _, t := range taxonomies {
		if nodeTaxonomies[t.ID] {
			reasons = append(reasons, MatchReason{
				Type:          "taxonomy",
				TaxonomyID:    t.ID,
				TaxonomyName:  t.Name,
				TaxonomyColor: t.Color,
			})
		}
	}
	if nodeColor != "" && legendCategory != "" && strings.ToUpper(legendCategory) == nodeColor {
		reasons = append(reasons, MatchReason{
			Type:           "legend_category",
			LegendCategory: legendCategory,
		})
	}
	return reasons
}

// ReferencesForNode returns the references matching the node, each with one
// match reason per satisfied condition. Duplicates from multi-way joins are
// collapsed; results are ordered by id.
func ReferencesForNode(db *gorm.DB, node *models.Node, scope Scope) ([]ReferenceMatch, error) {
	taxIDs := nodeTaxonomyIDs(node)
	nodeColor := legendColor(node)
	if len(taxIDs) == 0 && nodeColor == "" {
		return []ReferenceMatch{}, nil
	}

	query := db.Model(&models.Reference{}).Preload("Taxonomies")
	taxonomySub := db.Table("reference_taxonomies").Select("reference_id").Where("taxonomy_id IN ?", taxIDs)
	switch {
	case len(taxIDs) > 0 && nodeColor != "":
		query = query.Where("id IN (?) OR UPPER(legend_category) = ?", taxonomySub, nodeColor)
	case len(taxIDs) > 0:
		query = query.Where("id IN (?)", taxonomySub)
	default:
		query = query.Where("UPPER(legend_category) = ?", nodeColor)
	}
	query = scope.apply(query).Order("id")

	var references []models.Reference
	if err := query.Find(&references).Error; err != nil {
		return nil, err
	}

	results := make([]ReferenceMatch, 0, len(references))
	for _, ref := range references {
		results = append(results, ReferenceMatch{
			Reference:    ref,
			MatchReasons: reasonsFor(node, ref.Taxonomies, ref.LegendCategory, nodeColor),
		})
	}
	return results, nil
}

// MediaForNode is the media counterpart of ReferencesForNode.
func MediaForNode(db *gorm.DB, node *models.Node, scope Scope) ([]MediaMatch, error) {
	taxIDs := nodeTaxonomyIDs(node)
	nodeColor := legendColor(node)
	if len(taxIDs) == 0 && nodeColor == "" {
		return []MediaMatch{}, nil
	}

	query := db.Model(&models.Media{}).Preload("Taxonomies")
	taxonomySub := db.Table("media_taxonomies").Select("media_id").Where("taxonomy_id IN ?", taxIDs)
	switch {
	case len(taxIDs) > 0 && nodeColor != "":
		query = query.Where("id IN (?) OR UPPER(legend_category) = ?", taxonomySub, nodeColor)
	case len(taxIDs) > 0:
		query = query.Where("id IN (?)", taxonomySub)
	default:
		query = query.Where("UPPER(legend_category) = ?", nodeColor)
	}
	query = scope.apply(query).Order("id")

	var items []models.Media
	if err := query.Find(&items).Error; err != nil {
		return nil, err
	}

	results := make([]MediaMatch, 0, len(items))
	for _, m := range items {
		results = append(results, MediaMatch{
			Media:        m,
			MatchReasons: reasonsFor(node, m.Taxonomies, m.LegendCategory, nodeColor),
		})
	}
	return results, nil
}
