package matching

import (
	"path/filepath"
	"testing"

	"github.com/bibmap/bibmap-api/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "matching_test.db")
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	if err := db.AutoMigrate(
		&models.User{}, &models.BibMap{}, &models.Node{},
		&models.Taxonomy{}, &models.Reference{}, &models.Media{},
	); err != nil {
		t.Fatalf("migrating test database: %v", err)
	}
	return db
}

func mustCreate(t *testing.T, db *gorm.DB, v interface{}) {
	t.Helper()
	if err := db.Create(v).Error; err != nil {
		t.Fatalf("creating %T: %v", v, err)
	}
}

func makeReference(key string, legend string, userID *uint, taxonomies ...models.Taxonomy) models.Reference {
	return models.Reference{
		BibtexKey:      key,
		EntryType:      "article",
		Title:          key,
		RawBibtex:      "@article{" + key + ",}",
		LegendCategory: legend,
		UserID:         userID,
		Taxonomies:     taxonomies,
	}
}

func TestLegendMatchIsCaseInsensitive(t *testing.T) {
	db := openTestDB(t)

	ref := makeReference("lower2021", "#abcdef", nil)
	mustCreate(t, db, &ref)

	node := &models.Node{BibMapID: 1, Label: "n", BackgroundColor: "#ABCDEF"}
	results, err := ReferencesForNode(db, node, ForRequester(nil))
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 match, got %d", len(results))
	}
	reasons := results[0].MatchReasons
	if len(reasons) != 1 || reasons[0].Type != "legend_category" {
		t.Fatalf("reasons = %+v", reasons)
	}
	if reasons[0].LegendCategory != "#abcdef" {
		t.Errorf("reason keeps the stored category, got %q", reasons[0].LegendCategory)
	}
}

func TestDefaultNodeColorNeverLegendMatches(t *testing.T) {
	db := openTestDB(t)

	ref := makeReference("blue2021", models.DefaultNodeColor, nil)
	mustCreate(t, db, &ref)

	node := &models.Node{BibMapID: 1, Label: "n", BackgroundColor: models.DefaultNodeColor}
	results, err := ReferencesForNode(db, node, ForRequester(nil))
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Fatalf("default-colored node must not legend-match, got %d results", len(results))
	}
}

func TestTaxonomyMatch(t *testing.T) {
	db := openTestDB(t)

	tax := models.Taxonomy{Name: "biology", Color: "#10B981"}
	mustCreate(t, db, &tax)

	matched := makeReference("tagged2021", "", nil, tax)
	mustCreate(t, db, &matched)
	unmatched := makeReference("untagged2021", "", nil)
	mustCreate(t, db, &unmatched)

	node := &models.Node{
		BibMapID:        1,
		Label:           "n",
		BackgroundColor: models.DefaultNodeColor,
		Taxonomies:      []models.Taxonomy{tax},
	}
	results, err := ReferencesForNode(db, node, ForRequester(nil))
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].BibtexKey != "tagged2021" {
		t.Fatalf("results = %+v", results)
	}
	reasons := results[0].MatchReasons
	if len(reasons) != 1 || reasons[0].Type != "taxonomy" {
		t.Fatalf("reasons = %+v", reasons)
	}
	if reasons[0].TaxonomyName != "biology" || reasons[0].TaxonomyColor != "#10B981" {
		t.Errorf("reason = %+v", reasons[0])
	}
}

func TestDoubleMatchProducesOneRowWithTwoReasons(t *testing.T) {
	db := openTestDB(t)

	tax := models.Taxonomy{Name: "physics", Color: "#F59E0B"}
	mustCreate(t, db, &tax)

	ref := makeReference("both2021", "#FF0000", nil, tax)
	mustCreate(t, db, &ref)

	node := &models.Node{
		BibMapID:        1,
		Label:           "n",
		BackgroundColor: "#FF0000",
		Taxonomies:      []models.Taxonomy{tax},
	}
	results, err := ReferencesForNode(db, node, ForRequester(nil))
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("expected one collapsed row, got %d", len(results))
	}
	if len(results[0].MatchReasons) != 2 {
		t.Fatalf("expected two reasons, got %+v", results[0].MatchReasons)
	}
	types := map[string]bool{}
	for _, reason := range results[0].MatchReasons {
		types[reason.Type] = true
	}
	if !types["taxonomy"] || !types["legend_category"] {
		t.Errorf("reason types = %v", types)
	}
}

func TestForRequesterScoping(t *testing.T) {
	db := openTestDB(t)

	alice := models.User{Email: "a@example.org", Username: "alice", Role: models.RoleUser, IsActive: true}
	mustCreate(t, db, &alice)
	admin := models.User{Email: "root@example.org", Username: "root", Role: models.RoleAdmin, IsActive: true}
	mustCreate(t, db, &admin)

	ownerless := makeReference("shared2021", "#FF0000", nil)
	mustCreate(t, db, &ownerless)
	owned := makeReference("mine2021", "#FF0000", &alice.ID)
	mustCreate(t, db, &owned)

	node := &models.Node{BibMapID: 1, Label: "n", BackgroundColor: "#FF0000"}

	anon, err := ReferencesForNode(db, node, ForRequester(nil))
	if err != nil {
		t.Fatal(err)
	}
	if len(anon) != 1 || anon[0].BibtexKey != "shared2021" {
		t.Errorf("anonymous sees ownerless rows only, got %+v", anon)
	}

	asAlice, err := ReferencesForNode(db, node, ForRequester(&alice))
	if err != nil {
		t.Fatal(err)
	}
	if len(asAlice) != 1 || asAlice[0].BibtexKey != "mine2021" {
		t.Errorf("user sees own rows only, got %+v", asAlice)
	}

	asAdmin, err := ReferencesForNode(db, node, ForRequester(&admin))
	if err != nil {
		t.Fatal(err)
	}
	if len(asAdmin) != 2 {
		t.Errorf("admin sees everything, got %d rows", len(asAdmin))
	}
}

func TestForOwnerScoping(t *testing.T) {
	db := openTestDB(t)

	alice := models.User{Email: "a@example.org", Username: "alice", Role: models.RoleUser, IsActive: true}
	mustCreate(t, db, &alice)

	ownerless := makeReference("shared2021", "#FF0000", nil)
	mustCreate(t, db, &ownerless)
	owned := makeReference("mine2021", "#FF0000", &alice.ID)
	mustCreate(t, db, &owned)

	node := &models.Node{BibMapID: 1, Label: "n", BackgroundColor: "#FF0000"}

	forAlice, err := ReferencesForNode(db, node, ForOwner(&alice.ID))
	if err != nil {
		t.Fatal(err)
	}
	if len(forAlice) != 1 || forAlice[0].BibtexKey != "mine2021" {
		t.Errorf("published-map scope follows the map owner, got %+v", forAlice)
	}

	forNobody, err := ReferencesForNode(db, node, ForOwner(nil))
	if err != nil {
		t.Fatal(err)
	}
	if len(forNobody) != 1 || forNobody[0].BibtexKey != "shared2021" {
		t.Errorf("ownerless map reaches ownerless rows only, got %+v", forNobody)
	}
}

func TestNoConditionsReturnsEmpty(t *testing.T) {
	db := openTestDB(t)

	ref := makeReference("lonely2021", "#FF0000", nil)
	mustCreate(t, db, &ref)

	// Default color and no taxonomies: nothing to match on.
	node := &models.Node{BibMapID: 1, Label: "n", BackgroundColor: models.DefaultNodeColor}
	results, err := ReferencesForNode(db, node, ForRequester(nil))
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Errorf("expected no matches, got %d", len(results))
	}
}

func TestMediaForNodeLegendMatch(t *testing.T) {
	db := openTestDB(t)

	media := models.Media{Title: "Video", URL: "https://example.org/v", LegendCategory: "#00FF00"}
	mustCreate(t, db, &media)

	node := &models.Node{BibMapID: 1, Label: "n", BackgroundColor: "#00ff00"}
	results, err := MediaForNode(db, node, ForRequester(nil))
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Title != "Video" {
		t.Fatalf("results = %+v", results)
	}
	if len(results[0].MatchReasons) != 1 || results[0].MatchReasons[0].Type != "legend_category" {
		t.Errorf("reasons = %+v", results[0].MatchReasons)
	}
}

func TestResultsOrderedByID(t *testing.T) {
	db := openTestDB(t)

	for _, key := range []string{"c2021", "a2021", "b2021"} {
		ref := makeReference(key, "#FF0000", nil)
		mustCreate(t, db, &ref)
	}

	node := &models.Node{BibMapID: 1, Label: "n", BackgroundColor: "#FF0000"}
	results, err := ReferencesForNode(db, node, ForRequester(nil))
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 matches, got %d", len(results))
	}
	for i := 1; i < len(results); i++ {
		if results[i].ID <= results[i-1].ID {
			t.Errorf("results not ordered by id: %d after %d", results[i].ID, results[i-1].ID)
		}
	}
}
