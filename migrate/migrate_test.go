package migrate

import (
	"bytes"
	"database/sql"
	"path/filepath"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

// legacySchema mirrors a pre-user database: taxonomies without ownership
// columns and VARCHAR user_id columns on bibmaps and references.
const legacySchema = `
CREATE TABLE users (
	id INTEGER PRIMARY KEY,
	email VARCHAR(255),
	username VARCHAR(100)
);
CREATE TABLE taxonomies (
	id INTEGER PRIMARY KEY,
	name VARCHAR(255),
	color VARCHAR(7)
);
CREATE TABLE bibmaps (
	id INTEGER PRIMARY KEY,
	title VARCHAR(255),
	user_id VARCHAR(255)
);
CREATE TABLE "references" (
	id INTEGER PRIMARY KEY,
	bibtex_key VARCHAR(255),
	user_id VARCHAR(255)
);
`

func newLegacyDB(t *testing.T) string {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "legacy.db")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	if _, err := db.Exec(legacySchema); err != nil {
		t.Fatalf("creating legacy schema: %v", err)
	}
	seed := []string{
		`INSERT INTO users (id, email, username) VALUES (1, 'a@example.org', 'alice')`,
		`INSERT INTO taxonomies (id, name, color) VALUES (1, 'biology', '#10B981')`,
		`INSERT INTO bibmaps (id, title, user_id) VALUES (1, 'Map One', '1')`,
		`INSERT INTO bibmaps (id, title, user_id) VALUES (2, 'Ownerless', NULL)`,
		`INSERT INTO bibmaps (id, title, user_id) VALUES (3, 'Empty Owner', '')`,
		`INSERT INTO "references" (id, bibtex_key, user_id) VALUES (1, 'smith2020', '1')`,
	}
	for _, stmt := range seed {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("seeding: %v", err)
		}
	}
	return dbPath
}

func runMigration(t *testing.T, opts Options) (*Result, string) {
	t.Helper()
	var out bytes.Buffer
	result, err := Run(opts, &out)
	if err != nil {
		t.Fatalf("migration failed: %v\noutput:\n%s", err, out.String())
	}
	return result, out.String()
}

func TestMigrationConvertsLegacySchema(t *testing.T) {
	dbPath := newLegacyDB(t)

	result, output := runMigration(t, Options{DBPath: dbPath, NoBackup: true})
	if len(result.Issues) != 0 {
		t.Errorf("unexpected issues: %v", result.Issues)
	}
	if !strings.Contains(output, "CONVERT bibmaps.user_id VARCHAR(255) -> INTEGER") {
		t.Errorf("missing bibmaps conversion in output:\n%s", output)
	}
	if !strings.Contains(output, "CONVERT references.user_id VARCHAR(255) -> INTEGER") {
		t.Errorf("missing references conversion in output:\n%s", output)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	for _, table := range []string{"bibmaps", "references"} {
		colType, err := columnType(db, table, "user_id")
		if err != nil {
			t.Fatal(err)
		}
		if colType != "INTEGER" {
			t.Errorf("%s.user_id type = %q, want INTEGER", table, colType)
		}
	}

	// NULL and empty string both become NULL; '1' becomes integer 1
	var owner sql.NullInt64
	if err := db.QueryRow("SELECT user_id FROM bibmaps WHERE id = 1").Scan(&owner); err != nil {
		t.Fatal(err)
	}
	if !owner.Valid || owner.Int64 != 1 {
		t.Errorf("bibmap 1 owner = %+v, want 1", owner)
	}
	for _, id := range []int{2, 3} {
		if err := db.QueryRow("SELECT user_id FROM bibmaps WHERE id = ?", id).Scan(&owner); err != nil {
			t.Fatal(err)
		}
		if owner.Valid {
			t.Errorf("bibmap %d owner = %v, want NULL", id, owner.Int64)
		}
	}

	// No rows lost in the rebuild
	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM bibmaps").Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 3 {
		t.Errorf("bibmaps count = %d, want 3", count)
	}
}

func TestMigrationMarksExistingTaxonomiesGlobal(t *testing.T) {
	dbPath := newLegacyDB(t)
	runMigration(t, Options{DBPath: dbPath, NoBackup: true})

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	for _, column := range []string{"user_id", "is_global"} {
		exists, err := columnExists(db, "taxonomies", column)
		if err != nil {
			t.Fatal(err)
		}
		if !exists {
			t.Errorf("taxonomies.%s not added", column)
		}
	}

	var isGlobal int
	var owner sql.NullInt64
	if err := db.QueryRow("SELECT is_global, user_id FROM taxonomies WHERE id = 1").Scan(&isGlobal, &owner); err != nil {
		t.Fatal(err)
	}
	if isGlobal != 1 {
		t.Error("pre-existing taxonomy not marked global")
	}
	if owner.Valid {
		t.Errorf("pre-existing taxonomy owner = %v, want NULL", owner.Int64)
	}
}

func TestMigrationIsIdempotent(t *testing.T) {
	dbPath := newLegacyDB(t)
	runMigration(t, Options{DBPath: dbPath, NoBackup: true})

	_, output := runMigration(t, Options{DBPath: dbPath, NoBackup: true})
	if !strings.Contains(output, "SKIP bibmaps.user_id: already INTEGER") {
		t.Errorf("second run should skip bibmaps, output:\n%s", output)
	}
	if !strings.Contains(output, "SKIP references.user_id: already INTEGER") {
		t.Errorf("second run should skip references, output:\n%s", output)
	}
}

func TestDryRunMakesNoChanges(t *testing.T) {
	dbPath := newLegacyDB(t)

	_, output := runMigration(t, Options{DBPath: dbPath, DryRun: true})
	if !strings.Contains(output, "DRY RUN complete. No changes made.") {
		t.Errorf("output:\n%s", output)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	colType, err := columnType(db, "bibmaps", "user_id")
	if err != nil {
		t.Fatal(err)
	}
	if colType != "VARCHAR(255)" {
		t.Errorf("dry run changed schema: bibmaps.user_id = %q", colType)
	}
	exists, err := columnExists(db, "taxonomies", "is_global")
	if err != nil {
		t.Fatal(err)
	}
	if exists {
		t.Error("dry run added taxonomies.is_global")
	}
}

func TestBackupCreatedOnLiveRun(t *testing.T) {
	dbPath := newLegacyDB(t)

	result, _ := runMigration(t, Options{DBPath: dbPath})
	if result.BackupPath == "" {
		t.Fatal("no backup path recorded")
	}
	if !strings.Contains(result.BackupPath, ".backup_") {
		t.Errorf("backup path = %q", result.BackupPath)
	}

	db, err := sql.Open("sqlite3", result.BackupPath)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	// Backup preserves the pre-migration schema
	colType, err := columnType(db, "bibmaps", "user_id")
	if err != nil {
		t.Fatal(err)
	}
	if colType != "VARCHAR(255)" {
		t.Errorf("backup schema altered: bibmaps.user_id = %q", colType)
	}
}

func TestOrphanedOwnersReported(t *testing.T) {
	dbPath := newLegacyDB(t)

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec(`INSERT INTO bibmaps (id, title, user_id) VALUES (9, 'Orphan', '42')`); err != nil {
		t.Fatal(err)
	}
	db.Close()

	result, output := runMigration(t, Options{DBPath: dbPath, NoBackup: true})
	if len(result.Issues) == 0 {
		t.Fatal("expected orphan warning")
	}
	if !strings.Contains(result.Issues[0], "WARNING") || !strings.Contains(result.Issues[0], "bibmaps") {
		t.Errorf("issue = %q", result.Issues[0])
	}
	if !strings.Contains(output, "non-existent users") {
		t.Errorf("output missing orphan report:\n%s", output)
	}
}

func TestMissingDatabaseFile(t *testing.T) {
	var out bytes.Buffer
	_, err := Run(Options{DBPath: filepath.Join(t.TempDir(), "nope.db")}, &out)
	if err == nil {
		t.Fatal("expected an error for a missing database file")
	}
	if !strings.Contains(err.Error(), "database not found") {
		t.Errorf("err = %v", err)
	}
}

func TestUnexpectedUserIDTypeSkipped(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "odd.db")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		t.Fatal(err)
	}
	schema := `
		CREATE TABLE users (id INTEGER PRIMARY KEY);
		CREATE TABLE taxonomies (id INTEGER PRIMARY KEY, name VARCHAR(255));
		CREATE TABLE bibmaps (id INTEGER PRIMARY KEY, title VARCHAR(255), user_id TEXT);
		CREATE TABLE "references" (id INTEGER PRIMARY KEY, bibtex_key VARCHAR(255), user_id VARCHAR(255));
	`
	if _, err := db.Exec(schema); err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec(`INSERT INTO bibmaps (id, title, user_id) VALUES (1, 'Odd', 'abc')`); err != nil {
		t.Fatal(err)
	}
	db.Close()

	_, output := runMigration(t, Options{DBPath: dbPath, NoBackup: true})
	if !strings.Contains(output, "SKIP bibmaps.user_id: unexpected type TEXT") {
		t.Errorf("output:\n%s", output)
	}

	// The odd column is left untouched
	db, err = sql.Open("sqlite3", dbPath)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	colType, err := columnType(db, "bibmaps", "user_id")
	if err != nil {
		t.Fatal(err)
	}
	if colType != "TEXT" {
		t.Errorf("bibmaps.user_id type = %q, want TEXT untouched", colType)
	}
	var owner string
	if err := db.QueryRow("SELECT user_id FROM bibmaps WHERE id = 1").Scan(&owner); err != nil {
		t.Fatal(err)
	}
	if owner != "abc" {
		t.Errorf("row value = %q, want unchanged", owner)
	}
}

func TestTableWithoutUserIDSkipped(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "bare.db")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		t.Fatal(err)
	}
	schema := `
		CREATE TABLE users (id INTEGER PRIMARY KEY);
		CREATE TABLE taxonomies (id INTEGER PRIMARY KEY, name VARCHAR(255));
		CREATE TABLE bibmaps (id INTEGER PRIMARY KEY, title VARCHAR(255));
		CREATE TABLE "references" (id INTEGER PRIMARY KEY, bibtex_key VARCHAR(255));
	`
	if _, err := db.Exec(schema); err != nil {
		t.Fatal(err)
	}
	db.Close()

	_, output := runMigration(t, Options{DBPath: dbPath, NoBackup: true})
	if !strings.Contains(output, "SKIP bibmaps: no user_id column") {
		t.Errorf("output:\n%s", output)
	}
}
