// Package migrate converts a legacy ownerless BibMap SQLite database to the
// user-scoped schema: taxonomies gain user_id/is_global columns, and the
// VARCHAR user_id columns on bibmaps and references become INTEGER foreign
// keys. It is an offline maintenance tool and assumes exclusive access to
// the database file.
package migrate

import (
	"database/sql"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Options controls a migration run.
type Options struct {
	DBPath   string
	DryRun   bool
	NoBackup bool
}

// Result reports what a run did (or would do).
type Result struct {
	Changes    []string
	Issues     []string
	BackupPath string
}

// reservedTables need quoting in SQL statements.
var reservedTables = map[string]bool{"references": true}

func quoteTable(table string) string {
	if reservedTables[strings.ToLower(table)] {
		return `"` + table + `"`
	}
	return table
}

// BackupDatabase copies the database file next to itself with a timestamped
// suffix and returns the backup path.
func BackupDatabase(dbPath string) (string, error) {
	backupPath := fmt.Sprintf("%s.backup_%s", dbPath, time.Now().Format("20060102_150405"))

	src, err := os.Open(dbPath)
	if err != nil {
		return "", fmt.Errorf("opening database for backup: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(backupPath)
	if err != nil {
		return "", fmt.Errorf("creating backup file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return "", fmt.Errorf("copying database: %w", err)
	}
	return backupPath, nil
}

func columnExists(db *sql.DB, table, column string) (bool, error) {
	columns, err := tableColumns(db, table)
	if err != nil {
		return false, err
	}
	for _, c := range columns {
		if c.name == column {
			return true, nil
		}
	}
	return false, nil
}

func columnType(db *sql.DB, table, column string) (string, error) {
	columns, err := tableColumns(db, table)
	if err != nil {
		return "", err
	}
	for _, c := range columns {
		if c.name == column {
			return strings.ToUpper(c.typ), nil
		}
	}
	return "", nil
}

type columnInfo struct {
	name string
	typ  string
}

func tableColumns(db *sql.DB, table string) ([]columnInfo, error) {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", quoteTable(table)))
	if err != nil {
		return nil, fmt.Errorf("reading schema of %s: %w", table, err)
	}
	defer rows.Close()

	var columns []columnInfo
	for rows.Next() {
		var (
			cid, notNull, pk int
			name, typ        string
			dflt             sql.NullString
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
			return nil, err
		}
		columns = append(columns, columnInfo{name: name, typ: typ})
	}
	return columns, rows.Err()
}

// migrateTaxonomies adds the user_id and is_global columns when absent.
// Taxonomies that predate the user system are marked global.
func migrateTaxonomies(db *sql.DB, dryRun bool) ([]string, error) {
	var changes []string

	hasUserID, err := columnExists(db, "taxonomies", "user_id")
	if err != nil {
		return nil, err
	}
	if !hasUserID {
		changes = append(changes, "ADD taxonomies.user_id INTEGER")
		if !dryRun {
			if _, err := db.Exec("ALTER TABLE taxonomies ADD COLUMN user_id INTEGER REFERENCES users(id)"); err != nil {
				return changes, fmt.Errorf("adding taxonomies.user_id: %w", err)
			}
		}
	}

	hasIsGlobal, err := columnExists(db, "taxonomies", "is_global")
	if err != nil {
		return nil, err
	}
	if !hasIsGlobal {
		changes = append(changes, "ADD taxonomies.is_global BOOLEAN DEFAULT 0")
		if !dryRun {
			if _, err := db.Exec("ALTER TABLE taxonomies ADD COLUMN is_global BOOLEAN DEFAULT 0"); err != nil {
				return changes, fmt.Errorf("adding taxonomies.is_global: %w", err)
			}
			// Pre-existing taxonomies predate per-user ownership
			if _, err := db.Exec("UPDATE taxonomies SET is_global = 1 WHERE user_id IS NULL"); err != nil {
				return changes, fmt.Errorf("marking existing taxonomies global: %w", err)
			}
			changes = append(changes, "SET existing taxonomies to is_global=1")
		}
	}

	return changes, nil
}

// migrateTableUserID converts a VARCHAR user_id column to an INTEGER
// foreign key. SQLite cannot alter a column's type in place, so the table
// is rebuilt: create temp table with the new schema, copy rows (casting
// user_id, with NULL and '' coerced to NULL), drop the old table, rename.
func migrateTableUserID(db *sql.DB, table string, dryRun bool) ([]string, error) {
	quotedTable := quoteTable(table)

	hasUserID, err := columnExists(db, table, "user_id")
	if err != nil {
		return nil, err
	}
	if !hasUserID {
		return []string{fmt.Sprintf("SKIP %s: no user_id column", table)}, nil
	}

	colType, err := columnType(db, table, "user_id")
	if err != nil {
		return nil, err
	}
	if colType == "INTEGER" {
		return []string{fmt.Sprintf("SKIP %s.user_id: already INTEGER", table)}, nil
	}
	if colType != "VARCHAR(255)" {
		return []string{fmt.Sprintf("SKIP %s.user_id: unexpected type %s", table, colType)}, nil
	}

	changes := []string{fmt.Sprintf("CONVERT %s.user_id VARCHAR(255) -> INTEGER", table)}
	if dryRun {
		return changes, nil
	}

	var originalSQL string
	if err := db.QueryRow("SELECT sql FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&originalSQL); err != nil {
		return changes, fmt.Errorf("reading CREATE TABLE for %s: %w", table, err)
	}

	newSQL := strings.Replace(originalSQL,
		"user_id VARCHAR(255)",
		"user_id INTEGER REFERENCES users(id)", 1)

	tempTable := table + "_migration_temp"
	tempSQL := newSQL
	// The stored statement may name the table in any of these forms
	tempSQL = strings.Replace(tempSQL, fmt.Sprintf("CREATE TABLE IF NOT EXISTS %q", table), fmt.Sprintf("CREATE TABLE %q", tempTable), 1)
	tempSQL = strings.Replace(tempSQL, fmt.Sprintf("CREATE TABLE %q", table), fmt.Sprintf("CREATE TABLE %q", tempTable), 1)
	tempSQL = strings.Replace(tempSQL, fmt.Sprintf("CREATE TABLE %s", table), fmt.Sprintf("CREATE TABLE %q", tempTable), 1)
	if _, err := db.Exec(tempSQL); err != nil {
		return changes, fmt.Errorf("creating %s: %w", tempTable, err)
	}

	columns, err := tableColumns(db, table)
	if err != nil {
		return changes, err
	}
	names := make([]string, 0, len(columns))
	selects := make([]string, 0, len(columns))
	for _, c := range columns {
		names = append(names, c.name)
		if c.name == "user_id" {
			selects = append(selects, "CASE WHEN user_id IS NULL OR user_id = '' THEN NULL ELSE CAST(user_id AS INTEGER) END")
		} else {
			selects = append(selects, c.name)
		}
	}

	copySQL := fmt.Sprintf("INSERT INTO %q (%s) SELECT %s FROM %s",
		tempTable, strings.Join(names, ", "), strings.Join(selects, ", "), quotedTable)
	copied, err := db.Exec(copySQL)
	if err != nil {
		return changes, fmt.Errorf("copying rows into %s: %w", tempTable, err)
	}
	rowCount, _ := copied.RowsAffected()
	changes = append(changes, fmt.Sprintf("COPY %d rows from %s", rowCount, table))

	if _, err := db.Exec(fmt.Sprintf("DROP TABLE %s", quotedTable)); err != nil {
		return changes, fmt.Errorf("dropping %s: %w", table, err)
	}
	if _, err := db.Exec(fmt.Sprintf("ALTER TABLE %q RENAME TO %s", tempTable, quotedTable)); err != nil {
		return changes, fmt.Errorf("renaming %s: %w", tempTable, err)
	}
	changes = append(changes, fmt.Sprintf("RENAME %s -> %s", tempTable, table))

	if _, err := db.Exec(fmt.Sprintf("CREATE INDEX IF NOT EXISTS ix_%s_id ON %s (id)", table, quotedTable)); err != nil {
		return changes, fmt.Errorf("recreating index on %s: %w", table, err)
	}

	return changes, nil
}

// verifyForeignKeys reports rows whose user_id no longer resolves to an
// existing user. Orphans are warnings, not errors.
func verifyForeignKeys(db *sql.DB) ([]string, error) {
	var issues []string

	for _, table := range []string{"bibmaps", "references", "taxonomies"} {
		hasUserID, err := columnExists(db, table, "user_id")
		if err != nil {
			return nil, err
		}
		if !hasUserID {
			continue
		}

		query := fmt.Sprintf(`
			SELECT id, user_id FROM %s
			WHERE user_id IS NOT NULL
			AND user_id NOT IN (SELECT id FROM users)`, quoteTable(table))
		rows, err := db.Query(query)
		if err != nil {
			return nil, fmt.Errorf("checking %s foreign keys: %w", table, err)
		}

		var orphans []string
		for rows.Next() {
			var id int64
			var userID string
			if err := rows.Scan(&id, &userID); err != nil {
				rows.Close()
				return nil, err
			}
			orphans = append(orphans, fmt.Sprintf("(%d, %s)", id, userID))
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, err
		}

		if len(orphans) > 0 {
			sample := orphans
			if len(sample) > 5 {
				sample = sample[:5]
			}
			issues = append(issues, fmt.Sprintf("WARNING: %d %s reference non-existent users: %s",
				len(orphans), table, strings.Join(sample, ", ")))
		}
	}

	return issues, nil
}

// Run executes the full migration and writes a human-readable report to
// out. The database file must already exist.
func Run(opts Options, out io.Writer) (*Result, error) {
	fmt.Fprintln(out, "BibMap Database Migration")
	fmt.Fprintln(out, strings.Repeat("=", 50))
	fmt.Fprintf(out, "Database: %s\n", opts.DBPath)
	if opts.DryRun {
		fmt.Fprintln(out, "Mode: DRY RUN")
	} else {
		fmt.Fprintln(out, "Mode: LIVE")
	}
	fmt.Fprintln(out)

	if _, err := os.Stat(opts.DBPath); err != nil {
		return nil, fmt.Errorf("database not found: %s", opts.DBPath)
	}

	result := &Result{}

	if !opts.DryRun && !opts.NoBackup {
		backupPath, err := BackupDatabase(opts.DBPath)
		if err != nil {
			return nil, err
		}
		result.BackupPath = backupPath
		fmt.Fprintf(out, "Backup created: %s\n\n", backupPath)
	}

	db, err := sql.Open("sqlite3", opts.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	// SQLite requires this for the drop/rename table rebuild
	if _, err := db.Exec("PRAGMA foreign_keys = OFF"); err != nil {
		return nil, fmt.Errorf("disabling foreign keys: %w", err)
	}

	report := func(section string, changes []string) {
		fmt.Fprintf(out, "%s\n", section)
		for _, change := range changes {
			fmt.Fprintf(out, "  %s\n", change)
		}
		fmt.Fprintln(out)
		result.Changes = append(result.Changes, changes...)
	}

	changes, err := migrateTaxonomies(db, opts.DryRun)
	if err != nil {
		return result, err
	}
	report("Migrating taxonomies table...", changes)

	for _, table := range []string{"bibmaps", "references"} {
		changes, err := migrateTableUserID(db, table, opts.DryRun)
		if err != nil {
			return result, err
		}
		report(fmt.Sprintf("Migrating %s table...", table), changes)
	}

	fmt.Fprintln(out, "Verifying foreign keys...")
	issues, err := verifyForeignKeys(db)
	if err != nil {
		return result, err
	}
	result.Issues = issues
	if len(issues) == 0 {
		fmt.Fprintln(out, "  All foreign keys valid")
	}
	for _, issue := range issues {
		fmt.Fprintf(out, "  %s\n", issue)
	}
	fmt.Fprintln(out)

	if opts.DryRun {
		fmt.Fprintln(out, "DRY RUN complete. No changes made.")
		return result, nil
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return result, fmt.Errorf("re-enabling foreign keys: %w", err)
	}
	if rows, err := db.Query("PRAGMA foreign_key_check"); err != nil {
		fmt.Fprintf(out, "WARNING: foreign key check failed: %v\n", err)
	} else {
		violations := 0
		for rows.Next() {
			violations++
		}
		rows.Close()
		if violations > 0 {
			fmt.Fprintf(out, "WARNING: %d foreign key violations found\n", violations)
		}
	}

	fmt.Fprintf(out, "Migration complete. %d changes applied.\n\n", len(result.Changes))

	fmt.Fprintln(out, "Final schema verification:")
	for _, table := range []string{"users", "bibmaps", "references", "taxonomies"} {
		colType, err := columnType(db, table, "user_id")
		if err != nil {
			continue
		}
		if colType != "" {
			fmt.Fprintf(out, "  %s.user_id: %s\n", table, colType)
		}
	}

	return result, nil
}
