// migrate-user-ids converts a legacy BibMap SQLite database to the
// user-scoped schema. Run it with the application stopped; it takes a
// timestamped backup first unless told not to.
package main

import (
	"fmt"
	"os"

	"github.com/bibmap/bibmap-api/migrate"
	"github.com/spf13/cobra"
)

var (
	dbPath   string
	noBackup bool
	dryRun   bool
)

var rootCmd = &cobra.Command{
	Use:   "migrate-user-ids",
	Short: "Migrate the BibMap database to per-user ownership",
	RunE: func(cmd *cobra.Command, args []string) error {
		result, err := migrate.Run(migrate.Options{
			DBPath:   dbPath,
			DryRun:   dryRun,
			NoBackup: noBackup,
		}, os.Stdout)
		if err != nil {
			return err
		}

		// Orphaned foreign keys after a live run mean manual cleanup is
		// needed; dry runs always exit 0.
		if !dryRun && len(result.Issues) > 0 {
			os.Exit(1)
		}
		return nil
	},
}

func init() {
	defaultPath := os.Getenv("DATABASE_PATH")
	if defaultPath == "" {
		defaultPath = "./data/bibmap.db"
	}
	rootCmd.Flags().StringVar(&dbPath, "db-path", defaultPath, "Path to SQLite database file")
	rootCmd.Flags().BoolVar(&noBackup, "no-backup", false, "Skip creating backup (not recommended)")
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show what would be done without making changes")
	rootCmd.SilenceUsage = true
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}
}
