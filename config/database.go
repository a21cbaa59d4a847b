package config

import (
	"os"
	"path/filepath"

	"github.com/bibmap/bibmap-api/models"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var Database *gorm.DB

// Connect opens the database and creates any missing tables. Postgres is
// used when DB_URL is set, otherwise a local SQLite file in WAL mode.
func Connect() error {
	var err error
	if dbURL := os.Getenv("DB_URL"); dbURL != "" {
		Database, err = gorm.Open(postgres.Open(dbURL), &gorm.Config{})
	} else {
		dbPath := os.Getenv("DATABASE_PATH")
		if dbPath == "" {
			dbPath = "./data/bibmap.db"
		}
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			panic("failed to create database directory: " + err.Error())
		}
		Database, err = gorm.Open(sqlite.Open(dbPath+"?_journal_mode=WAL&_foreign_keys=on"), &gorm.Config{})
	}
	if err != nil {
		panic("failed to connect database")
	}

	err = Database.AutoMigrate(
		&models.User{},
		&models.UserSettings{},
		&models.Taxonomy{},
		&models.BibMap{},
		&models.Node{},
		&models.Connection{},
		&models.Reference{},
		&models.Media{},
	)
	if err != nil {
		panic("failed to auto migrate database")
	}

	return nil
}
