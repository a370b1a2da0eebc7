package database

import (
	"log"

	"github.com/codyseavey/imgtools/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

func Initialize(dbPath string) error {
	db, err := Open(dbPath)
	if err != nil {
		return err
	}
	DB = db
	return nil
}

// Open connects to the SQLite database at dbPath and brings the schema up to
// date. Tests use it with a named in-memory database.
func Open(dbPath string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	log.Println("Database connected successfully")

	// Auto-migrate the schema
	if err := db.AutoMigrate(&models.ToolPreference{}, &models.ExportEvent{}); err != nil {
		return nil, err
	}

	log.Println("Database migration completed")
	return db, nil
}

func GetDB() *gorm.DB {
	return DB
}
