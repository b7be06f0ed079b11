package initializers

import (
	"log"
	"os"

	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/adil/docexchange-backend/models"
)

var DB *gorm.DB

func ConnectToDatabase() {
	if os.Getenv("RENDER") == "" {
		if err := godotenv.Load(); err != nil {
			log.Println("⚠️  Warning: No .env file found. Using system environment variables.")
		}
	}
	dsn := os.Getenv("DB_URL")
	if dsn == "" {
		log.Fatal("❌ DB_URL is not set in environment variables")
	}
	var err error

	// TranslateError makes unique-constraint violations surface as
	// gorm.ErrDuplicatedKey, which the token store relies on for its
	// collision retry.
	DB, err = gorm.Open(postgres.New(postgres.Config{
		DSN:                  dsn,
		PreferSimpleProtocol: true,
	}), &gorm.Config{TranslateError: true})
	if err != nil {
		log.Fatalf("❌ Failed to connect to the database: %v", err)
	}

	if err := DB.AutoMigrate(
		&models.User{},
		&models.File{},
		&models.DownloadToken{},
		&models.DownloadEvent{},
	); err != nil {
		log.Fatalf("❌ Failed to migrate database schema: %v", err)
	}
	log.Println("✅ Database connected and migrated successfully")
}
