package main

import (
	"flag"
	"log"
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/adil/docexchange-backend/auth/Oauth"
	"github.com/adil/docexchange-backend/auth/middleware"
	"github.com/adil/docexchange-backend/broker"
	"github.com/adil/docexchange-backend/handlers"
	"github.com/adil/docexchange-backend/initializers"
	"github.com/adil/docexchange-backend/jobs"
	"github.com/adil/docexchange-backend/mailer"
	"github.com/adil/docexchange-backend/models"
	"github.com/adil/docexchange-backend/routes"
	"github.com/adil/docexchange-backend/storage"
	"github.com/adil/docexchange-backend/token"
)

const defaultPort = "8080"

func main() {
	createOps := flag.Bool("create-ops-user", false, "create an operations user and exit")
	opsUsername := flag.String("ops-username", "opsuser", "username for the operations user")
	opsEmail := flag.String("ops-email", "ops@example.com", "email for the operations user")
	opsPassword := flag.String("ops-password", "", "password for the operations user")
	flag.Parse()

	initializers.ConnectToDatabase()

	if *createOps {
		createOpsUser(*opsUsername, *opsEmail, *opsPassword)
		return
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = defaultPort
	}
	baseURL := os.Getenv("BASE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:" + port
	}

	var blobs storage.Store
	if os.Getenv("AWS_BUCKET_NAME") != "" {
		initializers.InitAWS()
		blobs = storage.NewS3Store(initializers.S3Client, initializers.S3Bucket)
	} else {
		blobs = storage.NewLocalStore("uploads")
	}

	ttl := token.DefaultTTL
	if v := os.Getenv("DOWNLOAD_TOKEN_TTL"); v != "" {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			log.Fatalf("invalid DOWNLOAD_TOKEN_TTL: %v", err)
		}
		ttl = parsed
	}

	tokens := token.NewStore(initializers.DB, token.RealClock{}, ttl)
	dlBroker := broker.New(initializers.DB, tokens, blobs, baseURL)
	handlers.Init(dlBroker, tokens, blobs, mailer.FromEnv(), baseURL)

	if os.Getenv("SESSION_SECRET") != "" {
		Oauth.InitStore()
	} else {
		log.Println("SESSION_SECRET not set, OAuth sign-in disabled")
	}

	// Start cleanup job
	jobs.StartCleanupJob(tokens)

	router := gin.Default()
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:3000"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	router.Use(
		middleware.RateLimitMiddleware(),
	)

	routes.RegisterRoutes(router)

	log.Printf("listening on :%s", port)
	log.Fatal(router.Run(":" + port))
}

// createOpsUser bootstraps an operations account. Signup only creates
// client users, so this is the sole way to get an uploader.
func createOpsUser(username, email, password string) {
	if password == "" {
		log.Fatal("-ops-password is required with -create-ops-user")
	}

	var existing models.User
	if err := initializers.DB.First(&existing, "username = ?", username).Error; err == nil {
		log.Printf("Operations user %q already exists", username)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("Failed to hash password: %v", err)
	}

	user := models.User{
		Username:        username,
		Email:           email,
		PasswordHash:    string(hash),
		Role:            models.RoleOps,
		IsEmailVerified: true,
	}
	if err := initializers.DB.Create(&user).Error; err != nil {
		log.Fatalf("Failed to create operations user: %v", err)
	}

	log.Printf("Successfully created operations user: %s", username)
}
