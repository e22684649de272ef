package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"library-api/internal/auth"
	"library-api/internal/handlers"
	"library-api/internal/models"
	"library-api/internal/repositories"
	"library-api/internal/services"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "library-api",
		Short: "Library management REST service",
	}
	rootCmd.AddCommand(serveCmd(), seedCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func openDB() *gorm.DB {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable is required")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalf("failed to get generic DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return db
}

// tokenTable builds the bearer-token table from AUTH_TOKENS, formatted as
// comma-separated token:user_id pairs.
func tokenTable() map[string]uint {
	raw := os.Getenv("AUTH_TOKENS")
	if raw == "" {
		log.Fatal("AUTH_TOKENS environment variable is required (token:user_id,token:user_id,...)")
	}
	tokens := make(map[string]uint)
	for _, pair := range strings.Split(raw, ",") {
		parts := strings.SplitN(strings.TrimSpace(pair), ":", 2)
		if len(parts) != 2 {
			log.Fatalf("invalid AUTH_TOKENS entry %q", pair)
		}
		userID, err := strconv.ParseUint(parts[1], 10, 32)
		if err != nil {
			log.Fatalf("invalid user id in AUTH_TOKENS entry %q: %v", pair, err)
		}
		tokens[parts[0]] = uint(userID)
	}
	return tokens
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Run: func(cmd *cobra.Command, args []string) {
			db := openDB()
			resolver := auth.NewStaticResolver(tokenTable())

			userRepo := repositories.NewUserRepository(db)
			bookRepo := repositories.NewBookRepository(db)
			borrowRepo := repositories.NewBorrowRepository(db)

			libraryService := services.NewLibraryService(db, userRepo, bookRepo, borrowRepo)

			router := gin.Default()
			handlers.RegisterRoutes(router, libraryService, resolver)

			serverAddr := os.Getenv("SERVER_ADDR")
			if serverAddr == "" {
				serverAddr = ":8080"
			}

			srv := &http.Server{
				Addr:         serverAddr,
				Handler:      router,
				ReadTimeout:  15 * time.Second,
				WriteTimeout: 15 * time.Second,
			}

			log.Printf("Starting server on %s", serverAddr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("server error: %v", err)
			}
		},
	}
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create the schema and load sample data",
		Run: func(cmd *cobra.Command, args []string) {
			db := openDB()

			if err := db.AutoMigrate(&models.User{}, &models.Book{}, &models.BorrowRecord{}); err != nil {
				log.Fatalf("failed to migrate schema: %v", err)
			}

			now := time.Now().UTC()
			users := []models.User{
				{Name: "Alice Nguyen", Email: "alice@example.com", MemberSince: now},
				{Name: "Bob Tran", Email: "bob@example.com", MemberSince: now},
			}
			if err := db.Create(&users).Error; err != nil {
				log.Fatalf("failed to seed users: %v", err)
			}

			books := []models.Book{
				{Title: "Lao Hac", Author: "Nam Cao", Year: 1943, Status: models.BookStatusAvailable},
				{Title: "So Do", Author: "Vu Trong Phung", Year: 1936, Status: models.BookStatusAvailable},
				{Title: "De Men Phieu Luu Ky", Author: "To Hoai", Year: 1941, Status: models.BookStatusBorrowed},
			}
			if err := db.Create(&books).Error; err != nil {
				log.Fatalf("failed to seed books: %v", err)
			}

			borrow := models.BorrowRecord{
				BookID:     books[2].ID,
				UserID:     users[0].ID,
				BorrowDate: now,
			}
			if err := db.Create(&borrow).Error; err != nil {
				log.Fatalf("failed to seed borrow record: %v", err)
			}

			// Print generated bearer tokens for the seeded users, ready to be
			// pasted into AUTH_TOKENS for serve.
			var pairs []string
			for _, u := range users {
				pairs = append(pairs, fmt.Sprintf("%s:%d", uuid.NewString(), u.ID))
			}
			log.Printf("Seeded %d users, %d books, 1 open borrow", len(users), len(books))
			fmt.Printf("AUTH_TOKENS=%s\n", strings.Join(pairs, ","))
		},
	}
}
