package main

import (
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/zfogg/clipstream/backend/internal/database"
	"github.com/zfogg/clipstream/backend/internal/logger"
	"github.com/zfogg/clipstream/backend/internal/seed"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using system environment variables")
	}

	if err := logger.Initialize(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FILE")); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Close()

	command := "dev"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	if err := database.Initialize(); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	seeder := seed.NewSeeder(database.DB)

	switch command {
	case "dev":
		log.Println("Seeding development database...")
		if err := seeder.SeedDev(); err != nil {
			log.Fatalf("Seeding failed: %v", err)
		}
		log.Println("Development database seeded")
	case "test":
		log.Println("Seeding test database...")
		if err := seeder.SeedTest(); err != nil {
			log.Fatalf("Seeding failed: %v", err)
		}
		log.Println("Test database seeded")
	case "clean":
		log.Println("Cleaning seed data...")
		if err := seeder.Clean(); err != nil {
			log.Fatalf("Clean failed: %v", err)
		}
		log.Println("Seed data removed")
	default:
		fmt.Println("Usage: seed [dev|test|clean]")
		fmt.Println("  dev   - Seed development database with realistic data")
		fmt.Println("  test  - Seed test database with minimal fixed accounts")
		fmt.Println("  clean - Remove all seed data (use with caution)")
		os.Exit(1)
	}
}
