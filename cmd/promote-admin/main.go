package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/joho/godotenv"
	"github.com/zfogg/clipstream/backend/internal/database"
	"github.com/zfogg/clipstream/backend/internal/models"
)

func main() {
	godotenv.Load()

	email := flag.String("email", "", "Email address of the account to promote")
	revoke := flag.Bool("revoke", false, "Revoke admin privileges instead of granting")
	flag.Parse()

	if *email == "" {
		fmt.Println("Usage: promote-admin -email=user@example.com")
		fmt.Println("       promote-admin -email=user@example.com -revoke")
		return
	}

	if err := database.Initialize(); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer database.Close()

	var user models.User
	if err := database.DB.Where("LOWER(email) = LOWER(?)", *email).First(&user).Error; err != nil {
		fmt.Printf("User not found: %s\n", *email)
		return
	}

	if *revoke {
		if !user.IsAdmin {
			fmt.Printf("User %s is not an admin\n", user.Username)
			return
		}
		if err := database.DB.Model(&user).UpdateColumn("is_admin", false).Error; err != nil {
			fmt.Printf("Failed to revoke admin privileges: %v\n", err)
			return
		}
		fmt.Printf("Admin privileges revoked for %s (%s)\n", user.Username, user.Email)
		return
	}

	if user.IsAdmin {
		fmt.Printf("User %s is already an admin\n", user.Username)
		return
	}
	if err := database.DB.Model(&user).UpdateColumn("is_admin", true).Error; err != nil {
		fmt.Printf("Failed to grant admin privileges: %v\n", err)
		return
	}
	fmt.Printf("Admin privileges granted to %s (%s)\n", user.Username, user.Email)
	fmt.Printf("  User ID: %s\n", user.ID)
}
