package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/zfogg/clipstream/backend/internal/database"
	"github.com/zfogg/clipstream/backend/internal/models"
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Inspect accounts",
}

var usersListLimit int

var usersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent accounts",
	RunE: func(cmd *cobra.Command, args []string) error {
		var users []models.User
		err := database.DB.Order("created_at DESC").Limit(usersListLimit).Find(&users).Error
		if err != nil {
			return err
		}

		if output == "json" {
			return json.NewEncoder(os.Stdout).Encode(users)
		}

		for _, u := range users {
			flags := ""
			if u.IsAdmin {
				flags += " [admin]"
			}
			if u.IsBanned {
				flags += " [banned]"
			}
			fmt.Printf("%s  %-20s  %-30s  videos=%d%s\n",
				u.ID, u.Username, u.Email, u.VideoCount, flags)
		}
		return nil
	},
}

var usersGetCmd = &cobra.Command{
	Use:   "get <email-or-username>",
	Short: "Look up an account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var user models.User
		err := database.DB.
			Where("LOWER(email) = LOWER(?) OR LOWER(username) = LOWER(?)", args[0], args[0]).
			First(&user).Error
		if err != nil {
			return fmt.Errorf("user not found: %s", args[0])
		}

		if output == "json" {
			return json.NewEncoder(os.Stdout).Encode(user)
		}

		fmt.Printf("ID:          %s\n", user.ID)
		fmt.Printf("Username:    %s\n", user.Username)
		fmt.Printf("Email:       %s (verified=%v)\n", user.Email, user.EmailVerified)
		fmt.Printf("Display:     %s\n", user.DisplayName)
		fmt.Printf("Videos:      %d\n", user.VideoCount)
		fmt.Printf("Admin:       %v\n", user.IsAdmin)
		fmt.Printf("Banned:      %v\n", user.IsBanned)
		fmt.Printf("2FA:         %v\n", user.TwoFactorEnabled)
		fmt.Printf("Created:     %s\n", user.CreatedAt.Format("2006-01-02 15:04:05"))
		return nil
	},
}

func init() {
	usersListCmd.Flags().IntVar(&usersListLimit, "limit", 20, "Maximum accounts to list")
	usersCmd.AddCommand(usersListCmd)
	usersCmd.AddCommand(usersGetCmd)
}
