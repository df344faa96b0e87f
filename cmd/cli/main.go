package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/zfogg/clipstream/backend/internal/database"
)

var output = "text" // "text" or "json"

var rootCmd = &cobra.Command{
	Use:   "clipstream",
	Short: "Clipstream admin CLI",
	Long: `Clipstream admin CLI talks directly to the database for
operational tasks: inspecting accounts, moderating videos, and pulling
platform stats.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		godotenv.Load()
		if err := database.Initialize(); err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		database.Close()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&output, "output", output, "Output format: text or json")

	rootCmd.AddCommand(usersCmd)
	rootCmd.AddCommand(videosCmd)
	rootCmd.AddCommand(statsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
