package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/zfogg/clipstream/backend/internal/database"
	"github.com/zfogg/clipstream/backend/internal/models"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show platform totals",
	RunE: func(cmd *cobra.Command, args []string) error {
		stats := map[string]int64{}

		var n int64
		database.DB.Model(&models.User{}).Count(&n)
		stats["users"] = n
		database.DB.Model(&models.User{}).Where("is_banned = ?", true).Count(&n)
		stats["banned_users"] = n
		database.DB.Model(&models.Video{}).Count(&n)
		stats["videos"] = n
		database.DB.Model(&models.Video{}).Where("processing_status = ?", models.ProcessingFailed).Count(&n)
		stats["failed_videos"] = n
		database.DB.Model(&models.Comment{}).Where("is_deleted = ?", false).Count(&n)
		stats["comments"] = n
		database.DB.Model(&models.Reaction{}).Count(&n)
		stats["reactions"] = n
		database.DB.Model(&models.WatchlistItem{}).Count(&n)
		stats["watchlist_items"] = n

		var views int64
		database.DB.Model(&models.Video{}).Select("COALESCE(SUM(view_count), 0)").Scan(&views)
		stats["total_views"] = views

		if output == "json" {
			return json.NewEncoder(os.Stdout).Encode(stats)
		}

		fmt.Printf("Users:           %d (%d banned)\n", stats["users"], stats["banned_users"])
		fmt.Printf("Videos:          %d (%d failed)\n", stats["videos"], stats["failed_videos"])
		fmt.Printf("Comments:        %d\n", stats["comments"])
		fmt.Printf("Reactions:       %d\n", stats["reactions"])
		fmt.Printf("Watchlist items: %d\n", stats["watchlist_items"])
		fmt.Printf("Total views:     %d\n", stats["total_views"])
		return nil
	},
}
