package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/zfogg/clipstream/backend/internal/database"
	"github.com/zfogg/clipstream/backend/internal/models"
)

var videosCmd = &cobra.Command{
	Use:   "videos",
	Short: "Inspect and moderate videos",
}

var (
	videosListLimit  int
	videosListStatus string
	videosDeleteYes  bool
)

var videosListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent videos",
	RunE: func(cmd *cobra.Command, args []string) error {
		query := database.DB.Preload("User").Order("created_at DESC").Limit(videosListLimit)
		if videosListStatus != "" {
			query = query.Where("processing_status = ?", videosListStatus)
		}

		var videos []models.Video
		if err := query.Find(&videos).Error; err != nil {
			return err
		}

		if output == "json" {
			return json.NewEncoder(os.Stdout).Encode(videos)
		}

		for _, v := range videos {
			visibility := "public"
			if !v.IsPublic {
				visibility = "private"
			}
			fmt.Printf("%s  %-10s  %-8s  by %-20s  likes=%d views=%d  %q\n",
				v.ID, v.ProcessingStatus, visibility, v.User.Username,
				v.LikeCount, v.ViewCount, v.Title)
		}
		return nil
	},
}

var videosDeleteCmd = &cobra.Command{
	Use:   "delete <video-id>",
	Short: "Soft-delete a video",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var video models.Video
		if err := database.DB.Where("id = ?", args[0]).First(&video).Error; err != nil {
			return fmt.Errorf("video not found: %s", args[0])
		}

		if !videosDeleteYes {
			fmt.Printf("Delete %q (%s)? [y/N]: ", video.Title, video.ID)
			reader := bufio.NewReader(os.Stdin)
			answer, _ := reader.ReadString('\n')
			if strings.ToLower(strings.TrimSpace(answer)) != "y" {
				fmt.Println("Aborted")
				return nil
			}
		}

		if err := database.DB.Delete(&video).Error; err != nil {
			return err
		}

		fmt.Printf("Deleted %s\n", video.ID)
		fmt.Println("Note: stored media and the search document are cleaned up by the server's moderation endpoint; prefer that for routine moderation.")
		return nil
	},
}

func init() {
	videosListCmd.Flags().IntVar(&videosListLimit, "limit", 20, "Maximum videos to list")
	videosListCmd.Flags().StringVar(&videosListStatus, "status", "", "Filter by processing status")
	videosDeleteCmd.Flags().BoolVarP(&videosDeleteYes, "yes", "y", false, "Skip confirmation")
	videosCmd.AddCommand(videosListCmd)
	videosCmd.AddCommand(videosDeleteCmd)
}
