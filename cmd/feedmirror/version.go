package main

import (
	"context"
	"fmt"
	"time"

	"feedmirror/pkg/gallerydl"
	"feedmirror/pkg/logger"
	"github.com/spf13/cobra"
)

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information and the feed source version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("feedmirror %s (commit: %s, built: %s)\n", version, gitCommit, buildDate)

		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()
		tool := gallerydl.New(gallerydl.Options{Timeout: 10 * time.Second}, logger.NewNopLogger())
		if v, err := tool.CheckAvailable(ctx); err == nil {
			fmt.Printf("gallery-dl %s\n", v)
		} else {
			fmt.Println("gallery-dl not found")
		}
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
