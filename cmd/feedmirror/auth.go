package main

import (
	"errors"
	"fmt"

	"feedmirror/pkg/auth"
	"feedmirror/pkg/ui"
	"github.com/spf13/cobra"
)

var authProfile string

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage the cookie file passed to the feed source",
	Long: `Manage the cookies.txt reference handed to gallery-dl.

Only the path of the cookie file is stored, in the system keychain when one is
available. The FEEDMIRROR_COOKIE_FILE environment variable and the --cookies
flag of sync take precedence over the stored reference.`,
}

var setCookiesCmd = &cobra.Command{
	Use:     "set-cookies <path>",
	Short:   "Store the path of an exported cookies.txt file",
	Example: `  feedmirror auth set-cookies ~/Downloads/cookies.txt`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ref := &auth.CookieRef{Profile: authProfile, Path: args[0]}
		if err := auth.NewManager().Store(ref); err != nil {
			return err
		}
		ui.PrintSuccess(fmt.Sprintf("Stored cookie file for profile %q", ref.Profile))
		ui.PrintInfo("Path", ref.Path)
		return nil
	},
}

var showCookiesCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the stored cookie file reference",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ref, err := auth.NewManager().Retrieve(authProfile)
		if errors.Is(err, auth.ErrCookiesNotFound) {
			ui.PrintWarning("No cookie file stored", "run 'feedmirror auth set-cookies <path>'")
			return nil
		}
		if err != nil {
			return err
		}
		ui.PrintInfo("Profile", ref.Profile)
		ui.PrintInfo("Path", ref.Path)
		if !ref.LastModified.IsZero() {
			ui.PrintInfo("Stored", ref.LastModified.Format("2006-01-02 15:04"))
		}
		return nil
	},
}

var clearCookiesCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove the stored cookie file reference",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := auth.NewManager().Delete(authProfile); err != nil {
			return err
		}
		ui.PrintSuccess(fmt.Sprintf("Removed cookie reference for profile %q", authProfile))
		return nil
	},
}

var guideCmd = &cobra.Command{
	Use:   "guide",
	Short: "Explain how to export a cookies.txt file",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		auth.WriteCookieExportGuide(ui.Output)
	},
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(setCookiesCmd, showCookiesCmd, clearCookiesCmd, guideCmd)
	authCmd.PersistentFlags().StringVar(&authProfile, "profile", auth.DefaultProfile, "cookie profile name")
}
