package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"sift/cmd/sift/ui"
	"sift/internal/history"
)

var statusRecent int

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configuration, provider, and data-directory health",
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().IntVar(&statusRecent, "recent", 0, "Also show the N most recent activity events")
}

func runStatus(cmd *cobra.Command, args []string) error {
	fmt.Println(ui.TitleStyle.Render("sift status"))
	fmt.Println()

	fmt.Println(ui.HeaderStyle.Render("Data directory"))
	fmt.Printf("  home:      %s\n", cfg.Home)
	fmt.Printf("  config:    %s %s\n", cfg.ConfigPath(), existsMark(cfg.ConfigPath()))
	fmt.Printf("  sessions:  %s %s\n", cfg.SessionsDir(), existsMark(cfg.SessionsDir()))
	fmt.Printf("  templates: %s %s\n", cfg.TemplatesDir(), existsMark(cfg.TemplatesDir()))
	fmt.Println()

	fmt.Println(ui.HeaderStyle.Render("Provider"))
	fmt.Printf("  name:  %s\n", cfg.Provider.Name)
	fmt.Printf("  model: %s\n", cfg.Provider.Model)
	if err := cfg.Validate(); err != nil {
		fmt.Println("  " + ui.Fail("config invalid: %v", err))
	} else if chat := newChat(); chat != nil && chat.IsAvailable() {
		fmt.Println("  " + ui.Success("chat provider ready"))
	} else {
		fmt.Println("  " + ui.Warn("no API key configured; extraction and routing are unavailable"))
	}
	fmt.Println()

	summaries, err := openStore().List()
	if err == nil {
		active := 0
		for _, s := range summaries {
			if s.Status == "active" {
				active++
			}
		}
		fmt.Println(ui.HeaderStyle.Render("Sessions"))
		fmt.Printf("  %d total, %d active\n", len(summaries), active)
	}

	if statusRecent > 0 {
		fmt.Println()
		fmt.Println(ui.HeaderStyle.Render("Recent activity"))
		log, err := history.Open(cfg.HistoryDBPath())
		if err != nil {
			fmt.Println("  " + ui.Warn("history unavailable: %v", err))
			return nil
		}
		defer log.Close()

		events, err := log.Recent(statusRecent)
		if err != nil {
			return err
		}
		if len(events) == 0 {
			fmt.Println("  " + ui.Muted("no activity recorded yet"))
		}
		for _, e := range events {
			target := e.Session
			if e.Phase != "" {
				target += "/" + e.Phase
			}
			fmt.Printf("  %s %-20s %-18s %s\n",
				ui.Muted("%s", e.CreatedAt.Format("01-02 15:04")), e.Action, target, ui.Muted("%s", e.Detail))
		}
	}
	return nil
}

func existsMark(path string) string {
	if _, err := os.Stat(path); err == nil {
		return ui.SuccessStyle.Render("✓")
	}
	return ui.MutedStyle.Render("(missing)")
}
