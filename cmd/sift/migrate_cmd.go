package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"sift/cmd/sift/ui"
	"sift/internal/migrate"
)

var migrateDryRun bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Upgrade stored sessions and templates to the current schema",
	Long: `Walks every session and library template, applying schema migrations
step by step. Originals are backed up to .bak files before rewriting.

  sift migrate --dry-run   preview without writing
  sift migrate             apply`,
	RunE: runMigrate,
}

func init() {
	migrateCmd.Flags().BoolVar(&migrateDryRun, "dry-run", false, "Preview migrations without writing")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	sv := migrate.NewService(cfg.SessionsDir(), cfg.TemplatesDir())
	summary := sv.MigrateAll(migrateDryRun)

	printResults("Sessions", summary.Sessions)
	printResults("Templates", summary.Templates)

	for _, e := range summary.Errors {
		fmt.Println(ui.Fail("%s", e))
	}

	verb := "migrated"
	if migrateDryRun {
		verb = "would migrate"
	}
	fmt.Printf("\n%s %d records, %d already current, %d errors\n",
		verb, summary.TotalMigrated(), summary.TotalSkipped(), len(summary.Errors))
	return nil
}

func printResults(header string, results []migrate.Result) {
	if len(results) == 0 {
		return
	}
	fmt.Println(ui.HeaderStyle.Render(header))
	for _, r := range results {
		if r.Migrated {
			fmt.Printf("  %s v%d -> v%d %s\n",
				r.Name, r.SourceVersion, r.TargetVersion, ui.Muted("(%s)", strings.Join(r.Changes, ", ")))
		} else {
			fmt.Printf("  %s %s\n", r.Name, ui.Muted("already at v%d", r.SourceVersion))
		}
	}
}
