package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"sift/cmd/sift/ui"
	"sift/internal/history"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage sessions",
}

var sessionTemplateRef string

var sessionCreateCmd = &cobra.Command{
	Use:   "create [name]",
	Short: "Create a session from a template",
	Long: `Creates a session from a library template, a template file path,
or a merge of several templates joined with '+':

  sift session create sprint-12 --template standup
  sift session create review-day --template standup+retro
  sift session create adhoc --template ./custom.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runSessionCreate,
}

var sessionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sessions",
	RunE:  runSessionList,
}

var sessionShowCmd = &cobra.Command{
	Use:   "show [name]",
	Short: "Show a session's phases and progress",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionShow,
}

var (
	sessionExportOut    string
	sessionExportFormat string
)

var sessionExportCmd = &cobra.Command{
	Use:   "export [name]",
	Short: "Export a session as markdown or YAML",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionExport,
}

var sessionDeleteForce bool

var sessionDeleteCmd = &cobra.Command{
	Use:   "delete [name]",
	Short: "Delete a session and its files",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionDelete,
}

func init() {
	sessionCreateCmd.Flags().StringVarP(&sessionTemplateRef, "template", "t", "", "Template name, path, or 'a+b' merge (required)")
	sessionCreateCmd.MarkFlagRequired("template")
	sessionExportCmd.Flags().StringVarP(&sessionExportOut, "output", "o", "", "Write to a file instead of stdout")
	sessionExportCmd.Flags().StringVar(&sessionExportFormat, "format", "markdown", "Export format: markdown or yaml")
	sessionDeleteCmd.Flags().BoolVar(&sessionDeleteForce, "force", false, "Skip the confirmation prompt")

	sessionCmd.AddCommand(sessionCreateCmd)
	sessionCmd.AddCommand(sessionListCmd)
	sessionCmd.AddCommand(sessionShowCmd)
	sessionCmd.AddCommand(sessionExportCmd)
	sessionCmd.AddCommand(sessionDeleteCmd)
}

func runSessionCreate(cmd *cobra.Command, args []string) error {
	name := args[0]

	tmpl, err := openLibrary().Resolve(sessionTemplateRef)
	if err != nil {
		return err
	}

	var sources []string
	if strings.Contains(sessionTemplateRef, "+") {
		sources = strings.Split(sessionTemplateRef, "+")
	}

	s, err := openStore().Create(name, tmpl, sources)
	if err != nil {
		return err
	}

	recordHistory(name, "", history.ActionSessionCreated, fmt.Sprintf("template %s", tmpl.Name))
	fmt.Println(ui.Success("created session %q from template %q (%d phases)", s.Name, tmpl.Name, len(tmpl.Phases)))
	if len(tmpl.Phases) > 0 {
		fmt.Println(ui.Muted("next: sift phase capture %s %s <file>", name, tmpl.Phases[0].ID))
	}
	return nil
}

func runSessionList(cmd *cobra.Command, args []string) error {
	summaries, err := openStore().List()
	if err != nil {
		return err
	}
	if len(summaries) == 0 {
		fmt.Println(ui.Muted("No sessions yet. Create one with: sift session create <name> --template <template>"))
		return nil
	}

	fmt.Println(ui.HeaderStyle.Render("Sessions"))
	for _, s := range summaries {
		fmt.Printf("  %s %s %s %s\n",
			ui.TitleStyle.Render(s.Name),
			ui.Muted("[%s]", s.TemplateName),
			fmt.Sprintf("%d/%d phases", s.DonePhases, s.TotalPhases),
			ui.Muted("updated %s", s.UpdatedAt.Format("2006-01-02 15:04")),
		)
	}
	return nil
}

func runSessionShow(cmd *cobra.Command, args []string) error {
	s, err := openStore().Load(args[0])
	if err != nil {
		return err
	}
	d := s.Detail()

	fmt.Println(ui.TitleStyle.Render(d.Name))
	fmt.Printf("Template: %s   Status: %s   Progress: %d/%d\n\n",
		d.TemplateName, d.Status, d.DonePhases, d.TotalPhases)

	for _, p := range d.Phases {
		fmt.Printf("  %s %s %s", ui.StatusIcon(string(p.Status)), p.Name, ui.Muted("[%s]", p.ID))
		if p.SourcePages != "" {
			fmt.Printf(" %s", ui.Muted("(pages %s)", p.SourcePages))
		}
		fmt.Println()
		if p.NextAction != "" {
			fmt.Printf("      %s\n", ui.Muted("next: sift phase %s %s %s", p.NextAction, d.Name, p.ID))
		}
	}

	if len(d.Documents) > 0 {
		fmt.Println()
		fmt.Println(ui.HeaderStyle.Render("Documents"))
		for _, doc := range d.Documents {
			fmt.Printf("  %s %s\n", doc.Filename, ui.Muted("(%d pages, %d chars)", doc.PageCount, doc.CharCount))
		}
	}
	return nil
}

func runSessionExport(cmd *cobra.Command, args []string) error {
	s, err := openStore().Load(args[0])
	if err != nil {
		return err
	}

	var export func(io.Writer) error
	switch sessionExportFormat {
	case "markdown", "md":
		export = s.Export
	case "yaml", "yml":
		export = s.ExportYAML
	default:
		return fmt.Errorf("unknown export format %q (use markdown or yaml)", sessionExportFormat)
	}

	if sessionExportOut == "" {
		return export(os.Stdout)
	}

	f, err := os.Create(sessionExportOut)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer f.Close()
	if err := export(f); err != nil {
		return err
	}
	fmt.Println(ui.Success("exported session %q to %s", s.Name, sessionExportOut))
	return nil
}

func runSessionDelete(cmd *cobra.Command, args []string) error {
	name := args[0]
	if !sessionDeleteForce {
		fmt.Printf("Delete session %q and all its files? [y/N] ", name)
		var answer string
		fmt.Scanln(&answer)
		if !strings.HasPrefix(strings.ToLower(answer), "y") {
			fmt.Println(ui.Muted("aborted"))
			return nil
		}
	}

	if err := openStore().Delete(name); err != nil {
		return err
	}
	recordHistory(name, "", history.ActionSessionDeleted, "")
	fmt.Println(ui.Success("deleted session %q", name))
	return nil
}
