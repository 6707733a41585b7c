package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"sift/cmd/sift/ui"
	"sift/internal/document"
	"sift/internal/history"
	"sift/internal/router"
	"sift/internal/session"
)

var (
	importAuto  bool
	importForce bool
)

var importCmd = &cobra.Command{
	Use:   "import [session] [file]",
	Short: "Analyze a document and distribute sections to matching phases",
	Long: `Imports a PDF or text file into a session. The document is checked
against the session's phases; when it looks like it covers several of
them, an LLM assigns page ranges to phases and each matched phase
receives its slice as a transcript.

  sift import sprint-12 meeting-notes.pdf
  sift import sprint-12 agenda.md --auto`,
	Args: cobra.ExactArgs(2),
	RunE: runImport,
}

func init() {
	importCmd.Flags().BoolVar(&importAuto, "auto", false, "Skip confirmation, apply the mapping directly")
	importCmd.Flags().BoolVar(&importForce, "force", false, "Run LLM analysis even when the document does not look multi-phase")
}

func runImport(cmd *cobra.Command, args []string) error {
	sessionName, path := args[0], args[1]

	s, err := openStore().Load(sessionName)
	if err != nil {
		return err
	}
	tmpl := s.Template()

	extractor, err := document.ForPath(path)
	if err != nil {
		return err
	}
	text, stats, err := extractor.Extract(path)
	if err != nil {
		return err
	}
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("document is empty: %s", path)
	}
	fmt.Println(ui.Success("read %s (%d pages, %d tables, %d chars)", path, stats.PageCount, stats.TableCount, stats.CharCount))

	docID, err := s.AddDocument(path, text, stats.PageCount, stats.TableCount, stats.CharCount)
	if err != nil {
		return err
	}
	if err := s.Save(); err != nil {
		return err
	}
	recordHistory(sessionName, "", history.ActionDocumentImport, fmt.Sprintf("%s (%d pages)", path, stats.PageCount))

	chat := newChat()
	r := router.New(chat, cfg.Router)

	if !importForce && !r.DetectMultiPhase(text, tmpl.Phases) {
		fmt.Println(ui.Warn("document does not look like it spans multiple phases"))
		fmt.Println(ui.Muted("capture it into one phase instead: sift phase capture %s <phase> %s", sessionName, path))
		fmt.Println(ui.Muted("or rerun with --force to analyze anyway"))
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.GetProviderTimeout())
	defer cancel()

	mappings, err := r.AnalyzeDocument(ctx, text, tmpl)
	if err != nil {
		return err
	}
	if len(mappings) == 0 {
		fmt.Println(ui.Warn("could not determine phase mappings for this document"))
		fmt.Println(ui.Muted("you can still capture it manually per phase"))
		return nil
	}

	printMappings(mappings)

	if overwrites := overwrittenPhases(s, mappings); len(overwrites) > 0 {
		fmt.Println(ui.Warn("phases with existing content will be overwritten: %s", strings.Join(overwrites, ", ")))
	}

	if !importAuto {
		fmt.Printf("Distribute content to %d matched phases? [Y/n] ", len(mappings))
		var answer string
		fmt.Scanln(&answer)
		if strings.HasPrefix(strings.ToLower(answer), "n") {
			fmt.Println(ui.Muted("import cancelled"))
			return nil
		}
	}

	applied, err := newLifecycle(chat).ApplyMappings(s, docID, mappings)
	if err != nil {
		return err
	}

	fmt.Println(ui.Success("populated %d phases from %s", applied, path))
	for _, p := range tmpl.Phases {
		if ps := s.Phases[p.ID]; ps != nil && ps.SourceDocument == docID {
			fmt.Printf("  %s %s %s\n", ui.StatusIcon(string(ps.Status)), p.Name, ui.Muted("(pages %s)", ps.SourcePages))
		}
	}
	fmt.Println(ui.Muted("next: sift phase extract %s <phase>", sessionName))
	return nil
}

func printMappings(mappings []router.PhaseMapping) {
	fmt.Println(ui.HeaderStyle.Render("Document Analysis"))
	for _, m := range mappings {
		var confStyle string
		switch m.Confidence {
		case router.ConfidenceHigh:
			confStyle = ui.SuccessStyle.Render(string(m.Confidence))
		case router.ConfidenceLow:
			confStyle = ui.ErrorStyle.Render(string(m.Confidence))
		default:
			confStyle = ui.WarningStyle.Render(string(m.Confidence))
		}
		fmt.Printf("  %-24s pages %-8s %-24s %s\n", m.PhaseName, m.MatchedPages, m.SectionTitle, confStyle)
	}
}

func overwrittenPhases(s *session.Session, mappings []router.PhaseMapping) []string {
	var names []string
	for _, m := range mappings {
		if ps, ok := s.Phases[m.PhaseID]; ok && ps.Status != session.PhasePending {
			names = append(names, m.PhaseName)
		}
	}
	return names
}
