package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"sift/cmd/sift/ui"
	"sift/internal/history"
)

var phaseCmd = &cobra.Command{
	Use:   "phase",
	Short: "Drive a phase through its capture pipeline",
}

var (
	captureText   string
	captureAppend bool
)

var phaseCaptureCmd = &cobra.Command{
	Use:   "capture [session] [phase] [file]",
	Short: "Attach audio, a document, or typed text to a phase",
	Long: `Attaches content to a phase. Audio files await transcription;
text and PDF files become the phase transcript directly.

  sift phase capture sprint-12 gather-info recording.mp3
  sift phase capture sprint-12 gather-info notes.pdf
  sift phase capture sprint-12 gather-info --text "typed notes"
  sift phase capture sprint-12 gather-info more.txt --append`,
	Args: cobra.RangeArgs(2, 3),
	RunE: runPhaseCapture,
}

var phaseTranscribeCmd = &cobra.Command{
	Use:   "transcribe [session] [phase]",
	Short: "Transcribe a phase's captured audio",
	Args:  cobra.ExactArgs(2),
	RunE:  runPhaseTranscribe,
}

var phaseExtractCmd = &cobra.Command{
	Use:   "extract [session] [phase]",
	Short: "Extract structured data from a phase transcript",
	Args:  cobra.ExactArgs(2),
	RunE:  runPhaseExtract,
}

var phaseCompleteCmd = &cobra.Command{
	Use:   "complete [session] [phase]",
	Short: "Mark an extracted phase complete",
	Args:  cobra.ExactArgs(2),
	RunE:  runPhaseComplete,
}

func init() {
	phaseCaptureCmd.Flags().StringVar(&captureText, "text", "", "Capture typed text instead of a file")
	phaseCaptureCmd.Flags().BoolVar(&captureAppend, "append", false, "Append to the existing transcript instead of replacing it")

	phaseCmd.AddCommand(phaseCaptureCmd)
	phaseCmd.AddCommand(phaseTranscribeCmd)
	phaseCmd.AddCommand(phaseExtractCmd)
	phaseCmd.AddCommand(phaseCompleteCmd)
}

func runPhaseCapture(cmd *cobra.Command, args []string) error {
	sessionName, phaseID := args[0], args[1]

	s, err := openStore().Load(sessionName)
	if err != nil {
		return err
	}
	lc := newLifecycle(nil)

	switch {
	case captureText != "":
		if err := lc.CaptureText(s, phaseID, captureText, captureAppend); err != nil {
			return err
		}
	case len(args) == 3:
		if err := lc.CaptureFile(s, phaseID, args[2], captureAppend); err != nil {
			return err
		}
	default:
		return fmt.Errorf("provide a file argument or --text")
	}

	recordHistory(sessionName, phaseID, history.ActionCaptured, "")
	ps := s.Phases[phaseID]
	fmt.Println(ui.Success("captured content for phase %q (status: %s)", phaseID, ps.Status))
	return nil
}

func runPhaseTranscribe(cmd *cobra.Command, args []string) error {
	sessionName, phaseID := args[0], args[1]

	s, err := openStore().Load(sessionName)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.GetProviderTimeout())
	defer cancel()

	if err := newLifecycle(newChat()).Transcribe(ctx, s, phaseID); err != nil {
		return err
	}

	recordHistory(sessionName, phaseID, history.ActionTranscribed, "")
	fmt.Println(ui.Success("transcribed phase %q", phaseID))
	return nil
}

func runPhaseExtract(cmd *cobra.Command, args []string) error {
	sessionName, phaseID := args[0], args[1]

	s, err := openStore().Load(sessionName)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.GetProviderTimeout())
	defer cancel()

	fields, err := newLifecycle(newChat()).Extract(ctx, s, phaseID)
	if err != nil {
		return err
	}

	recordHistory(sessionName, phaseID, history.ActionExtracted, fmt.Sprintf("%d fields", len(fields)))
	fmt.Println(ui.Success("extracted %d fields from phase %q", len(fields), phaseID))

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		rendered, err := yaml.Marshal(fields[k])
		if err != nil {
			continue
		}
		fmt.Printf("%s:\n%s", ui.TitleStyle.Render(k), rendered)
	}
	return nil
}

func runPhaseComplete(cmd *cobra.Command, args []string) error {
	sessionName, phaseID := args[0], args[1]

	s, err := openStore().Load(sessionName)
	if err != nil {
		return err
	}
	if err := newLifecycle(nil).Complete(s, phaseID); err != nil {
		return err
	}

	recordHistory(sessionName, phaseID, history.ActionCompleted, "")
	fmt.Println(ui.Success("phase %q complete (%d/%d done)", phaseID, s.DoneCount(), len(s.Phases)))
	if s.AllDone() {
		fmt.Println(ui.Success("session %q complete. Export it with: sift session export %s", sessionName, sessionName))
	}
	return nil
}
