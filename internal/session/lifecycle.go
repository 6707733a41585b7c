package session

import (
	"context"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"sift/internal/document"
	"sift/internal/extraction"
	"sift/internal/logging"
	"sift/internal/provider"
	"sift/internal/router"
)

// Lifecycle drives phases through capture, transcription, and
// extraction. Every mutation ends with a session save; the state
// machine is only as durable as its last completed save.
//
// Transitions: pending -> captured -> transcribed -> extracted, with
// text/PDF capture landing directly on transcribed and zero-field
// phases landing on complete instead of extracted. Re-running a step
// overwrites the phase's side files rather than being rejected.
type Lifecycle struct {
	chat      provider.Chat // may be nil
	maxTokens int
}

// NewLifecycle returns a lifecycle engine. chat may be nil; operations
// that need it fail with a clear message when called.
func NewLifecycle(chat provider.Chat, maxTokens int) *Lifecycle {
	return &Lifecycle{chat: chat, maxTokens: maxTokens}
}

// CaptureFile attaches a file to a phase. Audio files park the phase at
// captured, awaiting transcription. Text and PDF files are extracted to
// page-marked text and land the phase directly on transcribed; with
// appendText set their content joins an existing transcript the same
// way CaptureText does.
func (lc *Lifecycle) CaptureFile(s *Session, phaseID, path string, appendText bool) error {
	ps, err := s.Phase(phaseID)
	if err != nil {
		return err
	}

	switch document.KindForPath(path) {
	case document.KindAudio:
		if err := s.AttachAudio(phaseID, path); err != nil {
			return err
		}
		ps.Status = PhaseCaptured
		ps.CapturedAt = now()
		logging.Session("session %q phase %q: captured audio %s", s.Name, phaseID, path)

	case document.KindText, document.KindPDF:
		extractor, err := document.ForPath(path)
		if err != nil {
			return err
		}
		text, stats, err := extractor.Extract(path)
		if err != nil {
			return err
		}
		if appendText {
			if existing, ok := s.Transcript(phaseID); ok && strings.TrimSpace(existing) != "" {
				text = existing + "\n\n---\n\n" + text
			}
		}
		if err := s.WriteTranscript(phaseID, text); err != nil {
			return err
		}
		ps.Status = PhaseTranscribed
		ps.CapturedAt = now()
		ps.TranscribedAt = now()
		logging.Session("session %q phase %q: captured document %s (%d pages)", s.Name, phaseID, path, stats.PageCount)

	default:
		return fmt.Errorf("unsupported capture format: %s", path)
	}

	return s.Save()
}

// CaptureText attaches typed text directly as the phase transcript.
// With appendText set, the text is joined to an existing transcript
// with a --- separator instead of replacing it. An already-extracted
// phase drops back to transcribed, since its transcript changed.
func (lc *Lifecycle) CaptureText(s *Session, phaseID, text string, appendText bool) error {
	ps, err := s.Phase(phaseID)
	if err != nil {
		return err
	}

	if appendText {
		if existing, ok := s.Transcript(phaseID); ok && strings.TrimSpace(existing) != "" {
			text = existing + "\n\n---\n\n" + text
		}
	}

	if err := s.WriteTranscript(phaseID, text); err != nil {
		return err
	}
	ps.Status = PhaseTranscribed
	if ps.CapturedAt == nil {
		ps.CapturedAt = now()
	}
	ps.TranscribedAt = now()

	logging.Session("session %q phase %q: captured text (%d chars)", s.Name, phaseID, len(text))
	return s.Save()
}

// Transcribe converts a phase's captured audio to a transcript. Fails
// without changing status when no audio is attached or the provider
// cannot transcribe.
func (lc *Lifecycle) Transcribe(ctx context.Context, s *Session, phaseID string) error {
	ps, err := s.Phase(phaseID)
	if err != nil {
		return err
	}

	audioPath, ok := s.AudioPath(phaseID)
	if !ok {
		return &PreconditionError{Session: s.Name, Phase: phaseID, Missing: "captured audio"}
	}

	transcriber, ok := lc.chat.(provider.Transcriber)
	if !ok || lc.chat == nil || !lc.chat.IsAvailable() {
		return fmt.Errorf("configured provider cannot transcribe audio (use the openai provider, or capture text directly)")
	}

	text, err := transcriber.Transcribe(ctx, audioPath)
	if err != nil {
		return fmt.Errorf("transcription failed for session %q phase %q: %w", s.Name, phaseID, err)
	}

	if err := s.WriteTranscript(phaseID, text); err != nil {
		return err
	}
	ps.Status = PhaseTranscribed
	ps.TranscribedAt = now()

	logging.Session("session %q phase %q: transcribed audio", s.Name, phaseID)
	return s.Save()
}

// Extract runs structured-data extraction against a phase's transcript
// plus context gathered from earlier phases. A phase with zero
// extraction fields lands directly on complete with an empty field
// set. Extraction failures surface to the caller; this step is the
// session's core value and never silently completes empty.
func (lc *Lifecycle) Extract(ctx context.Context, s *Session, phaseID string) (map[string]interface{}, error) {
	ps, err := s.Phase(phaseID)
	if err != nil {
		return nil, err
	}
	phase, ok := s.Template().Phase(phaseID)
	if !ok {
		return nil, fmt.Errorf("session %q phase %q: %w", s.Name, phaseID, ErrPhaseNotFound)
	}

	transcript, ok := s.Transcript(phaseID)
	if !ok {
		return nil, &PreconditionError{Session: s.Name, Phase: phaseID, Missing: "transcript"}
	}

	if len(phase.Extract) == 0 {
		// Extraction is a no-op: skip straight to complete.
		if err := s.WriteExtracted(phaseID, map[string]interface{}{}); err != nil {
			return nil, err
		}
		ps.Status = PhaseComplete
		ps.ExtractedAt = now()
		logging.Session("session %q phase %q: no extraction fields, marked complete", s.Name, phaseID)
		if err := s.Save(); err != nil {
			return nil, err
		}
		return map[string]interface{}{}, nil
	}

	fields, err := extraction.Extract(ctx, lc.chat, extraction.Request{
		PhaseName:  phase.Name,
		Prompt:     phase.Prompt,
		Fields:     phase.Extract,
		Transcript: transcript,
		Context:    lc.gatherContext(s, phaseID),
		MaxTokens:  lc.maxTokens,
	})
	if err != nil {
		return nil, err
	}

	if err := s.WriteExtracted(phaseID, fields); err != nil {
		return nil, err
	}
	ps.Status = PhaseExtracted
	ps.ExtractedAt = now()

	logging.Session("session %q phase %q: extracted %d fields", s.Name, phaseID, len(fields))
	if err := s.Save(); err != nil {
		return nil, err
	}
	return fields, nil
}

// Complete marks an extracted phase complete, and the session complete
// once every phase is done.
func (lc *Lifecycle) Complete(s *Session, phaseID string) error {
	ps, err := s.Phase(phaseID)
	if err != nil {
		return err
	}
	if ps.Status != PhaseExtracted && ps.Status != PhaseComplete {
		return &PreconditionError{Session: s.Name, Phase: phaseID, Missing: "extracted data"}
	}
	ps.Status = PhaseComplete
	if s.AllDone() {
		s.Status = StatusComplete
	}
	return s.Save()
}

// gatherContext concatenates extracted data from phases strictly
// earlier in template order. Later phases never see later data, even
// when an out-of-order manual extraction already produced some.
func (lc *Lifecycle) gatherContext(s *Session, phaseID string) string {
	tmpl := s.Template()
	limit := tmpl.PhaseIndex(phaseID)
	if limit <= 0 {
		return ""
	}

	var b strings.Builder
	for i := 0; i < limit; i++ {
		earlier := &tmpl.Phases[i]
		data, ok := s.Extracted(earlier.ID)
		if !ok || len(data) == 0 {
			continue
		}
		rendered, err := yaml.Marshal(data)
		if err != nil {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "## %s\n%s", earlier.Name, rendered)
	}
	return b.String()
}

// ApplyMappings writes router output into the session: one transcript
// per mapped phase, annotated with the source document and page range.
// Returns how many phases were populated.
func (lc *Lifecycle) ApplyMappings(s *Session, docID string, mappings []router.PhaseMapping) (int, error) {
	applied := 0
	for _, m := range mappings {
		ps, err := s.Phase(m.PhaseID)
		if err != nil {
			logging.Session("skipping mapping for unknown phase %q", m.PhaseID)
			continue
		}
		if m.Content == "" {
			continue
		}
		if err := s.WriteTranscript(m.PhaseID, m.Content); err != nil {
			return applied, err
		}
		ps.Status = PhaseTranscribed
		ps.CapturedAt = now()
		ps.TranscribedAt = now()
		ps.SourceDocument = docID
		ps.SourcePages = m.MatchedPages
		applied++
	}
	if applied == 0 {
		return 0, nil
	}
	logging.Session("session %q: document %s populated %d phases", s.Name, docID, applied)
	return applied, s.Save()
}
