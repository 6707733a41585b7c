// Package session owns the durable state of one working instance of a
// template: phase-by-phase progress, file references, timestamps. The
// session is the sole unit of persistence; every phase mutation goes
// through a save to become durable.
package session

import (
	"errors"
	"fmt"
	"time"

	"sift/internal/template"
)

// Status is the overall session state.
type Status string

const (
	StatusActive   Status = "active"
	StatusComplete Status = "complete"
	StatusArchived Status = "archived"
)

// PhaseStatus is the lifecycle state of one phase.
type PhaseStatus string

const (
	PhasePending     PhaseStatus = "pending"
	PhaseCaptured    PhaseStatus = "captured"
	PhaseTranscribed PhaseStatus = "transcribed"
	PhaseExtracted   PhaseStatus = "extracted"
	PhaseComplete    PhaseStatus = "complete"
)

// ErrSessionNotFound marks a session name with no record.
var ErrSessionNotFound = errors.New("session not found")

// ErrSessionExists marks an attempt to create over an existing session.
var ErrSessionExists = errors.New("session already exists")

// ErrPhaseNotFound marks a phase id absent from the session.
var ErrPhaseNotFound = errors.New("phase not found")

// PreconditionError reports a lifecycle transition attempted before its
// input exists (extract without transcript, transcribe without audio).
type PreconditionError struct {
	Session string
	Phase   string
	Missing string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("session %q phase %q: %s required before this step", e.Session, e.Phase, e.Missing)
}

// PhaseState is the runtime record for one phase. Side files are
// stored relative to the phase directory.
type PhaseState struct {
	ID             string      `yaml:"id"`
	Status         PhaseStatus `yaml:"status"`
	AudioFile      string      `yaml:"audio_file,omitempty"`
	TranscriptFile string      `yaml:"transcript_file,omitempty"`
	ExtractedFile  string      `yaml:"extracted_file,omitempty"`
	CapturedAt     *time.Time  `yaml:"captured_at,omitempty"`
	TranscribedAt  *time.Time  `yaml:"transcribed_at,omitempty"`
	ExtractedAt    *time.Time  `yaml:"extracted_at,omitempty"`
	SourceDocument string      `yaml:"source_document,omitempty"`
	SourcePages    string      `yaml:"source_pages,omitempty"`
}

// Done reports whether the phase finished its pipeline.
func (p *PhaseState) Done() bool {
	return p.Status == PhaseExtracted || p.Status == PhaseComplete
}

// DocumentRecord describes one imported document.
type DocumentRecord struct {
	ID         string    `yaml:"id"`
	Filename   string    `yaml:"filename"`
	PageCount  int       `yaml:"page_count"`
	TableCount int       `yaml:"table_count,omitempty"`
	CharCount  int       `yaml:"char_count"`
	ImportedAt time.Time `yaml:"imported_at"`
}

// Session is the root aggregate: one in-progress or completed run
// through a template. The template is snapshotted at creation so later
// library edits never change a session in flight.
type Session struct {
	Name            string                 `yaml:"name"`
	TemplateName    string                 `yaml:"template_name"`
	Status          Status                 `yaml:"status"`
	CreatedAt       time.Time              `yaml:"created_at"`
	UpdatedAt       time.Time              `yaml:"updated_at"`
	SourceTemplates []string               `yaml:"source_templates,omitempty"`
	Phases          map[string]*PhaseState `yaml:"phases"`
	Documents       []DocumentRecord       `yaml:"documents,omitempty"`

	dir      string
	template *template.SessionTemplate
}

// Template returns the session's snapshotted template.
func (s *Session) Template() *template.SessionTemplate {
	return s.template
}

// Dir returns the session's directory on disk.
func (s *Session) Dir() string {
	return s.dir
}

// Phase returns the state for a phase id.
func (s *Session) Phase(id string) (*PhaseState, error) {
	ps, ok := s.Phases[id]
	if !ok {
		return nil, fmt.Errorf("session %q phase %q: %w", s.Name, id, ErrPhaseNotFound)
	}
	return ps, nil
}

// DoneCount returns how many phases finished their pipeline.
func (s *Session) DoneCount() int {
	n := 0
	for _, ps := range s.Phases {
		if ps.Done() {
			n++
		}
	}
	return n
}

// AllDone reports whether every phase finished.
func (s *Session) AllDone() bool {
	return s.DoneCount() == len(s.Phases)
}

func now() *time.Time {
	t := time.Now().UTC()
	return &t
}
