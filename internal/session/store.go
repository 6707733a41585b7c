package session

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"sift/internal/logging"
	"sift/internal/schema"
	"sift/internal/template"
)

// Store persists sessions under a root directory. Layout per session:
//
//	<root>/<name>/session.yaml    state record
//	<root>/<name>/template.yaml   immutable template snapshot
//	<root>/<name>/phases/<id>/    side files per phase
//	<root>/<name>/documents/      imported document text
type Store struct {
	root string
}

// NewStore returns a store rooted at dir.
func NewStore(root string) *Store {
	return &Store{root: root}
}

// Root returns the sessions directory.
func (st *Store) Root() string {
	return st.root
}

var safeName = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// sessionFile is the on-disk shape: the session plus its version tag.
type sessionFile struct {
	SchemaVersion int `yaml:"schema_version"`
	Session       `yaml:",inline"`
}

// Create initializes a new session from a template. The template is
// snapshotted into the session directory so later edits to the library
// copy never affect this session. Fails if the name is taken.
func (st *Store) Create(name string, tmpl *template.SessionTemplate, sourceTemplates []string) (*Session, error) {
	if !safeName.MatchString(name) {
		return nil, fmt.Errorf("invalid session name %q: use letters, digits, dots, dashes, underscores", name)
	}

	dir := filepath.Join(st.root, name)
	if _, err := os.Stat(dir); err == nil {
		return nil, fmt.Errorf("session %q: %w", name, ErrSessionExists)
	}

	if err := os.MkdirAll(filepath.Join(dir, "phases"), 0755); err != nil {
		return nil, fmt.Errorf("failed to create session directory: %w", err)
	}

	snapshot, err := tmpl.Encode()
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(filepath.Join(dir, "template.yaml"), snapshot, 0644); err != nil {
		return nil, fmt.Errorf("failed to write template snapshot: %w", err)
	}

	s := &Session{
		Name:         name,
		TemplateName: tmpl.Name,
		Status:       StatusActive,
		CreatedAt:    time.Now().UTC(),
		// One pending phase state per template phase, keyed by id
		Phases:          make(map[string]*PhaseState, len(tmpl.Phases)),
		SourceTemplates: sourceTemplates,
		dir:             dir,
		template:        tmpl,
	}
	for _, p := range tmpl.Phases {
		s.Phases[p.ID] = &PhaseState{ID: p.ID, Status: PhasePending}
	}

	if err := s.Save(); err != nil {
		return nil, err
	}

	logging.Store("created session %q from template %q (%d phases)", name, tmpl.Name, len(tmpl.Phases))
	return s, nil
}

// Load reads a session by name. The schema version is checked before
// the record is interpreted; a record from a newer version aborts the
// load without touching the file.
func (st *Store) Load(name string) (*Session, error) {
	dir := filepath.Join(st.root, name)
	path := filepath.Join(dir, "session.yaml")

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("session %q: %w", name, ErrSessionNotFound)
		}
		return nil, fmt.Errorf("failed to read session %q: %w", name, err)
	}

	// Probe the version tag first. Missing field decodes to 0, the
	// pre-versioning default.
	var probe struct {
		SchemaVersion int `yaml:"schema_version"`
	}
	if err := yaml.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("failed to parse session %q: %w", name, err)
	}
	if err := schema.Check(path, probe.SchemaVersion, schema.SessionVersion); err != nil {
		return nil, err
	}

	var sf sessionFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("failed to parse session %q: %w", name, err)
	}

	s := sf.Session
	s.dir = dir

	tmpl, err := template.Load(filepath.Join(dir, "template.yaml"))
	if err != nil {
		return nil, fmt.Errorf("session %q template snapshot: %w", name, err)
	}
	s.template = tmpl

	// The phase-state keys must track the snapshot's phase ids. A
	// missing entry is re-seeded as pending rather than failing the load.
	if s.Phases == nil {
		s.Phases = make(map[string]*PhaseState, len(tmpl.Phases))
	}
	for _, p := range tmpl.Phases {
		if _, ok := s.Phases[p.ID]; !ok {
			logging.Store("session %q missing state for phase %q, re-seeding as pending", name, p.ID)
			s.Phases[p.ID] = &PhaseState{ID: p.ID, Status: PhasePending}
		}
	}

	return &s, nil
}

// Exists reports whether a session record exists under name.
func (st *Store) Exists(name string) bool {
	_, err := os.Stat(filepath.Join(st.root, name, "session.yaml"))
	return err == nil
}

// Summary is one row of a session listing.
type Summary struct {
	Name         string
	TemplateName string
	Status       Status
	UpdatedAt    time.Time
	DonePhases   int
	TotalPhases  int
}

// List returns summaries of all sessions. Unreadable sessions are
// skipped with a log entry.
func (st *Store) List() ([]Summary, error) {
	entries, err := os.ReadDir(st.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read sessions directory: %w", err)
	}

	var summaries []Summary
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		s, err := st.Load(entry.Name())
		if err != nil {
			logging.Store("skipping unreadable session %q: %v", entry.Name(), err)
			continue
		}
		summaries = append(summaries, Summary{
			Name:         s.Name,
			TemplateName: s.TemplateName,
			Status:       s.Status,
			UpdatedAt:    s.UpdatedAt,
			DonePhases:   s.DoneCount(),
			TotalPhases:  len(s.Phases),
		})
	}
	return summaries, nil
}

// Delete removes a session and all its side files.
func (st *Store) Delete(name string) error {
	if !st.Exists(name) {
		return fmt.Errorf("session %q: %w", name, ErrSessionNotFound)
	}
	if err := os.RemoveAll(filepath.Join(st.root, name)); err != nil {
		return fmt.Errorf("failed to delete session %q: %w", name, err)
	}
	logging.Store("deleted session %q", name)
	return nil
}

// Save re-stamps updated_at and writes the full state record via a
// temp file and rename, so a reader never observes a half-written
// session record.
func (s *Session) Save() error {
	s.UpdatedAt = time.Now().UTC()

	data, err := yaml.Marshal(sessionFile{
		SchemaVersion: schema.SessionVersion,
		Session:       *s,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal session %q: %w", s.Name, err)
	}

	tmp := filepath.Join(s.dir, ".session.yaml.tmp")
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write session %q: %w", s.Name, err)
	}
	if err := os.Rename(tmp, filepath.Join(s.dir, "session.yaml")); err != nil {
		return fmt.Errorf("failed to commit session %q: %w", s.Name, err)
	}

	logging.StoreDebug("saved session %q", s.Name)
	return nil
}

// PhaseDir returns the side-file directory for a phase.
func (s *Session) PhaseDir(phaseID string) string {
	return filepath.Join(s.dir, "phases", phaseID)
}

// Transcript lazily reads a phase's transcript. A phase without one is
// a normal state, reported as ok=false rather than an error.
func (s *Session) Transcript(phaseID string) (string, bool) {
	ps, ok := s.Phases[phaseID]
	if !ok || ps.TranscriptFile == "" {
		return "", false
	}
	data, err := os.ReadFile(filepath.Join(s.PhaseDir(phaseID), ps.TranscriptFile))
	if err != nil {
		logging.Store("session %q phase %q: transcript unreadable: %v", s.Name, phaseID, err)
		return "", false
	}
	return string(data), true
}

// Extracted lazily reads a phase's extracted data. ok=false when the
// phase has no extracted file yet.
func (s *Session) Extracted(phaseID string) (map[string]interface{}, bool) {
	ps, ok := s.Phases[phaseID]
	if !ok || ps.ExtractedFile == "" {
		return nil, false
	}
	data, err := os.ReadFile(filepath.Join(s.PhaseDir(phaseID), ps.ExtractedFile))
	if err != nil {
		logging.Store("session %q phase %q: extracted data unreadable: %v", s.Name, phaseID, err)
		return nil, false
	}
	fields := make(map[string]interface{})
	if err := yaml.Unmarshal(data, &fields); err != nil {
		logging.Store("session %q phase %q: extracted data unparsable: %v", s.Name, phaseID, err)
		return nil, false
	}
	return fields, true
}

// WriteTranscript stores transcript text for a phase and records the
// file reference. The caller still owns the status transition and save.
func (s *Session) WriteTranscript(phaseID, text string) error {
	dir := s.PhaseDir(phaseID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create phase directory: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "transcript.txt"), []byte(text), 0644); err != nil {
		return fmt.Errorf("failed to write transcript: %w", err)
	}
	s.Phases[phaseID].TranscriptFile = "transcript.txt"
	return nil
}

// WriteExtracted stores extracted fields for a phase as YAML and
// records the file reference.
func (s *Session) WriteExtracted(phaseID string, fields map[string]interface{}) error {
	dir := s.PhaseDir(phaseID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create phase directory: %w", err)
	}
	data, err := yaml.Marshal(fields)
	if err != nil {
		return fmt.Errorf("failed to marshal extracted data: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "extracted.yaml"), data, 0644); err != nil {
		return fmt.Errorf("failed to write extracted data: %w", err)
	}
	s.Phases[phaseID].ExtractedFile = "extracted.yaml"
	return nil
}

// AttachAudio copies an audio file into the phase directory and records
// the file reference.
func (s *Session) AttachAudio(phaseID, srcPath string) error {
	dir := s.PhaseDir(phaseID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create phase directory: %w", err)
	}

	name := "audio" + filepath.Ext(srcPath)
	src, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("failed to open audio file: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return fmt.Errorf("failed to copy audio file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("failed to copy audio file: %w", err)
	}

	s.Phases[phaseID].AudioFile = name
	return nil
}

// AudioPath returns the absolute path of a phase's audio file.
func (s *Session) AudioPath(phaseID string) (string, bool) {
	ps, ok := s.Phases[phaseID]
	if !ok || ps.AudioFile == "" {
		return "", false
	}
	return filepath.Join(s.PhaseDir(phaseID), ps.AudioFile), true
}

// AddDocument records an imported document and stores its page-marked
// text for later reference. Returns the new document id.
func (s *Session) AddDocument(filename, text string, pageCount, tableCount, charCount int) (string, error) {
	id := uuid.NewString()

	dir := filepath.Join(s.dir, "documents")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create documents directory: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, id+".txt"), []byte(text), 0644); err != nil {
		return "", fmt.Errorf("failed to store document text: %w", err)
	}

	s.Documents = append(s.Documents, DocumentRecord{
		ID:         id,
		Filename:   filepath.Base(filename),
		PageCount:  pageCount,
		TableCount: tableCount,
		CharCount:  charCount,
		ImportedAt: time.Now().UTC(),
	})
	return id, nil
}
