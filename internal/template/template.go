// Package template models a reusable multi-phase session template:
// an ordered list of phases, each with a prompt, capture specs, and
// extraction field definitions, plus output specs and metadata.
//
// Templates are value objects. They are loaded fresh from storage on
// each access and never mutated in place by consumers.
package template

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"sift/internal/logging"
	"sift/internal/schema"
)

// FieldType enumerates the shapes an extraction field can take.
type FieldType string

const (
	FieldList    FieldType = "list"
	FieldMap     FieldType = "map"
	FieldText    FieldType = "text"
	FieldBoolean FieldType = "boolean"
)

// ValidFieldType reports whether ft is a known field type.
func ValidFieldType(ft FieldType) bool {
	switch ft {
	case FieldList, FieldMap, FieldText, FieldBoolean:
		return true
	}
	return false
}

// CaptureType enumerates how a phase can receive raw content.
type CaptureType string

const (
	CaptureAudio      CaptureType = "audio"
	CaptureTranscript CaptureType = "transcript"
	CaptureText       CaptureType = "text"
)

// ValidCaptureType reports whether ct is a known capture type.
func ValidCaptureType(ct CaptureType) bool {
	switch ct {
	case CaptureAudio, CaptureTranscript, CaptureText:
		return true
	}
	return false
}

// ExtractionField defines one structured field an LLM extracts from a
// phase transcript.
type ExtractionField struct {
	ID     string    `yaml:"id"`
	Type   FieldType `yaml:"type"`
	Prompt string    `yaml:"prompt"`
}

// CaptureSpec describes one way a phase expects to receive content.
type CaptureSpec struct {
	Type     CaptureType `yaml:"type"`
	Required bool        `yaml:"required"`
}

// PhaseTemplate is one step of a template.
type PhaseTemplate struct {
	ID        string            `yaml:"id"`
	Name      string            `yaml:"name"`
	Prompt    string            `yaml:"prompt"`
	Capture   []CaptureSpec     `yaml:"capture,omitempty"`
	Extract   []ExtractionField `yaml:"extract,omitempty"`
	DependsOn string            `yaml:"depends_on,omitempty"`
}

// OutputSpec names a rendered artifact a completed session should produce.
type OutputSpec struct {
	Type     string `yaml:"type"`
	Template string `yaml:"template,omitempty"`
}

// SessionTemplate is a named, ordered sequence of phases. Phase order
// defines the default execution sequence and the "earlier phases"
// context window used during extraction.
type SessionTemplate struct {
	Name        string                 `yaml:"name"`
	Description string                 `yaml:"description,omitempty"`
	Phases      []PhaseTemplate        `yaml:"phases"`
	Outputs     []OutputSpec           `yaml:"outputs,omitempty"`
	Metadata    map[string]interface{} `yaml:"metadata,omitempty"`
}

// templateFile is the on-disk shape: the template plus its version tag.
type templateFile struct {
	SchemaVersion   int `yaml:"schema_version"`
	SessionTemplate `yaml:",inline"`
}

// Parse decodes and validates a template definition. origin is used in
// error messages only.
func Parse(data []byte, origin string) (*SessionTemplate, error) {
	var tf templateFile
	if err := yaml.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("failed to parse template %s: %w", origin, err)
	}

	// Missing schema_version decodes to 0, the pre-versioning default.
	if err := schema.Check(origin, tf.SchemaVersion, schema.TemplateVersion); err != nil {
		return nil, err
	}

	t := tf.SessionTemplate
	if err := t.Validate(); err != nil {
		return nil, err
	}

	logging.TemplateDebug("parsed template %q (%d phases) from %s", t.Name, len(t.Phases), origin)
	return &t, nil
}

// Load reads and validates a template from a YAML file.
func Load(path string) (*SessionTemplate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("template %s: %w", path, ErrTemplateNotFound)
		}
		return nil, fmt.Errorf("failed to read template %s: %w", path, err)
	}
	return Parse(data, path)
}

// Encode serializes the template, stamping the current schema version.
func (t *SessionTemplate) Encode() ([]byte, error) {
	data, err := yaml.Marshal(templateFile{
		SchemaVersion:   schema.TemplateVersion,
		SessionTemplate: *t,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal template %q: %w", t.Name, err)
	}
	return data, nil
}

// Phase returns the phase with the given id.
func (t *SessionTemplate) Phase(id string) (*PhaseTemplate, bool) {
	for i := range t.Phases {
		if t.Phases[i].ID == id {
			return &t.Phases[i], true
		}
	}
	return nil, false
}

// PhaseIndex returns the position of a phase in template order, or -1.
func (t *SessionTemplate) PhaseIndex(id string) int {
	for i := range t.Phases {
		if t.Phases[i].ID == id {
			return i
		}
	}
	return -1
}

// PhaseIDs returns all phase ids in template order.
func (t *SessionTemplate) PhaseIDs() []string {
	ids := make([]string, len(t.Phases))
	for i := range t.Phases {
		ids[i] = t.Phases[i].ID
	}
	return ids
}
