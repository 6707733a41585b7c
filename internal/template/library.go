package template

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"sift/internal/logging"
)

// Library is a directory of named template files.
type Library struct {
	dir string
}

// NewLibrary returns a library rooted at dir. The directory is created
// lazily on first write.
func NewLibrary(dir string) *Library {
	return &Library{dir: dir}
}

// Dir returns the library root.
func (l *Library) Dir() string {
	return l.dir
}

// Path returns the file path a template name maps to.
func (l *Library) Path(name string) string {
	return filepath.Join(l.dir, name+".yaml")
}

// Info is a summary row for listing templates.
type Info struct {
	Name        string
	Description string
	PhaseCount  int
	Path        string
}

// List returns summaries for every template in the library, in file
// order. Files that fail to parse are skipped with a log entry so one
// bad template does not hide the rest.
func (l *Library) List() ([]Info, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read template library: %w", err)
	}

	var infos []Info
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		path := filepath.Join(l.dir, entry.Name())
		t, err := Load(path)
		if err != nil {
			logging.Template("skipping unreadable template %s: %v", path, err)
			continue
		}
		infos = append(infos, Info{
			Name:        strings.TrimSuffix(entry.Name(), ".yaml"),
			Description: t.Description,
			PhaseCount:  len(t.Phases),
			Path:        path,
		})
	}
	return infos, nil
}

// Search returns templates whose name or description contains the
// query, case-insensitive.
func (l *Library) Search(query string) ([]Info, error) {
	all, err := l.List()
	if err != nil {
		return nil, err
	}
	q := strings.ToLower(query)
	var matches []Info
	for _, info := range all {
		if strings.Contains(strings.ToLower(info.Name), q) ||
			strings.Contains(strings.ToLower(info.Description), q) {
			matches = append(matches, info)
		}
	}
	return matches, nil
}

// Load reads a template from the library by name.
func (l *Library) Load(name string) (*SessionTemplate, error) {
	path := l.Path(name)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("template %q: %w", name, ErrTemplateNotFound)
	}
	return Load(path)
}

// Import validates an external template file and copies it into the
// library under its file stem. Fails if a template with that name
// already exists unless force is set.
func (l *Library) Import(path string, force bool) (string, error) {
	t, err := Load(path)
	if err != nil {
		return "", err
	}

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	dest := l.Path(name)
	if !force {
		if _, err := os.Stat(dest); err == nil {
			return "", fmt.Errorf("template %q already exists in library (use --force to overwrite)", name)
		}
	}

	if err := os.MkdirAll(l.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create template library: %w", err)
	}

	data, err := t.Encode()
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(dest, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write template %q: %w", name, err)
	}

	logging.Template("imported template %q from %s", name, path)
	return name, nil
}

// Save writes a template into the library under the given name.
func (l *Library) Save(name string, t *SessionTemplate) error {
	if err := os.MkdirAll(l.dir, 0755); err != nil {
		return fmt.Errorf("failed to create template library: %w", err)
	}
	data, err := t.Encode()
	if err != nil {
		return err
	}
	if err := os.WriteFile(l.Path(name), data, 0644); err != nil {
		return fmt.Errorf("failed to write template %q: %w", name, err)
	}
	return nil
}

// Resolve loads a template from a reference. A reference is either a
// library name, a path to a YAML file, or several of those joined with
// "+" to merge them. Merge labels are the file stems or library names,
// so phase ids in a merged template read "label.id".
func (l *Library) Resolve(ref string) (*SessionTemplate, error) {
	parts := strings.Split(ref, "+")
	templates := make([]*SessionTemplate, 0, len(parts))
	labels := make([]string, 0, len(parts))

	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			return nil, fmt.Errorf("empty template reference in %q", ref)
		}

		var t *SessionTemplate
		var err error
		if strings.ContainsAny(part, "/\\") || strings.HasSuffix(part, ".yaml") || strings.HasSuffix(part, ".yml") {
			t, err = Load(part)
		} else {
			t, err = l.Load(part)
		}
		if err != nil {
			return nil, err
		}

		templates = append(templates, t)
		labels = append(labels, strings.TrimSuffix(filepath.Base(part), filepath.Ext(part)))
	}

	return Merge(templates, labels)
}
