package session

import (
	"fmt"
	"io"
	"sort"

	"gopkg.in/yaml.v3"
)

// ExportYAML writes the full session data as one YAML document:
// session header plus per-phase transcript and extracted fields.
func (s *Session) ExportYAML(w io.Writer) error {
	phases := make(map[string]interface{}, len(s.Phases))
	for _, p := range s.Template().Phases {
		ps, ok := s.Phases[p.ID]
		if !ok {
			continue
		}
		entry := map[string]interface{}{
			"name":   p.Name,
			"status": string(ps.Status),
		}
		if transcript, ok := s.Transcript(p.ID); ok {
			entry["transcript"] = transcript
		}
		if extracted, ok := s.Extracted(p.ID); ok && len(extracted) > 0 {
			entry["extracted"] = extracted
		}
		phases[p.ID] = entry
	}

	export := map[string]interface{}{
		"session": map[string]interface{}{
			"name":       s.Name,
			"template":   s.TemplateName,
			"status":     string(s.Status),
			"created_at": s.CreatedAt,
		},
		"phases": phases,
	}

	data, err := yaml.Marshal(export)
	if err != nil {
		return fmt.Errorf("failed to marshal session export: %w", err)
	}
	_, err = w.Write(data)
	return err
}

// Export writes a markdown summary of the session: one section per
// phase in template order, with transcript and extracted fields.
func (s *Session) Export(w io.Writer) error {
	fmt.Fprintf(w, "# %s\n\n", s.Name)
	fmt.Fprintf(w, "Template: %s  \n", s.TemplateName)
	fmt.Fprintf(w, "Status: %s  \n", s.Status)
	fmt.Fprintf(w, "Created: %s  \n\n", s.CreatedAt.Format("2006-01-02 15:04"))

	for _, p := range s.Template().Phases {
		ps, ok := s.Phases[p.ID]
		if !ok {
			continue
		}

		fmt.Fprintf(w, "## %s\n\n", p.Name)
		fmt.Fprintf(w, "Status: %s\n\n", ps.Status)

		if data, ok := s.Extracted(p.ID); ok && len(data) > 0 {
			// Stable key order for reproducible exports
			keys := make([]string, 0, len(data))
			for k := range data {
				keys = append(keys, k)
			}
			sort.Strings(keys)

			for _, k := range keys {
				rendered, err := yaml.Marshal(data[k])
				if err != nil {
					continue
				}
				fmt.Fprintf(w, "### %s\n\n```yaml\n%s```\n\n", k, rendered)
			}
		} else if transcript, ok := s.Transcript(p.ID); ok {
			fmt.Fprintf(w, "%s\n\n", transcript)
		} else {
			fmt.Fprint(w, "_No content captured._\n\n")
		}
	}

	return nil
}
