package template

import (
	"fmt"
	"strings"

	"sift/internal/logging"
)

// Merge combines independently validated templates into one. With a
// single input the template is returned unchanged. With more, every
// phase id is rewritten to "label.id" so ids from different sources
// cannot collide, and depends_on references are rewritten the same way
// so intra-template edges stay valid. Cross-template cycle detection is
// not re-run: each source was validated on its own, and the label
// prefix guarantees no new edges appear.
func Merge(templates []*SessionTemplate, labels []string) (*SessionTemplate, error) {
	if len(templates) == 0 {
		return nil, fmt.Errorf("merge requires at least one template")
	}
	if len(templates) != len(labels) {
		return nil, fmt.Errorf("merge requires one label per template (got %d templates, %d labels)", len(templates), len(labels))
	}
	if len(templates) == 1 {
		return templates[0], nil
	}

	merged := &SessionTemplate{
		Metadata: map[string]interface{}{
			"source_templates": append([]string{}, labels...),
			"source_count":     len(templates),
		},
	}

	var names []string
	var descriptions []string
	seenOutputs := make(map[string]bool)

	for i, t := range templates {
		label := labels[i]
		names = append(names, t.Name)
		if t.Description != "" {
			descriptions = append(descriptions, t.Description)
		}

		for _, p := range t.Phases {
			np := p
			np.ID = label + "." + p.ID
			if p.DependsOn != "" {
				np.DependsOn = label + "." + p.DependsOn
			}
			np.Capture = append([]CaptureSpec{}, p.Capture...)
			np.Extract = append([]ExtractionField{}, p.Extract...)
			merged.Phases = append(merged.Phases, np)
		}

		for _, o := range t.Outputs {
			key := o.Type + "\x00" + o.Template
			if seenOutputs[key] {
				continue
			}
			seenOutputs[key] = true
			merged.Outputs = append(merged.Outputs, o)
		}
	}

	merged.Name = strings.Join(names, " + ")
	merged.Description = strings.Join(descriptions, "\n\n")

	logging.Template("merged %d templates into %q (%d phases)", len(templates), merged.Name, len(merged.Phases))
	return merged, nil
}
