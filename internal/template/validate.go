package template

import (
	"errors"
	"fmt"
	"strings"
)

// ErrTemplateNotFound marks a template name or path with no record.
var ErrTemplateNotFound = errors.New("template not found")

// ValidationError reports a structurally invalid template. These are
// authoring mistakes, raised at load time and never at use time.
type ValidationError struct {
	Template string
	Phase    string
	Reason   string
}

func (e *ValidationError) Error() string {
	if e.Phase != "" {
		return fmt.Sprintf("template %q: phase %q: %s", e.Template, e.Phase, e.Reason)
	}
	return fmt.Sprintf("template %q: %s", e.Template, e.Reason)
}

// Validate checks the template's structure: unique phase ids, resolvable
// dependency references, an acyclic dependency graph, unique field ids
// per phase, and known field/capture types.
func (t *SessionTemplate) Validate() error {
	if t.Name == "" {
		return &ValidationError{Template: t.Name, Reason: "template name is required"}
	}

	seen := make(map[string]bool, len(t.Phases))
	for i := range t.Phases {
		p := &t.Phases[i]
		if p.ID == "" {
			return &ValidationError{Template: t.Name, Reason: fmt.Sprintf("phase at index %d has no id", i)}
		}
		if seen[p.ID] {
			return &ValidationError{Template: t.Name, Phase: p.ID, Reason: "duplicate phase id"}
		}
		seen[p.ID] = true

		fieldIDs := make(map[string]bool, len(p.Extract))
		for _, f := range p.Extract {
			if f.ID == "" {
				return &ValidationError{Template: t.Name, Phase: p.ID, Reason: "extraction field has no id"}
			}
			if fieldIDs[f.ID] {
				return &ValidationError{Template: t.Name, Phase: p.ID, Reason: fmt.Sprintf("duplicate extraction field id %q", f.ID)}
			}
			fieldIDs[f.ID] = true
			if !ValidFieldType(f.Type) {
				return &ValidationError{Template: t.Name, Phase: p.ID, Reason: fmt.Sprintf("unknown extraction field type %q for field %q", f.Type, f.ID)}
			}
		}
		for _, c := range p.Capture {
			if !ValidCaptureType(c.Type) {
				return &ValidationError{Template: t.Name, Phase: p.ID, Reason: fmt.Sprintf("unknown capture type %q", c.Type)}
			}
		}
	}

	for i := range t.Phases {
		p := &t.Phases[i]
		if p.DependsOn != "" && !seen[p.DependsOn] {
			return &ValidationError{Template: t.Name, Phase: p.ID, Reason: fmt.Sprintf("depends on non-existent phase %q", p.DependsOn)}
		}
	}

	if cycle := t.findCycle(); len(cycle) > 0 {
		return &ValidationError{
			Template: t.Name,
			Reason:   fmt.Sprintf("circular dependency detected: %s", strings.Join(cycle, " -> ")),
		}
	}

	return nil
}

// Dependency graph coloring for cycle detection.
const (
	colorWhite = iota // unvisited
	colorGray         // on the current DFS path
	colorBlack        // fully explored
)

// findCycle runs a three-color DFS over the depends_on graph and
// returns the phase ids on a cycle, or nil when the graph is acyclic.
func (t *SessionTemplate) findCycle() []string {
	adjacency := make(map[string][]string, len(t.Phases))
	for i := range t.Phases {
		p := &t.Phases[i]
		if p.DependsOn != "" {
			adjacency[p.ID] = append(adjacency[p.ID], p.DependsOn)
		}
	}

	colors := make(map[string]int, len(t.Phases))
	var stack []string
	var cycle []string

	var visit func(id string) bool
	visit = func(id string) bool {
		colors[id] = colorGray
		stack = append(stack, id)

		for _, next := range adjacency[id] {
			switch colors[next] {
			case colorGray:
				// Back edge: the cycle is the stack suffix from next
				for i, s := range stack {
					if s == next {
						cycle = append(append([]string{}, stack[i:]...), next)
						return true
					}
				}
			case colorWhite:
				if visit(next) {
					return true
				}
			}
		}

		stack = stack[:len(stack)-1]
		colors[id] = colorBlack
		return false
	}

	for i := range t.Phases {
		if colors[t.Phases[i].ID] == colorWhite {
			if visit(t.Phases[i].ID) {
				return cycle
			}
		}
	}
	return nil
}
