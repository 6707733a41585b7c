// Package migrate upgrades stored session and template records between
// schema versions. Migrations are registered per source version and
// chained one step at a time, so a v0 record passes through every
// intermediate shape on its way to the current version.
package migrate

import (
	"fmt"
	"sort"

	"sift/internal/schema"
)

// Func transforms a raw decoded record from one schema version to the
// next. It receives and returns the generic YAML mapping; the version
// stamp is handled by the chain, not the migration.
type Func func(data map[string]interface{}) (map[string]interface{}, error)

// Registry holds version-indexed migrations for both record kinds.
type Registry struct {
	sessions  map[int]Func
	templates map[int]Func
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions:  make(map[int]Func),
		templates: make(map[int]Func),
	}
}

// RegisterSession adds a session migration from version v to v+1.
func (r *Registry) RegisterSession(v int, fn Func) {
	r.sessions[v] = fn
}

// RegisterTemplate adds a template migration from version v to v+1.
func (r *Registry) RegisterTemplate(v int, fn Func) {
	r.templates[v] = fn
}

// SessionVersions returns the registered session source versions in order.
func (r *Registry) SessionVersions() []int {
	return sortedKeys(r.sessions)
}

// TemplateVersions returns the registered template source versions in order.
func (r *Registry) TemplateVersions() []int {
	return sortedKeys(r.templates)
}

func sortedKeys(m map[int]Func) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

// Chain applies migrations step by step from current to target,
// stamping schema_version after each step. A record already at or past
// the target passes through unchanged. A missing step is an error: a
// partial chain must never be written back.
func Chain(data map[string]interface{}, current, target int, steps map[int]Func) (map[string]interface{}, []string, error) {
	if current >= target {
		return data, nil, nil
	}

	migrated := data
	var changes []string
	for v := current; v < target; v++ {
		fn, ok := steps[v]
		if !ok {
			return nil, nil, fmt.Errorf("no migration registered for v%d -> v%d (record is at v%d, current is v%d)", v, v+1, current, target)
		}
		next, err := fn(migrated)
		if err != nil {
			return nil, nil, fmt.Errorf("migration v%d -> v%d failed: %w", v, v+1, err)
		}
		next["schema_version"] = v + 1
		migrated = next
		changes = append(changes, fmt.Sprintf("migrated v%d -> v%d", v, v+1))
	}
	return migrated, changes, nil
}

// DefaultRegistry returns the registry with the built-in migrations.
//
// v0 -> v1 exists for both kinds: records written before versioning
// carry no structural differences, so the step normalizes missing
// collections and otherwise just earns the version stamp.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.RegisterSession(0, sessionV0ToV1)
	r.RegisterTemplate(0, templateV0ToV1)
	return r
}

func sessionV0ToV1(data map[string]interface{}) (map[string]interface{}, error) {
	if _, ok := data["phases"]; !ok {
		data["phases"] = map[string]interface{}{}
	}
	if _, ok := data["status"]; !ok {
		data["status"] = "active"
	}
	return data, nil
}

func templateV0ToV1(data map[string]interface{}) (map[string]interface{}, error) {
	if _, ok := data["phases"]; !ok {
		data["phases"] = []interface{}{}
	}
	return data, nil
}

// currentVersion reads the version stamp from a raw record, defaulting
// to the pre-versioning value when absent.
func currentVersion(data map[string]interface{}) int {
	v, ok := data["schema_version"]
	if !ok {
		return schema.OldestVersion
	}
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	default:
		return schema.OldestVersion
	}
}
