package migrate

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"sift/internal/logging"
	"sift/internal/schema"
)

// Result reports one record's migration outcome.
type Result struct {
	Name          string
	SourceVersion int
	TargetVersion int
	Migrated      bool
	DryRun        bool
	Changes       []string
}

// Summary is the outcome of a batch run over the data directory.
type Summary struct {
	Sessions  []Result
	Templates []Result
	Errors    []string
}

// TotalMigrated counts records that were (or would be) rewritten.
func (s *Summary) TotalMigrated() int {
	n := 0
	for _, r := range append(append([]Result{}, s.Sessions...), s.Templates...) {
		if r.Migrated {
			n++
		}
	}
	return n
}

// TotalSkipped counts records already at the current version.
func (s *Summary) TotalSkipped() int {
	return len(s.Sessions) + len(s.Templates) - s.TotalMigrated()
}

// Service runs migrations against the on-disk record files.
type Service struct {
	sessionsDir  string
	templatesDir string
	registry     *Registry
}

// NewService returns a migration service over the given data
// directories, using the built-in registry.
func NewService(sessionsDir, templatesDir string) *Service {
	return &Service{
		sessionsDir:  sessionsDir,
		templatesDir: templatesDir,
		registry:     DefaultRegistry(),
	}
}

// MigrateSession upgrades one session record to the current version.
// The original file is copied to a .bak sibling before the rewrite;
// with dryRun set, nothing is written.
func (sv *Service) MigrateSession(name string, dryRun bool) (Result, error) {
	path := filepath.Join(sv.sessionsDir, name, "session.yaml")
	return sv.migrateFile(name, path, schema.SessionVersion, sv.registry.sessions, dryRun)
}

// MigrateTemplate upgrades one library template to the current
// version. Both .yaml and .yml extensions are tried.
func (sv *Service) MigrateTemplate(name string, dryRun bool) (Result, error) {
	for _, ext := range []string{".yaml", ".yml"} {
		path := filepath.Join(sv.templatesDir, name+ext)
		if _, err := os.Stat(path); err == nil {
			return sv.migrateFile(name, path, schema.TemplateVersion, sv.registry.templates, dryRun)
		}
	}
	return Result{}, fmt.Errorf("template %q not found in %s", name, sv.templatesDir)
}

func (sv *Service) migrateFile(name, path string, target int, steps map[int]Func, dryRun bool) (Result, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Result{}, fmt.Errorf("failed to read %s: %w", path, err)
	}

	data := make(map[string]interface{})
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return Result{}, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	current := currentVersion(data)
	res := Result{Name: name, SourceVersion: current, TargetVersion: target, DryRun: dryRun}

	if current >= target {
		res.Changes = []string{"already at current version"}
		return res, nil
	}

	migrated, changes, err := Chain(data, current, target, steps)
	if err != nil {
		return Result{}, err
	}
	res.Migrated = true
	res.Changes = changes

	if dryRun {
		return res, nil
	}

	if err := os.WriteFile(path+".bak", raw, 0644); err != nil {
		return Result{}, fmt.Errorf("failed to back up %s: %w", path, err)
	}
	out, err := yaml.Marshal(migrated)
	if err != nil {
		return Result{}, fmt.Errorf("failed to marshal migrated record: %w", err)
	}
	if err := os.WriteFile(path, out, 0644); err != nil {
		return Result{}, fmt.Errorf("failed to write %s: %w", path, err)
	}

	logging.Migrate("migrated %s from v%d to v%d", path, current, target)
	return res, nil
}

// MigrateAll runs every session and library template through the
// registry. Per-record failures are collected, not fatal; a batch run
// over a mixed data directory should report, not abort.
func (sv *Service) MigrateAll(dryRun bool) Summary {
	var summary Summary

	if entries, err := os.ReadDir(sv.sessionsDir); err == nil {
		for _, e := range sortedDirs(entries) {
			if _, err := os.Stat(filepath.Join(sv.sessionsDir, e, "session.yaml")); err != nil {
				continue
			}
			res, err := sv.MigrateSession(e, dryRun)
			if err != nil {
				summary.Errors = append(summary.Errors, fmt.Sprintf("session %s: %v", e, err))
				continue
			}
			summary.Sessions = append(summary.Sessions, res)
		}
	}

	if entries, err := os.ReadDir(sv.templatesDir); err == nil {
		names := templateNames(entries)
		for _, n := range names {
			res, err := sv.MigrateTemplate(n, dryRun)
			if err != nil {
				summary.Errors = append(summary.Errors, fmt.Sprintf("template %s: %v", n, err))
				continue
			}
			summary.Templates = append(summary.Templates, res)
		}
	}

	return summary
}

func sortedDirs(entries []os.DirEntry) []string {
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names
}

func templateNames(entries []os.DirEntry) []string {
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ext))
	}
	sort.Strings(names)
	return names
}
