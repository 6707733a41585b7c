package migrate

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"sift/internal/schema"
)

func TestChain(t *testing.T) {
	steps := map[int]Func{
		0: func(d map[string]interface{}) (map[string]interface{}, error) {
			d["a"] = 1
			return d, nil
		},
		1: func(d map[string]interface{}) (map[string]interface{}, error) {
			d["b"] = 2
			return d, nil
		},
	}

	t.Run("applies steps in order and stamps versions", func(t *testing.T) {
		out, changes, err := Chain(map[string]interface{}{}, 0, 2, steps)
		require.NoError(t, err)
		assert.Equal(t, 2, out["schema_version"])
		assert.Equal(t, 1, out["a"])
		assert.Equal(t, 2, out["b"])
		assert.Equal(t, []string{"migrated v0 -> v1", "migrated v1 -> v2"}, changes)
	})

	t.Run("already current is a no-op", func(t *testing.T) {
		in := map[string]interface{}{"schema_version": 2}
		out, changes, err := Chain(in, 2, 2, steps)
		require.NoError(t, err)
		assert.Equal(t, in, out)
		assert.Empty(t, changes)
	})

	t.Run("missing step aborts", func(t *testing.T) {
		_, _, err := Chain(map[string]interface{}{}, 0, 3, steps)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "v2 -> v3")
	})
}

func writeYAML(t *testing.T, path string, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
}

func readYAML(t *testing.T, path string) map[string]interface{} {
	t.Helper()
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	out := make(map[string]interface{})
	require.NoError(t, yaml.Unmarshal(raw, &out))
	return out
}

func TestMigrateSession(t *testing.T) {
	root := t.TempDir()
	sessionsDir := filepath.Join(root, "sessions")
	sv := NewService(sessionsDir, filepath.Join(root, "templates"))

	path := filepath.Join(sessionsDir, "old", "session.yaml")
	writeYAML(t, path, "name: old\ntemplate_name: planning\n")

	t.Run("dry run leaves the file alone", func(t *testing.T) {
		res, err := sv.MigrateSession("old", true)
		require.NoError(t, err)
		assert.True(t, res.Migrated)
		assert.True(t, res.DryRun)
		assert.Equal(t, schema.OldestVersion, res.SourceVersion)
		assert.Equal(t, schema.SessionVersion, res.TargetVersion)

		data := readYAML(t, path)
		_, hasVersion := data["schema_version"]
		assert.False(t, hasVersion)
		_, err = os.Stat(path + ".bak")
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("real run rewrites with backup", func(t *testing.T) {
		res, err := sv.MigrateSession("old", false)
		require.NoError(t, err)
		assert.True(t, res.Migrated)

		data := readYAML(t, path)
		assert.Equal(t, schema.SessionVersion, data["schema_version"])
		assert.Equal(t, "old", data["name"])

		backup := readYAML(t, path+".bak")
		_, hasVersion := backup["schema_version"]
		assert.False(t, hasVersion)
	})

	t.Run("second run is a no-op", func(t *testing.T) {
		res, err := sv.MigrateSession("old", false)
		require.NoError(t, err)
		assert.False(t, res.Migrated)
		assert.Equal(t, []string{"already at current version"}, res.Changes)
	})

	t.Run("missing session errors", func(t *testing.T) {
		_, err := sv.MigrateSession("ghost", false)
		require.Error(t, err)
	})
}

func TestMigrateTemplate(t *testing.T) {
	root := t.TempDir()
	templatesDir := filepath.Join(root, "templates")
	sv := NewService(filepath.Join(root, "sessions"), templatesDir)

	writeYAML(t, filepath.Join(templatesDir, "standup.yml"), "name: standup\nphases: []\n")

	res, err := sv.MigrateTemplate("standup", false)
	require.NoError(t, err)
	assert.True(t, res.Migrated)

	data := readYAML(t, filepath.Join(templatesDir, "standup.yml"))
	assert.Equal(t, schema.TemplateVersion, data["schema_version"])
}

func TestMigrateAll(t *testing.T) {
	root := t.TempDir()
	sessionsDir := filepath.Join(root, "sessions")
	templatesDir := filepath.Join(root, "templates")
	sv := NewService(sessionsDir, templatesDir)

	writeYAML(t, filepath.Join(sessionsDir, "a", "session.yaml"), "name: a\n")
	writeYAML(t, filepath.Join(sessionsDir, "b", "session.yaml"), "schema_version: 1\nname: b\n")
	writeYAML(t, filepath.Join(templatesDir, "t1.yaml"), "name: t1\n")
	writeYAML(t, filepath.Join(templatesDir, "broken.yaml"), "{not yaml::\n")

	summary := sv.MigrateAll(false)
	require.Len(t, summary.Sessions, 2)
	require.Len(t, summary.Templates, 1)
	require.Len(t, summary.Errors, 1)
	assert.Contains(t, summary.Errors[0], "broken")

	// a and t1 migrated, b was already current
	assert.Equal(t, 2, summary.TotalMigrated())
	assert.Equal(t, 1, summary.TotalSkipped())
}
