package session

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sift/internal/schema"
	"sift/internal/template"
)

func twoPhaseTemplate() *template.SessionTemplate {
	return &template.SessionTemplate{
		Name: "planning",
		Phases: []template.PhaseTemplate{
			{
				ID: "gather-info", Name: "Gather Info", Prompt: "Collect the facts",
				Extract: []template.ExtractionField{
					{ID: "facts", Type: template.FieldList, Prompt: "List the facts"},
				},
			},
			{
				ID: "review", Name: "Review", Prompt: "Review the facts",
				DependsOn: "gather-info",
				Extract: []template.ExtractionField{
					{ID: "verdict", Type: template.FieldText, Prompt: "Final verdict"},
				},
			},
		},
	}
}

func TestCreateLoadRoundTrip(t *testing.T) {
	st := NewStore(t.TempDir())
	tmpl := twoPhaseTemplate()

	s, err := st.Create("sprint-12", tmpl, nil)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, s.Status)
	require.Len(t, s.Phases, 2)
	assert.Equal(t, PhasePending, s.Phases["gather-info"].Status)
	assert.Equal(t, PhasePending, s.Phases["review"].Status)

	loaded, err := st.Load("sprint-12")
	require.NoError(t, err)
	assert.Equal(t, "sprint-12", loaded.Name)
	assert.Equal(t, "planning", loaded.TemplateName)

	// The snapshot travels with the session
	require.NotNil(t, loaded.Template())
	assert.Equal(t, tmpl.PhaseIDs(), loaded.Template().PhaseIDs())

	// Phase-state keys track the snapshot's phase ids
	for _, id := range loaded.Template().PhaseIDs() {
		_, ok := loaded.Phases[id]
		assert.True(t, ok, "missing phase state %q", id)
	}
}

func TestCreateErrors(t *testing.T) {
	st := NewStore(t.TempDir())
	tmpl := twoPhaseTemplate()

	t.Run("duplicate name", func(t *testing.T) {
		_, err := st.Create("dup", tmpl, nil)
		require.NoError(t, err)
		_, err = st.Create("dup", tmpl, nil)
		require.ErrorIs(t, err, ErrSessionExists)
	})

	t.Run("unsafe name", func(t *testing.T) {
		_, err := st.Create("../escape", tmpl, nil)
		require.Error(t, err)
		_, err = st.Create("has space", tmpl, nil)
		require.Error(t, err)
	})
}

func TestLoadMissing(t *testing.T) {
	st := NewStore(t.TempDir())
	_, err := st.Load("ghost")
	require.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSchemaVersioning(t *testing.T) {
	root := t.TempDir()
	st := NewStore(root)

	writeSession := func(t *testing.T, name, body string) string {
		t.Helper()
		dir := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(dir, 0755))
		snapshot, err := twoPhaseTemplate().Encode()
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(dir, "template.yaml"), snapshot, 0644))
		path := filepath.Join(dir, "session.yaml")
		require.NoError(t, os.WriteFile(path, []byte(body), 0644))
		return path
	}

	t.Run("missing version treated as oldest", func(t *testing.T) {
		writeSession(t, "legacy", "name: legacy\ntemplate_name: planning\nstatus: active\n")
		s, err := st.Load("legacy")
		require.NoError(t, err)
		assert.Equal(t, "legacy", s.Name)
		// Missing phase states were re-seeded
		assert.Len(t, s.Phases, 2)
	})

	t.Run("newer version refused without rewriting the file", func(t *testing.T) {
		body := "schema_version: 2\nname: future\ntemplate_name: planning\nstatus: active\n"
		path := writeSession(t, "future", body)

		_, err := st.Load("future")
		require.Error(t, err)
		var verr *schema.VersionError
		require.True(t, errors.As(err, &verr))
		assert.Equal(t, 2, verr.Found)
		assert.Equal(t, schema.SessionVersion, verr.Supported)

		// A failed load must not touch the record
		after, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, body, string(after))
	})
}

func TestSaveRestampsUpdatedAt(t *testing.T) {
	st := NewStore(t.TempDir())
	s, err := st.Create("stamps", twoPhaseTemplate(), nil)
	require.NoError(t, err)

	before := s.UpdatedAt
	require.NoError(t, s.Save())
	assert.False(t, s.UpdatedAt.Before(before))

	// No temp file left behind
	_, err = os.Stat(filepath.Join(s.Dir(), ".session.yaml.tmp"))
	assert.True(t, os.IsNotExist(err))
}

func TestSideFileAccessors(t *testing.T) {
	st := NewStore(t.TempDir())
	s, err := st.Create("sides", twoPhaseTemplate(), nil)
	require.NoError(t, err)

	t.Run("absent is ok=false, not an error", func(t *testing.T) {
		_, ok := s.Transcript("gather-info")
		assert.False(t, ok)
		_, ok = s.Extracted("gather-info")
		assert.False(t, ok)
	})

	t.Run("write then read transcript", func(t *testing.T) {
		require.NoError(t, s.WriteTranscript("gather-info", "we discussed the roadmap"))
		got, ok := s.Transcript("gather-info")
		assert.True(t, ok)
		assert.Equal(t, "we discussed the roadmap", got)
	})

	t.Run("write then read extracted", func(t *testing.T) {
		fields := map[string]interface{}{"facts": []interface{}{"a", "b"}}
		require.NoError(t, s.WriteExtracted("gather-info", fields))
		got, ok := s.Extracted("gather-info")
		require.True(t, ok)
		assert.Equal(t, []interface{}{"a", "b"}, got["facts"])
	})
}

func TestListAndDelete(t *testing.T) {
	st := NewStore(t.TempDir())
	tmpl := twoPhaseTemplate()

	_, err := st.Create("one", tmpl, nil)
	require.NoError(t, err)
	_, err = st.Create("two", tmpl, nil)
	require.NoError(t, err)

	summaries, err := st.List()
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, 2, summaries[0].TotalPhases)
	assert.Equal(t, 0, summaries[0].DonePhases)

	require.NoError(t, st.Delete("one"))
	summaries, err = st.List()
	require.NoError(t, err)
	assert.Len(t, summaries, 1)

	require.ErrorIs(t, st.Delete("one"), ErrSessionNotFound)
}

func TestAddDocument(t *testing.T) {
	st := NewStore(t.TempDir())
	s, err := st.Create("docs", twoPhaseTemplate(), nil)
	require.NoError(t, err)

	id, err := s.AddDocument("/tmp/meeting.pdf", "[Page 1]\ntext", 1, 0, 4)
	require.NoError(t, err)
	require.NotEmpty(t, id)
	require.NoError(t, s.Save())

	loaded, err := st.Load("docs")
	require.NoError(t, err)
	require.Len(t, loaded.Documents, 1)
	assert.Equal(t, "meeting.pdf", loaded.Documents[0].Filename)
	assert.Equal(t, id, loaded.Documents[0].ID)

	stored, err := os.ReadFile(filepath.Join(loaded.Dir(), "documents", id+".txt"))
	require.NoError(t, err)
	assert.Contains(t, string(stored), "[Page 1]")
}
