package router

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sift/internal/config"
	"sift/internal/template"
)

// fakeChat returns scripted responses in order.
type fakeChat struct {
	responses     []string
	calls         int
	available     bool
	err           error
	lastMaxTokens int
}

func (f *fakeChat) Name() string      { return "fake" }
func (f *fakeChat) Model() string     { return "fake-model" }
func (f *fakeChat) IsAvailable() bool { return f.available }

func (f *fakeChat) Chat(ctx context.Context, system, user string, maxTokens int) (string, error) {
	f.lastMaxTokens = maxTokens
	if f.err != nil {
		return "", f.err
	}
	if f.calls >= len(f.responses) {
		return "", fmt.Errorf("fake chat exhausted after %d calls", f.calls)
	}
	resp := f.responses[f.calls]
	f.calls++
	return resp, nil
}

func testDoc() string {
	return "[Page 1]\nproject goals and scope\n\n[Page 2]\nrisks and blockers\n\n[Page 3]\nmore risks\n\n[Page 4]\ntimeline\n\n[Page 5]\nappendix"
}

func testTemplate() *template.SessionTemplate {
	return &template.SessionTemplate{
		Name: "planning",
		Phases: []template.PhaseTemplate{
			{
				ID: "goals", Name: "Project Goals", Prompt: "Discuss goals",
				Extract: []template.ExtractionField{
					{ID: "project_scope", Type: template.FieldText, Prompt: "Describe the project scope"},
				},
			},
			{
				ID: "risks", Name: "Risks Review", Prompt: "Discuss risks",
				Extract: []template.ExtractionField{
					{ID: "open_blockers", Type: template.FieldList, Prompt: "List current blockers"},
				},
			},
		},
	}
}

func testRouter(chat *fakeChat) *Router {
	return New(chat, config.DefaultConfig().Router)
}

func TestExtractPages(t *testing.T) {
	doc := testDoc()

	t.Run("dash range keeps exactly those pages", func(t *testing.T) {
		out := extractPages(doc, "2-3")
		assert.Contains(t, out, "[Page 2]")
		assert.Contains(t, out, "risks and blockers")
		assert.Contains(t, out, "[Page 3]")
		assert.Contains(t, out, "more risks")
		assert.NotContains(t, out, "[Page 1]")
		assert.NotContains(t, out, "[Page 4]")
		assert.NotContains(t, out, "appendix")
		// Order preserved
		assert.Less(t, strings.Index(out, "[Page 2]"), strings.Index(out, "[Page 3]"))
	})

	t.Run("all returns document unchanged", func(t *testing.T) {
		assert.Equal(t, doc, extractPages(doc, "all"))
	})

	t.Run("comma list", func(t *testing.T) {
		out := extractPages(doc, "1,4")
		assert.Contains(t, out, "[Page 1]")
		assert.Contains(t, out, "[Page 4]")
		assert.NotContains(t, out, "[Page 2]")
	})

	t.Run("malformed tokens skipped", func(t *testing.T) {
		out := extractPages(doc, "2, junk, 9-x")
		assert.Contains(t, out, "[Page 2]")
		assert.NotContains(t, out, "[Page 1]")
		assert.NotContains(t, out, "[Page 3]")
	})

	t.Run("all-malformed range falls back to whole document", func(t *testing.T) {
		assert.Equal(t, doc, extractPages(doc, "junk, 9-x"))
	})

	t.Run("missing pages omitted", func(t *testing.T) {
		out := extractPages(doc, "4-9")
		assert.Contains(t, out, "[Page 4]")
		assert.Contains(t, out, "[Page 5]")
		assert.NotContains(t, out, "[Page 3]")
	})
}

func TestSplitByPages(t *testing.T) {
	doc := testDoc()
	out := SplitByPages(doc, map[string]string{
		"goals": "1-2",
		"risks": "all",
	})
	require.Len(t, out, 2)
	assert.Contains(t, out["goals"], "[Page 1]")
	assert.NotContains(t, out["goals"], "[Page 3]")
	assert.Equal(t, doc, out["risks"])
}

func TestDetectMultiPhase(t *testing.T) {
	r := testRouter(&fakeChat{})
	tmpl := testTemplate()

	t.Run("document covering both phases", func(t *testing.T) {
		doc := "The project goals define the scope. Risks include several blockers we must describe."
		assert.True(t, r.DetectMultiPhase(doc, tmpl.Phases))
	})

	t.Run("document covering one phase", func(t *testing.T) {
		doc := "Nothing relevant here except cats."
		assert.False(t, r.DetectMultiPhase(doc, tmpl.Phases))
	})

	t.Run("single-phase template never multi", func(t *testing.T) {
		doc := "project goals scope risks blockers everything"
		assert.False(t, r.DetectMultiPhase(doc, tmpl.Phases[:1]))
	})
}

func TestAnalyzeDocument(t *testing.T) {
	tmpl := testTemplate()
	doc := testDoc()

	goodResponse := `- phase_id: goals
  pages: "1"
  section_title: "Goals"
  confidence: high
- phase_id: risks
  pages: "2-3"
  section_title: "Risks"
  confidence: medium
`

	t.Run("no provider yields no mappings without error", func(t *testing.T) {
		r := testRouter(&fakeChat{available: false})
		mappings, err := r.AnalyzeDocument(context.Background(), doc, tmpl)
		require.NoError(t, err)
		assert.Empty(t, mappings)
	})

	t.Run("well-formed response maps pages to phases", func(t *testing.T) {
		chat := &fakeChat{available: true, responses: []string{goodResponse}}
		r := testRouter(chat)

		mappings, err := r.AnalyzeDocument(context.Background(), doc, tmpl)
		require.NoError(t, err)
		require.Len(t, mappings, 2)

		assert.Equal(t, "goals", mappings[0].PhaseID)
		assert.Equal(t, "Project Goals", mappings[0].PhaseName)
		assert.Equal(t, ConfidenceHigh, mappings[0].Confidence)
		assert.Contains(t, mappings[0].Content, "project goals and scope")
		assert.NotContains(t, mappings[0].Content, "risks")

		assert.Equal(t, "risks", mappings[1].PhaseID)
		assert.Contains(t, mappings[1].Content, "risks and blockers")
		assert.Contains(t, mappings[1].Content, "more risks")
		assert.NotContains(t, mappings[1].Content, "timeline")

		assert.Equal(t, config.DefaultConfig().Router.MaxTokens, chat.lastMaxTokens)
	})

	t.Run("fenced response still parses", func(t *testing.T) {
		chat := &fakeChat{available: true, responses: []string{"```yaml\n" + goodResponse + "```"}}
		r := testRouter(chat)

		mappings, err := r.AnalyzeDocument(context.Background(), doc, tmpl)
		require.NoError(t, err)
		assert.Len(t, mappings, 2)
	})

	t.Run("empty list means no phase matched, no repair call", func(t *testing.T) {
		chat := &fakeChat{available: true, responses: []string{"[]"}}
		r := testRouter(chat)

		mappings, err := r.AnalyzeDocument(context.Background(), doc, tmpl)
		require.NoError(t, err)
		assert.Empty(t, mappings)
		assert.Equal(t, 1, chat.calls)
	})

	t.Run("one repair round-trip on malformed output", func(t *testing.T) {
		chat := &fakeChat{available: true, responses: []string{
			"Sure! Here are the mappings: {not yaml",
			goodResponse,
		}}
		r := testRouter(chat)

		mappings, err := r.AnalyzeDocument(context.Background(), doc, tmpl)
		require.NoError(t, err)
		assert.Len(t, mappings, 2)
		assert.Equal(t, 2, chat.calls)
	})

	t.Run("unparsable after repair degrades to no mappings", func(t *testing.T) {
		chat := &fakeChat{available: true, responses: []string{
			"{broken",
			"{still broken",
		}}
		r := testRouter(chat)

		mappings, err := r.AnalyzeDocument(context.Background(), doc, tmpl)
		require.NoError(t, err)
		assert.Empty(t, mappings)
		// Exactly one repair call, no unbounded loop
		assert.Equal(t, 2, chat.calls)
	})

	t.Run("unknown phase ids silently dropped", func(t *testing.T) {
		chat := &fakeChat{available: true, responses: []string{
			"- phase_id: hallucinated\n  pages: \"1\"\n  confidence: high\n- phase_id: risks\n  pages: \"2-3\"\n  confidence: low\n",
		}}
		r := testRouter(chat)

		mappings, err := r.AnalyzeDocument(context.Background(), doc, tmpl)
		require.NoError(t, err)
		require.Len(t, mappings, 1)
		assert.Equal(t, "risks", mappings[0].PhaseID)
		assert.Equal(t, ConfidenceLow, mappings[0].Confidence)
	})

	t.Run("chat failure degrades to no mappings", func(t *testing.T) {
		chat := &fakeChat{available: true, err: fmt.Errorf("network down")}
		r := testRouter(chat)

		mappings, err := r.AnalyzeDocument(context.Background(), doc, tmpl)
		require.NoError(t, err)
		assert.Empty(t, mappings)
	})

	t.Run("long document truncated with marker", func(t *testing.T) {
		var captured string
		chat := &fakeChat{available: true, responses: []string{goodResponse}}
		r := New(&promptCapturingChat{inner: chat, captured: &captured}, config.RouterConfig{
			KeywordThreshold: 0.3,
			MinCoveredPhases: 2,
			MaxAnalysisChars: 100,
		})

		longDoc := "[Page 1]\n" + strings.Repeat("x", 500)
		_, err := r.AnalyzeDocument(context.Background(), longDoc, tmpl)
		require.NoError(t, err)
		assert.Contains(t, captured, "[... document truncated for analysis ...]")
	})
}

// promptCapturingChat records the user prompt passing through it.
type promptCapturingChat struct {
	inner    *fakeChat
	captured *string
}

func (p *promptCapturingChat) Name() string      { return p.inner.Name() }
func (p *promptCapturingChat) Model() string     { return p.inner.Model() }
func (p *promptCapturingChat) IsAvailable() bool { return p.inner.IsAvailable() }

func (p *promptCapturingChat) Chat(ctx context.Context, system, user string, maxTokens int) (string, error) {
	*p.captured = user
	return p.inner.Chat(ctx, system, user, maxTokens)
}
