// Package router maps an imported document's pages onto template
// phases, so one multi-section document can populate several phases in
// a single import. A cheap keyword heuristic gates the flow; the actual
// page-range assignment comes from an LLM call.
package router

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"sift/internal/config"
	"sift/internal/logging"
	"sift/internal/provider"
	"sift/internal/template"
)

// Confidence is the model's own trust signal for a mapping. It is
// passed through for display; the router never acts on it.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// PhaseMapping assigns a page range of the document to one phase.
// Transient: consumed immediately to populate phase transcripts.
type PhaseMapping struct {
	PhaseID      string
	PhaseName    string
	MatchedPages string // page-range string or "all"
	SectionTitle string
	Confidence   Confidence
	Content      string // document text for just those pages
}

// Router decides which page ranges of a document belong to which phase.
type Router struct {
	chat provider.Chat // may be nil: routing is an enhancement
	cfg  config.RouterConfig
}

// New returns a router. chat may be nil; analysis then returns no
// mappings and callers fall back to manual per-phase capture.
func New(chat provider.Chat, cfg config.RouterConfig) *Router {
	return &Router{chat: chat, cfg: cfg}
}

// DetectMultiPhase is the fast, LLM-free pre-check: does this document
// look like it covers several phases? For each phase it builds a
// keyword set from the phase name, field ids, and field prompts, then
// counts how many keywords literally appear in the document. Advisory
// only, and only meaningful when the template has at least two phases.
func (r *Router) DetectMultiPhase(doc string, phases []template.PhaseTemplate) bool {
	if len(phases) < 2 {
		return false
	}

	lowerDoc := strings.ToLower(doc)
	covered := 0

	for i := range phases {
		keywords := phaseKeywords(&phases[i])
		if len(keywords) == 0 {
			continue
		}

		hits := 0
		for kw := range keywords {
			if strings.Contains(lowerDoc, kw) {
				hits++
			}
		}

		ratio := float64(hits) / float64(len(keywords))
		if ratio > r.cfg.KeywordThreshold {
			covered++
		}
	}

	multi := covered >= r.cfg.MinCoveredPhases
	logging.RouterDebug("multi-phase pre-check: %d/%d phases covered, multi=%v", covered, len(phases), multi)
	return multi
}

// phaseKeywords collects lowercase keywords for one phase: name words
// longer than 3 chars, underscore-split field id words longer than 3
// chars, and field prompt words longer than 4 chars.
func phaseKeywords(p *template.PhaseTemplate) map[string]bool {
	keywords := make(map[string]bool)

	for _, w := range strings.Fields(strings.ToLower(p.Name)) {
		if len(w) > 3 {
			keywords[w] = true
		}
	}
	for _, f := range p.Extract {
		for _, w := range strings.Split(strings.ToLower(f.ID), "_") {
			if len(w) > 3 {
				keywords[w] = true
			}
		}
		for _, w := range strings.Fields(strings.ToLower(f.Prompt)) {
			if len(w) > 4 {
				keywords[w] = true
			}
		}
	}
	return keywords
}

const analyzeSystemPrompt = `You map sections of a document to the phases of a structured session. Respond with YAML only: no prose, no markdown fences.`

// AnalyzeDocument asks the model which page ranges belong to which
// phase. Returns no mappings (not an error) when no provider is
// configured or when the model's output stays unparsable after one
// repair round-trip: routing is an enhancement, and callers fall back
// to manual capture.
func (r *Router) AnalyzeDocument(ctx context.Context, doc string, tmpl *template.SessionTemplate) ([]PhaseMapping, error) {
	if r.chat == nil || !r.chat.IsAvailable() {
		logging.Router("no provider available, skipping document analysis")
		return nil, nil
	}

	timer := logging.StartTimer(logging.CategoryRouter, "analyze document")
	defer timer.Stop()

	analyzed := doc
	if r.cfg.MaxAnalysisChars > 0 && len(analyzed) > r.cfg.MaxAnalysisChars {
		analyzed = analyzed[:r.cfg.MaxAnalysisChars] + "\n\n[... document truncated for analysis ...]"
	}

	prompt := buildAnalysisPrompt(analyzed, tmpl)

	raw, err := r.chat.Chat(ctx, analyzeSystemPrompt, prompt, r.cfg.MaxTokens)
	if err != nil {
		logging.Router("document analysis call failed, degrading to no mappings: %v", err)
		return nil, nil
	}

	entries, parseErr := parseAnalysis(raw)
	if parseErr != nil {
		// One repair round-trip, then give up.
		logging.Router("malformed analysis output, attempting repair: %v", parseErr)
		repaired, err := r.chat.Chat(ctx, analyzeSystemPrompt, repairPrompt(raw, parseErr), r.cfg.MaxTokens)
		if err != nil {
			logging.Router("analysis repair call failed, degrading to no mappings: %v", err)
			return nil, nil
		}
		entries, parseErr = parseAnalysis(repaired)
		if parseErr != nil {
			logging.Router("analysis output unparsable after repair, degrading to no mappings: %v", parseErr)
			return nil, nil
		}
	}

	var mappings []PhaseMapping
	for _, e := range entries {
		phase, ok := tmpl.Phase(e.PhaseID)
		if !ok {
			// The model may hallucinate an id; drop it silently.
			logging.RouterDebug("dropping mapping for unknown phase id %q", e.PhaseID)
			continue
		}
		mappings = append(mappings, PhaseMapping{
			PhaseID:      e.PhaseID,
			PhaseName:    phase.Name,
			MatchedPages: e.Pages,
			SectionTitle: e.SectionTitle,
			Confidence:   normalizeConfidence(e.Confidence),
			Content:      extractPages(doc, e.Pages),
		})
	}

	logging.Router("document analysis produced %d mappings", len(mappings))
	return mappings, nil
}

func buildAnalysisPrompt(doc string, tmpl *template.SessionTemplate) string {
	var b strings.Builder

	b.WriteString("The session has these phases:\n")
	for _, p := range tmpl.Phases {
		fmt.Fprintf(&b, "- id: %s\n  name: %s\n  about: %s\n", p.ID, p.Name, p.Prompt)
		if len(p.Extract) > 0 {
			b.WriteString("  fields:\n")
			for _, f := range p.Extract {
				fmt.Fprintf(&b, "    - %s: %s\n", f.ID, f.Prompt)
			}
		}
	}

	b.WriteString(`
Assign document pages to phases. Rules:
- assign each page to at most one phase
- prefer contiguous page ranges
- omit phases with no matching content
- pages is a string like "2-3", "1,4", or "all"

Return a YAML list, one entry per matched phase:
- phase_id: <id from the list above>
  pages: "<range>"
  section_title: "<short label for the matched section>"
  confidence: high|medium|low

Document:
`)
	b.WriteString(doc)

	return b.String()
}

func repairPrompt(badOutput string, parseErr error) string {
	return fmt.Sprintf(
		"Your previous output was not valid YAML (%v). Fix it and return only the corrected YAML list, nothing else.\n\nPrevious output:\n%s",
		parseErr, badOutput)
}

// analysisEntry is the wire shape the model is asked for.
type analysisEntry struct {
	PhaseID      string `yaml:"phase_id"`
	Pages        string `yaml:"pages"`
	SectionTitle string `yaml:"section_title"`
	Confidence   string `yaml:"confidence"`
}

func parseAnalysis(raw string) ([]analysisEntry, error) {
	cleaned := provider.StripFences(raw)

	var entries []analysisEntry
	if err := yaml.Unmarshal([]byte(cleaned), &entries); err != nil {
		return nil, err
	}
	// An empty list is a legal answer: no phase matched.
	for _, e := range entries {
		if e.PhaseID == "" {
			return nil, fmt.Errorf("entry missing phase_id")
		}
	}
	return entries, nil
}

func normalizeConfidence(s string) Confidence {
	switch Confidence(strings.ToLower(strings.TrimSpace(s))) {
	case ConfidenceHigh:
		return ConfidenceHigh
	case ConfidenceLow:
		return ConfidenceLow
	default:
		return ConfidenceMedium
	}
}

var pageMarkerRe = regexp.MustCompile(`\[Page (\d+)\]`)

// extractPages filters a page-marked document to the pages named by a
// range string. "all" returns the document unchanged. A range string is
// a comma-separated list of numbers and start-end dashes; malformed
// tokens are skipped, and a range with no valid token at all falls back
// to the whole document. Page order is preserved and unmatched pages
// are simply omitted.
func extractPages(doc, pages string) string {
	wanted, all := parsePageRange(pages)
	if all {
		return doc
	}

	// Split keeps marker/content pairs: text before the first marker is
	// dropped, then parts alternate page number, page content.
	parts := pageMarkerRe.Split(doc, -1)
	markers := pageMarkerRe.FindAllStringSubmatch(doc, -1)

	var b strings.Builder
	for i, m := range markers {
		num, err := strconv.Atoi(m[1])
		if err != nil || !wanted[num] {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[Page %d]", num)
		if i+1 < len(parts) {
			b.WriteString(strings.TrimRight(parts[i+1], "\n"))
		}
	}
	return b.String()
}

// SplitByPages slices one document into per-phase content by page
// range, preserving marker formatting.
func SplitByPages(doc string, ranges map[string]string) map[string]string {
	out := make(map[string]string, len(ranges))
	for phaseID, spec := range ranges {
		out[phaseID] = extractPages(doc, spec)
	}
	return out
}

// parsePageRange resolves a range string to a page-number set. all is
// true for the literal "all", an empty spec, or a spec with no parsable
// token, meaning the whole document.
func parsePageRange(pages string) (wanted map[int]bool, all bool) {
	spec := strings.TrimSpace(strings.ToLower(pages))
	if spec == "" || spec == "all" {
		return nil, true
	}

	wanted = make(map[int]bool)
	for _, token := range strings.Split(spec, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		if start, end, ok := strings.Cut(token, "-"); ok {
			lo, err1 := strconv.Atoi(strings.TrimSpace(start))
			hi, err2 := strconv.Atoi(strings.TrimSpace(end))
			if err1 != nil || err2 != nil || lo > hi {
				continue // malformed token, skip
			}
			for n := lo; n <= hi; n++ {
				wanted[n] = true
			}
			continue
		}
		n, err := strconv.Atoi(token)
		if err != nil {
			continue
		}
		wanted[n] = true
	}

	// Every token malformed: better the whole document than nothing.
	if len(wanted) == 0 {
		return nil, true
	}

	return wanted, false
}
